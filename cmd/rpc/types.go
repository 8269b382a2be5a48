package rpc

import (
	"github.com/canopy-network/batchdex/dex"
	"github.com/canopy-network/batchdex/lib"
)

// =====================================================
// Query Request Types
// =====================================================
type heightRequest struct {
	Height uint64 `json:"height"`
}

type heightsRequest struct {
	heightRequest
	StartHeight uint64 `json:"startHeight"`
}

type pairRequest struct {
	Asset1 dex.AssetId `json:"asset1"`
	Asset2 dex.AssetId `json:"asset2"`
}

// pair() canonicalizes the requested assets, which may be given in any order
func (p *pairRequest) pair() (dex.TradingPair, bool) {
	if p.Asset1 == (dex.AssetId{}) || p.Asset2 == (dex.AssetId{}) {
		return dex.TradingPair{}, false
	}
	pair, err := dex.NewTradingPair(p.Asset1, p.Asset2)
	return pair, err == nil
}

type directedPairRequest struct {
	Start dex.AssetId `json:"start"`
	End   dex.AssetId `json:"end"`
}

func (d *directedPairRequest) directed() (dex.DirectedTradingPair, bool) {
	if d.Start == (dex.AssetId{}) || d.End == (dex.AssetId{}) || d.Start == d.End {
		return dex.DirectedTradingPair{}, false
	}
	return dex.DirectedTradingPair{Start: d.Start, End: d.End}, true
}

type outputDataRequest struct {
	heightRequest
	pairRequest
}

type positionRequest struct {
	Id dex.PositionId `json:"id"`
}

type positionsRequest struct {
	pairRequest
	IncludeClosed bool `json:"includeClosed"`
}

type executionsRequest struct {
	heightsRequest
	directedPairRequest
}

type candlesticksRequest struct {
	directedPairRequest
	StartHeight uint64 `json:"startHeight"`
	Limit       int    `json:"limit"`
}

type simulateTradeRequest struct {
	Input     dex.Value   `json:"input"`
	Output    dex.AssetId `json:"output"`
	SingleHop bool        `json:"singleHop"`
}

type eventsRequest struct {
	heightRequest
	EventType lib.EventType `json:"eventType"` // optional filter
}

type assetRequest struct {
	AssetId dex.AssetId `json:"assetId"`
}

// =====================================================
// Response Types
// =====================================================
type HeightResponse struct {
	Height uint64 `json:"height"`
}

type VCBBalanceResponse struct {
	AssetId         dex.AssetId `json:"assetId"`
	Balance         uint64      `json:"balance"`         // value held by the dex
	ProtocolBalance uint64      `json:"protocolBalance"` // arbitrage surplus captured by the protocol
}

type ApplyBlockResponse struct {
	Height  uint64              `json:"height"`
	Results []*dex.ActionResult `json:"results"`
	Events  lib.Events          `json:"events"`
}

type ResourceUsageResponse struct {
	Process ProcessResourceUsage `json:"process"`
	System  SystemResourceUsage  `json:"system"`
}

type ProcessResourceUsage struct {
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	CreateTime    string  `json:"createTime"`
	ThreadCount   uint64  `json:"threadCount"`
	MemoryPercent float64 `json:"usedMemoryPercent"`
	CPUPercent    float64 `json:"usedCPUPercent"`
}

type SystemResourceUsage struct {
	// ram
	TotalRAM       uint64  `json:"totalRAM"`
	AvailableRAM   uint64  `json:"availableRAM"`
	UsedRAM        uint64  `json:"usedRAM"`
	UsedRAMPercent float64 `json:"usedRAMPercent"`
	FreeRAM        uint64  `json:"freeRAM"`
	// CPU
	UsedCPUPercent float64 `json:"usedCPUPercent"`
	UserCPU        float64 `json:"userCPU"`
	SystemCPU      float64 `json:"systemCPU"`
	IdleCPU        float64 `json:"idleCPU"`
	// disk
	TotalDisk       uint64  `json:"totalDisk"`
	UsedDisk        uint64  `json:"usedDisk"`
	UsedDiskPercent float64 `json:"usedDiskPercent"`
	FreeDisk        uint64  `json:"freeDisk"`
}
