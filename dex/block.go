package dex

import (
	"github.com/canopy-network/batchdex/lib"
)

// Block is the ordered unit of input to the settlement engine
type Block struct {
	Height           uint64    `json:"height"`
	EpochIndex       uint64    `json:"epochIndex"`
	EpochStartHeight uint64    `json:"epochStartHeight"`
	Actions          []*Action `json:"actions"`
}

// Check() validates the block before it's applied
func (b *Block) Check() lib.ErrorI {
	if b == nil {
		return lib.ErrNilBlock()
	}
	if b.EpochStartHeight > b.Height {
		return lib.ErrInvalidArgument()
	}
	return nil
}

// Action is a tagged union of the messages a block may carry, exactly one field is set
type Action struct {
	PositionOpen        *PositionOpen        `json:"positionOpen,omitempty"`
	PositionClose       *PositionClose       `json:"positionClose,omitempty"`
	PositionWithdraw    *PositionWithdraw    `json:"positionWithdraw,omitempty"`
	PositionRewardClaim *PositionRewardClaim `json:"positionRewardClaim,omitempty"`
	Swap                *Swap                `json:"swap,omitempty"`
	SwapClaim           *SwapClaim           `json:"swapClaim,omitempty"`
}

// action kinds, used in results, logs, and metrics
const (
	ActionPositionOpen        = "positionOpen"
	ActionPositionClose       = "positionClose"
	ActionPositionWithdraw    = "positionWithdraw"
	ActionPositionRewardClaim = "positionRewardClaim"
	ActionSwap                = "swap"
	ActionSwapClaim           = "swapClaim"
)

// Kind() names the set variant, or returns an empty string if the union is not exactly one variant
func (a *Action) Kind() string {
	kind, count := "", 0
	if a.PositionOpen != nil {
		kind, count = ActionPositionOpen, count+1
	}
	if a.PositionClose != nil {
		kind, count = ActionPositionClose, count+1
	}
	if a.PositionWithdraw != nil {
		kind, count = ActionPositionWithdraw, count+1
	}
	if a.PositionRewardClaim != nil {
		kind, count = ActionPositionRewardClaim, count+1
	}
	if a.Swap != nil {
		kind, count = ActionSwap, count+1
	}
	if a.SwapClaim != nil {
		kind, count = ActionSwapClaim, count+1
	}
	if count != 1 {
		return ""
	}
	return kind
}

// PositionOpen opens a new liquidity position
type PositionOpen struct {
	Position Position `json:"position"`
}

// PositionClose queues an opened position to close at the end of the block
type PositionClose struct {
	PositionId PositionId `json:"positionId"`
}

// PositionWithdraw releases the reserves of a closed position
type PositionWithdraw struct {
	PositionId PositionId `json:"positionId"`
	Sequence   uint64     `json:"sequence"`
}

// PositionRewardClaim finalizes a withdrawn position
type PositionRewardClaim struct {
	PositionId PositionId `json:"positionId"`
}

// ActionResult is the outcome of a single action in a block
type ActionResult struct {
	Index          int              `json:"index"`
	Kind           string           `json:"kind"`
	Success        bool             `json:"success"`
	Error          string           `json:"error,omitempty"`
	PositionId     *PositionId      `json:"positionId,omitempty"`
	Released       []Value          `json:"released,omitempty"`
	Claim          *SwapClaimResult `json:"claim,omitempty"`
	SwapCommitment lib.HexBytes     `json:"swapCommitment,omitempty"` // what a successful swap is claimed with
}
