package dex

import (
	"github.com/canopy-network/batchdex/lib"
)

// EventPositionOpen is emitted when a position is opened
type EventPositionOpen struct {
	PositionId PositionId  `json:"positionId"`
	Pair       TradingPair `json:"pair"`
	Reserves   Reserves    `json:"reserves"`
}

// EventPositionClose is emitted when a position stops being routable
type EventPositionClose struct {
	PositionId PositionId `json:"positionId"`
	Evicted    bool       `json:"evicted,omitempty"` // closed by the engine to keep the pair under its position cap
}

// EventPositionWithdraw is emitted when the reserves of a position leave the dex
type EventPositionWithdraw struct {
	PositionId PositionId `json:"positionId"`
	Sequence   uint64     `json:"sequence"`
	Released   []Value    `json:"released"`
}

// EventPositionExecution is emitted when the router trades against a position
type EventPositionExecution struct {
	PositionId PositionId `json:"positionId"`
	Prev       Reserves   `json:"prev"`
	Next       Reserves   `json:"next"`
}

// EventSwap is emitted when a swap joins the batch of its pair
type EventSwap struct {
	Pair           TradingPair  `json:"pair"`
	Delta1I        uint64       `json:"delta1I"`
	Delta2I        uint64       `json:"delta2I"`
	SwapCommitment lib.HexBytes `json:"swapCommitment"`
}

// EventSwapClaim is emitted when a swapper redeems its share of a batch
type EventSwapClaim struct {
	Pair      TradingPair  `json:"pair"`
	Height    uint64       `json:"height"`
	Nullifier lib.HexBytes `json:"nullifier"`
	Output1   Value        `json:"output1"`
	Output2   Value        `json:"output2"`
}

// EventBatchSwap is emitted when the batch of a pair settles
type EventBatchSwap struct {
	OutputData BatchSwapOutputData `json:"outputData"`
}

// EventArbExecution is emitted when an arbitrage cycle is committed
type EventArbExecution struct {
	Surplus       Value          `json:"surplus"`
	SwapExecution *SwapExecution `json:"swapExecution"`
}

// EventVCB is emitted when value enters or leaves the dex
type EventVCB struct {
	AssetId AssetId `json:"assetId"`
	Amount  uint64  `json:"amount"`
	Balance uint64  `json:"balance"` // after the change
}

// EventPositionOpen() adds a position opened event
func (s *StateMachine) EventPositionOpen(id PositionId, p *Position) lib.ErrorI {
	return s.addEvent(lib.EventTypePositionOpen, &EventPositionOpen{PositionId: id, Pair: p.Phi.Pair, Reserves: p.Reserves})
}

// EventPositionClose() adds a position closed event
func (s *StateMachine) EventPositionClose(id PositionId, evicted bool) lib.ErrorI {
	return s.addEvent(lib.EventTypePositionClose, &EventPositionClose{PositionId: id, Evicted: evicted})
}

// EventPositionWithdraw() adds a position reserves withdrawn event
func (s *StateMachine) EventPositionWithdraw(id PositionId, sequence uint64, released []Value) lib.ErrorI {
	return s.addEvent(lib.EventTypePositionWithdraw, &EventPositionWithdraw{PositionId: id, Sequence: sequence, Released: released})
}

// EventPositionExecution() adds a position traded against event
func (s *StateMachine) EventPositionExecution(id PositionId, prev, next Reserves) lib.ErrorI {
	return s.addEvent(lib.EventTypePositionExecution, &EventPositionExecution{PositionId: id, Prev: prev, Next: next})
}

// EventSwap() adds a swap queued event
func (s *StateMachine) EventSwap(x *Swap, commitment []byte) lib.ErrorI {
	return s.addEvent(lib.EventTypeSwap, &EventSwap{Pair: x.Pair, Delta1I: x.Delta1I, Delta2I: x.Delta2I, SwapCommitment: commitment})
}

// EventSwapClaim() adds a swap claimed event
func (s *StateMachine) EventSwapClaim(c *SwapClaim, r *SwapClaimResult) lib.ErrorI {
	return s.addEvent(lib.EventTypeSwapClaim, &EventSwapClaim{
		Pair:      c.Pair,
		Height:    c.Height,
		Nullifier: c.Nullifier,
		Output1:   r.Output1,
		Output2:   r.Output2,
	})
}

// EventBatchSwap() adds a batch settled event
func (s *StateMachine) EventBatchSwap(o *BatchSwapOutputData) lib.ErrorI {
	return s.addEvent(lib.EventTypeBatchSwap, &EventBatchSwap{OutputData: *o})
}

// EventArbExecution() adds an arbitrage committed event
func (s *StateMachine) EventArbExecution(surplus Value, exec *SwapExecution) lib.ErrorI {
	return s.addEvent(lib.EventTypeArbExecution, &EventArbExecution{Surplus: surplus, SwapExecution: exec})
}

// EventVCB() adds a value circuit breaker credit or debit event
func (s *StateMachine) EventVCB(eventType lib.EventType, v Value, balance uint64) lib.ErrorI {
	return s.addEvent(eventType, &EventVCB{AssetId: v.AssetId, Amount: v.Amount, Balance: balance})
}

// addEvent() is a helper function that creates an event with common fields set and adds it to the tracker
func (s *StateMachine) addEvent(eventType lib.EventType, msg any) lib.ErrorI {
	e, err := lib.NewEvent(eventType, s.height, s.events.GetReference(), msg)
	if err != nil {
		return err
	}
	return s.events.Add(e)
}

// Events() lists the events emitted while applying the block at the height
func (s *StateMachine) Events(height uint64) (events lib.Events, err lib.ErrorI) {
	_, err = s.getJSON(KeyForEvents(height), &events)
	return
}
