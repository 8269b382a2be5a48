package dex

import (
	"github.com/canopy-network/batchdex/lib"
)

/* This file implements the read-only query surface of the dex */

// OutputData() is the settlement result of the pair at the height, or nil if the pair had no batch there
func (s *StateMachine) OutputData(height uint64, pair TradingPair) (*BatchSwapOutputData, lib.ErrorI) {
	o := new(BatchSwapOutputData)
	found, err := s.getJSON(KeyForOutputData(height, pair), o)
	if err != nil || !found {
		return nil, err
	}
	return o, nil
}

// OutputDataByHeight() lists the settlement results of every pair at the height, in canonical pair order
func (s *StateMachine) OutputDataByHeight(height uint64) (list []*BatchSwapOutputData, err lib.ErrorI) {
	err = s.IterateAndExecute(OutputDataPrefix(height), func(_, v []byte) lib.ErrorI {
		o := new(BatchSwapOutputData)
		if e := lib.UnmarshalJSON(v, o); e != nil {
			return e
		}
		list = append(list, o)
		return nil
	})
	return
}

// PositionById() is the position with the id, or ErrPositionNotFound
func (s *StateMachine) PositionById(id PositionId) (*Position, lib.ErrorI) {
	p, err := s.GetPosition(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPositionNotFound(id)
	}
	return p, nil
}

// PositionsByPair() lists the opened positions of the pair by price, 1->2 first then 2->1,
// followed by the positions in any other state if requested
func (s *StateMachine) PositionsByPair(pair TradingPair, includeClosed bool) (positions []*Position, err lib.ErrorI) {
	if err = pair.Check(); err != nil {
		return nil, err
	}
	var ids []PositionId
	seen := make(map[PositionId]struct{})
	for _, d := range []DirectedTradingPair{pair.Directed12(), pair.Directed21()} {
		byPrice, e := s.positionsByPrice(d)
		if e != nil {
			return nil, e
		}
		for _, id := range byPrice {
			if _, found := seen[id]; !found {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	for _, id := range ids {
		p, e := s.PositionById(id)
		if e != nil {
			return nil, e
		}
		positions = append(positions, p)
	}
	if !includeClosed {
		return
	}
	err = s.IterateAndExecute(PositionPrefix(), func(_, v []byte) lib.ErrorI {
		p := new(Position)
		if e := lib.UnmarshalJSON(v, p); e != nil {
			return e
		}
		if p.Phi.Pair == pair && p.State.Kind != PositionOpened {
			positions = append(positions, p)
		}
		return nil
	})
	return
}

// SwapExecutionRecord is a batch swap execution with the height and direction it settled
type SwapExecutionRecord struct {
	Height    uint64              `json:"height"`
	Pair      DirectedTradingPair `json:"pair"`
	Execution *SwapExecution      `json:"execution"`
}

// SwapExecutions() lists the batch swap executions between the heights inclusive, optionally of one directed pair only
func (s *StateMachine) SwapExecutions(startHeight, endHeight uint64, pair *DirectedTradingPair) (list []*SwapExecutionRecord, err lib.ErrorI) {
	it, err := s.store.Iterator(SwapExecutionPrefix())
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		segments := lib.DecodeLengthPrefixed(it.Key())
		if len(segments) != 3 {
			return nil, ErrInvalidKey(it.Key())
		}
		height := lib.ParseUint64(segments[1])
		if height < startHeight {
			continue
		}
		if height > endHeight {
			break
		}
		r := &SwapExecutionRecord{Height: height, Execution: new(SwapExecution)}
		copy(r.Pair.Start[:], segments[2][:len(r.Pair.Start)])
		copy(r.Pair.End[:], segments[2][len(r.Pair.Start):])
		if pair != nil && r.Pair != *pair {
			continue
		}
		if e := lib.UnmarshalJSON(it.Value(), r.Execution); e != nil {
			return nil, e
		}
		list = append(list, r)
	}
	return
}

// ArbExecutions() lists the arbitrage captured between the heights inclusive
func (s *StateMachine) ArbExecutions(startHeight, endHeight uint64) (list []*ArbExecution, err lib.ErrorI) {
	it, err := s.store.Iterator(ArbExecutionPrefix())
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		height, e := heightFromKey(it.Key(), 1)
		if e != nil {
			return nil, e
		}
		if height < startHeight {
			continue
		}
		if height > endHeight {
			break
		}
		a := new(ArbExecution)
		if e = lib.UnmarshalJSON(it.Value(), a); e != nil {
			return nil, e
		}
		list = append(list, a)
	}
	return
}

// SimulationMode selects the routing used to simulate a trade
type SimulationMode int

const (
	SimulateDefault   SimulationMode = iota // route with the dex params
	SimulateSingleHop                       // only trade directly against positions of the pair
)

// SimulateTradeResult is the outcome of a trade simulated against the current ledger
type SimulateTradeResult struct {
	Execution *SwapExecution `json:"execution,omitempty"`
	Output    Value          `json:"output"`
	Unfilled  Value          `json:"unfilled"`
}

// SimulateTrade() routes the input against a throwaway copy of the ledger and reports what the trade would yield
func (s *StateMachine) SimulateTrade(input Value, output AssetId, mode SimulationMode) (*SimulateTradeResult, lib.ErrorI) {
	if input.Amount == 0 {
		return nil, ErrSimulationInputRequired()
	}
	if input.AssetId == output {
		return nil, ErrInvalidTradingPair()
	}
	params, err := s.GetParams()
	if err != nil {
		return nil, err
	}
	routing := params.RoutingParams()
	if mode == SimulateSingleHop {
		routing = RoutingParams{MaxHops: 1}
	}
	fork, txn := s.fork()
	defer txn.Discard()
	exec, err := fork.RouteAndFill(input.AssetId, output, input.Amount, routing, NewExecutionCircuitBreaker(params.MaxExecutionBudget))
	if err != nil {
		return nil, err
	}
	result := &SimulateTradeResult{
		Execution: exec,
		Output:    Value{AssetId: output},
		Unfilled:  input,
	}
	if exec != nil {
		result.Output.Amount, result.Unfilled.Amount = exec.Output.Amount, input.Amount-exec.Input.Amount
	}
	return result, nil
}

// VCBBalance() is the value the dex holds for the asset
func (s *StateMachine) VCBBalance(asset AssetId) (uint64, lib.ErrorI) { return s.GetVCBBalance(asset) }
