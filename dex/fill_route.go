package dex

import (
	"errors"
	"time"

	"github.com/canopy-network/batchdex/lib"
	"github.com/canopy-network/batchdex/lib/fixpoint"
)

// SwapExecution is the record of a routed trade: every trace is the amount held after each hop of one fill
type SwapExecution struct {
	Traces [][]Value `json:"traces"`
	Input  Value     `json:"input"`
	Output Value     `json:"output"`
}

// MaxPrice() is the worst price paid by any trace, or nil if no trace produced output
func (e *SwapExecution) MaxPrice() *fixpoint.U128x128 {
	var worst *fixpoint.U128x128
	for _, trace := range e.Traces {
		if len(trace) == 0 {
			continue
		}
		price, err := fixpoint.Ratio(trace[0].Amount, trace[len(trace)-1].Amount)
		if err != nil {
			continue
		}
		if worst == nil || price.Cmp(*worst) > 0 {
			worst = &price
		}
	}
	return worst
}

// FillRoute() sells the input along the hops against the best positions of each edge
// the fill runs in a nested transaction and stops early once the marginal price exceeds the spill price
func (s *StateMachine) FillRoute(input Value, hops []AssetId, spill *fixpoint.U128x128) (exec *SwapExecution, err lib.ErrorI) {
	start := time.Now()
	route := append([]AssetId{input.AssetId}, hops...)
	if len(route) < 2 {
		return nil, ErrInvalidRoute(len(route))
	}
	pairs := make([]DirectedTradingPair, len(route)-1)
	for i := range pairs {
		pairs[i] = DirectedTradingPair{Start: route[i], End: route[i+1]}
	}
	// fill inside a nested transaction so a failed fill leaves no trace
	txn, restore := s.TxnWrap()
	defer restore()
	mark := s.events.Len()
	defer func() {
		if err != nil {
			s.events.Truncate(mark)
		}
	}()
	f, err := s.loadFrontier(pairs)
	if err != nil {
		txn.Discard()
		return nil, err
	}
	defer f.close()
	if err = f.fill(input, spill); err != nil {
		txn.Discard()
		return nil, err
	}
	// persist every position still in the frontier
	if err = f.save(); err != nil {
		txn.Discard()
		return nil, err
	}
	if err = txn.Write(); err != nil {
		return nil, err
	}
	exec = &SwapExecution{
		Traces: f.traces,
		Input:  Value{AssetId: pairs[0].Start},
		Output: Value{AssetId: pairs[len(pairs)-1].End},
	}
	for _, trace := range f.traces {
		exec.Input.Amount += trace[0].Amount
		exec.Output.Amount += trace[len(trace)-1].Amount
	}
	s.Metrics.ObserveRouteFill(time.Since(start))
	return exec, nil
}

// frontier is the set of positions currently being filled, one per hop of the route
type frontier struct {
	sm        *StateMachine
	pairs     []DirectedTradingPair
	positions []*Position
	used      map[PositionId]struct{}
	queues    map[DirectedTradingPair]lib.IteratorI // the remaining price index of each edge, best price first
	traces    [][]Value
}

// frontierTx is a tentative fill, applied to the frontier only if its price is acceptable
type frontierTx struct {
	reserves []Reserves
	trace    []uint64
}

// price() is the input paid per unit of output; false if the fill produced nothing
func (t *frontierTx) price() (fixpoint.U128x128, bool) {
	price, err := fixpoint.Ratio(t.trace[0], t.trace[len(t.trace)-1])
	return price, err == nil
}

// loadFrontier() takes the best unused position of every hop
func (s *StateMachine) loadFrontier(pairs []DirectedTradingPair) (_ *frontier, err lib.ErrorI) {
	f := &frontier{
		sm:     s,
		pairs:  pairs,
		used:   make(map[PositionId]struct{}),
		queues: make(map[DirectedTradingPair]lib.IteratorI),
	}
	defer func() {
		if err != nil {
			f.close()
		}
	}()
	for _, pair := range pairs {
		if _, loaded := f.queues[pair]; loaded {
			continue
		}
		it, e := s.store.Iterator(PriceIndexPrefix(pair))
		if e != nil {
			return nil, e
		}
		f.queues[pair] = it
	}
	for _, pair := range pairs {
		p, e := f.next(pair)
		if e != nil {
			return nil, e
		}
		if p == nil {
			return nil, ErrInsufficientLiquidity(pair)
		}
		f.positions = append(f.positions, p)
	}
	return f, nil
}

// next() pops the best position of the edge that is not already in the frontier
func (f *frontier) next(pair DirectedTradingPair) (*Position, lib.ErrorI) {
	it := f.queues[pair]
	for ; it.Valid(); it.Next() {
		id, err := idFromPriceKey(it.Key())
		if err != nil {
			return nil, err
		}
		if _, used := f.used[id]; used {
			continue
		}
		it.Next()
		p, err := f.sm.GetPosition(id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, ErrPositionNotFound(id)
		}
		f.used[id] = struct{}{}
		return p, nil
	}
	return nil, nil
}

// close() releases the price index iterators of the edges
func (f *frontier) close() {
	for _, it := range f.queues {
		it.Close()
	}
}

// fill() repeatedly fills the frontier until the input is consumed, the spill price is crossed or liquidity runs out
func (f *frontier) fill(input Value, spill *fixpoint.U128x128) lib.ErrorI {
	remaining, filledOnce := input.Amount, false
	for remaining != 0 {
		constraint, err := f.senseCapacityConstraint(Value{Amount: remaining, AssetId: input.AssetId})
		if err != nil {
			return err
		}
		var tx *frontierTx
		if constraint >= 0 {
			tx, err = f.fillConstrained(constraint)
		} else {
			tx, err = f.fillUnconstrained(Value{Amount: remaining, AssetId: input.AssetId})
		}
		if err != nil {
			return err
		}
		// only apply the fill while it's priced at or below the next best route
		if spill != nil && filledOnce {
			price, ok := tx.price()
			if !ok || price.Cmp(*spill) > 0 {
				f.sm.log.Debugf("Fill price exceeded the spill price %s, stopping", spill)
				break
			}
		}
		// rounding up the backward fill may ask for more than what's left
		if tx.trace[0] > remaining {
			break
		}
		f.apply(tx)
		filledOnce = true
		remaining -= tx.trace[0]
		// swap out exhausted positions for the next best ones
		more, e := f.replaceEmptyPositions()
		if e != nil {
			return e
		}
		if !more || constraint < 0 {
			break
		}
	}
	return nil
}

// senseCapacityConstraint() runs a trial fill and returns the index of the last hop that can't absorb its input, or -1
func (f *frontier) senseCapacityConstraint(input Value) (int, lib.ErrorI) {
	constraint, current := -1, input
	for i, p := range f.positions {
		if !p.Phi.MatchesInput(current.AssetId) {
			return -1, ErrAssetMismatch(current.AssetId, p.Phi.Pair)
		}
		unfilled, _, output, err := p.Phi.Fill(current, p.Reserves)
		if err != nil {
			return -1, ErrExecutionOverflow(p.Id())
		}
		if unfilled.Amount > 0 {
			constraint = i
		}
		current = output
	}
	return constraint, nil
}

// fillUnconstrained() fills every hop forward from the full input
func (f *frontier) fillUnconstrained(input Value) (*frontierTx, lib.ErrorI) {
	tx := f.newTx()
	tx.trace[0] = input.Amount
	return tx, f.fillForward(tx, 0, input)
}

// fillConstrained() exactly drains the constraining position, working backward for the input and forward for the output
func (f *frontier) fillConstrained(constraint int) (*frontierTx, lib.ErrorI) {
	tx := f.newTx()
	end := f.pairs[constraint].End
	drained, _ := f.positions[constraint].ReservesFor(end)
	exact := Value{Amount: drained, AssetId: end}
	if err := f.fillBackward(tx, constraint, exact); err != nil {
		return nil, err
	}
	return tx, f.fillForward(tx, constraint+1, exact)
}

// fillForward() sells the value into every hop starting at the index
func (f *frontier) fillForward(tx *frontierTx, from int, input Value) lib.ErrorI {
	current := input
	for i := from; i < len(f.positions); i++ {
		p := f.positions[i]
		_, reserves, output, err := p.Phi.Fill(current, p.Reserves)
		if err != nil {
			return ErrExecutionOverflow(p.Id())
		}
		tx.reserves[i], tx.trace[i+1] = reserves, output.Amount
		current = output
	}
	return nil
}

// fillBackward() computes the input each hop requires to produce the output of the next, down to the route input
func (f *frontier) fillBackward(tx *frontierTx, from int, output Value) lib.ErrorI {
	current := output
	for i := from; i >= 0; i-- {
		p := f.positions[i]
		tx.trace[i+1] = current.Amount
		reserves, input, ok, err := p.Phi.FillOutput(p.Reserves, current)
		if err != nil || !ok {
			return ErrExecutionOverflow(p.Id())
		}
		tx.reserves[i] = reserves
		current = input
	}
	tx.trace[0] = current.Amount
	return nil
}

// apply() commits the tentative fill to the frontier positions and records its trace
func (f *frontier) apply(tx *frontierTx) {
	trace := make([]Value, 0, len(tx.trace))
	trace = append(trace, Value{Amount: tx.trace[0], AssetId: f.pairs[0].Start})
	for i, reserves := range tx.reserves {
		f.positions[i].Reserves = reserves
		trace = append(trace, Value{Amount: tx.trace[i+1], AssetId: f.pairs[i].End})
	}
	f.traces = append(f.traces, trace)
}

// replaceEmptyPositions() persists the positions that ran out of output reserves and loads the next best ones
// returns false if an edge has no liquidity left
func (f *frontier) replaceEmptyPositions() (bool, lib.ErrorI) {
	for i, pair := range f.pairs {
		if left, _ := f.positions[i].ReservesFor(pair.End); left != 0 {
			continue
		}
		if err := f.sm.positionExecution(f.positions[i]); err != nil {
			return false, err
		}
		p, err := f.next(pair)
		if err != nil {
			return false, err
		}
		if p == nil {
			f.positions[i] = nil
			return false, nil
		}
		f.positions[i] = p
	}
	return true, nil
}

// save() persists the positions remaining in the frontier
func (f *frontier) save() lib.ErrorI {
	for _, p := range f.positions {
		if p == nil {
			continue
		}
		if err := f.sm.positionExecution(p); err != nil {
			return err
		}
	}
	return nil
}

func (f *frontier) newTx() *frontierTx {
	return &frontierTx{reserves: make([]Reserves, len(f.positions)), trace: make([]uint64, len(f.pairs)+1)}
}

// isExecutionOverflow() extracts the position that overflowed during a fill
func isExecutionOverflow(err error) (PositionId, bool) {
	var overflow *ExecutionOverflowError
	if errors.As(err, &overflow) {
		return overflow.Position, true
	}
	return PositionId{}, false
}
