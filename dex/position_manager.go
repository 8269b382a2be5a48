package dex

import (
	"github.com/canopy-network/batchdex/lib"
)

/* This file implements the position ledger: lifecycle transitions, the price index and the routable liquidity index */

// GetPosition() retrieves a position by id, returning nil if it doesn't exist
func (s *StateMachine) GetPosition(id PositionId) (*Position, lib.ErrorI) {
	p := new(Position)
	found, err := s.getJSON(KeyForPosition(id), p)
	if err != nil || !found {
		return nil, err
	}
	return p, nil
}

// OpenPosition() validates and opens a new position, crediting its reserves to the value circuit breaker
func (s *StateMachine) OpenPosition(p *Position) (id PositionId, err lib.ErrorI) {
	// stateless validation
	if err = p.Check(); err != nil {
		return
	}
	// ensure the content derived id is unused
	id = p.Id()
	existing, err := s.GetPosition(id)
	if err != nil {
		return
	}
	if existing != nil {
		return id, ErrPositionAlreadyExists(id)
	}
	// the reserves now belong to the dex
	if err = s.vcbCreditAll(p.ReserveValues()...); err != nil {
		return
	}
	if err = s.putPosition(nil, p); err != nil {
		return
	}
	if err = s.EventPositionOpen(id, p); err != nil {
		return
	}
	if err = s.markNewPosition(p.Phi.Pair); err != nil {
		return
	}
	s.Metrics.IncPositionsOpened()
	s.log.Debugf("Opened position %s on %s with reserves %d/%d", id, p.Phi.Pair, p.Reserves.R1, p.Reserves.R2)
	return id, nil
}

// QueueClosePosition() schedules an opened position to close at the end of the block
func (s *StateMachine) QueueClosePosition(id PositionId) lib.ErrorI {
	p, err := s.GetPosition(id)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrPositionNotFound(id)
	}
	return s.Set(KeyForCloseQueue(id), id.Bytes())
}

// CloseQueuedPositions() closes every position queued this block and empties the queue
func (s *StateMachine) CloseQueuedPositions() lib.ErrorI {
	var ids []PositionId
	if err := s.IterateAndExecute(CloseQueuePrefix(), func(k, _ []byte) lib.ErrorI {
		id, err := idFromCloseQueueKey(k)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	}); err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.ClosePositionById(id); err != nil {
			return err
		}
		if err := s.Delete(KeyForCloseQueue(id)); err != nil {
			return err
		}
	}
	return nil
}

// ClosePositionById() immediately closes an opened position, closing any other state is a no-op
func (s *StateMachine) ClosePositionById(id PositionId) lib.ErrorI { return s.closePosition(id, false) }

func (s *StateMachine) closePosition(id PositionId, evicted bool) lib.ErrorI {
	prev, err := s.GetPosition(id)
	if err != nil {
		return err
	}
	if prev == nil {
		return ErrPositionNotFound(id)
	}
	if prev.State.Kind != PositionOpened {
		return nil
	}
	p := *prev
	p.State = PositionState{Kind: PositionClosed}
	if err = s.putPosition(prev, &p); err != nil {
		return err
	}
	s.Metrics.IncPositionsClosed()
	s.log.Debugf("Closed position %s", id)
	return s.EventPositionClose(id, evicted)
}

// WithdrawPosition() releases the reserves of a closed position to its owner
// the first withdrawal expects sequence 0 and every later one expects the previous sequence plus one
func (s *StateMachine) WithdrawPosition(id PositionId, expectedSequence uint64) ([]Value, lib.ErrorI) {
	prev, err := s.GetPosition(id)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, ErrPositionNotFound(id)
	}
	switch prev.State.Kind {
	case PositionClosed:
		if expectedSequence != 0 {
			return nil, ErrInvalidSequence(0, expectedSequence)
		}
	case PositionWithdrawn:
		if expectedSequence != prev.State.Sequence+1 {
			return nil, ErrInvalidSequence(prev.State.Sequence+1, expectedSequence)
		}
	default:
		return nil, ErrInvalidPositionState(id, prev.State)
	}
	// the reserves leave the dex
	released := prev.ReserveValues()
	if err = s.vcbDebitAll(released...); err != nil {
		return nil, err
	}
	p := *prev
	p.Reserves = Reserves{}
	p.State = PositionState{Kind: PositionWithdrawn, Sequence: expectedSequence}
	if err = s.putPosition(prev, &p); err != nil {
		return nil, err
	}
	return released, s.EventPositionWithdraw(id, expectedSequence, released)
}

// ClaimPositionReward() finalizes a withdrawn position, releasing anything it still holds
func (s *StateMachine) ClaimPositionReward(id PositionId) ([]Value, lib.ErrorI) {
	prev, err := s.GetPosition(id)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, ErrPositionNotFound(id)
	}
	if prev.State.Kind != PositionWithdrawn {
		return nil, ErrInvalidPositionState(id, prev.State)
	}
	released := prev.ReserveValues()
	if err = s.vcbDebitAll(released...); err != nil {
		return nil, err
	}
	p := *prev
	p.Reserves = Reserves{}
	p.State = PositionState{Kind: PositionClaimed, Sequence: prev.State.Sequence + 1}
	return released, s.putPosition(prev, &p)
}

// positionExecution() persists a position after the router traded against it, recording its price for the candlesticks
func (s *StateMachine) positionExecution(p *Position) lib.ErrorI {
	id := p.Id()
	prev, err := s.GetPosition(id)
	if err != nil {
		return err
	}
	if prev == nil {
		return ErrPositionNotFound(id)
	}
	if err = s.recordPositionExecution(prev, p); err != nil {
		return err
	}
	if prev.Reserves != p.Reserves {
		if err = s.EventPositionExecution(id, prev.Reserves, p.Reserves); err != nil {
			return err
		}
	}
	return s.putPosition(prev, p)
}

// putPosition() writes the position and keeps the price and liquidity indices consistent with it
func (s *StateMachine) putPosition(prev, p *Position) lib.ErrorI {
	id := p.Id()
	// a filled close-on-fill position closes in the same execution that drained it
	if prev != nil && p.CloseOnFill && p.State.Kind == PositionOpened && p.Reserves != prev.Reserves &&
		(p.Reserves.R1 == 0 || p.Reserves.R2 == 0) {
		p.State = PositionState{Kind: PositionClosed}
		s.Metrics.IncPositionsClosed()
		s.log.Debugf("Position %s was filled and auto-closed", id)
		if err := s.EventPositionClose(id, false); err != nil {
			return err
		}
	}
	if err := s.updatePriceIndex(id, prev, p); err != nil {
		return err
	}
	if err := s.updateLiquidityIndex(prev, p); err != nil {
		return err
	}
	return s.setJSON(KeyForPosition(id), p)
}

// priceIndexKeys() are the index entries of a position: one per direction it can be sold into
func priceIndexKeys(id PositionId, p *Position) (keys [][]byte, err lib.ErrorI) {
	if p == nil || p.State.Kind != PositionOpened {
		return nil, nil
	}
	pair, c := p.Phi.Pair, p.Phi.Component
	// selling asset 1 into the position requires asset 2 reserves
	if p.Reserves.R2 > 0 {
		price, e := c.EffectivePrice()
		if e != nil {
			return nil, e
		}
		keys = append(keys, KeyForPriceIndex(pair.Directed12(), price.Bytes(), id))
	}
	// selling asset 2 into the position requires asset 1 reserves
	if p.Reserves.R1 > 0 {
		price, e := c.Flip().EffectivePrice()
		if e != nil {
			return nil, e
		}
		keys = append(keys, KeyForPriceIndex(pair.Directed21(), price.Bytes(), id))
	}
	return
}

// updatePriceIndex() replaces the previous index entries of the position with the current ones
func (s *StateMachine) updatePriceIndex(id PositionId, prev, p *Position) lib.ErrorI {
	old, err := priceIndexKeys(id, prev)
	if err != nil {
		return err
	}
	for _, k := range old {
		if err = s.Delete(k); err != nil {
			return err
		}
	}
	current, err := priceIndexKeys(id, p)
	if err != nil {
		return err
	}
	for _, k := range current {
		if err = s.Set(k, id.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// routableLiquidity() is the output reserve an opened position offers in each direction of its pair
func routableLiquidity(p *Position) (r12, r21 uint64) {
	if p == nil || p.State.Kind != PositionOpened {
		return 0, 0
	}
	return p.Reserves.R2, p.Reserves.R1
}

// updateLiquidityIndex() applies the change of routable liquidity of the position to both directions of its pair
func (s *StateMachine) updateLiquidityIndex(prev, p *Position) lib.ErrorI {
	old12, old21 := routableLiquidity(prev)
	new12, new21 := routableLiquidity(p)
	pair := p.Phi.Pair
	if err := s.adjustRoutableLiquidity(pair.Directed12(), old12, new12); err != nil {
		return err
	}
	return s.adjustRoutableLiquidity(pair.Directed21(), old21, new21)
}

// adjustRoutableLiquidity() moves the aggregate liquidity of a directed pair by after - before
func (s *StateMachine) adjustRoutableLiquidity(d DirectedTradingPair, before, after uint64) lib.ErrorI {
	if before == after {
		return nil
	}
	current, err := s.GetRoutableLiquidity(d)
	if err != nil {
		return err
	}
	if before > current {
		return lib.ErrUnderflow()
	}
	next := current - before
	if next+after < next {
		return lib.ErrOverflow()
	}
	next += after
	// re-key the ordered entry
	if current != 0 {
		if err = s.Delete(KeyForLiquidityIndex(d, current)); err != nil {
			return err
		}
	}
	if next == 0 {
		return s.Delete(KeyForLiquidityLookup(d))
	}
	if err = s.Set(KeyForLiquidityIndex(d, next), d.Bytes()); err != nil {
		return err
	}
	return s.Set(KeyForLiquidityLookup(d), lib.FormatUint64(next))
}

// GetRoutableLiquidity() is the sum of the output reserves of the opened positions of a directed pair
func (s *StateMachine) GetRoutableLiquidity(d DirectedTradingPair) (uint64, lib.ErrorI) {
	bz, err := s.Get(KeyForLiquidityLookup(d))
	if err != nil {
		return 0, err
	}
	return lib.ParseUint64(bz), nil
}

// positionsByPrice() lists the ids of the opened positions selling into the directed pair, best price first
func (s *StateMachine) positionsByPrice(d DirectedTradingPair) (ids []PositionId, err lib.ErrorI) {
	err = s.IterateAndExecute(PriceIndexPrefix(d), func(k, _ []byte) lib.ErrorI {
		id, e := idFromPriceKey(k)
		if e != nil {
			return e
		}
		ids = append(ids, id)
		return nil
	})
	return
}

// bestPosition() is the best priced opened position of the directed pair that is not excluded
// the price index is read only up to the first id that is not excluded
func (s *StateMachine) bestPosition(d DirectedTradingPair, exclude map[PositionId]struct{}) (*Position, lib.ErrorI) {
	it, err := s.store.Iterator(PriceIndexPrefix(d))
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		id, e := idFromPriceKey(it.Key())
		if e != nil {
			return nil, e
		}
		if _, skip := exclude[id]; skip {
			continue
		}
		return s.GetPosition(id)
	}
	return nil, nil
}

// liquidityRankedEnds() lists the assets reachable from start, most routable liquidity first
func (s *StateMachine) liquidityRankedEnds(start AssetId, limit int) (ends []AssetId, err lib.ErrorI) {
	it, err := s.store.Iterator(LiquidityIndexPrefix(start))
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for ; it.Valid() && len(ends) < limit; it.Next() {
		d, e := pairFromLiquidityKey(it.Key())
		if e != nil {
			return nil, e
		}
		ends = append(ends, d.End)
	}
	return
}
