package dex

import (
	"bytes"
	"slices"

	"github.com/canopy-network/batchdex/lib"
)

/*
	Eviction keeps the number of opened positions of a pair bounded

	Only pairs that gained a position during the block are inspected. For a pair over the cap by n positions,
	the n positions with the least inventory in each direction are closed, so a position survives only if
	it is among the deepest in both directions
*/

// markNewPosition() flags the pair for inspection at the end of the block
func (s *StateMachine) markNewPosition(pair TradingPair) lib.ErrorI {
	return s.Set(KeyForNewPositionPair(pair), []byte{1})
}

// EvictPositions() closes the excess positions of every pair that gained a position this block
func (s *StateMachine) EvictPositions(params *Params) lib.ErrorI {
	var pairs []TradingPair
	if err := s.IterateAndExecute(NewPositionPairPrefix(), func(k, _ []byte) lib.ErrorI {
		pair, err := pairFromKey(k)
		if err != nil {
			return err
		}
		pairs = append(pairs, pair)
		return nil
	}); err != nil {
		return err
	}
	for _, pair := range pairs {
		if err := s.Delete(KeyForNewPositionPair(pair)); err != nil {
			return err
		}
		if params.MaxPositionsPerPair == 0 {
			continue
		}
		if err := s.evictPair(pair, int(params.MaxPositionsPerPair)); err != nil {
			return err
		}
	}
	return nil
}

// evictPair() closes the lowest inventory positions of the pair in each direction until it is back under the cap
func (s *StateMachine) evictPair(pair TradingPair, limit int) lib.ErrorI {
	positions, err := s.PositionsByPair(pair, false)
	if err != nil {
		return err
	}
	overhead := len(positions) - limit
	if overhead <= 0 {
		return nil
	}
	var evicted []PositionId
	// the inventory of the 1->2 direction is the asset 2 reserve and vice versa
	for _, inventory := range []func(p *Position) uint64{
		func(p *Position) uint64 { return p.Reserves.R2 },
		func(p *Position) uint64 { return p.Reserves.R1 },
	} {
		slices.SortFunc(positions, func(a, b *Position) int {
			if x, y := inventory(a), inventory(b); x != y {
				if x < y {
					return -1
				}
				return 1
			}
			ia, ib := a.Id(), b.Id()
			return bytes.Compare(ia[:], ib[:])
		})
		for _, p := range positions[:overhead] {
			if id := p.Id(); !slices.Contains(evicted, id) {
				evicted = append(evicted, id)
			}
		}
	}
	for _, id := range evicted {
		if err = s.closePosition(id, true); err != nil {
			return err
		}
	}
	s.log.Infof("Evicted %d positions of %s over the limit of %d", len(evicted), pair, limit)
	return nil
}
