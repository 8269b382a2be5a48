package dex

import (
	"slices"

	"github.com/canopy-network/batchdex/lib"
	"github.com/canopy-network/batchdex/lib/fixpoint"
)

/*
	Path search is a layered best-first relaxation over the liquidity graph

	Each round extends every path found in the previous round by one hop, to every candidate asset:
	- the fixed candidates of the routing params, in order
	- the assets with the most routable liquidity from the end of the path
	- the destination
	An extension is priced with the best unused position on that edge, and the best path to each asset is kept
	The second best price into the destination is the spill price: the fill stops applying once the marginal
	price of the chosen path gets worse than the next best alternative, and routing searches again
*/

// pathEntry is a candidate path from the source, priced as the product of the effective prices of its hops
type pathEntry struct {
	end   AssetId                 // the asset the path ends at
	hops  []AssetId               // the assets after the source
	price fixpoint.U128x128       // the input required per unit of output along the path
	used  map[PositionId]struct{} // positions already priced into this path
}

// extend() creates a copy of the entry with one more hop
func (e *pathEntry) extend(next AssetId, price fixpoint.U128x128, id PositionId) *pathEntry {
	used := make(map[PositionId]struct{}, len(e.used)+1)
	for k := range e.used {
		used[k] = struct{}{}
	}
	used[id] = struct{}{}
	return &pathEntry{end: next, hops: append(slices.Clone(e.hops), next), price: price, used: used}
}

// visits() is true if the path already passed through the asset
func (e *pathEntry) visits(a AssetId) bool { return slices.Contains(e.hops, a) }

// pathCache holds the best path to each asset and the spill price into the destination
type pathCache struct {
	best  map[AssetId]*pathEntry
	spill *fixpoint.U128x128
}

// consider() keeps the entry if it's the best path to its end asset, returning true if it was kept
func (c *pathCache) consider(e *pathEntry, dst AssetId) bool {
	current, exists := c.best[e.end]
	if exists && e.price.Cmp(current.price) >= 0 {
		// a worse path into the destination may still tighten the spill price
		if e.end == dst && (c.spill == nil || e.price.Cmp(*c.spill) < 0) {
			price := e.price
			c.spill = &price
		}
		return false
	}
	if exists && e.end == dst {
		price := current.price
		c.spill = &price
	}
	c.best[e.end] = e
	return true
}

// PathSearch() finds the best priced path from src to dst within the hop limit
// the returned path excludes src and is nil if dst is unreachable
func (s *StateMachine) PathSearch(src, dst AssetId, params RoutingParams) (path []AssetId, spill *fixpoint.U128x128, err lib.ErrorI) {
	cache := &pathCache{best: make(map[AssetId]*pathEntry)}
	frontier := []*pathEntry{{end: src, price: fixpoint.One(), used: map[PositionId]struct{}{}}}
	for hop := uint32(0); hop < params.MaxHops && len(frontier) != 0; hop++ {
		var next []*pathEntry
		for _, entry := range frontier {
			candidates, e := s.routingCandidates(entry.end, dst, params)
			if e != nil {
				return nil, nil, e
			}
			for _, c := range candidates {
				// never revisit an asset, except closing a cycle back to the source
				if c == entry.end || entry.visits(c) || (c == src && dst != src) {
					continue
				}
				extended, e := s.extendPath(entry, c)
				if e != nil {
					return nil, nil, e
				}
				if extended == nil || !cache.consider(extended, dst) || c == dst {
					continue
				}
				next = replaceEntry(next, extended)
			}
		}
		frontier = next
	}
	best, found := cache.best[dst]
	if !found || len(best.hops) == 0 {
		return nil, nil, nil
	}
	// a path that already prices at or above the limit is not worth filling
	if params.PriceLimit != nil && best.price.Cmp(*params.PriceLimit) >= 0 {
		s.log.Debugf("Best path %s->%s prices at %s, above the limit %s", src.String()[:8], dst.String()[:8], best.price, params.PriceLimit)
		return nil, nil, nil
	}
	return best.hops, cache.spill, nil
}

// extendPath() prices one more hop using the best position of the edge that the path hasn't used yet
// returns nil if the edge has no liquidity or the price overflows
func (s *StateMachine) extendPath(entry *pathEntry, next AssetId) (*pathEntry, lib.ErrorI) {
	edge := DirectedTradingPair{Start: entry.end, End: next}
	position, err := s.bestPosition(edge, entry.used)
	if err != nil || position == nil {
		return nil, err
	}
	hopPrice, err := position.PriceFrom(entry.end)
	if err != nil {
		return nil, err
	}
	price, err := entry.price.Mul(hopPrice)
	if err != nil {
		// a path this expensive is never the best one
		return nil, nil
	}
	return entry.extend(next, price, position.Id()), nil
}

// routingCandidates() lists, deduplicated and in order, the fixed candidates, the most liquid neighbors and the destination
func (s *StateMachine) routingCandidates(from, dst AssetId, params RoutingParams) ([]AssetId, lib.ErrorI) {
	candidates := slices.Clone(params.FixedCandidates)
	dynamic, err := s.liquidityRankedEnds(from, maxDynamicCandidates+len(params.FixedCandidates))
	if err != nil {
		return nil, err
	}
	added := 0
	for _, a := range dynamic {
		if added == maxDynamicCandidates {
			break
		}
		if !slices.Contains(candidates, a) {
			candidates = append(candidates, a)
			added++
		}
	}
	if !slices.Contains(candidates, dst) {
		candidates = append(candidates, dst)
	}
	return candidates, nil
}

// replaceEntry() keeps one frontier entry per end asset, the latest best one
func replaceEntry(entries []*pathEntry, e *pathEntry) []*pathEntry {
	for i, existing := range entries {
		if existing.end == e.end {
			entries[i] = e
			return entries
		}
	}
	return append(entries, e)
}
