package dex

import (
	"errors"

	"github.com/canopy-network/batchdex/lib"
)

// RouteAndFill() sells the input for the output asset along the best paths until the input is exhausted,
// no path is left, the price limit is reached or the execution budget runs out
// returns nil if nothing could be filled
func (s *StateMachine) RouteAndFill(src, dst AssetId, input uint64, params RoutingParams, breaker *ExecutionCircuitBreaker) (*SwapExecution, lib.ErrorI) {
	if input == 0 {
		return nil, nil
	}
	unfilled, output := input, uint64(0)
	var traces [][]Value
	for {
		// bound the work of a single batch
		if breaker.Exceeded() {
			s.log.Debugf("Execution budget exhausted routing %s->%s", src.String()[:8], dst.String()[:8])
			break
		}
		breaker.Increment()
		path, spill, err := s.PathSearch(src, dst, params)
		if err != nil {
			return nil, err
		}
		if len(path) == 0 {
			break
		}
		// the price limit is a strict upper bound on every fill after the first
		if params.PriceLimit != nil && (spill == nil || params.PriceLimit.Cmp(*spill) < 0) {
			spill = params.PriceLimit
		}
		delta := min(unfilled, uint64(MaxReserveAmount))
		exec, err := s.FillRoute(Value{Amount: delta, AssetId: src}, path, spill)
		if err != nil {
			// close a position whose arithmetic overflowed and route around it
			if id, ok := isExecutionOverflow(err); ok {
				s.log.Warnf("Closing position %s after an execution overflow", id)
				if err = s.ClosePositionById(id); err != nil {
					return nil, err
				}
				continue
			}
			if errors.Is(err, ErrInsufficientLiquidity(DirectedTradingPair{})) {
				s.log.Debugf("Route exhausted: %s", err.Error())
				break
			}
			return nil, err
		}
		output += exec.Output.Amount
		unfilled -= exec.Input.Amount
		traces = append(traces, exec.Traces...)
		s.log.Debugf("Filled %d of %d along %d hops, %d unfilled", exec.Input.Amount, delta, len(path), unfilled)
		// stop once done, stuck, or too expensive
		if unfilled == 0 || exec.Input.Amount == 0 || len(exec.Traces) == 0 {
			break
		}
		worst := exec.MaxPrice()
		if worst == nil {
			break
		}
		if params.PriceLimit != nil && worst.Cmp(*params.PriceLimit) >= 0 {
			s.log.Debugf("Execution price %s reached the price limit %s", worst, params.PriceLimit)
			break
		}
	}
	if len(traces) == 0 {
		return nil, nil
	}
	return &SwapExecution{
		Traces: traces,
		Input:  Value{Amount: input - unfilled, AssetId: src},
		Output: Value{Amount: output, AssetId: dst},
	}, nil
}
