package dex

import (
	"time"

	"github.com/canopy-network/batchdex/lib"
	"github.com/canopy-network/batchdex/lib/codec"
	"github.com/canopy-network/batchdex/lib/crypto"
	"github.com/canopy-network/batchdex/lib/fixpoint"
	"golang.org/x/sync/errgroup"
)

/*
	Batch settlement nets every swap submitted against a pair during a block and executes the net flow once

	All swappers of a pair in a block receive the same clearing price: the aggregate input of each side is
	routed through the position graph, and the resulting output data lets each swapper claim a pro rata
	share of the aggregate output and of the unfilled input
*/

// SwapFlow is the aggregate input of a pair's swaps in the current block
type SwapFlow struct {
	Delta1 uint64 `json:"delta1"` // asset 1 sold for asset 2
	Delta2 uint64 `json:"delta2"` // asset 2 sold for asset 1
}

// SctPosition locates the batch in the state commitment tree: (epoch, block within epoch, commitment within block)
type SctPosition struct {
	Epoch      uint64 `json:"epoch"`
	Block      uint64 `json:"block"`
	Commitment uint64 `json:"commitment"`
}

// BatchSwapOutputData is the result of settling one pair at one height
type BatchSwapOutputData struct {
	Height              uint64      `json:"height"`
	TradingPair         TradingPair `json:"tradingPair"`
	Delta1              uint64      `json:"delta1"`    // total asset 1 input
	Delta2              uint64      `json:"delta2"`    // total asset 2 input
	Lambda1             uint64      `json:"lambda1"`   // asset 1 output of the 2->1 execution
	Lambda2             uint64      `json:"lambda2"`   // asset 2 output of the 1->2 execution
	Unfilled1           uint64      `json:"unfilled1"` // asset 1 input returned unfilled
	Unfilled2           uint64      `json:"unfilled2"` // asset 2 input returned unfilled
	EpochStartingHeight uint64      `json:"epochStartingHeight"`
	SctPositionPrefix   SctPosition `json:"sctPositionPrefix"`
}

// ProRataOutputs() computes a swapper's share of the batch from its inputs
//
//	lambda_2_i = (delta_1_i / delta_1) * lambda_2   + (delta_2_i / delta_2) * unfilled_2
//	lambda_1_i = (delta_1_i / delta_1) * unfilled_1 + (delta_2_i / delta_2) * lambda_1
//
// every share rounds down and a zero aggregate yields a zero share
func (o *BatchSwapOutputData) ProRataOutputs(delta1i, delta2i uint64) (lambda1i, lambda2i uint64) {
	lambda1i = proRata(delta1i, o.Delta1, o.Unfilled1) + proRata(delta2i, o.Delta2, o.Lambda1)
	lambda2i = proRata(delta1i, o.Delta1, o.Lambda2) + proRata(delta2i, o.Delta2, o.Unfilled2)
	return
}

// proRata() is floor(part * amount / total), or zero if the share can't be computed
func proRata(part, total, amount uint64) uint64 {
	if part == 0 || total == 0 || amount == 0 {
		return 0
	}
	scaled, err := fixpoint.FromUint64(part).Mul(fixpoint.FromUint64(amount))
	if err != nil {
		return 0
	}
	share, err := scaled.Div(fixpoint.FromUint64(total))
	if err != nil {
		return 0
	}
	out, err := share.RoundDown().Uint64()
	if err != nil {
		return 0
	}
	return out
}

// Bytes() is the canonical encoding of the output data
func (o *BatchSwapOutputData) Bytes() []byte {
	return codec.NewEncoder().
		Uint64(1, o.Height).
		Bytes(2, o.TradingPair.Bytes()).
		Uint64(3, o.Delta1).
		Uint64(4, o.Delta2).
		Uint64(5, o.Lambda1).
		Uint64(6, o.Lambda2).
		Uint64(7, o.Unfilled1).
		Uint64(8, o.Unfilled2).
		Uint64(9, o.EpochStartingHeight).
		Message(10, codec.NewEncoder().
			Uint64(1, o.SctPositionPrefix.Epoch).
			Uint64(2, o.SctPositionPrefix.Block).
			Uint64(3, o.SctPositionPrefix.Commitment)).
		Encode()
}

// Commitment() binds the output data, it's the public input claim proofs are made against
func (o *BatchSwapOutputData) Commitment() []byte {
	return crypto.HashWithDomain(crypto.DomainOutputData, o.Bytes())
}

// pairFlow is a pair with swap flow in the current block
type pairFlow struct {
	pair TradingPair
	flow SwapFlow
}

// settlement is the outcome of settling a single pair, before it's written to the ledger
type settlement struct {
	output *BatchSwapOutputData
	exec12 *SwapExecution
	exec21 *SwapExecution
}

// SettleBatches() settles every pair with swap flow this block in canonical pair order
// returns the settled pairs
func (s *StateMachine) SettleBatches(params *Params) (settled []TradingPair, err lib.ErrorI) {
	start := time.Now()
	flows, err := s.swapFlows()
	if err != nil || len(flows) == 0 {
		return nil, err
	}
	var results []*settlement
	// pairs only touch their own positions when routes are single hop
	if params.MaxHops == 1 && s.Config.Parallel {
		results, err = s.settleParallel(params, flows)
	} else {
		results, err = s.settleSequential(params, flows)
	}
	if err != nil {
		return nil, err
	}
	// write the results in canonical pair order
	for i, result := range results {
		if err = s.setOutputData(result); err != nil {
			return nil, err
		}
		if err = s.Delete(KeyForSwapFlow(flows[i].pair)); err != nil {
			return nil, err
		}
		settled = append(settled, flows[i].pair)
	}
	s.Metrics.ObserveBatch(time.Since(start))
	s.log.Infof("Settled %d batches at height %d in %s", len(settled), s.height, time.Since(start))
	return settled, nil
}

// settleSequential() settles the pairs one after another against the live ledger
func (s *StateMachine) settleSequential(params *Params, flows []pairFlow) (results []*settlement, err lib.ErrorI) {
	for _, f := range flows {
		result, e := s.settlePair(params, f)
		if e != nil {
			return nil, e
		}
		results = append(results, result)
	}
	return
}

// settleParallel() settles every pair on its own fork of the ledger and merges the forks in canonical pair order
func (s *StateMachine) settleParallel(params *Params, flows []pairFlow) ([]*settlement, lib.ErrorI) {
	results := make([]*settlement, len(flows))
	txns := make([]lib.StoreTxnI, len(flows))
	forks := make([]*StateMachine, len(flows))
	g := new(errgroup.Group)
	for i, f := range flows {
		fork, txn := s.fork()
		forks[i], txns[i] = fork, txn
		g.Go(func() error {
			result, err := fork.settlePair(params, f)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, txn := range txns {
			txn.Discard()
		}
		if e, ok := err.(lib.ErrorI); ok {
			return nil, e
		}
		return nil, lib.ErrPanic()
	}
	for i, txn := range txns {
		if err := txn.Write(); err != nil {
			return nil, err
		}
		if err := s.events.Merge(forks[i].events); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// settlePair() routes both sides of the pair's flow, 1->2 first, sharing one execution budget
func (s *StateMachine) settlePair(params *Params, f pairFlow) (*settlement, lib.ErrorI) {
	pair := f.pair
	routing := params.RoutingParams().WithExtraCandidates(pair.Asset1, pair.Asset2)
	breaker := NewExecutionCircuitBreaker(params.MaxExecutionBudget)
	exec12, err := s.RouteAndFill(pair.Asset1, pair.Asset2, f.flow.Delta1, routing, breaker)
	if err != nil {
		return nil, err
	}
	exec21, err := s.RouteAndFill(pair.Asset2, pair.Asset1, f.flow.Delta2, routing, breaker)
	if err != nil {
		return nil, err
	}
	output := &BatchSwapOutputData{
		Height:              s.height,
		TradingPair:         pair,
		Delta1:              f.flow.Delta1,
		Delta2:              f.flow.Delta2,
		Unfilled1:           f.flow.Delta1,
		Unfilled2:           f.flow.Delta2,
		EpochStartingHeight: s.epochStartHeight,
		SctPositionPrefix:   SctPosition{Epoch: s.epochIndex, Block: s.height - s.epochStartHeight},
	}
	if exec12 != nil {
		output.Lambda2, output.Unfilled1 = exec12.Output.Amount, f.flow.Delta1-exec12.Input.Amount
	}
	if exec21 != nil {
		output.Lambda1, output.Unfilled2 = exec21.Output.Amount, f.flow.Delta2-exec21.Input.Amount
	}
	s.log.Debugf("Settled %s: delta %d/%d, lambda %d/%d, unfilled %d/%d", pair,
		output.Delta1, output.Delta2, output.Lambda1, output.Lambda2, output.Unfilled1, output.Unfilled2)
	return &settlement{output: output, exec12: exec12, exec21: exec21}, nil
}

// setOutputData() releases the batch outputs from the value circuit breaker and records the output data and executions
func (s *StateMachine) setOutputData(result *settlement) lib.ErrorI {
	o := result.output
	// every input was credited on submission, so the unfilled amounts leave the dex as well
	if err := s.vcbDebitAll(
		Value{Amount: o.Unfilled1 + o.Lambda1, AssetId: o.TradingPair.Asset1},
		Value{Amount: o.Unfilled2 + o.Lambda2, AssetId: o.TradingPair.Asset2},
	); err != nil {
		return err
	}
	if err := s.setJSON(KeyForOutputData(o.Height, o.TradingPair), o); err != nil {
		return err
	}
	if err := s.EventBatchSwap(o); err != nil {
		return err
	}
	for _, e := range []struct {
		pair DirectedTradingPair
		exec *SwapExecution
	}{
		{o.TradingPair.Directed12(), result.exec12},
		{o.TradingPair.Directed21(), result.exec21},
	} {
		if e.exec == nil {
			continue
		}
		if err := s.setJSON(KeyForSwapExecution(o.Height, e.pair), e.exec); err != nil {
			return err
		}
		if err := s.recordSwapExecution(e.pair, e.exec); err != nil {
			return err
		}
	}
	return nil
}

// swapFlows() lists the pairs with swap flow this block
// every key has the same length so the store order is the canonical pair order
func (s *StateMachine) swapFlows() (flows []pairFlow, err lib.ErrorI) {
	err = s.IterateAndExecute(SwapFlowPrefix(), func(k, v []byte) lib.ErrorI {
		f := pairFlow{}
		if e := lib.UnmarshalJSON(v, &f.flow); e != nil {
			return e
		}
		pair, e := pairFromKey(k)
		if e != nil {
			return e
		}
		f.pair = pair
		flows = append(flows, f)
		return nil
	})
	return
}

// GetSwapFlow() is the swap flow of the pair accumulated in the current block
func (s *StateMachine) GetSwapFlow(pair TradingPair) (flow SwapFlow, err lib.ErrorI) {
	_, err = s.getJSON(KeyForSwapFlow(pair), &flow)
	return
}
