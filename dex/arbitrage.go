package dex

import (
	"slices"

	"github.com/canopy-network/batchdex/lib"
	"github.com/canopy-network/batchdex/lib/fixpoint"
)

// ArbExecution is the record of the arbitrage captured at a height
type ArbExecution struct {
	Height        uint64         `json:"height"`
	SwapExecution *SwapExecution `json:"swapExecution"`
}

// Arbitrage() routes a flash loan of the staking token around the position graph back to itself
// the cycle is committed only if it returns at least the minimum profit, and the surplus is captured by the protocol
func (s *StateMachine) Arbitrage(params *Params, settled []TradingPair) lib.ErrorI {
	token := params.StakingToken
	// only cycles that return more than they cost are worth executing
	limit := fixpoint.One()
	routing := RoutingParams{
		MaxHops:         params.MaxHops + 2,
		FixedCandidates: slices.Clone(params.FixedCandidates),
		PriceLimit:      &limit,
	}.WithExtraCandidates(recentlyAccessedAssets(settled)...)
	// simulate on a fork and only keep it if the cycle is profitable
	fork, txn := s.fork()
	breaker := NewExecutionCircuitBreaker(params.MaxExecutionBudget)
	exec, err := fork.RouteAndFill(token, token, MaxReserveAmount, routing, breaker)
	if err != nil {
		// a failed search only forgoes the arbitrage
		txn.Discard()
		s.log.Warnf("Arbitrage search failed at height %d: %s", s.height, err.Error())
		return nil
	}
	if exec == nil || exec.Output.Amount <= exec.Input.Amount {
		txn.Discard()
		s.log.Debugf("No arbitrage found at height %d", s.height)
		return nil
	}
	surplus := exec.Output.Amount - exec.Input.Amount
	if surplus < params.ArbMinProfit {
		txn.Discard()
		s.log.Debugf("Arbitrage surplus %d below the minimum profit %d", surplus, params.ArbMinProfit)
		return nil
	}
	if err = txn.Write(); err != nil {
		return err
	}
	if err = s.events.Merge(fork.events); err != nil {
		return err
	}
	// the positions lost the surplus, so does the dex
	if err = s.vcbDebit(Value{Amount: surplus, AssetId: token}); err != nil {
		return err
	}
	if err = s.creditProtocolBalance(Value{Amount: surplus, AssetId: token}); err != nil {
		return err
	}
	if err = s.setJSON(KeyForArbExecution(s.height), &ArbExecution{Height: s.height, SwapExecution: exec}); err != nil {
		return err
	}
	if err = s.EventArbExecution(Value{Amount: surplus, AssetId: token}, exec); err != nil {
		return err
	}
	s.Metrics.AddArbSurplus(surplus)
	s.log.Infof("Captured arbitrage surplus of %d at height %d over %d traces", surplus, s.height, len(exec.Traces))
	return nil
}

// recentlyAccessedAssets() are the assets of the pairs settled this block, in order, at most the dynamic candidate limit
func recentlyAccessedAssets(settled []TradingPair) (assets []AssetId) {
	for _, pair := range settled {
		for _, a := range []AssetId{pair.Asset1, pair.Asset2} {
			if !slices.Contains(assets, a) {
				assets = append(assets, a)
			}
		}
	}
	sortAssets(assets)
	if len(assets) > maxDynamicCandidates {
		assets = assets[:maxDynamicCandidates]
	}
	return
}

// GetProtocolBalance() is the value the protocol captured for an asset
func (s *StateMachine) GetProtocolBalance(asset AssetId) (uint64, lib.ErrorI) {
	bz, err := s.Get(KeyForProtocolBalance(asset))
	if err != nil {
		return 0, err
	}
	return lib.ParseUint64(bz), nil
}

// creditProtocolBalance() adds captured value to the protocol balance
func (s *StateMachine) creditProtocolBalance(v Value) lib.ErrorI {
	balance, err := s.GetProtocolBalance(v.AssetId)
	if err != nil {
		return err
	}
	if balance, err = addUint64(balance, v.Amount); err != nil {
		return err
	}
	return s.Set(KeyForProtocolBalance(v.AssetId), lib.FormatUint64(balance))
}
