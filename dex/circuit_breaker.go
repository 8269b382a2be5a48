package dex

import (
	"github.com/canopy-network/batchdex/lib"
)

/*
	The value circuit breaker tracks, per asset, the value held by the dex on behalf of its users

	Every inflow is credited: the reserves of an opened position and the input of a submitted swap
	Every outflow is debited: settlement outputs and unfilled inputs, withdrawn reserves, claimed rewards and arbitrage surplus

	A debit larger than the balance means the engine is about to release value it never received, so the debit
	fails and the enclosing action or block is discarded
*/

// GetVCBBalance() returns the value held by the dex for an asset
func (s *StateMachine) GetVCBBalance(asset AssetId) (uint64, lib.ErrorI) {
	bz, err := s.Get(KeyForVCB(asset))
	if err != nil {
		return 0, err
	}
	return lib.ParseUint64(bz), nil
}

// vcbCredit() records value entering the dex
func (s *StateMachine) vcbCredit(v Value) lib.ErrorI {
	if v.Amount == 0 {
		return nil
	}
	balance, err := s.GetVCBBalance(v.AssetId)
	if err != nil {
		return err
	}
	if balance+v.Amount < balance {
		return ErrCircuitBreakerOverflow(v.AssetId)
	}
	if err = s.setVCBBalance(v.AssetId, balance+v.Amount); err != nil {
		return err
	}
	return s.EventVCB(lib.EventTypeVCBCredit, v, balance+v.Amount)
}

// vcbDebit() records value leaving the dex, failing if the dex never received it
func (s *StateMachine) vcbDebit(v Value) lib.ErrorI {
	if v.Amount == 0 {
		return nil
	}
	balance, err := s.GetVCBBalance(v.AssetId)
	if err != nil {
		return err
	}
	if v.Amount > balance {
		s.log.Warnf("Value circuit breaker tripped for %s: balance %d, debit %d", v.AssetId, balance, v.Amount)
		return ErrCircuitBreakerExceeded(v.AssetId, balance, v.Amount)
	}
	if err = s.setVCBBalance(v.AssetId, balance-v.Amount); err != nil {
		return err
	}
	return s.EventVCB(lib.EventTypeVCBDebit, v, balance-v.Amount)
}

// vcbCreditAll() credits every value in order
func (s *StateMachine) vcbCreditAll(values ...Value) lib.ErrorI {
	for _, v := range values {
		if err := s.vcbCredit(v); err != nil {
			return err
		}
	}
	return nil
}

// vcbDebitAll() debits every value in order
func (s *StateMachine) vcbDebitAll(values ...Value) lib.ErrorI {
	for _, v := range values {
		if err := s.vcbDebit(v); err != nil {
			return err
		}
	}
	return nil
}

// setVCBBalance() writes the balance, deleting the key once it's empty
func (s *StateMachine) setVCBBalance(asset AssetId, balance uint64) lib.ErrorI {
	s.Metrics.SetVCBBalance(asset.String(), balance)
	if balance == 0 {
		return s.Delete(KeyForVCB(asset))
	}
	return s.Set(KeyForVCB(asset), lib.FormatUint64(balance))
}

// ExecutionCircuitBreaker bounds the number of routing iterations a batch or arbitrage may run
type ExecutionCircuitBreaker struct {
	max     uint32
	current uint32
}

// NewExecutionCircuitBreaker() creates a breaker allowing max executions
func NewExecutionCircuitBreaker(max uint32) *ExecutionCircuitBreaker {
	return &ExecutionCircuitBreaker{max: max}
}

// Exceeded() is true once the budget is spent
func (e *ExecutionCircuitBreaker) Exceeded() bool { return e.current >= e.max }

// Increment() spends one execution
func (e *ExecutionCircuitBreaker) Increment() { e.current++ }

// Remaining() is the budget left
func (e *ExecutionCircuitBreaker) Remaining() uint32 {
	if e.Exceeded() {
		return 0
	}
	return e.max - e.current
}
