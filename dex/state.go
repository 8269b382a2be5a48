package dex

import (
	"runtime/debug"
	"time"

	"github.com/canopy-network/batchdex/lib"
	"github.com/canopy-network/batchdex/store"
)

// StateMachine is the settlement engine of the dex
// it applies blocks of actions to the ledger, settles the batched swaps of every trading pair at the end of each block,
// and exposes the read-only query surface over the resulting state
type StateMachine struct {
	store lib.RWStoreI

	height           uint64
	epochIndex       uint64
	epochStartHeight uint64
	pool             ShieldedPool
	verifier         ProofVerifier
	events           *lib.EventsTracker
	Config           lib.Config
	Metrics          *lib.Metrics
	log              lib.LoggerI
}

// New() creates a new instance of a StateMachine
func New(c lib.Config, db lib.StoreI, metrics *lib.Metrics, log lib.LoggerI) (*StateMachine, lib.ErrorI) {
	verifier, err := NewProofVerifier(c.DexConfig.ProofVerifier)
	if err != nil {
		return nil, err
	}
	sm := &StateMachine{
		pool:     StoreShieldedPool{},
		verifier: verifier,
		events:   new(lib.EventsTracker),
		Config:   c,
		Metrics:  metrics,
		log:      log.WithModule("dex"),
	}
	return sm, sm.Initialize(db)
}

// Initialize() attaches the store and writes the genesis params if the ledger is empty
func (s *StateMachine) Initialize(db lib.StoreI) lib.ErrorI {
	s.store, s.height = db, db.Version()
	bz, err := s.Get(KeyForParams())
	if err != nil || bz != nil {
		return err
	}
	// the genesis params are persisted with the first block
	params, err := NewParamsFromConfig(s.Config.DexConfig)
	if err != nil {
		return err
	}
	s.log.Infof("Initializing dex from genesis config with max hops %d", params.MaxHops)
	return s.SetParams(params)
}

// WithShieldedPool() overrides the nullifier set and note commitment collaborator
func (s *StateMachine) WithShieldedPool(p ShieldedPool) *StateMachine {
	s.pool = p
	return s
}

// WithProofVerifier() overrides the proof verification collaborator
func (s *StateMachine) WithProofVerifier(v ProofVerifier) *StateMachine {
	s.verifier = v
	return s
}

// ApplyBlock processes a given block, updating the state machine's state accordingly
// The function:
// - executes `BeginBlock`
// - applies every action in its own nested transaction, rejecting failed actions without side effects
// - executes `EndBlock`, settling every batch and running arbitrage
// - persists the block and its events and increments the store version
// any error other than a rejected action discards the whole block
func (s *StateMachine) ApplyBlock(b *Block) (results []*ActionResult, events lib.Events, err lib.ErrorI) {
	start := time.Now()
	if err = b.Check(); err != nil {
		return nil, nil, err
	}
	// only the root store may apply blocks
	db, ok := s.store.(lib.StoreI)
	if !ok {
		return nil, nil, ErrWrongStoreType()
	}
	if expected := db.Version() + 1; b.Height != expected {
		return nil, nil, ErrWrongBlockHeight(expected, b.Height)
	}
	s.events.Reset()
	// a discarded block leaves the height untouched and emits nothing
	defer func(height uint64) {
		if err != nil {
			s.height = height
			s.events.Reset()
		}
	}(s.height)
	// wrap the store so a failure leaves no trace
	txn, restore := s.TxnWrap()
	defer restore()
	// catch incase there's a panic
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf(string(debug.Stack()))
			txn.Discard()
			results, events, err = nil, nil, lib.ErrPanic()
		}
	}()
	// automated execution at the 'beginning of a block'
	s.events.Refer(lib.EventStageBeginBlock)
	if err = s.BeginBlock(b); err != nil {
		txn.Discard()
		return nil, nil, err
	}
	// apply all actions in the block
	if results, err = s.ApplyActions(b); err != nil {
		txn.Discard()
		return nil, nil, err
	}
	// automated execution at the 'ending of a block'
	s.events.Refer(lib.EventStageEndBlock)
	if err = s.EndBlock(); err != nil {
		txn.Discard()
		return nil, nil, err
	}
	// the events are persisted with the block they describe
	events = s.events.Reset()
	if err = s.setJSON(KeyForEvents(b.Height), events); err != nil {
		txn.Discard()
		return nil, nil, err
	}
	// flush the block into the store and persist it
	if err = txn.Write(); err != nil {
		return nil, nil, err
	}
	restore()
	if _, err = db.Commit(); err != nil {
		return nil, nil, err
	}
	s.Metrics.UpdateBlockMetrics(b.Height, time.Since(start))
	s.log.Infof("Applied block %d with %d actions and %d events in %s", b.Height, len(b.Actions), len(events), time.Since(start))
	return results, events, nil
}

// ApplyActions() applies every action of the block in order
func (s *StateMachine) ApplyActions(b *Block) (results []*ActionResult, err lib.ErrorI) {
	for i, action := range b.Actions {
		result := s.ApplyAction(i, action)
		if !result.Success {
			s.Metrics.IncActionRejected(result.Kind)
			s.log.Warnf("Rejected %s action %d at height %d: %s", result.Kind, i, b.Height, result.Error)
			if s.Config.StrictActions {
				return nil, ErrActionRejected(i, result.Error)
			}
		}
		results = append(results, result)
	}
	return
}

// ApplyAction() applies a single action in a nested transaction that is discarded if the action fails
func (s *StateMachine) ApplyAction(index int, a *Action) (result *ActionResult) {
	result = &ActionResult{Index: index}
	if a == nil {
		result.Error = ErrUnknownAction("").Error()
		return
	}
	result.Kind = a.Kind()
	s.events.Refer(lib.EventActionReference(index))
	// a rejected action emits nothing
	mark := s.events.Len()
	txn, restore := s.TxnWrap()
	defer restore()
	if err := s.handleAction(a, result); err != nil {
		txn.Discard()
		s.events.Truncate(mark)
		result.Error = err.Error()
		return
	}
	if err := txn.Write(); err != nil {
		s.events.Truncate(mark)
		result.Error = err.Error()
		return
	}
	result.Success = true
	return
}

// handleAction() routes the action to its handler
func (s *StateMachine) handleAction(a *Action, result *ActionResult) lib.ErrorI {
	params, err := s.GetParams()
	if err != nil {
		return err
	}
	if !params.Enabled {
		return ErrDexDisabled()
	}
	switch result.Kind {
	case ActionPositionOpen:
		p := a.PositionOpen.Position
		id, e := s.OpenPosition(&p)
		if e != nil {
			return e
		}
		result.PositionId = &id
		return nil
	case ActionPositionClose:
		result.PositionId = &a.PositionClose.PositionId
		return s.QueueClosePosition(a.PositionClose.PositionId)
	case ActionPositionWithdraw:
		result.PositionId = &a.PositionWithdraw.PositionId
		released, e := s.WithdrawPosition(a.PositionWithdraw.PositionId, a.PositionWithdraw.Sequence)
		result.Released = released
		return e
	case ActionPositionRewardClaim:
		result.PositionId = &a.PositionRewardClaim.PositionId
		released, e := s.ClaimPositionReward(a.PositionRewardClaim.PositionId)
		result.Released = released
		return e
	case ActionSwap:
		commitment, e := s.HandleSwap(a.Swap)
		result.SwapCommitment = commitment
		return e
	case ActionSwapClaim:
		claim, e := s.HandleSwapClaim(a.SwapClaim)
		result.Claim = claim
		return e
	default:
		return ErrUnknownAction(result.Kind)
	}
}

// BeginBlock() records the height and epoch of the block being applied
func (s *StateMachine) BeginBlock(b *Block) lib.ErrorI {
	s.height, s.epochIndex, s.epochStartHeight = b.Height, b.EpochIndex, b.EpochStartHeight
	bz, err := lib.MarshalJSON(blockInfo{Height: b.Height, EpochIndex: b.EpochIndex, EpochStartHeight: b.EpochStartHeight})
	if err != nil {
		return err
	}
	// swap commitments are indexed within the block
	if err = s.Delete(KeyForSwapIndex()); err != nil {
		return err
	}
	return s.Set(KeyForBlockInfo(), bz)
}

// EndBlock() settles every batch, captures arbitrage, evicts excess positions, closes queued positions and finalizes the candlesticks
func (s *StateMachine) EndBlock() lib.ErrorI {
	params, err := s.GetParams()
	if err != nil {
		return err
	}
	// settle the swaps of every pair with flow this block
	settled, err := s.SettleBatches(params)
	if err != nil {
		return err
	}
	// capture residual arbitrage across the updated position graph
	if err = s.Arbitrage(params, settled); err != nil {
		return err
	}
	// keep every pair that gained positions under the position cap
	if err = s.EvictPositions(params); err != nil {
		return err
	}
	// close the positions that were queued during the block
	if err = s.CloseQueuedPositions(); err != nil {
		return err
	}
	// fold this block's price records into candlesticks
	return s.FinalizeCandlesticks()
}

// blockInfo is the height and epoch of the block being applied
type blockInfo struct {
	Height           uint64 `json:"height"`
	EpochIndex       uint64 `json:"epochIndex"`
	EpochStartHeight uint64 `json:"epochStartHeight"`
}

// TxnWrap() is an atomicity and consistency feature that enables easy rollback of changes by discarding the transaction if an error occurs
// the returned function restores the previous store and is safe to call more than once
func (s *StateMachine) TxnWrap() (lib.StoreTxnI, func()) {
	parent := s.store
	txn := store.NewTxn(parent)
	s.store = txn
	return txn, func() { s.store = parent }
}

// fork() creates a copy of the state machine that reads and writes through a nested transaction
// the fork captures its own events, merge them back with the transaction to keep them
func (s *StateMachine) fork() (*StateMachine, lib.StoreTxnI) {
	txn := store.NewTxn(s.store)
	c := *s
	c.store = txn
	c.events = &lib.EventsTracker{Reference: s.events.GetReference()}
	return &c, txn
}

// Set() upserts a key-value pair under a key
func (s *StateMachine) Set(k, v []byte) lib.ErrorI { return s.store.Set(k, v) }

// Get() retrieves a key-value pair under a key
// NOTE: returns (nil, nil) if no value is found for that key
func (s *StateMachine) Get(key []byte) ([]byte, lib.ErrorI) { return s.store.Get(key) }

// Delete() deletes a key-value pair under a key
func (s *StateMachine) Delete(key []byte) lib.ErrorI { return s.store.Delete(key) }

// IterateAndExecute() creates an iterator and executes a callback function for each key-value pair
func (s *StateMachine) IterateAndExecute(prefix []byte, callback func(key, value []byte) lib.ErrorI) lib.ErrorI {
	it, err := s.store.Iterator(prefix)
	if err != nil {
		return err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		if err = callback(it.Key(), it.Value()); err != nil {
			return err
		}
	}
	return nil
}

// getJSON() reads a json record, returning false if the key is empty
func (s *StateMachine) getJSON(key []byte, ptr any) (bool, lib.ErrorI) {
	bz, err := s.Get(key)
	if err != nil || bz == nil {
		return false, err
	}
	return true, lib.UnmarshalJSON(bz, ptr)
}

// setJSON() writes a json record
func (s *StateMachine) setJSON(key []byte, v any) lib.ErrorI {
	bz, err := lib.MarshalJSON(v)
	if err != nil {
		return err
	}
	return s.Set(key, bz)
}

func (s *StateMachine) Store() lib.RWStoreI { return s.store }
func (s *StateMachine) Height() uint64      { return s.height }
func (s *StateMachine) Log() lib.LoggerI    { return s.log }
