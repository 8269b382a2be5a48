package dex

import (
	"bytes"
	"testing"

	"github.com/canopy-network/batchdex/lib"
	"github.com/canopy-network/batchdex/store"
	"github.com/stretchr/testify/require"
)

var (
	testAssetA = NewAssetId("gm")
	testAssetB = NewAssetId("gn")
	testAssetC = NewAssetId("penumbra")
)

func TestApplyBlock(t *testing.T) {
	tests := []struct {
		name          string
		detail        string
		block         *Block
		expectedCode  lib.ErrorCode
		expectedError bool
	}{
		{
			name:          "nil block",
			detail:        "a nil block is rejected before anything is applied",
			block:         nil,
			expectedCode:  lib.CodeNilBlock,
			expectedError: true,
		},
		{
			name:          "wrong height",
			detail:        "the block must be exactly one above the store version",
			block:         &Block{Height: 3},
			expectedCode:  lib.CodeWrongBlockHeight,
			expectedError: true,
		},
		{
			name:          "epoch after height",
			detail:        "the epoch can't start after the block",
			block:         &Block{Height: 1, EpochStartHeight: 2},
			expectedCode:  lib.CodeInvalidArgument,
			expectedError: true,
		},
		{
			name:   "empty block",
			detail: "an empty block only advances the version",
			block:  &Block{Height: 1},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sm := newTestStateMachine(t)
			results, events, err := sm.ApplyBlock(test.block)
			if test.expectedError {
				require.Error(t, err)
				require.Equal(t, test.expectedCode, err.Code())
				require.EqualValues(t, 0, sm.Store().(lib.StoreI).Version())
				return
			}
			require.NoError(t, err)
			require.Empty(t, results)
			require.Empty(t, events)
			require.EqualValues(t, 1, sm.Store().(lib.StoreI).Version())
			require.EqualValues(t, 1, sm.Height())
		})
	}
}

func TestApplyBlockRejectsFailedAction(t *testing.T) {
	sm := newTestStateMachine(t)
	invalid := newTestPosition(t, testAssetA, testAssetB, MaxFee+1, 1, 1, 0, 100, 1)
	valid := newTestPosition(t, testAssetA, testAssetB, 0, 1, 1, 0, 100, 2)
	results := applyTestBlock(t, sm, openAction(invalid), openAction(valid))
	require.Len(t, results, 2)
	// the invalid position is rejected without side effects
	require.False(t, results[0].Success)
	require.Contains(t, results[0].Error, "fee")
	p, err := sm.GetPosition(invalid.Id())
	require.NoError(t, err)
	require.Nil(t, p)
	// the valid one is applied
	require.True(t, results[1].Success)
	require.Equal(t, valid.Id(), *results[1].PositionId)
	balance, err := sm.GetVCBBalance(testAssetB)
	require.NoError(t, err)
	require.EqualValues(t, 100, balance)
	requireConservation(t, sm, testAssetA, testAssetB)
}

func TestApplyBlockStrictActions(t *testing.T) {
	sm := newTestStateMachine(t, func(c *lib.Config) { c.StrictActions = true })
	invalid := newTestPosition(t, testAssetA, testAssetB, 0, 0, 1, 0, 100, 1)
	valid := newTestPosition(t, testAssetA, testAssetB, 0, 1, 1, 0, 100, 2)
	_, events, err := sm.ApplyBlock(&Block{Height: 1, Actions: []*Action{openAction(valid), openAction(invalid)}})
	require.Error(t, err)
	require.Equal(t, lib.CodeActionRejected, err.Code())
	// nothing of the block survives, not even the events of the valid action
	require.EqualValues(t, 0, sm.Store().(lib.StoreI).Version())
	require.Empty(t, events)
	require.Zero(t, sm.events.Len())
	p, err := sm.GetPosition(valid.Id())
	require.NoError(t, err)
	require.Nil(t, p)
	balance, err := sm.GetVCBBalance(testAssetB)
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestApplyBlockDexDisabled(t *testing.T) {
	sm := newTestStateMachine(t, func(c *lib.Config) { c.DexConfig.Enabled = false })
	results := applyTestBlock(t, sm, openAction(newTestPosition(t, testAssetA, testAssetB, 0, 1, 1, 0, 100, 1)))
	require.False(t, results[0].Success)
	require.Contains(t, results[0].Error, "not accepting")
}

func TestApplyActionUnknown(t *testing.T) {
	sm := newTestStateMachine(t)
	p := newTestPosition(t, testAssetA, testAssetB, 0, 1, 1, 0, 100, 1)
	tests := []struct {
		name   string
		detail string
		action *Action
	}{
		{
			name:   "nil action",
			detail: "a nil action is rejected",
			action: nil,
		},
		{
			name:   "empty action",
			detail: "an action with no variant set is rejected",
			action: &Action{},
		},
		{
			name:   "two variants",
			detail: "an action with more than one variant set is rejected",
			action: &Action{PositionOpen: &PositionOpen{Position: *p}, PositionClose: &PositionClose{PositionId: p.Id()}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := sm.ApplyAction(0, test.action)
			require.False(t, result.Success)
			require.Contains(t, result.Error, "unknown action")
		})
	}
}

func TestInitializeGenesisParams(t *testing.T) {
	sm := newTestStateMachine(t, func(c *lib.Config) {
		c.DexConfig.MaxHops = 2
		c.DexConfig.FixedCandidates = []string{testAssetC.String()}
		c.DexConfig.ArbMinProfit = 7
	})
	params, err := sm.GetParams()
	require.NoError(t, err)
	require.EqualValues(t, 2, params.MaxHops)
	require.Equal(t, []AssetId{testAssetC}, params.FixedCandidates)
	require.EqualValues(t, 7, params.ArbMinProfit)
	// the params survive the first block
	applyTestBlock(t, sm)
	params, err = sm.GetParams()
	require.NoError(t, err)
	require.EqualValues(t, 2, params.MaxHops)
}

func newTestStateMachine(t *testing.T, configure ...func(c *lib.Config)) *StateMachine {
	log := lib.NewNullLogger()
	db, err := store.NewStoreInMemory(log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	c := lib.DefaultConfig()
	for _, f := range configure {
		f(&c)
	}
	sm, err := New(c, db, nil, log)
	require.NoError(t, err)
	return sm
}

// newTestPosition() creates an opened position where selling `a` yields `b` at p/q before fees,
// holding ra of `a` and rb of `b`
func newTestPosition(t *testing.T, a, b AssetId, fee uint32, p, q, ra, rb uint64, nonce byte) *Position {
	pair, err := NewTradingPair(a, b)
	require.NoError(t, err)
	c, r := BareTradingFunction{Fee: fee, P: p, Q: q}, Reserves{R1: ra, R2: rb}
	if pair.Asset1 != a {
		c, r = c.Flip(), r.Flip()
	}
	return &Position{
		Phi:      TradingFunction{Pair: pair, Component: c},
		Nonce:    bytes.Repeat([]byte{nonce}, NonceSize),
		State:    PositionState{Kind: PositionOpened},
		Reserves: r,
	}
}

func newTestPair(t *testing.T, a, b AssetId) TradingPair {
	pair, err := NewTradingPair(a, b)
	require.NoError(t, err)
	return pair
}

// newTestSwap() creates a swap selling amount of the asset for the other asset of the pair
func newTestSwap(t *testing.T, sell, buy AssetId, amount uint64) *Swap {
	x := &Swap{Pair: newTestPair(t, sell, buy)}
	if x.Pair.Asset1 == sell {
		x.Delta1I = amount
	} else {
		x.Delta2I = amount
	}
	return x
}

func openAction(p *Position) *Action { return &Action{PositionOpen: &PositionOpen{Position: *p}} }
func swapAction(x *Swap) *Action     { return &Action{Swap: x} }

// applyTestBlock() applies the actions as the next block
func applyTestBlock(t *testing.T, sm *StateMachine, actions ...*Action) []*ActionResult {
	results, _, err := sm.ApplyBlock(&Block{Height: sm.Store().(lib.StoreI).Version() + 1, Actions: actions})
	require.NoError(t, err)
	return results
}

// batchSide is one asset's view of a batch: what was sold, received and returned
type batchSide struct {
	delta, lambda, unfilled uint64
}

func sideOf(o *BatchSwapOutputData, asset AssetId) batchSide {
	if o.TradingPair.Asset1 == asset {
		return batchSide{delta: o.Delta1, lambda: o.Lambda1, unfilled: o.Unfilled1}
	}
	return batchSide{delta: o.Delta2, lambda: o.Lambda2, unfilled: o.Unfilled2}
}

// requireConservation() checks the value circuit breaker holds exactly the reserves of every position
func requireConservation(t *testing.T, sm *StateMachine, assets ...AssetId) {
	reserves := make(map[AssetId]uint64)
	require.NoError(t, sm.IterateAndExecute(PositionPrefix(), func(_, v []byte) lib.ErrorI {
		p := new(Position)
		if err := lib.UnmarshalJSON(v, p); err != nil {
			return err
		}
		for _, value := range p.ReserveValues() {
			reserves[value.AssetId] += value.Amount
		}
		return nil
	}))
	for _, a := range assets {
		balance, err := sm.GetVCBBalance(a)
		require.NoError(t, err)
		require.Equal(t, reserves[a], balance, "asset %s", a)
	}
}
