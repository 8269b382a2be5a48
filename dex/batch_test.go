package dex

import (
	"testing"

	"github.com/canopy-network/batchdex/lib"
	"github.com/nsf/jsondiff"
	"github.com/stretchr/testify/require"
)

func TestSettleBatch(t *testing.T) {
	sm := newTestStateMachine(t)
	pair := newTestPair(t, testAssetA, testAssetB)
	results := applyTestBlock(t, sm,
		openAction(newTestPosition(t, testAssetA, testAssetB, 0, 1, 1, 100, 100, 1)),
		swapAction(newTestSwap(t, testAssetA, testAssetB, 50)),
		swapAction(newTestSwap(t, testAssetB, testAssetA, 30)),
	)
	for _, r := range results {
		require.True(t, r.Success, r.Error)
	}
	output, err := sm.OutputData(1, pair)
	require.NoError(t, err)
	require.NotNil(t, output)
	// the sellers of a receive b and the sellers of b receive a, nothing is left unfilled
	require.Equal(t, batchSide{delta: 50, lambda: 30, unfilled: 0}, sideOf(output, testAssetA))
	require.Equal(t, batchSide{delta: 30, lambda: 50, unfilled: 0}, sideOf(output, testAssetB))
	require.EqualValues(t, 1, output.Height)
	// the swap flow is consumed
	flow, err := sm.GetSwapFlow(pair)
	require.NoError(t, err)
	require.Equal(t, SwapFlow{}, flow)
	// the outputs left the dex, only the position's reserves remain
	for asset, expected := range map[AssetId]uint64{testAssetA: 120, testAssetB: 80} {
		balance, e := sm.GetVCBBalance(asset)
		require.NoError(t, e)
		require.Equal(t, expected, balance)
	}
	requireConservation(t, sm, testAssetA, testAssetB)
	// both directions are recorded
	executions, err := sm.SwapExecutions(1, 1, nil)
	require.NoError(t, err)
	require.Len(t, executions, 2)
	ab := DirectedTradingPair{Start: testAssetA, End: testAssetB}
	executions, err = sm.SwapExecutions(0, 10, &ab)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	require.Equal(t, Value{Amount: 50, AssetId: testAssetA}, executions[0].Execution.Input)
	require.Equal(t, Value{Amount: 50, AssetId: testAssetB}, executions[0].Execution.Output)
	// the batch is listed at its height only
	list, err := sm.OutputDataByHeight(1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	list, err = sm.OutputDataByHeight(2)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestSettleBatchCloseOnFill(t *testing.T) {
	sm := newTestStateMachine(t)
	pair := newTestPair(t, testAssetA, testAssetB)
	p := newTestPosition(t, testAssetA, testAssetB, 0, 1, 1, 0, 100, 1)
	p.CloseOnFill = true
	applyTestBlock(t, sm, openAction(p), swapAction(newTestSwap(t, testAssetA, testAssetB, 150)))
	output, err := sm.OutputData(1, pair)
	require.NoError(t, err)
	require.Equal(t, batchSide{delta: 150, lambda: 0, unfilled: 50}, sideOf(output, testAssetA))
	require.Equal(t, batchSide{delta: 0, lambda: 100, unfilled: 0}, sideOf(output, testAssetB))
	// the drained position closed itself in the execution that filled it
	stored, err := sm.GetPosition(p.Id())
	require.NoError(t, err)
	require.Equal(t, PositionClosed, stored.State.Kind)
	a, _ := stored.ReservesFor(testAssetA)
	require.EqualValues(t, 100, a)
	ids, err := sm.positionsByPrice(DirectedTradingPair{Start: testAssetB, End: testAssetA})
	require.NoError(t, err)
	require.Empty(t, ids)
	requireConservation(t, sm, testAssetA, testAssetB)
	// the next block withdraws the proceeds, and a swap with no liquidity is returned in full
	results := applyTestBlock(t, sm,
		&Action{PositionWithdraw: &PositionWithdraw{PositionId: p.Id(), Sequence: 0}},
		swapAction(newTestSwap(t, testAssetA, testAssetB, 10)),
	)
	require.True(t, results[0].Success, results[0].Error)
	require.Equal(t, uint64(100), totalOf(results[0].Released, testAssetA))
	output, err = sm.OutputData(2, pair)
	require.NoError(t, err)
	require.Equal(t, batchSide{delta: 10, lambda: 0, unfilled: 10}, sideOf(output, testAssetA))
	for _, asset := range []AssetId{testAssetA, testAssetB} {
		balance, e := sm.GetVCBBalance(asset)
		require.NoError(t, e)
		require.Zero(t, balance)
	}
	requireConservation(t, sm, testAssetA, testAssetB)
}

func TestSettleBatchEpoch(t *testing.T) {
	sm := newTestStateMachine(t)
	pair := newTestPair(t, testAssetA, testAssetB)
	_, _, err := sm.ApplyBlock(&Block{Height: 1, EpochIndex: 3, EpochStartHeight: 1, Actions: []*Action{
		swapAction(newTestSwap(t, testAssetA, testAssetB, 10)),
	}})
	require.NoError(t, err)
	output, err := sm.OutputData(1, pair)
	require.NoError(t, err)
	require.EqualValues(t, 1, output.EpochStartingHeight)
	require.Equal(t, SctPosition{Epoch: 3, Block: 0}, output.SctPositionPrefix)
}

func TestProRataOutputs(t *testing.T) {
	tests := []struct {
		name             string
		detail           string
		output           BatchSwapOutputData
		delta1i, delta2i uint64
		expectedLambda1i uint64
		expectedLambda2i uint64
	}{
		{
			name:             "partial share",
			detail:           "40% of the asset 1 input receives 40% of the asset 2 output and of the unfilled asset 1",
			output:           BatchSwapOutputData{Delta1: 100, Lambda2: 50, Unfilled1: 20},
			delta1i:          40,
			expectedLambda1i: 8,
			expectedLambda2i: 20,
		},
		{
			name:             "whole batch",
			detail:           "the only swapper receives everything",
			output:           BatchSwapOutputData{Delta1: 100, Lambda2: 50, Unfilled1: 20},
			delta1i:          100,
			expectedLambda1i: 20,
			expectedLambda2i: 50,
		},
		{
			name:             "rounds down",
			detail:           "a third of 10 rounds down to 3 so the shares never exceed the batch",
			output:           BatchSwapOutputData{Delta1: 3, Lambda2: 10},
			delta1i:          1,
			expectedLambda2i: 3,
		},
		{
			name:             "both sides",
			detail:           "a swapper on both sides receives the sum of both shares",
			output:           BatchSwapOutputData{Delta1: 10, Delta2: 20, Lambda1: 40, Lambda2: 30, Unfilled1: 0, Unfilled2: 4},
			delta1i:          5,
			delta2i:          5,
			expectedLambda1i: 10,
			expectedLambda2i: 16,
		},
		{
			name:    "zero aggregate",
			detail:  "a side with no aggregate input yields nothing",
			output:  BatchSwapOutputData{Lambda2: 50},
			delta1i: 10,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			lambda1i, lambda2i := test.output.ProRataOutputs(test.delta1i, test.delta2i)
			require.Equal(t, test.expectedLambda1i, lambda1i)
			require.Equal(t, test.expectedLambda2i, lambda2i)
		})
	}
}

func TestOutputDataCommitment(t *testing.T) {
	pair := newTestPair(t, testAssetA, testAssetB)
	o := &BatchSwapOutputData{Height: 1, TradingPair: pair, Delta1: 10, Lambda2: 10}
	c := *o
	require.Equal(t, o.Commitment(), c.Commitment())
	// every field is bound
	c.SctPositionPrefix.Commitment = 1
	require.NotEqual(t, o.Commitment(), c.Commitment())
	c = *o
	c.Unfilled2 = 1
	require.NotEqual(t, o.Commitment(), c.Commitment())
}

func TestSettleParallelMatchesSequential(t *testing.T) {
	run := func(parallel bool) []byte {
		sm := newTestStateMachine(t, func(c *lib.Config) {
			c.DexConfig.MaxHops = 1
			c.DexConfig.Parallel = parallel
		})
		applyTestBlock(t, sm,
			openAction(newTestPosition(t, testAssetA, testAssetB, 30, 1, 1, 100, 100, 1)),
			openAction(newTestPosition(t, testAssetA, testAssetC, 0, 2, 1, 100, 100, 2)),
			openAction(newTestPosition(t, testAssetB, testAssetC, 100, 3, 2, 50, 70, 3)),
			swapAction(newTestSwap(t, testAssetA, testAssetB, 40)),
			swapAction(newTestSwap(t, testAssetB, testAssetA, 7)),
			swapAction(newTestSwap(t, testAssetC, testAssetA, 90)),
			swapAction(newTestSwap(t, testAssetB, testAssetC, 500)),
		)
		list, err := sm.OutputDataByHeight(1)
		require.NoError(t, err)
		require.Len(t, list, 3)
		requireConservation(t, sm, testAssetA, testAssetB, testAssetC)
		bz, err := lib.MarshalJSON(list)
		require.NoError(t, err)
		return bz
	}
	opts := jsondiff.DefaultConsoleOptions()
	diff, explanation := jsondiff.Compare(run(false), run(true), &opts)
	require.Equal(t, jsondiff.FullMatch, diff, explanation)
}

func TestSettleBatchDeterministic(t *testing.T) {
	run := func() []byte {
		sm := newTestStateMachine(t)
		applyTestBlock(t, sm,
			openAction(newTestPosition(t, testAssetA, testAssetB, 30, 1, 1, 100, 100, 1)),
			openAction(newTestPosition(t, testAssetB, testAssetC, 0, 1, 1, 100, 100, 2)),
			openAction(newTestPosition(t, testAssetA, testAssetC, 10, 5, 4, 100, 100, 3)),
			swapAction(newTestSwap(t, testAssetA, testAssetC, 120)),
			swapAction(newTestSwap(t, testAssetB, testAssetA, 25)),
		)
		outputs, err := sm.OutputDataByHeight(1)
		require.NoError(t, err)
		executions, err := sm.SwapExecutions(1, 1, nil)
		require.NoError(t, err)
		requireConservation(t, sm, testAssetA, testAssetB, testAssetC)
		bz, err := lib.MarshalJSON(map[string]any{"outputs": outputs, "executions": executions})
		require.NoError(t, err)
		return bz
	}
	opts := jsondiff.DefaultConsoleOptions()
	diff, explanation := jsondiff.Compare(run(), run(), &opts)
	require.Equal(t, jsondiff.FullMatch, diff, explanation)
}
