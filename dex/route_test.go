package dex

import (
	"testing"

	"github.com/canopy-network/batchdex/lib/fixpoint"
	"github.com/stretchr/testify/require"
)

func TestRouteAndFill(t *testing.T) {
	tests := []struct {
		name           string
		detail         string
		positions      func(t *testing.T) []*Position
		src, dst       AssetId
		input          uint64
		expectedNil    bool
		expectedInput  uint64
		expectedOutput uint64
		expectedTraces [][]uint64
	}{
		{
			name:   "single position",
			detail: "the input is fully filled against one position at parity",
			positions: func(t *testing.T) []*Position {
				return []*Position{newTestPosition(t, testAssetA, testAssetB, 0, 1, 1, 0, 100, 1)}
			},
			src:            testAssetA,
			dst:            testAssetB,
			input:          50,
			expectedInput:  50,
			expectedOutput: 50,
			expectedTraces: [][]uint64{{50, 50}},
		},
		{
			name:   "exhausted liquidity",
			detail: "the position is drained and the rest of the input is left unfilled",
			positions: func(t *testing.T) []*Position {
				return []*Position{newTestPosition(t, testAssetA, testAssetB, 0, 1, 1, 0, 100, 1)}
			},
			src:            testAssetA,
			dst:            testAssetB,
			input:          150,
			expectedInput:  100,
			expectedOutput: 100,
			expectedTraces: [][]uint64{{100, 100}},
		},
		{
			name:   "multi hop",
			detail: "the input is routed through an intermediate asset when there's no direct pair",
			positions: func(t *testing.T) []*Position {
				return []*Position{
					newTestPosition(t, testAssetA, testAssetB, 0, 1, 1, 0, 100, 1),
					newTestPosition(t, testAssetB, testAssetC, 0, 1, 1, 0, 100, 2),
				}
			},
			src:            testAssetA,
			dst:            testAssetC,
			input:          50,
			expectedInput:  50,
			expectedOutput: 50,
			expectedTraces: [][]uint64{{50, 50, 50}},
		},
		{
			name:   "price levels",
			detail: "the best position is drained before the next best one is used",
			positions: func(t *testing.T) []*Position {
				return []*Position{
					newTestPosition(t, testAssetA, testAssetB, 0, 1, 1, 0, 10, 1),
					newTestPosition(t, testAssetA, testAssetB, 0, 1, 2, 0, 100, 2),
				}
			},
			src:            testAssetA,
			dst:            testAssetB,
			input:          30,
			expectedInput:  30,
			expectedOutput: 20,
			expectedTraces: [][]uint64{{10, 10}, {20, 10}},
		},
		{
			name:   "no liquidity",
			detail: "nothing is filled when no position sells the output",
			positions: func(t *testing.T) []*Position {
				return []*Position{newTestPosition(t, testAssetA, testAssetB, 0, 1, 1, 100, 0, 1)}
			},
			src:         testAssetA,
			dst:         testAssetB,
			input:       50,
			expectedNil: true,
		},
		{
			name:   "zero input",
			detail: "a zero input is a no-op",
			positions: func(t *testing.T) []*Position {
				return []*Position{newTestPosition(t, testAssetA, testAssetB, 0, 1, 1, 0, 100, 1)}
			},
			src:         testAssetA,
			dst:         testAssetB,
			expectedNil: true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sm := newTestStateMachine(t)
			for _, p := range test.positions(t) {
				_, err := sm.OpenPosition(p)
				require.NoError(t, err)
			}
			exec, err := sm.RouteAndFill(test.src, test.dst, test.input, RoutingParams{MaxHops: 4}, NewExecutionCircuitBreaker(64))
			require.NoError(t, err)
			if test.expectedNil {
				require.Nil(t, exec)
				return
			}
			require.Equal(t, Value{Amount: test.expectedInput, AssetId: test.src}, exec.Input)
			require.Equal(t, Value{Amount: test.expectedOutput, AssetId: test.dst}, exec.Output)
			require.Len(t, exec.Traces, len(test.expectedTraces))
			for i, trace := range exec.Traces {
				amounts := make([]uint64, len(trace))
				for j, v := range trace {
					amounts[j] = v.Amount
				}
				require.Equal(t, test.expectedTraces[i], amounts)
				require.Equal(t, test.src, trace[0].AssetId)
				require.Equal(t, test.dst, trace[len(trace)-1].AssetId)
			}
		})
	}
}

func TestRouteAndFillUpdatesPositions(t *testing.T) {
	sm := newTestStateMachine(t)
	p := newTestPosition(t, testAssetA, testAssetB, 0, 1, 1, 0, 100, 1)
	_, err := sm.OpenPosition(p)
	require.NoError(t, err)
	_, err = sm.RouteAndFill(testAssetA, testAssetB, 30, RoutingParams{MaxHops: 1}, NewExecutionCircuitBreaker(64))
	require.NoError(t, err)
	stored, err := sm.GetPosition(p.Id())
	require.NoError(t, err)
	a, _ := stored.ReservesFor(testAssetA)
	b, _ := stored.ReservesFor(testAssetB)
	require.EqualValues(t, 30, a)
	require.EqualValues(t, 70, b)
	// the position now sells in both directions
	liquidity, err := sm.GetRoutableLiquidity(DirectedTradingPair{Start: testAssetB, End: testAssetA})
	require.NoError(t, err)
	require.EqualValues(t, 30, liquidity)
	liquidity, err = sm.GetRoutableLiquidity(DirectedTradingPair{Start: testAssetA, End: testAssetB})
	require.NoError(t, err)
	require.EqualValues(t, 70, liquidity)
}

func TestRouteAndFillExecutionBudget(t *testing.T) {
	sm := newTestStateMachine(t)
	_, err := sm.OpenPosition(newTestPosition(t, testAssetA, testAssetB, 0, 1, 1, 0, 100, 1))
	require.NoError(t, err)
	breaker := NewExecutionCircuitBreaker(1)
	breaker.Increment()
	require.True(t, breaker.Exceeded())
	require.Zero(t, breaker.Remaining())
	// a spent budget fills nothing and leaves the position untouched
	exec, err := sm.RouteAndFill(testAssetA, testAssetB, 50, RoutingParams{MaxHops: 1}, breaker)
	require.NoError(t, err)
	require.Nil(t, exec)
	liquidity, err := sm.GetRoutableLiquidity(DirectedTradingPair{Start: testAssetA, End: testAssetB})
	require.NoError(t, err)
	require.EqualValues(t, 100, liquidity)
}

func TestPathSearch(t *testing.T) {
	tests := []struct {
		name          string
		detail        string
		maxHops       uint32
		priceLimit    *fixpoint.U128x128
		expectedPath  []AssetId
		expectedSpill *fixpoint.U128x128
	}{
		{
			name:          "cheaper indirect path",
			detail:        "the two hop path through c beats the direct path, which becomes the spill price",
			maxHops:       4,
			expectedPath:  []AssetId{testAssetC, testAssetB},
			expectedSpill: ptr(fixpoint.One()),
		},
		{
			name:         "single hop",
			detail:       "with one hop only the direct path is considered",
			maxHops:      1,
			expectedPath: []AssetId{testAssetB},
		},
		{
			name:       "price limit",
			detail:     "a best path priced at or above the limit is not returned",
			maxHops:    4,
			priceLimit: ptr(fixpoint.FromUint64(0)),
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sm := newTestStateMachine(t)
			for _, p := range []*Position{
				newTestPosition(t, testAssetA, testAssetB, 0, 1, 1, 0, 100, 1),
				newTestPosition(t, testAssetA, testAssetC, 0, 2, 1, 0, 100, 2),
				newTestPosition(t, testAssetC, testAssetB, 0, 1, 1, 0, 100, 3),
			} {
				_, err := sm.OpenPosition(p)
				require.NoError(t, err)
			}
			path, spill, err := sm.PathSearch(testAssetA, testAssetB, RoutingParams{MaxHops: test.maxHops, PriceLimit: test.priceLimit})
			require.NoError(t, err)
			require.Equal(t, test.expectedPath, path)
			if test.expectedSpill == nil {
				require.Nil(t, spill)
				return
			}
			require.NotNil(t, spill)
			require.Zero(t, test.expectedSpill.Cmp(*spill))
		})
	}
}

func TestPathSearchUnreachable(t *testing.T) {
	sm := newTestStateMachine(t)
	_, err := sm.OpenPosition(newTestPosition(t, testAssetA, testAssetB, 0, 1, 1, 0, 100, 1))
	require.NoError(t, err)
	path, spill, err := sm.PathSearch(testAssetA, testAssetC, RoutingParams{MaxHops: 4})
	require.NoError(t, err)
	require.Nil(t, path)
	require.Nil(t, spill)
}

func TestRoutingParamsWithExtraCandidates(t *testing.T) {
	base := RoutingParams{MaxHops: 2, FixedCandidates: []AssetId{testAssetA}}
	extended := base.WithExtraCandidates(testAssetB, testAssetA, testAssetC)
	require.Equal(t, []AssetId{testAssetA, testAssetB, testAssetC}, extended.FixedCandidates)
	// the original is untouched
	require.Equal(t, []AssetId{testAssetA}, base.FixedCandidates)
}

func TestSwapExecutionMaxPrice(t *testing.T) {
	exec := &SwapExecution{Traces: [][]Value{
		{{Amount: 10}, {Amount: 10}},
		{{Amount: 20}, {Amount: 10}},
		{{Amount: 5}, {Amount: 0}},
	}}
	// the empty output trace has no price
	require.Zero(t, exec.MaxPrice().Cmp(fixpoint.FromUint64(2)))
	require.Nil(t, (&SwapExecution{}).MaxPrice())
}

func ptr[T any](v T) *T { return &v }
