package dex

import (
	"testing"

	"github.com/canopy-network/batchdex/lib"
	"github.com/stretchr/testify/require"
)

func TestArbitrage(t *testing.T) {
	token, x := testAssetA, testAssetB
	tests := []struct {
		name             string
		detail           string
		minProfit        uint64
		positions        func(t *testing.T) []*Position
		expectedSurplus  uint64
		expectedTraces   [][]uint64
		expectedVCBToken uint64
	}{
		{
			name:   "profitable cycle",
			detail: "token buys x at half price and x sells back at parity, the 50 token surplus is captured",
			positions: func(t *testing.T) []*Position {
				return []*Position{
					newTestPosition(t, token, x, 0, 2, 1, 0, 100, 1),
					newTestPosition(t, x, token, 0, 1, 1, 0, 100, 2),
				}
			},
			expectedSurplus:  50,
			expectedTraces:   [][]uint64{{50, 100, 100}},
			expectedVCBToken: 50,
		},
		{
			name:   "no cycle",
			detail: "there is no way back to the token so nothing is captured",
			positions: func(t *testing.T) []*Position {
				return []*Position{newTestPosition(t, token, x, 0, 2, 1, 0, 100, 1)}
			},
		},
		{
			name:   "unprofitable cycle",
			detail: "a cycle at parity returns no surplus",
			positions: func(t *testing.T) []*Position {
				return []*Position{
					newTestPosition(t, token, x, 0, 1, 1, 0, 100, 1),
					newTestPosition(t, x, token, 0, 1, 1, 0, 100, 2),
				}
			},
			expectedVCBToken: 100,
		},
		{
			name:      "below minimum profit",
			detail:    "a surplus smaller than the minimum profit is left in the positions",
			minProfit: 51,
			positions: func(t *testing.T) []*Position {
				return []*Position{
					newTestPosition(t, token, x, 0, 2, 1, 0, 100, 1),
					newTestPosition(t, x, token, 0, 1, 1, 0, 100, 2),
				}
			},
			expectedVCBToken: 100,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sm := newTestStateMachine(t, func(c *lib.Config) {
				c.DexConfig.StakingToken = token.String()
				c.DexConfig.ArbMinProfit = test.minProfit
			})
			var actions []*Action
			for _, p := range test.positions(t) {
				actions = append(actions, openAction(p))
			}
			// arbitrage runs at the end of every block
			applyTestBlock(t, sm, actions...)
			balance, err := sm.GetProtocolBalance(token)
			require.NoError(t, err)
			require.Equal(t, test.expectedSurplus, balance)
			vcb, err := sm.GetVCBBalance(token)
			require.NoError(t, err)
			require.Equal(t, test.expectedVCBToken, vcb)
			requireConservation(t, sm, token, x)
			arbs, err := sm.ArbExecutions(0, 10)
			require.NoError(t, err)
			if test.expectedSurplus == 0 {
				require.Empty(t, arbs)
				return
			}
			require.Len(t, arbs, 1)
			require.EqualValues(t, 1, arbs[0].Height)
			exec := arbs[0].SwapExecution
			require.Equal(t, Value{Amount: test.expectedTraces[0][0], AssetId: token}, exec.Input)
			require.Equal(t, test.expectedSurplus, exec.Output.Amount-exec.Input.Amount)
			require.Len(t, exec.Traces, len(test.expectedTraces))
			for i, trace := range exec.Traces {
				amounts := make([]uint64, len(trace))
				for j, v := range trace {
					amounts[j] = v.Amount
				}
				require.Equal(t, test.expectedTraces[i], amounts)
			}
		})
	}
}

func TestRecentlyAccessedAssets(t *testing.T) {
	ab, bc := newTestPair(t, testAssetA, testAssetB), newTestPair(t, testAssetB, testAssetC)
	assets := recentlyAccessedAssets([]TradingPair{ab, bc})
	expected := []AssetId{testAssetA, testAssetB, testAssetC}
	sortAssets(expected)
	require.Equal(t, expected, assets)
	require.Empty(t, recentlyAccessedAssets(nil))
}
