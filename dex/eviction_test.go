package dex

import (
	"testing"

	"github.com/canopy-network/batchdex/lib"
	"github.com/stretchr/testify/require"
)

func TestEvictPositions(t *testing.T) {
	type reserves struct{ a, b uint64 }
	tests := []struct {
		name      string
		detail    string
		limit     uint32
		positions []reserves
		evicted   []int // indexes into positions
	}{
		{
			name:      "under the limit",
			detail:    "nothing is evicted while the pair has room",
			limit:     4,
			positions: []reserves{{10, 10}, {20, 20}, {30, 30}},
		},
		{
			name:      "unlimited",
			detail:    "a zero limit disables eviction",
			limit:     0,
			positions: []reserves{{10, 10}, {20, 20}, {30, 30}},
		},
		{
			name:      "shallowest evicted",
			detail:    "the positions with the least inventory on both sides are closed",
			limit:     2,
			positions: []reserves{{100, 100}, {10, 10}, {200, 200}, {20, 20}},
			evicted:   []int{1, 3},
		},
		{
			name:      "either side",
			detail:    "a position shallow on one side is evicted even if it's deep on the other",
			limit:     2,
			positions: []reserves{{10, 100}, {50, 50}, {100, 10}, {200, 200}},
			evicted:   []int{0, 1, 2},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sm := newTestStateMachine(t, func(c *lib.Config) { c.MaxPositionsPerPair = test.limit })
			var actions []*Action
			var positions []*Position
			for i, r := range test.positions {
				p := newTestPosition(t, testAssetA, testAssetB, 0, 1, 1, r.a, r.b, byte(i+1))
				positions = append(positions, p)
				actions = append(actions, openAction(p))
			}
			_, events, err := sm.ApplyBlock(&Block{Height: 1, Actions: actions})
			require.NoError(t, err)
			for i, p := range positions {
				got, e := sm.GetPosition(p.Id())
				require.NoError(t, e)
				expected := PositionOpened
				for _, j := range test.evicted {
					if i == j {
						expected = PositionClosed
					}
				}
				require.Equal(t, expected, got.State.Kind, "position %d", i)
			}
			// every eviction is reported at the end of the block
			closes := events.OfType(lib.EventTypePositionClose)
			require.Len(t, closes, len(test.evicted))
			for _, e := range closes {
				closed := new(EventPositionClose)
				require.NoError(t, e.Decode(closed))
				require.True(t, closed.Evicted)
				require.Equal(t, lib.EventStageEndBlock, e.Reference)
			}
			// the pair is only inspected in the block it gained a position
			require.NoError(t, sm.IterateAndExecute(NewPositionPairPrefix(), func(k, _ []byte) lib.ErrorI {
				t.Fatalf("pair left flagged for eviction: %x", k)
				return nil
			}))
			requireConservation(t, sm, testAssetA, testAssetB)
		})
	}
}
