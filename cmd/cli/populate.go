package cli

import (
	"math/rand/v2"

	"github.com/canopy-network/batchdex/dex"
	"github.com/canopy-network/batchdex/lib"
	"github.com/spf13/cobra"
)

var (
	seed, rounds = uint64(0), 0
	// the staking token comes first so arbitrage can find cycles through it
	populateDenoms = []string{"ubatch", "gm", "gn", "pizza"}
)

func init() {
	populateCmd.Flags().Uint64Var(&seed, "seed", 1, "seed of the generated actions")
	populateCmd.Flags().IntVar(&rounds, "rounds", 3, "number of swap and claim rounds to generate")
}

var populateCmd = &cobra.Command{
	Use:   "populate --seed=1 --rounds=3",
	Short: "fill a development engine with positions, swaps, claims and withdrawals",
	Run: func(cmd *cobra.Command, args []string) {
		Populate(seed, rounds)
	},
}

// pendingSwap is a swap waiting for its batch to be claimed
type pendingSwap struct {
	swap       *dex.Swap
	nullifier  []byte
	commitment lib.HexBytes
}

// Populate() exercises every action kind against the engine over a few blocks
//
//	block 1: a position on every pair, one of them mispriced against the staking token
//	block 2 to n: random swaps, then claims of the previous round
//	block n+1: close a position
//	block n+2: withdraw it and claim its rewards
func Populate(seed uint64, rounds int) {
	r := rand.New(rand.NewPCG(seed, seed))
	assets := make([]dex.AssetId, len(populateDenoms))
	for i, d := range populateDenoms {
		assets[i] = dex.NewAssetId(d)
	}
	// STEP 1: open a position on every pair
	var opens []*dex.Action
	var positions []*dex.Position
	for i := range assets {
		for j := i + 1; j < len(assets); j++ {
			p, q := uint64(1+r.IntN(3)), uint64(1+r.IntN(3))
			position, err := dex.NewPosition(assets[i], assets[j], uint32(r.IntN(100)), p, q,
				uint64(1_000+r.IntN(100_000)), uint64(1_000+r.IntN(100_000)), randomBytes(r, dex.NonceSize))
			if err != nil {
				l.Fatal(err.Error())
			}
			positions = append(positions, position)
			opens = append(opens, &dex.Action{PositionOpen: &dex.PositionOpen{Position: *position}})
		}
	}
	submit(opens)
	// STEP 2: swap rounds, each claiming the swaps of the round before it
	var pending []pendingSwap
	var pendingHeight uint64
	for round := 0; round < rounds; round++ {
		actions := claims(pending, pendingHeight)
		pending = pending[:0]
		var swapIndexes []int
		for range 2 + r.IntN(len(assets)) {
			i, j := r.IntN(len(assets)), r.IntN(len(assets))
			if i == j {
				continue
			}
			swap, err := dex.NewSwap(assets[i], assets[j], uint64(1+r.IntN(500)))
			if err != nil {
				l.Fatal(err.Error())
			}
			swap.Proof = dex.CommitmentProof(swap.PublicInput())
			pending = append(pending, pendingSwap{swap: swap, nullifier: randomBytes(r, 32)})
			swapIndexes = append(swapIndexes, len(actions))
			actions = append(actions, &dex.Action{Swap: swap})
		}
		var results []*dex.ActionResult
		pendingHeight, results = submit(actions)
		// a claim references the commitment its swap was applied under
		for i, index := range swapIndexes {
			pending[i].commitment = results[index].SwapCommitment
		}
	}
	submit(claims(pending, pendingHeight))
	// STEP 3: close, withdraw and claim the first position
	id := positions[0].Id()
	submit([]*dex.Action{{PositionClose: &dex.PositionClose{PositionId: id}}})
	submit([]*dex.Action{
		{PositionWithdraw: &dex.PositionWithdraw{PositionId: id, Sequence: 0}},
		{PositionRewardClaim: &dex.PositionRewardClaim{PositionId: id}},
	})
	h, err := client.Height()
	if err != nil {
		l.Fatal(err.Error())
	}
	l.Infof("Populated the engine up to height %d", h.Height)
}

// claims() builds a claim for every swap settled at the height, skipping failed swaps and swaps whose batch doesn't exist
func claims(pending []pendingSwap, height uint64) (actions []*dex.Action) {
	for _, p := range pending {
		if p.commitment == nil {
			continue
		}
		output, err := client.OutputData(height, p.swap.Pair)
		if err != nil {
			l.Fatal(err.Error())
		}
		if output == nil || output.Height != height {
			l.Warnf("No batch of %s at height %d", p.swap.Pair, height)
			continue
		}
		claim := &dex.SwapClaim{
			Nullifier:      p.nullifier,
			Pair:           p.swap.Pair,
			Height:         height,
			Delta1I:        p.swap.Delta1I,
			Delta2I:        p.swap.Delta2I,
			SwapCommitment: p.commitment,
			OutputData:     *output,
			Recipient:      p.nullifier[:20],
		}
		claim.Proof = dex.CommitmentProof(claim.PublicInput())
		actions = append(actions, &dex.Action{SwapClaim: claim})
	}
	return
}

// submit() applies the actions as the next block and returns its height and the action results
func submit(actions []*dex.Action) (uint64, []*dex.ActionResult) {
	resp, err := client.ApplyBlock(&dex.Block{Actions: actions})
	if err != nil {
		l.Fatal(err.Error())
	}
	for _, result := range resp.Results {
		if !result.Success {
			l.Warnf("Action %d (%s) of block %d failed: %s", result.Index, result.Kind, resp.Height, result.Error)
		}
	}
	writeResults(resp.Height, resp.Results)
	return resp.Height, resp.Results
}

func randomBytes(r *rand.Rand, n int) lib.HexBytes {
	bz := make([]byte, n)
	for i := range bz {
		bz[i] = byte(r.Uint32())
	}
	return bz
}
