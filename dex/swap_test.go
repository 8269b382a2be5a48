package dex

import (
	"bytes"
	"testing"

	"github.com/canopy-network/batchdex/lib"
	"github.com/canopy-network/batchdex/store"
	"github.com/stretchr/testify/require"
)

func TestHandleSwap(t *testing.T) {
	pair := newTestPair(t, testAssetA, testAssetB)
	tests := []struct {
		name         string
		detail       string
		swap         *Swap
		expectedCode lib.ErrorCode
	}{
		{
			name:   "valid",
			detail: "a swap of asset 1 is queued",
			swap:   &Swap{Pair: pair, Delta1I: 10},
		},
		{
			name:   "both sides",
			detail: "a swap may sell both assets at once",
			swap:   &Swap{Pair: pair, Delta1I: 10, Delta2I: 5},
		},
		{
			name:         "no input",
			detail:       "a swap must sell something",
			swap:         &Swap{Pair: pair},
			expectedCode: lib.CodeInvalidSwap,
		},
		{
			name:         "input too large",
			detail:       "the input is bounded like reserves are",
			swap:         &Swap{Pair: pair, Delta2I: MaxReserveAmount + 1},
			expectedCode: lib.CodeInvalidSwap,
		},
		{
			name:         "non canonical pair",
			detail:       "the pair must be in canonical order",
			swap:         &Swap{Pair: TradingPair{Asset1: pair.Asset2, Asset2: pair.Asset1}, Delta1I: 10},
			expectedCode: lib.CodeInvalidTradingPair,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sm := newTestStateMachine(t)
			commitment, err := sm.HandleSwap(test.swap)
			flow, e := sm.GetSwapFlow(pair)
			require.NoError(t, e)
			if test.expectedCode != 0 {
				require.Error(t, err)
				require.Equal(t, test.expectedCode, err.Code())
				require.Equal(t, SwapFlow{}, flow)
				require.Nil(t, commitment)
				return
			}
			require.NoError(t, err)
			require.Equal(t, SwapFlow{Delta1: test.swap.Delta1I, Delta2: test.swap.Delta2I}, flow)
			balance, e := sm.GetVCBBalance(pair.Asset1)
			require.NoError(t, e)
			require.Equal(t, test.swap.Delta1I, balance)
			// the swap awaits its claim in the shielded pool
			record, e := sm.pool.SwapCommitment(sm.store, commitment)
			require.NoError(t, e)
			require.Equal(t, &SwapRecord{Pair: pair, Delta1I: test.swap.Delta1I, Delta2I: test.swap.Delta2I}, record)
		})
	}
}

func TestHandleSwapAccumulates(t *testing.T) {
	sm := newTestStateMachine(t)
	pair := newTestPair(t, testAssetA, testAssetB)
	c1, err := sm.HandleSwap(&Swap{Pair: pair, Delta1I: 10})
	require.NoError(t, err)
	c2, err := sm.HandleSwap(&Swap{Pair: pair, Delta1I: 5, Delta2I: 7})
	require.NoError(t, err)
	c3, err := sm.HandleSwap(&Swap{Pair: pair, Delta1I: 10})
	require.NoError(t, err)
	flow, err := sm.GetSwapFlow(pair)
	require.NoError(t, err)
	require.Equal(t, SwapFlow{Delta1: 25, Delta2: 7}, flow)
	// identical swaps in one block are still claimed separately
	require.NotEqual(t, c1, c2)
	require.NotEqual(t, c1, c3)
}

func TestHandleSwapSpendProof(t *testing.T) {
	sm := newTestStateMachine(t)
	sm.WithProofVerifier(CommitmentVerifier{})
	swap := newTestSwap(t, testAssetA, testAssetB, 10)
	swap.Proof = []byte("forged")
	_, err := sm.HandleSwap(swap)
	require.Error(t, err)
	require.Equal(t, lib.CodeInvalidProof, err.Code())
	swap.Proof = CommitmentProof(swap.PublicInput())
	_, err = sm.HandleSwap(swap)
	require.NoError(t, err)
}

func TestProofVerifierFromConfig(t *testing.T) {
	tests := []struct {
		name         string
		detail       string
		verifier     string
		forgedOk     bool
		expectedCode lib.ErrorCode
	}{
		{
			name:     "default",
			detail:   "an unset verifier accepts every proof",
			forgedOk: true,
		},
		{
			name:     "accept all",
			detail:   "proofs are verified upstream of the engine",
			verifier: AcceptAllVerifierName,
			forgedOk: true,
		},
		{
			name:     "commitment",
			detail:   "a forged proof doesn't open to the public input",
			verifier: CommitmentVerifierName,
		},
		{
			name:         "unknown",
			detail:       "the engine refuses to start with a verifier it doesn't know",
			verifier:     "groth16",
			expectedCode: lib.CodeInvalidParams,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			log := lib.NewNullLogger()
			db, err := store.NewStoreInMemory(log)
			require.NoError(t, err)
			defer db.Close()
			c := lib.DefaultConfig()
			c.ProofVerifier = test.verifier
			sm, err := New(c, db, nil, log)
			if test.expectedCode != 0 {
				require.Error(t, err)
				require.Equal(t, test.expectedCode, err.Code())
				return
			}
			require.NoError(t, err)
			swap := newTestSwap(t, testAssetA, testAssetB, 10)
			swap.Proof = []byte("forged")
			_, err = sm.HandleSwap(swap)
			require.Equal(t, test.forgedOk, err == nil)
		})
	}
}

func TestHandleSwapClaim(t *testing.T) {
	sm := newTestStateMachine(t)
	pair := newTestPair(t, testAssetA, testAssetB)
	// two swappers sell a, one sells b
	swapA1, swapA2 := newTestSwap(t, testAssetA, testAssetB, 30), newTestSwap(t, testAssetA, testAssetB, 20)
	results := applyTestBlock(t, sm,
		openAction(newTestPosition(t, testAssetA, testAssetB, 0, 1, 1, 100, 100, 1)),
		swapAction(swapA1), swapAction(swapA2),
		swapAction(newTestSwap(t, testAssetB, testAssetA, 30)),
	)
	commitA1, commitA2 := results[1].SwapCommitment, results[2].SwapCommitment
	recorded, err := sm.OutputData(1, pair)
	require.NoError(t, err)
	claimFor := func(nullifier byte, x *Swap, commitment lib.HexBytes) *SwapClaim {
		return &SwapClaim{
			Nullifier:      bytes.Repeat([]byte{nullifier}, 32),
			Pair:           pair,
			Height:         1,
			Delta1I:        x.Delta1I,
			Delta2I:        x.Delta2I,
			SwapCommitment: commitment,
			OutputData:     *recorded,
			Recipient:      []byte("recipient"),
		}
	}
	tests := []struct {
		name         string
		detail       string
		claim        func() *SwapClaim
		expectedCode lib.ErrorCode
	}{
		{
			name:   "empty nullifier",
			detail: "a claim must carry a nullifier",
			claim: func() *SwapClaim {
				c := claimFor(1, swapA1, commitA1)
				c.Nullifier = nil
				return c
			},
			expectedCode: lib.CodeEmptyNullifier,
		},
		{
			name:   "unknown batch",
			detail: "there is no output data at the claimed height",
			claim: func() *SwapClaim {
				c := claimFor(1, swapA1, commitA1)
				c.Height = 5
				return c
			},
			expectedCode: lib.CodeOutputDataNotFound,
		},
		{
			name:   "mismatched output data",
			detail: "the claimed output data must be the one that was settled",
			claim: func() *SwapClaim {
				c := claimFor(1, swapA1, commitA1)
				c.OutputData.Lambda2++
				return c
			},
			expectedCode: lib.CodeOutputDataMismatch,
		},
		{
			name:   "input exceeds the batch",
			detail: "no swap can claim more input than the whole batch received",
			claim: func() *SwapClaim {
				c := claimFor(1, swapA1, commitA1)
				c.Delta1I, c.Delta2I = recorded.Delta1+1, recorded.Delta2+1
				return c
			},
			expectedCode: lib.CodeInvalidSwapClaim,
		},
		{
			name:   "unknown swap",
			detail: "the claim must reference a swap commitment that was recorded",
			claim: func() *SwapClaim {
				return claimFor(1, swapA1, bytes.Repeat([]byte{9}, 32))
			},
			expectedCode: lib.CodeSwapNotFound,
		},
		{
			name:   "no swap",
			detail: "a claim without a swap commitment is rejected",
			claim: func() *SwapClaim {
				return claimFor(1, swapA1, nil)
			},
			expectedCode: lib.CodeSwapNotFound,
		},
		{
			name:   "mismatched amount",
			detail: "the larger input can't be claimed with the commitment of the smaller swap",
			claim: func() *SwapClaim {
				return claimFor(1, swapA1, commitA2)
			},
			expectedCode: lib.CodeInvalidSwapClaim,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := test.claim()
			_, err := sm.HandleSwapClaim(c)
			require.Error(t, err)
			require.Equal(t, test.expectedCode, err.Code())
			// a failed claim doesn't spend the nullifier or the swap
			if len(c.Nullifier) != 0 {
				spent, e := sm.pool.IsSpent(sm.store, c.Nullifier)
				require.NoError(t, e)
				require.False(t, spent)
			}
			for _, commitment := range []lib.HexBytes{commitA1, commitA2} {
				record, e := sm.pool.SwapCommitment(sm.store, commitment)
				require.NoError(t, e)
				require.False(t, record.Claimed)
			}
		})
	}
	// both a sellers split the b output by their share of the input
	claim1, err := sm.HandleSwapClaim(claimFor(1, swapA1, commitA1))
	require.NoError(t, err)
	claim2, err := sm.HandleSwapClaim(claimFor(2, swapA2, commitA2))
	require.NoError(t, err)
	require.Equal(t, Value{Amount: 30, AssetId: testAssetB}, outputOf(claim1, testAssetB))
	require.Equal(t, Value{Amount: 20, AssetId: testAssetB}, outputOf(claim2, testAssetB))
	require.Zero(t, outputOf(claim1, testAssetA).Amount)
	// every output is committed to a distinct note
	require.Len(t, claim1.NoteCommitments, 2)
	require.NotEqual(t, claim1.NoteCommitments[0], claim1.NoteCommitments[1])
	require.NotEqual(t, claim1.NoteCommitments[1], claim2.NoteCommitments[1])
	// a replay fails even if it's otherwise valid
	_, err = sm.HandleSwapClaim(claimFor(1, swapA1, commitA1))
	require.Error(t, err)
	require.Equal(t, lib.CodeAlreadySpent, err.Code())
	// so does claiming the same swap under a fresh nullifier
	_, err = sm.HandleSwapClaim(claimFor(3, swapA1, commitA1))
	require.Error(t, err)
	require.Equal(t, lib.CodeSwapAlreadyClaimed, err.Code())
}

// forgetfulPool never marks a swap claimed
type forgetfulPool struct{ StoreShieldedPool }

func (forgetfulPool) ClaimSwapCommitment(_ lib.RWStoreI, _ []byte) lib.ErrorI { return nil }

func TestSwapClaimsBoundedByBatch(t *testing.T) {
	sm := newTestStateMachine(t)
	sm.WithShieldedPool(forgetfulPool{})
	pair := newTestPair(t, testAssetA, testAssetB)
	swap := newTestSwap(t, testAssetA, testAssetB, 10)
	// nothing to trade against, the whole input is returned unfilled
	results := applyTestBlock(t, sm, swapAction(swap))
	recorded, err := sm.OutputData(1, pair)
	require.NoError(t, err)
	claimWith := func(nullifier byte) *SwapClaim {
		return &SwapClaim{
			Nullifier:      []byte{nullifier},
			Pair:           pair,
			Height:         1,
			Delta1I:        swap.Delta1I,
			Delta2I:        swap.Delta2I,
			SwapCommitment: results[0].SwapCommitment,
			OutputData:     *recorded,
		}
	}
	result, err := sm.HandleSwapClaim(claimWith(1))
	require.NoError(t, err)
	require.Equal(t, uint64(10), outputOf(result, testAssetA).Amount)
	// the pool lets the swap be claimed again, the batch total doesn't
	_, err = sm.HandleSwapClaim(claimWith(2))
	require.Error(t, err)
	require.Equal(t, lib.CodeInvalidSwapClaim, err.Code())
}

func TestHandleSwapClaimProof(t *testing.T) {
	sm := newTestStateMachine(t)
	sm.WithProofVerifier(CommitmentVerifier{})
	pair := newTestPair(t, testAssetA, testAssetB)
	swap := newTestSwap(t, testAssetA, testAssetB, 10)
	swap.Proof = CommitmentProof(swap.PublicInput())
	results := applyTestBlock(t, sm, swapAction(swap))
	recorded, err := sm.OutputData(1, pair)
	require.NoError(t, err)
	claim := &SwapClaim{
		Nullifier:      []byte("nullifier"),
		Pair:           pair,
		Height:         1,
		Delta1I:        swap.Delta1I,
		Delta2I:        swap.Delta2I,
		SwapCommitment: results[0].SwapCommitment,
		OutputData:     *recorded,
		Proof:          []byte("forged"),
	}
	_, err = sm.HandleSwapClaim(claim)
	require.Error(t, err)
	require.Equal(t, lib.CodeInvalidProof, err.Code())
	// the proof binds the claimed amounts
	claim.Proof = CommitmentProof(claim.PublicInput())
	claim.Delta1I++
	_, err = sm.HandleSwapClaim(claim)
	require.Error(t, err)
	require.Equal(t, lib.CodeInvalidProof, err.Code())
	claim.Delta1I--
	// nothing was routed, so the swapper gets the input back
	result, err := sm.HandleSwapClaim(claim)
	require.NoError(t, err)
	in := Value{Amount: 10, AssetId: testAssetA}
	require.Equal(t, in, outputOf(result, testAssetA))
}

func TestSwapClaimInBlock(t *testing.T) {
	sm := newTestStateMachine(t)
	pair := newTestPair(t, testAssetA, testAssetB)
	swap := newTestSwap(t, testAssetA, testAssetB, 10)
	swapped := applyTestBlock(t, sm, openAction(newTestPosition(t, testAssetA, testAssetB, 0, 1, 1, 0, 100, 1)), swapAction(swap))
	require.NotEmpty(t, swapped[1].SwapCommitment)
	recorded, err := sm.OutputData(1, pair)
	require.NoError(t, err)
	claim := &SwapClaim{Nullifier: []byte{1}, Pair: pair, Height: 1, Delta1I: swap.Delta1I, Delta2I: swap.Delta2I,
		SwapCommitment: swapped[1].SwapCommitment, OutputData: *recorded}
	// the replay inside the same block is rejected without undoing the first claim
	results := applyTestBlock(t, sm, &Action{SwapClaim: claim}, &Action{SwapClaim: claim})
	require.True(t, results[0].Success, results[0].Error)
	require.Equal(t, uint64(10), outputOf(results[0].Claim, testAssetB).Amount)
	require.False(t, results[1].Success)
	require.Contains(t, results[1].Error, "already spent")
}

// outputOf() is the claimed output of the asset
func outputOf(r *SwapClaimResult, asset AssetId) Value {
	if r.Output1.AssetId == asset {
		return r.Output1
	}
	return r.Output2
}

func TestNewSwap(t *testing.T) {
	for _, assets := range [][2]AssetId{{testAssetA, testAssetB}, {testAssetB, testAssetA}} {
		got, err := NewSwap(assets[0], assets[1], 25)
		require.NoError(t, err)
		require.Equal(t, newTestSwap(t, assets[0], assets[1], 25), got)
	}
	_, err := NewSwap(testAssetA, testAssetB, 0)
	require.ErrorIs(t, err, ErrInvalidSwap("swap has no input"))
}
