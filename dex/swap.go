package dex

import (
	"bytes"

	"github.com/canopy-network/batchdex/lib"
	"github.com/canopy-network/batchdex/lib/codec"
	"github.com/canopy-network/batchdex/lib/crypto"
)

// Swap is a request to trade against the batch of its pair in the current block
// the input is either delta 1 or delta 2, or both
type Swap struct {
	Pair    TradingPair  `json:"pair"`
	Delta1I uint64       `json:"delta1I"` // asset 1 to sell for asset 2
	Delta2I uint64       `json:"delta2I"` // asset 2 to sell for asset 1
	Proof   lib.HexBytes `json:"proof"`   // spend authorization of the input
}

// NewSwap() builds a swap selling amount of sell for buy
func NewSwap(sell, buy AssetId, amount uint64) (*Swap, lib.ErrorI) {
	pair, err := NewTradingPair(sell, buy)
	if err != nil {
		return nil, err
	}
	x := &Swap{Pair: pair}
	if pair.Asset1 == sell {
		x.Delta1I = amount
	} else {
		x.Delta2I = amount
	}
	return x, x.Check()
}

// Check() validates the swap statelessly
func (x *Swap) Check() lib.ErrorI {
	if err := x.Pair.Check(); err != nil {
		return err
	}
	if x.Delta1I == 0 && x.Delta2I == 0 {
		return ErrInvalidSwap("swap has no input")
	}
	if x.Delta1I > MaxReserveAmount || x.Delta2I > MaxReserveAmount {
		return ErrInvalidSwap("input exceeds the maximum amount")
	}
	return nil
}

// PublicInput() is what the spend proof of the swap attests to
func (x *Swap) PublicInput() []byte {
	return codec.NewEncoder().
		Bytes(1, x.Pair.Bytes()).
		Uint64(2, x.Delta1I).
		Uint64(3, x.Delta2I).
		Encode()
}

// HandleSwap() takes custody of the swap input, adds it to the pair's batch and returns the commitment it is claimed with
func (s *StateMachine) HandleSwap(x *Swap) (lib.HexBytes, lib.ErrorI) {
	if err := x.Check(); err != nil {
		return nil, err
	}
	if err := s.verifier.VerifySpendProof(x.Proof, x.PublicInput()); err != nil {
		return nil, err
	}
	// the input is held by the dex until the claim
	if err := s.vcbCreditAll(
		Value{Amount: x.Delta1I, AssetId: x.Pair.Asset1},
		Value{Amount: x.Delta2I, AssetId: x.Pair.Asset2},
	); err != nil {
		return nil, err
	}
	flow, err := s.GetSwapFlow(x.Pair)
	if err != nil {
		return nil, err
	}
	if flow.Delta1, err = addUint64(flow.Delta1, x.Delta1I); err != nil {
		return nil, err
	}
	if flow.Delta2, err = addUint64(flow.Delta2, x.Delta2I); err != nil {
		return nil, err
	}
	if err = s.setJSON(KeyForSwapFlow(x.Pair), flow); err != nil {
		return nil, err
	}
	commitment, err := s.commitSwap(x)
	if err != nil {
		return nil, err
	}
	if err = s.EventSwap(x, commitment); err != nil {
		return nil, err
	}
	s.log.Debugf("Queued swap of %d/%d on %s", x.Delta1I, x.Delta2I, x.Pair)
	return commitment, nil
}

// commitSwap() records the swap in the shielded pool under a commitment unique to its position in the block
func (s *StateMachine) commitSwap(x *Swap) (lib.HexBytes, lib.ErrorI) {
	bz, err := s.Get(KeyForSwapIndex())
	if err != nil {
		return nil, err
	}
	var index uint64
	if bz != nil {
		index = lib.ParseUint64(bz)
	}
	if err = s.Set(KeyForSwapIndex(), lib.FormatUint64(index+1)); err != nil {
		return nil, err
	}
	commitment := crypto.HashWithDomain(crypto.DomainSwapCommitment, x.PublicInput(), lib.FormatUint64(s.height), lib.FormatUint64(index))
	record := SwapRecord{Height: s.height, Pair: x.Pair, Delta1I: x.Delta1I, Delta2I: x.Delta2I}
	if err = s.pool.RecordSwapCommitment(s.store, commitment, record); err != nil {
		return nil, err
	}
	return commitment, nil
}

// SwapClaim redeems a swapper's share of a settled batch
type SwapClaim struct {
	Nullifier      lib.HexBytes        `json:"nullifier"`      // unique to the swap being claimed
	Pair           TradingPair         `json:"pair"`           // the pair the swap was made on
	Height         uint64              `json:"height"`         // the height the batch was settled at
	Delta1I        uint64              `json:"delta1I"`        // the swapper's asset 1 input
	Delta2I        uint64              `json:"delta2I"`        // the swapper's asset 2 input
	SwapCommitment lib.HexBytes        `json:"swapCommitment"` // returned when the swap was applied
	OutputData     BatchSwapOutputData `json:"outputData"`     // the output data the proof was made against
	Proof          lib.HexBytes        `json:"proof"`          // proves the claim matches a swap in the batch
	Recipient      lib.HexBytes        `json:"recipient"`      // the address the output notes are minted to
}

// PublicInput() binds the batch, the nullifier, the claimed amounts, the recipient and the swap
func (c *SwapClaim) PublicInput() []byte {
	return codec.NewEncoder().
		Bytes(1, c.OutputData.Commitment()).
		Bytes(2, c.Nullifier).
		Uint64(3, c.Delta1I).
		Uint64(4, c.Delta2I).
		Bytes(5, c.Recipient).
		Bytes(6, c.SwapCommitment).
		Encode()
}

// SwapClaimResult is what a successful claim minted
type SwapClaimResult struct {
	Output1         Value          `json:"output1"`
	Output2         Value          `json:"output2"`
	NoteCommitments []lib.HexBytes `json:"noteCommitments"`
}

// HandleSwapClaim() redeems the claimant's pro rata share of the batch, at most once per nullifier
func (s *StateMachine) HandleSwapClaim(c *SwapClaim) (*SwapClaimResult, lib.ErrorI) {
	if len(c.Nullifier) == 0 {
		return nil, ErrEmptyNullifier()
	}
	// a replay fails no matter what else the claim carries
	spent, err := s.pool.IsSpent(s.store, c.Nullifier)
	if err != nil {
		return nil, err
	}
	if spent {
		return nil, ErrAlreadySpent(c.Nullifier)
	}
	if err = c.Pair.Check(); err != nil {
		return nil, err
	}
	recorded, err := s.OutputData(c.Height, c.Pair)
	if err != nil {
		return nil, err
	}
	if recorded == nil {
		return nil, ErrOutputDataNotFound(c.Height, c.Pair)
	}
	if !bytes.Equal(recorded.Commitment(), c.OutputData.Commitment()) {
		return nil, ErrOutputDataMismatch()
	}
	// no single swap can have put more into the batch than the batch holds
	if c.Delta1I > recorded.Delta1 || c.Delta2I > recorded.Delta2 {
		return nil, ErrInvalidSwapClaim("claimed input exceeds the input of the batch")
	}
	if err = s.verifier.VerifySwapClaim(c.Proof, c.PublicInput()); err != nil {
		return nil, err
	}
	// the claim must redeem a recorded swap of this batch for exactly its input
	swap, err := s.pool.SwapCommitment(s.store, c.SwapCommitment)
	if err != nil {
		return nil, err
	}
	if swap == nil {
		return nil, ErrSwapNotFound(c.SwapCommitment)
	}
	if swap.Claimed {
		return nil, ErrSwapAlreadyClaimed(c.SwapCommitment)
	}
	if swap.Height != c.Height || swap.Pair != c.Pair || swap.Delta1I != c.Delta1I || swap.Delta2I != c.Delta2I {
		return nil, ErrInvalidSwapClaim("claim does not match the committed swap")
	}
	if err = s.pool.ClaimSwapCommitment(s.store, c.SwapCommitment); err != nil {
		return nil, err
	}
	if err = s.pool.RecordNullifier(s.store, c.Nullifier); err != nil {
		return nil, err
	}
	lambda1, lambda2 := recorded.ProRataOutputs(c.Delta1I, c.Delta2I)
	if err = s.addClaimedOutputs(recorded, lambda1, lambda2); err != nil {
		return nil, err
	}
	result := &SwapClaimResult{
		Output1: Value{Amount: lambda1, AssetId: c.Pair.Asset1},
		Output2: Value{Amount: lambda2, AssetId: c.Pair.Asset2},
	}
	// the nullifier blinds the notes so equal outputs to one recipient stay distinct
	for _, output := range []Value{result.Output1, result.Output2} {
		commitment, e := s.pool.NoteCommitmentFor(s.store, output, c.Recipient, c.Nullifier)
		if e != nil {
			return nil, e
		}
		result.NoteCommitments = append(result.NoteCommitments, commitment)
	}
	if err = s.EventSwapClaim(c, result); err != nil {
		return nil, err
	}
	s.log.Debugf("Claimed %d/%d from batch %s at height %d", lambda1, lambda2, c.Pair, c.Height)
	return result, nil
}

// claimedOutputs is the running total paid out of a batch by its claims
type claimedOutputs struct {
	Output1 uint64 `json:"output1"`
	Output2 uint64 `json:"output2"`
}

// addClaimedOutputs() adds a claim to the batch total, failing once the batch would pay out more than it settled
func (s *StateMachine) addClaimedOutputs(o *BatchSwapOutputData, output1, output2 uint64) (err lib.ErrorI) {
	key, claimed := KeyForClaimedOutputs(o.Height, o.TradingPair), claimedOutputs{}
	if _, err = s.getJSON(key, &claimed); err != nil {
		return
	}
	if claimed.Output1, err = addUint64(claimed.Output1, output1); err != nil {
		return
	}
	if claimed.Output2, err = addUint64(claimed.Output2, output2); err != nil {
		return
	}
	// lambda and unfilled were debited from the circuit breaker at settlement, so they bound the claims
	if claimed.Output1 > o.Lambda1+o.Unfilled1 || claimed.Output2 > o.Lambda2+o.Unfilled2 {
		return ErrInvalidSwapClaim("claims exceed the output of the batch")
	}
	return s.setJSON(key, claimed)
}
