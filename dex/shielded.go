package dex

import (
	"bytes"
	"fmt"

	"github.com/canopy-network/batchdex/lib"
	"github.com/canopy-network/batchdex/lib/crypto"
)

/*
	The shielded pool and the proof system are collaborators of the dex, not part of it

	The dex only needs a nullifier set that rejects replays, a record of the swaps awaiting a claim,
	and a way to commit the notes it mints for claimants
	All of them are kept in the same store as the rest of the ledger by default, so a claim is atomic with its block
*/

// ShieldedPool is the nullifier set and note commitment tree consumed by swap claims
type ShieldedPool interface {
	// IsSpent() is true if the nullifier was already recorded
	IsSpent(store lib.RWStoreI, nullifier []byte) (bool, lib.ErrorI)
	// RecordNullifier() marks the nullifier spent, failing with ErrAlreadySpent on replay
	RecordNullifier(store lib.RWStoreI, nullifier []byte) lib.ErrorI
	// NoteCommitmentFor() mints a note for the recipient and returns its commitment
	NoteCommitmentFor(store lib.RWStoreI, output Value, recipient, blinding []byte) ([]byte, lib.ErrorI)
	// RecordSwapCommitment() adds a swap to the set awaiting a claim
	RecordSwapCommitment(store lib.RWStoreI, commitment []byte, record SwapRecord) lib.ErrorI
	// SwapCommitment() looks up a swap by commitment, returning nil if it was never recorded
	SwapCommitment(store lib.RWStoreI, commitment []byte) (*SwapRecord, lib.ErrorI)
	// ClaimSwapCommitment() marks the swap claimed, failing if it is unknown or was already claimed
	ClaimSwapCommitment(store lib.RWStoreI, commitment []byte) lib.ErrorI
}

// SwapRecord is what a swap commitment opens to
type SwapRecord struct {
	Height  uint64      `json:"height"`  // the height of the batch the swap joined
	Pair    TradingPair `json:"pair"`    // the pair of the batch
	Delta1I uint64      `json:"delta1I"` // the asset 1 input
	Delta2I uint64      `json:"delta2I"` // the asset 2 input
	Claimed bool        `json:"claimed"`
}

// ProofVerifier verifies the zero knowledge proofs attached to swaps and swap claims
type ProofVerifier interface {
	VerifySpendProof(proof, publicInput []byte) lib.ErrorI
	VerifyOutputProof(proof, publicInput []byte) lib.ErrorI
	VerifySwapClaim(proof, publicInput []byte) lib.ErrorI
}

var _ ShieldedPool = StoreShieldedPool{}

// StoreShieldedPool keeps nullifiers and note commitments under the dex prefixes of the store
type StoreShieldedPool struct{}

func (StoreShieldedPool) IsSpent(store lib.RWStoreI, nullifier []byte) (bool, lib.ErrorI) {
	bz, err := store.Get(KeyForNullifier(nullifier))
	if err != nil {
		return false, err
	}
	return bz != nil, nil
}

func (p StoreShieldedPool) RecordNullifier(store lib.RWStoreI, nullifier []byte) lib.ErrorI {
	spent, err := p.IsSpent(store, nullifier)
	if err != nil {
		return err
	}
	if spent {
		return ErrAlreadySpent(nullifier)
	}
	return store.Set(KeyForNullifier(nullifier), []byte{1})
}

func (StoreShieldedPool) NoteCommitmentFor(store lib.RWStoreI, output Value, recipient, blinding []byte) ([]byte, lib.ErrorI) {
	commitment := crypto.HashWithDomain(crypto.DomainNoteCommitment,
		output.AssetId.Bytes(), lib.FormatUint64(output.Amount), recipient, blinding)
	bz, err := lib.MarshalJSON(output)
	if err != nil {
		return nil, err
	}
	if err = store.Set(KeyForNoteCommitment(commitment), bz); err != nil {
		return nil, err
	}
	return commitment, nil
}

func (StoreShieldedPool) RecordSwapCommitment(store lib.RWStoreI, commitment []byte, record SwapRecord) lib.ErrorI {
	bz, err := lib.MarshalJSON(record)
	if err != nil {
		return err
	}
	return store.Set(KeyForSwapCommitment(commitment), bz)
}

func (StoreShieldedPool) SwapCommitment(store lib.RWStoreI, commitment []byte) (*SwapRecord, lib.ErrorI) {
	bz, err := store.Get(KeyForSwapCommitment(commitment))
	if err != nil || bz == nil {
		return nil, err
	}
	record := new(SwapRecord)
	if err = lib.UnmarshalJSON(bz, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (p StoreShieldedPool) ClaimSwapCommitment(store lib.RWStoreI, commitment []byte) lib.ErrorI {
	record, err := p.SwapCommitment(store, commitment)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrSwapNotFound(commitment)
	}
	if record.Claimed {
		return ErrSwapAlreadyClaimed(commitment)
	}
	record.Claimed = true
	return p.RecordSwapCommitment(store, commitment, *record)
}

// proof verifiers selectable by name from the dex config
const (
	AcceptAllVerifierName  = "accept-all"
	CommitmentVerifierName = "commitment"
)

// NewProofVerifier() returns the verifier configured by name, an empty name accepts all proofs
func NewProofVerifier(name string) (ProofVerifier, lib.ErrorI) {
	switch name {
	case "", AcceptAllVerifierName:
		return AcceptAllVerifier{}, nil
	case CommitmentVerifierName:
		return CommitmentVerifier{}, nil
	default:
		return nil, ErrInvalidParams(fmt.Sprintf("unknown proof verifier %q", name))
	}
}

var _ ProofVerifier = AcceptAllVerifier{}

// AcceptAllVerifier accepts every proof, used when proofs are verified upstream of the engine
type AcceptAllVerifier struct{}

func (AcceptAllVerifier) VerifySpendProof(_, _ []byte) lib.ErrorI  { return nil }
func (AcceptAllVerifier) VerifyOutputProof(_, _ []byte) lib.ErrorI { return nil }
func (AcceptAllVerifier) VerifySwapClaim(_, _ []byte) lib.ErrorI   { return nil }

var _ ProofVerifier = CommitmentVerifier{}

// CommitmentVerifier accepts a proof only if it's the hash of its public input
// it stands in for a real proof system in tests and devnets
type CommitmentVerifier struct{}

func (CommitmentVerifier) VerifySpendProof(proof, publicInput []byte) lib.ErrorI {
	return verifyCommitment("spend", proof, publicInput)
}

func (CommitmentVerifier) VerifyOutputProof(proof, publicInput []byte) lib.ErrorI {
	return verifyCommitment("output", proof, publicInput)
}

func (CommitmentVerifier) VerifySwapClaim(proof, publicInput []byte) lib.ErrorI {
	return verifyCommitment("swap claim", proof, publicInput)
}

// CommitmentProof() is the proof a CommitmentVerifier accepts for the public input
func CommitmentProof(publicInput []byte) []byte { return crypto.Hash(publicInput) }

func verifyCommitment(kind string, proof, publicInput []byte) lib.ErrorI {
	if !bytes.Equal(proof, CommitmentProof(publicInput)) {
		return ErrInvalidProof(kind + " proof does not open to the public input")
	}
	return nil
}
