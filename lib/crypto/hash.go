package crypto

import (
	"encoding/hex"
	"hash"

	"golang.org/x/crypto/blake2b"
)

const (
	HashSize = blake2b.Size256
)

/*
	Hashing in batchdex is BLAKE2b-256 with a domain separation prefix
	The prefix ensures a position id can never collide with a note commitment or a nullifier key
	even when the preimages are byte identical
*/

const (
	DomainPositionId     = "batchdex/position_id"
	DomainNoteCommitment = "batchdex/note_commitment"
	DomainNullifier      = "batchdex/nullifier"
	DomainOutputData     = "batchdex/output_data"
	DomainSwapCommitment = "batchdex/swap_commitment"
)

// Hasher() returns the global hashing algorithm used
func Hasher() hash.Hash {
	h, _ := blake2b.New256(nil) // a nil key never errors
	return h
}

// Hash() executes the global hashing algorithm on input bytes
func Hash(msg []byte) []byte {
	h := blake2b.Sum256(msg)
	return h[:]
}

// HashWithDomain() hashes the domain tag followed by each part of the preimage
func HashWithDomain(domain string, parts ...[]byte) []byte {
	h := Hasher()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// HashString() returns the hex byte version of a hash
func HashString(msg []byte) string { return hex.EncodeToString(Hash(msg)) }
