package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndString(t *testing.T) {
	// generate arbitrary data
	msg := make([]byte, 100)
	_, err := rand.Read(msg)
	require.NoError(t, err)
	// hash the data using the hasher
	hasher := Hasher()
	_, err = hasher.Write(msg)
	require.NoError(t, err)
	byHasher := hasher.Sum(nil)
	// hash the data directly
	hash := Hash(msg)
	// check equivalence
	require.Equal(t, hash, byHasher)
	// ensure size is correct
	require.Len(t, hash, HashSize)
	// validate string
	require.Equal(t, hex.EncodeToString(hash), HashString(msg))
}

func TestHashWithDomain(t *testing.T) {
	preimage := []byte("same bytes")
	// different domains never collide on the same preimage
	a := HashWithDomain(DomainPositionId, preimage)
	b := HashWithDomain(DomainNullifier, preimage)
	require.NotEqual(t, a, b)
	// splitting the preimage into parts is equivalent to concatenation
	require.Equal(t, a, HashWithDomain(DomainPositionId, []byte("same "), []byte("bytes")))
	// the domain is a plain prefix
	require.Equal(t, a, Hash(append([]byte(DomainPositionId), preimage...)))
}
