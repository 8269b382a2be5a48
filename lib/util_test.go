package lib

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinLenPrefix(t *testing.T) {
	key := JoinLenPrefix([]byte("a"), nil, []byte("bc"), FormatUint64(7))
	segments := DecodeLengthPrefixed(key)
	require.Len(t, segments, 3)
	require.Equal(t, []byte("a"), segments[0])
	require.Equal(t, []byte("bc"), segments[1])
	require.EqualValues(t, 7, ParseUint64(segments[2]))
	require.Panics(t, func() { DecodeLengthPrefixed([]byte{5, 1}) })
}

func TestFormatUint64Ordering(t *testing.T) {
	// big endian keys sort like the numbers they encode
	for _, pair := range [][2]uint64{{1, 2}, {255, 256}, {1 << 32, 1<<32 + 1}} {
		require.Equal(t, -1, bytes.Compare(FormatUint64(pair[0]), FormatUint64(pair[1])))
	}
	require.Zero(t, ParseUint64([]byte{1}))
}

func TestPrefixEnd(t *testing.T) {
	tests := []struct {
		name     string
		detail   string
		prefix   []byte
		expected []byte
	}{
		{
			name:     "increment",
			detail:   "the last byte is incremented",
			prefix:   []byte{1, 2},
			expected: []byte{1, 3},
		},
		{
			name:     "carry",
			detail:   "trailing 0xff bytes are dropped",
			prefix:   []byte{1, 0xff},
			expected: []byte{2},
		},
		{
			name:     "unbounded",
			detail:   "an all 0xff prefix has no end",
			prefix:   []byte{0xff, 0xff},
			expected: nil,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, PrefixEnd(test.prefix))
		})
	}
}

func TestHexBytesJSON(t *testing.T) {
	bz, err := MarshalJSON(HexBytes{0xab, 0x01})
	require.NoError(t, err)
	require.Equal(t, `"ab01"`, string(bz))
	got := new(HexBytes)
	require.NoError(t, UnmarshalJSON(bz, got))
	require.Equal(t, HexBytes{0xab, 0x01}, *got)
	_, err = NewHexBytesFromString("zz")
	require.Error(t, err)
}
