package store

import (
	"fmt"
	"testing"

	"github.com/canopy-network/batchdex/lib"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) lib.StoreI {
	s, err := NewStoreInMemory(lib.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTxnWriteSetGet(t *testing.T) {
	parent := newTestStore(t)
	test := NewTxn(parent)
	require.NoError(t, test.Set([]byte("1/a"), []byte("a")))
	// test get from ops before write()
	val, err := test.Get([]byte("1/a"))
	require.NoError(t, err)
	require.Equal(t, []byte("a"), val)
	// test get from parent before write()
	val, err = parent.Get([]byte("1/a"))
	require.NoError(t, err)
	require.Nil(t, val)
	require.NoError(t, test.Write())
	// test get from parent after write()
	val, err = parent.Get([]byte("1/a"))
	require.NoError(t, err)
	require.Equal(t, []byte("a"), val)
	// test get from the txn after write() falls through to the parent
	val, err = test.Get([]byte("1/a"))
	require.NoError(t, err)
	require.Equal(t, []byte("a"), val)
}

func TestTxnWriteDelete(t *testing.T) {
	parent := newTestStore(t)
	test := NewTxn(parent)
	require.NoError(t, test.Set([]byte("1/a"), []byte("a")))
	require.NoError(t, test.Write())
	require.NoError(t, test.Delete([]byte("1/a")))
	// the delete shadows the parent
	val, err := test.Get([]byte("1/a"))
	require.NoError(t, err)
	require.Nil(t, val)
	val, err = parent.Get([]byte("1/a"))
	require.NoError(t, err)
	require.Equal(t, []byte("a"), val)
	require.NoError(t, test.Write())
	val, err = parent.Get([]byte("1/a"))
	require.NoError(t, err)
	require.Nil(t, val)
}

func TestTxnDiscard(t *testing.T) {
	parent := newTestStore(t)
	test := NewTxn(parent)
	require.NoError(t, test.Set([]byte("k"), []byte("v")))
	test.Discard()
	val, err := test.Get([]byte("k"))
	require.NoError(t, err)
	require.Nil(t, val)
	require.NoError(t, test.Write())
	val, err = parent.Get([]byte("k"))
	require.NoError(t, err)
	require.Nil(t, val)
}

func TestTxnIterator(t *testing.T) {
	tests := []struct {
		name     string
		detail   string
		parent   map[string]string
		commit   bool // persist the parent entries to the database
		sets     map[string]string
		deletes  []string
		prefix   string
		reverse  bool
		expected []string
	}{
		{
			name:     "parent only",
			detail:   "no pending ops returns the parent view",
			parent:   map[string]string{"a/1": "1", "a/2": "2", "b/1": "3"},
			prefix:   "a/",
			expected: []string{"a/1", "a/2"},
		},
		{
			name:     "interleaved",
			detail:   "pending sets interleave with the parent in key order",
			parent:   map[string]string{"a/1": "1", "a/3": "3"},
			commit:   true,
			sets:     map[string]string{"a/2": "2", "a/4": "4"},
			prefix:   "a/",
			expected: []string{"a/1", "a/2", "a/3", "a/4"},
		},
		{
			name:     "deletes shadow",
			detail:   "a pending delete hides the parent entry",
			parent:   map[string]string{"a/1": "1", "a/2": "2", "a/3": "3"},
			deletes:  []string{"a/2"},
			prefix:   "a/",
			expected: []string{"a/1", "a/3"},
		},
		{
			name:     "reverse",
			detail:   "reverse iteration yields descending keys",
			parent:   map[string]string{"a/1": "1", "a/3": "3"},
			sets:     map[string]string{"a/2": "2"},
			deletes:  []string{"a/3"},
			prefix:   "a/",
			reverse:  true,
			expected: []string{"a/2", "a/1"},
		},
		{
			name:     "reverse prefix bound",
			detail:   "reverse iteration starts below the first key past the prefix",
			parent:   map[string]string{"a/1": "1", "a/9": "9", "a0": "x", "b/1": "y"},
			commit:   true,
			prefix:   "a/",
			reverse:  true,
			expected: []string{"a/9", "a/1"},
		},
		{
			name:     "reverse max prefix",
			detail:   "a prefix of 0xff bytes iterates in reverse from the last key",
			parent:   map[string]string{"\xff\xff1": "1", "\xff\xff2": "2", "\xfe": "x"},
			commit:   true,
			prefix:   "\xff\xff",
			reverse:  true,
			expected: []string{"\xff\xff2", "\xff\xff1"},
		},
		{
			name:     "nil prefix",
			detail:   "an empty prefix iterates every key",
			parent:   map[string]string{"x": "1"},
			sets:     map[string]string{"y": "2"},
			prefix:   "",
			expected: []string{"x", "y"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			parent := newTestStore(t)
			for k, v := range test.parent {
				require.NoError(t, parent.Set([]byte(k), []byte(v)))
			}
			if test.commit {
				_, err := parent.Commit()
				require.NoError(t, err)
			}
			txn := NewTxn(parent)
			for k, v := range test.sets {
				require.NoError(t, txn.Set([]byte(k), []byte(v)))
			}
			for _, k := range test.deletes {
				require.NoError(t, txn.Delete([]byte(k)))
			}
			var (
				it  lib.IteratorI
				err lib.ErrorI
			)
			if test.reverse {
				it, err = txn.RevIterator([]byte(test.prefix))
			} else {
				it, err = txn.Iterator([]byte(test.prefix))
			}
			require.NoError(t, err)
			defer it.Close()
			var got []string
			for ; it.Valid(); it.Next() {
				got = append(got, string(it.Key()))
			}
			require.Equal(t, test.expected, got)
		})
	}
}

func TestTxnUnorderedWrites(t *testing.T) {
	parent := newTestStore(t)
	for i := 0; i < 100; i += 2 {
		require.NoError(t, parent.Set([]byte(fmt.Sprintf("k/%03d", i)), []byte{byte(i)}))
	}
	txn := NewTxn(parent)
	// odd keys descending, interleaved with iterations that sort the keys written so far
	var expected []string
	for i := 99; i > 0; i -= 2 {
		require.NoError(t, txn.Set([]byte(fmt.Sprintf("k/%03d", i)), []byte{byte(i)}))
		if i%10 == 1 {
			it, err := txn.Iterator([]byte("k/"))
			require.NoError(t, err)
			it.Close()
		}
	}
	// deleting every multiple of 3 shadows both sides
	for i := 0; i < 100; i++ {
		if i%3 == 0 {
			require.NoError(t, txn.Delete([]byte(fmt.Sprintf("k/%03d", i))))
			continue
		}
		expected = append(expected, fmt.Sprintf("k/%03d", i))
	}
	it, err := txn.Iterator([]byte("k/"))
	require.NoError(t, err)
	var got []string
	for ; it.Valid(); it.Next() {
		got = append(got, string(it.Key()))
		// every key holds its own number
		require.Equal(t, fmt.Sprintf("k/%03d", it.Value()[0]), string(it.Key()))
	}
	it.Close()
	require.Equal(t, expected, got)
	// a nested txn without batch support applies in key order
	child := NewTxn(txn)
	require.NoError(t, child.Set([]byte("k/200"), nil))
	require.NoError(t, child.Set([]byte("k/150"), nil))
	require.NoError(t, child.Write())
	require.NoError(t, txn.Write())
	it, err = parent.Iterator([]byte("k/"))
	require.NoError(t, err)
	defer it.Close()
	got = got[:0]
	for ; it.Valid(); it.Next() {
		got = append(got, string(it.Key()))
	}
	require.Equal(t, append(expected, "k/150", "k/200"), got)
}

func TestTxnIteratorSnapshot(t *testing.T) {
	parent := newTestStore(t)
	require.NoError(t, parent.Set([]byte("a/1"), []byte("1")))
	_, err := parent.Commit()
	require.NoError(t, err)
	txn := NewTxn(parent)
	require.NoError(t, txn.Set([]byte("a/2"), []byte("2")))
	it, err := txn.Iterator([]byte("a/"))
	require.NoError(t, err)
	defer it.Close()
	// writes after the iterator is created are not observed on either side
	require.NoError(t, txn.Set([]byte("a/3"), []byte("3")))
	require.NoError(t, txn.Delete([]byte("a/2")))
	require.NoError(t, parent.Set([]byte("a/4"), []byte("4")))
	_, err = parent.Commit()
	require.NoError(t, err)
	var got []string
	for ; it.Valid(); it.Next() {
		got = append(got, string(it.Key())+"="+string(it.Value()))
	}
	require.Equal(t, []string{"a/1=1", "a/2=2"}, got)
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
			prefix:   []byte("a/"),
			expected: []byte("a0"),
		},
		{
			name:     "carry",
			detail:   "trailing 0xff bytes are dropped before incrementing",
			prefix:   []byte{0x01, 0xFF, 0xFF},
			expected: []byte{0x02},
		},
		{
			name:   "no end",
			detail: "a prefix of only 0xff bytes has no upper bound",
			prefix: []byte{0xFF, 0xFF},
		},
		{
			name:   "empty",
			detail: "an empty prefix has no upper bound",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, prefixEnd(test.prefix))
		})
	}
}

func TestStoreCommit(t *testing.T) {
	s := newTestStore(t)
	require.Zero(t, s.Version())
	// pending writes are visible before the commit
	require.NoError(t, s.Set([]byte("a"), []byte("1")))
	version, err := s.Commit()
	require.NoError(t, err)
	require.Equal(t, uint64(1), version)
	require.Equal(t, uint64(1), s.Version())
	// the committed value survives the commit
	val, err := s.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), val)
	// nested txns flush into the store
	for i := 0; i < 3; i++ {
		child := s.NewTxn()
		require.NoError(t, child.Set([]byte(fmt.Sprintf("b/%d", i)), []byte{byte(i)}))
		require.NoError(t, child.Write())
	}
	_, err = s.Commit()
	require.NoError(t, err)
	it, err := s.Iterator([]byte("b/"))
	require.NoError(t, err)
	defer it.Close()
	count := 0
	for ; it.Valid(); it.Next() {
		count++
	}
	require.Equal(t, 3, count)
}
