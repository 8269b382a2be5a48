package store

import (
	"bytes"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/canopy-network/batchdex/lib"
)

// enforce the StoreTxnI interface
var _ lib.StoreTxnI = &Txn{}

/*
	Txn is a discardable write layer over a parent store
	Set and Delete operations are held in memory until Write() flushes them to the parent
	Reads merge the pending operations with the parent as if Write() had already been called

	Txns nest: the state machine wraps the block in one Txn, each action in a child Txn and each route fill
	in a grandchild, so any level can be rolled back without touching the levels above it

	CONTRACT:
	- not safe for concurrent writers; concurrent readers of a Txn that is not being written are fine
	- deleted keys shadow the parent until written
	- iterators snapshot the pending operations under their prefix on creation and don't observe later writes
	- iterators walk the parent lazily, so a scan that stops early never copies the rest of the prefix
	- new keys are appended unsorted and folded into the sorted list once, by the next iterator or Write()
*/

type Txn struct {
	parent   lib.RWStoreI  // store to Write() to
	ops      map[string]op // [string(key)] -> pending set or delete
	sorted   []string      // ops keys in lexicographical order, up to the last sort
	unsorted []string      // ops keys added since the last sort
	mu       sync.Mutex    // guards the sort for concurrent readers
}

// op is a pending operation; a delete carries no value
type op struct {
	value  []byte
	delete bool
}

// NewTxn() creates a new write layer over the parent
func NewTxn(parent lib.RWStoreI) *Txn {
	return &Txn{parent: parent, ops: make(map[string]op)}
}

// Get() reads the pending operation first and falls back to the parent
func (t *Txn) Get(key []byte) ([]byte, lib.ErrorI) {
	if o, found := t.ops[string(key)]; found {
		if o.delete {
			return nil, nil
		}
		return o.value, nil
	}
	return t.parent.Get(key)
}

// Set() records a pending write
func (t *Txn) Set(key, value []byte) lib.ErrorI {
	if len(key) > maxKeyBytes {
		return ErrInvalidKey()
	}
	t.update(string(key), op{value: bytes.Clone(value)})
	return nil
}

// Delete() records a pending delete
func (t *Txn) Delete(key []byte) lib.ErrorI {
	t.update(string(key), op{delete: true})
	return nil
}

// update() saves the operation; a new key waits in the unsorted list until the next sort
func (t *Txn) update(key string, o op) {
	if _, found := t.ops[key]; !found {
		t.unsorted = append(t.unsorted, key)
	}
	t.ops[key] = o
}

// sortKeys() folds the keys added since the last sort into the sorted list with one merge
func (t *Txn) sortKeys() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.unsorted) == 0 {
		return
	}
	slices.Sort(t.unsorted)
	merged := make([]string, 0, len(t.sorted)+len(t.unsorted))
	i, j := 0, 0
	for i < len(t.sorted) && j < len(t.unsorted) {
		if t.sorted[i] < t.unsorted[j] {
			merged = append(merged, t.sorted[i])
			i++
		} else {
			merged = append(merged, t.unsorted[j])
			j++
		}
	}
	merged = append(merged, t.sorted[i:]...)
	t.sorted, t.unsorted = append(merged, t.unsorted[j:]...), t.unsorted[:0]
}

// Iterator() merges the pending operations with the parent in lexicographical order
func (t *Txn) Iterator(prefix []byte) (lib.IteratorI, lib.ErrorI) {
	parent, err := t.parent.Iterator(prefix)
	if err != nil {
		return nil, err
	}
	return newTxnIterator(parent, t.pending(prefix, false), false), nil
}

// RevIterator() merges the pending operations with the parent in reverse lexicographical order
func (t *Txn) RevIterator(prefix []byte) (lib.IteratorI, lib.ErrorI) {
	parent, err := t.parent.RevIterator(prefix)
	if err != nil {
		return nil, err
	}
	return newTxnIterator(parent, t.pending(prefix, true), true), nil
}

// pending() snapshots the operations under the prefix in iteration order
func (t *Txn) pending(prefix []byte, reverse bool) (out []pendingOp) {
	t.sortKeys()
	p := string(prefix)
	for i := sort.SearchStrings(t.sorted, p); i < len(t.sorted) && strings.HasPrefix(t.sorted[i], p); i++ {
		out = append(out, pendingOp{key: t.sorted[i], op: t.ops[t.sorted[i]]})
	}
	if reverse {
		slices.Reverse(out)
	}
	return
}

// Write() flushes the pending operations to the parent and clears them
// a parent that supports batches receives all operations in one atomic write
func (t *Txn) Write() lib.ErrorI {
	if bw, ok := t.parent.(lib.BatchWriterI); ok {
		sets, deletes := make(map[string][]byte, len(t.ops)), make([]string, 0)
		for k, o := range t.ops {
			if o.delete {
				deletes = append(deletes, k)
			} else {
				sets[k] = o.value
			}
		}
		if err := bw.WriteBatch(sets, deletes); err != nil {
			return err
		}
	} else {
		// apply in key order so nested writes are deterministic
		t.sortKeys()
		for _, k := range t.sorted {
			o := t.ops[k]
			if o.delete {
				if err := t.parent.Delete([]byte(k)); err != nil {
					return err
				}
				continue
			}
			if err := t.parent.Set([]byte(k), o.value); err != nil {
				return err
			}
		}
	}
	t.reset()
	return nil
}

// Discard() drops the pending operations
func (t *Txn) Discard() { t.reset() }

func (t *Txn) reset() { t.ops, t.sorted, t.unsorted = make(map[string]op), nil, nil }

// pendingOp is a snapshotted operation of an iterator
type pendingOp struct {
	key string
	op
}

// enforce the Iterator interface
var _ lib.IteratorI = &txnIterator{}

// txnIterator walks the pending snapshot alongside the parent iterator, advancing the parent only as far as it is read
type txnIterator struct {
	parent     lib.IteratorI
	pending    []pendingOp // remaining operations, in iteration order
	reverse    bool
	key, value []byte
	valid      bool
}

func newTxnIterator(parent lib.IteratorI, pending []pendingOp, reverse bool) *txnIterator {
	it := &txnIterator{parent: parent, pending: pending, reverse: reverse}
	it.Next()
	return it
}

// Next() moves to the next visible key; on equal keys the pending op shadows the parent
func (t *txnIterator) Next() {
	for {
		pendingValid, parentValid := len(t.pending) != 0, t.parent.Valid()
		if !pendingValid && !parentValid {
			t.key, t.value, t.valid = nil, nil, false
			return
		}
		// decide which side is next
		cmp := -1
		if !pendingValid {
			cmp = 1
		} else if parentValid {
			cmp = bytes.Compare([]byte(t.pending[0].key), t.parent.Key())
			if t.reverse {
				cmp = -cmp
			}
		}
		if cmp > 0 {
			t.key, t.value, t.valid = t.parent.Key(), t.parent.Value(), true
			t.parent.Next()
			return
		}
		if cmp == 0 {
			t.parent.Next()
		}
		o := t.pending[0]
		t.pending = t.pending[1:]
		if !o.delete {
			t.key, t.value, t.valid = []byte(o.key), o.value, true
			return
		}
	}
}

func (t *txnIterator) Valid() bool   { return t.valid }
func (t *txnIterator) Key() []byte   { return t.key }
func (t *txnIterator) Value() []byte { return t.value }
func (t *txnIterator) Close()        { t.parent.Close(); t.pending = nil }
