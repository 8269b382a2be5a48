package store

import (
	"bytes"
	"errors"

	"github.com/canopy-network/batchdex/lib"
	"github.com/dgraph-io/badger/v4"
)

const maxKeyBytes = 512 // maximum size of a key

// interface enforcement
var (
	_ lib.RWStoreI     = &badgerDB{}
	_ lib.BatchWriterI = &badgerDB{}
)

// badgerDB adapts a badger instance to the RWStoreI interface
// every call opens its own short lived badger transaction, so the wrapper is safe for concurrent readers
// iterators hold a read only transaction each until they are closed
type badgerDB struct {
	db *badger.DB
}

// Get() retrieves the committed value for a key; a missing key is (nil, nil)
func (b *badgerDB) Get(key []byte) (value []byte, err lib.ErrorI) {
	if e := b.db.View(func(txn *badger.Txn) error {
		item, er := txn.Get(key)
		if er != nil {
			return er
		}
		value, er = item.ValueCopy(nil)
		return er
	}); e != nil {
		if errors.Is(e, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, ErrStoreGet(e)
	}
	return
}

// Set() writes a single key in its own badger transaction
func (b *badgerDB) Set(key, value []byte) lib.ErrorI {
	if len(key) > maxKeyBytes {
		return ErrInvalidKey()
	}
	if err := b.db.Update(func(txn *badger.Txn) error { return txn.Set(key, value) }); err != nil {
		return ErrStoreSet(err)
	}
	return nil
}

// Delete() removes a single key in its own badger transaction
func (b *badgerDB) Delete(key []byte) lib.ErrorI {
	if err := b.db.Update(func(txn *badger.Txn) error { return txn.Delete(key) }); err != nil {
		return ErrStoreDelete(err)
	}
	return nil
}

// WriteBatch() applies all sets and deletes in one atomic badger transaction
func (b *badgerDB) WriteBatch(sets map[string][]byte, deletes []string) lib.ErrorI {
	err := b.db.Update(func(txn *badger.Txn) error {
		for k, v := range sets {
			if len(k) > maxKeyBytes {
				return ErrInvalidKey()
			}
			if err := txn.Set([]byte(k), v); err != nil {
				return err
			}
		}
		for _, k := range deletes {
			if err := txn.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ErrCommitDB(err)
	}
	return nil
}

// Iterator() walks the committed entries under the prefix in lexicographical order
func (b *badgerDB) Iterator(prefix []byte) (lib.IteratorI, lib.ErrorI) {
	return b.newIterator(prefix, false), nil
}

// RevIterator() walks the committed entries under the prefix in reverse lexicographical order
func (b *badgerDB) RevIterator(prefix []byte) (lib.IteratorI, lib.ErrorI) {
	return b.newIterator(prefix, true), nil
}

// newIterator() positions a badger iterator at the first key of the prefix in the direction of iteration
func (b *badgerDB) newIterator(prefix []byte, reverse bool) *badgerIterator {
	txn := b.db.NewTransaction(false)
	it := txn.NewIterator(badger.IteratorOptions{Reverse: reverse, PrefetchValues: true, PrefetchSize: 100})
	end := prefixEnd(prefix)
	switch {
	case !reverse:
		it.Seek(prefix)
	case end == nil:
		it.Rewind()
	default:
		// a reverse seek lands on the largest key <= end, which may be end itself
		it.Seek(end)
		if it.Valid() && !it.ValidForPrefix(prefix) {
			it.Next()
		}
	}
	return &badgerIterator{txn: txn, it: it, prefix: prefix}
}

// prefixEnd() is the smallest key greater than every key under the prefix, nil if there is none
func prefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// enforce the Iterator interface
var _ lib.IteratorI = &badgerIterator{}

// badgerIterator reads a snapshot of the committed entries; the snapshot is held until Close()
type badgerIterator struct {
	txn    *badger.Txn
	it     *badger.Iterator
	prefix []byte
}

func (b *badgerIterator) Valid() bool { return b.it.ValidForPrefix(b.prefix) }
func (b *badgerIterator) Next()       { b.it.Next() }
func (b *badgerIterator) Key() []byte { return b.it.Item().KeyCopy(nil) }

// Value() copies the value out of the snapshot; an unreadable value log entry reads as nil
func (b *badgerIterator) Value() []byte {
	v, err := b.it.Item().ValueCopy(nil)
	if err != nil {
		return nil
	}
	return v
}

func (b *badgerIterator) Close() {
	b.it.Close()
	b.txn.Discard()
}
