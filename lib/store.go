package lib

/* This file contains persistence module interfaces that are used throughout the app */

// StoreI defines the interface for the versioned ledger database
type StoreI interface {
	RWStoreI                              // reading and writing
	NewTxn() StoreTxnI                    // wrap the store in a discardable nested store
	Version() uint64                      // access the height of the store
	Commit() (version uint64, err ErrorI) // persist the latest writes and increment the height
	Close() ErrorI                        // gracefully stop the database
}

// StoreTxnI defines a nested, discardable write layer over a parent store
type StoreTxnI interface {
	RWStoreI
	Write() ErrorI // flush the operations to the parent
	Discard()      // drop the operations
}

// RWStoreI defines the Read/Write interface for basic db CRUD operations
type RWStoreI interface {
	RStoreI
	WStoreI
}

// WStoreI defines an interface for basic write operations
type WStoreI interface {
	Set(key, value []byte) ErrorI // set value bytes referenced by key bytes
	Delete(key []byte) ErrorI     // delete the key->value pair
}

// RStoreI defines an interface for basic read operations
type RStoreI interface {
	Get(key []byte) ([]byte, ErrorI)                // access value bytes using key bytes
	Iterator(prefix []byte) (IteratorI, ErrorI)     // iterate through the data one KV pair at a time in lexicographical order
	RevIterator(prefix []byte) (IteratorI, ErrorI) // iterate through the data one KV pair at a time in reverse lexicographical order
}

// IteratorI defines an interface for iterating over key-value pairs in a data store
type IteratorI interface {
	Valid() bool   // if the item the iterator is pointing at is valid
	Next()         // move to next item
	Key() []byte   // retrieve key
	Value() []byte // retrieve value
	Close()        // close the iterator when done, ensuring proper resource management
}

// BatchWriterI is implemented by stores that can apply many operations in one atomic write
type BatchWriterI interface {
	WriteBatch(sets map[string][]byte, deletes []string) ErrorI
}
