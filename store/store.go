package store

import (
	"path/filepath"
	"sync"

	"github.com/canopy-network/batchdex/lib"
	"github.com/dgraph-io/badger/v4"
)

var (
	versionKey = lib.JoinLenPrefix([]byte("v/")) // the key holding the last committed version

	_ lib.StoreI = &Store{} // enforce the Store interface
)

/*
	Store is the versioned ledger database of the settlement engine

	It is a single BadgerDB instance with a pending write layer on top
	Every Set and Delete lands in the pending layer and Commit() persists the layer and the incremented version
	in one atomic badger transaction, so a crash can never leave a half written height behind

	The state machine reads and writes through Txns created with NewTxn(); the store itself only sees
	the writes of blocks that were fully applied
*/

type Store struct {
	version uint64      // version of the store
	db      *badger.DB  // underlying database
	*Txn                // the pending writes for the next version
	log     lib.LoggerI // logger
	mu      sync.Mutex  // serializes commits
}

// New() creates a new instance of a StoreI either in memory or an actual disk DB
func New(config lib.StoreConfig, log lib.LoggerI) (lib.StoreI, lib.ErrorI) {
	if config.InMemory {
		return NewStoreInMemory(log)
	}
	return NewStore(config, log)
}

// NewStore() opens (or creates) the on-disk database at <data-dir>/<db-name>
func NewStore(config lib.StoreConfig, log lib.LoggerI) (lib.StoreI, lib.ErrorI) {
	vlogSize, err := config.ValueLogFileSizeBytes()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(config.DataDirPath, config.DBName)
	db, e := badger.Open(badger.DefaultOptions(path).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(vlogSize))
	if e != nil {
		return nil, ErrOpenDB(e)
	}
	return newStore(db, log)
}

// NewStoreInMemory() creates a non-persistent database, used for tests and simulations
func NewStoreInMemory(log lib.LoggerI) (lib.StoreI, lib.ErrorI) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, ErrOpenDB(err)
	}
	return newStore(db, log)
}

// newStore() loads the last committed version and wraps the db
func newStore(db *badger.DB, log lib.LoggerI) (lib.StoreI, lib.ErrorI) {
	base := &badgerDB{db: db}
	bz, err := base.Get(versionKey)
	if err != nil {
		return nil, err
	}
	return &Store{
		version: lib.ParseUint64(bz),
		db:      db,
		Txn:     NewTxn(base),
		log:     log,
	}, nil
}

// NewTxn() wraps the store in a discardable write layer
func (s *Store) NewTxn() lib.StoreTxnI { return NewTxn(s) }

// Version() returns the last committed version
func (s *Store) Version() uint64 { return s.version }

// Commit() atomically persists the pending writes with the next version number
func (s *Store) Commit() (uint64, lib.ErrorI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.version + 1
	if err := s.Txn.Set(versionKey, lib.FormatUint64(next)); err != nil {
		return 0, err
	}
	if err := s.Txn.Write(); err != nil {
		s.Txn.Discard()
		return 0, err
	}
	s.version = next
	s.log.Debugf("Committed store version %d", next)
	return next, nil
}

// Close() discards pending writes and closes the database
func (s *Store) Close() lib.ErrorI {
	s.Txn.Discard()
	if err := s.db.Close(); err != nil {
		return ErrCloseDB(err)
	}
	return nil
}
