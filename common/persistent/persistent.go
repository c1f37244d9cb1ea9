// Package persistent provides a badger backed key/value store shared by
// the services of a process, each confined to its own key prefix.
package persistent

import (
	"bytes"
	"errors"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"

	cmnBadger "github.com/kwvg/dash/common/badger"
	"github.com/kwvg/dash/common/cbor"
	"github.com/kwvg/dash/common/logging"
)

const dbName = "persistent-store.badger.db"

// ErrNotFound is returned when the requested key could not be found.
var ErrNotFound = errors.New("persistent: key not found in database")

// CommonStore is the interface to the common persistent store.
type CommonStore struct {
	logger *logging.Logger

	db *badger.DB
	gc *cmnBadger.GCWorker
}

// Close closes the database handle.
func (cs *CommonStore) Close() {
	cs.gc.Close()
	if err := cs.db.Close(); err != nil {
		cs.logger.Error("failed to close persistent store",
			"err", err,
		)
	}
}

// GetServiceStore returns a handle to a per-service bucket for the given
// service.
func (cs *CommonStore) GetServiceStore(name string) (*ServiceStore, error) {
	if name == "" {
		return nil, errors.New("persistent: empty service name")
	}
	return &ServiceStore{
		store:  cs,
		prefix: append([]byte(name), '.'),
	}, nil
}

func newCommonStore(path string) (*CommonStore, error) {
	logger := logging.GetLogger("common/persistent")

	db, err := cmnBadger.Open(logger, path)
	if err != nil {
		return nil, err
	}

	return &CommonStore{
		logger: logger,
		db:     db,
		gc:     cmnBadger.NewGCWorker(logger, db),
	}, nil
}

// NewCommonStore opens the common persistent store in the provided data
// directory.
func NewCommonStore(dataDir string) (*CommonStore, error) {
	return newCommonStore(filepath.Join(dataDir, dbName))
}

// NewMemoryCommonStore opens a common store that keeps nothing on disk.
func NewMemoryCommonStore() (*CommonStore, error) {
	return newCommonStore("")
}

// ServiceStore is a storage wrapper that automatically namespaces keys
// with the service name.
type ServiceStore struct {
	store  *CommonStore
	prefix []byte
}

// GetCBOR is a helper for retrieving CBOR-serialized values.
func (ss *ServiceStore) GetCBOR(key []byte, value interface{}) error {
	return ss.store.db.View(func(tx *badger.Txn) error {
		item, txErr := tx.Get(ss.dbKey(key))
		switch txErr {
		case nil:
		case badger.ErrKeyNotFound:
			return ErrNotFound
		default:
			return txErr
		}
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, value)
		})
	})
}

// PutCBOR is a helper for storing CBOR-serialized values.
func (ss *ServiceStore) PutCBOR(key []byte, value interface{}) error {
	return ss.store.db.Update(func(tx *badger.Txn) error {
		return tx.Set(ss.dbKey(key), cbor.Marshal(value))
	})
}

// Delete removes the specified key from the service store.
func (ss *ServiceStore) Delete(key []byte) error {
	return ss.store.db.Update(func(tx *badger.Txn) error {
		switch err := tx.Delete(ss.dbKey(key)); err {
		case badger.ErrKeyNotFound:
			return ErrNotFound
		default:
			return err
		}
	})
}

// Iterate calls fn for every key of the service store in ascending key
// order. Keys are passed without the service prefix, and neither the key
// nor the value may be retained after fn returns.
func (ss *ServiceStore) Iterate(fn func(key, value []byte) error) error {
	return ss.store.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = ss.prefix
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := bytes.TrimPrefix(item.Key(), ss.prefix)
			if err := item.Value(func(val []byte) error {
				return fn(key, val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Last returns the greatest key of the service store, or ErrNotFound if
// the store is empty.
func (ss *ServiceStore) Last() ([]byte, error) {
	var last []byte
	err := ss.store.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := tx.NewIterator(opts)
		defer it.Close()

		// Reverse iteration seeks to the greatest key not above the seek
		// key, so seek to the successor of the prefix.
		seek := append([]byte{}, ss.prefix...)
		seek[len(seek)-1]++
		it.Seek(seek)
		if !it.ValidForPrefix(ss.prefix) {
			return ErrNotFound
		}
		last = append([]byte{}, bytes.TrimPrefix(it.Item().Key(), ss.prefix)...)
		return nil
	})
	return last, err
}

func (ss *ServiceStore) dbKey(key []byte) []byte {
	return append(append([]byte{}, ss.prefix...), key...)
}
