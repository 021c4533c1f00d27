// Package store - BadgerStore provides persistent cache storage using BadgerDB.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore provides persistent storage using BadgerDB.
//
// Features:
//   - Native per-entry TTL (expired entries vanish without a reaper)
//   - Prefix scans for tenant-wide invalidation
//   - Crash-safe on-disk storage
//   - Thread-safe concurrent access
//
// Example:
//
//	st, err := store.NewBadgerStore("/var/lib/graphopt/cache")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer st.Close()
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a Badger-backed store at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Badger's default logger is too chatty for a cache

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreInMemory opens a Badger store with no disk backing.
// Useful for tests that need Badger semantics without filesystem state.
func NewBadgerStoreInMemory() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Get returns the value for key, or ErrNotFound if absent or expired.
func (b *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get %q: %w", key, err)
	}
	return value, nil
}

// Set stores value under key. Badger enforces the TTL natively.
func (b *BadgerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("badger set %q: %w", key, err)
	}
	return nil
}

// DeletePrefix removes all keys with the given prefix.
//
// Keys are collected in a read transaction and deleted in batches to stay
// under Badger's transaction size limits.
func (b *BadgerStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var keys [][]byte
	pfx := []byte(prefix)

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(pfx); it.ValidForPrefix(pfx); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("badger scan %q: %w", prefix, err)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("badger delete %q: %w", string(k), err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("badger delete flush: %w", err)
	}
	return len(keys), nil
}

// Close closes the underlying Badger database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
