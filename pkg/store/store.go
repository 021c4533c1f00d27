// Package store provides the key-value store interface and implementations
// backing the graphopt query result cache.
//
// The store is a keyed blob store: values are opaque byte slices (the cache
// layer owns serialization, compression, and encryption). Two implementations
// are provided:
//   - MemoryStore: In-memory storage for testing and embedded use
//   - BadgerStore: Persistent disk-based storage with native TTL support
//
// All implementations are thread-safe and support concurrent operations.
//
// Example Usage:
//
//	// In-memory store (tests, single process)
//	st := store.NewMemoryStore()
//	defer st.Close()
//
//	st.Set(ctx, "graph:query_result:t1:abc", payload, 5*time.Minute)
//
//	value, err := st.Get(ctx, "graph:query_result:t1:abc")
//	if errors.Is(err, store.ErrNotFound) {
//		// cache miss
//	}
//
//	// Tenant-wide invalidation
//	n, _ := st.DeletePrefix(ctx, "graph:query_result:t1:")
//	fmt.Printf("evicted %d entries\n", n)
package store

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound = errors.New("store: key not found")
	ErrClosed   = errors.New("store: store is closed")
)

// Store is the keyed blob store contract used by the query cache.
//
// Semantics:
//   - Get returns ErrNotFound for absent or expired keys.
//   - Set overwrites unconditionally (last write wins); ttl <= 0 means
//     no expiration.
//   - DeletePrefix removes every key with the given prefix and returns
//     the number of keys removed.
//
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Close() error
}
