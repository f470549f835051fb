// internal/localstore/store.go
//
// Client-local key-value state.
//
// Context
// -------
// Notifications, like and follow counters, and comment threads are not part
// of the REST backend.  They live in a Store: a small key-value abstraction
// with explicit eviction (Delete) and clear (Clear) semantics.  Three drivers
// exist:
//
//   - badger  – embedded, on-disk, default for single-node deployments.
//   - mysql   – shared table via sqlx, for operators who need the state
//     consistent across devices and replicas.
//   - memory  – bounded LRU, for tests and throwaway runs.  Entries beyond
//     Capacity are evicted least-recently-used first.
//
// Keys are plain strings with "/"-separated prefixes; Scan returns entries in
// key order, which the notification log relies on for append ordering.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package localstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("localstore: key not found")

// Entry is one key/value pair returned by Scan.
type Entry struct {
	Key   string
	Value []byte
}

// UpdateFunc receives the current value (nil, false when absent) and returns
// the new value.  Returning a nil slice deletes the key.  Drivers may call it
// again after a write conflict, so it must not have side effects.
type UpdateFunc func(old []byte, exists bool) ([]byte, error)

// Store is the driver contract.  Implementations are safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Scan(ctx context.Context, prefix string) ([]Entry, error)
	// Clear removes every key under prefix; "" clears the whole store.
	Clear(ctx context.Context, prefix string) error
	Close() error
}

// Options selects and configures a driver.
type Options struct {
	Driver   string // badger | mysql | memory
	Path     string // badger directory
	DSN      string // mysql DSN
	Capacity int    // memory driver bound
}

// Open returns the configured driver.
func Open(opts Options) (Store, error) {
	switch opts.Driver {
	case "", "badger":
		if opts.Path == "" {
			return nil, errors.New("localstore: badger driver needs a path")
		}
		return OpenBadger(opts.Path)
	case "mysql":
		if opts.DSN == "" {
			return nil, errors.New("localstore: mysql driver needs a DSN")
		}
		return OpenSQL(opts.DSN)
	case "memory":
		return NewMemory(opts.Capacity), nil
	default:
		return nil, fmt.Errorf("localstore: unknown driver %q", opts.Driver)
	}
}
