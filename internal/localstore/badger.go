package localstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Badger is the embedded on-disk driver.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a database in dir.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("localstore: open badger %s: %w", dir, err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return out, err
}

func (b *Badger) Put(_ context.Context, key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (b *Badger) Delete(_ context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// conflictAttempts bounds how often Update re-runs after another writer
// committed the same key first.
const conflictAttempts = 10

// Update runs fn inside a read-write transaction, re-reading and retrying on
// badger.ErrConflict.  fn may therefore run more than once.
func (b *Badger) Update(ctx context.Context, key string, fn UpdateFunc) error {
	var err error
	for range conflictAttempts {
		if err = b.update(key, fn); !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("localstore: update %s: %w", key, err)
}

func (b *Badger) update(key string, fn UpdateFunc) error {
	return b.db.Update(func(txn *badger.Txn) error {
		var old []byte
		exists := true
		item, err := txn.Get([]byte(key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			exists = false
		case err != nil:
			return err
		default:
			if old, err = item.ValueCopy(nil); err != nil {
				return err
			}
		}
		next, err := fn(old, exists)
		if err != nil {
			return err
		}
		if next == nil {
			if !exists {
				return nil
			}
			return txn.Delete([]byte(key))
		}
		return txn.Set([]byte(key), next)
	})
}

func (b *Badger) Scan(_ context.Context, prefix string) ([]Entry, error) {
	var out []Entry
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, Entry{Key: string(item.KeyCopy(nil)), Value: val})
		}
		return nil
	})
	return out, err
}

func (b *Badger) Clear(_ context.Context, prefix string) error {
	if prefix == "" {
		return b.db.DropAll()
	}
	return b.db.DropPrefix([]byte(prefix))
}

func (b *Badger) Close() error { return b.db.Close() }
