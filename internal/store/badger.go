package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v3"
	gocid "github.com/ipfs/go-cid"

	"github.com/systemshift/memex-vcs/internal/dag"
)

// Badger keeps elements in a badger key-value database: key bytes to
// element envelope.
type Badger struct {
	db *badger.DB
}

var _ Store = (*Badger)(nil)

// OpenBadger creates or opens the database in dir.
func OpenBadger(dir string) (*Badger, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("open badger: mkdir: %w", err)
	}
	db, err := badger.Open(
		badger.DefaultOptions(dir).
			WithLoggingLevel(badger.WARNING),
	)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

// Load implements Store.
func (b *Badger) Load(ctx context.Context, key gocid.Cid) (*dag.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, e := txn.Get(key.Bytes())
		if e != nil {
			return e
		}
		data, e = item.ValueCopy(nil)
		return e
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, notFound(key)
		}
		return nil, fmt.Errorf("get element %s: %w", key, err)
	}
	return dag.UnmarshalElement(key, data)
}

// Store implements Store. The batch is written in one transaction, retried
// on conflicts.
func (b *Badger) Store(ctx context.Context, elements []*dag.Element) error {
	if err := verifyAll(elements); err != nil {
		return err
	}
	encoded := make([][]byte, len(elements))
	for i, e := range elements {
		data, err := dag.MarshalElement(e)
		if err != nil {
			return fmt.Errorf("encode element %s: %w", e.Key, err)
		}
		encoded[i] = data
	}

	return backoff.Retry(func() error {
		return b.db.Update(func(txn *badger.Txn) error {
			for i, e := range elements {
				k := e.Key.Bytes()
				_, err := txn.Get(k)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrKeyNotFound) {
					return backoff.Permanent(err)
				}
				if err := txn.Set(k, encoded[i]); err != nil {
					if errors.Is(err, badger.ErrConflict) {
						return err // retry
					}
					return backoff.Permanent(err)
				}
			}
			return nil
		})
	},
		backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(10*time.Millisecond), 10), ctx),
	)
}

// Has implements Store.
func (b *Badger) Has(ctx context.Context, key gocid.Cid) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, e := txn.Get(key.Bytes())
		return e
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Close implements Store.
func (b *Badger) Close() error {
	return b.db.Close()
}
