// Package store holds the content-addressed element stores backing a repository.
package store

import (
	"context"
	"fmt"

	gocid "github.com/ipfs/go-cid"

	"github.com/systemshift/memex-vcs/internal/dag"
	"github.com/systemshift/memex-vcs/internal/errors"
)

// Store maps content keys to elements. Elements are immutable: storing a key
// that is already present is a no-op.
type Store interface {
	// Load returns the element stored under key. It fails with
	// errors.ErrNotFound when the key is absent and with errors.ErrIntegrity
	// when the stored value does not hash to key.
	Load(ctx context.Context, key gocid.Cid) (*dag.Element, error)

	// Store persists elements. Each element must hash to its key.
	Store(ctx context.Context, elements []*dag.Element) error

	// Has reports whether key is present.
	Has(ctx context.Context, key gocid.Cid) (bool, error)

	Close() error
}

func notFound(key gocid.Cid) error {
	return errors.ErrNotFound.Wrap(fmt.Errorf("element %s", key))
}

func verifyAll(elements []*dag.Element) error {
	for _, e := range elements {
		if e == nil {
			return errors.ErrInvalidArgument.Wrap(fmt.Errorf("nil element"))
		}
		if err := e.Verify(); err != nil {
			return err
		}
	}
	return nil
}
