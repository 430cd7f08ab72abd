package store

import (
	"context"

	gocid "github.com/ipfs/go-cid"

	"github.com/systemshift/memex-vcs/internal/dag"
)

// Result is the outcome of an asynchronous load.
type Result struct {
	Element *dag.Element
	Err     error
}

// LoadAsync starts s.Load in its own goroutine and returns a channel that
// receives exactly one result.
func LoadAsync(ctx context.Context, s Store, key gocid.Cid) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		e, err := s.Load(ctx, key)
		ch <- Result{Element: e, Err: err}
	}()
	return ch
}

// StoreAsync starts s.Store in its own goroutine and returns a channel that
// receives exactly one error (nil on success).
func StoreAsync(ctx context.Context, s Store, elements []*dag.Element) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- s.Store(ctx, elements)
	}()
	return ch
}

// Await waits for a pending load or for ctx to end.
func Await(ctx context.Context, pending <-chan Result) (*dag.Element, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-pending:
		return r.Element, r.Err
	}
}

// AwaitStore waits for a pending store or for ctx to end.
func AwaitStore(ctx context.Context, pending <-chan error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-pending:
		return err
	}
}
