package repo

import (
	"context"
	"fmt"

	gocid "github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"github.com/systemshift/memex-vcs/internal/dag"
	"github.com/systemshift/memex-vcs/internal/errors"
	"github.com/systemshift/memex-vcs/internal/schema"
	"github.com/systemshift/memex-vcs/internal/store"
)

// HeadElement serializes the branch table of the repository.
func (r *Repository) HeadElement() (*dag.Element, error) {
	return r.encode(r.head)
}

// SaveHead stores the branch table and returns its key, which Load accepts.
func (r *Repository) SaveHead(ctx context.Context) (gocid.Cid, error) {
	e, err := r.HeadElement()
	if err != nil {
		return gocid.Undef, fmt.Errorf("save head: %w", err)
	}
	if err := store.AwaitStore(ctx, store.StoreAsync(ctx, r.store, []*dag.Element{e})); err != nil {
		return gocid.Undef, fmt.Errorf("save head: %w", err)
	}
	r.log.Debug("saved head", zap.Stringer("key", e.Key))
	return e.Key, nil
}

// Load restores a repository from a branch table saved by SaveHead. The
// workspace is empty and no branch is checked out.
func Load(ctx context.Context, s store.Store, key gocid.Cid, opts ...Option) (*Repository, error) {
	r := newRepository(s, opts)
	e, err := r.load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load repository: %w", err)
	}
	if e.Type != schema.MutableHeadType {
		return nil, errors.ErrIntegrity.Wrap(fmt.Errorf("element %s is a %s, not a repository head",
			dag.ShortKey(key), r.registry.Name(e.Type)))
	}
	head, err := r.parse(e)
	if err != nil {
		return nil, fmt.Errorf("load repository: %w", err)
	}
	head.isRoot = false
	head.key = gocid.Undef
	head.modified = true
	r.head = head

	for nick, k := range r.nicknames {
		if r.headRecord().Branch(k) == nil {
			r.log.Warn("dropping nickname of unknown branch", zap.String("nickname", nick), zap.String("branch", k))
			delete(r.nicknames, nick)
		}
	}
	r.log.Debug("repository loaded",
		zap.String("repository", r.RepositoryKey()),
		zap.Int("branches", len(r.headRecord().Branches)))
	return r, nil
}
