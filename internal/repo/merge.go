package repo

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/systemshift/memex-vcs/internal/dag"
	"github.com/systemshift/memex-vcs/internal/errors"
	"github.com/systemshift/memex-vcs/internal/schema"
	"github.com/systemshift/memex-vcs/internal/store"
)

// MergeByRecencyComment is the comment of commits made by merging the heads
// of a diverged branch.
const MergeByRecencyComment = "Merged divergent branch by date keeping the newest value"

// mergeByRecency collapses the heads of a diverged branch into one commit.
// The newest head (the first one on ties) is the Parent and its object root
// is kept; every other head is recorded as MergedFrom.
func (r *Repository) mergeByRecency(ctx context.Context, b *schema.Branch) (*Object, error) {
	heads := make([]*Object, 0, len(b.CommitRefs))
	for _, l := range b.CommitRefs {
		c, err := r.Resolve(ctx, l)
		if err != nil {
			return nil, err
		}
		heads = append(heads, c)
	}
	winner := 0
	for i, h := range heads {
		if h.commit().Date.After(heads[winner].commit().Date) {
			winner = i
		}
	}

	w := heads[winner]
	cref := &schema.CommitRef{
		Date:       r.now(),
		Comment:    MergeByRecencyComment,
		ObjectRoot: w.commit().ObjectRoot.Persistent(),
	}
	cref.AddParent(schema.LinkTo(w.key, schema.CommitRefType), schema.Parent)
	for i, h := range heads {
		if i == winner {
			continue
		}
		cref.AddParent(schema.LinkTo(h.key, schema.CommitRefType), schema.MergedFrom)
	}

	c, e, err := r.hashCommit(cref)
	if err != nil {
		return nil, err
	}
	if err := store.AwaitStore(ctx, store.StoreAsync(ctx, r.store, []*dag.Element{e})); err != nil {
		r.forget(c)
		return nil, fmt.Errorf("store merge commit: %w", err)
	}
	c = r.registerCommit(c)
	r.setHeads(b, c)

	r.log.Info("merged diverged branch",
		zap.String("branch", r.branchName(b)),
		zap.Stringer("kept", w.key),
		zap.Stringer("commit", c.key),
		zap.Int("heads", len(heads)))
	return c, nil
}

// Merge registers the head(s) of branch, or the commit with key commitID,
// as merge sources of the next commit. Their object roots are loaded
// read-only and exposed through MergeObjects so that values can be copied
// into the workspace before committing.
//
// Merging the current branch into itself takes every head but the first
// and is only possible when the branch has diverged.
func (r *Repository) Merge(ctx context.Context, branch, commitID string) error {
	if r.Status() == Modified {
		r.log.Warn("merging into a workspace with uncommitted changes")
	}

	var targets []*Object
	switch {
	case commitID != "":
		id, err := dag.ParseKey(commitID)
		if err != nil {
			return err
		}
		c, err := r.Resolve(ctx, schema.LinkTo(id, schema.CommitRefType))
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return errors.ErrNotFound.Wrap(fmt.Errorf("commit %s", commitID))
			}
			return fmt.Errorf("merge %s: %w", commitID, err)
		}
		targets = append(targets, c)

	case branch != "":
		b := r.GetBranch(branch)
		if b == nil {
			return errors.ErrNotFound.Wrap(fmt.Errorf("branch %q", branch))
		}
		links := b.CommitRefs
		if r.current != nil && b.Key == r.current.Key {
			if len(links) < 2 {
				return errors.ErrInvalidState.Wrap(fmt.Errorf("cannot merge branch %s into itself unless it has diverged", r.branchName(b)))
			}
			links = links[1:]
		}
		if len(links) == 0 {
			return errors.ErrInvalidState.Wrap(fmt.Errorf("branch %s has no commits to merge", r.branchName(b)))
		}
		for _, l := range links {
			c, err := r.Resolve(ctx, l)
			if err != nil {
				return fmt.Errorf("merge %s: %w", branch, err)
			}
			targets = append(targets, c)
		}

	default:
		return errors.ErrInvalidArgument.Wrap(fmt.Errorf("merge needs a branch or a commit id"))
	}

	roots := make([]*Object, 0, len(targets))
	for _, c := range targets {
		root, err := r.loadMergeRoot(ctx, c)
		if err != nil {
			return fmt.Errorf("merge: %w", err)
		}
		roots = append(roots, root)
	}
	r.mergeFrom = append(r.mergeFrom, targets...)
	r.mergeRoots = append(r.mergeRoots, roots...)

	for _, c := range targets {
		r.log.Info("merging", zap.Stringer("commit", c.key))
	}
	return nil
}

// loadMergeRoot loads a fresh, read-only copy of the tree of commit c, even
// when the same tree is live in the workspace.
func (r *Repository) loadMergeRoot(ctx context.Context, c *Object) (*Object, error) {
	key := c.commit().ObjectRoot.Key
	if !key.Defined() {
		return nil, errors.ErrNotFound.Wrap(fmt.Errorf("commit %s has no object root", dag.ShortKey(c.key)))
	}
	e, err := r.load(ctx, key)
	if err != nil {
		return nil, err
	}
	root, err := r.parse(e)
	if err != nil {
		return nil, err
	}
	root.readOnly = true
	r.workspace[root.localID] = root
	if err := r.loadLinks(ctx, root); err != nil {
		return nil, err
	}
	return root, nil
}

// AdoptHeads copies the heads of branch in other into the branch with the
// same key here, with the element graphs behind them. Heads this repository
// does not have yet are added next to its own, so the branch diverges when
// both sides committed.
func (r *Repository) AdoptHeads(ctx context.Context, other *Repository, branch string) error {
	ob := other.GetBranch(branch)
	if ob == nil {
		return errors.ErrNotFound.Wrap(fmt.Errorf("branch %q in repository %s", branch, other.RepositoryKey()))
	}
	for _, l := range ob.CommitRefs {
		if err := store.Copy(ctx, other.store, r.store, l.Key); err != nil {
			return fmt.Errorf("adopt %s: %w", dag.ShortKey(l.Key), err)
		}
	}

	b := r.headRecord().Branch(ob.Key)
	if b == nil {
		b = &schema.Branch{Key: ob.Key}
		h := r.headRecord()
		h.Branches = append(h.Branches, b)
		if nick := other.NicknameOf(ob.Key); nick != "" {
			if _, taken := r.nicknames[nick]; !taken {
				r.nicknames[nick] = ob.Key
			}
		}
	}
	added := 0
	for _, l := range ob.CommitRefs {
		if b.HasHead(l) {
			continue
		}
		b.CommitRefs = append(b.CommitRefs, l.Persistent())
		added++
	}
	r.head.rebind()

	r.log.Info("adopted heads",
		zap.String("branch", r.branchName(b)),
		zap.String("from", other.RepositoryKey()),
		zap.Int("added", added),
		zap.Int("heads", len(b.CommitRefs)))
	return nil
}
