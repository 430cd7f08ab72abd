package repo

import (
	"context"
	"fmt"
	"time"

	gocid "github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"github.com/systemshift/memex-vcs/internal/dag"
	"github.com/systemshift/memex-vcs/internal/errors"
	"github.com/systemshift/memex-vcs/internal/schema"
)

// CheckoutOption selects a historical commit to check out.
type CheckoutOption func(*checkoutOptions)

type checkoutOptions struct {
	commitID     string
	olderThan    time.Time
	hasOlderThan bool
}

// AtCommit checks out the ancestor of the branch heads with key id.
func AtCommit(id string) CheckoutOption {
	return func(o *checkoutOptions) {
		o.commitID = id
	}
}

// OlderThan checks out the newest ancestor of the branch heads dated at or
// before t.
func OlderThan(t time.Time) CheckoutOption {
	return func(o *checkoutOptions) {
		o.olderThan = t
		o.hasOlderThan = true
	}
}

// Checkout replaces the workspace with the tree of a commit of branch and
// returns its root.
//
// Without options the branch head is checked out and the workspace stays
// attached to the branch; a diverged branch is first merged by recency. With
// AtCommit or OlderThan the workspace enters detached-head state: the root
// is read-only and commits are refused until a new branch is created.
//
// The previous workspace objects are dropped only once the new tree is fully
// loaded.
func (r *Repository) Checkout(ctx context.Context, branch string, opts ...CheckoutOption) (*Object, error) {
	if r.Status() == Modified {
		return nil, errors.ErrInvalidState.Wrap(fmt.Errorf("cannot checkout with uncommitted changes, commit or reset first"))
	}
	var o checkoutOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.commitID != "" && o.hasOlderThan {
		return nil, errors.ErrInvalidArgument.Wrap(fmt.Errorf("checkout by commit id and by date are exclusive"))
	}
	if branch == "" {
		return nil, errors.ErrInvalidArgument.Wrap(fmt.Errorf("no branch given"))
	}
	b := r.GetBranch(branch)
	if b == nil {
		return nil, errors.ErrNotFound.Wrap(fmt.Errorf("branch %q", branch))
	}
	if len(b.CommitRefs) == 0 {
		return nil, errors.ErrInvalidState.Wrap(fmt.Errorf("branch %s has no commits", r.branchName(b)))
	}

	var (
		c        *Object
		err      error
		detached bool
	)
	switch {
	case o.commitID != "":
		id, perr := dag.ParseKey(o.commitID)
		if perr != nil {
			return nil, perr
		}
		c, err = r.findCommit(ctx, b, id)
		detached = true
	case o.hasOlderThan:
		c, err = r.findOlderThan(ctx, b, o.olderThan)
		detached = true
	case len(b.CommitRefs) == 1:
		c, err = r.Resolve(ctx, b.CommitRefs[0])
	default:
		r.log.Warn("branch has diverged, merging heads by date",
			zap.String("branch", r.branchName(b)),
			zap.Int("heads", len(b.CommitRefs)))
		c, err = r.mergeByRecency(ctx, b)
	}
	if err != nil {
		return nil, fmt.Errorf("checkout %s: %w", branch, err)
	}

	root, err := r.materialize(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("checkout %s: %w", branch, err)
	}
	r.detached = detached
	if detached {
		link := c.linkTo()
		r.current = &schema.Branch{Key: DetachedBranchKey, CommitRefs: []*schema.Link{link}}
		c.parents[link] = struct{}{}
		r.setStructureReadOnly(root, true)
	} else {
		r.current = b
	}

	r.log.Info("checked out",
		zap.String("branch", r.branchName(b)),
		zap.Stringer("commit", c.key),
		zap.Bool("detached", detached))
	return root, nil
}

// findCommit searches breadth first from the heads of b, following only
// Parent edges, for the commit with key id.
func (r *Repository) findCommit(ctx context.Context, b *schema.Branch, id gocid.Cid) (*Object, error) {
	visited := make(map[string]bool)
	frontier := make([]*schema.Link, 0, len(b.CommitRefs))
	for _, l := range b.CommitRefs {
		if !visited[l.Key.KeyString()] {
			visited[l.Key.KeyString()] = true
			frontier = append(frontier, l)
		}
	}
	for len(frontier) > 0 {
		var next []*schema.Link
		for _, l := range frontier {
			c, err := r.Resolve(ctx, l)
			if err != nil {
				return nil, err
			}
			if c.key.Equals(id) {
				return c, nil
			}
			for _, p := range c.commit().Parents {
				if p.Relation != schema.Parent || p.Commit == nil {
					continue
				}
				k := p.Commit.Key.KeyString()
				if visited[k] {
					continue
				}
				visited[k] = true
				next = append(next, p.Commit)
			}
		}
		frontier = next
	}
	return nil, errors.ErrNotFound.Wrap(fmt.Errorf("commit %s is not an ancestor of branch %s", id, r.branchName(b)))
}

// findOlderThan searches from the heads of b for the newest commit dated at
// or before t. Commits dated after t are expanded into all their parents.
func (r *Repository) findOlderThan(ctx context.Context, b *schema.Branch, t time.Time) (*Object, error) {
	var best *Object
	visited := make(map[string]bool)
	frontier := make([]*schema.Link, 0, len(b.CommitRefs))
	for _, l := range b.CommitRefs {
		if !visited[l.Key.KeyString()] {
			visited[l.Key.KeyString()] = true
			frontier = append(frontier, l)
		}
	}
	for len(frontier) > 0 {
		var next []*schema.Link
		for _, l := range frontier {
			c, err := r.Resolve(ctx, l)
			if err != nil {
				return nil, err
			}
			date := c.commit().Date
			if !date.After(t) {
				if best == nil || date.After(best.commit().Date) {
					best = c
				}
				continue
			}
			for _, p := range c.commit().Parents {
				if p.Commit == nil {
					continue
				}
				k := p.Commit.Key.KeyString()
				if visited[k] {
					continue
				}
				visited[k] = true
				next = append(next, p.Commit)
			}
		}
		frontier = next
	}
	if best == nil {
		return nil, errors.ErrNotFound.Wrap(fmt.Errorf("no commit of branch %s is dated at or before %s",
			r.branchName(b), t.Format(time.RFC3339)))
	}
	return best, nil
}

// materialize loads the whole tree of commit c into a fresh workspace and
// swaps it in. On failure the current workspace is left as it was.
func (r *Repository) materialize(ctx context.Context, c *Object) (*Object, error) {
	prevWorkspace, prevRoot := r.workspace, r.root
	r.workspace = make(map[uint64]*Object)
	r.root = nil

	root, err := r.Resolve(ctx, c.commit().ObjectRoot)
	if err == nil && root == nil {
		err = errors.ErrNotFound.Wrap(fmt.Errorf("commit %s has no object root", dag.ShortKey(c.key)))
	}
	if err == nil {
		err = r.loadLinks(ctx, root)
	}
	if err != nil {
		r.workspace, r.root = prevWorkspace, prevRoot
		return nil, err
	}

	for _, o := range prevWorkspace {
		o.invalid = true
	}
	for l, owner := range r.owners {
		if owner.invalid {
			delete(r.owners, l)
		}
	}
	r.root = root
	r.mergeFrom, r.mergeRoots = nil, nil
	return root, nil
}

// Reset drops uncommitted changes by reloading the head of the current
// branch. It returns the new root, or nil when there was nothing to drop.
func (r *Repository) Reset(ctx context.Context) (*Object, error) {
	if r.Status() != Modified {
		return nil, nil
	}
	if r.current == nil || len(r.current.CommitRefs) == 0 {
		return nil, errors.ErrInvalidState.Wrap(fmt.Errorf("nothing committed to reset to"))
	}
	c, err := r.Resolve(ctx, r.current.CommitRefs[0])
	if err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	root, err := r.materialize(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	if r.detached {
		r.setStructureReadOnly(root, true)
	}
	r.log.Info("reset", zap.Stringer("commit", c.key))
	return root, nil
}
