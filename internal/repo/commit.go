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

// batch collects the elements of one commit in post-order.
type batch struct {
	objects  []*Object
	elements []*dag.Element
	seen     map[*Object]bool
}

func newBatch() *batch {
	return &batch{seen: make(map[*Object]bool)}
}

func (b *batch) add(o *Object, e *dag.Element) {
	b.objects = append(b.objects, o)
	b.elements = append(b.elements, e)
}

// Commit hashes every modified object below the workspace root, stores them
// with a new commit and makes that commit the single head of the current
// branch. It returns the commit key.
func (r *Repository) Commit(ctx context.Context, comment string) (gocid.Cid, error) {
	switch st := r.Status(); st {
	case Modified, UpToDate:
	default:
		return gocid.Undef, errors.ErrInvalidState.Wrap(fmt.Errorf("cannot commit while %s", st))
	}
	if r.detached {
		return gocid.Undef, errors.ErrInvalidState.Wrap(fmt.Errorf("cannot commit on a detached head, create a branch first"))
	}
	b := r.current
	if b == nil {
		return gocid.Undef, errors.ErrInvalidState.Wrap(fmt.Errorf("no branch checked out"))
	}
	if b.Diverged() {
		return gocid.Undef, errors.ErrInvalidState.Wrap(fmt.Errorf("branch %s has %d heads, check it out to merge them first",
			r.branchName(b), len(b.CommitRefs)))
	}

	pending := newBatch()
	if err := r.recurseCommit(r.root, pending); err != nil {
		return gocid.Undef, fmt.Errorf("commit: %w", err)
	}

	cref := &schema.CommitRef{Date: r.now(), Comment: comment, ObjectRoot: r.root.linkTo()}
	if len(b.CommitRefs) == 1 {
		cref.AddParent(b.CommitRefs[0].Persistent(), schema.Parent)
	}
	for _, m := range r.mergeFrom {
		cref.AddParent(schema.LinkTo(m.key, schema.CommitRefType), schema.MergedFrom)
	}
	c, e, err := r.hashCommit(cref)
	if err != nil {
		return gocid.Undef, fmt.Errorf("commit: %w", err)
	}
	pending.add(c, e)

	if err := store.AwaitStore(ctx, store.StoreAsync(ctx, r.store, pending.elements)); err != nil {
		r.forget(c)
		return gocid.Undef, fmt.Errorf("commit: store %d elements: %w", len(pending.elements), err)
	}
	for _, o := range pending.objects {
		o.modified = false
	}
	c = r.registerCommit(c)
	r.setHeads(b, c)

	merged := len(r.mergeFrom)
	r.mergeFrom, r.mergeRoots = nil, nil

	r.log.Info("committed",
		zap.String("branch", r.branchName(b)),
		zap.Stringer("commit", c.key),
		zap.Int("elements", len(pending.elements)),
		zap.Int("merged", merged))
	return c.key, nil
}

// recurseCommit hashes o and its uncommitted descendants, children first,
// and writes the resulting keys into the links that point at them.
func (r *Repository) recurseCommit(o *Object, b *batch) error {
	if b.seen[o] {
		return nil
	}
	b.seen[o] = true
	if !o.modified && o.key.Defined() {
		return nil
	}
	for _, l := range o.children {
		if l.Local == 0 {
			continue
		}
		child, ok := r.workspace[l.Local]
		if !ok {
			if l.Key.Defined() {
				continue
			}
			return errors.ErrNotFound.Wrap(fmt.Errorf("object %d links to object %d which is not in the workspace",
				o.localID, l.Local))
		}
		if err := r.recurseCommit(child, b); err != nil {
			return err
		}
		l.Key = child.key
		l.Type = child.typ
	}
	e, err := r.encode(o)
	if err != nil {
		return err
	}
	o.key = e.Key
	b.add(o, e)
	return nil
}

func (r *Repository) encode(o *Object) (*dag.Element, error) {
	data, leaf, err := schema.Encode(r.registry, o.record)
	if err != nil {
		return nil, err
	}
	children := make([]gocid.Cid, 0, len(o.children))
	for _, l := range o.children {
		if l.Key.Defined() {
			children = append(children, l.Key)
		}
	}
	return dag.NewElement(o.typ, data, leaf, children)
}

// hashCommit wraps and hashes a new commit. The commit is not yet stored
// nor indexed.
func (r *Repository) hashCommit(cref *schema.CommitRef) (*Object, *dag.Element, error) {
	o := r.wrap(cref)
	e, err := r.encode(o)
	if err != nil {
		r.forget(o)
		return nil, nil, err
	}
	o.key = e.Key
	return o, e, nil
}

// registerCommit places a hashed commit in the commit index and returns the
// indexed object, which is an older one when the same commit is known.
func (r *Repository) registerCommit(o *Object) *Object {
	k := o.key.KeyString()
	if existing, ok := r.commits[k]; ok && existing != o {
		r.forget(o)
		return existing
	}
	o.readOnly = true
	o.modified = false
	o.isRoot = false
	r.commits[k] = o
	for _, l := range o.children {
		if t := r.resident(l); t != nil {
			t.parents[l] = struct{}{}
		}
	}
	return o
}

// forget drops the link ownership entries of an object that never made it
// into the repository.
func (r *Repository) forget(o *Object) {
	for _, l := range o.children {
		if r.owners[l] == o {
			delete(r.owners, l)
		}
	}
}

// setHeads replaces the heads of b.
func (r *Repository) setHeads(b *schema.Branch, heads ...*Object) {
	links := make([]*schema.Link, len(heads))
	for i, h := range heads {
		links[i] = h.linkTo()
	}
	b.CommitRefs = links
	r.head.rebind()
	for i, h := range heads {
		h.parents[links[i]] = struct{}{}
	}
}
