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

// Resolve returns the live object l points to, loading it from the content
// store when it is neither in the workspace nor in the commit index. An unset
// link resolves to nil.
//
// Loaded commits join the commit index read-only. Objects reached through a
// link owned by a commit join the workspace writable; other loaded objects
// inherit the read-only flag of the link's owner.
func (r *Repository) Resolve(ctx context.Context, l *schema.Link) (*Object, error) {
	if l == nil || !l.IsSet() {
		return nil, nil
	}
	if o := r.resident(l); o != nil {
		if err := r.checkType(l, o.typ); err != nil {
			return nil, err
		}
		o.parents[l] = struct{}{}
		return o, nil
	}
	if !l.Key.Defined() {
		return nil, errors.ErrNotFound.Wrap(fmt.Errorf("local object %d is not in the workspace", l.Local))
	}

	e, err := r.load(ctx, l.Key)
	if err != nil {
		return nil, err
	}
	if err := r.checkType(l, e.Type); err != nil {
		return nil, err
	}
	o, err := r.parse(e)
	if err != nil {
		return nil, err
	}

	owner := r.owners[l]
	switch {
	case o.typ == schema.CommitRefType:
		o = r.registerCommit(o)
	case owner != nil && owner.typ == schema.CommitRefType:
		o.readOnly = false
		r.workspace[o.localID] = o
		l.Local = o.localID
	default:
		o.readOnly = l.ReadOnly || (owner != nil && owner.readOnly)
		r.workspace[o.localID] = o
		l.Local = o.localID
	}
	o.parents[l] = struct{}{}
	return o, nil
}

// checkType fails with ErrIntegrity when l declares a type other than typ.
func (r *Repository) checkType(l *schema.Link, typ dag.TypeID) error {
	if l.Type.IsZero() || l.Type == typ {
		return nil
	}
	return errors.ErrIntegrity.Wrap(fmt.Errorf("link to %s expects type %s, element has %s",
		l, r.registry.Name(l.Type), r.registry.Name(typ)))
}

// load awaits an element from the content store.
func (r *Repository) load(ctx context.Context, key gocid.Cid) (*dag.Element, error) {
	e, err := store.Await(ctx, store.LoadAsync(ctx, r.store, key))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, fmt.Errorf("object %s not available locally: %w", key, err)
		}
		return nil, err
	}
	return e, nil
}

// parse verifies e and wraps its decoded record in an unmodified object that
// is not yet placed in the workspace or the commit index.
func (r *Repository) parse(e *dag.Element) (*Object, error) {
	if err := e.Verify(); err != nil {
		return nil, err
	}
	if leaf := r.registry.IsLeaf(e.Type); leaf != e.IsLeaf {
		return nil, errors.ErrIntegrity.Wrap(fmt.Errorf("element %s: leaf flag %t disagrees with type %s",
			dag.ShortKey(e.Key), e.IsLeaf, r.registry.Name(e.Type)))
	}
	rec, err := schema.Decode(r.registry, e.Type, e.Value)
	if err != nil {
		return nil, fmt.Errorf("parse element %s: %w", dag.ShortKey(e.Key), err)
	}
	o := r.wrap(rec)
	o.key = e.Key
	o.modified = false
	for _, l := range o.children {
		e.AddChildKey(l.Key)
	}
	return o, nil
}

// loadLinks resolves every link below o, depth first. Links into the
// commit graph are not followed.
func (r *Repository) loadLinks(ctx context.Context, o *Object) error {
	seen := make(map[*Object]bool)
	var walk func(*Object) error
	walk = func(o *Object) error {
		if seen[o] {
			return nil
		}
		seen[o] = true
		for _, l := range o.children {
			if l.Type == schema.CommitRefType {
				continue
			}
			child, err := r.Resolve(ctx, l)
			if err != nil {
				return err
			}
			if child == nil {
				continue
			}
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(o)
}

// SetLink points l at value. l must be a field of a writable object of this
// repository and value must be a root object. A value owned by another
// repository must be committed; its element graph is copied into this
// repository's store and reloaded as a new workspace object.
func (r *Repository) SetLink(ctx context.Context, l *schema.Link, value *Object) error {
	owner, ok := r.owners[l]
	if !ok {
		return errors.ErrInvalidArgument.Wrap(fmt.Errorf("link is not a field of an object of this repository"))
	}
	if owner.invalid {
		return errors.ErrInvalidState.Wrap(fmt.Errorf("owner %d was dropped from the workspace", owner.localID))
	}
	if owner.readOnly {
		return errors.ErrImmutable.Wrap(fmt.Errorf("owner %d", owner.localID))
	}
	if value == nil {
		return errors.ErrInvalidArgument.Wrap(fmt.Errorf("nil value"))
	}
	if !value.isRoot {
		return errors.ErrInvalidArgument.Wrap(fmt.Errorf("object %d of type %s cannot be linked",
			value.localID, r.registry.Name(value.typ)))
	}
	if value.invalid {
		return errors.ErrInvalidState.Wrap(fmt.Errorf("object %d was dropped from the workspace", value.localID))
	}

	if value.repo != r {
		if value.modified || !value.key.Defined() {
			return errors.ErrInvalidState.Wrap(fmt.Errorf("object %d of repository %s has uncommitted changes",
				value.localID, value.repo.RepositoryKey()))
		}
		imported, err := r.importObject(ctx, value)
		if err != nil {
			return err
		}
		value = imported
	}

	if l.Local != 0 && l.Local == value.localID {
		value.parents[l] = struct{}{}
		return nil
	}
	if r.isParent(value, owner) {
		return errors.ErrCyclicLink.Wrap(fmt.Errorf("object %d is an ancestor of object %d", value.localID, owner.localID))
	}

	if old := r.resident(l); old != nil {
		delete(old.parents, l)
	}
	value.parents[l] = struct{}{}
	l.Local = value.localID
	l.Key = gocid.Undef
	if !value.modified {
		l.Key = value.key
	}
	l.Type = value.typ
	owner.touch()
	return nil
}

// isParent reports whether candidate is o or reachable from o by following
// parent links upwards.
func (r *Repository) isParent(candidate, o *Object) bool {
	seen := make(map[*Object]bool)
	queue := []*Object{o}
	for len(queue) > 0 {
		x := queue[0]
		queue = queue[1:]
		if x == candidate {
			return true
		}
		if seen[x] {
			continue
		}
		seen[x] = true
		for pl := range x.parents {
			if p := r.owners[pl]; p != nil {
				queue = append(queue, p)
			}
		}
	}
	return false
}

// importObject copies the committed graph of a foreign object into this
// repository and loads it as a writable workspace object.
func (r *Repository) importObject(ctx context.Context, foreign *Object) (*Object, error) {
	if err := store.Copy(ctx, foreign.repo.store, r.store, foreign.key); err != nil {
		return nil, fmt.Errorf("import %s: %w", dag.ShortKey(foreign.key), err)
	}
	e, err := r.load(ctx, foreign.key)
	if err != nil {
		return nil, err
	}
	o, err := r.parse(e)
	if err != nil {
		return nil, err
	}
	r.workspace[o.localID] = o
	if err := r.loadLinks(ctx, o); err != nil {
		return nil, err
	}
	r.log.Debug("imported object",
		zap.Stringer("key", foreign.key),
		zap.String("from", foreign.repo.RepositoryKey()))
	return o, nil
}
