package repo

import (
	"context"
	"fmt"

	gocid "github.com/ipfs/go-cid"

	"github.com/systemshift/memex-vcs/internal/dag"
	"github.com/systemshift/memex-vcs/internal/errors"
	"github.com/systemshift/memex-vcs/internal/schema"
)

// Object is a live record owned by one repository.
//
// Identity is the local id while the object is in the workspace and the
// content key once it has been hashed. Parent links are back references to
// the links that point at the object; they do not own it.
type Object struct {
	repo   *Repository
	record schema.Record
	typ    dag.TypeID

	localID  uint64
	key      gocid.Cid
	modified bool
	readOnly bool
	isRoot   bool
	invalid  bool

	parents  map[*schema.Link]struct{}
	children []*schema.Link
}

// Record returns the wrapped record. Mutate it through Update.
func (o *Object) Record() schema.Record { return o.record }

// Type of the wrapped record.
func (o *Object) Type() dag.TypeID { return o.typ }

// LocalID is the workspace id of the object.
func (o *Object) LocalID() uint64 { return o.localID }

// Key is the content key of the object as last hashed, or cid.Undef.
func (o *Object) Key() gocid.Cid { return o.key }

// Modified reports whether the object changed since it was last hashed.
func (o *Object) Modified() bool { return o.modified }

// ReadOnly reports whether the object rejects mutation.
func (o *Object) ReadOnly() bool { return o.readOnly }

// IsRoot reports whether the object may be the value of a link.
func (o *Object) IsRoot() bool { return o.isRoot }

// Valid reports whether the object still belongs to the live workspace.
func (o *Object) Valid() bool { return !o.invalid }

// Repository that owns the object.
func (o *Object) Repository() *Repository { return o.repo }

// Links returns the link fields of the record.
func (o *Object) Links() []*schema.Link {
	return append([]*schema.Link(nil), o.children...)
}

// ParentLinks returns the links known to point at the object.
func (o *Object) ParentLinks() []*schema.Link {
	out := make([]*schema.Link, 0, len(o.parents))
	for l := range o.parents {
		out = append(out, l)
	}
	return out
}

// Child resolves one of the object's links.
func (o *Object) Child(ctx context.Context, l *schema.Link) (*Object, error) {
	if o.invalid {
		return nil, errors.ErrInvalidState.Wrap(fmt.Errorf("object %d was dropped from the workspace", o.localID))
	}
	if owner := o.repo.owners[l]; owner != o {
		return nil, errors.ErrInvalidArgument.Wrap(fmt.Errorf("link %s is not a field of object %d", l, o.localID))
	}
	return o.repo.Resolve(ctx, l)
}

// Update runs fn against the record and marks the object and its writable
// ancestors modified. Links added or removed by fn are re-bound.
func (o *Object) Update(fn func(schema.Record) error) error {
	if o.invalid {
		return errors.ErrInvalidState.Wrap(fmt.Errorf("object %d was dropped from the workspace", o.localID))
	}
	if o.readOnly {
		return errors.ErrImmutable.Wrap(fmt.Errorf("object %d", o.localID))
	}
	if err := fn(o.record); err != nil {
		return err
	}
	o.rebind()
	o.touch()
	return nil
}

func (o *Object) linkTo() *schema.Link {
	return &schema.Link{Ref: schema.Ref{Local: o.localID, Key: o.key}, Type: o.typ}
}

func (o *Object) commit() *schema.CommitRef {
	return o.record.(*schema.CommitRef)
}

// rebind registers the record's current links as owned by o and drops the
// back references of links the record no longer has.
func (o *Object) rebind() {
	links := o.record.Links()
	keep := make(map[*schema.Link]struct{}, len(links))
	for _, l := range links {
		keep[l] = struct{}{}
		o.repo.owners[l] = o
	}
	for _, l := range o.children {
		if _, ok := keep[l]; ok {
			continue
		}
		if o.repo.owners[l] == o {
			delete(o.repo.owners, l)
		}
		if target := o.repo.resident(l); target != nil {
			delete(target.parents, l)
		}
	}
	o.children = links
}

// touch marks o and every writable object above it modified.
func (o *Object) touch() {
	seen := make(map[*Object]bool)
	queue := []*Object{o}
	for len(queue) > 0 {
		x := queue[0]
		queue = queue[1:]
		if seen[x] {
			continue
		}
		seen[x] = true
		x.modified = true
		for pl := range x.parents {
			if p := o.repo.owners[pl]; p != nil && !p.readOnly && !p.invalid && p.typ != schema.CommitRefType {
				queue = append(queue, p)
			}
		}
	}
}

// wrap creates an object around rec with a fresh local id. The object is
// not added to the workspace.
func (r *Repository) wrap(rec schema.Record) *Object {
	r.counter++
	o := &Object{
		repo:     r,
		record:   rec,
		typ:      rec.Type(),
		localID:  r.counter,
		key:      gocid.Undef,
		modified: true,
		isRoot:   true,
		parents:  make(map[*schema.Link]struct{}),
	}
	o.rebind()
	return o
}

// CreateObject returns a new, modified workspace object of type typ. The
// first object created while the workspace has no root becomes the root.
func (r *Repository) CreateObject(typ dag.TypeID) (*Object, error) {
	rec, err := r.registry.New(typ)
	if err != nil {
		return nil, err
	}
	o := r.wrap(rec)
	r.workspace[o.localID] = o
	if r.root == nil {
		r.root = o
	}
	return o, nil
}

// SetRoot makes o the workspace root.
func (r *Repository) SetRoot(o *Object) error {
	if o.repo != r {
		return errors.ErrInvalidArgument.Wrap(fmt.Errorf("object %d belongs to another repository", o.localID))
	}
	if _, ok := r.workspace[o.localID]; !ok || o.invalid {
		return errors.ErrInvalidState.Wrap(fmt.Errorf("object %d is not in the workspace", o.localID))
	}
	if r.root != o {
		r.root = o
		o.modified = true
	}
	return nil
}

// resident returns the live object a link points to, without loading.
func (r *Repository) resident(l *schema.Link) *Object {
	if l.Local != 0 {
		if o, ok := r.workspace[l.Local]; ok {
			return o
		}
	}
	if l.Key.Defined() {
		if o, ok := r.commitByKey(l.Key); ok {
			return o
		}
	}
	return nil
}

// setStructureReadOnly sets the read-only flag on root and every resident
// object below it.
func (r *Repository) setStructureReadOnly(root *Object, readOnly bool) {
	seen := make(map[*Object]bool)
	stack := []*Object{root}
	for len(stack) > 0 {
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[o] {
			continue
		}
		seen[o] = true
		o.readOnly = readOnly
		for _, l := range o.children {
			if l.Local == 0 {
				continue
			}
			if c, ok := r.workspace[l.Local]; ok {
				stack = append(stack, c)
			}
		}
	}
}
