// Package schema holds the typed records stored in a repository and the
// registry that maps type ids to record factories.
package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/systemshift/memex-vcs/internal/dag"
	"github.com/systemshift/memex-vcs/internal/errors"
)

// Record is a typed, serializable value. Links returns the link fields of the
// record; the returned pointers are the record's own fields so that writes
// through them change the record.
type Record interface {
	Type() dag.TypeID
	Links() []*Link
}

// Leaf is a record whose serialized form is its raw bytes.
type Leaf interface {
	Record
	Bytes() []byte
	SetBytes([]byte)
}

// Factory returns a zero record of one type.
type Factory func() Record

type registration struct {
	name    string
	leaf    bool
	factory Factory
}

// Registry resolves type ids to record factories.
type Registry struct {
	mu    sync.RWMutex
	types map[dag.TypeID]registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[dag.TypeID]registration)}
}

// Register adds a type. The factory must return records reporting id as their type.
func (r *Registry) Register(id dag.TypeID, name string, leaf bool, f Factory) error {
	if id.IsZero() || f == nil {
		return errors.ErrInvalidArgument.Wrap(fmt.Errorf("register %q: type id and factory are required", name))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.types[id]; ok {
		return errors.ErrInvalidArgument.Wrap(fmt.Errorf("type %s already registered as %q", id, prev.name))
	}
	r.types[id] = registration{name: name, leaf: leaf, factory: f}
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(id dag.TypeID, name string, leaf bool, f Factory) {
	if err := r.Register(id, name, leaf, f); err != nil {
		panic(err)
	}
}

// New returns a zero record of type id.
func (r *Registry) New(id dag.TypeID) (Record, error) {
	r.mu.RLock()
	reg, ok := r.types[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.ErrNotFound.Wrap(fmt.Errorf("unknown type %s", id))
	}
	return reg.factory(), nil
}

// IsLeaf reports whether records of type id serialize as raw bytes.
func (r *Registry) IsLeaf(id dag.TypeID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[id].leaf
}

// Name of type id, or its numeric form when unknown.
func (r *Registry) Name(id dag.TypeID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if reg, ok := r.types[id]; ok {
		return reg.name
	}
	return id.String()
}

// Types lists the registered ids in ascending order.
func (r *Registry) Types() []dag.TypeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]dag.TypeID, 0, len(r.types))
	for id := range r.types {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].ObjectID != ids[j].ObjectID {
			return ids[i].ObjectID < ids[j].ObjectID
		}
		return ids[i].Version < ids[j].Version
	})
	return ids
}

// Type ids of the records defined in this package.
var (
	MutableHeadType = dag.TypeID{ObjectID: 6, Version: 1}
	CommitRefType   = dag.TypeID{ObjectID: 7, Version: 1}
	NodeType        = dag.TypeID{ObjectID: 20, Version: 1}
	BlobType        = dag.TypeID{ObjectID: 21, Version: 1}
)

// DefaultRegistry returns a registry carrying the repository's own records
// and the Node and Blob application types.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(MutableHeadType, "MutableHead", false, func() Record { return &MutableHead{} })
	r.MustRegister(CommitRefType, "CommitRef", false, func() Record { return NewCommitRef() })
	r.MustRegister(NodeType, "Node", false, func() Record { return &Node{} })
	r.MustRegister(BlobType, "Blob", true, func() Record { return &Blob{} })
	return r
}
