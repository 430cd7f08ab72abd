package schema

import (
	"fmt"

	gocid "github.com/ipfs/go-cid"

	"github.com/systemshift/memex-vcs/internal/dag"
	"github.com/systemshift/memex-vcs/internal/errors"
)

// Ref addresses an object either by the local id of a live workspace object,
// by content key, or both.
type Ref struct {
	Local uint64
	Key   gocid.Cid
}

// IsSet reports whether the ref addresses anything.
func (r Ref) IsSet() bool {
	return r.Local != 0 || r.Key.Defined()
}

// Link is a typed reference embedded in a record field. Only the key and the
// type are persisted; the local id is a workspace-level cache.
type Link struct {
	Ref
	Type dag.TypeID

	// ReadOnly marks the target as read-only when it is loaded through this link.
	ReadOnly bool
}

// NewLink returns an unset link.
func NewLink() *Link {
	return &Link{}
}

// LinkTo returns a persistent link to key.
func LinkTo(key gocid.Cid, typ dag.TypeID) *Link {
	return &Link{Ref: Ref{Key: key}, Type: typ}
}

// Persistent returns a copy of l without its local id.
func (l *Link) Persistent() *Link {
	return &Link{Ref: Ref{Key: l.Key}, Type: l.Type}
}

func (l *Link) String() string {
	switch {
	case l.Key.Defined():
		return fmt.Sprintf("%s@%s", l.Type, dag.ShortKey(l.Key))
	case l.Local != 0:
		return fmt.Sprintf("%s#%d", l.Type, l.Local)
	default:
		return "<unset>"
	}
}

type linkJSON struct {
	Key  string     `json:"key,omitempty"`
	Type dag.TypeID `json:"type"`
}

// MarshalJSON encodes the persistent part of the link. A link that points to
// a live object that was never hashed cannot be encoded.
func (l *Link) MarshalJSON() ([]byte, error) {
	if l.Local != 0 && !l.Key.Defined() {
		return nil, errors.ErrInvalidState.Wrap(fmt.Errorf("link to unhashed object %d", l.Local))
	}
	out := linkJSON{Type: l.Type}
	if l.Key.Defined() {
		out.Key = l.Key.String()
	}
	return dag.JSON().Marshal(out)
}

// UnmarshalJSON decodes a persisted link.
func (l *Link) UnmarshalJSON(data []byte) error {
	var in linkJSON
	if err := dag.JSON().Unmarshal(data, &in); err != nil {
		return err
	}
	*l = Link{Type: in.Type}
	if in.Key != "" {
		c, err := gocid.Decode(in.Key)
		if err != nil {
			return fmt.Errorf("link key %q: %w", in.Key, err)
		}
		l.Key = c
	}
	return nil
}
