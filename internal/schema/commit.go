package schema

import (
	"fmt"
	"time"

	"github.com/systemshift/memex-vcs/internal/dag"
)

// Relation is the kind of edge between a commit and one of its parents.
type Relation int

const (
	// Parent is the previous head of the same branch.
	Parent Relation = iota
	// MergedFrom is a commit folded in by a merge.
	MergedFrom
)

func (r Relation) String() string {
	switch r {
	case Parent:
		return "parent"
	case MergedFrom:
		return "merged_from"
	default:
		return fmt.Sprintf("relation(%d)", int(r))
	}
}

// MarshalText encodes the relation name.
func (r Relation) MarshalText() ([]byte, error) {
	switch r {
	case Parent, MergedFrom:
		return []byte(r.String()), nil
	default:
		return nil, fmt.Errorf("unknown relation %d", int(r))
	}
}

// UnmarshalText decodes a relation name.
func (r *Relation) UnmarshalText(text []byte) error {
	switch string(text) {
	case "parent":
		*r = Parent
	case "merged_from":
		*r = MergedFrom
	default:
		return fmt.Errorf("unknown relation %q", text)
	}
	return nil
}

// ParentRef is one parent edge of a commit.
type ParentRef struct {
	Commit   *Link    `json:"commit"`
	Relation Relation `json:"relation"`
}

// CommitRef is a commit: a dated snapshot of one object root, linked to the
// commits it descends from.
type CommitRef struct {
	Date       time.Time   `json:"date"`
	Comment    string      `json:"comment,omitempty"`
	Parents    []ParentRef `json:"parents,omitempty"`
	ObjectRoot *Link       `json:"object_root"`
}

// NewCommitRef returns an empty commit.
func NewCommitRef() *CommitRef {
	return &CommitRef{ObjectRoot: NewLink()}
}

// Type implements Record.
func (c *CommitRef) Type() dag.TypeID { return CommitRefType }

// Links implements Record.
func (c *CommitRef) Links() []*Link {
	links := make([]*Link, 0, len(c.Parents)+1)
	for _, p := range c.Parents {
		if p.Commit != nil {
			links = append(links, p.Commit)
		}
	}
	if c.ObjectRoot != nil {
		links = append(links, c.ObjectRoot)
	}
	return links
}

// AddParent appends a parent edge.
func (c *CommitRef) AddParent(l *Link, rel Relation) {
	c.Parents = append(c.Parents, ParentRef{Commit: l, Relation: rel})
}

// FirstParent returns the Parent-relation edge, or nil for a root commit.
func (c *CommitRef) FirstParent() *Link {
	for _, p := range c.Parents {
		if p.Relation == Parent {
			return p.Commit
		}
	}
	return nil
}
