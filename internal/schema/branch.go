package schema

import (
	"github.com/systemshift/memex-vcs/internal/dag"
)

// Branch is a named pointer to zero, one or several commit heads. More than
// one head means the branch has diverged.
type Branch struct {
	Key        string  `json:"key"`
	CommitRefs []*Link `json:"commit_refs"`
}

// Diverged reports whether the branch has more than one head.
func (b *Branch) Diverged() bool {
	return len(b.CommitRefs) > 1
}

// HasHead reports whether l's key is one of the branch heads.
func (b *Branch) HasHead(l *Link) bool {
	for _, h := range b.CommitRefs {
		if h.Key.Defined() && h.Key.Equals(l.Key) {
			return true
		}
	}
	return false
}

// MutableHead enumerates the branches of one repository. It is never part
// of a commit.
type MutableHead struct {
	RepositoryKey string    `json:"repository_key"`
	Branches      []*Branch `json:"branches"`
}

// Type implements Record.
func (h *MutableHead) Type() dag.TypeID { return MutableHeadType }

// Links implements Record.
func (h *MutableHead) Links() []*Link {
	var links []*Link
	for _, b := range h.Branches {
		links = append(links, b.CommitRefs...)
	}
	return links
}

// Branch returns the branch with key, or nil.
func (h *MutableHead) Branch(key string) *Branch {
	for _, b := range h.Branches {
		if b.Key == key {
			return b
		}
	}
	return nil
}

// RemoveBranch drops the branch with key and reports whether it existed.
func (h *MutableHead) RemoveBranch(key string) bool {
	for i, b := range h.Branches {
		if b.Key == key {
			h.Branches = append(h.Branches[:i], h.Branches[i+1:]...)
			return true
		}
	}
	return false
}
