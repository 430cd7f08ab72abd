package schema

import (
	"github.com/systemshift/memex-vcs/internal/dag"
)

// Node is a general purpose tree record: a name, string attributes and
// ordered child links.
type Node struct {
	Name     string            `json:"name"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []*Link           `json:"children,omitempty"`
}

// Type implements Record.
func (n *Node) Type() dag.TypeID { return NodeType }

// Links implements Record.
func (n *Node) Links() []*Link {
	out := make([]*Link, 0, len(n.Children))
	for _, l := range n.Children {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

// Set an attribute.
func (n *Node) Set(k, v string) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[k] = v
}

// AddChild appends an unset child link and returns it.
func (n *Node) AddChild() *Link {
	l := NewLink()
	n.Children = append(n.Children, l)
	return l
}

// RemoveChild drops the child link at i.
func (n *Node) RemoveChild(i int) {
	n.Children = append(n.Children[:i], n.Children[i+1:]...)
}

// Blob is an opaque leaf value.
type Blob struct {
	Data []byte
}

// Type implements Record.
func (b *Blob) Type() dag.TypeID { return BlobType }

// Links implements Record.
func (b *Blob) Links() []*Link { return nil }

// Bytes implements Leaf.
func (b *Blob) Bytes() []byte { return b.Data }

// SetBytes implements Leaf.
func (b *Blob) SetBytes(p []byte) { b.Data = p }
