package schema

import (
	"testing"
	"time"

	gocid "github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/memex-vcs/internal/dag"
	"github.com/systemshift/memex-vcs/internal/errors"
)

func mustKey(t *testing.T, s string) gocid.Cid {
	t.Helper()
	k, err := dag.ComputeKey(BlobType, []byte(s), true)
	require.NoError(t, err)
	return k
}

func TestEncodeNodeIsCanonical(t *testing.T) {
	reg := DefaultRegistry()

	a := &Node{Name: "root"}
	a.Set("b", "2")
	a.Set("a", "1")
	b := &Node{Name: "root", Attrs: map[string]string{"a": "1", "b": "2"}}

	da, leaf, err := Encode(reg, a)
	require.NoError(t, err)
	assert.False(t, leaf)
	db, _, err := Encode(reg, b)
	require.NoError(t, err)

	assert.Equal(t, string(da), string(db))
	assert.Equal(t, `{"body":{"attrs":{"a":"1","b":"2"},"name":"root"},"type":{"object_id":20,"version":1}}`, string(da))
}

func TestEncodeRefusesUnhashedLink(t *testing.T) {
	reg := DefaultRegistry()
	n := &Node{Name: "root"}
	l := n.AddChild()
	l.Local = 7

	_, _, err := Encode(reg, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unhashed object 7")
}

func TestNodeRoundTripKeepsLinkKeys(t *testing.T) {
	reg := DefaultRegistry()
	child := mustKey(t, "child")

	n := &Node{Name: "root"}
	l := n.AddChild()
	l.Key = child
	l.Type = BlobType
	l.Local = 3
	n.AddChild() // unset

	data, _, err := Encode(reg, n)
	require.NoError(t, err)

	got, err := Decode(reg, NodeType, data)
	require.NoError(t, err)
	node := got.(*Node)
	require.Len(t, node.Children, 2)
	assert.True(t, node.Children[0].Key.Equals(child))
	assert.Equal(t, BlobType, node.Children[0].Type)
	assert.Zero(t, node.Children[0].Local, "local ids are not persisted")
	assert.False(t, node.Children[1].IsSet())
}

func TestCommitRefRoundTrip(t *testing.T) {
	reg := DefaultRegistry()
	date := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	c := NewCommitRef()
	c.Date = date
	c.Comment = "init"
	c.ObjectRoot = LinkTo(mustKey(t, "root"), NodeType)
	c.AddParent(LinkTo(mustKey(t, "p1"), CommitRefType), Parent)
	c.AddParent(LinkTo(mustKey(t, "p2"), CommitRefType), MergedFrom)

	data, _, err := Encode(reg, c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"relation":"merged_from"`)

	got, err := Decode(reg, CommitRefType, data)
	require.NoError(t, err)
	commit := got.(*CommitRef)
	assert.True(t, commit.Date.Equal(date))
	assert.Equal(t, "init", commit.Comment)
	require.Len(t, commit.Parents, 2)
	assert.Equal(t, Parent, commit.Parents[0].Relation)
	assert.Equal(t, MergedFrom, commit.Parents[1].Relation)
	assert.True(t, commit.FirstParent().Key.Equals(mustKey(t, "p1")))
	assert.Len(t, commit.Links(), 3)
}

func TestDecodeRejectsTypeMismatch(t *testing.T) {
	reg := DefaultRegistry()
	data, _, err := Encode(reg, &Node{Name: "x"})
	require.NoError(t, err)

	_, err = Decode(reg, CommitRefType, data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIntegrity))
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode(DefaultRegistry(), dag.TypeID{ObjectID: 999, Version: 1}, []byte(`{}`))
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestBlobIsLeaf(t *testing.T) {
	reg := DefaultRegistry()
	b := &Blob{Data: []byte("raw bytes")}

	data, leaf, err := Encode(reg, b)
	require.NoError(t, err)
	assert.True(t, leaf)
	assert.Equal(t, []byte("raw bytes"), data)

	data[0] = 'R'
	assert.Equal(t, byte('r'), b.Data[0], "encode copies")

	got, err := Decode(reg, BlobType, []byte("other"))
	require.NoError(t, err)
	assert.Equal(t, []byte("other"), got.(*Blob).Bytes())
}

func TestMutableHeadRoundTrip(t *testing.T) {
	reg := DefaultRegistry()
	h := &MutableHead{RepositoryKey: "repo-1"}
	h.Branches = append(h.Branches,
		&Branch{Key: "b1", CommitRefs: []*Link{LinkTo(mustKey(t, "c1"), CommitRefType)}},
		&Branch{Key: "b2"},
	)

	data, _, err := Encode(reg, h)
	require.NoError(t, err)
	got, err := Decode(reg, MutableHeadType, data)
	require.NoError(t, err)
	head := got.(*MutableHead)

	assert.Equal(t, "repo-1", head.RepositoryKey)
	require.Len(t, head.Branches, 2)
	assert.NotNil(t, head.Branch("b2"))
	assert.Nil(t, head.Branch("b3"))
	assert.Len(t, head.Links(), 1)
	assert.True(t, head.Branch("b1").HasHead(LinkTo(mustKey(t, "c1"), CommitRefType)))

	assert.True(t, head.RemoveBranch("b1"))
	assert.False(t, head.RemoveBranch("b1"))
	assert.Len(t, head.Branches, 1)
}
