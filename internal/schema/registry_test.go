package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/memex-vcs/internal/dag"
	"github.com/systemshift/memex-vcs/internal/errors"
)

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	assert.Equal(t, []dag.TypeID{MutableHeadType, CommitRefType, NodeType, BlobType}, reg.Types())
	assert.True(t, reg.IsLeaf(BlobType))
	assert.False(t, reg.IsLeaf(NodeType))
	assert.Equal(t, "CommitRef", reg.Name(CommitRefType))
	assert.Equal(t, "99.1", reg.Name(dag.TypeID{ObjectID: 99, Version: 1}))

	for _, id := range reg.Types() {
		r, err := reg.New(id)
		require.NoError(t, err)
		assert.Equal(t, id, r.Type())
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NodeType, "Node", false, func() Record { return &Node{} }))

	err := reg.Register(NodeType, "Other", false, func() Record { return &Node{} })
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	err = reg.Register(dag.TypeID{}, "Zero", false, func() Record { return &Node{} })
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	assert.Panics(t, func() {
		reg.MustRegister(NodeType, "Node", false, func() Record { return &Node{} })
	})
}

func TestNewCommitRefHasUnsetRoot(t *testing.T) {
	c := NewCommitRef()
	require.NotNil(t, c.ObjectRoot)
	assert.False(t, c.ObjectRoot.IsSet())
	assert.Nil(t, c.FirstParent())
}

func TestRelationText(t *testing.T) {
	var r Relation
	require.NoError(t, r.UnmarshalText([]byte("merged_from")))
	assert.Equal(t, MergedFrom, r)
	assert.Error(t, r.UnmarshalText([]byte("sibling")))

	_, err := Relation(9).MarshalText()
	assert.Error(t, err)
}
