package dag

import (
	"testing"

	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/memex-vcs/internal/errors"
)

var testType = TypeID{ObjectID: 42, Version: 1}

var otherType = TypeID{ObjectID: 43, Version: 1}

func TestComputeKey(t *testing.T) {
	record, err := ComputeKey(testType, []byte("hello"), false)
	require.NoError(t, err)
	leaf, err := ComputeKey(testType, []byte("hello"), true)
	require.NoError(t, err)

	assert.Equal(t, uint64(gocid.DagJSON), record.Type())
	assert.Equal(t, uint64(gocid.Raw), leaf.Type())
	assert.False(t, record.Equals(leaf))

	decoded, err := multihash.Decode(record.Hash())
	require.NoError(t, err)
	assert.Equal(t, uint64(multihash.SHA1), decoded.Code)
	assert.Len(t, decoded.Digest, 20)
}

func TestComputeKeyLeafTypes(t *testing.T) {
	a, err := ComputeKey(testType, []byte("same"), true)
	require.NoError(t, err)
	b, err := ComputeKey(otherType, []byte("same"), true)
	require.NoError(t, err)
	assert.False(t, a.Equals(b), "equal bytes of two leaf types get distinct keys")

	again, err := ComputeKey(testType, []byte("same"), true)
	require.NoError(t, err)
	assert.True(t, a.Equals(again))

	// a record value carries its type, the key is the hash of the value alone
	ra, err := ComputeKey(testType, []byte(`{}`), false)
	require.NoError(t, err)
	rb, err := ComputeKey(otherType, []byte(`{}`), false)
	require.NoError(t, err)
	assert.True(t, ra.Equals(rb))
}

func TestVerifyKey(t *testing.T) {
	key, err := ComputeKey(testType, []byte("payload"), true)
	require.NoError(t, err)

	assert.NoError(t, VerifyKey(key, testType, []byte("payload")))

	for name, tc := range map[string]struct {
		key  gocid.Cid
		typ  TypeID
		data string
	}{
		"tampered value":  {key, testType, "tampered"},
		"other leaf type": {key, otherType, "payload"},
		"undefined key":   {gocid.Undef, testType, "payload"},
	} {
		t.Run(name, func(t *testing.T) {
			err := VerifyKey(tc.key, tc.typ, []byte(tc.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrIntegrity))
		})
	}
}

func TestParseKey(t *testing.T) {
	key, err := ComputeKey(testType, []byte("x"), false)
	require.NoError(t, err)

	got, err := ParseKey(key.String())
	require.NoError(t, err)
	assert.True(t, got.Equals(key))

	_, err = ParseKey("not a key")
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestKeyToFilenameIsStable(t *testing.T) {
	key, err := ComputeKey(testType, []byte("x"), true)
	require.NoError(t, err)

	name := KeyToFilename(key)
	assert.Equal(t, name, KeyToFilename(key))
	assert.Equal(t, byte('b'), name[0], "base32 multibase prefix")
	assert.NotContains(t, name, "/")
}

func TestElementAddChildKeyDedupes(t *testing.T) {
	a, _ := ComputeKey(testType, []byte("a"), true)
	b, _ := ComputeKey(testType, []byte("b"), true)

	e, err := NewElement(testType, []byte(`{}`), false, []gocid.Cid{a, b, a, gocid.Undef})
	require.NoError(t, err)
	assert.Len(t, e.ChildKeys, 2)
}

func TestElementEnvelopeRoundTrip(t *testing.T) {
	child, _ := ComputeKey(testType, []byte("leaf"), true)
	e, err := NewElement(testType, []byte(`{"type":{},"body":{}}`), false, []gocid.Cid{child})
	require.NoError(t, err)

	data, err := MarshalElement(e)
	require.NoError(t, err)

	got, err := UnmarshalElement(e.Key, data)
	require.NoError(t, err)
	assert.True(t, got.Key.Equals(e.Key))
	assert.Equal(t, e.Type, got.Type)
	assert.Equal(t, e.Value, got.Value)
	assert.False(t, got.IsLeaf)
	require.Len(t, got.ChildKeys, 1)
	assert.True(t, got.ChildKeys[0].Equals(child))
}

func TestUnmarshalElementRejectsForeignKey(t *testing.T) {
	e, err := NewElement(testType, []byte("one"), true, nil)
	require.NoError(t, err)
	other, err := NewElement(testType, []byte("two"), true, nil)
	require.NoError(t, err)

	data, err := MarshalElement(e)
	require.NoError(t, err)

	_, err = UnmarshalElement(other.Key, data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIntegrity))
}

func TestUnmarshalElementRejectsGarbage(t *testing.T) {
	key, _ := ComputeKey(testType, []byte("x"), true)
	_, err := UnmarshalElement(key, []byte("{nope"))
	assert.True(t, errors.Is(err, errors.ErrIntegrity))

	_, err = UnmarshalElement(key, []byte(`{"v":9,"value":"eA=="}`))
	assert.True(t, errors.Is(err, errors.ErrIntegrity))
}

func TestElementClone(t *testing.T) {
	e, err := NewElement(testType, []byte("abc"), true, nil)
	require.NoError(t, err)
	c := e.Clone()
	c.Value[0] = 'z'
	assert.Equal(t, []byte("abc"), e.Value)
}
