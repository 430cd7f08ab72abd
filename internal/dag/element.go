package dag

import (
	"fmt"

	gocid "github.com/ipfs/go-cid"

	"github.com/systemshift/memex-vcs/internal/errors"
)

// Element is the serialized, content-addressed form of one object.
type Element struct {
	Key       gocid.Cid
	Type      TypeID
	Value     []byte
	IsLeaf    bool
	ChildKeys []gocid.Cid
}

// NewElement hashes value and returns the element addressed by the result.
func NewElement(typ TypeID, value []byte, leaf bool, children []gocid.Cid) (*Element, error) {
	key, err := ComputeKey(typ, value, leaf)
	if err != nil {
		return nil, err
	}
	e := &Element{Key: key, Type: typ, Value: value, IsLeaf: leaf}
	for _, c := range children {
		e.AddChildKey(c)
	}
	return e, nil
}

// Verify checks the element key against its type and value.
func (e *Element) Verify() error {
	return VerifyKey(e.Key, e.Type, e.Value)
}

// AddChildKey records a key referenced from the element's value.
func (e *Element) AddChildKey(c gocid.Cid) {
	if !c.Defined() {
		return
	}
	for _, k := range e.ChildKeys {
		if k.Equals(c) {
			return
		}
	}
	e.ChildKeys = append(e.ChildKeys, c)
}

// envelope is the stored form of an element. The key is the storage address
// and is not repeated inside.
type envelope struct {
	V        int      `json:"v"`
	Type     TypeID   `json:"type"`
	Leaf     bool     `json:"leaf,omitempty"`
	Value    []byte   `json:"value"`
	Children []string `json:"children,omitempty"`
}

const envelopeVersion = 1

// MarshalElement encodes e for a content store.
func MarshalElement(e *Element) ([]byte, error) {
	env := envelope{V: envelopeVersion, Type: e.Type, Leaf: e.IsLeaf, Value: e.Value}
	for _, c := range e.ChildKeys {
		env.Children = append(env.Children, c.String())
	}
	return json.Marshal(env)
}

// UnmarshalElement decodes the envelope stored under key and verifies that
// key is the hash of the recovered value.
func UnmarshalElement(key gocid.Cid, data []byte) (*Element, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.ErrIntegrity.Wrap(fmt.Errorf("decode element %s: %w", key, err))
	}
	if env.V != envelopeVersion {
		return nil, errors.ErrIntegrity.Wrap(fmt.Errorf("element %s: unsupported envelope version %d", key, env.V))
	}
	e := &Element{Key: key, Type: env.Type, Value: env.Value, IsLeaf: env.Leaf}
	for _, s := range env.Children {
		c, err := gocid.Decode(s)
		if err != nil {
			return nil, errors.ErrIntegrity.Wrap(fmt.Errorf("element %s: child key %q: %w", key, s, err))
		}
		e.ChildKeys = append(e.ChildKeys, c)
	}
	if err := e.Verify(); err != nil {
		return nil, err
	}
	return e, nil
}

// Clone returns a deep copy of e.
func (e *Element) Clone() *Element {
	c := *e
	c.Value = append([]byte(nil), e.Value...)
	c.ChildKeys = append([]gocid.Cid(nil), e.ChildKeys...)
	return &c
}
