package schema

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/systemshift/memex-vcs/internal/dag"
	"github.com/systemshift/memex-vcs/internal/errors"
)

// envelope is the serialized form of a non-leaf record. The type id is part
// of the hashed bytes.
type envelope struct {
	Type dag.TypeID          `json:"type"`
	Body jsoniter.RawMessage `json:"body"`
}

// Encode serializes r. Leaf records encode to a copy of their bytes; other
// records to the canonical JSON of their type and body.
func Encode(reg *Registry, r Record) (data []byte, leaf bool, err error) {
	if reg.IsLeaf(r.Type()) {
		l, ok := r.(Leaf)
		if !ok {
			return nil, false, errors.ErrInvalidArgument.Wrap(fmt.Errorf("type %s is registered as a leaf but %T has no bytes", r.Type(), r))
		}
		return append([]byte{}, l.Bytes()...), true, nil
	}
	body, err := dag.JSON().Marshal(r)
	if err != nil {
		return nil, false, fmt.Errorf("encode %s: %w", reg.Name(r.Type()), err)
	}
	data, err = dag.CanonicalJSON(envelope{Type: r.Type(), Body: body})
	if err != nil {
		return nil, false, fmt.Errorf("canonicalize %s: %w", reg.Name(r.Type()), err)
	}
	return data, false, nil
}

// Decode builds a record of type typ from its serialized form.
func Decode(reg *Registry, typ dag.TypeID, data []byte) (Record, error) {
	r, err := reg.New(typ)
	if err != nil {
		return nil, err
	}
	if reg.IsLeaf(typ) {
		l, ok := r.(Leaf)
		if !ok {
			return nil, errors.ErrInvalidArgument.Wrap(fmt.Errorf("type %s is registered as a leaf but %T has no bytes", typ, r))
		}
		l.SetBytes(append([]byte{}, data...))
		return r, nil
	}
	var env envelope
	if err := dag.JSON().Unmarshal(data, &env); err != nil {
		return nil, errors.ErrIntegrity.Wrap(fmt.Errorf("decode %s envelope: %w", reg.Name(typ), err))
	}
	if env.Type != typ {
		return nil, errors.ErrIntegrity.Wrap(fmt.Errorf("envelope carries type %s, want %s", env.Type, typ))
	}
	if err := dag.JSON().Unmarshal(env.Body, r); err != nil {
		return nil, errors.ErrIntegrity.Wrap(fmt.Errorf("decode %s body: %w", reg.Name(typ), err))
	}
	return r, nil
}
