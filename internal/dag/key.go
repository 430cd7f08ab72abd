package dag

import (
	"fmt"

	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"

	"github.com/systemshift/memex-vcs/internal/errors"
)

// ComputeKey computes the content key of an element of type typ: a CIDv1
// over a SHA-1 multihash. Records use the dag-json codec and hash their
// value, which carries the type id. Leaves use the raw codec and hash the
// type id ahead of their bytes, so equal bytes of two leaf types differ.
func ComputeKey(typ TypeID, data []byte, leaf bool) (gocid.Cid, error) {
	codec := uint64(gocid.DagJSON)
	if leaf {
		codec = gocid.Raw
	}
	mh, err := multihash.Sum(preimage(codec, typ, data), multihash.SHA1, -1)
	if err != nil {
		return gocid.Undef, fmt.Errorf("multihash: %w", err)
	}
	return gocid.NewCidV1(codec, mh), nil
}

// preimage is the byte string hashed into a key with the given codec.
func preimage(codec uint64, typ TypeID, data []byte) []byte {
	if codec != gocid.Raw {
		return data
	}
	out := make([]byte, 0, len(data)+16)
	out = append(out, typ.String()...)
	out = append(out, 0)
	return append(out, data...)
}

// VerifyKey checks that key is the hash of data stored as type typ.
func VerifyKey(key gocid.Cid, typ TypeID, data []byte) error {
	if !key.Defined() {
		return errors.ErrIntegrity.Wrap(fmt.Errorf("undefined key"))
	}
	prefix := key.Prefix()
	sum, err := prefix.Sum(preimage(prefix.Codec, typ, data))
	if err != nil {
		return errors.ErrIntegrity.Wrap(fmt.Errorf("rehash %s: %w", key, err))
	}
	if !sum.Equals(key) {
		return errors.ErrIntegrity.Wrap(fmt.Errorf("element %s of type %s hashes to %s", key, typ, sum))
	}
	return nil
}

// KeyToFilename returns the base32lower encoding of a key for use as a filename.
func KeyToFilename(c gocid.Cid) string {
	encoded, _ := multibase.Encode(multibase.Base32, c.Bytes())
	return encoded
}

// ParseKey decodes the text form of a content key.
func ParseKey(s string) (gocid.Cid, error) {
	c, err := gocid.Decode(s)
	if err != nil {
		return gocid.Undef, errors.ErrInvalidArgument.Wrap(fmt.Errorf("parse key %q: %w", s, err))
	}
	return c, nil
}

// ShortKey is an abbreviated key for log and status lines.
func ShortKey(c gocid.Cid) string {
	if !c.Defined() {
		return "-"
	}
	s := c.String()
	if len(s) > 12 {
		return s[len(s)-12:]
	}
	return s
}
