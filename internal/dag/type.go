package dag

import "fmt"

// TypeID identifies the schema of a typed record.
type TypeID struct {
	ObjectID uint32 `json:"object_id"`
	Version  uint32 `json:"version"`
}

// IsZero reports whether t is the unset type id.
func (t TypeID) IsZero() bool {
	return t.ObjectID == 0 && t.Version == 0
}

func (t TypeID) String() string {
	return fmt.Sprintf("%d.%d", t.ObjectID, t.Version)
}
