package objgraph

import "github.com/google/uuid"

// ID identifies an object instance across the whole store.
type ID = uuid.UUID

// NilID is the zero ID. It never identifies a stored object.
var NilID = uuid.Nil

// NewID returns a new random object ID.
func NewID() ID {
	return uuid.New()
}

// ParseID parses the canonical string form of an ID.
func ParseID(s string) (ID, error) {
	return uuid.Parse(s)
}

// ObjectRef names an object together with its entity.
type ObjectRef struct {
	Entity string `json:"entity" msgpack:"entity"`
	ID     ID     `json:"id" msgpack:"id"`
}

// String returns "Entity#id".
func (r ObjectRef) String() string {
	return r.Entity + "#" + r.ID.String()
}
