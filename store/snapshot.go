package store

import (
	"github.com/syssam/objgraph"
	"github.com/syssam/objgraph/schema"
)

// Snapshot is an immutable view of the store contents at one point in
// time. It is safe for concurrent use and stays valid after later commits.
type Snapshot struct {
	schema *schema.Schema
	st     *state
	stats  *Stats
}

// Schema returns the schema of the snapshot.
func (s *Snapshot) Schema() *schema.Schema { return s.schema }

// Len returns the number of objects in the snapshot.
func (s *Snapshot) Len() int { return len(s.st.objects) }

// Get returns the object with the given ID.
func (s *Snapshot) Get(id objgraph.ID) (*Object, error) {
	o, ok := s.st.objects[id]
	if !ok {
		return nil, objgraph.NewNotFoundError("", id)
	}
	return o, nil
}

// Objects returns every object of the entity in insertion order.
func (s *Snapshot) Objects(entity string) ([]*Object, error) {
	if _, err := s.schema.MustEntity(entity); err != nil {
		return nil, err
	}
	s.stats.scans.Add(1)
	return s.st.sorted(s.st.byEntity[entity]), nil
}

// Lookup returns the objects of the entity whose indexed attribute equals
// v, in insertion order. ok is false if the attribute is not indexed or v
// cannot be held by it.
func (s *Snapshot) Lookup(entity, attr string, v objgraph.Value) (objs []*Object, ok bool) {
	idx, ok := s.st.indexes[entity][attr]
	if !ok {
		return nil, false
	}
	e, _ := s.schema.Entity(entity)
	a, _ := e.Attribute(attr)
	if objgraph.IsNull(v) {
		return nil, false
	}
	cv, err := Coerce(a, v)
	if err != nil {
		return nil, false
	}
	s.stats.indexHits.Add(1)
	return s.st.sorted(idx[objgraph.Key(cv)]), true
}
