package query

import (
	"iter"
	"slices"

	"github.com/syssam/objgraph"
	"github.com/syssam/objgraph/store"
)

// Results is the lazy result of a fetch. It can be iterated any number of
// times and always yields the same instances.
type Results struct {
	seq iter.Seq[*Instance]
}

// All returns an iterator over the results.
func (r *Results) All() iter.Seq[*Instance] { return r.seq }

// Slice materializes the results.
func (r *Results) Slice() []*Instance { return slices.Collect(r.seq) }

// Count returns the number of results.
func (r *Results) Count() int {
	n := 0
	for range r.seq {
		n++
	}
	return n
}

// First returns the first result, or a NotFoundError if there is none.
func (r *Results) First() (*Instance, error) {
	for inst := range r.seq {
		return inst, nil
	}
	return nil, objgraph.NewNotFoundError("", nil)
}

// Instance is a fetched object bound to the snapshot it was read from, so
// that relationship traversal sees the same state as the fetch.
type Instance struct {
	obj  *store.Object
	snap *store.Snapshot
}

// Object returns the underlying store object.
func (i *Instance) Object() *store.Object { return i.obj }

// Entity returns the entity name.
func (i *Instance) Entity() string { return i.obj.Entity() }

// ID returns the object ID.
func (i *Instance) ID() objgraph.ID { return i.obj.ID() }

// Ref returns the entity-qualified reference.
func (i *Instance) Ref() objgraph.ObjectRef { return i.obj.Ref() }

// Get returns the value of the attribute, or Null if it is unset.
func (i *Instance) Get(attr string) objgraph.Value {
	if v, ok := i.obj.Attr(attr); ok {
		return v
	}
	return objgraph.Null{}
}

// Related returns the instances held by the relationship, in order.
func (i *Instance) Related(rel string) []*Instance {
	ids := i.obj.Related(rel)
	out := make([]*Instance, 0, len(ids))
	for _, id := range ids {
		if o, err := i.snap.Get(id); err == nil {
			out = append(out, &Instance{obj: o, snap: i.snap})
		}
	}
	return out
}

// One returns the instance held by a to-one relationship.
func (i *Instance) One(rel string) (*Instance, error) {
	e, _ := i.snap.Schema().Entity(i.obj.Entity())
	r, ok := e.Relationship(rel)
	if !ok {
		return nil, &objgraph.UnknownRelationshipError{Entity: e.Name(), Relationship: rel}
	}
	related := i.Related(rel)
	if len(related) == 0 {
		return nil, objgraph.NewNotFoundError(r.Destination(), nil)
	}
	return related[0], nil
}
