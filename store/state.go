package store

import (
	"maps"
	"slices"

	"github.com/syssam/objgraph"
	"github.com/syssam/objgraph/schema"
)

// Object is a stored object instance. Objects returned by the store are
// immutable: every mutation goes through a Batch, which works on copies.
type Object struct {
	entity string
	id     objgraph.ID
	seq    uint64
	attrs  objgraph.Attrs
	rels   map[string][]objgraph.ID
}

// Entity returns the entity name.
func (o *Object) Entity() string { return o.entity }

// ID returns the object identity.
func (o *Object) ID() objgraph.ID { return o.id }

// Ref returns the entity-qualified reference of the object.
func (o *Object) Ref() objgraph.ObjectRef {
	return objgraph.ObjectRef{Entity: o.entity, ID: o.id}
}

// Seq returns the insertion sequence number of the object.
func (o *Object) Seq() uint64 { return o.seq }

// Attr returns the value of the named attribute. The returned value must
// not be modified.
func (o *Object) Attr(name string) (objgraph.Value, bool) {
	v, ok := o.attrs[name]
	return v, ok
}

// Attrs returns a copy of the attribute values.
func (o *Object) Attrs() objgraph.Attrs {
	return o.attrs.Clone()
}

// Related returns the IDs held by the named relationship, in order.
func (o *Object) Related(rel string) []objgraph.ID {
	return slices.Clone(o.rels[rel])
}

func (o *Object) clone() *Object {
	c := &Object{
		entity: o.entity,
		id:     o.id,
		seq:    o.seq,
		attrs:  maps.Clone(o.attrs),
		rels:   make(map[string][]objgraph.ID, len(o.rels)),
	}
	if c.attrs == nil {
		c.attrs = objgraph.Attrs{}
	}
	for k, ids := range o.rels {
		c.rels[k] = slices.Clone(ids)
	}
	return c
}

type idSet map[objgraph.ID]struct{}

// valueIndex maps attribute values to the objects holding them.
type valueIndex map[objgraph.ValueKey]idSet

// state is one version of the store contents. A state that has been
// published by Store.Apply is never modified again.
type state struct {
	seq      uint64
	objects  map[objgraph.ID]*Object
	byEntity map[string]idSet
	indexes  map[string]map[string]valueIndex // entity -> attribute -> index
}

func newState(s *schema.Schema) *state {
	st := &state{
		objects:  make(map[objgraph.ID]*Object),
		byEntity: make(map[string]idSet),
		indexes:  make(map[string]map[string]valueIndex),
	}
	for _, e := range s.Entities() {
		st.byEntity[e.Name()] = make(idSet)
		indexed := e.IndexedAttributes()
		if len(indexed) == 0 {
			continue
		}
		attrs := make(map[string]valueIndex, len(indexed))
		for _, a := range indexed {
			attrs[a.Name()] = make(valueIndex)
		}
		st.indexes[e.Name()] = attrs
	}
	return st
}

// clone copies the maps of the state. Objects are shared and copied on
// first write by the Batch.
func (st *state) clone() *state {
	c := &state{
		seq:      st.seq,
		objects:  maps.Clone(st.objects),
		byEntity: make(map[string]idSet, len(st.byEntity)),
		indexes:  make(map[string]map[string]valueIndex, len(st.indexes)),
	}
	for name, ids := range st.byEntity {
		c.byEntity[name] = maps.Clone(ids)
	}
	for name, attrs := range st.indexes {
		ca := make(map[string]valueIndex, len(attrs))
		for attr, idx := range attrs {
			ci := make(valueIndex, len(idx))
			for k, ids := range idx {
				ci[k] = maps.Clone(ids)
			}
			ca[attr] = ci
		}
		c.indexes[name] = ca
	}
	return c
}

func (st *state) add(o *Object) {
	st.objects[o.id] = o
	st.byEntity[o.entity][o.id] = struct{}{}
	st.index(o)
}

func (st *state) remove(o *Object) {
	st.unindex(o)
	delete(st.byEntity[o.entity], o.id)
	delete(st.objects, o.id)
}

func (st *state) index(o *Object) {
	for attr, idx := range st.indexes[o.entity] {
		v, ok := o.attrs[attr]
		if !ok {
			continue
		}
		k := objgraph.Key(v)
		ids, ok := idx[k]
		if !ok {
			ids = make(idSet)
			idx[k] = ids
		}
		ids[o.id] = struct{}{}
	}
}

func (st *state) unindex(o *Object) {
	for attr, idx := range st.indexes[o.entity] {
		v, ok := o.attrs[attr]
		if !ok {
			continue
		}
		k := objgraph.Key(v)
		if ids, ok := idx[k]; ok {
			delete(ids, o.id)
			if len(ids) == 0 {
				delete(idx, k)
			}
		}
	}
}

// sorted returns the objects of ids in insertion order.
func (st *state) sorted(ids idSet) []*Object {
	out := make([]*Object, 0, len(ids))
	for id := range ids {
		if o, ok := st.objects[id]; ok {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b *Object) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	return out
}
