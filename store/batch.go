package store

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/syssam/objgraph"
	"github.com/syssam/objgraph/schema"
)

// Batch is a unit of mutations applied atomically by Store.Apply. It works
// on a private copy of the store state; nothing it does is visible to
// readers until Apply publishes it.
//
// Every mutating method validates its arguments before touching the working
// state, so a failed call leaves the batch as it was and the caller may
// carry on collecting errors.
type Batch struct {
	schema  *schema.Schema
	st      *state
	owned   idSet
	changes changeSet
	deleted int
	cascade int
}

func newBatch(s *schema.Schema, st *state) *Batch {
	return &Batch{
		schema:  s,
		st:      st,
		owned:   make(idSet),
		changes: newChangeSet(),
	}
}

// Schema returns the schema the batch validates against.
func (b *Batch) Schema() *schema.Schema { return b.schema }

// Get returns the object as seen by the batch, including its own pending
// mutations.
func (b *Batch) Get(id objgraph.ID) (*Object, error) {
	o, ok := b.st.objects[id]
	if !ok {
		return nil, objgraph.NewNotFoundError("", id)
	}
	return o, nil
}

// mutable returns a copy of the object that the batch may modify.
func (b *Batch) mutable(id objgraph.ID) *Object {
	o := b.st.objects[id]
	if _, ok := b.owned[id]; ok {
		return o
	}
	c := o.clone()
	b.st.objects[id] = c
	b.owned[id] = struct{}{}
	return c
}

// Insert adds a new object of the given entity. A nil id is replaced with a
// fresh one. Attributes with a default producer are filled in when absent.
func (b *Batch) Insert(entity string, id objgraph.ID, attrs objgraph.Attrs) (objgraph.ID, error) {
	e, err := b.schema.MustEntity(entity)
	if err != nil {
		return objgraph.NilID, err
	}
	if id == objgraph.NilID {
		id = objgraph.NewID()
	}
	if _, ok := b.st.objects[id]; ok {
		return objgraph.NilID, fmt.Errorf("objgraph: insert %s#%s: %w", entity, id, objgraph.ErrAlreadyExists)
	}
	values, err := normalize(e, attrs)
	if err != nil {
		return objgraph.NilID, err
	}
	for _, a := range e.Attributes() {
		if _, ok := values[a.Name()]; !ok && a.Default() != nil {
			values[a.Name()] = a.Default()()
		}
	}
	b.st.seq++
	o := &Object{
		entity: entity,
		id:     id,
		seq:    b.st.seq,
		attrs:  values,
		rels:   make(map[string][]objgraph.ID),
	}
	b.st.add(o)
	b.owned[id] = struct{}{}
	b.changes.insert(o.Ref())
	return id, nil
}

// Update sets the given attributes on an existing object. A Null value
// clears an attribute. Setting an immutable attribute fails with
// ImmutableAttributeError. Attributes with an update-default producer that
// are not part of attrs are refreshed.
func (b *Batch) Update(id objgraph.ID, attrs objgraph.Attrs) error {
	cur, err := b.Get(id)
	if err != nil {
		return err
	}
	e, err := b.schema.MustEntity(cur.entity)
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(attrs)) {
		if a, ok := e.Attribute(name); ok && a.Immutable() {
			errs = append(errs, &objgraph.ImmutableAttributeError{Ref: cur.Ref(), Attribute: name})
		}
	}
	if err := objgraph.NewAggregateError(errs...); err != nil {
		return err
	}
	values, err := normalize(e, attrs)
	if err != nil {
		return err
	}
	o := b.mutable(id)
	b.st.unindex(o)
	for name := range attrs {
		if v, ok := values[name]; ok {
			o.attrs[name] = v
		} else {
			delete(o.attrs, name)
		}
	}
	for _, a := range e.Attributes() {
		if _, ok := attrs[a.Name()]; !ok && a.UpdateDefault() != nil {
			o.attrs[a.Name()] = a.UpdateDefault()()
		}
	}
	b.st.index(o)
	b.changes.update(o.Ref())
	return nil
}

// Delete removes the object and applies the delete rules of its
// relationships transitively. It returns every removed object, the
// requested one first. Already visited objects are not walked again, so
// cyclic cascade graphs terminate.
func (b *Batch) Delete(id objgraph.ID) ([]objgraph.ObjectRef, error) {
	if _, err := b.Get(id); err != nil {
		return nil, err
	}
	victims, err := b.plan(id)
	if err != nil {
		return nil, err
	}
	doomed := make(idSet, len(victims))
	for _, o := range victims {
		doomed[o.id] = struct{}{}
	}
	refs := make([]objgraph.ObjectRef, 0, len(victims))
	for _, o := range victims {
		e, _ := b.schema.Entity(o.entity)
		for _, r := range e.Relationships() {
			inv := r.Inverse().Name()
			for _, rid := range o.rels[r.Name()] {
				if _, ok := doomed[rid]; ok {
					continue
				}
				m := b.mutable(rid)
				m.rels[inv] = without(m.rels[inv], o.id)
				if len(m.rels[inv]) == 0 {
					delete(m.rels, inv)
				}
				b.changes.update(m.Ref())
			}
		}
	}
	for _, o := range victims {
		b.st.remove(b.st.objects[o.id])
		delete(b.owned, o.id)
		b.changes.delete(o.Ref())
		refs = append(refs, o.Ref())
	}
	b.deleted += len(victims)
	b.cascade += len(victims) - 1
	return refs, nil
}

// plan collects the objects removed by deleting id, in breadth-first
// order, and checks the Deny rules against objects that survive.
func (b *Batch) plan(id objgraph.ID) ([]*Object, error) {
	type denied struct {
		obj *Object
		rel string
	}
	var (
		victims []*Object
		denies  []denied
		seen    = idSet{id: {}}
		queue   = []objgraph.ID{id}
	)
	for len(queue) > 0 {
		o := b.st.objects[queue[0]]
		queue = queue[1:]
		victims = append(victims, o)
		e, _ := b.schema.Entity(o.entity)
		for _, r := range e.Relationships() {
			related := o.rels[r.Name()]
			if len(related) == 0 {
				continue
			}
			switch r.DeleteRule() {
			case schema.Cascade:
				for _, rid := range related {
					if _, ok := seen[rid]; !ok {
						seen[rid] = struct{}{}
						queue = append(queue, rid)
					}
				}
			case schema.Deny:
				denies = append(denies, denied{obj: o, rel: r.Name()})
			}
		}
	}
	var errs []error
	for _, d := range denies {
		n := 0
		for _, rid := range d.obj.rels[d.rel] {
			if _, ok := seen[rid]; !ok {
				n++
			}
		}
		if n > 0 {
			errs = append(errs, &objgraph.DenyDeleteError{Ref: d.obj.Ref(), Relationship: d.rel, Related: n})
		}
	}
	if err := objgraph.NewAggregateError(errs...); err != nil {
		return nil, err
	}
	return victims, nil
}

// SetRelationship replaces the targets of the named relationship and keeps
// the inverse side consistent. Targets that belong to another object
// through a to-one inverse are moved to this one.
func (b *Batch) SetRelationship(id objgraph.ID, rel string, targets ...objgraph.ID) error {
	cur, err := b.Get(id)
	if err != nil {
		return err
	}
	e, err := b.schema.MustEntity(cur.entity)
	if err != nil {
		return err
	}
	r, ok := e.Relationship(rel)
	if !ok {
		return &objgraph.UnknownRelationshipError{Entity: e.Name(), Relationship: rel}
	}
	if err := b.checkTargets(cur, r, targets); err != nil {
		return err
	}

	inv := r.Inverse()
	old := cur.rels[rel]
	for _, tid := range old {
		if slices.Contains(targets, tid) {
			continue
		}
		m := b.mutable(tid)
		m.rels[inv.Name()] = without(m.rels[inv.Name()], id)
		if len(m.rels[inv.Name()]) == 0 {
			delete(m.rels, inv.Name())
		}
		b.changes.update(m.Ref())
	}
	for _, tid := range targets {
		if slices.Contains(old, tid) {
			continue
		}
		m := b.mutable(tid)
		if inv.ToMany() {
			m.rels[inv.Name()] = append(m.rels[inv.Name()], id)
		} else {
			if prev := m.rels[inv.Name()]; len(prev) > 0 && prev[0] != id {
				p := b.mutable(prev[0])
				p.rels[rel] = without(p.rels[rel], tid)
				if len(p.rels[rel]) == 0 {
					delete(p.rels, rel)
				}
				b.changes.update(p.Ref())
			}
			m.rels[inv.Name()] = []objgraph.ID{id}
		}
		b.changes.update(m.Ref())
	}
	o := b.mutable(id)
	if len(targets) == 0 {
		delete(o.rels, rel)
	} else {
		o.rels[rel] = slices.Clone(targets)
	}
	b.changes.update(o.Ref())
	return nil
}

func (b *Batch) checkTargets(o *Object, r *schema.Relationship, targets []objgraph.ID) error {
	ref := o.Ref()
	if limit := r.MaxCount(); limit > 0 && len(targets) > limit {
		return &objgraph.CardinalityViolationError{Ref: ref, Relationship: r.Name(), Max: limit, Got: len(targets)}
	}
	inv := r.Inverse()
	var errs []error
	for i, tid := range targets {
		if slices.Contains(targets[:i], tid) {
			errs = append(errs, &objgraph.CardinalityViolationError{
				Ref: ref, Relationship: r.Name(), Reason: fmt.Sprintf("duplicate target %s", tid),
			})
			continue
		}
		t, ok := b.st.objects[tid]
		if !ok {
			errs = append(errs, objgraph.NewNotFoundError(r.Destination(), tid))
			continue
		}
		if t.entity != r.Destination() {
			errs = append(errs, &objgraph.CardinalityViolationError{
				Ref: ref, Relationship: r.Name(),
				Reason: fmt.Sprintf("target %s is not a %s", t.Ref(), r.Destination()),
			})
			continue
		}
		if !inv.ToMany() || inv.MaxCount() == 0 || slices.Contains(o.rels[r.Name()], tid) {
			continue
		}
		if n := len(t.rels[inv.Name()]) + 1; n > inv.MaxCount() {
			errs = append(errs, &objgraph.CardinalityViolationError{
				Ref: t.Ref(), Relationship: inv.Name(), Max: inv.MaxCount(), Got: n,
			})
		}
	}
	return objgraph.NewAggregateError(errs...)
}

// validate reports the required attributes missing on every object the
// batch inserted or updated.
func (b *Batch) validate() error {
	var errs []error
	for _, ref := range b.changes.touched() {
		o, ok := b.st.objects[ref.ID]
		if !ok {
			continue
		}
		e, _ := b.schema.Entity(o.entity)
		for _, a := range e.Attributes() {
			if a.Optional() {
				continue
			}
			if v, ok := o.attrs[a.Name()]; !ok || objgraph.IsNull(v) {
				errs = append(errs, &objgraph.RequiredAttributeMissingError{Ref: ref, Attribute: a.Name()})
			}
		}
	}
	return objgraph.NewAggregateError(errs...)
}

// Change returns the notification describing the batch.
func (b *Batch) Change(at time.Time) objgraph.Change {
	return b.changes.change(at)
}

// normalize checks attrs against the entity and converts them to the
// declared attribute types. Null values are dropped.
func normalize(e *schema.Entity, attrs objgraph.Attrs) (objgraph.Attrs, error) {
	out := make(objgraph.Attrs, len(attrs))
	var errs []error
	for name, v := range attrs {
		a, ok := e.Attribute(name)
		if !ok {
			errs = append(errs, &objgraph.UnknownAttributeError{Entity: e.Name(), Attribute: name})
			continue
		}
		if objgraph.IsNull(v) {
			continue
		}
		cv, err := Coerce(a, v)
		if err != nil {
			errs = append(errs, &objgraph.TypeMismatchError{
				Entity: e.Name(), Attribute: name, Want: a.Type(), Got: v.Kind(),
			})
			continue
		}
		out[name] = cv
	}
	if err := objgraph.NewAggregateError(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// Coerce converts v to the type of the attribute. Integers are widened to
// floats; every other kind must match exactly.
func Coerce(a *schema.Attribute, v objgraph.Value) (objgraph.Value, error) {
	if v.Kind() == a.Type() {
		if bs, ok := v.(objgraph.Bytes); ok {
			return objgraph.Bytes(slices.Clone(bs)), nil
		}
		return v, nil
	}
	if n, ok := v.(objgraph.Int); ok && a.Type() == schema.TypeFloat {
		return objgraph.Float(n), nil
	}
	return nil, errors.New("type mismatch")
}

func without(ids []objgraph.ID, id objgraph.ID) []objgraph.ID {
	return slices.DeleteFunc(slices.Clone(ids), func(x objgraph.ID) bool { return x == id })
}

// changeSet records the objects touched by a batch in first-touch order.
type changeSet struct {
	order  []objgraph.ID
	refs   map[objgraph.ID]objgraph.ObjectRef
	status map[objgraph.ID]changeKind
	prev   map[objgraph.ID]objgraph.ObjectRef // deleted object of a changeReplaced id
}

type changeKind uint8

const (
	changeInserted changeKind = iota + 1
	changeUpdated
	changeDeleted
	changeDropped  // inserted and deleted by the same batch
	changeReplaced // deleted and re-inserted as another entity
)

func newChangeSet() changeSet {
	return changeSet{
		refs:   make(map[objgraph.ID]objgraph.ObjectRef),
		status: make(map[objgraph.ID]changeKind),
		prev:   make(map[objgraph.ID]objgraph.ObjectRef),
	}
}

func (c *changeSet) set(ref objgraph.ObjectRef, k changeKind) {
	if _, ok := c.status[ref.ID]; !ok {
		c.order = append(c.order, ref.ID)
	}
	c.refs[ref.ID] = ref
	c.status[ref.ID] = k
}

// insert records a new object. An id deleted earlier in the batch is
// reported as updated when it comes back as the same entity, and as both
// deleted and inserted otherwise.
func (c *changeSet) insert(ref objgraph.ObjectRef) {
	if c.status[ref.ID] != changeDeleted {
		c.set(ref, changeInserted)
		return
	}
	if old := c.refs[ref.ID]; old.Entity != ref.Entity {
		c.prev[ref.ID] = old
		c.set(ref, changeReplaced)
		return
	}
	c.set(ref, changeUpdated)
}

func (c *changeSet) update(ref objgraph.ObjectRef) {
	if _, ok := c.status[ref.ID]; !ok {
		c.set(ref, changeUpdated)
	}
}

func (c *changeSet) delete(ref objgraph.ObjectRef) {
	switch c.status[ref.ID] {
	case changeInserted:
		c.set(ref, changeDropped)
	case changeReplaced:
		c.set(c.prev[ref.ID], changeDeleted)
		delete(c.prev, ref.ID)
	default:
		c.set(ref, changeDeleted)
	}
}

// touched returns the objects inserted or updated by the batch.
func (c *changeSet) touched() []objgraph.ObjectRef {
	var out []objgraph.ObjectRef
	for _, id := range c.order {
		switch c.status[id] {
		case changeInserted, changeUpdated, changeReplaced:
			out = append(out, c.refs[id])
		}
	}
	return out
}

func (c *changeSet) change(at time.Time) objgraph.Change {
	ch := objgraph.Change{CommittedAt: at}
	for _, id := range c.order {
		ref := c.refs[id]
		switch c.status[id] {
		case changeInserted:
			ch.Inserted = append(ch.Inserted, ref)
		case changeUpdated:
			ch.Updated = append(ch.Updated, ref)
		case changeDeleted:
			ch.Deleted = append(ch.Deleted, ref)
		case changeReplaced:
			ch.Deleted = append(ch.Deleted, c.prev[id])
			ch.Inserted = append(ch.Inserted, ref)
		}
	}
	return ch
}
