package tx

import (
	"fmt"
	"maps"
	"slices"

	"github.com/syssam/objgraph"
	"github.com/syssam/objgraph/store"
)

// Op is an operation staged in a transaction: Insert, Update, Delete or
// Relate.
type Op interface {
	// Op returns the mutation operation of the staged op.
	Op() objgraph.Op
	// mutation resolves the op against the working copy of the store.
	mutation(b *store.Batch) (*mutation, error)
}

// Insert stages a new object. A zero ID is replaced by a fresh one when the
// op is staged.
type Insert struct {
	Entity string
	ID     objgraph.ID
	Attrs  objgraph.Attrs
}

// Update stages attribute changes on an existing object. A Null value
// clears an attribute.
type Update struct {
	ID    objgraph.ID
	Attrs objgraph.Attrs
}

// Delete stages the removal of an object. Delete rules are applied at
// commit time.
type Delete struct {
	ID objgraph.ID
}

// Relate stages the replacement of a relationship's targets. No targets
// clears the relationship.
type Relate struct {
	ID      objgraph.ID
	Rel     string
	Targets []objgraph.ID
}

// Op implements the Op interface.
func (Insert) Op() objgraph.Op { return objgraph.OpInsert }

// Op implements the Op interface.
func (Update) Op() objgraph.Op { return objgraph.OpUpdate }

// Op implements the Op interface.
func (Delete) Op() objgraph.Op { return objgraph.OpDelete }

// Op implements the Op interface.
func (Relate) Op() objgraph.Op { return objgraph.OpRelate }

func (i Insert) mutation(*store.Batch) (*mutation, error) {
	return &mutation{op: objgraph.OpInsert, entity: i.Entity, id: i.ID, fields: i.Attrs.Clone()}, nil
}

func (u Update) mutation(b *store.Batch) (*mutation, error) {
	o, err := b.Get(u.ID)
	if err != nil {
		return nil, err
	}
	return &mutation{op: objgraph.OpUpdate, entity: o.Entity(), id: u.ID, fields: u.Attrs.Clone()}, nil
}

func (d Delete) mutation(b *store.Batch) (*mutation, error) {
	o, err := b.Get(d.ID)
	if err != nil {
		return nil, err
	}
	return &mutation{op: objgraph.OpDelete, entity: o.Entity(), id: d.ID}, nil
}

func (r Relate) mutation(b *store.Batch) (*mutation, error) {
	o, err := b.Get(r.ID)
	if err != nil {
		return nil, err
	}
	return &mutation{op: objgraph.OpRelate, entity: o.Entity(), id: r.ID, rel: r.Rel, targets: slices.Clone(r.Targets)}, nil
}

// mutation is the objgraph.Mutation handed to hooks and privacy policies.
type mutation struct {
	op      objgraph.Op
	entity  string
	id      objgraph.ID
	fields  objgraph.Attrs
	rel     string
	targets []objgraph.ID
}

func (m *mutation) Op() objgraph.Op  { return m.op }
func (m *mutation) Entity() string   { return m.entity }
func (m *mutation) ID() objgraph.ID  { return m.id }
func (m *mutation) Fields() []string { return slices.Sorted(maps.Keys(m.fields)) }

func (m *mutation) Field(name string) (objgraph.Value, bool) {
	v, ok := m.fields[name]
	return v, ok
}

func (m *mutation) SetField(name string, v objgraph.Value) error {
	if !m.op.Is(objgraph.OpInsert | objgraph.OpUpdate) {
		return fmt.Errorf("objgraph/tx: %s mutation has no attributes", m.op)
	}
	if m.fields == nil {
		m.fields = make(objgraph.Attrs)
	}
	m.fields[name] = v
	return nil
}

func (m *mutation) Relationship() (string, []objgraph.ID) {
	return m.rel, slices.Clone(m.targets)
}

// apply runs the mutation against the batch.
func (m *mutation) apply(b *store.Batch) error {
	switch m.op {
	case objgraph.OpInsert:
		_, err := b.Insert(m.entity, m.id, m.fields)
		return err
	case objgraph.OpUpdate:
		return b.Update(m.id, m.fields)
	case objgraph.OpDelete:
		_, err := b.Delete(m.id)
		return err
	case objgraph.OpRelate:
		return b.SetRelationship(m.id, m.rel, m.targets...)
	default:
		return fmt.Errorf("objgraph/tx: unexpected mutation op %s", m.op)
	}
}

// opName returns the lower-case name of an op used in MutationError.
func opName(op objgraph.Op) string {
	switch op {
	case objgraph.OpInsert:
		return "insert"
	case objgraph.OpUpdate:
		return "update"
	case objgraph.OpDelete:
		return "delete"
	case objgraph.OpRelate:
		return "relate"
	default:
		return op.String()
	}
}
