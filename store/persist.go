package store

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/syssam/objgraph"
	"github.com/syssam/objgraph/schema"
)

const snapshotVersion = 2

type (
	wireSnapshot struct {
		Version int          `msgpack:"version"`
		Seq     uint64       `msgpack:"seq"`
		Objects []wireObject `msgpack:"objects"`
	}

	wireObject struct {
		Entity string               `msgpack:"entity"`
		ID     string               `msgpack:"id"`
		Seq    uint64               `msgpack:"seq"`
		Attrs  map[string]wireValue `msgpack:"attrs,omitempty"`
		Rels   map[string][]string  `msgpack:"rels,omitempty"`
	}

	// wireValue is the tagged encoding of an objgraph.Value. Only the field
	// selected by Kind is set; times use N for Unix seconds and NS for the
	// nanosecond remainder.
	wireValue struct {
		Kind objgraph.Kind `msgpack:"k"`
		S    string        `msgpack:"s,omitempty"`
		N    int64         `msgpack:"n,omitempty"`
		NS   int64         `msgpack:"ns,omitempty"`
		F    float64       `msgpack:"f,omitempty"`
		B    []byte        `msgpack:"b,omitempty"`
	}
)

func encodeValue(v objgraph.Value) wireValue {
	w := wireValue{Kind: v.Kind()}
	switch v := v.(type) {
	case objgraph.String:
		w.S = string(v)
	case objgraph.Int:
		w.N = int64(v)
	case objgraph.Float:
		w.F = float64(v)
	case objgraph.Bool:
		if v {
			w.N = 1
		}
	case objgraph.Time:
		t := v.Std()
		w.N, w.NS = t.Unix(), int64(t.Nanosecond())
	case objgraph.Bytes:
		w.B = v
	case objgraph.UUID:
		w.B = v[:]
	}
	return w
}

func decodeValue(w wireValue) (objgraph.Value, error) {
	switch w.Kind {
	case objgraph.KindString:
		return objgraph.String(w.S), nil
	case objgraph.KindInt:
		return objgraph.Int(w.N), nil
	case objgraph.KindFloat:
		return objgraph.Float(w.F), nil
	case objgraph.KindBool:
		return objgraph.Bool(w.N != 0), nil
	case objgraph.KindTime:
		return objgraph.Time(time.Unix(w.N, w.NS).UTC()), nil
	case objgraph.KindBytes:
		return objgraph.Bytes(w.B), nil
	case objgraph.KindUUID:
		u, err := uuid.FromBytes(w.B)
		if err != nil {
			return nil, err
		}
		return objgraph.UUID(u), nil
	}
	return nil, fmt.Errorf("unknown value kind %d", w.Kind)
}

// WriteSnapshot encodes the committed contents of the store to w as
// msgpack. Equal store contents produce identical bytes.
func (s *Store) WriteSnapshot(w io.Writer) error {
	st := s.View().st
	snap := wireSnapshot{Version: snapshotVersion, Seq: st.seq}
	all := make(idSet, len(st.objects))
	for id := range st.objects {
		all[id] = struct{}{}
	}
	for _, o := range st.sorted(all) {
		wo := wireObject{Entity: o.entity, ID: o.id.String(), Seq: o.seq}
		if len(o.attrs) > 0 {
			wo.Attrs = make(map[string]wireValue, len(o.attrs))
			for k, v := range o.attrs {
				wo.Attrs[k] = encodeValue(v)
			}
		}
		if len(o.rels) > 0 {
			wo.Rels = make(map[string][]string, len(o.rels))
			for k, ids := range o.rels {
				strs := make([]string, len(ids))
				for i, id := range ids {
					strs[i] = id.String()
				}
				wo.Rels[k] = strs
			}
		}
		snap.Objects = append(snap.Objects, wo)
	}
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(&snap); err != nil {
		return fmt.Errorf("objgraph: encode snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot replaces the contents of the store with a snapshot written
// by WriteSnapshot. The snapshot is checked against the schema of the
// store; on error the store is left unchanged.
func (s *Store) ReadSnapshot(r io.Reader) error {
	var snap wireSnapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("objgraph: decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("objgraph: unsupported snapshot version %d", snap.Version)
	}
	st, err := restore(s.schema, &snap)
	if err != nil {
		return fmt.Errorf("objgraph: restore snapshot: %w", err)
	}
	s.mu.Lock()
	s.cur = st
	s.mu.Unlock()
	s.log.Debug("snapshot restored", zap.Int("objects", len(st.objects)))
	return nil
}

func restore(sc *schema.Schema, snap *wireSnapshot) (*state, error) {
	st := newState(sc)
	st.seq = snap.Seq
	for _, wo := range snap.Objects {
		e, err := sc.MustEntity(wo.Entity)
		if err != nil {
			return nil, err
		}
		id, err := objgraph.ParseID(wo.ID)
		if err != nil {
			return nil, err
		}
		if _, ok := st.objects[id]; ok {
			return nil, fmt.Errorf("%s#%s: %w", wo.Entity, id, objgraph.ErrAlreadyExists)
		}
		o := &Object{
			entity: wo.Entity,
			id:     id,
			seq:    wo.Seq,
			attrs:  make(objgraph.Attrs, len(wo.Attrs)),
			rels:   make(map[string][]objgraph.ID, len(wo.Rels)),
		}
		for name, wv := range wo.Attrs {
			a, ok := e.Attribute(name)
			if !ok {
				return nil, &objgraph.UnknownAttributeError{Entity: e.Name(), Attribute: name}
			}
			v, err := decodeValue(wv)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", e.Name(), name, err)
			}
			if v.Kind() != a.Type() {
				return nil, &objgraph.TypeMismatchError{Entity: e.Name(), Attribute: name, Want: a.Type(), Got: v.Kind()}
			}
			o.attrs[name] = v
		}
		for name, strs := range wo.Rels {
			if _, ok := e.Relationship(name); !ok {
				return nil, &objgraph.UnknownRelationshipError{Entity: e.Name(), Relationship: name}
			}
			ids := make([]objgraph.ID, len(strs))
			for i, str := range strs {
				if ids[i], err = objgraph.ParseID(str); err != nil {
					return nil, err
				}
			}
			o.rels[name] = ids
		}
		st.add(o)
	}
	if err := checkInverses(sc, st); err != nil {
		return nil, err
	}
	if err := checkConstraints(sc, st); err != nil {
		return nil, err
	}
	return st, nil
}

// checkConstraints verifies required attributes and to-many max counts of
// every restored object, in object order.
func checkConstraints(sc *schema.Schema, st *state) error {
	all := make(idSet, len(st.objects))
	for id := range st.objects {
		all[id] = struct{}{}
	}
	var errs []error
	for _, o := range st.sorted(all) {
		e, _ := sc.Entity(o.entity)
		for _, a := range e.Attributes() {
			if a.Optional() {
				continue
			}
			if v, ok := o.attrs[a.Name()]; !ok || objgraph.IsNull(v) {
				errs = append(errs, &objgraph.RequiredAttributeMissingError{Ref: o.Ref(), Attribute: a.Name()})
			}
		}
		for _, r := range e.Relationships() {
			if n := len(o.rels[r.Name()]); r.ToMany() && r.MaxCount() > 0 && n > r.MaxCount() {
				errs = append(errs, &objgraph.CardinalityViolationError{Ref: o.Ref(), Relationship: r.Name(), Max: r.MaxCount(), Got: n})
			}
		}
	}
	return objgraph.NewAggregateError(errs...)
}

// checkInverses verifies that every relationship target exists, has the
// destination entity and points back through the inverse.
func checkInverses(sc *schema.Schema, st *state) error {
	for _, o := range st.objects {
		e, _ := sc.Entity(o.entity)
		for name, ids := range o.rels {
			r, _ := e.Relationship(name)
			if !r.ToMany() && len(ids) > 1 {
				return &objgraph.CardinalityViolationError{Ref: o.Ref(), Relationship: name, Max: 1, Got: len(ids)}
			}
			for _, id := range ids {
				t, ok := st.objects[id]
				if !ok {
					return objgraph.NewNotFoundError(r.Destination(), id)
				}
				if t.entity != r.Destination() || !slices.Contains(t.rels[r.Inverse().Name()], o.id) {
					return fmt.Errorf("%s.%s: target %s is not linked back through %q",
						o.Ref(), name, t.Ref(), r.Inverse().Name())
				}
			}
		}
	}
	return nil
}
