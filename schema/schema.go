package schema

import (
	"fmt"
	"strings"

	"github.com/syssam/objgraph"
)

// Type is the scalar type of an attribute.
type Type = objgraph.Kind

// Attribute types.
const (
	TypeString = objgraph.KindString
	TypeInt    = objgraph.KindInt
	TypeFloat  = objgraph.KindFloat
	TypeBool   = objgraph.KindBool
	TypeTime   = objgraph.KindTime
	TypeBytes  = objgraph.KindBytes
	TypeUUID   = objgraph.KindUUID
)

// DeleteRule decides what happens to related objects when an object is deleted.
type DeleteRule uint8

// Delete rules.
const (
	// Nullify removes the deleted object from the inverse relationship of
	// every related object.
	Nullify DeleteRule = iota
	// Cascade deletes every related object.
	Cascade
	// Deny refuses to delete an object while the relationship is non-empty.
	Deny
)

// String returns the lower-case name of the rule.
func (r DeleteRule) String() string {
	switch r {
	case Nullify:
		return "nullify"
	case Cascade:
		return "cascade"
	case Deny:
		return "deny"
	}
	return fmt.Sprintf("rule(%d)", uint8(r))
}

func (r DeleteRule) valid() bool { return r <= Deny }

// ParseDeleteRule parses "nullify", "cascade" or "deny".
func ParseDeleteRule(s string) (DeleteRule, error) {
	switch strings.ToLower(s) {
	case "nullify", "":
		return Nullify, nil
	case "cascade":
		return Cascade, nil
	case "deny":
		return Deny, nil
	}
	return Nullify, fmt.Errorf("objgraph: unknown delete rule %q", s)
}

// Cardinality is the maximum arity of a relationship side.
type Cardinality uint8

// Cardinalities.
const (
	ToOne Cardinality = iota + 1
	ToMany
)

// String returns "to-one" or "to-many".
func (c Cardinality) String() string {
	if c == ToOne {
		return "to-one"
	}
	return "to-many"
}

// Producer returns a value for an attribute default.
type Producer func() objgraph.Value

// Attribute is a typed property of an entity.
type Attribute struct {
	name          string
	typ           Type
	optional      bool
	indexed       bool
	immutable     bool
	defaultFn     Producer
	updateDefault Producer
}

// Name returns the attribute name.
func (a *Attribute) Name() string { return a.name }

// Type returns the scalar type of the attribute.
func (a *Attribute) Type() Type { return a.typ }

// Optional reports whether the attribute may be absent.
func (a *Attribute) Optional() bool { return a.optional }

// Indexed reports whether the store keeps a secondary index on the attribute.
func (a *Attribute) Indexed() bool { return a.indexed }

// Immutable reports whether the attribute can only be set on insert.
func (a *Attribute) Immutable() bool { return a.immutable }

// Default returns the value producer used on insert, or nil.
func (a *Attribute) Default() Producer { return a.defaultFn }

// UpdateDefault returns the value producer used on update, or nil.
func (a *Attribute) UpdateDefault() Producer { return a.updateDefault }

// Relationship is one side of a bidirectional relationship.
type Relationship struct {
	name     string
	owner    string
	dest     string
	card     Cardinality
	rule     DeleteRule
	maxCount int
	inverse  *Relationship
}

// Name returns the relationship name.
func (r *Relationship) Name() string { return r.name }

// Entity returns the name of the entity that owns the relationship.
func (r *Relationship) Entity() string { return r.owner }

// Destination returns the name of the related entity.
func (r *Relationship) Destination() string { return r.dest }

// Cardinality returns ToOne or ToMany.
func (r *Relationship) Cardinality() Cardinality { return r.card }

// ToMany reports whether the relationship holds a set of objects.
func (r *Relationship) ToMany() bool { return r.card == ToMany }

// DeleteRule returns the rule applied to the related objects when the
// owning object is deleted.
func (r *Relationship) DeleteRule() DeleteRule { return r.rule }

// MaxCount returns the maximum number of targets. It is 1 for to-one
// relationships and 0 (unbounded) for to-many ones unless set.
func (r *Relationship) MaxCount() int { return r.maxCount }

// Inverse returns the paired relationship on the destination entity.
func (r *Relationship) Inverse() *Relationship { return r.inverse }

// Entity is a named set of attributes and relationships.
type Entity struct {
	name    string
	attrs   []*Attribute
	attrIdx map[string]*Attribute
	rels    []*Relationship
	relIdx  map[string]*Relationship
}

func newEntity(name string) *Entity {
	return &Entity{
		name:    name,
		attrIdx: make(map[string]*Attribute),
		relIdx:  make(map[string]*Relationship),
	}
}

// Name returns the entity name.
func (e *Entity) Name() string { return e.name }

// Attributes returns the attributes in definition order.
func (e *Entity) Attributes() []*Attribute {
	return append([]*Attribute(nil), e.attrs...)
}

// Attribute returns the named attribute.
func (e *Entity) Attribute(name string) (*Attribute, bool) {
	a, ok := e.attrIdx[name]
	return a, ok
}

// Relationships returns the relationships in definition order.
func (e *Entity) Relationships() []*Relationship {
	return append([]*Relationship(nil), e.rels...)
}

// Relationship returns the named relationship.
func (e *Entity) Relationship(name string) (*Relationship, bool) {
	r, ok := e.relIdx[name]
	return r, ok
}

// IndexedAttributes returns the attributes marked indexed.
func (e *Entity) IndexedAttributes() []*Attribute {
	var out []*Attribute
	for _, a := range e.attrs {
		if a.indexed {
			out = append(out, a)
		}
	}
	return out
}

func (e *Entity) has(member string) bool {
	_, a := e.attrIdx[member]
	_, r := e.relIdx[member]
	return a || r
}

// Schema is a finalized, read-only model. It is safe for concurrent use.
type Schema struct {
	entities []*Entity
	byName   map[string]*Entity
	cycles   [][]string
}

// Entity returns the named entity.
func (s *Schema) Entity(name string) (*Entity, bool) {
	e, ok := s.byName[name]
	return e, ok
}

// MustEntity returns the named entity or an UnknownEntityError.
func (s *Schema) MustEntity(name string) (*Entity, error) {
	e, ok := s.byName[name]
	if !ok {
		return nil, &objgraph.UnknownEntityError{Entity: name}
	}
	return e, nil
}

// Entities returns the entities in definition order.
func (s *Schema) Entities() []*Entity {
	return append([]*Entity(nil), s.entities...)
}

// CascadeCycles returns the cycles of the cascade graph, each as a path of
// entity names that starts and ends with the same entity.
func (s *Schema) CascadeCycles() [][]string {
	out := make([][]string, len(s.cycles))
	for i, c := range s.cycles {
		out[i] = append([]string(nil), c...)
	}
	return out
}

// String returns a deterministic description of the schema.
func (s *Schema) String() string {
	var b strings.Builder
	for _, e := range s.entities {
		b.WriteString(e.name)
		b.WriteByte('\n')
		for _, a := range e.attrs {
			fmt.Fprintf(&b, "  %s: %s", a.name, a.typ)
			if a.optional {
				b.WriteString(" optional")
			}
			if a.indexed {
				b.WriteString(" indexed")
			}
			if a.immutable {
				b.WriteString(" immutable")
			}
			b.WriteByte('\n')
		}
		for _, r := range e.rels {
			fmt.Fprintf(&b, "  %s: %s %s (inverse %s, %s", r.name, r.card, r.dest, r.inverse.name, r.rule)
			if r.card == ToMany && r.maxCount > 0 {
				fmt.Fprintf(&b, ", max %d", r.maxCount)
			}
			b.WriteString(")\n")
		}
	}
	return b.String()
}

// cascadeCycles finds the cycles of the entity graph restricted to Cascade
// relationships, one per back edge of a depth-first walk.
func cascadeCycles(entities []*Entity, byName map[string]*Entity) [][]string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(entities))
	var (
		stack  []string
		cycles [][]string
		visit  func(e *Entity)
	)
	visit = func(e *Entity) {
		color[e.name] = grey
		stack = append(stack, e.name)
		for _, r := range e.rels {
			if r.rule != Cascade {
				continue
			}
			switch color[r.dest] {
			case grey:
				start := 0
				for i, n := range stack {
					if n == r.dest {
						start = i
						break
					}
				}
				path := append(append([]string(nil), stack[start:]...), r.dest)
				cycles = append(cycles, path)
			case white:
				visit(byName[r.dest])
			}
		}
		stack = stack[:len(stack)-1]
		color[e.name] = black
	}
	for _, e := range entities {
		if color[e.name] == white {
			visit(e)
		}
	}
	return cycles
}
