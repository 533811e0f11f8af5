package schema

import (
	"errors"
	"fmt"

	"github.com/go-openapi/inflect"

	"github.com/syssam/objgraph"
)

// Builder declares entities and relationships and finalizes them into a
// read-only Schema. A Builder is not safe for concurrent use.
//
// Every method either applies completely or returns an error and leaves the
// builder unchanged. The fluent EntityBuilder API records the first error on
// the builder instead; it is returned by Finalize.
type Builder struct {
	entities  []*Entity
	byName    map[string]*Entity
	strict    bool
	finalized bool
	err       error
}

// Option configures a Builder.
type Option func(*Builder)

// StrictCascades makes Finalize reject schemas whose cascade delete rules
// form a cycle. Without it such schemas are accepted and the store stops the
// cascade at objects it has already visited.
func StrictCascades() Option {
	return func(b *Builder) {
		b.strict = true
	}
}

// NewBuilder returns an empty Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{byName: make(map[string]*Entity)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Err returns the first error recorded by the fluent API.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) record(err error) {
	if err != nil && b.err == nil {
		b.err = err
	}
}

func (b *Builder) check() error {
	if b.finalized {
		return objgraph.ErrSchemaFinalized
	}
	return nil
}

// DefineEntity adds a new entity. It fails with DuplicateEntityError if the
// name is already in use.
func (b *Builder) DefineEntity(name string) (*EntityBuilder, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.New("objgraph: entity name must not be empty")
	}
	if _, ok := b.byName[name]; ok {
		return nil, &objgraph.DuplicateEntityError{Entity: name}
	}
	e := newEntity(name)
	b.entities = append(b.entities, e)
	b.byName[name] = e
	return &EntityBuilder{b: b, e: e}, nil
}

// Entity is the fluent form of DefineEntity.
func (b *Builder) Entity(name string) *EntityBuilder {
	eb, err := b.DefineEntity(name)
	if err != nil {
		b.record(err)
		return &EntityBuilder{b: b}
	}
	return eb
}

// AddAttribute adds an attribute to a defined entity.
func (b *Builder) AddAttribute(entity, name string, typ Type, optional, indexed bool) error {
	var opts []AttrOption
	if optional {
		opts = append(opts, Optional())
	}
	if indexed {
		opts = append(opts, Indexed())
	}
	return b.addAttribute(entity, name, typ, opts...)
}

func (b *Builder) addAttribute(entity, name string, typ Type, opts ...AttrOption) error {
	if err := b.check(); err != nil {
		return err
	}
	e, ok := b.byName[entity]
	if !ok {
		return &objgraph.UnknownEntityError{Entity: entity}
	}
	if name == "" {
		return fmt.Errorf("objgraph: entity %q: attribute name must not be empty", entity)
	}
	if typ <= objgraph.KindNull || typ > objgraph.KindUUID {
		return fmt.Errorf("objgraph: %s.%s: invalid attribute type %s", entity, name, typ)
	}
	if e.has(name) {
		return &objgraph.DuplicateEntityError{Entity: entity, Member: name}
	}
	a := &Attribute{name: name, typ: typ}
	for _, opt := range opts {
		opt(a)
	}
	e.attrs = append(e.attrs, a)
	e.attrIdx[name] = a
	return nil
}

// DefineOneToMany pairs a to-many relationship named manyName on oneEntity
// with a to-one inverse named oneName on manyEntity. rule is applied to the
// many side objects when a oneEntity object is deleted; the to-one side uses
// Nullify unless InverseRule is given.
//
// Empty names default to the lower-camel entity name for the to-one side
// ("company") and its plural for the to-many side ("employees").
func (b *Builder) DefineOneToMany(oneEntity, manyEntity, oneName, manyName string, rule DeleteRule, opts ...RelOption) error {
	if err := b.check(); err != nil {
		return err
	}
	one, ok := b.byName[oneEntity]
	if !ok {
		return &objgraph.UnknownEntityError{Entity: oneEntity}
	}
	many, ok := b.byName[manyEntity]
	if !ok {
		return &objgraph.UnknownEntityError{Entity: manyEntity}
	}
	if oneName == "" {
		oneName = inflect.CamelizeDownFirst(oneEntity)
	}
	if manyName == "" {
		manyName = inflect.Pluralize(inflect.CamelizeDownFirst(manyEntity))
	}
	if one.has(manyName) {
		return &objgraph.DuplicateEntityError{Entity: oneEntity, Member: manyName}
	}
	if many.has(oneName) {
		return &objgraph.DuplicateEntityError{Entity: manyEntity, Member: oneName}
	}
	if one == many && oneName == manyName {
		return &objgraph.DuplicateEntityError{Entity: oneEntity, Member: oneName}
	}
	cfg := relConfig{inverseRule: Nullify}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxCount < 0 {
		return fmt.Errorf("objgraph: %s.%s: negative max count", oneEntity, manyName)
	}
	if !rule.valid() {
		return fmt.Errorf("objgraph: %s.%s: invalid delete %s", oneEntity, manyName, rule)
	}
	if !cfg.inverseRule.valid() {
		return fmt.Errorf("objgraph: %s.%s: invalid delete %s", manyEntity, oneName, cfg.inverseRule)
	}
	toMany := &Relationship{
		name:     manyName,
		owner:    oneEntity,
		dest:     manyEntity,
		card:     ToMany,
		rule:     rule,
		maxCount: cfg.maxCount,
	}
	toOne := &Relationship{
		name:     oneName,
		owner:    manyEntity,
		dest:     oneEntity,
		card:     ToOne,
		rule:     cfg.inverseRule,
		maxCount: 1,
	}
	toMany.inverse, toOne.inverse = toOne, toMany
	one.rels = append(one.rels, toMany)
	one.relIdx[manyName] = toMany
	many.rels = append(many.rels, toOne)
	many.relIdx[oneName] = toOne
	return nil
}

// Finalize validates the model and returns the read-only Schema. The
// builder rejects every further mutation.
func (b *Builder) Finalize() (*Schema, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	if b.err != nil {
		return nil, b.err
	}
	cycles := cascadeCycles(b.entities, b.byName)
	if b.strict && len(cycles) > 0 {
		return nil, &objgraph.CyclicCascadeError{Path: cycles[0]}
	}
	b.finalized = true
	return &Schema{
		entities: b.entities,
		byName:   b.byName,
		cycles:   cycles,
	}, nil
}

// EntityBuilder is the fluent handle of one entity.
type EntityBuilder struct {
	b *Builder
	e *Entity // nil if DefineEntity failed
}

// Name returns the entity name, or "" if the entity could not be defined.
func (eb *EntityBuilder) Name() string {
	if eb.e == nil {
		return ""
	}
	return eb.e.name
}

// Attribute adds an attribute of the given type.
func (eb *EntityBuilder) Attribute(name string, typ Type, opts ...AttrOption) *EntityBuilder {
	if eb.e != nil {
		eb.b.record(eb.b.addAttribute(eb.e.name, name, typ, opts...))
	}
	return eb
}

// String adds a string attribute.
func (eb *EntityBuilder) String(name string, opts ...AttrOption) *EntityBuilder {
	return eb.Attribute(name, TypeString, opts...)
}

// Int adds an int attribute.
func (eb *EntityBuilder) Int(name string, opts ...AttrOption) *EntityBuilder {
	return eb.Attribute(name, TypeInt, opts...)
}

// Float adds a float attribute.
func (eb *EntityBuilder) Float(name string, opts ...AttrOption) *EntityBuilder {
	return eb.Attribute(name, TypeFloat, opts...)
}

// Bool adds a bool attribute.
func (eb *EntityBuilder) Bool(name string, opts ...AttrOption) *EntityBuilder {
	return eb.Attribute(name, TypeBool, opts...)
}

// Time adds a time attribute.
func (eb *EntityBuilder) Time(name string, opts ...AttrOption) *EntityBuilder {
	return eb.Attribute(name, TypeTime, opts...)
}

// Bytes adds a bytes attribute.
func (eb *EntityBuilder) Bytes(name string, opts ...AttrOption) *EntityBuilder {
	return eb.Attribute(name, TypeBytes, opts...)
}

// UUID adds a uuid attribute.
func (eb *EntityBuilder) UUID(name string, opts ...AttrOption) *EntityBuilder {
	return eb.Attribute(name, TypeUUID, opts...)
}

// Mixin adds the attributes of each mixin, in order.
func (eb *EntityBuilder) Mixin(mixins ...Mixin) *EntityBuilder {
	for _, m := range mixins {
		for _, as := range m.Attributes() {
			eb.Attribute(as.Name, as.Type, as.Options...)
		}
	}
	return eb
}

// OneToMany relates this entity (the one side) to many objects of the other
// entity. See Builder.DefineOneToMany.
func (eb *EntityBuilder) OneToMany(many *EntityBuilder, oneName, manyName string, rule DeleteRule, opts ...RelOption) *EntityBuilder {
	if eb.e != nil && many.e != nil {
		eb.b.record(eb.b.DefineOneToMany(eb.e.name, many.e.name, oneName, manyName, rule, opts...))
	}
	return eb
}

// AttrOption configures an attribute.
type AttrOption func(*Attribute)

// Optional allows the attribute to be absent.
func Optional() AttrOption {
	return func(a *Attribute) { a.optional = true }
}

// Indexed makes the store keep a secondary index on the attribute.
func Indexed() AttrOption {
	return func(a *Attribute) { a.indexed = true }
}

// Immutable makes the store reject updates of the attribute.
func Immutable() AttrOption {
	return func(a *Attribute) { a.immutable = true }
}

// Default sets the value used when an insert leaves the attribute unset.
func Default(fn Producer) AttrOption {
	return func(a *Attribute) { a.defaultFn = fn }
}

// UpdateDefault sets the value assigned on every update that does not set
// the attribute explicitly.
func UpdateDefault(fn Producer) AttrOption {
	return func(a *Attribute) { a.updateDefault = fn }
}

// RelOption configures a relationship pair.
type RelOption func(*relConfig)

type relConfig struct {
	inverseRule DeleteRule
	maxCount    int
}

// InverseRule sets the delete rule of the to-one side.
func InverseRule(rule DeleteRule) RelOption {
	return func(c *relConfig) { c.inverseRule = rule }
}

// MaxCount bounds the number of objects in the to-many side.
func MaxCount(n int) RelOption {
	return func(c *relConfig) { c.maxCount = n }
}

// AttributeSpec describes an attribute contributed by a Mixin.
type AttributeSpec struct {
	Name    string
	Type    Type
	Options []AttrOption
}

// Mixin is a reusable set of attributes.
type Mixin interface {
	Attributes() []AttributeSpec
}
