package objgraph

import (
	"context"
	"strings"
)

// Op represents a mutation operation. Ops are bit flags, so a set of
// operations can be matched with Is.
type Op uint

// Mutation operations.
const (
	OpInsert Op = 1 << iota // insert a new object
	OpUpdate                // update attributes of an object
	OpDelete                // delete an object and apply delete rules
	OpRelate                // replace the targets of a relationship
)

// Is reports whether o is one of the given operations.
func (i Op) Is(o Op) bool { return i&o != 0 }

var opNames = []struct {
	op   Op
	name string
}{
	{OpInsert, "OpInsert"},
	{OpUpdate, "OpUpdate"},
	{OpDelete, "OpDelete"},
	{OpRelate, "OpRelate"},
}

// String returns the operation name, e.g. "OpInsert". Combined operations
// are joined with "|".
func (i Op) String() string {
	var names []string
	for _, n := range opNames {
		if i.Is(n.op) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "Op(0)"
	}
	return strings.Join(names, "|")
}

// Mutation describes one staged operation to hooks and privacy policies.
type Mutation interface {
	// Op returns the operation.
	Op() Op
	// Entity returns the entity of the object being mutated.
	Entity() string
	// ID returns the ID of the object being mutated.
	ID() ID
	// Fields returns the names of the attributes set by the mutation.
	Fields() []string
	// Field returns the value the mutation sets for an attribute.
	Field(name string) (Value, bool)
	// SetField sets an attribute value. It fails for operations that do not
	// carry attributes.
	SetField(name string, v Value) error
	// Relationship returns the relationship name and targets of an OpRelate
	// mutation.
	Relationship() (string, []ID)
}

// Mutator is the interface that wraps the Mutate method.
type Mutator interface {
	// Mutate applies the given mutation.
	Mutate(context.Context, Mutation) error
}

// The MutateFunc type is an adapter to allow the use of ordinary
// function as Mutator. If f is a function with the appropriate signature,
// MutateFunc(f) is a Mutator that calls f.
type MutateFunc func(context.Context, Mutation) error

// Mutate calls f(ctx, m).
func (f MutateFunc) Mutate(ctx context.Context, m Mutation) error {
	return f(ctx, m)
}

// Hook defines the "mutation middleware". A function that gets a Mutator
// and returns a Mutator. For example:
//
//	hook := func(next objgraph.Mutator) objgraph.Mutator {
//		return objgraph.MutateFunc(func(ctx context.Context, m objgraph.Mutation) error {
//			// Do some stuff before.
//			if err := next.Mutate(ctx, m); err != nil {
//				return err
//			}
//			// Do some stuff after.
//			return nil
//		})
//	}
type Hook func(Mutator) Mutator

// Query describes a fetch to privacy policies.
type Query interface {
	// Entity returns the entity being fetched.
	Entity() string
}
