// Package schema provides the building blocks for declaring an object model.
//
// A model is a set of entities with typed attributes and bidirectional
// relationships. Relationships are always declared in pairs: a to-many side
// on the "one" entity and its to-one inverse on the "many" entity.
//
// # Quick Start
//
//	b := schema.NewBuilder()
//	company := b.Entity("Company").String("name", schema.Indexed())
//	employee := b.Entity("Employee").
//	    String("name", schema.Indexed()).
//	    Int("age", schema.Optional())
//	company.OneToMany(employee, "company", "employees", schema.Cascade)
//
//	s, err := b.Finalize()
//
// # Delete Rules
//
// Each side of a relationship carries the rule applied to its related
// objects when its owner is deleted:
//
//	schema.Cascade // delete the related objects
//	schema.Nullify // clear the back reference on the related objects
//	schema.Deny    // refuse the delete while related objects exist
//
// The to-many side takes the rule passed to DefineOneToMany; the to-one side
// defaults to Nullify and can be changed with InverseRule.
//
// # Model Files
//
// LoadYAML builds the same Schema from a YAML document, see File.
package schema
