// Package objgraph is an embedded, in-memory object-graph ORM core.
//
// A model is declared with the schema package, objects live in a store.Store,
// mutations are staged and committed atomically through a tx.Context, and the
// query package fetches materialized snapshots filtered by querylanguage
// predicates.
//
// # Quick Start
//
//	b := schema.NewBuilder()
//	b.Entity("Company").String("name", schema.Indexed())
//	b.Entity("Employee").String("name", schema.Indexed())
//	_ = b.DefineOneToMany("Company", "Employee", "company", "employees", schema.Cascade)
//	s, err := b.Finalize()
//
//	st := store.New(s)
//	c := tx.NewContext(st)
//	_ = c.Begin()
//	acme, _ := c.Insert("Company", objgraph.Attrs{"name": objgraph.String("ACME")})
//	john, _ := c.Insert("Employee", objgraph.Attrs{"name": objgraph.String("John")})
//	_ = c.Relate(john, "company", acme)
//	change, err := c.Commit(ctx)
//
//	res, _ := query.New(st).Fetch(ctx, "Employee", querylanguage.FieldEQ("name", "John"))
//
// This package holds the types shared by every layer: object identities,
// attribute values, the change notification payload and the error taxonomy.
package objgraph
