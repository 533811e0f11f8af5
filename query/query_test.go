package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/objgraph"
	"github.com/syssam/objgraph/privacy"
	"github.com/syssam/objgraph/query"
	ql "github.com/syssam/objgraph/querylanguage"
	"github.com/syssam/objgraph/schema"
	"github.com/syssam/objgraph/store"
)

type fixture struct {
	store                  *store.Store
	engine                 *query.Engine
	acme, globex           objgraph.ID
	john, jane, bob, alice objgraph.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := schema.NewBuilder()
	company := b.Entity("Company").String("name", schema.Indexed())
	employee := b.Entity("Employee").
		String("name", schema.Indexed()).
		Int("age", schema.Optional()).
		Float("rating", schema.Optional())
	company.OneToMany(employee, "company", "employees", schema.Cascade)
	sc, err := b.Finalize()
	require.NoError(t, err)

	ctx := context.Background()
	s := store.New(sc)
	f := &fixture{store: s, engine: query.New(s)}
	insert := func(entity string, attrs objgraph.Attrs) objgraph.ID {
		id, err := s.Insert(ctx, entity, attrs)
		require.NoError(t, err)
		return id
	}
	f.acme = insert("Company", objgraph.Attrs{"name": objgraph.String("ACME")})
	f.globex = insert("Company", objgraph.Attrs{"name": objgraph.String("Globex")})
	f.john = insert("Employee", objgraph.Attrs{"name": objgraph.String("John"), "age": objgraph.Int(30), "rating": objgraph.Float(4.5)})
	f.jane = insert("Employee", objgraph.Attrs{"name": objgraph.String("Jane"), "age": objgraph.Int(25)})
	f.bob = insert("Employee", objgraph.Attrs{"name": objgraph.String("Bob"), "age": objgraph.Int(40)})
	f.alice = insert("Employee", objgraph.Attrs{"name": objgraph.String("Alice")})
	require.NoError(t, s.SetRelationship(ctx, f.acme, "employees", f.john, f.jane))
	require.NoError(t, s.SetRelationship(ctx, f.bob, "company", f.globex))
	return f
}

func ids(insts []*query.Instance) []objgraph.ID {
	out := make([]objgraph.ID, len(insts))
	for i, inst := range insts {
		out[i] = inst.ID()
	}
	return out
}

func TestCompanyEmployeeScenario(t *testing.T) {
	t.Parallel()

	b := schema.NewBuilder()
	company := b.Entity("Company").String("name")
	employee := b.Entity("Employee").String("name")
	company.OneToMany(employee, "company", "employees", schema.Cascade)
	sc, err := b.Finalize()
	require.NoError(t, err)

	ctx := context.Background()
	s := store.New(sc)
	acme, err := s.Insert(ctx, "Company", objgraph.Attrs{"name": objgraph.String("ACME")})
	require.NoError(t, err)
	john, err := s.Insert(ctx, "Employee", objgraph.Attrs{"name": objgraph.String("John")})
	require.NoError(t, err)
	require.NoError(t, s.SetRelationship(ctx, john, "company", acme))

	eng := query.New(s)
	res, err := eng.Fetch(ctx, "Employee", ql.FieldEQ("name", "John"))
	require.NoError(t, err)
	got := res.Slice()
	require.Len(t, got, 1)
	c, err := got[0].One("company")
	require.NoError(t, err)
	assert.Equal(t, objgraph.String("ACME"), c.Get("name"))

	_, err = s.Delete(ctx, acme)
	require.NoError(t, err)
	res, err = eng.Fetch(ctx, "Employee", nil)
	require.NoError(t, err)
	assert.Zero(t, res.Count())
}

func TestFetchPredicates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tests := []struct {
		name string
		p    ql.P
		want []objgraph.ID
	}{
		{name: "all", p: nil, want: []objgraph.ID{f.john, f.jane, f.bob, f.alice}},
		{name: "eq", p: ql.FieldEQ("name", "Jane"), want: []objgraph.ID{f.jane}},
		{name: "neq", p: ql.FieldNEQ("name", "Jane"), want: []objgraph.ID{f.john, f.bob, f.alice}},
		{name: "gt", p: ql.FieldGT("age", 25), want: []objgraph.ID{f.john, f.bob}},
		{name: "gte", p: ql.FieldGTE("age", 30), want: []objgraph.ID{f.john, f.bob}},
		{name: "lt", p: ql.FieldLT("age", 30), want: []objgraph.ID{f.jane}},
		{name: "lte_int_against_float", p: ql.FieldLTE("rating", 5), want: []objgraph.ID{f.john}},
		{name: "in", p: ql.FieldIn("name", "Bob", "Alice", "Zed"), want: []objgraph.ID{f.bob, f.alice}},
		{name: "not_in", p: ql.FieldNotIn("name", "Bob", "Alice"), want: []objgraph.ID{f.john, f.jane}},
		{name: "nil", p: ql.FieldNil("age"), want: []objgraph.ID{f.alice}},
		{name: "not_nil", p: ql.FieldNotNil("age"), want: []objgraph.ID{f.john, f.jane, f.bob}},
		{name: "contains", p: ql.FieldContains("name", "o"), want: []objgraph.ID{f.john, f.bob}},
		{name: "contains_fold", p: ql.FieldContainsFold("name", "J"), want: []objgraph.ID{f.john, f.jane}},
		{name: "equal_fold", p: ql.FieldEqualFold("name", "BOB"), want: []objgraph.ID{f.bob}},
		{name: "has_prefix", p: ql.FieldHasPrefix("name", "Ja"), want: []objgraph.ID{f.jane}},
		{name: "has_suffix", p: ql.FieldHasSuffix("name", "ce"), want: []objgraph.ID{f.alice}},
		{name: "path", p: ql.FieldEQ("company.name", "ACME"), want: []objgraph.ID{f.john, f.jane}},
		{name: "path_nil", p: ql.FieldNil("company.name"), want: []objgraph.ID{f.alice}},
		{name: "has_edge", p: ql.HasEdge("company"), want: []objgraph.ID{f.john, f.jane, f.bob}},
		{name: "has_edge_with", p: ql.HasEdgeWith("company", ql.FieldHasPrefix("name", "Glo")), want: []objgraph.ID{f.bob}},
		{name: "not", p: ql.Not(ql.HasEdge("company")), want: []objgraph.ID{f.alice}},
		{name: "and", p: ql.And(ql.FieldEQ("company.name", "ACME"), ql.FieldGT("age", 26)), want: []objgraph.ID{f.john}},
		{name: "or", p: ql.Or(ql.FieldEQ("name", "Bob"), ql.FieldEQ("name", "Jane")), want: []objgraph.ID{f.jane, f.bob}},
		{
			name: "nary",
			p:    ql.Or(ql.FieldEQ("name", "Bob"), ql.FieldEQ("name", "Jane"), ql.FieldNil("age")),
			want: []objgraph.ID{f.jane, f.bob, f.alice},
		},
		{name: "typed_value", p: ql.FieldEQ("name", objgraph.String("John")), want: []objgraph.ID{f.john}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := f.engine.Fetch(context.Background(), "Employee", tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(res.Slice()))
		})
	}
}

func TestFetchToManyPath(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	res, err := f.engine.Fetch(ctx, "Company", ql.FieldEQ("employees.name", "Bob"))
	require.NoError(t, err)
	assert.Equal(t, []objgraph.ID{f.globex}, ids(res.Slice()))

	res, err = f.engine.Fetch(ctx, "Company", ql.HasEdgeWith("employees", ql.FieldLT("age", 30)))
	require.NoError(t, err)
	assert.Equal(t, []objgraph.ID{f.acme}, ids(res.Slice()))

	acme, err := res.First()
	require.NoError(t, err)
	assert.Equal(t, []objgraph.ID{f.john, f.jane}, ids(acme.Related("employees")))
}

func TestFetchErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tests := []struct {
		name   string
		entity string
		p      ql.P
		target error
	}{
		{name: "unknown_entity", entity: "Planet", target: objgraph.ErrUnknownEntity},
		{name: "unknown_attribute", entity: "Employee", p: ql.FieldEQ("salary", 1), target: objgraph.ErrUnknownAttribute},
		{name: "unknown_path", entity: "Employee", p: ql.FieldEQ("boss.name", "x"), target: objgraph.ErrUnknownRelationship},
		{name: "unknown_edge", entity: "Employee", p: ql.HasEdge("boss"), target: objgraph.ErrUnknownRelationship},
		{name: "type_mismatch", entity: "Employee", p: ql.FieldEQ("age", "old"), target: objgraph.ErrTypeMismatch},
		{name: "string_func_on_int", entity: "Employee", p: ql.FieldContains("age", "3"), target: objgraph.ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := f.engine.Fetch(context.Background(), tt.entity, tt.p)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	_, err := f.engine.Run(context.Background(), query.Request{Entity: "Employee", Limit: -1})
	assert.Error(t, err)
	_, err = f.engine.Run(context.Background(), query.Request{Entity: "Employee", OrderBy: []query.Order{query.Asc("salary")}})
	assert.ErrorIs(t, err, objgraph.ErrUnknownAttribute)
}

func TestFetchUsesIndex(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.store.Stats().Reset()

	indexed, err := f.engine.Fetch(ctx, "Employee", ql.And(ql.FieldGT("age", 20), ql.FieldEQ("name", "John")))
	require.NoError(t, err)
	stats := f.store.Stats().Snapshot()
	assert.EqualValues(t, 1, stats.IndexHits)
	assert.Zero(t, stats.Scans)

	scanned, err := f.engine.Fetch(ctx, "Employee", ql.And(ql.FieldGT("age", 20), ql.FieldEqualFold("name", "John")))
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.store.Stats().Snapshot().Scans)
	assert.Equal(t, ids(scanned.Slice()), ids(indexed.Slice()))
}

func TestResultsAreSnapshots(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	res, err := f.engine.Fetch(ctx, "Employee", ql.FieldEQ("company.name", "ACME"))
	require.NoError(t, err)

	_, err = f.store.Delete(ctx, f.acme)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Count())
	assert.Equal(t, 2, res.Count())
	first, err := res.First()
	require.NoError(t, err)
	c, err := first.One("company")
	require.NoError(t, err)
	assert.Equal(t, objgraph.String("ACME"), c.Get("name"))

	res, err = f.engine.Fetch(ctx, "Employee", ql.FieldEQ("company.name", "ACME"))
	require.NoError(t, err)
	assert.Zero(t, res.Count())
	_, err = res.First()
	assert.True(t, objgraph.IsNotFound(err))
}

func TestRunOrderLimitOffset(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	tests := []struct {
		name string
		req  query.Request
		want []objgraph.ID
	}{
		{
			name: "asc",
			req:  query.Request{Entity: "Employee", OrderBy: []query.Order{query.Asc("name")}},
			want: []objgraph.ID{f.alice, f.bob, f.jane, f.john},
		},
		{
			name: "desc_nulls_last",
			req:  query.Request{Entity: "Employee", OrderBy: []query.Order{query.Desc("age")}},
			want: []objgraph.ID{f.bob, f.john, f.jane, f.alice},
		},
		{
			name: "path_then_name",
			req: query.Request{
				Entity:  "Employee",
				Where:   ql.HasEdge("company"),
				OrderBy: []query.Order{query.Desc("company.name"), query.Asc("name")},
			},
			want: []objgraph.ID{f.bob, f.jane, f.john},
		},
		{
			name: "limit_offset",
			req:  query.Request{Entity: "Employee", OrderBy: []query.Order{query.Asc("name")}, Offset: 1, Limit: 2},
			want: []objgraph.ID{f.bob, f.jane},
		},
		{
			name: "limit_without_order",
			req:  query.Request{Entity: "Employee", Where: ql.FieldNotNil("age"), Limit: 2},
			want: []objgraph.ID{f.john, f.jane},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := f.engine.Run(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(res.Slice()))
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	missing := objgraph.NewID()
	insts, errs := f.engine.Load(context.Background(), f.bob, missing, f.acme)
	require.Len(t, insts, 3)
	require.Len(t, errs, 3)
	assert.Equal(t, f.bob, insts[0].ID())
	assert.Nil(t, insts[1])
	assert.Equal(t, "Company", insts[2].Entity())
	assert.NoError(t, errs[0])
	assert.True(t, objgraph.IsNotFound(errs[1]))
	assert.NoError(t, errs[2])
}

func TestInstanceOne(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	insts, _ := f.engine.Load(context.Background(), f.alice)
	alice := insts[0]
	_, err := alice.One("company")
	assert.True(t, objgraph.IsNotFound(err))
	_, err = alice.One("boss")
	assert.ErrorIs(t, err, objgraph.ErrUnknownRelationship)
	assert.Equal(t, objgraph.Null{}, alice.Get("age"))
}

func TestQueryPolicy(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	policy := privacy.QueryPolicy{
		privacy.DenyIfNoViewer(),
		privacy.QueryRuleFunc(func(_ context.Context, q objgraph.Query) error {
			if q.Entity() == "Company" {
				return privacy.Denyf("companies are hidden")
			}
			return privacy.Skip
		}),
	}
	eng := query.New(f.store, query.WithPolicy(policy))
	viewer := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "u1"})

	_, err := eng.Fetch(context.Background(), "Employee", nil)
	require.Error(t, err)
	assert.True(t, objgraph.IsPrivacyError(err))

	res, err := eng.Fetch(viewer, "Employee", ql.FieldEQ("company.name", "ACME"))
	require.NoError(t, err)
	assert.Equal(t, []objgraph.ID{f.john, f.jane}, ids(res.Slice()))

	_, err = eng.Fetch(viewer, "Company", nil)
	var perr *objgraph.PrivacyError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Company", perr.Entity)
	assert.Equal(t, "query", perr.Op)
	assert.ErrorIs(t, err, privacy.Deny)

	insts, errs := eng.Load(viewer, f.john, f.acme)
	assert.Equal(t, f.john, insts[0].ID())
	assert.NoError(t, errs[0])
	assert.Nil(t, insts[1])
	assert.True(t, objgraph.IsPrivacyError(errs[1]))
}
