package schema_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/objgraph"
	"github.com/syssam/objgraph/schema"
	"github.com/syssam/objgraph/schema/mixin"
)

func companyModel(t *testing.T, rule schema.DeleteRule) *schema.Schema {
	t.Helper()
	b := schema.NewBuilder()
	company := b.Entity("Company").String("name", schema.Indexed())
	employee := b.Entity("Employee").String("name", schema.Indexed())
	company.OneToMany(employee, "company", "employees", rule)
	s, err := b.Finalize()
	require.NoError(t, err)
	return s
}

func TestBuilderOneToMany(t *testing.T) {
	t.Parallel()

	s := companyModel(t, schema.Cascade)

	company, ok := s.Entity("Company")
	require.True(t, ok)
	employees, ok := company.Relationship("employees")
	require.True(t, ok)
	assert.Equal(t, schema.ToMany, employees.Cardinality())
	assert.Equal(t, "Employee", employees.Destination())
	assert.Equal(t, schema.Cascade, employees.DeleteRule())
	assert.Equal(t, 0, employees.MaxCount())

	inverse := employees.Inverse()
	require.NotNil(t, inverse)
	assert.Equal(t, "company", inverse.Name())
	assert.Equal(t, "Employee", inverse.Entity())
	assert.Equal(t, schema.ToOne, inverse.Cardinality())
	assert.Equal(t, schema.Nullify, inverse.DeleteRule())
	assert.Equal(t, 1, inverse.MaxCount())
	assert.Same(t, employees, inverse.Inverse())
}

func TestBuilderAttributes(t *testing.T) {
	t.Parallel()

	b := schema.NewBuilder()
	_, err := b.DefineEntity("Employee")
	require.NoError(t, err)
	require.NoError(t, b.AddAttribute("Employee", "name", schema.TypeString, false, true))
	require.NoError(t, b.AddAttribute("Employee", "age", schema.TypeInt, true, false))
	s, err := b.Finalize()
	require.NoError(t, err)

	e, ok := s.Entity("Employee")
	require.True(t, ok)
	attrs := e.Attributes()
	require.Len(t, attrs, 2)
	assert.Equal(t, "name", attrs[0].Name())
	assert.Equal(t, schema.TypeString, attrs[0].Type())
	assert.False(t, attrs[0].Optional())
	assert.True(t, attrs[0].Indexed())
	assert.Equal(t, "age", attrs[1].Name())
	assert.True(t, attrs[1].Optional())
	assert.False(t, attrs[1].Indexed())

	indexed := e.IndexedAttributes()
	require.Len(t, indexed, 1)
	assert.Equal(t, "name", indexed[0].Name())
}

func TestBuilderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		build  func(b *schema.Builder) error
		target error
	}{
		{
			name: "duplicate_entity",
			build: func(b *schema.Builder) error {
				_, _ = b.DefineEntity("Company")
				_, err := b.DefineEntity("Company")
				return err
			},
			target: objgraph.ErrDuplicateEntity,
		},
		{
			name: "duplicate_attribute",
			build: func(b *schema.Builder) error {
				_, _ = b.DefineEntity("Company")
				_ = b.AddAttribute("Company", "name", schema.TypeString, false, false)
				return b.AddAttribute("Company", "name", schema.TypeInt, false, false)
			},
			target: objgraph.ErrDuplicateEntity,
		},
		{
			name: "attribute_on_unknown_entity",
			build: func(b *schema.Builder) error {
				return b.AddAttribute("Company", "name", schema.TypeString, false, false)
			},
			target: objgraph.ErrUnknownEntity,
		},
		{
			name: "relationship_to_unknown_entity",
			build: func(b *schema.Builder) error {
				_, _ = b.DefineEntity("Company")
				return b.DefineOneToMany("Company", "Employee", "company", "employees", schema.Cascade)
			},
			target: objgraph.ErrUnknownEntity,
		},
		{
			name: "relationship_name_clashes_with_attribute",
			build: func(b *schema.Builder) error {
				_, _ = b.DefineEntity("Company")
				_, _ = b.DefineEntity("Employee")
				_ = b.AddAttribute("Employee", "company", schema.TypeString, true, false)
				return b.DefineOneToMany("Company", "Employee", "company", "employees", schema.Cascade)
			},
			target: objgraph.ErrDuplicateEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.build(schema.NewBuilder())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestBuilderRejectsInvalidDeleteRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule schema.DeleteRule
		opts []schema.RelOption
		msg  string
	}{
		{name: "many_side", rule: schema.DeleteRule(9), msg: "Company.employees: invalid delete rule(9)"},
		{name: "one_side", rule: schema.Cascade, opts: []schema.RelOption{schema.InverseRule(schema.Deny + 1)}, msg: "Employee.company: invalid delete rule(3)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := schema.NewBuilder()
			_, _ = b.DefineEntity("Company")
			_, _ = b.DefineEntity("Employee")
			err := b.DefineOneToMany("Company", "Employee", "company", "employees", tt.rule, tt.opts...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)

			s, err := b.Finalize()
			require.NoError(t, err)
			company, _ := s.Entity("Company")
			assert.Empty(t, company.Relationships())
		})
	}
}

func TestBuilderFailFastLeavesNoPartialState(t *testing.T) {
	t.Parallel()

	b := schema.NewBuilder()
	_, err := b.DefineEntity("Company")
	require.NoError(t, err)
	err = b.DefineOneToMany("Company", "Missing", "company", "employees", schema.Cascade)
	require.Error(t, err)

	s, err := b.Finalize()
	require.NoError(t, err)
	company, _ := s.Entity("Company")
	assert.Empty(t, company.Relationships())
}

func TestBuilderFluentRecordsFirstError(t *testing.T) {
	t.Parallel()

	b := schema.NewBuilder()
	b.Entity("Company").String("name")
	b.Entity("Company").String("other")
	b.Entity("Employee").String("name").String("name")

	_, err := b.Finalize()
	var dup *objgraph.DuplicateEntityError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "Company", dup.Entity)
	assert.Empty(t, dup.Member)
}

func TestBuilderFinalizeIsFinal(t *testing.T) {
	t.Parallel()

	b := schema.NewBuilder()
	b.Entity("Company").String("name")
	_, err := b.Finalize()
	require.NoError(t, err)

	_, err = b.DefineEntity("Employee")
	assert.ErrorIs(t, err, objgraph.ErrSchemaFinalized)
	err = b.AddAttribute("Company", "size", schema.TypeInt, true, false)
	assert.ErrorIs(t, err, objgraph.ErrSchemaFinalized)
	_, err = b.Finalize()
	assert.ErrorIs(t, err, objgraph.ErrSchemaFinalized)
}

func TestBuilderDefaultRelationshipNames(t *testing.T) {
	t.Parallel()

	b := schema.NewBuilder()
	b.Entity("Company")
	b.Entity("Employee")
	require.NoError(t, b.DefineOneToMany("Company", "Employee", "", "", schema.Nullify))
	s, err := b.Finalize()
	require.NoError(t, err)

	company, _ := s.Entity("Company")
	_, ok := company.Relationship("employees")
	assert.True(t, ok)
	employee, _ := s.Entity("Employee")
	_, ok = employee.Relationship("company")
	assert.True(t, ok)
}

func TestBuilderOptions(t *testing.T) {
	t.Parallel()

	b := schema.NewBuilder()
	team := b.Entity("Team")
	player := b.Entity("Player")
	team.OneToMany(player, "team", "players", schema.Deny, schema.InverseRule(schema.Nullify), schema.MaxCount(11))
	s, err := b.Finalize()
	require.NoError(t, err)

	e, _ := s.Entity("Team")
	players, _ := e.Relationship("players")
	assert.Equal(t, schema.Deny, players.DeleteRule())
	assert.Equal(t, 11, players.MaxCount())
}

func TestBuilderCascadeCycles(t *testing.T) {
	t.Parallel()

	build := func(opts ...schema.Option) (*schema.Schema, error) {
		b := schema.NewBuilder(opts...)
		category := b.Entity("Category").String("name")
		category.OneToMany(category, "parent", "children", schema.Cascade)
		return b.Finalize()
	}

	s, err := build()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Category", "Category"}}, s.CascadeCycles())

	_, err = build(schema.StrictCascades())
	var cyc *objgraph.CyclicCascadeError
	require.ErrorAs(t, err, &cyc)
	assert.Equal(t, []string{"Category", "Category"}, cyc.Path)
	assert.ErrorIs(t, err, objgraph.ErrCyclicCascade)
}

func TestBuilderMutualCascadeCycle(t *testing.T) {
	t.Parallel()

	b := schema.NewBuilder(schema.StrictCascades())
	b.Entity("Company")
	b.Entity("Employee")
	require.NoError(t, b.DefineOneToMany("Company", "Employee", "company", "employees",
		schema.Cascade, schema.InverseRule(schema.Cascade)))
	_, err := b.Finalize()
	var cyc *objgraph.CyclicCascadeError
	require.ErrorAs(t, err, &cyc)
	assert.Equal(t, []string{"Company", "Employee", "Company"}, cyc.Path)
}

func TestBuilderMixin(t *testing.T) {
	t.Parallel()

	b := schema.NewBuilder()
	b.Entity("Company").Mixin(mixin.Time{}).String("name")
	s, err := b.Finalize()
	require.NoError(t, err)

	e, _ := s.Entity("Company")
	created, ok := e.Attribute("created_at")
	require.True(t, ok)
	assert.Equal(t, schema.TypeTime, created.Type())
	assert.NotNil(t, created.Default())
	assert.Nil(t, created.UpdateDefault())
	assert.True(t, created.Immutable())

	updated, ok := e.Attribute("updated_at")
	require.True(t, ok)
	assert.NotNil(t, updated.UpdateDefault())
	assert.False(t, updated.Immutable())
	v := updated.UpdateDefault()()
	assert.Equal(t, objgraph.KindTime, v.Kind())
}

func TestSchemaString(t *testing.T) {
	t.Parallel()

	b := schema.NewBuilder()
	company := b.Entity("Company").String("name", schema.Indexed())
	employee := b.Entity("Employee").String("name", schema.Indexed()).Int("age", schema.Optional())
	company.OneToMany(employee, "company", "employees", schema.Cascade, schema.MaxCount(3))
	s, err := b.Finalize()
	require.NoError(t, err)

	want := "Company\n" +
		"  name: string indexed\n" +
		"  employees: to-many Employee (inverse company, cascade, max 3)\n" +
		"Employee\n" +
		"  name: string indexed\n" +
		"  age: int optional\n" +
		"  company: to-one Company (inverse employees, nullify)\n"
	assert.Equal(t, want, s.String())
}

func TestSchemaMustEntity(t *testing.T) {
	t.Parallel()

	s := companyModel(t, schema.Nullify)
	_, err := s.MustEntity("Company")
	require.NoError(t, err)
	_, err = s.MustEntity("Nope")
	var unknown *objgraph.UnknownEntityError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "Nope", unknown.Entity)
}

func TestParseDeleteRule(t *testing.T) {
	t.Parallel()

	for _, r := range []schema.DeleteRule{schema.Nullify, schema.Cascade, schema.Deny} {
		got, err := schema.ParseDeleteRule(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
	_, err := schema.ParseDeleteRule("explode")
	assert.Error(t, err)
}
