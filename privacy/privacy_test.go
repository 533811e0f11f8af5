package privacy_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/syssam/objgraph"
	"github.com/syssam/objgraph/privacy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockMutation implements objgraph.Mutation for testing.
type mockMutation struct {
	op     objgraph.Op
	entity string
	id     objgraph.ID
	fields map[string]objgraph.Value
}

func (m *mockMutation) Op() objgraph.Op { return m.op }
func (m *mockMutation) Entity() string  { return m.entity }
func (m *mockMutation) ID() objgraph.ID { return m.id }
func (m *mockMutation) Relationship() (string, []objgraph.ID) {
	return "", nil
}

func (m *mockMutation) Fields() []string {
	names := make([]string, 0, len(m.fields))
	for name := range m.fields {
		names = append(names, name)
	}
	return names
}

func (m *mockMutation) Field(name string) (objgraph.Value, bool) {
	v, ok := m.fields[name]
	return v, ok
}

func (m *mockMutation) SetField(name string, v objgraph.Value) error {
	if m.fields == nil {
		m.fields = make(map[string]objgraph.Value)
	}
	m.fields[name] = v
	return nil
}

// mockQuery implements objgraph.Query for testing.
type mockQuery struct {
	entity string
}

func (q mockQuery) Entity() string { return q.entity }

func mutation(op objgraph.Op, entity string, fields map[string]objgraph.Value) *mockMutation {
	return &mockMutation{op: op, entity: entity, id: objgraph.NewID(), fields: fields}
}

func TestDecisionHelpers(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"Allowf", privacy.Allowf("user %s", "bob"), privacy.Allow},
		{"Denyf", privacy.Denyf("user %s", "bob"), privacy.Deny},
		{"Skipf", privacy.Skipf("user %s", "bob"), privacy.Skip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, tt.err, tt.target)
			assert.Contains(t, tt.err.Error(), "user bob")
		})
	}
}

func TestMutationPolicy(t *testing.T) {
	t.Parallel()
	custom := errors.New("custom decision")
	tests := []struct {
		name    string
		policy  privacy.MutationPolicy
		wantErr error
	}{
		{name: "empty policy allows", policy: nil},
		{name: "all skip allows", policy: privacy.MutationPolicy{
			privacy.MutationRuleFunc(func(context.Context, objgraph.Mutation) error { return privacy.Skip }),
			privacy.MutationRuleFunc(func(context.Context, objgraph.Mutation) error { return nil }),
		}},
		{name: "allow stops evaluation", policy: privacy.MutationPolicy{
			privacy.AlwaysAllowRule(),
			privacy.AlwaysDenyRule(),
		}},
		{name: "deny stops evaluation", policy: privacy.MutationPolicy{
			privacy.AlwaysDenyRule(),
			privacy.AlwaysAllowRule(),
		}, wantErr: privacy.Deny},
		{name: "custom error is a denial", policy: privacy.MutationPolicy{
			privacy.MutationRuleFunc(func(context.Context, objgraph.Mutation) error { return custom }),
		}, wantErr: custom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.policy.EvalMutation(context.Background(), mutation(objgraph.OpInsert, "User", nil))
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestQueryPolicy(t *testing.T) {
	t.Parallel()
	var seen []string
	policy := privacy.QueryPolicy{
		privacy.QueryRuleFunc(func(_ context.Context, q objgraph.Query) error {
			seen = append(seen, q.Entity())
			return privacy.Skip
		}),
		privacy.QueryRuleFunc(func(_ context.Context, q objgraph.Query) error {
			if q.Entity() == "Secret" {
				return privacy.Denyf("entity %s is hidden", q.Entity())
			}
			return privacy.Allow
		}),
	}
	require.NoError(t, policy.EvalQuery(context.Background(), mockQuery{entity: "User"}))
	err := policy.EvalQuery(context.Background(), mockQuery{entity: "Secret"})
	assert.ErrorIs(t, err, privacy.Deny)
	assert.Equal(t, []string{"User", "Secret"}, seen)
}

func TestPolicyForwards(t *testing.T) {
	t.Parallel()
	p := privacy.Policy{
		Query:    privacy.QueryPolicy{privacy.AlwaysDenyRule()},
		Mutation: privacy.MutationPolicy{privacy.AlwaysAllowRule()},
	}
	assert.ErrorIs(t, p.EvalQuery(context.Background(), mockQuery{entity: "User"}), privacy.Deny)
	assert.NoError(t, p.EvalMutation(context.Background(), mutation(objgraph.OpDelete, "User", nil)))
}

func TestOnOperation(t *testing.T) {
	t.Parallel()
	rule := privacy.OnOperation(privacy.AlwaysDenyRule(), objgraph.OpDelete|objgraph.OpRelate)
	tests := []struct {
		op   objgraph.Op
		want error
	}{
		{objgraph.OpInsert, privacy.Skip},
		{objgraph.OpUpdate, privacy.Skip},
		{objgraph.OpDelete, privacy.Deny},
		{objgraph.OpRelate, privacy.Deny},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			t.Parallel()
			err := rule.EvalMutation(context.Background(), mutation(tt.op, "User", nil))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOnEntity(t *testing.T) {
	t.Parallel()
	rule := privacy.OnEntity(privacy.AlwaysDenyRule(), "Company", "Invoice")
	ctx := context.Background()
	assert.ErrorIs(t, rule.EvalMutation(ctx, mutation(objgraph.OpInsert, "Company", nil)), privacy.Deny)
	assert.ErrorIs(t, rule.EvalMutation(ctx, mutation(objgraph.OpInsert, "Invoice", nil)), privacy.Deny)
	assert.ErrorIs(t, rule.EvalMutation(ctx, mutation(objgraph.OpInsert, "Employee", nil)), privacy.Skip)
}

func TestOperationRules(t *testing.T) {
	t.Parallel()
	policy := privacy.MutationPolicy{
		privacy.AllowOperationRule(objgraph.OpInsert),
		privacy.DenyOperationRule(objgraph.OpInsert | objgraph.OpDelete),
	}
	ctx := context.Background()
	assert.NoError(t, policy.EvalMutation(ctx, mutation(objgraph.OpInsert, "User", nil)))
	assert.NoError(t, policy.EvalMutation(ctx, mutation(objgraph.OpUpdate, "User", nil)))

	err := policy.EvalMutation(ctx, mutation(objgraph.OpDelete, "User", nil))
	require.ErrorIs(t, err, privacy.Deny)
	assert.Contains(t, err.Error(), "OpDelete")
}

func TestDecisionContext(t *testing.T) {
	t.Parallel()
	policy := privacy.MutationPolicy{privacy.AlwaysDenyRule()}
	m := mutation(objgraph.OpUpdate, "User", nil)

	t.Run("allow overrides rules", func(t *testing.T) {
		t.Parallel()
		ctx := privacy.DecisionContext(context.Background(), privacy.Allow)
		decision, ok := privacy.DecisionFromContext(ctx)
		assert.True(t, ok)
		assert.NoError(t, decision)
		assert.NoError(t, policy.EvalMutation(ctx, m))
	})
	t.Run("deny overrides rules", func(t *testing.T) {
		t.Parallel()
		allowAll := privacy.MutationPolicy{privacy.AlwaysAllowRule()}
		ctx := privacy.DecisionContext(context.Background(), privacy.Denyf("maintenance"))
		assert.ErrorIs(t, allowAll.EvalMutation(ctx, m), privacy.Deny)
	})
	t.Run("skip and nil are ignored", func(t *testing.T) {
		t.Parallel()
		for _, decision := range []error{nil, privacy.Skip} {
			ctx := privacy.DecisionContext(context.Background(), decision)
			_, ok := privacy.DecisionFromContext(ctx)
			assert.False(t, ok)
		}
	})
}

func TestContextQueryMutationRule(t *testing.T) {
	t.Parallel()
	type key struct{}
	rule := privacy.ContextQueryMutationRule(func(ctx context.Context) error {
		if ctx.Value(key{}) != nil {
			return privacy.Allow
		}
		return privacy.Skip
	})
	ctx := context.WithValue(context.Background(), key{}, true)
	assert.ErrorIs(t, rule.EvalQuery(ctx, mockQuery{entity: "User"}), privacy.Allow)
	assert.ErrorIs(t, rule.EvalMutation(context.Background(), mutation(objgraph.OpInsert, "User", nil)), privacy.Skip)
}

func TestMutationHook(t *testing.T) {
	t.Parallel()
	var applied []string
	base := objgraph.MutateFunc(func(_ context.Context, m objgraph.Mutation) error {
		applied = append(applied, fmt.Sprintf("%s %s", m.Op(), m.Entity()))
		return nil
	})
	hook := privacy.MutationHook(privacy.OnEntity(privacy.DenyOperationRule(objgraph.OpDelete), "Company"))
	mutator := hook(base)
	ctx := context.Background()

	require.NoError(t, mutator.Mutate(ctx, mutation(objgraph.OpInsert, "Company", nil)))
	require.NoError(t, mutator.Mutate(ctx, mutation(objgraph.OpDelete, "Employee", nil)))

	err := mutator.Mutate(ctx, mutation(objgraph.OpDelete, "Company", nil))
	require.Error(t, err)
	assert.True(t, objgraph.IsPrivacyError(err))
	assert.ErrorIs(t, err, privacy.Deny)

	var perr *objgraph.PrivacyError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Company", perr.Entity)
	assert.Equal(t, "OpDelete", perr.Op)
	assert.Equal(t, []string{"OpInsert Company", "OpDelete Employee"}, applied)
}
