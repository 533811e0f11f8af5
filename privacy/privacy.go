package privacy

import (
	"context"
	"errors"
	"fmt"

	"github.com/syssam/objgraph"
)

// Policy decision sentinel errors.
//
// Rules return one of these values, possibly wrapped, to steer policy
// evaluation. Use errors.Is() to check them:
//
//	if errors.Is(err, privacy.Deny) { ... }
var (
	// Allow terminates the evaluation with an allow decision.
	Allow = errors.New("objgraph/privacy: allow rule")

	// Deny terminates the evaluation with a deny decision.
	Deny = errors.New("objgraph/privacy: deny rule")

	// Skip continues the evaluation with the next rule.
	Skip = errors.New("objgraph/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// AlwaysAllowRule returns a rule that always returns an Allow decision.
func AlwaysAllowRule() QueryMutationRule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always returns a Deny decision.
func AlwaysDenyRule() QueryMutationRule {
	return fixedDecision{Deny}
}

// ContextQueryMutationRule creates a query/mutation rule from a context
// evaluation function. Returning nil is equivalent to returning Skip.
func ContextQueryMutationRule(eval func(context.Context) error) QueryMutationRule {
	return contextDecision{eval}
}

type (
	// QueryRule decides whether a fetch is allowed.
	QueryRule interface {
		EvalQuery(context.Context, objgraph.Query) error
	}

	// QueryPolicy combines multiple query rules into a single policy.
	QueryPolicy []QueryRule

	// MutationRule decides whether a staged mutation is allowed.
	MutationRule interface {
		EvalMutation(context.Context, objgraph.Mutation) error
	}

	// MutationPolicy combines multiple mutation rules into a single policy.
	MutationPolicy []MutationRule

	// QueryMutationRule is an interface which groups query and mutation rules.
	QueryMutationRule interface {
		QueryRule
		MutationRule
	}
)

// MutationRuleFunc type is an adapter which allows the use of
// ordinary functions as mutation rules.
type MutationRuleFunc func(context.Context, objgraph.Mutation) error

// EvalMutation returns f(ctx, m).
func (f MutationRuleFunc) EvalMutation(ctx context.Context, m objgraph.Mutation) error {
	return f(ctx, m)
}

// QueryRuleFunc type is an adapter which allows the use of ordinary
// functions as query rules.
type QueryRuleFunc func(context.Context, objgraph.Query) error

// EvalQuery returns f(ctx, q).
func (f QueryRuleFunc) EvalQuery(ctx context.Context, q objgraph.Query) error {
	return f(ctx, q)
}

// OnOperation evaluates the given rule only on the given operations.
func OnOperation(rule MutationRule, op objgraph.Op) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m objgraph.Mutation) error {
		if m.Op().Is(op) {
			return rule.EvalMutation(ctx, m)
		}
		return Skip
	})
}

// OnEntity evaluates the given rule only on mutations of the given entities.
func OnEntity(rule MutationRule, entities ...string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m objgraph.Mutation) error {
		for _, e := range entities {
			if m.Entity() == e {
				return rule.EvalMutation(ctx, m)
			}
		}
		return Skip
	})
}

// DenyOperationRule returns a rule denying the given operations.
func DenyOperationRule(op objgraph.Op) MutationRule {
	rule := MutationRuleFunc(func(_ context.Context, m objgraph.Mutation) error {
		return Denyf("objgraph/privacy: operation %s is not allowed", m.Op())
	})
	return OnOperation(rule, op)
}

// AllowOperationRule returns a rule allowing the given operations.
func AllowOperationRule(op objgraph.Op) MutationRule {
	rule := MutationRuleFunc(func(context.Context, objgraph.Mutation) error {
		return Allow
	})
	return OnOperation(rule, op)
}

// Policy groups query and mutation policies.
type Policy struct {
	Query    QueryPolicy
	Mutation MutationPolicy
}

// EvalQuery forwards evaluation to the query policy.
func (p Policy) EvalQuery(ctx context.Context, q objgraph.Query) error {
	return p.Query.EvalQuery(ctx, q)
}

// EvalMutation forwards evaluation to the mutation policy.
func (p Policy) EvalMutation(ctx context.Context, m objgraph.Mutation) error {
	return p.Mutation.EvalMutation(ctx, m)
}

// EvalQuery evaluates a query against a query policy. It returns nil when
// the query is allowed and the deciding error otherwise.
func (policies QueryPolicy) EvalQuery(ctx context.Context, q objgraph.Query) error {
	return eval(ctx, policies, func(r QueryRule) error { return r.EvalQuery(ctx, q) })
}

// EvalMutation evaluates a mutation against a mutation policy. It returns
// nil when the mutation is allowed and the deciding error otherwise.
func (policies MutationPolicy) EvalMutation(ctx context.Context, m objgraph.Mutation) error {
	return eval(ctx, policies, func(r MutationRule) error { return r.EvalMutation(ctx, m) })
}

// eval runs rules in order until one returns a decision other than Skip.
// A decision attached to the context wins over the rules.
func eval[R any](ctx context.Context, rules []R, fn func(R) error) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, r := range rules {
		switch decision := fn(r); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

type decisionCtxKey struct{}

// DecisionContext creates a new context from the given parent context with
// a policy decision attached to it.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

// MutationHook returns a hook that evaluates the policy before every
// mutation and turns a denial into an *objgraph.PrivacyError.
func MutationHook(policy MutationRule) objgraph.Hook {
	return func(next objgraph.Mutator) objgraph.Mutator {
		return objgraph.MutateFunc(func(ctx context.Context, m objgraph.Mutation) error {
			if err := policy.EvalMutation(ctx, m); err != nil {
				return &objgraph.PrivacyError{Entity: m.Entity(), Op: m.Op().String(), Err: err}
			}
			return next.Mutate(ctx, m)
		})
	}
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) EvalQuery(context.Context, objgraph.Query) error {
	return f.decision
}

func (f fixedDecision) EvalMutation(context.Context, objgraph.Mutation) error {
	return f.decision
}

type contextDecision struct {
	eval func(context.Context) error
}

func (c contextDecision) EvalQuery(ctx context.Context, _ objgraph.Query) error {
	return c.eval(ctx)
}

func (c contextDecision) EvalMutation(ctx context.Context, _ objgraph.Mutation) error {
	return c.eval(ctx)
}
