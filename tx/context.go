// Package tx stages inserts, updates, deletes and relationship changes and
// commits them to a store.Store atomically.
package tx

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/syssam/objgraph"
	"github.com/syssam/objgraph/privacy"
	"github.com/syssam/objgraph/store"
)

// Context is a unit of work against a store. Ops staged between Begin and
// Commit become visible together or not at all. A Context is not safe for
// concurrent use; the store it commits to is.
type Context struct {
	store  *store.Store
	log    *zap.Logger
	policy privacy.MutationRule
	hooks  []objgraph.Hook

	active bool
	ops    []Op

	subs   []subscriber
	nextID int
}

type subscriber struct {
	id int
	fn objgraph.Subscriber
}

// NewContext returns a transaction context committing to s.
func NewContext(s *store.Store, opts ...Option) *Context {
	c := &Context{store: s, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the store the context commits to.
func (c *Context) Store() *store.Store { return c.store }

// Active reports whether a transaction has been started and not yet
// committed or rolled back.
func (c *Context) Active() bool { return c.active }

// Len returns the number of staged ops.
func (c *Context) Len() int { return len(c.ops) }

// Begin starts a transaction.
func (c *Context) Begin() error {
	if c.active {
		return objgraph.ErrTxStarted
	}
	c.active = true
	c.ops = nil
	return nil
}

// Stage records an op. Nothing is validated until Commit.
func (c *Context) Stage(op Op) error {
	if !c.active {
		return objgraph.ErrTxNotStarted
	}
	if ins, ok := op.(Insert); ok && ins.ID == objgraph.NilID {
		ins.ID = objgraph.NewID()
		op = ins
	}
	c.ops = append(c.ops, op)
	return nil
}

// Insert stages a new object and returns its pre-assigned ID, so that
// later ops of the same transaction can reference it.
func (c *Context) Insert(entity string, attrs objgraph.Attrs) (objgraph.ID, error) {
	op := Insert{Entity: entity, ID: objgraph.NewID(), Attrs: attrs}
	if err := c.Stage(op); err != nil {
		return objgraph.NilID, err
	}
	return op.ID, nil
}

// Update stages attribute changes on an object.
func (c *Context) Update(id objgraph.ID, attrs objgraph.Attrs) error {
	return c.Stage(Update{ID: id, Attrs: attrs})
}

// Delete stages the removal of an object.
func (c *Context) Delete(id objgraph.ID) error {
	return c.Stage(Delete{ID: id})
}

// Relate stages the replacement of the targets of a relationship.
func (c *Context) Relate(id objgraph.ID, rel string, targets ...objgraph.ID) error {
	return c.Stage(Relate{ID: id, Rel: rel, Targets: targets})
}

// Rollback discards every staged op and ends the transaction. The store is
// not touched.
func (c *Context) Rollback() error {
	if !c.active {
		return objgraph.ErrTxNotStarted
	}
	c.log.Debug("transaction rolled back", zap.Int("ops", len(c.ops)))
	c.end()
	return nil
}

// Commit applies the staged ops to the store in staging order. Privacy
// policy and hooks run per op. Every failing op is reported, wrapped in an
// *objgraph.MutationError, inside one *objgraph.AggregateError together
// with the commit-time validation errors; the store is then unchanged.
//
// Commit ends the transaction whether it succeeds or not, unless ctx is
// already done. On success subscribers are notified in registration order
// before Commit returns.
func (c *Context) Commit(ctx context.Context) (*objgraph.Change, error) {
	if !c.active {
		return nil, objgraph.ErrTxNotStarted
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ops := c.ops
	c.end()
	change, err := c.store.Apply(ctx, func(b *store.Batch) error {
		mutator := c.mutator(b)
		var errs []error
		for i, op := range ops {
			m, err := op.mutation(b)
			if err == nil {
				err = mutator.Mutate(ctx, m)
			}
			errs = append(errs, wrap(i, op.Op(), err)...)
		}
		return objgraph.NewAggregateError(errs...)
	})
	if err != nil {
		c.log.Debug("transaction aborted", zap.Int("ops", len(ops)), zap.Error(err))
		return nil, err
	}
	c.log.Debug("transaction committed",
		zap.Int("ops", len(ops)),
		zap.Int("subscribers", len(c.subs)),
	)
	c.notify(*change)
	return change, nil
}

// Subscribe registers fn to receive the change of every successful commit.
// The returned function cancels the subscription.
func (c *Context) Subscribe(fn objgraph.Subscriber) (cancel func()) {
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	return func() {
		c.subs = slices.DeleteFunc(c.subs, func(s subscriber) bool { return s.id == id })
	}
}

func (c *Context) notify(change objgraph.Change) {
	for _, s := range slices.Clone(c.subs) {
		s.fn(change)
	}
}

func (c *Context) end() {
	c.active = false
	c.ops = nil
}

// mutator builds the hook chain for one commit. The privacy policy is the
// outermost layer, then the hooks in registration order.
func (c *Context) mutator(b *store.Batch) objgraph.Mutator {
	var next objgraph.Mutator = objgraph.MutateFunc(func(_ context.Context, m objgraph.Mutation) error {
		mu, ok := m.(*mutation)
		if !ok {
			return fmt.Errorf("objgraph/tx: unexpected mutation type %T", m)
		}
		return mu.apply(b)
	})
	for i := len(c.hooks) - 1; i >= 0; i-- {
		next = c.hooks[i](next)
	}
	if c.policy != nil {
		next = privacy.MutationHook(c.policy)(next)
	}
	return next
}

// wrap attaches the op position to err. Aggregated errors are wrapped one
// by one so that the commit reports a flat list.
func wrap(index int, op objgraph.Op, err error) []error {
	if err == nil {
		return nil
	}
	if agg, ok := err.(*objgraph.AggregateError); ok {
		out := make([]error, 0, len(agg.Errors))
		for _, e := range agg.Errors {
			out = append(out, wrap(index, op, e)...)
		}
		return out
	}
	return []error{&objgraph.MutationError{Index: index, Op: opName(op), Err: err}}
}
