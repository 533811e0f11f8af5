// Package query fetches objects from a store with composable predicates.
//
// A fetch works on the snapshot taken when it starts; later commits are
// not visible to its results:
//
//	eng := query.New(s)
//	res, err := eng.Fetch(ctx, "Employee", querylanguage.FieldEQ("company.name", "ACME"))
//	for emp := range res.All() {
//	    fmt.Println(emp.Get("name"))
//	}
package query

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"go.uber.org/zap"

	"github.com/syssam/objgraph"
	"github.com/syssam/objgraph/privacy"
	ql "github.com/syssam/objgraph/querylanguage"
	"github.com/syssam/objgraph/store"
)

// Engine evaluates fetch requests against a store.
type Engine struct {
	store  *store.Store
	log    *zap.Logger
	policy privacy.QueryRule
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for fetch diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithPolicy sets the privacy policy evaluated before every fetch. A
// denied fetch fails with an *objgraph.PrivacyError.
func WithPolicy(p privacy.QueryRule) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// New returns an engine reading from s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{store: s, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Order is one ordering term of a request.
type Order struct {
	Field string // attribute name or dotted path
	Desc  bool
}

// Asc orders by field in ascending order.
func Asc(field string) Order { return Order{Field: field} }

// Desc orders by field in descending order.
func Desc(field string) Order { return Order{Field: field, Desc: true} }

// Request describes a fetch.
type Request struct {
	Entity  string
	Where   ql.P    // nil matches every object
	OrderBy []Order // insertion order when empty
	Limit   int     // 0 means no limit
	Offset  int
}

// fetch is the objgraph.Query handed to query policies.
type fetch struct {
	req *Request
}

func (f fetch) Entity() string { return f.req.Entity }

// Fetch returns the objects of the entity that satisfy p, in insertion
// order. A nil p matches every object.
func (e *Engine) Fetch(ctx context.Context, entity string, p ql.P) (*Results, error) {
	return e.Run(ctx, Request{Entity: entity, Where: p})
}

// Run evaluates the request.
func (e *Engine) Run(ctx context.Context, req Request) (*Results, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Limit < 0 || req.Offset < 0 {
		return nil, fmt.Errorf("objgraph: negative limit or offset")
	}
	if e.policy != nil {
		if err := e.policy.EvalQuery(ctx, fetch{req: &req}); err != nil {
			return nil, &objgraph.PrivacyError{Entity: req.Entity, Op: "query", Err: err}
		}
	}
	snap := e.store.View()
	ent, err := snap.Schema().MustEntity(req.Entity)
	if err != nil {
		return nil, err
	}
	c := &compiler{snap: snap}
	var where ql.Expr
	if req.Where != nil {
		where = req.Where
	}
	match, err := c.pred(ent, where)
	if err != nil {
		return nil, fmt.Errorf("objgraph: fetch %s: %w", req.Entity, err)
	}
	keys := make([]sortKey, len(req.OrderBy))
	for i, o := range req.OrderBy {
		get, _, err := c.path(ent, o.Field)
		if err != nil {
			return nil, fmt.Errorf("objgraph: order %s: %w", req.Entity, err)
		}
		keys[i] = sortKey{get: get, desc: o.Desc}
	}

	var candidates []*store.Object
	if attr, v, ok := indexable(ent, where); ok {
		candidates, _ = snap.Lookup(req.Entity, attr, v)
		e.log.Debug("fetch using index",
			zap.String("entity", req.Entity), zap.String("attribute", attr), zap.Int("candidates", len(candidates)))
	} else {
		if candidates, err = snap.Objects(req.Entity); err != nil {
			return nil, err
		}
		e.log.Debug("fetch scanning", zap.String("entity", req.Entity), zap.Int("candidates", len(candidates)))
	}

	seq := func(yield func(*Instance) bool) {
		objs, keep := candidates, match
		if len(keys) > 0 {
			objs = slices.Collect(filter(candidates, match))
			slices.SortStableFunc(objs, func(a, b *store.Object) int { return compareKeys(keys, a, b) })
			keep = nil
		}
		skipped, n := 0, 0
		for _, o := range objs {
			if keep != nil && !keep(o) {
				continue
			}
			if skipped < req.Offset {
				skipped++
				continue
			}
			if req.Limit > 0 && n >= req.Limit {
				return
			}
			n++
			if !yield(&Instance{obj: o, snap: snap}) {
				return
			}
		}
	}
	return &Results{seq: seq}, nil
}

func filter(objs []*store.Object, match matcher) iter.Seq[*store.Object] {
	return func(yield func(*store.Object) bool) {
		for _, o := range objs {
			if match(o) && !yield(o) {
				return
			}
		}
	}
}

type sortKey struct {
	get  resolver
	desc bool
}

// compareKeys orders two objects by the first value of each key. Values
// that cannot be compared are treated as equal.
func compareKeys(keys []sortKey, a, b *store.Object) int {
	for _, k := range keys {
		n, ok := objgraph.Compare(k.get(a)[0], k.get(b)[0])
		if !ok || n == 0 {
			continue
		}
		if k.desc {
			return -n
		}
		return n
	}
	return 0
}
