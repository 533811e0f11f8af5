package query

import (
	"fmt"
	"strings"

	"github.com/syssam/objgraph"
	ql "github.com/syssam/objgraph/querylanguage"
	"github.com/syssam/objgraph/schema"
	"github.com/syssam/objgraph/store"
)

// matcher reports whether an object satisfies a compiled predicate.
type matcher func(*store.Object) bool

// resolver returns the values reached by a field path from an object.
type resolver func(*store.Object) []objgraph.Value

// compiler turns predicate trees into matchers bound to one snapshot.
type compiler struct {
	snap *store.Snapshot
}

func (c *compiler) pred(e *schema.Entity, x ql.Expr) (matcher, error) {
	switch x := x.(type) {
	case *ql.UnaryExpr:
		if x.Op != ql.OpNot {
			return nil, fmt.Errorf("objgraph: unsupported unary operator %s", x.Op)
		}
		m, err := c.pred(e, x.X)
		if err != nil {
			return nil, err
		}
		return func(o *store.Object) bool { return !m(o) }, nil
	case *ql.BinaryExpr:
		switch x.Op {
		case ql.OpAnd, ql.OpOr:
			return c.logical(e, x.Op, []ql.Expr{x.X, x.Y})
		}
		return c.compare(e, x)
	case *ql.NaryExpr:
		return c.logical(e, x.Op, x.Xs)
	case *ql.CallExpr:
		if x.Func == ql.FuncHasEdge {
			return c.hasEdge(e, x)
		}
		return c.call(e, x)
	case nil:
		return func(*store.Object) bool { return true }, nil
	}
	return nil, fmt.Errorf("objgraph: unsupported predicate %s", x)
}

func (c *compiler) logical(e *schema.Entity, op ql.Op, xs []ql.Expr) (matcher, error) {
	ms := make([]matcher, len(xs))
	for i, x := range xs {
		m, err := c.pred(e, x)
		if err != nil {
			return nil, err
		}
		ms[i] = m
	}
	switch op {
	case ql.OpAnd:
		return func(o *store.Object) bool {
			for _, m := range ms {
				if !m(o) {
					return false
				}
			}
			return true
		}, nil
	case ql.OpOr:
		return func(o *store.Object) bool {
			for _, m := range ms {
				if m(o) {
					return true
				}
			}
			return false
		}, nil
	}
	return nil, fmt.Errorf("objgraph: unsupported logical operator %s", op)
}

func (c *compiler) compare(e *schema.Entity, x *ql.BinaryExpr) (matcher, error) {
	f, ok := x.X.(*ql.Field)
	if !ok {
		return nil, fmt.Errorf("objgraph: left operand of %s must be a field, got %s", x.Op, x.X)
	}
	lit, ok := x.Y.(*ql.Value)
	if !ok {
		return nil, fmt.Errorf("objgraph: right operand of %s must be a value, got %s", x.Op, x.Y)
	}
	get, attr, err := c.path(e, f.Name)
	if err != nil {
		return nil, err
	}

	if x.Op == ql.OpIn || x.Op == ql.OpNotIn {
		list, ok := lit.V.([]any)
		if !ok {
			return nil, fmt.Errorf("objgraph: operand of %s must be a list, got %s", x.Op, lit)
		}
		set := make([]objgraph.Value, 0, len(list))
		for _, v := range list {
			cv, err := operand(e, attr, v)
			if err != nil {
				return nil, err
			}
			set = append(set, cv)
		}
		in := func(o *store.Object) bool {
			for _, v := range get(o) {
				for _, w := range set {
					if objgraph.Equal(v, w) {
						return true
					}
				}
			}
			return false
		}
		if x.Op == ql.OpNotIn {
			return func(o *store.Object) bool { return !in(o) }, nil
		}
		return in, nil
	}

	want, err := operand(e, attr, lit.V)
	if err != nil {
		return nil, err
	}
	var test func(objgraph.Value) bool
	switch x.Op {
	case ql.OpEQ:
		test = func(v objgraph.Value) bool { return objgraph.Equal(v, want) }
	case ql.OpNEQ:
		test = func(v objgraph.Value) bool { return !objgraph.Equal(v, want) }
	case ql.OpGT, ql.OpGTE, ql.OpLT, ql.OpLTE:
		op := x.Op
		test = func(v objgraph.Value) bool {
			if objgraph.IsNull(v) || objgraph.IsNull(want) {
				return false
			}
			n, ok := objgraph.Compare(v, want)
			if !ok {
				return false
			}
			switch op {
			case ql.OpGT:
				return n > 0
			case ql.OpGTE:
				return n >= 0
			case ql.OpLT:
				return n < 0
			}
			return n <= 0
		}
	default:
		return nil, fmt.Errorf("objgraph: unsupported operator %s", x.Op)
	}
	return func(o *store.Object) bool {
		for _, v := range get(o) {
			if test(v) {
				return true
			}
		}
		return false
	}, nil
}

func (c *compiler) call(e *schema.Entity, x *ql.CallExpr) (matcher, error) {
	if len(x.Args) != 2 {
		return nil, fmt.Errorf("objgraph: %s expects 2 arguments, got %d", x.Func, len(x.Args))
	}
	f, ok := x.Args[0].(*ql.Field)
	if !ok {
		return nil, fmt.Errorf("objgraph: first argument of %s must be a field", x.Func)
	}
	lit, ok := x.Args[1].(*ql.Value)
	if !ok {
		return nil, fmt.Errorf("objgraph: second argument of %s must be a value", x.Func)
	}
	get, attr, err := c.path(e, f.Name)
	if err != nil {
		return nil, err
	}
	if attr.Type() != schema.TypeString {
		return nil, fmt.Errorf("objgraph: %s: %w", x.Func, &objgraph.TypeMismatchError{
			Entity: e.Name(), Attribute: f.Name, Want: schema.TypeString, Got: attr.Type(),
		})
	}
	arg, ok := lit.V.(string)
	if !ok {
		return nil, fmt.Errorf("objgraph: second argument of %s must be a string, got %s", x.Func, lit)
	}
	var test func(s string) bool
	switch x.Func {
	case ql.FuncContains:
		test = func(s string) bool { return strings.Contains(s, arg) }
	case ql.FuncContainsFold:
		lower := strings.ToLower(arg)
		test = func(s string) bool { return strings.Contains(strings.ToLower(s), lower) }
	case ql.FuncEqualFold:
		test = func(s string) bool { return strings.EqualFold(s, arg) }
	case ql.FuncHasPrefix:
		test = func(s string) bool { return strings.HasPrefix(s, arg) }
	case ql.FuncHasSuffix:
		test = func(s string) bool { return strings.HasSuffix(s, arg) }
	default:
		return nil, fmt.Errorf("objgraph: unknown function %q", x.Func)
	}
	return func(o *store.Object) bool {
		for _, v := range get(o) {
			if s, ok := v.(objgraph.String); ok && test(string(s)) {
				return true
			}
		}
		return false
	}, nil
}

func (c *compiler) hasEdge(e *schema.Entity, x *ql.CallExpr) (matcher, error) {
	if len(x.Args) == 0 || len(x.Args) > 2 {
		return nil, fmt.Errorf("objgraph: has_edge expects 1 or 2 arguments, got %d", len(x.Args))
	}
	edge, ok := x.Args[0].(*ql.Edge)
	if !ok {
		return nil, fmt.Errorf("objgraph: first argument of has_edge must be an edge")
	}
	r, ok := e.Relationship(edge.Name)
	if !ok {
		return nil, &objgraph.UnknownRelationshipError{Entity: e.Name(), Relationship: edge.Name}
	}
	if len(x.Args) == 1 {
		return func(o *store.Object) bool { return len(o.Related(r.Name())) > 0 }, nil
	}
	dest, _ := c.snap.Schema().Entity(r.Destination())
	m, err := c.pred(dest, x.Args[1])
	if err != nil {
		return nil, err
	}
	return func(o *store.Object) bool {
		for _, id := range o.Related(r.Name()) {
			if t, err := c.snap.Get(id); err == nil && m(t) {
				return true
			}
		}
		return false
	}, nil
}

// path compiles a dotted field path. Every segment but the last names a
// relationship; the last names an attribute. Traversing a to-many
// relationship yields the values of every related object. An object that
// reaches no related object yields a single Null.
func (c *compiler) path(e *schema.Entity, name string) (resolver, *schema.Attribute, error) {
	segs := strings.Split(name, ".")
	var rels []string
	cur := e
	for _, seg := range segs[:len(segs)-1] {
		r, ok := cur.Relationship(seg)
		if !ok {
			return nil, nil, &objgraph.UnknownRelationshipError{Entity: cur.Name(), Relationship: seg}
		}
		rels = append(rels, r.Name())
		cur, _ = c.snap.Schema().Entity(r.Destination())
	}
	last := segs[len(segs)-1]
	attr, ok := cur.Attribute(last)
	if !ok {
		return nil, nil, &objgraph.UnknownAttributeError{Entity: cur.Name(), Attribute: last}
	}
	snap := c.snap
	return func(o *store.Object) []objgraph.Value {
		objs := []*store.Object{o}
		for _, rel := range rels {
			var next []*store.Object
			for _, obj := range objs {
				for _, id := range obj.Related(rel) {
					if t, err := snap.Get(id); err == nil {
						next = append(next, t)
					}
				}
			}
			objs = next
		}
		if len(objs) == 0 {
			return []objgraph.Value{objgraph.Null{}}
		}
		vs := make([]objgraph.Value, len(objs))
		for i, obj := range objs {
			if v, ok := obj.Attr(last); ok {
				vs[i] = v
			} else {
				vs[i] = objgraph.Null{}
			}
		}
		return vs
	}, attr, nil
}

// operand converts a literal to a value comparable with the attribute.
func operand(e *schema.Entity, attr *schema.Attribute, x any) (objgraph.Value, error) {
	v, err := objgraph.ValueOf(x)
	if err != nil {
		return nil, err
	}
	if objgraph.IsNull(v) {
		return objgraph.Null{}, nil
	}
	cv, err := store.Coerce(attr, v)
	if err != nil {
		return nil, &objgraph.TypeMismatchError{Entity: e.Name(), Attribute: attr.Name(), Want: attr.Type(), Got: v.Kind()}
	}
	return cv, nil
}

// indexable returns an equality on an indexed attribute that every match
// of p must satisfy.
func indexable(e *schema.Entity, p ql.Expr) (string, objgraph.Value, bool) {
	switch x := p.(type) {
	case *ql.BinaryExpr:
		switch x.Op {
		case ql.OpEQ:
			f, ok := x.X.(*ql.Field)
			lit, ok2 := x.Y.(*ql.Value)
			if !ok || !ok2 || strings.Contains(f.Name, ".") {
				return "", nil, false
			}
			a, ok := e.Attribute(f.Name)
			if !ok || !a.Indexed() {
				return "", nil, false
			}
			v, err := operand(e, a, lit.V)
			if err != nil || objgraph.IsNull(v) {
				return "", nil, false
			}
			return a.Name(), v, true
		case ql.OpAnd:
			if name, v, ok := indexable(e, x.X); ok {
				return name, v, ok
			}
			return indexable(e, x.Y)
		}
	case *ql.NaryExpr:
		if x.Op != ql.OpAnd {
			return "", nil, false
		}
		for _, y := range x.Xs {
			if name, v, ok := indexable(e, y); ok {
				return name, v, ok
			}
		}
	}
	return "", nil, false
}
