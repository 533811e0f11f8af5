// Package querylanguage provides an expression tree for composing object
// predicates. Predicates are built with the helper functions of this
// package and evaluated by the query package:
//
//	querylanguage.And(
//	    querylanguage.FieldEQ("name", "John"),
//	    querylanguage.HasEdgeWith("company", querylanguage.FieldHasPrefix("name", "AC")),
//	)
//
// Field names may be dotted paths that traverse relationships, e.g.
// "company.name".
package querylanguage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/syssam/objgraph"
)

// Op is an operator of an expression.
type Op int

// Operators.
const (
	OpAnd   Op = iota // logical and
	OpOr              // logical or
	OpNot             // logical not
	OpEQ              // ==
	OpNEQ             // !=
	OpGT              // >
	OpGTE             // >=
	OpLT              // <
	OpLTE             // <=
	OpIn              // in
	OpNotIn           // not in
)

var ops = [...]string{
	OpAnd:   "&&",
	OpOr:    "||",
	OpNot:   "!",
	OpEQ:    "==",
	OpNEQ:   "!=",
	OpGT:    ">",
	OpGTE:   ">=",
	OpLT:    "<",
	OpLTE:   "<=",
	OpIn:    "in",
	OpNotIn: "not in",
}

// String returns the textual form of the operator.
func (o Op) String() string {
	if int(o) < len(ops) {
		return ops[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Func is the name of a built-in function.
type Func string

// Functions.
const (
	FuncEqualFold    Func = "equal_fold"
	FuncContains     Func = "contains"
	FuncContainsFold Func = "contains_fold"
	FuncHasPrefix    Func = "has_prefix"
	FuncHasSuffix    Func = "has_suffix"
	FuncHasEdge      Func = "has_edge"
)

type (
	// Expr is an expression node.
	Expr interface {
		fmt.Stringer
		expr()
	}

	// P is a predicate: an expression that evaluates to a boolean.
	P interface {
		Expr
		Negate() P
	}

	// UnaryExpr is a unary operation, i.e. negation.
	UnaryExpr struct {
		Op Op
		X  Expr
	}

	// BinaryExpr is a binary comparison or logical operation.
	BinaryExpr struct {
		Op   Op
		X, Y Expr
	}

	// NaryExpr is a logical operation over more than two operands.
	NaryExpr struct {
		Op Op
		Xs []Expr
	}

	// CallExpr is a function call.
	CallExpr struct {
		Func Func
		Args []Expr
	}

	// Field is an attribute reference, optionally a dotted relationship path.
	Field struct {
		Name string
	}

	// Edge is a relationship reference.
	Edge struct {
		Name string
	}

	// Value is a literal operand.
	Value struct {
		V any
	}
)

func (*UnaryExpr) expr()  {}
func (*BinaryExpr) expr() {}
func (*NaryExpr) expr()   {}
func (*CallExpr) expr()   {}
func (*Field) expr()      {}
func (*Edge) expr()       {}
func (*Value) expr()      {}

// Negate returns the negation of the expression.
func (e *UnaryExpr) Negate() P { return Not(e) }

// Negate returns the negation of the expression.
func (e *BinaryExpr) Negate() P { return Not(e) }

// Negate returns the negation of the expression.
func (e *NaryExpr) Negate() P { return Not(e) }

// Negate returns the negation of the expression.
func (e *CallExpr) Negate() P { return Not(e) }

// String returns the textual form of the expression.
func (e *UnaryExpr) String() string {
	return fmt.Sprintf("%s(%s)", e.Op, e.X)
}

// String returns the textual form of the expression.
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("%s %s %s", e.X, e.Op, e.Y)
}

// String returns the textual form of the expression.
func (e *NaryExpr) String() string {
	parts := make([]string, len(e.Xs))
	for i, x := range e.Xs {
		parts[i] = x.String()
	}
	return "(" + strings.Join(parts, " "+e.Op.String()+" ") + ")"
}

// String returns the textual form of the expression.
func (e *CallExpr) String() string {
	parts := make([]string, len(e.Args))
	for i, x := range e.Args {
		parts[i] = x.String()
	}
	return string(e.Func) + "(" + strings.Join(parts, ", ") + ")"
}

// String returns the field name.
func (f *Field) String() string { return f.Name }

// String returns the edge name.
func (e *Edge) String() string { return e.Name }

// String returns the JSON form of the literal.
func (v *Value) String() string {
	x := v.V
	if ov, ok := x.(objgraph.Value); ok {
		x = objgraph.Interface(ov)
	}
	if x == nil {
		return "nil"
	}
	buf, err := json.Marshal(x)
	if err != nil {
		return fmt.Sprint(x)
	}
	return string(buf)
}

// F returns a field expression.
func F(name string) *Field { return &Field{Name: name} }

// V returns a value expression.
func V(v any) *Value { return &Value{V: v} }

// Not returns the negation of p.
func Not(p P) P {
	return &UnaryExpr{Op: OpNot, X: p}
}

// And returns the conjunction of the predicates.
func And(x, y P, z ...P) P {
	if len(z) == 0 {
		return &BinaryExpr{Op: OpAnd, X: x, Y: y}
	}
	return &NaryExpr{Op: OpAnd, Xs: append([]Expr{x, y}, exprs(z)...)}
}

// Or returns the disjunction of the predicates.
func Or(x, y P, z ...P) P {
	if len(z) == 0 {
		return &BinaryExpr{Op: OpOr, X: x, Y: y}
	}
	return &NaryExpr{Op: OpOr, Xs: append([]Expr{x, y}, exprs(z)...)}
}

// All returns the conjunction of ps. It returns nil for an empty list and
// the predicate itself for a single one.
func All(ps ...P) P {
	switch len(ps) {
	case 0:
		return nil
	case 1:
		return ps[0]
	}
	return And(ps[0], ps[1], ps[2:]...)
}

func exprs(ps []P) []Expr {
	out := make([]Expr, len(ps))
	for i, p := range ps {
		out[i] = p
	}
	return out
}

// EQ returns a predicate comparing two expressions for equality.
func EQ(x, y Expr) P { return &BinaryExpr{Op: OpEQ, X: x, Y: y} }

// NEQ returns a predicate comparing two expressions for inequality.
func NEQ(x, y Expr) P { return &BinaryExpr{Op: OpNEQ, X: x, Y: y} }

// GT returns a "greater than" predicate.
func GT(x, y Expr) P { return &BinaryExpr{Op: OpGT, X: x, Y: y} }

// GTE returns a "greater than or equal" predicate.
func GTE(x, y Expr) P { return &BinaryExpr{Op: OpGTE, X: x, Y: y} }

// LT returns a "less than" predicate.
func LT(x, y Expr) P { return &BinaryExpr{Op: OpLT, X: x, Y: y} }

// LTE returns a "less than or equal" predicate.
func LTE(x, y Expr) P { return &BinaryExpr{Op: OpLTE, X: x, Y: y} }

// FieldEQ returns a predicate checking that the field equals v.
func FieldEQ(name string, v any) P { return EQ(F(name), V(v)) }

// FieldNEQ returns a predicate checking that the field does not equal v.
func FieldNEQ(name string, v any) P { return NEQ(F(name), V(v)) }

// FieldGT returns a predicate checking that the field is greater than v.
func FieldGT(name string, v any) P { return GT(F(name), V(v)) }

// FieldGTE returns a predicate checking that the field is greater than or equal to v.
func FieldGTE(name string, v any) P { return GTE(F(name), V(v)) }

// FieldLT returns a predicate checking that the field is less than v.
func FieldLT(name string, v any) P { return LT(F(name), V(v)) }

// FieldLTE returns a predicate checking that the field is less than or equal to v.
func FieldLTE(name string, v any) P { return LTE(F(name), V(v)) }

// FieldIn returns a predicate checking that the field is one of vs.
func FieldIn(name string, vs ...any) P {
	return &BinaryExpr{Op: OpIn, X: F(name), Y: V(vs)}
}

// FieldNotIn returns a predicate checking that the field is none of vs.
func FieldNotIn(name string, vs ...any) P {
	return &BinaryExpr{Op: OpNotIn, X: F(name), Y: V(vs)}
}

// FieldNil returns a predicate checking that the field is unset.
func FieldNil(name string) P { return EQ(F(name), V(nil)) }

// FieldNotNil returns a predicate checking that the field is set.
func FieldNotNil(name string) P { return NEQ(F(name), V(nil)) }

// FieldContains returns a predicate checking that the field contains the substring.
func FieldContains(name, substr string) P {
	return &CallExpr{Func: FuncContains, Args: []Expr{F(name), V(substr)}}
}

// FieldContainsFold returns a case-insensitive FieldContains.
func FieldContainsFold(name, substr string) P {
	return &CallExpr{Func: FuncContainsFold, Args: []Expr{F(name), V(substr)}}
}

// FieldEqualFold returns a predicate checking case-insensitive equality.
func FieldEqualFold(name, v string) P {
	return &CallExpr{Func: FuncEqualFold, Args: []Expr{F(name), V(v)}}
}

// FieldHasPrefix returns a predicate checking that the field starts with prefix.
func FieldHasPrefix(name, prefix string) P {
	return &CallExpr{Func: FuncHasPrefix, Args: []Expr{F(name), V(prefix)}}
}

// FieldHasSuffix returns a predicate checking that the field ends with suffix.
func FieldHasSuffix(name, suffix string) P {
	return &CallExpr{Func: FuncHasSuffix, Args: []Expr{F(name), V(suffix)}}
}

// HasEdge returns a predicate checking that the relationship is non-empty.
func HasEdge(name string) P {
	return &CallExpr{Func: FuncHasEdge, Args: []Expr{&Edge{Name: name}}}
}

// HasEdgeWith returns a predicate checking that at least one related object
// matches all of the given predicates.
func HasEdgeWith(name string, ps ...P) P {
	args := []Expr{&Edge{Name: name}}
	if p := All(ps...); p != nil {
		args = append(args, p)
	}
	return &CallExpr{Func: FuncHasEdge, Args: args}
}
