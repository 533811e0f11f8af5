package objgraph

import (
	"bytes"
	"cmp"
	"encoding/base64"
	"fmt"
	"maps"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Kind is the scalar type tag of a Value.
type Kind uint8

// Value kinds.
const (
	KindInvalid Kind = iota
	KindNull
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime
	KindBytes
	KindUUID
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindNull:    "null",
	KindString:  "string",
	KindInt:     "int",
	KindFloat:   "float",
	KindBool:    "bool",
	KindTime:    "time",
	KindBytes:   "bytes",
	KindUUID:    "uuid",
}

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind returns the kind with the given name.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s && Kind(k) != KindInvalid && Kind(k) != KindNull {
			return Kind(k), nil
		}
	}
	return KindInvalid, fmt.Errorf("objgraph: unknown attribute type %q", s)
}

// Value is a sealed tagged variant holding one attribute value.
// Only the types declared in this file implement it.
type Value interface {
	Kind() Kind
	String() string
	value()
}

type (
	// Null is the absent value of an optional attribute.
	Null struct{}
	// String is a string attribute value.
	String string
	// Int is a 64-bit integer attribute value.
	Int int64
	// Float is a 64-bit floating point attribute value.
	Float float64
	// Bool is a boolean attribute value.
	Bool bool
	// Time is a timestamp attribute value.
	Time time.Time
	// Bytes is a binary attribute value.
	Bytes []byte
	// UUID is a UUID attribute value.
	UUID uuid.UUID
)

func (Null) value()   {}
func (String) value() {}
func (Int) value()    {}
func (Float) value()  {}
func (Bool) value()   {}
func (Time) value()   {}
func (Bytes) value()  {}
func (UUID) value()   {}

func (Null) Kind() Kind   { return KindNull }
func (String) Kind() Kind { return KindString }
func (Int) Kind() Kind    { return KindInt }
func (Float) Kind() Kind  { return KindFloat }
func (Bool) Kind() Kind   { return KindBool }
func (Time) Kind() Kind   { return KindTime }
func (Bytes) Kind() Kind  { return KindBytes }
func (UUID) Kind() Kind   { return KindUUID }

func (Null) String() string     { return "nil" }
func (v String) String() string { return string(v) }
func (v Int) String() string    { return strconv.FormatInt(int64(v), 10) }
func (v Float) String() string  { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v Bool) String() string   { return strconv.FormatBool(bool(v)) }
func (v Time) String() string   { return time.Time(v).Format(time.RFC3339Nano) }
func (v Bytes) String() string  { return base64.StdEncoding.EncodeToString(v) }
func (v UUID) String() string   { return uuid.UUID(v).String() }

// Std returns the value as a time.Time.
func (v Time) Std() time.Time { return time.Time(v) }

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// Interface returns the Go representation of v.
func Interface(v Value) any {
	switch v := v.(type) {
	case String:
		return string(v)
	case Int:
		return int64(v)
	case Float:
		return float64(v)
	case Bool:
		return bool(v)
	case Time:
		return time.Time(v)
	case Bytes:
		return []byte(v)
	case UUID:
		return uuid.UUID(v)
	}
	return nil
}

// ValueOf converts a Go scalar into a Value.
func ValueOf(x any) (Value, error) {
	switch x := x.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return x, nil
	case string:
		return String(x), nil
	case int:
		return Int(x), nil
	case int8:
		return Int(x), nil
	case int16:
		return Int(x), nil
	case int32:
		return Int(x), nil
	case int64:
		return Int(x), nil
	case uint8:
		return Int(x), nil
	case uint16:
		return Int(x), nil
	case uint32:
		return Int(x), nil
	case float32:
		return Float(x), nil
	case float64:
		return Float(x), nil
	case bool:
		return Bool(x), nil
	case time.Time:
		return Time(x), nil
	case []byte:
		return Bytes(bytes.Clone(x)), nil
	case uuid.UUID:
		return UUID(x), nil
	}
	return nil, fmt.Errorf("objgraph: unsupported value type %T", x)
}

// Compare orders two values. ok is false when the values are not comparable,
// i.e. they are of different kinds (ints and floats compare numerically).
// Null sorts before every other value.
func Compare(a, b Value) (c int, ok bool) {
	an, bn := IsNull(a), IsNull(b)
	switch {
	case an && bn:
		return 0, true
	case an:
		return -1, true
	case bn:
		return 1, true
	}
	switch a := a.(type) {
	case String:
		if b, ok := b.(String); ok {
			return cmp.Compare(a, b), true
		}
	case Int:
		switch b := b.(type) {
		case Int:
			return cmp.Compare(a, b), true
		case Float:
			return cmp.Compare(float64(a), float64(b)), true
		}
	case Float:
		switch b := b.(type) {
		case Float:
			return cmp.Compare(a, b), true
		case Int:
			return cmp.Compare(float64(a), float64(b)), true
		}
	case Bool:
		if b, ok := b.(Bool); ok {
			switch {
			case a == b:
				return 0, true
			case !bool(a):
				return -1, true
			}
			return 1, true
		}
	case Time:
		if b, ok := b.(Time); ok {
			return time.Time(a).Compare(time.Time(b)), true
		}
	case Bytes:
		if b, ok := b.(Bytes); ok {
			return bytes.Compare(a, b), true
		}
	case UUID:
		if b, ok := b.(UUID); ok {
			return bytes.Compare(a[:], b[:]), true
		}
	}
	return 0, false
}

// Equal reports whether a and b hold the same value.
func Equal(a, b Value) bool {
	c, ok := Compare(a, b)
	return ok && c == 0
}

// ValueKey is a comparable form of a Value used as a hash index key.
type ValueKey struct {
	kind Kind
	s    string
	n    int64
	f    float64
}

// Key returns the index key of v.
func Key(v Value) ValueKey {
	switch v := v.(type) {
	case String:
		return ValueKey{kind: KindString, s: string(v)}
	case Int:
		return ValueKey{kind: KindInt, n: int64(v)}
	case Float:
		return ValueKey{kind: KindFloat, f: float64(v)}
	case Bool:
		if v {
			return ValueKey{kind: KindBool, n: 1}
		}
		return ValueKey{kind: KindBool}
	case Time:
		return ValueKey{kind: KindTime, n: time.Time(v).UnixNano()}
	case Bytes:
		return ValueKey{kind: KindBytes, s: string(v)}
	case UUID:
		return ValueKey{kind: KindUUID, s: string(v[:])}
	}
	return ValueKey{kind: KindNull}
}

// Attrs maps attribute names to values.
type Attrs map[string]Value

// Clone returns a shallow copy of a. Byte values are copied.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	c := maps.Clone(a)
	for k, v := range c {
		if b, ok := v.(Bytes); ok {
			c[k] = Bytes(bytes.Clone(b))
		}
	}
	return c
}

// AttrsOf converts a map of Go scalars into Attrs.
func AttrsOf(m map[string]any) (Attrs, error) {
	attrs := make(Attrs, len(m))
	for k, x := range m {
		v, err := ValueOf(x)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		attrs[k] = v
	}
	return attrs, nil
}
