package octrace

import (
	"fmt"
	"sort"
)

// AttributeKind identifies which field of an AttributeValue is set.
// New kinds may be added; consumers must ignore kinds they do not know.
type AttributeKind int

const (
	InvalidKind AttributeKind = iota
	StringKind
	BoolKind
	Int64Kind
	Float64Kind
)

func (k AttributeKind) String() string {
	switch k {
	case StringKind:
		return "string"
	case BoolKind:
		return "bool"
	case Int64Kind:
		return "int64"
	case Float64Kind:
		return "float64"
	default:
		return fmt.Sprintf("AttributeKind(%d)", int(k))
	}
}

// AttributeValue is a tagged variant. The zero value has InvalidKind.
type AttributeValue struct {
	kind AttributeKind
	s    string
	n    int64
	f    float64
	b    bool
}

func StringValue(v string) AttributeValue   { return AttributeValue{kind: StringKind, s: v} }
func BoolValue(v bool) AttributeValue       { return AttributeValue{kind: BoolKind, b: v} }
func Int64Value(v int64) AttributeValue     { return AttributeValue{kind: Int64Kind, n: v} }
func Float64Value(v float64) AttributeValue { return AttributeValue{kind: Float64Kind, f: v} }

func (v AttributeValue) Kind() AttributeKind { return v.kind }
func (v AttributeValue) AsString() string    { return v.s }
func (v AttributeValue) AsBool() bool        { return v.b }
func (v AttributeValue) AsInt64() int64      { return v.n }
func (v AttributeValue) AsFloat64() float64  { return v.f }

func (v AttributeValue) String() string {
	switch v.kind {
	case StringKind:
		return v.s
	case BoolKind:
		return fmt.Sprint(v.b)
	case Int64Kind:
		return fmt.Sprint(v.n)
	case Float64Kind:
		return fmt.Sprint(v.f)
	default:
		return "<invalid>"
	}
}

// Attribute is a single key/value pair.
type Attribute struct {
	Key   string
	Value AttributeValue
}

func String(k string, v string) Attribute   { return Attribute{Key: k, Value: StringValue(v)} }
func Bool(k string, v bool) Attribute       { return Attribute{Key: k, Value: BoolValue(v)} }
func Int64(k string, v int64) Attribute     { return Attribute{Key: k, Value: Int64Value(v)} }
func Float64(k string, v float64) Attribute { return Attribute{Key: k, Value: Float64Value(v)} }

// Any picks the attribute kind from the dynamic type of v. Integer
// types become Int64 (uint64 values above MaxInt64 are kept as strings),
// floats become Float64, and fmt.Stringer becomes String. Anything else
// produces an InvalidKind value.
func Any(k string, v interface{}) Attribute {
	switch typed := v.(type) {
	case string:
		return String(k, typed)
	case bool:
		return Bool(k, typed)
	case int:
		return Int64(k, int64(typed))
	case int8:
		return Int64(k, int64(typed))
	case int16:
		return Int64(k, int64(typed))
	case int32:
		return Int64(k, int64(typed))
	case int64:
		return Int64(k, typed)
	case uint8:
		return Int64(k, int64(typed))
	case uint16:
		return Int64(k, int64(typed))
	case uint32:
		return Int64(k, int64(typed))
	case uint:
		return Any(k, uint64(typed))
	case uint64:
		if typed > 1<<63-1 {
			return String(k, fmt.Sprint(typed))
		}
		return Int64(k, int64(typed))
	case float32:
		return Float64(k, float64(typed))
	case float64:
		return Float64(k, typed)
	case fmt.Stringer:
		return String(k, typed.String())
	default:
		return Attribute{Key: k}
	}
}

// Attributes is an unordered set of attributes keyed by name.
type Attributes map[string]AttributeValue

// Keys returns the keys in sorted order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a Attributes) copy() Attributes {
	if a == nil {
		return nil
	}
	c := make(Attributes, len(a))
	for k, v := range a {
		c[k] = v
	}
	return c
}

func attributesOf(attrs []Attribute) Attributes {
	if len(attrs) == 0 {
		return nil
	}
	m := make(Attributes, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Value
	}
	return m
}
