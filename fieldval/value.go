// Package fieldval provides a tagged-variant representation for field values
// extracted from loosely-typed catalog records, plus the tolerant equality and
// total ordering the diffing engine is built on.
//
// Type sniffing happens exactly once, at ingestion: downstream rules match on
// Kind instead of re-inspecting raw interface values.
package fieldval

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindTime
	KindArray
	KindObject
	KindOpaque // anything the sniffer cannot classify; compared by identity
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "opaque"
	}
}

// Value is an immutable tagged variant. The zero value is Null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	t    time.Time
	arr  []Value
	obj  map[string]Value
	raw  interface{}
}

// Constructors.

func Null() Value                   { return Value{kind: KindNull} }
func Bool(b bool) Value             { return Value{kind: KindBool, b: b} }
func Number(n float64) Value        { return Value{kind: KindNumber, n: n} }
func String(s string) Value         { return Value{kind: KindString, s: s} }
func Time(t time.Time) Value        { return Value{kind: KindTime, t: t} }
func Array(vs ...Value) Value       { return Value{kind: KindArray, arr: vs} }
func Object(m map[string]Value) Value { return Value{kind: KindObject, obj: m} }

// Accessors.

func (v Value) Kind() Kind               { return v.kind }
func (v Value) IsNull() bool             { return v.kind == KindNull }
func (v Value) BoolVal() bool            { return v.b }
func (v Value) NumberVal() float64       { return v.n }
func (v Value) StringVal() string        { return v.s }
func (v Value) TimeVal() time.Time       { return v.t }
func (v Value) ArrayVal() []Value        { return v.arr }
func (v Value) ObjectVal() map[string]Value { return v.obj }

// timeLayouts are tried in order when sniffing date-like strings.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime attempts to interpret s as a timestamp using the known layouts.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Sniff classifies a raw value (typically from a JSON-decoded map) into a
// tagged Value. Date-like and numeric strings are promoted so that the two
// sides' differing wire conventions (e.g. prices as strings) still compare.
func Sniff(raw interface{}) Value {
	switch v := raw.(type) {
	case nil:
		return Null()
	case Value:
		return v
	case bool:
		return Bool(v)
	case float64:
		return Number(v)
	case float32:
		return Number(float64(v))
	case int:
		return Number(float64(v))
	case int32:
		return Number(float64(v))
	case int64:
		return Number(float64(v))
	case uint:
		return Number(float64(v))
	case uint64:
		return Number(float64(v))
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return Number(f)
		}
		return String(v.String())
	case time.Time:
		return Time(v)
	case string:
		if t, ok := ParseTime(v); ok {
			return Time(t)
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && strings.TrimSpace(v) != "" {
			return Number(f)
		}
		return String(v)
	case []interface{}:
		arr := make([]Value, len(v))
		for i, el := range v {
			arr[i] = Sniff(el)
		}
		return Array(arr...)
	case map[string]interface{}:
		obj := make(map[string]Value, len(v))
		for k, el := range v {
			obj[k] = Sniff(el)
		}
		return Object(obj)
	default:
		return Value{kind: KindOpaque, raw: raw}
	}
}

// Native converts a Value back to a plain Go value suitable for JSON
// serialization (times render as RFC3339).
func (v Value) Native() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindTime:
		return v.t.Format(time.RFC3339)
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, el := range v.arr {
			out[i] = el.Native()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(v.obj))
		for k, el := range v.obj {
			out[k] = el.Native()
		}
		return out
	default:
		return v.raw
	}
}

func (v Value) String() string {
	return fmt.Sprintf("%s(%v)", v.kind, v.Native())
}
