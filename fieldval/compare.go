package fieldval

import (
	"math"
	"reflect"
	"sort"
	"strings"
)

// Epsilon is the absolute tolerance for numeric equality.
const Epsilon = 1e-5

// Equal reports whether two values agree under the engine's tolerant rules:
// both null means equal, one null means not equal, times compare by instant,
// numbers within Epsilon, strings case-insensitively, arrays ignoring order,
// objects by key set and recursive value equality. A kind mismatch that is not
// covered above is simply not equal; Equal never panics on malformed input.
func Equal(a, b Value) bool {
	if a.kind == KindNull && b.kind == KindNull {
		return true
	}
	if a.kind == KindNull || b.kind == KindNull {
		return false
	}
	if a.kind != b.kind {
		return false
	}

	switch a.kind {
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return math.Abs(a.n-b.n) <= Epsilon
	case KindString:
		return strings.EqualFold(a.s, b.s)
	case KindTime:
		return a.t.Equal(b.t)
	case KindArray:
		return arraysEqual(a.arr, b.arr)
	case KindObject:
		return objectsEqual(a.obj, b.obj)
	default:
		return opaqueEqual(a.raw, b.raw)
	}
}

// arraysEqual sorts copies of both sides by the package total order and then
// requires pairwise equality, so element order never causes a false conflict.
func arraysEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]Value(nil), a...)
	bs := append([]Value(nil), b...)
	sort.SliceStable(as, func(i, j int) bool { return Compare(as[i], as[j]) < 0 })
	sort.SliceStable(bs, func(i, j int) bool { return Compare(bs[i], bs[j]) < 0 })
	for i := range as {
		if !Equal(as[i], bs[i]) {
			return false
		}
	}
	return true
}

func objectsEqual(a, b map[string]Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if !Equal(av, bv) {
			return false
		}
	}
	return true
}

// opaqueEqual is identity equality guarded against incomparable types.
func opaqueEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// kindRank orders kinds for the total order: values of different kinds sort by
// rank so mixed-kind arrays still sort deterministically.
func kindRank(k Kind) int { return int(k) }

// Compare defines a total order over values. It exists to make array
// comparison order-insensitive and deterministic; it is not a semantic
// ordering of catalog data.
func Compare(a, b Value) int {
	if ra, rb := kindRank(a.kind), kindRank(b.kind); ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch a.kind {
	case KindNull:
		return 0
	case KindBool:
		if a.b == b.b {
			return 0
		}
		if !a.b {
			return -1
		}
		return 1
	case KindNumber:
		switch {
		case a.n < b.n:
			return -1
		case a.n > b.n:
			return 1
		default:
			return 0
		}
	case KindString:
		return strings.Compare(strings.ToLower(a.s), strings.ToLower(b.s))
	case KindTime:
		switch {
		case a.t.Before(b.t):
			return -1
		case a.t.After(b.t):
			return 1
		default:
			return 0
		}
	case KindArray:
		for i := 0; i < len(a.arr) && i < len(b.arr); i++ {
			if c := Compare(a.arr[i], b.arr[i]); c != 0 {
				return c
			}
		}
		return len(a.arr) - len(b.arr)
	case KindObject:
		return compareObjects(a.obj, b.obj)
	default:
		return strings.Compare(stringify(a.raw), stringify(b.raw))
	}
}

func compareObjects(a, b map[string]Value) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		bv, ok := b[k]
		if !ok {
			return 1
		}
		if c := Compare(a[k], bv); c != 0 {
			return c
		}
	}
	return 0
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return reflect.TypeOf(v).String()
}
