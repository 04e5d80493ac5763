package ir

import (
	"cmp"
	"strings"
)

// Comparator is a value comparison operator usable in a value predicate.
type Comparator string

const (
	Eq       Comparator = "=="
	Neq      Comparator = "!="
	Lt       Comparator = "<"
	Lte      Comparator = "<="
	Gt       Comparator = ">"
	Gte      Comparator = ">="
	Contains Comparator = "contains"
)

// ValidComparators lists the operators the query language accepts.
var ValidComparators = map[Comparator]bool{
	Eq: true, Neq: true, Lt: true, Lte: true, Gt: true, Gte: true, Contains: true,
}

// Applies reports whether the operator can compare values of type vt.
// Booleans support only equality, and contains needs strings.
func (op Comparator) Applies(vt ValueType) bool {
	switch op {
	case Eq, Neq:
		return true
	case Lt, Lte, Gt, Gte:
		return vt == ValueTypeString || vt == ValueTypeLong
	case Contains:
		return vt == ValueTypeString
	default:
		return false
	}
}

// Satisfies reports whether "v op want" holds. Values of different types
// never satisfy a comparison, and a nil v satisfies nothing.
//
// Strings order by bytes, the same order SQLite applies to stored text.
func Satisfies(v Value, op Comparator, want Value) bool {
	if v == nil || want == nil || v.ValueType() != want.ValueType() || !op.Applies(want.ValueType()) {
		return false
	}
	if op == Contains {
		return strings.Contains(string(v.(String)), string(want.(String)))
	}

	var c int
	switch a := v.(type) {
	case String:
		c = cmp.Compare(a, want.(String))
	case Long:
		c = cmp.Compare(a, want.(Long))
	case Bool:
		if a != want.(Bool) {
			c = 1
		}
	}
	switch op {
	case Eq:
		return c == 0
	case Neq:
		return c != 0
	case Lt:
		return c < 0
	case Lte:
		return c <= 0
	case Gt:
		return c > 0
	default:
		return c >= 0
	}
}
