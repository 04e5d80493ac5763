package queryir

import (
	"strconv"
	"strings"
)

// Query represents an abstract query in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode()
}

// Predicate represents a filter condition in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: column = literal
//   - ColumnEquals: column = column
//   - ColumnNotEquals: column != column
//   - In: column IN (literal, ...)
//   - Compare: decoded column value <op> decoded literal
//   - Param: column = slot value supplied at execution
//   - And: all predicates must be true
type Predicate interface {
	predicateNode()
}

// Source is one aliased table in a Select's FROM list.
type Source struct {
	Table string
	Alias string
}

// ColumnRef names a column of an aliased source.
type ColumnRef struct {
	Alias  string
	Column string
}

// String renders the reference as alias.column.
func (r ColumnRef) String() string {
	return r.Alias + "." + r.Column
}

// Column is an output column. As names the result column.
type Column struct {
	Ref ColumnRef
	As  string
}

// Select is an inner join over Sources, filtered by Filter, projecting
// Columns with set semantics.
//
// Semantics:
//
//	SELECT DISTINCT <columns> FROM <sources> WHERE <filter> ORDER BY <order>
//
// Example, all persons owning a name:
//
//	Select{
//	  Sources: []Source{{"things", "t_x"}, {"ownerships", "o0"}, {"things", "t_n"}},
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Ref: ColumnRef{"t_x", "type"}, Value: "person"},
//	    ColumnEquals{Left: ColumnRef{"o0", "owner"}, Right: ColumnRef{"t_x", "iid"}},
//	    ColumnEquals{Left: ColumnRef{"o0", "attribute"}, Right: ColumnRef{"t_n", "iid"}},
//	    Equals{Ref: ColumnRef{"t_n", "type"}, Value: "name"},
//	  }},
//	  Columns: []Column{{Ref: ColumnRef{"t_x", "iid"}, As: "x_iid"}, ...},
//	  OrderBy: []ColumnRef{{"t_x", "iid"}, {"t_n", "iid"}},
//	}
type Select struct {
	Sources []Source
	Filter  Predicate // nil = no filter
	Columns []Column
	OrderBy []ColumnRef
}

func (Select) queryNode() {}

// Equals compares a column to a literal. Literals are the stored text
// forms: type labels, instance ids and encoded attribute values.
type Equals struct {
	Ref   ColumnRef
	Value string
}

func (Equals) predicateNode() {}

// ColumnEquals joins two columns.
type ColumnEquals struct {
	Left  ColumnRef
	Right ColumnRef
}

func (ColumnEquals) predicateNode() {}

// ColumnNotEquals requires two columns to differ.
type ColumnNotEquals struct {
	Left  ColumnRef
	Right ColumnRef
}

func (ColumnNotEquals) predicateNode() {}

// In requires a column to equal one of Values. An empty Values list
// matches nothing.
type In struct {
	Ref    ColumnRef
	Values []string
}

func (In) predicateNode() {}

// CompareOps lists the operators a Compare predicate accepts.
var CompareOps = map[string]bool{
	"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true, "contains": true,
}

// Compare orders a column holding an encoded attribute value against an
// encoded literal. Both sides are decoded before comparing, so numbers
// compare as numbers and strings as text.
type Compare struct {
	Ref   ColumnRef
	Op    string
	Value string
}

func (Compare) predicateNode() {}

// Param compares a column to the value of an execution-time slot.
type Param struct {
	Ref  ColumnRef
	Slot int
}

func (Param) predicateNode() {}

// And represents a conjunction of predicates. Empty means always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Conjoin flattens predicates into a single And, dropping nils and nested
// Ands. It returns nil when nothing remains.
func Conjoin(preds ...Predicate) Predicate {
	var out []Predicate
	for _, p := range preds {
		switch v := p.(type) {
		case nil:
		case And:
			if inner := Conjoin(v.Predicates...); inner != nil {
				if a, ok := inner.(And); ok {
					out = append(out, a.Predicates...)
				} else {
					out = append(out, inner)
				}
			}
		default:
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return And{Predicates: out}
	}
}

// Slots returns the number of parameter slots referenced by p: one more
// than the highest slot index.
func Slots(p Predicate) int {
	n := 0
	Walk(p, func(p Predicate) {
		if param, ok := p.(Param); ok && param.Slot+1 > n {
			n = param.Slot + 1
		}
	})
	return n
}

// Walk calls fn for p and, for And, every nested predicate.
func Walk(p Predicate, fn func(Predicate)) {
	if p == nil {
		return
	}
	fn(p)
	if a, ok := p.(And); ok {
		for _, sub := range a.Predicates {
			Walk(sub, fn)
		}
	}
}

// String renders a predicate for logs and test failures.
func String(p Predicate) string {
	switch v := p.(type) {
	case nil:
		return "true"
	case Equals:
		return v.Ref.String() + " = " + quote(v.Value)
	case ColumnEquals:
		return v.Left.String() + " = " + v.Right.String()
	case ColumnNotEquals:
		return v.Left.String() + " != " + v.Right.String()
	case In:
		vals := make([]string, len(v.Values))
		for i, s := range v.Values {
			vals[i] = quote(s)
		}
		return v.Ref.String() + " IN (" + strings.Join(vals, ", ") + ")"
	case Param:
		return v.Ref.String() + " = $" + strconv.Itoa(v.Slot)
	case Compare:
		return "decode(" + v.Ref.String() + ") " + v.Op + " decode(" + quote(v.Value) + ")"
	case And:
		parts := make([]string, len(v.Predicates))
		for i, sub := range v.Predicates {
			parts[i] = String(sub)
		}
		return strings.Join(parts, " AND ")
	default:
		return "?"
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
