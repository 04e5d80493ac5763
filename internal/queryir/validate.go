package queryir

import (
	"fmt"
	"regexp"
)

// identPattern is the accepted shape of table, alias, column and output
// names. Backends interpolate these, so nothing else is allowed.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether s can be used as a table, alias or column name.
func ValidIdent(s string) bool {
	return identPattern.MatchString(s)
}

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	// IsValid is true when Problems is empty.
	IsValid bool

	// Problems lists every violation found, in traversal order.
	Problems []string
}

// Validate checks that a query is well formed:
//  1. At least one source, with unique valid aliases
//  2. Every column reference names a declared alias
//  3. At least one output column, with unique valid names
//  4. Parameter slots are numbered 0..n-1 with no gaps
//  5. Every ordering column is also an output column
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{problems: []string{}}
	v.validateQuery(query)
	return ValidationResult{
		IsValid:  len(v.problems) == 0,
		Problems: v.problems,
	}
}

type validator struct {
	problems []string
	aliases  map[string]bool
	slots    map[int]bool
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addProblem("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	v.aliases = make(map[string]bool, len(sel.Sources))
	v.slots = make(map[int]bool)

	if len(sel.Sources) == 0 {
		v.addProblem("select has no sources")
	}
	for _, src := range sel.Sources {
		if !ValidIdent(src.Table) {
			v.addProblem("invalid table name %q", src.Table)
		}
		if !ValidIdent(src.Alias) {
			v.addProblem("invalid alias %q", src.Alias)
			continue
		}
		if v.aliases[src.Alias] {
			v.addProblem("duplicate alias %q", src.Alias)
		}
		v.aliases[src.Alias] = true
	}

	if len(sel.Columns) == 0 {
		v.addProblem("select has no output columns")
	}
	outputs := make(map[ColumnRef]bool, len(sel.Columns))
	names := make(map[string]bool, len(sel.Columns))
	for _, col := range sel.Columns {
		v.validateRef(col.Ref)
		outputs[col.Ref] = true
		if !ValidIdent(col.As) {
			v.addProblem("invalid output name %q", col.As)
			continue
		}
		if names[col.As] {
			v.addProblem("duplicate output name %q", col.As)
		}
		names[col.As] = true
	}

	for _, ref := range sel.OrderBy {
		v.validateRef(ref)
		if !outputs[ref] {
			v.addProblem("ordering column %s is not an output column", ref)
		}
	}

	v.validatePredicate(sel.Filter)

	for i := 0; i < len(v.slots); i++ {
		if !v.slots[i] {
			v.addProblem("parameter slots are not contiguous: missing $%d", i)
			break
		}
	}
}

func (v *validator) validateRef(ref ColumnRef) {
	if !v.aliases[ref.Alias] {
		v.addProblem("reference to undeclared alias %q", ref.Alias)
	}
	if !ValidIdent(ref.Column) {
		v.addProblem("invalid column name %q", ref.Column)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.validateRef(pred.Ref)
	case ColumnEquals:
		v.validateRef(pred.Left)
		v.validateRef(pred.Right)
	case ColumnNotEquals:
		v.validateRef(pred.Left)
		v.validateRef(pred.Right)
	case In:
		v.validateRef(pred.Ref)
	case Compare:
		v.validateRef(pred.Ref)
		if !CompareOps[pred.Op] {
			v.addProblem("invalid comparison operator %q", pred.Op)
		}
	case Param:
		v.validateRef(pred.Ref)
		if pred.Slot < 0 {
			v.addProblem("negative parameter slot %d", pred.Slot)
			return
		}
		v.slots[pred.Slot] = true
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}
