package querysql

import (
	"fmt"
	"strings"

	"github.com/typedb/typedb-sub067/internal/queryir"
)

// Arg is one positional SQL argument: a literal, or a parameter slot
// filled in by Bind.
type Arg struct {
	Literal string
	Slot    int
	IsSlot  bool
}

// Statement is a compiled query. It is immutable and safe to share; Bind
// produces the argument list for one execution.
type Statement struct {
	SQL     string
	Args    []Arg
	Slots   int
	Columns []string // output names in select order
}

// Bind substitutes slot values into the argument list.
func (s Statement) Bind(slots []string) ([]any, error) {
	if len(slots) != s.Slots {
		return nil, fmt.Errorf("statement has %d parameter slots, got %d values", s.Slots, len(slots))
	}
	args := make([]any, len(s.Args))
	for i, a := range s.Args {
		if a.IsSlot {
			args[i] = slots[a.Slot]
		} else {
			args[i] = a.Literal
		}
	}
	return args, nil
}

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// Every statement is SELECT DISTINCT with an ORDER BY over its ordering
// columns using COLLATE BINARY, so results are deterministic. Literals and
// slot values are always parameterized, never interpolated. Names are
// interpolated only after validation.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a QueryIR query to a Statement.
func (c *SQLCompiler) Compile(q queryir.Query) (Statement, error) {
	if q == nil {
		return Statement{}, fmt.Errorf("cannot compile nil query")
	}
	if res := queryir.Validate(q); !res.IsValid {
		return Statement{}, fmt.Errorf("invalid query: %s", strings.Join(res.Problems, "; "))
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return Statement{}, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (Statement, error) {
	var sb strings.Builder
	var st Statement

	sb.WriteString("SELECT DISTINCT ")
	for i, col := range q.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s AS %s", col.Ref, col.As)
		st.Columns = append(st.Columns, col.As)
	}

	sb.WriteString(" FROM ")
	for i, src := range q.Sources {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s AS %s", src.Table, src.Alias)
	}

	if q.Filter != nil {
		where, err := c.compilePredicate(q.Filter, &st)
		if err != nil {
			return Statement{}, fmt.Errorf("compile filter: %w", err)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	sb.WriteString(" ORDER BY ")
	sb.WriteString(c.stableOrderKey(q))

	st.SQL = sb.String()
	st.Slots = queryir.Slots(q.Filter)
	return st, nil
}

// stableOrderKey returns the ORDER BY clause body. Without explicit
// ordering columns the output columns are used in order.
func (c *SQLCompiler) stableOrderKey(q queryir.Select) string {
	refs := q.OrderBy
	if len(refs) == 0 {
		for _, col := range q.Columns {
			refs = append(refs, col.Ref)
		}
	}
	parts := make([]string, len(refs))
	for i, ref := range refs {
		parts[i] = ref.String() + " COLLATE BINARY ASC"
	}
	return strings.Join(parts, ", ")
}

// compilePredicate appends the predicate's arguments to st and returns
// its SQL fragment.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate, st *Statement) (string, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil
	case queryir.Equals:
		st.Args = append(st.Args, Arg{Literal: pred.Value})
		return pred.Ref.String() + " = ?", nil
	case queryir.ColumnEquals:
		return pred.Left.String() + " = " + pred.Right.String(), nil
	case queryir.ColumnNotEquals:
		return pred.Left.String() + " != " + pred.Right.String(), nil
	case queryir.In:
		return c.compileIn(pred, st), nil
	case queryir.Param:
		st.Args = append(st.Args, Arg{Slot: pred.Slot, IsSlot: true})
		return pred.Ref.String() + " = ?", nil
	case queryir.Compare:
		return c.compileCompare(pred, st), nil
	case queryir.And:
		return c.compileAnd(pred, st)
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileIn(in queryir.In, st *Statement) string {
	switch len(in.Values) {
	case 0:
		return "1 = 0"
	case 1:
		st.Args = append(st.Args, Arg{Literal: in.Values[0]})
		return in.Ref.String() + " = ?"
	}
	marks := make([]string, len(in.Values))
	for i, v := range in.Values {
		marks[i] = "?"
		st.Args = append(st.Args, Arg{Literal: v})
	}
	return in.Ref.String() + " IN (" + strings.Join(marks, ", ") + ")"
}

// compileCompare decodes both sides with json_extract. Columns that hold
// no JSON, such as the empty value of an entity, decode to NULL and
// compare false. The operator is interpolated only after validation
// against queryir.CompareOps.
func (c *SQLCompiler) compileCompare(cmp queryir.Compare, st *Statement) string {
	st.Args = append(st.Args, Arg{Literal: cmp.Value})
	col := cmp.Ref.String()
	left := "CASE WHEN json_valid(" + col + ") THEN json_extract(" + col + ", '$') END"
	right := "json_extract(?, '$')"
	if cmp.Op == "contains" {
		return "instr(" + left + ", " + right + ") > 0"
	}
	return left + " " + cmp.Op + " " + right
}

func (c *SQLCompiler) compileAnd(and queryir.And, st *Statement) (string, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil
	}
	parts := make([]string, 0, len(and.Predicates))
	for _, pred := range and.Predicates {
		sql, err := c.compilePredicate(pred, st)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return strings.Join(parts, " AND "), nil
}
