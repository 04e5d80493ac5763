package traversal

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/typedb/typedb-sub067/internal/ir"
)

// DefaultPageSize is the number of rows fetched per round trip.
const DefaultPageSize = 256

// Queryer runs a read query. *store.Store implements it.
type Queryer interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Executor runs plans against the fact store.
type Executor struct {
	db         Queryer
	pageSize   int
	executions atomic.Int64
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPageSize sets the number of rows fetched per page.
func WithPageSize(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// NewExecutor creates an executor reading through db.
func NewExecutor(db Queryer, opts ...ExecutorOption) *Executor {
	e := &Executor{db: db, pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Executions returns the number of plan executions started.
func (e *Executor) Executions() int64 {
	return e.executions.Load()
}

// Execute streams the answers of plan with its parameter slots filled
// from args. Nothing is read until the sequence is iterated, and
// iteration may stop at any point.
func (e *Executor) Execute(ctx context.Context, plan *Plan, args map[ir.Identifier]string) iter.Seq2[ir.ConceptMap, error] {
	return func(yield func(ir.ConceptMap, error) bool) {
		slots := make([]string, len(plan.Params))
		for i, id := range plan.Params {
			iid, ok := args[id]
			if !ok {
				yield(ir.ConceptMap{}, fmt.Errorf("execute plan: no value for parameter %s", id))
				return
			}
			slots[i] = iid
		}
		bound, err := plan.Statement.Bind(slots)
		if err != nil {
			yield(ir.ConceptMap{}, fmt.Errorf("execute plan: %w", err))
			return
		}
		e.executions.Add(1)

		query := plan.Statement.SQL + " LIMIT ? OFFSET ?"
		for offset := 0; ; offset += e.pageSize {
			if err := ctx.Err(); err != nil {
				yield(ir.ConceptMap{}, err)
				return
			}
			page, err := e.page(ctx, plan, query, append(bound, e.pageSize, offset))
			if err != nil {
				yield(ir.ConceptMap{}, err)
				return
			}
			for _, m := range page {
				if !yield(m, nil) {
					return
				}
			}
			if len(page) < e.pageSize {
				return
			}
		}
	}
}

// page reads one page fully and closes the result set before returning.
func (e *Executor) page(ctx context.Context, plan *Plan, query string, args []any) ([]ir.ConceptMap, error) {
	rows, err := e.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute plan: %w", err)
	}
	defer rows.Close()

	var out []ir.ConceptMap
	cols := make([]string, len(plan.Vars)*len(outputColumns))
	ptrs := make([]any, len(cols))
	for i := range cols {
		ptrs[i] = &cols[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		m, err := decodeRow(plan.Vars, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return out, nil
}

func decodeRow(vars []ir.Identifier, cols []string) (ir.ConceptMap, error) {
	bindings := make(map[ir.Identifier]ir.Concept, len(vars))
	for i, id := range vars {
		row := cols[i*len(outputColumns):]
		c := ir.Concept{IID: row[0], Type: row[1], Kind: ir.Kind(row[2])}
		if row[3] != "" {
			v, err := ir.UnmarshalValue([]byte(row[3]))
			if err != nil {
				return ir.ConceptMap{}, fmt.Errorf("decode value of %s: %w", c.IID, err)
			}
			c.Value = v
		}
		bindings[id] = c
	}
	return ir.NewConceptMap(bindings), nil
}
