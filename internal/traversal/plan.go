package traversal

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/pattern"
	"github.com/typedb/typedb-sub067/internal/queryir"
	"github.com/typedb/typedb-sub067/internal/querysql"
)

// TypeSource resolves a type label to itself and its subtypes.
type TypeSource interface {
	Subtypes(label string) []string
}

// Plan is a compiled scan plan for one query shape.
type Plan struct {
	// Query is the query the plan was compiled from. Its variables name
	// the bindings of every answer the plan produces.
	Query pattern.Query

	// Vars lists the query variables in output order.
	Vars []ir.Identifier

	// Params lists the variable whose instance id fills each slot.
	Params []ir.Identifier

	Select    queryir.Select
	Statement querysql.Statement
}

// Args collects slot values for the plan from a query of the same shape
// in the plan's own variable frame.
func (p *Plan) Args(q pattern.Query) (map[ir.Identifier]string, error) {
	args := make(map[ir.Identifier]string, len(p.Params))
	for _, id := range p.Params {
		iid, ok := q.IIDOf(id)
		if !ok {
			return nil, fmt.Errorf("plan parameter %s has no iid in %s", id, q)
		}
		args[id] = iid
	}
	return args, nil
}

// Planner compiles atomic queries into Plans.
type Planner struct {
	types    TypeSource
	compiler *querysql.SQLCompiler
	compiles atomic.Int64
}

// NewPlanner creates a planner resolving types through types.
func NewPlanner(types TypeSource) *Planner {
	return &Planner{types: types, compiler: querysql.NewSQLCompiler()}
}

// Compiles returns the number of plans compiled so far.
func (p *Planner) Compiles() int64 {
	return p.compiles.Load()
}

// CompilePlan builds a plan for q.
//
// Every variable gets a things alias. Ownerships and role players add one
// alias per edge. Isa atoms filter by the type and its subtypes, iid atoms
// become parameter slots and inequalities compare instance ids. Value
// predicates compare the decoded stored value. Inequalities must be between
// variables of the query.
func (p *Planner) CompilePlan(q pattern.Query) (*Plan, error) {
	b := &planBuilder{types: p.types, aliases: make(map[ir.Identifier]string)}
	vars := q.Vars()
	for i, id := range vars {
		alias := "t" + strconv.Itoa(i)
		b.aliases[id] = alias
		b.sources = append(b.sources, queryir.Source{Table: "things", Alias: alias})
	}

	for _, a := range q.Atoms() {
		if err := b.atom(a); err != nil {
			return nil, fmt.Errorf("compile plan for %s: %w", q, err)
		}
	}
	for _, n := range q.Neqs {
		if err := b.atom(n); err != nil {
			return nil, fmt.Errorf("compile plan for %s: %w", q, err)
		}
	}

	sel := queryir.Select{Sources: b.sources, Filter: queryir.Conjoin(b.preds...)}
	for i, id := range vars {
		alias := b.aliases[id]
		prefix := "v" + strconv.Itoa(i) + "_"
		for _, col := range outputColumns {
			sel.Columns = append(sel.Columns, queryir.Column{
				Ref: queryir.ColumnRef{Alias: alias, Column: col},
				As:  prefix + col,
			})
		}
		sel.OrderBy = append(sel.OrderBy, queryir.ColumnRef{Alias: alias, Column: "iid"})
	}

	st, err := p.compiler.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("compile plan for %s: %w", q, err)
	}
	p.compiles.Add(1)
	slog.Debug("compiled scan plan", "query", q.String(), "sources", len(sel.Sources), "slots", st.Slots)

	return &Plan{
		Query:     q,
		Vars:      vars,
		Params:    b.params,
		Select:    sel,
		Statement: st,
	}, nil
}

// outputColumns are the things columns read back for every variable.
var outputColumns = []string{"iid", "type", "kind", "value"}

type planBuilder struct {
	types      TypeSource
	aliases    map[ir.Identifier]string
	sources    []queryir.Source
	preds      []queryir.Predicate
	params     []ir.Identifier
	ownerships int
	players    int
}

func (b *planBuilder) col(id ir.Identifier, column string) (queryir.ColumnRef, error) {
	alias, ok := b.aliases[id]
	if !ok {
		return queryir.ColumnRef{}, fmt.Errorf("variable %s is not part of the query", id)
	}
	return queryir.ColumnRef{Alias: alias, Column: column}, nil
}

func (b *planBuilder) edge(table, prefix string, n *int) string {
	alias := prefix + strconv.Itoa(*n)
	*n++
	b.sources = append(b.sources, queryir.Source{Table: table, Alias: alias})
	return alias
}

func (b *planBuilder) typeFilter(ref queryir.ColumnRef, label string, exact bool) queryir.Predicate {
	if exact {
		return queryir.Equals{Ref: ref, Value: label}
	}
	return queryir.In{Ref: ref, Values: b.types.Subtypes(label)}
}

func (b *planBuilder) atom(a pattern.Atom) error {
	switch at := a.(type) {
	case pattern.Isa:
		ref, err := b.col(at.Var, "type")
		if err != nil {
			return err
		}
		b.preds = append(b.preds, b.typeFilter(ref, at.Type, at.Exact))

	case pattern.IID:
		ref, err := b.col(at.Var, "iid")
		if err != nil {
			return err
		}
		b.preds = append(b.preds, queryir.Param{Ref: ref, Slot: len(b.params)})
		b.params = append(b.params, at.Var)

	case pattern.Has:
		owner, err := b.col(at.Owner, "iid")
		if err != nil {
			return err
		}
		attr, err := b.col(at.Attribute, "iid")
		if err != nil {
			return err
		}
		o := b.edge("ownerships", "o", &b.ownerships)
		b.preds = append(b.preds,
			queryir.ColumnEquals{Left: queryir.ColumnRef{Alias: o, Column: "owner"}, Right: owner},
			queryir.ColumnEquals{Left: queryir.ColumnRef{Alias: o, Column: "attribute"}, Right: attr},
			b.typeFilter(queryir.ColumnRef{Alias: attr.Alias, Column: "type"}, at.Type, false),
		)
		if at.Value != nil {
			enc, err := ir.MarshalValue(at.Value)
			if err != nil {
				return err
			}
			b.preds = append(b.preds, queryir.Equals{
				Ref:   queryir.ColumnRef{Alias: attr.Alias, Column: "value"},
				Value: string(enc),
			})
		}

	case pattern.Relation:
		rel, err := b.col(at.Var, "iid")
		if err != nil {
			return err
		}
		b.preds = append(b.preds, b.typeFilter(queryir.ColumnRef{Alias: rel.Alias, Column: "type"}, at.Type, false))
		edges := make([]string, 0, len(at.Players))
		for _, rp := range at.Players {
			player, err := b.col(rp.Player, "iid")
			if err != nil {
				return err
			}
			r := b.edge("role_players", "r", &b.players)
			b.preds = append(b.preds,
				queryir.ColumnEquals{Left: queryir.ColumnRef{Alias: r, Column: "relation"}, Right: rel},
				queryir.ColumnEquals{Left: queryir.ColumnRef{Alias: r, Column: "player"}, Right: player},
			)
			if rp.Role != "" {
				b.preds = append(b.preds, queryir.Equals{Ref: queryir.ColumnRef{Alias: r, Column: "role"}, Value: rp.Role})
			}
			edges = append(edges, r)
		}
		// each player position needs its own role player edge
		for i := range edges {
			for j := i + 1; j < len(edges); j++ {
				b.preds = append(b.preds, queryir.ColumnNotEquals{
					Left:  queryir.ColumnRef{Alias: edges[i], Column: "rowid"},
					Right: queryir.ColumnRef{Alias: edges[j], Column: "rowid"},
				})
			}
		}

	case pattern.ValuePredicate:
		ref, err := b.col(at.Var, "value")
		if err != nil {
			return err
		}
		enc, err := ir.MarshalValue(at.Value)
		if err != nil {
			return err
		}
		op := string(at.Op)
		if at.Op == ir.Eq {
			op = "="
		}
		b.preds = append(b.preds, queryir.Compare{Ref: ref, Op: op, Value: string(enc)})

	case pattern.Neq:
		left, err := b.col(at.Left, "iid")
		if err != nil {
			return err
		}
		right, err := b.col(at.Right, "iid")
		if err != nil {
			return err
		}
		b.preds = append(b.preds, queryir.ColumnNotEquals{Left: left, Right: right})

	default:
		return fmt.Errorf("unsupported atom %T", a)
	}
	return nil
}
