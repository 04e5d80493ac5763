package pattern

import (
	"slices"
	"strings"

	"github.com/typedb/typedb-sub067/internal/ir"
)

// Conjunction is a set of atoms that must hold together, plus negated
// sub-conjunctions that must not hold.
type Conjunction struct {
	Atoms     []Atom
	Negations []Conjunction
}

// NewConjunction builds a conjunction from atoms.
func NewConjunction(atoms ...Atom) Conjunction {
	return Conjunction{Atoms: atoms}
}

// Vars returns the identifiers of the positive atoms in order of appearance.
// Inequalities and value predicates bind nothing.
func (c Conjunction) Vars() []ir.Identifier {
	var vars []ir.Identifier
	for _, a := range c.Atoms {
		switch a.(type) {
		case Neq, ValuePredicate:
			continue
		}
		for _, id := range a.Vars() {
			vars = appendUnique(vars, id)
		}
	}
	return vars
}

// AllVars returns every identifier, including those only mentioned in
// inequalities and negations.
func (c Conjunction) AllVars() []ir.Identifier {
	var vars []ir.Identifier
	for _, a := range c.Atoms {
		for _, id := range a.Vars() {
			vars = appendUnique(vars, id)
		}
	}
	for _, neg := range c.Negations {
		for _, id := range neg.AllVars() {
			vars = appendUnique(vars, id)
		}
	}
	return vars
}

// Retrievable returns the named identifiers of the positive atoms.
func (c Conjunction) Retrievable() []ir.Identifier {
	var out []ir.Identifier
	for _, id := range c.Vars() {
		if id.Retrievable() {
			out = append(out, id)
		}
	}
	return out
}

func (c Conjunction) String() string {
	parts := make([]string, 0, len(c.Atoms)+len(c.Negations))
	for _, a := range c.Atoms {
		parts = append(parts, a.String()+";")
	}
	for _, neg := range c.Negations {
		parts = append(parts, "not { "+neg.String()+" };")
	}
	return strings.Join(parts, " ")
}

// Query is an atomic query: one main atom plus the isa, iid and value
// constraints on its variables and any inequalities that become checkable
// once it is resolved.
type Query struct {
	Main        Atom
	Constraints []Atom // Isa, IID and ValuePredicate atoms on Main's variables
	Neqs        []Neq
}

// NewQuery builds an atomic query with no inequalities.
func NewQuery(main Atom, constraints ...Atom) Query {
	return Query{Main: main, Constraints: constraints}
}

// Atoms returns the main atom followed by its constraints.
func (q Query) Atoms() []Atom {
	atoms := make([]Atom, 0, 1+len(q.Constraints))
	atoms = append(atoms, q.Main)
	return append(atoms, q.Constraints...)
}

// Vars returns the query's identifiers in order of appearance.
func (q Query) Vars() []ir.Identifier {
	var vars []ir.Identifier
	for _, a := range q.Atoms() {
		for _, id := range a.Vars() {
			vars = appendUnique(vars, id)
		}
	}
	return vars
}

// WithoutNeqs drops the inequality constraints.
func (q Query) WithoutNeqs() Query {
	return Query{Main: q.Main, Constraints: q.Constraints}
}

// Conjunction returns the query as a conjunction.
func (q Query) Conjunction() Conjunction {
	atoms := q.Atoms()
	for _, n := range q.Neqs {
		atoms = append(atoms, n)
	}
	return Conjunction{Atoms: atoms}
}

// IIDOf returns the iid constraint on a variable, if any.
func (q Query) IIDOf(id ir.Identifier) (string, bool) {
	for _, a := range q.Constraints {
		if c, ok := a.(IID); ok && c.Var == id {
			return c.IID, true
		}
	}
	return "", false
}

// Bind pins every variable bound in sub to its concept with an IID
// constraint. Constraints are appended in identifier order so binding is
// deterministic.
func (q Query) Bind(sub ir.ConceptMap) Query {
	var added []Atom
	for _, id := range q.Vars() {
		c, ok := sub.Get(id)
		if !ok {
			continue
		}
		if _, pinned := q.IIDOf(id); pinned {
			continue
		}
		added = append(added, IID{Var: id, IID: c.IID})
	}
	if len(added) == 0 {
		return q
	}
	slices.SortFunc(added, func(a, b Atom) int {
		return ir.CompareIdentifiers(a.(IID).Var, b.(IID).Var)
	})
	constraints := make([]Atom, 0, len(q.Constraints)+len(added))
	constraints = append(constraints, q.Constraints...)
	constraints = append(constraints, added...)
	return Query{Main: q.Main, Constraints: constraints, Neqs: q.Neqs}
}

func (q Query) String() string {
	return q.Conjunction().String()
}

// Decompose splits a conjunction into ordered atomic queries.
//
// Each ownership and relation atom becomes the main atom of one query,
// carrying the isa and iid atoms of its variables. Variables constrained
// only by isa or iid atoms get a query of their own. Queries keep the
// order of their main atoms in the conjunction.
//
// Value predicates join every query that binds their variable. A value
// predicate on a variable no positive atom binds yields a PredicateError.
//
// Each inequality is attached to the first query after which both its
// variables are bound. An inequality or negation that the positive atoms
// never bind yields a NegationError.
func Decompose(c Conjunction) ([]Query, error) {
	if err := CheckNegations(c); err != nil {
		return nil, err
	}

	covered := make(map[ir.Identifier]bool)
	for _, a := range c.Atoms {
		switch a.(type) {
		case Has, Relation:
			for _, id := range a.Vars() {
				covered[id] = true
			}
		}
	}

	constraintsOf := func(vars []ir.Identifier) []Atom {
		var out []Atom
		for _, a := range c.Atoms {
			switch at := a.(type) {
			case Isa:
				if slices.Contains(vars, at.Var) {
					out = append(out, at)
				}
			case IID:
				if slices.Contains(vars, at.Var) {
					out = append(out, at)
				}
			case ValuePredicate:
				if slices.Contains(vars, at.Var) {
					out = append(out, at)
				}
			}
		}
		return out
	}

	var queries []Query
	standalone := make(map[ir.Identifier]bool)
	for _, a := range c.Atoms {
		switch at := a.(type) {
		case Has, Relation:
			queries = append(queries, NewQuery(at, constraintsOf(at.Vars())...))
		case Isa, IID:
			id := at.Vars()[0]
			if covered[id] || standalone[id] {
				continue
			}
			standalone[id] = true
			cons := constraintsOf([]ir.Identifier{id})
			// Prefer an isa atom as the main atom so it stays concludable.
			mainIdx := slices.IndexFunc(cons, func(x Atom) bool { _, ok := x.(Isa); return ok })
			if mainIdx < 0 {
				mainIdx = slices.IndexFunc(cons, func(x Atom) bool { _, ok := x.(IID); return ok })
			}
			main := cons[mainIdx]
			rest := append(slices.Clone(cons[:mainIdx]), cons[mainIdx+1:]...)
			queries = append(queries, NewQuery(main, rest...))
		}
	}

	positive := c.Vars()
	for _, a := range c.Atoms {
		if p, ok := a.(ValuePredicate); ok && !slices.Contains(positive, p.Var) {
			return nil, &PredicateError{Pattern: p.String(), Var: p.Var}
		}
	}

	for _, a := range c.Atoms {
		neq, ok := a.(Neq)
		if !ok {
			continue
		}
		var bound []ir.Identifier
		attached := false
		for i := range queries {
			for _, id := range queries[i].Vars() {
				bound = appendUnique(bound, id)
			}
			if slices.Contains(bound, neq.Left) && slices.Contains(bound, neq.Right) {
				queries[i].Neqs = append(queries[i].Neqs, neq)
				attached = true
				break
			}
		}
		if !attached {
			return nil, &NegationError{Pattern: neq.String(), Unbound: missing(bound, neq.Vars())}
		}
	}

	return queries, nil
}

// CheckNegations verifies that every inequality and negated block refers
// to at least the variables it needs from the positive part: both sides of
// an inequality, and at least one variable of a negated block.
func CheckNegations(c Conjunction) error {
	positive := c.Vars()
	for _, a := range c.Atoms {
		if neq, ok := a.(Neq); ok {
			if unbound := missing(positive, neq.Vars()); len(unbound) > 0 {
				return &NegationError{Pattern: neq.String(), Unbound: unbound}
			}
		}
	}
	for _, neg := range c.Negations {
		negVars := neg.AllVars()
		if len(negVars) == len(missing(positive, negVars)) {
			return &NegationError{Pattern: "not { " + neg.String() + " }", Unbound: negVars}
		}
		if err := checkNestedNegations(neg, positive); err != nil {
			return err
		}
	}
	return nil
}

// checkNestedNegations validates a negated block with the outer positive
// variables counting as bound.
func checkNestedNegations(neg Conjunction, outer []ir.Identifier) error {
	inner := Conjunction{Atoms: neg.Atoms, Negations: neg.Negations}
	bound := slices.Clone(outer)
	for _, id := range inner.Vars() {
		bound = appendUnique(bound, id)
	}
	for _, a := range inner.Atoms {
		if n, ok := a.(Neq); ok {
			if unbound := missing(bound, n.Vars()); len(unbound) > 0 {
				return &NegationError{Pattern: n.String(), Unbound: unbound}
			}
		}
	}
	for _, nested := range inner.Negations {
		vars := nested.AllVars()
		if len(vars) == len(missing(bound, vars)) {
			return &NegationError{Pattern: "not { " + nested.String() + " }", Unbound: vars}
		}
		if err := checkNestedNegations(nested, bound); err != nil {
			return err
		}
	}
	return nil
}

func missing(bound, want []ir.Identifier) []ir.Identifier {
	var out []ir.Identifier
	for _, id := range want {
		if !slices.Contains(bound, id) {
			out = appendUnique(out, id)
		}
	}
	return out
}
