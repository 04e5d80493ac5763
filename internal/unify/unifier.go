package unify

import (
	"iter"
	"slices"
	"strings"

	"github.com/typedb/typedb-sub067/internal/ir"
)

// Requirement constrains the concept a child variable may be bound to
// before an answer is accepted back into the parent frame. Zero fields
// place no constraint.
type Requirement struct {
	IID         string
	Value       ir.Value
	Comparisons []Comparison
}

// Comparison is a value predicate carried over from the parent query.
type Comparison struct {
	Op    ir.Comparator
	Value ir.Value
}

// Accepts reports whether v satisfies the comparison.
func (c Comparison) Accepts(v ir.Value) bool {
	return ir.Satisfies(v, c.Op, c.Value)
}

func (r Requirement) satisfiedBy(c ir.Concept) bool {
	if r.IID != "" && c.IID != r.IID {
		return false
	}
	if r.Value != nil && !ir.ValueEqual(c.Value, r.Value) {
		return false
	}
	for _, cmp := range r.Comparisons {
		if !cmp.Accepts(c.Value) {
			return false
		}
	}
	return true
}

func (r Requirement) merge(o Requirement) (Requirement, bool) {
	if o.IID != "" {
		if r.IID != "" && r.IID != o.IID {
			return r, false
		}
		r.IID = o.IID
	}
	if o.Value != nil {
		if r.Value != nil && !ir.ValueEqual(r.Value, o.Value) {
			return r, false
		}
		r.Value = o.Value
	}
	for _, c := range o.Comparisons {
		if r.Value != nil && !c.Accepts(r.Value) {
			return r, false
		}
		if !slices.Contains(r.Comparisons, c) {
			r.Comparisons = append(slices.Clone(r.Comparisons), c)
		}
	}
	if r.Value != nil {
		for _, c := range r.Comparisons {
			if !c.Accepts(r.Value) {
				return r, false
			}
		}
	}
	return r, true
}

// Unifier maps parent identifiers to child identifiers.
//
// The mapping may be many-to-one in either direction: a parent variable
// used in two role positions maps to both child players, and two parent
// variables matched to the same child variable must agree on its concept.
type Unifier struct {
	forward      map[ir.Identifier][]ir.Identifier
	inverse      map[ir.Identifier][]ir.Identifier
	requirements map[ir.Identifier]Requirement
}

// New builds a unifier from parent -> child pairs.
func New(pairs map[ir.Identifier][]ir.Identifier) Unifier {
	u := Unifier{
		forward:      make(map[ir.Identifier][]ir.Identifier, len(pairs)),
		inverse:      make(map[ir.Identifier][]ir.Identifier),
		requirements: make(map[ir.Identifier]Requirement),
	}
	for p, cs := range pairs {
		for _, c := range cs {
			u.add(p, c)
		}
	}
	return u
}

func (u *Unifier) add(parent, child ir.Identifier) {
	if !slices.Contains(u.forward[parent], child) {
		u.forward[parent] = append(u.forward[parent], child)
	}
	if !slices.Contains(u.inverse[child], parent) {
		u.inverse[child] = append(u.inverse[child], parent)
	}
}

func (u *Unifier) require(child ir.Identifier, r Requirement) bool {
	merged, ok := u.requirements[child].merge(r)
	if !ok {
		return false
	}
	u.requirements[child] = merged
	return true
}

func (u Unifier) clone() Unifier {
	cp := Unifier{
		forward:      make(map[ir.Identifier][]ir.Identifier, len(u.forward)),
		inverse:      make(map[ir.Identifier][]ir.Identifier, len(u.inverse)),
		requirements: make(map[ir.Identifier]Requirement, len(u.requirements)),
	}
	for k, v := range u.forward {
		cp.forward[k] = slices.Clone(v)
	}
	for k, v := range u.inverse {
		cp.inverse[k] = slices.Clone(v)
	}
	for k, v := range u.requirements {
		cp.requirements[k] = v
	}
	return cp
}

// Domain returns the parent identifiers in key order.
func (u Unifier) Domain() []ir.Identifier {
	return sortedIDs(u.forward)
}

// Codomain returns the child identifiers in key order.
func (u Unifier) Codomain() []ir.Identifier {
	return sortedIDs(u.inverse)
}

// ChildrenOf returns the child identifiers a parent identifier maps to.
func (u Unifier) ChildrenOf(parent ir.Identifier) []ir.Identifier {
	return slices.Clone(u.forward[parent])
}

// ParentsOf returns the parent identifiers mapped onto a child identifier.
func (u Unifier) ParentsOf(child ir.Identifier) []ir.Identifier {
	return slices.Clone(u.inverse[child])
}

// Requirements returns the constraints checked by UnTransform.
func (u Unifier) Requirements() map[ir.Identifier]Requirement {
	cp := make(map[ir.Identifier]Requirement, len(u.requirements))
	for k, v := range u.requirements {
		cp[k] = v
	}
	return cp
}

// Transform renames a parent-frame map into the child frame. Identifiers
// outside the domain are dropped. It returns false when two parent
// identifiers mapped to one child identifier are bound to different
// concepts.
func (u Unifier) Transform(m ir.ConceptMap) (ir.ConceptMap, bool) {
	out := make(map[ir.Identifier]ir.Concept)
	for _, p := range m.Identifiers() {
		c, _ := m.Get(p)
		for _, child := range u.forward[p] {
			if existing, ok := out[child]; ok && !existing.Equal(c) {
				return ir.ConceptMap{}, false
			}
			out[child] = c
		}
	}
	return ir.NewConceptMap(out).WithExplainables(m.Explainables()...), true
}

// UnTransform renames a child-frame map back into the parent frame.
//
// Every identifier in m must be in the co-domain, otherwise a
// DomainMismatchError is returned. It returns false without error when a
// requirement fails or when a parent identifier would receive two
// different concepts.
func (u Unifier) UnTransform(m ir.ConceptMap) (ir.ConceptMap, bool, error) {
	var unknown []ir.Identifier
	for _, id := range m.Identifiers() {
		if _, ok := u.inverse[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return ir.ConceptMap{}, false, &DomainMismatchError{Unknown: unknown}
	}

	out := make(map[ir.Identifier]ir.Concept)
	for _, child := range m.Identifiers() {
		c, _ := m.Get(child)
		if req, ok := u.requirements[child]; ok && !req.satisfiedBy(c) {
			return ir.ConceptMap{}, false, nil
		}
		for _, p := range u.inverse[child] {
			if existing, ok := out[p]; ok && !existing.Equal(c) {
				return ir.ConceptMap{}, false, nil
			}
			out[p] = c
		}
	}
	return ir.NewConceptMap(out).WithExplainables(m.Explainables()...), true, nil
}

// RestrictToCodomain drops identifiers of m that the unifier cannot map
// back.
func (u Unifier) RestrictToCodomain(m ir.ConceptMap) ir.ConceptMap {
	return m.Filter(u.Codomain())
}

func (u Unifier) String() string {
	parts := make([]string, 0, len(u.forward))
	for _, p := range u.Domain() {
		children := slices.Clone(u.forward[p])
		slices.SortFunc(children, ir.CompareIdentifiers)
		names := make([]string, len(children))
		for i, c := range children {
			names[i] = c.String()
		}
		parts = append(parts, p.String()+"->"+strings.Join(names, ","))
	}
	return "{" + strings.Join(parts, "; ") + "}"
}

// MultiUnifier is the set of alternative unifiers between two queries.
// An empty MultiUnifier means the queries do not unify.
type MultiUnifier struct {
	unifiers []Unifier
}

// NewMulti wraps unifiers.
func NewMulti(us ...Unifier) MultiUnifier {
	return MultiUnifier{unifiers: us}
}

// Len returns the number of alternatives.
func (mu MultiUnifier) Len() int { return len(mu.unifiers) }

// IsEmpty reports whether no unifier exists.
func (mu MultiUnifier) IsEmpty() bool { return len(mu.unifiers) == 0 }

// Get returns the i-th alternative.
func (mu MultiUnifier) Get(i int) Unifier { return mu.unifiers[i] }

// All yields the alternatives in order.
func (mu MultiUnifier) All() iter.Seq[Unifier] {
	return func(yield func(Unifier) bool) {
		for _, u := range mu.unifiers {
			if !yield(u) {
				return
			}
		}
	}
}

func sortedIDs(m map[ir.Identifier][]ir.Identifier) []ir.Identifier {
	ids := make([]ir.Identifier, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, ir.CompareIdentifiers)
	return ids
}
