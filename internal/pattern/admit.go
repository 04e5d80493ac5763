package pattern

import (
	"github.com/typedb/typedb-sub067/internal/ir"
)

// TypeChecker answers subtype questions against the schema.
type TypeChecker interface {
	// IsSubtype reports whether sub is sup or a transitive subtype of it.
	IsSubtype(sub, sup string) bool
}

// Admits reports whether the concepts already bound in sub could satisfy
// the query's constraints. It checks only bound variables and never
// touches storage, so a false result prunes a branch before any child
// state is created. Unbound variables always pass.
func Admits(q Query, sub ir.ConceptMap, types TypeChecker) bool {
	return AdmitsAll(q.Conjunction().Atoms, sub, types)
}

// AdmitsAll is Admits over a plain list of atoms.
func AdmitsAll(atoms []Atom, sub ir.ConceptMap, types TypeChecker) bool {
	for _, a := range atoms {
		if !admitsAtom(a, sub, types) {
			return false
		}
	}
	return true
}

func admitsAtom(a Atom, sub ir.ConceptMap, types TypeChecker) bool {
	switch a := a.(type) {
	case Isa:
		c, ok := sub.Get(a.Var)
		if !ok {
			return true
		}
		if a.Exact {
			return c.Type == a.Type
		}
		return types.IsSubtype(c.Type, a.Type)
	case IID:
		c, ok := sub.Get(a.Var)
		return !ok || c.IID == a.IID
	case Has:
		c, ok := sub.Get(a.Attribute)
		if !ok {
			return true
		}
		if c.Kind != ir.KindAttribute || !types.IsSubtype(c.Type, a.Type) {
			return false
		}
		return a.Value == nil || ir.ValueEqual(c.Value, a.Value)
	case Relation:
		c, ok := sub.Get(a.Var)
		if !ok {
			return true
		}
		return c.Kind == ir.KindRelation && types.IsSubtype(c.Type, a.Type)
	case ValuePredicate:
		c, ok := sub.Get(a.Var)
		return !ok || a.Holds(c)
	case Neq:
		l, lok := sub.Get(a.Left)
		r, rok := sub.Get(a.Right)
		return !lok || !rok || !l.Equal(r)
	default:
		return true
	}
}
