package unify

import (
	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/pattern"
)

// Mapping is a bijective rename between two identifier frames.
type Mapping struct {
	to   map[ir.Identifier]ir.Identifier
	from map[ir.Identifier]ir.Identifier
}

// Of builds a mapping from source -> target pairs. Two sources mapped to
// one target break the bijection and yield a MappingError.
func Of(pairs map[ir.Identifier]ir.Identifier) (Mapping, error) {
	m := Mapping{
		to:   make(map[ir.Identifier]ir.Identifier, len(pairs)),
		from: make(map[ir.Identifier]ir.Identifier, len(pairs)),
	}
	for src, dst := range pairs {
		if prev, ok := m.from[dst]; ok && prev != src {
			return Mapping{}, &MappingError{From: src, To: dst}
		}
		m.to[src] = dst
		m.from[dst] = src
	}
	return m, nil
}

// Between maps the variables of one canonical form onto another with the
// same key, position by position.
func Between(src, dst pattern.Canonical) (Mapping, error) {
	pairs := make(map[ir.Identifier]ir.Identifier, len(src.Vars))
	for i, id := range src.Vars {
		if i < len(dst.Vars) {
			pairs[id] = dst.Vars[i]
		}
	}
	return Of(pairs)
}

// Len returns the number of pairs.
func (m Mapping) Len() int { return len(m.to) }

// Transform renames source identifiers to targets, dropping the rest.
func (m Mapping) Transform(cm ir.ConceptMap) ir.ConceptMap {
	return rename(cm, m.to)
}

// UnTransform renames target identifiers back to sources, dropping the rest.
func (m Mapping) UnTransform(cm ir.ConceptMap) ir.ConceptMap {
	return rename(cm, m.from)
}

// Inverse swaps source and target.
func (m Mapping) Inverse() Mapping {
	return Mapping{to: m.from, from: m.to}
}

// AsUnifier returns the mapping as a unifier with no requirements.
func (m Mapping) AsUnifier() Unifier {
	pairs := make(map[ir.Identifier][]ir.Identifier, len(m.to))
	for src, dst := range m.to {
		pairs[src] = []ir.Identifier{dst}
	}
	return New(pairs)
}

func rename(cm ir.ConceptMap, names map[ir.Identifier]ir.Identifier) ir.ConceptMap {
	out := make(map[ir.Identifier]ir.Concept, cm.Len())
	for _, id := range cm.Identifiers() {
		if to, ok := names[id]; ok {
			c, _ := cm.Get(id)
			out[to] = c
		}
	}
	return ir.NewConceptMap(out).WithExplainables(cm.Explainables()...)
}
