package ir

import (
	"slices"
	"strings"
)

// Explainable marks a set of bindings in a ConceptMap whose provenance can
// be looked up. Key addresses the explanations recorded for the inferred
// atom; Atom is the atom's text in the frame of the answer that carries it.
type Explainable struct {
	Key  string `json:"key"`
	Atom string `json:"atom"`
}

// ConceptMap is an immutable mapping from Identifier to Concept.
//
// A ConceptMap is never mutated after construction: With, Merge and Filter
// all return new maps. The zero value is a valid empty map.
type ConceptMap struct {
	bindings     map[Identifier]Concept
	explainables []Explainable // sorted by Key, no duplicates
}

// NewConceptMap copies bindings into a new ConceptMap.
func NewConceptMap(bindings map[Identifier]Concept) ConceptMap {
	cp := make(map[Identifier]Concept, len(bindings))
	for id, c := range bindings {
		cp[id] = c
	}
	return ConceptMap{bindings: cp}
}

// Get returns the concept bound to id.
func (m ConceptMap) Get(id Identifier) (Concept, bool) {
	c, ok := m.bindings[id]
	return c, ok
}

// Contains reports whether id is bound.
func (m ConceptMap) Contains(id Identifier) bool {
	_, ok := m.bindings[id]
	return ok
}

// Len returns the number of bindings.
func (m ConceptMap) Len() int {
	return len(m.bindings)
}

// IsEmpty reports whether the map has no bindings.
func (m ConceptMap) IsEmpty() bool {
	return len(m.bindings) == 0
}

// Identifiers returns the bound identifiers in key order.
func (m ConceptMap) Identifiers() []Identifier {
	ids := make([]Identifier, 0, len(m.bindings))
	for id := range m.bindings {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, CompareIdentifiers)
	return ids
}

// Bindings returns a copy of the underlying bindings.
func (m ConceptMap) Bindings() map[Identifier]Concept {
	cp := make(map[Identifier]Concept, len(m.bindings))
	for id, c := range m.bindings {
		cp[id] = c
	}
	return cp
}

// Explainables returns the explainable markers attached to the map.
func (m ConceptMap) Explainables() []Explainable {
	return slices.Clone(m.explainables)
}

// With returns a copy of m with id bound to c.
func (m ConceptMap) With(id Identifier, c Concept) ConceptMap {
	cp := m.Bindings()
	cp[id] = c
	return ConceptMap{bindings: cp, explainables: m.explainables}
}

// WithExplainables returns a copy of m carrying the additional markers.
func (m ConceptMap) WithExplainables(extra ...Explainable) ConceptMap {
	return ConceptMap{
		bindings:     m.bindings,
		explainables: unionExplainables(m.explainables, extra),
	}
}

// Merge combines two maps. It returns false when an identifier is bound to
// different concepts in m and other.
func (m ConceptMap) Merge(other ConceptMap) (ConceptMap, bool) {
	cp := m.Bindings()
	for id, c := range other.bindings {
		if existing, ok := cp[id]; ok {
			if !existing.Equal(c) {
				return ConceptMap{}, false
			}
			continue
		}
		cp[id] = c
	}
	return ConceptMap{
		bindings:     cp,
		explainables: unionExplainables(m.explainables, other.explainables),
	}, true
}

// Filter keeps only the given identifiers. Explainable markers are kept.
func (m ConceptMap) Filter(ids []Identifier) ConceptMap {
	cp := make(map[Identifier]Concept, len(ids))
	for _, id := range ids {
		if c, ok := m.bindings[id]; ok {
			cp[id] = c
		}
	}
	return ConceptMap{bindings: cp, explainables: m.explainables}
}

// Retrievable drops anonymous identifiers.
func (m ConceptMap) Retrievable() ConceptMap {
	cp := make(map[Identifier]Concept, len(m.bindings))
	for id, c := range m.bindings {
		if id.Retrievable() {
			cp[id] = c
		}
	}
	return ConceptMap{bindings: cp, explainables: m.explainables}
}

// Equal compares bindings by concept identity. Explainable markers are
// provenance, not content, and are ignored.
func (m ConceptMap) Equal(other ConceptMap) bool {
	if len(m.bindings) != len(other.bindings) {
		return false
	}
	for id, c := range m.bindings {
		oc, ok := other.bindings[id]
		if !ok || !c.Equal(oc) {
			return false
		}
	}
	return true
}

// Hash returns the content hash of the bindings.
// Maps that are Equal have the same hash.
func (m ConceptMap) Hash() string {
	return MustConceptMapHash(m)
}

// Canonical returns the map in the form used for hashing and golden output.
func (m ConceptMap) Canonical() map[string]any {
	obj := make(map[string]any, len(m.bindings))
	for id, c := range m.bindings {
		obj[id.Key()] = c.canonical()
	}
	return obj
}

// String renders the map as {$x=person[p1]; $y=...}.
func (m ConceptMap) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, id := range m.Identifiers() {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(id.String())
		sb.WriteByte('=')
		sb.WriteString(m.bindings[id].String())
	}
	sb.WriteByte('}')
	return sb.String()
}

func unionExplainables(a, b []Explainable) []Explainable {
	if len(b) == 0 {
		return a
	}
	if len(a) == 0 {
		out := slices.Clone(b)
		slices.SortFunc(out, compareExplainables)
		return slices.CompactFunc(out, func(x, y Explainable) bool { return x.Key == y.Key })
	}
	out := make([]Explainable, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.SortFunc(out, compareExplainables)
	return slices.CompactFunc(out, func(x, y Explainable) bool { return x.Key == y.Key })
}

func compareExplainables(a, b Explainable) int {
	return strings.Compare(a.Key, b.Key)
}
