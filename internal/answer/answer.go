package answer

import (
	"fmt"
	"slices"
	"strings"

	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/pattern"
	"github.com/typedb/typedb-sub067/internal/unify"
)

// Source records where an answer came from.
type Source string

const (
	SourceLookup Source = "lookup"
	SourceRule   Source = "rule"
)

// Answer is one row returned by resolution.
type Answer struct {
	Map ir.ConceptMap

	// Explanations holds one explanation per resolved conjunct, in the
	// order the conjuncts were resolved. Stored facts carry a lookup
	// explanation. Explain reconstructs the full tree of inferred ones.
	Explanations []Explanation
}

// Inferred reports whether any part of the answer was derived by a rule.
func (a Answer) Inferred() bool {
	for _, e := range a.Explanations {
		if !e.IsLookup() {
			return true
		}
	}
	return len(a.Map.Explainables()) > 0
}

// Rules returns the rules that derived the answer's conjuncts, in
// conjunct order and without repeats.
func (a Answer) Rules() []string {
	var out []string
	for _, e := range a.Explanations {
		if !e.IsLookup() && !slices.Contains(out, e.Rule) {
			out = append(out, e.Rule)
		}
	}
	return out
}

// PartialExplanation is what a rule application knows before its answer
// is mapped back into the querying frame.
type PartialExplanation struct {
	Rule       string
	Conclusion ir.ConceptMap // head variables, in the rule frame
	Condition  ir.ConceptMap // body answer, in the rule frame
}

// Explanation records how one conjunct of an answer was obtained. A rule
// explanation names the rule, the concepts its conclusion produced, the
// body answer it fired on, and how the query's variables map onto the
// conclusion's. A lookup explanation only carries the stored fact.
type Explanation struct {
	ID         string              `json:"id"`
	Source     Source              `json:"source,omitempty"`
	Rule       string              `json:"rule"`
	Conclusion ir.ConceptMap       `json:"conclusion"`
	Condition  ir.ConceptMap       `json:"condition"`
	Mapping    map[string][]string `json:"mapping"`
}

// NewExplanation completes a partial explanation with the unifier that
// connected the querying atom to the rule conclusion.
func NewExplanation(p PartialExplanation, u unify.Unifier) (Explanation, error) {
	id, err := ir.ExplanationID(p.Rule, p.Conclusion, p.Condition)
	if err != nil {
		return Explanation{}, fmt.Errorf("explanation for rule %s: %w", p.Rule, err)
	}
	mapping := make(map[string][]string)
	for _, parent := range u.Domain() {
		children := u.ChildrenOf(parent)
		names := make([]string, len(children))
		for i, c := range children {
			names[i] = c.String()
		}
		slices.Sort(names)
		mapping[parent.String()] = names
	}
	return Explanation{
		ID:         id,
		Source:     SourceRule,
		Rule:       p.Rule,
		Conclusion: p.Conclusion,
		Condition:  p.Condition,
		Mapping:    mapping,
	}, nil
}

// LookupExplanation marks m as read from the stored graph.
func LookupExplanation(m ir.ConceptMap) Explanation {
	return Explanation{Source: SourceLookup, Conclusion: m}
}

// IsLookup reports whether e explains a stored fact.
func (e Explanation) IsLookup() bool {
	return e.Source == SourceLookup
}

func (e Explanation) String() string {
	if e.IsLookup() {
		return fmt.Sprintf("lookup: %s", e.Conclusion)
	}
	return fmt.Sprintf("rule %s: %s => %s", e.Rule, e.Condition, e.Conclusion)
}

// FactKey computes the explainable key of an inferred atom bound by m.
// Ownerships are keyed by owner and attribute, relations by their own
// instance. It returns false when the atom is not concludable or its
// variables are unbound.
func FactKey(a pattern.Atom, m ir.ConceptMap) (string, bool) {
	switch at := a.(type) {
	case pattern.Has:
		owner, ok1 := m.Get(at.Owner)
		attr, ok2 := m.Get(at.Attribute)
		if !ok1 || !ok2 {
			return "", false
		}
		return ir.FactKey("has", owner.IID, attr.IID), true
	case pattern.Relation:
		rel, ok := m.Get(at.Var)
		if !ok {
			return "", false
		}
		return ir.FactKey("relation", rel.IID), true
	case pattern.Isa:
		c, ok := m.Get(at.Var)
		if !ok {
			return "", false
		}
		if c.Kind == ir.KindRelation {
			return ir.FactKey("relation", c.IID), true
		}
		return "", false
	default:
		return "", false
	}
}

// Explainable marks an inferred atom on an answer.
func Explainable(a pattern.Atom, m ir.ConceptMap) (ir.Explainable, bool) {
	key, ok := FactKey(a, m)
	if !ok {
		return ir.Explainable{}, false
	}
	return ir.Explainable{Key: key, Atom: describe(a, m)}, true
}

// describe renders an atom with its variables replaced by concepts.
func describe(a pattern.Atom, m ir.ConceptMap) string {
	text := a.String()
	ids := a.Vars()
	// Longest names first so $x does not clobber $xy.
	slices.SortFunc(ids, func(p, q ir.Identifier) int { return len(q.String()) - len(p.String()) })
	for _, id := range ids {
		if c, ok := m.Get(id); ok {
			text = strings.ReplaceAll(text, id.String(), c.String())
		}
	}
	return text
}
