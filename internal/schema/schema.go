package schema

import (
	"fmt"
	"maps"
	"slices"

	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/pattern"
)

// Rule is a when/then inference rule. Then is a Has or a Relation atom.
type Rule struct {
	Label string
	When  pattern.Conjunction
	Then  pattern.Atom
}

// Head returns the conclusion as a single-atom query.
func (r Rule) Head() pattern.Query {
	return pattern.NewQuery(r.Then)
}

func (r Rule) String() string {
	return fmt.Sprintf("rule %s: when { %s } then { %s; };", r.Label, r.When, r.Then)
}

// Schema is an immutable, validated set of types and rules. It is safe
// for concurrent use.
type Schema struct {
	h     *hierarchy
	rules []Rule
	index map[string]int
}

// New validates types and rules and builds a schema. Root types are
// implicit and need not be listed.
func New(types []Type, rules []Rule) (*Schema, error) {
	h, err := newHierarchy(types)
	if err != nil {
		return nil, err
	}
	s := &Schema{h: h, index: make(map[string]int, len(rules))}
	for _, r := range rules {
		if _, dup := s.index[r.Label]; dup {
			return nil, &Error{Rule: r.Label, Message: "rule defined twice"}
		}
		norm, err := s.validateRule(r)
		if err != nil {
			return nil, err
		}
		s.index[r.Label] = len(s.rules)
		s.rules = append(s.rules, norm)
	}
	if err := s.checkStratification(); err != nil {
		return nil, err
	}
	return s, nil
}

// TypeLookup resolves a type label.
func (s *Schema) TypeLookup(label string) (Type, bool) {
	t, ok := s.h.types[label]
	return t, ok
}

// Types returns every type, roots included, sorted by label.
func (s *Schema) Types() []Type {
	out := make([]Type, 0, len(s.h.types))
	for _, label := range s.h.labels() {
		out = append(out, s.h.types[label])
	}
	return out
}

// Subtypes returns label and all its transitive subtypes, sorted.
func (s *Schema) Subtypes(label string) []string {
	return slices.Clone(s.h.subtypes[label])
}

// ConcreteSubtypes returns the non-abstract members of Subtypes.
func (s *Schema) ConcreteSubtypes(label string) []string {
	var out []string
	for _, t := range s.h.subtypes[label] {
		if !s.h.types[t].Abstract {
			out = append(out, t)
		}
	}
	return out
}

// IsSubtype reports whether sub is sup or descends from it.
func (s *Schema) IsSubtype(sub, sup string) bool {
	for cur := sub; cur != ""; {
		if cur == sup {
			return true
		}
		t, ok := s.h.types[cur]
		if !ok {
			return false
		}
		cur = t.Super
	}
	return false
}

// Rules returns the rules in definition order.
func (s *Schema) Rules() []Rule {
	return slices.Clone(s.rules)
}

// Rule looks up a rule by label.
func (s *Schema) Rule(label string) (Rule, bool) {
	i, ok := s.index[label]
	if !ok {
		return Rule{}, false
	}
	return s.rules[i], true
}

// RulesMatchingConclusion returns the rules whose conclusion could produce
// answers for the atom: ownership heads for ownerships, relation heads for
// relations, and any instance-creating head for an isa atom. The head type
// must be the atom's type or one of its subtypes.
func (s *Schema) RulesMatchingConclusion(a pattern.Atom) []Rule {
	var out []Rule
	for _, r := range s.rules {
		if s.concludes(r.Then, a) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Schema) concludes(head, a pattern.Atom) bool {
	switch at := a.(type) {
	case pattern.Has:
		h, ok := head.(pattern.Has)
		if !ok || !s.IsSubtype(h.Type, at.Type) {
			return false
		}
		return at.Value == nil || h.Value == nil || ir.ValueEqual(at.Value, h.Value)
	case pattern.Relation:
		h, ok := head.(pattern.Relation)
		return ok && s.IsSubtype(h.Type, at.Type)
	case pattern.Isa:
		var created string
		switch h := head.(type) {
		case pattern.Has:
			created = h.Type
		case pattern.Relation:
			created = h.Type
		}
		if created == "" {
			return false
		}
		if at.Exact {
			return created == at.Type
		}
		return s.IsSubtype(created, at.Type)
	default:
		return false
	}
}

// validateRule checks a rule against the types and returns it with its
// body normalised.
func (s *Schema) validateRule(r Rule) (Rule, error) {
	fail := func(format string, args ...any) (Rule, error) {
		return Rule{}, &Error{Rule: r.Label, Message: fmt.Sprintf(format, args...)}
	}
	if r.Label == "" {
		return Rule{}, &Error{Message: "rule with empty label"}
	}
	when, err := pattern.Normalize(r.When)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %s: %w", r.Label, err)
	}
	if len(when.Vars()) == 0 {
		return fail("when block has no positive atoms")
	}
	if err := pattern.CheckNegations(when); err != nil {
		return Rule{}, fmt.Errorf("rule %s: %w", r.Label, err)
	}
	if err := s.checkTypes(when); err != nil {
		return fail("%v", err)
	}

	bound := when.Vars()
	switch h := r.Then.(type) {
	case pattern.Has:
		t, ok := s.TypeLookup(h.Type)
		if !ok || t.Kind != ir.KindAttribute {
			return fail("then concludes ownership of unknown attribute type %q", h.Type)
		}
		if !slices.Contains(bound, h.Owner) {
			return fail("then variable %s is not bound by when", h.Owner)
		}
		if h.Value == nil && !slices.Contains(bound, h.Attribute) {
			return fail("then attribute %s is neither a value nor bound by when", h.Attribute)
		}
		if h.Value != nil && h.Value.ValueType() != t.ValueType {
			return fail("value %s does not match value type %s of %s", ir.FormatValue(h.Value), t.ValueType, h.Type)
		}
	case pattern.Relation:
		t, ok := s.TypeLookup(h.Type)
		if !ok || t.Kind != ir.KindRelation {
			return fail("then concludes unknown relation type %q", h.Type)
		}
		if h.Var.Retrievable() && slices.Contains(bound, h.Var) {
			return fail("then relation variable %s must not be bound by when", h.Var)
		}
		if len(h.Players) == 0 {
			return fail("then relation has no role players")
		}
		for _, rp := range h.Players {
			if rp.Role == "" || !s.h.relatesRole(h.Type, rp.Role) {
				return fail("relation %s does not relate role %q", h.Type, rp.Role)
			}
			if !slices.Contains(bound, rp.Player) {
				return fail("then variable %s is not bound by when", rp.Player)
			}
		}
	default:
		return fail("then must be a single ownership or relation, got %T", r.Then)
	}
	return Rule{Label: r.Label, When: when, Then: r.Then}, nil
}

// checkTypes verifies that every type label in the conjunction exists
// and fits its position, and that value predicates compare attributes of a
// matching value type.
func (s *Schema) checkTypes(c pattern.Conjunction) error {
	return s.checkConjunction(c, nil)
}

func (s *Schema) checkConjunction(c pattern.Conjunction, outer map[ir.Identifier]Type) error {
	attrs := maps.Clone(outer)
	if attrs == nil {
		attrs = make(map[ir.Identifier]Type)
	}
	for _, a := range c.Atoms {
		switch at := a.(type) {
		case pattern.Isa:
			t, ok := s.TypeLookup(at.Type)
			if !ok {
				return fmt.Errorf("unknown type %q", at.Type)
			}
			if t.Kind == ir.KindAttribute {
				attrs[at.Var] = t
			}
		case pattern.Has:
			t, ok := s.TypeLookup(at.Type)
			if !ok || t.Kind != ir.KindAttribute {
				return fmt.Errorf("unknown attribute type %q", at.Type)
			}
			attrs[at.Attribute] = t
		case pattern.Relation:
			if t, ok := s.TypeLookup(at.Type); !ok || t.Kind != ir.KindRelation {
				return fmt.Errorf("unknown relation type %q", at.Type)
			}
		}
	}
	for _, a := range c.Atoms {
		p, ok := a.(pattern.ValuePredicate)
		if !ok {
			continue
		}
		t, ok := attrs[p.Var]
		if !ok {
			return fmt.Errorf("%s compares %s, which is not an attribute", p, p.Var)
		}
		if p.Value.ValueType() != t.ValueType {
			return fmt.Errorf("%s compares %s values of %s with a %s", p, t.ValueType, t.Label, p.Value.ValueType())
		}
		if !p.Op.Applies(t.ValueType) {
			return fmt.Errorf("%s: operator %s does not apply to %s values", p, p.Op, t.ValueType)
		}
	}
	for _, neg := range c.Negations {
		if err := s.checkConjunction(neg, attrs); err != nil {
			return err
		}
	}
	return nil
}

// CheckQuery validates the types used by a query conjunction.
func (s *Schema) CheckQuery(c pattern.Conjunction) error {
	if err := s.checkTypes(c); err != nil {
		return &Error{Message: err.Error()}
	}
	return nil
}
