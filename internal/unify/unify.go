package unify

import (
	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/pattern"
)

// Kind selects the equivalence used to match atoms.
type Kind int

const (
	// Exact requires identical types, values and IID constants.
	Exact Kind = iota

	// Structural is Exact with IID constants free to differ.
	Structural

	// Rule matches a query atom against a rule conclusion. Type
	// compatibility is settled by the rule index, so labels are not
	// compared. Parent IID, value and value predicate constraints become
	// requirements on the conclusion's variables, and an empty parent role
	// matches any role. A conclusion whose fixed value fails a parent
	// predicate does not unify.
	Rule
)

func (k Kind) String() string {
	switch k {
	case Exact:
		return "exact"
	case Structural:
		return "structural"
	case Rule:
		return "rule"
	default:
		return "unknown"
	}
}

// Unify computes every unifier from parent to child. It never fails: when
// the queries do not correspond the result is empty.
//
// Under Rule, child is a rule conclusion and only its main atom is
// matched.
func Unify(parent, child pattern.Query, kind Kind) MultiUnifier {
	var out []Unifier
	for _, u := range unifyMain(parent.Main, child.Main, kind) {
		var ok bool
		if kind == Rule {
			u, ok = ruleRequirements(u, parent, child)
		} else {
			u, ok = matchConstraints(u, parent, child, kind)
		}
		if ok {
			out = append(out, u)
		}
	}
	return NewMulti(out...)
}

func unifyMain(p, c pattern.Atom, kind Kind) []Unifier {
	switch pa := p.(type) {
	case pattern.Isa:
		return unifyIsa(pa, c, kind)
	case pattern.Has:
		ca, ok := c.(pattern.Has)
		if !ok {
			return nil
		}
		return unifyHas(pa, ca, kind)
	case pattern.Relation:
		ca, ok := c.(pattern.Relation)
		if !ok {
			return nil
		}
		return unifyRelation(pa, ca, kind)
	case pattern.IID:
		ca, ok := c.(pattern.IID)
		if !ok || kind == Rule || (kind == Exact && pa.IID != ca.IID) {
			return nil
		}
		return []Unifier{New(map[ir.Identifier][]ir.Identifier{pa.Var: {ca.Var}})}
	default:
		return nil
	}
}

func unifyIsa(p pattern.Isa, c pattern.Atom, kind Kind) []Unifier {
	if kind != Rule {
		ca, ok := c.(pattern.Isa)
		if !ok || ca.Type != p.Type || ca.Exact != p.Exact {
			return nil
		}
		return []Unifier{New(map[ir.Identifier][]ir.Identifier{p.Var: {ca.Var}})}
	}
	// An isa query is answered by conclusions that create instances: the
	// relation of a relation conclusion, or the attribute of an ownership.
	switch ca := c.(type) {
	case pattern.Relation:
		return []Unifier{New(map[ir.Identifier][]ir.Identifier{p.Var: {ca.Var}})}
	case pattern.Has:
		u := New(map[ir.Identifier][]ir.Identifier{p.Var: {ca.Attribute}})
		return []Unifier{u}
	default:
		return nil
	}
}

func unifyHas(p, c pattern.Has, kind Kind) []Unifier {
	if kind != Rule && p.Type != c.Type {
		return nil
	}
	u := New(map[ir.Identifier][]ir.Identifier{
		p.Owner:     {c.Owner},
		p.Attribute: {c.Attribute},
	})
	switch {
	case p.Value == nil && c.Value == nil:
	case p.Value != nil && c.Value != nil:
		if !ir.ValueEqual(p.Value, c.Value) {
			return nil
		}
	case p.Value != nil:
		if kind != Rule || !u.require(c.Attribute, Requirement{Value: p.Value}) {
			return nil
		}
	default:
		// The child fixes a value the parent leaves open. Only a rule
		// conclusion may be more specific than the query it answers.
		if kind != Rule {
			return nil
		}
	}
	return []Unifier{u}
}

func unifyRelation(p, c pattern.Relation, kind Kind) []Unifier {
	if kind != Rule {
		if p.Type != c.Type || len(p.Players) != len(c.Players) {
			return nil
		}
	} else if len(p.Players) > len(c.Players) {
		return nil
	}

	base := New(map[ir.Identifier][]ir.Identifier{p.Var: {c.Var}})
	var out []Unifier
	used := make([]bool, len(c.Players))
	var assign func(i int, u Unifier)
	assign = func(i int, u Unifier) {
		if i == len(p.Players) {
			out = append(out, u)
			return
		}
		pp := p.Players[i]
		for j, cp := range c.Players {
			if used[j] || !rolesMatch(pp.Role, cp.Role, kind) {
				continue
			}
			used[j] = true
			next := u.clone()
			next.add(pp.Player, cp.Player)
			assign(i+1, next)
			used[j] = false
		}
	}
	assign(0, base)
	return dedupe(out)
}

func rolesMatch(parent, child string, kind Kind) bool {
	if kind == Rule && parent == "" {
		return true
	}
	return parent == child
}

// matchConstraints pairs each parent isa, iid and inequality constraint
// with a child constraint on the mapped variables.
func matchConstraints(u Unifier, parent, child pattern.Query, kind Kind) (Unifier, bool) {
	if len(parent.Constraints) != len(child.Constraints) || len(parent.Neqs) != len(child.Neqs) {
		return u, false
	}
	used := make([]bool, len(child.Constraints))
	for _, pc := range parent.Constraints {
		found := false
		for j, cc := range child.Constraints {
			if used[j] || !constraintMatches(u, pc, cc, kind) {
				continue
			}
			used[j] = true
			found = true
			break
		}
		if !found {
			return u, false
		}
	}
	for _, pn := range parent.Neqs {
		found := false
		for _, cn := range child.Neqs {
			if mapsTo(u, pn.Left, cn.Left) && mapsTo(u, pn.Right, cn.Right) ||
				mapsTo(u, pn.Left, cn.Right) && mapsTo(u, pn.Right, cn.Left) {
				found = true
				break
			}
		}
		if !found {
			return u, false
		}
	}
	return u, true
}

func constraintMatches(u Unifier, p, c pattern.Atom, kind Kind) bool {
	switch pa := p.(type) {
	case pattern.Isa:
		ca, ok := c.(pattern.Isa)
		return ok && ca.Type == pa.Type && ca.Exact == pa.Exact && mapsTo(u, pa.Var, ca.Var)
	case pattern.IID:
		ca, ok := c.(pattern.IID)
		return ok && (kind == Structural || ca.IID == pa.IID) && mapsTo(u, pa.Var, ca.Var)
	case pattern.ValuePredicate:
		ca, ok := c.(pattern.ValuePredicate)
		return ok && ca.Op == pa.Op && ir.ValueEqual(ca.Value, pa.Value) && mapsTo(u, pa.Var, ca.Var)
	default:
		return false
	}
}

func mapsTo(u Unifier, parent, child ir.Identifier) bool {
	for _, c := range u.forward[parent] {
		if c == child {
			return true
		}
	}
	return false
}

// ruleRequirements turns the parent's IID constraints and value
// predicates into requirements on the conclusion variables they map to.
// Type constraints are checked on the unified answer by the caller.
func ruleRequirements(u Unifier, parent, child pattern.Query) (Unifier, bool) {
	fixed := make(map[ir.Identifier]ir.Value)
	if h, ok := child.Main.(pattern.Has); ok && h.Value != nil {
		fixed[h.Attribute] = h.Value
	}
	for _, a := range parent.Constraints {
		var req Requirement
		switch c := a.(type) {
		case pattern.IID:
			req = Requirement{IID: c.IID}
		case pattern.ValuePredicate:
			req = Requirement{Comparisons: []Comparison{{Op: c.Op, Value: c.Value}}}
		default:
			continue
		}
		for _, v := range u.forward[a.Vars()[0]] {
			if len(req.Comparisons) > 0 {
				if val, ok := fixed[v]; ok && !req.Comparisons[0].Accepts(val) {
					return u, false
				}
			}
			if !u.require(v, req) {
				return u, false
			}
		}
	}
	return u, true
}

func dedupe(us []Unifier) []Unifier {
	seen := make(map[string]bool, len(us))
	out := us[:0]
	for _, u := range us {
		key := u.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, u)
	}
	return out
}
