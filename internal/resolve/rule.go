package resolve

import (
	"fmt"

	"github.com/typedb/typedb-sub067/internal/answer"
	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/pattern"
	"github.com/typedb/typedb-sub067/internal/schema"
	"github.com/typedb/typedb-sub067/internal/unify"
)

// ruleState applies one rule under one binding of its conclusion. It
// resolves the rule body and turns every body answer into the concepts
// the conclusion asserts.
type ruleState struct {
	parentID stateID
	rule     schema.Rule
	unifier  unify.Unifier // querying atom -> conclusion
	sub      ir.ConceptMap // conclusion variables bound by the query
	key      string        // rule binding hash
	started  bool
	done     bool
}

func newRuleState(parent stateID, rule schema.Rule, u unify.Unifier, sub ir.ConceptMap, key string) *ruleState {
	return &ruleState{
		parentID: parent,
		rule:     rule,
		unifier:  u,
		sub:      sub,
		key:      key,
	}
}

func (r *ruleState) parent() stateID { return r.parentID }
func (r *ruleState) isAnswerState() bool { return false }

func (r *ruleState) generateSubGoal(d *driver, self stateID) (stateID, bool, error) {
	switch {
	case !r.started:
		r.started = true
		body, err := d.s.body(r.rule)
		if err != nil {
			return noParent, false, err
		}
		d.visited.enter(r.key)
		return d.add(newConjunctive(self, body, r.rule.When.Negations, r.sub)), true, nil
	case !r.done:
		r.done = true
		d.visited.leave(r.key)
	}
	return noParent, false, nil
}

func (r *ruleState) propagateAnswer(d *driver, _ stateID, a *answerState) (stateID, bool, error) {
	head, ok, err := r.conclude(d.s.r.schema, a.m)
	if err != nil || !ok {
		return noParent, false, err
	}

	expl, err := answer.NewExplanation(answer.PartialExplanation{
		Rule:       r.rule.Label,
		Conclusion: head,
		Condition:  a.m.Filter(r.rule.When.Vars()),
	}, r.unifier)
	if err != nil {
		return noParent, false, err
	}
	if ex, ok := answer.Explainable(r.rule.Then, head); ok {
		head = head.WithExplainables(ex)
		if err := d.s.recordExplanation(ex.Key, expl); err != nil {
			return noParent, false, err
		}
	}
	if _, err := d.s.cache.Record(r.rule.Head().Bind(r.sub), answer.Answer{Map: head, Explanations: []answer.Explanation{expl}}); err != nil {
		return noParent, false, err
	}

	u := r.unifier
	return d.add(&answerState{
		parentID: r.parentID,
		m:        u.RestrictToCodomain(head),
		unifier:  &u,
		expls:    []answer.Explanation{expl},
	}), true, nil
}

// conclude builds the concepts the conclusion asserts for one body
// answer. Inferred attributes and relations get ids derived from their
// content, so every derivation of the same fact yields the same concept.
func (r *ruleState) conclude(sch *schema.Schema, body ir.ConceptMap) (ir.ConceptMap, bool, error) {
	switch h := r.rule.Then.(type) {
	case pattern.Has:
		owner, ok := body.Get(h.Owner)
		if !ok {
			return ir.ConceptMap{}, false, nil
		}
		attr, ok, err := inferAttribute(sch, h, body)
		if err != nil || !ok {
			return ir.ConceptMap{}, false, err
		}
		return ir.NewConceptMap(map[ir.Identifier]ir.Concept{
			h.Owner:     owner,
			h.Attribute: attr,
		}), true, nil

	case pattern.Relation:
		bindings := make(map[ir.Identifier]ir.Concept, len(h.Players)+1)
		players := make(map[string]string, len(h.Players))
		for _, rp := range h.Players {
			c, ok := body.Get(rp.Player)
			if !ok {
				return ir.ConceptMap{}, false, nil
			}
			bindings[rp.Player] = c
			players[rp.Role+"/"+c.IID] = rp.Role
		}
		iid, err := ir.InferredIID(h.Type, players)
		if err != nil {
			return ir.ConceptMap{}, false, fmt.Errorf("rule %s: %w", r.rule.Label, err)
		}
		bindings[h.Var] = ir.Concept{IID: iid, Type: h.Type, Kind: ir.KindRelation, Inferred: true}
		return ir.NewConceptMap(bindings), true, nil

	default:
		return ir.ConceptMap{}, false, fmt.Errorf("rule %s: unsupported conclusion %T", r.rule.Label, h)
	}
}

// inferAttribute returns the attribute an ownership conclusion asserts:
// the literal value, or the body's attribute, re-typed when the
// conclusion names another attribute type.
func inferAttribute(sch *schema.Schema, h pattern.Has, body ir.ConceptMap) (ir.Concept, bool, error) {
	value := h.Value
	if value == nil {
		c, ok := body.Get(h.Attribute)
		if !ok || c.Kind != ir.KindAttribute {
			return ir.Concept{}, false, nil
		}
		if c.Type == h.Type {
			return c, true, nil
		}
		t, ok := sch.TypeLookup(h.Type)
		if !ok || c.Value == nil || c.Value.ValueType() != t.ValueType {
			return ir.Concept{}, false, nil
		}
		value = c.Value
	}
	iid, err := ir.AttributeIID(h.Type, value)
	if err != nil {
		return ir.Concept{}, false, err
	}
	return ir.Concept{IID: iid, Type: h.Type, Kind: ir.KindAttribute, Value: value, Inferred: true}, true, nil
}
