package resolve

import (
	"slices"

	"github.com/typedb/typedb-sub067/internal/answer"
	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/pattern"
)

// conjunctiveState resolves queries[index:] under sub. It creates one
// child for queries[index]; every answer of that child continues with a
// new conjunctiveState for the rest of the queries, so each conjunct is
// only asked once the ones before it are bound.
type conjunctiveState struct {
	parentID  stateID
	queries   []pattern.Query
	negations []pattern.Conjunction
	index     int
	sub       ir.ConceptMap
	expls     []answer.Explanation // of the conjuncts resolved so far
	started   bool
}

func newConjunctive(parent stateID, queries []pattern.Query, negations []pattern.Conjunction, sub ir.ConceptMap) *conjunctiveState {
	return &conjunctiveState{
		parentID:  parent,
		queries:   queries,
		negations: negations,
		sub:       sub,
	}
}

func (c *conjunctiveState) parent() stateID { return c.parentID }
func (c *conjunctiveState) isAnswerState() bool { return false }

func (c *conjunctiveState) generateSubGoal(d *driver, self stateID) (stateID, bool, error) {
	if c.started {
		return noParent, false, nil
	}
	c.started = true

	// A binding that already contradicts a later conjunct ends the branch
	// before anything is resolved.
	for _, q := range c.queries[c.index:] {
		if !pattern.Admits(q, c.sub, d.s.r.schema) {
			d.s.stats.Pruned++
			return noParent, false, nil
		}
	}
	if c.index == len(c.queries) {
		return c.finish(d, c.sub, c.expls)
	}

	q := c.queries[c.index]
	if len(q.Neqs) > 0 {
		neq, err := newNeqComplement(self, q, c.sub)
		if err != nil {
			return noParent, false, err
		}
		return d.add(neq), true, nil
	}
	return d.add(newAtomic(self, q.Bind(c.sub), c.sub)), true, nil
}

// consumeAnswer merges a child answer into the running substitution.
func (c *conjunctiveState) consumeAnswer(a *answerState) (ir.ConceptMap, bool) {
	return c.sub.Merge(a.m)
}

func (c *conjunctiveState) propagateAnswer(d *driver, _ stateID, a *answerState) (stateID, bool, error) {
	merged, ok := c.consumeAnswer(a)
	if !ok {
		return noParent, false, nil
	}
	expls := slices.Concat(c.expls, a.expls)
	if c.index+1 < len(c.queries) {
		next := newConjunctive(c.parentID, c.queries, c.negations, merged)
		next.index = c.index + 1
		next.expls = expls
		return d.add(next), true, nil
	}
	return c.finish(d, merged, expls)
}

// finish checks the negated blocks against a complete answer.
func (c *conjunctiveState) finish(d *driver, m ir.ConceptMap, expls []answer.Explanation) (stateID, bool, error) {
	for _, neg := range c.negations {
		found, err := d.s.exists(neg, m)
		if err != nil {
			return noParent, false, err
		}
		if found {
			return noParent, false, nil
		}
	}
	return d.add(&answerState{parentID: c.parentID, m: m, expls: expls}), true, nil
}

// neqComplementState resolves an atomic query and drops the answers in
// which the two sides of an inequality are the same concept.
type neqComplementState struct {
	parentID stateID
	query    pattern.Query
	sub      ir.ConceptMap
	started  bool
}

// newNeqComplement fails when an inequality side is bound neither by the
// query nor by the enclosing substitution.
func newNeqComplement(parent stateID, q pattern.Query, sub ir.ConceptMap) (*neqComplementState, error) {
	bound := q.Vars()
	for _, n := range q.Neqs {
		var unbound []ir.Identifier
		for _, id := range n.Vars() {
			if !slices.Contains(bound, id) && !sub.Contains(id) {
				unbound = append(unbound, id)
			}
		}
		if len(unbound) > 0 {
			return nil, classify(&pattern.NegationError{Pattern: n.String(), Unbound: unbound}, q.String())
		}
	}
	return &neqComplementState{parentID: parent, query: q, sub: sub}, nil
}

func (n *neqComplementState) parent() stateID { return n.parentID }
func (n *neqComplementState) isAnswerState() bool { return false }

func (n *neqComplementState) generateSubGoal(d *driver, self stateID) (stateID, bool, error) {
	if n.started {
		return noParent, false, nil
	}
	n.started = true
	q := n.query.WithoutNeqs()
	return d.add(newAtomic(self, q.Bind(n.sub), n.sub)), true, nil
}

func (n *neqComplementState) propagateAnswer(d *driver, _ stateID, a *answerState) (stateID, bool, error) {
	merged, ok := n.sub.Merge(a.m)
	if !ok {
		return noParent, false, nil
	}
	for _, neq := range n.query.Neqs {
		l, _ := merged.Get(neq.Left)
		r, _ := merged.Get(neq.Right)
		if l.Equal(r) {
			return noParent, false, nil
		}
	}
	return d.add(&answerState{parentID: n.parentID, m: a.m, expls: a.expls}), true, nil
}
