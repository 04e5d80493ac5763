package resolve

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"slices"

	"github.com/typedb/typedb-sub067/internal/answer"
	"github.com/typedb/typedb-sub067/internal/cache"
	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/pattern"
	"github.com/typedb/typedb-sub067/internal/schema"
	"github.com/typedb/typedb-sub067/internal/unify"
)

// visited counts the rule applications active in the current iteration,
// keyed by rule binding hash.
type visited map[string]int

func (v visited) enter(key string) { v[key]++ }

func (v visited) leave(key string) {
	if v[key] <= 1 {
		delete(v, key)
		return
	}
	v[key]--
}

func (v visited) active(key string) bool { return v[key] > 0 }

// driver runs one iteration of resolution depth first over an arena of
// states. The stack holds the states still able to produce sub-goals; a
// state is pushed back under every sub-goal it returns, so it resumes once
// the sub-goal is exhausted.
type driver struct {
	s       *session
	states  []state
	stack   []stateID
	visited visited
	skips   int64
}

func newDriver(s *session) *driver {
	return &driver{s: s, visited: make(visited)}
}

func (d *driver) add(st state) stateID {
	d.states = append(d.states, st)
	d.s.stats.States++
	return stateID(len(d.states) - 1)
}

func (d *driver) push(id stateID) {
	d.stack = append(d.stack, id)
}

func (d *driver) skip() {
	d.skips++
	d.s.stats.CycleSkips++
}

// onPath reports whether a rule state with key is an ancestor of from.
func (d *driver) onPath(from stateID, key string) bool {
	if !d.visited.active(key) {
		return false
	}
	for id := from; id != noParent; id = d.states[id].parent() {
		if rs, ok := d.states[id].(*ruleState); ok && rs.key == key && !rs.done {
			return true
		}
	}
	return false
}

// next advances until the top state produces an answer. It returns false
// once every state is exhausted.
func (d *driver) next() (*answerState, bool, error) {
	for len(d.stack) > 0 {
		if err := d.s.ctx.Err(); err != nil {
			return nil, false, err
		}
		id := d.stack[len(d.stack)-1]
		d.stack = d.stack[:len(d.stack)-1]
		st := d.states[id]

		if a, ok := st.(*answerState); ok && a.parentID == noParent {
			return a, true, nil
		}
		child, ok, err := st.generateSubGoal(d, id)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}
		if !st.isAnswerState() {
			d.push(id)
		}
		d.push(child)
	}
	return nil, false, nil
}

// session is the state shared by every iteration of one top-level
// resolution: the query cache, counters and decomposed rule bodies.
type session struct {
	ctx       context.Context
	r         *Resolver
	cache     *cache.QueryCache
	requestID string
	query     string
	stats     Stats
	bodies    map[string][]pattern.Query
}

func (r *Resolver) newSession(ctx context.Context, c *cache.QueryCache, requestID, query string) *session {
	return &session{
		ctx:       ctx,
		r:         r,
		cache:     c,
		requestID: requestID,
		query:     query,
		bodies:    make(map[string][]pattern.Query),
	}
}

// body returns the decomposed positive part of a rule body.
func (s *session) body(rule schema.Rule) ([]pattern.Query, error) {
	if qs, ok := s.bodies[rule.Label]; ok {
		return qs, nil
	}
	qs, err := pattern.Decompose(pattern.Conjunction{Atoms: rule.When.Atoms})
	if err != nil {
		err = classify(err, rule.When.String())
		var re *ReasonerError
		if errors.As(err, &re) {
			re.Rule = rule.Label
		}
		return nil, err
	}
	s.bodies[rule.Label] = qs
	return qs, nil
}

// branches lists every (rule, unifier) pair that can answer q.
func (s *session) branches(q pattern.Query) []branch {
	out := []branch{}
	for _, rule := range s.r.schema.RulesMatchingConclusion(q.Main) {
		for u := range unify.Unify(q, rule.Head(), unify.Rule).All() {
			out = append(out, branch{rule: rule, unifier: u})
		}
	}
	return out
}

// recordExplanation stores a new explanation and hands it to the sink.
func (s *session) recordExplanation(key string, e answer.Explanation) error {
	if !s.r.registry.Record(key, e) || s.r.sink == nil {
		return nil
	}
	return s.r.sink.WriteExplanation(s.ctx, key, e)
}

// iterate resolves a conjunction until an iteration derives nothing new.
//
// An iteration that skipped an active rule application may have missed
// answers that depend on it. If it also recorded new answers, those are
// now in the cache for the skipped branch to replay, and the conjunction
// is resolved again. Answers may repeat across iterations.
func (s *session) iterate(queries []pattern.Query, negations []pattern.Conjunction, sub ir.ConceptMap) iter.Seq2[*answerState, error] {
	return func(yield func(*answerState, error) bool) {
		for iteration := 1; ; iteration++ {
			if iteration > s.r.maxIterations {
				yield(nil, NewIterationLimitError(s.query, s.r.maxIterations))
				return
			}
			s.stats.Iterations++
			before := s.cache.Records()

			d := newDriver(s)
			d.push(d.add(newConjunctive(noParent, queries, negations, sub)))
			for {
				a, ok, err := d.next()
				if err != nil {
					yield(nil, err)
					return
				}
				if !ok {
					break
				}
				if !yield(a, nil) {
					return
				}
			}

			if d.skips == 0 || s.cache.Records() == before {
				return
			}
			slog.Debug("reiterating after cycle skips",
				"request_id", s.requestID,
				"iteration", iteration,
				"skips", d.skips,
				"new_records", s.cache.Records()-before,
			)
		}
	}
}

// exists reports whether a negated block has an answer under sub.
//
// Inequalities and value predicates of the block over variables bound only
// outside it are checked on each answer rather than resolved.
func (s *session) exists(neg pattern.Conjunction, sub ir.ConceptMap) (bool, error) {
	inner := pattern.Conjunction{Negations: neg.Negations}
	var outer []pattern.Atom
	positive := neg.Vars()
	for _, a := range neg.Atoms {
		if !boundWithin(a, positive) {
			outer = append(outer, a)
			continue
		}
		inner.Atoms = append(inner.Atoms, a)
	}
	queries, err := pattern.Decompose(pattern.Conjunction{Atoms: inner.Atoms})
	if err != nil {
		return false, classify(err, neg.String())
	}

	for a, err := range s.iterate(queries, inner.Negations, sub) {
		if err != nil {
			return false, err
		}
		if pattern.AdmitsAll(outer, a.m, s.r.schema) {
			return true, nil
		}
	}
	return false, nil
}

func boundWithin(a pattern.Atom, positive []ir.Identifier) bool {
	switch a := a.(type) {
	case pattern.Neq:
		return slices.Contains(positive, a.Left) && slices.Contains(positive, a.Right)
	case pattern.ValuePredicate:
		return slices.Contains(positive, a.Var)
	default:
		return true
	}
}
