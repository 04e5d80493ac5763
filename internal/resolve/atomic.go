package resolve

import (
	"log/slog"

	"github.com/typedb/typedb-sub067/internal/answer"
	"github.com/typedb/typedb-sub067/internal/cache"
	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/pattern"
	"github.com/typedb/typedb-sub067/internal/schema"
	"github.com/typedb/typedb-sub067/internal/unify"
)

// atomicPhase orders the sources an atomic state draws answers from:
// stored facts, answers other states already derived, rule applications,
// and finally whatever was derived elsewhere while its rules ran. An
// unbound isa query over a type with several concrete subtypes instead
// delegates to one exact-type child per subtype.
type atomicPhase int

const (
	phaseInit atomicPhase = iota
	phaseTypes
	phaseLookup
	phaseDerived
	phaseRules
	phaseCatchUp
	phaseDone
)

// branch is one way to answer a query with a rule.
type branch struct {
	rule    schema.Rule
	unifier unify.Unifier
}

// atomicState answers one atomic query. The query is already bound by the
// enclosing substitution, so the cache sees the binding as part of the
// query's identity.
type atomicState struct {
	parentID stateID
	query    pattern.Query
	sub      ir.ConceptMap
	phase    atomicPhase

	types    []string
	reader   *cache.Reader
	derived  int
	branches []branch
	next     int

	queued []answer.Answer // cached answers waiting to be emitted
	replay []*answerState  // conclusions of skipped branches
	seen   map[string]bool

	skipsAtStart int64
	finished     bool
}

func newAtomic(parent stateID, q pattern.Query, sub ir.ConceptMap) *atomicState {
	return &atomicState{
		parentID: parent,
		query:    q,
		sub:      sub,
		seen:     make(map[string]bool),
	}
}

func (s *atomicState) parent() stateID { return s.parentID }
func (s *atomicState) isAnswerState() bool { return false }

// boundIsa reports whether the query only checks the type of a concept the
// substitution already binds. Such a concept may be inferred and absent
// from storage, so it is answered from the substitution.
func (s *atomicState) boundIsa() bool {
	isa, ok := s.query.Main.(pattern.Isa)
	return ok && s.sub.Contains(isa.Var)
}

// concreteTypes returns the types an unbound isa query must be split into,
// or nil when the query needs no type resolution.
func (s *atomicState) concreteTypes(sch *schema.Schema) []string {
	isa, ok := s.query.Main.(pattern.Isa)
	if !ok || isa.Exact {
		return nil
	}
	types := sch.ConcreteSubtypes(isa.Type)
	if len(types) < 2 {
		return nil
	}
	return types
}

func (s *atomicState) generateSubGoal(d *driver, self stateID) (stateID, bool, error) {
	for {
		if len(s.replay) > 0 {
			a := s.replay[0]
			s.replay = s.replay[1:]
			id, ok, err := s.propagateAnswer(d, self, a)
			if err != nil || ok {
				return id, ok, err
			}
			continue
		}
		if len(s.queued) > 0 {
			a := s.queued[0]
			s.queued = s.queued[1:]
			if id, ok := s.emit(d, a.Map, a.Explanations); ok {
				return id, true, nil
			}
			continue
		}

		switch s.phase {
		case phaseInit:
			s.skipsAtStart = d.skips
			switch {
			case !pattern.Admits(s.query, s.sub, d.s.r.schema):
				s.phase = phaseDone
			case s.boundIsa():
				s.phase = phaseDone
				if id, ok := s.emit(d, s.sub.Filter(s.query.Vars()), nil); ok {
					return id, true, nil
				}
			default:
				s.types = s.concreteTypes(d.s.r.schema)
				if s.types != nil {
					s.phase = phaseTypes
				} else {
					s.phase = phaseLookup
				}
			}

		case phaseTypes:
			if s.next >= len(s.types) {
				s.phase = phaseDone
				continue
			}
			q := s.query
			isa := q.Main.(pattern.Isa)
			isa.Type, isa.Exact = s.types[s.next], true
			q.Main = isa
			s.next++
			return d.add(newAtomic(self, q, s.sub)), true, nil

		case phaseLookup:
			if s.reader == nil {
				r, err := d.s.cache.Lookup(d.s.ctx, s.query)
				if err != nil {
					return noParent, false, err
				}
				s.reader = r
			}
			a, ok, err := s.reader.Next()
			if err != nil {
				return noParent, false, err
			}
			if !ok {
				s.phase = phaseDerived
				continue
			}
			if id, ok := s.emit(d, a.Map, a.Explanations); ok {
				return id, true, nil
			}

		case phaseDerived, phaseCatchUp:
			answers, next, err := d.s.cache.Derived(s.query, s.derived)
			if err != nil {
				return noParent, false, err
			}
			s.derived = next
			s.queued = append(s.queued, answers...)
			if s.phase == phaseDerived {
				s.phase = phaseRules
			} else {
				s.phase = phaseDone
			}

		case phaseRules:
			if s.branches == nil {
				if d.s.cache.IsComplete(s.query) {
					s.phase = phaseCatchUp
					continue
				}
				s.branches = d.s.branches(s.query)
			}
			if s.next >= len(s.branches) {
				s.phase = phaseCatchUp
				continue
			}
			b := s.branches[s.next]
			s.next++
			id, ok, err := s.expand(d, self, b)
			if err != nil || ok {
				return id, ok, err
			}

		case phaseDone:
			if !s.finished {
				s.finished = true
				// Skips anywhere since this state started may have hidden
				// answers, so only a skip-free run is final.
				if s.branches != nil && d.skips == s.skipsAtStart {
					d.s.cache.MarkComplete(s.query)
				}
			}
			return noParent, false, nil
		}
	}
}

// expand creates the rule state for one branch, or queues what the cache
// already holds for it when the same application is active further up.
func (s *atomicState) expand(d *driver, self stateID, b branch) (stateID, bool, error) {
	childSub, ok := b.unifier.Transform(s.sub.Filter(s.query.Vars()))
	if !ok {
		return noParent, false, nil
	}
	key, err := ir.RuleBindingHash(b.rule.Label, childSub)
	if err != nil {
		return noParent, false, err
	}

	if d.onPath(self, key) {
		d.skip()
		slog.Debug("rule application already active",
			"request_id", d.s.requestID,
			"rule", b.rule.Label,
			"query", s.query.String(),
		)
		known, _, err := d.s.cache.Derived(b.rule.Head().Bind(childSub), 0)
		if err != nil {
			return noParent, false, err
		}
		u := b.unifier
		for _, a := range known {
			s.replay = append(s.replay, &answerState{
				parentID: self,
				m:        u.RestrictToCodomain(a.Map),
				unifier:  &u,
				expls:    a.Explanations,
			})
		}
		return noParent, false, nil
	}

	d.s.stats.RuleExpansions++
	return d.add(newRuleState(self, b.rule, b.unifier, childSub, key)), true, nil
}

// emit passes an answer in the query's frame to the parent unless this
// state already did.
func (s *atomicState) emit(d *driver, m ir.ConceptMap, expls []answer.Explanation) (stateID, bool) {
	h := m.Hash()
	if s.seen[h] {
		return noParent, false
	}
	s.seen[h] = true
	return d.add(&answerState{parentID: s.parentID, m: m, expls: expls}), true
}

// propagateAnswer receives answers from type-resolution children, which
// are already in this state's frame, and conclusions of rule states, which
// are mapped back through their unifier and recorded in the cache.
func (s *atomicState) propagateAnswer(d *driver, _ stateID, a *answerState) (stateID, bool, error) {
	m := a.m
	if a.unifier != nil {
		back, ok, err := a.unifier.UnTransform(a.m)
		if err != nil {
			return noParent, false, NewDomainMismatchError(s.query.String(), a.rule(), err)
		}
		if !ok {
			return noParent, false, nil
		}
		if back, ok = back.Merge(s.sub.Filter(s.query.Vars())); !ok {
			return noParent, false, nil
		}
		if !pattern.Admits(s.query, back, d.s.r.schema) {
			return noParent, false, nil
		}
		m = back
		if _, err := d.s.cache.Record(s.query, answer.Answer{Map: m, Explanations: a.expls}); err != nil {
			return noParent, false, err
		}
	}
	id, ok := s.emit(d, m, a.expls)
	return id, ok, nil
}
