package cache

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/pattern"
	"github.com/typedb/typedb-sub067/internal/traversal"
	"github.com/typedb/typedb-sub067/internal/unify"
)

// Compiler builds scan plans. *traversal.Planner implements it.
type Compiler interface {
	CompilePlan(q pattern.Query) (*traversal.Plan, error)
}

// Executor runs scan plans. *traversal.Executor implements it.
type Executor interface {
	Execute(ctx context.Context, plan *traversal.Plan, args map[ir.Identifier]string) iter.Seq2[ir.ConceptMap, error]
}

// StructuralStats is a snapshot of structural cache activity.
type StructuralStats struct {
	Hits            int64
	Misses          int64
	Compiles        int64
	Representatives int
}

type representative struct {
	key   pattern.Canonical
	query pattern.Query
	plan  *traversal.Plan
}

// StructuralCache maps structural equivalence classes of atomic queries
// to one representative query and its compiled plan. It is safe for
// concurrent use; concurrent misses on one class compile a single plan.
type StructuralCache struct {
	compiler Compiler
	executor Executor

	mu      sync.RWMutex
	buckets map[string][]*representative // by key hash
	flight  singleflight.Group

	hits     atomic.Int64
	misses   atomic.Int64
	compiles atomic.Int64
}

// NewStructuralCache creates an empty cache.
func NewStructuralCache(compiler Compiler, executor Executor) *StructuralCache {
	return &StructuralCache{
		compiler: compiler,
		executor: executor,
		buckets:  make(map[string][]*representative),
	}
}

// Stats returns a snapshot of cache activity.
func (c *StructuralCache) Stats() StructuralStats {
	c.mu.RLock()
	n := 0
	for _, b := range c.buckets {
		n += len(b)
	}
	c.mu.RUnlock()
	return StructuralStats{
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		Compiles:        c.compiles.Load(),
		Representatives: n,
	}
}

// find returns the representative with exactly key. Hash collisions fall
// back to comparing keys.
func (c *StructuralCache) find(key pattern.Canonical) (*representative, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, rep := range c.buckets[key.Hash()] {
		if rep.key.Key == key.Key {
			return rep, true
		}
	}
	return nil, false
}

// representativeFor returns the class representative of q, compiling a
// plan when the class is new.
func (c *StructuralCache) representativeFor(q pattern.Query) (*representative, error) {
	key := pattern.StructuralKey(q)
	if rep, ok := c.find(key); ok {
		c.hits.Add(1)
		cacheLookups.WithLabelValues("structural", "hit").Inc()
		return rep, nil
	}
	c.misses.Add(1)
	cacheLookups.WithLabelValues("structural", "miss").Inc()

	v, err, _ := c.flight.Do(key.Key, func() (any, error) {
		// another caller may have finished while we waited
		if rep, ok := c.find(key); ok {
			return rep, nil
		}
		plan, err := c.compiler.CompilePlan(q)
		if err != nil {
			return nil, err
		}
		c.compiles.Add(1)
		planCompiles.Inc()
		rep := &representative{key: key, query: q, plan: plan}

		c.mu.Lock()
		defer c.mu.Unlock()
		h := key.Hash()
		c.buckets[h] = append(c.buckets[h], rep)
		slog.Debug("structural cache stored representative", "query", q.String(), "params", len(plan.Params))
		return rep, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*representative), nil
}

// Get streams the stored answers of q.
//
// The class representative's plan is executed with q's instance ids
// substituted for the representative's, and every row is renamed into q's
// variables. The plan is compiled only if the class has no representative
// yet.
func (c *StructuralCache) Get(ctx context.Context, q pattern.Query) iter.Seq2[ir.ConceptMap, error] {
	return func(yield func(ir.ConceptMap, error) bool) {
		rep, err := c.representativeFor(q)
		if err != nil {
			yield(ir.ConceptMap{}, fmt.Errorf("structural cache: %w", err))
			return
		}

		unifiers := unify.Unify(rep.query, q, unify.Structural)
		if unifiers.IsEmpty() {
			yield(ir.ConceptMap{}, fmt.Errorf("structural cache: %s does not unify with representative %s", q, rep.query))
			return
		}
		u := unifiers.Get(0)

		args := make(map[ir.Identifier]string, len(rep.plan.Params))
		for _, p := range rep.plan.Params {
			children := u.ChildrenOf(p)
			if len(children) == 0 {
				yield(ir.ConceptMap{}, fmt.Errorf("structural cache: parameter %s of %s has no counterpart", p, rep.query))
				return
			}
			iid, ok := q.IIDOf(children[0])
			if !ok {
				yield(ir.ConceptMap{}, fmt.Errorf("structural cache: %s has no iid for %s", q, children[0]))
				return
			}
			args[p] = iid
		}

		for row, err := range c.executor.Execute(ctx, rep.plan, args) {
			if err != nil {
				yield(ir.ConceptMap{}, err)
				return
			}
			m, ok := u.Transform(row)
			if !ok {
				continue
			}
			if !yield(m, nil) {
				return
			}
		}
	}
}
