package resolve

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/typedb/typedb-sub067/internal/answer"
	"github.com/typedb/typedb-sub067/internal/cache"
	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/pattern"
	"github.com/typedb/typedb-sub067/internal/schema"
	"github.com/typedb/typedb-sub067/internal/typeql"
)

// Resolver answers queries against a schema, its rules and the facts
// behind a structural cache.
//
// Thread-safety: a Resolver is safe for concurrent use. Each resolution
// owns its state tree; only the caches and the explanation registry are
// shared.
type Resolver struct {
	schema     *schema.Schema
	structural *cache.StructuralCache
	registry   *answer.Registry

	sink          answer.Sink
	fallback      answer.Lookup
	ids           IDGenerator
	maxIterations int
	tracer        trace.Tracer

	stats counters
}

// New creates a Resolver.
func New(sch *schema.Schema, structural *cache.StructuralCache, opts ...Option) *Resolver {
	r := &Resolver{
		schema:        sch,
		structural:    structural,
		registry:      answer.NewRegistry(),
		ids:           UUIDv7Generator{},
		maxIterations: DefaultMaxIterations,
		tracer:        otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Schema returns the schema the resolver reasons over.
func (r *Resolver) Schema() *schema.Schema {
	return r.schema
}

// Registry returns the explanations recorded so far.
func (r *Resolver) Registry() *answer.Registry {
	return r.registry
}

// Stats returns the work done by every resolution so far.
func (r *Resolver) Stats() Stats {
	return r.stats.snapshot()
}

// NewCache creates an empty query cache reading through the resolver's
// structural cache.
func (r *Resolver) NewCache() *cache.QueryCache {
	return cache.NewQueryCache(r.structural)
}

// prepared is a query ready for resolution.
type prepared struct {
	text       string
	queries    []pattern.Query
	negations  []pattern.Conjunction
	projection []ir.Identifier
}

func (r *Resolver) prepare(q typeql.Query) (prepared, error) {
	text := q.Pattern.String()
	conj, err := pattern.Normalize(q.Pattern)
	if err != nil {
		return prepared{}, classify(err, text)
	}
	if err := r.schema.CheckQuery(conj); err != nil {
		return prepared{}, fmt.Errorf("query %s: %w", text, err)
	}
	queries, err := pattern.Decompose(conj)
	if err != nil {
		return prepared{}, classify(err, text)
	}
	return prepared{
		text:       text,
		queries:    queries,
		negations:  conj.Negations,
		projection: q.Projection(),
	}, nil
}

// Resolve answers q under the initial substitution sub with a fresh query
// cache. Answers are computed as the sequence is consumed; stopping early
// stops resolution.
func (r *Resolver) Resolve(ctx context.Context, q typeql.Query, sub ir.ConceptMap) iter.Seq2[answer.Answer, error] {
	return r.ResolveWith(ctx, r.NewCache(), q, sub)
}

// ResolveWith is Resolve with a caller-provided query cache, so answers
// derived for one query are reused by the next.
//
// Answers are projected onto the query's get variables and returned once
// each. A query with no answers yields an empty sequence. Malformed
// queries yield a single error. When the last resolution using c ends,
// stored-answer traversals it left unfinished are stopped.
func (r *Resolver) ResolveWith(ctx context.Context, c *cache.QueryCache, q typeql.Query, sub ir.ConceptMap) iter.Seq2[answer.Answer, error] {
	return func(yield func(answer.Answer, error) bool) {
		release := c.Acquire()
		defer release()

		requestID := r.ids.Generate()
		ctx, span := startResolveSpan(ctx, r.tracer, requestID, q.Pattern.String())
		s := r.newSession(ctx, c, requestID, q.Pattern.String())

		var runErr error
		defer func() {
			r.stats.add(s.stats)
			recordRun(ctx, s.stats)
			endResolveSpan(span, s.stats, runErr)
			slog.Debug("resolution finished",
				"request_id", requestID,
				"answers", s.stats.Answers,
				"iterations", s.stats.Iterations,
				"rule_expansions", s.stats.RuleExpansions,
				"cycle_skips", s.stats.CycleSkips,
			)
		}()

		p, err := r.prepare(q)
		if err != nil {
			runErr = err
			yield(answer.Answer{}, err)
			return
		}
		slog.Debug("resolution started", "request_id", requestID, "query", p.text, "conjuncts", len(p.queries))

		seen := make(map[string]bool)
		for a, err := range s.iterate(p.queries, p.negations, sub) {
			if err != nil {
				runErr = err
				yield(answer.Answer{}, err)
				return
			}
			m := a.m.Filter(p.projection)
			h := m.Hash()
			if seen[h] {
				continue
			}
			seen[h] = true
			s.stats.Answers++
			if !yield(answer.Answer{Map: m, Explanations: a.expls}, nil) {
				return
			}
		}
	}
}

// ResolveBatch resolves queries concurrently and returns their answers in
// query order.
//
// Each query runs against its own copy of shared (or an empty cache when
// shared is nil). Once every query has finished, their caches are merged
// back into shared so later queries reuse what the batch derived.
func (r *Resolver) ResolveBatch(ctx context.Context, queries []typeql.Query, shared *cache.QueryCache) ([][]answer.Answer, error) {
	results := make([][]answer.Answer, len(queries))
	caches := make([]*cache.QueryCache, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		c := r.NewCache()
		if shared != nil {
			c = shared.Clone()
		}
		caches[i] = c
		g.Go(func() error {
			for a, err := range r.ResolveWith(gctx, c, q, ir.ConceptMap{}) {
				if err != nil {
					return fmt.Errorf("query %d: %w", i, err)
				}
				results[i] = append(results[i], a)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if shared != nil {
		for _, c := range caches {
			if err := shared.Merge(c); err != nil {
				return nil, err
			}
		}
	}
	return results, nil
}

// Explain reconstructs the derivation of an answer returned by this
// resolver. Facts this resolver has not derived are looked up in the
// explanation store, if one is configured.
func (r *Resolver) Explain(ctx context.Context, m ir.ConceptMap) (answer.Derivation, error) {
	return answer.Explain(ctx, chainedLookup{r.registry, r.fallback}, m)
}

// chainedLookup consults the registry first and the fallback for keys the
// registry does not know.
type chainedLookup struct {
	registry *answer.Registry
	fallback answer.Lookup
}

func (c chainedLookup) Explanations(ctx context.Context, key string) ([]answer.Explanation, error) {
	if es := c.registry.Get(key); len(es) > 0 || c.fallback == nil {
		return es, nil
	}
	return c.fallback.Explanations(ctx, key)
}
