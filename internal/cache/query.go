package cache

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/typedb/typedb-sub067/internal/answer"
	"github.com/typedb/typedb-sub067/internal/ir"
	"github.com/typedb/typedb-sub067/internal/pattern"
	"github.com/typedb/typedb-sub067/internal/reactive"
	"github.com/typedb/typedb-sub067/internal/unify"
)

// Source streams the stored answers of an atomic query.
// *StructuralCache implements it.
type Source interface {
	Get(ctx context.Context, q pattern.Query) iter.Seq2[ir.ConceptMap, error]
}

// entry holds everything known about one query up to variable renaming.
// Maps are kept in the frame of the first query that created the entry.
type entry struct {
	key      pattern.Canonical
	query    pattern.Query
	lookup   *reactive.Buffer[ir.ConceptMap]
	derived  []answer.Answer
	seen     map[string]bool // hashes of derived maps
	complete bool
}

// QueryCache records the answers of atomic queries. Stored answers are
// read lazily through a shared buffer per query and rule-derived answers
// are appended as resolution finds them. It is safe for concurrent use.
type QueryCache struct {
	source Source

	mu      sync.Mutex
	entries map[string]*entry
	active  int // sessions between Acquire and release

	records atomic.Int64
}

// NewQueryCache creates an empty cache reading stored answers from
// source.
func NewQueryCache(source Source) *QueryCache {
	return &QueryCache{
		source:  source,
		entries: make(map[string]*entry),
	}
}

// frame returns the entry for q, creating it when absent, and the mapping
// from the entry's frame into q's. The caller holds mu.
func (c *QueryCache) frame(q pattern.Query) (*entry, unify.Mapping, error) {
	q = q.WithoutNeqs()
	key := pattern.AlphaKey(q)
	e, ok := c.entries[key.Key]
	if !ok {
		e = &entry{key: key, query: q, seen: make(map[string]bool)}
		c.entries[key.Key] = e
	}
	m, err := unify.Between(e.key, key)
	if err != nil {
		return nil, unify.Mapping{}, fmt.Errorf("query cache: %s: %w", q, err)
	}
	return e, m, nil
}

// Reader is one consumer's position in the stored answers of a query.
type Reader struct {
	cursor  *reactive.Cursor[ir.ConceptMap]
	mapping unify.Mapping
}

// Next returns the next stored answer in the reader's frame, explained as
// a lookup.
func (r *Reader) Next() (answer.Answer, bool, error) {
	m, ok, err := r.cursor.Next()
	if !ok || err != nil {
		return answer.Answer{}, false, err
	}
	m = r.mapping.Transform(m)
	return answer.Answer{Map: m, Explanations: []answer.Explanation{answer.LookupExplanation(m)}}, true, nil
}

// Lookup returns a reader over the stored answers of q. Readers of
// queries equal up to renaming share one upstream traversal, which
// advances only as far as the furthest reader has asked.
func (c *QueryCache) Lookup(ctx context.Context, q pattern.Query) (*Reader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, m, err := c.frame(q)
	if err != nil {
		return nil, err
	}
	if e.lookup == nil {
		cacheLookups.WithLabelValues("query", "miss").Inc()
		// The buffer outlives the resolution that opened it, so it must not
		// inherit that resolution's cancellation.
		e.lookup = reactive.NewBuffer(c.source.Get(context.WithoutCancel(ctx), e.query))
	} else {
		cacheLookups.WithLabelValues("query", "hit").Inc()
	}
	return &Reader{cursor: e.lookup.Cursor(), mapping: m}, nil
}

// Acquire registers a resolution session on the cache. Calling release
// ends it. Once no session remains, lookups that were not read to the end
// are closed and dropped, so their traversals stop and are started again
// by the next reader.
func (c *QueryCache) Acquire() (release func()) {
	c.mu.Lock()
	c.active++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.active--
			if c.active == 0 {
				c.closeUnsettled()
			}
		})
	}
}

// closeUnsettled closes every lookup that is still reading or failed. The
// caller holds mu.
func (c *QueryCache) closeUnsettled() {
	for _, e := range c.entries {
		if e.lookup == nil || (e.lookup.Done() && e.lookup.Err() == nil) {
			continue
		}
		e.lookup.Close()
		e.lookup = nil
	}
}

// Record adds a derived answer of q. It reports whether the answer was
// new.
func (c *QueryCache) Record(q pattern.Query, a answer.Answer) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, m, err := c.frame(q)
	if err != nil {
		return false, err
	}
	a.Map = m.UnTransform(a.Map)
	h := a.Map.Hash()
	if e.seen[h] {
		return false, nil
	}
	e.seen[h] = true
	e.derived = append(e.derived, a)
	c.records.Add(1)
	derivedRecords.Inc()
	return true, nil
}

// Derived returns the derived answers of q recorded at or after position
// from, in q's frame, and the position to continue from.
func (c *QueryCache) Derived(q pattern.Query, from int) ([]answer.Answer, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, m, err := c.frame(q)
	if err != nil {
		return nil, from, err
	}
	if from >= len(e.derived) {
		return nil, len(e.derived), nil
	}
	out := make([]answer.Answer, 0, len(e.derived)-from)
	for _, a := range e.derived[from:] {
		out = append(out, answer.Answer{Map: m.Transform(a.Map), Explanations: a.Explanations})
	}
	return out, len(e.derived), nil
}

// GetAnswers streams every answer of q known to the cache: stored answers
// first, then derived ones.
func (c *QueryCache) GetAnswers(ctx context.Context, q pattern.Query) iter.Seq2[answer.Answer, error] {
	return func(yield func(answer.Answer, error) bool) {
		r, err := c.Lookup(ctx, q)
		if err != nil {
			yield(answer.Answer{}, err)
			return
		}
		for {
			a, ok, err := r.Next()
			if err != nil {
				yield(answer.Answer{}, err)
				return
			}
			if !ok {
				break
			}
			if !yield(a, nil) {
				return
			}
		}
		derived, _, err := c.Derived(q, 0)
		if err != nil {
			yield(answer.Answer{}, err)
			return
		}
		for _, a := range derived {
			if !yield(a, nil) {
				return
			}
		}
	}
}

// Contains reports whether m is a known answer of q. Stored answers count
// only once they have been read.
func (c *QueryCache) Contains(q pattern.Query, m ir.ConceptMap) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := pattern.AlphaKey(q.WithoutNeqs())
	e, ok := c.entries[key.Key]
	if !ok {
		return false
	}
	mapping, err := unify.Between(e.key, key)
	if err != nil {
		return false
	}
	rep := mapping.UnTransform(m)
	if e.seen[rep.Hash()] {
		return true
	}
	if e.lookup == nil {
		return false
	}
	for _, stored := range e.lookup.Snapshot() {
		if stored.Equal(rep) {
			return true
		}
	}
	return false
}

// IsComplete reports whether every answer of q has been derived.
func (c *QueryCache) IsComplete(q pattern.Query) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[pattern.AlphaKey(q.WithoutNeqs()).Key]
	return ok && e.complete
}

// MarkComplete records that rule expansion of q finished without being
// cut short by a cycle. Later resolutions of q read the cache instead of
// expanding rules again.
func (c *QueryCache) MarkComplete(q pattern.Query) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, _, err := c.frame(q); err == nil {
		e.complete = true
	}
}

// Records returns how many derived answers have been recorded since the
// cache was created. Resolution compares it across iterations to detect a
// fixpoint.
func (c *QueryCache) Records() int64 {
	return c.records.Load()
}

// Len returns the number of cached queries.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.lookup != nil {
			e.lookup.Close()
		}
	}
	c.entries = make(map[string]*entry)
}

// Clone returns an independent copy. Only fully read lookups are carried
// over; the rest are traversed again on demand.
func (c *QueryCache) Clone() *QueryCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := NewQueryCache(c.source)
	for k, e := range c.entries {
		out.entries[k] = e.clone()
	}
	out.records.Store(c.records.Load())
	return out
}

func (e *entry) clone() *entry {
	cp := &entry{
		key:      e.key,
		query:    e.query,
		lookup:   settled(e.lookup),
		derived:  append([]answer.Answer(nil), e.derived...),
		seen:     make(map[string]bool, len(e.seen)),
		complete: e.complete,
	}
	for h := range e.seen {
		cp.seen[h] = true
	}
	return cp
}

// settled returns a detached copy of b when it was read to the end
// without error, and nil otherwise. An unfinished buffer is bound to the
// context of the resolution that opened it.
func settled(b *reactive.Buffer[ir.ConceptMap]) *reactive.Buffer[ir.ConceptMap] {
	if b == nil || !b.Done() || b.Err() != nil {
		return nil
	}
	return reactive.Completed(b.Snapshot())
}

// Merge adds every entry of other into c. Derived answers are unioned
// after renaming into c's frames, and an entry is complete when it is
// complete on either side. Merging is commutative and idempotent up to
// the frame answers are kept in.
func (c *QueryCache) Merge(other *QueryCache) error {
	if other == nil || other == c {
		return nil
	}
	theirs := other.snapshot()

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, oe := range theirs {
		e, ok := c.entries[k]
		if !ok {
			c.entries[k] = oe
			for range oe.derived {
				c.records.Add(1)
			}
			continue
		}
		m, err := unify.Between(oe.key, e.key)
		if err != nil {
			return fmt.Errorf("query cache merge: %s: %w", e.query, err)
		}
		for _, a := range oe.derived {
			a.Map = m.Transform(a.Map)
			h := a.Map.Hash()
			if e.seen[h] {
				continue
			}
			e.seen[h] = true
			e.derived = append(e.derived, a)
			c.records.Add(1)
		}
		e.complete = e.complete || oe.complete
		if settled(e.lookup) == nil && oe.lookup != nil {
			stored := oe.lookup.Snapshot()
			for i := range stored {
				stored[i] = m.Transform(stored[i])
			}
			e.lookup = reactive.Completed(stored)
		}
	}
	return nil
}

// snapshot clones every entry under the lock.
func (c *QueryCache) snapshot() map[string]*entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*entry, len(c.entries))
	for k, e := range c.entries {
		out[k] = e.clone()
	}
	return out
}

// Equal reports whether both caches hold the same queries with the same
// derived answers and completeness. Stored answers are not compared.
func (c *QueryCache) Equal(other *QueryCache) bool {
	mine, theirs := c.snapshot(), other.snapshot()
	if len(mine) != len(theirs) {
		return false
	}
	for k, e := range mine {
		oe, ok := theirs[k]
		if !ok || e.complete != oe.complete || len(e.derived) != len(oe.derived) {
			return false
		}
		m, err := unify.Between(oe.key, e.key)
		if err != nil {
			return false
		}
		for _, a := range oe.derived {
			if !e.seen[m.Transform(a.Map).Hash()] {
				return false
			}
		}
	}
	return true
}
