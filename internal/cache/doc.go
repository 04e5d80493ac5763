// Package cache memoizes resolution work.
//
// StructuralCache holds one compiled scan plan per structural equivalence
// class of atomic queries. A query that differs from a cached
// representative only in variable names and pinned instance ids reuses the
// representative's plan with its own ids as parameters.
//
// QueryCache holds the answers of atomic queries keyed by query identity
// up to variable renaming. Stored facts are shared through one lazily
// advanced buffer per query; rule-derived answers are recorded as they are
// found so every state asking the same question reuses them.
package cache
