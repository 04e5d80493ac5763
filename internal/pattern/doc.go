// Package pattern defines the query patterns the reasoner resolves.
//
// A pattern is a Conjunction of atoms (isa, has, relation, iid and
// inequality constraints) plus negated sub-conjunctions. Conjunctions are
// decomposed into an ordered list of atomic queries; each atomic query is
// the unit that is resolved against stored facts, cached and matched
// against rule conclusions.
//
// All pattern values are immutable. Every operation returns a new value.
//
// Equivalence comes in three strengths, each with a canonical key:
//   - ExactKey: same atoms, same variable names, same constants
//   - AlphaKey: same atoms up to variable renaming
//   - StructuralKey: alpha equivalence that also ignores concrete iids
package pattern
