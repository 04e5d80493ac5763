// Package resolve answers queries by backward chaining over stored facts
// and rules.
//
// A query is decomposed into atomic sub-queries that are resolved depth
// first by a tree of resolution states:
//
//   - conjunctiveState chains the atomic queries of a conjunction, each one
//     bound by the answers of the ones before it, and filters complete
//     answers through negated blocks.
//   - neqComplementState rejects answers that violate an inequality.
//   - atomicState answers one atomic query from the query cache, then from
//     rules whose conclusion unifies with it.
//   - ruleState resolves a rule body and materialises the conclusion.
//   - answerState carries one answer up to its parent.
//
// States live in a per-iteration arena and refer to their parent by
// index. A rule application already active on the path to the root under
// the same bindings is skipped; the skipped branch replays what the cache
// has recorded for it, and resolution repeats until an iteration derives
// nothing new. Answers are produced lazily: no state advances unless the
// consumer asks for another answer.
package resolve
