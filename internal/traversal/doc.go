// Package traversal turns atomic queries into scan plans over the fact
// store and executes them.
//
// A Plan is compiled once per query shape. Instance ids pinned by the
// query are not part of the plan: they become parameter slots that are
// filled in at execution, so structurally equivalent queries share a plan.
//
// Execution is lazy and paged. The store runs on a single connection, so
// the executor never holds a result set open while the consumer is
// processing an answer.
package traversal
