// Package reactive implements the pull protocol that connects producers
// and consumers in the resolver.
//
// A producer keeps a Registry of its receivers. A receiver records a pull
// when it wants one more item, and the producer clears the pull once the
// item is delivered. Producers do no work while nothing is pulling, which
// keeps the whole pipeline lazy: a consumer that stops pulling stops every
// stage behind it.
//
// Single allows one receiver with at most one outstanding pull; a second
// pull before delivery is a wiring bug and panics with a *ProtocolError.
// Multi allows many receivers and treats a repeated pull as a no-op.
package reactive
