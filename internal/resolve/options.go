package resolve

import (
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/typedb/typedb-sub067/internal/answer"
)

// DefaultMaxIterations bounds how often resolution of one query repeats
// while it keeps deriving new answers.
const DefaultMaxIterations = 64

// IDGenerator generates request ids for log and trace correlation.
// Implemented by UUIDv7Generator (production) and the generators in
// internal/testutil (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 request ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxIterations sets how many times resolution of one query may
// repeat before failing with ITERATION_LIMIT.
//
// Default: 64 (DefaultMaxIterations).
func WithMaxIterations(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxIterations = n
		}
	}
}

// WithExplanationSink sends every new explanation to sink, typically to
// persist it.
func WithExplanationSink(sink answer.Sink) Option {
	return func(r *Resolver) {
		r.sink = sink
	}
}

// WithExplanationStore makes Explain fall back to lookup for facts the
// in-memory registry has not seen, such as facts derived by an earlier
// process.
func WithExplanationStore(lookup answer.Lookup) Option {
	return func(r *Resolver) {
		r.fallback = lookup
	}
}

// WithRequestIDs sets the request id generator.
//
// Default: UUIDv7Generator.
func WithRequestIDs(ids IDGenerator) Option {
	return func(r *Resolver) {
		r.ids = ids
	}
}

// WithTracerProvider sets where resolution spans are sent.
//
// Default: the global provider from otel.GetTracerProvider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Resolver) {
		r.tracer = tp.Tracer(instrumentationName)
	}
}
