package resolve

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "typedb.reasoner.resolve"

// Package-level meter for resolution. Tracers are per Resolver.
var meter = otel.Meter(instrumentationName)

// Metrics for resolution.
var (
	answersTotal     metric.Int64Counter
	expansionsTotal  metric.Int64Counter
	cycleSkipsTotal  metric.Int64Counter
	iterationsPerRun metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		answersTotal, err = meter.Int64Counter(
			"reasoner_answers_total",
			metric.WithDescription("Total number of answers returned by resolution"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		expansionsTotal, err = meter.Int64Counter(
			"reasoner_rule_expansions_total",
			metric.WithDescription("Total number of rule applications explored"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cycleSkipsTotal, err = meter.Int64Counter(
			"reasoner_cycle_skips_total",
			metric.WithDescription("Total number of rule applications skipped as cycles"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		iterationsPerRun, err = meter.Int64Histogram(
			"reasoner_iterations",
			metric.WithDescription("Iterations needed to reach a fixpoint per query"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordRun records the metrics of one finished resolution.
func recordRun(ctx context.Context, s Stats) {
	if err := initMetrics(); err != nil {
		return
	}
	answersTotal.Add(ctx, s.Answers)
	expansionsTotal.Add(ctx, s.RuleExpansions)
	cycleSkipsTotal.Add(ctx, s.CycleSkips)
	iterationsPerRun.Record(ctx, s.Iterations)
}

// startResolveSpan creates a span for one resolution.
func startResolveSpan(ctx context.Context, tracer trace.Tracer, requestID, query string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Resolver.Resolve",
		trace.WithAttributes(
			attribute.String("reasoner.request_id", requestID),
			attribute.String("reasoner.query", query),
		),
	)
}

// endResolveSpan sets the result attributes on a resolution span and ends
// it.
func endResolveSpan(span trace.Span, s Stats, err error) {
	span.SetAttributes(
		attribute.Int64("reasoner.answers", s.Answers),
		attribute.Int64("reasoner.iterations", s.Iterations),
		attribute.Int64("reasoner.rule_expansions", s.RuleExpansions),
		attribute.Int64("reasoner.cycle_skips", s.CycleSkips),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
