// Package telemetry wires the OpenTelemetry spans spec.md §6.3 requires
// (server.signal.*, agent.cmd.*, server.directive.*, server.child.*,
// server.schedule.fired, server.cron.fired, server.queue.*) and satisfies
// internal/server.Tracer so a Server never imports this package directly.
//
// Grounded on marcus-qen-legator/internal/telemetry/tracing.go's
// StartXSpan/EndXSpan pairing convention (Start returns a context plus the
// started span; a matching End function closes it out with outcome
// attributes) — generalized here into one StartSpan/end pair parameterized
// by name and key/value attribute pairs instead of one hand-written
// function per span kind, since this runtime's span set is driven by
// directive/signal kind rather than a fixed handful of LLM-call stages.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "jido.io/runtime"

// Tracer wraps an OTel trace.Tracer and satisfies internal/server.Tracer
// (and, by the same signature, any other package's matching narrow
// interface).
type Tracer struct {
	tracer trace.Tracer
}

// New returns a Tracer backed by the currently configured global
// TracerProvider. Call InitProvider first to export spans anywhere; with
// no provider configured, OTel's default no-op provider makes this free.
func New() *Tracer {
	return &Tracer{tracer: otel.Tracer(tracerName)}
}

// StartSpan starts a span named name with attrs interpreted as alternating
// key/value pairs (the same convention as log/slog), and returns the
// child context plus an end func that records err (if non-nil) before
// closing the span.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...any) (context.Context, func(err error)) {
	childCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))
	return childCtx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func toAttributes(kvs []any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			continue
		}
		switch v := kvs[i+1].(type) {
		case string:
			out = append(out, attribute.String(key, v))
		case int:
			out = append(out, attribute.Int(key, v))
		case int64:
			out = append(out, attribute.Int64(key, v))
		case float64:
			out = append(out, attribute.Float64(key, v))
		case bool:
			out = append(out, attribute.Bool(key, v))
		default:
			out = append(out, attribute.String(key, fmt.Sprintf("%v", v)))
		}
	}
	return out
}

// InitProvider configures the global TracerProvider with an OTLP/HTTP
// exporter pointed at endpoint, tagging every span with serviceName and
// version. If endpoint is empty, tracing stays on OTel's default no-op
// provider and this returns a no-op shutdown func (spec.md's telemetry is
// ambient observability, never load-bearing for correctness, so an unset
// endpoint must never fail startup).
func InitProvider(ctx context.Context, endpoint, serviceName, version string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
