// Package telemetry wraps OpenTelemetry span creation for the commit
// protocol's phases so that a single commit attempt, possibly spread
// across several storage round trips, shows up as one trace.
package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const shutdownGrace = 5 * time.Second

// state is the active tracer plus whether it is backed by a real
// exporter. The zero value is a disabled, no-op state so that callers
// in tests or commands that never call Init still get a working
// Tracer().
type state struct {
	tracer  trace.Tracer
	enabled bool
}

var active atomic.Pointer[state]

func init() {
	active.Store(&state{tracer: noop.NewTracerProvider().Tracer("commitcoord")})
}

// Init wires cfg into the package's active tracer and returns a
// shutdown func that flushes and closes the exporter. The shutdown
// func is always safe to call, including when tracing is disabled.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if !cfg.Enabled {
		active.Store(&state{tracer: noop.NewTracerProvider().Tracer(cfg.ServiceName)})
		return func(context.Context) error { return nil }, nil
	}

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	active.Store(&state{tracer: provider.Tracer(cfg.ServiceName), enabled: true})

	return func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownGrace)
		defer cancel()
		return provider.Shutdown(shutdownCtx)
	}, nil
}

// newProvider builds the OTLP-gRPC exporter, resource, and sampler
// described by cfg and wraps them in a TracerProvider. Split out from
// Init so the construction logic can be exercised independently of the
// package's global tracer state.
func newProvider(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	exporter, err := buildExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(buildSampler(cfg.SampleRate)),
	), nil
}

func buildExporter(ctx context.Context, cfg Config) (*otlptracegrpc.Exporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts,
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func buildSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Tracer returns the package's active tracer, a no-op tracer until
// Init has run.
func Tracer() trace.Tracer {
	return active.Load().tracer
}

// IsEnabled reports whether the active tracer is backed by a real
// exporter.
func IsEnabled() bool {
	return active.Load().enabled
}

// StartSpan starts a span named for one protocol phase, e.g.
// "coordinator.commit" or "coordinator.precommit".
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// RecordError records err on the span in ctx and marks it failed. A
// nil err is a no-op.
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetAttributes sets attributes on the current span in ctx.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
