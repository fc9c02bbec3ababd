package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer decouples application code from the tracing backend.
type Tracer interface {
	// StartSpan creates a new span as a child of the span in ctx.
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
}

// Span represents a unit of work in a trace.
type Span interface {
	// End completes the span.
	End()

	// SetAttributes adds attributes to the span.
	SetAttributes(attrs ...attribute.KeyValue)

	// AddEvent records an event with optional attributes.
	AddEvent(name string, attrs ...attribute.KeyValue)

	// NoticeError records an error and sets the span status to Error.
	NoticeError(err error)
}

// SpanOption configures span creation.
type SpanOption func(*spanConfig)

type spanConfig struct {
	kind       trace.SpanKind
	attributes []attribute.KeyValue
}

// WithSpanKind sets the span kind.
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return func(c *spanConfig) {
		c.kind = kind
	}
}

// WithAttributes adds attributes at span creation time.
func WithAttributes(attrs ...attribute.KeyValue) SpanOption {
	return func(c *spanConfig) {
		c.attributes = append(c.attributes, attrs...)
	}
}

// --- OTEL implementation ---

type otelTracer struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer backed by the global OpenTelemetry provider.
func NewTracer(name string) Tracer {
	return &otelTracer{tracer: otel.Tracer(name)}
}

func (t *otelTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	cfg := &spanConfig{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(cfg)
	}

	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(cfg.kind),
		trace.WithAttributes(cfg.attributes...),
	)
	return ctx, &otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() {
	s.span.End()
}

func (s *otelSpan) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

func (s *otelSpan) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

func (s *otelSpan) NoticeError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, fmt.Sprintf("%v", err))
}

// --- No-op implementation ---

type noopTracer struct{}

type noopSpan struct{}

// NewNoopTracer returns a Tracer that records nothing.
func NewNoopTracer() Tracer {
	return noopTracer{}
}

func (noopTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopSpan) End()                                   {}
func (noopSpan) SetAttributes(...attribute.KeyValue)    {}
func (noopSpan) AddEvent(string, ...attribute.KeyValue) {}
func (noopSpan) NoticeError(error)                      {}
