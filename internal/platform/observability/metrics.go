// Package observability provides logging, metrics, and tracing utilities.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Metrics holds all application metrics.
type Metrics struct {
	meter metric.Meter

	// Quote serving metrics
	QuotesServed  metric.Int64Counter
	QuoteDuration metric.Float64Histogram
	QuoteErrors   metric.Int64Counter

	// Upstream rate fetch metrics
	RateFetches     metric.Int64Counter
	RateFetchErrors metric.Int64Counter
	RateDuration    metric.Float64Histogram

	// Discovery probe metrics
	ProbeFallbacks metric.Int64Counter

	// Rate monitor metrics
	AlertsPublished metric.Int64Counter
	RateDeviation   metric.Float64Histogram

	// RPC endpoint metrics
	RPCEndpointHealth metric.Int64Gauge

	// Cache metrics
	CacheHits   metric.Int64Counter
	CacheMisses metric.Int64Counter

	// Circuit breaker metrics
	CircuitBreakerState metric.Int64Gauge

	// Prometheus exporter backing the HTTP handler
	exporter *prometheus.Exporter
}

// NewMetrics creates a Metrics instance. When disabled every recorder is a
// nil-instrument no-op.
func NewMetrics(serviceName string, enabled bool) (*Metrics, error) {
	if !enabled {
		return &Metrics{}, nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	m := &Metrics{
		meter:    provider.Meter(serviceName),
		exporter: exporter,
	}
	if err := m.initInstruments(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initInstruments() error {
	var err error

	if m.QuotesServed, err = m.meter.Int64Counter("quotes_served_total",
		metric.WithDescription("Total quote requests served")); err != nil {
		return err
	}
	if m.QuoteDuration, err = m.meter.Float64Histogram("quote_duration_seconds",
		metric.WithDescription("End-to-end quote latency")); err != nil {
		return err
	}
	if m.QuoteErrors, err = m.meter.Int64Counter("quote_errors_total",
		metric.WithDescription("Quote requests that failed, by condition")); err != nil {
		return err
	}
	if m.RateFetches, err = m.meter.Int64Counter("rate_fetches_total",
		metric.WithDescription("Upstream pricePerShare reads")); err != nil {
		return err
	}
	if m.RateFetchErrors, err = m.meter.Int64Counter("rate_fetch_errors_total",
		metric.WithDescription("Failed upstream pricePerShare reads")); err != nil {
		return err
	}
	if m.RateDuration, err = m.meter.Float64Histogram("rate_fetch_duration_seconds",
		metric.WithDescription("Upstream rate read latency")); err != nil {
		return err
	}
	if m.ProbeFallbacks, err = m.meter.Int64Counter("probe_fallbacks_total",
		metric.WithDescription("Discovery probes that needed the alternate call")); err != nil {
		return err
	}
	if m.AlertsPublished, err = m.meter.Int64Counter("alerts_published_total",
		metric.WithDescription("Rate anomaly alerts published")); err != nil {
		return err
	}
	if m.RateDeviation, err = m.meter.Float64Histogram("rate_deviation_bps",
		metric.WithDescription("Observed per-share rate deviation in basis points")); err != nil {
		return err
	}
	if m.RPCEndpointHealth, err = m.meter.Int64Gauge("rpc_endpoint_healthy",
		metric.WithDescription("Per-endpoint health (1 healthy, 0 unhealthy)")); err != nil {
		return err
	}
	if m.CacheHits, err = m.meter.Int64Counter("cache_hits_total",
		metric.WithDescription("Cache hits by layer")); err != nil {
		return err
	}
	if m.CacheMisses, err = m.meter.Int64Counter("cache_misses_total",
		metric.WithDescription("Cache misses by layer")); err != nil {
		return err
	}
	if m.CircuitBreakerState, err = m.meter.Int64Gauge("circuit_breaker_state",
		metric.WithDescription("Circuit breaker state (0 closed, 1 open, 2 half-open)")); err != nil {
		return err
	}
	return nil
}

// RecordQuote records one served quote request.
func (m *Metrics) RecordQuote(ctx context.Context, pair string, duration time.Duration, success bool) {
	if m.QuotesServed == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("pair", pair),
		attribute.Bool("success", success),
	)
	m.QuotesServed.Add(ctx, 1, attrs)
	m.QuoteDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordQuoteError records a failed quote with its condition name.
func (m *Metrics) RecordQuoteError(ctx context.Context, pair, condition string) {
	if m.QuoteErrors == nil {
		return
	}
	m.QuoteErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pair", pair),
		attribute.String("condition", condition),
	))
}

// RecordRateFetch records one upstream rate read.
func (m *Metrics) RecordRateFetch(ctx context.Context, vault string, duration time.Duration, err error) {
	if m.RateFetches == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("vault", vault))
	m.RateFetches.Add(ctx, 1, attrs)
	m.RateDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.RateFetchErrors.Add(ctx, 1, attrs)
	}
}

// RecordProbeFallback records a discovery probe that fell through to its
// alternate call.
func (m *Metrics) RecordProbeFallback(ctx context.Context, method string) {
	if m.ProbeFallbacks == nil {
		return
	}
	m.ProbeFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
}

// RecordAlert records one published anomaly alert.
func (m *Metrics) RecordAlert(ctx context.Context, vault string, deviationBPS float64) {
	if m.AlertsPublished == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("vault", vault))
	m.AlertsPublished.Add(ctx, 1, attrs)
	m.RateDeviation.Record(ctx, deviationBPS, attrs)
}

// SetRPCEndpointHealth sets per-endpoint health.
func (m *Metrics) SetRPCEndpointHealth(ctx context.Context, endpoint string, healthy bool) {
	if m.RPCEndpointHealth == nil {
		return
	}
	v := int64(0)
	if healthy {
		v = 1
	}
	m.RPCEndpointHealth.Record(ctx, v, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// RecordCacheHit records a cache hit for the given layer.
func (m *Metrics) RecordCacheHit(ctx context.Context, layer string) {
	if m.CacheHits == nil {
		return
	}
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("layer", layer)))
}

// RecordCacheMiss records a cache miss for the given layer.
func (m *Metrics) RecordCacheMiss(ctx context.Context, layer string) {
	if m.CacheMisses == nil {
		return
	}
	m.CacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("layer", layer)))
}

// SetCircuitBreakerState sets the state gauge for a named breaker.
func (m *Metrics) SetCircuitBreakerState(ctx context.Context, name string, state int64) {
	if m.CircuitBreakerState == nil {
		return
	}
	m.CircuitBreakerState.Record(ctx, state, metric.WithAttributes(attribute.String("breaker", name)))
}

// Handler returns the Prometheus scrape handler, or a 404 handler when
// metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if m.exporter == nil {
		return http.NotFoundHandler()
	}
	return promhttp.Handler()
}
