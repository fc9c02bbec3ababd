// Package monitor samples each configured vault's per-share rate on an
// interval and raises alerts when a rate is unreadable, zero, or moved more
// than the deviation threshold since the previous sample. The monitor only
// observes; it never feeds sampled rates back into the quote path.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/money"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/platform/observability"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/platform/worker"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/vault"
)

// AlertPublisher delivers alerts. Defined here, where it is consumed.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert *Alert) error
}

// Target is one vault under observation.
type Target struct {
	Name   string
	Vault  common.Address
	Reader vault.Reader
}

// Config holds monitor configuration.
type Config struct {
	Targets   []Target
	Publisher AlertPublisher

	// Interval between sampling rounds
	Interval time.Duration

	// DeviationThreshold is the rate movement, between consecutive
	// samples, that triggers an alert
	DeviationThreshold money.BPS

	// Workers bounds concurrent vault reads per round
	Workers int

	Logger  *observability.Logger
	Metrics *observability.Metrics
	Tracer  observability.Tracer
}

// Monitor runs the sampling loop.
type Monitor struct {
	targets   []Target
	publisher AlertPublisher
	interval  time.Duration
	threshold money.BPS
	workers   int
	logger    *observability.Logger
	metrics   *observability.Metrics
	tracer    observability.Tracer

	mu        sync.Mutex
	lastRates map[string]*uint256.Int
}

// sample is one target's rate read outcome.
type sample struct {
	target Target
	rate   *uint256.Int
	err    error
}

// New creates a monitor.
func New(cfg Config) (*Monitor, error) {
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("at least one target is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("alert publisher is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoopTracer()
	}

	return &Monitor{
		targets:   cfg.Targets,
		publisher: cfg.Publisher,
		interval:  cfg.Interval,
		threshold: cfg.DeviationThreshold,
		workers:   cfg.Workers,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
		lastRates: make(map[string]*uint256.Int),
	}, nil
}

// Run samples until ctx is cancelled. The first round only seeds baselines;
// deviations are judged from the second round on.
func (m *Monitor) Run(ctx context.Context) error {
	if m.logger != nil {
		m.logger.LogInfo(ctx, "rate monitor started",
			"targets", len(m.targets),
			"interval", m.interval.String(),
			"threshold_bps", m.threshold.Int64(),
		)
	}

	pool := worker.NewPool[sample](ctx, m.workers, len(m.targets))
	defer pool.Close()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.runRound(ctx, pool)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.runRound(ctx, pool)
		}
	}
}

// runRound samples every target once and evaluates the results.
func (m *Monitor) runRound(ctx context.Context, pool *worker.Pool[sample]) {
	ctx, span := m.tracer.StartSpan(ctx, "Monitor.runRound")
	defer span.End()

	tasks := make([]worker.Task[sample], 0, len(m.targets))
	for _, target := range m.targets {
		t := target
		tasks = append(tasks, worker.Task[sample]{
			ID: t.Name,
			Run: func(ctx context.Context) (sample, error) {
				start := time.Now()
				rate, err := t.Reader.Rate(ctx)
				if m.metrics != nil {
					m.metrics.RecordRateFetch(ctx, t.Vault.Hex(), time.Since(start), err)
				}
				return sample{target: t, rate: rate, err: err}, nil
			},
		})
	}

	for _, result := range pool.SubmitAndWait(tasks) {
		m.evaluate(ctx, result.Value)
	}
}

// evaluate compares one sample against the target's baseline and publishes
// whatever alerts it warrants.
func (m *Monitor) evaluate(ctx context.Context, s sample) {
	if s.err != nil {
		alert := NewAlert(KindFetchFailure, s.target.Name, s.target.Vault)
		alert.Detail = s.err.Error()
		m.publish(ctx, alert)
		return
	}

	if s.rate.IsZero() {
		alert := NewAlert(KindZeroRate, s.target.Name, s.target.Vault)
		alert.SetRates(m.baseline(s.target.Name), s.rate, 0, m.threshold)
		m.publish(ctx, alert)
		m.setBaseline(s.target.Name, s.rate)
		return
	}

	previous := m.baseline(s.target.Name)
	m.setBaseline(s.target.Name, s.rate)
	if previous == nil {
		return
	}

	deviation := money.DeviationBPS(previous, s.rate)
	if deviation.GreaterThan(m.threshold) {
		alert := NewAlert(KindDeviation, s.target.Name, s.target.Vault)
		alert.SetRates(previous, s.rate, deviation, m.threshold)
		m.publish(ctx, alert)
	}
}

func (m *Monitor) publish(ctx context.Context, alert *Alert) {
	if m.metrics != nil {
		m.metrics.RecordAlert(ctx, alert.VaultAddress, float64(alert.DeviationBPS))
	}
	if m.logger != nil {
		m.logger.LogWarn(ctx, "rate alert raised",
			"kind", alert.Kind.String(),
			"adapter", alert.AdapterName,
			"vault", alert.VaultAddress,
			"deviation_bps", alert.DeviationBPS,
		)
	}

	if err := m.publisher.PublishAlert(ctx, alert); err != nil && m.logger != nil {
		m.logger.LogError(ctx, "alert publish failed", err,
			"alert_id", alert.AlertID,
		)
	}
}

func (m *Monitor) baseline(name string) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRates[name]
}

func (m *Monitor) setBaseline(name string, rate *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRates[name] = rate.Clone()
}
