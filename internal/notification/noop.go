package notification

import (
	"context"

	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/monitor"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/platform/observability"
)

// NoOpPublisher logs alerts instead of delivering them. Used when SNS is not
// configured (local development, testing).
type NoOpPublisher struct {
	logger *observability.Logger
}

// NewNoOpPublisher creates a log-only publisher.
func NewNoOpPublisher(logger *observability.Logger) *NoOpPublisher {
	return &NoOpPublisher{logger: logger}
}

// PublishAlert logs the alert.
// Implements monitor.AlertPublisher.
func (p *NoOpPublisher) PublishAlert(ctx context.Context, alert *monitor.Alert) error {
	if p.logger != nil {
		p.logger.LogWarn(ctx, "rate alert (SNS disabled)",
			"alert_id", alert.AlertID,
			"kind", alert.Kind.String(),
			"adapter", alert.AdapterName,
			"vault", alert.VaultAddress,
			"deviation_bps", alert.DeviationBPS,
		)
	}
	return nil
}

// CircuitBreakerState returns "closed" since there is no breaker.
func (p *NoOpPublisher) CircuitBreakerState() string {
	return "closed"
}

// ResetCircuitBreaker is a no-op.
func (p *NoOpPublisher) ResetCircuitBreaker() {}
