// Package notification delivers rate alerts to SNS for downstream consumers
// (persistence lambda, webhook lambda, paging).
package notification

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/monitor"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/platform/aws"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/platform/observability"
)

// Publisher publishes rate alerts to an SNS topic
type Publisher struct {
	snsClient *aws.SNSClient
	topicARN  string
	logger    *observability.Logger
	metrics   *observability.Metrics
	tracer    observability.Tracer
}

// PublisherConfig holds publisher configuration
type PublisherConfig struct {
	SNSClient *aws.SNSClient
	TopicARN  string
	Logger    *observability.Logger
	Metrics   *observability.Metrics
	Tracer    observability.Tracer
}

// NewPublisher creates an alert publisher
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.SNSClient == nil {
		return nil, fmt.Errorf("SNS client is required")
	}
	if cfg.TopicARN == "" {
		return nil, fmt.Errorf("SNS topic ARN is required")
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoopTracer()
	}

	return &Publisher{
		snsClient: cfg.SNSClient,
		topicARN:  cfg.TopicARN,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		tracer:    cfg.Tracer,
	}, nil
}

// PublishAlert publishes an alert to SNS.
// Implements monitor.AlertPublisher.
func (p *Publisher) PublishAlert(ctx context.Context, alert *monitor.Alert) error {
	ctx, span := p.tracer.StartSpan(
		ctx,
		"Publisher.PublishAlert",
		observability.WithAttributes(
			attribute.String("alert_id", alert.AlertID),
			attribute.String("kind", alert.Kind.String()),
			attribute.String("topic_arn", p.topicARN),
		),
	)
	defer span.End()

	if err := p.snsClient.Publish(ctx, p.topicARN, alert, alert.Attributes()); err != nil {
		span.NoticeError(err)
		if p.logger != nil {
			p.logger.LogError(ctx, "failed to publish alert to SNS", err,
				"alert_id", alert.AlertID,
				"topic_arn", p.topicARN,
			)
		}
		return fmt.Errorf("SNS publish failed: %w", err)
	}

	if p.logger != nil {
		p.logger.LogInfo(ctx, "published alert to SNS",
			"alert_id", alert.AlertID,
			"kind", alert.Kind.String(),
			"adapter", alert.AdapterName,
			"topic_arn", p.topicARN,
		)
	}

	return nil
}

// CircuitBreakerState returns the SNS breaker state
func (p *Publisher) CircuitBreakerState() string {
	return p.snsClient.CircuitBreakerState().String()
}

// ResetCircuitBreaker forces the SNS breaker closed
func (p *Publisher) ResetCircuitBreaker() {
	p.snsClient.ResetCircuitBreaker()
	if p.logger != nil {
		p.logger.Info("reset SNS circuit breaker")
	}
}
