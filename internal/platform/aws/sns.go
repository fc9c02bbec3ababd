package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/platform/observability"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/platform/resilience"
)

// SNSClient wraps the SNS client with retry and a circuit breaker. Alert
// delivery must not take the quote path down with it.
type SNSClient struct {
	client         *sns.Client
	circuitBreaker *resilience.CircuitBreaker
	retryConfig    resilience.RetryConfig
	logger         *observability.Logger
	metrics        *observability.Metrics
}

// SNSClientConfig holds SNS client configuration
type SNSClientConfig struct {
	AWSConfig      aws.Config
	Logger         *observability.Logger
	Metrics        *observability.Metrics
	RetryConfig    *resilience.RetryConfig
	CircuitBreaker *resilience.CircuitBreaker
}

// NewSNSClient creates an SNS client with resilience defaults
func NewSNSClient(cfg SNSClientConfig) *SNSClient {
	client := sns.NewFromConfig(cfg.AWSConfig)

	retryConfig := resilience.DefaultRetryConfig()
	if cfg.RetryConfig != nil {
		retryConfig = *cfg.RetryConfig
	}

	circuitBreaker := cfg.CircuitBreaker
	if circuitBreaker == nil {
		circuitBreaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "sns",
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
			OnStateChange: func(from, to resilience.State) {
				if cfg.Logger != nil {
					cfg.Logger.Info("SNS circuit breaker state changed",
						"from", from.String(),
						"to", to.String(),
					)
				}
				if cfg.Metrics != nil {
					cfg.Metrics.SetCircuitBreakerState(context.Background(), "sns", int64(to))
				}
			},
		})
	}

	return &SNSClient{
		client:         client,
		circuitBreaker: circuitBreaker,
		retryConfig:    retryConfig,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
	}
}

// Publish publishes a message to an SNS topic through the breaker with retry
func (s *SNSClient) Publish(ctx context.Context, topicARN string, message any, attributes map[string]string) error {
	start := time.Now()

	messageJSON, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = s.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Retry(ctx, s.retryConfig, resilience.IsRetryable, func(ctx context.Context) error {
			return s.publishOnce(ctx, topicARN, string(messageJSON), attributes)
		})
	})

	if err != nil && s.logger != nil {
		s.logger.LogError(ctx, "SNS publish failed", err,
			"topic_arn", topicARN,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	return err
}

func (s *SNSClient) publishOnce(ctx context.Context, topicARN, message string, attributes map[string]string) error {
	messageAttributes := make(map[string]types.MessageAttributeValue, len(attributes))
	for k, v := range attributes {
		messageAttributes[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}

	_, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(topicARN),
		Message:           aws.String(message),
		MessageAttributes: messageAttributes,
	})
	if err != nil {
		return fmt.Errorf("SNS publish failed: %w", err)
	}
	return nil
}

// CircuitBreakerState returns the current breaker state
func (s *SNSClient) CircuitBreakerState() resilience.State {
	return s.circuitBreaker.State()
}

// ResetCircuitBreaker forces the breaker closed
func (s *SNSClient) ResetCircuitBreaker() {
	s.circuitBreaker.Reset()
}
