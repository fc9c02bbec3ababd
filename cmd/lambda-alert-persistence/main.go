package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/monitor"
)

var (
	dynamoClient *dynamodb.Client
	tableName    string
)

func init() {
	// Load AWS SDK config
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		panic(fmt.Sprintf("failed to load AWS config: %v", err))
	}

	// Initialize DynamoDB client
	dynamoClient = dynamodb.NewFromConfig(cfg)

	tableName = os.Getenv("TABLE_NAME")
	if tableName == "" {
		tableName = "oracle-rate-alerts" // Default for LocalStack
	}

	fmt.Printf("[INIT] Alert persistence Lambda initialized - Table: %s\n", tableName)
}

// AlertRecord is the DynamoDB shape of a rate alert. Rates stay decimal
// strings so DynamoDB never truncates them.
type AlertRecord struct {
	AlertID      string `dynamodbav:"alert_id" json:"alert_id"`
	Timestamp    int64  `dynamodbav:"timestamp" json:"timestamp"`
	Kind         string `dynamodbav:"kind" json:"kind"`
	AdapterName  string `dynamodbav:"adapter_name" json:"adapter_name"`
	VaultAddress string `dynamodbav:"vault_address" json:"vault_address"`
	PreviousRate string `dynamodbav:"previous_rate" json:"previous_rate"`
	CurrentRate  string `dynamodbav:"current_rate" json:"current_rate"`
	DeviationBPS int64  `dynamodbav:"deviation_bps" json:"deviation_bps"`
	ThresholdBPS int64  `dynamodbav:"threshold_bps" json:"threshold_bps"`
	Detail       string `dynamodbav:"detail" json:"detail"`
	TTL          int64  `dynamodbav:"ttl" json:"ttl"` // Auto-expire after 30 days
}

// Handler processes SQS events and writes alerts to DynamoDB
func Handler(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	recordCount := len(sqsEvent.Records)
	fmt.Printf("[HANDLER] Processing %d SQS records\n", recordCount)

	var batchItemFailures []events.SQSBatchItemFailure
	successCount := 0

	for _, record := range sqsEvent.Records {
		// Parse SNS message from SQS record body
		var snsMessage struct {
			Message string `json:"Message"`
		}

		if err := json.Unmarshal([]byte(record.Body), &snsMessage); err != nil {
			fmt.Printf("[ERROR] Failed to parse SQS body: %v\n", err)
			batchItemFailures = append(batchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
			continue
		}

		// Parse alert from SNS message
		var alert monitor.Alert
		if err := json.Unmarshal([]byte(snsMessage.Message), &alert); err != nil {
			fmt.Printf("[ERROR] Failed to parse alert: %v\n", err)
			batchItemFailures = append(batchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
			continue
		}

		// Create DynamoDB record with TTL
		alertRecord := AlertRecord{
			AlertID:      alert.AlertID,
			Timestamp:    alert.Timestamp,
			Kind:         alert.Kind.String(),
			AdapterName:  alert.AdapterName,
			VaultAddress: alert.VaultAddress,
			PreviousRate: alert.PreviousRate,
			CurrentRate:  alert.CurrentRate,
			DeviationBPS: alert.DeviationBPS,
			ThresholdBPS: alert.ThresholdBPS,
			Detail:       alert.Detail,
			TTL:          time.Now().Unix() + (30 * 24 * 60 * 60),
		}

		// Write to DynamoDB
		if err := writeToDynamoDB(ctx, alertRecord); err != nil {
			fmt.Printf("[ERROR] Failed to write to DynamoDB: %v - AlertID: %s\n",
				err, alertRecord.AlertID)
			batchItemFailures = append(batchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
			continue
		}

		successCount++
		fmt.Printf("[SUCCESS] Persisted alert: %s (Kind: %s, Adapter: %s, Deviation: %d bps)\n",
			alertRecord.AlertID,
			alertRecord.Kind,
			alertRecord.AdapterName,
			alertRecord.DeviationBPS,
		)
	}

	fmt.Printf("[SUMMARY] Processed %d records - Success: %d, Failed: %d\n",
		recordCount, successCount, len(batchItemFailures))

	// Return partial batch failure response
	// SQS will retry only the failed messages
	return events.SQSEventResponse{
		BatchItemFailures: batchItemFailures,
	}, nil
}

// writeToDynamoDB writes an alert record to DynamoDB
func writeToDynamoDB(ctx context.Context, record AlertRecord) error {
	// Marshal record to DynamoDB attribute values
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	// Put item
	_, err = dynamoClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}

	return nil
}

func main() {
	lambda.Start(Handler)
}
