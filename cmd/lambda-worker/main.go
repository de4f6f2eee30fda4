package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"applicant-interview/internal/bootstrap"
	"applicant-interview/internal/queue"
	"applicant-interview/internal/shared/config"
	"applicant-interview/internal/shared/telemetry"
	"applicant-interview/internal/workerproc"
)

type messageHandler interface {
	HandleMessage(ctx context.Context, body string) (queue.Message, error)
}

var (
	initOnce  sync.Once
	initErr   error
	processor messageHandler
)

func initProcessor() {
	cfg := config.Load()
	if _, err := telemetry.Init(true, cfg.LogDebug); err != nil {
		initErr = err
		return
	}
	p, err := bootstrap.BuildWorker(context.Background(), cfg)
	if err != nil {
		initErr = err
		return
	}
	processor = p
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initProcessor)
	if initErr != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": initErr})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return handleBatch(ctx, processor, event), nil
}

// handleBatch reports failed deliveries back to SQS. Malformed events are dropped.
func handleBatch(ctx context.Context, h messageHandler, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		msg, err := h.HandleMessage(ctx, record.Body)
		if err == nil {
			continue
		}
		fields := map[string]any{
			"sqs_message_id": record.MessageId,
			"thread_id":      msg.ThreadID,
			"error":          err,
		}
		if workerproc.Unrecoverable(err) {
			telemetry.Error("worker.transcript.invalid", fields)
			continue
		}
		telemetry.Error("worker.transcript.failed", fields)
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func main() {
	lambda.Start(handler)
}
