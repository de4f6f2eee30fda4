package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"applicant-interview/internal/bootstrap"
	"applicant-interview/internal/queue"
	"applicant-interview/internal/shared/config"
	"applicant-interview/internal/shared/metrics"
	"applicant-interview/internal/shared/telemetry"
	"applicant-interview/internal/workerproc"
)

const receiveCountAttr = "ApproximateReceiveCount"

func main() {
	cfg := config.Load()
	if _, err := telemetry.Init(cfg.LogJSON, cfg.LogDebug); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer telemetry.Sync()

	queueURL := strings.TrimSpace(cfg.TranscriptQueueURL)
	if queueURL == "" {
		log.Fatal("TRANSCRIPT_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	processor, err := bootstrap.BuildWorker(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap worker: %v", err)
	}

	telemetry.Info("worker.start", map[string]any{
		"queue":       queueURL,
		"concurrency": cfg.WorkerConcurrency,
		"visibility":  cfg.QueueVisibility.String(),
	})
	run(ctx, sqsClient, queueURL, processor, cfg)
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type messageHandler interface {
	HandleMessage(ctx context.Context, body string) (queue.Message, error)
}

func run(ctx context.Context, client sqsAPI, queueURL string, handler messageHandler, cfg config.Config) {
	sem := make(chan struct{}, max(1, cfg.WorkerConcurrency))
	var wg sync.WaitGroup

pollLoop:
	for ctx.Err() == nil {
		resp, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(cfg.QueueVisibility.Seconds()),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName(receiveCountAttr)},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err})
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			metrics.IncTranscriptEventReceived()
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(context.WithoutCancel(ctx), client, queueURL, handler, m)
			}(msg)
		}
	}

	telemetry.Info("worker.shutdown", map[string]any{"timeout": cfg.ShutdownTimeout.String()})
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	select {
	case <-waitDone:
	case <-shutdownCtx.Done():
		telemetry.Warn("worker.shutdown_timeout", nil)
	}
}

func handleMessage(ctx context.Context, client sqsAPI, queueURL string, handler messageHandler, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	decoded, err := handler.HandleMessage(ctx, body)
	fields := baseFields(msg, decoded)
	if err != nil {
		fields["error"] = err.Error()
		if workerproc.Unrecoverable(err) {
			meta := workerproc.ComputeMeta(body)
			fields["body_len"] = meta.BodyLen
			fields["body_sha256"] = meta.BodySHA
			telemetry.Error("worker.transcript.invalid", fields)
			if deleteMessage(ctx, client, queueURL, msg, fields) {
				metrics.IncTranscriptEventUnrecoverable()
			}
			return
		}
		telemetry.Error("worker.transcript.failed", fields)
		metrics.IncTranscriptEventFailed()
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, fields) {
		telemetry.Info("worker.transcript.delivered", fields)
		metrics.IncTranscriptEventDelivered()
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, fields map[string]any) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.transcript.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields["error"] = err.Error()
		telemetry.Error("worker.transcript.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, decoded queue.Message) map[string]any {
	fields := map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if decoded.SessionID != "" {
		fields["session_id"] = decoded.SessionID
	}
	if decoded.ThreadID != "" {
		fields["thread_id"] = decoded.ThreadID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	raw := msg.Attributes[receiveCountAttr]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}
