package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"applicant-interview/internal/assistant"
	"applicant-interview/internal/assistant/gemini"
	"applicant-interview/internal/assistant/openai"
	"applicant-interview/internal/interview"
	"applicant-interview/internal/notify"
	"applicant-interview/internal/queue"
	"applicant-interview/internal/shared/config"
	"applicant-interview/internal/shared/server"
	"applicant-interview/internal/shared/storage/object"
	localstore "applicant-interview/internal/shared/storage/object/local"
	miniostore "applicant-interview/internal/shared/storage/object/minio"
	s3store "applicant-interview/internal/shared/storage/object/s3"
	"applicant-interview/internal/shared/telemetry"
	"applicant-interview/internal/transcript"
	"applicant-interview/internal/vacancies"
	"applicant-interview/internal/workerproc"
)

const sweepInterval = time.Minute

// App holds shared dependencies and the wired router.
type App struct {
	Config    config.Config
	Router    *gin.Engine
	Catalog   *vacancies.Catalog
	Store     object.ObjectStore
	Assistant assistant.Client
	Notifier  *notify.Dispatcher
	Queue     queue.Client
	Registry  *interview.Registry
	Service   *interview.Service
}

type buildOptions struct {
	assistant assistant.Client
	store     object.ObjectStore
	channels  []notify.Notifier
	queue     queue.Client
}

// Option overrides a collaborator Build would otherwise construct from config.
type Option func(*buildOptions)

// WithAssistant skips provider construction and uses c.
func WithAssistant(c assistant.Client) Option {
	return func(o *buildOptions) { o.assistant = c }
}

// WithStore skips object store construction and uses s.
func WithStore(s object.ObjectStore) Option {
	return func(o *buildOptions) { o.store = s }
}

// WithNotifiers replaces the configured notification channels.
func WithNotifiers(channels ...notify.Notifier) Option {
	return func(o *buildOptions) { o.channels = channels }
}

// WithQueue replaces the SQS publisher.
func WithQueue(q queue.Client) Option {
	return func(o *buildOptions) { o.queue = q }
}

// Build prepares every collaborator from cfg and wires the router.
// Background work is bound to ctx; cancel it to stop the session sweeper.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	catalog, err := vacancies.Load(cfg.VacanciesPath)
	if err != nil {
		return nil, err
	}
	telemetry.Info("catalog.loaded", map[string]any{"path": cfg.VacanciesPath, "vacancies": catalog.Len()})

	store := bo.store
	if store == nil {
		if store, err = buildStore(ctx, cfg); err != nil {
			return nil, err
		}
	}

	client := bo.assistant
	if client == nil {
		if client, err = buildAssistant(ctx, cfg); err != nil {
			return nil, err
		}
	}

	channels := bo.channels
	if channels == nil {
		if channels, err = buildChannels(cfg); err != nil {
			return nil, err
		}
	}
	dispatcher := notify.NewDispatcher(cfg.NotifyEnabled, cfg.NotifyRecipient, channels...)
	if cfg.NotifyEnabled && !dispatcher.Enabled() {
		telemetry.Warn("notify.no_channels", nil)
	}

	queueClient := bo.queue
	if queueClient == nil && strings.TrimSpace(cfg.TranscriptQueueURL) != "" {
		sqsClient, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.TranscriptQueueURL)
		if err != nil {
			return nil, err
		}
		queueClient = sqsClient
	}

	registry := interview.NewRegistry(cfg.SessionIdleTTL, nil)
	go registry.Run(ctx, sweepInterval)

	svc := interview.NewService(interview.Deps{
		Catalog:    catalog,
		Assistant:  client,
		Writer:     transcript.NewWriter(store),
		Registry:   registry,
		Notifier:   dispatcher,
		Queue:      queueClient,
		CloseAfter: cfg.CloseAfter,
	})

	router := server.NewRouter(cfg,
		&interview.Page{Catalog: catalog, APIBase: server.APIPrefix},
		vacancies.NewHandler(catalog),
		interview.NewHandler(svc, cfg.MaxUploadBytes),
	)

	return &App{
		Config:    cfg,
		Router:    router,
		Catalog:   catalog,
		Store:     store,
		Assistant: client,
		Notifier:  dispatcher,
		Queue:     queueClient,
		Registry:  registry,
		Service:   svc,
	}, nil
}

// BuildWorker prepares the transcript worker: the same object store the API writes to and
// the configured notification channels.
func BuildWorker(ctx context.Context, cfg config.Config, opts ...Option) (*workerproc.Processor, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}
	store := bo.store
	if store == nil {
		var err error
		if store, err = buildStore(ctx, cfg); err != nil {
			return nil, err
		}
	}
	channels := bo.channels
	if channels == nil {
		var err error
		if channels, err = buildChannels(cfg); err != nil {
			return nil, err
		}
	}
	dispatcher := notify.NewDispatcher(true, cfg.NotifyRecipient, channels...)
	if !dispatcher.Enabled() {
		return nil, fmt.Errorf("worker needs EMAIL_ADDRESS or TELEGRAM_BOT_TOKEN")
	}
	return &workerproc.Processor{Store: store, Notifier: dispatcher}, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.TranscriptStore {
	case "s3":
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		if err != nil {
			return nil, fmt.Errorf("init s3 store: %w", err)
		}
		return store, nil
	case "minio":
		store, err := miniostore.New(miniostore.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure minio bucket: %w", err)
		}
		return store, nil
	default:
		return localstore.New(cfg.DialogsDir), nil
	}
}

func buildAssistant(ctx context.Context, cfg config.Config) (assistant.Client, error) {
	switch cfg.AssistantProvider {
	case "gemini":
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		telemetry.Info("assistant.ready", map[string]any{"provider": "gemini", "model": client.Model()})
		return client, nil
	default:
		client, err := openai.NewClient(openai.Options{
			APIKey:      cfg.OpenAIAPIKey,
			AssistantID: cfg.AssistantID,
			BaseURL:     cfg.OpenAIBaseURL,
			Timeout:     cfg.OpenAITimeout,
			Poll: assistant.PollPolicy{
				Initial: cfg.PollInitialInterval,
				Max:     cfg.PollMaxInterval,
				Timeout: cfg.PollTimeout,
			},
		})
		if err != nil {
			return nil, err
		}
		if err := client.Verify(ctx); err != nil {
			return nil, err
		}
		return client, nil
	}
}

func buildChannels(cfg config.Config) ([]notify.Notifier, error) {
	channels := []notify.Notifier{}
	if strings.TrimSpace(cfg.EmailAddress) != "" {
		channels = append(channels, notify.NewEmail(notify.EmailOptions{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.EmailAddress,
			Password: cfg.EmailPass,
		}))
	}
	if strings.TrimSpace(cfg.TelegramBotToken) != "" {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			return nil, err
		}
		channels = append(channels, tg)
	}
	return channels, nil
}
