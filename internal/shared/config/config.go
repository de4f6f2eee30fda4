package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string

	VacanciesPath string
	DialogsDir    string

	TranscriptStore string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioUseSSL     bool

	AssistantProvider string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAITimeout     time.Duration
	AssistantID       string
	GeminiAPIKey      string
	GeminiModel       string

	PollInitialInterval time.Duration
	PollMaxInterval     time.Duration
	PollTimeout         time.Duration

	NotifyEnabled    bool
	SMTPHost         string
	SMTPPort         int
	EmailAddress     string
	EmailPass        string
	NotifyRecipient  string
	TelegramBotToken string
	TelegramChatID   int64

	TranscriptQueueURL string
	WorkerConcurrency  int
	QueueVisibility    time.Duration
	ShutdownTimeout    time.Duration

	CloseAfter     time.Duration
	SessionIdleTTL time.Duration
	MaxUploadBytes int64

	LogJSON  bool
	LogDebug bool
}

// New returns a viper instance with every key defaulted and bound to the environment.
// Callers may bind flags on it before calling FromViper.
func New() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("PORT", "3000")
	v.SetDefault("ENV", "dev")
	v.SetDefault("CORS_ALLOW_ORIGINS", "http://localhost:3000")
	v.SetDefault("VACANCIES_PATH", "vacancies.json")
	v.SetDefault("DIALOGS_DIR", "dialogs")

	v.SetDefault("TRANSCRIPT_STORE", "local")
	v.SetDefault("AWS_REGION", "")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_PREFIX", "dialogs")
	v.SetDefault("SSE_KMS_KEY_ID", "")
	v.SetDefault("MINIO_ENDPOINT", "")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "dialogs")
	v.SetDefault("MINIO_USE_SSL", false)

	v.SetDefault("ASSISTANT_PROVIDER", "openai")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_TIMEOUT_SECONDS", 120)
	v.SetDefault("ASSISTANT_ID", "")
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "")

	v.SetDefault("POLL_INITIAL_INTERVAL", "250ms")
	v.SetDefault("POLL_MAX_INTERVAL", "5s")
	v.SetDefault("POLL_TIMEOUT", "3m")

	v.SetDefault("NOTIFY_ENABLED", false)
	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 465)
	v.SetDefault("EMAIL_ADDRESS", "")
	v.SetDefault("EMAIL_PASS", "")
	v.SetDefault("NOTIFY_RECIPIENT", "")
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_CHAT_ID", 0)

	v.SetDefault("TRANSCRIPT_QUEUE_URL", "")
	v.SetDefault("WORKER_CONCURRENCY", 4)
	v.SetDefault("QUEUE_VISIBILITY_TIMEOUT_SECONDS", 300)
	v.SetDefault("SHUTDOWN_TIMEOUT", "30s")

	v.SetDefault("CLOSE_AFTER", "20s")
	v.SetDefault("SESSION_IDLE_TTL", "1h")
	v.SetDefault("MAX_UPLOAD_BYTES", 10<<20)

	v.SetDefault("LOG_JSON", false)
	v.SetDefault("LOG_DEBUG", false)
	return v
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")
	return FromViper(New())
}

// FromViper materializes a Config from an already prepared viper instance.
func FromViper(v *viper.Viper) Config {
	return Config{
		Port:            v.GetString("PORT"),
		Env:             normalizeEnv(v.GetString("ENV")),
		CORSAllowOrigin: splitAndTrim(v.GetString("CORS_ALLOW_ORIGINS")),

		VacanciesPath: v.GetString("VACANCIES_PATH"),
		DialogsDir:    v.GetString("DIALOGS_DIR"),

		TranscriptStore: normalizeStoreType(v.GetString("TRANSCRIPT_STORE")),
		AWSRegion:       v.GetString("AWS_REGION"),
		S3Bucket:        v.GetString("S3_BUCKET"),
		S3Prefix:        v.GetString("S3_PREFIX"),
		SSEKMSKeyID:     v.GetString("SSE_KMS_KEY_ID"),
		MinioEndpoint:   v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey:  v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey:  v.GetString("MINIO_SECRET_KEY"),
		MinioBucket:     v.GetString("MINIO_BUCKET"),
		MinioUseSSL:     v.GetBool("MINIO_USE_SSL"),

		AssistantProvider: normalizeProvider(v.GetString("ASSISTANT_PROVIDER")),
		OpenAIAPIKey:      v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:     strings.TrimRight(v.GetString("OPENAI_BASE_URL"), "/"),
		OpenAITimeout:     positiveSeconds(v.GetInt("OPENAI_TIMEOUT_SECONDS"), 120),
		AssistantID:       v.GetString("ASSISTANT_ID"),
		GeminiAPIKey:      v.GetString("GEMINI_API_KEY"),
		GeminiModel:       v.GetString("GEMINI_MODEL"),

		PollInitialInterval: v.GetDuration("POLL_INITIAL_INTERVAL"),
		PollMaxInterval:     v.GetDuration("POLL_MAX_INTERVAL"),
		PollTimeout:         v.GetDuration("POLL_TIMEOUT"),

		NotifyEnabled:    v.GetBool("NOTIFY_ENABLED"),
		SMTPHost:         v.GetString("SMTP_HOST"),
		SMTPPort:         v.GetInt("SMTP_PORT"),
		EmailAddress:     v.GetString("EMAIL_ADDRESS"),
		EmailPass:        v.GetString("EMAIL_PASS"),
		NotifyRecipient:  v.GetString("NOTIFY_RECIPIENT"),
		TelegramBotToken: v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   v.GetInt64("TELEGRAM_CHAT_ID"),

		TranscriptQueueURL: v.GetString("TRANSCRIPT_QUEUE_URL"),
		WorkerConcurrency:  max(1, v.GetInt("WORKER_CONCURRENCY")),
		QueueVisibility:    positiveSeconds(v.GetInt("QUEUE_VISIBILITY_TIMEOUT_SECONDS"), 300),
		ShutdownTimeout:    v.GetDuration("SHUTDOWN_TIMEOUT"),

		CloseAfter:     v.GetDuration("CLOSE_AFTER"),
		SessionIdleTTL: v.GetDuration("SESSION_IDLE_TTL"),
		MaxUploadBytes: v.GetInt64("MAX_UPLOAD_BYTES"),

		LogJSON:  v.GetBool("LOG_JSON"),
		LogDebug: v.GetBool("LOG_DEBUG"),
	}
}

func positiveSeconds(raw int, def int) time.Duration {
	if raw <= 0 {
		raw = def
	}
	return time.Duration(raw) * time.Second
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "minio":
		return "minio"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gemini":
		return "gemini"
	default:
		return "openai"
	}
}
