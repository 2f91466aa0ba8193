// Package config loads the service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"ai-transcription-summary-service/internal/schema"
)

// Configuration is loaded once at startup and passed to components by value or pointer.
// Nothing reads the environment after Load returns.
type Configuration struct {
	Service       ServiceConfig
	Speech        SpeechConfig
	Summarizer    SummarizerConfig
	Store         StoreConfig
	Kafka         KafkaConfig
	Ingest        IngestConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name     string
	GRPCPort string
	HTTPAddr string
}

// SpeechConfig configures the recognition engine.
type SpeechConfig struct {
	Provider      string `validate:"oneof=azure google mock"`
	Key           string `validate:"required_if=Provider azure"`
	Region        string `validate:"required_if=Provider azure"`
	Language      string `validate:"required"`
	ChunkBytes    int    `validate:"gt=0"`
	WriteAttempts int    `validate:"gt=0"`
}

// SummarizerConfig configures the summarization generator.
type SummarizerConfig struct {
	Provider    string `validate:"oneof=azure-openai openai gemini"`
	Endpoint    string `validate:"required_if=Provider azure-openai"`
	APIKey      string `validate:"required"`
	Deployment  string `validate:"required"`
	APIVersion  string
	Concurrency int `validate:"gt=0"`
}

type StoreConfig struct {
	Driver        string `validate:"oneof=memory redis postgres"`
	RedisAddr     string `validate:"required_if=Driver redis"`
	RedisPassword string
	RedisDB       int
	PostgresDSN   string `validate:"required_if=Driver postgres"`
}

// KafkaConfig configures the transcript change feed.
type KafkaConfig struct {
	Enabled   bool
	Brokers   []string
	Topic     string
	GroupID   string
	BatchSize int
	BatchWait time.Duration
	Principal string
}

type IngestConfig struct {
	Source         string `validate:"oneof=dir minio"`
	Dir            string
	Concurrency    int
	MinioEndpoint  string `validate:"required_if=Source minio"`
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string `validate:"required_if=Source minio"`
	MinioPrefix    string
	MinioUseSSL    bool
}

type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// Load reads a .env file when present and then the process environment.
// Invalid numeric or boolean values fall back to defaults.
func Load() *Configuration {
	_ = godotenv.Load()

	serviceName := envOrDefault("SERVICE_NAME", "ai-transcription-summary-service")

	summarizerProvider := envOrDefault("SUMMARIZER_PROVIDER", "azure-openai")

	return &Configuration{
		Service: ServiceConfig{
			Name:     serviceName,
			GRPCPort: envOrDefault("GRPC_PORT", "50051"),
			HTTPAddr: envOrDefault("HTTP_ADDR", ":9090"),
		},
		Speech: SpeechConfig{
			Provider:      envOrDefault("SPEECH_PROVIDER", "azure"),
			Key:           os.Getenv("SPEECH_KEY"),
			Region:        os.Getenv("SPEECH_REGION"),
			Language:      os.Getenv("SPEECH_LANGUAGE"),
			ChunkBytes:    envOrDefaultInt("SPEECH_CHUNK_BYTES", 32000),
			WriteAttempts: envOrDefaultInt("SINK_WRITE_ATTEMPTS", 3),
		},
		Summarizer: loadSummarizer(summarizerProvider),
		Store: StoreConfig{
			Driver:        envOrDefault("STORE_DRIVER", "memory"),
			RedisAddr:     envOrDefault("REDIS_ADDR", "localhost:6379"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       envOrDefaultInt("REDIS_DB", 0),
			PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		},
		Kafka: KafkaConfig{
			Enabled:   envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:   envList("KAFKA_BROKERS"),
			Topic:     envOrDefault("KAFKA_TOPIC_TRANSCRIPTS", "transcription.transcripts.v1"),
			GroupID:   envOrDefault("KAFKA_GROUP_ID", "transcription-summarizer"),
			BatchSize: envOrDefaultInt("KAFKA_BATCH_SIZE", 16),
			BatchWait: envOrDefaultDuration("KAFKA_BATCH_WAIT", 2*time.Second),
			Principal: envOrDefault("KAFKA_PRINCIPAL", serviceName),
		},
		Ingest: IngestConfig{
			Source:         envOrDefault("INGEST_SOURCE", "dir"),
			Dir:            envOrDefault("INGEST_DIR", "./audios"),
			Concurrency:    envOrDefaultInt("INGEST_CONCURRENCY", 2),
			MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
			MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
			MinioBucket:    envOrDefault("MINIO_BUCKET", "audios"),
			MinioPrefix:    os.Getenv("MINIO_PREFIX"),
			MinioUseSSL:    envOrDefaultBool("MINIO_USE_SSL", false),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

func loadSummarizer(provider string) SummarizerConfig {
	cfg := SummarizerConfig{
		Provider:    provider,
		Concurrency: envOrDefaultInt("SUMMARIZER_CONCURRENCY", 4),
	}
	switch provider {
	case "openai":
		cfg.Endpoint = os.Getenv("OPENAI_BASE_URL")
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.Deployment = envOrDefault("OPENAI_MODEL", "gpt-4o-mini")
	case "gemini":
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
		cfg.Deployment = envOrDefault("GEMINI_MODEL", "gemini-2.5-flash")
	default:
		cfg.Endpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
		cfg.APIKey = os.Getenv("AZURE_OPENAI_KEY")
		cfg.Deployment = os.Getenv("AZURE_OPENAI_DEPLOYMENT")
		cfg.APIVersion = envOrDefault("AZURE_OPENAI_API_VERSION", "2024-06-01")
	}
	return cfg
}

var validate = validator.New()

// Validate reports every missing or invalid speech setting.
func (c SpeechConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return schema.Describe(err)
	}
	return nil
}

// Validate reports every missing or invalid summarizer setting.
func (c SummarizerConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return schema.Describe(err)
	}
	return nil
}

func (c StoreConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return schema.Describe(err)
	}
	return nil
}

func (c IngestConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return schema.Describe(err)
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
