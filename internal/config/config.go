package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "KBCHAT"

// SchemaEmbeddingDimensions is the width of the kb_docs.embedding column.
const SchemaEmbeddingDimensions = 1536

// Generation providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080" desc:"HTTP listen port"`
	Debug       bool   `envconfig:"DEBUG" default:"false" desc:"Development logging"`
	Environment string `envconfig:"ENVIRONMENT" default:"development" desc:"Deployment environment reported to Sentry"`
	LogLevel    string `envconfig:"LOG_LEVEL" desc:"debug, info, warn or error"`
	SentryDSN   string `envconfig:"SENTRY_DSN" desc:"Sentry DSN; tracing is off when empty"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true" desc:"Postgres connection string (pgvector required)"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10" desc:"Connection pool size"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY" desc:"OpenAI key for embeddings and generation"`
	ChatModel           string `envconfig:"OPENAI_CHAT_MODEL" default:"gpt-4o-mini" desc:"OpenAI generation model"`
	EmbedModel          string `envconfig:"OPENAI_EMBED_MODEL" default:"text-embedding-3-small" desc:"OpenAI embedding model"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536" desc:"Requested embedding width; must match the vector column"`

	GenerationProvider string `envconfig:"GENERATION_PROVIDER" default:"openai" desc:"openai or gemini"`
	GeminiAPIKey       string `envconfig:"GEMINI_API_KEY" desc:"Gemini key when GENERATION_PROVIDER=gemini"`
	GeminiModel        string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash" desc:"Gemini generation model"`

	TopK          int       `envconfig:"RAG_TOP_K" default:"8" desc:"Chunks passed to the model"`
	Threshold     float64   `envconfig:"RAG_THRESHOLD" default:"0.65" desc:"Primary similarity threshold"`
	FallbackTiers []float64 `envconfig:"RAG_FALLBACK_TIERS" default:"0.5,0.3" desc:"Lower thresholds tried in order when nothing passes"`
	SearchVariant string    `envconfig:"RAG_SEARCH_VARIANT" default:"primary" desc:"primary or alt retrieval"`
	GuardrailMode string    `envconfig:"GUARDRAIL_MODE" default:"classify" desc:"classify or conversational"`
	ChunkWindow   int       `envconfig:"CHUNK_WINDOW" default:"1500" desc:"Characters per chunk"`

	AssistantName string `envconfig:"ASSISTANT_NAME" default:"Aria" desc:"Name the assistant introduces itself with"`
	ProductName   string `envconfig:"PRODUCT_NAME" default:"Adhub" desc:"Product the assistant supports"`

	RedisURL          string        `envconfig:"REDIS_URL" desc:"Redis URL for the embedding cache; disabled when empty"`
	EmbeddingCacheTTL time.Duration `envconfig:"EMBEDDING_CACHE_TTL" default:"24h" desc:"Embedding cache entry lifetime"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"0" desc:"Per-client requests per second; 0 disables limiting"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"10" desc:"Per-client burst size"`
	TrustProxy     bool    `envconfig:"TRUST_PROXY" default:"false" desc:"Take the client address from X-Forwarded-For and X-Real-IP"`
	MaxBodyBytes   int64   `envconfig:"MAX_BODY_BYTES" default:"5242880" desc:"Request body size limit"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT" desc:"S3-compatible endpoint for document ingest"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"kbchat-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	cfg.GenerationProvider = strings.ToLower(strings.TrimSpace(cfg.GenerationProvider))
	return &cfg, nil
}

// Validate checks the settings the chat and ingest pipelines cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if !c.HasOpenAI() {
		errs = append(errs, errors.New(envPrefix+"_OPENAI_API_KEY is required for embeddings"))
	}
	switch c.GenerationProvider {
	case ProviderOpenAI:
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New(envPrefix+"_GEMINI_API_KEY is required when GENERATION_PROVIDER=gemini"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown generation provider %q", c.GenerationProvider))
	}
	if c.TopK <= 0 {
		errs = append(errs, errors.New(envPrefix+"_RAG_TOP_K must be positive"))
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		errs = append(errs, errors.New(envPrefix+"_RAG_THRESHOLD must be in (0, 1]"))
	}
	if c.EmbeddingDimensions != 0 && c.EmbeddingDimensions != SchemaEmbeddingDimensions {
		errs = append(errs, fmt.Errorf("%s_EMBEDDING_DIMENSIONS must be %d to match the stored vectors", envPrefix, SchemaEmbeddingDimensions))
	}
	if c.ChunkWindow <= 0 {
		errs = append(errs, errors.New(envPrefix+"_CHUNK_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

func (c *Config) HasRateLimit() bool {
	return c.RateLimitRPS > 0
}
