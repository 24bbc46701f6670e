package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/kbchat/internal/cache"
	"github.com/cloo-solutions/kbchat/internal/config"
	"github.com/cloo-solutions/kbchat/internal/database"
	"github.com/cloo-solutions/kbchat/internal/gemini"
	"github.com/cloo-solutions/kbchat/internal/guardrail"
	"github.com/cloo-solutions/kbchat/internal/logger"
	"github.com/cloo-solutions/kbchat/internal/metrics"
	"github.com/cloo-solutions/kbchat/internal/openai"
	"github.com/cloo-solutions/kbchat/internal/repository"
	"github.com/cloo-solutions/kbchat/internal/service"
	"github.com/cloo-solutions/kbchat/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// runtime holds the collaborators shared by serve, ingest and ask.
type runtime struct {
	cfg       *config.Config
	log       *zap.Logger
	pool      *pgxpool.Pool
	embedder  service.Embedder
	generator service.Generator
	closers   []func()
}

type runtimeOptions struct {
	migrate         bool
	migrationSource string
}

// newRuntime loads configuration and connects every collaborator. Callers
// must call close once done.
func newRuntime(ctx context.Context, opts runtimeOptions) (rt *runtime, err error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	rt = &runtime{cfg: cfg, log: log}
	rt.closers = append(rt.closers, func() { _ = log.Sync() })
	defer func() {
		if err != nil {
			rt.close()
			rt = nil
		}
	}()

	metrics.Register()

	flush, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: telemetry.SampleRateFor(cfg.Environment),
		Debug:            cfg.Debug,
		Logger:           log,
	})
	if err != nil {
		log.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
	} else {
		rt.closers = append(rt.closers, flush)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
	if err != nil {
		return nil, err
	}
	rt.pool = pool
	rt.closers = append(rt.closers, pool.Close)
	log.Info("connected to database", zap.Int32("max_conns", pool.Config().MaxConns))

	if opts.migrate {
		if _, err := database.Migrate(cfg.DatabaseURL, opts.migrationSource, log); err != nil {
			return nil, err
		}
	}

	oa := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      cfg.EmbedModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ChatModel:           cfg.ChatModel,
	})
	rt.embedder = oa

	if cfg.HasRedis() {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = rdb.Close() })
		rt.embedder = cache.NewCachedEmbedder(oa, rdb, cfg.EmbedModel, cfg.EmbeddingCacheTTL, metrics.EmbeddingCache)
		log.Info("embedding cache enabled", zap.Duration("ttl", cfg.EmbeddingCacheTTL))
	}

	switch cfg.GenerationProvider {
	case config.ProviderGemini:
		gc, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		rt.generator = gc
	case config.ProviderOpenAI:
		rt.generator = oa
	default:
		return nil, errors.New("unknown generation provider " + cfg.GenerationProvider)
	}
	log.Info("generation provider ready", zap.String("provider", cfg.GenerationProvider))

	return rt, nil
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// withLogger returns ctx carrying the runtime logger.
func (rt *runtime) withLogger(ctx context.Context) context.Context {
	return logger.ContextWithLogger(ctx, rt.log)
}

func (rt *runtime) retrievalService() *service.RetrievalService {
	return service.NewRetrievalServiceWithConfig(repository.NewChunkRepository(rt.pool), rt.embedder, service.RetrievalConfig{
		TopK:          rt.cfg.TopK,
		SearchVariant: service.ParseSearchVariant(rt.cfg.SearchVariant),
	})
}

func (rt *runtime) chatService() *service.ChatService {
	return service.NewChatServiceWithConfig(rt.retrievalService(), rt.generator, chatConfig(rt.cfg))
}

func (rt *runtime) ingestService() *service.IngestService {
	return service.NewIngestServiceWithConfig(
		repository.NewChunkRepository(rt.pool),
		rt.embedder,
		&service.DefaultUUIDGenerator{},
		service.ChunkConfig{WindowChars: rt.cfg.ChunkWindow},
	)
}

func chatConfig(cfg *config.Config) service.ChatConfig {
	assistant, product := cfg.AssistantName, cfg.ProductName
	if assistant == "" {
		assistant = guardrail.DefaultAssistantName
	}
	if product == "" {
		product = guardrail.DefaultProductName
	}
	return service.ChatConfig{
		Tiers:         service.ConfidenceTiers(cfg.Threshold, cfg.FallbackTiers),
		GuardrailMode: service.ParseGuardrailMode(cfg.GuardrailMode),
		AssistantName: assistant,
		ProductName:   product,
	}
}
