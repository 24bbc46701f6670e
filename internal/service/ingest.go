package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/kbchat/internal/domain"
	"github.com/cloo-solutions/kbchat/internal/logger"
	"github.com/cloo-solutions/kbchat/internal/metrics"
	"github.com/cloo-solutions/kbchat/internal/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UUIDGenerator generates unique identifiers for new chunks.
type UUIDGenerator interface {
	Generate() string
}

// DefaultUUIDGenerator generates random UUIDs.
type DefaultUUIDGenerator struct{}

func (g *DefaultUUIDGenerator) Generate() string {
	return uuid.NewString()
}

// IngestResult reports how many chunks were stored.
type IngestResult struct {
	Inserted int
}

// IngestFailure is returned when a chunk insert fails part way through.
// Chunks inserted before the failure stay stored.
type IngestFailure struct {
	Inserted int
	Total    int
	Err      error
}

func (e *IngestFailure) Error() string {
	return fmt.Sprintf("ingest stopped after %d of %d chunks: %v", e.Inserted, e.Total, e.Err)
}

func (e *IngestFailure) Unwrap() error {
	return e.Err
}

// IngestService splits documents into chunks, embeds them and stores them.
type IngestService struct {
	writer   ChunkWriter
	embedder Embedder
	idGen    UUIDGenerator
	chunkCfg ChunkConfig
	now      func() time.Time
}

func NewIngestService(writer ChunkWriter, embedder Embedder) *IngestService {
	return NewIngestServiceWithConfig(writer, embedder, &DefaultUUIDGenerator{}, DefaultChunkConfig())
}

func NewIngestServiceWithConfig(writer ChunkWriter, embedder Embedder, idGen UUIDGenerator, cfg ChunkConfig) *IngestService {
	if cfg.WindowChars <= 0 {
		cfg = DefaultChunkConfig()
	}
	if idGen == nil {
		idGen = &DefaultUUIDGenerator{}
	}
	return &IngestService{
		writer:   writer,
		embedder: embedder,
		idGen:    idGen,
		chunkCfg: cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Ingest stores every document as embedded chunks. All chunks are embedded
// with one batched call, then inserted one by one without a spanning
// transaction. On an insert failure the returned result and *IngestFailure
// both carry the number of chunks already stored.
func (s *IngestService) Ingest(ctx context.Context, docs []domain.Document) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ingest", telemetry.SpanAttributes{Operation: "ingest"})
	defer span.End()

	if len(docs) == 0 {
		return nil, domain.ErrNoDocuments
	}
	for i, doc := range docs {
		if err := doc.Validate(); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
	}

	var chunks []*domain.KnowledgeChunk
	for _, doc := range docs {
		for _, piece := range ChunkText(doc.Content, s.chunkCfg) {
			chunks = append(chunks, &domain.KnowledgeChunk{
				TenantID: doc.TenantID,
				Source:   doc.Source,
				Section:  doc.Section,
				DocType:  doc.DocType,
				Version:  doc.Version,
				Content:  piece,
				Tokens:   len([]rune(piece)),
			})
		}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	start := time.Now()
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err == nil && len(vectors) != len(texts) {
		err = fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors))
	}
	metrics.ObserveDependency(domain.CollaboratorEmbedding, "embed_batch", start, err)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewCollaboratorError(domain.CollaboratorEmbedding, err)
	}

	log := logger.FromContext(ctx)
	result := &IngestResult{}
	for i, c := range chunks {
		c.ID = s.idGen.Generate()
		c.Embedding = vectors[i]
		c.CreatedAt = s.now()

		if err := s.writer.InsertChunk(ctx, c); err != nil {
			span.SetError(err)
			log.Warn("chunk insert failed",
				zap.String("tenant_id", c.TenantID),
				zap.Int("inserted", result.Inserted),
				zap.Int("total", len(chunks)),
				zap.Error(err),
			)
			return result, &IngestFailure{
				Inserted: result.Inserted,
				Total:    len(chunks),
				Err:      domain.NewCollaboratorError(domain.CollaboratorStorage, err),
			}
		}
		result.Inserted++
		metrics.IngestedChunks.Inc()
	}

	log.Info("documents ingested", zap.Int("documents", len(docs)), zap.Int("chunks", result.Inserted))
	return result, nil
}
