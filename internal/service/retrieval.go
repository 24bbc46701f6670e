package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/kbchat/internal/domain"
	"github.com/cloo-solutions/kbchat/internal/logger"
	"github.com/cloo-solutions/kbchat/internal/metrics"
	"github.com/cloo-solutions/kbchat/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SearchVariant selects which expanded query drives the vector search.
type SearchVariant string

const (
	// SearchVariantPrimary searches with the normalized query.
	SearchVariantPrimary SearchVariant = "primary"
	// SearchVariantEnriched searches with the synonym-enriched query.
	SearchVariantEnriched SearchVariant = "enriched"
)

// ParseSearchVariant maps a configuration value to a SearchVariant, falling
// back to SearchVariantPrimary.
func ParseSearchVariant(value string) SearchVariant {
	if SearchVariant(strings.ToLower(strings.TrimSpace(value))) == SearchVariantEnriched {
		return SearchVariantEnriched
	}
	return SearchVariantPrimary
}

const (
	DefaultTopK              = 8
	defaultMinSemanticLimit  = 10
	defaultLexicalLimit      = 5
	defaultLexicalSimilarity = 0.5
)

// RetrievalConfig tunes the retrieval engine.
type RetrievalConfig struct {
	TopK              int
	MinSemanticLimit  int
	LexicalLimit      int
	LexicalSimilarity float64
	SearchVariant     SearchVariant
}

// DefaultRetrievalConfig returns the production retrieval settings.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:              DefaultTopK,
		MinSemanticLimit:  defaultMinSemanticLimit,
		LexicalLimit:      defaultLexicalLimit,
		LexicalSimilarity: defaultLexicalSimilarity,
		SearchVariant:     SearchVariantPrimary,
	}
}

// RetrievalService finds the chunks most relevant to a query by combining
// vector similarity with a substring fallback.
type RetrievalService struct {
	searcher ChunkSearcher
	embedder Embedder
	cfg      RetrievalConfig
}

func NewRetrievalService(searcher ChunkSearcher, embedder Embedder) *RetrievalService {
	return NewRetrievalServiceWithConfig(searcher, embedder, DefaultRetrievalConfig())
}

func NewRetrievalServiceWithConfig(searcher ChunkSearcher, embedder Embedder, cfg RetrievalConfig) *RetrievalService {
	defaults := DefaultRetrievalConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = defaults.TopK
	}
	if cfg.MinSemanticLimit <= 0 {
		cfg.MinSemanticLimit = defaults.MinSemanticLimit
	}
	if cfg.LexicalLimit <= 0 {
		cfg.LexicalLimit = defaults.LexicalLimit
	}
	if cfg.LexicalSimilarity <= 0 {
		cfg.LexicalSimilarity = defaults.LexicalSimilarity
	}
	if cfg.SearchVariant == "" {
		cfg.SearchVariant = defaults.SearchVariant
	}
	return &RetrievalService{searcher: searcher, embedder: embedder, cfg: cfg}
}

func (s *RetrievalService) semanticLimit() int {
	return max(2*s.cfg.TopK, s.cfg.MinSemanticLimit)
}

func (s *RetrievalService) searchVector(vectors [][]float32) []float32 {
	if s.cfg.SearchVariant == SearchVariantEnriched && len(vectors) > 1 {
		return vectors[1]
	}
	return vectors[0]
}

// Retrieve returns at most TopK candidates for query within tenantID, ranked
// by similarity. Any embedding or storage failure fails the whole call.
func (s *RetrievalService) Retrieve(ctx context.Context, tenantID, query string) ([]*domain.RetrievalCandidate, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.retrieve", telemetry.SpanAttributes{
		TenantID:  tenantID,
		Operation: "retrieve",
	})
	defer span.End()

	if tenantID == "" {
		return nil, domain.ErrMissingTenantID
	}
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyMessage
	}

	variants := ExpandQuery(query)
	vectors, err := s.embedder.EmbedBatch(ctx, variants)
	if err == nil && len(vectors) != len(variants) {
		err = fmt.Errorf("expected %d embeddings, got %d", len(variants), len(vectors))
	}
	if err != nil {
		span.SetError(err)
		return nil, domain.NewCollaboratorError(domain.CollaboratorEmbedding, err)
	}
	vector := s.searchVector(vectors)

	var semantic, lexical []*domain.RetrievalCandidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		rows, err := s.searcher.NearestNeighbors(gctx, tenantID, vector, s.semanticLimit())
		metrics.ObserveDependency(domain.CollaboratorStorage, "nearest_neighbors", start, err)
		if err != nil {
			return fmt.Errorf("semantic search: %w", err)
		}
		semantic = labelCandidates(rows, domain.ChannelSemantic, nil)
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		rows, err := s.searcher.SubstringMatch(gctx, tenantID, query, s.cfg.LexicalLimit)
		metrics.ObserveDependency(domain.CollaboratorStorage, "substring_match", start, err)
		if err != nil {
			return fmt.Errorf("lexical search: %w", err)
		}
		sim := s.cfg.LexicalSimilarity
		lexical = labelCandidates(rows, domain.ChannelLexical, &sim)
		return nil
	})
	if err := g.Wait(); err != nil {
		span.SetError(err)
		return nil, domain.NewCollaboratorError(domain.CollaboratorStorage, err)
	}

	metrics.RetrievalCandidates.WithLabelValues(string(domain.ChannelSemantic)).Observe(float64(len(semantic)))
	metrics.RetrievalCandidates.WithLabelValues(string(domain.ChannelLexical)).Observe(float64(len(lexical)))

	ranked := topK(mergeCandidates(semantic, lexical), s.cfg.TopK)

	logger.FromContext(ctx).Debug("retrieval completed",
		zap.String("tenant_id", tenantID),
		zap.Int("variants", len(variants)),
		zap.Int("semantic", len(semantic)),
		zap.Int("lexical", len(lexical)),
		zap.Int("returned", len(ranked)),
	)

	return ranked, nil
}

// labelCandidates tags rows with their channel and position, overriding the
// similarity when a fixed score is given.
func labelCandidates(rows []*domain.RetrievalCandidate, channel domain.Channel, similarity *float64) []*domain.RetrievalCandidate {
	out := make([]*domain.RetrievalCandidate, 0, len(rows))
	for i, row := range rows {
		if row == nil {
			continue
		}
		c := *row
		c.Channel = channel
		c.Rank = i
		if similarity != nil {
			c.Similarity = *similarity
		}
		out = append(out, &c)
	}
	return out
}
