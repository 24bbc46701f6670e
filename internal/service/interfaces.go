package service

import (
	"context"

	"github.com/cloo-solutions/kbchat/internal/domain"
)

// Embedder turns texts into vectors in a single batched call. The output is
// index-aligned with the input.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (string, error)
}

// ChunkSearcher runs tenant-scoped lookups over stored chunks.
type ChunkSearcher interface {
	// NearestNeighbors returns up to limit chunks ordered by ascending cosine
	// distance, with Similarity set to 1 - distance.
	NearestNeighbors(ctx context.Context, tenantID string, vector []float32, limit int) ([]*domain.RetrievalCandidate, error)
	// SubstringMatch returns up to limit chunks whose content, source or
	// section contains needle, ignoring case.
	SubstringMatch(ctx context.Context, tenantID, needle string, limit int) ([]*domain.RetrievalCandidate, error)
}

// ChunkWriter persists a single chunk.
type ChunkWriter interface {
	InsertChunk(ctx context.Context, chunk *domain.KnowledgeChunk) error
}

// Retriever returns ranked candidates for a tenant's query.
type Retriever interface {
	Retrieve(ctx context.Context, tenantID, query string) ([]*domain.RetrievalCandidate, error)
}
