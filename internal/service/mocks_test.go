package service

import (
	"context"

	"github.com/cloo-solutions/kbchat/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockEmbedder is a mock implementation of Embedder
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

// MockGenerator is a mock implementation of Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// MockChunkSearcher is a mock implementation of ChunkSearcher
type MockChunkSearcher struct {
	mock.Mock
}

func (m *MockChunkSearcher) NearestNeighbors(ctx context.Context, tenantID string, vector []float32, limit int) ([]*domain.RetrievalCandidate, error) {
	args := m.Called(ctx, tenantID, vector, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RetrievalCandidate), args.Error(1)
}

func (m *MockChunkSearcher) SubstringMatch(ctx context.Context, tenantID, needle string, limit int) ([]*domain.RetrievalCandidate, error) {
	args := m.Called(ctx, tenantID, needle, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RetrievalCandidate), args.Error(1)
}

// MockChunkWriter is a mock implementation of ChunkWriter
type MockChunkWriter struct {
	mock.Mock
}

func (m *MockChunkWriter) InsertChunk(ctx context.Context, chunk *domain.KnowledgeChunk) error {
	args := m.Called(ctx, chunk)
	return args.Error(0)
}

// MockRetriever is a mock implementation of Retriever
type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Retrieve(ctx context.Context, tenantID, query string) ([]*domain.RetrievalCandidate, error) {
	args := m.Called(ctx, tenantID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RetrievalCandidate), args.Error(1)
}

func candidate(id string, similarity float64) *domain.RetrievalCandidate {
	return &domain.RetrievalCandidate{
		ID:         id,
		Content:    "content of " + id,
		Source:     "Source " + id,
		Section:    "Section " + id,
		Similarity: similarity,
		Channel:    domain.ChannelSemantic,
	}
}

func vectors(n int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(i + 1), 0, 0}
	}
	return out
}
