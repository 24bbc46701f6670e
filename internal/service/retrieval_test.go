package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cloo-solutions/kbchat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRetrievalService_Retrieve(t *testing.T) {
	ctx := context.Background()
	query := "How do I create a campaign?"
	variants := ExpandQuery(query)
	vecs := vectors(len(variants))

	t.Run("merges both channels and ranks", func(t *testing.T) {
		embedder := new(MockEmbedder)
		searcher := new(MockChunkSearcher)
		svc := NewRetrievalService(searcher, embedder)

		embedder.On("EmbedBatch", mock.Anything, variants).Return(vecs, nil).Once()
		searcher.On("NearestNeighbors", mock.Anything, "acme", vecs[0], 16).Return([]*domain.RetrievalCandidate{
			{ID: "a", Content: "campaign guide", Similarity: 0.82},
			{ID: "b", Content: "roles", Similarity: 0.41},
		}, nil)
		searcher.On("SubstringMatch", mock.Anything, "acme", query, 5).Return([]*domain.RetrievalCandidate{
			{ID: "b", Content: "roles"},
			{ID: "c", Content: "billing"},
		}, nil)

		got, err := svc.Retrieve(ctx, "acme", query)

		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"a", "b", "c"}, ids(got))
		assert.Equal(t, 0.82, got[0].Similarity)
		assert.Equal(t, domain.ChannelSemantic, got[0].Channel)
		assert.Equal(t, 0.5, got[1].Similarity)
		assert.Equal(t, domain.ChannelLexical, got[1].Channel)
		assert.Equal(t, 0, got[1].Rank)
		assert.Equal(t, 1, got[2].Rank)
		embedder.AssertNumberOfCalls(t, "EmbedBatch", 1)
		embedder.AssertExpectations(t)
		searcher.AssertExpectations(t)
	})

	t.Run("semantic 0.4 and lexical hit on one chunk merge to 0.5", func(t *testing.T) {
		embedder := new(MockEmbedder)
		searcher := new(MockChunkSearcher)
		svc := NewRetrievalService(searcher, embedder)

		embedder.On("EmbedBatch", mock.Anything, variants).Return(vecs, nil)
		searcher.On("NearestNeighbors", mock.Anything, "acme", vecs[0], 16).Return([]*domain.RetrievalCandidate{
			{ID: "x", Content: "campaign", Similarity: 0.4},
		}, nil)
		searcher.On("SubstringMatch", mock.Anything, "acme", query, 5).Return([]*domain.RetrievalCandidate{
			{ID: "x", Content: "campaign"},
		}, nil)

		got, err := svc.Retrieve(ctx, "acme", query)

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "x", got[0].ID)
		assert.Equal(t, 0.5, got[0].Similarity)
		assert.Equal(t, domain.ChannelLexical, got[0].Channel)
	})

	t.Run("truncates to top k", func(t *testing.T) {
		embedder := new(MockEmbedder)
		searcher := new(MockChunkSearcher)
		svc := NewRetrievalServiceWithConfig(searcher, embedder, RetrievalConfig{TopK: 2})

		rows := []*domain.RetrievalCandidate{
			{ID: "a", Similarity: 0.9}, {ID: "b", Similarity: 0.8}, {ID: "c", Similarity: 0.7},
		}
		embedder.On("EmbedBatch", mock.Anything, variants).Return(vecs, nil)
		searcher.On("NearestNeighbors", mock.Anything, "acme", vecs[0], 10).Return(rows, nil)
		searcher.On("SubstringMatch", mock.Anything, "acme", query, 5).Return([]*domain.RetrievalCandidate{}, nil)

		got, err := svc.Retrieve(ctx, "acme", query)

		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids(got))
		searcher.AssertExpectations(t)
	})

	t.Run("does not mutate searcher rows", func(t *testing.T) {
		embedder := new(MockEmbedder)
		searcher := new(MockChunkSearcher)
		svc := NewRetrievalService(searcher, embedder)

		row := &domain.RetrievalCandidate{ID: "x", Similarity: 0.2}
		embedder.On("EmbedBatch", mock.Anything, variants).Return(vecs, nil)
		searcher.On("NearestNeighbors", mock.Anything, "acme", vecs[0], 16).Return([]*domain.RetrievalCandidate{}, nil)
		searcher.On("SubstringMatch", mock.Anything, "acme", query, 5).Return([]*domain.RetrievalCandidate{row}, nil)

		got, err := svc.Retrieve(ctx, "acme", query)

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 0.5, got[0].Similarity)
		assert.Equal(t, 0.2, row.Similarity)
	})

	t.Run("enriched variant drives vector search", func(t *testing.T) {
		embedder := new(MockEmbedder)
		searcher := new(MockChunkSearcher)
		svc := NewRetrievalServiceWithConfig(searcher, embedder, RetrievalConfig{SearchVariant: SearchVariantEnriched})

		embedder.On("EmbedBatch", mock.Anything, variants).Return(vecs, nil)
		searcher.On("NearestNeighbors", mock.Anything, "acme", vecs[1], 16).Return([]*domain.RetrievalCandidate{}, nil)
		searcher.On("SubstringMatch", mock.Anything, "acme", query, 5).Return([]*domain.RetrievalCandidate{}, nil)

		got, err := svc.Retrieve(ctx, "acme", query)

		require.NoError(t, err)
		assert.Empty(t, got)
		searcher.AssertExpectations(t)
	})

	t.Run("embedding failure fails retrieval", func(t *testing.T) {
		embedder := new(MockEmbedder)
		searcher := new(MockChunkSearcher)
		svc := NewRetrievalService(searcher, embedder)

		embedder.On("EmbedBatch", mock.Anything, variants).Return(nil, errors.New("rate limited"))

		got, err := svc.Retrieve(ctx, "acme", query)

		assert.Nil(t, got)
		require.Error(t, err)
		assert.True(t, domain.IsCollaboratorFailure(err))
		assert.Contains(t, err.Error(), domain.CollaboratorEmbedding)
		searcher.AssertNotCalled(t, "NearestNeighbors", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		searcher.AssertNotCalled(t, "SubstringMatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("short embedding batch fails retrieval", func(t *testing.T) {
		embedder := new(MockEmbedder)
		searcher := new(MockChunkSearcher)
		svc := NewRetrievalService(searcher, embedder)

		embedder.On("EmbedBatch", mock.Anything, variants).Return(vecs[:1], nil)

		_, err := svc.Retrieve(ctx, "acme", query)

		require.Error(t, err)
		assert.True(t, domain.IsCollaboratorFailure(err))
	})

	t.Run("storage failure fails retrieval", func(t *testing.T) {
		embedder := new(MockEmbedder)
		searcher := new(MockChunkSearcher)
		svc := NewRetrievalService(searcher, embedder)

		embedder.On("EmbedBatch", mock.Anything, variants).Return(vecs, nil)
		searcher.On("NearestNeighbors", mock.Anything, "acme", vecs[0], 16).Return([]*domain.RetrievalCandidate{{ID: "a", Similarity: 0.9}}, nil)
		searcher.On("SubstringMatch", mock.Anything, "acme", query, 5).Return(nil, errors.New("connection reset"))

		got, err := svc.Retrieve(ctx, "acme", query)

		assert.Nil(t, got)
		require.Error(t, err)
		assert.True(t, domain.IsCollaboratorFailure(err))
		assert.Contains(t, err.Error(), domain.CollaboratorStorage)
	})

	t.Run("validation happens before any call", func(t *testing.T) {
		embedder := new(MockEmbedder)
		searcher := new(MockChunkSearcher)
		svc := NewRetrievalService(searcher, embedder)

		_, err := svc.Retrieve(ctx, "", query)
		assert.ErrorIs(t, err, domain.ErrMissingTenantID)

		_, err = svc.Retrieve(ctx, "acme", "   ")
		assert.ErrorIs(t, err, domain.ErrEmptyMessage)

		embedder.AssertNotCalled(t, "EmbedBatch", mock.Anything, mock.Anything)
	})
}

func TestParseSearchVariant(t *testing.T) {
	assert.Equal(t, SearchVariantEnriched, ParseSearchVariant(" Enriched "))
	assert.Equal(t, SearchVariantPrimary, ParseSearchVariant("primary"))
	assert.Equal(t, SearchVariantPrimary, ParseSearchVariant(""))
	assert.Equal(t, SearchVariantPrimary, ParseSearchVariant("keywords"))
}

func TestRetrievalService_SemanticLimit(t *testing.T) {
	assert.Equal(t, 16, NewRetrievalService(nil, nil).semanticLimit())
	assert.Equal(t, 10, NewRetrievalServiceWithConfig(nil, nil, RetrievalConfig{TopK: 3}).semanticLimit())
	assert.Equal(t, 40, NewRetrievalServiceWithConfig(nil, nil, RetrievalConfig{TopK: 20}).semanticLimit())
}
