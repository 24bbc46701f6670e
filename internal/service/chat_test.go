package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloo-solutions/kbchat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestChatService(retriever Retriever, generator Generator, cfg ChatConfig) *ChatService {
	svc := NewChatServiceWithConfig(retriever, generator, cfg)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	return svc
}

func TestChatService_Chat_Guardrail(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		message  string
		profile  domain.CallerProfile
		contains string
	}{
		{"greeting with name", "Hello!", domain.CallerProfile{Name: "Dana", Role: "admin"}, "Good morning, Dana! I'm Aria"},
		{"greeting falls back to role", "hey", domain.CallerProfile{Role: "manager"}, "Good morning, manager!"},
		{"farewell", "bye for now", domain.CallerProfile{}, "Goodbye!"},
		{"thanks", "thank you", domain.CallerProfile{}, "You're very welcome!"},
		{"help", "help", domain.CallerProfile{}, "I'd be happy to help!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retriever := new(MockRetriever)
			generator := new(MockGenerator)
			svc := newTestChatService(retriever, generator, DefaultChatConfig())

			result, err := svc.Chat(ctx, ChatInput{Message: tt.message, TenantID: "acme", Profile: tt.profile})

			require.NoError(t, err)
			assert.True(t, result.Greeting)
			assert.False(t, result.Refusal)
			assert.Empty(t, result.Citations)
			assert.Empty(t, result.ChunksUsed)
			assert.Contains(t, result.Answer, tt.contains)
			retriever.AssertNotCalled(t, "Retrieve", mock.Anything, mock.Anything, mock.Anything)
			generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
		})
	}
}

func TestChatService_Chat_GuardrailModes(t *testing.T) {
	ctx := context.Background()
	message := "can you help me set up billing for my new account please"

	t.Run("classify short-circuits any match", func(t *testing.T) {
		retriever := new(MockRetriever)
		svc := newTestChatService(retriever, new(MockGenerator), ChatConfig{GuardrailMode: GuardrailClassify})

		result, err := svc.Chat(ctx, ChatInput{Message: message, TenantID: "acme"})

		require.NoError(t, err)
		assert.True(t, result.Greeting)
		retriever.AssertNotCalled(t, "Retrieve", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("conversational lets long questions through", func(t *testing.T) {
		retriever := new(MockRetriever)
		svc := newTestChatService(retriever, new(MockGenerator), ChatConfig{GuardrailMode: GuardrailConversational})

		retriever.On("Retrieve", mock.Anything, "acme", message).Return([]*domain.RetrievalCandidate{}, nil)

		result, err := svc.Chat(ctx, ChatInput{Message: message, TenantID: "acme"})

		require.NoError(t, err)
		assert.False(t, result.Greeting)
		assert.True(t, result.Refusal)
		retriever.AssertExpectations(t)
	})

	t.Run("conversational still answers short greetings", func(t *testing.T) {
		retriever := new(MockRetriever)
		svc := newTestChatService(retriever, new(MockGenerator), ChatConfig{GuardrailMode: GuardrailConversational})

		result, err := svc.Chat(ctx, ChatInput{Message: "hi there", TenantID: "acme"})

		require.NoError(t, err)
		assert.True(t, result.Greeting)
	})
}

func TestChatService_Chat_Answer(t *testing.T) {
	ctx := context.Background()
	question := "How do I add a new campaign?"

	t.Run("grounded answer with citations", func(t *testing.T) {
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		svc := newTestChatService(retriever, generator, DefaultChatConfig())

		retriever.On("Retrieve", mock.Anything, "acme", question).Return([]*domain.RetrievalCandidate{
			candidate("c1", 0.91), candidate("c2", 0.7), candidate("c3", 0.4),
		}, nil)
		generator.On("Generate", mock.Anything, mock.MatchedBy(func(req domain.GenerationRequest) bool {
			return req.JSONOutput &&
				req.Temperature == 0 &&
				req.SystemPrompt == BuildSystemPrompt("Aria", "Adhub") &&
				assert.ObjectsAreEqual(
					"User: "+question+"\n\nUser Profile (tone only): {\"role\":\"admin\"}\n\nProvided Context:\n"+
						"[1] content of c1 — Source c1 Section c1\n\n[2] content of c2 — Source c2 Section c2\n\n"+
						`Please respond in JSON format with an "answer" field.`,
					req.UserPrompt)
		})).Return(`{"answer":"Open the Campaigns tab [1]."}`, nil)

		result, err := svc.Chat(ctx, ChatInput{Message: question, TenantID: "acme", Profile: domain.CallerProfile{Role: "admin"}})

		require.NoError(t, err)
		assert.Equal(t, "Open the Campaigns tab [1].", result.Answer)
		assert.False(t, result.Refusal)
		assert.False(t, result.Greeting)
		assert.Equal(t, []int{1, 2}, result.Citations)
		assert.Equal(t, []string{"c1", "c2"}, result.ChunksUsed)
		generator.AssertExpectations(t)
	})

	t.Run("falls back to 0.5 tier", func(t *testing.T) {
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		svc := newTestChatService(retriever, generator, DefaultChatConfig())

		retriever.On("Retrieve", mock.Anything, "acme", question).Return([]*domain.RetrievalCandidate{
			candidate("c1", 0.55), candidate("c2", 0.35),
		}, nil)
		generator.On("Generate", mock.Anything, mock.Anything).Return(`{"answer":"Maybe."}`, nil)

		result, err := svc.Chat(ctx, ChatInput{Message: question, TenantID: "acme"})

		require.NoError(t, err)
		assert.Equal(t, []string{"c1"}, result.ChunksUsed)
		assert.Equal(t, []int{1}, result.Citations)
	})

	t.Run("falls back to 0.3 tier", func(t *testing.T) {
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		svc := newTestChatService(retriever, generator, DefaultChatConfig())

		retriever.On("Retrieve", mock.Anything, "acme", question).Return([]*domain.RetrievalCandidate{
			candidate("c1", 0.35), candidate("c2", 0.2),
		}, nil)
		generator.On("Generate", mock.Anything, mock.Anything).Return(`{"answer":"Maybe."}`, nil)

		result, err := svc.Chat(ctx, ChatInput{Message: question, TenantID: "acme"})

		require.NoError(t, err)
		assert.Equal(t, []string{"c1"}, result.ChunksUsed)
	})

	t.Run("refuses below every tier without generating", func(t *testing.T) {
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		svc := newTestChatService(retriever, generator, DefaultChatConfig())

		retriever.On("Retrieve", mock.Anything, "acme", question).Return([]*domain.RetrievalCandidate{
			candidate("c1", 0.29),
		}, nil)

		result, err := svc.Chat(ctx, ChatInput{Message: question, TenantID: "acme"})

		require.NoError(t, err)
		assert.True(t, result.Refusal)
		assert.Equal(t, domain.RefusalAnswer, result.Answer)
		assert.Empty(t, result.Citations)
		assert.Empty(t, result.ChunksUsed)
		generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("model refusal is flagged", func(t *testing.T) {
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		svc := newTestChatService(retriever, generator, DefaultChatConfig())

		retriever.On("Retrieve", mock.Anything, "acme", question).Return([]*domain.RetrievalCandidate{candidate("c1", 0.8)}, nil)
		generator.On("Generate", mock.Anything, mock.Anything).Return(`{"answer":"I don't have that information."}`, nil)

		result, err := svc.Chat(ctx, ChatInput{Message: question, TenantID: "acme"})

		require.NoError(t, err)
		assert.True(t, result.Refusal)
		assert.Equal(t, []string{"c1"}, result.ChunksUsed)
	})

	t.Run("malformed output used verbatim", func(t *testing.T) {
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		svc := newTestChatService(retriever, generator, DefaultChatConfig())

		retriever.On("Retrieve", mock.Anything, "acme", question).Return([]*domain.RetrievalCandidate{candidate("c1", 0.8)}, nil)
		generator.On("Generate", mock.Anything, mock.Anything).Return("Open the Campaigns tab.", nil)

		result, err := svc.Chat(ctx, ChatInput{Message: question, TenantID: "acme"})

		require.NoError(t, err)
		assert.Equal(t, "Open the Campaigns tab.", result.Answer)
		assert.False(t, result.Refusal)
	})

	t.Run("empty output becomes refusal", func(t *testing.T) {
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		svc := newTestChatService(retriever, generator, DefaultChatConfig())

		retriever.On("Retrieve", mock.Anything, "acme", question).Return([]*domain.RetrievalCandidate{candidate("c1", 0.8)}, nil)
		generator.On("Generate", mock.Anything, mock.Anything).Return("", nil)

		result, err := svc.Chat(ctx, ChatInput{Message: question, TenantID: "acme"})

		require.NoError(t, err)
		assert.True(t, result.Refusal)
		assert.Equal(t, domain.RefusalAnswer, result.Answer)
	})
}

func TestChatService_Chat_Errors(t *testing.T) {
	ctx := context.Background()
	question := "What is the minimum budget?"

	t.Run("validation before any collaborator call", func(t *testing.T) {
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		svc := newTestChatService(retriever, generator, DefaultChatConfig())

		_, err := svc.Chat(ctx, ChatInput{Message: "  ", TenantID: "acme"})
		assert.ErrorIs(t, err, domain.ErrEmptyMessage)
		assert.True(t, domain.IsValidation(err))

		_, err = svc.Chat(ctx, ChatInput{Message: "hello", TenantID: ""})
		assert.ErrorIs(t, err, domain.ErrMissingTenantID)

		retriever.AssertNotCalled(t, "Retrieve", mock.Anything, mock.Anything, mock.Anything)
		generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("retrieval failure propagates", func(t *testing.T) {
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		svc := newTestChatService(retriever, generator, DefaultChatConfig())

		cause := domain.NewCollaboratorError(domain.CollaboratorEmbedding, errors.New("timeout"))
		retriever.On("Retrieve", mock.Anything, "acme", question).Return(nil, cause)

		result, err := svc.Chat(ctx, ChatInput{Message: question, TenantID: "acme"})

		assert.Nil(t, result)
		assert.ErrorIs(t, err, cause)
		generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("untyped retrieval failure wrapped as storage", func(t *testing.T) {
		retriever := new(MockRetriever)
		svc := newTestChatService(retriever, new(MockGenerator), DefaultChatConfig())

		retriever.On("Retrieve", mock.Anything, "acme", question).Return(nil, errors.New("boom"))

		_, err := svc.Chat(ctx, ChatInput{Message: question, TenantID: "acme"})

		require.Error(t, err)
		assert.True(t, domain.IsCollaboratorFailure(err))
		assert.Contains(t, err.Error(), domain.CollaboratorStorage)
	})

	t.Run("generation failure is a collaborator failure", func(t *testing.T) {
		retriever := new(MockRetriever)
		generator := new(MockGenerator)
		svc := newTestChatService(retriever, generator, DefaultChatConfig())

		retriever.On("Retrieve", mock.Anything, "acme", question).Return([]*domain.RetrievalCandidate{candidate("c1", 0.9)}, nil)
		generator.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("503 from provider"))

		result, err := svc.Chat(ctx, ChatInput{Message: question, TenantID: "acme"})

		assert.Nil(t, result)
		require.Error(t, err)
		assert.True(t, domain.IsCollaboratorFailure(err))
		assert.Contains(t, err.Error(), domain.CollaboratorGeneration)
	})
}

func TestParseGuardrailMode(t *testing.T) {
	assert.Equal(t, GuardrailConversational, ParseGuardrailMode("Conversational"))
	assert.Equal(t, GuardrailClassify, ParseGuardrailMode("classify"))
	assert.Equal(t, GuardrailClassify, ParseGuardrailMode(""))
	assert.Equal(t, GuardrailClassify, ParseGuardrailMode("off"))
}
