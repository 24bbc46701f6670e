package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloo-solutions/kbchat/internal/domain"
	"github.com/cloo-solutions/kbchat/internal/guardrail"
	"github.com/cloo-solutions/kbchat/internal/logger"
	"github.com/cloo-solutions/kbchat/internal/metrics"
	"github.com/cloo-solutions/kbchat/internal/telemetry"
	"go.uber.org/zap"
)

// GuardrailMode decides which messages are answered with canned replies.
type GuardrailMode string

const (
	// GuardrailClassify short-circuits any message that classifies as an intent.
	GuardrailClassify GuardrailMode = "classify"
	// GuardrailConversational short-circuits only short or intent-led messages,
	// letting longer questions that merely mention "hi" or "help" through.
	GuardrailConversational GuardrailMode = "conversational"
)

// ParseGuardrailMode maps a configuration value to a GuardrailMode, falling
// back to GuardrailClassify.
func ParseGuardrailMode(value string) GuardrailMode {
	if GuardrailMode(strings.ToLower(strings.TrimSpace(value))) == GuardrailConversational {
		return GuardrailConversational
	}
	return GuardrailClassify
}

// ChatConfig tunes the answer orchestrator.
type ChatConfig struct {
	Tiers         []float64
	GuardrailMode GuardrailMode
	AssistantName string
	ProductName   string
}

// DefaultChatConfig returns the production orchestrator settings.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		Tiers:         ConfidenceTiers(DefaultConfidenceThreshold, DefaultFallbackTiers),
		GuardrailMode: GuardrailClassify,
		AssistantName: guardrail.DefaultAssistantName,
		ProductName:   guardrail.DefaultProductName,
	}
}

// ChatInput is a single chat request.
type ChatInput struct {
	Message  string
	TenantID string
	Profile  domain.CallerProfile
}

// ChatService answers questions grounded in a tenant's knowledge base.
type ChatService struct {
	retriever    Retriever
	generator    Generator
	responder    *guardrail.Responder
	cfg          ChatConfig
	systemPrompt string
	now          func() time.Time
}

func NewChatService(retriever Retriever, generator Generator) *ChatService {
	return NewChatServiceWithConfig(retriever, generator, DefaultChatConfig())
}

func NewChatServiceWithConfig(retriever Retriever, generator Generator, cfg ChatConfig) *ChatService {
	defaults := DefaultChatConfig()
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = defaults.Tiers
	}
	if cfg.GuardrailMode == "" {
		cfg.GuardrailMode = defaults.GuardrailMode
	}
	responder := guardrail.NewResponder(cfg.AssistantName, cfg.ProductName)
	return &ChatService{
		retriever:    retriever,
		generator:    generator,
		responder:    responder,
		cfg:          cfg,
		systemPrompt: BuildSystemPrompt(responder.AssistantName, responder.ProductName),
		now:          time.Now,
	}
}

func (s *ChatService) detectIntent(message string) domain.Intent {
	if s.cfg.GuardrailMode == GuardrailConversational && !guardrail.IsConversational(message) {
		return domain.IntentNone
	}
	return guardrail.Classify(message)
}

// Chat runs the guardrail, retrieval, confidence cascade and generation steps
// for one message. Low confidence yields a refusal result, not an error.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (*domain.ChatResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.chat", telemetry.SpanAttributes{
		TenantID:  in.TenantID,
		Operation: "chat",
	})
	defer span.End()

	if strings.TrimSpace(in.Message) == "" {
		return nil, domain.ErrEmptyMessage
	}
	if in.TenantID == "" {
		return nil, domain.ErrMissingTenantID
	}

	log := logger.FromContext(ctx).With(zap.String("tenant_id", in.TenantID))

	intent := s.detectIntent(in.Message)
	metrics.GuardrailIntents.WithLabelValues(string(intent)).Inc()
	if intent != domain.IntentNone {
		log.Debug("guardrail short-circuit", zap.String("intent", string(intent)))
		return domain.NewGreetingResult(s.responder.Respond(intent, in.Profile.DisplayName(), s.now())), nil
	}

	candidates, err := s.retriever.Retrieve(ctx, in.TenantID, in.Message)
	if err != nil {
		span.SetError(err)
		var de *domain.DomainError
		if !errors.As(err, &de) {
			err = domain.NewCollaboratorError(domain.CollaboratorStorage, err)
		}
		return nil, err
	}

	kept, tier, ok := applyCascade(candidates, s.cfg.Tiers)
	if !ok {
		metrics.CascadeOutcomes.WithLabelValues("refused").Inc()
		log.Debug("no candidate cleared any confidence tier", zap.Int("candidates", len(candidates)))
		return domain.NewRefusalResult(), nil
	}
	metrics.CascadeOutcomes.WithLabelValues(tierLabel(tier)).Inc()

	start := time.Now()
	raw, err := s.generator.Generate(ctx, domain.GenerationRequest{
		SystemPrompt: s.systemPrompt,
		UserPrompt:   buildUserPrompt(in.Message, in.Profile, kept),
		Temperature:  0,
		JSONOutput:   true,
	})
	metrics.ObserveDependency(domain.CollaboratorGeneration, "generate", start, err)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewCollaboratorError(domain.CollaboratorGeneration, err)
	}

	answer := extractAnswer(raw)
	result := &domain.ChatResult{
		Answer:     answer,
		Refusal:    domain.IsRefusal(answer),
		Citations:  make([]int, len(kept)),
		ChunksUsed: make([]string, len(kept)),
	}
	for i, c := range kept {
		result.Citations[i] = i + 1
		result.ChunksUsed[i] = c.ID
	}

	log.Debug("chat answered",
		zap.Float64("tier", tier),
		zap.Int("kept", len(kept)),
		zap.Bool("refusal", result.Refusal),
	)

	return result, nil
}
