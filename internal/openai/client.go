package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/cloo-solutions/kbchat/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions is the dimension of text-embedding-3-small vectors
	DefaultEmbeddingDimensions = 1536
	// DefaultChatModel is the OpenAI model used for answer generation
	DefaultChatModel = openai.GPT4oMini
)

var (
	// ErrEmptyText is returned when one of the inputs is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
	// ErrNoChoices is returned when a completion has no choices
	ErrNoChoices = errors.New("completion returned no choices")
)

// EmbeddingAPI is the subset of the OpenAI API used for embeddings.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// ChatAPI is the subset of the OpenAI API used for chat completions.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Config struct {
	APIKey              string
	EmbeddingModel      string
	EmbeddingDimensions int
	ChatModel           string
}

// Client embeds texts and generates answers with the OpenAI API.
type Client struct {
	embeddings     EmbeddingAPI
	chat           ChatAPI
	embeddingModel openai.EmbeddingModel
	chatModel      string
	dimensions     int
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	api := openai.NewClient(cfg.APIKey)
	return newClient(api, api, cfg)
}

func newClient(embeddings EmbeddingAPI, chat ChatAPI, cfg Config) *Client {
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = string(DefaultEmbeddingModel)
	}
	if cfg.EmbeddingDimensions <= 0 {
		cfg.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	return &Client{
		embeddings:     embeddings,
		chat:           chat,
		embeddingModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		chatModel:      cfg.ChatModel,
		dimensions:     cfg.EmbeddingDimensions,
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// EmbedBatch embeds all texts with a single API request. The result is
// index-aligned with texts.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for _, t := range texts {
		if t == "" {
			return nil, ErrEmptyText
		}
	}

	resp, err := c.embeddings.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      c.embeddingModel,
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", describeAPIError(err))
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		if len(d.Embedding) != c.dimensions {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(d.Embedding))
		}
		out[i] = d.Embedding
	}
	return out, nil
}

// Generate sends a system and user prompt and returns the raw completion text.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	temperature := req.Temperature
	if temperature == 0 {
		// go-openai drops a zero temperature from the request body.
		temperature = math.SmallestNonzeroFloat32
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
	}
	if req.JSONOutput {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.chat.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", describeAPIError(err))
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// describeAPIError adds the HTTP status to OpenAI API errors.
func describeAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai status %d (%v): %w", apiErr.HTTPStatusCode, apiErr.Code, err)
	}
	return err
}
