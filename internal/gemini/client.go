// Package gemini generates answers with Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/kbchat/internal/domain"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

// ErrEmptyResponse is returned when the model produced no candidates.
var ErrEmptyResponse = errors.New("gemini returned no candidates")

// ContentAPI is the subset of the genai Models service used for generation.
type ContentAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements answer generation on top of the genai SDK.
type Client struct {
	api   ContentAPI
	model string
}

// NewClient creates a Gemini client authenticated with apiKey.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newClient(c.Models, model), nil
}

func newClient(api ContentAPI, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{api: api, model: model}
}

// Generate sends the prompt pair to Gemini and returns the response text.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	temperature := req.Temperature
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		},
		Temperature: &temperature,
	}
	if req.JSONOutput {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.api.GenerateContent(ctx, c.model, genai.Text(req.UserPrompt), cfg)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Text(), nil
}
