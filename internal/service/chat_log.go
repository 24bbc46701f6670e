package service

import "context"

// ChatLogEntry captures one answered chat request for later review.
type ChatLogEntry struct {
	TenantID   string
	Message    string
	Greeting   bool
	Refusal    bool
	ChunksUsed []string
	DurationMs int
}

// ChatLogRepository persists chat logs.
type ChatLogRepository interface {
	CreateChatLog(ctx context.Context, entry ChatLogEntry) (string, error)
}
