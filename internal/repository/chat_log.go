package repository

import (
	"context"
	"encoding/json"

	"github.com/cloo-solutions/kbchat/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChatLogRepository stores answered chat requests for later review.
type ChatLogRepository struct {
	pool *pgxpool.Pool
}

func NewChatLogRepository(pool *pgxpool.Pool) *ChatLogRepository {
	return &ChatLogRepository{pool: pool}
}

func (r *ChatLogRepository) CreateChatLog(ctx context.Context, entry service.ChatLogEntry) (string, error) {
	chunks := entry.ChunksUsed
	if chunks == nil {
		chunks = []string{}
	}
	chunksJSON, err := json.Marshal(chunks)
	if err != nil {
		return "", err
	}

	var id string
	err = r.pool.QueryRow(ctx,
		`INSERT INTO chat_logs (tenant_id, message, greeting, refusal, chunks_used, chunk_count, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		entry.TenantID,
		entry.Message,
		entry.Greeting,
		entry.Refusal,
		chunksJSON,
		len(chunks),
		entry.DurationMs,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}
