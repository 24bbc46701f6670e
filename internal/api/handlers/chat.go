package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cloo-solutions/kbchat/internal/api"
	"github.com/cloo-solutions/kbchat/internal/api/middleware"
	"github.com/cloo-solutions/kbchat/internal/domain"
	"github.com/cloo-solutions/kbchat/internal/logger"
	"github.com/cloo-solutions/kbchat/internal/service"
	"go.uber.org/zap"
)

type ChatService interface {
	Chat(ctx context.Context, in service.ChatInput) (*domain.ChatResult, error)
}

type ChatHandler struct {
	svc  ChatService
	logs service.ChatLogRepository
}

// NewChatHandler creates a ChatHandler. logs may be nil to disable the chat
// audit log.
func NewChatHandler(svc ChatService, logs service.ChatLogRepository) *ChatHandler {
	return &ChatHandler{svc: svc, logs: logs}
}

type ChatUser struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role,omitempty"`
	Plan     string `json:"plan,omitempty"`
	Name     string `json:"name,omitempty"`
}

type ChatRequest struct {
	Message string   `json:"message"`
	User    ChatUser `json:"user"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	middleware.SetTenantID(ctx, req.User.TenantID)
	start := time.Now()

	result, err := h.svc.Chat(ctx, service.ChatInput{
		Message:  req.Message,
		TenantID: req.User.TenantID,
		Profile: domain.CallerProfile{
			Role: req.User.Role,
			Plan: req.User.Plan,
			Name: req.User.Name,
		},
	})
	if err != nil {
		if !domain.IsValidation(err) {
			logger.FromContext(ctx).Error("chat failed", zap.String("tenant_id", req.User.TenantID), zap.Error(err))
		}
		api.HandleError(w, err)
		return
	}

	h.record(ctx, req, result, time.Since(start))
	api.JSON(w, http.StatusOK, result)
}

// record writes the audit entry. It runs before the response is sent and
// survives client disconnects; failures are only logged.
func (h *ChatHandler) record(ctx context.Context, req ChatRequest, result *domain.ChatResult, elapsed time.Duration) {
	if h.logs == nil {
		return
	}
	_, err := h.logs.CreateChatLog(context.WithoutCancel(ctx), service.ChatLogEntry{
		TenantID:   req.User.TenantID,
		Message:    req.Message,
		Greeting:   result.Greeting,
		Refusal:    result.Refusal,
		ChunksUsed: result.ChunksUsed,
		DurationMs: int(elapsed.Milliseconds()),
	})
	if err != nil {
		logger.FromContext(ctx).Warn("chat log write failed", zap.Error(err))
	}
}
