package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cloo-solutions/kbchat/internal/api"
	"github.com/cloo-solutions/kbchat/internal/api/middleware"
	"github.com/cloo-solutions/kbchat/internal/domain"
	"github.com/cloo-solutions/kbchat/internal/logger"
	"github.com/cloo-solutions/kbchat/internal/service"
	"go.uber.org/zap"
)

type IngestService interface {
	Ingest(ctx context.Context, docs []domain.Document) (*service.IngestResult, error)
}

type IngestHandler struct {
	svc IngestService
}

func NewIngestHandler(svc IngestService) *IngestHandler {
	return &IngestHandler{svc: svc}
}

type IngestDocument struct {
	TenantID string `json:"tenant_id"`
	Content  string `json:"content"`
	Source   string `json:"source,omitempty"`
	Section  string `json:"section,omitempty"`
	DocType  string `json:"doc_type,omitempty"`
	Version  string `json:"version,omitempty"`
}

type IngestRequest struct {
	Docs []IngestDocument `json:"docs"`
}

type IngestResponse struct {
	OK       bool `json:"ok"`
	Inserted int  `json:"inserted"`
}

type IngestErrorResponse struct {
	Error    string `json:"error"`
	Inserted int    `json:"inserted"`
}

func (d IngestDocument) toDomain() domain.Document {
	return domain.Document{
		TenantID: d.TenantID,
		Content:  d.Content,
		Source:   d.Source,
		Section:  d.Section,
		DocType:  d.DocType,
		Version:  d.Version,
	}
}

func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	docs := make([]domain.Document, len(req.Docs))
	for i, d := range req.Docs {
		docs[i] = d.toDomain()
	}
	if len(docs) > 0 {
		middleware.SetTenantID(ctx, docs[0].TenantID)
	}

	result, err := h.svc.Ingest(ctx, docs)
	if err != nil {
		var failure *service.IngestFailure
		if errors.As(err, &failure) {
			logger.FromContext(ctx).Error("ingest partially failed",
				zap.Int("inserted", failure.Inserted),
				zap.Int("total", failure.Total),
				zap.Error(err),
			)
			api.JSON(w, api.DomainErrorToHTTP(err), IngestErrorResponse{
				Error:    api.ErrorMessage(err),
				Inserted: failure.Inserted,
			})
			return
		}
		if !domain.IsValidation(err) {
			logger.FromContext(ctx).Error("ingest failed", zap.Error(err))
		}
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, IngestResponse{OK: true, Inserted: result.Inserted})
}
