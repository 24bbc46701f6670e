package middleware

import (
	"context"
	"sync"

	"github.com/getsentry/sentry-go"
)

type contextKey string

const requestInfoKey contextKey = "request_info"

// requestInfo collects values that are only known once a handler has decoded
// the request body. Outer middleware read it after the handler returns.
type requestInfo struct {
	mu       sync.Mutex
	tenantID string
}

func withRequestInfo(ctx context.Context) (context.Context, *requestInfo) {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		return ctx, info
	}
	info := &requestInfo{}
	return context.WithValue(ctx, requestInfoKey, info), info
}

// SetTenantID records the tenant a request was made for, so the access log
// and error reports can be attributed to it.
func SetTenantID(ctx context.Context, tenantID string) {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.mu.Lock()
		info.tenantID = tenantID
		info.mu.Unlock()
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil && tenantID != "" {
		hub.Scope().SetTag("tenant_id", tenantID)
	}
}

// GetTenantID returns the tenant recorded by SetTenantID, if any.
func GetTenantID(ctx context.Context) string {
	info, ok := ctx.Value(requestInfoKey).(*requestInfo)
	if !ok {
		return ""
	}
	info.mu.Lock()
	defer info.mu.Unlock()
	return info.tenantID
}
