package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/kbchat/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestContext_RequestID(t *testing.T) {
	var seen string
	handler := RequestContext(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	serve := func(incoming string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if incoming != "" {
			req.Header.Set("X-Request-ID", incoming)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	t.Run("generates when absent", func(t *testing.T) {
		rr := serve("")
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, rr.Header().Get("X-Request-ID"))
	})

	t.Run("propagates a safe incoming id", func(t *testing.T) {
		rr := serve("req-123_a.b:c")
		assert.Equal(t, "req-123_a.b:c", seen)
		assert.Equal(t, "req-123_a.b:c", rr.Header().Get("X-Request-ID"))
	})

	t.Run("replaces unsafe incoming ids", func(t *testing.T) {
		for _, bad := range []string{"req 1", "a\"b", "x\u00e9", strings.Repeat("a", 129)} {
			rr := serve(bad)
			assert.NotEqual(t, bad, seen)
			assert.Len(t, seen, 36)
			assert.Equal(t, seen, rr.Header().Get("X-Request-ID"))
		}
	})

	t.Run("absent without middleware", func(t *testing.T) {
		assert.Empty(t, GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
	})
}

func TestRequestContext_ClientIP(t *testing.T) {
	var seen string
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = clientIP(r)
	})

	newReq := func(headers map[string]string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req
	}

	tests := []struct {
		name       string
		trustProxy bool
		headers    map[string]string
		want       string
	}{
		{"peer address", false, nil, "192.0.2.1"},
		{"forwarded ignored when untrusted", false, map[string]string{"X-Forwarded-For": "203.0.113.7"}, "192.0.2.1"},
		{"real ip ignored when untrusted", false, map[string]string{"X-Real-IP": "203.0.113.8"}, "192.0.2.1"},
		{"first forwarded hop when trusted", true, map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "203.0.113.7"},
		{"real ip when trusted", true, map[string]string{"X-Real-IP": "203.0.113.8"}, "203.0.113.8"},
		{"peer when trusted without headers", true, nil, "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RequestContext(tt.trustProxy)(capture).ServeHTTP(httptest.NewRecorder(), newReq(tt.headers))
			assert.Equal(t, tt.want, seen)
		})
	}

	t.Run("without middleware", func(t *testing.T) {
		assert.Equal(t, "192.0.2.1", clientIP(newReq(map[string]string{"X-Forwarded-For": "203.0.113.7"})))
	})
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	handler := RequestContext(true)(AccessLog(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetTenantID(r.Context(), "acme")
		logger.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"x"}`))
	})))

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
	req.Header.Set("X-Request-ID", "req-1")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	require.Len(t, entries, 2)

	inside := entries[0]
	assert.Equal(t, "inside handler", inside.Message)
	assert.Equal(t, "req-1", inside.ContextMap()["request_id"])

	access := entries[1]
	assert.Equal(t, zapcore.ErrorLevel, access.Level)
	fields := access.ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "/v1/chat", fields["path"])
	assert.Equal(t, int64(http.StatusBadGateway), fields["status"])
	assert.Equal(t, "acme", fields["tenant_id"])
	assert.Equal(t, "203.0.113.7", fields["remote_addr"])
}

func TestMaxBodyBytes(t *testing.T) {
	handler := MaxBodyBytes(10)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("rejects declared oversize body", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 11))))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	})

	t.Run("allows small body", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("ok")))
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}

func TestRateLimit(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 2)
	handler := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
		req.RemoteAddr = ip + ":5555"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, call("198.51.100.1"))
	assert.Equal(t, http.StatusOK, call("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("198.51.100.1"))
	assert.Equal(t, http.StatusOK, call("198.51.100.2"))
	assert.Same(t, limiter.GetLimiter("198.51.100.1"), limiter.GetLimiter("198.51.100.1"))
}

func TestIPRateLimiter_EvictsIdleBuckets(t *testing.T) {
	limiter := NewIPRateLimiter(1, 10)
	require.Equal(t, time.Minute, limiter.idleTTL)

	now := time.Now()
	limiter.now = func() time.Time { return now }

	first := limiter.GetLimiter("198.51.100.1")
	limiter.GetLimiter("198.51.100.2")
	assert.Equal(t, 2, limiter.Len())

	now = now.Add(30 * time.Second)
	assert.Same(t, first, limiter.GetLimiter("198.51.100.1"))

	now = now.Add(45 * time.Second)
	limiter.GetLimiter("198.51.100.3")
	assert.Equal(t, 2, limiter.Len(), "198.51.100.2 was idle past the ttl")

	now = now.Add(2 * time.Minute)
	assert.NotSame(t, first, limiter.GetLimiter("198.51.100.1"))
	assert.Equal(t, 1, limiter.Len())
}

func TestNewIPRateLimiter_IdleTTLCoversRefill(t *testing.T) {
	assert.Equal(t, 2000*time.Second, NewIPRateLimiter(0.001, 2).idleTTL)
	assert.Equal(t, time.Minute, NewIPRateLimiter(100, 5).idleTTL)
}

func TestRateLimit_Disabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RateLimit(nil)(next)

	for range 5 {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestGetTenantID_WithoutAccessLog(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	SetTenantID(req.Context(), "acme")
	assert.Empty(t, GetTenantID(req.Context()))
}
