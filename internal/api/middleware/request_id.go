package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 128
)

type requestMetaKey struct{}

type requestMeta struct {
	id       string
	clientIP string
}

// RequestContext tags every request with an ID and the client address. An
// inbound X-Request-ID is reused when it is a short token of safe characters;
// anything else is replaced so it cannot inject into logs or headers. The
// client address comes from X-Forwarded-For or X-Real-IP only when
// trustProxy is set, since any caller can send those headers.
func RequestContext(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			meta := &requestMeta{
				id:       r.Header.Get(requestIDHeader),
				clientIP: resolveClientIP(r, trustProxy),
			}
			if !validRequestID(meta.id) {
				meta.id = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, meta.id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestMetaKey{}, meta)))
		})
	}
}

// GetRequestID returns the ID assigned by RequestContext.
func GetRequestID(ctx context.Context) string {
	if meta, ok := ctx.Value(requestMetaKey{}).(*requestMeta); ok {
		return meta.id
	}
	return ""
}

// clientIP returns the address resolved by RequestContext, or the peer
// address when the request did not pass through it.
func clientIP(r *http.Request) string {
	if meta, ok := r.Context().Value(requestMetaKey{}).(*requestMeta); ok {
		return meta.clientIP
	}
	return remoteHost(r)
}

func resolveClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}
