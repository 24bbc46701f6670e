package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/cloo-solutions/kbchat/internal/api"
	"github.com/cloo-solutions/kbchat/internal/metrics"
	"golang.org/x/time/rate"
)

const minIdleTTL = time.Minute

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client address. A bucket idle
// for longer than it takes to refill completely is indistinguishable from a
// new one, so such buckets are dropped on a periodic sweep.
type IPRateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientBucket
	rateLimit rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	if burst <= 0 {
		burst = max(1, int(rps))
	}
	idle := minIdleTTL
	if rps > 0 {
		idle = max(idle, time.Duration(float64(burst)/rps*float64(time.Second)))
	}
	return &IPRateLimiter{
		clients:   make(map[string]*clientBucket),
		rateLimit: rate.Limit(rps),
		burst:     burst,
		idleTTL:   idle,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// GetLimiter returns the bucket for ip, creating it on first use.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	if now.Sub(i.lastSweep) >= i.idleTTL {
		i.sweep(now)
	}

	b, ok := i.clients[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(i.rateLimit, i.burst)}
		i.clients[ip] = b
	}
	b.lastSeen = now
	return b.limiter
}

// Len reports how many client buckets are held.
func (i *IPRateLimiter) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.clients)
}

func (i *IPRateLimiter) sweep(now time.Time) {
	for ip, b := range i.clients {
		if now.Sub(b.lastSeen) >= i.idleTTL {
			delete(i.clients, ip)
		}
	}
	i.lastSweep = now
}

// RateLimit answers 429 once a client exhausts its bucket. A nil limiter
// disables limiting.
func RateLimit(limiter *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.GetLimiter(clientIP(r)).Allow() {
				metrics.RateLimited.Inc()
				w.Header().Set("Retry-After", "1")
				api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
