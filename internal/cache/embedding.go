// Package cache provides a Redis-backed embedding cache.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/cloo-solutions/kbchat/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "kbchat:emb:"

// Embedder is the batch embedder being cached.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// CachedEmbedder serves embeddings from Redis and embeds only the misses,
// still in a single batched call.
type CachedEmbedder struct {
	inner      Embedder
	client     redis.Cmdable
	namespace  string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
}

// NewCachedEmbedder wraps inner. namespace separates vectors of different
// embedding models. cacheTotal, when non-nil, is a counter vec with a
// "result" label ("hit"/"miss").
func NewCachedEmbedder(inner Embedder, client redis.Cmdable, namespace string, ttl time.Duration, cacheTotal *prometheus.CounterVec) *CachedEmbedder {
	return &CachedEmbedder{
		inner:      inner,
		client:     client,
		namespace:  namespace,
		ttl:        ttl,
		cacheTotal: cacheTotal,
	}
}

// NewRedisClient parses a redis:// URL and verifies the server is reachable.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.ContextTimeoutEnabled = true

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// EmbedBatch returns embeddings for texts, index-aligned. Cache errors are
// logged and treated as misses.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	log := logger.FromContext(ctx)

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.cacheKey(t)
	}

	out := make([][]float32, len(texts))
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		log.Warn("embedding cache lookup failed", zap.Error(err))
		values = nil
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		vec, err := bytesToVector([]byte(s))
		if err != nil {
			log.Warn("discarding corrupt cached embedding", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		out[i] = vec
	}

	// Duplicate texts in one batch are embedded once.
	missIndex := make(map[string][]int)
	var missTexts []string
	for i, vec := range out {
		if vec != nil {
			c.inc("hit")
			continue
		}
		c.inc("miss")
		if _, seen := missIndex[texts[i]]; !seen {
			missTexts = append(missTexts, texts[i])
		}
		missIndex[texts[i]] = append(missIndex[texts[i]], i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missTexts), len(fresh))
	}

	pipe := c.client.Pipeline()
	for j, text := range missTexts {
		for _, i := range missIndex[text] {
			out[i] = fresh[j]
		}
		pipe.Set(ctx, c.cacheKey(text), vectorToBytes(fresh[j]), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn("embedding cache store failed", zap.Error(err))
	}

	return out, nil
}

func (c *CachedEmbedder) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return keyPrefix + c.namespace + ":" + hex.EncodeToString(h[:])
}

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
