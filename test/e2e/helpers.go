//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/kbchat/internal/api/handlers"
	"github.com/cloo-solutions/kbchat/internal/domain"
	"github.com/cloo-solutions/kbchat/internal/metrics"
	"github.com/cloo-solutions/kbchat/internal/repository"
	"github.com/cloo-solutions/kbchat/internal/server"
	"github.com/cloo-solutions/kbchat/internal/service"
	"github.com/cloo-solutions/kbchat/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap/zaptest"
)

const dims = 1536

// keywordAxes maps keywords onto embedding dimensions so similarity between
// texts is predictable without a model.
var keywordAxes = map[string]int{
	"campaign":   1,
	"admin":      2,
	"permission": 2,
	"role":       2,
	"invoice":    3,
}

// keywordEmbedder embeds a text as the normalized sum of its keyword axes.
// Texts without any keyword land on axis 0.
type keywordEmbedder struct{}

func (keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = keywordVector(text)
	}
	return out, nil
}

func keywordVector(text string) []float32 {
	v := make([]float32, dims)
	lower := strings.ToLower(text)
	hits := map[int]struct{}{}
	for kw, axis := range keywordAxes {
		if strings.Contains(lower, kw) {
			hits[axis] = struct{}{}
		}
	}
	if len(hits) == 0 {
		hits[0] = struct{}{}
	}
	w := float32(1 / math.Sqrt(float64(len(hits))))
	for axis := range hits {
		v[axis] = w
	}
	return v
}

// recordingGenerator answers with a fixed JSON body and keeps every request.
type recordingGenerator struct {
	mu       sync.Mutex
	answer   string
	requests []domain.GenerationRequest
}

func (g *recordingGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	body, _ := json.Marshal(map[string]string{"answer": g.answer})
	return string(body), nil
}

func (g *recordingGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.requests) == 0 {
		return ""
	}
	return g.requests[len(g.requests)-1].UserPrompt
}

func (g *recordingGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// env holds a running server backed by a real database.
type env struct {
	t         *testing.T
	ctx       context.Context
	pool      *pgxpool.Pool
	server    *httptest.Server
	generator *recordingGenerator
	client    *http.Client
}

func setupEnv(t *testing.T) *env {
	ctx := context.Background()
	pool := testutil.StartDatabase(ctx, t, "../../migrations")
	metrics.Register()

	chunks := repository.NewChunkRepository(pool)
	embedder := keywordEmbedder{}
	gen := &recordingGenerator{answer: "Open the Campaigns tab and click New Campaign [1]."}

	retrieval := service.NewRetrievalService(chunks, embedder)
	chat := service.NewChatService(retrieval, gen)
	ingest := service.NewIngestService(chunks, embedder)

	router := server.NewRouter(server.RouterConfig{
		Logger:         zaptest.NewLogger(t),
		ChatHandler:    handlers.NewChatHandler(chat, repository.NewChatLogRepository(pool)),
		IngestHandler:  handlers.NewIngestHandler(ingest),
		HealthCheck:    pool.Ping,
		MetricsHandler: promhttp.Handler(),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &env{
		t:         t,
		ctx:       ctx,
		pool:      pool,
		server:    srv,
		generator: gen,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *env) reset() {
	e.t.Helper()
	if err := testutil.TruncateAll(e.ctx, e.pool); err != nil {
		e.t.Fatalf("truncate: %v", err)
	}
}

// post sends body as JSON and returns the status and raw response body.
func (e *env) post(path string, body any) (int, []byte) {
	e.t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		e.t.Fatalf("marshal: %v", err)
	}
	resp, err := e.client.Post(e.server.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		e.t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e.t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, raw
}

func (e *env) get(path string) (int, []byte) {
	e.t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	if err != nil {
		e.t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, raw
}

func (e *env) chat(tenant, message string) (int, domain.ChatResult) {
	e.t.Helper()
	status, raw := e.post("/v1/chat", handlers.ChatRequest{
		Message: message,
		User:    handlers.ChatUser{TenantID: tenant, Role: "Editor"},
	})
	var out domain.ChatResult
	if status == http.StatusOK {
		if err := json.Unmarshal(raw, &out); err != nil {
			e.t.Fatalf("decode chat result %s: %v", raw, err)
		}
	}
	return status, out
}


func (e *env) countChatLogs(tenant string) int {
	e.t.Helper()
	var n int
	if err := e.pool.QueryRow(e.ctx, "SELECT count(*) FROM chat_logs WHERE tenant_id = $1", tenant).Scan(&n); err != nil {
		e.t.Fatalf("count chat logs: %v", err)
	}
	return n
}
