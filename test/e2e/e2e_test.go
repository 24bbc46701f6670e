//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/cloo-solutions/kbchat/internal/api/handlers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seedDocs = handlers.IngestRequest{Docs: []handlers.IngestDocument{
	{
		TenantID: "adhub",
		Source:   "Getting Started",
		Section:  "Campaigns",
		DocType:  "guide",
		Version:  "v1",
		Content:  "To add a new campaign, go to the Campaigns tab and click \"New Campaign\".\nFill in name, budget, and schedule. Click Save to create the campaign.",
	},
	{
		TenantID: "adhub",
		Source:   "Permissions",
		Section:  "Roles",
		DocType:  "policy",
		Version:  "v1",
		Content:  "Only Admins and Managers can create campaigns. Editors can edit but not create.",
	},
}}

func TestE2E_IngestAndChat(t *testing.T) {
	e := setupEnv(t)

	t.Run("health", func(t *testing.T) {
		status, body := e.get("/healthz")
		assert.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"ok":true}`, string(body))
	})

	t.Run("ingest", func(t *testing.T) {
		e.reset()
		status, body := e.post("/v1/ingest", seedDocs)
		require.Equal(t, http.StatusOK, status, string(body))

		var resp handlers.IngestResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.True(t, resp.OK)
		assert.Equal(t, 2, resp.Inserted)
	})

	t.Run("grounded answer cites both chunks in rank order", func(t *testing.T) {
		var guideID, policyID string
		require.NoError(t, e.pool.QueryRow(e.ctx, "SELECT id FROM kb_docs WHERE source = 'Getting Started'").Scan(&guideID))
		require.NoError(t, e.pool.QueryRow(e.ctx, "SELECT id FROM kb_docs WHERE source = 'Permissions'").Scan(&policyID))

		status, result := e.chat("adhub", "How do I add a new campaign?")
		require.Equal(t, http.StatusOK, status)

		assert.False(t, result.Refusal)
		assert.False(t, result.Greeting)
		assert.Equal(t, "Open the Campaigns tab and click New Campaign [1].", result.Answer)
		assert.Equal(t, []int{1, 2}, result.Citations)
		assert.Equal(t, []string{guideID, policyID}, result.ChunksUsed)

		prompt := e.generator.lastPrompt()
		assert.Contains(t, prompt, "New Campaign")
		assert.Less(t, strings.Index(prompt, "Getting Started"), strings.Index(prompt, "Permissions"))
	})

	t.Run("unrelated question is refused without generation", func(t *testing.T) {
		calls := e.generator.calls()
		status, result := e.chat("adhub", "Where can I download my invoice?")
		require.Equal(t, http.StatusOK, status)

		assert.True(t, result.Refusal)
		assert.Empty(t, result.Citations)
		assert.Empty(t, result.ChunksUsed)
		assert.Equal(t, calls, e.generator.calls())
	})

	t.Run("other tenants see nothing", func(t *testing.T) {
		status, result := e.chat("globex", "How do I add a new campaign?")
		require.Equal(t, http.StatusOK, status)
		assert.True(t, result.Refusal)
	})

	t.Run("greeting short-circuits", func(t *testing.T) {
		calls := e.generator.calls()
		status, result := e.chat("adhub", "hello")
		require.Equal(t, http.StatusOK, status)

		assert.True(t, result.Greeting)
		assert.False(t, result.Refusal)
		assert.Empty(t, result.Citations)
		assert.Equal(t, calls, e.generator.calls())
	})

	t.Run("every answered chat is logged", func(t *testing.T) {
		assert.Equal(t, 3, e.countChatLogs("adhub"))
		assert.Equal(t, 1, e.countChatLogs("globex"))
	})
}

func TestE2E_Validation(t *testing.T) {
	e := setupEnv(t)

	t.Run("chat without tenant", func(t *testing.T) {
		status, body := e.post("/v1/chat", handlers.ChatRequest{Message: "How do I add a new campaign?"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, string(body), `"error"`)
	})

	t.Run("chat without message", func(t *testing.T) {
		status, _ := e.post("/v1/chat", handlers.ChatRequest{User: handlers.ChatUser{TenantID: "adhub"}})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("ingest without docs", func(t *testing.T) {
		status, _ := e.post("/v1/ingest", handlers.IngestRequest{})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("ingest with empty content stores nothing", func(t *testing.T) {
		e.reset()
		req := handlers.IngestRequest{Docs: []handlers.IngestDocument{
			seedDocs.Docs[0],
			{TenantID: "adhub", Source: "Blank"},
		}}
		status, _ := e.post("/v1/ingest", req)
		assert.Equal(t, http.StatusBadRequest, status)

		var n int
		require.NoError(t, e.pool.QueryRow(e.ctx, "SELECT count(*) FROM kb_docs").Scan(&n))
		assert.Zero(t, n)
	})
}

func TestE2E_Metrics(t *testing.T) {
	e := setupEnv(t)
	e.chat("adhub", "hello")

	status, body := e.get("/metrics")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "kbchat_guardrail_intents_total")
	assert.Contains(t, string(body), "kbchat_http_requests_total")
}
