package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/sofia/internal/assistant"
	"github.com/ent0n29/sofia/internal/config"
	"github.com/ent0n29/sofia/internal/intent"
)

func mockConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		MetricsNamespace: "test_app",
		DocStoreMode:     "mock",
		BoardsMode:       "mock",
		LLMMode:          "mock",
		HistoryLimit:     10,
		ExternalTimeout:  time.Second,
	}
}

func TestBuildWiresMockCollaborators(t *testing.T) {
	res, err := Build(context.Background(), mockConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, res.Cleanup()) })

	assert.Equal(t, map[string]string{
		"docstore":  "mock",
		"boards":    "mock",
		"llm":       "mock",
		"history":   "memory",
		"knowledge": "memory",
	}, res.Components)

	reply := res.Assistant.Respond(context.Background(), assistant.Turn{UserID: "u1", Message: "olá"})
	assert.Equal(t, intent.Greeting, reply.Intent)
	assert.Equal(t, res.Bundle.Messages.GreetingDefault, reply.Text)

	ts := httptest.NewServer(res.API.Router())
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBuildUsesSQLiteKnowledgeWhenPathSet(t *testing.T) {
	cfg := mockConfig(t)
	cfg.KnowledgeDBPath = filepath.Join(t.TempDir(), "knowledge.db")

	res, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, res.Cleanup()) })
	assert.Equal(t, "sqlite", res.Components["knowledge"])

	ctx := context.Background()
	first := res.Assistant.Respond(ctx, assistant.Turn{UserID: "u1", Message: "quero te ensinar qual o horário do almoço"})
	assert.Equal(t, intent.Learning, first.Intent)
	saved := res.Assistant.Respond(ctx, assistant.Turn{UserID: "u1", Message: "Das 12h às 13h."})
	assert.Equal(t, intent.Learning, saved.Intent)
	assert.Empty(t, saved.ErrorID)

	recalled := res.Assistant.Respond(ctx, assistant.Turn{UserID: "u2", Message: "qual o horário do almoço"})
	assert.Equal(t, intent.General, recalled.Intent)
	assert.Equal(t, "Das 12h às 13h.", recalled.Text)
}

func TestBuildRejectsMissingBundle(t *testing.T) {
	cfg := mockConfig(t)
	cfg.BundlePath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := Build(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration bundle")
}

func TestBuildRejectsLiveModeWithoutCredentials(t *testing.T) {
	cfg := mockConfig(t)
	cfg.BoardsMode = "live"

	_, err := Build(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boards client init failed")
}
