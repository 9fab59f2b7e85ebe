package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ent0n29/sofia/internal/assistant"
	"github.com/ent0n29/sofia/internal/boards"
	"github.com/ent0n29/sofia/internal/cache"
	"github.com/ent0n29/sofia/internal/config"
	"github.com/ent0n29/sofia/internal/docstore"
	"github.com/ent0n29/sofia/internal/handlers"
	"github.com/ent0n29/sofia/internal/httpapi"
	"github.com/ent0n29/sofia/internal/knowledge"
	"github.com/ent0n29/sofia/internal/llm"
	"github.com/ent0n29/sofia/internal/memory"
	"github.com/ent0n29/sofia/internal/observability"
	"github.com/ent0n29/sofia/internal/session"
)

type BuildResult struct {
	Config    config.Config
	Bundle    *config.Bundle
	Assistant *assistant.Orchestrator
	API       *httpapi.Server
	Metrics   *observability.Metrics
	Turns     *observability.TurnWindow
	// Components names the collaborator variant chosen for each concern.
	Components map[string]string

	// Cleanup should be called on shutdown to release external resources (DB, redis, sqlite).
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*BuildResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	bundle, err := config.LoadBundle(cfg.BundlePath)
	if err != nil {
		return nil, fmt.Errorf("configuration bundle: %w", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	turns := observability.NewTurnWindow(0)
	resultCache := cache.New(
		bundle.Limits.CacheTTL,
		bundle.Limits.CacheSweepInterval,
		cache.WithObserver(metrics.CacheObserver()),
	)

	docs, err := docstore.NewClient(docstore.Config{
		Mode:         cfg.DocStoreMode,
		BaseURL:      cfg.GraphBaseURL,
		TenantID:     cfg.GraphTenantID,
		ClientID:     cfg.GraphClientID,
		ClientSecret: cfg.GraphClientSecret,
		DriveID:      cfg.GraphDriveID,
		Timeout:      cfg.ExternalTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("document store init failed: %w", err)
	}

	boardClient, err := boards.NewClient(boards.Config{
		Mode:         cfg.BoardsMode,
		BaseURL:      cfg.AzureDevOpsBaseURL,
		Organization: cfg.AzureDevOpsOrg,
		PAT:          cfg.AzureDevOpsPAT,
		ClientField:  cfg.AzureDevOpsClientField,
		Timeout:      cfg.ExternalTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("boards client init failed: %w", err)
	}

	model, err := llm.NewClient(llm.Config{
		Mode:    cfg.LLMMode,
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		Timeout: cfg.ExternalTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("llm client init failed: %w", err)
	}

	historyStore, err := memory.NewStore(ctx, memory.StoreConfig{
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		MaxPerUser:    cfg.HistoryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("history store init failed: %w", err)
	}
	history := memory.NewHistory(historyStore, cfg.HistoryLimit, logger)

	know, err := knowledge.NewStore(ctx, cfg.KnowledgeDBPath)
	if err != nil {
		_ = history.Close()
		return nil, fmt.Errorf("knowledge store init failed: %w", err)
	}

	sessions := session.NewStore()
	set := handlers.New(handlers.Deps{
		Bundle:    bundle,
		Cache:     resultCache,
		Session:   sessions,
		Docs:      docs,
		Boards:    boardClient,
		LLM:       model,
		Knowledge: know,
		History:   history,
		Logger:    logger,
	})
	orch := assistant.New(assistant.Options{
		Bundle:   bundle,
		Cache:    resultCache,
		Session:  sessions,
		Handlers: set,
		History:  history,
		Metrics:  metrics,
		Turns:    turns,
		Logger:   logger,
	})

	components := map[string]string{
		"docstore":  docstoreVariant(docs),
		"boards":    boardsVariant(boardClient),
		"llm":       llmVariant(model),
		"history":   memory.Backend(historyStore),
		"knowledge": knowledgeVariant(know),
	}
	logger.Info("assistant wired",
		zap.String("docstore", components["docstore"]),
		zap.String("boards", components["boards"]),
		zap.String("llm", components["llm"]),
		zap.String("history", components["history"]),
		zap.String("knowledge", components["knowledge"]),
	)

	api := httpapi.New(httpapi.Options{
		Config:     cfg,
		Assistant:  orch,
		Metrics:    metrics,
		Turns:      turns,
		Logger:     logger,
		Components: components,
	})

	cleanup := func() error {
		return errors.Join(know.Close(), history.Close())
	}

	return &BuildResult{
		Config:     cfg,
		Bundle:     bundle,
		Assistant:  orch,
		API:        api,
		Metrics:    metrics,
		Turns:      turns,
		Components: components,
		Cleanup:    cleanup,
	}, nil
}

func docstoreVariant(c docstore.Client) string {
	switch c.(type) {
	case *docstore.GraphClient:
		return "graph"
	case *docstore.MockClient:
		return "mock"
	default:
		return "custom"
	}
}

func boardsVariant(c boards.Client) string {
	switch c.(type) {
	case *boards.AzureClient:
		return "azure"
	case *boards.MockClient:
		return "mock"
	default:
		return "custom"
	}
}

func llmVariant(c llm.Client) string {
	switch c.(type) {
	case *llm.HTTPClient:
		return "http"
	case *llm.MockClient:
		return "mock"
	default:
		return "custom"
	}
}

func knowledgeVariant(s knowledge.Store) string {
	switch s.(type) {
	case *knowledge.SQLiteStore:
		return "sqlite"
	case *knowledge.InMemoryStore:
		return "memory"
	default:
		return "custom"
	}
}
