package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the assistant service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	LogLevel       string
	LogDevelopment bool

	// BundlePath points at a YAML file overriding the embedded keyword bundle.
	BundlePath string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	HistoryLimit  int

	KnowledgeDBPath string

	DocStoreMode      string
	GraphBaseURL      string
	GraphTenantID     string
	GraphClientID     string
	GraphClientSecret string
	GraphDriveID      string

	BoardsMode         string
	AzureDevOpsBaseURL string
	AzureDevOpsOrg     string
	AzureDevOpsPAT     string

	// AzureDevOpsClientField names the custom work item field holding the
	// client, for example "Custom.Cliente".
	AzureDevOpsClientField string

	LLMMode    string
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	ExternalTimeout time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "sofia"),
		LogLevel:           envOrDefault("APP_LOG_LEVEL", "info"),
		BundlePath:         stringsTrimSpace("SOFIA_BUNDLE_PATH"),
		DatabaseURL:        stringsTrimSpace("DATABASE_URL"),
		RedisAddr:          stringsTrimSpace("REDIS_ADDR"),
		RedisPassword:      stringsTrimSpace("REDIS_PASSWORD"),
		KnowledgeDBPath:    stringsTrimSpace("KNOWLEDGE_DB_PATH"),
		DocStoreMode:       envOrDefault("DOCSTORE_MODE", "auto"),
		GraphBaseURL:       envOrDefault("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0"),
		GraphTenantID:      stringsTrimSpace("GRAPH_TENANT_ID"),
		GraphClientID:      stringsTrimSpace("GRAPH_CLIENT_ID"),
		GraphClientSecret:  stringsTrimSpace("GRAPH_CLIENT_SECRET"),
		GraphDriveID:       stringsTrimSpace("GRAPH_DRIVE_ID"),
		BoardsMode:         envOrDefault("BOARDS_MODE", "auto"),
		AzureDevOpsBaseURL: envOrDefault("AZURE_DEVOPS_BASE_URL", "https://dev.azure.com"),
		AzureDevOpsOrg:     stringsTrimSpace("AZURE_DEVOPS_ORG"),
		AzureDevOpsPAT:     stringsTrimSpace("AZURE_DEVOPS_PAT"),
		LLMMode:            envOrDefault("LLM_MODE", "auto"),
		LLMBaseURL:         envOrDefault("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:          stringsTrimSpace("LLM_API_KEY"),
		LLMModel:           envOrDefault("LLM_MODEL", "gpt-4o-mini"),
		RedisDB:            0,
		HistoryLimit:       10,
		ShutdownTimeout:    15 * time.Second,
		ExternalTimeout:    30 * time.Second,
	}
	cfg.AzureDevOpsClientField = stringsTrimSpace("AZURE_DEVOPS_CLIENT_FIELD")

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ExternalTimeout, err = durationFromEnv("APP_EXTERNAL_TIMEOUT", cfg.ExternalTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.LogDevelopment, err = boolFromEnv("APP_LOG_DEVELOPMENT", cfg.LogDevelopment)
	if err != nil {
		return Config{}, err
	}
	cfg.RedisDB, err = intFromEnv("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryLimit, err = intFromEnv("HISTORY_LIMIT", cfg.HistoryLimit)
	if err != nil {
		return Config{}, err
	}

	if cfg.HistoryLimit <= 0 {
		return Config{}, fmt.Errorf("HISTORY_LIMIT must be positive")
	}
	if cfg.RedisDB < 0 {
		return Config{}, fmt.Errorf("REDIS_DB must be >= 0")
	}
	if cfg.ExternalTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_EXTERNAL_TIMEOUT must be positive")
	}
	for key, mode := range map[string]string{
		"DOCSTORE_MODE": cfg.DocStoreMode,
		"BOARDS_MODE":   cfg.BoardsMode,
		"LLM_MODE":      cfg.LLMMode,
	} {
		if !validMode(mode) {
			return Config{}, fmt.Errorf("%s: unsupported mode %q (expected auto|live|mock)", key, mode)
		}
	}

	return cfg, nil
}

func validMode(mode string) bool {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "auto", "live", "mock":
		return true
	default:
		return false
	}
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
