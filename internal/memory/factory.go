package memory

import (
	"context"
	"strings"
)

// StoreConfig selects and configures a history backend.
type StoreConfig struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MaxPerUser    int
}

// NewStore creates a postgres-backed store when a database URL is configured,
// a redis-backed one when only a redis address is, and an in-memory store
// otherwise.
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch {
	case strings.TrimSpace(cfg.DatabaseURL) != "":
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case strings.TrimSpace(cfg.RedisAddr) != "":
		return NewRedisStore(ctx, RedisOptions{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			MaxPerUser: cfg.MaxPerUser,
		})
	default:
		return NewInMemoryStore(cfg.MaxPerUser), nil
	}
}

// Backend names the concrete store type, for logs.
func Backend(s Store) string {
	switch s.(type) {
	case *PostgresStore:
		return "postgres"
	case *RedisStore:
		return "redis"
	case *InMemoryStore:
		return "memory"
	default:
		return "custom"
	}
}
