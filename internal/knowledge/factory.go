package knowledge

import (
	"context"
	"strings"
)

// NewStore opens a SQLite-backed store when path is set, otherwise an
// in-memory one. Both start from DefaultSeed.
func NewStore(ctx context.Context, path string) (Store, error) {
	if strings.TrimSpace(path) == "" {
		return NewInMemoryStore(DefaultSeed()), nil
	}
	return NewSQLiteStore(ctx, path, DefaultSeed())
}
