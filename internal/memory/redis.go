package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the redis-backed store.
type RedisOptions struct {
	Addr       string
	Password   string
	DB         int
	MaxPerUser int
	// TTL expires a user's history after inactivity. Zero keeps it forever.
	TTL time.Duration
}

// RedisStore keeps one JSON-encoded list per user, trimmed to MaxPerUser.
type RedisStore struct {
	rdb        *redis.Client
	maxPerUser int
	ttl        time.Duration
}

func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return newRedisStore(rdb, opts), nil
}

func newRedisStore(rdb *redis.Client, opts RedisOptions) *RedisStore {
	keep := opts.MaxPerUser
	if keep <= 0 {
		keep = 50
	}
	return &RedisStore{rdb: rdb, maxPerUser: keep, ttl: opts.TTL}
}

func historyKey(userID string) string {
	return "sofia:history:" + userID
}

func (s *RedisStore) SaveTurn(ctx context.Context, record TurnRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}

	key := historyKey(record.UserID)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, int64(-s.maxPerUser), -1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}

func (s *RedisStore) RecentContext(ctx context.Context, userID string, limit int) ([]TurnRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	raw, err := s.rdb.LRange(ctx, historyKey(userID), int64(-limit), -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("query recent context: %w", err)
	}

	items := make([]TurnRecord, 0, len(raw))
	for _, entry := range raw {
		var r TurnRecord
		if err := json.Unmarshal([]byte(entry), &r); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		items = append(items, r)
	}
	return items, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
