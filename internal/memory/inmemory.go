package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process memory store for local/dev use.
// When maxPerUser is positive only the newest turns per user are kept.
type InMemoryStore struct {
	mu         sync.RWMutex
	records    map[string][]TurnRecord
	maxPerUser int
}

func NewInMemoryStore(maxPerUser int) *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]TurnRecord), maxPerUser: maxPerUser}
}

func (s *InMemoryStore) SaveTurn(_ context.Context, record TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	arr := append(s.records[record.UserID], record)
	if s.maxPerUser > 0 && len(arr) > s.maxPerUser {
		arr = append([]TurnRecord(nil), arr[len(arr)-s.maxPerUser:]...)
	}
	s.records[record.UserID] = arr
	return nil
}

func (s *InMemoryStore) RecentContext(_ context.Context, userID string, limit int) ([]TurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.records[userID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]TurnRecord, 0, limit)
	for i := len(arr) - limit; i < len(arr); i++ {
		out = append(out, arr[i])
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
