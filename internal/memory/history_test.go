package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStoreRecentContextOrder(t *testing.T) {
	s := NewInMemoryStore(0)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveTurn(ctx, TurnRecord{UserID: "u1", Message: fmt.Sprintf("m%d", i)}))
	}

	got, err := s.RecentContext(ctx, "u1", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "m2", got[0].Message)
	assert.Equal(t, "m4", got[2].Message)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())

	none, err := s.RecentContext(ctx, "nobody", 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInMemoryStoreTrimsPerUser(t *testing.T) {
	s := NewInMemoryStore(2)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, s.SaveTurn(ctx, TurnRecord{UserID: "u1", Message: fmt.Sprintf("m%d", i)}))
	}
	got, err := s.RecentContext(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m2", got[0].Message)
}

func TestHistoryRedactsBeforeSaving(t *testing.T) {
	store := NewInMemoryStore(0)
	h := NewHistory(store, 5, nil)
	ctx := context.Background()

	require.NoError(t, h.Record(ctx, "u1", "meu email é ana@sonar.com", "anotado"))

	turns, err := store.RecentContext(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.True(t, turns[0].PIIRedacted)
	assert.NotContains(t, turns[0].Message, "ana@sonar.com")
	assert.Equal(t, "anotado", turns[0].Reply)
}

func TestHistoryFormatForPrompt(t *testing.T) {
	h := NewHistory(NewInMemoryStore(0), 2, nil)
	ctx := context.Background()

	empty, err := h.FormatForPrompt(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "", empty)

	require.NoError(t, h.Record(ctx, "u1", "olá", "Olá! Eu sou a Sofia."))
	require.NoError(t, h.Record(ctx, "u1", "quem é você?", "Sou a assistente da Sonar."))
	require.NoError(t, h.Record(ctx, "u1", "obrigado", "Por nada!"))

	got, err := h.FormatForPrompt(ctx, "u1")
	require.NoError(t, err)
	want := "Usuário: quem é você?\nSofia: Sou a assistente da Sonar.\nUsuário: obrigado\nSofia: Por nada!"
	assert.Equal(t, want, got)
}

type failingStore struct{ *InMemoryStore }

func (*failingStore) SaveTurn(context.Context, TurnRecord) error { return errors.New("disk full") }

func TestHistoryWrapsStoreErrors(t *testing.T) {
	h := NewHistory(&failingStore{InMemoryStore: NewInMemoryStore(5)}, 5, nil)
	err := h.Record(context.Background(), "u1", "a", "b")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "record turn"))
}

func TestNewStoreDefaultsToMemory(t *testing.T) {
	s, err := NewStore(context.Background(), StoreConfig{})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "memory", Backend(s))
}

func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("SOFIA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SOFIA_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := NewRedisStore(ctx, RedisOptions{Addr: addr, MaxPerUser: 2, TTL: time.Minute})
	require.NoError(t, err)
	defer s.Close()

	user := fmt.Sprintf("test-%d", time.Now().UnixNano())
	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveTurn(ctx, TurnRecord{UserID: user, Message: fmt.Sprintf("m%d", i)}))
	}
	got, err := s.RecentContext(ctx, user, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].Message)
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	url := os.Getenv("SOFIA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SOFIA_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := NewPostgresStore(ctx, url)
	require.NoError(t, err)
	defer s.Close()

	user := fmt.Sprintf("test-%d", time.Now().UnixNano())
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveTurn(ctx, TurnRecord{
			UserID:    user,
			Message:   fmt.Sprintf("m%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	got, err := s.RecentContext(ctx, user, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].Message)
	assert.Equal(t, "m2", got[1].Message)
}
