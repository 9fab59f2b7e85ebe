package memory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ent0n29/sofia/internal/policy"
)

// History records finished turns and renders recent ones for prompts.
// Messages and replies are PII-redacted before they reach the store.
type History struct {
	store  Store
	limit  int
	logger *zap.Logger
}

func NewHistory(store Store, limit int, logger *zap.Logger) *History {
	if limit <= 0 {
		limit = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &History{store: store, limit: limit, logger: logger.Named("history")}
}

func (h *History) Record(ctx context.Context, userID, message, reply string) error {
	msg, msgChanged := policy.RedactPII(message)
	rep, repChanged := policy.RedactPII(reply)
	err := h.store.SaveTurn(ctx, TurnRecord{
		UserID:      userID,
		Message:     msg,
		Reply:       rep,
		PIIRedacted: msgChanged || repChanged,
	})
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

// Recent returns the newest turns for userID in chronological order.
func (h *History) Recent(ctx context.Context, userID string) ([]TurnRecord, error) {
	return h.store.RecentContext(ctx, userID, h.limit)
}

// FormatForPrompt renders recent turns as alternating speaker lines.
// It returns an empty string when the user has no history.
func (h *History) FormatForPrompt(ctx context.Context, userID string) (string, error) {
	turns, err := h.Recent(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	return FormatTurns(turns), nil
}

func FormatTurns(turns []TurnRecord) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "Usuário: %s\nSofia: %s", strings.TrimSpace(t.Message), strings.TrimSpace(t.Reply))
	}
	return b.String()
}

func (h *History) Close() error {
	return h.store.Close()
}
