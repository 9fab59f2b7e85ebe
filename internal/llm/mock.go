package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockClient provides deterministic local replies when no model is configured.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (MockClient) ClassifyTone(ctx context.Context, text string) (Tone, error) {
	if err := ctx.Err(); err != nil {
		return ToneNeutral, err
	}
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "urgente"), strings.Contains(lower, "prezad"):
		return ToneSerious, nil
	case strings.Contains(text, "!"), strings.Contains(lower, "kkk"), strings.Contains(lower, "haha"):
		return ToneExcited, nil
	default:
		return ToneNeutral, nil
	}
}

func (MockClient) GenerateReply(ctx context.Context, req ReplyRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return "", nil
	}
	text := fmt.Sprintf("Entendi sua pergunta: %s", msg)
	if req.OnDelta != nil {
		if err := req.OnDelta(text); err != nil {
			return "", err
		}
	}
	return text, nil
}

func (MockClient) InterpretSearchTerm(ctx context.Context, term string) (string, error) {
	if err := ctx.Err(); err != nil {
		return term, err
	}
	return strings.TrimSpace(term), nil
}
