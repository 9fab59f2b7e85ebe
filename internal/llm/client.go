// Package llm talks to an OpenAI-compatible chat completion service.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Tone is the register a reply should be written in.
type Tone string

const (
	ToneNeutral Tone = "neutro"
	ToneExcited Tone = "animado"
	ToneSerious Tone = "sério"
)

// ParseTone maps free model output onto a Tone, defaulting to neutral.
func ParseTone(raw string) Tone {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "animado"):
		return ToneExcited
	case strings.Contains(s, "sério"), strings.Contains(s, "serio"):
		return ToneSerious
	default:
		return ToneNeutral
	}
}

// DeltaHandler receives streaming text fragments.
type DeltaHandler func(delta string) error

// ReplyRequest is one general-question completion.
type ReplyRequest struct {
	Message      string
	SystemPrompt string
	History      string
	Tone         Tone
	// OnDelta, when set, asks for a streamed completion.
	OnDelta DeltaHandler
}

type Client interface {
	ClassifyTone(ctx context.Context, text string) (Tone, error)
	// GenerateReply may return an empty string without error.
	GenerateReply(ctx context.Context, req ReplyRequest) (string, error)
	// InterpretSearchTerm rewrites a free-form file request into a search term.
	InterpretSearchTerm(ctx context.Context, term string) (string, error)
}

// Config controls client construction.
type Config struct {
	Mode    string
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewHTTPClient(cfg), nil
		}
		return NewMockClient(), nil
	case "live":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("LLM_API_KEY is required for live mode")
		}
		return NewHTTPClient(cfg), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported llm mode %q", cfg.Mode)
	}
}
