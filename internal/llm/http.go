package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/sofia/internal/reliability"
)

const (
	toneInstruction = "Classifique o tom da mensagem do usuário com uma única palavra: neutro, animado ou sério. Responda apenas com a palavra."
	termInstruction = "O usuário procura um arquivo. Extraia apenas o nome ou termo principal do arquivo procurado, sem aspas e sem explicações."
)

// HTTPClient calls the /chat/completions endpoint of an OpenAI-compatible API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	retry   reliability.Policy
}

func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   model,
		client:  &http.Client{Timeout: timeout},
		retry:   reliability.DefaultPolicy,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
		Delta   chatMessage `json:"delta"`
	} `json:"choices"`
}

func (c *HTTPClient) ClassifyTone(ctx context.Context, text string) (Tone, error) {
	out, err := c.complete(ctx, chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: toneInstruction},
			{Role: "user", Content: text},
		},
		MaxTokens: 5,
	}, nil)
	if err != nil {
		return ToneNeutral, fmt.Errorf("classify tone: %w", err)
	}
	return ParseTone(out), nil
}

func (c *HTTPClient) GenerateReply(ctx context.Context, req ReplyRequest) (string, error) {
	out, err := c.complete(ctx, chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.Message},
		},
		Temperature: 0.7,
		Stream:      req.OnDelta != nil,
	}, req.OnDelta)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func (c *HTTPClient) InterpretSearchTerm(ctx context.Context, term string) (string, error) {
	out, err := c.complete(ctx, chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: termInstruction},
			{Role: "user", Content: term},
		},
		MaxTokens: 30,
	}, nil)
	if err != nil {
		return term, fmt.Errorf("interpret search term: %w", err)
	}
	cleaned := strings.Trim(strings.TrimSpace(out), `"'`+"`")
	if cleaned == "" {
		return term, nil
	}
	return cleaned, nil
}

func (c *HTTPClient) complete(ctx context.Context, body chatRequest, onDelta DeltaHandler) (string, error) {
	body.Model = c.model
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var text string
	err = reliability.Retry(ctx, c.retry, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		res, err := c.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("send request: %w", err)
		}
		defer res.Body.Close()

		if err := reliability.CheckResponse("llm", res); err != nil {
			return err
		}

		ct := strings.ToLower(res.Header.Get("Content-Type"))
		if strings.Contains(ct, "text/event-stream") {
			text, err = consumeStream(res.Body, onDelta)
			return err
		}

		raw, err := io.ReadAll(res.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		var parsed chatResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if len(parsed.Choices) > 0 {
			text = parsed.Choices[0].Message.Content
		}
		if text != "" && onDelta != nil {
			return onDelta(text)
		}
		return nil
	})
	return text, err
}

func consumeStream(body io.Reader, onDelta DeltaHandler) (string, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if line == "[DONE]" {
			break
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return "", fmt.Errorf("decode stream chunk: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		out.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return "", err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("stream read: %w", err)
	}
	return out.String(), nil
}
