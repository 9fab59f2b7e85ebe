package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ent0n29/sofia/internal/reliability"
)

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, req chatRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient(url string) *HTTPClient {
	c := NewHTTPClient(Config{BaseURL: url + "/", APIKey: "test-key", Model: "test-model", Timeout: 5 * time.Second})
	c.retry = reliability.Policy{Attempts: 3, Base: time.Millisecond, Cap: time.Millisecond}
	return c
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q}}]}`, content)
}

func TestHTTPClientGenerateReply(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, req chatRequest) {
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "quem é você?" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		writeCompletion(w, "  Sou a Sofia.  ")
	})

	got, err := testClient(srv.URL).GenerateReply(context.Background(), ReplyRequest{
		Message:      "quem é você?",
		SystemPrompt: "Você é Sofia.",
	})
	if err != nil {
		t.Fatalf("GenerateReply() error = %v", err)
	}
	if got != "Sou a Sofia." {
		t.Fatalf("GenerateReply() = %q, want %q", got, "Sou a Sofia.")
	}
}

func TestHTTPClientStreamsDeltas(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, req chatRequest) {
		if !req.Stream {
			t.Errorf("stream = false, want true")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, strings.Join([]string{
			": keepalive",
			`data: {"choices":[{"delta":{"content":"Olá"}}]}`,
			"",
			`data: {"choices":[{"delta":{"content":", tudo bem?"}}]}`,
			"",
			"data: [DONE]",
			"",
		}, "\n"))
	})

	var deltas []string
	got, err := testClient(srv.URL).GenerateReply(context.Background(), ReplyRequest{
		Message: "oi",
		OnDelta: func(d string) error {
			deltas = append(deltas, d)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("GenerateReply() error = %v", err)
	}
	if got != "Olá, tudo bem?" {
		t.Fatalf("GenerateReply() = %q", got)
	}
	if len(deltas) != 2 {
		t.Fatalf("deltas = %q, want 2 fragments", deltas)
	}
}

func TestHTTPClientRetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, req chatRequest) {
		if calls.Add(1) < 3 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		writeCompletion(w, "animado")
	})

	tone, err := testClient(srv.URL).ClassifyTone(context.Background(), "que legal!!!")
	if err != nil {
		t.Fatalf("ClassifyTone() error = %v", err)
	}
	if tone != ToneExcited {
		t.Fatalf("ClassifyTone() = %q, want %q", tone, ToneExcited)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestHTTPClientReturnsStatusError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, req chatRequest) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	})

	_, err := testClient(srv.URL).GenerateReply(context.Background(), ReplyRequest{Message: "oi"})
	var se *reliability.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("GenerateReply() error = %v, want *reliability.StatusError", err)
	}
	if se.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", se.Code)
	}
}

func TestHTTPClientInterpretSearchTerm(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, req chatRequest) {
		writeCompletion(w, `"relatorio_vendas"`)
	})

	got, err := testClient(srv.URL).InterpretSearchTerm(context.Background(), "aquele relatório de vendas")
	if err != nil {
		t.Fatalf("InterpretSearchTerm() error = %v", err)
	}
	if got != "relatorio_vendas" {
		t.Fatalf("InterpretSearchTerm() = %q", got)
	}
}

func TestParseTone(t *testing.T) {
	cases := map[string]Tone{
		"Animado.": ToneExcited,
		"sério":    ToneSerious,
		"Serio":    ToneSerious,
		"neutro":   ToneNeutral,
		"???":      ToneNeutral,
	}
	for in, want := range cases {
		if got := ParseTone(in); got != want {
			t.Fatalf("ParseTone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewClientModes(t *testing.T) {
	c, err := NewClient(Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("NewClient(auto) error = %v", err)
	}
	if _, ok := c.(*MockClient); !ok {
		t.Fatalf("auto without key = %T, want *MockClient", c)
	}

	c, err = NewClient(Config{Mode: "auto", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient(auto, key) error = %v", err)
	}
	if _, ok := c.(*HTTPClient); !ok {
		t.Fatalf("auto with key = %T, want *HTTPClient", c)
	}

	if _, err := NewClient(Config{Mode: "live"}); err == nil {
		t.Fatalf("NewClient(live) without key error = nil")
	}
	if _, err := NewClient(Config{Mode: "psychic"}); err == nil {
		t.Fatalf("NewClient(psychic) error = nil")
	}
}

func TestMockClient(t *testing.T) {
	m := NewMockClient()
	ctx := context.Background()

	reply, err := m.GenerateReply(ctx, ReplyRequest{Message: "qual o horário?"})
	if err != nil || !strings.Contains(reply, "qual o horário?") {
		t.Fatalf("GenerateReply() = %q, %v", reply, err)
	}
	empty, err := m.GenerateReply(ctx, ReplyRequest{Message: "  "})
	if err != nil || empty != "" {
		t.Fatalf("GenerateReply(blank) = %q, %v; want empty, nil", empty, err)
	}
	if tone, _ := m.ClassifyTone(ctx, "URGENTE: servidor caiu"); tone != ToneSerious {
		t.Fatalf("ClassifyTone() = %q, want %q", tone, ToneSerious)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := m.GenerateReply(canceled, ReplyRequest{Message: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("GenerateReply(canceled) error = %v", err)
	}
}
