package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ent0n29/sofia/internal/assistant"
	"github.com/ent0n29/sofia/internal/config"
	"github.com/ent0n29/sofia/internal/intent"
	"github.com/ent0n29/sofia/internal/observability"
	"github.com/ent0n29/sofia/internal/protocol"
	"github.com/ent0n29/sofia/internal/session"
)

const (
	anonymousUser = "anonymous"
	maxBodyBytes  = 1 << 20
)

// Assistant is the conversational core served over HTTP.
type Assistant interface {
	Respond(ctx context.Context, turn assistant.Turn) assistant.Reply
	ResetUser(userID string)
	State(userID string) session.Snapshot
	ActiveFlows() (boardMode, learning int)
	ClearCache()
	Explain(userID, message string) intent.Decision
}

type Options struct {
	Config    config.Config
	Assistant Assistant
	Metrics   *observability.Metrics
	Turns     *observability.TurnWindow
	Logger    *zap.Logger
	// Components describes the collaborator variants in use, reported by
	// the readiness endpoint.
	Components map[string]string
}

type Server struct {
	cfg        config.Config
	assistant  Assistant
	metrics    *observability.Metrics
	turns      *observability.TurnWindow
	logger     *zap.Logger
	components map[string]string
	upgrader   websocket.Upgrader
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	components := opts.Components
	if components == nil {
		components = map[string]string{}
	}
	cfg := opts.Config
	return &Server{
		cfg:        cfg,
		assistant:  opts.Assistant,
		metrics:    opts.Metrics,
		turns:      opts.Turns,
		logger:     logger.Named("httpapi"),
		components: components,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			http.NotFound(w, r)
			return
		}
		s.metrics.Handler().ServeHTTP(w, r)
	})

	r.Route("/v1/chat", func(r chi.Router) {
		r.Post("/messages", s.handleChatMessage)
		r.Get("/ws", s.handleChatWS)
		r.Get("/users/{id}/state", s.handleUserState)
		r.Delete("/users/{id}/state", s.handleResetUser)
	})
	r.Route("/v1/admin", func(r chi.Router) {
		r.Post("/cache/clear", s.handleClearCache)
		r.Post("/classify", s.handleClassify)
		r.Get("/turns", s.handleTurnStats)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.assistant == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":     "unavailable",
			"components": s.components,
		})
		return
	}
	boardMode, learning := s.assistant.ActiveFlows()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "ready",
		"components":       s.components,
		"board_mode_users": boardMode,
		"learning_drafts":  learning,
	})
}

type chatRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Message  string `json:"message"`
}

type chatResponse struct {
	Reply   string `json:"reply"`
	Intent  string `json:"intent"`
	ErrorID string `json:"error_id,omitempty"`
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	if s.assistant == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "assistant not configured")
		return
	}
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	msg, err := validateMessage(req.Message)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_message", err.Error())
		return
	}

	reply := s.assistant.Respond(r.Context(), assistant.Turn{
		UserID:   userOrAnonymous(req.UserID),
		UserName: strings.TrimSpace(req.UserName),
		Message:  msg,
	})
	respondJSON(w, http.StatusOK, chatResponse{
		Reply:   reply.Text,
		Intent:  string(reply.Intent),
		ErrorID: reply.ErrorID,
	})
}

func (s *Server) handleUserState(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "missing user id")
		return
	}
	if s.assistant == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "assistant not configured")
		return
	}
	respondJSON(w, http.StatusOK, s.assistant.State(id))
}

func (s *Server) handleResetUser(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "missing user id")
		return
	}
	if s.assistant == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "assistant not configured")
		return
	}
	s.assistant.ResetUser(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearCache(w http.ResponseWriter, _ *http.Request) {
	if s.assistant == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "assistant not configured")
		return
	}
	s.assistant.ClearCache()
	s.logger.Info("result cache cleared over http")
	respondJSON(w, http.StatusOK, map[string]any{"status": "cleared"})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if s.assistant == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "assistant not configured")
		return
	}
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	msg, err := validateMessage(req.Message)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_message", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.assistant.Explain(userOrAnonymous(req.UserID), msg))
}

func validateMessage(raw string) (string, error) {
	msg := strings.TrimSpace(raw)
	if msg == "" {
		return "", errors.New("message is required")
	}
	if len([]rune(msg)) > protocol.MaxMessageRunes {
		return "", errors.New("message is too long")
	}
	return msg, nil
}

func userOrAnonymous(id string) string {
	if id = strings.TrimSpace(id); id == "" {
		return anonymousUser
	}
	return id
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
