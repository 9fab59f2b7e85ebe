package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ent0n29/sofia/internal/assistant"
	"github.com/ent0n29/sofia/internal/handlers"
	"github.com/ent0n29/sofia/internal/protocol"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsIdleTimeout  = 120 * time.Second
	wsReadLimit    = 64 << 10
)

// handleChatWS serves one chat connection. Turns from a connection run in
// arrival order; reply fragments are streamed as assistant_delta messages
// before the final assistant_reply.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	if s.assistant == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "assistant not configured")
		return
	}
	userID := userOrAnonymous(r.URL.Query().Get("user_id"))
	userName := strings.TrimSpace(r.URL.Query().Get("user_name"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	log := s.logger.With(zap.String("session_id", sessionID), zap.String("user_id", userID))
	log.Info("chat websocket connected")
	if s.metrics != nil {
		s.metrics.ActiveSockets.Inc()
		defer s.metrics.ActiveSockets.Dec()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 16)
	outbound := make(chan any, 64)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(msg); err != nil {
					log.Debug("websocket write failed", zap.Error(err))
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.observeWS("outbound", t)
				}
			}
		}
	}()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		s.runConnection(ctx, sessionID, userID, userName, inbound, outbound)
	}()

	enqueue(ctx, outbound, protocol.SystemEvent{
		Type:      protocol.TypeSystemEvent,
		SessionID: sessionID,
		Code:      "connected",
		Detail:    userID,
	})

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			errEvent := protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			}
			select {
			case outbound <- errEvent:
			default:
				// Keep websocket writes single-threaded; drop if the queue is saturated.
				log.Warn("outbound queue full, dropping error event")
			}
			continue
		}

		if t, ok := messageTypeOf(parsed); ok {
			s.observeWS("inbound", t)
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
	log.Info("chat websocket disconnected")
}

func (s *Server) runConnection(ctx context.Context, sessionID, userID, userName string, inbound <-chan any, outbound chan<- any) {
	for msg := range inbound {
		if ctx.Err() != nil {
			return
		}
		switch m := msg.(type) {
		case protocol.UserMessage:
			turnID := uuid.NewString()
			turnCtx := handlers.WithDeltaSink(ctx, func(delta string) error {
				if !enqueue(ctx, outbound, protocol.AssistantDelta{
					Type:      protocol.TypeAssistantDelta,
					SessionID: sessionID,
					TurnID:    turnID,
					Text:      delta,
				}) {
					return ctx.Err()
				}
				return nil
			})
			reply := s.assistant.Respond(turnCtx, assistant.Turn{UserID: userID, UserName: userName, Message: m.Text})
			enqueue(ctx, outbound, protocol.AssistantReply{
				Type:      protocol.TypeAssistantReply,
				SessionID: sessionID,
				TurnID:    turnID,
				Intent:    string(reply.Intent),
				Text:      reply.Text,
				ErrorID:   reply.ErrorID,
			})
		case protocol.ClientControl:
			code := "pong"
			if m.Action == protocol.ActionReset {
				s.assistant.ResetUser(userID)
				code = "state_reset"
			}
			enqueue(ctx, outbound, protocol.SystemEvent{
				Type:      protocol.TypeSystemEvent,
				SessionID: sessionID,
				Code:      code,
			})
		}
	}
}

// enqueue blocks until msg is queued or ctx ends.
func enqueue(ctx context.Context, outbound chan<- any, msg any) bool {
	select {
	case <-ctx.Done():
		return false
	case outbound <- msg:
		return true
	}
}

func (s *Server) observeWS(direction string, t protocol.MessageType) {
	if s.metrics == nil {
		return
	}
	s.metrics.WSMessages.WithLabelValues(direction, string(t)).Inc()
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.UserMessage:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.AssistantDelta:
		return m.Type, true
	case protocol.AssistantReply:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
