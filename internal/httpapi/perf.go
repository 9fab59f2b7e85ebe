package httpapi

import (
	"net/http"
	"time"

	"github.com/ent0n29/sofia/internal/observability"
)

func (s *Server) handleTurnStats(w http.ResponseWriter, _ *http.Request) {
	if s.turns == nil {
		respondJSON(w, http.StatusOK, observability.TurnSnapshot{
			GeneratedAt: time.Now().UTC(),
			Intents:     []observability.IntentStats{},
		})
		return
	}
	respondJSON(w, http.StatusOK, s.turns.Snapshot())
}
