package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gluk-w/bothive/internal/logutil"
	"github.com/gluk-w/bothive/internal/registry"
)

// BotEvents returns a bot's recent lifecycle history: the current
// connection state, its state transitions, and the event log. History is
// in-memory only and resets on restart.
func BotEvents(w http.ResponseWriter, r *http.Request) {
	botName := chi.URLParam(r, "botName")

	rec, err := Tenants.Get(botName)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Bot not found")
			return
		}
		log.Printf("[api] lookup bot %s: %v", logutil.SanitizeForLog(botName), err)
		writeError(w, http.StatusInternalServerError, "Failed to look up bot")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"botName":     rec.BotName,
		"status":      rec.Status,
		"state":       Sup.State(botName).String(),
		"transitions": Sup.StateTransitions(botName),
		"events":      Sup.EventHistory(botName),
	})
}
