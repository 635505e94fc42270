package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gluk-w/bothive/internal/logutil"
	"github.com/gluk-w/bothive/internal/registry"
	"github.com/gluk-w/bothive/internal/store"
)

// DeleteBot stops a bot and removes all of its state: the live session,
// the tenant record, and any persisted credentials.
func DeleteBot(w http.ResponseWriter, r *http.Request) {
	botName := chi.URLParam(r, "botName")

	if _, err := Tenants.Get(botName); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Bot not found")
			return
		}
		log.Printf("[admin] lookup bot %s: %v", logutil.SanitizeForLog(botName), err)
		writeError(w, http.StatusInternalServerError, "Failed to look up bot")
		return
	}

	Sup.Forget(botName)

	if err := Tenants.Remove(botName); err != nil && !errors.Is(err, registry.ErrNotFound) {
		log.Printf("[admin] remove bot %s: %v", logutil.SanitizeForLog(botName), err)
		writeError(w, http.StatusInternalServerError, "Failed to remove bot")
		return
	}
	if err := Creds.Delete(botName); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("[admin] delete creds %s: %v", logutil.SanitizeForLog(botName), err)
	}

	log.Printf("[admin] deleted bot %s", logutil.SanitizeForLog(botName))
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Bot " + botName + " deleted",
	})
}

// DeleteAllBots wipes every bot. Individual failures are logged and
// skipped so one broken record cannot block the rest.
func DeleteAllBots(w http.ResponseWriter, r *http.Request) {
	recs, err := Tenants.List()
	if err != nil {
		log.Printf("[admin] list bots: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list bots")
		return
	}

	deleted := 0
	for _, rec := range recs {
		Sup.Forget(rec.BotName)
		if err := Tenants.Remove(rec.BotName); err != nil && !errors.Is(err, registry.ErrNotFound) {
			log.Printf("[admin] remove bot %s: %v", logutil.SanitizeForLog(rec.BotName), err)
			continue
		}
		if err := Creds.Delete(rec.BotName); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("[admin] delete creds %s: %v", logutil.SanitizeForLog(rec.BotName), err)
		}
		deleted++
	}

	log.Printf("[admin] deleted %d bots", deleted)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "All bots deleted",
		"deleted": deleted,
	})
}
