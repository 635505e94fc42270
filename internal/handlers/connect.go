package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/gluk-w/bothive/internal/config"
	"github.com/gluk-w/bothive/internal/logutil"
	"github.com/gluk-w/bothive/internal/registry"
	"github.com/gluk-w/bothive/internal/session"
)

var (
	// Bot names double as storage keys (directory names, table keys), so
	// the charset is restricted up front.
	botNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

	ownerNumberRe = regexp.MustCompile(`^\+\d{10,15}$`)

	// enrollMu serializes the cap check against record creation so
	// concurrent connects cannot overshoot MaxBots.
	enrollMu sync.Mutex
)

type connectRequest struct {
	BotName     string `json:"botName"`
	OwnerNumber string `json:"ownerNumber"`
	SessionID   string `json:"sessionId"`
}

// ConnectBot enrolls a bot and starts its session. Validation failures
// return 400 with no state created; the cap returns 429. The session
// itself is established asynchronously — poll GET /api/users for status.
func ConnectBot(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.BotName == "" || req.OwnerNumber == "" || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if !botNameRe.MatchString(req.BotName) {
		writeError(w, http.StatusBadRequest, "Invalid bot name: letters, digits, - and _ only")
		return
	}
	if !ownerNumberRe.MatchString(req.OwnerNumber) {
		writeError(w, http.StatusBadRequest, "Invalid owner number format (e.g. +254735342808)")
		return
	}
	if err := session.ValidateSeed(req.SessionID); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session ID: must be base64 JSON with me.id and deviceId")
		return
	}

	if !enroll(w, req) {
		return
	}

	if err := Sup.Start(req.BotName, req.OwnerNumber, req.SessionID); err != nil {
		// Roll the tenant record back; enrollment must be atomic.
		if rmErr := Tenants.Remove(req.BotName); rmErr != nil {
			log.Printf("[api] rollback bot %s: %v", logutil.SanitizeForLog(req.BotName), rmErr)
		}
		if errors.Is(err, session.ErrInvalidSeed) {
			writeError(w, http.StatusBadRequest, "Invalid session ID: must be base64 JSON with me.id and deviceId")
			return
		}
		log.Printf("[api] start bot %s: %v", logutil.SanitizeForLog(req.BotName), err)
		writeError(w, http.StatusInternalServerError, "Failed to start bot")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Bot " + req.BotName + " is being connected",
		"botName": req.BotName,
	})
}

// enroll claims the bot name under the cap. Create is insert-only, so two
// concurrent requests for the same name cannot both get through; exactly
// one caller ends up owning the record.
func enroll(w http.ResponseWriter, req connectRequest) bool {
	enrollMu.Lock()
	defer enrollMu.Unlock()

	recs, err := Tenants.List()
	if err != nil {
		log.Printf("[api] list bots: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to check bot limit")
		return false
	}
	// Duplicate beats the cap: re-claiming a taken name at a full host
	// is a naming error, not a capacity one.
	for _, rec := range recs {
		if rec.BotName == req.BotName {
			writeError(w, http.StatusBadRequest, "Bot name already in use")
			return false
		}
	}
	if len(recs) >= config.Cfg.MaxBots {
		writeError(w, http.StatusTooManyRequests, "Maximum bot limit reached")
		return false
	}

	rec := registry.Record{
		BotName:        req.BotName,
		OwnerNumber:    req.OwnerNumber,
		SessionSeed:    req.SessionID,
		Status:         registry.StatusConnecting,
		LastActivityAt: time.Now(),
	}
	if err := Tenants.Create(rec); err != nil {
		if errors.Is(err, registry.ErrExists) {
			writeError(w, http.StatusBadRequest, "Bot name already in use")
			return false
		}
		log.Printf("[api] register bot %s: %v", logutil.SanitizeForLog(req.BotName), err)
		writeError(w, http.StatusInternalServerError, "Failed to register bot")
		return false
	}
	return true
}
