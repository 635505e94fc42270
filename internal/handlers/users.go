package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gluk-w/bothive/internal/registry"
)

type userSummary struct {
	BotName        string          `json:"botName"`
	OwnerNumber    string          `json:"ownerNumber"`
	Status         registry.Status `json:"status"`
	Live           bool            `json:"live"`
	LastActivityAt time.Time       `json:"lastActivityAt"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// ListUsers returns every enrolled bot with its persisted status and a
// live flag from the supervisor. Persisted status can trail reality
// briefly (e.g. right after a crash); live reflects the current process.
func ListUsers(w http.ResponseWriter, r *http.Request) {
	recs, err := Tenants.List()
	if err != nil {
		log.Printf("[api] list bots: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list bots")
		return
	}

	users := make([]userSummary, 0, len(recs))
	for _, rec := range recs {
		users = append(users, userSummary{
			BotName:        rec.BotName,
			OwnerNumber:    rec.OwnerNumber,
			Status:         rec.Status,
			Live:           Sup.IsActive(rec.BotName),
			LastActivityAt: rec.LastActivityAt,
			CreatedAt:      rec.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(users),
		"users": users,
	})
}
