package handlers

import (
	"net/http"

	"github.com/gluk-w/bothive/internal/config"
	"github.com/gluk-w/bothive/internal/database"
)

// HealthCheck reports process liveness, the active storage backend, and
// database reachability when the database backend is in use.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"backend": config.Cfg.StorageBackend,
		"bots":    len(Sup.Active()),
	}

	if database.DB != nil {
		sqlDB, err := database.DB.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			resp["status"] = "degraded"
			resp["database"] = "unreachable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp["database"] = "ok"
	}

	writeJSON(w, http.StatusOK, resp)
}
