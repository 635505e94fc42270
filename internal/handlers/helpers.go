package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gluk-w/bothive/internal/registry"
	"github.com/gluk-w/bothive/internal/store"
	"github.com/gluk-w/bothive/internal/supervisor"
)

// Package-level collaborators, wired in main before the router starts.
var (
	Sup     *supervisor.Supervisor
	Tenants registry.Registry
	Creds   store.Store
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"error": detail})
}
