package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gluk-w/bothive/internal/config"
	"golang.org/x/crypto/bcrypt"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// RequireAdmin guards privileged endpoints with the X-Admin-Token header.
// When ADMIN_TOKEN_HASH is set the token is checked against the bcrypt
// hash; otherwise ADMIN_TOKEN is compared in constant time. With neither
// configured, admin endpoints are disabled.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Admin-Token")
		if token == "" || !adminTokenValid(token) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid admin token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func adminTokenValid(token string) bool {
	if hash := config.Cfg.AdminTokenHash; hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
	}
	if secret := config.Cfg.AdminToken; secret != "" {
		return subtle.ConstantTimeCompare([]byte(secret), []byte(token)) == 1
	}
	return false
}
