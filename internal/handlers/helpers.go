package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/alterbase/cdn/internal/config"
	"github.com/alterbase/cdn/internal/models"
)

// sendError writes a JSON error response
func sendError(w http.ResponseWriter, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// sendJSON writes a JSON response with the given status
func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// buildFileURL constructs the public URL for a file identifier.
// Respects PUBLIC_URL config and reverse proxy headers.
func buildFileURL(r *http.Request, cfg *config.Config, id string) string {
	if cfg.PublicURL != "" {
		return strings.TrimSuffix(cfg.PublicURL, "/") + "/files/" + id
	}

	return getScheme(r) + "://" + getHost(r) + "/files/" + id
}

// getScheme returns the scheme (http/https) respecting reverse proxy headers
func getScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// getHost returns the host respecting reverse proxy headers
func getHost(r *http.Request) string {
	if host := r.Header.Get("X-Forwarded-Host"); host != "" {
		return host
	}
	return r.Host
}
