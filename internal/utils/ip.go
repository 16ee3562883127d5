// Package utils holds small request helpers shared by the handlers and
// middleware packages.
package utils

import (
	"net/http"
	"strings"
)

// GetClientIP extracts the client IP address from the request, preferring
// proxy headers over the socket address.
func GetClientIP(r *http.Request) string {
	// X-Forwarded-For first (for proxies); take the first IP in the chain
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr (strip port)
	if idx := strings.LastIndex(r.RemoteAddr, ":"); idx != -1 {
		return r.RemoteAddr[:idx]
	}

	return r.RemoteAddr
}
