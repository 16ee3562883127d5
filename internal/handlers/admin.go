package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/alterbase/cdn/internal/auth"
	"github.com/alterbase/cdn/internal/cleanup"
	"github.com/alterbase/cdn/internal/lockout"
	"github.com/alterbase/cdn/internal/models"
	"github.com/alterbase/cdn/internal/repository"
	"github.com/alterbase/cdn/internal/utils"
)

// cleanupRunner is the slice of the cleanup scheduler the manual trigger needs.
type cleanupRunner interface {
	RunOnce(ctx context.Context) (cleanup.Result, error)
}

// sessionTTL is how long an admin login stays valid.
const sessionTTL = 12 * time.Hour

// loginRequest is the POST /admin/login body.
type loginRequest struct {
	Password string `json:"password"`
}

// adminFileInfo extends the public listing with lifecycle fields only
// operators need.
type adminFileInfo struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	StoredName   string              `json:"stored_name"`
	ContentType  string              `json:"type"`
	SizeBytes    int64               `json:"size"`
	CreatedAt    time.Time           `json:"created_at"`
	Permanent    bool                `json:"permanent"`
	MirrorStatus models.MirrorStatus `json:"mirror_status"`
	MirrorHandle string              `json:"mirror_handle,omitempty"`
}

// AdminLoginHandler authenticates the admin password. Failed attempts are
// tracked per client IP; the guard locks the scope after repeated failures
// and extends the lock while attempts keep coming.
func AdminLoginHandler(verifier *auth.PasswordVerifier, sessions *auth.SessionStore, guard *lockout.Guard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		if verifier == nil {
			sendError(w, "Admin access is not configured", "ADMIN_DISABLED", http.StatusNotFound)
			return
		}

		ip := utils.GetClientIP(r)

		if locked, retryAfter := guard.CheckLocked(ip); locked {
			slog.Warn("admin login rejected, scope locked", "ip", ip, "retry_after", retryAfter)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			sendError(w, "Too many failed attempts. Try again later.", "ADMIN_LOCKED", http.StatusTooManyRequests)
			return
		}

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendError(w, "Invalid request body", "INVALID_REQUEST", http.StatusBadRequest)
			return
		}

		if !verifier.Verify(req.Password) {
			guard.RecordFailure(ip)
			slog.Warn("admin login failed", "ip", ip)
			sendError(w, "Invalid credentials", "INVALID_CREDENTIALS", http.StatusUnauthorized)
			return
		}

		guard.RecordSuccess(ip)

		token, err := sessions.Create()
		if err != nil {
			slog.Error("failed to create admin session", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     auth.SessionCookieName,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
			MaxAge:   int(sessionTTL.Seconds()),
		})

		slog.Info("admin login succeeded", "ip", ip)
		sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// AdminLogoutHandler revokes the current admin session.
func AdminLogoutHandler(sessions *auth.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		if cookie, err := r.Cookie(auth.SessionCookieName); err == nil {
			sessions.Revoke(cookie.Value)
		}

		http.SetCookie(w, &http.Cookie{
			Name:     auth.SessionCookieName,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			MaxAge:   -1,
		})

		sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// AdminFilesHandler lists all files with mirror and retention detail.
// Requires a valid admin session.
func AdminFilesHandler(repo repository.FileRepository, sessions *auth.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		if !hasAdminSession(r, sessions) {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		files, err := repo.List(r.Context())
		if err != nil {
			slog.Error("failed to list files for admin", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		infos := make([]adminFileInfo, 0, len(files))
		for _, f := range files {
			infos = append(infos, adminFileInfo{
				ID:           f.ID,
				Name:         f.OriginalName,
				StoredName:   f.StoredName,
				ContentType:  f.ContentType,
				SizeBytes:    f.SizeBytes,
				CreatedAt:    f.CreatedAt,
				Permanent:    f.Permanent,
				MirrorStatus: f.MirrorStatus,
				MirrorHandle: f.MirrorHandle,
			})
		}

		sendJSON(w, http.StatusOK, infos)
	}
}

// AdminCleanupHandler triggers one cleanup pass on demand. Requires a valid
// admin session.
func AdminCleanupHandler(runner cleanupRunner, sessions *auth.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		if !hasAdminSession(r, sessions) {
			sendError(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		result, err := runner.RunOnce(r.Context())
		if err != nil {
			slog.Error("manual cleanup run failed", "error", err)
			sendError(w, "Cleanup run failed", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		sendJSON(w, http.StatusOK, map[string]int{
			"evaluated": result.Evaluated,
			"skipped":   result.Skipped,
			"deleted":   result.Deleted,
			"errors":    result.Errors,
		})
	}
}

func hasAdminSession(r *http.Request, sessions *auth.SessionStore) bool {
	if sessions == nil {
		return false
	}
	cookie, err := r.Cookie(auth.SessionCookieName)
	if err != nil {
		return false
	}
	return sessions.Validate(cookie.Value)
}
