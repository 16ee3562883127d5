package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alterbase/cdn/internal/models"
	"github.com/alterbase/cdn/internal/repository"
)

// HealthHandler reports service liveness and storage usage
func HealthHandler(repo repository.FileRepository, startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		resp := models.HealthResponse{
			Status:        "ok",
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
		}

		stats, err := repo.GetStats(r.Context())
		if err != nil {
			// Storage stats are best-effort; the process is still serving.
			slog.Error("failed to read storage stats", "error", err)
			resp.Status = "degraded"
		} else {
			resp.TotalFiles = stats.TotalFiles
			resp.StorageUsedBytes = stats.StorageUsed
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		sendJSON(w, status, resp)
	}
}
