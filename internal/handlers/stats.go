package handlers

import (
	"net/http"

	"github.com/alterbase/cdn/internal/metrics"
	"github.com/alterbase/cdn/internal/models"
)

// StatsHandler returns the process-local lifecycle counters. Values reset on
// restart; Prometheus is the durable view.
func StatsHandler(counters *metrics.Counters) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		snap := counters.Snapshot()

		w.Header().Set("Cache-Control", "no-store")
		sendJSON(w, http.StatusOK, models.StatsResponse{
			Uploads:      snap.Uploads,
			Downloads:    snap.Downloads,
			Deleted:      snap.Deleted,
			StorageBytes: snap.StorageBytes,
		})
	}
}
