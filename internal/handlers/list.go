package handlers

import (
	"log/slog"
	"net/http"

	"github.com/alterbase/cdn/internal/config"
	"github.com/alterbase/cdn/internal/models"
	"github.com/alterbase/cdn/internal/service"
)

// ListHandler returns all stored files, newest first
func ListHandler(svc *service.UploadService, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		files, err := svc.List(r.Context())
		if err != nil {
			slog.Error("failed to list files", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		infos := make([]models.FileInfo, 0, len(files))
		for _, f := range files {
			infos = append(infos, models.FileInfo{
				ID:        f.ID,
				URL:       buildFileURL(r, cfg, f.ID),
				Name:      f.OriginalName,
				SizeBytes: f.SizeBytes,
				CreatedAt: f.CreatedAt,
			})
		}

		sendJSON(w, http.StatusOK, infos)
	}
}
