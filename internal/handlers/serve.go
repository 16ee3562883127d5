package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/alterbase/cdn/internal/config"
	"github.com/alterbase/cdn/internal/metrics"
	"github.com/alterbase/cdn/internal/repository"
	"github.com/alterbase/cdn/internal/service"
	"github.com/alterbase/cdn/internal/storage"
)

// ServeHandler streams stored file bytes for GET /files/{id} with cache
// headers suited for a CDN or browser cache in front.
func ServeHandler(svc *service.UploadService, store storage.Backend, counters *metrics.Counters, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		id := strings.TrimPrefix(r.URL.Path, "/files/")
		if id == "" || strings.Contains(id, "/") {
			sendError(w, "Invalid file identifier", "INVALID_ID", http.StatusBadRequest)
			return
		}

		file, err := svc.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				metrics.DownloadsTotal.WithLabelValues("not_found").Inc()
				sendError(w, "File not found", "NOT_FOUND", http.StatusNotFound)
				return
			}
			slog.Error("failed to load file metadata", "file_id", id, "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		reader, err := store.Retrieve(r.Context(), file.StoredName)
		if err != nil {
			// A row without bytes means a reconciliation gap; surface it as
			// not found rather than leaking storage details.
			slog.Error("stored bytes missing for file row",
				"file_id", file.ID,
				"stored_name", file.StoredName,
				"error", err,
			)
			metrics.DownloadsTotal.WithLabelValues("missing_bytes").Inc()
			sendError(w, "File not found", "NOT_FOUND", http.StatusNotFound)
			return
		}
		defer reader.Close()

		w.Header().Set("Content-Type", file.ContentType)
		w.Header().Set("Content-Length", strconv.FormatInt(file.SizeBytes, 10))
		w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": file.OriginalName}))
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(cfg.CacheMaxAgeSeconds))
		w.Header().Set("X-Content-Type-Options", "nosniff")

		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}

		counters.RecordDownload()
		metrics.DownloadsTotal.WithLabelValues("success").Inc()

		if _, err := io.Copy(w, reader); err != nil {
			// Headers are already out; all we can do is log the broken copy.
			slog.Warn("file serve interrupted", "file_id", file.ID, "error", err)
		}
	}
}
