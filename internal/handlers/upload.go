// Package handlers implements the HTTP surface: anonymous uploads, cached
// file serving, listings, stats, health, and the admin endpoints.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"

	"github.com/alterbase/cdn/internal/config"
	"github.com/alterbase/cdn/internal/models"
	"github.com/alterbase/cdn/internal/service"
	"github.com/alterbase/cdn/internal/slug"
	"github.com/alterbase/cdn/internal/utils"
)

// UploadHandler handles anonymous multipart file uploads
func UploadHandler(svc *service.UploadService, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		// Form encoding overhead sits on top of the file itself, so the body
		// cap leaves headroom; the service enforces the exact byte limit.
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxFileSize+1<<20)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			sendError(w, "File too large or invalid form data", "FILE_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			sendError(w, "No file provided", "NO_FILE", http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Size > cfg.MaxFileSize {
			sendError(w, "File size exceeds maximum of "+strconv.FormatInt(cfg.MaxFileSize, 10)+" bytes", "FILE_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return
		}

		var permanent bool
		if v := r.FormValue("permanent"); v != "" {
			permanent, err = strconv.ParseBool(v)
			if err != nil {
				sendError(w, "Invalid permanent parameter", "INVALID_PARAMETER", http.StatusBadRequest)
				return
			}
		}

		// Sniff the content type from the bytes rather than trusting the
		// client-declared header.
		contentType := header.Header.Get("Content-Type")
		if mtype, err := mimetype.DetectReader(file); err == nil {
			contentType = mtype.String()
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			slog.Error("failed to rewind upload after sniffing", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		stored, err := svc.Upload(r.Context(), service.UploadRequest{
			Reader:       file,
			OriginalName: header.Filename,
			ContentType:  contentType,
			DeclaredSize: header.Size,
			Permanent:    permanent,
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrPayloadTooLarge):
				sendError(w, "File size exceeds maximum of "+strconv.FormatInt(cfg.MaxFileSize, 10)+" bytes", "FILE_TOO_LARGE", http.StatusRequestEntityTooLarge)
			case errors.Is(err, service.ErrSizeMismatch):
				sendError(w, "Uploaded size does not match declared size", "SIZE_MISMATCH", http.StatusBadRequest)
			case errors.Is(err, slug.ErrCapacityExhausted):
				slog.Error("identifier capacity exhausted", "error", err)
				sendError(w, "Unable to allocate a file identifier, try a longer FILE_ID_LENGTH", "ID_CAPACITY_EXHAUSTED", http.StatusServiceUnavailable)
			default:
				slog.Error("upload failed", "filename", header.Filename, "client_ip", utils.GetClientIP(r), "error", err)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			}
			return
		}

		sendJSON(w, http.StatusCreated, models.UploadResponse{
			ID:           stored.ID,
			URL:          buildFileURL(r, cfg, stored.ID),
			OriginalName: stored.OriginalName,
			SizeBytes:    stored.SizeBytes,
			ContentType:  stored.ContentType,
			Permanent:    stored.Permanent,
			CreatedAt:    stored.CreatedAt,
		})
	}
}
