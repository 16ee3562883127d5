package models

import "time"

// MirrorStatus tracks the state of a file's remote mirror copy.
type MirrorStatus string

const (
	// MirrorNone means no mirror task has been scheduled for the file.
	MirrorNone MirrorStatus = "none"
	// MirrorPending means a mirror task is scheduled or in flight.
	MirrorPending MirrorStatus = "pending"
	// MirrorComplete means the remote copy is confirmed. Terminal: once set
	// it is never reverted.
	MirrorComplete MirrorStatus = "complete"
	// MirrorFailed means the mirror task exhausted its retries. Files in
	// this state are never auto-deleted.
	MirrorFailed MirrorStatus = "failed"
)

// File represents a stored file record in the database
type File struct {
	ID           string // public slug, primary key
	OriginalName string
	StoredName   string // filename on the storage backend
	ContentType  string
	SizeBytes    int64
	CreatedAt    time.Time
	Permanent    bool // exempt from cleanup forever
	MirrorStatus MirrorStatus
	MirrorHandle string // remote object key, set when the mirror completes
}

// UploadResponse is the JSON response returned after a successful upload
type UploadResponse struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	OriginalName string    `json:"name"`
	SizeBytes    int64     `json:"size"`
	ContentType  string    `json:"type"`
	Permanent    bool      `json:"permanent"`
	CreatedAt    time.Time `json:"created_at"`
}

// FileInfo is one entry in the file listing
type FileInfo struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorResponse is the JSON error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StatsResponse is the JSON response for the stats endpoint
type StatsResponse struct {
	Uploads      int64 `json:"uploads"`
	Downloads    int64 `json:"downloads"`
	Deleted      int64 `json:"deleted"`
	StorageBytes int64 `json:"storage_bytes"`
}

// HealthResponse is the JSON response for the health check endpoint
type HealthResponse struct {
	Status           string `json:"status"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	TotalFiles       int64  `json:"total_files"`
	StorageUsedBytes int64  `json:"storage_used_bytes"`
}
