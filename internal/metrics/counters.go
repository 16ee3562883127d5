package metrics

import "sync/atomic"

// Snapshot is a point-in-time read of the process counters.
type Snapshot struct {
	Uploads      int64
	Downloads    int64
	Deleted      int64
	StorageBytes int64
}

// Counters holds the process-wide lifecycle counters. All fields are mutated
// atomically so serving goroutines and the cleanup scheduler can update them
// concurrently without a lock. State is process-local and lost on restart.
type Counters struct {
	uploads      atomic.Int64
	downloads    atomic.Int64
	deleted      atomic.Int64
	storageBytes atomic.Int64
}

// NewCounters creates a zeroed counter set. Components receive a *Counters at
// construction so tests can instantiate isolated instances.
func NewCounters() *Counters {
	return &Counters{}
}

// RecordUpload registers one successful upload of sizeBytes.
func (c *Counters) RecordUpload(sizeBytes int64) {
	c.uploads.Add(1)
	c.storageBytes.Add(sizeBytes)
}

// RecordDownload registers one served download.
func (c *Counters) RecordDownload() {
	c.downloads.Add(1)
}

// RecordDeletion registers one deleted file and releases its bytes.
func (c *Counters) RecordDeletion(sizeBytes int64) {
	c.deleted.Add(1)
	c.storageBytes.Add(-sizeBytes)
}

// Snapshot returns the current counter values. Reads are atomic per counter;
// a snapshot may interleave with in-flight increments but never observes a
// torn value.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Uploads:      c.uploads.Load(),
		Downloads:    c.downloads.Load(),
		Deleted:      c.deleted.Load(),
		StorageBytes: c.storageBytes.Load(),
	}
}
