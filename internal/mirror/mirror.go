// Package mirror copies stored files to a remote target in the background.
// A file's mirror status gates cleanup: the local copy is never deleted
// before the remote copy is confirmed.
package mirror

import (
	"context"
	"io"
)

// Client is the remote mirror target. Implementations must be safe for
// concurrent use by the worker pool.
type Client interface {
	// Put uploads the object under the given key and returns the remote
	// handle used for later deletion.
	Put(ctx context.Context, key string, reader io.Reader, size int64) (string, error)

	// Delete removes the remote object by handle. Deleting a missing
	// object is not an error.
	Delete(ctx context.Context, handle string) error
}
