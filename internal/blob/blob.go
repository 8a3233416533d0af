// Package blob abstracts the external image store. Uploads return a stable
// object id plus a public URL; deletes are best-effort and must never gate a
// database commit — callers log failures and move on.
package blob

import (
	"context"
	"io"
)

// Object identifies a stored blob
type Object struct {
	ID  string
	URL string
}

// Store is the blob store consumed by the core services
type Store interface {
	// Upload stores the bytes under a fresh object id inside folder and
	// returns the reference. A new upload always gets a fresh id; blobs are
	// never mutated in place.
	Upload(ctx context.Context, r io.Reader, folder, filename, contentType string) (Object, error)

	// Delete removes a previously uploaded object. The returned error is for
	// observability only; callers must not fail a committed operation on it.
	Delete(ctx context.Context, id string) error
}
