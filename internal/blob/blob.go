// Package blob abstracts the object store holding letter scans. The store
// is treated as an opaque service: a successful upload is assumed to be
// immediately retrievable, and retrieval for browsers goes through
// time-limited signed URLs.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound indicates no object exists at the requested path.
var ErrNotFound = errors.New("blob: object not found")

// Store is the port to the object store.
type Store interface {
	// Put uploads an object, overwriting any existing content at path.
	Put(ctx context.Context, path, contentType string, data io.Reader) error

	// Open returns a reader over the object's content.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// SignedURL returns a time-limited direct download URL.
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error
}
