package blob

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no transport can be built from the
// cloud settings.
var ErrNotConfigured = errors.New("cloud transport not configured")

// Download is the result of a conditional fetch.
type Download struct {
	// NotModified is set when the remote object still matches the known ETag.
	NotModified bool
	// Data is the object body, empty when NotModified.
	Data []byte
	// ETag is the opaque version token of the object.
	ETag string
}

// Transport provides an interface for the encrypted remote object store.
// Implementations only ever see ciphertext.
type Transport interface {
	// Upload writes data under key and returns the new ETag (may be empty).
	Upload(ctx context.Context, key string, data []byte) (string, error)

	// Download fetches key unless it still matches etag. It returns nil and
	// no error when the object does not exist.
	Download(ctx context.Context, key, etag string) (*Download, error)
}
