package ports

import (
	"context"
	"io"
)

// FileStore uploads user content to object storage and hands back a public URL.
type FileStore interface {
	// Upload stores the object under key, replacing any previous object,
	// and returns its public URL.
	Upload(ctx context.Context, key, contentType string, body io.Reader) (publicURL string, err error)

	// Remove deletes the object under key. Missing objects are not an error.
	Remove(ctx context.Context, key string) error
}
