package photostore

import (
	"context"
	"io"
)

// Store persists label photos. Save returns an opaque storage key the
// bottle record carries; Get resolves a key back to bytes and a MIME type.
type Store interface {
	Save(ctx context.Context, prefix, mimeType string, r io.Reader) (storageKey string, err error)
	Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, storageKey string) error
}
