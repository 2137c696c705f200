package object

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrNotFound reports that no object exists at the requested key.
var ErrNotFound = errors.New("object not found")

// Store defines the contract for storing opaque blobs keyed by a path string.
// Upload and Delete fail on transport errors; Delete is idempotent, deleting
// a missing key is not an error. SignedURL fails with ErrNotFound when the
// key has no live object.
type Store interface {
	Upload(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// InferContentType guesses a content type from the key suffix. Used when the
// caller did not supply one.
func InferContentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(key, ".docx"):
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
