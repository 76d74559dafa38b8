package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// ErrInvalidKey is returned for object keys that escape the storage root.
var ErrInvalidKey = errors.New("invalid object key")

// ObjectStore persists uploaded media and hands out time-limited read URLs.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	URL(ctx context.Context, key string) (string, time.Time, error)
	Delete(ctx context.Context, key string) error
}

// CleanKey normalises an object key and rejects traversal outside the root.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean("/" + key)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
