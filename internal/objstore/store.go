// Package objstore stores generated binary artifacts (character
// images, placeholder art) in a MinIO bucket and hands back stable
// public URLs for job records to reference.
package objstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// Store abstracts object storage so generation logic can be unit
// tested without a live MinIO instance. The default implementation is
// *MinioStore; Memory is provided for tests.
type Store interface {
	// Put uploads an object and returns its public URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Get downloads an object. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists reports whether an object is present.
	Exists(ctx context.Context, key string) (bool, error)
}
