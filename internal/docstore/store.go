// Package docstore is a thin adapter over the CouchDB document store.
// Jobs are persisted as documents addressed by database + document id.
// Operations here are not retried: a store failure is fatal for the
// current step and surfaced to the caller, whose writes are idempotent
// by id.
package docstore

import (
	"context"
	"errors"
)

// Sentinel errors for the docstore package.
var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrUnhealthy is returned when the CouchDB health check fails.
	ErrUnhealthy = errors.New("docstore health check failed")
)

// Store abstracts document operations so the job layer can be unit
// tested without a live CouchDB instance. The default implementation is
// *Client; Memory is provided for tests.
type Store interface {
	// Put creates or replaces a document.
	Put(ctx context.Context, db, id string, doc map[string]any) error

	// Get fetches a document. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, db, id string) (map[string]any, error)

	// Merge overlays fields onto an existing document, preserving
	// fields not named in the update.
	Merge(ctx context.Context, db, id string, fields map[string]any) error
}
