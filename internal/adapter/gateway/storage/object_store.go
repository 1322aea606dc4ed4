// Package storage provides the cold archive object store behind a
// narrow Get/Put interface, with an S3-compatible implementation for
// production and a local-filesystem twin for development.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no object exists at the key.
var ErrNotFound = errors.New("object not found")

// ObjectStore is the remote archive contract consumed by the rotation
// manager: day-partitioned objects are read back, appended to in
// memory, and written whole.
type ObjectStore interface {
	// Get returns the object content at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes content at key, replacing any existing object.
	Put(ctx context.Context, key string, content []byte) error
}
