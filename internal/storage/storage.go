// Package storage abstracts the object store that holds product images.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrExists is returned when an upload targets a path that is already
	// taken. Callers pick a fresh path rather than overwriting.
	ErrExists = errors.New("storage: object already exists")

	ErrNotFound = errors.New("storage: object not found")
)

// ObjectStore stores binary objects under bucket-relative paths.
type ObjectStore interface {
	// Upload writes data at path with the given content type. It never
	// overwrites: an existing object at path yields ErrExists.
	Upload(ctx context.Context, path, contentType string, data []byte) error
	// Remove deletes the object at path. Removing a missing object
	// yields ErrNotFound.
	Remove(ctx context.Context, path string) error
	// PublicURL returns the browser-reachable URL for path.
	PublicURL(path string) string
}
