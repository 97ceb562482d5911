package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when no object exists at path.
var ErrNotFound = errors.New("storage: object not found")

// Storage defines the interface for file storage operations.
type Storage interface {
	// Save saves a file to the storage.
	// path is the relative path where the file should be stored.
	Save(ctx context.Context, path string, content io.Reader) error

	// Get retrieves a file from the storage.
	// Returns ErrNotFound when the path does not exist.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes a file from the storage. Deleting a missing file is not an error.
	Delete(ctx context.Context, path string) error
}
