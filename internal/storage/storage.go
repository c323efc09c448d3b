package storage

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"

	"github.com/avolov/imgd/internal/imageformat"
)

// ErrNotFound is returned when no blob exists for the requested key.
var ErrNotFound = errors.New("blob not found")

// Storage defines the interface for image blob storage. Blobs are keyed by
// (identifier, format), matching the database rows.
type Storage interface {
	// Store writes blob data and returns the number of bytes written.
	Store(ctx context.Context, id uuid.UUID, format imageformat.Format, data io.Reader) (int64, error)

	// Retrieve returns a ReadCloser for the stored blob.
	Retrieve(ctx context.Context, id uuid.UUID, format imageformat.Format) (io.ReadCloser, error)

	// Delete removes every stored format of the identifier. Idempotent.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteFormat removes a single stored format. Idempotent.
	DeleteFormat(ctx context.Context, id uuid.UUID, format imageformat.Format) error

	// Exists checks whether a blob exists for the key.
	Exists(ctx context.Context, id uuid.UUID, format imageformat.Format) (bool, error)
}
