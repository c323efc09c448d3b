package database

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/avolov/imgd/internal/imageformat"
	"github.com/avolov/imgd/internal/model"
)

// ErrNotFound is returned when no row matches the requested key.
var ErrNotFound = errors.New("not found")

// Database defines the persistence interface for image records.
type Database interface {
	// CreateImage inserts a new (identifier, format) row.
	CreateImage(img *model.Image) error

	// GetImage returns the row for the exact (identifier, format) key.
	GetImage(id uuid.UUID, format imageformat.Format) (*model.Image, error)

	// GetAnyComputed returns a computed row for the identifier, oldest
	// expiry first so the choice is deterministic.
	GetAnyComputed(id uuid.UUID) (*model.Image, error)

	// MarkComputed flips the computed flag for the (identifier, format) row.
	MarkComputed(id uuid.UUID, format imageformat.Format) error

	// ListFormats returns all formats stored for the identifier.
	ListFormats(id uuid.UUID) ([]imageformat.Format, error)

	// DeleteImage removes every row for the identifier.
	DeleteImage(id uuid.UUID) error

	// DeleteExpired removes rows whose expiry is at or before now and
	// returns the removed rows so blobs and cache entries can be cleaned.
	DeleteExpired(now time.Time) ([]*model.Image, error)

	CountImages() (int, error)
	CountComputed() (int, error)

	Close() error
}
