package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/avolov/imgd/internal/imageformat"
)

// Image is one stored variant of a logical image. A logical image is
// identified by Identifier; each format it has been materialised in is a
// separate row keyed by (Identifier, Format).
type Image struct {
	Identifier uuid.UUID          `json:"image_identifier"`
	Format     imageformat.Format `json:"image_format"`
	Computed   bool               `json:"computed"`
	ExpiresAt  time.Time          `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at the given instant.
func (i *Image) Expired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}
