// Package sweeper removes expired image records together with their blobs
// and cached renderings.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avolov/imgd/internal/cache"
	"github.com/avolov/imgd/internal/database"
	"github.com/avolov/imgd/internal/storage"
)

type Sweeper struct {
	db       database.Database
	store    storage.Storage
	cache    *cache.Cache
	interval time.Duration
}

func New(db database.Database, store storage.Storage, c *cache.Cache, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{db: db, store: store, cache: c, interval: interval}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				slog.Error("expiry sweep failed", "error", err)
			}
		}
	}
}

// Sweep removes all records expired at the time of the call. Each blob is
// deleted per format so still-valid formats of the same identifier survive.
func (s *Sweeper) Sweep(ctx context.Context) error {
	expired, err := s.db.DeleteExpired(time.Now().UTC())
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	touched := make(map[uuid.UUID]bool)
	for _, img := range expired {
		if err := s.store.DeleteFormat(ctx, img.Identifier, img.Format); err != nil {
			slog.Warn("delete expired blob failed",
				"image_identifier", img.Identifier, "image_format", img.Format, "error", err)
		}
		if !touched[img.Identifier] {
			touched[img.Identifier] = true
			s.cache.InvalidateImage(ctx, img.Identifier)
		}
	}

	slog.Debug("expiry sweep", "removed", len(expired))
	return nil
}
