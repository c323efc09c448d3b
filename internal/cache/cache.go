// Package cache holds rendered image bytes in redis and fans out
// "computed" events over pub/sub. The whole package is optional: a nil
// *Cache is valid and turns every operation into a no-op.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/avolov/imgd/internal/imageformat"
)

// ComputedChannel is the pub/sub channel carrying computed events.
const ComputedChannel = "images.computed"

// ComputedEvent is published when a variant finishes computing.
type ComputedEvent struct {
	Identifier uuid.UUID          `json:"image_identifier"`
	Format     imageformat.Format `json:"image_format"`
}

type Cache struct {
	rdb *redis.Client
}

// New connects to redis at addr.
func New(ctx context.Context, addr string) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return &Cache{rdb: rdb}, nil
}

// Close releases the redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

// RenderKey builds the cache key for one rendered output.
func RenderKey(id uuid.UUID, format imageformat.Format, width, height int) string {
	return fmt.Sprintf("rendered:%s:%s:%dx%d", id, format, width, height)
}

// GetRendered returns cached rendered bytes, or ok=false on a miss.
func (c *Cache) GetRendered(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}
	return data, true
}

// SetRendered stores rendered bytes under key for ttl. Failures are logged
// and swallowed; the cache is never load-bearing.
func (c *Cache) SetRendered(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if c == nil || ttl <= 0 {
		return
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		slog.Warn("cache set failed", "key", key, "error", err)
	}
}

// InvalidateImage drops every rendered entry for the identifier.
func (c *Cache) InvalidateImage(ctx context.Context, id uuid.UUID) {
	if c == nil {
		return
	}
	pattern := fmt.Sprintf("rendered:%s:*", id)
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			slog.Warn("cache invalidate failed", "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		slog.Warn("cache scan failed", "pattern", pattern, "error", err)
	}
}

// PublishComputed announces a computed variant on the pub/sub channel.
func (c *Cache) PublishComputed(ctx context.Context, id uuid.UUID, format imageformat.Format) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(ComputedEvent{Identifier: id, Format: format})
	if err != nil {
		slog.Warn("marshal computed event failed", "error", err)
		return
	}
	if err := c.rdb.Publish(ctx, ComputedChannel, payload).Err(); err != nil {
		slog.Warn("publish computed event failed", "error", err)
	}
}

// Subscribe returns a pub/sub subscription on the computed channel.
// Returns nil when the cache is not configured.
func (c *Cache) Subscribe(ctx context.Context) *redis.PubSub {
	if c == nil {
		return nil
	}
	return c.rdb.Subscribe(ctx, ComputedChannel)
}
