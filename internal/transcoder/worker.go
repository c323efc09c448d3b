// Package transcoder owns the compute pipeline: originals are persisted
// and flagged computed off the request path, and missing formats are
// materialised from an existing variant on demand.
package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avolov/imgd/internal/cache"
	"github.com/avolov/imgd/internal/database"
	"github.com/avolov/imgd/internal/imageformat"
	"github.com/avolov/imgd/internal/imageproc"
	"github.com/avolov/imgd/internal/model"
	"github.com/avolov/imgd/internal/storage"
)

// ErrQueueFull is returned by Enqueue when the job queue is saturated.
var ErrQueueFull = errors.New("transcode queue full")

// Job carries one uploaded original to be persisted and marked computed.
type Job struct {
	Identifier uuid.UUID
	Format     imageformat.Format
	Data       []byte
}

// Worker processes upload jobs on a fixed pool of goroutines.
type Worker struct {
	db      database.Database
	store   storage.Storage
	cache   *cache.Cache
	ttl     time.Duration
	workers int

	jobs chan Job
	wg   sync.WaitGroup
}

// New creates a Worker. ttl is the expiry assigned to rows the worker
// inserts when materialising new formats.
func New(db database.Database, store storage.Storage, c *cache.Cache, ttl time.Duration, queueSize, workers int) *Worker {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if workers <= 0 {
		workers = 2
	}
	return &Worker{
		db:      db,
		store:   store,
		cache:   c,
		ttl:     ttl,
		workers: workers,
		jobs:    make(chan Job, queueSize),
	}
}

// Start launches the worker pool. On cancellation workers finish the
// jobs still buffered in the queue before exiting, so an orderly
// shutdown does not strand uploads in the uncomputed state.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case <-ctx.Done():
					w.drain()
					return
				case job := <-w.jobs:
					w.process(ctx, job)
				}
			}
		}()
	}
}

// drain processes whatever is left in the queue. The parent context is
// already cancelled at this point, so jobs run against a fresh one.
func (w *Worker) drain() {
	for {
		select {
		case job := <-w.jobs:
			w.process(context.Background(), job)
		default:
			return
		}
	}
}

// Wait blocks until all workers have exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

// Enqueue hands an upload job to the pool without blocking.
func (w *Worker) Enqueue(job Job) error {
	select {
	case w.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// process persists the original blob and flips the computed flag.
func (w *Worker) process(ctx context.Context, job Job) {
	log := slog.With("image_identifier", job.Identifier, "image_format", job.Format)

	if _, err := w.store.Store(ctx, job.Identifier, job.Format, bytes.NewReader(job.Data)); err != nil {
		log.Error("store original failed", "error", err)
		return
	}

	if err := w.db.MarkComputed(job.Identifier, job.Format); err != nil {
		// Row can be gone already if the record expired or was deleted
		// while the job sat in the queue.
		if errors.Is(err, database.ErrNotFound) {
			log.Warn("record vanished before compute finished")
			_ = w.store.DeleteFormat(ctx, job.Identifier, job.Format)
			return
		}
		log.Error("mark computed failed", "error", err)
		return
	}

	w.cache.PublishComputed(ctx, job.Identifier, job.Format)
	log.Debug("original computed")
}

// MaterializeFormat produces the identifier's image in a format it has not
// been stored in yet: an existing computed variant is transcoded, the new
// blob persisted, and a new row inserted so subsequent requests hit it
// directly. Returns the transcoded bytes.
func (w *Worker) MaterializeFormat(ctx context.Context, id uuid.UUID, target imageformat.Format) ([]byte, error) {
	src, err := w.db.GetAnyComputed(id)
	if err != nil {
		return nil, err
	}

	rc, err := w.store.Retrieve(ctx, src.Identifier, src.Format)
	if err != nil {
		return nil, fmt.Errorf("retrieve source blob: %w", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read source blob: %w", err)
	}

	out, err := imageproc.Transcode(data, target, 0, 0)
	if err != nil {
		return nil, err
	}

	if _, err := w.store.Store(ctx, id, target, bytes.NewReader(out)); err != nil {
		return nil, fmt.Errorf("store materialised blob: %w", err)
	}

	row := &model.Image{
		Identifier: id,
		Format:     target,
		Computed:   true,
		ExpiresAt:  time.Now().UTC().Add(w.ttl),
	}
	if err := w.db.CreateImage(row); err != nil {
		// A concurrent request can win the insert; the bytes are still
		// valid either way.
		slog.Warn("record materialised format failed",
			"image_identifier", id, "image_format", target, "error", err)
	} else {
		w.cache.PublishComputed(ctx, id, target)
	}

	return out, nil
}
