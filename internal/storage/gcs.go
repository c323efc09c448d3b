package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/avolov/imgd/internal/imageformat"
)

var _ Storage = (*GCS)(nil)

// GCS implements Storage backed by a Google Cloud Storage bucket.
// Objects are named <identifier>/<format>.
type GCS struct {
	bucket *gcs.BucketHandle
}

// NewGCS creates a GCS storage against the named bucket using ambient
// credentials (ADC).
func NewGCS(ctx context.Context, bucketName string) (*GCS, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCS{bucket: client.Bucket(bucketName)}, nil
}

func objectName(id uuid.UUID, format imageformat.Format) string {
	return id.String() + "/" + format.String()
}

func (g *GCS) Store(ctx context.Context, id uuid.UUID, format imageformat.Format, data io.Reader) (int64, error) {
	w := g.bucket.Object(objectName(id, format)).NewWriter(ctx)
	w.ContentType = format.ContentType()

	n, err := io.Copy(w, data)
	if err != nil {
		w.Close()
		return 0, fmt.Errorf("writing object: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("closing object writer: %w", err)
	}
	return n, nil
}

func (g *GCS) Retrieve(ctx context.Context, id uuid.UUID, format imageformat.Format) (io.ReadCloser, error) {
	r, err := g.bucket.Object(objectName(id, format)).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening object reader: %w", err)
	}
	return r, nil
}

func (g *GCS) Delete(ctx context.Context, id uuid.UUID) error {
	it := g.bucket.Objects(ctx, &gcs.Query{Prefix: id.String() + "/"})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("listing objects: %w", err)
		}
		err = g.bucket.Object(attrs.Name).Delete(ctx)
		if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
			return fmt.Errorf("deleting object %s: %w", attrs.Name, err)
		}
	}
}

func (g *GCS) DeleteFormat(ctx context.Context, id uuid.UUID, format imageformat.Format) error {
	err := g.bucket.Object(objectName(id, format)).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("deleting object: %w", err)
	}
	return nil
}

func (g *GCS) Exists(ctx context.Context, id uuid.UUID, format imageformat.Format) (bool, error) {
	_, err := g.bucket.Object(objectName(id, format)).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading object attrs: %w", err)
	}
	return true, nil
}
