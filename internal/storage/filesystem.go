package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/avolov/imgd/internal/imageformat"
)

// Compile-time check that FileSystem implements Storage.
var _ Storage = (*FileSystem)(nil)

// FileSystem implements Storage using the local filesystem.
// Blobs are stored at <basePath>/<identifier>/<format>.
type FileSystem struct {
	basePath string
}

// NewFileSystem creates a new FileSystem storage rooted at basePath.
func NewFileSystem(basePath string) *FileSystem {
	return &FileSystem{basePath: basePath}
}

// imageDir returns the directory holding all formats of an identifier.
func (fs *FileSystem) imageDir(id uuid.UUID) string {
	return filepath.Join(fs.basePath, id.String())
}

// blobPath returns the full path for one stored format.
func (fs *FileSystem) blobPath(id uuid.UUID, format imageformat.Format) string {
	return filepath.Join(fs.imageDir(id), format.String())
}

// Store writes data to disk using atomic write (temp file + rename).
// It returns the number of bytes written.
func (fs *FileSystem) Store(_ context.Context, id uuid.UUID, format imageformat.Format, data io.Reader) (int64, error) {
	dir := fs.imageDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	// Write to a temp file in the same directory for atomic rename.
	tmp, err := os.CreateTemp(dir, "blob-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	// Clean up the temp file on any error path.
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, data)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("writing data: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing temp file: %w", err)
	}

	dst := fs.blobPath(id, format)
	if err := os.Rename(tmpPath, dst); err != nil {
		return 0, fmt.Errorf("renaming temp file to %s: %w", dst, err)
	}

	// Rename succeeded; prevent deferred cleanup from removing the final file.
	tmpPath = ""

	return n, nil
}

// Retrieve opens the stored blob and returns an io.ReadCloser.
func (fs *FileSystem) Retrieve(_ context.Context, id uuid.UUID, format imageformat.Format) (io.ReadCloser, error) {
	path := fs.blobPath(id, format)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("opening file %s: %w", path, err)
	}
	return f, nil
}

// Delete removes the entire <identifier>/ directory.
func (fs *FileSystem) Delete(_ context.Context, id uuid.UUID) error {
	dir := fs.imageDir(id)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing directory %s: %w", dir, err)
	}
	return nil
}

// DeleteFormat removes a single format of the identifier.
func (fs *FileSystem) DeleteFormat(_ context.Context, id uuid.UUID, format imageformat.Format) error {
	path := fs.blobPath(id, format)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing file %s: %w", path, err)
	}
	return nil
}

// Exists checks whether the blob exists on disk.
func (fs *FileSystem) Exists(_ context.Context, id uuid.UUID, format imageformat.Format) (bool, error) {
	path := fs.blobPath(id, format)
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking file %s: %w", path, err)
}
