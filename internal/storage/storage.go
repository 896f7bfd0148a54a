// Package storage keeps the bytes of uploaded PDFs.
//
// Documents reference stored files by an opaque key (see ObjectKey). Two
// backends are provided: DiskStore writes under a local media root and
// GCSStore writes to a Google Cloud Storage bucket. Extraction needs a
// seekable local file, so every backend can materialize a key on disk via
// LocalPath.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNotFound is returned when no file is stored under a key.
var ErrNotFound = errors.New("stored file not found")

// FileStore is implemented by every storage backend.
type FileStore interface {
	// Save streams r to key and returns the number of bytes written.
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	// Open returns a reader for the file at key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// LocalPath returns a path on the local filesystem holding the file's
	// bytes. cleanup must be called once the caller is done with the path.
	LocalPath(ctx context.Context, key string) (path string, cleanup func(), err error)
	// Delete removes the file. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// ObjectKey returns the storage key for a document's PDF.
func ObjectKey(ownerID, documentID string) string {
	return fmt.Sprintf("documents/user_%s/%s.pdf", ownerID, documentID)
}
