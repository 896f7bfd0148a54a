package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCSStore keeps files in a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
}

// NewGCSStore connects with Application Default Credentials.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: client.Bucket(bucket)}, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// Save uploads r. Keys embed fresh document IDs, so the write is
// conditional on the object not existing yet.
func (s *GCSStore) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	w := s.bucket.Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/pdf"

	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return 0, fmt.Errorf("failed to write gs object %s: %w", key, gcsError(key, err))
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize gs object %s: %w", key, gcsError(key, err))
	}
	return n, nil
}

func (s *GCSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return nil, gcsError(key, err)
	}
	return r, nil
}

// LocalPath downloads the object to a temp file that cleanup removes.
func (s *GCSStore) LocalPath(ctx context.Context, key string) (string, func(), error) {
	r, err := s.Open(ctx, key)
	if err != nil {
		return "", nil, err
	}
	defer r.Close()

	tmp, err := os.CreateTemp("", "docvault-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to copy gs object to local file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	return tmp.Name(), cleanup, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(gcsError(key, err), ErrNotFound) {
		return fmt.Errorf("failed to delete gs object %s: %w", key, err)
	}
	return nil
}

// gcsError maps missing-object errors onto ErrNotFound.
func gcsError(key string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return err
}
