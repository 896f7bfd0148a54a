package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "documents/user_u1/d1.pdf", ObjectKey("u1", "d1"))
}

func TestDiskStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	key := ObjectKey("u1", "d1")
	n, err := s.Save(ctx, key, strings.NewReader("%PDF-1.4 body"))
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)

	r, err := s.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, r.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(data))

	path, cleanup, err := s.LocalPath(ctx, key)
	require.NoError(t, err)
	cleanup()
	_, err = os.Stat(path)
	assert.NoError(t, err, "cleanup must not remove the stored file")

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Open(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	_, _, err = s.LocalPath(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting twice is fine.
	assert.NoError(t, s.Delete(ctx, key))
}

func TestDiskStoreRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	s, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../outside.pdf", "a/../../outside.pdf", ""} {
		t.Run(key, func(t *testing.T) {
			_, err := s.Save(ctx, key, strings.NewReader("x"))
			assert.Error(t, err)
		})
	}
}

func TestGCSErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		notFound bool
	}{
		{"object not exist", storage.ErrObjectNotExist, true},
		{"api 404", &googleapi.Error{Code: http.StatusNotFound}, true},
		{"api 403", &googleapi.Error{Code: http.StatusForbidden}, false},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, errors.Is(gcsError("k", tt.err), ErrNotFound))
		})
	}
}
