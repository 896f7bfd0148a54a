package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, "local", cfg.StorageBackend)
	assert.Equal(t, int64(20*1024*1024), cfg.MaxUploadSize)
	assert.True(t, cfg.MimeSniff)
	assert.Equal(t, 2*time.Minute, cfg.ExtractionTimeout)
	assert.Equal(t, 3, cfg.WorkerCount)
	assert.Empty(t, cfg.SearchIndexPath)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATABASE_DRIVER", "sqlite3")
	t.Setenv("DATABASE_URL", "/tmp/docvault.db")
	t.Setenv("MIME_SNIFF", "false")
	t.Setenv("EXTRACTION_TIMEOUT", "45s")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("CORS_ORIGIN", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.DatabaseDriver)
	assert.Equal(t, "/tmp/docvault.db", cfg.DatabaseURL)
	assert.False(t, cfg.MimeSniff)
	assert.Equal(t, 45*time.Second, cfg.ExtractionTimeout)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadMalformedNumbersFallBack(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("WORKER_COUNT", "lots")
	t.Setenv("EXTRACTION_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.WorkerCount)
	assert.Equal(t, 2*time.Minute, cfg.ExtractionTimeout)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docvault.yaml")
	data := []byte(`
port: "9090"
database_driver: sqlite3
database_url: /var/lib/docvault.db
pdf_metadata_backend: pdfcpu
extraction_timeout: 30s
worker_count: 5
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("WORKER_COUNT", "2") // env wins over the file

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "sqlite3", cfg.DatabaseDriver)
	assert.Equal(t, "pdfcpu", cfg.PDFMetadataBackend)
	assert.Equal(t, 30*time.Second, cfg.ExtractionTimeout)
	assert.Equal(t, 2, cfg.WorkerCount)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown gin mode", map[string]string{"GIN_MODE": "verbose"}},
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "mysql"}},
		{"unknown storage", map[string]string{"STORAGE_BACKEND": "s3"}},
		{"gcs without bucket", map[string]string{"STORAGE_BACKEND": "gcs"}},
		{"unknown metadata backend", map[string]string{"PDF_METADATA_BACKEND": "poppler"}},
		{"zero workers", map[string]string{"WORKER_COUNT": "0"}},
		{"release with default secret", map[string]string{"GIN_MODE": "release"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
