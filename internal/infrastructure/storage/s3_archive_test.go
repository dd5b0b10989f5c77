package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves the path-style subset of the S3 API used by the archive
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	t.Helper()
	f := &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")

	if key == "" {
		switch r.Method {
		case http.MethodHead:
			if !f.buckets[bucket] {
				w.WriteHeader(http.StatusNotFound)
				return
			}
		case http.MethodPut:
			f.buckets[bucket] = true
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[path] = data
		f.types[path] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", f.types[path])
		_, _ = w.Write(data)
	case http.MethodDelete:
		delete(f.objects, path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func testStorageConfig(endpoint string) config.StorageConfig {
	return config.StorageConfig{
		Enabled:      true,
		Endpoint:     endpoint,
		Bucket:       "price-documents",
		Prefix:       "/uploads/",
		AccessKey:    "test-key",
		SecretKey:    "test-secret",
		UsePathStyle: true,
	}
}

func TestNewS3DocumentArchive_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := NewS3DocumentArchive(ctx, config.StorageConfig{AccessKey: "k", SecretKey: "s"})
	assert.ErrorContains(t, err, "bucket is required")

	_, err = NewS3DocumentArchive(ctx, config.StorageConfig{Bucket: "b", AccessKey: "k"})
	assert.ErrorContains(t, err, "credentials are required")

	archive, err := NewS3DocumentArchive(ctx, config.StorageConfig{Bucket: "b", AccessKey: "k", SecretKey: "s", Endpoint: "minio:9000", UseSSL: true})
	require.NoError(t, err)
	assert.Equal(t, "b", archive.Bucket())
	assert.Equal(t, "doc.yaml", archive.objectKey("/doc.yaml"))
}

func TestS3DocumentArchive_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake, srv := newFakeS3(t)

	archive, err := NewS3DocumentArchive(ctx, testStorageConfig(srv.URL), WithMaxObjectSize(64))
	require.NoError(t, err)
	require.NoError(t, archive.EnsureBucket(ctx))
	require.NoError(t, archive.EnsureBucket(ctx))
	assert.True(t, fake.buckets["price-documents"])

	doc := []byte("shop: Svyaznoy\ngoods: []\n")
	require.NoError(t, archive.Put(ctx, "imports/owner/1", doc, "application/yaml"))
	assert.Equal(t, doc, fake.objects["price-documents/uploads/imports/owner/1"])
	assert.Equal(t, "application/yaml", fake.types["price-documents/uploads/imports/owner/1"])

	got, err := archive.Get(ctx, "imports/owner/1")
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	t.Run("missing key is not found", func(t *testing.T) {
		_, err := archive.Get(ctx, "imports/owner/2")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.False(t, shared.IsRetryable(err))
	})

	t.Run("oversize object is rejected", func(t *testing.T) {
		require.NoError(t, archive.Put(ctx, "imports/owner/big", []byte(strings.Repeat("x", 100)), ""))
		_, err := archive.Get(ctx, "imports/owner/big")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("empty key", func(t *testing.T) {
		assert.ErrorIs(t, archive.Put(ctx, "", doc, ""), shared.ErrInvalidInput)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, archive.Delete(ctx, "imports/owner/1"))
		_, err := archive.Get(ctx, "imports/owner/1")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestS3DocumentArchive_UnreachableIsRetryable(t *testing.T) {
	cfg := testStorageConfig("http://127.0.0.1:1")
	archive, err := NewS3DocumentArchive(context.Background(), cfg)
	require.NoError(t, err)

	err = archive.Put(context.Background(), "imports/owner/1", []byte("shop: A"), "")
	assert.ErrorIs(t, err, shared.ErrStorage)
	assert.True(t, shared.IsRetryable(err))
}
