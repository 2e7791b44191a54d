// pkg/release/download_test.go

package release

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDownloader(srv *httptest.Server) *Downloader {
	return &Downloader{Client: srv.Client(), MaxAttempts: 3}
}

func TestDownload(t *testing.T) {
	body := []byte("release archive bytes, large enough for the floor")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "forge.tar.gz")
	err := testDownloader(srv).Download(context.Background(), srv.URL, dest, 1, "")
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestDownloadChecksumVerified(t *testing.T) {
	body := []byte("archive with a published digest")
	sum := sha256.Sum256(body)
	digest := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "forge.tar.gz")
	d := &Downloader{Client: srv.Client(), MaxAttempts: 1}

	require.NoError(t, d.Download(context.Background(), srv.URL, dest, 1, digest))

	err := d.Download(context.Background(), srv.URL, dest, 1, "deadbeef")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sha256 mismatch")
}

func TestDownloadTooSmall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tiny"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "forge.tar.gz")
	d := &Downloader{Client: srv.Client(), MaxAttempts: 1}

	err := d.Download(context.Background(), srv.URL, dest, 1<<20, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "implausibly small")
}

func TestDownloadMissingAssetIsNotRetried(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "forge.tar.gz")
	err := testDownloader(srv).Download(context.Background(), srv.URL, dest, 1, "")
	require.Error(t, err)
	assert.Equal(t, int32(1), requests.Load(), "a 404 must not be retried")
}

func TestDownloadRetriesTransientFailure(t *testing.T) {
	body := []byte("eventually served release archive")
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "forge.tar.gz")
	err := testDownloader(srv).Download(context.Background(), srv.URL, dest, 1, "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestFetchChecksum(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "digest with filename", body: "abc123  forge.tar.gz\n", want: "abc123"},
		{name: "bare digest", body: "abc123", want: "abc123"},
		{name: "empty file", body: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := testDownloader(srv).FetchChecksum(context.Background(), srv.URL)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
