// pkg/release/download.go

package release

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Downloader fetches release assets with bounded retries and integrity
// checks.
type Downloader struct {
	Client      *http.Client
	MaxAttempts uint64
}

// NewDownloader returns a downloader with the standard retry ceiling.
func NewDownloader() *Downloader {
	return &Downloader{
		Client:      &http.Client{Timeout: 10 * time.Minute},
		MaxAttempts: 3,
	}
}

// Download fetches url into dest, retrying transient failures with
// exponential backoff up to the attempt ceiling. Each successful fetch is
// checked against a minimum byte size, and against a sha256 digest when one
// is supplied. The last error is returned once retries are exhausted.
func (d *Downloader) Download(ctx context.Context, url, dest string, minSize int64, wantSHA256 string) error {
	logger := otelzap.Ctx(ctx)

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), d.MaxAttempts-1),
		ctx,
	)

	attempt := 0
	operation := func() error {
		attempt++
		logger.Info("Downloading release asset",
			zap.String("url", url),
			zap.Int("attempt", attempt),
		)
		if err := d.fetchOnce(ctx, url, dest, minSize, wantSHA256); err != nil {
			logger.Warn("Download attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return cerr.Wrapf(err, "download failed after %d attempt(s)", attempt)
	}

	logger.Info("Download complete", zap.String("dest", dest))
	return nil
}

func (d *Downloader) fetchOnce(ctx context.Context, url, dest string, minSize int64, wantSHA256 string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(cerr.Wrap(err, "building download request"))
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return cerr.Wrap(err, "fetching asset")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// A missing asset will not appear on retry.
		return backoff.Permanent(cerr.Newf("asset not found (404): %s", url))
	}
	if resp.StatusCode != http.StatusOK {
		return cerr.Newf("unexpected status %d fetching %s", resp.StatusCode, url)
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return cerr.Wrap(err, "creating download file")
	}

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, hasher), resp.Body)
	closeErr := out.Close()
	if err != nil {
		return cerr.Wrap(err, "writing download")
	}
	if closeErr != nil {
		return cerr.Wrap(closeErr, "closing download file")
	}

	if written < minSize {
		return cerr.Newf("downloaded file is implausibly small: %d bytes (expected at least %d)",
			written, minSize)
	}

	if wantSHA256 != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(got, wantSHA256) {
			return cerr.Newf("sha256 mismatch: got %s, want %s", got, wantSHA256)
		}
	}

	return nil
}

// FetchChecksum retrieves a sibling .sha256 asset and returns the digest it
// names. Missing checksum assets are not an error; verification is optional
// when upstream publishes none.
func (d *Downloader) FetchChecksum(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", cerr.Newf("checksum fetch returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return "", err
	}
	// Checksum files are "<hex digest>  <filename>" or a bare digest.
	fields := strings.Fields(string(body))
	if len(fields) == 0 {
		return "", cerr.New("empty checksum file")
	}
	return fields[0], nil
}
