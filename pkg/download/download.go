package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flanksource/commons/logger"

	httpx "github.com/flanksource/relmon/pkg/http"
	"github.com/flanksource/relmon/pkg/types"
)

// Downloader performs streaming, verified artifact downloads into the
// partitioned on-disk layout <dir>/<owner>_<repo>/<tag>/.
type Downloader struct {
	client      *http.Client
	token       string
	timeout     time.Duration
	retries     int
	backoffBase time.Duration
	verify      bool
}

// Option configures the downloader
type Option func(*Downloader)

// WithToken sets the bearer credential for authenticated asset downloads
func WithToken(token string) Option {
	return func(d *Downloader) {
		d.token = token
	}
}

// WithTimeout sets the per-download wall-clock timeout
func WithTimeout(timeout time.Duration) Option {
	return func(d *Downloader) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithVerification toggles size/digest verification
func WithVerification(verify bool) Option {
	return func(d *Downloader) {
		d.verify = verify
	}
}

// WithRetries sets the number of download attempts
func WithRetries(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.retries = n
		}
	}
}

// New creates a downloader with the default retry policy: 3 attempts with
// exponential backoff starting at 2s and a 300s per-download timeout.
func New(opts ...Option) *Downloader {
	d := &Downloader{
		timeout:     300 * time.Second,
		retries:     3,
		backoffBase: 2 * time.Second,
		verify:      true,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.client == nil {
		d.client = httpx.GetHttpClient(httpx.WithTimeout(d.timeout))
	}
	return d
}

// ReleaseDir returns the per-release directory under destDir
func ReleaseDir(destDir string, release types.Release) string {
	return filepath.Join(destDir, release.Owner()+"_"+release.RepoName(), release.Tag)
}

// Asset downloads one release asset. An existing file that already matches
// the provider-reported size and digest is returned without re-downloading.
// Partial downloads are never resumed; each attempt starts fresh.
func (d *Downloader) Asset(ctx context.Context, release types.Release, asset types.Asset, destDir string) (*types.StoredFile, error) {
	dir := ReleaseDir(destDir, release)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	dest := filepath.Join(dir, asset.Name)

	if stored, ok := d.existing(dest, asset); ok {
		logger.V(3).Infof("%s already downloaded and verified, skipping", dest)
		return stored, nil
	}

	return d.fetch(ctx, asset.URL, dest, asset.Size, asset.Digest)
}

// SourceArchive downloads the release's tarball or zipball. No provider
// digest exists for archives, so verification is limited to size consistency
// with the declared Content-Length.
func (d *Downloader) SourceArchive(ctx context.Context, release types.Release, prefer string, destDir string) (*types.StoredFile, error) {
	url := release.TarballURL
	ext := ".tar.gz"
	if strings.EqualFold(prefer, "zipball") || strings.EqualFold(prefer, "zip") {
		url = release.ZipballURL
		ext = ".zip"
	}
	if url == "" {
		return nil, fmt.Errorf("release %s@%s has no source archive URL", release.Repo, release.Tag)
	}

	dir := ReleaseDir(destDir, release)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	name := release.Owner() + "_" + release.RepoName() + "-" + release.Tag + ext
	return d.fetch(ctx, url, filepath.Join(dir, name), 0, "")
}

// existing checks whether dest already satisfies the expected size and digest
func (d *Downloader) existing(dest string, asset types.Asset) (*types.StoredFile, bool) {
	info, err := os.Stat(dest)
	if err != nil || info.IsDir() {
		return nil, false
	}
	if asset.Size > 0 && info.Size() != asset.Size {
		return nil, false
	}

	digest, err := fileSHA256(dest)
	if err != nil {
		return nil, false
	}
	if d.verify && asset.Digest != "" && !digestMatches(asset.Digest, digest) {
		return nil, false
	}

	// keep the sidecar in sync even when skipping
	if err := writeSidecar(dest, digest); err != nil {
		return nil, false
	}
	return &types.StoredFile{Path: dest, Size: info.Size(), SHA256: digest}, true
}

// fetch downloads url to dest with retries. expectedSize 0 means the provider
// declared no size; expectedDigest "" disables digest verification.
func (d *Downloader) fetch(ctx context.Context, url, dest string, expectedSize int64, expectedDigest string) (*types.StoredFile, error) {
	var lastErr error
	for attempt := 1; attempt <= d.retries; attempt++ {
		stored, err := d.fetchOnce(ctx, url, dest, expectedSize, expectedDigest)
		if err == nil {
			return stored, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < d.retries {
			delay := d.backoffBase * (1 << (attempt - 1))
			logger.V(2).Infof("download of %s failed (attempt %d/%d), retrying in %s: %v",
				filepath.Base(dest), attempt, d.retries, delay, err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, fmt.Errorf("failed to download %s after %d attempts: %w", filepath.Base(dest), d.retries, lastErr)
}

func (d *Downloader) fetchOnce(ctx context.Context, url, dest string, expectedSize int64, expectedDigest string) (*types.StoredFile, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	req.Header.Set("User-Agent", "relmon")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d %s for %s", resp.StatusCode, resp.Status, url)
	}

	declared := expectedSize
	if declared <= 0 && resp.ContentLength > 0 {
		declared = resp.ContentLength
	}

	// Stream to a temp file in the same directory so the final rename is atomic
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		if _, err := os.Stat(tmpPath); err == nil {
			os.Remove(tmpPath)
		}
	}()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush %s: %w", tmpPath, err)
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	if d.verify {
		if declared > 0 && written != declared {
			return nil, fmt.Errorf("size mismatch for %s: expected %d bytes, got %d", filepath.Base(dest), declared, written)
		}
		if expectedDigest != "" && !digestMatches(expectedDigest, digest) {
			return nil, fmt.Errorf("checksum mismatch for %s: expected %s, got sha256:%s", filepath.Base(dest), expectedDigest, digest)
		}
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return nil, fmt.Errorf("failed to move temp file to destination: %w", err)
	}
	if err := writeSidecar(dest, digest); err != nil {
		return nil, err
	}

	logger.V(2).Infof("downloaded %s (%s, sha256:%s)", dest, types.FormatBytes(written), digest[:16])
	return &types.StoredFile{Path: dest, Size: written, SHA256: digest}, nil
}

// writeSidecar writes the "<name>.sha256" file next to the download. The
// content is the bare hex digest so consumers can compare it directly against
// a recomputed hash.
func writeSidecar(dest, digest string) error {
	sidecar := dest + ".sha256"
	if err := os.WriteFile(sidecar, []byte(digest), 0644); err != nil {
		return fmt.Errorf("failed to write checksum sidecar %s: %w", sidecar, err)
	}
	return nil
}

// digestMatches compares a provider digest (optionally "sha256:" prefixed)
// against the computed hex digest. Non-sha256 provider digests cannot be
// checked against the streamed hash and are ignored.
func digestMatches(expected, actual string) bool {
	expected = strings.TrimSpace(strings.ToLower(expected))
	if algo, value, ok := strings.Cut(expected, ":"); ok {
		if algo != "sha256" {
			return true
		}
		expected = value
	}
	return expected == strings.ToLower(actual)
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
