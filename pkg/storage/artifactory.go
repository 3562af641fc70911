package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	httpx "github.com/flanksource/relmon/pkg/http"
	"github.com/flanksource/relmon/pkg/types"
)

// ArtifactoryBackend stores the version database in a generic HTTP artifact
// store at <base_url>/<repository>/<path_prefix>/version_db.json.
// Authentication is an API key header or basic credentials, both sourced from
// the environment. Same last-writer-wins semantics as the object store.
type ArtifactoryBackend struct {
	client   *http.Client
	url      string
	apiKey   string
	username string
	password string
}

// NewArtifactoryBackend creates an artifact-repository backend
func NewArtifactoryBackend(cfg types.ArtifactoryStorageConfig) (*ArtifactoryBackend, error) {
	if cfg.BaseURL == "" || cfg.Repository == "" {
		return nil, fmt.Errorf("artifactory_storage requires base_url and repository")
	}

	var opts []httpx.ClientOption
	if cfg.VerifySSL != nil && !*cfg.VerifySSL {
		opts = append(opts, httpx.WithInsecureSkipVerify())
	}

	parts := []string{strings.TrimSuffix(cfg.BaseURL, "/"), cfg.Repository}
	if cfg.PathPrefix != "" {
		parts = append(parts, strings.Trim(cfg.PathPrefix, "/"))
	}
	parts = append(parts, versionDBObject)

	return &ArtifactoryBackend{
		client:   httpx.GetHttpClient(opts...),
		url:      strings.Join(parts, "/"),
		apiKey:   os.Getenv("ARTIFACTORY_API_KEY"),
		username: os.Getenv("ARTIFACTORY_USERNAME"),
		password: os.Getenv("ARTIFACTORY_PASSWORD"),
	}, nil
}

func (b *ArtifactoryBackend) Name() string {
	return "artifactory"
}

func (b *ArtifactoryBackend) authenticate(req *http.Request) {
	if b.apiKey != "" {
		req.Header.Set("X-JFrog-Art-Api", b.apiKey)
	} else if b.username != "" {
		req.SetBasicAuth(b.username, b.password)
	}
}

func (b *ArtifactoryBackend) Get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %v: %w", err, ErrUnavailable)
	}
	b.authenticate(req)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %v: %w", b.url, err, ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get %s: HTTP %d: %w", b.url, resp.StatusCode, ErrUnavailable)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v: %w", b.url, err, ErrUnavailable)
	}
	return data, nil
}

func (b *ArtifactoryBackend) Put(ctx context.Context, data []byte) error {
	return b.upload(ctx, b.url, bytes.NewReader(data), int64(len(data)), "application/json")
}

// Upload writes an arbitrary artifact path, used by the artifact uploader
func (b *ArtifactoryBackend) Upload(ctx context.Context, url string, data io.Reader, size int64, contentType string) error {
	return b.upload(ctx, url, data, size, contentType)
}

func (b *ArtifactoryBackend) upload(ctx context.Context, url string, data io.Reader, size int64, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, data)
	if err != nil {
		return fmt.Errorf("failed to build request: %v: %w", err, ErrUnavailable)
	}
	b.authenticate(req)
	// Artifact stores reject chunked uploads, so the length is always set
	req.ContentLength = size
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to put %s: %v: %w", url, err, ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("failed to put %s: HTTP %d: %w", url, resp.StatusCode, ErrUnavailable)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// BaseURL returns the document URL without the trailing object name, used by
// the uploader to derive artifact destinations.
func (b *ArtifactoryBackend) BaseURL() string {
	return strings.TrimSuffix(b.url, "/"+versionDBObject)
}
