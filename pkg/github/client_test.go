package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const releaseJSON = `{
	"tag_name": "v1.2.3",
	"name": "Release 1.2.3",
	"draft": false,
	"prerelease": false,
	"html_url": "https://example.com/flanksource/deps/releases/v1.2.3",
	"tarball_url": "https://example.com/tarball/v1.2.3",
	"zipball_url": "https://example.com/zipball/v1.2.3",
	"published_at": "2024-01-02T15:04:05Z",
	"assets": [
		{"name": "deps-linux-amd64.tar.gz", "browser_download_url": "https://example.com/a.tar.gz", "size": 1024, "content_type": "application/gzip"}
	]
}`

func newTestClient(t *testing.T, server *httptest.Server, opts ...Option) *Client {
	t.Helper()
	limiter.setInterval(time.Millisecond)

	c := NewClient(opts...)
	c.retries = 3
	c.backoffBase = time.Millisecond

	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	c.client.BaseURL = base
	return c
}

func TestLatestRelease(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/flanksource/deps/releases/latest", r.URL.Path)
		fmt.Fprint(w, releaseJSON)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	release, err := c.LatestRelease(context.Background(), "flanksource", "deps")
	require.NoError(t, err)
	require.NotNil(t, release)

	assert.Equal(t, "flanksource/deps", release.Repo)
	assert.Equal(t, "v1.2.3", release.Tag)
	assert.Equal(t, "flanksource", release.Owner())
	assert.Equal(t, "deps", release.RepoName())
	assert.False(t, release.Prerelease)
	assert.Equal(t, "2024-01-02T15:04:05Z", release.PublishedAt.Format(time.RFC3339))
	require.Len(t, release.Assets, 1)
	assert.Equal(t, "deps-linux-amd64.tar.gz", release.Assets[0].Name)
	assert.Equal(t, int64(1024), release.Assets[0].Size)
}

func TestLatestReleaseFallsBackToList(t *testing.T) {
	list := `[
		{"tag_name": "v2.0.0", "draft": true},
		{"tag_name": "v2.0.0-rc.1", "prerelease": true},
		{"tag_name": "v1.9.0"}
	]`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/flanksource/deps/releases/latest":
			http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
		case "/repos/flanksource/deps/releases":
			fmt.Fprint(w, list)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := newTestClient(t, server)
	release, err := c.LatestRelease(context.Background(), "flanksource", "deps")
	require.NoError(t, err)
	require.NotNil(t, release)
	assert.Equal(t, "v1.9.0", release.Tag, "drafts and prereleases are skipped")

	c = newTestClient(t, server, WithPrereleases(true))
	release, err = c.LatestRelease(context.Background(), "flanksource", "deps")
	require.NoError(t, err)
	require.NotNil(t, release)
	assert.Equal(t, "v2.0.0-rc.1", release.Tag, "drafts are skipped even when prereleases are allowed")
}

func TestLatestReleaseNone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/flanksource/empty/releases/latest":
			http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
		case "/repos/flanksource/empty/releases":
			fmt.Fprint(w, `[]`)
		}
	}))
	defer server.Close()

	c := newTestClient(t, server)
	release, err := c.LatestRelease(context.Background(), "flanksource", "empty")
	require.NoError(t, err)
	assert.Nil(t, release)
}

func TestCredentialError(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"message": "Bad credentials"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	_, err := c.LatestRelease(context.Background(), "flanksource", "deps")
	require.Error(t, err)
	assert.True(t, IsCredentialError(err))
	assert.Equal(t, int32(1), hits.Load(), "credential failures are not retried")
}

func TestRetryOnServerError(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, `{"message": "oops"}`, http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, releaseJSON)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	release, err := c.LatestRelease(context.Background(), "flanksource", "deps")
	require.NoError(t, err)
	require.NotNil(t, release)
	assert.Equal(t, "v1.2.3", release.Tag)
	assert.Equal(t, int32(3), hits.Load())
}

func TestLatestReleaseRequiresOwnerAndRepo(t *testing.T) {
	c := NewClient()
	_, err := c.LatestRelease(context.Background(), "", "deps")
	assert.Error(t, err)
	_, err = c.LatestRelease(context.Background(), "flanksource", "")
	assert.Error(t, err)
}

func TestRequestTimeoutOption(t *testing.T) {
	c := NewClient(WithRequestTimeout(5 * time.Second))
	assert.Equal(t, 5*time.Second, c.client.Client().Timeout)

	// zero means keep the default
	c = NewClient(WithRequestTimeout(0))
	assert.Equal(t, 30*time.Second, c.client.Client().Timeout)
}

func TestTokenSource(t *testing.T) {
	for _, env := range []string{"GITHUB_TOKEN", "GH_TOKEN", "GITHUB_ACCESS_TOKEN"} {
		t.Setenv(env, "")
	}
	assert.Equal(t, "unauthenticated", NewClient().TokenSource())

	t.Setenv("GH_TOKEN", "ghp_test")
	assert.Equal(t, "GH_TOKEN", NewClient().TokenSource())

	assert.Equal(t, "explicit", NewClient(WithToken("ghp_other")).TokenSource())
}
