package github

import (
	"context"
	"fmt"

	"github.com/flanksource/commons/logger"
	"github.com/google/go-github/v57/github"

	"github.com/flanksource/relmon/pkg/types"
)

// LatestRelease returns the most recent release for a repository, or nil when
// the repository has none. The latest-release endpoint is tried first; on 404
// the client falls back to listing releases (newest first) and picking the
// first non-draft entry, skipping prereleases unless configured otherwise.
func (c *Client) LatestRelease(ctx context.Context, owner, repo string) (*types.Release, error) {
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("owner and repo are required")
	}

	if err := limiter.wait(ctx); err != nil {
		return nil, err
	}

	var release *github.RepositoryRelease
	err := c.retry(ctx, fmt.Sprintf("get latest release for %s/%s", owner, repo), func() (*github.Response, error) {
		var response *github.Response
		var err error
		release, response, err = c.client.Repositories.GetLatestRelease(ctx, owner, repo)
		return response, err
	})

	if err != nil {
		if isNotFound(err) {
			logger.V(3).Infof("%s/%s has no latest release, falling back to release list", owner, repo)
			return c.latestFromList(ctx, owner, repo)
		}
		return nil, err
	}

	return convertRelease(owner, repo, release), nil
}

// latestFromList fetches the first page of releases and returns the first
// eligible entry. Drafts are never eligible.
func (c *Client) latestFromList(ctx context.Context, owner, repo string) (*types.Release, error) {
	if err := limiter.wait(ctx); err != nil {
		return nil, err
	}

	perPage := c.maxReleases
	if perPage <= 0 || perPage > 100 {
		perPage = 100
	}

	var releases []*github.RepositoryRelease
	err := c.retry(ctx, fmt.Sprintf("list releases for %s/%s", owner, repo), func() (*github.Response, error) {
		var response *github.Response
		var err error
		releases, response, err = c.client.Repositories.ListReleases(ctx, owner, repo, &github.ListOptions{
			PerPage: perPage,
		})
		return response, err
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	for _, release := range releases {
		if release.GetDraft() {
			continue
		}
		if release.GetPrerelease() && !c.includePrereleases {
			continue
		}
		return convertRelease(owner, repo, release), nil
	}
	return nil, nil
}

func convertRelease(owner, repo string, release *github.RepositoryRelease) *types.Release {
	if release == nil {
		return nil
	}

	out := &types.Release{
		Repo:       owner + "/" + repo,
		Tag:        release.GetTagName(),
		Name:       release.GetName(),
		Draft:      release.GetDraft(),
		Prerelease: release.GetPrerelease(),
		HTMLURL:    release.GetHTMLURL(),
		TarballURL: release.GetTarballURL(),
		ZipballURL: release.GetZipballURL(),
	}
	if published := release.GetPublishedAt(); !published.IsZero() {
		out.PublishedAt = published.Time
	}

	for _, asset := range release.Assets {
		if asset == nil {
			continue
		}
		out.Assets = append(out.Assets, types.Asset{
			Name:        asset.GetName(),
			URL:         asset.GetBrowserDownloadURL(),
			Size:        int64(asset.GetSize()),
			ContentType: asset.GetContentType(),
		})
	}
	return out
}
