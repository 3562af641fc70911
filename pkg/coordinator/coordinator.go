package coordinator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flanksource/commons/logger"
	"github.com/samber/lo"
	"golang.org/x/sync/semaphore"

	"github.com/flanksource/relmon/pkg/download"
	"github.com/flanksource/relmon/pkg/github"
	"github.com/flanksource/relmon/pkg/match"
	"github.com/flanksource/relmon/pkg/storage"
	"github.com/flanksource/relmon/pkg/types"
	"github.com/flanksource/relmon/pkg/upload"
	"github.com/flanksource/relmon/pkg/version"
)

// Coordinator drives the release pipeline: discovery, the decision procedure,
// downloads, version database commits, and optional uploads.
type Coordinator struct {
	cfg        *types.Config
	store      *storage.Store
	client     *github.Client
	downloader *download.Downloader
	uploader   *upload.Uploader

	repoSem *semaphore.Weighted
}

// Option configures the coordinator
type Option func(*Coordinator)

// WithClient sets the discovery client
func WithClient(client *github.Client) Option {
	return func(c *Coordinator) {
		c.client = client
	}
}

// WithDownloader overrides the default downloader
func WithDownloader(d *download.Downloader) Option {
	return func(c *Coordinator) {
		c.downloader = d
	}
}

// WithUploader enables the trailing artifact upload stage
func WithUploader(u *upload.Uploader) Option {
	return func(c *Coordinator) {
		c.uploader = u
	}
}

// New creates a coordinator over the given configuration and version store
func New(cfg *types.Config, store *storage.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:     cfg,
		store:   store,
		repoSem: semaphore.NewWeighted(int64(cfg.Download.MaxConcurrentRepositories)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.downloader == nil {
		c.downloader = download.New(
			download.WithTimeout(time.Duration(cfg.Download.Timeout*float64(time.Second))),
			download.WithVerification(cfg.Download.Verify()),
		)
	}
	return c
}

// Discover queries upstream for every configured repository and returns the
// monitor output document listing releases that are new relative to stored
// state. Per-repository API failures are logged and skipped; they do not
// abort discovery.
func (c *Coordinator) Discover(ctx context.Context) (*types.MonitorOutput, error) {
	if c.client == nil {
		return nil, fmt.Errorf("no discovery client configured")
	}

	out := &types.MonitorOutput{
		Timestamp:                time.Now().UTC(),
		TotalRepositoriesChecked: len(c.cfg.Repositories),
	}

	for _, repo := range c.cfg.Repositories {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		release, err := c.client.LatestRelease(ctx, repo.Owner, repo.Repo)
		if err != nil {
			if github.IsCredentialError(err) {
				return nil, err
			}
			logger.Warnf("failed to check %s: %v", repo.Key(), err)
			continue
		}
		if release == nil {
			logger.V(2).Infof("%s has no releases", repo.Key())
			continue
		}

		stored, err := c.store.CurrentVersion(ctx, repo.Key())
		if err != nil {
			return nil, err
		}
		if stored != "" && !version.IsNewer(release.Tag, stored) {
			logger.V(2).Infof("%s: %s is not newer than stored %s", repo.Key(), release.Tag, stored)
			continue
		}

		logger.Infof("%s: new release %s", repo.Key(), release.Tag)
		out.Releases = append(out.Releases, *release)
	}

	out.NewReleasesFound = len(out.Releases)
	return out, nil
}

// Run applies the decision procedure and download pipeline to the given
// releases and returns the run report. A version database load failure is
// fatal; everything else is captured per repository.
func (c *Coordinator) Run(ctx context.Context, releases []types.Release) (*types.RunReport, error) {
	// Without a baseline we cannot tell new from old
	if _, err := c.store.Load(ctx); err != nil {
		return nil, err
	}

	// One release per repository key per run
	releases = lo.UniqBy(releases, func(r types.Release) string { return r.Repo })

	report := &types.RunReport{Timestamp: time.Now().UTC()}
	results := make([]types.RepoResult, len(releases))

	var wg sync.WaitGroup
	for i, release := range releases {
		if err := c.repoSem.Acquire(ctx, 1); err != nil {
			// Cancelled: repositories not yet started are reported as skipped work
			results[i] = types.RepoResult{
				Repo:   release.Repo,
				Tag:    release.Tag,
				Status: types.StatusFailed,
				Reason: fmt.Sprintf("cancelled: %v", err),
			}
			continue
		}

		wg.Add(1)
		go func(i int, release types.Release) {
			defer wg.Done()
			defer c.repoSem.Release(1)
			results[i] = c.processRelease(ctx, release)
		}(i, release)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Repo < results[j].Repo })
	report.Results = results
	return report, nil
}

// processRelease runs the decision procedure for a single release and, when
// it selects content, executes the plan and commits. First condition to fire
// wins.
func (c *Coordinator) processRelease(ctx context.Context, release types.Release) types.RepoResult {
	started := time.Now()
	result := types.RepoResult{Repo: release.Repo, Tag: release.Tag}
	done := func(status types.DecisionStatus, reason string) types.RepoResult {
		result.Status = status
		result.Reason = reason
		result.Duration = time.Since(started)
		return result
	}

	policy := c.cfg.Policy(release.Repo)

	// Drafts are never eligible
	if release.Draft {
		return done(types.StatusSkippedPattern, "draft release")
	}

	if policy.VersionExpr != "" {
		ok, err := version.MatchesExpr(release, policy.VersionExpr)
		if err != nil {
			return done(types.StatusFailed, err.Error())
		}
		if !ok {
			return done(types.StatusSkippedPattern, fmt.Sprintf("excluded by version_expr %q", policy.VersionExpr))
		}
	}

	if policy.TargetVersion != "" && version.Normalize(release.Tag) != version.Normalize(policy.TargetVersion) {
		return done(types.StatusSkippedPattern,
			fmt.Sprintf("tag %s does not match target_version %s", release.Tag, policy.TargetVersion))
	}

	if release.Prerelease && !policy.IncludePrereleases {
		return done(types.StatusSkippedPrerelease, "prerelease flag set and prereleases excluded")
	}
	if policy.StrictPrereleaseFiltering && !policy.IncludePrereleases && version.IsPrerelease(release.Tag) {
		return done(types.StatusSkippedPrerelease, fmt.Sprintf("tag %s looks like a prerelease", release.Tag))
	}

	stored, err := c.store.CurrentVersion(ctx, release.Repo)
	if err != nil {
		return done(types.StatusFailed, fmt.Sprintf("failed to read stored version: %v", err))
	}
	if stored != "" && !version.IsNewer(release.Tag, stored) {
		return done(types.StatusSkippedVersion, fmt.Sprintf("%s is not newer than stored %s", release.Tag, stored))
	}

	assets, withArchive := c.plan(release, policy)
	if len(assets) == 0 && !withArchive {
		return done(types.StatusSkippedPattern, "no assets matched patterns and source archives disabled")
	}

	files, failures := c.execute(ctx, release, policy, assets, withArchive)
	result.Files = files
	if len(failures) > 0 {
		return done(types.StatusFailed, strings.Join(failures, "; "))
	}

	meta := types.UpdateMeta{
		AssetCount: len(files),
		TotalBytes: lo.SumBy(files, func(f types.StoredFile) int64 { return f.Size }),
	}
	if err := c.store.UpdateVersion(ctx, release.Repo, release.Tag, meta); err != nil {
		// Partial-progress fault: files stay on disk, the release is
		// re-evaluated next run
		return done(types.StatusFailed, fmt.Sprintf("downloads complete but version database update failed: %v", err))
	}

	if c.cfg.Download.CleanupOldVersions {
		c.pruneOldVersions(release, policy.KeepVersions)
	}

	if c.uploader != nil {
		result.Uploaded = c.uploader.Mirror(ctx, c.cfg.Download.Directory, files)
	}

	return done(types.StatusDownloaded, fmt.Sprintf("%d file(s) stored", len(files)))
}

// plan applies asset patterns and the source archive policy. It returns the
// assets to download and whether the source archive is part of the plan.
func (c *Coordinator) plan(release types.Release, policy types.EffectivePolicy) ([]types.Asset, bool) {
	var assets []types.Asset
	for _, asset := range release.Assets {
		if match.Matches(asset.Name, policy.AssetPatterns) {
			assets = append(assets, asset)
		}
	}

	archives := policy.SourceArchives
	if !archives.Enabled {
		return assets, false
	}
	if archives.FallbackOnly {
		return assets, len(assets) == 0
	}
	return assets, true
}

// execute downloads the planned items with bounded asset fan-out. The asset
// bound applies per repository; total connections are capped by the product
// of the two fan-out limits.
func (c *Coordinator) execute(ctx context.Context, release types.Release, policy types.EffectivePolicy, assets []types.Asset, withArchive bool) ([]types.StoredFile, []string) {
	destDir := c.cfg.Download.Directory
	assetSem := semaphore.NewWeighted(int64(c.cfg.Download.MaxConcurrentAssets))

	var mu sync.Mutex
	var files []types.StoredFile
	var failures []string

	var wg sync.WaitGroup
	for _, asset := range assets {
		if err := assetSem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			failures = append(failures, fmt.Sprintf("%s: cancelled", asset.Name))
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(asset types.Asset) {
			defer wg.Done()
			defer assetSem.Release(1)
			stored, err := c.downloader.Asset(ctx, release, asset, destDir)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", asset.Name, err))
				return
			}
			files = append(files, *stored)
		}(asset)
	}
	wg.Wait()

	if withArchive && ctx.Err() == nil {
		stored, err := c.downloader.SourceArchive(ctx, release, policy.SourceArchives.Prefer, destDir)
		if err != nil {
			failures = append(failures, fmt.Sprintf("source archive: %v", err))
		} else {
			files = append(files, *stored)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, failures
}
