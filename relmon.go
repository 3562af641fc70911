package relmon

import (
	"context"
	"time"

	"github.com/flanksource/relmon/pkg/config"
	"github.com/flanksource/relmon/pkg/coordinator"
	"github.com/flanksource/relmon/pkg/github"
	"github.com/flanksource/relmon/pkg/storage"
	"github.com/flanksource/relmon/pkg/types"
)

// Re-export commonly used types for public API
type (
	Config         = types.Config
	Release        = types.Release
	MonitorOutput  = types.MonitorOutput
	RunReport      = types.RunReport
	RepoResult     = types.RepoResult
	DecisionStatus = types.DecisionStatus
)

// Re-export decision statuses
const (
	StatusDownloaded        = types.StatusDownloaded
	StatusSkippedVersion    = types.StatusSkippedVersion
	StatusSkippedPrerelease = types.StatusSkippedPrerelease
	StatusSkippedPattern    = types.StatusSkippedPattern
	StatusFailed            = types.StatusFailed
)

// LoadConfig reads, defaults, and validates a configuration file
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// Monitor checks every configured repository for releases newer than the
// stored state and returns the monitor output document.
//
// Example:
//
//	cfg, err := relmon.LoadConfig("relmon.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := relmon.Monitor(ctx, cfg)
//	for _, release := range out.Releases {
//	    fmt.Println(release.Repo, release.Tag)
//	}
func Monitor(ctx context.Context, cfg *Config) (*MonitorOutput, error) {
	coord, err := newCoordinator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return coord.Discover(ctx)
}

// Download runs the full pipeline for the given releases: the per-repository
// decision procedure, verified downloads, and version database commits. With
// no releases given it discovers them first.
func Download(ctx context.Context, cfg *Config, releases ...Release) (*RunReport, error) {
	coord, err := newCoordinator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if len(releases) == 0 {
		out, err := coord.Discover(ctx)
		if err != nil {
			return nil, err
		}
		releases = out.Releases
	}
	return coord.Run(ctx, releases)
}

func newCoordinator(ctx context.Context, cfg *Config) (*coordinator.Coordinator, error) {
	backend, err := storage.Select(ctx, *cfg)
	if err != nil {
		return nil, err
	}
	store := storage.NewStore(backend, cfg.Download.KeepVersions)

	client := github.NewClient(
		github.WithRateLimitDelay(cfg.Settings.RateLimitDelay),
		github.WithRequestTimeout(time.Duration(cfg.Settings.RequestTimeout*float64(time.Second))),
		github.WithMaxReleases(cfg.Settings.MaxReleasesPerRepo),
		github.WithPrereleases(cfg.Settings.IncludePrereleases),
	)
	return coordinator.New(cfg, store, coordinator.WithClient(client)), nil
}
