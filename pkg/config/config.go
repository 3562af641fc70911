package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flanksource/relmon/pkg/types"
)

const (
	// DefaultConfigFile is loaded when no --config flag is given
	DefaultConfigFile = "relmon.yaml"

	DefaultRateLimitDelay  = 1.0
	DefaultDownloadTimeout = 300.0
	DefaultConcurrency     = 4
	DefaultKeepVersions    = 5
)

// ErrInvalid marks configuration errors, surfaced before any I/O
var ErrInvalid = errors.New("invalid configuration")

// IsInvalid reports whether err is a configuration error
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

// Load reads and parses the configuration file, applies defaults, and
// validates it.
func Load(path string) (*types.Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %v: %w", path, err, ErrInvalid)
	}

	var cfg types.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %v: %w", path, err, ErrInvalid)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with their documented defaults
func ApplyDefaults(cfg *types.Config) {
	if cfg.Settings.RateLimitDelay <= 0 {
		cfg.Settings.RateLimitDelay = DefaultRateLimitDelay
	}
	if cfg.Settings.MaxReleasesPerRepo <= 0 {
		cfg.Settings.MaxReleasesPerRepo = 30
	}

	d := &cfg.Download
	if d.Directory == "" {
		d.Directory = "downloads"
	}
	if d.KeepVersions <= 0 {
		d.KeepVersions = DefaultKeepVersions
	}
	if d.Timeout <= 0 {
		d.Timeout = DefaultDownloadTimeout
	}
	if d.MaxConcurrentRepositories <= 0 {
		d.MaxConcurrentRepositories = DefaultConcurrency
	}
	if d.MaxConcurrentAssets <= 0 {
		d.MaxConcurrentAssets = DefaultConcurrency
	}
	if d.SourceArchives.Prefer == "" {
		d.SourceArchives.Prefer = "tarball"
	}

	// Expand relative paths so log lines and reports are unambiguous
	if !filepath.IsAbs(d.Directory) {
		if abs, err := filepath.Abs(d.Directory); err == nil {
			d.Directory = abs
		}
	}
	if d.VersionDB != "" && !filepath.IsAbs(d.VersionDB) {
		if abs, err := filepath.Abs(d.VersionDB); err == nil {
			d.VersionDB = abs
		}
	}
}

// Validate checks the configuration for structural errors
func Validate(cfg *types.Config) error {
	if len(cfg.Repositories) == 0 {
		return fmt.Errorf("no repositories configured: %w", ErrInvalid)
	}

	seen := map[string]bool{}
	for i, repo := range cfg.Repositories {
		if repo.Owner == "" || repo.Repo == "" {
			return fmt.Errorf("repositories[%d] requires owner and repo: %w", i, ErrInvalid)
		}
		if strings.ContainsRune(repo.Owner, '/') || strings.ContainsRune(repo.Repo, '/') {
			return fmt.Errorf("repositories[%d] %q: owner and repo must not contain '/': %w", i, repo.Key(), ErrInvalid)
		}
		if seen[repo.Key()] {
			return fmt.Errorf("duplicate repository %s: %w", repo.Key(), ErrInvalid)
		}
		seen[repo.Key()] = true
	}

	switch prefer := cfg.Download.SourceArchives.Prefer; prefer {
	case "", "tarball", "zipball":
	default:
		return fmt.Errorf("source_archives.prefer must be tarball or zipball, got %q: %w", prefer, ErrInvalid)
	}

	for key := range cfg.Download.RepositoryOverrides {
		if strings.Count(key, "/") != 1 {
			return fmt.Errorf("repository_overrides key %q is not owner/repo: %w", key, ErrInvalid)
		}
	}

	if cfg.Download.S3Storage.Enabled && cfg.Download.S3Storage.Bucket == "" {
		return fmt.Errorf("s3_storage.bucket is required when s3_storage is enabled: %w", ErrInvalid)
	}
	if cfg.Download.ArtifactoryStorage.Enabled {
		art := cfg.Download.ArtifactoryStorage
		if art.BaseURL == "" || art.Repository == "" {
			return fmt.Errorf("artifactory_storage requires base_url and repository: %w", ErrInvalid)
		}
	}
	return nil
}
