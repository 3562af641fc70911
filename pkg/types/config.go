package types

// Config is the root configuration object supplied at initialization
type Config struct {
	// Repositories is the ordered list of repositories to monitor
	Repositories []Repository `json:"repositories" yaml:"repositories"`
	// Settings contains global discovery options
	Settings Settings `json:"settings" yaml:"settings"`
	// Download contains the download pipeline configuration
	Download DownloadConfig `json:"download" yaml:"download"`
}

// Settings represents global discovery settings
type Settings struct {
	// RateLimitDelay is the minimum inter-API-call spacing in seconds
	RateLimitDelay float64 `json:"rate_limit_delay" yaml:"rate_limit_delay"`
	// MaxReleasesPerRepo bounds releases returned per list call
	MaxReleasesPerRepo int `json:"max_releases_per_repo" yaml:"max_releases_per_repo"`
	// IncludePrereleases is the global prerelease default
	IncludePrereleases bool `json:"include_prereleases" yaml:"include_prereleases"`
	// RequestTimeout is the per-API-request timeout in seconds
	RequestTimeout float64 `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty"`
}

// SourceArchiveConfig controls tarball/zipball fallback downloads
type SourceArchiveConfig struct {
	// Enabled turns source archive downloads on
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Prefer selects "tarball" (default) or "zipball"
	Prefer string `json:"prefer,omitempty" yaml:"prefer,omitempty"`
	// FallbackOnly downloads the archive only when no asset matched
	FallbackOnly bool `json:"fallback_only" yaml:"fallback_only"`
}

// S3StorageConfig configures the S3-compatible version database backend
type S3StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Bucket  string `json:"bucket" yaml:"bucket"`
	Prefix  string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region  string `json:"region,omitempty" yaml:"region,omitempty"`
	// Endpoint overrides the canonical S3 endpoint (e.g. MinIO)
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	// VerifySSL toggles TLS certificate verification (default true)
	VerifySSL *bool `json:"verify_ssl,omitempty" yaml:"verify_ssl,omitempty"`
}

// ArtifactoryStorageConfig configures the generic HTTP artifact store backend
type ArtifactoryStorageConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	BaseURL    string `json:"base_url" yaml:"base_url"`
	Repository string `json:"repository" yaml:"repository"`
	PathPrefix string `json:"path_prefix,omitempty" yaml:"path_prefix,omitempty"`
	// VerifySSL toggles TLS certificate verification (default true)
	VerifySSL *bool `json:"verify_ssl,omitempty" yaml:"verify_ssl,omitempty"`
}

// UploadConfig controls mirroring downloaded files to the shared store
type UploadConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Prefix is the key prefix under which files are mirrored
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	// Extensions is the upload allow-list; defaults cover common artifact types
	Extensions []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
}

// RepositoryOverride overrides download policy for a single repository key
type RepositoryOverride struct {
	// TargetVersion pins the accepted tag to a single value
	TargetVersion string `json:"target_version,omitempty" yaml:"target_version,omitempty"`
	// AssetPatterns replaces the default include/exclude list
	AssetPatterns []string `json:"asset_patterns,omitempty" yaml:"asset_patterns,omitempty"`
	// IncludePrereleases overrides the download-level default
	IncludePrereleases *bool `json:"include_prereleases,omitempty" yaml:"include_prereleases,omitempty"`
	// StrictPrereleaseFiltering overrides tag-based prerelease detection
	StrictPrereleaseFiltering *bool `json:"strict_prerelease_filtering,omitempty" yaml:"strict_prerelease_filtering,omitempty"`
	// SourceArchives overrides the source archive policy
	SourceArchives *SourceArchiveConfig `json:"source_archives,omitempty" yaml:"source_archives,omitempty"`
	// VersionExpr is a CEL expression filtering discovered releases
	VersionExpr string `json:"version_expr,omitempty" yaml:"version_expr,omitempty"`
	// KeepVersions overrides history/pruning depth
	KeepVersions *int `json:"keep_versions,omitempty" yaml:"keep_versions,omitempty"`
}

// DownloadConfig is the download pipeline section of the configuration
type DownloadConfig struct {
	// Enabled is the master switch for the download pipeline
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Directory is the root of the on-disk layout
	Directory string `json:"directory" yaml:"directory"`
	// VersionDB is the path for the local-file backend
	VersionDB string `json:"version_db,omitempty" yaml:"version_db,omitempty"`
	// AssetPatterns is the default include/exclude glob list
	AssetPatterns []string `json:"asset_patterns,omitempty" yaml:"asset_patterns,omitempty"`
	// IncludePrereleases overrides Settings.IncludePrereleases for downloads
	IncludePrereleases *bool `json:"include_prereleases,omitempty" yaml:"include_prereleases,omitempty"`
	// StrictPrereleaseFiltering also applies prerelease detection to tags
	StrictPrereleaseFiltering bool `json:"strict_prerelease_filtering" yaml:"strict_prerelease_filtering"`
	// SourceArchives is the source archive policy
	SourceArchives SourceArchiveConfig `json:"source_archives" yaml:"source_archives"`
	// VerifyDownloads toggles digest verification (default true)
	VerifyDownloads *bool `json:"verify_downloads,omitempty" yaml:"verify_downloads,omitempty"`
	// CleanupOldVersions prunes local directories after successful commits
	CleanupOldVersions bool `json:"cleanup_old_versions" yaml:"cleanup_old_versions"`
	// KeepVersions bounds download history and local pruning (default 5)
	KeepVersions int `json:"keep_versions" yaml:"keep_versions"`
	// Timeout is the per-download timeout in seconds (default 300)
	Timeout float64 `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// MaxConcurrentRepositories bounds repository fan-out (default 4)
	MaxConcurrentRepositories int `json:"max_concurrent_repositories,omitempty" yaml:"max_concurrent_repositories,omitempty"`
	// MaxConcurrentAssets bounds per-release asset fan-out (default 4)
	MaxConcurrentAssets int `json:"max_concurrent_assets,omitempty" yaml:"max_concurrent_assets,omitempty"`
	// RepositoryOverrides maps "owner/repo" keys to per-repository policy
	RepositoryOverrides map[string]RepositoryOverride `json:"repository_overrides,omitempty" yaml:"repository_overrides,omitempty"`
	// S3Storage configures the object-store backend
	S3Storage S3StorageConfig `json:"s3_storage,omitempty" yaml:"s3_storage,omitempty"`
	// ArtifactoryStorage configures the artifact-repository backend
	ArtifactoryStorage ArtifactoryStorageConfig `json:"artifactory_storage,omitempty" yaml:"artifactory_storage,omitempty"`
	// Upload configures mirroring downloaded files to the shared store
	Upload UploadConfig `json:"upload,omitempty" yaml:"upload,omitempty"`
}

// Verify reports whether digest verification is enabled; it defaults to on
func (d DownloadConfig) Verify() bool {
	return d.VerifyDownloads == nil || *d.VerifyDownloads
}

// EffectivePolicy is the per-repository policy after merging defaults with
// repository overrides. Resolved once per repository by the coordinator.
type EffectivePolicy struct {
	TargetVersion             string
	AssetPatterns             []string
	IncludePrereleases        bool
	StrictPrereleaseFiltering bool
	SourceArchives            SourceArchiveConfig
	VersionExpr               string
	KeepVersions              int
}

// Policy resolves the effective download policy for a repository key
func (c Config) Policy(repoKey string) EffectivePolicy {
	d := c.Download

	includePre := c.Settings.IncludePrereleases
	if d.IncludePrereleases != nil {
		includePre = *d.IncludePrereleases
	}

	p := EffectivePolicy{
		AssetPatterns:             d.AssetPatterns,
		IncludePrereleases:        includePre,
		StrictPrereleaseFiltering: d.StrictPrereleaseFiltering,
		SourceArchives:            d.SourceArchives,
		KeepVersions:              d.KeepVersions,
	}

	o, ok := d.RepositoryOverrides[repoKey]
	if !ok {
		return p
	}

	p.TargetVersion = o.TargetVersion
	p.VersionExpr = o.VersionExpr
	if len(o.AssetPatterns) > 0 {
		p.AssetPatterns = o.AssetPatterns
	}
	if o.IncludePrereleases != nil {
		p.IncludePrereleases = *o.IncludePrereleases
	}
	if o.StrictPrereleaseFiltering != nil {
		p.StrictPrereleaseFiltering = *o.StrictPrereleaseFiltering
	}
	if o.SourceArchives != nil {
		p.SourceArchives = *o.SourceArchives
	}
	if o.KeepVersions != nil {
		p.KeepVersions = *o.KeepVersions
	}
	return p
}
