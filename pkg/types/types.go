package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/api"
	"github.com/flanksource/clicky/api/icons"
	"github.com/samber/lo"
)

// SchemaVersion is the version database document schema written by all backends.
const SchemaVersion = "2.0"

// Repository identifies an upstream repository to monitor
type Repository struct {
	// Owner is the repository owner or organization
	Owner string `json:"owner" yaml:"owner"`
	// Repo is the repository name
	Repo string `json:"repo" yaml:"repo"`
	// Description is an optional human-readable note, informational only
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Key returns the canonical "owner/repo" key used throughout the system
func (r Repository) Key() string {
	return r.Owner + "/" + r.Repo
}

// Asset is a file attached to an upstream release
type Asset struct {
	// Name is the asset file name
	Name string `json:"name" yaml:"name"`
	// URL is the direct download URL
	URL string `json:"url" yaml:"url"`
	// Size is the provider-reported size in bytes
	Size int64 `json:"size" yaml:"size"`
	// ContentType is the provider-reported MIME type
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	// Digest is the provider-reported digest (e.g. "sha256:abc..."), if any
	Digest string `json:"digest,omitempty" yaml:"digest,omitempty"`
}

// Release is an immutable snapshot of an upstream tagged release.
// Instances are produced by the discovery client and never mutated afterwards.
type Release struct {
	// Repo is the canonical "owner/repo" key
	Repo string `json:"repository" yaml:"repository"`
	// Tag is the release tag name as published upstream
	Tag string `json:"tag_name" yaml:"tag_name"`
	// Name is the human-readable release title
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// PublishedAt is the upstream publication timestamp
	PublishedAt time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`
	// Draft marks unpublished releases; drafts are never downloaded
	Draft bool `json:"draft,omitempty" yaml:"draft,omitempty"`
	// Prerelease is the provider-set prerelease flag
	Prerelease bool `json:"prerelease,omitempty" yaml:"prerelease,omitempty"`
	// HTMLURL links to the release page
	HTMLURL string `json:"html_url,omitempty" yaml:"html_url,omitempty"`
	// TarballURL is the source tarball URL for the tag
	TarballURL string `json:"tarball_url,omitempty" yaml:"tarball_url,omitempty"`
	// ZipballURL is the source zipball URL for the tag
	ZipballURL string `json:"zipball_url,omitempty" yaml:"zipball_url,omitempty"`
	// Assets are the files attached to the release
	Assets []Asset `json:"assets" yaml:"assets"`
}

// Owner returns the owner half of the repository key
func (r Release) Owner() string {
	owner, _, _ := strings.Cut(r.Repo, "/")
	return owner
}

// RepoName returns the name half of the repository key
func (r Release) RepoName() string {
	_, name, _ := strings.Cut(r.Repo, "/")
	return name
}

// HistoryEntry records one successful download in a repository's history
type HistoryEntry struct {
	// Version is the tag that was downloaded
	Version string `json:"version" yaml:"version"`
	// Timestamp is when the download committed
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	// AssetCount is the number of files stored for this version
	AssetCount int `json:"asset_count" yaml:"asset_count"`
	// TotalBytes is the sum of stored file sizes
	TotalBytes int64 `json:"total_bytes" yaml:"total_bytes"`
}

// VersionRecord is the per-repository row in the version database
type VersionRecord struct {
	// CurrentVersion is the last successfully downloaded tag
	CurrentVersion string `json:"current_version" yaml:"current_version"`
	// CreatedAt is when the record was first written
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	// LastUpdated is when the record was last written
	LastUpdated time.Time `json:"last_updated" yaml:"last_updated"`
	// DownloadHistory holds the most recent downloads, newest last
	DownloadHistory []HistoryEntry `json:"download_history" yaml:"download_history"`
}

// DatabaseMetadata describes the version database document itself
type DatabaseMetadata struct {
	// Version is the document schema version
	Version string `json:"version" yaml:"version"`
	// Storage names the backend that wrote the document (local, s3, artifactory)
	Storage string `json:"storage" yaml:"storage"`
	// CreatedAt is when the database was first created
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	// LastUpdated is when the database was last saved
	LastUpdated time.Time `json:"last_updated" yaml:"last_updated"`
}

// Database is the full version database document
type Database struct {
	Metadata     DatabaseMetadata          `json:"metadata" yaml:"metadata"`
	Repositories map[string]*VersionRecord `json:"repositories" yaml:"repositories"`
}

// NewDatabase returns an empty document for the given backend tag
func NewDatabase(storage string) *Database {
	now := time.Now().UTC()
	return &Database{
		Metadata: DatabaseMetadata{
			Version:     SchemaVersion,
			Storage:     storage,
			CreatedAt:   now,
			LastUpdated: now,
		},
		Repositories: make(map[string]*VersionRecord),
	}
}

// UpdateMeta carries the history metadata recorded alongside a version update
type UpdateMeta struct {
	// AssetCount is the number of files stored for the version
	AssetCount int
	// TotalBytes is the sum of stored file sizes
	TotalBytes int64
	// Timestamp overrides time.Now for the history entry when non-zero
	Timestamp time.Time
}

// MonitorOutput is the document handed from discovery to download when they
// run as separate jobs. It is overwritten whole each run.
type MonitorOutput struct {
	Timestamp                time.Time `json:"timestamp" yaml:"timestamp"`
	TotalRepositoriesChecked int       `json:"total_repositories_checked" yaml:"total_repositories_checked"`
	NewReleasesFound         int       `json:"new_releases_found" yaml:"new_releases_found"`
	Releases                 []Release `json:"releases" yaml:"releases"`
}

// DecisionStatus is the outcome of the decision procedure for one repository
type DecisionStatus string

const (
	StatusDownloaded        DecisionStatus = "downloaded"
	StatusSkippedVersion    DecisionStatus = "skipped_version"
	StatusSkippedPrerelease DecisionStatus = "skipped_prerelease"
	StatusSkippedPattern    DecisionStatus = "skipped_pattern"
	StatusFailed            DecisionStatus = "failed"
)

func (s DecisionStatus) Pretty() api.Text {
	switch s {
	case StatusDownloaded:
		return clicky.Text("").Add(icons.Success).Append(" Downloaded", "text-green-500")
	case StatusSkippedVersion:
		return clicky.Text("").Add(icons.Skip).Append(" Up-to-date", "text-yellow-500")
	case StatusSkippedPrerelease:
		return clicky.Text("").Add(icons.Skip).Append(" Prerelease Skipped", "text-yellow-500")
	case StatusSkippedPattern:
		return clicky.Text("").Add(icons.Skip).Append(" No Matching Content", "text-blue-500")
	case StatusFailed:
		return clicky.Text("").Add(icons.Error).Append(" Failed", "text-red-500")
	default:
		return clicky.Text(string(s))
	}
}

// StoredFile describes a file written by a downloader
type StoredFile struct {
	// Path is the absolute on-disk path
	Path string `json:"path" yaml:"path"`
	// Size is the file size in bytes
	Size int64 `json:"size" yaml:"size"`
	// SHA256 is the hex digest computed while streaming
	SHA256 string `json:"sha256,omitempty" yaml:"sha256,omitempty"`
}

// RepoResult is the per-repository entry in a run report
type RepoResult struct {
	// Repo is the canonical "owner/repo" key
	Repo string `json:"repository" yaml:"repository"`
	// Tag is the discovered tag, when known
	Tag string `json:"tag,omitempty" yaml:"tag,omitempty"`
	// Status is the decision outcome
	Status DecisionStatus `json:"status" yaml:"status"`
	// Reason is the human-readable explanation for the decision
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
	// Files lists stored files for executed plans
	Files []StoredFile `json:"files,omitempty" yaml:"files,omitempty"`
	// Uploaded counts files mirrored to remote storage
	Uploaded int `json:"uploaded,omitempty" yaml:"uploaded,omitempty"`
	// Duration is the wall-clock time spent on this repository
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

func (r RepoResult) Pretty() api.Text {
	text := clicky.Text("").Add(r.Status.Pretty()).Append(": " + r.Repo)
	if r.Tag != "" {
		text = text.Append("@" + r.Tag)
	}
	if r.Reason != "" {
		text = text.Append(" "+r.Reason, "text-muted")
	}
	for _, f := range r.Files {
		text = text.Append(fmt.Sprintf(" %s (%s, sha256:%s)", f.Path, FormatBytes(f.Size), lo.Ellipsis(f.SHA256, 12)))
	}
	if r.Duration > 0 {
		text = text.Append(" in ", "muted").Printf("%s", r.Duration)
	}
	return text
}

// RunReport enumerates every repository decision for one coordinator run
type RunReport struct {
	Timestamp time.Time    `json:"timestamp" yaml:"timestamp"`
	Results   []RepoResult `json:"results" yaml:"results"`
}

// Count returns how many results carry the given status
func (r RunReport) Count(status DecisionStatus) int {
	return lo.CountBy(r.Results, func(res RepoResult) bool { return res.Status == status })
}

func (r RunReport) Pretty() api.Text {
	text := clicky.Text("")
	for _, res := range r.Results {
		text = text.Add(res.Pretty()).Append("\n")
	}
	return text.Printf("%d downloaded, %d up-to-date, %d skipped, %d failed",
		r.Count(StatusDownloaded),
		r.Count(StatusSkippedVersion),
		r.Count(StatusSkippedPrerelease)+r.Count(StatusSkippedPattern),
		r.Count(StatusFailed))
}

// RateLimit holds upstream API quota information
type RateLimit struct {
	// Remaining is the number of requests left in the window
	Remaining int `json:"remaining" yaml:"remaining"`
	// Total is the request quota per window
	Total int `json:"total" yaml:"total"`
	// ResetTime is when the quota resets
	ResetTime *time.Time `json:"reset_time,omitempty" yaml:"reset_time,omitempty"`
}

// FormatBytes renders a byte count in a human-readable form
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
