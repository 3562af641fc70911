package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/flanksource/commons/logger"
	"github.com/flanksource/relmon/pkg/types"
)

// Sentinel errors distinguishing the two storage failure modes. I/O failures
// wrap ErrUnavailable, structural/parse failures wrap ErrCorrupt.
var (
	ErrUnavailable = errors.New("storage unavailable")
	ErrCorrupt     = errors.New("version database corrupt")
)

// IsUnavailable reports whether err is a storage availability failure
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsCorrupt reports whether err is a structural or parse failure
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorrupt)
}

// Backend reads and writes the raw version database document. A missing
// document is not an error: Get returns (nil, nil).
type Backend interface {
	// Name returns the backend tag recorded in database metadata
	Name() string
	// Get returns the stored document bytes, or nil when absent
	Get(ctx context.Context) ([]byte, error)
	// Put replaces the stored document
	Put(ctx context.Context, data []byte) error
}

// Store is the version database over a concrete backend. All writes within a
// process are serialized through the store's mutex; cross-process safety is
// limited to the backend's own last-writer-wins semantics.
type Store struct {
	backend Backend
	keep    int

	mu sync.Mutex
}

// DefaultKeepVersions bounds download history when the configuration does not
// set keep_versions.
const DefaultKeepVersions = 5

// NewStore creates a version database over the given backend
func NewStore(backend Backend, keepVersions int) *Store {
	if keepVersions <= 0 {
		keepVersions = DefaultKeepVersions
	}
	return &Store{backend: backend, keep: keepVersions}
}

// Backend returns the underlying document backend
func (s *Store) Backend() Backend {
	return s.backend
}

// Load returns the full database document. A fresh store yields an empty
// document tagged with the backend name and the current schema version.
func (s *Store) Load(ctx context.Context) (*types.Database, error) {
	data, err := s.backend.Get(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		logger.V(3).Infof("version database not found in %s storage, starting empty", s.backend.Name())
		return types.NewDatabase(s.backend.Name()), nil
	}

	var db types.Database
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("failed to parse version database: %v: %w", err, ErrCorrupt)
	}
	if db.Metadata.Version == "" {
		return nil, fmt.Errorf("version database missing schema version: %w", ErrCorrupt)
	}
	if db.Repositories == nil {
		db.Repositories = make(map[string]*types.VersionRecord)
	}
	return &db, nil
}

// Save atomically replaces the persisted document
func (s *Store) Save(ctx context.Context, db *types.Database) error {
	db.Metadata.LastUpdated = time.Now().UTC()
	if db.Metadata.Version == "" {
		db.Metadata.Version = types.SchemaVersion
	}
	db.Metadata.Storage = s.backend.Name()

	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize version database: %v: %w", err, ErrCorrupt)
	}
	return s.backend.Put(ctx, data)
}

// CurrentVersion returns the stored version for a repository key, or "" when
// the repository has no record yet.
func (s *Store) CurrentVersion(ctx context.Context, repoKey string) (string, error) {
	db, err := s.Load(ctx)
	if err != nil {
		return "", err
	}
	record, ok := db.Repositories[repoKey]
	if !ok {
		return "", nil
	}
	return record.CurrentVersion, nil
}

// UpdateVersion records a successful download: it appends to the repository's
// history (trimmed to keep_versions), sets the current version, and saves the
// document. Writes within the process are serialized.
func (s *Store) UpdateVersion(ctx context.Context, repoKey, version string, meta types.UpdateMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.Load(ctx)
	if err != nil {
		return err
	}

	now := meta.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}

	record, ok := db.Repositories[repoKey]
	if !ok {
		record = &types.VersionRecord{CreatedAt: now}
		db.Repositories[repoKey] = record
	}

	record.CurrentVersion = version
	record.LastUpdated = now
	record.DownloadHistory = append(record.DownloadHistory, types.HistoryEntry{
		Version:    version,
		Timestamp:  now,
		AssetCount: meta.AssetCount,
		TotalBytes: meta.TotalBytes,
	})
	if len(record.DownloadHistory) > s.keep {
		record.DownloadHistory = record.DownloadHistory[len(record.DownloadHistory)-s.keep:]
	}

	return s.Save(ctx, db)
}

// Select chooses the active backend from configuration and environment.
// Precedence, highest first: environment credentials, artifactory_storage,
// s3_storage, local file.
func Select(ctx context.Context, cfg types.Config) (Backend, error) {
	d := cfg.Download

	if url := os.Getenv("ARTIFACTORY_URL"); url != "" {
		art := d.ArtifactoryStorage
		art.Enabled = true
		art.BaseURL = url
		if repo := os.Getenv("ARTIFACTORY_REPOSITORY"); repo != "" {
			art.Repository = repo
		}
		logger.V(2).Infof("using artifactory version database from environment (%s)", url)
		return NewArtifactoryBackend(art)
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		s3cfg := d.S3Storage
		s3cfg.Enabled = true
		s3cfg.Bucket = bucket
		if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
			s3cfg.Endpoint = endpoint
		}
		logger.V(2).Infof("using s3 version database from environment (bucket %s)", bucket)
		return NewS3Backend(ctx, s3cfg)
	}

	if d.ArtifactoryStorage.Enabled {
		return NewArtifactoryBackend(d.ArtifactoryStorage)
	}
	if d.S3Storage.Enabled {
		return NewS3Backend(ctx, d.S3Storage)
	}
	return NewLocalBackend(d.VersionDB), nil
}
