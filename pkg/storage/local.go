package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalBackend stores the version database as a single JSON file. Saves go
// through a sibling temp file and rename so readers never observe a partial
// document.
type LocalBackend struct {
	path string
}

// DefaultVersionDBPath is used when download.version_db is not configured
const DefaultVersionDBPath = "version_db.json"

// NewLocalBackend creates a file-backed version database at path
func NewLocalBackend(path string) *LocalBackend {
	if path == "" {
		path = DefaultVersionDBPath
	}
	return &LocalBackend{path: path}
}

func (b *LocalBackend) Name() string {
	return "local"
}

// Path returns the database file location
func (b *LocalBackend) Path() string {
	return b.path
}

func (b *LocalBackend) Get(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read version database %s: %v: %w", b.path, err, ErrUnavailable)
	}
	return data, nil
}

func (b *LocalBackend) Put(_ context.Context, data []byte) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %v: %w", dir, err, ErrUnavailable)
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write version database temp file: %v: %w", err, ErrUnavailable)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace version database %s: %v: %w", b.path, err, ErrUnavailable)
	}
	return nil
}
