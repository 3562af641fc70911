package upload

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/flanksource/commons/logger"

	"github.com/flanksource/relmon/pkg/storage"
	"github.com/flanksource/relmon/pkg/types"
)

// DefaultExtensions is the upload allow-list applied when the configuration
// does not set one.
var DefaultExtensions = []string{
	".tar", ".gz", ".tgz", ".zip",
	".yaml", ".yml", ".json", ".xml", ".toml",
	".deb", ".rpm", ".dmg", ".exe", ".msi",
}

// Uploader mirrors downloaded files into the shared object or artifact store,
// preserving the on-disk relative layout under a key prefix.
type Uploader struct {
	s3         *storage.S3Backend
	art        *storage.ArtifactoryBackend
	prefix     string
	extensions []string
}

// New creates an uploader targeting the same backend as the version database.
// The local backend has no remote side to mirror to and yields an error.
func New(backend storage.Backend, cfg types.UploadConfig) (*Uploader, error) {
	u := &Uploader{
		prefix:     strings.Trim(cfg.Prefix, "/"),
		extensions: cfg.Extensions,
	}
	if len(u.extensions) == 0 {
		u.extensions = DefaultExtensions
	}

	switch b := backend.(type) {
	case *storage.S3Backend:
		u.s3 = b
	case *storage.ArtifactoryBackend:
		u.art = b
	default:
		return nil, fmt.Errorf("artifact upload requires s3 or artifactory storage, got %s", backend.Name())
	}
	return u, nil
}

// Eligible reports whether a file passes the extension allow-list. The
// .sha256 sidecars ride along with their artifact.
func (u *Uploader) Eligible(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	name = strings.TrimSuffix(name, ".sha256")
	for _, ext := range u.extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Mirror uploads the eligible files (and their sidecars), keyed by their path
// relative to baseDir. Individual upload failures are logged and skipped; the
// return value is the number of files uploaded successfully.
func (u *Uploader) Mirror(ctx context.Context, baseDir string, files []types.StoredFile) int {
	uploaded := 0
	for _, file := range files {
		for _, path := range []string{file.Path, file.Path + ".sha256"} {
			if !u.Eligible(path) {
				continue
			}
			if err := u.uploadFile(ctx, baseDir, path); err != nil {
				logger.Warnf("upload failed for %s: %v", path, err)
				continue
			}
			uploaded++
		}
	}
	return uploaded
}

func (u *Uploader) uploadFile(ctx context.Context, baseDir, path string) error {
	rel, err := filepath.Rel(baseDir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	key := filepath.ToSlash(rel)
	if u.prefix != "" {
		key = u.prefix + "/" + key
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if u.s3 != nil {
		if err := u.s3.Upload(ctx, key, f, info.Size(), contentType); err != nil {
			return err
		}
	} else {
		url := u.art.BaseURL() + "/" + key
		if err := u.art.Upload(ctx, url, f, info.Size(), contentType); err != nil {
			return err
		}
	}

	logger.V(2).Infof("uploaded %s (%s)", key, types.FormatBytes(info.Size()))
	return nil
}
