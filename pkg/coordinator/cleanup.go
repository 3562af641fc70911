package coordinator

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/flanksource/commons/logger"

	"github.com/flanksource/relmon/pkg/storage"
	"github.com/flanksource/relmon/pkg/types"
	"github.com/flanksource/relmon/pkg/version"
)

// pruneOldVersions removes local per-repository tag directories beyond the
// newest keep entries. Pruning is best-effort: failures are logged and never
// fail the run.
func (c *Coordinator) pruneOldVersions(release types.Release, keep int) {
	if keep <= 0 {
		keep = storage.DefaultKeepVersions
	}

	repoDir := filepath.Join(c.cfg.Download.Directory, release.Owner()+"_"+release.RepoName())
	entries, err := os.ReadDir(repoDir)
	if err != nil {
		logger.V(3).Infof("cleanup: failed to read %s: %v", repoDir, err)
		return
	}

	var tags []string
	for _, entry := range entries {
		if entry.IsDir() {
			tags = append(tags, entry.Name())
		}
	}
	if len(tags) <= keep {
		return
	}

	// newest first
	sort.Slice(tags, func(i, j int) bool { return version.Compare(tags[i], tags[j]) > 0 })

	for _, tag := range tags[keep:] {
		dir := filepath.Join(repoDir, tag)
		if err := os.RemoveAll(dir); err != nil {
			logger.V(2).Infof("cleanup: failed to remove %s: %v", dir, err)
			continue
		}
		logger.V(2).Infof("cleanup: removed old version %s", dir)
	}
}
