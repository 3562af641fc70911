package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flanksource/relmon/pkg/types"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "version_db.json")
	return NewStore(NewLocalBackend(path), 3), path
}

func TestLoadFreshStore(t *testing.T) {
	store, path := newTestStore(t)

	db, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.SchemaVersion, db.Metadata.Version)
	assert.Equal(t, "local", db.Metadata.Storage)
	assert.Empty(t, db.Repositories)

	// loading must not create the file
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSaveRoundTrip(t *testing.T) {
	store, path := newTestStore(t)
	ctx := context.Background()

	db, err := store.Load(ctx)
	require.NoError(t, err)
	db.Repositories["kubernetes/kubernetes"] = &types.VersionRecord{
		CurrentVersion: "v1.2.3",
		CreatedAt:      time.Now().UTC(),
		LastUpdated:    time.Now().UTC(),
		DownloadHistory: []types.HistoryEntry{
			{Version: "v1.2.3", Timestamp: time.Now().UTC(), AssetCount: 1, TotalBytes: 100},
		},
	}
	require.NoError(t, store.Save(ctx, db))

	reloaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", reloaded.Repositories["kubernetes/kubernetes"].CurrentVersion)
	assert.Equal(t, types.SchemaVersion, reloaded.Metadata.Version)

	// the document on disk is the documented schema
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "metadata")
	assert.Contains(t, raw, "repositories")
}

func TestUpdateVersion(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpdateVersion(ctx, "flanksource/deps", "v1.0.0", types.UpdateMeta{AssetCount: 2, TotalBytes: 42}))

	current, err := store.CurrentVersion(ctx, "flanksource/deps")
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", current)

	// history is trimmed to keep_versions (3 in this store)
	for _, v := range []string{"v1.1.0", "v1.2.0", "v1.3.0", "v1.4.0"} {
		require.NoError(t, store.UpdateVersion(ctx, "flanksource/deps", v, types.UpdateMeta{AssetCount: 1}))
	}

	db, err := store.Load(ctx)
	require.NoError(t, err)
	record := db.Repositories["flanksource/deps"]
	assert.Equal(t, "v1.4.0", record.CurrentVersion)
	require.Len(t, record.DownloadHistory, 3)
	assert.Equal(t, "v1.2.0", record.DownloadHistory[0].Version)
	assert.Equal(t, "v1.4.0", record.DownloadHistory[2].Version)

	// the latest history entry always matches current_version
	assert.Equal(t, record.CurrentVersion, record.DownloadHistory[len(record.DownloadHistory)-1].Version)
}

func TestCurrentVersionMissingRepo(t *testing.T) {
	store, _ := newTestStore(t)

	current, err := store.CurrentVersion(context.Background(), "no/record")
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestCorruptDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "version_db.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	store := NewStore(NewLocalBackend(path), 5)
	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, IsCorrupt(err))
	assert.False(t, IsUnavailable(err))
}

func TestMissingSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "version_db.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"metadata":{},"repositories":{}}`), 0644))

	store := NewStore(NewLocalBackend(path), 5)
	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, IsCorrupt(err))
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	store, path := newTestStore(t)
	ctx := context.Background()

	db, err := store.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, db))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
