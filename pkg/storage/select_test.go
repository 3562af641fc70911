package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flanksource/relmon/pkg/types"
)

func clearStorageEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{"ARTIFACTORY_URL", "ARTIFACTORY_REPOSITORY", "S3_BUCKET", "S3_ENDPOINT"} {
		t.Setenv(env, "")
	}
}

func TestSelectDefaultsToLocal(t *testing.T) {
	clearStorageEnv(t)

	backend, err := Select(context.Background(), types.Config{})
	require.NoError(t, err)
	assert.Equal(t, "local", backend.Name())
	assert.Equal(t, DefaultVersionDBPath, backend.(*LocalBackend).Path())
}

func TestSelectConfiguredArtifactory(t *testing.T) {
	clearStorageEnv(t)

	cfg := types.Config{}
	cfg.Download.ArtifactoryStorage = types.ArtifactoryStorageConfig{
		Enabled:    true,
		BaseURL:    "https://artifacts.example.com/artifactory",
		Repository: "generic-local",
	}
	backend, err := Select(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "artifactory", backend.Name())
}

func TestSelectConfiguredS3(t *testing.T) {
	clearStorageEnv(t)

	cfg := types.Config{}
	cfg.Download.S3Storage = types.S3StorageConfig{
		Enabled: true,
		Bucket:  "release-state",
		Region:  "us-east-1",
	}
	backend, err := Select(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "s3", backend.Name())
}

// Environment credentials outrank the configuration, and artifactory outranks
// s3 within the environment.
func TestSelectEnvPrecedence(t *testing.T) {
	clearStorageEnv(t)
	t.Setenv("S3_BUCKET", "from-env")

	cfg := types.Config{}
	cfg.Download.ArtifactoryStorage = types.ArtifactoryStorageConfig{
		Enabled:    true,
		BaseURL:    "https://artifacts.example.com/artifactory",
		Repository: "generic-local",
	}
	backend, err := Select(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "s3", backend.Name(), "environment wins over configured backends")

	t.Setenv("ARTIFACTORY_URL", "https://artifacts.example.com/artifactory")
	t.Setenv("ARTIFACTORY_REPOSITORY", "generic-local")
	backend, err = Select(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "artifactory", backend.Name())
}
