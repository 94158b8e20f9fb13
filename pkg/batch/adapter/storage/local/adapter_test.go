package local_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/taxiflow/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/taxiflow/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/taxiflow/pkg/batch/adapter/storage/local"
	coreConfig "github.com/tigerroll/taxiflow/pkg/batch/core/config"
)

func TestLocalAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	baseDir := filepath.Join(t.TempDir(), "out")
	conn, err := local.NewLocalAdapter(storageConfig.StorageConfig{Type: "local", BaseDir: baseDir}, "local")
	require.NoError(t, err)
	assert.DirExists(t, baseDir)

	require.NoError(t, conn.Upload(ctx, "", "ingestion/trips/a.parquet", bytes.NewBufferString("one"), "application/octet-stream"))
	require.NoError(t, conn.Upload(ctx, "", "ingestion/trips/b.parquet", bytes.NewBufferString("two"), "application/octet-stream"))
	require.NoError(t, conn.Upload(ctx, "", "other/c.txt", bytes.NewBufferString("three"), "text/plain"))

	rc, err := conn.Download(ctx, "", "ingestion/trips/a.parquet")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "one", string(body))

	var listed []string
	require.NoError(t, conn.ListObjects(ctx, "", "ingestion/", func(name string) error {
		listed = append(listed, name)
		return nil
	}))
	assert.Equal(t, []string{"ingestion/trips/a.parquet", "ingestion/trips/b.parquet"}, listed)

	require.NoError(t, conn.DeleteObject(ctx, "", "ingestion/trips/a.parquet"))
	require.NoError(t, conn.DeleteObject(ctx, "", "ingestion/trips/a.parquet"), "deleting a missing object is not an error")
	_, err = os.Stat(filepath.Join(baseDir, "ingestion", "trips", "a.parquet"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalAdapter_RejectsEscapingPaths(t *testing.T) {
	conn, err := local.NewLocalAdapter(storageConfig.StorageConfig{Type: "local", BaseDir: t.TempDir()}, "local")
	require.NoError(t, err)

	err = conn.Upload(context.Background(), "", "../../etc/passwd", bytes.NewBufferString("x"), "text/plain")
	assert.Error(t, err)
}

func TestLocalAdapter_BaseDirValidation(t *testing.T) {
	_, err := local.NewLocalAdapter(storageConfig.StorageConfig{Type: "local"}, "local")
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	_, err = local.NewLocalAdapter(storageConfig.StorageConfig{Type: "local", BaseDir: file}, "local")
	assert.Error(t, err)
}

func TestProvider_LocalRegistered(t *testing.T) {
	cfg := coreConfig.NewConfig()
	cfg.Taxi.StorageConfigs = map[string]interface{}{
		"local": map[string]interface{}{"type": "local", "base_dir": t.TempDir()},
		"s3":    map[string]interface{}{"type": "s3"},
	}
	p := storage.NewProvider(cfg)
	defer p.CloseAll()

	conn, err := p.GetConnection(context.Background(), "local")
	require.NoError(t, err)
	assert.Equal(t, local.ProviderType, conn.Type())
	assert.Equal(t, "local", conn.Name())

	_, err = p.GetConnection(context.Background(), "s3")
	assert.Error(t, err, "unregistered storage type")
	_, err = p.GetConnection(context.Background(), "missing")
	assert.Error(t, err)
}
