package writer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/taxiflow/pkg/batch/adapter/storage"
	_ "github.com/tigerroll/taxiflow/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/taxiflow/pkg/batch/component/step/writer"
	coreConfig "github.com/tigerroll/taxiflow/pkg/batch/core/config"
	"github.com/tigerroll/taxiflow/pkg/batch/core/frame"
)

type reading struct {
	Month string  `parquet:"name=month, type=BYTE_ARRAY, convertedtype=UTF8"`
	Zone  *string `parquet:"name=zone, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Count *int64  `parquet:"name=count, type=INT64, repetitiontype=OPTIONAL"`
}

func newStorageProvider(t *testing.T) (*storage.Provider, string) {
	t.Helper()
	baseDir := t.TempDir()
	cfg := coreConfig.NewConfig()
	cfg.Taxi.StorageConfigs = map[string]interface{}{
		"local": map[string]interface{}{"type": "local", "base_dir": baseDir},
	}
	p := storage.NewProvider(cfg)
	t.Cleanup(func() { p.CloseAll() })
	return p, baseDir
}

func byMonth(r reading) (string, error) {
	if r.Month == "" {
		return "", errors.New("month is empty")
	}
	return "month=" + r.Month, nil
}

func TestParquetWriter_PartitionedUpload(t *testing.T) {
	ctx := context.Background()
	provider, baseDir := newStorageProvider(t)

	w, err := writer.NewParquetWriter("export", map[string]interface{}{
		"storageRef":      "local",
		"outputBaseDir":   "ingestion/trips",
		"compressionType": "gzip",
	}, provider, new(reading), byMonth)
	require.NoError(t, err)

	require.NoError(t, w.Open(ctx))
	require.NoError(t, w.Write(ctx, []reading{
		{Month: "2025-02", Zone: ptr("Midtown"), Count: ptr(int64(3))},
		{Month: "2025-01", Zone: nil, Count: ptr(int64(1))},
	}))
	require.NoError(t, w.Write(ctx, []reading{
		{Month: "2025-02", Zone: ptr("JFK Airport"), Count: nil},
	}))
	require.NoError(t, w.Close(ctx))

	objects := w.Objects()
	require.Len(t, objects, 2)
	assert.True(t, strings.HasPrefix(objects[0], "ingestion/trips/month=2025-01/data_"), objects[0])
	assert.True(t, strings.HasPrefix(objects[1], "ingestion/trips/month=2025-02/data_"), objects[1])

	f, err := os.Open(filepath.Join(baseDir, filepath.FromSlash(objects[1])))
	require.NoError(t, err)
	defer f.Close()

	tbl, err := frame.ReadParquet(ctx, f, memory.DefaultAllocator)
	require.NoError(t, err)
	defer tbl.Release()
	assert.EqualValues(t, 2, tbl.NumRows())
	assert.Equal(t, []string{"month", "zone", "count"}, frame.ColumnNames(tbl))

	var zones []string
	var counts []*int64
	require.NoError(t, frame.EachRow(tbl, func(r frame.Row) error {
		zones = append(zones, *r.String("zone"))
		counts = append(counts, r.Int64("count"))
		return nil
	}))
	assert.Equal(t, []string{"Midtown", "JFK Airport"}, zones)
	require.Len(t, counts, 2)
	assert.EqualValues(t, 3, *counts[0])
	assert.Nil(t, counts[1])
}

func TestParquetWriter_SinglePartition(t *testing.T) {
	ctx := context.Background()
	provider, baseDir := newStorageProvider(t)

	w, err := writer.NewParquetWriter("export", map[string]interface{}{
		"storageRef":    "local",
		"outputBaseDir": "out",
	}, provider, new(reading), nil)
	require.NoError(t, err)

	require.NoError(t, w.Open(ctx))
	require.NoError(t, w.Write(ctx, []reading{{Month: "2025-01"}, {Month: "2025-03"}}))
	require.NoError(t, w.Close(ctx))

	objects := w.Objects()
	require.Len(t, objects, 1)
	assert.Equal(t, "out", filepathDir(objects[0]))
	assert.FileExists(t, filepath.Join(baseDir, filepath.FromSlash(objects[0])))
}

func TestParquetWriter_NothingBuffered(t *testing.T) {
	ctx := context.Background()
	provider, baseDir := newStorageProvider(t)

	w, err := writer.NewParquetWriter("export", map[string]interface{}{
		"storageRef":    "local",
		"outputBaseDir": "out",
	}, provider, new(reading), nil)
	require.NoError(t, err)
	require.NoError(t, w.Open(ctx))
	require.NoError(t, w.Close(ctx))

	assert.Empty(t, w.Objects())
	assert.NoDirExists(t, filepath.Join(baseDir, "out"))
}

func TestParquetWriter_Errors(t *testing.T) {
	ctx := context.Background()
	provider, _ := newStorageProvider(t)

	for name, props := range map[string]map[string]interface{}{
		"no storage ref":      {"outputBaseDir": "out"},
		"no output dir":       {"storageRef": "local"},
		"unknown compression": {"storageRef": "local", "outputBaseDir": "out", "compressionType": "LZ5"},
		"bad property type":   {"storageRef": map[string]interface{}{"name": "local"}, "outputBaseDir": "out"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := writer.NewParquetWriter("export", props, provider, new(reading), nil)
			assert.Error(t, err)
		})
	}

	t.Run("unknown storage", func(t *testing.T) {
		w, err := writer.NewParquetWriter("export", map[string]interface{}{
			"storageRef":    "missing",
			"outputBaseDir": "out",
		}, provider, new(reading), nil)
		require.NoError(t, err)
		assert.Error(t, w.Open(ctx))
	})

	t.Run("partition key failure", func(t *testing.T) {
		w, err := writer.NewParquetWriter("export", map[string]interface{}{
			"storageRef":    "local",
			"outputBaseDir": "out",
		}, provider, new(reading), byMonth)
		require.NoError(t, err)
		require.NoError(t, w.Open(ctx))
		assert.Error(t, w.Write(ctx, []reading{{}}))
	})
}

func filepathDir(objectName string) string {
	return filepath.ToSlash(filepath.Dir(filepath.FromSlash(objectName)))
}
