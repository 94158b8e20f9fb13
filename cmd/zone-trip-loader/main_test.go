package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (options, *pflag.FlagSet) {
	t.Helper()
	var opts options
	flags := pflag.NewFlagSet("zone-trip-loader", pflag.ContinueOnError)
	bindFlags(flags, &opts)
	require.NoError(t, flags.Parse(args))
	return opts, flags
}

func TestLoadConfig_Defaults(t *testing.T) {
	opts, flags := parse(t, "--env-file", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := loadConfig(opts, flags)
	require.NoError(t, err)
	assert.Equal(t, 100000, cfg.Taxi.Loader.ChunkSize)
	assert.Equal(t, "taxi_zone", cfg.Taxi.Loader.ZoneTable)
	assert.Equal(t, "tripdata", cfg.Taxi.Loader.TripTable)

	db := cfg.Taxi.AdapterConfigs["green_taxi"].(map[string]interface{})
	assert.Equal(t, "postgres", db["type"])
	assert.Equal(t, "localhost", db["host"])
	assert.EqualValues(t, 5432, db["port"])
	assert.Equal(t, "root", db["user"])
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	opts, flags := parse(t,
		"--env-file", filepath.Join(t.TempDir(), "missing.env"),
		"--pg-host", "pgdatabase",
		"--pg-port", "5433",
		"--pg-pass", "secret",
		"--chunksize", "500",
		"--trip-file", "/data/green.parquet",
	)

	cfg, err := loadConfig(opts, flags)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Taxi.Loader.ChunkSize)
	assert.Equal(t, "/data/green.parquet", cfg.Taxi.Loader.TripFile)
	assert.Equal(t, "data/taxi_zone_lookup.csv", cfg.Taxi.Loader.ZoneFile)

	db := cfg.Taxi.AdapterConfigs["green_taxi"].(map[string]interface{})
	assert.Equal(t, "pgdatabase", db["host"])
	assert.Equal(t, 5433, db["port"])
	assert.Equal(t, "secret", db["password"])
	assert.Equal(t, "root", db["user"], "flags left unset keep the configured value")
}

func TestLoadConfig_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "override.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
taxi:
  loader:
    chunk_size: 42
  database:
    green_taxi:
      host: from-file
`), 0o644))

	opts, flags := parse(t, "--env-file", filepath.Join(dir, "missing.env"), "--config", file, "--pg-db", "ny_taxi")
	cfg, err := loadConfig(opts, flags)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Taxi.Loader.ChunkSize)

	db := cfg.Taxi.AdapterConfigs["green_taxi"].(map[string]interface{})
	assert.Equal(t, "from-file", db["host"])
	assert.Equal(t, "ny_taxi", db["database"])
	assert.Equal(t, "root", db["password"])
}

func TestLoadConfig_Invalid(t *testing.T) {
	opts, flags := parse(t, "--env-file", filepath.Join(t.TempDir(), "missing.env"), "--chunksize", "0")
	_, err := loadConfig(opts, flags)
	assert.Error(t, err)

	opts, flags = parse(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = loadConfig(opts, flags)
	assert.Error(t, err)
}
