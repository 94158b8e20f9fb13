package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tigerroll/taxiflow/internal/loader"
	gormadapter "github.com/tigerroll/taxiflow/pkg/batch/adapter/database/gorm"
	_ "github.com/tigerroll/taxiflow/pkg/batch/adapter/database/gorm/mysql"
	_ "github.com/tigerroll/taxiflow/pkg/batch/adapter/database/gorm/postgres"
	_ "github.com/tigerroll/taxiflow/pkg/batch/adapter/database/gorm/sqlite"
	config "github.com/tigerroll/taxiflow/pkg/batch/core/config"
	"github.com/tigerroll/taxiflow/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/logger"
)

// embeddedConfig embeds the content of the application's YAML configuration file.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// options holds the command line flags.
type options struct {
	pgUser    string
	pgPass    string
	pgHost    string
	pgPort    int
	pgDB      string
	chunkSize int
	zoneFile  string
	tripFile  string
	config    string
	envFile   string
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		logger.Errorf("%v", err)
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "zone-trip-loader",
		Short: "Load the taxi zone lookup and a green taxi trip file into PostgreSQL",
		Long: `zone-trip-loader replaces the taxi_zone table with the zone lookup CSV, read in chunks,
and the tripdata table with a green taxi trip Parquet file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, c.Flags())
			if err != nil {
				return err
			}
			return run(c.Context(), cfg)
		},
	}

	bindFlags(cmd.Flags(), &opts)
	return cmd
}

// bindFlags registers the command line flags on flags.
func bindFlags(flags *pflag.FlagSet, opts *options) {
	flags.StringVar(&opts.pgUser, "pg-user", "root", "PostgreSQL user")
	flags.StringVar(&opts.pgPass, "pg-pass", "root", "PostgreSQL password")
	flags.StringVar(&opts.pgHost, "pg-host", "localhost", "PostgreSQL host")
	flags.IntVar(&opts.pgPort, "pg-port", 5432, "PostgreSQL port")
	flags.StringVar(&opts.pgDB, "pg-db", "green_taxi", "PostgreSQL database name")
	flags.IntVar(&opts.chunkSize, "chunksize", 100000, "Chunk size for reading CSV")
	flags.StringVar(&opts.zoneFile, "zone-file", "data/taxi_zone_lookup.csv", "zone lookup CSV file")
	flags.StringVar(&opts.tripFile, "trip-file", "data/green_tripdata_2025-11.parquet", "trip Parquet file")
	flags.StringVar(&opts.config, "config", "", "YAML file merged over the built-in configuration")
	flags.StringVar(&opts.envFile, "env-file", ".env", ".env file with TAXI_* overrides")
}

// loadConfig layers the built-in configuration, the --config file, TAXI_* variables and
// finally the flags given explicitly on the command line.
func loadConfig(opts options, flags *pflag.FlagSet) (*config.Config, error) {
	sources := [][]byte{embeddedConfig}
	if opts.config != "" {
		data, err := os.ReadFile(opts.config)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.config, err)
		}
		sources = append(sources, data)
	}

	cfg, err := config.LoadConfig(opts.envFile, sources...)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, opts, flags); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// applyFlags copies the flags set on the command line into cfg.
// The connection flags edit the database entry named by loader.db_ref.
func applyFlags(cfg *config.Config, opts options, flags *pflag.FlagSet) error {
	ref := cfg.Taxi.Loader.DBRef
	raw, ok := cfg.Taxi.AdapterConfigs[ref].(map[string]interface{})
	if !ok {
		if _, exists := cfg.Taxi.AdapterConfigs[ref]; exists {
			return fmt.Errorf("database entry '%s' is not a mapping", ref)
		}
		raw = map[string]interface{}{"type": "postgres"}
		if cfg.Taxi.AdapterConfigs == nil {
			cfg.Taxi.AdapterConfigs = map[string]interface{}{}
		}
		cfg.Taxi.AdapterConfigs[ref] = raw
	}

	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("pg-user", func() { raw["user"] = opts.pgUser })
	set("pg-pass", func() { raw["password"] = opts.pgPass })
	set("pg-host", func() { raw["host"] = opts.pgHost })
	set("pg-port", func() { raw["port"] = opts.pgPort })
	set("pg-db", func() { raw["database"] = opts.pgDB })
	set("chunksize", func() { cfg.Taxi.Loader.ChunkSize = opts.chunkSize })
	set("zone-file", func() { cfg.Taxi.Loader.ZoneFile = opts.zoneFile })
	set("trip-file", func() { cfg.Taxi.Loader.TripFile = opts.tripFile })
	return nil
}

func run(ctx context.Context, cfg *config.Config) error {
	provider := gormadapter.NewProvider(cfg)
	defer func() {
		if err := provider.CloseAll(); err != nil {
			logger.Warnf("Failed to close database connections: %v", err)
		}
	}()

	conn, err := provider.GetConnection(cfg.Taxi.Loader.DBRef)
	if err != nil {
		return err
	}

	recorder := metrics.NewPrometheusRecorder(cfg)
	defer func() {
		if err := recorder.Push(context.Background(), loader.JobName); err != nil {
			logger.Warnf("%v", err)
		}
	}()

	job, err := loader.NewJob(conn.GormDB(), cfg.Taxi.Loader, recorder)
	if err != nil {
		return err
	}
	return job.Run(ctx)
}
