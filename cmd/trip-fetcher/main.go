package main

import (
	"context"
	_ "embed"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"

	_ "github.com/tigerroll/taxiflow/pkg/batch/adapter/database/gorm/mysql"
	_ "github.com/tigerroll/taxiflow/pkg/batch/adapter/database/gorm/postgres"
	_ "github.com/tigerroll/taxiflow/pkg/batch/adapter/database/gorm/sqlite"
	_ "github.com/tigerroll/taxiflow/pkg/batch/adapter/storage/gcs"
	_ "github.com/tigerroll/taxiflow/pkg/batch/adapter/storage/local"
	config "github.com/tigerroll/taxiflow/pkg/batch/core/config"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/logger"
)

// embeddedConfig embeds the content of the application's YAML configuration file.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

func main() {
	os.Exit(realMain())
}

// realMain reads the configuration and the pipeline environment, runs one fetch inside the fx
// application and returns the process exit code.
func realMain() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Get the path to the .env file from environment variables. Use ".env" as default if not set.
	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	cfg, err := config.LoadConfig(envFilePath, embeddedConfig)
	if err != nil {
		logger.Errorf("Failed to load configuration: %v", err)
		return 1
	}
	fetchCfg, err := fetchConfigFromEnv(os.Getenv, cfg.Taxi.Fetcher)
	if err != nil {
		logger.Errorf("%v", err)
		return 1
	}

	out := &outcome{}
	app := fx.New(appOptions(ctx, cfg, fetchCfg, out)...)
	app.Run()

	if err := app.Err(); err != nil {
		logger.Errorf("Application run failed: %v", err)
		return 1
	}
	if out.err != nil {
		return 1
	}
	return 0
}
