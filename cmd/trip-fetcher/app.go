package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/taxiflow/internal/fetcher"
	"github.com/tigerroll/taxiflow/internal/materializer"
	gormadapter "github.com/tigerroll/taxiflow/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/taxiflow/pkg/batch/adapter/storage"
	config "github.com/tigerroll/taxiflow/pkg/batch/core/config"
	"github.com/tigerroll/taxiflow/pkg/batch/core/metrics"
	metricsinfra "github.com/tigerroll/taxiflow/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/logger"
)

// outcome carries the result of the fetch out of the fx application.
type outcome struct {
	err error
}

// newFetcher creates the Fetcher, stamping extracted_at with the wall clock of taxi.system.timezone.
func newFetcher(cfg *config.Config, recorder metrics.MetricRecorder) (*fetcher.Fetcher, error) {
	loc, err := time.LoadLocation(cfg.Taxi.System.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid taxi.system.timezone %q: %w", cfg.Taxi.System.Timezone, err)
	}
	return fetcher.New(&http.Client{}, recorder, fetcher.WithLocation(loc)), nil
}

// metricsModule selects the Prometheus recorder when a Pushgateway is configured and the
// no-op recorder otherwise.
func metricsModule(cfg *config.Config) fx.Option {
	if cfg.Taxi.Metrics.PushgatewayURL == "" {
		return metrics.Module
	}
	return metricsinfra.Module
}

// appOptions assembles the fx application that runs one fetch.
func appOptions(appCtx context.Context, cfg *config.Config, fetchCfg fetcher.Config, out *outcome) []fx.Option {
	return []fx.Option{
		fx.Supply(
			cfg,
			fetchCfg,
			out,
			metricsinfra.JobName(fetcher.JobName),
			fx.Annotate(
				appCtx,
				fx.As(new(context.Context)),
				fx.ResultTags(`name:"appCtx"`),
			),
		),
		logger.Module,
		gormadapter.Module,
		storage.Module,
		metricsModule(cfg),
		materializer.Module,
		fx.Provide(newFetcher),

		fx.Invoke(fx.Annotate(startFetch, fx.ParamTags(
			"",              // lc fx.Lifecycle
			"",              // shutdowner fx.Shutdowner
			"",              // f *fetcher.Fetcher
			"",              // m materializer.Materializer
			"",              // recorder metrics.MetricRecorder
			"",              // fetchCfg fetcher.Config
			"",              // out *outcome
			`name:"appCtx"`, // appCtx context.Context
		))),
	}
}

// startFetch runs the fetch in the background once the application has started and shuts
// the application down when it is done.
func startFetch(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	f *fetcher.Fetcher,
	m materializer.Materializer,
	recorder metrics.MetricRecorder,
	fetchCfg fetcher.Config,
	out *outcome,
	appCtx context.Context,
) {
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer close(done)
				defer func() {
					if r := recover(); r != nil {
						out.err = fmt.Errorf("panic recovered in fetch: %v", r)
						logger.Errorf("%v", out.err)
					}
					logger.Infof("Requesting application shutdown after fetch completion.")
					if err := shutdowner.Shutdown(); err != nil {
						logger.Errorf("Failed to shutdown application: %v", err)
					}
				}()
				out.err = runFetch(appCtx, f, m, recorder, fetchCfg)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return fmt.Errorf("fetch did not finish before shutdown: %w", ctx.Err())
			}
		},
	})
}

// runFetch downloads the configured months and hands the combined table to the materializer.
func runFetch(ctx context.Context, f *fetcher.Fetcher, m materializer.Materializer, recorder metrics.MetricRecorder, fetchCfg fetcher.Config) error {
	start := time.Now()
	recorder.RecordJobStart(ctx, fetcher.JobName)

	err := func() error {
		res, err := f.Fetch(ctx, fetchCfg)
		if err != nil {
			return err
		}
		defer res.Release()

		summary, err := m.Materialize(ctx, res)
		if err != nil {
			return err
		}
		logger.Infof("Fetch %s materialized as %s: %d rows.", res.RunID, summary.Type, summary.Rows)
		return nil
	}()

	status := metrics.StatusCompleted
	if err != nil {
		status = metrics.StatusFailed
		logger.Errorf("Job '%s' failed: %v", fetcher.JobName, err)
	}
	recorder.RecordJobEnd(ctx, fetcher.JobName, status, time.Since(start))
	return err
}
