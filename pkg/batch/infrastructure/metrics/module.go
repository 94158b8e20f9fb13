package metrics

import (
	"context"

	"go.uber.org/fx"

	config "github.com/tigerroll/taxiflow/pkg/batch/core/config"
	metrics "github.com/tigerroll/taxiflow/pkg/batch/core/metrics"
	logger "github.com/tigerroll/taxiflow/pkg/batch/support/util/logger"
)

// JobName names the Pushgateway job the registry is pushed under.
type JobName string

// NewManagedRecorder creates a PrometheusRecorder that pushes its registry when the fx application stops.
// A failed push is logged and does not fail the shutdown.
func NewManagedRecorder(lc fx.Lifecycle, cfg *config.Config, job JobName) *PrometheusRecorder {
	r := NewPrometheusRecorder(cfg)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := r.Push(ctx, string(job)); err != nil {
				logger.Warnf("%v", err)
			}
			return nil
		},
	})
	return r
}

// Module is an Fx module that provides the PrometheusRecorder as the metrics.MetricRecorder.
// The application must supply a JobName.
var Module = fx.Options(
	fx.Provide(NewManagedRecorder),
	fx.Provide(func(r *PrometheusRecorder) metrics.MetricRecorder { return r }),
)
