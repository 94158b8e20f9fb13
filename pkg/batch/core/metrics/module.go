package metrics

import (
	"go.uber.org/fx"
)

// Module is an Fx module that provides the NoOpMetricRecorder.
// Commands that export metrics use the infrastructure metrics module instead.
var Module = fx.Options(
	fx.Provide(NewNoOpMetricRecorder),
)
