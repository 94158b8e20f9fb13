package metrics

import (
	"context"
	"time"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

// RecordJobStart does nothing.
func (r *NoOpMetricRecorder) RecordJobStart(ctx context.Context, jobName string) {}

// RecordJobEnd does nothing.
func (r *NoOpMetricRecorder) RecordJobEnd(ctx context.Context, jobName, status string, duration time.Duration) {
}

// RecordRowsWritten does nothing.
func (r *NoOpMetricRecorder) RecordRowsWritten(ctx context.Context, jobName, target string, count int64) {
}

// RecordDownload does nothing.
func (r *NoOpMetricRecorder) RecordDownload(ctx context.Context, taxiType, outcome string) {}

// RecordDuration does nothing.
func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)
