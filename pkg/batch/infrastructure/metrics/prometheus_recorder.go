package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"

	config "github.com/tigerroll/taxiflow/pkg/batch/core/config"
	metrics "github.com/tigerroll/taxiflow/pkg/batch/core/metrics"
	logger "github.com/tigerroll/taxiflow/pkg/batch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
// Batch jobs do not live long enough to be scraped, so the registry is pushed to a
// Pushgateway at the end of a run when one is configured.
type PrometheusRecorder struct {
	registry       *prometheus.Registry
	pushgatewayURL string

	// Job Metrics
	jobDurationSeconds *prometheus.HistogramVec
	jobStatusCounter   *prometheus.CounterVec

	// Data Metrics
	rowsWrittenCounter *prometheus.CounterVec
	downloadCounter    *prometheus.CounterVec

	// Operation Metrics
	operationDurationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder(cfg *config.Config) *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry:       registry,
		pushgatewayURL: cfg.Taxi.Metrics.PushgatewayURL,
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taxi_job_duration_seconds",
			Help:    "Duration of ingestion job runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"job_name", "status"}),
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taxi_job_status_total",
			Help: "Total number of ingestion job runs by status.",
		}, []string{"job_name", "status"}),
		rowsWrittenCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taxi_rows_written_total",
			Help: "Total rows written by job and destination.",
		}, []string{"job_name", "target"}),
		downloadCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taxi_downloads_total",
			Help: "Monthly file downloads by taxi type and outcome.",
		}, []string{"taxi_type", "outcome"}),
		operationDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taxi_operation_duration_seconds",
			Help:    "Duration of named job operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	registry.MustRegister(r.jobDurationSeconds)
	registry.MustRegister(r.jobStatusCounter)
	registry.MustRegister(r.rowsWrittenCounter)
	registry.MustRegister(r.downloadCounter)
	registry.MustRegister(r.operationDurationSeconds)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordJobStart records the start of a job run.
func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, jobName string) {
	r.jobStatusCounter.WithLabelValues(jobName, "STARTED").Inc()
	logger.Debugf("Metrics: Job '%s' started.", jobName)
}

// RecordJobEnd records the end of a job run.
func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, jobName, status string, duration time.Duration) {
	r.jobStatusCounter.WithLabelValues(jobName, status).Inc()
	r.jobDurationSeconds.WithLabelValues(jobName, status).Observe(duration.Seconds())
	logger.Debugf("Metrics: Job '%s' ended with %s. Duration: %.3fs", jobName, status, duration.Seconds())
}

// RecordRowsWritten records rows persisted to a destination.
func (r *PrometheusRecorder) RecordRowsWritten(ctx context.Context, jobName, target string, count int64) {
	r.rowsWrittenCounter.WithLabelValues(jobName, target).Add(float64(count))
}

// RecordDownload records the outcome of one monthly file download.
func (r *PrometheusRecorder) RecordDownload(ctx context.Context, taxiType, outcome string) {
	r.downloadCounter.WithLabelValues(taxiType, outcome).Inc()
}

// RecordDuration records the execution time of a named operation.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration) {
	r.operationDurationSeconds.WithLabelValues(name).Observe(duration.Seconds())
}

// Push sends the registry to the configured Pushgateway under the given job name.
// It does nothing when no Pushgateway is configured.
func (r *PrometheusRecorder) Push(ctx context.Context, jobName string) error {
	if r.pushgatewayURL == "" {
		return nil
	}
	if err := push.New(r.pushgatewayURL, jobName).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", r.pushgatewayURL, err)
	}
	logger.Debugf("Metrics: pushed job '%s' to %s.", jobName, r.pushgatewayURL)
	return nil
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
