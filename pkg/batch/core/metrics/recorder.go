// Package metrics defines the metric recording abstraction used by the ingestion jobs.
package metrics

import (
	"context"
	"time"
)

// Job outcome labels.
const (
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Download outcome labels.
const (
	DownloadSucceeded = "succeeded"
	DownloadSkipped   = "skipped"
)

// MetricRecorder is an abstract interface for recording metrics related to job execution.
//
// This interface keeps the jobs independent of the metrics backend.
type MetricRecorder interface {
	// RecordJobStart records the start of a job run.
	//
	// ctx: The context for the operation.
	// jobName: The name of the job.
	RecordJobStart(ctx context.Context, jobName string)

	// RecordJobEnd records the end of a job run.
	//
	// ctx: The context for the operation.
	// jobName: The name of the job.
	// status: StatusCompleted or StatusFailed.
	// duration: The wall-clock duration of the run.
	RecordJobEnd(ctx context.Context, jobName, status string, duration time.Duration)

	// RecordRowsWritten records rows persisted to a destination.
	//
	// ctx: The context for the operation.
	// jobName: The name of the job.
	// target: The destination table or object prefix.
	// count: The number of rows written.
	RecordRowsWritten(ctx context.Context, jobName, target string, count int64)

	// RecordDownload records the outcome of one monthly file download.
	//
	// ctx: The context for the operation.
	// taxiType: The taxi type of the file.
	// outcome: DownloadSucceeded or DownloadSkipped.
	RecordDownload(ctx context.Context, taxiType, outcome string)

	// RecordDuration records the execution time of a named operation.
	//
	// ctx: The context for the operation.
	// name: The name of the operation (e.g., "load_zones", "download").
	// duration: The length of the duration to record.
	RecordDuration(ctx context.Context, name string, duration time.Duration)
}
