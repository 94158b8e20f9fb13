// Package loader implements the Zone/Trip Loader job: it replaces the zone lookup table
// from a CSV file read in chunks and the trip table from a Parquet file read whole.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/apache/arrow/go/v10/arrow/memory"
	"gorm.io/gorm"

	"github.com/tigerroll/taxiflow/internal/domain/model"
	"github.com/tigerroll/taxiflow/pkg/batch/component/step/reader"
	"github.com/tigerroll/taxiflow/pkg/batch/component/step/writer"
	config "github.com/tigerroll/taxiflow/pkg/batch/core/config"
	"github.com/tigerroll/taxiflow/pkg/batch/core/frame"
	"github.com/tigerroll/taxiflow/pkg/batch/core/metrics"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/logger"
)

// JobName identifies the loader in logs and metrics.
const JobName = "zone-trip-loader"

const moduleName = "loader"

// Job loads the zone lookup and trip files into a database.
type Job struct {
	db       *gorm.DB
	cfg      config.LoaderConfig
	recorder metrics.MetricRecorder
	mem      memory.Allocator
}

// NewJob creates a loader Job writing through db.
// A nil recorder disables metrics.
func NewJob(db *gorm.DB, cfg config.LoaderConfig, recorder metrics.MetricRecorder) (*Job, error) {
	if db == nil {
		return nil, exception.NewBatchErrorf(moduleName, "a database connection is required")
	}
	if cfg.ChunkSize < 1 {
		return nil, exception.NewBatchErrorf(moduleName, "chunk size must be at least 1, got %d", cfg.ChunkSize)
	}
	if cfg.ZoneTable == "" || cfg.TripTable == "" {
		return nil, exception.NewBatchErrorf(moduleName, "zone and trip table names are required")
	}
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	return &Job{db: db, cfg: cfg, recorder: recorder, mem: memory.NewGoAllocator()}, nil
}

// Run loads the zones and then the trips. The first failure aborts the run; a zone
// table loaded before a failing trip load is left in place.
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()
	j.recorder.RecordJobStart(ctx, JobName)
	logger.Infof("Job '%s' started. Zones: %s, trips: %s, chunk size: %d", JobName, j.cfg.ZoneFile, j.cfg.TripFile, j.cfg.ChunkSize)

	err := j.run(ctx)

	status := metrics.StatusCompleted
	if err != nil {
		status = metrics.StatusFailed
	}
	j.recorder.RecordJobEnd(ctx, JobName, status, time.Since(start))
	if err != nil {
		logger.Errorf("Job '%s' failed after %s: %v", JobName, time.Since(start).Round(time.Millisecond), err)
		return err
	}
	logger.Infof("Job '%s' completed in %s.", JobName, time.Since(start).Round(time.Millisecond))
	return nil
}

func (j *Job) run(ctx context.Context) error {
	zones, err := j.LoadZones(ctx)
	if err != nil {
		return err
	}
	logger.Infof("Loaded %d zones into '%s'.", zones, j.cfg.ZoneTable)

	trips, err := j.LoadTrips(ctx)
	if err != nil {
		return err
	}
	logger.Infof("Loaded %d trips into '%s'.", trips, j.cfg.TripTable)
	return nil
}

// LoadZones streams the zone lookup CSV in chunks of ChunkSize rows into the zone table.
// The table is re-created once the first chunk has been decoded, so a file that cannot be
// decoded leaves the previous table untouched. A file with only a header still produces an
// empty table. It returns the number of rows written.
func (j *Job) LoadZones(ctx context.Context) (int64, error) {
	start := time.Now()
	defer func() { j.recorder.RecordDuration(ctx, "load_zones", time.Since(start)) }()

	r, err := reader.OpenCSVFile[model.ZoneRecord]("zones", j.cfg.ZoneFile, j.cfg.ChunkSize)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	w := writer.NewTableWriter[model.ZoneRecord]("zones", j.db, j.cfg.ZoneTable, writer.Replace, j.cfg.InsertBatchSize)

	chunk, err := r.ReadChunk(ctx)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	if err := w.Open(ctx); err != nil {
		return 0, err
	}
	defer w.Close(ctx)

	var index int64
	for len(chunk) > 0 {
		for i := range chunk {
			chunk[i].Index = index
			index++
		}
		if err := w.Write(ctx, chunk); err != nil {
			return w.Written(), err
		}
		logger.Debugf("Inserted zone chunk of %d rows (total %d).", len(chunk), w.Written())

		chunk, err = r.ReadChunk(ctx)
		if err != nil && !errors.Is(err, io.EOF) {
			return w.Written(), err
		}
	}

	j.recorder.RecordRowsWritten(ctx, JobName, j.cfg.ZoneTable, w.Written())
	return w.Written(), nil
}

// LoadTrips reads the whole trip Parquet file, casts it to the trip columns and replaces
// the trip table with it. The table is only dropped once the whole file has been cast.
// It returns the number of rows written.
func (j *Job) LoadTrips(ctx context.Context) (int64, error) {
	start := time.Now()
	defer func() { j.recorder.RecordDuration(ctx, "load_trips", time.Since(start)) }()

	f, err := os.Open(j.cfg.TripFile)
	if err != nil {
		return 0, exception.NewBatchError(moduleName, fmt.Sprintf("failed to open trip file '%s'", j.cfg.TripFile), err, false)
	}
	defer f.Close()

	raw, err := frame.ReadParquet(ctx, f, j.mem)
	if err != nil {
		return 0, err
	}
	defer raw.Release()

	tbl, err := frame.Cast(raw, model.TripColumns, j.mem)
	if err != nil {
		return 0, err
	}
	defer tbl.Release()
	logger.Debugf("Read %d trips with %d columns from '%s'.", tbl.NumRows(), tbl.NumCols(), j.cfg.TripFile)

	w := writer.NewTableWriter[model.TripRecord]("trips", j.db, j.cfg.TripTable, writer.Replace, j.cfg.InsertBatchSize)
	if err := w.Open(ctx); err != nil {
		return 0, err
	}
	defer w.Close(ctx)

	batch := make([]model.TripRecord, 0, j.cfg.ChunkSize)
	err = frame.EachRow(tbl, func(row frame.Row) error {
		batch = append(batch, model.NewTripRecord(row))
		if len(batch) < j.cfg.ChunkSize {
			return nil
		}
		err := w.Write(ctx, batch)
		batch = batch[:0]
		return err
	})
	if err == nil {
		err = w.Write(ctx, batch)
	}
	if err != nil {
		return w.Written(), err
	}

	j.recorder.RecordRowsWritten(ctx, JobName, j.cfg.TripTable, w.Written())
	return w.Written(), nil
}
