// Package materializer persists the combined table of a fetch. The destination is chosen
// by taxi.materialization.type: an append-only database table, Parquet files in object
// storage, or nothing at all.
package materializer

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"go.uber.org/fx"

	"github.com/tigerroll/taxiflow/internal/domain/model"
	"github.com/tigerroll/taxiflow/internal/fetcher"
	"github.com/tigerroll/taxiflow/pkg/batch/adapter/database"
	"github.com/tigerroll/taxiflow/pkg/batch/adapter/storage"
	"github.com/tigerroll/taxiflow/pkg/batch/component/step/writer"
	config "github.com/tigerroll/taxiflow/pkg/batch/core/config"
	"github.com/tigerroll/taxiflow/pkg/batch/core/frame"
	"github.com/tigerroll/taxiflow/pkg/batch/core/metrics"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/logger"
)

const moduleName = "materializer"

// Summary describes what a Materializer persisted.
type Summary struct {
	Type    string
	Target  string
	Rows    int64
	Objects []string
}

// Materializer persists the table of a fetch result.
type Materializer interface {
	Materialize(ctx context.Context, res *fetcher.Result) (Summary, error)
}

// Params are the dependencies of New.
type Params struct {
	fx.In

	Config    *config.Config
	Databases database.DBProvider     `optional:"true"`
	Storage   storage.StorageProvider `optional:"true"`
	Recorder  metrics.MetricRecorder  `optional:"true"`
}

// New returns the Materializer selected by the configuration.
func New(p Params) (Materializer, error) {
	cfg := p.Config.Taxi.Materialization
	recorder := p.Recorder
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}

	switch cfg.Type {
	case config.MaterializeDatabase:
		if p.Databases == nil {
			return nil, exception.NewBatchErrorf(moduleName, "materialization type %q needs a database provider", cfg.Type)
		}
		return &tableSink{cfg: cfg, dbs: p.Databases, recorder: recorder, mem: memory.NewGoAllocator()}, nil
	case config.MaterializeParquet:
		if p.Storage == nil {
			return nil, exception.NewBatchErrorf(moduleName, "materialization type %q needs a storage provider", cfg.Type)
		}
		return &parquetSink{cfg: cfg, stores: p.Storage, recorder: recorder, mem: memory.NewGoAllocator()}, nil
	case config.MaterializeNone, "":
		return noneSink{}, nil
	}
	return nil, exception.NewBatchErrorf(moduleName, "unknown materialization type %q", cfg.Type)
}

// Module provides the configured Materializer.
var Module = fx.Options(
	fx.Provide(New),
)

// records casts tbl to the fetched trip columns and calls fn with consecutive records of
// at most size rows.
func records(tbl arrow.Table, size int, mem memory.Allocator, fn func([]model.FetchedTripRecord) error) error {
	cast, err := frame.Cast(tbl, model.FetchedTripColumns, mem)
	if err != nil {
		return err
	}
	defer cast.Release()

	if size < 1 {
		size = writer.DefaultInsertBatchSize
	}
	batch := make([]model.FetchedTripRecord, 0, size)
	err = frame.EachRow(cast, func(r frame.Row) error {
		batch = append(batch, model.NewFetchedTripRecord(r))
		if len(batch) < size {
			return nil
		}
		err := fn(batch)
		batch = batch[:0]
		return err
	})
	if err != nil {
		return err
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

// tableSink appends the records to a database table, creating it when missing.
type tableSink struct {
	cfg      config.MaterializationConfig
	dbs      database.DBProvider
	recorder metrics.MetricRecorder
	mem      memory.Allocator
}

func (s *tableSink) Materialize(ctx context.Context, res *fetcher.Result) (Summary, error) {
	conn, err := s.dbs.GetConnection(s.cfg.DBRef)
	if err != nil {
		return Summary{}, exception.NewBatchError(moduleName, fmt.Sprintf("failed to get database connection '%s'", s.cfg.DBRef), err, false)
	}

	w := writer.NewTableWriter[model.FetchedTripRecord]("trips", conn.GormDB(), s.cfg.Table, writer.Append, s.cfg.InsertBatchSize)
	if err := w.Open(ctx); err != nil {
		return Summary{}, err
	}
	defer w.Close(ctx)

	// Each Write goes out as several INSERT statements, so hand the writer a few batches at a time.
	err = records(res.Table, w.BatchSize()*10, s.mem, func(batch []model.FetchedTripRecord) error {
		return w.Write(ctx, batch)
	})
	if err != nil {
		return Summary{}, err
	}

	s.recorder.RecordRowsWritten(ctx, fetcher.JobName, s.cfg.Table, w.Written())
	logger.Infof("Appended %d rows of fetch %s to '%s' (%s).", w.Written(), res.RunID, s.cfg.Table, s.cfg.DBRef)
	return Summary{Type: config.MaterializeDatabase, Target: s.cfg.Table, Rows: w.Written()}, nil
}

// parquetSink writes the records as Parquet files partitioned by taxi type.
type parquetSink struct {
	cfg      config.MaterializationConfig
	stores   storage.StorageProvider
	recorder metrics.MetricRecorder
	mem      memory.Allocator
}

func (s *parquetSink) Materialize(ctx context.Context, res *fetcher.Result) (Summary, error) {
	w, err := writer.NewParquetWriter("trips", map[string]interface{}{
		"storageRef":      s.cfg.StorageRef,
		"outputBaseDir":   s.cfg.OutputBaseDir,
		"compressionType": s.cfg.CompressionType,
	}, s.stores, new(model.FetchedTripRow), model.FetchedTripRow.PartitionKey)
	if err != nil {
		return Summary{}, err
	}
	if err := w.Open(ctx); err != nil {
		return Summary{}, err
	}

	var rows int64
	err = records(res.Table, writer.DefaultInsertBatchSize, s.mem, func(batch []model.FetchedTripRecord) error {
		out := make([]model.FetchedTripRow, len(batch))
		for i := range batch {
			out[i] = batch[i].ParquetRow()
		}
		rows += int64(len(out))
		return w.Write(ctx, out)
	})
	if err != nil {
		return Summary{}, err
	}
	if err := w.Close(ctx); err != nil {
		return Summary{}, err
	}

	s.recorder.RecordRowsWritten(ctx, fetcher.JobName, s.cfg.OutputBaseDir, rows)
	logger.Infof("Exported %d rows of fetch %s to %d object(s) under '%s' (%s).", rows, res.RunID, len(w.Objects()), s.cfg.OutputBaseDir, s.cfg.StorageRef)
	return Summary{Type: config.MaterializeParquet, Target: s.cfg.OutputBaseDir, Rows: rows, Objects: w.Objects()}, nil
}

// noneSink only reports the fetch.
type noneSink struct{}

func (noneSink) Materialize(ctx context.Context, res *fetcher.Result) (Summary, error) {
	ok := 0
	for _, a := range res.Attempts {
		if a.OK() {
			ok++
		}
	}
	logger.Infof("Fetch %s: %d rows from %d of %d files, not materialized.", res.RunID, res.Rows(), ok, len(res.Attempts))
	return Summary{Type: config.MaterializeNone, Rows: res.Rows()}, nil
}
