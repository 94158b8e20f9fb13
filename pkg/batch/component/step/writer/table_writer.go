// Package writer provides the item writers the ingestion jobs persist their records with.
package writer

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/taxiflow/pkg/batch/core/application/port"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/logger"
)

// Mode selects what Open does with an existing destination table.
type Mode int

const (
	// Replace drops the table and re-creates it from the record structure.
	Replace Mode = iota
	// Append keeps existing rows and creates the table only when it does not exist.
	Append
)

// String returns the mode name used in logs.
func (m Mode) String() string {
	switch m {
	case Replace:
		return "replace"
	case Append:
		return "append"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// DefaultInsertBatchSize is used when a TableWriter is created with a non-positive batch size.
const DefaultInsertBatchSize = 1000

// TableWriter is a [port.ItemWriter] that inserts records of type T into a database table through GORM.
// The table schema is derived from T; the table name is given explicitly so the same
// record type can be written to differently named tables.
type TableWriter[T any] struct {
	name      string   // name identifies the writer in logs and errors.
	db        *gorm.DB // db is the connection the table lives in.
	table     string   // table is the destination table name.
	mode      Mode     // mode decides how Open treats an existing table.
	batchSize int      // batchSize caps the rows of a single INSERT statement.
	written   int64    // written counts the rows inserted since Open.
	opened    bool
}

// NewTableWriter creates a new instance of [TableWriter].
//
// Parameters:
//
//	name: A unique name for this writer instance.
//	db: The GORM connection to write through.
//	table: The destination table name.
//	mode: Replace or Append.
//	batchSize: The maximum number of rows per INSERT statement.
//
// Returns:
//
//	A new [TableWriter] instance.
func NewTableWriter[T any](name string, db *gorm.DB, table string, mode Mode, batchSize int) *TableWriter[T] {
	if batchSize < 1 {
		batchSize = DefaultInsertBatchSize
	}
	return &TableWriter[T]{
		name:      name,
		db:        db,
		table:     table,
		mode:      mode,
		batchSize: batchSize,
	}
}

// Verify that [TableWriter] implements the [port.ItemWriter] interface at compile time.
var _ port.ItemWriter[struct{}] = (*TableWriter[struct{}])(nil)

// Open prepares the destination table.
// In Replace mode the table is dropped and re-created with zero rows; in Append mode it is
// created only if missing. Open must be called before Write.
func (w *TableWriter[T]) Open(ctx context.Context) error {
	m := w.db.WithContext(ctx).Table(w.table).Migrator()
	model := new(T)

	switch w.mode {
	case Replace:
		if err := m.DropTable(model); err != nil {
			return exception.NewBatchError("writer", fmt.Sprintf("TableWriter '%s': failed to drop table '%s'", w.name, w.table), err, false)
		}
		if err := m.CreateTable(model); err != nil {
			return exception.NewBatchError("writer", fmt.Sprintf("TableWriter '%s': failed to create table '%s'", w.name, w.table), err, false)
		}
		logger.Infof("TableWriter '%s': re-created table '%s'.", w.name, w.table)
	case Append:
		if !m.HasTable(model) {
			if err := m.CreateTable(model); err != nil {
				return exception.NewBatchError("writer", fmt.Sprintf("TableWriter '%s': failed to create table '%s'", w.name, w.table), err, false)
			}
			logger.Infof("TableWriter '%s': created table '%s'.", w.name, w.table)
		}
	default:
		return exception.NewBatchErrorf("writer", "TableWriter '%s': unknown mode %s", w.name, w.mode)
	}

	w.written = 0
	w.opened = true
	return nil
}

// Write inserts items in arrival order, at most batchSize rows per statement.
func (w *TableWriter[T]) Write(ctx context.Context, items []T) error {
	if !w.opened {
		return exception.NewBatchErrorf("writer", "TableWriter '%s': Write called before Open", w.name)
	}
	if len(items) == 0 {
		return nil
	}

	result := w.db.WithContext(ctx).Table(w.table).CreateInBatches(items, w.batchSize)
	if result.Error != nil {
		return exception.NewBatchError("writer",
			fmt.Sprintf("TableWriter '%s': failed to insert %d rows into '%s'", w.name, len(items), w.table),
			result.Error, false)
	}
	w.written += int64(len(items))
	logger.Debugf("TableWriter '%s': inserted %d rows into '%s' (total %d).", w.name, len(items), w.table, w.written)
	return nil
}

// Close ends the write. The connection is owned by the database provider and stays open.
func (w *TableWriter[T]) Close(ctx context.Context) error {
	if w.opened {
		logger.Infof("TableWriter '%s': wrote %d rows to '%s' (%s).", w.name, w.written, w.table, w.mode)
	}
	w.opened = false
	return nil
}

// Written returns the number of rows inserted since the last Open.
func (w *TableWriter[T]) Written() int64 {
	return w.written
}

// Table returns the destination table name.
func (w *TableWriter[T]) Table() string {
	return w.table
}

// BatchSize returns the maximum number of rows per INSERT statement.
func (w *TableWriter[T]) BatchSize() int {
	return w.batchSize
}
