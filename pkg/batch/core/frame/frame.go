// Package frame holds the columnar helpers the ingestion jobs use on in-memory Arrow tables:
// Parquet decoding, casting to declared column types, tag columns, schema-union
// concatenation and typed row iteration.
package frame

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/apache/arrow/go/v10/parquet"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"

	"github.com/tigerroll/taxiflow/pkg/batch/support/util/exception"
)

const moduleName = "frame"

// Kind is a declared column type.
type Kind int

const (
	// Int64 is a nullable 64-bit integer.
	Int64 Kind = iota
	// Float64 is a nullable double.
	Float64
	// String is a nullable UTF-8 string.
	String
	// Timestamp is a nullable timestamp with microsecond precision and no time zone.
	Timestamp
)

// String returns the name used in error messages.
func (k Kind) String() string {
	switch k {
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case String:
		return "string"
	case Timestamp:
		return "timestamp[us]"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// DataType returns the Arrow type a column of this kind is stored as.
func (k Kind) DataType() arrow.DataType {
	switch k {
	case Int64:
		return arrow.PrimitiveTypes.Int64
	case Float64:
		return arrow.PrimitiveTypes.Float64
	case String:
		return arrow.BinaryTypes.String
	case Timestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond}
	}
	return nil
}

// ColumnSpec declares one output column of Cast.
type ColumnSpec struct {
	Name string
	Kind Kind
	// Optional columns absent from the input are produced as all-null.
	Optional bool
}

// ReadParquet decodes a whole Parquet file into an Arrow table.
// r is typically a *bytes.Reader over a downloaded body or an *os.File.
func ReadParquet(ctx context.Context, r parquet.ReaderAtSeeker, mem memory.Allocator) (arrow.Table, error) {
	tbl, err := pqarrow.ReadTable(ctx, r, parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to read parquet data", err, false)
	}
	return tbl, nil
}

// ColumnIndex returns the index of the column called name, or -1.
// An exact match wins; otherwise the first case-insensitive match is used, since
// published files are not consistent about casing (e.g. "Airport_fee" and "airport_fee").
func ColumnIndex(schema *arrow.Schema, name string) int {
	if idx := schema.FieldIndices(name); len(idx) > 0 {
		return idx[0]
	}
	for i, f := range schema.Fields() {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// ColumnNames lists the column names of tbl in order.
func ColumnNames(tbl arrow.Table) []string {
	fields := tbl.Schema().Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// newTable assembles a table from columns created with arrow.NewColumn and
// releases the caller's references to them.
func newTable(cols []arrow.Column, rows int64) arrow.Table {
	fields := make([]arrow.Field, len(cols))
	for i := range cols {
		fields[i] = cols[i].Field()
	}
	tbl := array.NewTable(arrow.NewSchema(fields, nil), cols, rows)
	for i := range cols {
		cols[i].Release()
	}
	return tbl
}
