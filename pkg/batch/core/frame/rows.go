package frame

import (
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
)

// batchRows is the record size rows are iterated in.
const batchRows = 4096

// Row is a read-only view of one row during EachRow.
// Getters return nil for null values, for unknown columns and for columns whose
// Arrow type is not the getter's kind, so tables should be Cast first.
type Row struct {
	rec   arrow.Record
	i     int
	index int64
	names map[string]int
}

// Index returns the 0-based position of the row in the table.
func (r Row) Index() int64 { return r.index }

func (r Row) column(name string) (arrow.Array, bool) {
	idx, ok := r.names[name]
	if !ok {
		return nil, false
	}
	col := r.rec.Column(idx)
	if col.IsNull(r.i) {
		return nil, false
	}
	return col, true
}

// Int64 returns the value of an Int64 column.
func (r Row) Int64(name string) *int64 {
	col, ok := r.column(name)
	if !ok {
		return nil
	}
	a, ok := col.(*array.Int64)
	if !ok {
		return nil
	}
	v := a.Value(r.i)
	return &v
}

// Float64 returns the value of a Float64 column.
func (r Row) Float64(name string) *float64 {
	col, ok := r.column(name)
	if !ok {
		return nil
	}
	a, ok := col.(*array.Float64)
	if !ok {
		return nil
	}
	v := a.Value(r.i)
	return &v
}

// String returns the value of a String column.
func (r Row) String(name string) *string {
	col, ok := r.column(name)
	if !ok {
		return nil
	}
	a, ok := col.(*array.String)
	if !ok {
		return nil
	}
	v := a.Value(r.i)
	return &v
}

// Time returns the value of a Timestamp column as UTC.
func (r Row) Time(name string) *time.Time {
	col, ok := r.column(name)
	if !ok {
		return nil
	}
	a, ok := col.(*array.Timestamp)
	if !ok {
		return nil
	}
	unit := a.DataType().(*arrow.TimestampType).Unit
	v := time.UnixMicro(toMicros(int64(a.Value(r.i)), unit)).UTC()
	return &v
}

// EachRow calls fn for every row of tbl in order and stops at the first error fn returns.
func EachRow(tbl arrow.Table, fn func(Row) error) error {
	names := make(map[string]int, tbl.NumCols())
	for i, f := range tbl.Schema().Fields() {
		if _, dup := names[f.Name]; !dup {
			names[f.Name] = i
		}
	}

	tr := array.NewTableReader(tbl, batchRows)
	defer tr.Release()

	var index int64
	for tr.Next() {
		rec := tr.Record()
		for i := 0; i < int(rec.NumRows()); i++ {
			if err := fn(Row{rec: rec, i: i, index: index, names: names}); err != nil {
				return err
			}
			index++
		}
	}
	return nil
}
