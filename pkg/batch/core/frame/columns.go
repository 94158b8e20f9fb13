package frame

import (
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"

	"github.com/tigerroll/taxiflow/pkg/batch/support/util/exception"
)

// WithStringColumn returns tbl with a column called name holding value on every row.
// An existing column of that name is replaced in place; otherwise the column is appended.
func WithStringColumn(tbl arrow.Table, name, value string, mem memory.Allocator) arrow.Table {
	b := array.NewStringBuilder(mem)
	defer b.Release()
	n := int(tbl.NumRows())
	b.Reserve(n)
	for i := 0; i < n; i++ {
		b.Append(value)
	}
	arr := b.NewArray()
	defer arr.Release()
	return withColumn(tbl, arrow.Field{Name: name, Type: String.DataType(), Nullable: true}, arr)
}

// WithTimestampColumn returns tbl with a column called name holding t on every row.
// An existing column of that name is replaced in place; otherwise the column is appended.
func WithTimestampColumn(tbl arrow.Table, name string, t time.Time, mem memory.Allocator) arrow.Table {
	dt := Timestamp.DataType().(*arrow.TimestampType)
	b := array.NewTimestampBuilder(mem, dt)
	defer b.Release()
	n := int(tbl.NumRows())
	b.Reserve(n)
	v := arrow.Timestamp(t.UnixMicro())
	for i := 0; i < n; i++ {
		b.Append(v)
	}
	arr := b.NewArray()
	defer arr.Release()
	return withColumn(tbl, arrow.Field{Name: name, Type: dt, Nullable: true}, arr)
}

func withColumn(tbl arrow.Table, field arrow.Field, arr arrow.Array) arrow.Table {
	cols := make([]arrow.Column, 0, tbl.NumCols()+1)
	replaced := false
	for i := 0; i < int(tbl.NumCols()); i++ {
		src := tbl.Column(i)
		if src.Name() == field.Name {
			cols = append(cols, *newColumn(field, []arrow.Array{arr}))
			replaced = true
			continue
		}
		cols = append(cols, *arrow.NewColumn(src.Field(), src.Data()))
	}
	if !replaced {
		cols = append(cols, *newColumn(field, []arrow.Array{arr}))
	}
	return newTable(cols, tbl.NumRows())
}

// Concat stacks tables vertically in the order given, without dedup or sort.
// The result schema is the union of the inputs' columns in first-seen order. Column
// names are matched the way ColumnIndex matches them, exact first and then ignoring
// case, and the first-seen spelling is kept. A column absent from an input is null for
// that input's rows. A column whose type differs between inputs is widened: mixed
// integer widths become int64, integers mixed with floats become float64, timestamps
// of different units or zones become timestamp[us] and a null-typed column takes the
// other input's type. Any other mismatch, such as string against numeric, is an error
// wrapping exception.ErrTypeCoercion.
func Concat(tables []arrow.Table, mem memory.Allocator) (arrow.Table, error) {
	if len(tables) == 0 {
		return nil, exception.NewBatchError(moduleName, "nothing to concatenate", nil, false)
	}

	var cols []unionColumn
	for ti, tbl := range tables {
		claimed := make(map[int]bool)
		for fi, f := range tbl.Schema().Fields() {
			ci := matchColumn(cols, f.Name, claimed)
			if ci < 0 {
				ci = len(cols)
				src := make([]int, len(tables))
				for i := range src {
					src[i] = -1
				}
				cols = append(cols, unionColumn{field: arrow.Field{Name: f.Name, Type: f.Type, Nullable: true}, src: src})
			}
			claimed[ci] = true
			cols[ci].src[ti] = fi

			dt, ok := promote(cols[ci].field.Type, f.Type)
			if !ok {
				return nil, exception.NewBatchError(moduleName,
					fmt.Sprintf("column %q is %s in table #%d but %s earlier", cols[ci].field.Name, f.Type, ti, cols[ci].field.Type),
					exception.ErrTypeCoercion, false)
			}
			cols[ci].field.Type = dt
		}
	}

	var rows int64
	for _, tbl := range tables {
		rows += tbl.NumRows()
	}

	out := make([]arrow.Column, 0, len(cols))
	release := func(arrs []arrow.Array) {
		for _, a := range arrs {
			a.Release()
		}
	}
	for _, col := range cols {
		var chunks, owned []arrow.Array
		for ti, tbl := range tables {
			fi := col.src[ti]
			if fi < 0 {
				if tbl.NumRows() > 0 {
					nulls := nullsOf(col.field.Type, int(tbl.NumRows()), mem)
					chunks = append(chunks, nulls)
					owned = append(owned, nulls)
				}
				continue
			}
			offset := 0
			for _, chunk := range tbl.Column(fi).Data().Chunks() {
				conv, err := widen(chunk, col.field, offset, mem)
				if err != nil {
					release(owned)
					for i := range out {
						out[i].Release()
					}
					return nil, err
				}
				offset += chunk.Len()
				if conv == chunk {
					chunks = append(chunks, chunk)
					continue
				}
				chunks = append(chunks, conv)
				owned = append(owned, conv)
			}
		}
		out = append(out, *newColumn(col.field, chunks))
		release(owned)
	}
	return newTable(out, rows), nil
}

// unionColumn is one column of a Concat result; src holds the field index of the column
// in each input, or -1 where the input lacks it.
type unionColumn struct {
	field arrow.Field
	src   []int
}

// matchColumn finds the union column a field called name belongs to, skipping columns
// already claimed by another field of the same input.
func matchColumn(cols []unionColumn, name string, claimed map[int]bool) int {
	for i := range cols {
		if !claimed[i] && cols[i].field.Name == name {
			return i
		}
	}
	for i := range cols {
		if !claimed[i] && strings.EqualFold(cols[i].field.Name, name) {
			return i
		}
	}
	return -1
}

// promote returns the type both a and b widen to, or false when they do not mix.
func promote(a, b arrow.DataType) (arrow.DataType, bool) {
	switch {
	case arrow.TypeEqual(a, b):
		return a, true
	case a.ID() == arrow.NULL:
		return b, true
	case b.ID() == arrow.NULL:
		return a, true
	case arrow.IsInteger(a.ID()) && arrow.IsInteger(b.ID()):
		return Int64.DataType(), true
	case isNumeric(a) && isNumeric(b):
		return Float64.DataType(), true
	case isTemporal(a) && isTemporal(b):
		return Timestamp.DataType(), true
	}
	return nil, false
}

func isNumeric(dt arrow.DataType) bool {
	return arrow.IsInteger(dt.ID()) || arrow.IsFloating(dt.ID())
}

func isTemporal(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return true
	}
	return false
}

// widen converts chunk to the union column's type. It returns chunk itself when no
// conversion is needed and a new reference owned by the caller otherwise.
func widen(chunk arrow.Array, field arrow.Field, offset int, mem memory.Allocator) (arrow.Array, error) {
	if arrow.TypeEqual(chunk.DataType(), field.Type) {
		return chunk, nil
	}
	if chunk.DataType().ID() == arrow.NULL {
		return nullsOf(field.Type, chunk.Len(), mem), nil
	}
	var kind Kind
	switch field.Type.ID() {
	case arrow.INT64:
		kind = Int64
	case arrow.FLOAT64:
		kind = Float64
	case arrow.TIMESTAMP:
		kind = Timestamp
	default:
		return nil, exception.NewBatchError(moduleName,
			fmt.Sprintf("column %q: cannot widen %s to %s", field.Name, chunk.DataType(), field.Type),
			exception.ErrTypeCoercion, false)
	}
	return castArray(chunk, ColumnSpec{Name: field.Name, Kind: kind}, offset, mem)
}

// nullsOf returns an all-null array of an arbitrary Arrow type.
func nullsOf(dt arrow.DataType, n int, mem memory.Allocator) arrow.Array {
	b := array.NewBuilder(mem, dt)
	defer b.Release()
	b.Reserve(n)
	for i := 0; i < n; i++ {
		b.AppendNull()
	}
	return b.NewArray()
}
