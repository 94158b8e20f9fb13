package frame

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"golang.org/x/exp/constraints"

	"github.com/tigerroll/taxiflow/pkg/batch/support/util/exception"
)

// timestampLayouts are the textual date-time forms accepted for Timestamp columns.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// valuer is the typed accessor shared by Arrow's primitive and string arrays.
type valuer[T any] interface {
	arrow.Array
	Value(i int) T
}

// Cast returns a table holding exactly the declared columns, in declaration order and
// under their declared names, with every value converted to the declared kind.
// Undeclared input columns are dropped. A missing non-optional column, or any value
// that cannot be represented in its declared kind, aborts the cast with an error
// wrapping exception.ErrTypeCoercion. Casting an already cast table is a no-op.
//
// Parameters:
//
//	tbl: The input table.
//	specs: The declared output columns.
//	mem: The allocator for converted buffers.
func Cast(tbl arrow.Table, specs []ColumnSpec, mem memory.Allocator) (arrow.Table, error) {
	rows := tbl.NumRows()
	cols := make([]arrow.Column, 0, len(specs))
	release := func() {
		for i := range cols {
			cols[i].Release()
		}
	}

	for _, spec := range specs {
		field := arrow.Field{Name: spec.Name, Type: spec.Kind.DataType(), Nullable: true}

		idx := ColumnIndex(tbl.Schema(), spec.Name)
		if idx < 0 {
			if !spec.Optional {
				release()
				return nil, exception.NewBatchError(moduleName, fmt.Sprintf("declared column %q not found", spec.Name), exception.ErrTypeCoercion, false)
			}
			nulls := nullArray(spec.Kind, int(rows), mem)
			cols = append(cols, *newColumn(field, []arrow.Array{nulls}))
			nulls.Release()
			continue
		}

		src := tbl.Column(idx)
		chunks := make([]arrow.Array, 0, len(src.Data().Chunks()))
		offset := 0
		for _, chunk := range src.Data().Chunks() {
			converted, err := castArray(chunk, spec, offset, mem)
			if err != nil {
				for _, c := range chunks {
					c.Release()
				}
				release()
				return nil, err
			}
			chunks = append(chunks, converted)
			offset += chunk.Len()
		}
		cols = append(cols, *newColumn(field, chunks))
		for _, c := range chunks {
			c.Release()
		}
	}

	return newTable(cols, rows), nil
}

// newColumn wraps chunks into a column; the column holds its own references.
func newColumn(field arrow.Field, chunks []arrow.Array) *arrow.Column {
	chunked := arrow.NewChunked(field.Type, chunks)
	defer chunked.Release()
	return arrow.NewColumn(field, chunked)
}

// castArray converts one chunk. The result is a new reference owned by the caller.
// offset is the row number of the chunk's first value, used in error messages.
func castArray(arr arrow.Array, spec ColumnSpec, offset int, mem memory.Allocator) (arrow.Array, error) {
	if arrow.TypeEqual(arr.DataType(), spec.Kind.DataType()) {
		arr.Retain()
		return arr, nil
	}
	if arr.DataType().ID() == arrow.NULL {
		return nullArray(spec.Kind, arr.Len(), mem), nil
	}

	conv := converter{column: spec.Name, offset: offset, target: spec.Kind}
	switch spec.Kind {
	case Int64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		b.Reserve(arr.Len())
		if err := conv.toInt64(arr, b); err != nil {
			return nil, err
		}
		return b.NewArray(), nil
	case Float64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.Reserve(arr.Len())
		if err := conv.toFloat64(arr, b); err != nil {
			return nil, err
		}
		return b.NewArray(), nil
	case String:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		b.Reserve(arr.Len())
		if err := conv.toString(arr, b); err != nil {
			return nil, err
		}
		return b.NewArray(), nil
	case Timestamp:
		b := array.NewTimestampBuilder(mem, spec.Kind.DataType().(*arrow.TimestampType))
		defer b.Release()
		b.Reserve(arr.Len())
		if err := conv.toTimestamp(arr, b); err != nil {
			return nil, err
		}
		return b.NewArray(), nil
	}
	return nil, exception.NewBatchError(moduleName, fmt.Sprintf("column %q: unknown kind %s", spec.Name, spec.Kind), exception.ErrTypeCoercion, false)
}

// nullArray returns an all-null array of the kind's type.
func nullArray(kind Kind, n int, mem memory.Allocator) arrow.Array {
	var b array.Builder
	switch kind {
	case Int64:
		b = array.NewInt64Builder(mem)
	case Float64:
		b = array.NewFloat64Builder(mem)
	case String:
		b = array.NewStringBuilder(mem)
	default:
		b = array.NewTimestampBuilder(mem, Timestamp.DataType().(*arrow.TimestampType))
	}
	defer b.Release()
	b.Reserve(n)
	for i := 0; i < n; i++ {
		b.AppendNull()
	}
	return b.NewArray()
}

// converter carries the context reported by coercion errors.
type converter struct {
	column string
	offset int
	target Kind
}

func (c converter) fail(i int, cause error) error {
	return exception.NewCoercionError(moduleName, c.column, c.offset+i, c.target.String(), cause)
}

func (c converter) unsupported(arr arrow.Array) error {
	return exception.NewBatchError(moduleName,
		fmt.Sprintf("column %q: cannot convert %s to %s", c.column, arr.DataType(), c.target),
		exception.ErrTypeCoercion, false)
}

func (c converter) toInt64(arr arrow.Array, b *array.Int64Builder) error {
	switch a := arr.(type) {
	case *array.Int8:
		return integersToInt64[int8](c, a, b)
	case *array.Int16:
		return integersToInt64[int16](c, a, b)
	case *array.Int32:
		return integersToInt64[int32](c, a, b)
	case *array.Uint8:
		return integersToInt64[uint8](c, a, b)
	case *array.Uint16:
		return integersToInt64[uint16](c, a, b)
	case *array.Uint32:
		return integersToInt64[uint32](c, a, b)
	case *array.Uint64:
		return integersToInt64[uint64](c, a, b)
	case *array.Float32:
		return floatsToInt64[float32](c, a, b)
	case *array.Float64:
		return floatsToInt64[float64](c, a, b)
	case *array.Boolean:
		for i := 0; i < a.Len(); i++ {
			if a.IsNull(i) {
				b.AppendNull()
			} else if a.Value(i) {
				b.Append(1)
			} else {
				b.Append(0)
			}
		}
		return nil
	case *array.String:
		return stringsToInt64(c, valuer[string](a), b)
	case *array.LargeString:
		return stringsToInt64(c, valuer[string](a), b)
	}
	return c.unsupported(arr)
}

func integersToInt64[T constraints.Integer](c converter, a valuer[T], b *array.Int64Builder) error {
	for i := 0; i < a.Len(); i++ {
		if a.IsNull(i) {
			b.AppendNull()
			continue
		}
		v := a.Value(i)
		if v > 0 && uint64(v) > math.MaxInt64 {
			return c.fail(i, fmt.Errorf("value %d overflows int64", uint64(v)))
		}
		b.Append(int64(v))
	}
	return nil
}

// floatsToInt64 accepts integral values only. NaN, the float encoding of a missing
// value, becomes null.
func floatsToInt64[T constraints.Float](c converter, a valuer[T], b *array.Int64Builder) error {
	for i := 0; i < a.Len(); i++ {
		if a.IsNull(i) {
			b.AppendNull()
			continue
		}
		v := float64(a.Value(i))
		switch {
		case math.IsNaN(v):
			b.AppendNull()
		case math.IsInf(v, 0) || v != math.Trunc(v):
			return c.fail(i, fmt.Errorf("value %v is not an integer", v))
		case v >= math.MaxInt64 || v < math.MinInt64:
			return c.fail(i, fmt.Errorf("value %v overflows int64", v))
		default:
			b.Append(int64(v))
		}
	}
	return nil
}

func stringsToInt64(c converter, a valuer[string], b *array.Int64Builder) error {
	for i := 0; i < a.Len(); i++ {
		s := strings.TrimSpace(a.Value(i))
		if a.IsNull(i) || s == "" {
			b.AppendNull()
			continue
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
				return c.fail(i, err)
			}
			v = int64(f)
		}
		b.Append(v)
	}
	return nil
}

func (c converter) toFloat64(arr arrow.Array, b *array.Float64Builder) error {
	switch a := arr.(type) {
	case *array.Int8:
		return numbersToFloat64[int8](a, b)
	case *array.Int16:
		return numbersToFloat64[int16](a, b)
	case *array.Int32:
		return numbersToFloat64[int32](a, b)
	case *array.Int64:
		return numbersToFloat64[int64](a, b)
	case *array.Uint8:
		return numbersToFloat64[uint8](a, b)
	case *array.Uint16:
		return numbersToFloat64[uint16](a, b)
	case *array.Uint32:
		return numbersToFloat64[uint32](a, b)
	case *array.Uint64:
		return numbersToFloat64[uint64](a, b)
	case *array.Float32:
		return numbersToFloat64[float32](a, b)
	case *array.Boolean:
		for i := 0; i < a.Len(); i++ {
			if a.IsNull(i) {
				b.AppendNull()
			} else if a.Value(i) {
				b.Append(1)
			} else {
				b.Append(0)
			}
		}
		return nil
	case *array.String:
		return stringsToFloat64(c, valuer[string](a), b)
	case *array.LargeString:
		return stringsToFloat64(c, valuer[string](a), b)
	}
	return c.unsupported(arr)
}

func numbersToFloat64[T constraints.Integer | constraints.Float](a valuer[T], b *array.Float64Builder) error {
	for i := 0; i < a.Len(); i++ {
		if a.IsNull(i) {
			b.AppendNull()
			continue
		}
		b.Append(float64(a.Value(i)))
	}
	return nil
}

func stringsToFloat64(c converter, a valuer[string], b *array.Float64Builder) error {
	for i := 0; i < a.Len(); i++ {
		s := strings.TrimSpace(a.Value(i))
		if a.IsNull(i) || s == "" {
			b.AppendNull()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return c.fail(i, err)
		}
		b.Append(v)
	}
	return nil
}

func (c converter) toString(arr arrow.Array, b *array.StringBuilder) error {
	switch a := arr.(type) {
	case *array.LargeString:
		return formatValues[string](a, b, func(s string) string { return s })
	case *array.Binary:
		return formatValues[[]byte](a, b, func(v []byte) string { return string(v) })
	case *array.Int8:
		return formatValues[int8](a, b, func(v int8) string { return strconv.FormatInt(int64(v), 10) })
	case *array.Int16:
		return formatValues[int16](a, b, func(v int16) string { return strconv.FormatInt(int64(v), 10) })
	case *array.Int32:
		return formatValues[int32](a, b, func(v int32) string { return strconv.FormatInt(int64(v), 10) })
	case *array.Int64:
		return formatValues[int64](a, b, func(v int64) string { return strconv.FormatInt(v, 10) })
	case *array.Uint8:
		return formatValues[uint8](a, b, func(v uint8) string { return strconv.FormatUint(uint64(v), 10) })
	case *array.Uint16:
		return formatValues[uint16](a, b, func(v uint16) string { return strconv.FormatUint(uint64(v), 10) })
	case *array.Uint32:
		return formatValues[uint32](a, b, func(v uint32) string { return strconv.FormatUint(uint64(v), 10) })
	case *array.Uint64:
		return formatValues[uint64](a, b, func(v uint64) string { return strconv.FormatUint(v, 10) })
	case *array.Float32:
		return formatValues[float32](a, b, func(v float32) string { return strconv.FormatFloat(float64(v), 'f', -1, 32) })
	case *array.Float64:
		return formatValues[float64](a, b, func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) })
	case *array.Boolean:
		return formatValues[bool](a, b, strconv.FormatBool)
	}
	return c.unsupported(arr)
}

func formatValues[T any](a valuer[T], b *array.StringBuilder, format func(T) string) error {
	for i := 0; i < a.Len(); i++ {
		if a.IsNull(i) {
			b.AppendNull()
			continue
		}
		b.Append(format(a.Value(i)))
	}
	return nil
}

func (c converter) toTimestamp(arr arrow.Array, b *array.TimestampBuilder) error {
	switch a := arr.(type) {
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		for i := 0; i < a.Len(); i++ {
			if a.IsNull(i) {
				b.AppendNull()
				continue
			}
			b.Append(arrow.Timestamp(toMicros(int64(a.Value(i)), unit)))
		}
		return nil
	case *array.Date32:
		for i := 0; i < a.Len(); i++ {
			if a.IsNull(i) {
				b.AppendNull()
				continue
			}
			b.Append(arrow.Timestamp(int64(a.Value(i)) * 86400 * 1e6))
		}
		return nil
	case *array.Date64:
		for i := 0; i < a.Len(); i++ {
			if a.IsNull(i) {
				b.AppendNull()
				continue
			}
			b.Append(arrow.Timestamp(int64(a.Value(i)) * 1e3))
		}
		return nil
	case *array.String:
		return c.stringsToTimestamp(a, b)
	case *array.LargeString:
		return c.stringsToTimestamp(a, b)
	}
	return c.unsupported(arr)
}

func (c converter) stringsToTimestamp(a valuer[string], b *array.TimestampBuilder) error {
	for i := 0; i < a.Len(); i++ {
		s := strings.TrimSpace(a.Value(i))
		if a.IsNull(i) || s == "" {
			b.AppendNull()
			continue
		}
		t, err := ParseTime(s)
		if err != nil {
			return c.fail(i, err)
		}
		b.Append(arrow.Timestamp(t.UnixMicro()))
	}
	return nil
}

// ParseTime parses the date-time forms accepted for Timestamp columns.
// Values without an offset are read as UTC wall-clock time.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date-time %q", s)
}

// toMicros rescales a timestamp value from unit to microseconds.
func toMicros(v int64, unit arrow.TimeUnit) int64 {
	switch unit {
	case arrow.Second:
		return v * 1e6
	case arrow.Millisecond:
		return v * 1e3
	case arrow.Nanosecond:
		return v / 1e3
	}
	return v
}
