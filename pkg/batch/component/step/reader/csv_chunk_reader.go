// Package reader provides the item readers used by the ingestion steps.
package reader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jszwec/csvutil"

	"github.com/tigerroll/taxiflow/pkg/batch/core/application/port"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/logger"
)

// CSVChunkReader decodes a headed CSV stream into values of T, a chunk at a time.
// Columns are matched to T's fields by their `csv` tags; a tagged column missing from
// the header is an error. Empty values decode to nil for pointer fields.
type CSVChunkReader[T any] struct {
	name      string // name identifies the reader in logs and errors.
	dec       *csvutil.Decoder
	closer    io.Closer // closer is the underlying file, if the reader opened it.
	chunkSize int       // chunkSize is the maximum number of rows returned by ReadChunk.
	readCount int       // readCount is the number of rows decoded so far.
	done      bool
}

// NewCSVChunkReader reads the header from r and returns a reader positioned on the first row.
//
// Parameters:
//
//	name: The reader name, used in logs and errors.
//	r: The CSV stream, starting with a header line.
//	chunkSize: The maximum rows per chunk. Must be >= 1.
func NewCSVChunkReader[T any](name string, r io.Reader, chunkSize int) (*CSVChunkReader[T], error) {
	if chunkSize < 1 {
		return nil, exception.NewBatchError("reader", fmt.Sprintf("CSVChunkReader '%s': chunk size must be >= 1, got %d", name, chunkSize), nil, false)
	}
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, exception.NewBatchError("reader", fmt.Sprintf("CSVChunkReader '%s': input has no header line", name), err, false)
		}
		return nil, exception.NewBatchError("reader", fmt.Sprintf("CSVChunkReader '%s': failed to read header", name), err, false)
	}
	dec.DisallowMissingColumns = true

	return &CSVChunkReader[T]{
		name:      name,
		dec:       dec,
		chunkSize: chunkSize,
	}, nil
}

// OpenCSVFile opens path and returns a CSVChunkReader over it. Close releases the file.
func OpenCSVFile[T any](name, path string, chunkSize int) (*CSVChunkReader[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, exception.NewBatchError("reader", fmt.Sprintf("CSVChunkReader '%s': failed to open %s", name, path), err, false)
	}
	r, err := NewCSVChunkReader[T](name, f, chunkSize)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	logger.Debugf("CSVChunkReader '%s': opened %s with columns %v", name, path, r.Header())
	return r, nil
}

// Header returns the column names of the input.
func (r *CSVChunkReader[T]) Header() []string {
	return r.dec.Header()
}

// ReadCount returns the number of rows decoded so far.
func (r *CSVChunkReader[T]) ReadCount() int {
	return r.readCount
}

// ReadChunk decodes up to chunkSize rows. The final chunk may be shorter.
// It returns io.EOF, with no rows, once the input is exhausted.
// A value that cannot be decoded into its field aborts with an error wrapping exception.ErrTypeCoercion.
func (r *CSVChunkReader[T]) ReadChunk(ctx context.Context) ([]T, error) {
	if r.done {
		return nil, io.EOF
	}
	chunk := make([]T, 0, r.chunkSize)
	for len(chunk) < r.chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var item T
		err := r.dec.Decode(&item)
		if errors.Is(err, io.EOF) {
			r.done = true
			break
		}
		if err != nil {
			return nil, r.decodeError(err)
		}
		chunk = append(chunk, item)
		r.readCount++
	}
	if len(chunk) == 0 {
		return nil, io.EOF
	}
	return chunk, nil
}

// decodeError classifies a Decode failure. Anything but malformed CSV is a value that
// does not fit its declared field.
func (r *CSVChunkReader[T]) decodeError(err error) error {
	msg := fmt.Sprintf("CSVChunkReader '%s': failed to decode row %d", r.name, r.readCount)
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return exception.NewBatchError("reader", msg, err, false)
	}
	var typeErr *csvutil.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		msg = fmt.Sprintf("CSVChunkReader '%s': row %d: value %q cannot be converted to %s", r.name, r.readCount, typeErr.Value, typeErr.Type)
	}
	return exception.NewBatchError("reader", msg, errors.Join(exception.ErrTypeCoercion, err), false)
}

// Close releases the underlying file if the reader opened it.
func (r *CSVChunkReader[T]) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Verify that CSVChunkReader satisfies the port.ChunkReader interface at compile time.
var _ port.ChunkReader[struct{}] = (*CSVChunkReader[struct{}])(nil)
