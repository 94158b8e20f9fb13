// Package port declares the step contracts the ingestion jobs are assembled from.
package port

import "context"

// ChunkReader is the interface for a chunked data reading step.
// T is the type of item to be read.
type ChunkReader[T any] interface {
	// ReadChunk reads the next chunk of items. It returns io.EOF once no items remain.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//
	// Returns:
	//   []T: The items read, never empty when err is nil.
	//   error: io.EOF at the end of input, or the read failure.
	ReadChunk(ctx context.Context) ([]T, error)
	// Close releases the resources held by the reader.
	Close() error
}

// ItemWriter is the interface for a data writing step.
// T is the type of item to be written.
type ItemWriter[T any] interface {
	// Open prepares the destination before the first Write.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//
	// Returns:
	//   error: An error if opening fails.
	Open(ctx context.Context) error
	// Write persists a list of items.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   items: The items to write.
	//
	// Returns:
	//   error: An error if writing fails.
	Write(ctx context.Context, items []T) error
	// Close flushes buffered items and releases resources.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//
	// Returns:
	//   error: An error if closing fails.
	Close(ctx context.Context) error
}
