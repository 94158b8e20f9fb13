package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/taxiflow/pkg/batch/adapter/storage"
	"github.com/tigerroll/taxiflow/pkg/batch/core/application/port"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/logger"
)

// ParquetWriterConfig holds the configuration for ParquetWriter.
type ParquetWriterConfig struct {
	// StorageRef is the name of the storage connection to use (e.g., "local", "gcs").
	StorageRef string `mapstructure:"storageRef"`
	// Bucket is passed to the storage connection. Empty selects the connection's default bucket.
	Bucket string `mapstructure:"bucket"`
	// OutputBaseDir is the object prefix for exported files (e.g., "ingestion/trips").
	OutputBaseDir string `mapstructure:"outputBaseDir"`
	// CompressionType is the compression type for Parquet files (e.g., "SNAPPY", "GZIP", "NONE").
	CompressionType string `mapstructure:"compressionType"`
}

// ParquetWriter implements the port.ItemWriter interface for writing structured data to Parquet files.
// Items are buffered per partition key and written as one file per partition on Close.
// T must carry xitongsys/parquet-go "parquet" struct tags.
type ParquetWriter[T any] struct {
	name     string
	config   *ParquetWriterConfig
	provider storage.StorageProvider
	// itemPrototype is a pointer to a zero-value instance of the item type, used for Parquet schema reflection.
	itemPrototype *T
	// partitionKeyFunc extracts the partition key (e.g., "month=2025-01") from an item. Nil puts every item in one file.
	partitionKeyFunc func(T) (string, error)

	storageConn          storage.StorageConnection
	bufferedItems        map[string][]T
	totalRecordsBuffered int64
	objects              []string
}

// NewParquetWriter creates a new instance of ParquetWriter.
//
// Parameters:
//
//	name: The unique name of the writer.
//	properties: Configuration properties for the writer, decoded into ParquetWriterConfig.
//	provider: Provider of the storage connection named by storageRef.
//	itemPrototype: A prototype instance of the item type for schema reflection.
//	partitionKeyFunc: A function to extract the partition key from an item. May be nil.
//
// Returns:
//
//	A *ParquetWriter and an error if the properties are invalid.
func NewParquetWriter[T any](
	name string,
	properties map[string]interface{},
	provider storage.StorageProvider,
	itemPrototype *T,
	partitionKeyFunc func(T) (string, error),
) (*ParquetWriter[T], error) {
	var config ParquetWriterConfig
	if err := configbinder.Bind(properties, &config); err != nil {
		return nil, exception.NewBatchError("writer", fmt.Sprintf("failed to decode ParquetWriter properties for '%s'", name), err, false)
	}

	if config.StorageRef == "" {
		return nil, exception.NewBatchErrorf("writer", "ParquetWriter '%s' requires 'storageRef' property", name)
	}
	if config.OutputBaseDir == "" {
		return nil, exception.NewBatchErrorf("writer", "ParquetWriter '%s' requires 'outputBaseDir' property", name)
	}

	if config.CompressionType == "" {
		config.CompressionType = "SNAPPY"
	}
	if _, err := getCompressionCodec(config.CompressionType); err != nil {
		return nil, exception.NewBatchError("writer", fmt.Sprintf("invalid compression type for ParquetWriter '%s'", name), err, false)
	}
	if partitionKeyFunc == nil {
		partitionKeyFunc = func(T) (string, error) { return "", nil }
	}

	return &ParquetWriter[T]{
		name:             name,
		config:           &config,
		provider:         provider,
		itemPrototype:    itemPrototype,
		partitionKeyFunc: partitionKeyFunc,
		bufferedItems:    make(map[string][]T),
	}, nil
}

// Verify that [ParquetWriter] satisfies the [port.ItemWriter] interface at compile time.
var _ port.ItemWriter[struct{}] = (*ParquetWriter[struct{}])(nil)

// Open resolves the storage connection and clears internal buffers.
func (w *ParquetWriter[T]) Open(ctx context.Context) error {
	conn, err := w.provider.GetConnection(ctx, w.config.StorageRef)
	if err != nil {
		return exception.NewBatchError("writer",
			fmt.Sprintf("failed to resolve storage connection '%s' for ParquetWriter '%s'", w.config.StorageRef, w.name), err, false)
	}
	w.storageConn = conn
	w.bufferedItems = make(map[string][]T)
	w.totalRecordsBuffered = 0
	w.objects = nil

	logger.Infof("ParquetWriter '%s' opened. Target storage: %s, base directory: %s", w.name, w.config.StorageRef, w.config.OutputBaseDir)
	return nil
}

// Write accumulates items into the per-partition buffers.
// No Parquet encoding or upload happens until Close.
func (w *ParquetWriter[T]) Write(ctx context.Context, items []T) error {
	for _, item := range items {
		partitionKey, err := w.partitionKeyFunc(item)
		if err != nil {
			return exception.NewBatchError("writer",
				fmt.Sprintf("failed to get partition key for item in ParquetWriter '%s'", w.name), err, false)
		}
		w.bufferedItems[partitionKey] = append(w.bufferedItems[partitionKey], item)
		w.totalRecordsBuffered++
	}
	logger.Debugf("ParquetWriter '%s' buffered %d items. Total buffered: %d.", w.name, len(items), w.totalRecordsBuffered)
	return nil
}

// Close encodes every buffered partition to Parquet and uploads it, in partition key order.
// A failing partition does not stop the others; all failures are returned together.
// The storage connection belongs to the provider and is not closed here.
func (w *ParquetWriter[T]) Close(ctx context.Context) error {
	if w.totalRecordsBuffered == 0 {
		logger.Infof("ParquetWriter '%s': no records buffered, skipping Parquet file generation.", w.name)
		return nil
	}
	if w.storageConn == nil {
		return exception.NewBatchErrorf("writer", "ParquetWriter '%s': Close called before Open", w.name)
	}

	compressionCodec, _ := getCompressionCodec(w.config.CompressionType)

	keys := make([]string, 0, len(w.bufferedItems))
	for k := range w.bufferedItems {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var multiErr error
	for _, partitionKey := range keys {
		items := w.bufferedItems[partitionKey]
		buf, err := w.encode(items, compressionCodec)
		if err != nil {
			multiErr = multierror.Append(multiErr, exception.NewBatchError("writer",
				fmt.Sprintf("failed to encode partition '%s' in ParquetWriter '%s'", partitionKey, w.name), err, false))
			continue
		}

		fileName := fmt.Sprintf("data_%s_%s.parquet", time.Now().UTC().Format("20060102150405"), uuid.NewString())
		objectName := path.Join(w.config.OutputBaseDir, partitionKey, fileName)

		logger.Debugf("ParquetWriter '%s': uploading %d bytes to %s/%s", w.name, buf.Len(), w.config.StorageRef, objectName)
		if err := w.storageConn.Upload(ctx, w.config.Bucket, objectName, buf, "application/octet-stream"); err != nil {
			multiErr = multierror.Append(multiErr, exception.NewBatchError("writer",
				fmt.Sprintf("failed to upload partition '%s' to '%s' in ParquetWriter '%s'", partitionKey, objectName, w.name), err, false))
			continue
		}
		w.objects = append(w.objects, objectName)
		logger.Infof("ParquetWriter '%s': uploaded %d records to %s", w.name, len(items), objectName)
	}

	w.bufferedItems = make(map[string][]T)
	w.totalRecordsBuffered = 0
	return multiErr
}

// encode writes items as a single row group.
func (w *ParquetWriter[T]) encode(items []T, codec parquet.CompressionCodec) (buf *bytes.Buffer, err error) {
	buf = new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, w.itemPrototype, 1)
	if err != nil {
		return nil, err
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = codec

	for _, item := range items {
		if err := pw.Write(item); err != nil {
			return nil, err
		}
	}

	// parquet-go panics on some schema mismatches during flush.
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, fmt.Errorf("parquet writer panicked during WriteStop: %v", r)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	return buf, nil
}

// Objects returns the object names uploaded by the last Close, in partition key order.
func (w *ParquetWriter[T]) Objects() []string {
	return append([]string(nil), w.objects...)
}

// getCompressionCodec returns the Parquet compression codec from a string.
func getCompressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}
