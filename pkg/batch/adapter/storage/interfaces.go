// Package storage defines the common interfaces for object storage adapters.
// Writers address objects by bucket and object name; each adapter maps that onto its
// backend (a directory tree for "local", a GCS bucket for "gcs").
package storage

import (
	"context"
	"io"
)

// StorageExecutor defines generic storage operations.
type StorageExecutor interface {
	// Upload uploads data to the specified bucket and object name.
	// 'data' is the stream of data to upload. 'contentType' is the MIME type of the data.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download downloads data from the specified bucket and object name.
	// It returns a ReadCloser which must be closed by the caller after use.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects lists objects within the specified bucket and prefix.
	// The 'fn' callback function is called for each object name found.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject deletes the specified object from the bucket.
	DeleteObject(ctx context.Context, bucket, objectName string) error
}

// StorageConnection represents a named data storage connection.
type StorageConnection interface {
	StorageExecutor

	// Name returns the configuration name the connection was opened from.
	Name() string
	// Type returns the storage type (e.g., "local", "gcs").
	Type() string
	// Close releases any client held by the connection.
	Close() error
}

// StorageProvider manages the acquisition and lifecycle of data storage connections.
type StorageProvider interface {
	// GetConnection retrieves a StorageConnection with the specified name, opening it on first use.
	GetConnection(ctx context.Context, name string) (StorageConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
}
