// Package database defines the connection abstractions the batch writers depend on.
package database

import (
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/taxiflow/pkg/batch/adapter/database/config"
)

// DBConnection represents an open, named database connection.
type DBConnection interface {
	// Name returns the configuration name the connection was opened from (e.g., "green_taxi").
	Name() string
	// Type returns the database type (e.g., "postgres").
	Type() string
	// Config returns the database configuration associated with this connection.
	Config() dbconfig.DatabaseConfig
	// GormDB returns the GORM session bound to this connection.
	GormDB() *gorm.DB
	// Close releases the underlying connection pool.
	Close() error
}

// DBProvider is responsible for providing database connections based on configuration.
type DBProvider interface {
	// GetConnection retrieves a database connection with the specified name,
	// establishing it on first use.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
}
