// Package postgres registers the PostgreSQL dialector with the GORM adapter.
package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/taxiflow/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/taxiflow/pkg/batch/adapter/database/gorm"
)

// init registers the PostgreSQL dialector factory with the GORM adapter.
// This function is automatically called when the package is imported.
func init() {
	gormadapter.RegisterDialector("postgres", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Host == "" || cfg.Database == "" {
			return nil, fmt.Errorf("postgres connection requires host and database")
		}
		return postgres.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString generates the DSN (Data Source Name) for PostgreSQL connections.
//
// Parameters:
//
//	c: The `dbconfig.DatabaseConfig` containing connection details.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	// Adjust to the DSN format expected by GORM (gorm.io/driver/postgres)
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslmode)
	if c.Schema != "" {
		dsn += " search_path=" + c.Schema
	}
	return dsn
}
