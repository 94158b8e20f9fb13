// Package sqlite registers the SQLite dialector with the GORM adapter.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/taxiflow/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/taxiflow/pkg/batch/adapter/database/gorm"
)

// init registers the SQLite dialector factory with the GORM adapter.
// This function is automatically called when the package is imported.
func init() {
	gormadapter.RegisterDialector("sqlite", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" { // Ensure database path is provided.
			return nil, errors.New("SQLite database path cannot be empty")
		}
		// GORM SQLite Dialector expects the file path directly
		return sqlite.Open(cfg.Database), nil
	})
}
