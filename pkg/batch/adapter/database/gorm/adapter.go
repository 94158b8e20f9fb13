// Package gorm implements the database adapter on top of GORM.
package gorm

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/tigerroll/taxiflow/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/taxiflow/pkg/batch/adapter/database/config"
	config "github.com/tigerroll/taxiflow/pkg/batch/core/config"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/logger"
)

// GormDBAdapter is a database.DBConnection backed by a *gorm.DB.
type GormDBAdapter struct {
	db     *gorm.DB
	cfg    dbconfig.DatabaseConfig
	dbName string
}

// NewGormDBAdapter wraps an opened *gorm.DB.
func NewGormDBAdapter(db *gorm.DB, cfg dbconfig.DatabaseConfig, name string) *GormDBAdapter {
	return &GormDBAdapter{db: db, cfg: cfg, dbName: name}
}

// Name implements database.DBConnection.
func (a *GormDBAdapter) Name() string { return a.dbName }

// Type implements database.DBConnection.
func (a *GormDBAdapter) Type() string { return a.cfg.Type }

// Config implements database.DBConnection.
func (a *GormDBAdapter) Config() dbconfig.DatabaseConfig { return a.cfg }

// GormDB implements database.DBConnection.
func (a *GormDBAdapter) GormDB() *gorm.DB { return a.db }

// Close implements database.DBConnection.
func (a *GormDBAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB for '%s': %w", a.dbName, err)
	}
	return sqlDB.Close()
}

var _ database.DBConnection = (*GormDBAdapter)(nil)

// NewGormLogger creates a gorm.Logger instance based on the configured log level.
// SQL statements are only traced at DEBUG; INFO keeps GORM to warnings and errors.
func NewGormLogger(level string) gorm_logger.Interface {
	var gormLevel gorm_logger.LogLevel
	switch config.LogLevel(strings.ToUpper(level)) {
	case config.LogLevelSilent:
		gormLevel = gorm_logger.Silent
	case config.LogLevelError:
		gormLevel = gorm_logger.Error
	case config.LogLevelWarn, config.LogLevelInfo:
		gormLevel = gorm_logger.Warn
	case config.LogLevelDebug:
		gormLevel = gorm_logger.Info
	default:
		gormLevel = gorm_logger.Silent
	}

	return gorm_logger.New(
		NewGormWriter(),
		gorm_logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// GormWriter redirects GORM log output to the batch logger.
type GormWriter struct{}

// NewGormWriter creates a new instance of GormWriter.
func NewGormWriter() *GormWriter {
	return &GormWriter{}
}

// Printf implements gorm_logger.Writer.
func (w *GormWriter) Printf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	if isStatementTrace(msg) {
		logger.Debugf("[GORM] %s", msg)
		return
	}
	// Other GORM logs (slow queries, errors) are surfaced as warnings.
	logger.Warnf("[GORM] %s", msg)
}

// isStatementTrace reports whether msg is GORM's "[<duration>ms] [rows:n] SQL" trace line.
func isStatementTrace(msg string) bool {
	if !strings.Contains(msg, "[rows:") {
		return false
	}
	upper := strings.ToUpper(msg)
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE", "CREATE", "DROP"} {
		if strings.Contains(upper, verb) {
			return true
		}
	}
	return false
}
