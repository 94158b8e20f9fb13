package config

import (
	"fmt"

	"github.com/tigerroll/taxiflow/pkg/batch/support/util/configbinder"
)

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes" mapstructure:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Type is the database type (e.g., "postgres", "mysql", "sqlite").
	Type string `yaml:"type" mapstructure:"type"`
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
	// Database is the database name, or the file path for SQLite.
	Database string `yaml:"database" mapstructure:"database"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	// Schema is the PostgreSQL search_path.
	Schema  string `yaml:"schema,omitempty" mapstructure:"schema"`
	Sslmode string `yaml:"sslmode" mapstructure:"sslmode"`
	// Params holds extra DSN parameters for MySQL.
	Params string     `yaml:"params,omitempty" mapstructure:"params"`
	Pool   PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// Decode converts a raw configuration entry, as found under taxi.database, into a DatabaseConfig.
// Values are weakly typed so ports and pool sizes given as strings by environment overrides decode cleanly.
func Decode(raw interface{}) (DatabaseConfig, error) {
	var cfg DatabaseConfig
	if err := configbinder.Bind(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode database config: %w", err)
	}
	if cfg.Type == "" {
		return cfg, fmt.Errorf("database config has no type")
	}
	return cfg, nil
}
