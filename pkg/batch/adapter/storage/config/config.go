package config

import (
	"fmt"

	"github.com/tigerroll/taxiflow/pkg/batch/support/util/configbinder"
)

// StorageConfig holds configuration for a single storage connection.
type StorageConfig struct {
	Type            string `yaml:"type" mapstructure:"type"`                         // Type of storage ("local" or "gcs").
	BucketName      string `yaml:"bucket_name" mapstructure:"bucket_name"`           // Default bucket name for operations.
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"` // Path to credentials file (e.g., service account key for GCS).
	BaseDir         string `yaml:"base_dir" mapstructure:"base_dir"`                 // Base directory for local file system operations.
}

// Decode converts a raw configuration entry, as found under taxi.storage, into a StorageConfig.
func Decode(raw interface{}) (StorageConfig, error) {
	var cfg StorageConfig
	if err := configbinder.Bind(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode storage config: %w", err)
	}
	if cfg.Type == "" {
		return cfg, fmt.Errorf("storage config has no type")
	}
	return cfg, nil
}
