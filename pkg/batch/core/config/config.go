// Package config provides the configuration structures shared by the ingestion commands
// and the defaults they start from.
package config

// EmbeddedConfig holds the content of a command's embedded application.yaml.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelSilent LogLevel = "SILENT"
)

// Materialization types understood by the fetcher command.
const (
	MaterializeDatabase = "database"
	MaterializeParquet  = "parquet"
	MaterializeNone     = "none"
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds process-wide settings.
type SystemConfig struct {
	// Timezone is the location used to stamp extracted_at (e.g., "UTC", "America/New_York").
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// LoaderConfig holds settings of the Zone/Trip Loader job.
type LoaderConfig struct {
	DBRef     string `yaml:"db_ref"`     // DBRef names the entry under taxi.database to load into.
	ZoneFile  string `yaml:"zone_file"`  // ZoneFile is the CSV lookup file.
	TripFile  string `yaml:"trip_file"`  // TripFile is the Parquet trip-data file.
	ZoneTable string `yaml:"zone_table"` // ZoneTable is the destination of the lookup file.
	TripTable string `yaml:"trip_table"` // TripTable is the destination of the trip file.
	// ChunkSize is the number of CSV rows read and inserted per chunk.
	ChunkSize int `yaml:"chunk_size"`
	// InsertBatchSize caps rows per INSERT statement so bind parameters stay under driver limits.
	InsertBatchSize int `yaml:"insert_batch_size"`
}

// FetcherConfig holds settings of the Monthly Trip Fetcher job.
type FetcherConfig struct {
	BaseURL          string   `yaml:"base_url"`
	TimeoutSeconds   int      `yaml:"timeout_seconds"`
	DefaultTaxiTypes []string `yaml:"default_taxi_types"`
}

// MaterializationConfig selects where the fetcher's combined table is persisted.
type MaterializationConfig struct {
	Type            string `yaml:"type"`              // database, parquet or none.
	DBRef           string `yaml:"db_ref"`            // Database entry for the database type.
	Table           string `yaml:"table"`             // Destination table for the database type.
	InsertBatchSize int    `yaml:"insert_batch_size"` // Rows per INSERT statement.
	StorageRef      string `yaml:"storage_ref"`       // Storage entry for the parquet type.
	OutputBaseDir   string `yaml:"output_base_dir"`   // Object prefix for the parquet type.
	CompressionType string `yaml:"compression_type"`  // SNAPPY, GZIP or NONE.
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// PushgatewayURL enables pushing job metrics when not empty.
	PushgatewayURL string `yaml:"pushgateway_url"`
}

// TaxiConfig holds all configuration under the "taxi" top-level key.
type TaxiConfig struct {
	System          SystemConfig          `yaml:"system"`
	Loader          LoaderConfig          `yaml:"loader"`
	Fetcher         FetcherConfig         `yaml:"fetcher"`
	Materialization MaterializationConfig `yaml:"materialization"`
	Metrics         MetricsConfig         `yaml:"metrics"`
	// AdapterConfigs holds raw database connection settings keyed by connection name.
	// They are decoded into dbconfig.DatabaseConfig by the database provider.
	AdapterConfigs map[string]interface{} `yaml:"database"`
	// StorageConfigs holds raw storage connection settings keyed by connection name.
	StorageConfigs map[string]interface{} `yaml:"storage"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Taxi TaxiConfig `yaml:"taxi"`
}

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	return &Config{
		Taxi: TaxiConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: string(LogLevelInfo)},
			},
			Loader: LoaderConfig{
				DBRef:           "green_taxi",
				ZoneFile:        "data/taxi_zone_lookup.csv",
				TripFile:        "data/green_tripdata_2025-11.parquet",
				ZoneTable:       "taxi_zone",
				TripTable:       "tripdata",
				ChunkSize:       100000,
				InsertBatchSize: 1000,
			},
			Fetcher: FetcherConfig{
				BaseURL:          "https://d37ci6vzurychx.cloudfront.net/trip-data/",
				TimeoutSeconds:   300,
				DefaultTaxiTypes: []string{"yellow"},
			},
			Materialization: MaterializationConfig{
				Type:            MaterializeNone,
				DBRef:           "warehouse",
				Table:           "trips",
				InsertBatchSize: 1000,
				StorageRef:      "local",
				OutputBaseDir:   "ingestion/trips",
				CompressionType: "SNAPPY",
			},
			AdapterConfigs: map[string]interface{}{
				"green_taxi": map[string]interface{}{
					"type":     "postgres",
					"host":     "localhost",
					"port":     5432,
					"database": "green_taxi",
					"user":     "root",
					"password": "root",
					"sslmode":  "disable",
				},
			},
			StorageConfigs: map[string]interface{}{
				"local": map[string]interface{}{
					"type":     "local",
					"base_dir": "output",
				},
			},
		},
	}
}
