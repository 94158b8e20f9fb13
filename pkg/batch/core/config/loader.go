package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/taxiflow/pkg/batch/support/util/exception"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/logger"
)

const moduleName = "config"

// EnvPrefix prefixes every environment variable that overrides a configuration value.
const EnvPrefix = "TAXI_"

// LoadConfig builds the configuration for a command.
//
// Values are layered in this order, later layers winning:
// defaults from NewConfig, each YAML source in the order given, then TAXI_* environment
// variables (after loading the .env file at envFilePath, if present).
// The global log level is set from the result.
//
// Parameters:
//
//	envFilePath: The path to the .env file. Empty means ".env" in the working directory.
//	sources: Raw YAML documents, typically the embedded application.yaml followed by a user file.
//
// Returns:
//
//	A pointer to the loaded Config and an error if loading or validation fails.
func LoadConfig(envFilePath string, sources ...[]byte) (*Config, error) {
	if envFilePath == "" {
		envFilePath = ".env"
	}
	if err := godotenv.Load(envFilePath); err != nil {
		logger.Debugf(".env file (%s) not loaded: %v", envFilePath, err)
	}

	cfg := NewConfig()
	for i, src := range sources {
		if err := cfg.MergeYAML(src); err != nil {
			return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to unmarshal config source #%d", i), err, false)
		}
	}

	if err := loadStructFromEnv(reflect.ValueOf(&cfg.Taxi).Elem(), EnvPrefix); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Taxi.System.Logging.Level)
	logger.Debugf("Log level set to: %s", cfg.Taxi.System.Logging.Level)
	return cfg, nil
}

// MergeYAML decodes a YAML document over the current values.
// Scalars and lists present in the document replace the current ones; named database and
// storage entries are merged field by field so a document may override only a password.
func (c *Config) MergeYAML(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	prevAdapters := c.Taxi.AdapterConfigs
	prevStorage := c.Taxi.StorageConfigs
	c.Taxi.AdapterConfigs = nil
	c.Taxi.StorageConfigs = nil

	err := yaml.Unmarshal(data, c)

	c.Taxi.AdapterConfigs = mergeRawConfigs(c.Taxi.AdapterConfigs, prevAdapters)
	c.Taxi.StorageConfigs = mergeRawConfigs(c.Taxi.StorageConfigs, prevStorage)
	return err
}

// Validate reports settings no job can run with.
func (c *Config) Validate() error {
	if c.Taxi.Loader.ChunkSize < 1 {
		return exception.NewBatchError(moduleName, fmt.Sprintf("loader.chunk_size must be >= 1, got %d", c.Taxi.Loader.ChunkSize), nil, false)
	}
	if c.Taxi.Loader.InsertBatchSize < 1 || c.Taxi.Materialization.InsertBatchSize < 1 {
		return exception.NewBatchError(moduleName, "insert_batch_size must be >= 1", nil, false)
	}
	if c.Taxi.Fetcher.TimeoutSeconds < 1 {
		return exception.NewBatchError(moduleName, fmt.Sprintf("fetcher.timeout_seconds must be >= 1, got %d", c.Taxi.Fetcher.TimeoutSeconds), nil, false)
	}
	switch c.Taxi.Materialization.Type {
	case MaterializeDatabase, MaterializeParquet, MaterializeNone:
	default:
		return exception.NewBatchError(moduleName, fmt.Sprintf("unknown materialization.type %q", c.Taxi.Materialization.Type), nil, false)
	}
	return nil
}

// mergeRawConfigs fills entries and fields missing from dst with those of prev.
func mergeRawConfigs(dst, prev map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = make(map[string]interface{}, len(prev))
	}
	for name, prevValue := range prev {
		cur, ok := dst[name]
		if !ok {
			dst[name] = prevValue
			continue
		}
		curMap, curOK := cur.(map[string]interface{})
		prevMap, prevOK := prevValue.(map[string]interface{})
		if !curOK || !prevOK {
			continue
		}
		for k, v := range prevMap {
			if _, exists := curMap[k]; !exists {
				curMap[k] = v
			}
		}
	}
	return dst
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// It uses the "yaml" tag to determine the environment variable name,
// e.g. TAXI_LOADER_CHUNK_SIZE for Taxi.Loader.ChunkSize.
//
// Parameters:
//
//	val: The reflect.Value of the struct to populate.
//	prefix: The prefix for environment variable names (e.g., "TAXI_LOADER_").
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		switch field.Kind() {
		case reflect.Struct:
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		case reflect.Map:
			if field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.Interface {
				loadRawMapFromEnv(field, envVarName+"_")
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadRawMapFromEnv overrides fields of named raw entries from environment variables.
// Only entries already present are considered, since an entry name may itself contain
// underscores: for an entry "green_taxi", TAXI_DATABASE_GREEN_TAXI_HOST sets its "host".
//
// Parameters:
//
//	mapField: The reflect.Value of a map[string]interface{} field.
//	prefix: The environment variable prefix for this map (e.g., "TAXI_DATABASE_").
func loadRawMapFromEnv(mapField reflect.Value, prefix string) {
	if mapField.IsNil() {
		return
	}
	raw, ok := mapField.Interface().(map[string]interface{})
	if !ok {
		return
	}
	for name, entry := range raw {
		entryMap, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		entryPrefix := prefix + strings.ToUpper(name) + "_"
		for _, env := range os.Environ() {
			if !strings.HasPrefix(env, entryPrefix) {
				continue
			}
			parts := strings.SplitN(strings.TrimPrefix(env, entryPrefix), "=", 2)
			if len(parts) != 2 || parts[0] == "" {
				continue
			}
			entryMap[strings.ToLower(parts[0])] = parts[1]
		}
	}
}

// setField sets the value of a reflect.Value field based on its kind.
// It handles string, int, float, bool and comma-separated string list types.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))
	}
	return nil
}
