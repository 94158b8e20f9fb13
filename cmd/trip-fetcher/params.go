package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tigerroll/taxiflow/internal/fetcher"
	config "github.com/tigerroll/taxiflow/pkg/batch/core/config"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/exception"
)

// Environment variables set by the pipeline runner.
const (
	EnvStartDate = "BRUIN_START_DATE"
	EnvEndDate   = "BRUIN_END_DATE"
	EnvVars      = "BRUIN_VARS"
)

const dateLayout = "2006-01-02"

// pipelineVars is the part of BRUIN_VARS the fetcher reads.
type pipelineVars struct {
	TaxiTypes []string `json:"taxi_types"`
}

// fetchConfigFromEnv builds the fetch parameters from the pipeline environment.
// Both dates are required; taxi types fall back to cfg.DefaultTaxiTypes when BRUIN_VARS
// is unset or has no taxi_types.
func fetchConfigFromEnv(getenv func(string) string, cfg config.FetcherConfig) (fetcher.Config, error) {
	start, err := parseDate(getenv, EnvStartDate)
	if err != nil {
		return fetcher.Config{}, err
	}
	end, err := parseDate(getenv, EnvEndDate)
	if err != nil {
		return fetcher.Config{}, err
	}

	var vars pipelineVars
	if raw := getenv(EnvVars); raw != "" {
		if err := json.Unmarshal([]byte(raw), &vars); err != nil {
			return fetcher.Config{}, exception.NewBatchError(fetcher.JobName, fmt.Sprintf("%s is not a valid JSON object", EnvVars), err, false)
		}
	}
	types := vars.TaxiTypes
	if types == nil {
		types = append([]string(nil), cfg.DefaultTaxiTypes...)
	}

	return fetcher.Config{
		Start:     start,
		End:       end,
		TaxiTypes: types,
		BaseURL:   cfg.BaseURL,
		Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
	}, nil
}

func parseDate(getenv func(string) string, key string) (time.Time, error) {
	raw := getenv(key)
	if raw == "" {
		return time.Time{}, exception.NewBatchErrorf(fetcher.JobName, "%s is not set", key)
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, exception.NewBatchError(fetcher.JobName, fmt.Sprintf("%s must be YYYY-MM-DD, got %q", key, raw), err, false)
	}
	return t, nil
}
