package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/apache/arrow/go/v10/parquet"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/tigerroll/taxiflow/internal/domain/model"
	"github.com/tigerroll/taxiflow/internal/fetcher"
	gormadapter "github.com/tigerroll/taxiflow/pkg/batch/adapter/database/gorm"
	config "github.com/tigerroll/taxiflow/pkg/batch/core/config"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/exception"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestFetchConfigFromEnv(t *testing.T) {
	cfg := config.NewConfig().Taxi.Fetcher

	got, err := fetchConfigFromEnv(env(map[string]string{
		EnvStartDate: "2025-01-15",
		EnvEndDate:   "2025-03-01",
		EnvVars:      `{"taxi_types": ["yellow", "green"], "other": 1}`,
	}), cfg)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), got.Start)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), got.End)
	assert.Equal(t, []string{"yellow", "green"}, got.TaxiTypes)
	assert.Equal(t, "https://d37ci6vzurychx.cloudfront.net/trip-data/", got.BaseURL)
	assert.Equal(t, 300*time.Second, got.Timeout)
}

func TestFetchConfigFromEnv_DefaultTaxiTypes(t *testing.T) {
	cfg := config.NewConfig().Taxi.Fetcher
	for _, vars := range []string{"", "{}", `{"taxi_types": null}`} {
		got, err := fetchConfigFromEnv(env(map[string]string{
			EnvStartDate: "2025-01-01",
			EnvEndDate:   "2025-01-31",
			EnvVars:      vars,
		}), cfg)
		require.NoError(t, err, vars)
		assert.Equal(t, []string{"yellow"}, got.TaxiTypes, vars)
	}

	got, err := fetchConfigFromEnv(env(map[string]string{
		EnvStartDate: "2025-01-01",
		EnvEndDate:   "2025-01-31",
		EnvVars:      `{"taxi_types": []}`,
	}), cfg)
	require.NoError(t, err)
	assert.Empty(t, got.TaxiTypes, "an explicit empty list is kept")
}

func TestFetchConfigFromEnv_Invalid(t *testing.T) {
	cfg := config.NewConfig().Taxi.Fetcher
	cases := map[string]map[string]string{
		"missing start": {EnvEndDate: "2025-01-01"},
		"missing end":   {EnvStartDate: "2025-01-01"},
		"bad date":      {EnvStartDate: "2025/01/01", EnvEndDate: "2025-01-01"},
		"bad vars":      {EnvStartDate: "2025-01-01", EnvEndDate: "2025-01-01", EnvVars: "taxi_types=yellow"},
	}
	for name, vars := range cases {
		_, err := fetchConfigFromEnv(env(vars), cfg)
		assert.Error(t, err, name)
	}
}

func yellowFile(t *testing.T, rows int) []byte {
	t.Helper()
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "VendorID", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "fare_amount", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	for i := 0; i < rows; i++ {
		b.Field(0).(*array.Int32Builder).Append(int32(i + 1))
		b.Field(1).(*array.Float64Builder).Append(12.5)
	}
	rec := b.NewRecord()
	defer rec.Release()
	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	var buf bytes.Buffer
	require.NoError(t, pqarrow.WriteTable(tbl, &buf, 1024, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()))
	return buf.Bytes()
}

func serve(t *testing.T, files map[string][]byte) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// runApp starts the fx application and waits for it to shut itself down.
func runApp(t *testing.T, cfg *config.Config, fetchCfg fetcher.Config) *outcome {
	t.Helper()
	out := &outcome{}
	app := fx.New(appOptions(context.Background(), cfg, fetchCfg, out)...)
	require.NoError(t, app.Err())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, app.Start(ctx))
	select {
	case <-app.Done():
	case <-ctx.Done():
		t.Fatal("fetch did not finish")
	}
	require.NoError(t, app.Stop(ctx))
	return out
}

func TestApp_MaterializesIntoDatabase(t *testing.T) {
	srv := serve(t, map[string][]byte{
		"yellow_tripdata_2025-01.parquet": yellowFile(t, 3),
		"yellow_tripdata_2025-02.parquet": yellowFile(t, 2),
	})
	dbFile := filepath.Join(t.TempDir(), "warehouse.db")

	cfg := config.NewConfig()
	cfg.Taxi.Materialization.Type = config.MaterializeDatabase
	cfg.Taxi.AdapterConfigs["warehouse"] = map[string]interface{}{"type": "sqlite", "database": dbFile}

	out := runApp(t, cfg, fetcher.Config{
		Start:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		TaxiTypes: []string{"yellow"},
		BaseURL:   srv.URL + "/",
		Timeout:   5 * time.Second,
	})
	require.NoError(t, out.err, "the missing March file is skipped")

	dbs := gormadapter.NewProvider(cfg)
	defer dbs.CloseAll()
	conn, err := dbs.GetConnection("warehouse")
	require.NoError(t, err)
	var rows []model.FetchedTripRecord
	require.NoError(t, conn.GormDB().Table("trips").Find(&rows).Error)
	require.Len(t, rows, 5)
	for _, r := range rows {
		assert.Equal(t, "yellow", r.TaxiType)
		require.NotNil(t, r.FareAmount)
		assert.Equal(t, 12.5, *r.FareAmount)
	}
}

func TestApp_NoDataFetched(t *testing.T) {
	srv := serve(t, nil)

	out := runApp(t, config.NewConfig(), fetcher.Config{
		Start:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		TaxiTypes: []string{"yellow", "green"},
		BaseURL:   srv.URL + "/",
		Timeout:   5 * time.Second,
	})
	require.Error(t, out.err)
	assert.True(t, errors.Is(out.err, exception.ErrNoDataFetched), out.err)
}

func TestApp_PushesMetrics(t *testing.T) {
	srv := serve(t, map[string][]byte{"green_tripdata_2025-06.parquet": yellowFile(t, 1)})

	var (
		mu     sync.Mutex
		pushes []string
	)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		pushes = append(pushes, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	cfg := config.NewConfig()
	cfg.Taxi.Metrics.PushgatewayURL = gateway.URL

	out := runApp(t, cfg, fetcher.Config{
		Start:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		TaxiTypes: []string{"green"},
		BaseURL:   srv.URL + "/",
		Timeout:   5 * time.Second,
	})
	require.NoError(t, out.err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"PUT /metrics/job/trip-fetcher"}, pushes)
}
