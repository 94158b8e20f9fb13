package loader_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/apache/arrow/go/v10/parquet"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/tigerroll/taxiflow/internal/domain/model"
	"github.com/tigerroll/taxiflow/internal/loader"
	config "github.com/tigerroll/taxiflow/pkg/batch/core/config"
	"github.com/tigerroll/taxiflow/pkg/batch/core/frame"
	"github.com/tigerroll/taxiflow/pkg/batch/support/util/exception"
)

var pickupBase = time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gorm_logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// writeZones writes a lookup file with n rows; every fourth row has an empty Borough.
func writeZones(t *testing.T, dir string, n int) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("\"LocationID\",\"Borough\",\"Zone\",\"service_zone\"\n")
	for i := 1; i <= n; i++ {
		borough := "Manhattan"
		if i%4 == 0 {
			borough = ""
		}
		fmt.Fprintf(&sb, "%d,%q,\"Zone %d\",\"Yellow Zone\"\n", i, borough, i)
	}
	path := filepath.Join(dir, "taxi_zone_lookup.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

// writeTrips writes a trip file with n rows laid out like a published green taxi file.
// Columns named in skip are left out.
func writeTrips(t *testing.T, dir string, n int, skip ...string) string {
	t.Helper()
	mem := memory.NewGoAllocator()
	omit := map[string]bool{}
	for _, s := range skip {
		omit[s] = true
	}

	var fields []arrow.Field
	for _, c := range model.TripColumns {
		if omit[c.Name] {
			continue
		}
		var dt arrow.DataType
		switch c.Kind {
		case frame.Int64:
			dt = arrow.PrimitiveTypes.Int32
		case frame.Float64:
			dt = arrow.PrimitiveTypes.Float64
		case frame.String:
			dt = arrow.BinaryTypes.String
		case frame.Timestamp:
			dt = &arrow.TimestampType{Unit: arrow.Microsecond}
		}
		fields = append(fields, arrow.Field{Name: c.Name, Type: dt, Nullable: true})
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	for i := 0; i < n; i++ {
		for fi, f := range fields {
			switch fb := b.Field(fi).(type) {
			case *array.Int32Builder:
				fb.Append(int32(i + 1))
			case *array.Float64Builder:
				if f.Name == "ehail_fee" {
					fb.AppendNull()
				} else {
					fb.Append(float64(i) + 0.5)
				}
			case *array.StringBuilder:
				fb.Append("N")
			case *array.TimestampBuilder:
				fb.Append(arrow.Timestamp(pickupBase.Add(time.Duration(i) * time.Minute).UnixMicro()))
			}
		}
	}
	rec := b.NewRecord()
	defer rec.Release()
	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	path := filepath.Join(dir, "green_tripdata_2025-11.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, pqarrow.WriteTable(tbl, f, 1024, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()))
	return path
}

func loaderConfig(zoneFile, tripFile string, chunkSize int) config.LoaderConfig {
	cfg := config.NewConfig().Taxi.Loader
	cfg.ZoneFile = zoneFile
	cfg.TripFile = tripFile
	cfg.ChunkSize = chunkSize
	cfg.InsertBatchSize = 2
	return cfg
}

func readZones(t *testing.T, db *gorm.DB) []model.ZoneRecord {
	t.Helper()
	var zones []model.ZoneRecord
	require.NoError(t, db.Table("taxi_zone").Order(`"index"`).Find(&zones).Error)
	return zones
}

func TestJob_Run(t *testing.T) {
	dir := t.TempDir()
	db := openDB(t)
	job, err := loader.NewJob(db, loaderConfig(writeZones(t, dir, 7), writeTrips(t, dir, 5), 3), nil)
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))

	zones := readZones(t, db)
	require.Len(t, zones, 7)
	assert.EqualValues(t, 0, zones[0].Index)
	assert.EqualValues(t, 6, zones[6].Index)
	assert.EqualValues(t, 7, *zones[6].LocationID)
	assert.Nil(t, zones[3].Borough, "empty values load as NULL")
	assert.Equal(t, "Zone 5", *zones[4].Zone)
	assert.Equal(t, "Yellow Zone", *zones[0].ServiceZone)

	var trips []model.TripRecord
	require.NoError(t, db.Table("tripdata").Order(`"lpep_pickup_datetime"`).Find(&trips).Error)
	require.Len(t, trips, 5)
	assert.EqualValues(t, 1, *trips[0].VendorID)
	assert.Equal(t, 4.5, *trips[4].FareAmount)
	assert.Nil(t, trips[2].EhailFee)
	require.NotNil(t, trips[1].PickupDatetime)
	assert.True(t, pickupBase.Add(time.Minute).Equal(*trips[1].PickupDatetime))
	assert.False(t, db.Migrator().HasColumn("tripdata", "index"), "the trip table has no row index")
}

func TestJob_LoadZones_ChunkSizeInvariance(t *testing.T) {
	dir := t.TempDir()
	zoneFile := writeZones(t, dir, 10)

	var reference []model.ZoneRecord
	for _, chunkSize := range []int{1, 2, 3, 100} {
		t.Run(fmt.Sprintf("chunk_%d", chunkSize), func(t *testing.T) {
			db := openDB(t)
			job, err := loader.NewJob(db, loaderConfig(zoneFile, "", chunkSize), nil)
			require.NoError(t, err)

			n, err := job.LoadZones(context.Background())
			require.NoError(t, err)
			assert.EqualValues(t, 10, n)

			zones := readZones(t, db)
			if reference == nil {
				reference = zones
				return
			}
			assert.Equal(t, reference, zones)
		})
	}
}

func TestJob_LoadZones_ReplacesTable(t *testing.T) {
	dir := t.TempDir()
	db := openDB(t)

	job, err := loader.NewJob(db, loaderConfig(writeZones(t, dir, 6), "", 4), nil)
	require.NoError(t, err)
	_, err = job.LoadZones(context.Background())
	require.NoError(t, err)

	job, err = loader.NewJob(db, loaderConfig(writeZones(t, dir, 2), "", 4), nil)
	require.NoError(t, err)
	_, err = job.LoadZones(context.Background())
	require.NoError(t, err)

	assert.Len(t, readZones(t, db), 2)
}

func TestJob_LoadZones_HeaderOnly(t *testing.T) {
	dir := t.TempDir()
	db := openDB(t)
	require.NoError(t, db.Exec(`CREATE TABLE taxi_zone (stale TEXT)`).Error)

	job, err := loader.NewJob(db, loaderConfig(writeZones(t, dir, 0), "", 5), nil)
	require.NoError(t, err)
	n, err := job.LoadZones(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.True(t, db.Migrator().HasTable("taxi_zone"))
	assert.True(t, db.Migrator().HasColumn("taxi_zone", "LocationID"), "the table is re-created from the record layout")
	assert.Empty(t, readZones(t, db))
}

func TestJob_LoadZones_CoercionFailure(t *testing.T) {
	dir := t.TempDir()
	db := openDB(t)
	require.NoError(t, db.Exec(`CREATE TABLE taxi_zone (stale TEXT)`).Error)

	path := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("LocationID,Borough,Zone,service_zone\nabc,Queens,Astoria,Boro Zone\n"), 0o644))

	job, err := loader.NewJob(db, loaderConfig(path, "", 10), nil)
	require.NoError(t, err)
	_, err = job.LoadZones(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrTypeCoercion))
	assert.True(t, db.Migrator().HasColumn("taxi_zone", "stale"), "a file that cannot be decoded leaves the old table")
}

func TestJob_LoadTrips_MissingColumn(t *testing.T) {
	dir := t.TempDir()
	db := openDB(t)
	require.NoError(t, db.Exec(`CREATE TABLE tripdata (stale TEXT)`).Error)

	job, err := loader.NewJob(db, loaderConfig("", writeTrips(t, dir, 3, "cbd_congestion_fee"), 10), nil)
	require.NoError(t, err)
	_, err = job.LoadTrips(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrTypeCoercion))
	assert.True(t, db.Migrator().HasColumn("tripdata", "stale"))
}

func TestJob_Run_Failures(t *testing.T) {
	dir := t.TempDir()
	db := openDB(t)

	job, err := loader.NewJob(db, loaderConfig(filepath.Join(dir, "missing.csv"), writeTrips(t, dir, 1), 10), nil)
	require.NoError(t, err)
	assert.Error(t, job.Run(context.Background()))
	assert.False(t, db.Migrator().HasTable("tripdata"), "trips are not loaded after a zone failure")

	job, err = loader.NewJob(db, loaderConfig(writeZones(t, dir, 2), filepath.Join(dir, "missing.parquet"), 10), nil)
	require.NoError(t, err)
	assert.Error(t, job.Run(context.Background()))
	assert.Len(t, readZones(t, db), 2, "zones loaded before a trip failure stay")

	notParquet := filepath.Join(dir, "trips.parquet")
	require.NoError(t, os.WriteFile(notParquet, []byte("not parquet"), 0o644))
	job, err = loader.NewJob(db, loaderConfig(writeZones(t, dir, 2), notParquet, 10), nil)
	require.NoError(t, err)
	assert.Error(t, job.Run(context.Background()))
}

func TestNewJob_Invalid(t *testing.T) {
	db := openDB(t)
	_, err := loader.NewJob(db, loaderConfig("a", "b", 0), nil)
	assert.Error(t, err)
	_, err = loader.NewJob(nil, loaderConfig("a", "b", 1), nil)
	assert.Error(t, err)
}
