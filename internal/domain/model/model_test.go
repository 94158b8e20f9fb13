package model_test

import (
	"testing"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/taxiflow/internal/domain/model"
	"github.com/tigerroll/taxiflow/pkg/batch/core/frame"
)

func TestTripColumns(t *testing.T) {
	assert.Len(t, model.TripColumns, 21)
	seen := map[string]bool{}
	for _, c := range model.TripColumns {
		assert.False(t, seen[c.Name], "duplicate column %s", c.Name)
		seen[c.Name] = true
		assert.False(t, c.Optional, "trip column %s must be required", c.Name)
	}
	assert.Equal(t, frame.Timestamp, model.TripColumns[1].Kind)
}

func TestFetchedTripRecord_FromRow(t *testing.T) {
	mem := memory.NewGoAllocator()
	pickup := time.Date(2025, 1, 3, 8, 15, 0, 0, time.UTC)
	extracted := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "VendorID", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "tpep_pickup_datetime", Type: &arrow.TimestampType{Unit: arrow.Microsecond}, Nullable: true},
		{Name: "passenger_count", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "Airport_fee", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.Int32Builder).AppendValues([]int32{2}, nil)
	b.Field(1).(*array.TimestampBuilder).Append(arrow.Timestamp(pickup.UnixMicro()))
	b.Field(2).(*array.Float64Builder).AppendNull()
	b.Field(3).(*array.Float64Builder).Append(1.75)
	rec := b.NewRecord()
	defer rec.Release()

	raw := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer raw.Release()
	typed := frame.WithStringColumn(raw, "taxi_type", "yellow", mem)
	defer typed.Release()
	tagged := frame.WithTimestampColumn(typed, "extracted_at", extracted, mem)
	defer tagged.Release()

	tbl, err := frame.Cast(tagged, model.FetchedTripColumns, mem)
	require.NoError(t, err)
	defer tbl.Release()
	assert.EqualValues(t, len(model.FetchedTripColumns), tbl.NumCols())

	var records []model.FetchedTripRecord
	require.NoError(t, frame.EachRow(tbl, func(r frame.Row) error {
		records = append(records, model.NewFetchedTripRecord(r))
		return nil
	}))
	require.Len(t, records, 1)
	got := records[0]

	require.NotNil(t, got.VendorID)
	assert.EqualValues(t, 2, *got.VendorID)
	require.NotNil(t, got.TpepPickupDatetime)
	assert.True(t, pickup.Equal(*got.TpepPickupDatetime))
	assert.Nil(t, got.LpepPickupDatetime, "green columns are absent from a yellow file")
	assert.Nil(t, got.PassengerCount)
	require.NotNil(t, got.AirportFee)
	assert.Equal(t, 1.75, *got.AirportFee)
	assert.Equal(t, "yellow", got.TaxiType)
	assert.True(t, extracted.Equal(got.ExtractedAt))

	row := got.ParquetRow()
	require.NotNil(t, row.TpepPickupDatetime)
	assert.Equal(t, pickup.UnixMicro(), *row.TpepPickupDatetime)
	assert.Nil(t, row.LpepDropoffDatetime)
	assert.Equal(t, extracted.UnixMicro(), row.ExtractedAt)

	key, err := row.PartitionKey()
	require.NoError(t, err)
	assert.Equal(t, "taxi_type=yellow", key)
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "taxi_zone", model.ZoneRecord{}.TableName())
	assert.Equal(t, "tripdata", model.TripRecord{}.TableName())
	assert.Equal(t, "trips", model.FetchedTripRecord{}.TableName())
}
