package model

import (
	"time"

	"github.com/tigerroll/taxiflow/pkg/batch/core/frame"
)

// FetchedTripRecord is one row of the combined monthly download, covering both the
// yellow (tpep_*) and the green (lpep_*) layouts. Columns a file does not carry are nil.
type FetchedTripRecord struct {
	VendorID             *int64     `gorm:"column:VendorID"`
	TpepPickupDatetime   *time.Time `gorm:"column:tpep_pickup_datetime;type:timestamp"`
	LpepPickupDatetime   *time.Time `gorm:"column:lpep_pickup_datetime;type:timestamp"`
	TpepDropoffDatetime  *time.Time `gorm:"column:tpep_dropoff_datetime;type:timestamp"`
	LpepDropoffDatetime  *time.Time `gorm:"column:lpep_dropoff_datetime;type:timestamp"`
	PassengerCount       *int64     `gorm:"column:passenger_count"`
	TripDistance         *float64   `gorm:"column:trip_distance;type:double precision"`
	RatecodeID           *int64     `gorm:"column:RatecodeID"`
	StoreAndFwdFlag      *string    `gorm:"column:store_and_fwd_flag"`
	PULocationID         *int64     `gorm:"column:PULocationID"`
	DOLocationID         *int64     `gorm:"column:DOLocationID"`
	PaymentType          *int64     `gorm:"column:payment_type"`
	FareAmount           *float64   `gorm:"column:fare_amount;type:double precision"`
	Extra                *float64   `gorm:"column:extra;type:double precision"`
	MtaTax               *float64   `gorm:"column:mta_tax;type:double precision"`
	TipAmount            *float64   `gorm:"column:tip_amount;type:double precision"`
	TollsAmount          *float64   `gorm:"column:tolls_amount;type:double precision"`
	EhailFee             *float64   `gorm:"column:ehail_fee;type:double precision"`
	ImprovementSurcharge *float64   `gorm:"column:improvement_surcharge;type:double precision"`
	TotalAmount          *float64   `gorm:"column:total_amount;type:double precision"`
	TripType             *int64     `gorm:"column:trip_type"`
	CongestionSurcharge  *float64   `gorm:"column:congestion_surcharge;type:double precision"`
	AirportFee           *float64   `gorm:"column:airport_fee;type:double precision"`
	CbdCongestionFee     *float64   `gorm:"column:cbd_congestion_fee;type:double precision"`
	TaxiType             string     `gorm:"column:taxi_type"`
	ExtractedAt          time.Time  `gorm:"column:extracted_at;type:timestamp"`
}

// TableName specifies the table name for FetchedTripRecord.
func (FetchedTripRecord) TableName() string {
	return "trips"
}

// FetchedTripColumns declares the typed columns of the combined download.
// Only the two tag columns are guaranteed; the rest depend on the taxi types and months fetched.
var FetchedTripColumns = []frame.ColumnSpec{
	{Name: "VendorID", Kind: frame.Int64, Optional: true},
	{Name: "tpep_pickup_datetime", Kind: frame.Timestamp, Optional: true},
	{Name: "lpep_pickup_datetime", Kind: frame.Timestamp, Optional: true},
	{Name: "tpep_dropoff_datetime", Kind: frame.Timestamp, Optional: true},
	{Name: "lpep_dropoff_datetime", Kind: frame.Timestamp, Optional: true},
	{Name: "passenger_count", Kind: frame.Int64, Optional: true},
	{Name: "trip_distance", Kind: frame.Float64, Optional: true},
	{Name: "RatecodeID", Kind: frame.Int64, Optional: true},
	{Name: "store_and_fwd_flag", Kind: frame.String, Optional: true},
	{Name: "PULocationID", Kind: frame.Int64, Optional: true},
	{Name: "DOLocationID", Kind: frame.Int64, Optional: true},
	{Name: "payment_type", Kind: frame.Int64, Optional: true},
	{Name: "fare_amount", Kind: frame.Float64, Optional: true},
	{Name: "extra", Kind: frame.Float64, Optional: true},
	{Name: "mta_tax", Kind: frame.Float64, Optional: true},
	{Name: "tip_amount", Kind: frame.Float64, Optional: true},
	{Name: "tolls_amount", Kind: frame.Float64, Optional: true},
	{Name: "ehail_fee", Kind: frame.Float64, Optional: true},
	{Name: "improvement_surcharge", Kind: frame.Float64, Optional: true},
	{Name: "total_amount", Kind: frame.Float64, Optional: true},
	{Name: "trip_type", Kind: frame.Int64, Optional: true},
	{Name: "congestion_surcharge", Kind: frame.Float64, Optional: true},
	{Name: "airport_fee", Kind: frame.Float64, Optional: true},
	{Name: "cbd_congestion_fee", Kind: frame.Float64, Optional: true},
	{Name: "taxi_type", Kind: frame.String},
	{Name: "extracted_at", Kind: frame.Timestamp},
}

// NewFetchedTripRecord reads a FetchedTripRecord from a row of a table cast with FetchedTripColumns.
func NewFetchedTripRecord(r frame.Row) FetchedTripRecord {
	rec := FetchedTripRecord{
		VendorID:             r.Int64("VendorID"),
		TpepPickupDatetime:   r.Time("tpep_pickup_datetime"),
		LpepPickupDatetime:   r.Time("lpep_pickup_datetime"),
		TpepDropoffDatetime:  r.Time("tpep_dropoff_datetime"),
		LpepDropoffDatetime:  r.Time("lpep_dropoff_datetime"),
		PassengerCount:       r.Int64("passenger_count"),
		TripDistance:         r.Float64("trip_distance"),
		RatecodeID:           r.Int64("RatecodeID"),
		StoreAndFwdFlag:      r.String("store_and_fwd_flag"),
		PULocationID:         r.Int64("PULocationID"),
		DOLocationID:         r.Int64("DOLocationID"),
		PaymentType:          r.Int64("payment_type"),
		FareAmount:           r.Float64("fare_amount"),
		Extra:                r.Float64("extra"),
		MtaTax:               r.Float64("mta_tax"),
		TipAmount:            r.Float64("tip_amount"),
		TollsAmount:          r.Float64("tolls_amount"),
		EhailFee:             r.Float64("ehail_fee"),
		ImprovementSurcharge: r.Float64("improvement_surcharge"),
		TotalAmount:          r.Float64("total_amount"),
		TripType:             r.Int64("trip_type"),
		CongestionSurcharge:  r.Float64("congestion_surcharge"),
		AirportFee:           r.Float64("airport_fee"),
		CbdCongestionFee:     r.Float64("cbd_congestion_fee"),
	}
	if v := r.String("taxi_type"); v != nil {
		rec.TaxiType = *v
	}
	if v := r.Time("extracted_at"); v != nil {
		rec.ExtractedAt = *v
	}
	return rec
}

// FetchedTripRow is the Parquet layout of a FetchedTripRecord.
// Timestamps are stored as microseconds since the epoch.
type FetchedTripRow struct {
	VendorID             *int64   `parquet:"name=VendorID, type=INT64, repetitiontype=OPTIONAL"`
	TpepPickupDatetime   *int64   `parquet:"name=tpep_pickup_datetime, type=INT64, convertedtype=TIMESTAMP_MICROS, repetitiontype=OPTIONAL"`
	LpepPickupDatetime   *int64   `parquet:"name=lpep_pickup_datetime, type=INT64, convertedtype=TIMESTAMP_MICROS, repetitiontype=OPTIONAL"`
	TpepDropoffDatetime  *int64   `parquet:"name=tpep_dropoff_datetime, type=INT64, convertedtype=TIMESTAMP_MICROS, repetitiontype=OPTIONAL"`
	LpepDropoffDatetime  *int64   `parquet:"name=lpep_dropoff_datetime, type=INT64, convertedtype=TIMESTAMP_MICROS, repetitiontype=OPTIONAL"`
	PassengerCount       *int64   `parquet:"name=passenger_count, type=INT64, repetitiontype=OPTIONAL"`
	TripDistance         *float64 `parquet:"name=trip_distance, type=DOUBLE, repetitiontype=OPTIONAL"`
	RatecodeID           *int64   `parquet:"name=RatecodeID, type=INT64, repetitiontype=OPTIONAL"`
	StoreAndFwdFlag      *string  `parquet:"name=store_and_fwd_flag, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	PULocationID         *int64   `parquet:"name=PULocationID, type=INT64, repetitiontype=OPTIONAL"`
	DOLocationID         *int64   `parquet:"name=DOLocationID, type=INT64, repetitiontype=OPTIONAL"`
	PaymentType          *int64   `parquet:"name=payment_type, type=INT64, repetitiontype=OPTIONAL"`
	FareAmount           *float64 `parquet:"name=fare_amount, type=DOUBLE, repetitiontype=OPTIONAL"`
	Extra                *float64 `parquet:"name=extra, type=DOUBLE, repetitiontype=OPTIONAL"`
	MtaTax               *float64 `parquet:"name=mta_tax, type=DOUBLE, repetitiontype=OPTIONAL"`
	TipAmount            *float64 `parquet:"name=tip_amount, type=DOUBLE, repetitiontype=OPTIONAL"`
	TollsAmount          *float64 `parquet:"name=tolls_amount, type=DOUBLE, repetitiontype=OPTIONAL"`
	EhailFee             *float64 `parquet:"name=ehail_fee, type=DOUBLE, repetitiontype=OPTIONAL"`
	ImprovementSurcharge *float64 `parquet:"name=improvement_surcharge, type=DOUBLE, repetitiontype=OPTIONAL"`
	TotalAmount          *float64 `parquet:"name=total_amount, type=DOUBLE, repetitiontype=OPTIONAL"`
	TripType             *int64   `parquet:"name=trip_type, type=INT64, repetitiontype=OPTIONAL"`
	CongestionSurcharge  *float64 `parquet:"name=congestion_surcharge, type=DOUBLE, repetitiontype=OPTIONAL"`
	AirportFee           *float64 `parquet:"name=airport_fee, type=DOUBLE, repetitiontype=OPTIONAL"`
	CbdCongestionFee     *float64 `parquet:"name=cbd_congestion_fee, type=DOUBLE, repetitiontype=OPTIONAL"`
	TaxiType             string   `parquet:"name=taxi_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	ExtractedAt          int64    `parquet:"name=extracted_at, type=INT64, convertedtype=TIMESTAMP_MICROS"`
}

// ParquetRow converts the record to its Parquet layout.
func (r FetchedTripRecord) ParquetRow() FetchedTripRow {
	return FetchedTripRow{
		VendorID:             r.VendorID,
		TpepPickupDatetime:   micros(r.TpepPickupDatetime),
		LpepPickupDatetime:   micros(r.LpepPickupDatetime),
		TpepDropoffDatetime:  micros(r.TpepDropoffDatetime),
		LpepDropoffDatetime:  micros(r.LpepDropoffDatetime),
		PassengerCount:       r.PassengerCount,
		TripDistance:         r.TripDistance,
		RatecodeID:           r.RatecodeID,
		StoreAndFwdFlag:      r.StoreAndFwdFlag,
		PULocationID:         r.PULocationID,
		DOLocationID:         r.DOLocationID,
		PaymentType:          r.PaymentType,
		FareAmount:           r.FareAmount,
		Extra:                r.Extra,
		MtaTax:               r.MtaTax,
		TipAmount:            r.TipAmount,
		TollsAmount:          r.TollsAmount,
		EhailFee:             r.EhailFee,
		ImprovementSurcharge: r.ImprovementSurcharge,
		TotalAmount:          r.TotalAmount,
		TripType:             r.TripType,
		CongestionSurcharge:  r.CongestionSurcharge,
		AirportFee:           r.AirportFee,
		CbdCongestionFee:     r.CbdCongestionFee,
		TaxiType:             r.TaxiType,
		ExtractedAt:          r.ExtractedAt.UnixMicro(),
	}
}

// PartitionKey returns the Hive-style partition of the record, e.g. "taxi_type=yellow".
func (r FetchedTripRow) PartitionKey() (string, error) {
	return "taxi_type=" + r.TaxiType, nil
}

func micros(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := t.UnixMicro()
	return &v
}
