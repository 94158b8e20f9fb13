package model

import (
	"time"

	"github.com/tigerroll/taxiflow/pkg/batch/core/frame"
)

// TripRecord is one row of a green taxi trip file as loaded into the tripdata table.
// Every column is nullable because the published files carry nulls in all of them.
type TripRecord struct {
	VendorID             *int64     `gorm:"column:VendorID"`
	PickupDatetime       *time.Time `gorm:"column:lpep_pickup_datetime;type:timestamp"`
	DropoffDatetime      *time.Time `gorm:"column:lpep_dropoff_datetime;type:timestamp"`
	StoreAndFwdFlag      *string    `gorm:"column:store_and_fwd_flag"`
	RatecodeID           *float64   `gorm:"column:RatecodeID;type:double precision"`
	PULocationID         *int64     `gorm:"column:PULocationID"`
	DOLocationID         *int64     `gorm:"column:DOLocationID"`
	PassengerCount       *float64   `gorm:"column:passenger_count;type:double precision"`
	TripDistance         *float64   `gorm:"column:trip_distance;type:double precision"`
	FareAmount           *float64   `gorm:"column:fare_amount;type:double precision"`
	Extra                *float64   `gorm:"column:extra;type:double precision"`
	MtaTax               *float64   `gorm:"column:mta_tax;type:double precision"`
	TipAmount            *float64   `gorm:"column:tip_amount;type:double precision"`
	TollsAmount          *float64   `gorm:"column:tolls_amount;type:double precision"`
	EhailFee             *float64   `gorm:"column:ehail_fee;type:double precision"`
	ImprovementSurcharge *float64   `gorm:"column:improvement_surcharge;type:double precision"`
	TotalAmount          *float64   `gorm:"column:total_amount;type:double precision"`
	PaymentType          *float64   `gorm:"column:payment_type;type:double precision"`
	TripType             *float64   `gorm:"column:trip_type;type:double precision"`
	CongestionSurcharge  *float64   `gorm:"column:congestion_surcharge;type:double precision"`
	CbdCongestionFee     *float64   `gorm:"column:cbd_congestion_fee;type:double precision"`
}

// TableName specifies the table name for TripRecord.
func (TripRecord) TableName() string {
	return "tripdata"
}

// TripColumns declares the typed columns of a trip file. All of them must be present.
var TripColumns = []frame.ColumnSpec{
	{Name: "VendorID", Kind: frame.Int64},
	{Name: "lpep_pickup_datetime", Kind: frame.Timestamp},
	{Name: "lpep_dropoff_datetime", Kind: frame.Timestamp},
	{Name: "store_and_fwd_flag", Kind: frame.String},
	{Name: "RatecodeID", Kind: frame.Float64},
	{Name: "PULocationID", Kind: frame.Int64},
	{Name: "DOLocationID", Kind: frame.Int64},
	{Name: "passenger_count", Kind: frame.Float64},
	{Name: "trip_distance", Kind: frame.Float64},
	{Name: "fare_amount", Kind: frame.Float64},
	{Name: "extra", Kind: frame.Float64},
	{Name: "mta_tax", Kind: frame.Float64},
	{Name: "tip_amount", Kind: frame.Float64},
	{Name: "tolls_amount", Kind: frame.Float64},
	{Name: "ehail_fee", Kind: frame.Float64},
	{Name: "improvement_surcharge", Kind: frame.Float64},
	{Name: "total_amount", Kind: frame.Float64},
	{Name: "payment_type", Kind: frame.Float64},
	{Name: "trip_type", Kind: frame.Float64},
	{Name: "congestion_surcharge", Kind: frame.Float64},
	{Name: "cbd_congestion_fee", Kind: frame.Float64},
}

// NewTripRecord reads a TripRecord from a row of a table cast with TripColumns.
func NewTripRecord(r frame.Row) TripRecord {
	return TripRecord{
		VendorID:             r.Int64("VendorID"),
		PickupDatetime:       r.Time("lpep_pickup_datetime"),
		DropoffDatetime:      r.Time("lpep_dropoff_datetime"),
		StoreAndFwdFlag:      r.String("store_and_fwd_flag"),
		RatecodeID:           r.Float64("RatecodeID"),
		PULocationID:         r.Int64("PULocationID"),
		DOLocationID:         r.Int64("DOLocationID"),
		PassengerCount:       r.Float64("passenger_count"),
		TripDistance:         r.Float64("trip_distance"),
		FareAmount:           r.Float64("fare_amount"),
		Extra:                r.Float64("extra"),
		MtaTax:               r.Float64("mta_tax"),
		TipAmount:            r.Float64("tip_amount"),
		TollsAmount:          r.Float64("tolls_amount"),
		EhailFee:             r.Float64("ehail_fee"),
		ImprovementSurcharge: r.Float64("improvement_surcharge"),
		TotalAmount:          r.Float64("total_amount"),
		PaymentType:          r.Float64("payment_type"),
		TripType:             r.Float64("trip_type"),
		CongestionSurcharge:  r.Float64("congestion_surcharge"),
		CbdCongestionFee:     r.Float64("cbd_congestion_fee"),
	}
}
