// Package model holds the record types of the taxi ingestion jobs.
package model

// ZoneRecord is one row of the taxi zone lookup file.
// It includes csv tags for decoding the lookup file and GORM tags for the taxi_zone table.
type ZoneRecord struct {
	// Index is the 0-based position of the row in the whole file, not within its chunk.
	Index       int64   `csv:"-" gorm:"column:index"`
	LocationID  *int64  `csv:"LocationID" gorm:"column:LocationID"`
	Borough     *string `csv:"Borough" gorm:"column:Borough"`
	Zone        *string `csv:"Zone" gorm:"column:Zone"`
	ServiceZone *string `csv:"service_zone" gorm:"column:service_zone"`
}

// TableName specifies the table name for ZoneRecord.
func (ZoneRecord) TableName() string {
	return "taxi_zone"
}
