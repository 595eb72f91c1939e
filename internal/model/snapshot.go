package model

import "time"

// OccupancySnapshot is a periodic rollup of the lot-wide occupancy, kept for
// trend queries. Rows are written by the aggregator and never mutated.
type OccupancySnapshot struct {
	ID            int64     `gorm:"autoIncrement;primaryKey" json:"id"`
	CapturedAt    time.Time `gorm:"uniqueIndex;not null" json:"capturedAt"`
	TotalSpaces   int64     `gorm:"not null" json:"totalSpaces"`
	OccupiedCount int64     `gorm:"not null" json:"occupiedCount"`
	FreeCount     int64     `gorm:"not null" json:"freeCount"`
	OccupancyPct  float64   `gorm:"not null" json:"occupancyPercentage"`
}
