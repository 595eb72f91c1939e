package model

import "time"

// OccupancySession is the materialized read-model of one contiguous occupied
// interval: opened on free -> occupied, closed on occupied -> free. It is
// maintained in the same transaction as the transition log but the log stays
// the source of truth; the sessions package can rebuild this table from the
// transitions alone.
type OccupancySession struct {
	ID              int64      `gorm:"autoIncrement;primaryKey" json:"id"`
	SpaceID         int64      `gorm:"index;not null" json:"spaceId"`
	StartedAt       time.Time  `gorm:"not null" json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt"`
	DurationMinutes *int64     `json:"durationMinutes"`
	CreatedAt       time.Time  `gorm:"not null" json:"-"`
	UpdatedAt       time.Time  `gorm:"not null" json:"-"`
}
