package model

import "time"

// SpaceStatus is the closed set of occupancy states a parking space can be in.
type SpaceStatus string

const (
	StatusFree     SpaceStatus = "free"
	StatusOccupied SpaceStatus = "occupied"
	// StatusUnknown is the initial state of a provisioned space that has not
	// yet reported a signal. The ingestion path never transitions back to it.
	StatusUnknown SpaceStatus = "unknown"
)

// Space represents a monitored parking space and its last-known status.
type Space struct {
	ID              int64       `gorm:"primaryKey" json:"id"`
	Label           string      `gorm:"uniqueIndex;size:64;not null" json:"label"`
	Status          SpaceStatus `gorm:"size:16;not null;default:unknown" json:"status"`
	StatusUpdatedAt time.Time   `json:"statusUpdatedAt"`
	CreatedAt       time.Time   `gorm:"not null" json:"-"`
	UpdatedAt       time.Time   `gorm:"not null" json:"-"`
}
