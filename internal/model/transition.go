package model

import "time"

// Transition is one validated status change of a space. Rows are append-only:
// they are created inside the state machine's transaction and never updated
// or deleted afterwards.
type Transition struct {
	ID          int64       `gorm:"autoIncrement;primaryKey" json:"id"`
	SpaceID     int64       `gorm:"index;not null" json:"spaceId"`
	PriorStatus SpaceStatus `gorm:"size:16;not null" json:"priorStatus"`
	NewStatus   SpaceStatus `gorm:"size:16;not null" json:"newStatus"`
	OccurredAt  time.Time   `gorm:"index;not null" json:"occurredAt"`
	// SessionMinutes is set only on a transition that closes a session
	// (occupied -> free): the elapsed whole minutes since the session opened.
	SessionMinutes *int64    `json:"sessionMinutes,omitempty"`
	CreatedAt      time.Time `gorm:"not null" json:"-"`
}
