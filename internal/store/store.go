package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parking-status-backend/internal/model"
	"parking-status-backend/internal/signal"
)

// ErrSpaceNotFound is returned by Resolve for an unprovisioned label.
var ErrSpaceNotFound = errors.New("space not found")

// StatusCounts is the directory's point-in-time tally, restricted to spaces
// that have reported at least once.
type StatusCounts struct {
	Total    int64
	Occupied int64
	Free     int64
}

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB
	ProvisionSpaces(ctx context.Context, labels []string) error
	Resolve(ctx context.Context, label string) (model.Space, error)
	Spaces(ctx context.Context) ([]model.Space, error)
	CurrentStatuses(ctx context.Context) (map[string]model.SpaceStatus, error)
	CountByStatus(ctx context.Context) (StatusCounts, error)
	Apply(ctx context.Context, label, rawToken string, receivedAt time.Time) (Outcome, error)
	TransitionsFor(ctx context.Context, spaceID *int64, from, to time.Time) ([]model.Transition, error)
	SaveSnapshot(ctx context.Context, snap model.OccupancySnapshot) error
	Snapshots(ctx context.Context, since time.Time) ([]model.OccupancySnapshot, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db    *gorm.DB
	locks *spaceLocks
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db, locks: newSpaceLocks()}
}

func (s *gormStore) DB() *gorm.DB { return s.db }

// ProvisionSpaces upserts the configured space labels. Already-known labels
// are left untouched; spaces are never created by the ingestion path.
func (s *gormStore) ProvisionSpaces(ctx context.Context, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	spaces := make([]model.Space, 0, len(labels))
	for _, label := range labels {
		spaces = append(spaces, model.Space{Label: label, Status: model.StatusUnknown})
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "label"}},
		DoNothing: true,
	}).Create(&spaces).Error; err != nil {
		return fmt.Errorf("provision spaces: %w", err)
	}
	return nil
}

// Resolve looks up a space by its external label.
func (s *gormStore) Resolve(ctx context.Context, label string) (model.Space, error) {
	var space model.Space
	err := s.db.WithContext(ctx).Where("label = ?", label).First(&space).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Space{}, fmt.Errorf("%w: %q", ErrSpaceNotFound, label)
	}
	if err != nil {
		return model.Space{}, fmt.Errorf("resolve space %q: %w", label, err)
	}
	return space, nil
}

func (s *gormStore) Spaces(ctx context.Context) ([]model.Space, error) {
	var spaces []model.Space
	if err := s.db.WithContext(ctx).Order("label").Find(&spaces).Error; err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	return spaces, nil
}

// CurrentStatuses returns the label -> status mapping consumed by dashboards.
func (s *gormStore) CurrentStatuses(ctx context.Context) (map[string]model.SpaceStatus, error) {
	spaces, err := s.Spaces(ctx)
	if err != nil {
		return nil, err
	}
	statuses := make(map[string]model.SpaceStatus, len(spaces))
	for _, sp := range spaces {
		statuses[sp.Label] = sp.Status
	}
	return statuses, nil
}

// CountByStatus tallies the directory in one grouped query, O(#spaces).
// Spaces still in the unknown state are excluded from the totals.
func (s *gormStore) CountByStatus(ctx context.Context) (StatusCounts, error) {
	type aggRow struct {
		Status model.SpaceStatus
		N      int64
	}
	var rows []aggRow
	err := s.db.WithContext(ctx).
		Model(&model.Space{}).
		Select("status, COUNT(*) as n").
		Where("status IN ?", []model.SpaceStatus{model.StatusFree, model.StatusOccupied}).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return StatusCounts{}, fmt.Errorf("count spaces by status: %w", err)
	}

	var counts StatusCounts
	for _, r := range rows {
		switch r.Status {
		case model.StatusOccupied:
			counts.Occupied = r.N
		case model.StatusFree:
			counts.Free = r.N
		}
		counts.Total += r.N
	}
	return counts, nil
}

// Apply feeds one delivery through the transition state machine. The token is
// validated first; then, under the space's lock, the current status is read
// and the status update, the ledger append and the session open/close are
// committed as one transaction. Any failure rolls the whole attempt back.
func (s *gormStore) Apply(ctx context.Context, label, rawToken string, receivedAt time.Time) (Outcome, error) {
	newStatus, err := signal.ParseToken(rawToken)
	if err != nil {
		return Outcome{Reason: IgnoreInvalidToken}, nil
	}

	unlock := s.locks.Lock(label)
	defer unlock()

	var outcome Outcome
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var space model.Space
		if err := tx.Where("label = ?", label).First(&space).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome = Outcome{Reason: IgnoreSpaceNotFound}
				return nil
			}
			return fmt.Errorf("read space %q: %w", label, err)
		}

		if receivedAt.Before(space.StatusUpdatedAt) {
			outcome = Outcome{Reason: IgnoreStaleSignal}
			return nil
		}
		if space.Status == newStatus {
			outcome = Outcome{Reason: IgnoreNoChange}
			return nil
		}

		record := model.Transition{
			SpaceID:     space.ID,
			PriorStatus: space.Status,
			NewStatus:   newStatus,
			OccurredAt:  receivedAt,
		}

		if newStatus == model.StatusOccupied {
			// Opens a session. This also covers a space whose very first
			// signal is occupied: the session has no matching prior free
			// transition in the log.
			open := model.OccupancySession{SpaceID: space.ID, StartedAt: receivedAt}
			if err := tx.Create(&open).Error; err != nil {
				return fmt.Errorf("open session for space %q: %w", label, err)
			}
		} else if space.Status == model.StatusOccupied {
			minutes, err := closeOpenSession(tx, space.ID, receivedAt)
			if err != nil {
				return fmt.Errorf("close session for space %q: %w", label, err)
			}
			if minutes == nil {
				log.Printf("store: space %q went free with no open session; upstream anomaly", label)
			}
			record.SessionMinutes = minutes
		}

		if err := tx.Model(&model.Space{}).Where("id = ?", space.ID).
			Updates(map[string]any{"status": newStatus, "status_updated_at": receivedAt}).Error; err != nil {
			return fmt.Errorf("update space %q status: %w", label, err)
		}

		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("append transition for space %q: %w", label, err)
		}

		outcome = Outcome{Applied: true, Record: &record}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

// closeOpenSession ends the space's open session and returns the elapsed
// whole minutes, or nil when no open session exists.
func closeOpenSession(tx *gorm.DB, spaceID int64, endedAt time.Time) (*int64, error) {
	var open model.OccupancySession
	err := tx.Where("space_id = ? AND ended_at IS NULL", spaceID).
		Order("started_at DESC").
		First(&open).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	minutes := int64(endedAt.Sub(open.StartedAt) / time.Minute)
	end := endedAt
	open.EndedAt = &end
	open.DurationMinutes = &minutes
	if err := tx.Save(&open).Error; err != nil {
		return nil, err
	}
	return &minutes, nil
}

// TransitionsFor reads a window of the ledger, ordered by occurred_at with
// ties broken by insertion order.
func (s *gormStore) TransitionsFor(ctx context.Context, spaceID *int64, from, to time.Time) ([]model.Transition, error) {
	q := s.db.WithContext(ctx).Model(&model.Transition{})
	if spaceID != nil {
		q = q.Where("space_id = ?", *spaceID)
	}
	if !from.IsZero() {
		q = q.Where("occurred_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("occurred_at <= ?", to)
	}

	var transitions []model.Transition
	if err := q.Order("occurred_at ASC, id ASC").Find(&transitions).Error; err != nil {
		return nil, fmt.Errorf("read transitions: %w", err)
	}
	return transitions, nil
}

// SaveSnapshot persists a periodic rollup. Repeated captures within the same
// tick collapse onto the first one.
func (s *gormStore) SaveSnapshot(ctx context.Context, snap model.OccupancySnapshot) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "captured_at"}},
		DoNothing: true,
	}).Create(&snap).Error; err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *gormStore) Snapshots(ctx context.Context, since time.Time) ([]model.OccupancySnapshot, error) {
	var snaps []model.OccupancySnapshot
	q := s.db.WithContext(ctx)
	if !since.IsZero() {
		q = q.Where("captured_at >= ?", since)
	}
	if err := q.Order("captured_at ASC").Find(&snaps).Error; err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}
	return snaps, nil
}
