package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"parking-status-backend/internal/model"
)

// newTestStore opens an isolated in-memory SQLite database with migrations
// applied and the given labels provisioned.
func newTestStore(t *testing.T, labels ...string) Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.Space{},
		&model.Transition{},
		&model.OccupancySession{},
		&model.OccupancySnapshot{},
	))

	s := NewGormStore(db)
	require.NoError(t, s.ProvisionSpaces(context.Background(), labels))
	return s
}

func countRows(t *testing.T, s Store, dst any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.DB().Model(dst).Count(&n).Error)
	return n
}

var base = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

func TestApplyInvalidToken(t *testing.T) {
	s := newTestStore(t, "A1")

	outcome, err := s.Apply(context.Background(), "A1", "busy", base)
	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	assert.Equal(t, IgnoreInvalidToken, outcome.Reason)

	assert.Zero(t, countRows(t, s, &model.Transition{}))
	assert.Zero(t, countRows(t, s, &model.OccupancySession{}))
}

func TestApplyUnknownSpace(t *testing.T) {
	s := newTestStore(t, "A1")

	outcome, err := s.Apply(context.Background(), "Z9", "occupied", base)
	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	assert.Equal(t, IgnoreSpaceNotFound, outcome.Reason)

	// The unknown label must not be auto-provisioned.
	assert.Equal(t, int64(1), countRows(t, s, &model.Space{}))
	assert.Zero(t, countRows(t, s, &model.Transition{}))
	assert.Zero(t, countRows(t, s, &model.OccupancySession{}))
}

func TestApplyIdempotentDuplicate(t *testing.T) {
	s := newTestStore(t, "A1")
	ctx := context.Background()

	first, err := s.Apply(ctx, "A1", "occupied", base)
	require.NoError(t, err)
	assert.True(t, first.Applied)

	second, err := s.Apply(ctx, "A1", "occupied", base.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Equal(t, IgnoreNoChange, second.Reason)

	assert.Equal(t, int64(1), countRows(t, s, &model.Transition{}))
}

func TestApplyOpensAndClosesSession(t *testing.T) {
	s := newTestStore(t, "A1")
	ctx := context.Background()

	_, err := s.Apply(ctx, "A1", "occupied", base)
	require.NoError(t, err)

	end := base.Add(17*time.Minute + 30*time.Second)
	outcome, err := s.Apply(ctx, "A1", "free", end)
	require.NoError(t, err)
	require.True(t, outcome.Applied)
	assert.True(t, outcome.ClosedSession())
	require.NotNil(t, outcome.Record.SessionMinutes)
	assert.Equal(t, int64(17), *outcome.Record.SessionMinutes)

	space, err := s.Resolve(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFree, space.Status)
	assert.True(t, space.StatusUpdatedAt.Equal(end))

	var session model.OccupancySession
	require.NoError(t, s.DB().First(&session, "space_id = ?", space.ID).Error)
	require.NotNil(t, session.EndedAt)
	assert.True(t, session.EndedAt.Equal(end))
	require.NotNil(t, session.DurationMinutes)
	assert.Equal(t, int64(17), *session.DurationMinutes)
}

func TestApplyFirstSignalFreeOpensNoSession(t *testing.T) {
	s := newTestStore(t, "A1")

	outcome, err := s.Apply(context.Background(), "A1", "free", base)
	require.NoError(t, err)
	require.True(t, outcome.Applied)
	assert.Equal(t, model.StatusUnknown, outcome.Record.PriorStatus)
	assert.Nil(t, outcome.Record.SessionMinutes)

	assert.Zero(t, countRows(t, s, &model.OccupancySession{}))
}

func TestApplyFirstSignalOccupiedOpensSession(t *testing.T) {
	s := newTestStore(t, "A1")

	outcome, err := s.Apply(context.Background(), "A1", "occupied", base)
	require.NoError(t, err)
	require.True(t, outcome.Applied)
	assert.Equal(t, model.StatusUnknown, outcome.Record.PriorStatus)

	var session model.OccupancySession
	require.NoError(t, s.DB().First(&session).Error)
	assert.True(t, session.StartedAt.Equal(base))
	assert.Nil(t, session.EndedAt)
}

func TestApplyRejectsStaleSignal(t *testing.T) {
	s := newTestStore(t, "A1")
	ctx := context.Background()

	_, err := s.Apply(ctx, "A1", "occupied", base.Add(10*time.Minute))
	require.NoError(t, err)

	outcome, err := s.Apply(ctx, "A1", "free", base)
	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	assert.Equal(t, IgnoreStaleSignal, outcome.Reason)

	space, err := s.Resolve(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOccupied, space.Status)
	assert.Equal(t, int64(1), countRows(t, s, &model.Transition{}))
}

func TestApplyConcurrentDuplicatesSerialized(t *testing.T) {
	s := newTestStore(t, "A1")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Apply(ctx, "A1", "occupied", base)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Only one delivery may win; the rest must see occupied and no-op,
	// leaving a single transition and a single open session.
	assert.Equal(t, int64(1), countRows(t, s, &model.Transition{}))
	assert.Equal(t, int64(1), countRows(t, s, &model.OccupancySession{}))
}

func TestTransitionsForOrderingAndWindow(t *testing.T) {
	s := newTestStore(t, "A1", "B2")
	ctx := context.Background()

	require.NoError(t, applyAll(s, "A1", base, "occupied", "free", "occupied"))
	require.NoError(t, applyAll(s, "B2", base.Add(30*time.Second), "occupied"))

	all, err := s.TransitionsFor(ctx, nil, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].OccurredAt.Before(all[i-1].OccurredAt))
	}

	space, err := s.Resolve(ctx, "A1")
	require.NoError(t, err)
	windowed, err := s.TransitionsFor(ctx, &space.ID, base.Add(30*time.Second), base.Add(90*time.Second))
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, model.StatusFree, windowed[0].NewStatus)
}

// applyAll delivers tokens one minute apart.
func applyAll(s Store, label string, start time.Time, tokens ...string) error {
	for i, token := range tokens {
		if _, err := s.Apply(context.Background(), label, token, start.Add(time.Duration(i)*time.Minute)); err != nil {
			return err
		}
	}
	return nil
}

func TestProvisionSpacesIdempotent(t *testing.T) {
	s := newTestStore(t, "A1", "B2")

	require.NoError(t, s.ProvisionSpaces(context.Background(), []string{"B2", "C3"}))
	assert.Equal(t, int64(3), countRows(t, s, &model.Space{}))

	statuses, err := s.CurrentStatuses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnknown, statuses["C3"])
}

func TestSaveSnapshotIdempotentWithinTick(t *testing.T) {
	s := newTestStore(t)

	snap := model.OccupancySnapshot{CapturedAt: base, TotalSpaces: 4, OccupiedCount: 1, FreeCount: 3, OccupancyPct: 25}
	require.NoError(t, s.SaveSnapshot(context.Background(), snap))
	require.NoError(t, s.SaveSnapshot(context.Background(), snap))

	assert.Equal(t, int64(1), countRows(t, s, &model.OccupancySnapshot{}))
}

func TestCountByStatusExcludesUnknown(t *testing.T) {
	s := newTestStore(t, "A1", "B2", "C3")
	ctx := context.Background()

	require.NoError(t, applyAll(s, "A1", base, "occupied"))
	require.NoError(t, applyAll(s, "B2", base, "free"))

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusCounts{Total: 2, Occupied: 1, Free: 1}, counts)
}
