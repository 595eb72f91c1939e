package sessions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-status-backend/internal/model"
)

var t0 = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

func minutesPtr(m int64) *int64 { return &m }

// tr builds a ledger row. The id doubles as insertion order.
func tr(id, spaceID int64, prior, next model.SpaceStatus, at time.Time, minutes *int64) model.Transition {
	return model.Transition{
		ID:             id,
		SpaceID:        spaceID,
		PriorStatus:    prior,
		NewStatus:      next,
		OccurredAt:     at,
		SessionMinutes: minutes,
	}
}

func TestReconstructClosedAndOpenSessions(t *testing.T) {
	transitions := []model.Transition{
		tr(1, 1, model.StatusUnknown, model.StatusOccupied, t0, nil),
		tr(2, 2, model.StatusUnknown, model.StatusOccupied, t0.Add(1*time.Minute), nil),
		tr(3, 1, model.StatusOccupied, model.StatusFree, t0.Add(5*time.Minute), minutesPtr(5)),
	}

	res := Reconstruct(transitions, time.Time{}, t0.Add(time.Hour))
	require.Len(t, res.Sessions, 2)
	assert.Zero(t, res.Anomalies)

	first := res.Sessions[0]
	assert.Equal(t, int64(1), first.SpaceID)
	assert.Equal(t, t0, first.StartedAt)
	require.NotNil(t, first.EndedAt)
	assert.Equal(t, t0.Add(5*time.Minute), *first.EndedAt)
	require.NotNil(t, first.DurationMinutes)
	assert.Equal(t, int64(5), *first.DurationMinutes)

	second := res.Sessions[1]
	assert.Equal(t, int64(2), second.SpaceID)
	assert.Nil(t, second.EndedAt)
	assert.Nil(t, second.DurationMinutes)
}

func TestReconstructDurationFloorsToMinutes(t *testing.T) {
	end := t0.Add(17*time.Minute + 30*time.Second)
	transitions := []model.Transition{
		tr(1, 1, model.StatusFree, model.StatusOccupied, t0, nil),
		tr(2, 1, model.StatusOccupied, model.StatusFree, end, minutesPtr(17)),
	}

	res := Reconstruct(transitions, time.Time{}, end)
	require.Len(t, res.Sessions, 1)
	require.NotNil(t, res.Sessions[0].DurationMinutes)
	assert.Equal(t, int64(17), *res.Sessions[0].DurationMinutes)
	assert.Zero(t, res.Anomalies)
}

func TestReconstructSingleOpenSessionInvariant(t *testing.T) {
	var transitions []model.Transition
	at := t0
	// Alternating occupied/free, ending occupied: exactly one open session.
	for i := int64(0); i < 5; i++ {
		transitions = append(transitions,
			tr(i*2+1, 7, model.StatusFree, model.StatusOccupied, at, nil),
			tr(i*2+2, 7, model.StatusOccupied, model.StatusFree, at.Add(10*time.Minute), minutesPtr(10)),
		)
		at = at.Add(30 * time.Minute)
	}
	transitions = append(transitions, tr(100, 7, model.StatusFree, model.StatusOccupied, at, nil))

	res := Reconstruct(transitions, time.Time{}, at.Add(time.Hour))

	openCount := 0
	for _, s := range res.Sessions {
		if s.EndedAt == nil {
			openCount++
		}
	}
	assert.Equal(t, 1, openCount)
	assert.Len(t, res.Sessions, 6)
}

func TestReconstructWindowKeepsUnclampedStart(t *testing.T) {
	// Session runs t0 .. t0+60m; the query window starts at t0+30m mid-session.
	transitions := []model.Transition{
		tr(1, 1, model.StatusFree, model.StatusOccupied, t0, nil),
		tr(2, 1, model.StatusOccupied, model.StatusFree, t0.Add(60*time.Minute), minutesPtr(60)),
		// A second session entirely before the window must not surface.
		tr(3, 2, model.StatusFree, model.StatusOccupied, t0.Add(-3*time.Hour), nil),
		tr(4, 2, model.StatusOccupied, model.StatusFree, t0.Add(-2*time.Hour), minutesPtr(60)),
	}

	from := t0.Add(30 * time.Minute)
	res := Reconstruct(transitions, from, t0.Add(2*time.Hour))
	require.Len(t, res.Sessions, 1)
	// The start is the true opening time, not truncated to the window.
	assert.Equal(t, t0, res.Sessions[0].StartedAt)
}

func TestReconstructUpperBoundExcludesLaterTransitions(t *testing.T) {
	transitions := []model.Transition{
		tr(1, 1, model.StatusFree, model.StatusOccupied, t0, nil),
		tr(2, 1, model.StatusOccupied, model.StatusFree, t0.Add(45*time.Minute), minutesPtr(45)),
	}

	// Query bounded before the close: the session reads as still open.
	res := Reconstruct(transitions, time.Time{}, t0.Add(20*time.Minute))
	require.Len(t, res.Sessions, 1)
	assert.Nil(t, res.Sessions[0].EndedAt)
}

func TestReconstructRepairsMalformedSequences(t *testing.T) {
	transitions := []model.Transition{
		// Close with no matching open.
		tr(1, 3, model.StatusOccupied, model.StatusFree, t0, minutesPtr(12)),
		// Normal session whose recorded duration disagrees with timestamps.
		tr(2, 3, model.StatusFree, model.StatusOccupied, t0.Add(10*time.Minute), nil),
		tr(3, 3, model.StatusOccupied, model.StatusFree, t0.Add(25*time.Minute), minutesPtr(99)),
	}

	res := Reconstruct(transitions, time.Time{}, t0.Add(time.Hour))
	require.Len(t, res.Sessions, 1)
	require.NotNil(t, res.Sessions[0].DurationMinutes)
	assert.Equal(t, int64(15), *res.Sessions[0].DurationMinutes)
	assert.Equal(t, 2, res.Anomalies)
}

func TestReconstructUnknownToFreeOpensNothing(t *testing.T) {
	transitions := []model.Transition{
		tr(1, 4, model.StatusUnknown, model.StatusFree, t0, nil),
	}
	res := Reconstruct(transitions, time.Time{}, t0.Add(time.Hour))
	assert.Empty(t, res.Sessions)
	assert.Zero(t, res.Anomalies)
}
