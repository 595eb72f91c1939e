// Package sessions rebuilds occupancy sessions from the transition log alone.
// It is the independent counterpart of the incremental bookkeeping done on
// the write path: given the same log it must produce the same timeline, so
// it can answer arbitrary historical queries and act as a consistency check.
package sessions

import (
	"log"
	"sort"
	"time"

	"parking-status-backend/internal/model"
)

// Session is one reconstructed occupancy interval. EndedAt and
// DurationMinutes are nil while the session is still open.
type Session struct {
	SpaceID         int64      `json:"spaceId"`
	StartedAt       time.Time  `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt"`
	DurationMinutes *int64     `json:"durationMinutes"`
}

// Result carries the reconstructed timeline plus the number of log anomalies
// that had to be repaired along the way. A non-zero count means the upstream
// feed produced sequences the write path should have made impossible.
type Result struct {
	Sessions  []Session
	Anomalies int
}

// Reconstruct derives the session timeline from transitions ordered by
// occurred_at (ties by id), as produced by the ledger's range read. The
// caller must supply the log from the beginning of time up to the window's
// upper bound: a session opened before `from` but still running inside the
// window surfaces with its true, unclamped start time.
//
// Repair policy for malformed sequences: a free transition with no pending
// session is ignored, and a recorded session duration that disagrees with
// the transition timestamps is replaced by the recomputed value. Both are
// counted as anomalies, never query failures.
func Reconstruct(transitions []model.Transition, from, to time.Time) Result {
	pending := make(map[int64]Session)
	var closed []Session
	anomalies := 0

	for _, t := range transitions {
		if !to.IsZero() && t.OccurredAt.After(to) {
			continue
		}

		switch t.NewStatus {
		case model.StatusOccupied:
			if _, exists := pending[t.SpaceID]; exists {
				// Two opens in a row for one space. The write path's
				// idempotency guard rules this out; keep the earlier open.
				anomalies++
				log.Printf("sessions: space %d reopened while already open at %s", t.SpaceID, t.OccurredAt)
				continue
			}
			pending[t.SpaceID] = Session{SpaceID: t.SpaceID, StartedAt: t.OccurredAt}

		case model.StatusFree:
			open, exists := pending[t.SpaceID]
			if !exists {
				if t.PriorStatus == model.StatusOccupied {
					// A close without a matching open: redundant closing
					// event, dropped.
					anomalies++
					log.Printf("sessions: space %d closed with no open session at %s", t.SpaceID, t.OccurredAt)
				}
				// unknown -> free opens nothing and closes nothing.
				continue
			}

			minutes := int64(t.OccurredAt.Sub(open.StartedAt) / time.Minute)
			if t.SessionMinutes == nil || *t.SessionMinutes != minutes {
				// Recorded duration missing or inconsistent with the
				// timestamps; fall back to the recomputed value.
				anomalies++
				log.Printf("sessions: space %d duration repaired to %dm for session started %s", t.SpaceID, minutes, open.StartedAt)
			}
			end := t.OccurredAt
			open.EndedAt = &end
			open.DurationMinutes = &minutes
			closed = append(closed, open)
			delete(pending, t.SpaceID)
		}
	}

	out := make([]Session, 0, len(closed)+len(pending))
	for _, s := range closed {
		// Closed strictly before the window start: the session never
		// overlaps the query window.
		if !from.IsZero() && s.EndedAt.Before(from) {
			continue
		}
		out = append(out, s)
	}
	for _, s := range pending {
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].SpaceID < out[j].SpaceID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return Result{Sessions: out, Anomalies: anomalies}
}
