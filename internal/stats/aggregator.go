// Package stats computes point-in-time and periodic occupancy statistics
// from the space directory and the transition ledger.
package stats

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"parking-status-backend/internal/model"
	"parking-status-backend/internal/sessions"
	"parking-status-backend/internal/store"
)

// Current is the lot-wide tally at a point in time.
type Current struct {
	TotalSpaces   int64   `json:"total_spaces"`
	OccupiedCount int64   `json:"occupied_count"`
	FreeCount     int64   `json:"free_count"`
	OccupancyPct  float64 `json:"occupancy_percentage"`
}

// SpaceAverage is the mean closed-session duration for one space over a window.
type SpaceAverage struct {
	SpaceID        int64   `json:"space_id"`
	Label          string  `json:"label"`
	AverageMinutes float64 `json:"average_minutes"`
	SessionCount   int     `json:"session_count"`
}

// Aggregator answers the read-side statistics queries and captures periodic
// snapshots. It is a pure reader of the store apart from SaveSnapshot.
type Aggregator struct {
	store    store.Store
	interval time.Duration
}

// NewAggregator creates an aggregator whose snapshots tick at interval.
func NewAggregator(s store.Store, interval time.Duration) *Aggregator {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Aggregator{store: s, interval: interval}
}

// CurrentStats tallies the directory snapshot. No log scan is involved.
func (a *Aggregator) CurrentStats(ctx context.Context) (Current, error) {
	counts, err := a.store.CountByStatus(ctx)
	if err != nil {
		return Current{}, err
	}

	cur := Current{
		TotalSpaces:   counts.Total,
		OccupiedCount: counts.Occupied,
		FreeCount:     counts.Free,
	}
	if counts.Total > 0 {
		cur.OccupancyPct = math.Round(float64(counts.Occupied)*10000/float64(counts.Total)) / 100
	}
	return cur, nil
}

// Sessions reconstructs the occupancy timeline for the window and optional
// space filter. The ledger is read from its beginning up to the window's
// upper bound so that sessions opened before `from` keep their true start.
func (a *Aggregator) Sessions(ctx context.Context, spaceID *int64, from, to time.Time) (sessions.Result, error) {
	transitions, err := a.store.TransitionsFor(ctx, spaceID, time.Time{}, to)
	if err != nil {
		return sessions.Result{}, err
	}
	res := sessions.Reconstruct(transitions, from, to)
	if res.Anomalies > 0 {
		log.Printf("stats: session reconstruction repaired %d ledger anomalies", res.Anomalies)
	}
	return res, nil
}

// AverageDuration returns the mean closed-session minutes for one space over
// the window, or nil when no session closed in range.
func (a *Aggregator) AverageDuration(ctx context.Context, spaceID int64, from, to time.Time) (*float64, error) {
	res, err := a.Sessions(ctx, &spaceID, from, to)
	if err != nil {
		return nil, err
	}

	var sum int64
	var n int
	for _, s := range res.Sessions {
		if s.DurationMinutes == nil {
			continue
		}
		sum += *s.DurationMinutes
		n++
	}
	if n == 0 {
		return nil, nil
	}
	avg := math.Round(float64(sum)/float64(n)*100) / 100
	return &avg, nil
}

// AverageDurations computes per-space closed-session averages over the
// window. Spaces with no closed session in range are omitted.
func (a *Aggregator) AverageDurations(ctx context.Context, from, to time.Time) ([]SpaceAverage, error) {
	res, err := a.Sessions(ctx, nil, from, to)
	if err != nil {
		return nil, err
	}

	type acc struct {
		sum int64
		n   int
	}
	bySpace := make(map[int64]*acc)
	for _, s := range res.Sessions {
		if s.DurationMinutes == nil {
			continue
		}
		if bySpace[s.SpaceID] == nil {
			bySpace[s.SpaceID] = &acc{}
		}
		bySpace[s.SpaceID].sum += *s.DurationMinutes
		bySpace[s.SpaceID].n++
	}

	spaces, err := a.store.Spaces(ctx)
	if err != nil {
		return nil, err
	}

	averages := make([]SpaceAverage, 0, len(bySpace))
	for _, sp := range spaces {
		agg, ok := bySpace[sp.ID]
		if !ok {
			continue
		}
		averages = append(averages, SpaceAverage{
			SpaceID:        sp.ID,
			Label:          sp.Label,
			AverageMinutes: math.Round(float64(agg.sum)/float64(agg.n)*100) / 100,
			SessionCount:   agg.n,
		})
	}
	return averages, nil
}

// TakeSnapshot persists the current tally. CapturedAt is truncated to the
// snapshot interval, so repeated calls within one tick collapse onto a
// single row.
func (a *Aggregator) TakeSnapshot(ctx context.Context) (model.OccupancySnapshot, error) {
	cur, err := a.CurrentStats(ctx)
	if err != nil {
		return model.OccupancySnapshot{}, err
	}

	snap := model.OccupancySnapshot{
		CapturedAt:    time.Now().UTC().Truncate(a.interval),
		TotalSpaces:   cur.TotalSpaces,
		OccupiedCount: cur.OccupiedCount,
		FreeCount:     cur.FreeCount,
		OccupancyPct:  cur.OccupancyPct,
	}
	if err := a.store.SaveSnapshot(ctx, snap); err != nil {
		return model.OccupancySnapshot{}, fmt.Errorf("take snapshot: %w", err)
	}
	return snap, nil
}

// Snapshots returns the stored trend series since the given time.
func (a *Aggregator) Snapshots(ctx context.Context, since time.Time) ([]model.OccupancySnapshot, error) {
	return a.store.Snapshots(ctx, since)
}

// Run captures snapshots on the configured interval until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) {
	log.Printf("stats: snapshot loop starting, interval %s", a.interval)

	timer := time.NewTimer(a.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("stats: snapshot loop shutting down")
			return
		case <-timer.C:
			if _, err := a.TakeSnapshot(ctx); err != nil {
				log.Printf("stats: snapshot capture failed: %v", err)
			}
			timer.Reset(a.interval)
		}
	}
}
