// Package feed consumes the asynchronous occupancy signal feed and drives
// each delivery through the ingestion pipeline. The feed gives no ordering
// or delivery guarantee; the pipeline tolerates duplicates, unknown spaces
// and malformed payloads without ever halting the subscription.
package feed

import (
	"context"
	"log"
	"time"

	"parking-status-backend/internal/notification"
	"parking-status-backend/internal/signal"
	"parking-status-backend/internal/store"
)

// Pipeline normalizes raw deliveries and applies them to the store.
type Pipeline struct {
	store    store.Store
	notifier *notification.WorkerPool
}

// NewPipeline creates the ingestion pipeline. The notifier may be nil when
// push notifications are disabled.
func NewPipeline(s store.Store, notifier *notification.WorkerPool) *Pipeline {
	return &Pipeline{store: s, notifier: notifier}
}

// HandleSignal processes one raw delivery. It never returns an error: every
// failure mode is logged and the next delivery proceeds independently.
func (p *Pipeline) HandleSignal(ctx context.Context, topic string, payload []byte, receivedAt time.Time) {
	label, err := signal.LabelFromTopic(topic)
	if err != nil {
		log.Printf("feed: dropping message on %q: %v", topic, err)
		return
	}

	outcome, err := p.store.Apply(ctx, label, string(payload), receivedAt)
	if err != nil {
		// Commit failure: fully rolled back, the feed keeps going.
		log.Printf("feed: commit failed for space %q: %v", label, err)
		return
	}

	if !outcome.Applied {
		switch outcome.Reason {
		case store.IgnoreNoChange:
			// Expected idempotent no-op under at-least-once delivery.
		default:
			log.Printf("feed: dropped signal for space %q: %s", label, outcome.Reason)
		}
		return
	}

	log.Printf("feed: space %q -> %s", label, outcome.Record.NewStatus)
	if p.notifier != nil && outcome.ClosedSession() {
		p.notifier.Dispatch(outcome.Record.SpaceID)
	}
}
