package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"parking-status-backend/internal/stats"
	"parking-status-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	agg     *stats.Aggregator
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, agg *stats.Aggregator, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		agg:     agg,
		webpush: webpushOptions,
	}
}
