package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"parking-status-backend/config"
	"parking-status-backend/internal/mw"
	"parking-status-backend/internal/stats"
	"parking-status-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, agg *stats.Aggregator, webpushOptions *webpush.Options, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, agg, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/status", caching, handler.GetStatuses)
		api.GET("/spaces", caching, handler.GetSpaces)
		api.PUT("/spaces/:label/status", handler.PutSpaceStatus)

		api.GET("/sessions", handler.GetSessions)

		api.GET("/stats", caching, handler.GetStats)
		api.GET("/stats/average-durations", caching, handler.GetAverageDurations)
		api.GET("/stats/snapshots", caching, handler.GetSnapshots)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
