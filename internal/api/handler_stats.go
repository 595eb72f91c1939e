package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// GetStats handles GET /api/stats: the current lot-wide tally.
func (h *Handler) GetStats(c *gin.Context) {
	cur, err := h.agg.CurrentStats(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
		return
	}
	c.JSON(http.StatusOK, cur)
}

// GetAverageDurations handles GET /api/stats/average-durations?from=&to=:
// per-space mean closed-session duration. Defaults to the last 30 days.
func (h *Handler) GetAverageDurations(c *gin.Context) {
	now := time.Now().UTC()
	from := now.Add(-30 * 24 * time.Hour)
	to := now
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'from' timestamp format. Use RFC3339."})
			return
		}
		from = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'to' timestamp format. Use RFC3339."})
			return
		}
		to = t
	}

	averages, err := h.agg.AverageDurations(c.Request.Context(), from, to)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute average durations"})
		return
	}
	c.JSON(http.StatusOK, averages)
}

// GetSnapshots handles GET /api/stats/snapshots?hours=: the occupancy trend
// series for charts, default last 24 hours.
func (h *Handler) GetSnapshots(c *gin.Context) {
	hours := 24
	if raw := c.Query("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'hours' value"})
			return
		}
		hours = n
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	snaps, err := h.agg.Snapshots(c.Request.Context(), since)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve snapshots"})
		return
	}
	c.JSON(http.StatusOK, snaps)
}
