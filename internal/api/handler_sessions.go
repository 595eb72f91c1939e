package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// sessionQueryLimit caps the history response like the dashboard table expects.
const sessionQueryLimit = 200

// GetSessions handles GET /api/sessions?space_id=&from=&to=: reconstructed
// occupancy sessions over a window, newest first. `from` and `to` are
// RFC3339; `from` defaults to 24 hours ago and `to` to now.
func (h *Handler) GetSessions(c *gin.Context) {
	var spaceID *int64
	if raw := c.Query("space_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid space_id"})
			return
		}
		spaceID = &id
	}

	now := time.Now().UTC()
	from := now.Add(-24 * time.Hour)
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

	res, err := h.agg.Sessions(c.Request.Context(), spaceID, from, to)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to reconstruct sessions"})
		return
	}

	// Newest first for the history table.
	list := res.Sessions
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	if len(list) > sessionQueryLimit {
		list = list[:sessionQueryLimit]
	}
	c.JSON(http.StatusOK, list)
}
