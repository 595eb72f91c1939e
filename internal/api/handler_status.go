package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parking-status-backend/internal/store"
)

// GetStatuses handles GET /api/status: the label -> status mapping polled by
// the dashboard.
func (h *Handler) GetStatuses(c *gin.Context) {
	statuses, err := h.store.CurrentStatuses(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve statuses"})
		return
	}
	c.JSON(http.StatusOK, statuses)
}

// GetSpaces handles GET /api/spaces.
func (h *Handler) GetSpaces(c *gin.Context) {
	spaces, err := h.store.Spaces(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve spaces"})
		return
	}
	c.JSON(http.StatusOK, spaces)
}

type putStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// PutSpaceStatus handles PUT /api/spaces/:label/status, the manual override.
// The body token goes through exactly the same state machine as a feed
// signal, so the ledger and sessions stay consistent.
func (h *Handler) PutSpaceStatus(c *gin.Context) {
	var req putStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": `Invalid status. Use "free" or "occupied"`})
		return
	}

	label := c.Param("label")
	if _, err := h.store.Resolve(c.Request.Context(), label); err != nil {
		if errors.Is(err, store.ErrSpaceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Space not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve space"})
		return
	}

	outcome, err := h.store.Apply(c.Request.Context(), label, req.Status, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply status change"})
		return
	}

	switch {
	case outcome.Applied:
		c.JSON(http.StatusOK, gin.H{"message": "Status updated", "transition": outcome.Record})
	case outcome.Reason == store.IgnoreNoChange:
		c.JSON(http.StatusOK, gin.H{"message": "Status unchanged"})
	case outcome.Reason == store.IgnoreInvalidToken:
		c.JSON(http.StatusBadRequest, gin.H{"error": `Invalid status. Use "free" or "occupied"`})
	case outcome.Reason == store.IgnoreStaleSignal:
		c.JSON(http.StatusConflict, gin.H{"error": "A newer signal already applied"})
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "Space not found"})
	}
}
