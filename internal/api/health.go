package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wheel_tracker/internal/models"
	"wheel_tracker/internal/tracker"
)

type HealthHandler struct {
	Tracker *tracker.Tracker
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) ready(c *gin.Context) {
	if h.Tracker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "tracker_missing"})
		return
	}
	if _, err := h.Tracker.Positions.List(c.Request.Context(), models.PositionFilter{}); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
