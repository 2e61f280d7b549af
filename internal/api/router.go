// Package api serves the position book, reports and alert controls over JSON.
package api

import (
	"github.com/gin-gonic/gin"

	"wheel_tracker/internal/tracker"
)

// NewRouter builds the engine with every handler registered.
func NewRouter(tr *tracker.Tracker) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	(&HealthHandler{Tracker: tr}).Register(r)
	(&PositionHandler{Tracker: tr}).Register(r)
	(&ReportHandler{Tracker: tr}).Register(r)
	return r
}
