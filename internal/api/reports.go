package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"wheel_tracker/internal/models"
	"wheel_tracker/internal/tracker"
)

type ReportHandler struct {
	Tracker *tracker.Tracker
}

func (h *ReportHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1")
	group.GET("/portfolio/metrics", h.metrics)
	group.GET("/cycles", h.cycles)
	group.GET("/alerts", h.listAlerts)
	group.POST("/alerts/:positionId/dismiss", h.dismiss)
	group.DELETE("/alerts/:positionId/dismiss", h.undismiss)
	group.DELETE("/alerts/dismissals", h.clearDismissals)
	group.GET("/strategy", h.getStrategy)
	group.PUT("/strategy", h.updateStrategy)
	group.GET("/prices", h.prices)
}

func (h *ReportHandler) metrics(c *gin.Context) {
	m, err := h.Tracker.Metrics(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, m, nil)
}

func (h *ReportHandler) cycles(c *gin.Context) {
	items, err := h.Tracker.Cycles(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	if items == nil {
		items = []models.WheelCycle{}
	}
	Ok(c, items, map[string]any{"count": len(items)})
}

func (h *ReportHandler) listAlerts(c *gin.Context) {
	all := c.Query("all") == "1" || strings.EqualFold(c.Query("all"), "true")
	items, err := h.Tracker.Alerts(c.Request.Context(), all)
	if err != nil {
		Fail(c, err)
		return
	}
	if items == nil {
		items = []models.StrategyAlert{}
	}
	Ok(c, items, map[string]any{"count": len(items), "include_dismissed": all})
}

func (h *ReportHandler) dismiss(c *gin.Context) {
	ctx := c.Request.Context()
	id := strings.TrimSpace(c.Param("positionId"))
	if _, err := h.Tracker.Positions.Get(ctx, id); err != nil {
		Fail(c, err)
		return
	}
	if err := h.Tracker.Strategy.Dismiss(ctx, id); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{"position_id": id, "dismissed": true}, nil)
}

func (h *ReportHandler) undismiss(c *gin.Context) {
	id := strings.TrimSpace(c.Param("positionId"))
	if err := h.Tracker.Strategy.Undismiss(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{"position_id": id, "dismissed": false}, nil)
}

func (h *ReportHandler) clearDismissals(c *gin.Context) {
	if err := h.Tracker.Strategy.ClearDismissals(c.Request.Context()); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{"cleared": true}, nil)
}

func (h *ReportHandler) getStrategy(c *gin.Context) {
	cfg := h.Tracker.Strategy.Config(c.Request.Context())
	Ok(c, cfg, map[string]any{"thresholds": cfg.Thresholds()})
}

type strategyRequest struct {
	ActiveStrategy       models.StrategyName `json:"active_strategy"`
	CustomRollThreshold  decimal.NullDecimal `json:"custom_roll_threshold"`
	CustomCloseThreshold decimal.NullDecimal `json:"custom_close_threshold"`
}

// updateStrategy applies custom thresholds (which activate the custom strategy) and
// active_strategy in a single validated write.
func (h *ReportHandler) updateStrategy(c *gin.Context) {
	var req strategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	err := h.Tracker.Strategy.Update(c.Request.Context(),
		req.ActiveStrategy, req.CustomRollThreshold, req.CustomCloseThreshold)
	if err != nil {
		Fail(c, err)
		return
	}
	h.getStrategy(c)
}

// prices is best effort: tickers without a price are listed in meta.missing.
func (h *ReportHandler) prices(c *gin.Context) {
	var tickers []string
	for _, t := range strings.Split(c.Query("tickers"), ",") {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			tickers = append(tickers, t)
		}
	}
	if len(tickers) == 0 {
		Error(c, http.StatusBadRequest, "tickers required", nil)
		return
	}
	got := h.Tracker.Oracle.GetPrices(c.Request.Context(), tickers)
	missing := []string{}
	for _, t := range tickers {
		if _, ok := got[t]; !ok {
			missing = append(missing, t)
		}
	}
	Ok(c, got, map[string]any{"missing": missing})
}
