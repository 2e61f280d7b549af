package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"wheel_tracker/internal/models"
	"wheel_tracker/internal/tracker"
	"wheel_tracker/internal/validation"
)

type PositionHandler struct {
	Tracker *tracker.Tracker
}

func (h *PositionHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/positions")
	group.GET("", h.listPositions)
	group.POST("", h.createPosition)
	group.GET("/:id", h.getPosition)
	group.PATCH("/:id", h.updatePosition)
	group.DELETE("/:id", h.deletePosition)
	group.GET("/:id/alerts", h.positionAlerts)
}

func (h *PositionHandler) listPositions(c *gin.Context) {
	filter := models.PositionFilter{
		Ticker:     strings.TrimSpace(c.Query("ticker")),
		OptionType: models.OptionType(strings.ToLower(strings.TrimSpace(c.Query("option_type")))),
		Status:     models.PositionStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
	}
	if filter.OptionType != "" && !filter.OptionType.Valid() {
		Error(c, http.StatusBadRequest, "option_type must be put or call", nil)
		return
	}
	if filter.Status != "" && !filter.Status.Valid() {
		Error(c, http.StatusBadRequest, "status must be open, closed or assigned", nil)
		return
	}
	items, err := h.Tracker.Positions.List(c.Request.Context(), filter)
	if err != nil {
		Fail(c, err)
		return
	}
	if items == nil {
		items = []models.Position{}
	}
	Ok(c, items, map[string]any{"count": len(items)})
}

func (h *PositionHandler) createPosition(c *gin.Context) {
	raw, err := readFields(c)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	input, err := validation.ParseCreate(raw)
	if err != nil {
		Fail(c, err)
		return
	}
	p, err := h.Tracker.Positions.Create(c.Request.Context(), input)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, p, nil)
}

func (h *PositionHandler) getPosition(c *gin.Context) {
	p, err := h.Tracker.Positions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, p, nil)
}

func (h *PositionHandler) updatePosition(c *gin.Context) {
	raw, err := readFields(c)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	pt, err := validation.ParsePatch(raw)
	if err != nil {
		Fail(c, err)
		return
	}
	p, err := h.Tracker.Positions.Update(c.Request.Context(), c.Param("id"), pt)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, p, nil)
}

func (h *PositionHandler) deletePosition(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := h.Tracker.Positions.Delete(ctx, id); err != nil {
		Fail(c, err)
		return
	}
	if err := h.Tracker.Strategy.Undismiss(ctx, id); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{"id": id, "deleted": true}, nil)
}

func (h *PositionHandler) positionAlerts(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	items, err := h.Tracker.PositionAlerts(ctx, id)
	if err != nil {
		Fail(c, err)
		return
	}
	if items == nil {
		items = []models.StrategyAlert{}
	}
	Ok(c, items, map[string]any{"dismissed": h.Tracker.Strategy.Dismissed(ctx)[id]})
}

// readFields flattens a JSON object into the string form the validation layer
// reads. null becomes "" so a PATCH can clear optional fields.
func readFields(c *gin.Context) (map[string]string, error) {
	var body map[string]any
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	raw := make(map[string]string, len(body))
	for k, v := range body {
		switch val := v.(type) {
		case nil:
			raw[k] = ""
		case string:
			raw[k] = val
		case json.Number:
			raw[k] = val.String()
		case bool:
			raw[k] = strconv.FormatBool(val)
		default:
			return nil, fmt.Errorf("field %s must be a string, number, boolean or null", k)
		}
	}
	return raw, nil
}
