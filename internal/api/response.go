package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"wheel_tracker/internal/storage"
	"wheel_tracker/internal/strategy"
	"wheel_tracker/internal/validation"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Fail maps a domain error onto a status: bad input is 400, a missing record 404,
// anything else 500.
func Fail(c *gin.Context, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		Error(c, http.StatusBadRequest, "validation failed", map[string]any{"fields": verr.Fields})
	case errors.Is(err, storage.ErrNotFound):
		Error(c, http.StatusNotFound, "position not found", nil)
	case errors.Is(err, strategy.ErrInvalidThreshold), errors.Is(err, strategy.ErrUnknownStrategy):
		Error(c, http.StatusBadRequest, err.Error(), nil)
	default:
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
		Error(c, http.StatusInternalServerError, "internal error", nil)
	}
}
