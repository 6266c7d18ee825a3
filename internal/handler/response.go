package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/XXUCHAN/gapboard/internal/graph"
	"github.com/XXUCHAN/gapboard/internal/session"
	"github.com/XXUCHAN/gapboard/internal/sim"
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

// Fail maps the service's typed errors onto HTTP statuses.
func Fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrStrategyNotFound),
		errors.Is(err, graph.ErrBlockNotFound),
		errors.Is(err, sim.ErrExecutionNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, graph.ErrKindMismatch),
		errors.Is(err, graph.ErrBadPayload),
		errors.Is(err, sim.ErrNoActions):
		Error(c, http.StatusBadRequest, err.Error(), nil)
	default:
		Error(c, http.StatusInternalServerError, err.Error(), nil)
	}
}
