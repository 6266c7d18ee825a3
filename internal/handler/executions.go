package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/XXUCHAN/gapboard/internal/graph"
	"github.com/XXUCHAN/gapboard/internal/models"
	"github.com/XXUCHAN/gapboard/internal/session"
	"github.com/XXUCHAN/gapboard/internal/sim"
)

// ExecutionHandler starts and stops simulated runs of a strategy's action
// blocks.
type ExecutionHandler struct {
	Sessions  *session.Manager
	Simulator *sim.Simulator
}

func (h *ExecutionHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/strategies/:id/executions", h.start)
	r.GET("/api/v1/strategies/:id/executions/log", h.log)
	r.GET("/api/v1/executions", h.active)
	r.DELETE("/api/v1/executions/:execID", h.stop)
}

type startExecutionRequest struct {
	ActionIDs []string `json:"actionIds"`
}

func (h *ExecutionHandler) start(c *gin.Context) {
	s, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	var req startExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}

	blocks := s.Engine.Blocks()
	var labels []string
	for _, id := range req.ActionIDs {
		blk, ok := blocks.Find(id)
		if !ok {
			Fail(c, fmt.Errorf("action %s: %w", id, graph.ErrBlockNotFound))
			return
		}
		act, isAction := blk.(models.Action)
		if !isAction {
			Fail(c, fmt.Errorf("action %s: %w", id, graph.ErrKindMismatch))
			return
		}
		for _, t := range act.Actions {
			labels = append(labels, models.ActionLabel(t))
		}
	}

	exec, err := h.Simulator.Start(s.ID, req.ActionIDs, labels)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, exec, nil)
}

func (h *ExecutionHandler) log(c *gin.Context) {
	s, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	entries := h.Simulator.History(s.ID)
	Ok(c, entries, map[string]any{"total": len(entries)})
}

func (h *ExecutionHandler) active(c *gin.Context) {
	items := h.Simulator.Active()
	Ok(c, items, map[string]any{"total": len(items)})
}

func (h *ExecutionHandler) stop(c *gin.Context) {
	entry, err := h.Simulator.Stop(c.Param("execID"))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, entry, nil)
}
