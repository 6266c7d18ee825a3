package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/XXUCHAN/gapboard/internal/session"
)

type StrategyHandler struct {
	Sessions *session.Manager
}

func (h *StrategyHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/strategies")
	group.POST("", h.create)
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.PUT("/:id", h.rename)
	group.DELETE("/:id", h.remove)
}

type strategyView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Blocks    int    `json:"blocks"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

func viewOf(s *session.Strategy) strategyView {
	return strategyView{
		ID:        s.ID,
		Name:      s.Name,
		Blocks:    len(s.Engine.Blocks()),
		CreatedAt: s.CreatedAt.UnixMilli(),
		UpdatedAt: s.UpdatedAt().UnixMilli(),
	}
}

type createStrategyRequest struct {
	Name string `json:"name"`
}

func (h *StrategyHandler) create(c *gin.Context) {
	var req createStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Untitled Strategy"
	}
	s := h.Sessions.Create(name)
	Ok(c, viewOf(s), nil)
}

func (h *StrategyHandler) list(c *gin.Context) {
	items := h.Sessions.List()
	views := make([]strategyView, 0, len(items))
	for _, s := range items {
		views = append(views, viewOf(s))
	}
	Ok(c, views, map[string]any{"total": len(views)})
}

func (h *StrategyHandler) get(c *gin.Context) {
	s, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, viewOf(s), nil)
}

func (h *StrategyHandler) rename(c *gin.Context) {
	var req createStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		Error(c, http.StatusBadRequest, "name required", nil)
		return
	}
	if err := h.Sessions.Rename(c.Param("id"), name); err != nil {
		Fail(c, err)
		return
	}
	s, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, viewOf(s), nil)
}

func (h *StrategyHandler) remove(c *gin.Context) {
	if err := h.Sessions.Delete(c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, map[string]any{"id": c.Param("id")}, nil)
}
