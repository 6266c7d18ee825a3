package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/XXUCHAN/gapboard/internal/graph"
	"github.com/XXUCHAN/gapboard/internal/models"
	"github.com/XXUCHAN/gapboard/internal/session"
	"github.com/XXUCHAN/gapboard/internal/stream"
)

// BlockHandler exposes every structural mutation of a strategy's block graph.
// Each successful mutation stamps the session and pushes the fresh snapshot
// to stream subscribers.
type BlockHandler struct {
	Sessions *session.Manager
	Hub      *stream.Hub
	Logger   *zap.Logger
}

func (h *BlockHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/strategies/:id")
	group.GET("/blocks", h.listBlocks)
	group.POST("/blocks", h.createBlock)
	group.DELETE("/blocks/:blockID", h.deleteBlock)
	group.PATCH("/blocks/:blockID/position", h.setPosition)
	group.POST("/drop", h.canvasDrop)
	group.POST("/gaps/:blockID/drop", h.gapDrop)
	group.POST("/gaps/:blockID/refresh", h.refreshGap)
	group.POST("/refresh", h.refreshAll)
	group.PATCH("/conditions/:blockID", h.updateCondition)
	group.POST("/conditions/:blockID/right-ref", h.setRightRef)
	group.POST("/groups/:blockID/link", h.linkGroup)
	group.POST("/groups/:blockID/conditions", h.addCondition)
	group.POST("/groups/:blockID/actions", h.addActionBlock)
	group.POST("/actions/cleanup", h.createCleanup)
	group.POST("/actions/:blockID/intents", h.addIntent)
	group.DELETE("/actions/:blockID/intents/:index", h.removeIntent)
	group.GET("/selection", h.getSelection)
	group.PUT("/selection", h.setSelection)
	group.DELETE("/selection", h.clearSelection)
}

func (h *BlockHandler) strategy(c *gin.Context) (*session.Strategy, bool) {
	s, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		Fail(c, err)
		return nil, false
	}
	return s, true
}

func (h *BlockHandler) broadcast(s *session.Strategy) {
	s.Touch()
	if h.Hub != nil {
		h.Hub.EmitBlocks(s.ID, s.Engine.Blocks())
	}
}

func (h *BlockHandler) listBlocks(c *gin.Context) {
	s, ok := h.strategy(c)
	if !ok {
		return
	}
	blocks := s.Engine.Blocks()
	Ok(c, blocks, map[string]any{"total": len(blocks)})
}

type createBlockRequest struct {
	Kind     models.BlockKind   `json:"kind"`
	Payload  models.DragPayload `json:"payload"`
	Position *graph.Pos         `json:"position"`
}

func (h *BlockHandler) createBlock(c *gin.Context) {
	s, ok := h.strategy(c)
	if !ok {
		return
	}
	var req createBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	blk, err := s.Engine.CreateBlock(c.Request.Context(), req.Kind, req.Payload, req.Position)
	if err != nil {
		Fail(c, err)
		return
	}
	h.broadcast(s)
	Ok(c, blk, nil)
}

func (h *BlockHandler) deleteBlock(c *gin.Context) {
	s, ok := h.strategy(c)
	if !ok {
		return
	}
	removed, err := s.Engine.DeleteBlock(c.Param("blockID"))
	if err != nil {
		Fail(c, err)
		return
	}
	s.Deselect(removed...)
	h.broadcast(s)
	Ok(c, map[string]any{"removed": removed}, nil)
}

func (h *BlockHandler) setPosition(c *gin.Context) {
	s, ok := h.strategy(c)
	if !ok {
		return
	}
	var pos graph.Pos
	if err := c.ShouldBindJSON(&pos); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if err := s.Engine.SetPosition(c.Param("blockID"), pos); err != nil {
		Fail(c, err)
		return
	}
	h.broadcast(s)
	Ok(c, nil, nil)
}

type dropRequest struct {
	Payload models.DragPayload `json:"payload"`
	X       float64            `json:"x"`
	Y       float64            `json:"y"`
}

// canvasDrop lands a drag payload on the open canvas. A malformed payload is
// reported as ignored rather than failed: drops are fire-and-forget from the
// editor's point of view and must never wedge the UI.
func (h *BlockHandler) canvasDrop(c *gin.Context) {
	s, ok := h.strategy(c)
	if !ok {
		return
	}
	var req dropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	blk, err := s.Engine.HandleCanvasDrop(c.Request.Context(), req.Payload, graph.Pos{X: req.X, Y: req.Y})
	if err != nil {
		if errors.Is(err, graph.ErrBadPayload) {
			if h.Logger != nil {
				h.Logger.Warn("canvas drop ignored",
					zap.String("strategy_id", s.ID),
					zap.String("action", string(req.Payload.Action)),
					zap.String("kind", string(req.Payload.Kind)),
				)
			}
			Ok(c, nil, map[string]any{"ignored": true})
			return
		}
		Fail(c, err)
		return
	}
	h.broadcast(s)
	Ok(c, blk, nil)
}

type gapDropRequest struct {
	Payload models.DragPayload `json:"payload"`
	Zone    *models.Market     `json:"zone"`
}

func (h *BlockHandler) gapDrop(c *gin.Context) {
	s, ok := h.strategy(c)
	if !ok {
		return
	}
	var req gapDropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if err := s.Engine.HandleGapDrop(c.Request.Context(), c.Param("blockID"), req.Zone, req.Payload); err != nil {
		Fail(c, err)
		return
	}
	h.broadcast(s)
	Ok(c, nil, nil)
}

func (h *BlockHandler) refreshGap(c *gin.Context) {
	s, ok := h.strategy(c)
	if !ok {
		return
	}
	if err := s.Engine.RefreshGap(c.Request.Context(), c.Param("blockID")); err != nil {
		Fail(c, err)
		return
	}
	h.broadcast(s)
	Ok(c, nil, nil)
}

func (h *BlockHandler) refreshAll(c *gin.Context) {
	s, ok := h.strategy(c)
	if !ok {
		return
	}
	if err := s.Engine.RefreshAllGaps(c.Request.Context()); err != nil {
		Fail(c, err)
		return
	}
	h.broadcast(s)
	Ok(c, nil, nil)
}

type conditionRequest struct {
	Left       json.RawMessage `json:"left"`
	Op         *string         `json:"op"`
	ClearRight bool            `json:"clearRight"`
}

// coerceLeft mirrors the editor's numeric input: a number is taken as-is, a
// numeric string is parsed, anything else clears the operand.
func coerceLeft(raw json.RawMessage) (*float64, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f, false
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			return &v, false
		}
	}
	return nil, true
}

func (h *BlockHandler) updateCondition(c *gin.Context) {
	s, ok := h.strategy(c)
	if !ok {
		return
	}
	var req conditionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	upd := graph.ConditionUpdate{ClearRight: req.ClearRight}
	upd.Left, upd.ClearLeft = coerceLeft(req.Left)
	if req.Op != nil {
		op := models.Operator(*req.Op)
		upd.Op = &op
	}
	if err := s.Engine.UpdateCondition(c.Param("blockID"), upd); err != nil {
		Fail(c, err)
		return
	}
	h.broadcast(s)
	Ok(c, nil, nil)
}

func (h *BlockHandler) setRightRef(c *gin.Context) {
	s, ok := h.strategy(c)
	if !ok {
		return
	}
	var p models.DragPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	refID, err := s.Engine.SetConditionRightRef(c.Param("blockID"), p)
	if err != nil {
		Fail(c, err)
		return
	}
	h.broadcast(s)
	Ok(c, map[string]any{"rightRefId": refID}, nil)
}

type linkRequest struct {
	ActionID string `json:"actionId"`
}

func (h *BlockHandler) linkGroup(c *gin.Context) {
	s, ok := h.strategy(c)
	if !ok {
		return
	}
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ActionID == "" {
		Error(c, http.StatusBadRequest, "actionId required", nil)
		return
	}
	if err := s.Engine.ConnectGroupToAction(c.Param("blockID"), req.ActionID); err != nil {
		Fail(c, err)
		return
	}
	h.broadcast(s)
	Ok(c, nil, nil)
}

func (h *BlockHandler) addCondition(c *gin.Context) {
	s, ok := h.strategy(c)
	if !ok {
		return
	}
	cond, err := s.Engine.AddConditionToGroup(c.Param("blockID"))
	if err != nil {
		Fail(c, err)
		return
	}
	h.broadcast(s)
	Ok(c, cond, nil)
}

// addActionBlock appends a fresh action after a condition group. When the
// group already pointed at an action holding buys, the matching sell intents
// come back as a cleanup suggestion for the UI to offer.
func (h *BlockHandler) addActionBlock(c *gin.Context) {
	s, ok := h.strategy(c)
	if !ok {
		return
	}
	act, cleanup, err := s.Engine.AddActionAfterGroup(c.Param("blockID"))
	if err != nil {
		Fail(c, err)
		return
	}
	h.broadcast(s)
	var meta map[string]any
	if len(cleanup) > 0 {
		labels := make([]string, 0, len(cleanup))
		for _, a := range cleanup {
			labels = append(labels, models.ActionLabel(a))
		}
		meta = map[string]any{
			"suggestedCleanup":       cleanup,
			"suggestedCleanupLabels": labels,
		}
	}
	Ok(c, act, meta)
}

type cleanupRequest struct {
	Actions []models.ActionType `json:"actions"`
}

func (h *BlockHandler) createCleanup(c *gin.Context) {
	s, ok := h.strategy(c)
	if !ok {
		return
	}
	var req cleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	act, err := s.Engine.CreateCleanupAction(req.Actions)
	if err != nil {
		Fail(c, err)
		return
	}
	h.broadcast(s)
	Ok(c, act, nil)
}

type intentRequest struct {
	Type models.ActionType `json:"type"`
}

func (h *BlockHandler) addIntent(c *gin.Context) {
	s, ok := h.strategy(c)
	if !ok {
		return
	}
	var req intentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Type == "" {
		Error(c, http.StatusBadRequest, "type required", nil)
		return
	}
	if err := s.Engine.AddAction(c.Param("blockID"), req.Type); err != nil {
		Fail(c, err)
		return
	}
	h.broadcast(s)
	Ok(c, nil, nil)
}

func (h *BlockHandler) removeIntent(c *gin.Context) {
	s, ok := h.strategy(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid index", nil)
		return
	}
	if err := s.Engine.RemoveAction(c.Param("blockID"), index); err != nil {
		Fail(c, err)
		return
	}
	h.broadcast(s)
	Ok(c, nil, nil)
}

type selectionRequest struct {
	IDs []string `json:"ids"`
}

func (h *BlockHandler) getSelection(c *gin.Context) {
	s, ok := h.strategy(c)
	if !ok {
		return
	}
	Ok(c, s.Selection(), nil)
}

func (h *BlockHandler) setSelection(c *gin.Context) {
	s, ok := h.strategy(c)
	if !ok {
		return
	}
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	blocks := s.Engine.Blocks()
	valid := make([]string, 0, len(req.IDs))
	for _, id := range req.IDs {
		if _, exists := blocks.Find(id); exists {
			valid = append(valid, id)
		}
	}
	s.ClearSelection()
	s.Select(valid...)
	Ok(c, s.Selection(), nil)
}

func (h *BlockHandler) clearSelection(c *gin.Context) {
	s, ok := h.strategy(c)
	if !ok {
		return
	}
	s.ClearSelection()
	Ok(c, []string{}, nil)
}
