package handler

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/XXUCHAN/gapboard/internal/stream"
)

// StreamHandler upgrades /ws to a websocket and forwards hub events to the
// client as JSON. An optional strategyId query narrows the feed to one
// strategy; without it the client sees everything.
type StreamHandler struct {
	Hub    *stream.Hub
	Logger *zap.Logger
	Buffer int
}

func (h *StreamHandler) Register(r *gin.Engine) {
	r.GET("/ws", h.serve)
}

func (h *StreamHandler) serve(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("ws accept failed", zap.Error(err))
		}
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	strategyID := c.Query("strategyId")
	events, cancel := h.Hub.Subscribe(strategyID, h.Buffer)
	defer cancel()

	ctx, stop := context.WithCancel(c.Request.Context())
	defer stop()

	// Drain client frames so close and ping handling keep working; the feed
	// is one-way.
	go func() {
		defer stop()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "bye")
			return
		case ev := <-events:
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				if h.Logger != nil && !errors.Is(err, context.Canceled) {
					h.Logger.Debug("ws write failed", zap.Error(err))
				}
				return
			}
		}
	}
}
