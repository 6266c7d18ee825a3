package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/XXUCHAN/gapboard/internal/models"
)

// HandleCanvasDrop applies a drop onto the open canvas. Create payloads
// instantiate a new block at the drop point; a GAP_RESULT move payload
// either repositions the existing block or, when the id is unknown (a copy
// dragged over from another strategy), materializes a free-floating copy.
// Anything else is a malformed payload: logged and ignored without touching
// the store.
func (e *Engine) HandleCanvasDrop(ctx context.Context, p models.DragPayload, pos Pos) (models.Block, error) {
	if p.Action == models.PayloadMove && p.Kind == models.KindGapResult {
		if _, exists := e.store.Snapshot().Find(p.ID); exists {
			if err := e.SetPosition(p.ID, pos); err != nil {
				return nil, err
			}
			blk, _ := e.store.Snapshot().Find(p.ID)
			return blk, nil
		}
		return e.copyForeignResult(p, pos)
	}

	if p.Action != models.PayloadCreate {
		e.logger.Warn("ignoring drop payload",
			zap.String("action", string(p.Action)),
			zap.String("kind", string(p.Kind)),
		)
		return nil, fmt.Errorf("canvas drop action %q: %w", p.Action, ErrBadPayload)
	}

	return e.CreateBlock(ctx, p.Kind, p, &pos)
}

// copyForeignResult lands a gap result dragged over from another strategy's
// editor as a fresh block; the source strategy keeps its own.
func (e *Engine) copyForeignResult(p models.DragPayload, pos Pos) (models.Block, error) {
	value := 0.0
	if p.Value != nil {
		value = *p.Value
	}
	ts := p.TS
	if ts == 0 {
		ts = e.nowMillis()
	}
	x, y := pos.X, pos.Y
	blk := models.GapResult{
		Base:  models.Base{ID: e.newID(), Kind: models.KindGapResult, X: &x, Y: &y},
		GapID: p.GapID,
		Value: value,
		TS:    ts,
	}
	err := e.store.Apply(func(bs Blocks) (Blocks, error) {
		return append(bs, blk), nil
	})
	if err != nil {
		return nil, err
	}
	return blk, nil
}
