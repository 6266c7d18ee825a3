package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/XXUCHAN/gapboard/internal/models"
	"github.com/XXUCHAN/gapboard/internal/price"
)

// Pos is a display coordinate for a block on the canvas.
type Pos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ConditionUpdate is a partial edit of a condition block. Nil fields are
// left untouched; ClearLeft / ClearRight remove the respective operand.
type ConditionUpdate struct {
	Left       *float64
	ClearLeft  bool
	Op         *models.Operator
	ClearRight bool
}

// Engine implements every structural operation over one strategy's block
// store. Price fetches resolve before the dependent mutation is applied, so
// observers never see a half-attached ref; the mutation itself runs
// atomically against the latest snapshot.
type Engine struct {
	store  *Store
	prices price.Source
	logger *zap.Logger
	newID  func() string
	now    func() time.Time
}

func NewEngine(store *Store, prices price.Source, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:  store,
		prices: prices,
		logger: logger,
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// Blocks returns the current snapshot.
func (e *Engine) Blocks() Blocks {
	return e.store.Snapshot()
}

func (e *Engine) nowMillis() int64 {
	return e.now().UnixMilli()
}

func withPos(b models.Block, pos *Pos) models.Block {
	if pos == nil {
		return b
	}
	x, y := pos.X, pos.Y
	switch v := b.(type) {
	case models.GapFormula:
		v.X, v.Y = &x, &y
		return v
	case models.PriceRefBlock:
		v.X, v.Y = &x, &y
		return v
	case models.GapResult:
		v.X, v.Y = &x, &y
		return v
	case models.Condition:
		v.X, v.Y = &x, &y
		return v
	case models.ConditionGroup:
		v.X, v.Y = &x, &y
		return v
	case models.Action:
		v.X, v.Y = &x, &y
		return v
	}
	return b
}

// CreateBlock appends a fresh block of the given kind. PRICE_REF creation
// fetches its price first; the block appears only after the fetch resolves.
func (e *Engine) CreateBlock(ctx context.Context, kind models.BlockKind, p models.DragPayload, pos *Pos) (models.Block, error) {
	id := e.newID()
	var blk models.Block

	switch kind {
	case models.KindGap:
		blk = models.GapFormula{
			Base: models.Base{ID: id, Kind: models.KindGap},
			Refs: []models.PriceRef{},
		}
	case models.KindPriceRef:
		q, err := e.prices.Fetch(ctx, p.Market, p.Symbol, p.Provider)
		if err != nil {
			return nil, fmt.Errorf("fetch price for new ref: %w", err)
		}
		blk = models.PriceRefBlock{
			Base:     models.Base{ID: id, Kind: models.KindPriceRef},
			Market:   q.Market,
			Symbol:   q.Symbol,
			Provider: q.Provider,
			Price:    q.Price,
			TS:       q.TS,
		}
	case models.KindCondition:
		blk = models.Condition{
			Base: models.Base{ID: id, Kind: models.KindCondition},
			Op:   models.OpGTE,
		}
	case models.KindConditionGroup:
		blk = models.ConditionGroup{
			Base:       models.Base{ID: id, Kind: models.KindConditionGroup},
			Conditions: []string{},
		}
	case models.KindAction:
		if p.ActionType != "" {
			// Action-type chips only drop inside an Action block, never on
			// the canvas.
			return nil, fmt.Errorf("create action with inline type: %w", ErrBadPayload)
		}
		blk = models.Action{
			Base:    models.Base{ID: id, Kind: models.KindAction},
			Actions: []models.ActionType{},
		}
	default:
		return nil, fmt.Errorf("create kind %q: %w", kind, ErrBadPayload)
	}

	blk = withPos(blk, pos)
	if err := e.store.Apply(func(bs Blocks) (Blocks, error) {
		return append(bs, blk), nil
	}); err != nil {
		return nil, err
	}
	return blk, nil
}

// DeleteBlock removes the block and everything the cascade rules tie to it:
// a gap formula takes its result mirror, a condition group takes its member
// conditions and linked actions. Deleting a lone condition also prunes its
// id from the owning group's member list. Returns every removed id so the
// caller can clear selections.
func (e *Engine) DeleteBlock(id string) ([]string, error) {
	var removed []string
	err := e.store.Apply(func(bs Blocks) (Blocks, error) {
		next, ids, err := deleteCascade(bs, id)
		if err != nil {
			return nil, err
		}
		removed = ids
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func deleteCascade(bs Blocks, id string) (Blocks, []string, error) {
	blk, ok := bs.Find(id)
	if !ok {
		return nil, nil, fmt.Errorf("delete %s: %w", id, ErrBlockNotFound)
	}

	drop := map[string]bool{id: true}
	switch blk.(type) {
	case models.GapFormula:
		for _, other := range bs {
			if r, isResult := other.(models.GapResult); isResult && r.GapID == id {
				drop[r.ID] = true
			}
		}
	case models.ConditionGroup:
		for _, other := range bs {
			switch o := other.(type) {
			case models.Condition:
				if o.ParentGroupID == id {
					drop[o.ID] = true
				}
			case models.Action:
				if o.PrevConditionID == id {
					drop[o.ID] = true
				}
			}
		}
	}

	out := bs.filter(func(b models.Block) bool { return !drop[b.BlockID()] })

	// Clear references from surviving blocks into the removed set so no link
	// dangles.
	for _, b := range out {
		switch v := b.(type) {
		case models.Condition:
			if drop[v.RightRefID] {
				v.RightRefID = ""
				out = out.replace(v.ID, v)
			}
		case models.ConditionGroup:
			if drop[v.NextActionID] {
				v.NextActionID = ""
				out = out.replace(v.ID, v)
			}
		case models.Action:
			if drop[v.PrevConditionID] {
				v.PrevConditionID = ""
				out = out.replace(v.ID, v)
			}
		}
	}

	// Keep the owning group's member list consistent when a single condition
	// goes away.
	if cond, isCond := blk.(models.Condition); isCond && cond.ParentGroupID != "" {
		if grp, found := out.Group(cond.ParentGroupID); found {
			members := make([]string, 0, len(grp.Conditions))
			for _, cid := range grp.Conditions {
				if cid != id {
					members = append(members, cid)
				}
			}
			grp.Conditions = members
			out = out.replace(grp.ID, grp)
		}
	}

	ids := make([]string, 0, len(drop))
	for _, b := range bs {
		if drop[b.BlockID()] {
			ids = append(ids, b.BlockID())
		}
	}
	return out, ids, nil
}

// attachRef upserts the formula's ref for the ref's market role; a second
// ref for an occupied role replaces the first.
func attachRef(bs Blocks, gapID string, ref models.PriceRef) (Blocks, error) {
	gap, ok := bs.Gap(gapID)
	if !ok {
		if _, exists := bs.Find(gapID); exists {
			return nil, fmt.Errorf("attach ref to %s: %w", gapID, ErrKindMismatch)
		}
		return nil, fmt.Errorf("attach ref to %s: %w", gapID, ErrBlockNotFound)
	}
	refs := make([]models.PriceRef, 0, 2)
	for _, r := range gap.Refs {
		if r.Market != ref.Market {
			refs = append(refs, r)
		}
	}
	gap.Refs = append(refs, ref)
	return bs.replace(gapID, gap), nil
}

// HandleGapDrop applies a drop onto a gap formula. With a target role set
// (the spot/perp zones) a mismatched PRICE_REF payload is rejected; without
// one the payload's own market decides the role. Move payloads copy the
// source block's snapshot rather than consuming it, except GAP_RESULT moves
// which reassign the result's owning formula.
func (e *Engine) HandleGapDrop(ctx context.Context, gapID string, target *models.Market, p models.DragPayload) error {
	if p.Kind == models.KindGapResult && p.Action == models.PayloadMove {
		return e.store.Apply(func(bs Blocks) (Blocks, error) {
			res, ok := bs.Find(p.ID)
			if !ok {
				return nil, fmt.Errorf("move result %s: %w", p.ID, ErrBlockNotFound)
			}
			r, isResult := res.(models.GapResult)
			if !isResult {
				return nil, fmt.Errorf("move result %s: %w", p.ID, ErrKindMismatch)
			}
			r.GapID = gapID
			r.TS = e.nowMillis()
			return recomputeGap(bs.replace(r.ID, r), gapID, e.nowMillis()), nil
		})
	}

	if p.Kind != models.KindPriceRef {
		return fmt.Errorf("gap drop kind %q: %w", p.Kind, ErrBadPayload)
	}

	role := p.Market
	if target != nil {
		if p.Market != "" && p.Market != *target {
			return fmt.Errorf("market %q onto %q zone: %w", p.Market, *target, ErrBadPayload)
		}
		role = *target
	}
	if role != models.MarketSpot && role != models.MarketPerp {
		return fmt.Errorf("gap drop without market role: %w", ErrBadPayload)
	}

	switch p.Action {
	case models.PayloadMove:
		return e.store.Apply(func(bs Blocks) (Blocks, error) {
			src, ok := bs.Find(p.ID)
			if !ok {
				return nil, fmt.Errorf("copy price ref %s: %w", p.ID, ErrBlockNotFound)
			}
			pr, isRef := src.(models.PriceRefBlock)
			if !isRef {
				return nil, fmt.Errorf("copy price ref %s: %w", p.ID, ErrKindMismatch)
			}
			ref := models.PriceRef{
				ID:       e.newID(),
				Market:   role,
				Symbol:   pr.Symbol,
				Provider: pr.Provider,
				Price:    pr.Price,
				TS:       pr.TS,
			}
			next, err := attachRef(bs, gapID, ref)
			if err != nil {
				return nil, err
			}
			return recomputeGap(next, gapID, e.nowMillis()), nil
		})
	case models.PayloadCreate:
		// Resolve the fetch before touching the store; the ref lands in one
		// atomic mutation.
		q, err := e.prices.Fetch(ctx, role, p.Symbol, p.Provider)
		if err != nil {
			return fmt.Errorf("fetch price for gap ref: %w", err)
		}
		return e.store.Apply(func(bs Blocks) (Blocks, error) {
			ref := models.PriceRef{
				ID:       e.newID(),
				Market:   role,
				Symbol:   q.Symbol,
				Provider: q.Provider,
				Price:    q.Price,
				TS:       q.TS,
			}
			next, err := attachRef(bs, gapID, ref)
			if err != nil {
				return nil, err
			}
			return recomputeGap(next, gapID, e.nowMillis()), nil
		})
	default:
		return fmt.Errorf("gap drop action %q: %w", p.Action, ErrBadPayload)
	}
}

// SetConditionRightRef points the condition's right operand at a
// store-resident gap result, materializing one from the payload when the
// dropped result only ever lived inline elsewhere. Dropping the same
// payload again updates the materialized result in place instead of
// creating a sibling. Returns the resolved result id.
func (e *Engine) SetConditionRightRef(conditionID string, p models.DragPayload) (string, error) {
	if p.Kind != models.KindGapResult {
		return "", fmt.Errorf("condition drop kind %q: %w", p.Kind, ErrBadPayload)
	}
	var targetID string
	err := e.store.Apply(func(bs Blocks) (Blocks, error) {
		blk, ok := bs.Find(conditionID)
		if !ok {
			return nil, fmt.Errorf("condition %s: %w", conditionID, ErrBlockNotFound)
		}
		cond, isCond := blk.(models.Condition)
		if !isCond {
			return nil, fmt.Errorf("condition %s: %w", conditionID, ErrKindMismatch)
		}

		value := 0.0
		if p.Value != nil {
			value = *p.Value
		}
		ts := p.TS
		if ts == 0 {
			ts = e.nowMillis()
		}

		out := bs
		if p.ID != "" {
			// Only a real GapResult may back the right operand; a payload
			// naming any other kind of block falls through to the update or
			// materialization paths.
			if prev, exists := bs.Find(p.ID); exists {
				if _, isResult := prev.(models.GapResult); isResult {
					targetID = p.ID
				}
			}
		}
		if targetID == "" && cond.RightRefID != "" {
			// Same formula dropped twice: refresh the materialized result
			// rather than stacking a duplicate distinguishable only by value.
			if prev, exists := bs.Find(cond.RightRefID); exists {
				if r, isResult := prev.(models.GapResult); isResult && r.GapID == p.GapID {
					r.Value = value
					r.TS = ts
					out = bs.replace(r.ID, r)
					targetID = r.ID
				}
			}
		}
		if targetID == "" {
			out = e.materializeResult(bs, p, value, ts, &targetID)
		}

		cond.RightRefID = targetID
		return out.replace(conditionID, cond), nil
	})
	if err != nil {
		return "", err
	}
	return targetID, nil
}

func (e *Engine) materializeResult(bs Blocks, p models.DragPayload, value float64, ts int64, outID *string) Blocks {
	id := e.newID()
	*outID = id
	return append(bs, models.GapResult{
		Base:       models.Base{ID: id, Kind: models.KindGapResult},
		GapID:      p.GapID,
		Value:      value,
		TS:         ts,
		InlineOnly: true,
	})
}

// ConnectGroupToAction links a condition group forward to an action and the
// action back to the group. No uniqueness is enforced across groups; the
// last write wins on both ends.
func (e *Engine) ConnectGroupToAction(groupID, actionID string) error {
	return e.store.Apply(func(bs Blocks) (Blocks, error) {
		grp, ok := bs.Group(groupID)
		if !ok {
			return nil, fmt.Errorf("group %s: %w", groupID, ErrBlockNotFound)
		}
		blk, ok := bs.Find(actionID)
		if !ok {
			return nil, fmt.Errorf("action %s: %w", actionID, ErrBlockNotFound)
		}
		act, isAction := blk.(models.Action)
		if !isAction {
			return nil, fmt.Errorf("action %s: %w", actionID, ErrKindMismatch)
		}
		grp.NextActionID = actionID
		act.PrevConditionID = groupID
		return bs.replace(groupID, grp).replace(actionID, act), nil
	})
}

// AddConditionToGroup creates a fresh condition owned by the group and
// appends its id to the group's member list.
func (e *Engine) AddConditionToGroup(groupID string) (models.Condition, error) {
	cond := models.Condition{
		Base:          models.Base{ID: e.newID(), Kind: models.KindCondition},
		Op:            models.OpGTE,
		ParentGroupID: groupID,
	}
	err := e.store.Apply(func(bs Blocks) (Blocks, error) {
		grp, ok := bs.Group(groupID)
		if !ok {
			return nil, fmt.Errorf("group %s: %w", groupID, ErrBlockNotFound)
		}
		members := make([]string, len(grp.Conditions), len(grp.Conditions)+1)
		copy(members, grp.Conditions)
		grp.Conditions = append(members, cond.ID)
		return append(bs.replace(groupID, grp), cond), nil
	})
	if err != nil {
		return models.Condition{}, err
	}
	return cond, nil
}

// AddActionAfterGroup creates an empty action linked after the group (the
// editor's "+" under a condition group). When the group already had a linked
// action containing buys, the matching sell-side intents that would close
// those positions are returned as a cleanup suggestion.
func (e *Engine) AddActionAfterGroup(groupID string) (models.Action, []models.ActionType, error) {
	act := models.Action{
		Base:            models.Base{ID: e.newID(), Kind: models.KindAction},
		Actions:         []models.ActionType{},
		PrevConditionID: groupID,
	}
	var cleanup []models.ActionType
	err := e.store.Apply(func(bs Blocks) (Blocks, error) {
		grp, ok := bs.Group(groupID)
		if !ok {
			return nil, fmt.Errorf("group %s: %w", groupID, ErrBlockNotFound)
		}
		if grp.NextActionID != "" {
			if prev, exists := bs.Find(grp.NextActionID); exists {
				if pa, isAction := prev.(models.Action); isAction {
					cleanup = cleanupFor(pa.Actions)
				}
			}
		}
		grp.NextActionID = act.ID
		return append(bs.replace(groupID, grp), act), nil
	})
	if err != nil {
		return models.Action{}, nil, err
	}
	return act, cleanup, nil
}

func cleanupFor(actions []models.ActionType) []models.ActionType {
	var out []models.ActionType
	for _, a := range actions {
		switch a {
		case models.ActionBuySpotMaxLong:
			out = append(out, models.ActionSellSpotMaxLong)
		case models.ActionBuyPerpMaxShort:
			out = append(out, models.ActionSellPerpMaxShort)
		}
	}
	return out
}

// CreateCleanupAction materializes a free-standing action block holding the
// accepted cleanup intents.
func (e *Engine) CreateCleanupAction(actions []models.ActionType) (models.Action, error) {
	if len(actions) == 0 {
		return models.Action{}, fmt.Errorf("cleanup action without intents: %w", ErrBadPayload)
	}
	act := models.Action{
		Base:    models.Base{ID: e.newID(), Kind: models.KindAction},
		Actions: dedupActions(actions),
	}
	err := e.store.Apply(func(bs Blocks) (Blocks, error) {
		return append(bs, act), nil
	})
	if err != nil {
		return models.Action{}, err
	}
	return act, nil
}

func dedupActions(in []models.ActionType) []models.ActionType {
	seen := make(map[models.ActionType]bool, len(in))
	out := make([]models.ActionType, 0, len(in))
	for _, a := range in {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

// AddAction appends an intent to an action block; the list behaves as an
// ordered set, so an intent already present is a no-op.
func (e *Engine) AddAction(actionID string, t models.ActionType) error {
	if models.ActionLabel(t) == string(t) {
		return fmt.Errorf("unknown action type %q: %w", t, ErrBadPayload)
	}
	return e.store.Apply(func(bs Blocks) (Blocks, error) {
		blk, ok := bs.Find(actionID)
		if !ok {
			return nil, fmt.Errorf("action %s: %w", actionID, ErrBlockNotFound)
		}
		act, isAction := blk.(models.Action)
		if !isAction {
			return nil, fmt.Errorf("action %s: %w", actionID, ErrKindMismatch)
		}
		for _, existing := range act.Actions {
			if existing == t {
				return bs, nil
			}
		}
		next := make([]models.ActionType, len(act.Actions), len(act.Actions)+1)
		copy(next, act.Actions)
		act.Actions = append(next, t)
		return bs.replace(actionID, act), nil
	})
}

// RemoveAction removes the intent at index from an action block's list.
func (e *Engine) RemoveAction(actionID string, index int) error {
	return e.store.Apply(func(bs Blocks) (Blocks, error) {
		blk, ok := bs.Find(actionID)
		if !ok {
			return nil, fmt.Errorf("action %s: %w", actionID, ErrBlockNotFound)
		}
		act, isAction := blk.(models.Action)
		if !isAction {
			return nil, fmt.Errorf("action %s: %w", actionID, ErrKindMismatch)
		}
		if index < 0 || index >= len(act.Actions) {
			return nil, fmt.Errorf("action index %d out of range: %w", index, ErrBadPayload)
		}
		next := make([]models.ActionType, 0, len(act.Actions)-1)
		next = append(next, act.Actions[:index]...)
		next = append(next, act.Actions[index+1:]...)
		act.Actions = next
		return bs.replace(actionID, act), nil
	})
}

// UpdateCondition edits a condition's operands in place.
func (e *Engine) UpdateCondition(id string, upd ConditionUpdate) error {
	return e.store.Apply(func(bs Blocks) (Blocks, error) {
		blk, ok := bs.Find(id)
		if !ok {
			return nil, fmt.Errorf("condition %s: %w", id, ErrBlockNotFound)
		}
		cond, isCond := blk.(models.Condition)
		if !isCond {
			return nil, fmt.Errorf("condition %s: %w", id, ErrKindMismatch)
		}
		if upd.ClearLeft {
			cond.Left = nil
		} else if upd.Left != nil {
			v := *upd.Left
			cond.Left = &v
		}
		if upd.Op != nil {
			cond.Op = *upd.Op
		}
		if upd.ClearRight {
			cond.RightRefID = ""
		}
		return bs.replace(id, cond), nil
	})
}

// SetPosition stores the block's canvas coordinates.
func (e *Engine) SetPosition(id string, pos Pos) error {
	return e.store.Apply(func(bs Blocks) (Blocks, error) {
		blk, ok := bs.Find(id)
		if !ok {
			return nil, fmt.Errorf("block %s: %w", id, ErrBlockNotFound)
		}
		return bs.replace(id, withPos(blk, &pos)), nil
	})
}
