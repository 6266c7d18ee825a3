package graph

import (
	"github.com/shopspring/decimal"

	"github.com/XXUCHAN/gapboard/internal/models"
)

// gapResultID is the stable id of the store-resident result mirror for a gap
// formula. Deterministic so recomputing can never stack up duplicates.
func gapResultID(gapID string) string {
	return "result-" + gapID
}

// GapValue computes spot minus perp rounded to two decimals, or nil when
// either leg is missing.
func GapValue(g models.GapFormula) *float64 {
	var spot, perp *models.PriceRef
	for i := range g.Refs {
		switch g.Refs[i].Market {
		case models.MarketSpot:
			spot = &g.Refs[i]
		case models.MarketPerp:
			perp = &g.Refs[i]
		}
	}
	if spot == nil || perp == nil {
		return nil
	}
	v := decimal.NewFromFloat(spot.Price).
		Sub(decimal.NewFromFloat(perp.Price)).
		Round(2).
		InexactFloat64()
	return &v
}

// recomputeGap re-derives the formula's cached result and keeps the
// store-resident GapResult mirror in sync: created or updated while both
// refs are present, removed otherwise. Runs eagerly after every structural
// change to the formula's refs and is idempotent.
func recomputeGap(bs Blocks, gapID string, nowMillis int64) Blocks {
	gap, ok := bs.Gap(gapID)
	if !ok {
		return bs
	}

	result := GapValue(gap)

	// Drop the canvas mirror for this formula; it is about to be rebuilt from
	// the current refs. Inline-only results belong to the conditions that
	// reference them and keep their dropped-moment snapshot.
	out := bs.filter(func(b models.Block) bool {
		r, isResult := b.(models.GapResult)
		return !isResult || r.GapID != gapID || r.InlineOnly
	})

	gap.Result = result
	out = out.replace(gapID, gap)

	if result != nil {
		out = append(out, models.GapResult{
			Base:  models.Base{ID: gapResultID(gapID), Kind: models.KindGapResult},
			GapID: gapID,
			Value: *result,
			TS:    nowMillis,
		})
	}
	return out
}
