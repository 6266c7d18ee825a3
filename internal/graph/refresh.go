package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/XXUCHAN/gapboard/internal/models"
)

// RefreshGap re-fetches every ref of a gap formula. Fetches run
// concurrently and are joined before the single replacement mutation is
// applied; a partial set of completions is never installed. A formula with
// no refs is a no-op.
func (e *Engine) RefreshGap(ctx context.Context, gapID string) error {
	gap, ok := e.store.Snapshot().Gap(gapID)
	if !ok {
		return fmt.Errorf("refresh gap %s: %w", gapID, ErrBlockNotFound)
	}
	if len(gap.Refs) == 0 {
		return nil
	}

	refreshed := make([]models.PriceRef, len(gap.Refs))
	errs := make([]error, len(gap.Refs))
	var wg sync.WaitGroup
	for i, ref := range gap.Refs {
		wg.Add(1)
		go func(i int, ref models.PriceRef) {
			defer wg.Done()
			provider := ref.Provider
			if provider == "" {
				provider = models.ProviderBinance
			}
			q, err := e.prices.Fetch(ctx, ref.Market, ref.Symbol, provider)
			if err != nil {
				errs[i] = err
				return
			}
			ref.Provider = q.Provider
			ref.Price = q.Price
			ref.TS = q.TS
			refreshed[i] = ref
		}(i, ref)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("refresh gap %s: %w", gapID, err)
		}
	}

	return e.store.Apply(func(bs Blocks) (Blocks, error) {
		g, ok := bs.Gap(gapID)
		if !ok {
			return nil, fmt.Errorf("refresh gap %s: %w", gapID, ErrBlockNotFound)
		}
		g.Refs = refreshed
		return recomputeGap(bs.replace(gapID, g), gapID, e.nowMillis()), nil
	})
}

// RefreshAllGaps refreshes every gap formula in the store, used by the
// scheduled auto-refresh. Errors are collected, not fail-fast, so one bad
// formula does not starve the rest.
func (e *Engine) RefreshAllGaps(ctx context.Context) error {
	var firstErr error
	for _, b := range e.store.Snapshot() {
		if b.BlockKind() != models.KindGap {
			continue
		}
		if err := e.RefreshGap(ctx, b.BlockID()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
