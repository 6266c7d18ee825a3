package price

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/XXUCHAN/gapboard/internal/models"
)

// Source produces a current price for one market leg. Implementations may
// take arbitrarily long; callers pass a context and must tolerate latency.
type Source interface {
	Fetch(ctx context.Context, market models.Market, symbol string, provider models.Provider) (models.PriceQuote, error)
}

// Base prices per provider and symbol. Unknown symbols fall back to 100 so
// the editor stays usable with arbitrary tickers.
var basePrices = map[models.Provider]map[string]float64{
	models.ProviderBinance: {
		"BTCUSDT": 45000,
		"ETHUSDT": 2600,
	},
	models.ProviderUpbit: {
		"BTCUSDT": 45120,
		"ETHUSDT": 2625,
	},
}

const (
	defaultBase  = 100.0
	perpPremium  = 50.0
	binanceDrift = 120.0
	upbitDrift   = 80.0
)

// MockSource is a deterministic-base simulated price feed: a fixed base per
// (provider, symbol), a fixed premium on the perp leg, and bounded
// pseudo-random drift. It resolves immediately and cannot fail beyond
// context cancellation.
type MockSource struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewMockSource returns a source seeded from the clock.
func NewMockSource() *MockSource {
	return NewMockSourceSeeded(time.Now().UnixNano())
}

// NewMockSourceSeeded fixes the drift sequence, for tests.
func NewMockSourceSeeded(seed int64) *MockSource {
	return &MockSource{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
}

func (s *MockSource) Fetch(ctx context.Context, market models.Market, symbol string, provider models.Provider) (models.PriceQuote, error) {
	if err := ctx.Err(); err != nil {
		return models.PriceQuote{}, err
	}
	if symbol == "" {
		symbol = "BTCUSDT"
	}
	if provider != models.ProviderUpbit {
		provider = models.ProviderBinance
	}

	base := defaultBase
	if p, ok := basePrices[provider][symbol]; ok {
		base = p
	}
	premium := 0.0
	driftRange := binanceDrift
	if provider == models.ProviderUpbit {
		driftRange = upbitDrift
	}
	if market == models.MarketPerp {
		premium = perpPremium
		driftRange *= 2
	}

	s.mu.Lock()
	drift := (s.rng.Float64() - 0.5) * driftRange
	s.mu.Unlock()

	return models.PriceQuote{
		Market:   market,
		Symbol:   symbol,
		Provider: provider,
		Price:    Round2(base + premium + drift),
		TS:       s.now().UnixMilli(),
	}, nil
}

// Round2 rounds to two decimals the way prices are displayed everywhere in
// the editor.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
