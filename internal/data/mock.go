package data

import (
	"context"
	"math"
	"math/rand"
	"time"

	"sequential-trader/internal/model"
)

// MockProvider generates a seeded random walk per market. Each call extends
// the walk, so a snapshot only ever depends on earlier calls.
type MockProvider struct {
	rng     *rand.Rand
	history map[string][]model.TapePoint
	// Step is the maximum absolute price move per call.
	Step float64
}

func NewMockProvider(seed int64) *MockProvider {
	return &MockProvider{
		rng:     rand.New(rand.NewSource(seed)),
		history: map[string][]model.TapePoint{},
		Step:    0.05,
	}
}

func (m *MockProvider) Snapshot(_ context.Context, marketID string, ts time.Time) model.MarketSnapshot {
	hist := m.history[marketID]
	price := PlaceholderLast
	if len(hist) > 0 {
		price = hist[len(hist)-1].P
	}
	price += (m.rng.Float64()*2 - 1) * m.Step
	price = math.Max(minQuote, math.Min(maxQuote, price))

	hist = append(hist, model.TapePoint{T: ts, P: price})
	m.history[marketID] = hist

	chart := make([]model.TapePoint, 0, len(hist))
	for _, p := range hist {
		if !p.T.After(ts) {
			chart = append(chart, p)
		}
	}

	return model.MarketSnapshot{
		MarketID:     marketID,
		Timestamp:    ts,
		BestBid:      math.Max(minQuote, price-0.01),
		BestAsk:      math.Min(maxQuote, price+0.01),
		LastPrice:    price,
		Volume:       100 + m.rng.Intn(9901),
		OpenInterest: 1000 + m.rng.Intn(49001),
		ChartData:    chart,
	}
}
