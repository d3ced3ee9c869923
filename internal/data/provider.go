package data

import (
	"context"
	"time"

	"sequential-trader/internal/model"
)

// TapeSource returns raw historical price points for a market.
// Implementations may return points outside [start, end]; callers filter.
type TapeSource interface {
	Name() string
	FetchTape(ctx context.Context, marketID string, start, end time.Time) ([]model.TapePoint, error)
}

// MarketDataProvider reconstructs what a market looked like at ts.
// It never fails: missing data degrades to a placeholder snapshot.
type MarketDataProvider interface {
	Snapshot(ctx context.Context, marketID string, ts time.Time) model.MarketSnapshot
}
