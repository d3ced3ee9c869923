package data

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"sequential-trader/internal/model"
)

// SpreadMode controls how a synthetic bid/ask is derived from the last price.
type SpreadMode string

const (
	SpreadFixed        SpreadMode = "fixed"
	SpreadProportional SpreadMode = "proportional"
)

// Placeholder quote used when a market has no usable history.
const (
	PlaceholderBid  = 0.49
	PlaceholderAsk  = 0.51
	PlaceholderLast = 0.50

	minQuote = 0.01
	maxQuote = 0.99
)

// ViewConfig tunes point-in-time reconstruction.
type ViewConfig struct {
	Window        time.Duration // fetched either side of the requested time
	Staleness     time.Duration // older last points yield a placeholder
	SpreadMode    SpreadMode
	SpreadOffset  float64
	ChartLookback time.Duration

	// Now clamps fetch windows; defaults to time.Now.
	Now func() time.Time
}

func DefaultViewConfig() ViewConfig {
	return ViewConfig{
		Window:        7 * 24 * time.Hour,
		Staleness:     48 * time.Hour,
		SpreadMode:    SpreadFixed,
		SpreadOffset:  0.005,
		ChartLookback: 7 * 24 * time.Hour,
	}
}

func (c ViewConfig) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("window must be > 0")
	}
	if c.Staleness <= 0 {
		return fmt.Errorf("staleness must be > 0")
	}
	if c.SpreadOffset < 0 {
		return fmt.Errorf("spread offset must be >= 0")
	}
	switch c.SpreadMode {
	case SpreadFixed, SpreadProportional:
	default:
		return fmt.Errorf("unknown spread mode %q", c.SpreadMode)
	}
	return nil
}

// PointInTimeView serves market snapshots that only use tape dated at or
// before the requested time. It owns one Tape per market for its lifetime.
type PointInTimeView struct {
	source TapeSource
	cfg    ViewConfig
	tapes  map[string]*Tape
	log    zerolog.Logger
}

func NewPointInTimeView(source TapeSource, cfg ViewConfig, log zerolog.Logger) *PointInTimeView {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &PointInTimeView{
		source: source,
		cfg:    cfg,
		tapes:  map[string]*Tape{},
		log:    log.With().Str("component", "data.view").Str("source", source.Name()).Logger(),
	}
}

// Snapshot reconstructs marketID as of ts.
func (v *PointInTimeView) Snapshot(ctx context.Context, marketID string, ts time.Time) model.MarketSnapshot {
	tape := v.tape(marketID)
	if !tape.Covered(ts) {
		v.fetch(ctx, marketID, tape, ts)
	}

	visible := tape.AsOf(ts)
	if len(visible) == 0 {
		return placeholder(marketID, ts)
	}
	last := visible[len(visible)-1]
	if ts.Sub(last.T) > v.cfg.Staleness {
		v.log.Debug().
			Str("market", marketID).
			Time("last_point", last.T).
			Time("as_of", ts).
			Msg("last tape point is stale, using placeholder")
		return placeholder(marketID, ts)
	}

	bid, ask := v.quote(last.P)
	return model.MarketSnapshot{
		MarketID:  marketID,
		Timestamp: ts,
		BestBid:   bid,
		BestAsk:   ask,
		LastPrice: last.P,
		Volume:    len(visible),
		ChartData: chartWindow(visible, ts.Add(-v.cfg.ChartLookback)),
	}
}

// Tape exposes the cached history of a market, mainly for inspection in tests
// and tools. It is nil when the market was never requested.
func (v *PointInTimeView) Tape(marketID string) *Tape {
	return v.tapes[marketID]
}

func (v *PointInTimeView) tape(marketID string) *Tape {
	t, ok := v.tapes[marketID]
	if !ok {
		t = &Tape{}
		v.tapes[marketID] = t
	}
	return t
}

func (v *PointInTimeView) fetch(ctx context.Context, marketID string, tape *Tape, ts time.Time) {
	start := ts.Add(-v.cfg.Window)
	end := ts.Add(v.cfg.Window)
	if now := v.cfg.Now(); end.After(now) {
		end = now
	}
	if end.Before(start) {
		end = start
	}

	began := time.Now()
	points, err := v.source.FetchTape(ctx, marketID, start, end)
	if err != nil {
		// Range stays uncovered so the next step retries.
		v.log.Warn().
			Err(err).
			Str("market", marketID).
			Time("start", start).
			Time("end", end).
			Msg("tape fetch failed")
		return
	}

	tape.Merge(points)
	tape.MarkFetched(start, end)
	v.log.Debug().
		Str("market", marketID).
		Int("points", len(points)).
		Dur("duration", time.Since(began)).
		Msg("tape fetched")
}

func (v *PointInTimeView) quote(price float64) (bid, ask float64) {
	off := v.cfg.SpreadOffset
	if v.cfg.SpreadMode == SpreadProportional {
		off = v.cfg.SpreadOffset * price
	}
	bid = math.Max(minQuote, price-off)
	ask = math.Min(maxQuote, price+off)
	// Near a bound both sides can clamp past each other; collapse onto the bound.
	if bid > ask {
		if price >= 0.5 {
			bid = ask
		} else {
			ask = bid
		}
	}
	return bid, ask
}

func placeholder(marketID string, ts time.Time) model.MarketSnapshot {
	return model.MarketSnapshot{
		MarketID:  marketID,
		Timestamp: ts,
		BestBid:   PlaceholderBid,
		BestAsk:   PlaceholderAsk,
		LastPrice: PlaceholderLast,
	}
}

func chartWindow(visible []model.TapePoint, from time.Time) []model.TapePoint {
	var out []model.TapePoint
	for _, p := range visible {
		if p.T.Before(from) {
			continue
		}
		out = append(out, p)
	}
	return out
}
