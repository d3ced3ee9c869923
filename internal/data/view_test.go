package data

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sequential-trader/internal/model"
)

type stubSource struct {
	points []model.TapePoint
	err    error
	calls  int
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) FetchTape(_ context.Context, _ string, start, end time.Time) ([]model.TapePoint, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []model.TapePoint
	for _, p := range s.points {
		if !p.T.Before(start) && !p.T.After(end) {
			out = append(out, p)
		}
	}
	return out, nil
}

var base = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

func testView(src TapeSource) *PointInTimeView {
	cfg := DefaultViewConfig()
	cfg.Now = func() time.Time { return base.Add(365 * 24 * time.Hour) }
	return NewPointInTimeView(src, cfg, zerolog.Nop())
}

func TestSnapshot_UsesLastPointAtOrBeforeTimestamp(t *testing.T) {
	src := &stubSource{points: []model.TapePoint{
		{T: base.Add(-2 * time.Hour), P: 0.40},
		{T: base.Add(-1 * time.Hour), P: 0.42},
		{T: base.Add(1 * time.Hour), P: 0.90},
	}}
	v := testView(src)

	snap := v.Snapshot(context.Background(), "M", base)

	assert.Equal(t, "M", snap.MarketID)
	assert.Equal(t, base, snap.Timestamp)
	assert.InDelta(t, 0.42, snap.LastPrice, 1e-9)
	assert.InDelta(t, 0.415, snap.BestBid, 1e-9)
	assert.InDelta(t, 0.425, snap.BestAsk, 1e-9)
	assert.Equal(t, 2, snap.Volume)
	assert.Zero(t, snap.OpenInterest)
	for _, p := range snap.ChartData {
		assert.False(t, p.T.After(base))
	}
}

func TestSnapshot_FuturePointNeverVisibleEarly(t *testing.T) {
	future := base.Add(36 * time.Hour)
	src := &stubSource{points: []model.TapePoint{
		{T: base.Add(-6 * time.Hour), P: 0.30},
		{T: future, P: 0.99},
	}}
	v := testView(src)

	for ts := base; ts.Before(future); ts = ts.Add(6 * time.Hour) {
		snap := v.Snapshot(context.Background(), "M", ts)
		assert.InDelta(t, 0.30, snap.LastPrice, 1e-9, "as of %s", ts)
		for _, p := range snap.ChartData {
			assert.False(t, p.T.After(ts))
		}
	}

	snap := v.Snapshot(context.Background(), "M", future)
	assert.InDelta(t, 0.99, snap.LastPrice, 1e-9)
}

func TestSnapshot_PlaceholderWhenNoHistory(t *testing.T) {
	v := testView(&stubSource{})

	snap := v.Snapshot(context.Background(), "M", base)

	assert.Equal(t, PlaceholderBid, snap.BestBid)
	assert.Equal(t, PlaceholderAsk, snap.BestAsk)
	assert.Equal(t, PlaceholderLast, snap.LastPrice)
	assert.Zero(t, snap.Volume)
}

func TestSnapshot_PlaceholderWhenStale(t *testing.T) {
	src := &stubSource{points: []model.TapePoint{{T: base.Add(-72 * time.Hour), P: 0.8}}}
	v := testView(src)

	snap := v.Snapshot(context.Background(), "M", base)

	assert.Equal(t, PlaceholderLast, snap.LastPrice)
}

func TestSnapshot_ClampsQuotes(t *testing.T) {
	src := &stubSource{points: []model.TapePoint{
		{T: base.Add(-time.Hour), P: 0.995},
	}}
	v := testView(src)

	snap := v.Snapshot(context.Background(), "M", base)

	assert.InDelta(t, 0.99, snap.BestAsk, 1e-9)
	assert.InDelta(t, 0.99, snap.BestBid, 1e-9)

	src.points = []model.TapePoint{{T: base.Add(-time.Hour), P: 0.001}}
	snap = testView(src).Snapshot(context.Background(), "M", base)
	assert.InDelta(t, 0.01, snap.BestBid, 1e-9)
}

func TestSnapshot_BidNeverAboveAskNearBounds(t *testing.T) {
	for _, p := range []float64{0.999, 0.9999, 1.0, 0.0, 0.0001, 0.004} {
		src := &stubSource{points: []model.TapePoint{{T: base.Add(-time.Hour), P: p}}}
		snap := testView(src).Snapshot(context.Background(), "M", base)

		assert.LessOrEqual(t, snap.BestBid, snap.BestAsk, "price %v", p)
		assert.GreaterOrEqual(t, snap.BestBid, 0.01, "price %v", p)
		assert.LessOrEqual(t, snap.BestAsk, 0.99, "price %v", p)
	}

	src := &stubSource{points: []model.TapePoint{{T: base.Add(-time.Hour), P: 0.999}}}
	snap := testView(src).Snapshot(context.Background(), "M", base)
	assert.InDelta(t, 0.99, snap.BestBid, 1e-9)
	assert.InDelta(t, 0.99, snap.BestAsk, 1e-9)
}

func TestSnapshot_ProportionalSpread(t *testing.T) {
	src := &stubSource{points: []model.TapePoint{{T: base.Add(-time.Hour), P: 0.5}}}
	cfg := DefaultViewConfig()
	cfg.SpreadMode = SpreadProportional
	cfg.SpreadOffset = 0.1
	cfg.Now = func() time.Time { return base.Add(30 * 24 * time.Hour) }
	v := NewPointInTimeView(src, cfg, zerolog.Nop())

	snap := v.Snapshot(context.Background(), "M", base)

	assert.InDelta(t, 0.45, snap.BestBid, 1e-9)
	assert.InDelta(t, 0.55, snap.BestAsk, 1e-9)
}

func TestSnapshot_CoveredRangeIsNotRefetched(t *testing.T) {
	src := &stubSource{points: []model.TapePoint{{T: base, P: 0.5}}}
	v := testView(src)

	for i := 0; i < 5; i++ {
		v.Snapshot(context.Background(), "M", base.Add(time.Duration(i)*24*time.Hour))
	}

	assert.Equal(t, 1, src.calls)
	v.Snapshot(context.Background(), "M", base.Add(10*24*time.Hour))
	assert.Equal(t, 2, src.calls)
}

func TestSnapshot_EmptyFetchStillCovers(t *testing.T) {
	src := &stubSource{}
	v := testView(src)

	v.Snapshot(context.Background(), "M", base)
	v.Snapshot(context.Background(), "M", base.Add(24*time.Hour))

	assert.Equal(t, 1, src.calls)
}

func TestSnapshot_FetchFailureDegradesAndRetries(t *testing.T) {
	src := &stubSource{err: errors.New("boom")}
	v := testView(src)

	snap := v.Snapshot(context.Background(), "M", base)
	assert.Equal(t, PlaceholderLast, snap.LastPrice)

	src.err = nil
	src.points = []model.TapePoint{{T: base, P: 0.7}}
	snap = v.Snapshot(context.Background(), "M", base.Add(time.Hour))

	assert.Equal(t, 2, src.calls)
	assert.InDelta(t, 0.7, snap.LastPrice, 1e-9)
}

func TestSnapshot_ClampsFetchWindowToNow(t *testing.T) {
	var gotEnd time.Time
	src := &recordingSource{onFetch: func(start, end time.Time) { gotEnd = end }}
	cfg := DefaultViewConfig()
	now := base.Add(2 * 24 * time.Hour)
	cfg.Now = func() time.Time { return now }
	v := NewPointInTimeView(src, cfg, zerolog.Nop())

	v.Snapshot(context.Background(), "M", base)

	assert.Equal(t, now, gotEnd)
}

type recordingSource struct {
	onFetch func(start, end time.Time)
}

func (r *recordingSource) Name() string { return "recording" }

func (r *recordingSource) FetchTape(_ context.Context, _ string, start, end time.Time) ([]model.TapePoint, error) {
	r.onFetch(start, end)
	return nil, nil
}

func TestViewConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultViewConfig().Validate())

	cfg := DefaultViewConfig()
	cfg.SpreadMode = "wide"
	assert.Error(t, cfg.Validate())

	cfg = DefaultViewConfig()
	cfg.Window = 0
	assert.Error(t, cfg.Validate())
}
