package backtest

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sequential-trader/internal/agent"
	"sequential-trader/internal/model"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fixedMarket struct {
	quotes map[string]model.MarketSnapshot
	asked  []time.Time
}

func (f *fixedMarket) Snapshot(_ context.Context, id string, ts time.Time) model.MarketSnapshot {
	f.asked = append(f.asked, ts)
	s, ok := f.quotes[id]
	if !ok {
		s = model.MarketSnapshot{MarketID: id, BestBid: 0.49, BestAsk: 0.51, LastPrice: 0.5}
	}
	s.Timestamp = ts
	return s
}

func fedMarket() *fixedMarket {
	return &fixedMarket{quotes: map[string]model.MarketSnapshot{
		"FED": {MarketID: "FED", BestBid: 0.38, BestAsk: 0.40, LastPrice: 0.39},
	}}
}

type windowNews struct {
	windows [][2]time.Time
}

func (w *windowNews) News(_ context.Context, start, end time.Time) []model.NewsItem {
	w.windows = append(w.windows, [2]time.Time{start, end})
	return []model.NewsItem{{Timestamp: start, Source: "test", Headline: "h"}}
}

// scripted returns actions in order, then HOLDs.
type scripted struct {
	actions []model.Action
	seen    []model.Observation
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Act(_ context.Context, obs model.Observation) (model.Action, error) {
	s.seen = append(s.seen, obs)
	i := len(s.seen) - 1
	if i < len(s.actions) {
		return s.actions[i], nil
	}
	return model.Hold("FED", "idle", "nothing"), nil
}

func newSim(t *testing.T, cfg Config, p agent.Policy, recs ...Recorder) (*Simulation, *fixedMarket, *windowNews) {
	t.Helper()
	mk, nw := fedMarket(), &windowNews{}
	s, err := New(cfg, mk, nw, p, zerolog.Nop(), recs...)
	require.NoError(t, err)
	return s, mk, nw
}

func dayConfig(days int) Config {
	return Config{
		Start:       t0,
		End:         t0.Add(time.Duration(days) * 24 * time.Hour),
		Step:        24 * time.Hour,
		MarketIDs:   []string{"FED"},
		InitialCash: 1000,
	}
}

func price(x float64) *float64 { return &x }

func TestRun_StepCountAndMonotonicTime(t *testing.T) {
	cfg := dayConfig(3)
	cfg.End = cfg.End.Add(time.Hour) // partial last step still runs
	s, mk, _ := newSim(t, cfg, &scripted{})

	res := s.Run(context.Background())

	require.Equal(t, 4, res.Steps())
	assert.Equal(t, StepsBetween(cfg.Start, cfg.End, cfg.Step), res.Steps())
	for i, r := range res.Records {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, t0.Add(time.Duration(i)*24*time.Hour), r.Timestamp)
	}
	assert.Len(t, mk.asked, 4)
	assert.False(t, res.Interrupted)
	assert.Equal(t, Finished, s.Clock().State())
	assert.False(t, s.Step(context.Background()))
}

func TestRun_EmptyRange(t *testing.T) {
	cfg := dayConfig(0)
	s, _, _ := newSim(t, cfg, &scripted{})

	res := s.Run(context.Background())

	assert.Zero(t, res.Steps())
	assert.Equal(t, 1000.0, res.Final.TotalValue)
}

func TestStep_ObservationIsPointInTime(t *testing.T) {
	p := &scripted{}
	s, mk, nw := newSim(t, dayConfig(2), p)

	s.Run(context.Background())

	require.Len(t, p.seen, 2)
	for i, obs := range p.seen {
		now := t0.Add(time.Duration(i) * 24 * time.Hour)
		assert.Equal(t, now, obs.Timestamp)
		assert.Equal(t, now, mk.asked[i])
		assert.Equal(t, [2]time.Time{now.Add(-24 * time.Hour), now}, nw.windows[i])
		for _, n := range obs.News {
			assert.False(t, n.Timestamp.After(now))
		}
	}
}

func TestStep_BuyAtAskThenSellAtBid(t *testing.T) {
	p := &scripted{actions: []model.Action{
		{Type: model.TradeBuy, MarketID: "FED", Quantity: 10, Belief: 0.6},
		{Type: model.TradeSell, MarketID: "FED", Quantity: 4, Belief: 0.4},
	}}
	s, _, _ := newSim(t, dayConfig(2), p)

	res := s.Run(context.Background())

	buy, sell := res.Records[0], res.Records[1]
	require.True(t, buy.Success)
	assert.Equal(t, 0.40, *buy.ExecutionPrice)
	require.True(t, sell.Success)
	assert.Equal(t, 0.38, *sell.ExecutionPrice)

	assert.InDelta(t, 1000-4.0+1.52, s.Portfolio().Cash(), 1e-9)
	assert.Equal(t, 6, s.Portfolio().Position("FED"))
	assert.InDelta(t, s.Portfolio().Cash()+6*0.39, res.Final.TotalValue, 1e-9)
	assert.InDelta(t, res.Final.TotalValue, res.Records[1].PortfolioValue, 1e-9)
}

func TestStep_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		action model.Action
		reason string
	}{
		{"unknown market", model.Action{Type: model.TradeBuy, MarketID: "NOPE", Quantity: 1, Belief: 0.5}, RejectUnknownMarket},
		{"buy limit below ask", model.Action{Type: model.TradeBuy, MarketID: "FED", Quantity: 1, Price: price(0.35), Belief: 0.5}, RejectLimitNotMarketable},
		{"sell limit above bid", model.Action{Type: model.TradeSell, MarketID: "FED", Quantity: 1, Price: price(0.45), Belief: 0.5}, RejectLimitNotMarketable},
		{"insufficient cash", model.Action{Type: model.TradeBuy, MarketID: "FED", Quantity: 5000, Belief: 0.5}, RejectInsufficientCash},
		{"sell without holding", model.Action{Type: model.TradeSell, MarketID: "FED", Quantity: 1, Belief: 0.5}, RejectInsufficientHolding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newSim(t, dayConfig(1), &scripted{actions: []model.Action{tt.action}})

			res := s.Run(context.Background())

			rec := res.Records[0]
			assert.False(t, rec.Success)
			assert.Equal(t, tt.reason, rec.RejectReason)
			assert.Equal(t, 1000.0, s.Portfolio().Cash())
			assert.Empty(t, s.Portfolio().Positions())
		})
	}
}

func TestStep_MarketableLimitFillsAtQuote(t *testing.T) {
	p := &scripted{actions: []model.Action{
		{Type: model.TradeBuy, MarketID: "FED", Quantity: 1, Price: price(0.45), Belief: 0.5},
	}}
	s, _, _ := newSim(t, dayConfig(1), p)

	rec := s.Run(context.Background()).Records[0]

	require.True(t, rec.Success)
	assert.Equal(t, 0.40, *rec.ExecutionPrice)
}

func TestStep_HoldAndZeroQuantityAreNoOps(t *testing.T) {
	p := &scripted{actions: []model.Action{
		model.Hold("ANY", "wait", "j"),
		{Type: model.TradeBuy, MarketID: "NOPE", Quantity: 0, Belief: 0.5},
	}}
	s, _, _ := newSim(t, dayConfig(2), p)

	res := s.Run(context.Background())

	for _, r := range res.Records {
		assert.True(t, r.Success)
		assert.Empty(t, r.RejectReason)
		assert.Nil(t, r.ExecutionPrice)
	}
	assert.Equal(t, 1000.0, s.Portfolio().Cash())
}

func TestStep_CarriesReasoningAndJournal(t *testing.T) {
	p := &scripted{actions: []model.Action{
		{Type: model.TradeHold, MarketID: "FED", Reasoning: "r1", Journal: "j1", Belief: 0.5},
		{Type: model.TradeHold, MarketID: "FED", Reasoning: "r2", Journal: "j2", Belief: 0.5},
	}}
	s, _, _ := newSim(t, dayConfig(3), p)

	s.Run(context.Background())

	assert.Nil(t, p.seen[0].PreviousReasoning)
	assert.Nil(t, p.seen[0].PreviousJournal)
	assert.Equal(t, "r1", *p.seen[1].PreviousReasoning)
	assert.Equal(t, "j1", *p.seen[1].PreviousJournal)
	assert.Equal(t, "r2", *p.seen[2].PreviousReasoning)
	assert.Equal(t, "j2", *p.seen[2].PreviousJournal)
}

type failing struct{}

func (failing) Name() string { return "failing" }

func (failing) Act(context.Context, model.Observation) (model.Action, error) {
	return model.Action{}, errors.New("boom")
}

func TestStep_PolicyErrorBecomesFallbackHold(t *testing.T) {
	s, _, _ := newSim(t, dayConfig(2), failing{})

	res := s.Run(context.Background())

	require.Equal(t, 2, res.Steps())
	for _, r := range res.Records {
		assert.True(t, r.Success)
		assert.Equal(t, model.TradeHold, r.Action.Type)
		assert.Equal(t, agent.FallbackMarketID, r.Action.MarketID)
	}
}

func TestStep_SettlementPaysOutBeforeAct(t *testing.T) {
	cfg := dayConfig(3)
	cfg.Settlements = []Settlement{{MarketID: "FED", At: t0.Add(36 * time.Hour), Price: 1}}
	p := &scripted{actions: []model.Action{
		{Type: model.TradeBuy, MarketID: "FED", Quantity: 10, Belief: 0.9},
	}}
	s, _, _ := newSim(t, cfg, p)

	res := s.Run(context.Background())

	assert.Empty(t, res.Records[1].Settlements)
	require.Len(t, res.Records[2].Settlements, 1)
	assert.Equal(t, SettlementRecord{MarketID: "FED", Price: 1, Quantity: 10}, res.Records[2].Settlements[0])
	assert.Empty(t, p.seen[2].Portfolio.Positions)
	assert.InDelta(t, 1000-4.0+10, s.Portfolio().Cash(), 1e-9)
	assert.False(t, s.Portfolio().HasPosition("FED"))
}

func TestStep_NonFiniteSettlementIsSkipped(t *testing.T) {
	cfg := dayConfig(3)
	cfg.Settlements = []Settlement{{MarketID: "FED", At: t0.Add(36 * time.Hour), Price: math.NaN()}}
	p := &scripted{actions: []model.Action{
		{Type: model.TradeBuy, MarketID: "FED", Quantity: 10, Belief: 0.9},
	}}
	s, _, _ := newSim(t, cfg, p)

	res := s.Run(context.Background())

	for _, r := range res.Records {
		assert.Empty(t, r.Settlements)
	}
	assert.Equal(t, 10, s.Portfolio().Position("FED"))
	assert.InDelta(t, 1000-4.0, s.Portfolio().Cash(), 1e-9)
}

func TestRun_InterruptedBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopAfter := RecorderFunc(func(rec StepRecord) error {
		if rec.Index == 1 {
			cancel()
		}
		return nil
	})
	s, _, _ := newSim(t, dayConfig(5), &scripted{}, stopAfter)

	res := s.Run(ctx)

	assert.True(t, res.Interrupted)
	assert.Equal(t, 2, res.Steps())
	assert.Equal(t, Running, s.Clock().State())
}

func TestRun_RecorderFailureDoesNotStopRun(t *testing.T) {
	mem := &MemoryRecorder{}
	bad := RecorderFunc(func(StepRecord) error { return errors.New("disk full") })
	s, _, _ := newSim(t, dayConfig(3), &scripted{}, bad, mem)

	res := s.Run(context.Background())

	assert.Equal(t, 3, res.Steps())
	assert.Equal(t, res.Records, mem.Records())
}

func TestJSONLRecorder_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	j, err := NewJSONLRecorder(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(j.Path()), "experiment_"))
	assert.Equal(t, ".jsonl", filepath.Ext(j.Path()))

	p := &scripted{actions: []model.Action{
		{Type: model.TradeBuy, MarketID: "FED", Quantity: 2, Belief: 0.7, Reasoning: "cheap"},
	}}
	s, _, _ := newSim(t, dayConfig(2), p, j)
	res := s.Run(context.Background())
	require.NoError(t, j.Close())

	got, err := ReadJSONL(j.Path())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "cheap", got[0].Action.Reasoning)
	assert.Equal(t, 0.40, *got[0].ExecutionPrice)
	assert.True(t, got[0].Timestamp.Equal(res.Records[0].Timestamp))
	assert.InDelta(t, res.Records[1].PortfolioValue, got[1].PortfolioValue, 1e-9)

	raw, err := os.ReadFile(j.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"observation_summary"`)
	assert.Contains(t, string(raw), `"action_type":"BUY"`)
}

func TestWriteLedgerCSV(t *testing.T) {
	p := &scripted{actions: []model.Action{
		{Type: model.TradeBuy, MarketID: "FED", Quantity: 2, Belief: 0.7, Reasoning: "cheap, really"},
		{Type: model.TradeSell, MarketID: "FED", Quantity: 9, Belief: 0.2},
	}}
	s, _, _ := newSim(t, dayConfig(2), p)
	res := s.Run(context.Background())

	path := filepath.Join(t.TempDir(), "ledger.csv")
	require.NoError(t, WriteLedgerCSV(path, res.Records))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "index,timestamp,action_type,market_id"))
	assert.Contains(t, lines[1], "0,2024-01-01T00:00:00Z,BUY,FED,2,,0.400000,true,")
	assert.Contains(t, lines[1], `"cheap, really"`)
	assert.Contains(t, lines[2], "SELL,FED,9,,0.380000,false,insufficient_position")
}

func TestNew_RejectsBadConfig(t *testing.T) {
	bad := []Config{
		{},
		{Start: t0, End: t0.Add(time.Hour), MarketIDs: []string{"FED"}},
		{Start: t0, End: t0.Add(-time.Hour), Step: time.Hour, MarketIDs: []string{"FED"}},
		{Start: t0, End: t0.Add(time.Hour), Step: time.Hour},
		{Start: t0, End: t0.Add(time.Hour), Step: time.Hour, MarketIDs: []string{"FED"}, InitialCash: -1},
	}
	for i, cfg := range bad {
		_, err := New(cfg, fedMarket(), nil, &scripted{}, zerolog.Nop())
		assert.Error(t, err, "case %d", i)
	}

	_, err := New(dayConfig(1), nil, nil, &scripted{}, zerolog.Nop())
	assert.Error(t, err)
	_, err = New(dayConfig(1), fedMarket(), nil, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestClock(t *testing.T) {
	_, err := NewClock(t0, t0.Add(time.Hour), 0)
	assert.Error(t, err)
	_, err = NewClock(t0, t0.Add(-time.Hour), time.Minute)
	assert.Error(t, err)

	c, err := NewClock(t0, t0.Add(90*time.Minute), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, Running, c.State())
	c.Advance()
	assert.False(t, c.Finished())
	c.Advance()
	assert.True(t, c.Finished())

	assert.Equal(t, 2, StepsBetween(t0, t0.Add(90*time.Minute), time.Hour))
	assert.Equal(t, 0, StepsBetween(t0, t0, time.Hour))
}
