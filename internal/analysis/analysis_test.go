package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sequential-trader/internal/agent"
	"sequential-trader/internal/backtest"
	"sequential-trader/internal/model"
)

func rec(i int, value float64, a model.Action, ok bool) backtest.StepRecord {
	return backtest.StepRecord{
		Index:          i,
		Timestamp:      time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC),
		PortfolioValue: value,
		Action:         a,
		Success:        ok,
	}
}

func TestSummarize(t *testing.T) {
	buy := model.Action{Type: model.TradeBuy, MarketID: "FED", Quantity: 10, Belief: 0.6}
	sell := model.Action{Type: model.TradeSell, MarketID: "FED", Quantity: 5, Belief: 0.4}
	records := []backtest.StepRecord{
		rec(0, 1000, buy, true),
		rec(1, 1100, model.Hold("FED", "", ""), true),
		rec(2, 880, sell, false),
		rec(3, 990, agent.Fallback(assert.AnError), true),
	}
	records[0].Observation.News = []model.NewsItem{{Headline: "a"}, {Headline: "b"}}
	records[3].Settlements = []backtest.SettlementRecord{{MarketID: "FED", Price: 1, Quantity: 10}}

	s := Summarize(records, 1000)

	assert.Equal(t, 4, s.Steps)
	assert.Equal(t, 990.0, s.FinalValue)
	assert.InDelta(t, -0.01, s.TotalReturn, 1e-12)
	assert.Equal(t, 1100.0, s.PeakValue)
	assert.InDelta(t, 0.2, s.MaxDrawdown, 1e-12)
	assert.Equal(t, 1, s.Buys)
	assert.Equal(t, 0, s.Sells)
	assert.Equal(t, 1, s.Trades)
	assert.Equal(t, 2, s.Holds)
	assert.Equal(t, 1, s.Rejected)
	assert.Equal(t, 1, s.Fallbacks)
	assert.Equal(t, 1, s.Settlements)
	assert.Equal(t, 2, s.NewsItems)

	// returns: 0, 0.1, -0.2, 0.125
	assert.InDelta(t, 0.00625, s.MeanStepReturn, 1e-12)
	assert.Greater(t, s.StdStepReturn, 0.0)
	assert.InDelta(t, s.MeanStepReturn/s.StdStepReturn, s.SharpeLike, 1e-12)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, 500)

	assert.Equal(t, 500.0, s.FinalValue)
	assert.Zero(t, s.TotalReturn)
	assert.Zero(t, s.MaxDrawdown)
	assert.Zero(t, s.SharpeLike)
}

func TestSummarize_FlatEquityHasNoSharpe(t *testing.T) {
	hold := model.Hold("FED", "", "")
	s := Summarize([]backtest.StepRecord{rec(0, 100, hold, true), rec(1, 100, hold, true)}, 100)

	assert.Zero(t, s.StdStepReturn)
	assert.Zero(t, s.SharpeLike)
}

func TestSummarizeResult(t *testing.T) {
	res := &backtest.Result{
		Records:     []backtest.StepRecord{rec(0, 1050, model.Hold("FED", "", ""), true)},
		Final:       model.PortfolioState{TotalValue: 1050},
		InitialCash: 1000,
		Interrupted: true,
	}

	s := SummarizeResult(res)

	assert.Equal(t, 1050.0, s.FinalValue)
	assert.InDelta(t, 0.05, s.TotalReturn, 1e-12)
	assert.True(t, s.Interrupted)
}

func TestInitialCashFromRecords(t *testing.T) {
	assert.Zero(t, InitialCashFromRecords(nil))
	r := rec(0, 990, model.Hold("FED", "", ""), true)
	r.Observation.Portfolio.TotalValue = 1000
	assert.Equal(t, 1000.0, InitialCashFromRecords([]backtest.StepRecord{r}))
}

func TestRank(t *testing.T) {
	ranked := Rank(map[string]Summary{
		"low":      {TotalReturn: -0.1},
		"high":     {TotalReturn: 0.2, MaxDrawdown: 0.3},
		"high-dd":  {TotalReturn: 0.2, MaxDrawdown: 0.1},
		"baseline": {TotalReturn: 0},
	})

	require.Len(t, ranked, 4)
	names := []string{ranked[0].Name, ranked[1].Name, ranked[2].Name, ranked[3].Name}
	assert.Equal(t, []string{"high-dd", "high", "baseline", "low"}, names)
	for i, r := range ranked {
		assert.Equal(t, i+1, r.Rank)
	}
}
