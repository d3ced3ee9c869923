package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"sequential-trader/internal/agent"
	"sequential-trader/internal/backtest"
	"sequential-trader/internal/model"
)

// Summary is the run-level view of a step log, suitable for ranking.
type Summary struct {
	Steps       int     `json:"steps"`
	InitialCash float64 `json:"initial_cash"`
	FinalValue  float64 `json:"final_value"`
	TotalReturn float64 `json:"total_return"`
	// MaxDrawdown is the largest peak-to-trough loss as a positive fraction.
	MaxDrawdown float64 `json:"max_drawdown"`
	PeakValue   float64 `json:"peak_value"`

	MeanStepReturn float64 `json:"mean_step_return"`
	StdStepReturn  float64 `json:"std_step_return"`
	// SharpeLike is mean/stdev of step returns, not annualized, zero rf.
	SharpeLike float64 `json:"sharpe_like"`

	Trades      int `json:"trades"`
	Buys        int `json:"buys"`
	Sells       int `json:"sells"`
	Holds       int `json:"holds"`
	Rejected    int `json:"rejected"`
	Fallbacks   int `json:"fallbacks"`
	Settlements int `json:"settlements"`
	NewsItems   int `json:"news_items"`

	Interrupted bool `json:"interrupted"`
}

// SummarizeResult summarizes a finished run.
func SummarizeResult(res *backtest.Result) Summary {
	s := Summarize(res.Records, res.InitialCash)
	s.FinalValue = res.Final.TotalValue
	s.TotalReturn = totalReturn(s.InitialCash, s.FinalValue)
	s.Interrupted = res.Interrupted
	return s
}

// Summarize computes statistics from recorded steps. The equity curve starts at
// initialCash and then takes each step's post-trade portfolio value.
func Summarize(records []backtest.StepRecord, initialCash float64) Summary {
	s := Summary{
		Steps:       len(records),
		InitialCash: initialCash,
		FinalValue:  initialCash,
		PeakValue:   initialCash,
	}

	equity := make([]float64, 0, len(records)+1)
	equity = append(equity, initialCash)
	for _, r := range records {
		equity = append(equity, r.PortfolioValue)
		s.NewsItems += len(r.Observation.News)
		s.Settlements += len(r.Settlements)

		if r.Action.MarketID == agent.FallbackMarketID {
			s.Fallbacks++
		}
		if !r.Success {
			s.Rejected++
			continue
		}
		switch {
		case r.Action.Quantity == 0 || r.Action.Type == model.TradeHold:
			s.Holds++
		case r.Action.Type == model.TradeBuy:
			s.Buys++
		case r.Action.Type == model.TradeSell:
			s.Sells++
		}
	}
	s.Trades = s.Buys + s.Sells

	s.FinalValue = equity[len(equity)-1]
	s.PeakValue = floats.Max(equity)
	s.TotalReturn = totalReturn(initialCash, s.FinalValue)
	s.MaxDrawdown = maxDrawdown(equity)

	returns := stepReturns(equity)
	if len(returns) > 0 {
		s.MeanStepReturn = stat.Mean(returns, nil)
	}
	if len(returns) > 1 {
		s.StdStepReturn = stat.StdDev(returns, nil)
		if s.StdStepReturn > 0 {
			s.SharpeLike = s.MeanStepReturn / s.StdStepReturn
		}
	}
	return s
}

// InitialCashFromRecords recovers the starting cash of a logged run from the
// portfolio the agent saw at the first step.
func InitialCashFromRecords(records []backtest.StepRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	return records[0].Observation.Portfolio.TotalValue
}

func totalReturn(initial, final float64) float64 {
	if initial == 0 {
		return 0
	}
	return (final - initial) / initial
}

func maxDrawdown(equity []float64) float64 {
	if len(equity) < 2 {
		return 0
	}
	peak := equity[0]
	worst := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

func stepReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev == 0 || math.IsNaN(prev) {
			out = append(out, 0)
			continue
		}
		out = append(out, (equity[i]-prev)/prev)
	}
	return out
}
