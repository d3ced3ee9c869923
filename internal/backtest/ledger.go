package backtest

import (
	"time"

	"sequential-trader/internal/model"
)

// Reject reasons recorded on unsuccessful steps.
const (
	RejectUnknownMarket       = "unknown_market"
	RejectLimitNotMarketable  = "limit_not_marketable"
	RejectInsufficientCash    = "insufficient_cash"
	RejectInsufficientHolding = "insufficient_position"
	RejectInvalidOrder        = "invalid_order"
)

// StepRecord is one row of per-step output.
// This is the primary artifact for "what happened" in a run.
type StepRecord struct {
	Index          int                `json:"index"`
	Timestamp      time.Time          `json:"timestamp"`
	MarketPrices   map[string]float64 `json:"market_prices"`
	PortfolioValue float64            `json:"portfolio_value"`
	Action         model.Action       `json:"action"`
	Observation    ObservationSummary `json:"observation_summary"`
	Success        bool               `json:"success"`
	ExecutionPrice *float64           `json:"execution_price,omitempty"`
	RejectReason   string             `json:"reject_reason,omitempty"`
	Settlements    []SettlementRecord `json:"settlements,omitempty"`
}

// ObservationSummary keeps what the agent saw, minus the market snapshots
// already captured in MarketPrices.
type ObservationSummary struct {
	News      []model.NewsItem     `json:"news"`
	Portfolio model.PortfolioState `json:"portfolio"`
}

// SettlementRecord notes a position paid out at the start of a step.
type SettlementRecord struct {
	MarketID string  `json:"market_id"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type Result struct {
	Records     []StepRecord         `json:"records"`
	Final       model.PortfolioState `json:"final"`
	InitialCash float64              `json:"initial_cash"`
	Start       time.Time            `json:"start"`
	End         time.Time            `json:"end"`
	Interrupted bool                 `json:"interrupted"`
}

// Steps is the number of steps completed.
func (r *Result) Steps() int { return len(r.Records) }
