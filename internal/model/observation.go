package model

import "time"

// PortfolioState is a read-only projection of the ledger at a set of prices.
//
// UnrealizedPnL is total return (TotalValue - initial cash - RealizedPnL), not
// cost-basis accounting. No lot tracking (FIFO/LIFO/average cost) is done.
type PortfolioState struct {
	Cash          float64        `json:"cash"`
	Positions     map[string]int `json:"positions"`
	UnrealizedPnL float64        `json:"unrealized_pnl"`
	RealizedPnL   float64        `json:"realized_pnl"`
	TotalValue    float64        `json:"total_value"`
}

// Observation is everything the agent may see at Timestamp.
// It is rebuilt every step and never outlives it.
type Observation struct {
	Timestamp       time.Time                 `json:"timestamp"`
	MarketSnapshots map[string]MarketSnapshot `json:"market_snapshots"`
	News            []NewsItem                `json:"news"`
	Portfolio       PortfolioState            `json:"portfolio"`

	// Nil on the first step.
	PreviousReasoning *string `json:"previous_reasoning,omitempty"`
	PreviousJournal   *string `json:"previous_journal,omitempty"`
}
