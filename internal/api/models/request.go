package models

import "sequential-trader/internal/config"

// BacktestRequest represents the request body for running a backtest
type BacktestRequest struct {
	Name    string          `json:"name,omitempty"`
	Config  config.Config   `json:"config"`
	Options BacktestOptions `json:"options,omitempty"`
}

// BacktestOptions contains optional backtest parameters
type BacktestOptions struct {
	IncludeLedger bool `json:"include_ledger,omitempty"` // default: false
}

// CompareBacktestRequest runs one backtest per variation. Each variation is
// overlaid on BaseConfig; zero-valued fields keep the base value.
type CompareBacktestRequest struct {
	BaseConfig config.Config       `json:"base_config"`
	Variations []BacktestVariation `json:"variations" binding:"required,min=1,dive"`
}

// BacktestVariation is one named config overlay
type BacktestVariation struct {
	Name   string        `json:"name" binding:"required"`
	Config config.Config `json:"config"`
}

// ListRunsQuery holds the query parameters of the run listing
type ListRunsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=0"`
}
