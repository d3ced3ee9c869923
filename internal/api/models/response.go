package models

import (
	"time"

	"sequential-trader/internal/agent"
	"sequential-trader/internal/analysis"
	"sequential-trader/internal/backtest"
	"sequential-trader/internal/storage"
)

// BacktestResponse represents the response from a backtest run
type BacktestResponse struct {
	ID      string                `json:"id,omitempty"`
	Status  string                `json:"status"`
	Window  TimeWindow            `json:"window"`
	Summary analysis.Summary      `json:"summary"`
	Ledger  []backtest.StepRecord `json:"ledger,omitempty"`
}

// TimeWindow represents a time range
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// LedgerResponse returns the stored step records of a run
type LedgerResponse struct {
	Run    storage.Run           `json:"run"`
	Ledger []backtest.StepRecord `json:"ledger"`
}

// CompareBacktestResponse represents the response from a comparison
type CompareBacktestResponse struct {
	Comparison []analysis.RankedRun `json:"comparison"`
	Failed     []VariationError     `json:"failed,omitempty"`
}

// VariationError reports a variation that could not be run
type VariationError struct {
	Name  string      `json:"name"`
	Error ErrorDetail `json:"error"`
}

// RunsResponse lists stored runs, newest first
type RunsResponse struct {
	Runs  []storage.Run `json:"runs"`
	Count int           `json:"count"`
}

// RankResponse ranks the completed stored runs
type RankResponse struct {
	Rankings []RankedStoredRun `json:"rankings"`
}

// RankedStoredRun is a ranked summary with the id of the run it came from
type RankedStoredRun struct {
	ID string `json:"id"`
	analysis.RankedRun
}

// AgentsResponse lists the selectable policies
type AgentsResponse struct {
	Agents []agent.Descriptor `json:"agents"`
}

// MarketInfo represents one resolved market from the registry
type MarketInfo struct {
	Query      string    `json:"query"`
	TokenID    string    `json:"token_id"`
	Question   string    `json:"question,omitempty"`
	Source     string    `json:"source"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// PresetInfo represents a run config preset on disk
type PresetInfo struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	File    string   `json:"file"`
	Markets []string `json:"markets"`
	Agent   string   `json:"agent"`
	Source  string   `json:"source"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
