package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// TradeType is the kind of order an agent asks for in a step.
// Keep these values stable; they are written to step logs and CSV output.
type TradeType string

const (
	TradeBuy  TradeType = "BUY"
	TradeSell TradeType = "SELL"
	TradeHold TradeType = "HOLD"
)

// ParseTradeType accepts any casing of BUY, SELL or HOLD.
func ParseTradeType(s string) (TradeType, error) {
	switch t := TradeType(strings.ToUpper(strings.TrimSpace(s))); t {
	case TradeBuy, TradeSell, TradeHold:
		return t, nil
	default:
		return "", fmt.Errorf("unknown action type %q", s)
	}
}

// Action is the decision an agent returns for one step.
// It is consumed exactly once by the portfolio.
type Action struct {
	Type     TradeType `json:"action_type"`
	MarketID string    `json:"market_id"`
	Quantity int       `json:"quantity"`
	// Price is an optional limit. Nil means take the quoted side.
	Price     *float64 `json:"price,omitempty"`
	Reasoning string   `json:"reasoning"`
	// Journal is carried verbatim into the next step's observation.
	Journal string  `json:"journal"`
	Belief  float64 `json:"belief"`
}

func (a Action) Validate() error {
	switch a.Type {
	case TradeBuy, TradeSell, TradeHold:
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	if a.Quantity < 0 {
		return errors.New("quantity must be >= 0")
	}
	if math.IsNaN(a.Belief) || a.Belief < 0 || a.Belief > 1 {
		return errors.New("belief must be in [0, 1]")
	}
	if a.Price != nil && (math.IsNaN(*a.Price) || *a.Price < 0) {
		return errors.New("limit price must be >= 0")
	}
	if a.Type != TradeHold && strings.TrimSpace(a.MarketID) == "" {
		return errors.New("market_id is required for BUY/SELL")
	}
	return nil
}

// Hold builds a no-op action. Used for fallbacks and baselines.
func Hold(marketID, reasoning, journal string) Action {
	return Action{
		Type:      TradeHold,
		MarketID:  marketID,
		Reasoning: reasoning,
		Journal:   journal,
		Belief:    0.5,
	}
}
