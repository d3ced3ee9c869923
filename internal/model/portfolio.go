package model

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// DefaultInitialCash is the starting balance when a run does not set one.
const DefaultInitialCash = 1000.0

// Portfolio is the ledger of record for one simulation run.
// Units:
// - cash: currency units, never negative
// - positions: contracts per market, never negative
//
// Cash is kept as a decimal so long runs of small fills do not drift.
type Portfolio struct {
	cash        decimal.Decimal
	positions   map[string]int
	realizedPnL decimal.Decimal
	initialCash decimal.Decimal
}

func NewPortfolio(initialCash float64) (*Portfolio, error) {
	if math.IsNaN(initialCash) || math.IsInf(initialCash, 0) {
		return nil, errors.New("initial cash must be a finite number")
	}
	if initialCash < 0 {
		return nil, errors.New("initial cash must be >= 0")
	}
	c := decimal.NewFromFloat(initialCash)
	return &Portfolio{
		cash:        c,
		positions:   map[string]int{},
		realizedPnL: decimal.Zero,
		initialCash: c,
	}, nil
}

// ExecuteTrade applies one order at price and reports whether it was accepted.
//
// A zero quantity is always a successful no-op. BUY needs cash >= quantity*price,
// SELL needs at least quantity held. Anything else is rejected and leaves the
// ledger untouched; rejections are expected agent mistakes, not faults.
func (p *Portfolio) ExecuteTrade(marketID string, t TradeType, quantity int, price float64) bool {
	if quantity == 0 {
		return true
	}
	if quantity < 0 || math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return false
	}

	qty := decimal.NewFromInt(int64(quantity))
	amount := qty.Mul(decimal.NewFromFloat(price))

	switch t {
	case TradeBuy:
		if p.cash.LessThan(amount) {
			return false
		}
		p.cash = p.cash.Sub(amount)
		p.positions[marketID] += quantity
		return true
	case TradeSell:
		held := p.positions[marketID]
		if held < quantity {
			return false
		}
		p.cash = p.cash.Add(amount)
		p.positions[marketID] = held - quantity
		return true
	case TradeHold:
		return true
	default:
		return false
	}
}

// State marks the ledger to market. Markets missing from prices are valued at 0.
func (p *Portfolio) State(prices map[string]float64) PortfolioState {
	positionValue := decimal.Zero
	for id, qty := range p.positions {
		px, ok := prices[id]
		if !ok || math.IsNaN(px) || math.IsInf(px, 0) {
			continue
		}
		positionValue = positionValue.Add(decimal.NewFromInt(int64(qty)).Mul(decimal.NewFromFloat(px)))
	}
	total := p.cash.Add(positionValue)
	unrealized := total.Sub(p.initialCash).Sub(p.realizedPnL)

	return PortfolioState{
		Cash:          p.cash.InexactFloat64(),
		Positions:     p.Positions(),
		UnrealizedPnL: unrealized.InexactFloat64(),
		RealizedPnL:   p.realizedPnL.InexactFloat64(),
		TotalValue:    total.InexactFloat64(),
	}
}

// SettleMarket pays out the whole position at settlementPrice (e.g. 1.0 for a
// YES resolution, 0.0 for NO) and removes the entry. Realized P&L is not
// touched because cost basis is not tracked. It reports false and leaves the
// ledger alone when there is no entry or the price is not finite.
func (p *Portfolio) SettleMarket(marketID string, settlementPrice float64) bool {
	qty, ok := p.positions[marketID]
	if !ok || math.IsNaN(settlementPrice) || math.IsInf(settlementPrice, 0) {
		return false
	}
	payout := decimal.NewFromInt(int64(qty)).Mul(decimal.NewFromFloat(settlementPrice))
	p.cash = p.cash.Add(payout)
	delete(p.positions, marketID)
	return true
}

func (p *Portfolio) Cash() float64 { return p.cash.InexactFloat64() }

func (p *Portfolio) InitialCash() float64 { return p.initialCash.InexactFloat64() }

func (p *Portfolio) RealizedPnL() float64 { return p.realizedPnL.InexactFloat64() }

// Position returns the held quantity, 0 when the market has no entry.
func (p *Portfolio) Position(marketID string) int { return p.positions[marketID] }

// HasPosition reports whether an entry exists, even a zero one.
func (p *Portfolio) HasPosition(marketID string) bool {
	_, ok := p.positions[marketID]
	return ok
}

// Positions returns a copy of the position map.
func (p *Portfolio) Positions() map[string]int {
	out := make(map[string]int, len(p.positions))
	for k, v := range p.positions {
		out[k] = v
	}
	return out
}
