package agent

import (
	"context"
	"fmt"
	"sort"

	"sequential-trader/internal/model"
)

// ThresholdParams implements a simple price-band strategy:
// - BUY Quantity when the ask is at or below BuyBelow
// - SELL up to Quantity when the bid is at or above SellAbove
// - Otherwise HOLD
//
// MarketID picks the traded market; empty means the first market by id.
type ThresholdParams struct {
	MarketID  string
	BuyBelow  float64
	SellAbove float64
	Quantity  int
}

func (p ThresholdParams) Validate() error {
	if p.BuyBelow < 0 || p.BuyBelow > 1 {
		return fmt.Errorf("buy_below must be in [0, 1]")
	}
	if p.SellAbove < 0 || p.SellAbove > 1 {
		return fmt.Errorf("sell_above must be in [0, 1]")
	}
	if p.BuyBelow >= p.SellAbove {
		return fmt.Errorf("buy_below (%v) must be below sell_above (%v)", p.BuyBelow, p.SellAbove)
	}
	if p.Quantity <= 0 {
		return fmt.Errorf("quantity must be > 0")
	}
	return nil
}

type ThresholdPolicy struct {
	Params ThresholdParams
}

func NewThresholdPolicy(p ThresholdParams) (*ThresholdPolicy, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &ThresholdPolicy{Params: p}, nil
}

func (t *ThresholdPolicy) Name() string { return "threshold" }

func (t *ThresholdPolicy) Act(_ context.Context, obs model.Observation) (model.Action, error) {
	id := t.Params.MarketID
	if id == "" {
		ids := make([]string, 0, len(obs.MarketSnapshots))
		for k := range obs.MarketSnapshots {
			ids = append(ids, k)
		}
		if len(ids) == 0 {
			return model.Hold("none", "No markets available.", ""), nil
		}
		sort.Strings(ids)
		id = ids[0]
	}

	snap, ok := obs.MarketSnapshots[id]
	if !ok {
		return model.Hold(id, "Market not quoted this step.", ""), nil
	}
	belief := snap.Mid()
	journal := fmt.Sprintf("%s bid %.3f ask %.3f", obs.Timestamp.Format("2006-01-02"), snap.BestBid, snap.BestAsk)

	if snap.BestAsk <= t.Params.BuyBelow {
		qty := t.Params.Quantity
		if snap.BestAsk > 0 {
			if affordable := int(obs.Portfolio.Cash / snap.BestAsk); affordable < qty {
				qty = affordable
			}
		}
		if qty > 0 {
			return model.Action{
				Type:      model.TradeBuy,
				MarketID:  id,
				Quantity:  qty,
				Reasoning: fmt.Sprintf("Ask %.3f at or below %.3f.", snap.BestAsk, t.Params.BuyBelow),
				Journal:   journal,
				Belief:    belief,
			}, nil
		}
	}

	if held := obs.Portfolio.Positions[id]; held > 0 && snap.BestBid >= t.Params.SellAbove {
		qty := t.Params.Quantity
		if held < qty {
			qty = held
		}
		return model.Action{
			Type:      model.TradeSell,
			MarketID:  id,
			Quantity:  qty,
			Reasoning: fmt.Sprintf("Bid %.3f at or above %.3f.", snap.BestBid, t.Params.SellAbove),
			Journal:   journal,
			Belief:    belief,
		}, nil
	}

	a := model.Hold(id, "Price inside the band.", journal)
	a.Belief = belief
	return a, nil
}
