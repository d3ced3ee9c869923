package agent

import (
	"context"
	"math/rand"

	"sequential-trader/internal/model"
)

// RandomPolicy trades the first market (by id) at random. It is a baseline.
type RandomPolicy struct {
	rng    *rand.Rand
	MaxQty int
}

func NewRandomPolicy(seed int64, maxQty int) *RandomPolicy {
	if maxQty <= 0 {
		maxQty = 10
	}
	return &RandomPolicy{rng: rand.New(rand.NewSource(seed)), MaxQty: maxQty}
}

func (p *RandomPolicy) Name() string { return "random" }

func (p *RandomPolicy) Act(_ context.Context, obs model.Observation) (model.Action, error) {
	ids := sortedKeys(obs.MarketSnapshots)
	if len(ids) == 0 {
		return model.Hold("none", "No markets available.", ""), nil
	}

	types := []model.TradeType{model.TradeBuy, model.TradeSell, model.TradeHold}
	t := types[p.rng.Intn(len(types))]
	qty := 0
	if t != model.TradeHold {
		qty = 1 + p.rng.Intn(p.MaxQty)
	}
	return model.Action{
		Type:      t,
		MarketID:  ids[0],
		Quantity:  qty,
		Reasoning: "Random choice for testing purposes.",
		Belief:    p.rng.Float64(),
	}, nil
}
