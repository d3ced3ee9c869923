package agent

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"sequential-trader/internal/model"
)

// Policy decides one Action per observation. It may fail; the engine always
// calls it through Guarded.
type Policy interface {
	Name() string
	Act(ctx context.Context, obs model.Observation) (model.Action, error)
}

const (
	FallbackMarketID = "error_fallback"
	FallbackJournal  = "Error occurred. No state preserved."
)

// Fallback is the HOLD returned whenever a policy cannot produce a usable action.
func Fallback(err error) model.Action {
	return model.Hold(FallbackMarketID, fmt.Sprintf("Error in agent processing: %v", err), FallbackJournal)
}

// Guarded wraps a Policy so that errors, panics and invalid actions turn into
// a fallback HOLD instead of stopping the run.
type Guarded struct {
	policy Policy
	log    zerolog.Logger
}

func NewGuarded(p Policy, log zerolog.Logger) *Guarded {
	return &Guarded{
		policy: p,
		log:    log.With().Str("component", "agent").Str("policy", p.Name()).Logger(),
	}
}

func (g *Guarded) Name() string { return g.policy.Name() }

// Act never fails.
func (g *Guarded) Act(ctx context.Context, obs model.Observation) (action model.Action) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error().Interface("panic", r).Time("as_of", obs.Timestamp).Msg("policy panicked")
			action = Fallback(fmt.Errorf("panic: %v", r))
		}
	}()

	a, err := g.policy.Act(ctx, obs)
	if err != nil {
		g.log.Error().Err(err).Time("as_of", obs.Timestamp).Msg("policy failed")
		return Fallback(err)
	}
	if err := a.Validate(); err != nil {
		g.log.Warn().Err(err).Time("as_of", obs.Timestamp).Msg("policy returned invalid action")
		return Fallback(fmt.Errorf("invalid action: %w", err))
	}
	return a
}
