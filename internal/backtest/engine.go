package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"sequential-trader/internal/agent"
	"sequential-trader/internal/data"
	"sequential-trader/internal/model"
	"sequential-trader/internal/news"
)

// Settlement pays out a market at Price once the clock reaches At.
type Settlement struct {
	MarketID string
	At       time.Time
	Price    float64
}

// Config is everything the loop itself needs. Data, news and agent
// configuration belong to the collaborators.
type Config struct {
	Start       time.Time
	End         time.Time
	Step        time.Duration
	MarketIDs   []string
	InitialCash float64
	Settlements []Settlement
}

func (c Config) Validate() error {
	if c.Start.IsZero() || c.End.IsZero() {
		return fmt.Errorf("start and end are required")
	}
	if c.Step <= 0 {
		return fmt.Errorf("step must be > 0")
	}
	if c.End.Before(c.Start) {
		return fmt.Errorf("end must not be before start")
	}
	if len(c.MarketIDs) == 0 {
		return fmt.Errorf("at least one market id is required")
	}
	if c.InitialCash < 0 {
		return fmt.Errorf("initial cash must be >= 0")
	}
	return nil
}

// Simulation replays history to one agent, one step at a time. It owns the
// ledger and is driven from a single goroutine.
type Simulation struct {
	cfg       Config
	clock     *Clock
	portfolio *model.Portfolio
	market    data.MarketDataProvider
	news      news.Provider
	agent     *agent.Guarded
	recorders []Recorder
	log       zerolog.Logger

	index             int
	settled           map[int]bool
	records           []StepRecord
	lastPrices        map[string]float64
	previousReasoning *string
	previousJournal   *string
}

func New(cfg Config, market data.MarketDataProvider, newsProvider news.Provider, policy agent.Policy, log zerolog.Logger, recorders ...Recorder) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}
	if market == nil {
		return nil, fmt.Errorf("market data provider is nil")
	}
	if policy == nil {
		return nil, fmt.Errorf("policy is nil")
	}
	if newsProvider == nil {
		newsProvider = news.None{}
	}

	clock, err := NewClock(cfg.Start, cfg.End, cfg.Step)
	if err != nil {
		return nil, err
	}
	pf, err := model.NewPortfolio(cfg.InitialCash)
	if err != nil {
		return nil, err
	}

	return &Simulation{
		cfg:        cfg,
		clock:      clock,
		portfolio:  pf,
		market:     market,
		news:       newsProvider,
		agent:      agent.NewGuarded(policy, log),
		recorders:  recorders,
		log:        log.With().Str("component", "backtest").Logger(),
		settled:    map[int]bool{},
		lastPrices: map[string]float64{},
	}, nil
}

func (s *Simulation) Clock() Clock { return *s.clock }

func (s *Simulation) Portfolio() *model.Portfolio { return s.portfolio }

func (s *Simulation) Records() []StepRecord { return s.records }

// Step advances the simulation by one step. It returns false, doing nothing,
// once the clock is finished.
func (s *Simulation) Step(ctx context.Context) bool {
	if s.clock.Finished() {
		return false
	}
	now := s.clock.Current

	settlements := s.settleDue(now)

	snapshots := make(map[string]model.MarketSnapshot, len(s.cfg.MarketIDs))
	prices := make(map[string]float64, len(s.cfg.MarketIDs))
	for _, id := range s.cfg.MarketIDs {
		snap := s.market.Snapshot(ctx, id, now)
		snapshots[id] = snap
		prices[id] = snap.LastPrice
	}
	s.lastPrices = prices

	items := s.news.News(ctx, now.Add(-s.clock.Step), now)

	obs := model.Observation{
		Timestamp:         now,
		MarketSnapshots:   snapshots,
		News:              items,
		Portfolio:         s.portfolio.State(prices),
		PreviousReasoning: s.previousReasoning,
		PreviousJournal:   s.previousJournal,
	}

	action := s.agent.Act(ctx, obs)
	reasoning, journal := action.Reasoning, action.Journal
	s.previousReasoning, s.previousJournal = &reasoning, &journal

	success, execPrice, reason := s.execute(action, snapshots)

	rec := StepRecord{
		Index:          s.index,
		Timestamp:      now,
		MarketPrices:   prices,
		PortfolioValue: s.portfolio.State(prices).TotalValue,
		Action:         action,
		Observation:    ObservationSummary{News: items, Portfolio: obs.Portfolio},
		Success:        success,
		ExecutionPrice: execPrice,
		RejectReason:   reason,
		Settlements:    settlements,
	}
	s.records = append(s.records, rec)
	s.emit(rec)

	ev := s.log.Info()
	if !success {
		ev = s.log.Warn().Str("reject_reason", reason)
	}
	ev.Int("step", s.index).
		Time("as_of", now).
		Str("action", string(action.Type)).
		Str("market", action.MarketID).
		Int("quantity", action.Quantity).
		Bool("success", success).
		Float64("portfolio_value", rec.PortfolioValue).
		Msg("step complete")

	s.index++
	s.clock.Advance()
	return true
}

// Run steps until the clock is finished or ctx is cancelled. Cancellation is
// checked between steps only; the final state is always returned.
func (s *Simulation) Run(ctx context.Context) *Result {
	s.log.Info().
		Time("start", s.cfg.Start).
		Time("end", s.cfg.End).
		Dur("step", s.cfg.Step).
		Strs("markets", s.cfg.MarketIDs).
		Int("steps", StepsBetween(s.cfg.Start, s.cfg.End, s.cfg.Step)).
		Msg("starting simulation")

	interrupted := false
	for !s.clock.Finished() {
		if ctx.Err() != nil {
			interrupted = true
			s.log.Warn().Time("as_of", s.clock.Current).Msg("simulation interrupted")
			break
		}
		s.Step(ctx)
	}

	res := &Result{
		Records:     s.records,
		Final:       s.portfolio.State(s.lastPrices),
		InitialCash: s.portfolio.InitialCash(),
		Start:       s.cfg.Start,
		End:         s.cfg.End,
		Interrupted: interrupted,
	}
	s.log.Info().
		Int("steps", res.Steps()).
		Float64("final_value", res.Final.TotalValue).
		Bool("interrupted", interrupted).
		Msg("simulation complete")
	return res
}

// execute resolves the fill price and applies the action to the ledger.
func (s *Simulation) execute(a model.Action, snapshots map[string]model.MarketSnapshot) (bool, *float64, string) {
	if a.Type == model.TradeHold || a.Quantity == 0 {
		return s.portfolio.ExecuteTrade(a.MarketID, a.Type, a.Quantity, 0), nil, ""
	}

	snap, ok := snapshots[a.MarketID]
	if !ok {
		return false, nil, RejectUnknownMarket
	}

	var price float64
	switch a.Type {
	case model.TradeBuy:
		price = snap.BestAsk
		if a.Price != nil && price > *a.Price {
			return false, nil, RejectLimitNotMarketable
		}
	case model.TradeSell:
		price = snap.BestBid
		if a.Price != nil && price < *a.Price {
			return false, nil, RejectLimitNotMarketable
		}
	default:
		return false, nil, RejectInvalidOrder
	}

	if !s.portfolio.ExecuteTrade(a.MarketID, a.Type, a.Quantity, price) {
		reason := RejectInvalidOrder
		switch a.Type {
		case model.TradeBuy:
			reason = RejectInsufficientCash
		case model.TradeSell:
			reason = RejectInsufficientHolding
		}
		return false, &price, reason
	}
	return true, &price, ""
}

func (s *Simulation) settleDue(now time.Time) []SettlementRecord {
	var out []SettlementRecord
	for i, st := range s.cfg.Settlements {
		if s.settled[i] || st.At.After(now) {
			continue
		}
		s.settled[i] = true
		qty := s.portfolio.Position(st.MarketID)
		if !s.portfolio.HasPosition(st.MarketID) {
			continue
		}
		if !s.portfolio.SettleMarket(st.MarketID, st.Price) {
			s.log.Warn().Str("market", st.MarketID).Float64("price", st.Price).Msg("settlement skipped, price not finite")
			continue
		}
		out = append(out, SettlementRecord{MarketID: st.MarketID, Price: st.Price, Quantity: qty})
		s.log.Info().Str("market", st.MarketID).Float64("price", st.Price).Int("quantity", qty).Msg("market settled")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return out
}

func (s *Simulation) emit(rec StepRecord) {
	for _, r := range s.recorders {
		if err := r.Record(rec); err != nil {
			s.log.Error().Err(err).Int("step", rec.Index).Msg("recorder failed")
		}
	}
}
