package data

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"sequential-trader/internal/model"
)

const (
	DefaultGammaURL = "https://gamma-api.polymarket.com"
	DefaultClobURL  = "https://clob.polymarket.com"

	// minutes per price-history bar
	polymarketFidelity = 60
)

// PolymarketConfig configures both Polymarket endpoints.
type PolymarketConfig struct {
	Gamma ClientConfig
	Clob  ClientConfig

	// Registry seeds query to token resolution. Optional.
	Registry *MarketRegistry
}

// PolymarketSource resolves free-text market queries to the YES outcome token
// and reads its price history. Resolved tokens are memoized per instance.
type PolymarketSource struct {
	gamma   *resty.Client
	clob    *resty.Client
	limiter *rate.Limiter
	tokens  map[string]string
	log     zerolog.Logger
}

// GammaMarket is the subset of a gamma market record used for resolution.
type GammaMarket struct {
	ID           string          `json:"id"`
	Question     string          `json:"question"`
	Slug         string          `json:"slug"`
	Volume       json.RawMessage `json:"volume"`
	ClobTokenIDs json.RawMessage `json:"clobTokenIds"`
	Outcomes     json.RawMessage `json:"outcomes"`
}

type gammaSearchResponse struct {
	Events []struct {
		Markets []GammaMarket `json:"markets"`
	} `json:"events"`
}

type priceHistoryResponse struct {
	History []struct {
		T int64   `json:"t"`
		P float64 `json:"p"`
	} `json:"history"`
}

func NewPolymarketSource(cfg PolymarketConfig, log zerolog.Logger) *PolymarketSource {
	gammaCfg := cfg.Gamma.withDefaults(DefaultGammaURL)
	clobCfg := cfg.Clob.withDefaults(DefaultClobURL)

	s := &PolymarketSource{
		gamma:   NewRestClient(gammaCfg),
		clob:    NewRestClient(clobCfg),
		limiter: NewLimiter(clobCfg.RateLimitPerMinute, clobCfg.Burst),
		tokens:  map[string]string{},
		log:     log.With().Str("component", "data.polymarket").Logger(),
	}
	if cfg.Registry != nil {
		for _, e := range cfg.Registry.Markets {
			if e.TokenID != "" {
				s.tokens[e.Query] = e.TokenID
			}
		}
	}
	return s
}

func (s *PolymarketSource) Name() string { return "polymarket" }

// FetchTape resolves query to a token and returns its hourly price history.
func (s *PolymarketSource) FetchTape(ctx context.Context, query string, start, end time.Time) ([]model.TapePoint, error) {
	token, _, err := s.ResolveToken(ctx, query)
	if err != nil {
		return nil, err
	}

	if err := wait(ctx, s.limiter); err != nil {
		return nil, fmt.Errorf("polymarket rate limit wait: %w", err)
	}

	resp, err := s.clob.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"market":   token,
			"startTs":  strconv.FormatInt(start.Unix(), 10),
			"endTs":    strconv.FormatInt(end.Unix(), 10),
			"fidelity": strconv.Itoa(polymarketFidelity),
		}).
		Get("/prices-history")
	if err != nil {
		return nil, fmt.Errorf("polymarket prices-history request: %w", err)
	}
	if resp.IsError() {
		return nil, StatusError(s.Name(), resp)
	}

	var body priceHistoryResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode polymarket price history: %w", err)
	}

	points := make([]model.TapePoint, 0, len(body.History))
	for _, h := range body.History {
		points = append(points, model.TapePoint{T: time.Unix(h.T, 0).UTC(), P: h.P})
	}
	s.log.Info().
		Str("query", query).
		Str("token", token).
		Int("points", len(points)).
		Time("start", start).
		Time("end", end).
		Msg("fetched price history")
	return points, nil
}

// ResolveToken maps query to the YES clob token id of the best matching
// market. The matched market is returned when a search was performed.
func (s *PolymarketSource) ResolveToken(ctx context.Context, query string) (string, *GammaMarket, error) {
	if tok, ok := s.tokens[query]; ok {
		return tok, nil, nil
	}

	markets, err := s.search(ctx, query)
	if err != nil {
		return "", nil, err
	}
	RankMarkets(markets, query)

	for i := range markets {
		tok, ok := yesToken(markets[i])
		if !ok {
			continue
		}
		s.tokens[query] = tok
		s.log.Info().Str("query", query).Str("token", tok).Str("question", markets[i].Question).Msg("resolved market")
		return tok, &markets[i], nil
	}
	return "", nil, &SourceError{
		Source:  s.Name(),
		Code:    "MARKET_NOT_FOUND",
		Message: fmt.Sprintf("no market with a YES outcome matches %q", query),
	}
}

func (s *PolymarketSource) search(ctx context.Context, query string) ([]GammaMarket, error) {
	if err := wait(ctx, s.limiter); err != nil {
		return nil, fmt.Errorf("polymarket rate limit wait: %w", err)
	}

	resp, err := s.gamma.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"q": query, "active": "true"}).
		Get("/public-search")
	if err != nil {
		return nil, fmt.Errorf("polymarket search request: %w", err)
	}
	if resp.IsError() {
		return nil, StatusError(s.Name(), resp)
	}

	var markets []GammaMarket
	var search gammaSearchResponse
	if err := json.Unmarshal(resp.Body(), &search); err == nil {
		for _, ev := range search.Events {
			markets = append(markets, ev.Markets...)
		}
	} else if err := json.Unmarshal(resp.Body(), &markets); err != nil {
		return nil, fmt.Errorf("decode polymarket search: %w", err)
	}
	if len(markets) > 0 {
		return markets, nil
	}

	// Fall back to the most active markets.
	resp, err = s.gamma.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"active": "true", "limit": "20"}).
		Get("/markets")
	if err != nil {
		return nil, fmt.Errorf("polymarket markets request: %w", err)
	}
	if resp.IsError() {
		return nil, StatusError(s.Name(), resp)
	}
	if err := json.Unmarshal(resp.Body(), &markets); err != nil {
		return nil, fmt.Errorf("decode polymarket markets: %w", err)
	}
	return markets, nil
}

// RankMarkets orders markets best match first. Each query word found in the
// question scores 100, matching every word adds 1000, and volume breaks ties.
func RankMarkets(markets []GammaMarket, query string) {
	words := strings.Fields(strings.ToLower(query))
	score := func(m GammaMarket) float64 {
		q := strings.ToLower(m.Question)
		matches := 0
		for _, w := range words {
			if strings.Contains(q, w) {
				matches++
			}
		}
		s := float64(matches) * 100
		if matches == len(words) {
			s += 1000
		}
		return s + m.volume()/1e6
	}
	sort.SliceStable(markets, func(i, j int) bool {
		return score(markets[i]) > score(markets[j])
	})
}

// volume accepts both numeric and string encodings.
func (m GammaMarket) volume() float64 {
	if len(m.Volume) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(m.Volume, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(m.Volume, &s); err == nil {
		f, _ = strconv.ParseFloat(s, 64)
	}
	return f
}

// yesToken picks the token paired with the "Yes" outcome. Gamma encodes both
// lists either as JSON arrays or as strings containing JSON arrays.
func yesToken(m GammaMarket) (string, bool) {
	tokens, err := stringList(m.ClobTokenIDs)
	if err != nil {
		return "", false
	}
	outcomes, err := stringList(m.Outcomes)
	if err != nil {
		return "", false
	}
	if len(tokens) == 0 || len(tokens) != len(outcomes) {
		return "", false
	}
	for i, o := range outcomes {
		if strings.EqualFold(o, "yes") {
			return tokens[i], true
		}
	}
	return "", false
}

func stringList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err == nil {
		return out, nil
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(encoded), &out); err != nil {
		return nil, err
	}
	return out, nil
}
