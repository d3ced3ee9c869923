package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"sequential-trader/internal/model"
)

const (
	DefaultKalshiBaseURL = "https://api.elections.kalshi.com/trade-api/v2"

	kalshiPageSize = 1000
	kalshiMaxPages = 50
)

// KalshiSource reads public trade prints from the Kalshi trade API.
type KalshiSource struct {
	client  *resty.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

type kalshiTrade struct {
	TradeID     string `json:"trade_id"`
	Ticker      string `json:"ticker"`
	YesPrice    int    `json:"yes_price"`
	NoPrice     int    `json:"no_price"`
	Count       int    `json:"count"`
	CreatedTime string `json:"created_time"`
	TakerSide   string `json:"taker_side"`
}

type kalshiTradesResponse struct {
	Trades []kalshiTrade `json:"trades"`
	Cursor string        `json:"cursor"`
}

func NewKalshiSource(cfg ClientConfig, log zerolog.Logger) *KalshiSource {
	cfg = cfg.withDefaults(DefaultKalshiBaseURL)
	client := NewRestClient(cfg)
	if cfg.APIKey != "" {
		client.SetHeader("KALSHI-ACCESS-KEY", cfg.APIKey)
	}
	return &KalshiSource{
		client:  client,
		limiter: NewLimiter(cfg.RateLimitPerMinute, cfg.Burst),
		log:     log.With().Str("component", "data.kalshi").Logger(),
	}
}

func (k *KalshiSource) Name() string { return "kalshi" }

// FetchTape pages through trades for ticker between start and end.
// Prices arrive in cents and are returned as probabilities.
func (k *KalshiSource) FetchTape(ctx context.Context, ticker string, start, end time.Time) ([]model.TapePoint, error) {
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}

	var points []model.TapePoint
	cursor := ""
	for page := 0; page < kalshiMaxPages; page++ {
		if err := wait(ctx, k.limiter); err != nil {
			return nil, fmt.Errorf("kalshi rate limit wait: %w", err)
		}

		params := map[string]string{
			"ticker": ticker,
			"min_ts": strconv.FormatInt(start.Unix(), 10),
			"max_ts": strconv.FormatInt(end.Unix(), 10),
			"limit":  strconv.Itoa(kalshiPageSize),
		}
		if cursor != "" {
			params["cursor"] = cursor
		}

		resp, err := k.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get("/markets/trades")
		if err != nil {
			return nil, fmt.Errorf("kalshi trades request: %w", err)
		}
		if resp.IsError() {
			return nil, StatusError(k.Name(), resp)
		}

		var body kalshiTradesResponse
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			return nil, fmt.Errorf("decode kalshi trades: %w", err)
		}

		for _, tr := range body.Trades {
			ts, err := time.Parse(time.RFC3339, tr.CreatedTime)
			if err != nil {
				k.log.Debug().Str("trade_id", tr.TradeID).Str("created_time", tr.CreatedTime).Msg("skipping trade with bad timestamp")
				continue
			}
			points = append(points, model.TapePoint{T: ts.UTC(), P: float64(tr.YesPrice) / 100.0})
		}

		if body.Cursor == "" || len(body.Trades) == 0 {
			break
		}
		cursor = body.Cursor
	}

	k.log.Info().
		Str("ticker", ticker).
		Int("trades", len(points)).
		Time("start", start).
		Time("end", end).
		Msg("fetched trades")
	return points, nil
}
