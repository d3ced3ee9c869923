package model

import (
	"encoding/json"
	"time"
)

// MarketSnapshot is the reconstructed state of one market as of Timestamp.
// Prices are probability-like values, conventionally in [0, 1].
type MarketSnapshot struct {
	MarketID     string    `json:"market_id"`
	Timestamp    time.Time `json:"timestamp"`
	BestBid      float64   `json:"best_bid"`
	BestAsk      float64   `json:"best_ask"`
	LastPrice    float64   `json:"last_price"`
	Volume       int       `json:"volume"`
	OpenInterest int       `json:"open_interest"`

	// ChartData holds recent tape points, all at or before Timestamp.
	ChartData []TapePoint    `json:"chart_data,omitempty"`
	OrderBook map[string]any `json:"order_book,omitempty"`
}

// Mid returns the midpoint of the quoted spread.
func (s MarketSnapshot) Mid() float64 {
	return (s.BestBid + s.BestAsk) / 2
}

// TapePoint is one historical (timestamp, price) observation.
// JSON uses unix seconds to match the price-history feeds.
type TapePoint struct {
	T time.Time `json:"-"`
	P float64   `json:"p"`
}

type tapePointJSON struct {
	T int64   `json:"t"`
	P float64 `json:"p"`
}

func (p TapePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(tapePointJSON{T: p.T.Unix(), P: p.P})
}

func (p *TapePoint) UnmarshalJSON(b []byte) error {
	var raw tapePointJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.T = time.Unix(raw.T, 0).UTC()
	p.P = raw.P
	return nil
}

// NewsItem is one piece of context visible to the agent.
type NewsItem struct {
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Headline  string         `json:"headline"`
	Content   string         `json:"content"`
	ImageURL  string         `json:"image_url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// FetchedRange is a closed interval of tape already requested from a source.
type FetchedRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether ts lies inside the range, bounds included.
func (r FetchedRange) Contains(ts time.Time) bool {
	return !ts.Before(r.Start) && !ts.After(r.End)
}
