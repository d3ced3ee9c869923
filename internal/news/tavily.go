package news

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"sequential-trader/internal/data"
	"sequential-trader/internal/model"
)

const DefaultTavilyBaseURL = "https://api.tavily.com"

// TavilySource queries Tavily's news topic.
type TavilySource struct {
	apiKey     string
	maxResults int
	client     *resty.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

type tavilySearchRequest struct {
	Query         string `json:"query"`
	Topic         string `json:"topic"`
	MaxResults    int    `json:"max_results"`
	StartDate     string `json:"start_date,omitempty"`
	EndDate       string `json:"end_date,omitempty"`
	IncludeImages bool   `json:"include_images"`
}

type tavilySearchResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		PublishedDate string  `json:"published_date"`
		Score         float64 `json:"score"`
	} `json:"results"`
}

func NewTavilySource(cfg data.ClientConfig, maxResults int, log zerolog.Logger) *TavilySource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTavilyBaseURL
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	client := data.NewRestClient(cfg)
	client.SetAuthToken(cfg.APIKey)
	return &TavilySource{
		apiKey:     cfg.APIKey,
		maxResults: maxResults,
		client:     client,
		limiter:    data.NewLimiter(cfg.RateLimitPerMinute, cfg.Burst),
		log:        log.With().Str("component", "news.tavily").Logger(),
	}
}

func (s *TavilySource) Name() string { return "tavily" }

func (s *TavilySource) Fetch(ctx context.Context, query string, start, end time.Time) ([]model.NewsItem, error) {
	if s.apiKey == "" {
		return nil, data.MissingKeyError(s.Name())
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("tavily rate limit wait: %w", err)
	}

	// Tavily filters by calendar day; the aggregator trims to the exact window.
	req := tavilySearchRequest{
		Query:      query,
		Topic:      "news",
		MaxResults: s.maxResults,
		StartDate:  start.UTC().Format("2006-01-02"),
		EndDate:    end.UTC().Format("2006-01-02"),
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/search")
	if err != nil {
		return nil, fmt.Errorf("tavily search request: %w", err)
	}
	if resp.IsError() {
		return nil, data.StatusError(s.Name(), resp)
	}

	var body tavilySearchResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode tavily search: %w", err)
	}

	items := make([]model.NewsItem, 0, len(body.Results))
	for _, r := range body.Results {
		ts, ok := ParseTime(r.PublishedDate)
		if !ok {
			s.log.Debug().Str("url", r.URL).Msg("skipping undated result")
			continue
		}
		items = append(items, model.NewsItem{
			Timestamp: ts,
			Source:    "Tavily",
			Headline:  r.Title,
			Content:   r.Content,
			Metadata: map[string]any{
				"url":            r.URL,
				"score":          r.Score,
				"published_date": r.PublishedDate,
			},
		})
	}
	return items, nil
}
