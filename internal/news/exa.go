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

const DefaultExaBaseURL = "https://api.exa.ai"

// ExaSource searches Exa for articles published inside the window.
type ExaSource struct {
	apiKey     string
	numResults int
	client     *resty.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

type exaSearchRequest struct {
	Query              string      `json:"query"`
	NumResults         int         `json:"numResults"`
	StartPublishedDate string      `json:"startPublishedDate,omitempty"`
	EndPublishedDate   string      `json:"endPublishedDate,omitempty"`
	Contents           exaContents `json:"contents"`
}

type exaContents struct {
	Text exaText `json:"text"`
}

type exaText struct {
	MaxCharacters int `json:"maxCharacters"`
}

type exaSearchResponse struct {
	Results []struct {
		ID            string `json:"id"`
		Title         string `json:"title"`
		URL           string `json:"url"`
		PublishedDate string `json:"publishedDate"`
		Author        string `json:"author"`
		Text          string `json:"text"`
		Image         string `json:"image"`
	} `json:"results"`
}

func NewExaSource(cfg data.ClientConfig, numResults int, log zerolog.Logger) *ExaSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultExaBaseURL
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if numResults <= 0 {
		numResults = 10
	}
	client := data.NewRestClient(cfg)
	client.SetHeader("x-api-key", cfg.APIKey)
	return &ExaSource{
		apiKey:     cfg.APIKey,
		numResults: numResults,
		client:     client,
		limiter:    data.NewLimiter(cfg.RateLimitPerMinute, cfg.Burst),
		log:        log.With().Str("component", "news.exa").Logger(),
	}
}

func (s *ExaSource) Name() string { return "exa" }

func (s *ExaSource) Fetch(ctx context.Context, query string, start, end time.Time) ([]model.NewsItem, error) {
	if s.apiKey == "" {
		return nil, data.MissingKeyError(s.Name())
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("exa rate limit wait: %w", err)
	}

	req := exaSearchRequest{
		Query:              query,
		NumResults:         s.numResults,
		StartPublishedDate: start.UTC().Format(time.RFC3339),
		EndPublishedDate:   end.UTC().Format(time.RFC3339),
		Contents:           exaContents{Text: exaText{MaxCharacters: 1000}},
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/search")
	if err != nil {
		return nil, fmt.Errorf("exa search request: %w", err)
	}
	if resp.IsError() {
		return nil, data.StatusError(s.Name(), resp)
	}

	var body exaSearchResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode exa search: %w", err)
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
			Source:    "Exa",
			Headline:  r.Title,
			Content:   r.Text,
			ImageURL:  r.Image,
			Metadata: map[string]any{
				"url":            r.URL,
				"author":         r.Author,
				"published_date": r.PublishedDate,
			},
		})
	}
	return items, nil
}
