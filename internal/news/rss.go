package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"sequential-trader/internal/data"
	"sequential-trader/internal/model"
)

// DefaultRSSTemplate searches Google News restricted to the window's days.
const DefaultRSSTemplate = "https://news.google.com/rss/search?q={query}+after:{start}+before:{end}&hl=en-US&gl=US&ceid=US:en"

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	PubDate     string    `xml:"pubDate"`
	GUID        string    `xml:"guid"`
	Source      rssSource `xml:"source"`
}

type rssSource struct {
	URL  string `xml:"url,attr"`
	Text string `xml:",chardata"`
}

// RSSSource reads any RSS 2.0 search feed. URLTemplate may contain {query},
// {start} and {end}; dates are substituted as YYYY-MM-DD.
type RSSSource struct {
	urlTemplate string
	client      *resty.Client
	limiter     *rate.Limiter
	log         zerolog.Logger
}

func NewRSSSource(urlTemplate string, cfg data.ClientConfig, log zerolog.Logger) *RSSSource {
	if urlTemplate == "" {
		urlTemplate = DefaultRSSTemplate
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 30
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	client := data.NewRestClient(cfg)
	client.SetHeader("Accept", "application/rss+xml, application/xml, text/xml")
	return &RSSSource{
		urlTemplate: urlTemplate,
		client:      client,
		limiter:     data.NewLimiter(cfg.RateLimitPerMinute, cfg.Burst),
		log:         log.With().Str("component", "news.rss").Logger(),
	}
}

func (s *RSSSource) Name() string { return "rss" }

func (s *RSSSource) Fetch(ctx context.Context, query string, start, end time.Time) ([]model.NewsItem, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rss rate limit wait: %w", err)
	}

	feedURL := s.buildURL(query, start, end)
	resp, err := s.client.R().SetContext(ctx).Get(feedURL)
	if err != nil {
		return nil, fmt.Errorf("rss request: %w", err)
	}
	if resp.IsError() {
		return nil, data.StatusError(s.Name(), resp)
	}

	var feed rssFeed
	if err := xml.Unmarshal(resp.Body(), &feed); err != nil {
		return nil, fmt.Errorf("parse rss feed: %w", err)
	}

	var items []model.NewsItem
	for _, it := range feed.Channel.Items {
		ts, ok := ParseTime(it.PubDate)
		if !ok {
			continue
		}
		// Feeds ignore date filters more often than not.
		if !inWindow(ts, start, end) {
			continue
		}
		source := strings.TrimSpace(it.Source.Text)
		if source == "" {
			source = "RSS"
		}
		items = append(items, model.NewsItem{
			Timestamp: ts,
			Source:    source,
			Headline:  strings.TrimSpace(it.Title),
			Content:   htmlText(it.Description),
			Metadata: map[string]any{
				"url":          firstNonEmpty(it.Link, it.GUID),
				"published_at": it.PubDate,
			},
		})
	}
	s.log.Debug().Str("query", query).Int("items", len(items)).Msg("parsed feed")
	return items, nil
}

func (s *RSSSource) buildURL(query string, start, end time.Time) string {
	r := strings.NewReplacer(
		"{query}", url.QueryEscape(query),
		"{start}", start.UTC().Format("2006-01-02"),
		// before: is exclusive, so round up to the next day
		"{end}", end.UTC().Add(24*time.Hour).Format("2006-01-02"),
	)
	return r.Replace(s.urlTemplate)
}

// htmlText flattens an HTML fragment (feed descriptions) to plain text.
func htmlText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return strings.TrimSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
