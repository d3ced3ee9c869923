package news

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sequential-trader/internal/data"
	"sequential-trader/internal/model"
)

// DefaultQueryTemplate is used when no template is configured.
const DefaultQueryTemplate = "{ticker} news"

// AggregatorConfig describes what to search for.
type AggregatorConfig struct {
	QueryTemplate string // {ticker} and {question} are substituted
	Ticker        string
	Question      string
	CacheTTL      time.Duration
}

// Aggregator fans a query out to every source, merges the results and passes
// them through the Guard. It implements Provider.
type Aggregator struct {
	sources []Source
	guard   *Guard
	query   string
	cache   *data.ResponseCache[[]model.NewsItem]
	log     zerolog.Logger
}

func NewAggregator(cfg AggregatorConfig, sources []Source, guard *Guard, log zerolog.Logger) *Aggregator {
	tmpl := cfg.QueryTemplate
	if tmpl == "" {
		tmpl = DefaultQueryTemplate
	}
	return &Aggregator{
		sources: sources,
		guard:   guard,
		query:   BuildQuery(tmpl, cfg.Ticker, cfg.Question),
		cache:   data.NewResponseCache[[]model.NewsItem](cfg.CacheTTL),
		log:     log.With().Str("component", "news.aggregator").Logger(),
	}
}

// BuildQuery fills the template placeholders.
func BuildQuery(tmpl, ticker, question string) string {
	q := strings.NewReplacer("{ticker}", ticker, "{question}", question).Replace(tmpl)
	return strings.Join(strings.Fields(q), " ")
}

func (a *Aggregator) Query() string { return a.query }

// News gathers items stamped in [start, end), so consecutive windows never
// share an item. The guard boundary is end.
func (a *Aggregator) News(ctx context.Context, start, end time.Time) []model.NewsItem {
	key := data.CacheKey(a.query, start, end)
	items, ok := a.cache.Get(key)
	if !ok {
		if n := a.cache.Prune(); n > 0 {
			a.log.Debug().Int("expired", n).Int("cached", a.cache.Len()).Msg("pruned news cache")
		}
		items = a.collect(ctx, start, end)
		a.cache.Set(key, items)
	}

	if a.guard == nil {
		return items
	}
	return a.guard.Filter(items, end)
}

func (a *Aggregator) collect(ctx context.Context, start, end time.Time) []model.NewsItem {
	type dedupKey struct{ source, headline string }
	seen := map[dedupKey]bool{}

	var all []model.NewsItem
	for _, src := range a.sources {
		items, err := src.Fetch(ctx, a.query, start, end)
		if err != nil {
			a.logFailure(src.Name(), err)
			continue
		}
		for _, it := range items {
			if !inWindow(it.Timestamp, start, end) {
				continue
			}
			k := dedupKey{it.Source, strings.ToLower(strings.TrimSpace(it.Headline))}
			if seen[k] {
				continue
			}
			seen[k] = true
			all = append(all, it)
		}
	}
	return all
}

func (a *Aggregator) logFailure(source string, err error) {
	var se *data.SourceError
	if !errors.As(err, &se) {
		a.log.Warn().Err(err).Str("source", source).Str("query", a.query).Msg("news source failed, skipping")
		return
	}
	if se.Code == data.CodeMissingKey {
		a.log.Debug().Str("source", source).Msg("news source has no API key, skipping")
		return
	}
	a.log.Warn().Err(err).
		Str("source", source).
		Int("status", se.StatusCode).
		Bool("retryable", se.Retryable()).
		Msg("news source failed, skipping")
}
