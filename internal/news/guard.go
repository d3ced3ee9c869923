package news

import (
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"sequential-trader/internal/model"
)

// MetadataTimeKeys are metadata fields checked for hidden future dates.
var MetadataTimeKeys = []string{"published_at", "published_date", "updated_at", "date"}

// Rule flags text that reveals an outcome. It applies while the boundary is
// before ResolvesAt; a zero ResolvesAt applies always.
type Rule struct {
	Name       string    `yaml:"name" json:"name"`
	Patterns   []string  `yaml:"patterns" json:"patterns"`
	ResolvesAt time.Time `yaml:"resolves_at" json:"resolves_at"`
}

type compiledRule struct {
	Rule
	res []*regexp.Regexp
}

// Guard drops news that is dated after the simulation time or that leaks
// the resolution of a market. It is a heuristic: items are admitted or
// dropped whole, and a drop is never an error.
type Guard struct {
	rules []compiledRule
	log   zerolog.Logger
}

func NewGuard(rules []Rule, log zerolog.Logger) (*Guard, error) {
	g := &Guard{log: log.With().Str("component", "news.guard").Logger()}
	for _, r := range rules {
		cr := compiledRule{Rule: r}
		for _, p := range r.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("rule %q: invalid pattern %q: %w", r.Name, p, err)
			}
			cr.res = append(cr.res, re)
		}
		g.rules = append(g.rules, cr)
	}
	return g, nil
}

// Admit decides whether item may be shown at boundary. The reason is empty
// when admitted.
func (g *Guard) Admit(item model.NewsItem, boundary time.Time) (bool, string) {
	if item.Timestamp.After(boundary) {
		return false, "future_timestamp"
	}

	for _, key := range MetadataTimeKeys {
		v, ok := item.Metadata[key]
		if !ok {
			continue
		}
		if ts, ok := metadataTime(v); ok && ts.After(boundary) {
			return false, "future_metadata:" + key
		}
	}

	for _, r := range g.rules {
		if !r.ResolvesAt.IsZero() && !boundary.Before(r.ResolvesAt) {
			continue
		}
		for _, re := range r.res {
			if re.MatchString(item.Headline) || re.MatchString(item.Content) {
				return false, "rule:" + r.Name
			}
		}
	}
	return true, ""
}

// Filter keeps admitted items in their original order.
func (g *Guard) Filter(items []model.NewsItem, boundary time.Time) []model.NewsItem {
	out := make([]model.NewsItem, 0, len(items))
	for _, it := range items {
		ok, reason := g.Admit(it, boundary)
		if !ok {
			g.log.Warn().
				Str("reason", reason).
				Str("source", it.Source).
				Str("headline", it.Headline).
				Time("item_time", it.Timestamp).
				Time("boundary", boundary).
				Msg("dropped news item")
			continue
		}
		out = append(out, it)
	}
	return out
}

func metadataTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		return ParseTime(t)
	case int64:
		return time.Unix(t, 0).UTC(), true
	case float64:
		return time.Unix(int64(t), 0).UTC(), true
	default:
		return time.Time{}, false
	}
}
