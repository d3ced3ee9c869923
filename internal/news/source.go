package news

import (
	"context"
	"strings"
	"time"

	"sequential-trader/internal/model"
)

// Source is one upstream news or context feed. Fetch may fail; callers skip
// failing sources. A source without credentials returns data.MissingKeyError.
type Source interface {
	Name() string
	Fetch(ctx context.Context, query string, start, end time.Time) ([]model.NewsItem, error)
}

// Provider returns the news an agent may see for the window [start, end).
// Implementations are expected to have applied a Guard already.
type Provider interface {
	News(ctx context.Context, start, end time.Time) []model.NewsItem
}

// None is a Provider that never has news.
type None struct{}

func (None) News(context.Context, time.Time, time.Time) []model.NewsItem { return nil }

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02",
}

// ParseTime accepts the date formats seen in news APIs and feeds.
// Values without a zone are read as UTC.
//
// A bare date, or a stamp at exactly midnight UTC, only says which day the item
// appeared on. It is moved to the last instant of that day so the item stays
// hidden until the whole day has passed.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			if t.Equal(t.Truncate(24 * time.Hour)) {
				t = t.Add(24*time.Hour - time.Nanosecond)
			}
			return t, true
		}
	}
	return time.Time{}, false
}

// inWindow reports start <= ts < end.
func inWindow(ts, start, end time.Time) bool {
	return !ts.Before(start) && ts.Before(end)
}
