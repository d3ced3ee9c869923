package news

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"sequential-trader/internal/model"
)

// MockSource occasionally emits a synthetic item stamped at the window start.
type MockSource struct {
	rng         *rand.Rand
	Probability float64
}

func NewMockSource(seed int64) *MockSource {
	return &MockSource{rng: rand.New(rand.NewSource(seed)), Probability: 0.3}
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) Fetch(_ context.Context, query string, start, _ time.Time) ([]model.NewsItem, error) {
	if m.rng.Float64() >= m.Probability {
		return nil, nil
	}
	return []model.NewsItem{{
		Timestamp: start,
		Source:    "MockNews",
		Headline:  fmt.Sprintf("Random event for %s at %s", query, start.Format("2006-01-02")),
		Content:   "This is a generated news item for testing.",
	}}, nil
}
