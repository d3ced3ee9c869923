package data

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// ClientConfig is shared by every HTTP-backed source.
type ClientConfig struct {
	BaseURL            string
	APIKey             string
	Timeout            time.Duration
	RateLimitPerMinute int
	Burst              int
	MaxRetries         int
}

func (c ClientConfig) withDefaults(baseURL string) ClientConfig {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RateLimitPerMinute <= 0 {
		c.RateLimitPerMinute = 60
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

// NewRestClient builds the resty client used by market and news sources.
// Retries only fire for 429 and 5xx responses.
func NewRestClient(cfg ClientConfig) *resty.Client {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Accept", "application/json")
	client.SetHeader("User-Agent", "sequential-trader/1.0")
	client.SetRetryCount(cfg.MaxRetries)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetRetryMaxWaitTime(5 * time.Second)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() == 429 || r.StatusCode() >= 500
	})
	return client
}

// NewLimiter converts a per-minute budget into a token bucket.
func NewLimiter(perMinute, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60), burst)
}

// wait blocks for a limiter token or until ctx is done.
func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
