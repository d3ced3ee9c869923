package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sequential-trader/internal/data"
	"sequential-trader/internal/news"
)

const sampleYAML = `
run:
  ticker: KXFED-24DEC
  question: Will the Fed cut rates in December?
  start_date: 2024-11-01
  days: 10
  step: 12h
  initial_cash: 500
data:
  source: kalshi
  staleness: 24h
news:
  sources: [exa, rss]
  cache_ttl: 1h
  rules:
    - name: fed-decision
      patterns: ["fed (cuts|holds) rates"]
      resolves_at: 2024-12-18T19:00:00Z
agent:
  name: threshold
  params:
    buy_below: 0.3
settlements:
  - market: KXFED-24DEC
    at: 2024-11-08
    price: 1
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"KXFED-24DEC"}, c.Run.Markets)
	assert.Equal(t, 500.0, c.Run.InitialCash)
	assert.Equal(t, KalshiSpreadOffset, c.Data.SpreadOffset)
	assert.Equal(t, []string{"exa", "rss"}, c.News.Sources)
	assert.Equal(t, time.Hour, c.CacheTTL())
	require.Len(t, c.News.Rules, 1)
	assert.Equal(t, time.Date(2024, 12, 18, 19, 0, 0, 0, time.UTC), c.News.Rules[0].ResolvesAt.UTC())
	assert.Equal(t, 0.3, c.Agent.Params["buy_below"])

	ec, err := c.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC), ec.Start)
	assert.Equal(t, time.Date(2024, 11, 11, 0, 0, 0, 0, time.UTC), ec.End)
	assert.Equal(t, 12*time.Hour, ec.Step)
	require.Len(t, ec.Settlements, 1)
	assert.Equal(t, "KXFED-24DEC", ec.Settlements[0].MarketID)
	assert.Equal(t, 1.0, ec.Settlements[0].Price)

	vc, err := c.ViewConfig()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, vc.Staleness)
	assert.Equal(t, data.DefaultViewConfig().Window, vc.Window)
	assert.Equal(t, data.SpreadFixed, vc.SpreadMode)
}

func TestApplyDefaults(t *testing.T) {
	c := &Config{Run: RunConfig{Ticker: "ABC", StartDate: "2024-01-01"}}
	c.ApplyDefaults()
	require.NoError(t, c.Validate())

	assert.Equal(t, DefaultDays, c.Run.Days)
	assert.Equal(t, DefaultStep, c.Run.Step)
	assert.Equal(t, 1000.0, c.Run.InitialCash)
	assert.Equal(t, "ABC", c.Run.Question)
	assert.Equal(t, SourceMock, c.Data.Source)
	assert.Equal(t, []string{"mock"}, c.News.Sources)
	assert.Equal(t, "llm", c.Agent.Name)
	assert.Equal(t, "logs", c.Output.LogDir)

	c = &Config{Run: RunConfig{Markets: []string{"X", "Y"}, StartDate: "2024-01-01"}, Data: DataConfig{Source: SourcePolymarket}}
	c.ApplyDefaults()
	assert.Equal(t, "X", c.Run.Ticker)
	assert.Equal(t, []string{"exa", "tavily", "rss"}, c.News.Sources)
	assert.Zero(t, c.Data.SpreadOffset)
}

func TestValidate_Errors(t *testing.T) {
	base := func() *Config {
		c := &Config{Run: RunConfig{Ticker: "ABC", StartDate: "2024-01-01"}}
		c.ApplyDefaults()
		return c
	}
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"no markets", func(c *Config) { c.Run.Markets = nil }, "run.ticker or run.markets"},
		{"empty market id", func(c *Config) { c.Run.Markets = []string{" "} }, "empty ids"},
		{"missing start", func(c *Config) { c.Run.StartDate = "" }, "start_date is required"},
		{"bad start", func(c *Config) { c.Run.StartDate = "01/02/2024" }, "invalid date"},
		{"end before start", func(c *Config) { c.Run.EndDate = "2023-12-01" }, "before start"},
		{"zero step", func(c *Config) { c.Run.Step = "0s" }, "run.step must be > 0"},
		{"bad step", func(c *Config) { c.Run.Step = "daily" }, "run.step"},
		{"negative cash", func(c *Config) { c.Run.InitialCash = -5 }, "initial_cash"},
		{"unknown source", func(c *Config) { c.Data.Source = "bloomberg" }, "data.source"},
		{"file without tape", func(c *Config) { c.Data.Source = SourceFile }, "tape_file"},
		{"bad spread mode", func(c *Config) { c.Data.SpreadMode = "wide" }, "spread mode"},
		{"unknown news source", func(c *Config) { c.News.Sources = []string{"twitter"} }, "twitter"},
		{"bad rule", func(c *Config) { c.News.Rules = []news.Rule{{Name: "x", Patterns: []string{"("}}} }, "news.rules"},
		{"unknown agent", func(c *Config) { c.Agent.Name = "oracle" }, "agent.name"},
		{"bad settlement price", func(c *Config) {
			c.Settlements = []SettlementConfig{{Market: "ABC", At: "2024-01-05", Price: 2}}
		}, "settlements[0].price"},
		{"NaN settlement price", func(c *Config) {
			c.Settlements = []SettlementConfig{{Market: "ABC", At: "2024-01-05", Price: math.NaN()}}
		}, "settlements[0].price"},
		{"infinite settlement price", func(c *Config) {
			c.Settlements = []SettlementConfig{{Market: "ABC", At: "2024-01-05", Price: math.Inf(1)}}
		}, "settlements[0].price"},
		{"settlement without market", func(c *Config) {
			c.Settlements = []SettlementConfig{{At: "2024-01-05", Price: 1}}
		}, "settlements[0].market"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "run: [unclosed"))
	assert.Error(t, err)

	c, err := LoadUnchecked(writeConfig(t, "run:\n  ticker: A\n"))
	require.NoError(t, err)
	assert.Error(t, c.Validate())

	nan := "run:\n  ticker: A\n  start_date: 2024-01-01\nsettlements:\n  - market: A\n    at: 2024-01-05\n    price: .nan\n"
	_, err = Load(writeConfig(t, nan))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settlements[0].price")
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("2024-03-15T12:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("March 15")
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := Config{
		Run:   RunConfig{Ticker: "A", StartDate: "2024-01-01", Days: 5},
		Agent: AgentConfig{Name: "threshold", Params: map[string]any{"buy_below": 0.3, "quantity": 10}},
		News:  NewsConfig{Sources: []string{"exa"}},
	}
	out := Merge(base, Config{
		Run:   RunConfig{Days: 7, Step: "6h"},
		Agent: AgentConfig{Params: map[string]any{"buy_below": 0.2}},
		News:  NewsConfig{Sources: []string{}},
	})

	assert.Equal(t, "A", out.Run.Ticker)
	assert.Equal(t, 7, out.Run.Days)
	assert.Equal(t, "6h", out.Run.Step)
	assert.Equal(t, "threshold", out.Agent.Name)
	assert.Equal(t, map[string]any{"buy_below": 0.2, "quantity": 10}, out.Agent.Params)
	assert.Empty(t, out.News.Sources)
	assert.NotNil(t, out.News.Sources)

	// base is untouched
	assert.Equal(t, 0.3, base.Agent.Params["buy_below"])
	assert.Equal(t, 5, base.Run.Days)
}

func TestCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("EXA_API_KEY", "from-env")
	t.Setenv("TAVILY_API_KEY", "")
	t.Setenv("KALSHI_API_KEY", "")
	t.Setenv("OPENAI_BASE_URL", "")

	env := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(env, []byte("TAVILY_API_KEY=from-file\nEXA_API_KEY=ignored\n"), 0644))
	os.Unsetenv("TAVILY_API_KEY")

	creds := LoadCredentials(env)
	assert.Equal(t, "from-file", creds.TavilyKey)
	assert.Equal(t, "from-env", creds.ExaKey)

	cfg := &Config{Agent: AgentConfig{Name: "llm"}}
	assert.Error(t, creds.Check(cfg))
	cfg.Agent.Mock = true
	assert.NoError(t, creds.Check(cfg))
	cfg = &Config{Agent: AgentConfig{Name: "random"}}
	assert.NoError(t, creds.Check(cfg))
	assert.NoError(t, Credentials{OpenAIKey: "k"}.Check(&Config{Agent: AgentConfig{Name: "llm"}}))
}

func TestLoad_ShippedPresets(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "configs", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, p := range paths {
		t.Run(filepath.Base(p), func(t *testing.T) {
			c, err := Load(p)
			require.NoError(t, err)
			_, err = c.EngineConfig()
			assert.NoError(t, err)
		})
	}
}
