package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"sequential-trader/internal/backtest"
	"sequential-trader/internal/data"
	"sequential-trader/internal/model"
	"sequential-trader/internal/news"
)

// Config is the on-disk configuration shape (YAML). The API accepts the same
// shape as JSON.
type Config struct {
	Run         RunConfig          `yaml:"run" json:"run"`
	Data        DataConfig         `yaml:"data" json:"data"`
	News        NewsConfig         `yaml:"news" json:"news"`
	Agent       AgentConfig        `yaml:"agent" json:"agent"`
	Output      OutputConfig       `yaml:"output" json:"output"`
	Settlements []SettlementConfig `yaml:"settlements" json:"settlements"`
}

type RunConfig struct {
	Ticker   string `yaml:"ticker" json:"ticker"`
	Question string `yaml:"question" json:"question"`
	// Markets defaults to [Ticker].
	Markets   []string `yaml:"markets" json:"markets"`
	StartDate string   `yaml:"start_date" json:"start_date"`
	// EndDate wins over Days when both are set.
	EndDate     string  `yaml:"end_date" json:"end_date"`
	Days        int     `yaml:"days" json:"days"`
	Step        string  `yaml:"step" json:"step"`
	InitialCash float64 `yaml:"initial_cash" json:"initial_cash"`
}

type DataConfig struct {
	Source             string  `yaml:"source" json:"source"`
	TapeFile           string  `yaml:"tape_file" json:"tape_file"`
	RegistryFile       string  `yaml:"registry_file" json:"registry_file"`
	Seed               int64   `yaml:"seed" json:"seed"`
	Window             string  `yaml:"window" json:"window"`
	Staleness          string  `yaml:"staleness" json:"staleness"`
	SpreadMode         string  `yaml:"spread_mode" json:"spread_mode"`
	SpreadOffset       float64 `yaml:"spread_offset" json:"spread_offset"`
	RateLimitPerMinute int     `yaml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
}

type NewsConfig struct {
	Sources       []string    `yaml:"sources" json:"sources"`
	QueryTemplate string      `yaml:"query_template" json:"query_template"`
	RSSURL        string      `yaml:"rss_url" json:"rss_url"`
	MaxResults    int         `yaml:"max_results" json:"max_results"`
	CacheTTL      string      `yaml:"cache_ttl" json:"cache_ttl"`
	Seed          int64       `yaml:"seed" json:"seed"`
	Rules         []news.Rule `yaml:"rules" json:"rules"`
}

type AgentConfig struct {
	Name      string         `yaml:"name" json:"name"`
	Mock      bool           `yaml:"mock" json:"mock"`
	Model     string         `yaml:"model" json:"model"`
	MaxTokens int            `yaml:"max_tokens" json:"max_tokens"`
	Params    map[string]any `yaml:"params" json:"params"`
}

type OutputConfig struct {
	LogDir string `yaml:"log_dir" json:"log_dir"`
	CSV    string `yaml:"csv" json:"csv"`
	DB     string `yaml:"db" json:"db"`
}

type SettlementConfig struct {
	Market string  `yaml:"market" json:"market"`
	At     string  `yaml:"at" json:"at"`
	Price  float64 `yaml:"price" json:"price"`
}

const (
	SourceMock       = "mock"
	SourceKalshi     = "kalshi"
	SourcePolymarket = "polymarket"
	SourceFile       = "file"

	DefaultDays = 14
	DefaultStep = "24h"
	// KalshiSpreadOffset is the default half-spread around Kalshi trade prices.
	KalshiSpreadOffset = 0.02
)

var (
	dataSources  = []string{SourceMock, SourceKalshi, SourcePolymarket, SourceFile}
	newsSources  = []string{"exa", "tavily", "rss", "mock"}
	agentNames   = []string{"llm", "threshold", "random"}
	dateLayouts  = []string{"2006-01-02", time.RFC3339}
	errNilConfig = errors.New("config is nil")
)

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked parses the file without defaults or validation.
// Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &c, nil
}

// ApplyDefaults fills every unset field that has a sensible default.
func (c *Config) ApplyDefaults() {
	if len(c.Run.Markets) == 0 && c.Run.Ticker != "" {
		c.Run.Markets = []string{c.Run.Ticker}
	}
	if c.Run.Ticker == "" && len(c.Run.Markets) > 0 {
		c.Run.Ticker = c.Run.Markets[0]
	}
	if c.Run.Question == "" {
		c.Run.Question = c.Run.Ticker
	}
	if c.Run.Days == 0 && c.Run.EndDate == "" {
		c.Run.Days = DefaultDays
	}
	if c.Run.Step == "" {
		c.Run.Step = DefaultStep
	}
	if c.Run.InitialCash == 0 {
		c.Run.InitialCash = model.DefaultInitialCash
	}

	if c.Data.Source == "" {
		c.Data.Source = SourceMock
	}
	if c.Data.Seed == 0 {
		c.Data.Seed = 42
	}
	if c.Data.SpreadOffset == 0 && c.Data.Source == SourceKalshi {
		c.Data.SpreadOffset = KalshiSpreadOffset
	}

	if c.Agent.Name == "" {
		c.Agent.Name = "llm"
	}
	if c.News.Sources == nil {
		if c.Agent.Mock || c.Data.Source == SourceMock {
			c.News.Sources = []string{"mock"}
		} else {
			c.News.Sources = []string{"exa", "tavily", "rss"}
		}
	}
	if c.News.MaxResults == 0 {
		c.News.MaxResults = 5
	}
	if c.News.Seed == 0 {
		c.News.Seed = 42
	}

	if c.Output.LogDir == "" {
		c.Output.LogDir = "logs"
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errNilConfig
	}
	if len(c.Run.Markets) == 0 {
		return errors.New("run.ticker or run.markets is required")
	}
	for _, m := range c.Run.Markets {
		if strings.TrimSpace(m) == "" {
			return errors.New("run.markets must not contain empty ids")
		}
	}
	start, err := c.Start()
	if err != nil {
		return err
	}
	end, err := c.End()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("run end %s is before start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	if c.Run.Days < 0 {
		return errors.New("run.days must be >= 0")
	}
	if _, err := c.StepDuration(); err != nil {
		return err
	}
	if c.Run.InitialCash < 0 {
		return errors.New("run.initial_cash must be >= 0")
	}

	if !oneOf(c.Data.Source, dataSources) {
		return fmt.Errorf("data.source must be one of %s, got %q", strings.Join(dataSources, ", "), c.Data.Source)
	}
	if c.Data.Source == SourceFile && c.Data.TapeFile == "" {
		return errors.New("data.tape_file is required for the file source")
	}
	vc, err := c.ViewConfig()
	if err != nil {
		return err
	}
	if err := vc.Validate(); err != nil {
		return fmt.Errorf("data: %w", err)
	}

	for _, s := range c.News.Sources {
		if !oneOf(s, newsSources) {
			return fmt.Errorf("news.sources: unknown source %q", s)
		}
	}
	if _, err := parseOptionalDuration("news.cache_ttl", c.News.CacheTTL); err != nil {
		return err
	}
	if _, err := news.NewGuard(c.News.Rules, zerolog.Nop()); err != nil {
		return fmt.Errorf("news.rules: %w", err)
	}

	if !oneOf(c.Agent.Name, agentNames) {
		return fmt.Errorf("agent.name must be one of %s, got %q", strings.Join(agentNames, ", "), c.Agent.Name)
	}

	if _, err := c.SettlementSchedule(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Start() (time.Time, error) {
	if c.Run.StartDate == "" {
		return time.Time{}, errors.New("run.start_date is required")
	}
	t, err := ParseDate(c.Run.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("run.start_date: %w", err)
	}
	return t, nil
}

func (c *Config) End() (time.Time, error) {
	if c.Run.EndDate != "" {
		t, err := ParseDate(c.Run.EndDate)
		if err != nil {
			return time.Time{}, fmt.Errorf("run.end_date: %w", err)
		}
		return t, nil
	}
	start, err := c.Start()
	if err != nil {
		return time.Time{}, err
	}
	return start.AddDate(0, 0, c.Run.Days), nil
}

func (c *Config) StepDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Run.Step)
	if err != nil {
		return 0, fmt.Errorf("run.step: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("run.step must be > 0, got %s", c.Run.Step)
	}
	return d, nil
}

func (c *Config) CacheTTL() time.Duration {
	d, _ := parseOptionalDuration("news.cache_ttl", c.News.CacheTTL)
	return d
}

// ViewConfig overlays the data section onto data.DefaultViewConfig.
func (c *Config) ViewConfig() (data.ViewConfig, error) {
	vc := data.DefaultViewConfig()
	if d, err := parseOptionalDuration("data.window", c.Data.Window); err != nil {
		return vc, err
	} else if d > 0 {
		vc.Window = d
	}
	if d, err := parseOptionalDuration("data.staleness", c.Data.Staleness); err != nil {
		return vc, err
	} else if d > 0 {
		vc.Staleness = d
	}
	if c.Data.SpreadMode != "" {
		vc.SpreadMode = data.SpreadMode(c.Data.SpreadMode)
	}
	if c.Data.SpreadOffset != 0 {
		vc.SpreadOffset = c.Data.SpreadOffset
	}
	return vc, nil
}

// SettlementSchedule converts the settlements section for the engine.
func (c *Config) SettlementSchedule() ([]backtest.Settlement, error) {
	out := make([]backtest.Settlement, 0, len(c.Settlements))
	for i, s := range c.Settlements {
		if strings.TrimSpace(s.Market) == "" {
			return nil, fmt.Errorf("settlements[%d].market is required", i)
		}
		at, err := ParseDate(s.At)
		if err != nil {
			return nil, fmt.Errorf("settlements[%d].at: %w", i, err)
		}
		if !(s.Price >= 0 && s.Price <= 1) {
			return nil, fmt.Errorf("settlements[%d].price must be in [0, 1], got %v", i, s.Price)
		}
		out = append(out, backtest.Settlement{MarketID: s.Market, At: at, Price: s.Price})
	}
	return out, nil
}

// EngineConfig is the part of the config the StepLoop consumes.
func (c *Config) EngineConfig() (backtest.Config, error) {
	start, err := c.Start()
	if err != nil {
		return backtest.Config{}, err
	}
	end, err := c.End()
	if err != nil {
		return backtest.Config{}, err
	}
	step, err := c.StepDuration()
	if err != nil {
		return backtest.Config{}, err
	}
	settlements, err := c.SettlementSchedule()
	if err != nil {
		return backtest.Config{}, err
	}
	return backtest.Config{
		Start:       start,
		End:         end,
		Step:        step,
		MarketIDs:   append([]string(nil), c.Run.Markets...),
		InitialCash: c.Run.InitialCash,
		Settlements: settlements,
	}, nil
}

// ParseDate accepts YYYY-MM-DD (midnight UTC) or RFC 3339.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD or RFC 3339)", s)
}

func parseOptionalDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must be >= 0", field)
	}
	return d, nil
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
