package runner

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"sequential-trader/internal/agent"
	"sequential-trader/internal/backtest"
	"sequential-trader/internal/config"
	"sequential-trader/internal/data"
	"sequential-trader/internal/news"
)

// Build wires a validated config into a ready-to-run Simulation. Fatal
// configuration problems, including a missing credential, are returned here,
// before any step runs.
func Build(ctx context.Context, cfg *config.Config, creds config.Credentials, log zerolog.Logger, recorders ...backtest.Recorder) (*backtest.Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := creds.Check(cfg); err != nil {
		return nil, err
	}

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return nil, err
	}
	market, err := MarketProvider(cfg, creds, log)
	if err != nil {
		return nil, err
	}
	newsProvider, err := NewsProvider(cfg, creds, log)
	if err != nil {
		return nil, err
	}
	policy, err := Policy(ctx, cfg, creds, log)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("source", cfg.Data.Source).
		Strs("news", cfg.News.Sources).
		Str("agent", policy.Name()).
		Strs("markets", engineCfg.MarketIDs).
		Msg("simulation wired")

	return backtest.New(engineCfg, market, newsProvider, policy, log, recorders...)
}

// MarketProvider builds the point-in-time market view for data.source.
func MarketProvider(cfg *config.Config, creds config.Credentials, log zerolog.Logger) (data.MarketDataProvider, error) {
	if cfg.Data.Source == config.SourceMock {
		return data.NewMockProvider(cfg.Data.Seed), nil
	}

	vc, err := cfg.ViewConfig()
	if err != nil {
		return nil, err
	}
	client := data.ClientConfig{RateLimitPerMinute: cfg.Data.RateLimitPerMinute, MaxRetries: 2}

	var src data.TapeSource
	switch cfg.Data.Source {
	case config.SourceKalshi:
		client.APIKey = creds.KalshiKey
		src = data.NewKalshiSource(client, log)
	case config.SourcePolymarket:
		src = data.NewPolymarketSource(data.PolymarketConfig{
			Gamma:    client,
			Clob:     client,
			Registry: loadRegistry(cfg.Data.RegistryFile, log),
		}, log)
	case config.SourceFile:
		fs, err := data.OpenFileSource(cfg.Data.TapeFile)
		if err != nil {
			return nil, err
		}
		src = fs
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.Data.Source)
	}
	return data.NewPointInTimeView(src, vc, log), nil
}

func loadRegistry(path string, log zerolog.Logger) *data.MarketRegistry {
	if path == "" {
		path = data.DefaultRegistryPath()
	}
	reg, err := data.LoadRegistry(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("no market registry, resolving markets by search")
		return nil
	}
	return reg
}

// NewsProvider builds the guarded news aggregator. No sources means no news.
func NewsProvider(cfg *config.Config, creds config.Credentials, log zerolog.Logger) (news.Provider, error) {
	if len(cfg.News.Sources) == 0 {
		return news.None{}, nil
	}
	guard, err := news.NewGuard(cfg.News.Rules, log)
	if err != nil {
		return nil, err
	}

	sources := make([]news.Source, 0, len(cfg.News.Sources))
	for _, name := range cfg.News.Sources {
		switch name {
		case "exa":
			sources = append(sources, news.NewExaSource(data.ClientConfig{APIKey: creds.ExaKey}, cfg.News.MaxResults, log))
		case "tavily":
			sources = append(sources, news.NewTavilySource(data.ClientConfig{APIKey: creds.TavilyKey}, cfg.News.MaxResults, log))
		case "rss":
			sources = append(sources, news.NewRSSSource(cfg.News.RSSURL, data.ClientConfig{}, log))
		case "mock":
			sources = append(sources, news.NewMockSource(cfg.News.Seed))
		default:
			return nil, fmt.Errorf("unknown news source %q", name)
		}
	}

	return news.NewAggregator(news.AggregatorConfig{
		QueryTemplate: cfg.News.QueryTemplate,
		Ticker:        cfg.Run.Ticker,
		Question:      cfg.Run.Question,
		CacheTTL:      cfg.CacheTTL(),
	}, sources, guard, log), nil
}

// Policy builds the agent named by agent.name.
func Policy(ctx context.Context, cfg *config.Config, creds config.Credentials, log zerolog.Logger) (agent.Policy, error) {
	p := params(cfg.Agent.Params)
	firstMarket := ""
	if len(cfg.Run.Markets) > 0 {
		firstMarket = cfg.Run.Markets[0]
	}

	switch cfg.Agent.Name {
	case "llm":
		var provider agent.LLMProvider
		if cfg.Agent.Mock {
			provider = &agent.MockLLM{MarketID: firstMarket}
		} else {
			ep, err := agent.NewEinoProvider(ctx, agent.EinoConfig{
				APIKey:    creds.OpenAIKey,
				BaseURL:   creds.OpenAIBaseURL,
				Model:     cfg.Agent.Model,
				MaxTokens: cfg.Agent.MaxTokens,
			})
			if err != nil {
				return nil, err
			}
			provider = ep
		}
		return agent.NewSequentialLLM(provider, cfg.Run.Question, log), nil

	case "threshold":
		return agent.NewThresholdPolicy(agent.ThresholdParams{
			MarketID:  p.getString("market_id", firstMarket),
			BuyBelow:  p.getFloat("buy_below", 0.3),
			SellAbove: p.getFloat("sell_above", 0.7),
			Quantity:  p.getInt("quantity", 10),
		})

	case "random":
		return agent.NewRandomPolicy(int64(p.getInt("seed", 42)), p.getInt("max_quantity", 10)), nil

	default:
		return nil, fmt.Errorf("unknown agent %q", cfg.Agent.Name)
	}
}

// params reads loosely typed YAML/JSON parameters.
type params map[string]any

func (p params) getFloat(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

func (p params) getInt(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func (p params) getString(key, def string) string {
	if v, ok := p[key].(string); ok && v != "" {
		return v
	}
	return def
}
