package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"sequential-trader/internal/config"
	"sequential-trader/internal/data"
	"sequential-trader/internal/logging"
)

// resolve-markets turns free-text Polymarket queries into YES token ids and
// saves them in the market registry, so backtests skip the search step.
func main() {
	var (
		queries    = flag.String("queries", "", "Comma-separated market queries, e.g. \"fed cut december,btc 100k\"")
		outputPath = flag.String("output", "", "Registry path (default: $MARKET_REGISTRY_FILE or ./data/markets.json)")
		rateLimit  = flag.Int("rate-limit", 60, "Requests per minute against the gamma API")
		timeout    = flag.Duration("timeout", 2*time.Minute, "Overall timeout")
		refresh    = flag.Bool("refresh", false, "Re-resolve queries that are already in the registry")
	)
	flag.Parse()

	config.LoadCredentials()
	log := logging.New(logging.Config{Level: os.Getenv("LOG_LEVEL"), Pretty: true})

	list := splitQueries(*queries)
	if len(list) == 0 {
		fmt.Fprintln(os.Stderr, "--queries is required")
		os.Exit(2)
	}
	if *outputPath == "" {
		*outputPath = data.DefaultRegistryPath()
	}

	reg, err := data.LoadRegistry(*outputPath)
	if err != nil {
		reg = &data.MarketRegistry{}
	} else {
		fmt.Printf("Loaded %d existing markets from %s\n", len(reg.Markets), *outputPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// No registry here; every query is searched.
	src := data.NewPolymarketSource(data.PolymarketConfig{
		Gamma: data.ClientConfig{RateLimitPerMinute: *rateLimit, MaxRetries: 2},
	}, log)

	resolved := 0
	for _, q := range list {
		if _, ok := reg.Lookup(q); ok && !*refresh {
			fmt.Printf("  %-40s already resolved\n", q)
			continue
		}
		token, market, err := src.ResolveToken(ctx, q)
		if err != nil {
			log.Warn().Err(err).Str("query", q).Msg("Failed to resolve market")
			continue
		}
		entry := data.RegistryEntry{
			Query:      q,
			TokenID:    token,
			Source:     "polymarket",
			ResolvedAt: time.Now().UTC(),
		}
		if market != nil {
			entry.Question = market.Question
		}
		reg.Upsert(entry)
		resolved++
		fmt.Printf("  %-40s -> %s (%s)\n", q, token, entry.Question)
	}

	reg.UpdatedAt = time.Now().UTC()
	if err := data.SaveRegistry(reg, *outputPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to save registry")
	}

	fmt.Printf("Resolved %d of %d queries; %d markets saved to %s\n", resolved, len(list), len(reg.Markets), *outputPath)
}

func splitQueries(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
