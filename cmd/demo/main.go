package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sequential-trader/internal/analysis"
	"sequential-trader/internal/backtest"
	"sequential-trader/internal/config"
	"sequential-trader/internal/runner"
)

// Demo:
// - Mock market random walk, mock news and the canned mock LLM
// - Run a few steps and print what the agent saw and did at each one
// - Needs no network and no API keys
func main() {
	ticker := flag.String("ticker", "DEMO-MARKET", "Market ticker")
	start := flag.String("start-date", "2024-01-01", "First simulated day (YYYY-MM-DD)")
	n := flag.Int("n", 7, "Number of steps to simulate")
	step := flag.String("step", "24h", "Simulated time per step")
	agentName := flag.String("agent", "llm", "Agent (llm, threshold, random)")
	outCSV := flag.String("out", "", "Optional path to write ledger CSV (e.g. results/demo.csv)")
	flag.Parse()

	cfg := &config.Config{
		Run: config.RunConfig{
			Ticker:    *ticker,
			Question:  "Will " + *ticker + " resolve YES?",
			StartDate: *start,
			Days:      *n,
			Step:      *step,
		},
		Agent: config.AgentConfig{Name: *agentName, Mock: true},
	}
	cfg.ApplyDefaults()

	// Days counts steps here; re-derive the end so any step size gives n steps.
	if d, err := cfg.StepDuration(); err == nil {
		if s, err := cfg.Start(); err == nil {
			cfg.Run.Days = 0
			cfg.Run.EndDate = s.Add(time.Duration(*n) * d).Format(time.RFC3339)
		}
	}

	printer := backtest.RecorderFunc(func(rec backtest.StepRecord) error {
		printStep(rec)
		return nil
	})

	sim, err := runner.Build(context.Background(), cfg, config.Credentials{}, zerolog.Nop(), printer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "demo: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%-4s %-20s %-8s %-6s %-5s %-8s %-10s %s\n", "step", "time", "price", "action", "qty", "fill", "value", "news")
	res := sim.Run(context.Background())

	if *outCSV != "" {
		if err := backtest.WriteLedgerCSV(*outCSV, res.Records); err != nil {
			fmt.Fprintf(os.Stderr, "demo: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote %d rows to %s\n", len(res.Records), *outCSV)
	}

	s := analysis.SummarizeResult(res)
	fmt.Printf("\nTotal return %.2f%%, max drawdown %.2f%%, %d trades, %d rejected\n",
		s.TotalReturn*100, s.MaxDrawdown*100, s.Trades, s.Rejected)
	fmt.Printf("Final portfolio value: $%.2f (cash $%.2f)\n", res.Final.TotalValue, res.Final.Cash)
}

func printStep(rec backtest.StepRecord) {
	fill := "-"
	if rec.ExecutionPrice != nil {
		fill = fmt.Sprintf("%.3f", *rec.ExecutionPrice)
	}
	if !rec.Success {
		fill = "rej:" + rec.RejectReason
	}
	var price float64
	if p, ok := rec.MarketPrices[rec.Action.MarketID]; ok {
		price = p
	} else {
		for _, p := range rec.MarketPrices {
			price = p
			break
		}
	}

	headlines := make([]string, 0, len(rec.Observation.News))
	for _, item := range rec.Observation.News {
		headlines = append(headlines, item.Headline)
	}

	fmt.Printf("%-4d %-20s %-8.3f %-6s %-5d %-8s %-10.2f %s\n",
		rec.Index,
		rec.Timestamp.Format("2006-01-02 15:04"),
		price,
		rec.Action.Type,
		rec.Action.Quantity,
		fill,
		rec.PortfolioValue,
		strings.Join(headlines, " | "),
	)
}
