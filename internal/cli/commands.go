package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"sequential-trader/internal/analysis"
	"sequential-trader/internal/backtest"
	"sequential-trader/internal/config"
	"sequential-trader/internal/logging"
	"sequential-trader/internal/runner"
	"sequential-trader/internal/storage"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sequential-trader",
		Short: "Causal backtester for prediction-market trading agents",
		Long: `sequential-trader replays prediction markets one step at a time. At every
step the agent sees only prices and news published before the simulated clock,
decides on one action, and the fill is recorded against a cash ledger.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSummarizeCmd())
	rootCmd.AddCommand(newRunsCmd())

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty", true, "Human readable logs")
	rootCmd.PersistentFlags().String("env-file", "", "Load credentials from this .env file (default ./.env)")

	return rootCmd
}

func newLogger(cmd *cobra.Command) zerolog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	pretty, _ := cmd.Flags().GetBool("pretty")
	return logging.New(logging.Config{Level: level, Pretty: pretty, Out: cmd.ErrOrStderr()})
}

type runFlags struct {
	configPath  string
	ticker      string
	question    string
	startDate   string
	endDate     string
	days        int
	step        string
	initialCash float64
	mock        bool
	source      string
	tape        string
	agent       string
	logDir      string
	csv         string
	db          string
}

// newRunCmd creates the run command
func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one backtest",
		Long: `Run one backtest from a YAML config, command line flags, or both. Flags
override the config file.

Example: sequential-trader run --ticker KXFED-24DEC --start-date 2024-11-01 --days 14 --mock`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			envFile, _ := cmd.Flags().GetString("env-file")
			var creds config.Credentials
			if envFile != "" {
				creds = config.LoadCredentials(envFile)
			} else {
				creds = config.LoadCredentials()
			}
			return runBacktest(cmd.Context(), cfg, creds, cmd.OutOrStdout(), newLogger(cmd))
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "YAML config file")
	fl.StringVar(&f.ticker, "ticker", "", "Market ticker to trade")
	fl.StringVar(&f.question, "question", "", "Question the market resolves on")
	fl.StringVar(&f.startDate, "start-date", "", "First simulated day (YYYY-MM-DD)")
	fl.StringVar(&f.endDate, "end-date", "", "Last simulated day (YYYY-MM-DD), overrides --days")
	fl.IntVar(&f.days, "days", config.DefaultDays, "Number of days to simulate")
	fl.StringVar(&f.step, "step", config.DefaultStep, "Simulated time per step")
	fl.Float64Var(&f.initialCash, "initial-cash", 0, "Starting cash (default 1000)")
	fl.BoolVar(&f.mock, "mock", false, "Use the mock LLM (no API key needed)")
	fl.StringVar(&f.source, "source", "", "Market data source (mock, kalshi, polymarket, file)")
	fl.StringVar(&f.tape, "tape", "", "Recorded tape file for --source file")
	fl.StringVar(&f.agent, "agent", "", "Agent to run (llm, threshold, random)")
	fl.StringVar(&f.logDir, "log-dir", "", "Directory for the JSONL step log (default logs)")
	fl.StringVar(&f.csv, "csv", "", "Also write the ledger as CSV to this path")
	fl.StringVar(&f.db, "db", "", "Also store the run in this SQLite database")

	return cmd
}

// resolveConfig layers explicitly set flags over the config file.
func resolveConfig(cmd *cobra.Command, f runFlags) (*config.Config, error) {
	base := &config.Config{}
	if f.configPath != "" {
		c, err := config.LoadUnchecked(f.configPath)
		if err != nil {
			return nil, err
		}
		base = c
	}

	set := cmd.Flags().Changed
	var o config.Config
	o.Run.Ticker = f.ticker
	o.Run.Question = f.question
	o.Run.StartDate = f.startDate
	o.Run.EndDate = f.endDate
	if set("days") {
		o.Run.Days = f.days
	}
	if set("step") {
		o.Run.Step = f.step
	}
	o.Run.InitialCash = f.initialCash
	o.Data.Source = f.source
	o.Data.TapeFile = f.tape
	if f.tape != "" && f.source == "" && base.Data.Source == "" {
		o.Data.Source = config.SourceFile
	}
	o.Agent.Name = f.agent
	o.Agent.Mock = f.mock
	o.Output.LogDir = f.logDir
	o.Output.CSV = f.csv
	o.Output.DB = f.db

	cfg := config.Merge(*base, o)
	if f.ticker != "" && len(base.Run.Markets) > 0 {
		// A ticker on the command line replaces the file's market list.
		cfg.Run.Markets = nil
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

func runBacktest(ctx context.Context, cfg *config.Config, creds config.Credentials, out io.Writer, log zerolog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := creds.Check(cfg); err != nil {
		return err
	}

	journal, err := backtest.NewJSONLRecorder(cfg.Output.LogDir)
	if err != nil {
		return err
	}
	defer journal.Close()
	recorders := []backtest.Recorder{journal}

	var (
		store *storage.RunStore
		runID string
	)
	if cfg.Output.DB != "" {
		store, err = storage.Open(cfg.Output.DB)
		if err != nil {
			return err
		}
		defer store.Close()
		runID, err = store.CreateRun(ctx, cfg.Run.Ticker, cfg)
		if err != nil {
			return err
		}
		recorders = append(recorders, store.Recorder(runID))
	}

	sim, err := runner.Build(ctx, cfg, creds, log, recorders...)
	if err != nil {
		if store != nil {
			_ = store.FinishRun(context.Background(), runID, storage.StatusFailed, nil)
		}
		return err
	}

	res := sim.Run(ctx)
	summary := analysis.SummarizeResult(res)

	if store != nil {
		status := storage.StatusCompleted
		if res.Interrupted {
			status = storage.StatusInterrupted
		}
		if err := store.FinishRun(context.Background(), runID, status, summary); err != nil {
			log.Error().Err(err).Str("run_id", runID).Msg("failed to store run summary")
		}
	}
	if cfg.Output.CSV != "" {
		if err := backtest.WriteLedgerCSV(cfg.Output.CSV, res.Records); err != nil {
			log.Error().Err(err).Str("path", cfg.Output.CSV).Msg("failed to write CSV ledger")
		} else {
			fmt.Fprintf(out, "Wrote %d rows to %s\n", len(res.Records), cfg.Output.CSV)
		}
	}

	fmt.Fprintf(out, "Step log: %s\n", journal.Path())
	if runID != "" {
		fmt.Fprintf(out, "Run id: %s\n", runID)
	}
	printSummary(out, summary)
	return nil
}

// newSummarizeCmd creates the summarize command
func newSummarizeCmd() *cobra.Command {
	var logPath, csvPath string
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize a recorded JSONL step log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := backtest.ReadJSONL(logPath)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return errors.New("step log is empty")
			}
			if csvPath != "" {
				if err := backtest.WriteLedgerCSV(csvPath, records); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows to %s\n", len(records), csvPath)
			}
			summary := analysis.Summarize(records, analysis.InitialCashFromRecords(records))
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&logPath, "log", "", "JSONL step log written by run")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Also convert the log to a CSV ledger")
	_ = cmd.MarkFlagRequired("log")
	return cmd
}

// newRunsCmd creates the runs command
func newRunsCmd() *cobra.Command {
	var dbPath string
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs stored with --db",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-36s  %-20s  %-11s  %-20s\n", "id", "name", "status", "created")
			for _, r := range runs {
				fmt.Fprintf(out, "%-36s  %-20s  %-11s  %-20s\n", r.ID, r.Name, r.Status, r.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "./data/runs.db", "SQLite database")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list (0 = all)")
	return cmd
}

func printSummary(out io.Writer, s analysis.Summary) {
	fmt.Fprintln(out, "")
	fmt.Fprintf(out, "Steps:          %d\n", s.Steps)
	fmt.Fprintf(out, "Trades:         %d (buys %d, sells %d, holds %d, rejected %d)\n", s.Trades, s.Buys, s.Sells, s.Holds, s.Rejected)
	if s.Fallbacks > 0 {
		fmt.Fprintf(out, "Agent errors:   %d\n", s.Fallbacks)
	}
	if s.Settlements > 0 {
		fmt.Fprintf(out, "Settlements:    %d\n", s.Settlements)
	}
	fmt.Fprintf(out, "Total return:   %.2f%%\n", s.TotalReturn*100)
	fmt.Fprintf(out, "Max drawdown:   %.2f%%\n", s.MaxDrawdown*100)
	fmt.Fprintf(out, "Sharpe (step):  %.3f\n", s.SharpeLike)
	if s.Interrupted {
		fmt.Fprintln(out, "Run was interrupted before the end date.")
	}
	fmt.Fprintf(out, "Final portfolio value: $%.2f\n", s.FinalValue)
}
