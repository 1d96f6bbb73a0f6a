package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"quantbrain/internal/config"
	"quantbrain/internal/domain"
	"quantbrain/internal/feed"
	"quantbrain/internal/logging"
	"quantbrain/internal/reporting"
	"quantbrain/internal/runner"
	"quantbrain/internal/stores"
)

func main() {
	// Config sources
	configPath := flag.String("config", "", "YAML config file")
	envFile := flag.String("env-file", ".env", "Optional .env file")

	// Input (one of)
	csvPath := flag.String("csv", "", "Signal CSV file")
	timeColumn := flag.String("time-column", domain.DefaultTimeColumn, "Time column of the CSV")
	wsURL := flag.String("ws-url", "", "WebSocket bar feed URL")
	wsMaxBars := flag.Int("ws-max-bars", 0, "Stop the feed after n bars (0 = until the server ends it)")
	seriesID := flag.String("series-id", "", "Series ID (required for stored bars; defaults to the CSV name)")

	// Backtest parameters (override the config file)
	priceColumn := flag.String("price-column", "", "Price column")
	signalColumn := flag.String("signal-column", "", "Signal column")
	feeBps := flag.Float64("fee-bps", domain.DefaultFeeBps, "Fee per position change (bps)")
	slippageBps := flag.Float64("slippage-bps", domain.DefaultSlippageBps, "Slippage per position change (bps)")
	hold := flag.String("hold", "", "Hold: none, a threshold (0.4) or a bar count (3)")
	minHold := flag.Int("min-hold", domain.DefaultMinHoldBars, "Minimum bars between position changes")
	equity0 := flag.Float64("equity0", domain.DefaultEquity0, "Starting equity")

	// Storage
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	persist := flag.Bool("persist", false, "Persist the run and its equity curve")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")
	reportDir := flag.String("report-dir", "", "Write equity.csv, runs.csv and report.md to this directory")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")

	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	set := setFlags()
	if set["log-level"] {
		cfg.LogLevel = *logLevel
	}
	logger := logging.New(cfg.LogLevel, "backtest")

	// Apply flag overrides
	bt := &cfg.Backtest
	if set["price-column"] {
		bt.PriceColumn = *priceColumn
	}
	if set["signal-column"] {
		bt.SignalColumn = *signalColumn
	}
	if set["fee-bps"] {
		bt.FeeBps = *feeBps
	}
	if set["slippage-bps"] {
		bt.SlippageBps = *slippageBps
	}
	if set["hold"] {
		h, err := domain.ParseHold(*hold)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid --hold")
		}
		bt.Hold = h
	}
	if set["min-hold"] {
		bt.MinHoldBars = *minHold
	}
	if set["equity0"] {
		bt.Equity0 = *equity0
	}
	if *useMemory {
		cfg.Storage.UseMemory = true
	}

	// Validate input selection
	if *csvPath != "" && *wsURL != "" {
		logger.Fatal().Msg("--csv and --ws-url are mutually exclusive")
	}
	fromStore := *csvPath == "" && *wsURL == ""
	if fromStore && *seriesID == "" {
		logger.Fatal().Msg("one of --csv, --ws-url or --series-id is required")
	}
	if *wsURL != "" && *seriesID == "" {
		logger.Fatal().Msg("--series-id is required with --ws-url")
	}
	if *seriesID == "" {
		*seriesID = strings.TrimSuffix(filepath.Base(*csvPath), filepath.Ext(*csvPath))
	}

	// Create context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Create stores
	opts := runner.Options{Logger: &logger}
	var storeSet *stores.Set
	if fromStore || *persist {
		storeSet, err = stores.Open(ctx, cfg.Storage, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("open storage")
		}
		defer storeSet.Close()

		opts.BarStore = storeSet.Bars
		if *persist {
			opts.RunStore = storeSet.Runs
			opts.EquityStore = storeSet.Equity
		}
	}
	r := runner.New(opts)

	// Run backtest
	var outcome *runner.Outcome
	switch {
	case *csvPath != "":
		frame, err := feed.LoadCSVFile(*csvPath, *timeColumn)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *csvPath).Msg("load csv")
		}
		outcome, err = r.RunFrame(ctx, *seriesID, frame, *bt)
		if err != nil {
			logger.Fatal().Err(err).Msg("backtest failed")
		}
	case *wsURL != "":
		src := feed.NewWSSource(*wsURL, *seriesID, logger, feed.WithMaxBars(*wsMaxBars))
		bars, err := src.Collect(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("collect bars")
		}
		frame := domain.FrameFromBars(bars, bt.PriceColumn, bt.SignalColumn)
		outcome, err = r.RunFrame(ctx, *seriesID, frame, *bt)
		if err != nil {
			logger.Fatal().Err(err).Msg("backtest failed")
		}
	default:
		outcome, err = r.Run(ctx, *seriesID, *bt)
		if err != nil {
			logger.Fatal().Err(err).Msg("backtest failed")
		}
	}

	if *reportDir != "" {
		if err := writeReport(ctx, *reportDir, outcome, storeSet, *persist, logger); err != nil {
			logger.Fatal().Err(err).Msg("write report")
		}
	}

	// Output result
	if *outputJSON {
		output, _ := json.MarshalIndent(outcome, "", "  ")
		fmt.Println(string(output))
	} else {
		printOutcome(outcome)
	}
}

// setFlags returns the names of flags given on the command line.
func setFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// writeReport renders the run into dir. Persisted runs list their sibling
// runs from the run store.
func writeReport(ctx context.Context, dir string, outcome *runner.Outcome, set *stores.Set, persisted bool, logger zerolog.Logger) error {
	report := reporting.FromResult(outcome.Record, outcome.Result, time.Now().UTC())
	if persisted && set != nil {
		runs, err := set.Runs.GetBySeries(ctx, outcome.Record.SeriesID)
		if err != nil {
			return fmt.Errorf("load series runs: %w", err)
		}
		report.SeriesRuns = runs
	}

	paths, err := reporting.WriteFiles(dir, report)
	if err != nil {
		return err
	}
	logger.Info().Strs("files", paths).Msg("report written")
	return nil
}

// printOutcome outputs a human-readable run summary.
func printOutcome(o *runner.Outcome) {
	rec := o.Record
	cfg := rec.Config
	s := rec.Summary

	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Run ID:             %s\n", rec.RunID)
	fmt.Printf("Series:             %s\n", rec.SeriesID)
	if s.Bars > 0 {
		fmt.Printf("Period:             %s to %s\n",
			time.UnixMilli(rec.StartTime).UTC().Format(time.RFC3339),
			time.UnixMilli(rec.EndTime).UTC().Format(time.RFC3339))
	}
	if o.Existing {
		fmt.Println("Stored:             already recorded")
	}
	fmt.Println()

	fmt.Println("Config:")
	fmt.Printf("  Columns:          price=%s signal=%s\n", cfg.PriceColumn, cfg.SignalColumn)
	fmt.Printf("  Fee / Slippage:   %.2f / %.2f bps\n", cfg.FeeBps, cfg.SlippageBps)
	fmt.Printf("  Hold:             %s\n", cfg.Hold)
	fmt.Printf("  Min Hold Bars:    %d\n", cfg.MinHoldBars)
	fmt.Printf("  Starting Equity:  %g\n", cfg.Equity0)
	fmt.Println()

	fmt.Println("Result:")
	fmt.Printf("  Bars:             %d\n", s.Bars)
	fmt.Printf("  Position Changes: %d\n", s.Trades)
	fmt.Printf("  Final Equity:     %.6f\n", s.FinalEquity)
	fmt.Printf("  Total Return:     %.2f%%\n", s.TotalReturn*100)
	fmt.Printf("  Sharpe:           %.4f (%.0f periods/year)\n", s.Sharpe, s.PeriodsPerYear)
	fmt.Printf("  Max Drawdown:     %.2f%%\n", s.MaxDrawdown*100)
	fmt.Printf("  Exposure:         %.2f%%\n", s.Exposure*100)
}
