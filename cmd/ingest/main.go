package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quantbrain/internal/config"
	"quantbrain/internal/domain"
	"quantbrain/internal/feed"
	"quantbrain/internal/logging"
	"quantbrain/internal/stores"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	envFile := flag.String("env-file", ".env", "Optional .env file")
	seriesID := flag.String("series-id", "", "Series ID to store the bars under (required)")

	csvPath := flag.String("csv", "", "Signal CSV file")
	timeColumn := flag.String("time-column", domain.DefaultTimeColumn, "Time column of the CSV")
	priceColumn := flag.String("price-column", "", "Price column of the CSV (overrides config)")
	signalColumn := flag.String("signal-column", "", "Signal column of the CSV (overrides config)")

	wsURL := flag.String("ws-url", "", "WebSocket bar feed URL")
	wsMaxBars := flag.Int("ws-max-bars", 0, "Stop the feed after n bars (0 = until the server ends it)")
	wsReadTimeout := flag.Duration("ws-read-timeout", 30*time.Second, "Feed read timeout")

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
	logger := logging.New(cfg.LogLevel, "ingest")

	// Validate required flags
	if *seriesID == "" {
		logger.Fatal().Msg("--series-id is required")
	}
	if (*csvPath == "") == (*wsURL == "") {
		logger.Fatal().Msg("exactly one of --csv or --ws-url is required")
	}
	if cfg.Storage.Memory() {
		logger.Warn().Msg("no database configured; bars will be discarded on exit")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	set, err := stores.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open storage")
	}
	defer set.Close()

	// Collect bars
	var bars []*domain.Bar
	if *csvPath != "" {
		priceCol := cfg.Backtest.PriceColumn
		if *priceColumn != "" {
			priceCol = *priceColumn
		}
		signalCol := cfg.Backtest.SignalColumn
		if *signalColumn != "" {
			signalCol = *signalColumn
		}

		frame, err := feed.LoadCSVFile(*csvPath, *timeColumn)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *csvPath).Msg("load csv")
		}
		var ok bool
		bars, ok = frame.Bars(*seriesID, priceCol, signalCol)
		if !ok {
			logger.Fatal().Str("price_column", priceCol).Str("signal_column", signalCol).Msg("csv lacks the configured columns")
		}
	} else {
		src := feed.NewWSSource(*wsURL, *seriesID, logger,
			feed.WithMaxBars(*wsMaxBars),
			feed.WithReadTimeout(*wsReadTimeout),
		)
		bars, err = src.Collect(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("collect bars")
		}
	}

	if len(bars) == 0 {
		logger.Warn().Msg("no bars to store")
		return
	}

	start := time.Now()
	if err := set.Bars.InsertBulk(ctx, bars); err != nil {
		logger.Fatal().Err(err).Int("bars", len(bars)).Msg("store bars")
	}

	logger.Info().
		Str("series_id", *seriesID).
		Int("bars", len(bars)).
		Str("backend", set.Backend).
		Dur("elapsed", time.Since(start)).
		Msg("bars stored")
}
