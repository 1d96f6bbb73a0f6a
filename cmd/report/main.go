package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"quantbrain/internal/config"
	"quantbrain/internal/logging"
	"quantbrain/internal/reporting"
	"quantbrain/internal/stores"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	envFile := flag.String("env-file", ".env", "Optional .env file")
	runID := flag.String("run-id", "", "Run ID to report on (required)")
	outputDir := flag.String("output-dir", "reports", "Output directory for generated files")
	toStdout := flag.Bool("stdout", false, "Print the Markdown report instead of writing files")
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
	logger := logging.New(cfg.LogLevel, "report")

	// Validate flags
	if *runID == "" {
		logger.Fatal().Msg("--run-id is required")
	}
	if cfg.Storage.Memory() {
		fmt.Fprintln(os.Stderr, "Error: a database is required; runs are not kept in memory between processes")
		fmt.Fprintln(os.Stderr, "Set storage.postgres_dsn and storage.clickhouse_dsn in the config or QB_POSTGRES_DSN / QB_CLICKHOUSE_DSN")
		os.Exit(1)
	}

	ctx := context.Background()

	set, err := stores.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open storage")
	}
	defer set.Close()

	report, err := reporting.NewGenerator(set.Runs, set.Equity).Generate(ctx, *runID)
	if err != nil {
		logger.Fatal().Err(err).Msg("generate report")
	}

	if *toStdout {
		fmt.Print(reporting.RenderMarkdown(report))
		return
	}

	paths, err := reporting.WriteFiles(*outputDir, report)
	if err != nil {
		logger.Fatal().Err(err).Msg("write report")
	}

	fmt.Println("Report generated successfully:")
	for _, p := range paths {
		fmt.Printf("  - %s\n", p)
	}
}
