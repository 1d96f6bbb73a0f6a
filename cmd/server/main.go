// Package main runs the backtest HTTP API:
// - POST /v1/backtests on inline or stored bars
// - run, equity curve and report lookups
// - Prometheus metrics on the API port and, optionally, a separate port
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"quantbrain/internal/api"
	"quantbrain/internal/config"
	"quantbrain/internal/logging"
	"quantbrain/internal/observability"
	"quantbrain/internal/runner"
	"quantbrain/internal/stores"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "YAML config file")
	envFile := flag.String("env-file", ".env", "Optional .env file")
	addr := flag.String("addr", "", "API listen address (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Separate Prometheus listen address (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")

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
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *metricsAddr != "" {
		cfg.Server.MetricsAddr = *metricsAddr
	}
	if *useMemory {
		cfg.Storage.UseMemory = true
	}

	logger := logging.New(cfg.LogLevel, "server")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Create stores
	set, err := stores.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open storage")
	}
	defer set.Close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := observability.NewMetrics(observability.DefaultNamespace, reg)

	r := runner.New(runner.Options{
		BarStore:    set.Bars,
		RunStore:    set.Runs,
		EquityStore: set.Equity,
		Metrics:     m,
		Logger:      &logger,
	})

	gin.SetMode(gin.ReleaseMode)
	srv := api.New(api.Options{
		Runner:      r,
		BarStore:    set.Bars,
		RunStore:    set.Runs,
		EquityStore: set.Equity,
		Metrics:     m,
		Gatherer:    reg,
		Defaults:    &cfg.Backtest,
		Health:      set.Ping,
		Logger:      &logger,
	})

	servers := []*http.Server{{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if cfg.Server.MetricsAddr != "" && cfg.Server.MetricsAddr != cfg.Server.Addr {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler(reg))
		servers = append(servers, &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, hs := range servers {
		go func(hs *http.Server) {
			logger.Info().Str("addr", hs.Addr).Msg("listening")
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("serve %s: %w", hs.Addr, err)
			}
		}(hs)
	}

	// Wait for a signal or a listener failure
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	for _, hs := range servers {
		if err := hs.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Str("addr", hs.Addr).Msg("graceful shutdown failed")
		}
	}

	logger.Info().Msg("shutdown complete")
}
