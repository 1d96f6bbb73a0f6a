// Package api exposes backtests over HTTP with gin.
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"quantbrain/internal/domain"
	"quantbrain/internal/observability"
	"quantbrain/internal/reporting"
	"quantbrain/internal/runner"
	"quantbrain/internal/storage"
)

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	runner      *runner.Runner
	barStore    storage.BarStore
	runStore    storage.RunStore
	equityStore storage.EquityStore
	reports     *reporting.Generator
	metrics     *observability.Metrics
	gatherer    prometheus.Gatherer
	defaults    domain.BacktestConfig
	health      func(context.Context) error
	log         zerolog.Logger
	started     time.Time
}

// Options contains configuration for creating a Server.
// Runner and RunStore are required; the other fields are optional.
type Options struct {
	Runner      *runner.Runner
	BarStore    storage.BarStore
	RunStore    storage.RunStore
	EquityStore storage.EquityStore
	Metrics     *observability.Metrics
	Gatherer    prometheus.Gatherer // served on /metrics; nil means the default gatherer
	Defaults    *domain.BacktestConfig
	Health      func(context.Context) error // storage check behind /healthz
	Logger      *zerolog.Logger
}

// New creates a Server.
func New(opts Options) *Server {
	s := &Server{
		runner:      opts.Runner,
		barStore:    opts.BarStore,
		runStore:    opts.RunStore,
		equityStore: opts.EquityStore,
		reports:     reporting.NewGenerator(opts.RunStore, opts.EquityStore),
		metrics:     opts.Metrics,
		gatherer:    opts.Gatherer,
		defaults:    domain.DefaultBacktestConfig(),
		health:      opts.Health,
		log:         zerolog.Nop(),
		started:     time.Now(),
	}
	if opts.Defaults != nil {
		s.defaults = *opts.Defaults
	}
	if opts.Logger != nil {
		s.log = opts.Logger.With().Str("component", "api").Logger()
	}
	return s
}

// Router builds the gin engine with every route registered.
//
//	POST /v1/backtests             run a backtest on inline or stored bars
//	GET  /v1/runs/:id              run record
//	GET  /v1/runs/:id/equity       per-bar equity curve
//	GET  /v1/runs/:id/report       Markdown report (?format=csv for the curve)
//	POST /v1/series/:id/bars       store bars for a series
//	GET  /v1/series/:id/runs       runs of a series
//	GET  /healthz                  liveness
//	GET  /metrics                  Prometheus metrics
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.observe())

	v1 := r.Group("/v1")
	{
		v1.POST("/backtests", s.handleBacktest)
		v1.GET("/runs/:id", s.handleGetRun)
		v1.GET("/runs/:id/equity", s.handleGetEquity)
		v1.GET("/runs/:id/report", s.handleGetReport)
		v1.POST("/series/:id/bars", s.handleIngestBars)
		v1.GET("/series/:id/runs", s.handleSeriesRuns)
	}

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(observability.Handler(s.gatherer)))

	return r
}
