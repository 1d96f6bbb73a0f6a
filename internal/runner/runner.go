// Package runner executes backtests against stored or in-memory bars and
// records the runs.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"quantbrain/internal/backtest"
	"quantbrain/internal/domain"
	"quantbrain/internal/idhash"
	"quantbrain/internal/metrics"
	"quantbrain/internal/observability"
	"quantbrain/internal/storage"
)

// Input sources, used as the metrics "source" label.
const (
	SourceStore = "store"
	SourceFrame = "frame"
)

// ErrNoBarStore is returned by Run when the runner has no BarStore.
var ErrNoBarStore = errors.New("runner has no bar store")

// Runner executes backtests and persists their records.
type Runner struct {
	barStore    storage.BarStore
	runStore    storage.RunStore
	equityStore storage.EquityStore
	metrics     *observability.Metrics
	log         zerolog.Logger
	now         func() time.Time
}

// Options contains configuration for creating a Runner. Every store is
// optional: without a RunStore nothing is persisted.
type Options struct {
	BarStore    storage.BarStore
	RunStore    storage.RunStore
	EquityStore storage.EquityStore
	Metrics     *observability.Metrics
	Logger      *zerolog.Logger
	Clock       func() time.Time
}

// Outcome is the product of one run.
type Outcome struct {
	Record   *domain.RunRecord `json:"record"`
	Result   *domain.Result    `json:"result"`
	Existing bool              `json:"existing"` // an identical run was already stored
}

// New creates a Runner.
func New(opts Options) *Runner {
	r := &Runner{
		barStore:    opts.BarStore,
		runStore:    opts.RunStore,
		equityStore: opts.EquityStore,
		metrics:     opts.Metrics,
		log:         zerolog.Nop(),
		now:         time.Now,
	}
	if opts.Logger != nil {
		r.log = opts.Logger.With().Str("component", "runner").Logger()
	}
	if opts.Clock != nil {
		r.now = opts.Clock
	}
	return r
}

// Run backtests the stored bars of a series.
// Steps:
//  1. Load bars by series ID (storage.ErrNotFound if there are none)
//  2. Build a frame named after the configured columns
//  3. Run the engine and persist, as in RunFrame
func (r *Runner) Run(ctx context.Context, seriesID string, cfg domain.BacktestConfig) (*Outcome, error) {
	if r.barStore == nil {
		return nil, ErrNoBarStore
	}

	start := r.now()
	bars, err := r.barStore.GetBySeries(ctx, seriesID)
	r.metrics.RecordDBQuery("bar_store", "get_by_series", r.now().Sub(start), err)
	if err != nil {
		return nil, fmt.Errorf("load bars for %s: %w", seriesID, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("series %q: %w", seriesID, storage.ErrNotFound)
	}

	cfg = withDefaultColumns(cfg)
	frame := domain.FrameFromBars(bars, cfg.PriceColumn, cfg.SignalColumn)
	return r.run(ctx, SourceStore, seriesID, frame, cfg)
}

// RunFrame backtests an in-memory frame and records it under seriesID.
// A run whose deterministic ID is already stored returns the stored record
// with Existing set; its equity curve is not written again.
func (r *Runner) RunFrame(ctx context.Context, seriesID string, frame *domain.Frame, cfg domain.BacktestConfig) (*Outcome, error) {
	return r.run(ctx, SourceFrame, seriesID, frame, cfg)
}

func (r *Runner) run(ctx context.Context, source, seriesID string, frame *domain.Frame, cfg domain.BacktestConfig) (*Outcome, error) {
	started := r.now()
	log := r.log.With().Str("series_id", seriesID).Str("source", source).Logger()

	res, err := backtest.Run(frame, cfg)
	if err != nil {
		r.metrics.RecordValidationError(errorKind(err))
		r.metrics.RecordRun(source, observability.StatusError, r.now().Sub(started), 0, 0)
		log.Warn().Err(err).Msg("backtest rejected")
		return nil, err
	}

	// Run succeeded, so the parameters are valid.
	effective, _ := backtest.NormalizeConfig(cfg)
	record := newRecord(seriesID, effective, res, r.now().UTC())

	outcome := &Outcome{Record: record, Result: res}
	status := observability.StatusOK

	if r.runStore != nil {
		existing, err := r.persist(ctx, record, res)
		if err != nil {
			r.metrics.RecordRun(source, observability.StatusError, r.now().Sub(started), res.Len(), res.Trades)
			log.Error().Err(err).Str("run_id", record.RunID).Msg("persist run failed")
			return nil, err
		}
		if existing != nil {
			outcome.Record = existing
			outcome.Existing = true
			status = observability.StatusDuplicate
		}
	}

	elapsed := r.now().Sub(started)
	r.metrics.RecordRun(source, status, elapsed, res.Len(), res.Trades)
	log.Info().
		Str("run_id", record.RunID).
		Int("bars", res.Len()).
		Int("trades", res.Trades).
		Float64("final_equity", record.Summary.FinalEquity).
		Bool("existing", outcome.Existing).
		Dur("elapsed", elapsed).
		Msg("backtest complete")

	return outcome, nil
}

// persist writes the equity curve then the run record. It returns the stored
// record when the run ID already exists.
func (r *Runner) persist(ctx context.Context, record *domain.RunRecord, res *domain.Result) (*domain.RunRecord, error) {
	if r.equityStore != nil && res.Len() > 0 {
		start := r.now()
		err := r.equityStore.InsertBulk(ctx, res.EquityPoints(record.RunID))
		r.metrics.RecordDBQuery("equity_store", "insert_bulk", r.now().Sub(start), err)
		// a stored curve for this ID is identical by construction
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("insert equity curve: %w", err)
		}
	}

	start := r.now()
	err := r.runStore.Insert(ctx, record)
	r.metrics.RecordDBQuery("run_store", "insert", r.now().Sub(start), err)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	existing, err := r.runStore.GetByID(ctx, record.RunID)
	if err != nil {
		return nil, fmt.Errorf("load existing run %s: %w", record.RunID, err)
	}
	return existing, nil
}

func newRecord(seriesID string, cfg domain.BacktestConfig, res *domain.Result, createdAt time.Time) *domain.RunRecord {
	var startMs, endMs int64
	if first, last := backtest.Span(res); !first.IsZero() {
		startMs, endMs = first.UnixMilli(), last.UnixMilli()
	}

	return &domain.RunRecord{
		RunID:     idhash.ComputeRunID(seriesID, cfg, res.Len(), startMs, endMs),
		SeriesID:  seriesID,
		Config:    cfg,
		Summary:   metrics.Summarize(res, cfg.Equity0),
		StartTime: startMs,
		EndTime:   endMs,
		CreatedAt: createdAt,
	}
}

// withDefaultColumns fills empty column names for store-backed runs, whose
// bars carry exactly one price and one signal.
func withDefaultColumns(cfg domain.BacktestConfig) domain.BacktestConfig {
	if cfg.PriceColumn == "" {
		cfg.PriceColumn = domain.DefaultPriceColumn
	}
	if cfg.SignalColumn == "" {
		cfg.SignalColumn = domain.DefaultSignalColumn
	}
	return cfg
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, backtest.ErrConfiguration):
		return "configuration"
	case errors.Is(err, backtest.ErrParameter):
		return "parameter"
	default:
		return "other"
	}
}
