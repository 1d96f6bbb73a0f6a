package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantbrain/internal/backtest"
	"quantbrain/internal/domain"
	"quantbrain/internal/observability"
	"quantbrain/internal/storage"
	"quantbrain/internal/storage/memory"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	bars    *memory.BarStore
	runs    *memory.RunStore
	equity  *memory.EquityStore
	metrics *observability.Metrics
	runner  *Runner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		bars:    memory.NewBarStore(),
		runs:    memory.NewRunStore(),
		equity:  memory.NewEquityStore(),
		metrics: observability.NewMetrics("test", prometheus.NewRegistry()),
	}
	env.runner = New(Options{
		BarStore:    env.bars,
		RunStore:    env.runs,
		EquityStore: env.equity,
		Metrics:     env.metrics,
		Clock:       func() time.Time { return fixedNow },
	})
	return env
}

// seedBars stores daily bars for prices 100, 101, 99, 99, 102 with signals 0, 1, 1, 0, 0.
func seedBars(t *testing.T, store storage.BarStore, seriesID string) {
	t.Helper()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := []float64{100, 101, 99, 99, 102}
	signals := []float64{0, 1, 1, 0, 0}

	var bars []*domain.Bar
	for i := range prices {
		bars = append(bars, &domain.Bar{
			SeriesID:       seriesID,
			TimestampMs:    t0.AddDate(0, 0, i).UnixMilli(),
			Price:          prices[i],
			Signal:         signals[i],
			SignalIntegral: true,
		})
	}
	require.NoError(t, store.InsertBulk(context.Background(), bars))
}

func TestRunner_RunFromStore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedBars(t, env.bars, "BTC-1d")

	cfg := domain.DefaultBacktestConfig()
	cfg.FeeBps = 10

	out, err := env.runner.Run(ctx, "BTC-1d", cfg)
	require.NoError(t, err)
	require.NotNil(t, out.Record)
	assert.False(t, out.Existing)

	// min hold 1 rejects the change at bar 1
	assert.Equal(t, []domain.Position{0, 0, 1, 1, 0}, out.Result.Positions)
	assert.Equal(t, 2, out.Result.Trades)

	rec := out.Record
	assert.NotEmpty(t, rec.RunID)
	assert.Equal(t, "BTC-1d", rec.SeriesID)
	assert.Equal(t, 5, rec.Summary.Bars)
	assert.Equal(t, 2, rec.Summary.Trades)
	assert.InDelta(t, out.Result.Equity[4], rec.Summary.FinalEquity, 1e-15)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), rec.StartTime)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC).UnixMilli(), rec.EndTime)
	assert.Equal(t, fixedNow, rec.CreatedAt)

	stored, err := env.runs.GetByID(ctx, rec.RunID)
	require.NoError(t, err)
	assert.Equal(t, rec.Summary, stored.Summary)

	curve, err := env.equity.GetByRunID(ctx, rec.RunID)
	require.NoError(t, err)
	require.Len(t, curve, 5)
	assert.Equal(t, domain.Long, curve[2].Position)
	assert.Equal(t, out.Result.Equity[3], curve[3].Equity)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.RunsTotal.WithLabelValues(SourceStore, observability.StatusOK)))
	assert.Equal(t, 5.0, testutil.ToFloat64(env.metrics.BarsProcessed))
}

func TestRunner_DuplicateRunReturnsExisting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedBars(t, env.bars, "BTC-1d")

	first, err := env.runner.Run(ctx, "BTC-1d", domain.DefaultBacktestConfig())
	require.NoError(t, err)

	second, err := env.runner.Run(ctx, "BTC-1d", domain.DefaultBacktestConfig())
	require.NoError(t, err)
	assert.True(t, second.Existing)
	assert.Equal(t, first.Record.RunID, second.Record.RunID)

	runs, err := env.runs.GetBySeries(ctx, "BTC-1d")
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.RunsTotal.WithLabelValues(SourceStore, observability.StatusDuplicate)))
}

func TestRunner_EquivalentMinHoldSharesRunID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedBars(t, env.bars, "s")

	a := domain.DefaultBacktestConfig()
	a.MinHoldBars = 0
	b := domain.DefaultBacktestConfig()
	b.MinHoldBars = 1

	outA, err := env.runner.Run(ctx, "s", a)
	require.NoError(t, err)
	outB, err := env.runner.Run(ctx, "s", b)
	require.NoError(t, err)

	assert.Equal(t, outA.Record.RunID, outB.Record.RunID)
	assert.Equal(t, 1, outA.Record.Config.MinHoldBars)
}

func TestRunner_DifferentConfigDifferentRunID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedBars(t, env.bars, "s")

	a, err := env.runner.Run(ctx, "s", domain.DefaultBacktestConfig())
	require.NoError(t, err)

	cfg := domain.DefaultBacktestConfig()
	cfg.Hold = domain.HoldBars(2)
	b, err := env.runner.Run(ctx, "s", cfg)
	require.NoError(t, err)

	assert.NotEqual(t, a.Record.RunID, b.Record.RunID)
	assert.False(t, b.Existing)
}

func TestRunner_UnknownSeries(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.runner.Run(context.Background(), "missing", domain.DefaultBacktestConfig())
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestRunner_NoBarStore(t *testing.T) {
	r := New(Options{})
	_, err := r.Run(context.Background(), "s", domain.DefaultBacktestConfig())
	assert.ErrorIs(t, err, ErrNoBarStore)
}

func TestRunner_RunFrameValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	frame := domain.NewFrame([]time.Time{t0, t0.Add(time.Hour)})
	frame.SetColumn("close", []float64{1, 2}, false)

	_, err := env.runner.RunFrame(ctx, "s", frame, domain.DefaultBacktestConfig())
	assert.ErrorIs(t, err, backtest.ErrMissingColumn)

	frame.SetColumn("signal", []float64{1, 1}, true)
	cfg := domain.DefaultBacktestConfig()
	cfg.FeeBps = -1
	_, err = env.runner.RunFrame(ctx, "s", frame, cfg)
	assert.ErrorIs(t, err, backtest.ErrParameter)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ValidationErrors.WithLabelValues("configuration")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ValidationErrors.WithLabelValues("parameter")))

	runs, _ := env.runs.GetBySeries(ctx, "s")
	assert.Empty(t, runs, "rejected runs are not persisted")
}

func TestRunner_RunFrameEmpty(t *testing.T) {
	env := newTestEnv(t)

	frame := domain.NewFrame([]time.Time{})
	frame.SetColumn("close", []float64{}, false)
	frame.SetColumn("signal", []float64{}, true)

	out, err := env.runner.RunFrame(context.Background(), "empty", frame, domain.DefaultBacktestConfig())
	require.NoError(t, err)
	assert.Equal(t, 0, out.Result.Len())
	assert.Equal(t, int64(0), out.Record.StartTime)
	assert.Equal(t, 1.0, out.Record.Summary.FinalEquity)
}

func TestRunner_WithoutStores(t *testing.T) {
	r := New(Options{Clock: func() time.Time { return fixedNow }})

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	frame := domain.NewFrame([]time.Time{t0, t0.AddDate(0, 0, 1)})
	frame.SetColumn("close", []float64{100, 110}, false)
	frame.SetColumn("signal", []float64{1, 1}, true)

	cfg := domain.DefaultBacktestConfig()
	cfg.FeeBps = 0
	out, err := r.RunFrame(context.Background(), "adhoc", frame, cfg)
	require.NoError(t, err)
	assert.InDelta(t, 1.1, out.Record.Summary.FinalEquity, 1e-12)
	assert.InDelta(t, 0.1, out.Record.Summary.TotalReturn, 1e-12)
}
