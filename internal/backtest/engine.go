package backtest

import (
	"fmt"
	"math"
	"time"

	"quantbrain/internal/domain"
)

// Run executes the full pipeline on a frame:
//  1. Validate index and columns
//  2. Validate and normalize parameters
//  3. Sort bars ascending by time (stable)
//  4. Translate signal to positions
//  5. Apply the classic k-bar hold (HoldBars only)
//  6. Apply the minimum-hold guard
//  7. Compute net returns and equity
//
// Configuration errors wrap ErrConfiguration, parameter errors wrap
// ErrParameter. No partial result is returned on error.
func Run(frame *domain.Frame, cfg domain.BacktestConfig) (*domain.Result, error) {
	if err := validateFrame(frame, cfg); err != nil {
		return nil, err
	}

	cfg, err := normalizeConfig(cfg)
	if err != nil {
		return nil, err
	}

	sorted := frame.SortedByTime()
	signal, _ := sorted.Column(cfg.SignalColumn)
	price, _ := sorted.Column(cfg.PriceColumn)

	desired := Translate(signal, cfg.Hold)
	held := ApplyHoldBars(desired, cfg.Hold)
	guarded := ApplyMinHold(held, cfg.MinHoldBars)

	pnl := ComputePnL(guarded, price.Values, cfg.FeeBps, cfg.SlippageBps, cfg.Equity0)

	return &domain.Result{
		Timestamps: sorted.Timestamps,
		Equity:     pnl.Equity,
		Returns:    pnl.Returns,
		Positions:  guarded,
		Trades:     pnl.Trades,
	}, nil
}

// validateFrame checks that the frame has one valid timestamp per row and
// carries the configured price and signal columns.
func validateFrame(frame *domain.Frame, cfg domain.BacktestConfig) error {
	if frame == nil || frame.Timestamps == nil {
		return fmt.Errorf("%w: frame has no time index", ErrInvalidIndex)
	}

	for i, ts := range frame.Timestamps {
		if ts.IsZero() {
			return fmt.Errorf("%w: row %d has no timestamp", ErrInvalidIndex, i)
		}
	}

	for _, name := range []string{cfg.SignalColumn, cfg.PriceColumn} {
		col, ok := frame.Column(name)
		if name == "" || !ok {
			return fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
		if len(col.Values) != frame.Len() {
			return fmt.Errorf("%w: column %q has %d values for %d rows",
				ErrInvalidIndex, name, len(col.Values), frame.Len())
		}
	}

	return nil
}

// NormalizeConfig returns the effective parameters Run would use for cfg,
// or the ErrParameter that Run would report. Columns are not checked.
func NormalizeConfig(cfg domain.BacktestConfig) (domain.BacktestConfig, error) {
	return normalizeConfig(cfg)
}

// normalizeConfig rejects invalid numeric parameters and coerces
// MinHoldBars to at least 1.
func normalizeConfig(cfg domain.BacktestConfig) (domain.BacktestConfig, error) {
	if !(cfg.FeeBps >= 0) || math.IsInf(cfg.FeeBps, 0) {
		return cfg, fmt.Errorf("%w: fee_bps must be a finite value >= 0, got %v", ErrParameter, cfg.FeeBps)
	}
	if !(cfg.SlippageBps >= 0) || math.IsInf(cfg.SlippageBps, 0) {
		return cfg, fmt.Errorf("%w: slippage_bps must be a finite value >= 0, got %v", ErrParameter, cfg.SlippageBps)
	}
	if !(cfg.Equity0 > 0) || math.IsInf(cfg.Equity0, 0) {
		return cfg, fmt.Errorf("%w: equity0 must be a finite value > 0, got %v", ErrParameter, cfg.Equity0)
	}

	switch cfg.Hold.Kind() {
	case domain.HoldKindThreshold:
		t, _ := cfg.Hold.Threshold()
		if !(t >= 0) || math.IsInf(t, 0) {
			return cfg, fmt.Errorf("%w: hold threshold must be a finite value >= 0, got %v", ErrParameter, t)
		}
	case domain.HoldKindBars:
		k, _ := cfg.Hold.Bars()
		if k < 0 {
			return cfg, fmt.Errorf("%w: hold bar count must be >= 0, got %d", ErrParameter, k)
		}
	}

	cfg.MinHoldBars = normalizeMinHold(cfg.MinHoldBars)
	return cfg, nil
}

// Span returns the first and last timestamp of a result.
func Span(r *domain.Result) (start, end time.Time) {
	if r.Len() == 0 {
		return time.Time{}, time.Time{}
	}
	return r.Timestamps[0], r.Timestamps[len(r.Timestamps)-1]
}
