package metrics

import (
	"math"
	"testing"
	"time"

	"quantbrain/internal/domain"
)

const eps = 1e-12

func TestComputeMean(t *testing.T) {
	if got := computeMean(nil); got != 0 {
		t.Errorf("computeMean(nil) = %v, want 0", got)
	}
	if got := computeMean([]float64{0.1, 0.2, 0.3}); math.Abs(got-0.2) > eps {
		t.Errorf("computeMean = %v, want 0.2", got)
	}
}

func TestComputeStddev(t *testing.T) {
	returns := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	mean := computeMean(returns)
	want := math.Sqrt(32.0 / 7.0)
	if got := computeStddev(returns, mean); math.Abs(got-want) > eps {
		t.Errorf("computeStddev = %v, want %v", got, want)
	}
	if got := computeStddev([]float64{1}, 1); got != 0 {
		t.Errorf("computeStddev single = %v, want 0", got)
	}
}

func TestComputePercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{0.5, 2.5},
		{1, 4},
	}
	for _, tt := range tests {
		if got := computePercentile(sorted, tt.p); math.Abs(got-tt.want) > eps {
			t.Errorf("computePercentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestComputeMaxDrawdown(t *testing.T) {
	equity := []float64{1.1, 1.2, 0.9, 1.0, 1.3, 1.04}
	// peak 1.2 -> 0.9 is 25%, peak 1.3 -> 1.04 is 20%
	if got := computeMaxDrawdown(1.0, equity); math.Abs(got-0.25) > eps {
		t.Errorf("computeMaxDrawdown = %v, want 0.25", got)
	}
	// starting equity is the first peak
	if got := computeMaxDrawdown(1.0, []float64{0.8, 0.9}); math.Abs(got-0.2) > eps {
		t.Errorf("computeMaxDrawdown from start = %v, want 0.2", got)
	}
	if got := computeMaxDrawdown(1.0, []float64{1.0, 1.1, 1.2}); got != 0 {
		t.Errorf("computeMaxDrawdown monotonic = %v, want 0", got)
	}
}

func TestComputePeriodsPerYear(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	daily := []time.Time{t0, t0.Add(24 * time.Hour), t0.Add(48 * time.Hour), t0.Add(120 * time.Hour)}
	if got := computePeriodsPerYear(daily); math.Abs(got-365) > 1e-9 {
		t.Errorf("daily periods = %v, want 365", got)
	}

	hourly := []time.Time{t0, t0.Add(time.Hour), t0.Add(2 * time.Hour)}
	if got := computePeriodsPerYear(hourly); math.Abs(got-365*24) > 1e-9 {
		t.Errorf("hourly periods = %v, want %v", got, 365*24)
	}

	if got := computePeriodsPerYear([]time.Time{t0}); got != DefaultPeriodsPerYear {
		t.Errorf("single bar periods = %v, want default", got)
	}
	if got := computePeriodsPerYear([]time.Time{t0, t0, t0}); got != DefaultPeriodsPerYear {
		t.Errorf("duplicate timestamps periods = %v, want default", got)
	}
}

func TestSummarize(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res := &domain.Result{
		Timestamps: []time.Time{t0, t0.Add(24 * time.Hour), t0.Add(48 * time.Hour), t0.Add(72 * time.Hour)},
		Returns:    []float64{0, 0.1, -0.05, 0.02},
		Equity:     []float64{1, 1.1, 1.045, 1.0659},
		Positions:  []domain.Position{domain.Long, domain.Long, domain.Short, domain.Flat},
		Trades:     4,
	}

	s := Summarize(res, 1.0)

	if s.Bars != 4 {
		t.Errorf("Bars = %d, want 4", s.Bars)
	}
	if s.Trades != 4 {
		t.Errorf("Trades = %d, want 4", s.Trades)
	}
	if math.Abs(s.FinalEquity-1.0659) > eps {
		t.Errorf("FinalEquity = %v", s.FinalEquity)
	}
	if math.Abs(s.TotalReturn-0.0659) > 1e-9 {
		t.Errorf("TotalReturn = %v, want 0.0659", s.TotalReturn)
	}
	if math.Abs(s.Exposure-0.75) > eps {
		t.Errorf("Exposure = %v, want 0.75", s.Exposure)
	}
	if math.Abs(s.MaxDrawdown-0.05) > 1e-9 {
		t.Errorf("MaxDrawdown = %v, want 0.05", s.MaxDrawdown)
	}

	mean := computeMean(res.Returns)
	std := computeStddev(res.Returns, mean)
	want := mean / std * math.Sqrt(365)
	if math.Abs(s.Sharpe-want) > 1e-9 {
		t.Errorf("Sharpe = %v, want %v", s.Sharpe, want)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(&domain.Result{}, 100)
	if s.Bars != 0 || s.Trades != 0 {
		t.Errorf("empty summary = %+v", s)
	}
	if s.FinalEquity != 100 {
		t.Errorf("FinalEquity = %v, want 100", s.FinalEquity)
	}
	if s.Sharpe != 0 || s.TotalReturn != 0 {
		t.Errorf("Sharpe/TotalReturn = %v/%v, want 0", s.Sharpe, s.TotalReturn)
	}
}

func TestSummarize_FlatReturnsZeroSharpe(t *testing.T) {
	t0 := time.Unix(0, 0).UTC()
	res := &domain.Result{
		Timestamps: []time.Time{t0, t0.Add(time.Minute)},
		Returns:    []float64{0, 0},
		Equity:     []float64{1, 1},
		Positions:  []domain.Position{domain.Flat, domain.Flat},
	}
	if s := Summarize(res, 1); s.Sharpe != 0 {
		t.Errorf("Sharpe = %v, want 0", s.Sharpe)
	}
}
