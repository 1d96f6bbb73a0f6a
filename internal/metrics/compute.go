package metrics

import (
	"math"
	"sort"
	"time"

	"quantbrain/internal/domain"
)

// DefaultPeriodsPerYear is used when bar spacing cannot be determined.
const DefaultPeriodsPerYear = 252.0

const year = 365 * 24 * time.Hour

// Summarize calculates scalar performance metrics from a backtest result.
// Returns are used at full precision; the Sharpe-like ratio is annualized
// with the bar frequency inferred from the median timestamp spacing.
func Summarize(res *domain.Result, equity0 float64) domain.Summary {
	n := res.Len()
	if n == 0 {
		return domain.Summary{
			FinalEquity:    equity0,
			PeriodsPerYear: DefaultPeriodsPerYear,
		}
	}

	final := res.FinalEquity(equity0)
	ppy := computePeriodsPerYear(res.Timestamps)
	mean := computeMean(res.Returns)
	stddev := computeStddev(res.Returns, mean)

	return domain.Summary{
		Bars:           n,
		Trades:         res.Trades,
		FinalEquity:    final,
		TotalReturn:    final/equity0 - 1,
		Sharpe:         computeSharpe(mean, stddev, ppy),
		MaxDrawdown:    computeMaxDrawdown(equity0, res.Equity),
		Exposure:       computeExposure(res.Positions),
		PeriodsPerYear: ppy,
	}
}

// computeMean calculates arithmetic mean of returns.
func computeMean(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range returns {
		sum += r
	}
	return sum / float64(len(returns))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(returns []float64, mean float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, r := range returns {
		diff := r - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computeSharpe returns mean/stddev scaled by sqrt(periodsPerYear).
// Zero when the returns have no dispersion.
func computeSharpe(mean, stddev, periodsPerYear float64) float64 {
	if stddev == 0 || math.IsNaN(stddev) {
		return 0
	}
	return mean / stddev * math.Sqrt(periodsPerYear)
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates worst peak-to-trough of the equity curve as
// a fraction of the running peak. The starting equity counts as the first peak.
func computeMaxDrawdown(equity0 float64, equity []float64) float64 {
	peak := equity0
	maxDrawdown := 0.0

	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak <= 0 {
			continue
		}
		drawdown := (peak - e) / peak
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// computeExposure returns the fraction of bars holding a non-flat position.
func computeExposure(positions []domain.Position) float64 {
	if len(positions) == 0 {
		return 0
	}
	held := 0
	for _, p := range positions {
		if p != domain.Flat {
			held++
		}
	}
	return float64(held) / float64(len(positions))
}

// computePeriodsPerYear infers bars per year from the median spacing of
// consecutive timestamps. Timestamps must be sorted ASC.
func computePeriodsPerYear(timestamps []time.Time) float64 {
	if len(timestamps) < 2 {
		return DefaultPeriodsPerYear
	}

	gaps := make([]float64, 0, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		if gap > 0 {
			gaps = append(gaps, float64(gap))
		}
	}
	if len(gaps) == 0 {
		return DefaultPeriodsPerYear
	}

	sort.Float64s(gaps)
	median := computePercentile(gaps, 0.50)
	return float64(year) / median
}
