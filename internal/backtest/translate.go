package backtest

import (
	"math"

	"quantbrain/internal/domain"
)

// Translate maps raw signal values to positions, bar by bar.
//   - integral column: clip to [-1, 1]
//   - threshold hold mode: +1 if s >= t, -1 if s <= -t, else 0
//   - otherwise: round half to even, clip to [-1, 1]
//
// NaN always maps to Flat.
func Translate(signal domain.Column, hold domain.HoldMode) []domain.Position {
	threshold, isThreshold := hold.Threshold()

	out := make([]domain.Position, len(signal.Values))
	for i, v := range signal.Values {
		switch {
		case signal.Integral:
			out[i] = clipPosition(v)
		case isThreshold:
			out[i] = thresholdPosition(v, threshold)
		default:
			out[i] = clipPosition(math.RoundToEven(v))
		}
	}
	return out
}

// thresholdPosition is (s >= t) - (s <= -t). With t == 0 a zero signal
// satisfies both sides and cancels to Flat.
func thresholdPosition(s, t float64) domain.Position {
	p := domain.Flat
	if s >= t {
		p++
	}
	if s <= -t {
		p--
	}
	return p
}

func clipPosition(v float64) domain.Position {
	switch {
	case math.IsNaN(v):
		return domain.Flat
	case v >= 1:
		return domain.Long
	case v <= -1:
		return domain.Short
	default:
		return domain.Flat
	}
}
