package backtest

import (
	"math"

	"quantbrain/internal/domain"
)

// bpsDenominator converts basis points to a fraction.
const bpsDenominator = 10000.0

// PnL holds the accounting output of ComputePnL.
type PnL struct {
	Returns []float64 // net return per bar
	Equity  []float64 // cumulative equity per bar
	Trades  int       // sum of |position change| from bar 1 on
}

// ComputePnL computes per-bar net returns and equity for a committed position
// stream. The position held over bar i is the one committed at bar i-1, so a
// change at bar i only earns from bar i+1 but pays its cost at bar i. Bar 0 has
// no prior position, so it is never a trade.
// positions and prices must have equal length.
func ComputePnL(positions []domain.Position, prices []float64, feeBps, slippageBps, equity0 float64) PnL {
	n := len(positions)
	costPerTrade := (feeBps + slippageBps) / bpsDenominator

	out := PnL{
		Returns: make([]float64, 0, n),
		Equity:  make([]float64, 0, n),
	}

	equity := equity0
	prevPos := domain.Flat
	for i := 0; i < n; i++ {
		ret := 0.0
		change := 0
		if i > 0 {
			ret = simpleReturn(prices[i-1], prices[i])
			change = absInt(int(positions[i]) - int(prevPos))
		}

		gross := float64(prevPos) * ret
		net := gross - float64(change)*costPerTrade

		equity *= 1 + net
		out.Returns = append(out.Returns, net)
		out.Equity = append(out.Equity, equity)
		out.Trades += change

		prevPos = positions[i]
	}

	return out
}

// simpleReturn returns cur/prev - 1, or 0 when that is not a finite number.
func simpleReturn(prev, cur float64) float64 {
	r := cur/prev - 1
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
