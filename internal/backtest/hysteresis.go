package backtest

import "quantbrain/internal/domain"

// fold runs a state machine over positions in index order and collects one
// output per bar. Each step sees only the carried state and the current bar.
func fold[S any](in []domain.Position, init S, step func(s S, i int, desired domain.Position) (S, domain.Position)) []domain.Position {
	out := make([]domain.Position, 0, len(in))
	state := init
	for i, desired := range in {
		var p domain.Position
		state, p = step(state, i, desired)
		out = append(out, p)
	}
	return out
}

// holdBarsState is the carried state of the classic k-bar hold.
type holdBarsState struct {
	last    domain.Position // last applied position
	counter int             // attempts since the last committed change
}

func (s holdBarsState) step(desired domain.Position, k int) (holdBarsState, domain.Position) {
	if desired == s.last {
		return holdBarsState{last: s.last}, s.last
	}
	if s.counter < k {
		return holdBarsState{last: s.last, counter: s.counter + 1}, s.last
	}
	return holdBarsState{last: desired}, desired
}

// ApplyHoldBars applies the classic k-bar hold: a change away from the last
// applied position is rejected until k attempts have been made, and a bar that
// agrees with the last position resets the attempt counter.
// It is the identity unless hold is HoldBars(k) with k > 0.
func ApplyHoldBars(positions []domain.Position, hold domain.HoldMode) []domain.Position {
	k, ok := hold.Bars()
	if !ok || k <= 0 {
		return append([]domain.Position(nil), positions...)
	}

	return fold(positions, holdBarsState{}, func(s holdBarsState, _ int, desired domain.Position) (holdBarsState, domain.Position) {
		return s.step(desired, k)
	})
}

// minHoldState is the carried state of the minimum-hold guard.
type minHoldState struct {
	accepted        domain.Position // position currently in force
	barsSinceChange int             // bars since the last accepted change
}

func (s minHoldState) step(i int, desired domain.Position, minHold int) (minHoldState, domain.Position) {
	if i == 0 {
		return minHoldState{accepted: desired}, desired
	}
	if desired != s.accepted {
		if s.barsSinceChange < minHold {
			return minHoldState{accepted: s.accepted, barsSinceChange: s.barsSinceChange + 1}, s.accepted
		}
		return minHoldState{accepted: desired}, desired
	}
	return minHoldState{accepted: s.accepted, barsSinceChange: s.barsSinceChange + 1}, s.accepted
}

// ApplyMinHold enforces at least minHold bars between accepted position
// changes. The first bar is always accepted. minHold < 1 is treated as 1.
func ApplyMinHold(positions []domain.Position, minHold int) []domain.Position {
	minHold = normalizeMinHold(minHold)

	return fold(positions, minHoldState{}, func(s minHoldState, i int, desired domain.Position) (minHoldState, domain.Position) {
		return s.step(i, desired, minHold)
	})
}

func normalizeMinHold(minHold int) int {
	if minHold < 1 {
		return 1
	}
	return minHold
}
