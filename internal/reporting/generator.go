package reporting

import (
	"context"
	"fmt"
	"time"

	"quantbrain/internal/storage"
)

// Generator produces reports from stored runs.
type Generator struct {
	runStore    storage.RunStore
	equityStore storage.EquityStore
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. equityStore may be nil, in
// which case reports carry no equity rows.
func NewGenerator(runStore storage.RunStore, equityStore storage.EquityStore) *Generator {
	return &Generator{
		runStore:    runStore,
		equityStore: equityStore,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads a run, its equity curve and its sibling runs.
// Returns storage.ErrNotFound if the run does not exist.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	report := &Report{
		GeneratedAt: g.now(),
		Run:         run,
	}

	if g.equityStore != nil {
		points, err := g.equityStore.GetByRunID(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("load equity curve %s: %w", runID, err)
		}
		report.Equity = rowsFromPoints(points)
	}

	siblings, err := g.runStore.GetBySeries(ctx, run.SeriesID)
	if err != nil {
		return nil, fmt.Errorf("load runs of series %s: %w", run.SeriesID, err)
	}
	report.SeriesRuns = siblings

	return report, nil
}
