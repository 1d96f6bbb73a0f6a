package reporting

import (
	"fmt"
	"os"
	"path/filepath"
)

// Output file names written by WriteFiles.
const (
	EquityFile = "equity.csv"
	RunsFile   = "runs.csv"
	ReportFile = "report.md"
)

// WriteFiles renders the report into dir, creating it if needed, and
// returns the written paths.
func WriteFiles(dir string, r *Report) ([]string, error) {
	if r == nil || r.Run == nil {
		return nil, fmt.Errorf("nil report")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	outputs := []struct {
		name    string
		content string
	}{
		{EquityFile, RenderCSV(r.Equity)},
		{RunsFile, RenderRunsCSV(r.SeriesRuns)},
		{ReportFile, RenderMarkdown(r)},
	}

	paths := make([]string, 0, len(outputs))
	for _, out := range outputs {
		path := filepath.Join(dir, out.name)
		if err := os.WriteFile(path, []byte(out.content), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", out.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
