package reporting

import (
	"fmt"
	"strings"
	"time"
)

// maxChangeRows caps the position change table.
const maxChangeRows = 50

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	run := r.Run

	// Header
	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s` | Series: `%s`\n\n", run.RunID, run.SeriesID))
	if run.Summary.Bars > 0 {
		sb.WriteString(fmt.Sprintf("Period: %s to %s\n\n", formatTime(run.StartTime), formatTime(run.EndTime)))
	}

	// Configuration
	cfg := run.Config
	sb.WriteString("## Configuration\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Price Column | %s |\n", cfg.PriceColumn))
	sb.WriteString(fmt.Sprintf("| Signal Column | %s |\n", cfg.SignalColumn))
	sb.WriteString(fmt.Sprintf("| Fee (bps) | %s |\n", formatFloat(cfg.FeeBps)))
	sb.WriteString(fmt.Sprintf("| Slippage (bps) | %s |\n", formatFloat(cfg.SlippageBps)))
	sb.WriteString(fmt.Sprintf("| Hold | %s |\n", cfg.Hold.String()))
	sb.WriteString(fmt.Sprintf("| Min Hold Bars | %d |\n", cfg.MinHoldBars))
	sb.WriteString(fmt.Sprintf("| Starting Equity | %s |\n", formatFloat(cfg.Equity0)))
	sb.WriteString("\n")

	// Performance
	s := run.Summary
	sb.WriteString("## Performance\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Bars | %d |\n", s.Bars))
	sb.WriteString(fmt.Sprintf("| Position Changes | %d |\n", s.Trades))
	sb.WriteString(fmt.Sprintf("| Final Equity | %.6f |\n", s.FinalEquity))
	sb.WriteString(fmt.Sprintf("| Total Return | %.4f%% |\n", s.TotalReturn*100))
	sb.WriteString(fmt.Sprintf("| Sharpe (annualized) | %.4f |\n", s.Sharpe))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.4f%% |\n", s.MaxDrawdown*100))
	sb.WriteString(fmt.Sprintf("| Exposure | %.4f%% |\n", s.Exposure*100))
	sb.WriteString(fmt.Sprintf("| Periods / Year | %.1f |\n", s.PeriodsPerYear))
	sb.WriteString("\n")

	// Position changes
	sb.WriteString("## Position Changes\n\n")
	changes := r.PositionChanges()
	if len(changes) > 0 {
		sb.WriteString("| Bar | Time | From | To | Equity |\n")
		sb.WriteString("|-----|------|------|----|--------|\n")
		for i, c := range changes {
			if i == maxChangeRows {
				sb.WriteString(fmt.Sprintf("\n%d more changes omitted.\n", len(changes)-maxChangeRows))
				break
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %.6f |\n",
				c.BarIndex, formatTime(c.TimestampMs), c.From, c.To, c.Equity))
		}
	} else {
		sb.WriteString("No position changes.\n")
	}
	sb.WriteString("\n")

	// Series runs
	sb.WriteString("## Runs on This Series\n\n")
	if len(r.SeriesRuns) > 0 {
		sb.WriteString("| Run | Hold | Min Hold | Fee | Trades | Final Equity | Sharpe | MaxDD |\n")
		sb.WriteString("|-----|------|----------|-----|--------|--------------|--------|-------|\n")
		for _, other := range r.SeriesRuns {
			marker := ""
			if other.RunID == run.RunID {
				marker = " *"
			}
			sb.WriteString(fmt.Sprintf("| `%s`%s | %s | %d | %s | %d | %.6f | %.4f | %.4f |\n",
				other.RunID, marker, other.Config.Hold.String(), other.Config.MinHoldBars,
				formatFloat(other.Config.FeeBps), other.Summary.Trades,
				other.Summary.FinalEquity, other.Summary.Sharpe, other.Summary.MaxDrawdown))
		}
	} else {
		sb.WriteString("No runs recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
