package reporting

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"quantbrain/internal/domain"
)

// RenderCSV renders the equity curve as CSV string.
// Returns and equity keep full float64 precision.
func RenderCSV(rows []EquityRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("bar,time,position,net_return,equity\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%d,%s,%d,%s,%s\n",
			r.BarIndex,
			formatTime(r.TimestampMs),
			int(r.Position),
			formatFloat(r.NetReturn),
			formatFloat(r.Equity),
		))
	}

	return sb.String()
}

// RenderRunsCSV renders run summaries as CSV string.
func RenderRunsCSV(runs []*domain.RunRecord) string {
	var sb strings.Builder

	sb.WriteString("run_id,series_id,hold,min_hold_bars,fee_bps,slippage_bps,")
	sb.WriteString("bars,trades,final_equity,total_return,sharpe,max_drawdown,exposure\n")

	for _, r := range runs {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%d,%s,%s,%d,%d,%.6f,%.6f,%.6f,%.6f,%.6f\n",
			r.RunID,
			r.SeriesID,
			r.Config.Hold.String(),
			r.Config.MinHoldBars,
			formatFloat(r.Config.FeeBps),
			formatFloat(r.Config.SlippageBps),
			r.Summary.Bars,
			r.Summary.Trades,
			r.Summary.FinalEquity,
			r.Summary.TotalReturn,
			r.Summary.Sharpe,
			r.Summary.MaxDrawdown,
			r.Summary.Exposure,
		))
	}

	return sb.String()
}

func formatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
