package domain

// Bar represents one stored bar of a signal series.
// Corresponds to bars table in ClickHouse.
type Bar struct {
	SeriesID       string  // series identifier (asset/timeframe/model)
	TimestampMs    int64   // Unix timestamp in milliseconds
	Price          float64 // price used for returns (close)
	Signal         float64 // raw model signal
	SignalIntegral bool    // signal was produced as an integer {-1,0,1}
}

// EquityPoint represents one per-bar row of a backtest run.
// Corresponds to equity_curve table in ClickHouse.
type EquityPoint struct {
	RunID       string   `json:"run_id"`     // run identifier
	BarIndex    int      `json:"bar_index"`  // 0-based index in the sorted series
	TimestampMs int64    `json:"ts"`         // bar timestamp (ms)
	Position    Position `json:"position"`   // committed position at this bar
	NetReturn   float64  `json:"net_return"` // net return after costs
	Equity      float64  `json:"equity"`     // cumulative equity
}

// Default column names used when none are configured.
const (
	DefaultTimeColumn   = "time"
	DefaultPriceColumn  = "close"
	DefaultSignalColumn = "signal"
)
