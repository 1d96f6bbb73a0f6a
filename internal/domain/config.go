package domain

// BacktestConfig represents the parameters of one backtest run.
type BacktestConfig struct {
	PriceColumn  string   `json:"price_column" yaml:"price_column"`   // price column name
	SignalColumn string   `json:"signal_column" yaml:"signal_column"` // signal column name
	FeeBps       float64  `json:"fee_bps" yaml:"fee_bps"`             // fee per position change (bps)
	SlippageBps  float64  `json:"slippage_bps" yaml:"slippage_bps"`   // slippage per position change (bps)
	Hold         HoldMode `json:"hold" yaml:"hold"`                   // none | threshold | bar count
	MinHoldBars  int      `json:"min_hold_bars" yaml:"min_hold_bars"` // minimum bars between accepted changes
	Equity0      float64  `json:"equity0" yaml:"equity0"`             // starting equity
}

// Default backtest parameters.
const (
	DefaultFeeBps      = 2.0
	DefaultSlippageBps = 0.0
	DefaultMinHoldBars = 1
	DefaultEquity0     = 1.0
)

// DefaultBacktestConfig returns the default configuration.
func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		PriceColumn:  DefaultPriceColumn,
		SignalColumn: DefaultSignalColumn,
		FeeBps:       DefaultFeeBps,
		SlippageBps:  DefaultSlippageBps,
		Hold:         HoldNone(),
		MinHoldBars:  DefaultMinHoldBars,
		Equity0:      DefaultEquity0,
	}
}

// Summary represents scalar performance metrics derived from a run.
type Summary struct {
	Bars           int     `json:"bars"`
	Trades         int     `json:"trades"`
	FinalEquity    float64 `json:"final_equity"`
	TotalReturn    float64 `json:"total_return"`     // final_equity / equity0 - 1
	Sharpe         float64 `json:"sharpe"`           // annualized mean/stddev of net returns
	MaxDrawdown    float64 `json:"max_drawdown"`     // worst peak-to-trough, fraction of peak
	Exposure       float64 `json:"exposure"`         // fraction of bars with a non-flat position
	PeriodsPerYear float64 `json:"periods_per_year"` // annualization factor used for Sharpe
}
