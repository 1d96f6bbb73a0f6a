package idhash

import (
	"crypto/sha256"
	"fmt"
	"strconv"

	"github.com/mr-tron/base58"

	"quantbrain/internal/domain"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(series_id|price_col|signal_col|fee|slip|hold|min_hold|equity0|bar_count|first_ts|last_ts)
// Returns base58-encoded hash.
func ComputeRunID(
	seriesID string,
	cfg domain.BacktestConfig,
	barCount int,
	firstTsMs int64,
	lastTsMs int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d|%s|%d|%d|%d",
		seriesID,
		cfg.PriceColumn,
		cfg.SignalColumn,
		formatFloat(cfg.FeeBps),
		formatFloat(cfg.SlippageBps),
		cfg.Hold.String(),
		cfg.MinHoldBars,
		formatFloat(cfg.Equity0),
		barCount,
		firstTsMs,
		lastTsMs,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
