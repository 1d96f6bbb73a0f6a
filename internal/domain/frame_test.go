package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_SortedByTimeIsStable(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)
	t2 := t1.Add(time.Minute)

	f := NewFrame([]time.Time{t2, t0, t1, t0, t2})
	f.SetColumn("close", []float64{5, 1, 3, 2, 6}, false)
	f.SetColumn("signal", []float64{1, -1, 0, 1, -1}, true)

	sorted := f.SortedByTime()

	assert.Equal(t, []time.Time{t0, t0, t1, t2, t2}, sorted.Timestamps)
	price, ok := sorted.Column("close")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2, 3, 5, 6}, price.Values)
	signal, _ := sorted.Column("signal")
	assert.Equal(t, []float64{-1, 1, 0, 1, -1}, signal.Values)
	assert.True(t, signal.Integral)

	// original untouched
	orig, _ := f.Column("close")
	assert.Equal(t, []float64{5, 1, 3, 2, 6}, orig.Values)
}

func TestFrame_BarsRoundTrip(t *testing.T) {
	t0 := time.UnixMilli(1704067200000).UTC()
	f := NewFrame([]time.Time{t0, t0.Add(time.Hour)})
	f.SetColumn("px", []float64{10, 11}, false)
	f.SetColumn("sig", []float64{1, 0}, true)

	bars, ok := f.Bars("BTC-1h", "px", "sig")
	require.True(t, ok)
	require.Len(t, bars, 2)
	assert.Equal(t, "BTC-1h", bars[0].SeriesID)
	assert.Equal(t, int64(1704067200000), bars[0].TimestampMs)
	assert.True(t, bars[1].SignalIntegral)

	back := FrameFromBars(bars, "close", "signal")
	assert.Equal(t, f.Timestamps, back.Timestamps)
	sig, _ := back.Column("signal")
	assert.True(t, sig.Integral)
	assert.Equal(t, []float64{1, 0}, sig.Values)

	_, ok = f.Bars("BTC-1h", "close", "sig")
	assert.False(t, ok)
}

func TestFrameFromBars_MixedIntegral(t *testing.T) {
	bars := []*Bar{
		{TimestampMs: 1, Signal: 1, SignalIntegral: true},
		{TimestampMs: 2, Signal: 0.5, SignalIntegral: false},
	}
	f := FrameFromBars(bars, "close", "signal")
	sig, _ := f.Column("signal")
	assert.False(t, sig.Integral)

	empty := FrameFromBars(nil, "close", "signal")
	assert.Equal(t, 0, empty.Len())
}
