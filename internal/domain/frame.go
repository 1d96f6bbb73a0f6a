package domain

import (
	"sort"
	"time"
)

// Column is one numeric column of a Frame.
type Column struct {
	Values   []float64
	Integral bool // every value was read as an integer
}

// Frame is a time-indexed table of bars: row i is described by Timestamps[i]
// and the i-th value of every column.
type Frame struct {
	Timestamps []time.Time
	Columns    map[string]Column
}

// NewFrame creates a frame indexed by the given timestamps.
func NewFrame(timestamps []time.Time) *Frame {
	return &Frame{
		Timestamps: timestamps,
		Columns:    make(map[string]Column),
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Timestamps)
}

// SetColumn adds or replaces a column.
func (f *Frame) SetColumn(name string, values []float64, integral bool) {
	if f.Columns == nil {
		f.Columns = make(map[string]Column)
	}
	f.Columns[name] = Column{Values: values, Integral: integral}
}

// Column returns the named column.
func (f *Frame) Column(name string) (Column, bool) {
	c, ok := f.Columns[name]
	return c, ok
}

// SortedByTime returns a copy of the frame sorted ascending by timestamp.
// The sort is stable: rows with equal timestamps keep their input order.
func (f *Frame) SortedByTime() *Frame {
	n := f.Len()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return f.Timestamps[idx[a]].Before(f.Timestamps[idx[b]])
	})

	out := NewFrame(make([]time.Time, n))
	for i, j := range idx {
		out.Timestamps[i] = f.Timestamps[j]
	}
	for name, col := range f.Columns {
		values := make([]float64, len(col.Values))
		for i, j := range idx {
			if j < len(col.Values) {
				values[i] = col.Values[j]
			}
		}
		out.Columns[name] = Column{Values: values, Integral: col.Integral}
	}
	return out
}

// FrameFromBars builds a frame from stored bars, placing price and signal
// under the given column names. The signal column is integral only if every
// bar's signal was.
func FrameFromBars(bars []*Bar, priceColumn, signalColumn string) *Frame {
	timestamps := make([]time.Time, len(bars))
	prices := make([]float64, len(bars))
	signals := make([]float64, len(bars))
	integral := len(bars) > 0

	for i, b := range bars {
		timestamps[i] = time.UnixMilli(b.TimestampMs).UTC()
		prices[i] = b.Price
		signals[i] = b.Signal
		integral = integral && b.SignalIntegral
	}

	f := NewFrame(timestamps)
	f.SetColumn(priceColumn, prices, false)
	f.SetColumn(signalColumn, signals, integral)
	return f
}

// Bars converts the frame into storable bars for a series.
// Returns false if either column is missing or misaligned with the index.
func (f *Frame) Bars(seriesID, priceColumn, signalColumn string) ([]*Bar, bool) {
	price, ok := f.Column(priceColumn)
	if !ok || len(price.Values) != f.Len() {
		return nil, false
	}
	signal, ok := f.Column(signalColumn)
	if !ok || len(signal.Values) != f.Len() {
		return nil, false
	}

	bars := make([]*Bar, 0, f.Len())
	for i, ts := range f.Timestamps {
		bars = append(bars, &Bar{
			SeriesID:       seriesID,
			TimestampMs:    ts.UnixMilli(),
			Price:          price.Values[i],
			Signal:         signal.Values[i],
			SignalIntegral: signal.Integral,
		})
	}
	return bars, true
}
