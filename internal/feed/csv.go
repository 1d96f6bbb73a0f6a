// Package feed loads bar data into frames: CSV files via gota dataframes and
// live bar streams over WebSocket.
package feed

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"quantbrain/internal/backtest"
	"quantbrain/internal/domain"
)

// nanValues are CSV cells read as missing.
var nanValues = []string{"", "NA", "NaN", "nan", "null", "<nil>"}

// timeLayouts are tried in order for non-numeric timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// epochMsCutoff separates epoch seconds from epoch milliseconds.
const epochMsCutoff = 1e12

// LoadCSVFile opens path and loads it with LoadCSV.
func LoadCSVFile(path, timeColumn string) (*domain.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	frame, err := LoadCSV(f, timeColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return frame, nil
}

// LoadCSV reads a headered CSV into a Frame indexed by timeColumn.
// UTF-8 and UTF-16 byte order marks are honored. Numeric columns become
// frame columns; a column whose every value parses as an integer is marked
// integral. Text columns other than the time column are dropped.
func LoadCSV(r io.Reader, timeColumn string) (*domain.Frame, error) {
	if timeColumn == "" {
		timeColumn = domain.DefaultTimeColumn
	}

	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	df := dataframe.ReadCSV(decoded,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.NaNValues(nanValues),
		dataframe.WithTypes(map[string]series.Type{timeColumn: series.String}),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("read csv: %w", df.Err)
	}

	if !hasColumn(df.Names(), timeColumn) {
		return nil, fmt.Errorf("%w: time column %q not found", backtest.ErrInvalidIndex, timeColumn)
	}

	timeCol := df.Col(timeColumn)
	timestamps := make([]time.Time, 0, timeCol.Len())
	for i, raw := range timeCol.Records() {
		ts, err := parseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", backtest.ErrInvalidIndex, i+1, err)
		}
		timestamps = append(timestamps, ts)
	}

	frame := domain.NewFrame(timestamps)
	for _, name := range df.Names() {
		if name == timeColumn {
			continue
		}
		col := df.Col(name)
		if df.Nrow() == 0 {
			frame.SetColumn(name, []float64{}, false)
			continue
		}
		switch col.Type() {
		case series.Int:
			frame.SetColumn(name, col.Float(), true)
		case series.Float, series.Bool:
			frame.SetColumn(name, col.Float(), false)
		case series.String:
			// "NA"-style markers defeat type detection
			if values, ok := numericFromText(col); ok {
				frame.SetColumn(name, values, false)
			}
		}
	}

	return frame, nil
}

// parseTimestamp accepts epoch seconds, epoch milliseconds or one of timeLayouts.
// Values without a zone are read as UTC.
func parseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if isNaNMarker(s) || strings.EqualFold(s, "nan") {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if math.Abs(float64(n)) >= epochMsCutoff {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// numericFromText converts a text column whose non-missing cells are all
// numbers. Missing cells become NaN.
func numericFromText(col series.Series) ([]float64, bool) {
	values := make([]float64, col.Len())
	for i := range values {
		elem := col.Elem(i)
		if elem.IsNA() || isNaNMarker(elem.String()) {
			values[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(elem.String()), 64)
		if err != nil {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

func isNaNMarker(s string) bool {
	s = strings.TrimSpace(s)
	for _, m := range nanValues {
		if s == m {
			return true
		}
	}
	return false
}

func hasColumn(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
