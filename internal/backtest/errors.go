package backtest

import (
	"errors"
	"fmt"
)

// Configuration errors abort a run before any stage executes.
var (
	ErrConfiguration = errors.New("backtest configuration error")

	// ErrMissingColumn is returned when the price or signal column is absent.
	ErrMissingColumn = fmt.Errorf("%w: missing column", ErrConfiguration)

	// ErrInvalidIndex is returned when the frame has no usable time index.
	ErrInvalidIndex = fmt.Errorf("%w: index is not chronological", ErrConfiguration)
)

// ErrParameter is returned for out-of-range numeric parameters.
var ErrParameter = errors.New("backtest parameter error")
