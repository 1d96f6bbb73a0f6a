package storage

import "errors"

// Errors shared by every BarStore, RunStore and EquityStore implementation.
var (
	// ErrNotFound is returned when a run, or the bars of a series, do not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a bar (series_id, timestamp), a run_id
	// or an equity curve is already stored. Stores are append-only.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned for nil records or missing key fields.
	ErrInvalidInput = errors.New("invalid input")
)
