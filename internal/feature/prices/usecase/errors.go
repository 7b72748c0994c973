package usecase

import "errors"

// Sentinel errors for price ingestion and lookup.
var (
	// ErrNoData indicates a feed returned an empty series for a symbol.
	// Callers skip the symbol and retry on the next run; values are never
	// fabricated to fill the gap.
	ErrNoData = errors.New("no price data available")
)
