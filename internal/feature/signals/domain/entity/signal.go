// Package entity defines the domain models for the signals feature.
package entity

import "time"

// Signal is the common shape every detector emits, so the aggregator is
// detector-count-agnostic rather than hardwired to specific sources.
type Signal struct {
	Kind       string // detector identifier, e.g. "cross_market", "driver_spike"
	Direction  int    // +1 up-leaning, -1 down-leaning, 0 no lean
	Confidence float64
	Tickers    []TickerSignal
}

// TickerSignal is one affected ticker inside a signal.
type TickerSignal struct {
	Ticker              string  `json:"ticker"`
	PredictedChangePct  float64 `json:"predicted_change_pct"`
	CorrelationStrength float64 `json:"correlation_strength"`
}

// Severity labels for combined alerts.
const (
	SeverityHigh     = "high"
	SeverityElevated = "elevated"
	SeverityModerate = "moderate"
)

// CombinedAlert is the composite produced when independent detectors agree in
// direction. Alerts are read-only once created.
type CombinedAlert struct {
	ID         uint
	Components []string // kinds of the contributing signals
	Direction  int
	Severity   string
	Confidence float64
	Forecasts  []TickerSignal
	CreatedAt  time.Time
}
