// Package entity defines the domain models for the prices feature.
package entity

import "time"

// DriverPrice is a single observation of a continuously traded driver asset
// (e.g., "X:BTCUSD"). Rows are append-only per symbol; an observation is never
// rewritten once stored.
type DriverPrice struct {
	Symbol    string    // Driver ticker, continuous market
	Timestamp time.Time // Observation time (UTC)
	Price     float64   // Last traded price at Timestamp
}

// TargetSession is one trading session of a fixed-session target asset
// (e.g., "SPY"). PriorClose is the closing price of the previous session and
// is the baseline for the session move.
type TargetSession struct {
	Symbol      string
	SessionDate time.Time // Calendar day the session opened (midnight UTC)
	Open        float64
	Close       float64
	PriorClose  float64
}

// MovePct returns the session move relative to the prior close, in percent.
// Returns 0 when PriorClose is unknown rather than dividing by zero.
func (s TargetSession) MovePct() float64 {
	if s.PriorClose == 0 {
		return 0
	}
	return (s.Close - s.PriorClose) / s.PriorClose * 100
}
