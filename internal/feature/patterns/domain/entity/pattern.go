// Package entity defines the domain models for the patterns feature.
package entity

import "time"

// PatternStatus is the admission state of a correlation pattern.
type PatternStatus string

const (
	// PatternAdmitted marks a pattern trusted for prediction.
	PatternAdmitted PatternStatus = "admitted"
	// PatternRejected marks an observed pattern that failed admission.
	PatternRejected PatternStatus = "rejected"
)

// CorrelationPattern is one tracked (driver, target) relationship.
// AccuracyRate is a rolling hit rate in [0,100] and is the only field the
// validation path may mutate after admission.
type CorrelationPattern struct {
	ID           uint
	DriverSymbol string
	TargetSymbol string
	Coefficient  float64 // Pearson coefficient in [-1,1]
	SampleSize   int
	AccuracyRate float64 // 0..100
	Status       PatternStatus
	LastUpdated  time.Time
}
