// Package entity defines the domain models for the alignment feature.
package entity

import "time"

// AlignedWindow pairs one driver off-session window with the target session it
// precedes. The window spans from the last driver observation at or before the
// target market's previous close to the first observation at or after the
// session open.
type AlignedWindow struct {
	DriverSymbol  string
	TargetSymbol  string
	WindowStart   time.Time
	WindowEnd     time.Time
	SessionDate   time.Time
	DriverMovePct float64 // Driver move over the window, percent
	TargetMovePct float64 // Target session move vs prior close, percent
}
