// Package domain defines domain-level errors for the patterns feature.
package domain

import "errors"

// Domain errors for pattern catalog operations. Invariant violations indicate
// a bug in the caller and must be surfaced, never silently swallowed.
var (
	// ErrNotAdmissible indicates an attempt to admit a pattern that fails the
	// admission thresholds. This is an invariant violation, not a data problem.
	ErrNotAdmissible = errors.New("pattern does not meet admission thresholds")

	// ErrPatternNotFound indicates no pattern exists with the given criteria.
	ErrPatternNotFound = errors.New("pattern not found")
)
