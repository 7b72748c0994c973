// Package domain defines domain-level errors for the predictions feature.
package domain

import "errors"

// Domain errors for the prediction state machine.
var (
	// ErrNotPending indicates an attempt to validate a prediction that is
	// already in a terminal state. The attempt is rejected, not applied twice,
	// so pattern accuracy is never double-counted. This signals a caller bug
	// and must be surfaced, not swallowed.
	ErrNotPending = errors.New("prediction is not pending")

	// ErrPredictionNotFound indicates no prediction exists with the given id.
	ErrPredictionNotFound = errors.New("prediction not found")
)
