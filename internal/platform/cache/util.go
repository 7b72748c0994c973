package cache

import (
	"time"
)

// TimeUntilNextClose returns the duration until the next 16:00 US Eastern,
// the target-market close. Pattern accuracies only move around session
// boundaries, so cache entries are kept at most that long.
func TimeUntilNextClose() time.Duration {
	loc, _ := time.LoadLocation("America/New_York")
	now := time.Now().In(loc)

	next := time.Date(now.Year(), now.Month(), now.Day(), 16, 0, 0, 0, loc)
	if now.After(next) {
		next = next.Add(24 * time.Hour)
	}

	return next.Sub(now)
}
