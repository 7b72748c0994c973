package usecase

import (
	"sort"

	pricesentity "crossmarket_backend/internal/feature/prices/domain/entity"
	"crossmarket_backend/internal/feature/signals/domain/entity"
)

const (
	// DefaultSpikeThresholdPct is the minimum absolute driver move that counts
	// as a spike.
	DefaultSpikeThresholdPct = 5.0
	// DefaultMinStreak is how many consecutive same-sign steps must confirm
	// the move's direction.
	DefaultMinStreak = 2

	spikeBaseConfidence = 0.5
	spikeMaxConfidence  = 0.9
)

// SpikeDetector is the event-driven detector: it flags abrupt driver moves
// confirmed by a directional streak, independently of any learned pattern.
type SpikeDetector struct {
	thresholdPct float64
	minStreak    int
}

// NewSpikeDetector creates a SpikeDetector. Zero values fall back to defaults.
func NewSpikeDetector(thresholdPct float64, minStreak int) *SpikeDetector {
	if thresholdPct <= 0 {
		thresholdPct = DefaultSpikeThresholdPct
	}
	if minStreak <= 0 {
		minStreak = DefaultMinStreak
	}
	return &SpikeDetector{thresholdPct: thresholdPct, minStreak: minStreak}
}

// Detect inspects a driver series and emits a signal when the overall move
// exceeds the threshold and the latest steps agree on direction. Returns nil
// when nothing noteworthy happened.
func (sd *SpikeDetector) Detect(prices []pricesentity.DriverPrice) *entity.Signal {
	if len(prices) < sd.minStreak+1 {
		return nil
	}
	sorted := make([]pricesentity.DriverPrice, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	first, last := sorted[0], sorted[len(sorted)-1]
	if first.Price == 0 {
		return nil
	}
	movePct := (last.Price - first.Price) / first.Price * 100

	direction := 0
	switch {
	case movePct >= sd.thresholdPct:
		direction = 1
	case movePct <= -sd.thresholdPct:
		direction = -1
	default:
		return nil
	}

	// The last steps must all lean the same way as the overall move; a spike
	// that is already reverting is not confirmed.
	for i := len(sorted) - sd.minStreak; i < len(sorted); i++ {
		step := sorted[i].Price - sorted[i-1].Price
		if step > 0 && direction < 0 || step < 0 && direction > 0 {
			return nil
		}
	}

	confidence := spikeBaseConfidence + abs(movePct)/20
	if confidence > spikeMaxConfidence {
		confidence = spikeMaxConfidence
	}

	return &entity.Signal{
		Kind:       "driver_spike",
		Direction:  direction,
		Confidence: confidence,
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
