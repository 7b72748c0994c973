// Package entity defines the domain models for the predictions feature.
package entity

import "time"

// Direction is the bucketed directional call for a driver move.
type Direction string

const (
	DirectionStrongDown   Direction = "strong_down"
	DirectionModerateDown Direction = "moderate_down"
	DirectionNeutral      Direction = "neutral"
	DirectionModerateUp   Direction = "moderate_up"
	DirectionStrongUp     Direction = "strong_up"
)

// Bucket thresholds in percent. The boundary value always belongs to the
// smaller-magnitude bucket: -5 is moderate_down, -2 and 2 are neutral,
// 5 is moderate_up.
const (
	StrongMovePct  = 5.0
	NeutralBandPct = 2.0
)

// BucketDirection maps a driver move percentage onto its direction bucket.
func BucketDirection(driverMovePct float64) Direction {
	switch {
	case driverMovePct < -StrongMovePct:
		return DirectionStrongDown
	case driverMovePct < -NeutralBandPct:
		return DirectionModerateDown
	case driverMovePct <= NeutralBandPct:
		return DirectionNeutral
	case driverMovePct <= StrongMovePct:
		return DirectionModerateUp
	default:
		return DirectionStrongUp
	}
}

// BaseConfidence is the bucket's confidence before any pattern-specific
// adjustment.
func (d Direction) BaseConfidence() float64 {
	switch d {
	case DirectionStrongDown, DirectionStrongUp:
		return 0.85
	case DirectionModerateDown, DirectionModerateUp:
		return 0.70
	default:
		return 0.50
	}
}

// ImpliedSign is the directional implication of the bucket: -1 down-leaning,
// +1 up-leaning, 0 neutral.
func (d Direction) ImpliedSign() int {
	switch d {
	case DirectionStrongDown, DirectionModerateDown:
		return -1
	case DirectionStrongUp, DirectionModerateUp:
		return 1
	default:
		return 0
	}
}

// Recommendation is a display label for one ticker forecast, never a trading
// instruction.
type Recommendation string

const (
	RecommendationWatch    Recommendation = "WATCH"
	RecommendationShort    Recommendation = "SHORT"
	RecommendationBuy      Recommendation = "BUY"
	RecommendationAvoid    Recommendation = "AVOID"
	RecommendationConsider Recommendation = "CONSIDER"
	RecommendationNeutral  Recommendation = "NEUTRAL"
)

// RecommendFor maps a forecast onto its display label. Rules are evaluated in
// order; the first match wins.
func RecommendFor(predictedChangePct, correlationScore float64) Recommendation {
	switch {
	case predictedChangePct > -1 && predictedChangePct < 1:
		return RecommendationWatch
	case predictedChangePct < -3 && correlationScore > 0.7:
		return RecommendationShort
	case predictedChangePct > 3 && correlationScore > 0.7:
		return RecommendationBuy
	case predictedChangePct < -2:
		return RecommendationAvoid
	case predictedChangePct > 2:
		return RecommendationConsider
	default:
		return RecommendationNeutral
	}
}

// TickerForecast is one per-ticker projection inside a prediction.
type TickerForecast struct {
	Ticker             string         `json:"ticker"`
	PredictedChangePct float64        `json:"predicted_change_pct"`
	CorrelationScore   float64        `json:"correlation_score"`
	Recommendation     Recommendation `json:"recommendation"`
}

// PredictionStatus is the lifecycle state of a prediction. pending is the only
// non-terminal state; validated and expired are terminal and a prediction
// transitions exactly once.
type PredictionStatus string

const (
	PredictionPending   PredictionStatus = "pending"
	PredictionValidated PredictionStatus = "validated"
	PredictionExpired   PredictionStatus = "expired"
)

// Prediction is one directional call derived from a fresh driver move.
type Prediction struct {
	ID                 uint
	PatternID          *uint // strongest contributing pattern, nil when none matched
	DriverSymbol       string
	DriverMovePct      float64
	PredictedDirection Direction
	Confidence         float64
	Forecasts          []TickerForecast
	TargetSessionDate  time.Time
	Status             PredictionStatus
	ActualOutcome      *float64 // realized target move pct, set on validation
	DirectionCorrect   *bool
	TickerAccuracy     *float64 // per-ticker hit rate 0..100; nil when no ticker had data
	Generation         int64
	CreatedAt          time.Time
	ValidatedAt        *time.Time
}
