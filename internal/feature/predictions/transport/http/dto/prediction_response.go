package dto

import "crossmarket_backend/internal/feature/predictions/domain/entity"

// PredictionResponse is the response DTO for one prediction.
type PredictionResponse struct {
	ID                 uint                    `json:"id"`
	DriverSymbol       string                  `json:"driver_symbol"`
	DriverMovePct      float64                 `json:"driver_move_pct"`
	PredictedDirection string                  `json:"predicted_direction"`
	Confidence         float64                 `json:"confidence"`
	Forecasts          []entity.TickerForecast `json:"forecasts"`
	TargetSessionDate  string                  `json:"target_session_date"`
	Status             string                  `json:"status"`
	ActualOutcome      *float64                `json:"actual_outcome,omitempty"`
	DirectionCorrect   *bool                   `json:"direction_correct,omitempty"`
	TickerAccuracy     *float64                `json:"ticker_accuracy,omitempty"`
	CreatedAt          string                  `json:"created_at"`
}

// HistoryResponse wraps validated predictions with their aggregate accuracy.
type HistoryResponse struct {
	Predictions []PredictionResponse `json:"predictions"`
	Validated   int64                `json:"validated"`
	Correct     int64                `json:"correct"`
	AvgAccuracy float64              `json:"avg_accuracy"`
}
