package dto

import (
	patterndto "crossmarket_backend/internal/feature/patterns/transport/http/dto"
	predictiondto "crossmarket_backend/internal/feature/predictions/transport/http/dto"
	signaldto "crossmarket_backend/internal/feature/signals/transport/http/dto"
)

// JobRunResponse is the response DTO for one batch run record.
type JobRunResponse struct {
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	Error      string  `json:"error,omitempty"`
	StartedAt  string  `json:"started_at"`
	FinishedAt *string `json:"finished_at,omitempty"`
}

// DashboardResponse is the aggregate read model for the dashboard endpoint.
type DashboardResponse struct {
	ActivePatterns []patterndto.PatternResponse       `json:"active_patterns"`
	Pending        []predictiondto.PredictionResponse `json:"pending_predictions"`
	RecentAlerts   []signaldto.AlertResponse          `json:"recent_alerts"`
	Validated      int64                              `json:"validated"`
	Correct        int64                              `json:"correct"`
	AvgAccuracy    float64                            `json:"avg_accuracy"`
	LastRun        *JobRunResponse                    `json:"last_run,omitempty"`
}
