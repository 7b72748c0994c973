package dto

import "crossmarket_backend/internal/feature/signals/domain/entity"

// AlertResponse is the response DTO for one combined alert.
type AlertResponse struct {
	ID         uint                  `json:"id"`
	Components []string              `json:"components"`
	Direction  int                   `json:"direction"`
	Severity   string                `json:"severity"`
	Confidence float64               `json:"confidence"`
	Forecasts  []entity.TickerSignal `json:"forecasts"`
	CreatedAt  string                `json:"created_at"`
}
