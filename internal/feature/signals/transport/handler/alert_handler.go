// Package handler provides the HTTP handlers for the signals feature.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"crossmarket_backend/internal/feature/signals/domain/entity"
	"crossmarket_backend/internal/feature/signals/transport/http/dto"
)

const defaultAlertLimit = 20

// AlertsUsecase defines the alert operations the handler needs.
// Following Go convention: interfaces are defined by the consumer (handler).
type AlertsUsecase interface {
	ListRecent(ctx context.Context, limit int) ([]entity.CombinedAlert, error)
}

// AlertHandler handles HTTP requests for combined alerts.
type AlertHandler struct {
	uc AlertsUsecase
}

// NewAlertHandler creates a new AlertHandler with the given usecase.
func NewAlertHandler(uc AlertsUsecase) *AlertHandler {
	return &AlertHandler{uc: uc}
}

// List returns the most recent combined alerts, newest first.
//
// Example endpoint:
// GET /alerts?limit=20
func (h *AlertHandler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultAlertLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	alerts, err := h.uc.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]dto.AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, dto.AlertResponse{
			ID:         a.ID,
			Components: a.Components,
			Direction:  a.Direction,
			Severity:   a.Severity,
			Confidence: a.Confidence,
			Forecasts:  a.Forecasts,
			CreatedAt:  a.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, out)
}
