// Package handler provides the HTTP handlers for the predictions feature.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"crossmarket_backend/internal/feature/predictions/domain/entity"
	"crossmarket_backend/internal/feature/predictions/transport/http/dto"
	"crossmarket_backend/internal/feature/predictions/usecase"
)

const defaultHistoryLimit = 50

// PendingLister lists the current active pending predictions.
// Following Go convention: interfaces are defined by the consumer (handler).
type PendingLister interface {
	ListPending(ctx context.Context) ([]entity.Prediction, error)
}

// HistoryReader returns validated predictions with aggregate accuracy.
type HistoryReader interface {
	History(ctx context.Context, limit int) ([]entity.Prediction, usecase.ValidationStats, error)
}

// PredictionHandler handles HTTP requests for predictions.
type PredictionHandler struct {
	pending PendingLister
	history HistoryReader
}

// NewPredictionHandler creates a new PredictionHandler.
func NewPredictionHandler(pending PendingLister, history HistoryReader) *PredictionHandler {
	return &PredictionHandler{pending: pending, history: history}
}

// Pending returns the current active pending prediction set.
//
// Example endpoint:
// GET /predictions/pending
func (h *PredictionHandler) Pending(c *gin.Context) {
	preds, err := h.pending.ListPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toResponses(preds))
}

// History returns recent validated predictions with aggregate accuracy.
//
// Example endpoint:
// GET /predictions/history?limit=50
func (h *PredictionHandler) History(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	preds, stats, err := h.history.History(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.HistoryResponse{
		Predictions: toResponses(preds),
		Validated:   stats.Validated,
		Correct:     stats.Correct,
		AvgAccuracy: stats.AvgAccuracy,
	})
}

func toResponses(preds []entity.Prediction) []dto.PredictionResponse {
	out := make([]dto.PredictionResponse, 0, len(preds))
	for _, p := range preds {
		out = append(out, dto.PredictionResponse{
			ID:                 p.ID,
			DriverSymbol:       p.DriverSymbol,
			DriverMovePct:      p.DriverMovePct,
			PredictedDirection: string(p.PredictedDirection),
			Confidence:         p.Confidence,
			Forecasts:          p.Forecasts,
			TargetSessionDate:  p.TargetSessionDate.UTC().Format("2006-01-02"),
			Status:             string(p.Status),
			ActualOutcome:      p.ActualOutcome,
			DirectionCorrect:   p.DirectionCorrect,
			TickerAccuracy:     p.TickerAccuracy,
			CreatedAt:          p.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}
