// Package handler provides the HTTP handlers for the patterns feature.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"crossmarket_backend/internal/feature/patterns/domain/entity"
	"crossmarket_backend/internal/feature/patterns/transport/http/dto"
)

// PatternsUsecase defines the catalog operations the handler needs.
// Following Go convention: interfaces are defined by the consumer (handler).
type PatternsUsecase interface {
	GetActive(ctx context.Context, minAccuracy float64) ([]entity.CorrelationPattern, error)
}

// PatternHandler handles HTTP requests for the pattern catalog.
type PatternHandler struct {
	uc PatternsUsecase
}

// NewPatternHandler creates a new PatternHandler with the given usecase.
func NewPatternHandler(uc PatternsUsecase) *PatternHandler {
	return &PatternHandler{uc: uc}
}

// List returns admitted patterns at or above a minimum rolling accuracy.
//
// Example endpoint:
// GET /patterns?min_accuracy=60
func (h *PatternHandler) List(c *gin.Context) {
	minAccuracy, err := strconv.ParseFloat(c.DefaultQuery("min_accuracy", "0"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min_accuracy must be a number"})
		return
	}

	patterns, err := h.uc.GetActive(c.Request.Context(), minAccuracy)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]dto.PatternResponse, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, dto.PatternResponse{
			DriverSymbol: p.DriverSymbol,
			TargetSymbol: p.TargetSymbol,
			Coefficient:  p.Coefficient,
			SampleSize:   p.SampleSize,
			AccuracyRate: p.AccuracyRate,
			LastUpdated:  p.LastUpdated.UTC().Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, out)
}
