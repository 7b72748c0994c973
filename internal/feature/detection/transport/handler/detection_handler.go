// Package handler provides the HTTP handlers for the detection feature.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crossmarket_backend/internal/feature/detection/domain/entity"
	"crossmarket_backend/internal/feature/detection/transport/http/dto"
	"crossmarket_backend/internal/feature/detection/usecase"
	patterndto "crossmarket_backend/internal/feature/patterns/transport/http/dto"
	predictiondto "crossmarket_backend/internal/feature/predictions/transport/http/dto"
	signaldto "crossmarket_backend/internal/feature/signals/transport/http/dto"
)

// runTimeout bounds a triggered batch so a wedged source cannot hold the
// run lock forever.
const runTimeout = 30 * time.Minute

// DetectionUsecase defines the batch operations the handler needs.
// Following Go convention: interfaces are defined by the consumer (handler).
type DetectionUsecase interface {
	Run(ctx context.Context) error
	BuildDashboard(ctx context.Context) (usecase.Dashboard, error)
}

// DetectionHandler handles HTTP requests for the detection batch.
type DetectionHandler struct {
	uc DetectionUsecase
}

// NewDetectionHandler creates a new DetectionHandler with the given usecase.
func NewDetectionHandler(uc DetectionUsecase) *DetectionHandler {
	return &DetectionHandler{uc: uc}
}

// Trigger starts a detection run in the background and returns immediately.
// The caller polls the dashboard for the outcome.
//
// Example endpoint:
// POST /detect
func (h *DetectionHandler) Trigger(c *gin.Context) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if err := h.uc.Run(ctx); err != nil {
			if errors.Is(err, usecase.ErrRunInProgress) {
				slog.Info("detection trigger ignored, run already in progress")
				return
			}
			slog.Error("triggered detection run failed", "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Dashboard returns the aggregate read model: active patterns, the pending
// prediction set, recent alerts, validation accuracy and the last run.
//
// Example endpoint:
// GET /dashboard
func (h *DetectionHandler) Dashboard(c *gin.Context) {
	d, err := h.uc.BuildDashboard(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := dto.DashboardResponse{
		ActivePatterns: make([]patterndto.PatternResponse, 0, len(d.ActivePatterns)),
		Pending:        make([]predictiondto.PredictionResponse, 0, len(d.Pending)),
		RecentAlerts:   make([]signaldto.AlertResponse, 0, len(d.RecentAlerts)),
		Validated:      d.Stats.Validated,
		Correct:        d.Stats.Correct,
		AvgAccuracy:    d.Stats.AvgAccuracy,
		LastRun:        toJobRunResponse(d.LastRun),
	}
	for _, p := range d.ActivePatterns {
		out.ActivePatterns = append(out.ActivePatterns, patterndto.PatternResponse{
			DriverSymbol: p.DriverSymbol,
			TargetSymbol: p.TargetSymbol,
			Coefficient:  p.Coefficient,
			SampleSize:   p.SampleSize,
			AccuracyRate: p.AccuracyRate,
			LastUpdated:  p.LastUpdated.UTC().Format(time.RFC3339),
		})
	}
	for _, p := range d.Pending {
		out.Pending = append(out.Pending, predictiondto.PredictionResponse{
			ID:                 p.ID,
			DriverSymbol:       p.DriverSymbol,
			DriverMovePct:      p.DriverMovePct,
			PredictedDirection: string(p.PredictedDirection),
			Confidence:         p.Confidence,
			Forecasts:          p.Forecasts,
			TargetSessionDate:  p.TargetSessionDate.UTC().Format("2006-01-02"),
			Status:             string(p.Status),
			CreatedAt:          p.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	for _, a := range d.RecentAlerts {
		out.RecentAlerts = append(out.RecentAlerts, signaldto.AlertResponse{
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

func toJobRunResponse(r *entity.JobRun) *dto.JobRunResponse {
	if r == nil {
		return nil
	}
	out := &dto.JobRunResponse{
		Name:      r.Name,
		Status:    string(r.Status),
		Error:     r.Error,
		StartedAt: r.StartedAt.UTC().Format(time.RFC3339),
	}
	if r.FinishedAt != nil {
		s := r.FinishedAt.UTC().Format(time.RFC3339)
		out.FinishedAt = &s
	}
	return out
}
