// Package router assembles the HTTP routing table.
package router

import (
	"github.com/gin-gonic/gin"

	detectionhandler "crossmarket_backend/internal/feature/detection/transport/handler"
	patternhandler "crossmarket_backend/internal/feature/patterns/transport/handler"
	predictionhandler "crossmarket_backend/internal/feature/predictions/transport/handler"
	signalhandler "crossmarket_backend/internal/feature/signals/transport/handler"
	"crossmarket_backend/internal/platform/http/handler"
)

// NewRouter wires every endpoint of the query surface. All routes are
// read-only except /detect, which only schedules a batch.
func NewRouter(detection *detectionhandler.DetectionHandler,
	patterns *patternhandler.PatternHandler,
	predictions *predictionhandler.PredictionHandler,
	alerts *signalhandler.AlertHandler) *gin.Engine {
	r := gin.Default()

	// Liveness probe
	r.GET("/healthz", handler.Health)

	// Batch trigger; responds 202 and runs in the background
	r.POST("/detect", detection.Trigger)

	// Read-only query surface over last-known persisted state
	r.GET("/patterns", patterns.List)
	r.GET("/predictions/pending", predictions.Pending)
	r.GET("/predictions/history", predictions.History)
	r.GET("/alerts", alerts.List)
	r.GET("/dashboard", detection.Dashboard)

	return r
}
