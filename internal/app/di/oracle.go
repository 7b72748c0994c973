package di

import (
	"context"
	"log/slog"
	"os"

	"crossmarket_backend/internal/feature/patterns/adapters/gemini"
	patternusecase "crossmarket_backend/internal/feature/patterns/usecase"
)

// NewSignificanceOracle creates the Gemini significance oracle, or returns nil
// when credentials are not configured. A nil oracle means admission decisions
// stay purely statistical.
func NewSignificanceOracle(ctx context.Context) patternusecase.SignificanceOracle {
	if os.Getenv("GOOGLE_CLOUD_PROJECT") == "" {
		slog.Info("significance oracle disabled: GOOGLE_CLOUD_PROJECT not set")
		return nil
	}
	oracle, err := gemini.NewGeminiOracle(ctx)
	if err != nil {
		slog.Warn("significance oracle unavailable, running statistical-only", "error", err)
		return nil
	}
	return oracle
}
