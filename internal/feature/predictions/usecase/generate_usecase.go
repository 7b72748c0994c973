// Package usecase implements prediction generation and the validation state
// machine.
package usecase

import (
	"context"
	"math"
	"sort"
	"time"

	patternentity "crossmarket_backend/internal/feature/patterns/domain/entity"
	"crossmarket_backend/internal/feature/predictions/domain/entity"
)

// ValidationStats is the aggregate accuracy over validated predictions.
type ValidationStats struct {
	Validated   int64
	Correct     int64
	AvgAccuracy float64 // mean per-ticker accuracy, 0..100
}

// PredictionRepository abstracts durable prediction storage.
// Following Go convention: interfaces are defined by the consumer (usecase).
type PredictionRepository interface {
	// ReplaceActiveSet atomically supersedes the current pending set: the new
	// predictions are written under a fresh generation and the current
	// generation pointer flips in the same transaction, so readers never see
	// an empty or partially populated set.
	ReplaceActiveSet(ctx context.Context, preds []entity.Prediction) error
	// ListPending returns pending predictions of the current generation,
	// newest first.
	ListPending(ctx context.Context) ([]entity.Prediction, error)
	// ListPendingAll returns pending predictions across all generations, for
	// the validation sweep.
	ListPendingAll(ctx context.Context) ([]entity.Prediction, error)
	FindByID(ctx context.Context, id uint) (entity.Prediction, error)
	// MarkValidated transitions a pending prediction to validated. Returns
	// ErrNotPending when the prediction is already terminal.
	MarkValidated(ctx context.Context, id uint, actual float64, directionCorrect bool, tickerAccuracy *float64) (entity.Prediction, error)
	// MarkExpired transitions pending predictions created before the cutoff
	// to expired and reports how many were affected.
	MarkExpired(ctx context.Context, olderThan time.Time) (int64, error)
	ListValidated(ctx context.Context, limit int) ([]entity.Prediction, error)
	Stats(ctx context.Context, since time.Time) (ValidationStats, error)
	// PruneStaleGenerations garbage-collects terminal predictions from
	// superseded generations.
	PruneStaleGenerations(ctx context.Context) (int64, error)
}

// GenerateUsecase turns a fresh driver move into directional predictions using
// the admitted pattern catalog. It never mutates the catalog.
type GenerateUsecase struct {
	repo PredictionRepository
}

// NewGenerateUsecase creates a new GenerateUsecase.
func NewGenerateUsecase(repo PredictionRepository) *GenerateUsecase {
	return &GenerateUsecase{repo: repo}
}

// Generate builds one prediction from a driver move and the active patterns
// whose driver matches. The result is not yet persisted; callers collect the
// predictions of a run and store them with ReplaceActiveSet.
func (gu *GenerateUsecase) Generate(driverSymbol string, driverMovePct float64, targetSessionDate time.Time, active []patternentity.CorrelationPattern) entity.Prediction {
	direction := entity.BucketDirection(driverMovePct)

	var forecasts []entity.TickerForecast
	var patternID *uint
	var bestAbs float64
	for _, p := range active {
		if p.DriverSymbol != driverSymbol {
			continue
		}
		predicted := driverMovePct * p.Coefficient
		forecasts = append(forecasts, entity.TickerForecast{
			Ticker:             p.TargetSymbol,
			PredictedChangePct: predicted,
			CorrelationScore:   p.Coefficient,
			Recommendation:     entity.RecommendFor(predicted, p.Coefficient),
		})
		if abs := math.Abs(p.Coefficient); patternID == nil || abs > bestAbs {
			id := p.ID
			patternID = &id
			bestAbs = abs
		}
	}
	sort.SliceStable(forecasts, func(i, j int) bool {
		return forecasts[i].CorrelationScore > forecasts[j].CorrelationScore
	})

	return entity.Prediction{
		PatternID:          patternID,
		DriverSymbol:       driverSymbol,
		DriverMovePct:      driverMovePct,
		PredictedDirection: direction,
		Confidence:         direction.BaseConfidence(),
		Forecasts:          forecasts,
		TargetSessionDate:  targetSessionDate,
		Status:             entity.PredictionPending,
		CreatedAt:          time.Now().UTC(),
	}
}

// ReplaceActiveSet persists a run's predictions as the new active set.
func (gu *GenerateUsecase) ReplaceActiveSet(ctx context.Context, preds []entity.Prediction) error {
	return gu.repo.ReplaceActiveSet(ctx, preds)
}

// ListPending returns the current active pending set.
func (gu *GenerateUsecase) ListPending(ctx context.Context) ([]entity.Prediction, error) {
	return gu.repo.ListPending(ctx)
}
