package usecase

import (
	"context"
	"time"

	"crossmarket_backend/internal/feature/patterns/domain"
	"crossmarket_backend/internal/feature/patterns/domain/entity"
)

// PatternRepository abstracts the durable pattern catalog.
// Following Go convention: interfaces are defined by the consumer (usecase).
type PatternRepository interface {
	// Upsert stores the pattern keyed by (driver, target). AccuracyRate of an
	// existing row is preserved: only the validation path may move it.
	Upsert(ctx context.Context, p entity.CorrelationPattern) error
	// GetActive returns admitted patterns with accuracy_rate >= minAccuracy,
	// ordered by accuracy desc then sample size desc.
	GetActive(ctx context.Context, minAccuracy float64) ([]entity.CorrelationPattern, error)
	// RecordOutcome folds one validation outcome into the rolling accuracy.
	// The update is serialized per pattern row.
	RecordOutcome(ctx context.Context, patternID uint, wasCorrect bool) error
}

// CatalogUsecase owns admission into the durable pattern catalog.
type CatalogUsecase struct {
	repo PatternRepository
}

// NewCatalogUsecase creates a new CatalogUsecase.
func NewCatalogUsecase(repo PatternRepository) *CatalogUsecase {
	return &CatalogUsecase{repo: repo}
}

// Admit promotes an admissible evaluation into the catalog. Calling Admit with
// a non-admissible evaluation is a caller bug and returns ErrNotAdmissible
// without touching the catalog. A freshly admitted pattern starts with its
// directional accuracy as the rolling accuracy seed.
func (cu *CatalogUsecase) Admit(ctx context.Context, driverSymbol, targetSymbol string, ev Evaluation) (entity.CorrelationPattern, error) {
	if !ev.Admissible || ev.SampleSize < MinSampleSize {
		return entity.CorrelationPattern{}, domain.ErrNotAdmissible
	}
	p := entity.CorrelationPattern{
		DriverSymbol: driverSymbol,
		TargetSymbol: targetSymbol,
		Coefficient:  ev.Coefficient,
		SampleSize:   ev.SampleSize,
		AccuracyRate: ev.DirectionalAccuracy,
		Status:       entity.PatternAdmitted,
		LastUpdated:  time.Now().UTC(),
	}
	if err := cu.repo.Upsert(ctx, p); err != nil {
		return entity.CorrelationPattern{}, err
	}
	return p, nil
}

// Reject records a non-admissible evaluation so the relationship stays
// observable without ever being trusted for prediction.
func (cu *CatalogUsecase) Reject(ctx context.Context, driverSymbol, targetSymbol string, ev Evaluation) error {
	p := entity.CorrelationPattern{
		DriverSymbol: driverSymbol,
		TargetSymbol: targetSymbol,
		Coefficient:  ev.Coefficient,
		SampleSize:   ev.SampleSize,
		AccuracyRate: ev.DirectionalAccuracy,
		Status:       entity.PatternRejected,
		LastUpdated:  time.Now().UTC(),
	}
	return cu.repo.Upsert(ctx, p)
}

// GetActive returns admitted patterns at or above minAccuracy, best first.
func (cu *CatalogUsecase) GetActive(ctx context.Context, minAccuracy float64) ([]entity.CorrelationPattern, error) {
	return cu.repo.GetActive(ctx, minAccuracy)
}

// RecordOutcome folds one validation outcome into a pattern's rolling accuracy.
func (cu *CatalogUsecase) RecordOutcome(ctx context.Context, patternID uint, wasCorrect bool) error {
	return cu.repo.RecordOutcome(ctx, patternID, wasCorrect)
}
