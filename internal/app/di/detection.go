package di

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	alignusecase "crossmarket_backend/internal/feature/alignment/usecase"
	detectionadapters "crossmarket_backend/internal/feature/detection/adapters"
	detectionusecase "crossmarket_backend/internal/feature/detection/usecase"
	patternadapters "crossmarket_backend/internal/feature/patterns/adapters"
	patternusecase "crossmarket_backend/internal/feature/patterns/usecase"
	predictionadapters "crossmarket_backend/internal/feature/predictions/adapters"
	predusecase "crossmarket_backend/internal/feature/predictions/usecase"
	priceadapters "crossmarket_backend/internal/feature/prices/adapters"
	pricesusecase "crossmarket_backend/internal/feature/prices/usecase"
	signaladapters "crossmarket_backend/internal/feature/signals/adapters"
	signalusecase "crossmarket_backend/internal/feature/signals/usecase"
	"crossmarket_backend/internal/platform/cache"
	"crossmarket_backend/internal/platform/calendar"
)

// NewPatternRepository creates the durable pattern catalog, wrapped in the
// Redis read cache when Redis is available.
func NewPatternRepository(db *gorm.DB, rdb *redis.Client) patternusecase.PatternRepository {
	base := patternadapters.NewPatternRepository(db)
	if rdb == nil {
		return base
	}
	return cache.NewCachingPatternRepository(rdb, cache.TimeUntilNextClose(), base, "patterns")
}

// NewDetection assembles the full detection pipeline.
func NewDetection(ctx context.Context, db *gorm.DB, rdb *redis.Client) *detectionusecase.DetectionUsecase {
	cal := calendar.NewUSEquityCalendar()
	aligner := alignusecase.NewAligner(cal, 0, 0)

	driverRepo := priceadapters.NewDriverPriceRepository(db)
	targetRepo := priceadapters.NewTargetSessionRepository(db)
	prices := pricesusecase.NewPricesUsecase(driverRepo, targetRepo)

	patternRepo := NewPatternRepository(db, rdb)
	catalog := patternusecase.NewCatalogUsecase(patternRepo)
	correl := patternusecase.NewCorrelationUsecase(NewSignificanceOracle(ctx))

	predRepo := predictionadapters.NewPredictionRepository(db)
	generate := predusecase.NewGenerateUsecase(predRepo)
	validate := predusecase.NewValidateUsecase(predRepo, catalog, 0)

	alertRepo := signaladapters.NewAlertRepository(db)
	aggregate := signalusecase.NewAggregateUsecase(alertRepo)
	spikes := signalusecase.NewSpikeDetector(0, 0)

	jobs := detectionadapters.NewJobRunRepository(db)

	return detectionusecase.NewDetectionUsecase(
		prices, targetRepo, aligner, cal,
		correl, catalog, generate, validate,
		spikes, aggregate, jobs,
		detectionusecase.Config{
			DriverSymbols: DriverSymbols(),
			TargetSymbols: TargetSymbols(),
		},
	)
}
