package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	alignusecase "crossmarket_backend/internal/feature/alignment/usecase"
	detectionadapters "crossmarket_backend/internal/feature/detection/adapters"
	detectionentity "crossmarket_backend/internal/feature/detection/domain/entity"
	detectionusecase "crossmarket_backend/internal/feature/detection/usecase"
	patternadapters "crossmarket_backend/internal/feature/patterns/adapters"
	patternentity "crossmarket_backend/internal/feature/patterns/domain/entity"
	patternusecase "crossmarket_backend/internal/feature/patterns/usecase"
	predictionadapters "crossmarket_backend/internal/feature/predictions/adapters"
	predentity "crossmarket_backend/internal/feature/predictions/domain/entity"
	predusecase "crossmarket_backend/internal/feature/predictions/usecase"
	priceadapters "crossmarket_backend/internal/feature/prices/adapters"
	pricesentity "crossmarket_backend/internal/feature/prices/domain/entity"
	pricesusecase "crossmarket_backend/internal/feature/prices/usecase"
	signalentity "crossmarket_backend/internal/feature/signals/domain/entity"
	"crossmarket_backend/internal/platform/calendar"
)

type stubEvaluator struct{}

func (stubEvaluator) EvaluateWithOracle(ctx context.Context, driverSymbol, targetSymbol string, pairs []patternusecase.MovePair) patternusecase.Evaluation {
	return patternusecase.Evaluation{}
}

type stubSpikeDetector struct{}

func (stubSpikeDetector) Detect(prices []pricesentity.DriverPrice) *signalentity.Signal {
	return nil
}

type stubAlertSink struct{}

func (stubAlertSink) CombineAndStore(ctx context.Context, a, b *signalentity.Signal) (*signalentity.CombinedAlert, error) {
	return nil, nil
}

func (stubAlertSink) ListRecent(ctx context.Context, limit int) ([]signalentity.CombinedAlert, error) {
	return nil, nil
}

type recordedOutcome struct {
	patternID uint
	correct   bool
}

// outcomeRecorderSpy forwards to the real catalog while keeping the calls
// observable.
type outcomeRecorderSpy struct {
	inner predusecase.PatternOutcomeRecorder
	calls []recordedOutcome
}

func (s *outcomeRecorderSpy) RecordOutcome(ctx context.Context, patternID uint, wasCorrect bool) error {
	s.calls = append(s.calls, recordedOutcome{patternID: patternID, correct: wasCorrect})
	return s.inner.RecordOutcome(ctx, patternID, wasCorrect)
}

// TestDetectionRun_ClosesPredictionLoop wires the production stack end to end:
// the real trading calendar, the real aligner and SQLite-backed repositories.
// A prediction whose session date came out of CurrentWindowMove must be found
// again by the sweep's exact session-date lookup, reach validated, and feed its
// outcome back into the pattern's rolling accuracy.
func TestDetectionRun_ClosesPredictionLoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to initialize test database")
	require.NoError(t, db.AutoMigrate(
		&priceadapters.DriverPriceModel{},
		&priceadapters.TargetSessionModel{},
		&patternadapters.PatternModel{},
		&predictionadapters.PredictionModel{},
		&predictionadapters.GenerationModel{},
		&detectionadapters.JobRunModel{},
	), "failed to migrate tables")

	cal := calendar.NewUSEquityCalendar()
	aligner := alignusecase.NewAligner(cal, 0, 0)

	driverRepo := priceadapters.NewDriverPriceRepository(db)
	targetRepo := priceadapters.NewTargetSessionRepository(db)
	prices := pricesusecase.NewPricesUsecase(driverRepo, targetRepo)

	patternRepo := patternadapters.NewPatternRepository(db)
	catalog := patternusecase.NewCatalogUsecase(patternRepo)

	predRepo := predictionadapters.NewPredictionRepository(db)
	generate := predusecase.NewGenerateUsecase(predRepo)
	spy := &outcomeRecorderSpy{inner: catalog}
	validate := predusecase.NewValidateUsecase(predRepo, spy, 0)

	jobs := detectionadapters.NewJobRunRepository(db)

	// An admitted pattern with an established rolling accuracy.
	seeded := patternadapters.PatternModel{
		DriverSymbol: "BTC",
		TargetSymbol: "COIN",
		Coefficient:  0.92,
		SampleSize:   4,
		AccuracyRate: 80,
		Status:       string(patternentity.PatternAdmitted),
		LastUpdated:  time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(&seeded).Error)

	// Monday 2024-01-08 closes 21:00 UTC (16:00 EST). The window is measured
	// at a wall-clock instant two hours later; the prediction it produces must
	// target Tuesday as a plain calendar day.
	measuredAt := time.Date(2024, 1, 8, 23, 0, 0, 0, time.UTC)
	series := []pricesentity.DriverPrice{
		{Symbol: "BTC", Timestamp: time.Date(2024, 1, 8, 20, 0, 0, 0, time.UTC), Price: 42000},
		{Symbol: "BTC", Timestamp: measuredAt, Price: 39396},
	}
	move, sessionDate, ok := aligner.CurrentWindowMove(series, measuredAt)
	require.True(t, ok)
	assert.InDelta(t, -6.2, move, 1e-9)
	require.True(t, sessionDate.Equal(time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)),
		"session date must be the midnight-UTC calendar day, got %v", sessionDate)

	active, err := catalog.GetActive(ctx, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)

	pred := generate.Generate("BTC", move, sessionDate, active)
	require.Len(t, pred.Forecasts, 1)
	require.NoError(t, generate.ReplaceActiveSet(ctx, []predentity.Prediction{pred}))

	// The realized session arrives the way the ingest path stores it: keyed by
	// the bare calendar day. COIN closed -5% so the strong-down call is right.
	require.NoError(t, targetRepo.UpsertBatch(ctx, []pricesentity.TargetSession{{
		Symbol:      "COIN",
		SessionDate: time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC),
		Open:        198,
		Close:       190,
		PriorClose:  200,
	}}))

	du := detectionusecase.NewDetectionUsecase(
		prices, targetRepo, aligner, cal,
		stubEvaluator{}, catalog, generate, validate,
		stubSpikeDetector{}, stubAlertSink{}, jobs,
		detectionusecase.Config{},
	)
	require.NoError(t, du.Run(ctx))

	// The sweep found the session, validated the prediction and fed the
	// outcome back into the pattern.
	require.Len(t, spy.calls, 1, "the validation outcome must reach the pattern catalog")
	assert.Equal(t, seeded.ID, spy.calls[0].patternID)
	assert.True(t, spy.calls[0].correct)

	var pat patternadapters.PatternModel
	require.NoError(t, db.First(&pat, seeded.ID).Error)
	assert.Equal(t, 5, pat.SampleSize)
	assert.InDelta(t, 84.0, pat.AccuracyRate, 1e-9)

	pending, err := predRepo.ListPendingAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "nothing may stay pending once its session has data")

	latest, err := jobs.Latest(ctx, detectionusecase.JobName)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, detectionentity.JobSucceeded, latest.Status)
}
