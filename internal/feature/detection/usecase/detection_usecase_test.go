package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	alignentity "crossmarket_backend/internal/feature/alignment/domain/entity"
	"crossmarket_backend/internal/feature/detection/domain/entity"
	patternentity "crossmarket_backend/internal/feature/patterns/domain/entity"
	patternusecase "crossmarket_backend/internal/feature/patterns/usecase"
	preddomain "crossmarket_backend/internal/feature/predictions/domain"
	predentity "crossmarket_backend/internal/feature/predictions/domain/entity"
	predusecase "crossmarket_backend/internal/feature/predictions/usecase"
	pricesentity "crossmarket_backend/internal/feature/prices/domain/entity"
	signalentity "crossmarket_backend/internal/feature/signals/domain/entity"
)

var ErrDB = errors.New("db error")

// mockPriceReader is a mock implementation of the PriceReader interface.
type mockPriceReader struct {
	DriverSeriesFunc   func(ctx context.Context, symbol string, lookback time.Duration) ([]pricesentity.DriverPrice, error)
	TargetSessionsFunc func(ctx context.Context, symbol string, lookback time.Duration) ([]pricesentity.TargetSession, error)
}

func (m *mockPriceReader) DriverSeries(ctx context.Context, symbol string, lookback time.Duration) ([]pricesentity.DriverPrice, error) {
	if m.DriverSeriesFunc != nil {
		return m.DriverSeriesFunc(ctx, symbol, lookback)
	}
	return nil, nil
}

func (m *mockPriceReader) TargetSessions(ctx context.Context, symbol string, lookback time.Duration) ([]pricesentity.TargetSession, error) {
	if m.TargetSessionsFunc != nil {
		return m.TargetSessionsFunc(ctx, symbol, lookback)
	}
	return nil, nil
}

// mockSessionFinder is a mock implementation of the SessionFinder interface.
type mockSessionFinder struct {
	FindFunc func(ctx context.Context, symbol string, day time.Time) (*pricesentity.TargetSession, error)
}

func (m *mockSessionFinder) Find(ctx context.Context, symbol string, day time.Time) (*pricesentity.TargetSession, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, symbol, day)
	}
	return nil, nil
}

// mockAligner is a mock implementation of the WindowAligner interface.
type mockAligner struct {
	AlignFunc             func(prices []pricesentity.DriverPrice, sessions []pricesentity.TargetSession) []alignentity.AlignedWindow
	CurrentWindowMoveFunc func(prices []pricesentity.DriverPrice, now time.Time) (float64, time.Time, bool)
}

func (m *mockAligner) Align(prices []pricesentity.DriverPrice, sessions []pricesentity.TargetSession) []alignentity.AlignedWindow {
	if m.AlignFunc != nil {
		return m.AlignFunc(prices, sessions)
	}
	return nil
}

func (m *mockAligner) CurrentWindowMove(prices []pricesentity.DriverPrice, now time.Time) (float64, time.Time, bool) {
	if m.CurrentWindowMoveFunc != nil {
		return m.CurrentWindowMoveFunc(prices, now)
	}
	return 0, time.Time{}, false
}

// mockCalendar is a fixed-schedule calendar for tests.
type mockCalendar struct {
	CloseTimeFunc func(day time.Time) time.Time
}

func (m *mockCalendar) IsTradingDay(day time.Time) bool    { return true }
func (m *mockCalendar) OpenTime(day time.Time) time.Time   { return day.Add(14 * time.Hour) }
func (m *mockCalendar) PrevTradingDay(d time.Time) time.Time { return d.AddDate(0, 0, -1) }
func (m *mockCalendar) NextTradingDay(d time.Time) time.Time { return d.AddDate(0, 0, 1) }

func (m *mockCalendar) CloseTime(day time.Time) time.Time {
	if m.CloseTimeFunc != nil {
		return m.CloseTimeFunc(day)
	}
	return day.Add(21 * time.Hour)
}

// mockEvaluator is a mock implementation of the Evaluator interface.
type mockEvaluator struct {
	EvaluateFunc func(ctx context.Context, driver, target string, pairs []patternusecase.MovePair) patternusecase.Evaluation
}

func (m *mockEvaluator) EvaluateWithOracle(ctx context.Context, driver, target string, pairs []patternusecase.MovePair) patternusecase.Evaluation {
	if m.EvaluateFunc != nil {
		return m.EvaluateFunc(ctx, driver, target, pairs)
	}
	return patternusecase.Evaluation{}
}

// mockCatalog is a mock implementation of the Catalog interface.
type mockCatalog struct {
	AdmitFunc     func(ctx context.Context, driver, target string, ev patternusecase.Evaluation) (patternentity.CorrelationPattern, error)
	RejectFunc    func(ctx context.Context, driver, target string, ev patternusecase.Evaluation) error
	GetActiveFunc func(ctx context.Context, minAccuracy float64) ([]patternentity.CorrelationPattern, error)

	mu          sync.Mutex
	AdmitCalls  int
	RejectCalls int
}

func (m *mockCatalog) Admit(ctx context.Context, driver, target string, ev patternusecase.Evaluation) (patternentity.CorrelationPattern, error) {
	m.mu.Lock()
	m.AdmitCalls++
	m.mu.Unlock()
	if m.AdmitFunc != nil {
		return m.AdmitFunc(ctx, driver, target, ev)
	}
	return patternentity.CorrelationPattern{}, nil
}

func (m *mockCatalog) Reject(ctx context.Context, driver, target string, ev patternusecase.Evaluation) error {
	m.mu.Lock()
	m.RejectCalls++
	m.mu.Unlock()
	if m.RejectFunc != nil {
		return m.RejectFunc(ctx, driver, target, ev)
	}
	return nil
}

func (m *mockCatalog) GetActive(ctx context.Context, minAccuracy float64) ([]patternentity.CorrelationPattern, error) {
	if m.GetActiveFunc != nil {
		return m.GetActiveFunc(ctx, minAccuracy)
	}
	return nil, nil
}

// mockGenerator is a mock implementation of the Generator interface.
type mockGenerator struct {
	GenerateFunc         func(driver string, movePct float64, sessionDate time.Time, active []patternentity.CorrelationPattern) predentity.Prediction
	ReplaceActiveSetFunc func(ctx context.Context, preds []predentity.Prediction) error
	ListPendingFunc      func(ctx context.Context) ([]predentity.Prediction, error)
}

func (m *mockGenerator) Generate(driver string, movePct float64, sessionDate time.Time, active []patternentity.CorrelationPattern) predentity.Prediction {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(driver, movePct, sessionDate, active)
	}
	return predentity.Prediction{DriverSymbol: driver}
}

func (m *mockGenerator) ReplaceActiveSet(ctx context.Context, preds []predentity.Prediction) error {
	if m.ReplaceActiveSetFunc != nil {
		return m.ReplaceActiveSetFunc(ctx, preds)
	}
	return nil
}

func (m *mockGenerator) ListPending(ctx context.Context) ([]predentity.Prediction, error) {
	if m.ListPendingFunc != nil {
		return m.ListPendingFunc(ctx)
	}
	return nil, nil
}

// mockValidator is a mock implementation of the Validator interface.
type mockValidator struct {
	ListPendingAllFunc        func(ctx context.Context) ([]predentity.Prediction, error)
	ValidateFunc              func(ctx context.Context, id uint, outcome predusecase.Outcome) (predentity.Prediction, error)
	ExpireStaleFunc           func(ctx context.Context) (int64, error)
	PruneStaleGenerationsFunc func(ctx context.Context) (int64, error)
	StatsSinceFunc            func(ctx context.Context, since time.Time) (predusecase.ValidationStats, error)

	ValidateCalls []uint
}

func (m *mockValidator) ListPendingAll(ctx context.Context) ([]predentity.Prediction, error) {
	if m.ListPendingAllFunc != nil {
		return m.ListPendingAllFunc(ctx)
	}
	return nil, nil
}

func (m *mockValidator) Validate(ctx context.Context, id uint, outcome predusecase.Outcome) (predentity.Prediction, error) {
	m.ValidateCalls = append(m.ValidateCalls, id)
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, id, outcome)
	}
	return predentity.Prediction{}, nil
}

func (m *mockValidator) ExpireStale(ctx context.Context) (int64, error) {
	if m.ExpireStaleFunc != nil {
		return m.ExpireStaleFunc(ctx)
	}
	return 0, nil
}

func (m *mockValidator) PruneStaleGenerations(ctx context.Context) (int64, error) {
	if m.PruneStaleGenerationsFunc != nil {
		return m.PruneStaleGenerationsFunc(ctx)
	}
	return 0, nil
}

func (m *mockValidator) StatsSince(ctx context.Context, since time.Time) (predusecase.ValidationStats, error) {
	if m.StatsSinceFunc != nil {
		return m.StatsSinceFunc(ctx, since)
	}
	return predusecase.ValidationStats{}, nil
}

// mockSpikeDetector is a mock implementation of the SpikeDetector interface.
type mockSpikeDetector struct {
	DetectFunc func(prices []pricesentity.DriverPrice) *signalentity.Signal
}

func (m *mockSpikeDetector) Detect(prices []pricesentity.DriverPrice) *signalentity.Signal {
	if m.DetectFunc != nil {
		return m.DetectFunc(prices)
	}
	return nil
}

// mockAlertSink is a mock implementation of the AlertSink interface.
type mockAlertSink struct {
	CombineAndStoreFunc func(ctx context.Context, a, b *signalentity.Signal) (*signalentity.CombinedAlert, error)
	ListRecentFunc      func(ctx context.Context, limit int) ([]signalentity.CombinedAlert, error)

	CombineCalls int
}

func (m *mockAlertSink) CombineAndStore(ctx context.Context, a, b *signalentity.Signal) (*signalentity.CombinedAlert, error) {
	m.CombineCalls++
	if m.CombineAndStoreFunc != nil {
		return m.CombineAndStoreFunc(ctx, a, b)
	}
	return nil, nil
}

func (m *mockAlertSink) ListRecent(ctx context.Context, limit int) ([]signalentity.CombinedAlert, error) {
	if m.ListRecentFunc != nil {
		return m.ListRecentFunc(ctx, limit)
	}
	return nil, nil
}

// mockJobRuns is a mock implementation of the JobRunRepository interface.
type mockJobRuns struct {
	StartFunc     func(ctx context.Context, name string) (uint, error)
	FinishFunc    func(ctx context.Context, id uint, runErr error) error
	LatestFunc    func(ctx context.Context, name string) (*entity.JobRun, error)
	FailStaleFunc func(ctx context.Context, olderThan time.Time) (int64, error)

	FinishedWith []error
}

func (m *mockJobRuns) Start(ctx context.Context, name string) (uint, error) {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, name)
	}
	return 1, nil
}

func (m *mockJobRuns) Finish(ctx context.Context, id uint, runErr error) error {
	m.FinishedWith = append(m.FinishedWith, runErr)
	if m.FinishFunc != nil {
		return m.FinishFunc(ctx, id, runErr)
	}
	return nil
}

func (m *mockJobRuns) Latest(ctx context.Context, name string) (*entity.JobRun, error) {
	if m.LatestFunc != nil {
		return m.LatestFunc(ctx, name)
	}
	return nil, nil
}

func (m *mockJobRuns) FailStale(ctx context.Context, olderThan time.Time) (int64, error) {
	if m.FailStaleFunc != nil {
		return m.FailStaleFunc(ctx, olderThan)
	}
	return 0, nil
}

// deps bundles one mock of every collaborator with working defaults.
type deps struct {
	prices   *mockPriceReader
	sessions *mockSessionFinder
	aligner  *mockAligner
	cal      *mockCalendar
	eval     *mockEvaluator
	catalog  *mockCatalog
	generate *mockGenerator
	validate *mockValidator
	spikes   *mockSpikeDetector
	alerts   *mockAlertSink
	jobs     *mockJobRuns
}

func newDeps() *deps {
	return &deps{
		prices:   &mockPriceReader{},
		sessions: &mockSessionFinder{},
		aligner:  &mockAligner{},
		cal:      &mockCalendar{},
		eval:     &mockEvaluator{},
		catalog:  &mockCatalog{},
		generate: &mockGenerator{},
		validate: &mockValidator{},
		spikes:   &mockSpikeDetector{},
		alerts:   &mockAlertSink{},
		jobs:     &mockJobRuns{},
	}
}

func (d *deps) build(cfg Config) *DetectionUsecase {
	return NewDetectionUsecase(
		d.prices, d.sessions, d.aligner, d.cal, d.eval, d.catalog,
		d.generate, d.validate, d.spikes, d.alerts, d.jobs, cfg)
}

func TestDetectionUsecase_Run(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sessionDate := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)
	series := []pricesentity.DriverPrice{
		{Symbol: "BTC", Timestamp: time.Now().UTC().Add(-time.Hour), Price: 42000},
	}

	t.Run("happy path: every stage runs", func(t *testing.T) {
		t.Parallel()

		d := newDeps()
		d.prices.DriverSeriesFunc = func(ctx context.Context, symbol string, lookback time.Duration) ([]pricesentity.DriverPrice, error) {
			return series, nil
		}
		d.prices.TargetSessionsFunc = func(ctx context.Context, symbol string, lookback time.Duration) ([]pricesentity.TargetSession, error) {
			return []pricesentity.TargetSession{{Symbol: symbol, SessionDate: sessionDate}}, nil
		}
		d.aligner.AlignFunc = func(p []pricesentity.DriverPrice, s []pricesentity.TargetSession) []alignentity.AlignedWindow {
			return []alignentity.AlignedWindow{{DriverMovePct: 5, TargetMovePct: 4}}
		}
		d.eval.EvaluateFunc = func(ctx context.Context, driver, target string, pairs []patternusecase.MovePair) patternusecase.Evaluation {
			return patternusecase.Evaluation{Coefficient: 0.9, SampleSize: 40, Admissible: target == "COIN"}
		}
		d.catalog.GetActiveFunc = func(ctx context.Context, minAccuracy float64) ([]patternentity.CorrelationPattern, error) {
			return []patternentity.CorrelationPattern{{ID: 1, DriverSymbol: "BTC", TargetSymbol: "COIN", Coefficient: 0.9}}, nil
		}
		d.aligner.CurrentWindowMoveFunc = func(p []pricesentity.DriverPrice, now time.Time) (float64, time.Time, bool) {
			return -6.2, sessionDate, true
		}
		var replaced []predentity.Prediction
		d.generate.GenerateFunc = func(driver string, movePct float64, sd time.Time, active []patternentity.CorrelationPattern) predentity.Prediction {
			return predentity.Prediction{
				DriverSymbol:       driver,
				DriverMovePct:      movePct,
				PredictedDirection: predentity.DirectionStrongDown,
				Forecasts:          []predentity.TickerForecast{{Ticker: "COIN", PredictedChangePct: -5.7}},
			}
		}
		d.generate.ReplaceActiveSetFunc = func(ctx context.Context, preds []predentity.Prediction) error {
			replaced = preds
			return nil
		}
		d.spikes.DetectFunc = func(p []pricesentity.DriverPrice) *signalentity.Signal {
			return &signalentity.Signal{Kind: "driver_spike", Direction: -1, Confidence: 0.8}
		}
		var combinedWithPrediction bool
		d.alerts.CombineAndStoreFunc = func(ctx context.Context, a, b *signalentity.Signal) (*signalentity.CombinedAlert, error) {
			combinedWithPrediction = b != nil && b.Kind == "cross_market"
			return &signalentity.CombinedAlert{Severity: signalentity.SeverityHigh}, nil
		}
		d.validate.ListPendingAllFunc = func(ctx context.Context) ([]predentity.Prediction, error) {
			return nil, nil
		}

		du := d.build(Config{DriverSymbols: []string{"BTC"}, TargetSymbols: []string{"COIN", "MSTR"}})

		if err := du.Run(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.catalog.AdmitCalls != 1 || d.catalog.RejectCalls != 1 {
			t.Errorf("expected 1 admit and 1 reject, got %d/%d", d.catalog.AdmitCalls, d.catalog.RejectCalls)
		}
		if len(replaced) != 1 || replaced[0].DriverSymbol != "BTC" {
			t.Errorf("unexpected replaced set: %+v", replaced)
		}
		if d.alerts.CombineCalls != 1 {
			t.Errorf("expected 1 combine, got %d", d.alerts.CombineCalls)
		}
		if !combinedWithPrediction {
			t.Error("spike should be combined with the driver's fresh prediction signal")
		}
		if len(d.jobs.FinishedWith) != 1 || d.jobs.FinishedWith[0] != nil {
			t.Errorf("job must close as succeeded, got %v", d.jobs.FinishedWith)
		}
	})

	t.Run("second concurrent run is refused", func(t *testing.T) {
		t.Parallel()

		d := newDeps()
		release := make(chan struct{})
		started := make(chan struct{})
		var startedOnce sync.Once
		d.jobs.StartFunc = func(ctx context.Context, name string) (uint, error) {
			startedOnce.Do(func() { close(started) })
			<-release
			return 1, nil
		}
		d.validate.ListPendingAllFunc = func(ctx context.Context) ([]predentity.Prediction, error) { return nil, nil }
		d.generate.ReplaceActiveSetFunc = func(ctx context.Context, preds []predentity.Prediction) error { return nil }

		du := d.build(Config{})

		done := make(chan error, 1)
		go func() { done <- du.Run(ctx) }()
		<-started

		if err := du.Run(ctx); !errors.Is(err, ErrRunInProgress) {
			t.Errorf("expected ErrRunInProgress, got %v", err)
		}
		close(release)
		if err := <-done; err != nil {
			t.Errorf("first run failed: %v", err)
		}

		// The slot frees once the first run finishes.
		if err := du.Run(ctx); err != nil {
			t.Errorf("expected a fresh run to proceed, got %v", err)
		}
	})

	t.Run("a failing driver series skips that driver only", func(t *testing.T) {
		t.Parallel()

		d := newDeps()
		d.prices.DriverSeriesFunc = func(ctx context.Context, symbol string, lookback time.Duration) ([]pricesentity.DriverPrice, error) {
			if symbol == "BTC" {
				return nil, ErrDB
			}
			return series, nil
		}
		d.prices.TargetSessionsFunc = func(ctx context.Context, symbol string, lookback time.Duration) ([]pricesentity.TargetSession, error) {
			return []pricesentity.TargetSession{{Symbol: symbol, SessionDate: sessionDate}}, nil
		}
		d.aligner.AlignFunc = func(p []pricesentity.DriverPrice, s []pricesentity.TargetSession) []alignentity.AlignedWindow {
			return nil
		}
		d.validate.ListPendingAllFunc = func(ctx context.Context) ([]predentity.Prediction, error) { return nil, nil }
		d.generate.ReplaceActiveSetFunc = func(ctx context.Context, preds []predentity.Prediction) error { return nil }

		du := d.build(Config{DriverSymbols: []string{"BTC", "ETH"}, TargetSymbols: []string{"COIN"}})

		if err := du.Run(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// Only ETH reached evaluation.
		if got := d.catalog.AdmitCalls + d.catalog.RejectCalls; got != 1 {
			t.Errorf("expected 1 catalog update, got %d", got)
		}
	})

	t.Run("predictions without forecasts are not persisted", func(t *testing.T) {
		t.Parallel()

		d := newDeps()
		d.prices.DriverSeriesFunc = func(ctx context.Context, symbol string, lookback time.Duration) ([]pricesentity.DriverPrice, error) {
			return series, nil
		}
		d.aligner.CurrentWindowMoveFunc = func(p []pricesentity.DriverPrice, now time.Time) (float64, time.Time, bool) {
			return 2.0, sessionDate, true
		}
		var replaced []predentity.Prediction
		d.generate.ReplaceActiveSetFunc = func(ctx context.Context, preds []predentity.Prediction) error {
			replaced = preds
			return nil
		}
		d.validate.ListPendingAllFunc = func(ctx context.Context) ([]predentity.Prediction, error) { return nil, nil }

		du := d.build(Config{DriverSymbols: []string{"BTC"}})

		if err := du.Run(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// Still replaced, with an empty set: stale predictions never survive.
		if replaced == nil {
			t.Fatal("ReplaceActiveSet must run even with nothing to store")
		}
		if len(replaced) != 0 {
			t.Errorf("expected an empty set, got %+v", replaced)
		}
	})

	t.Run("a failing replace fails the run", func(t *testing.T) {
		t.Parallel()

		d := newDeps()
		d.generate.ReplaceActiveSetFunc = func(ctx context.Context, preds []predentity.Prediction) error {
			return ErrDB
		}

		du := d.build(Config{})

		if err := du.Run(ctx); !errors.Is(err, ErrDB) {
			t.Fatalf("expected ErrDB, got %v", err)
		}
		if len(d.jobs.FinishedWith) != 1 || !errors.Is(d.jobs.FinishedWith[0], ErrDB) {
			t.Errorf("job must close as failed, got %v", d.jobs.FinishedWith)
		}
	})
}

func TestDetectionUsecase_SweepValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()
	closedDate := now.AddDate(0, 0, -2)
	openDate := now.AddDate(0, 0, 1)

	pendingPred := func(id uint, sessionDate time.Time) predentity.Prediction {
		return predentity.Prediction{
			ID:                 id,
			DriverSymbol:       "BTC",
			PredictedDirection: predentity.DirectionStrongDown,
			Forecasts:          []predentity.TickerForecast{{Ticker: "COIN"}, {Ticker: "MSTR"}},
			TargetSessionDate:  sessionDate,
			Status:             predentity.PredictionPending,
		}
	}

	t.Run("only closed sessions with data are validated", func(t *testing.T) {
		t.Parallel()

		d := newDeps()
		d.generate.ReplaceActiveSetFunc = func(ctx context.Context, preds []predentity.Prediction) error { return nil }
		d.validate.ListPendingAllFunc = func(ctx context.Context) ([]predentity.Prediction, error) {
			return []predentity.Prediction{pendingPred(1, closedDate), pendingPred(2, openDate)}, nil
		}
		var capturedOutcome predusecase.Outcome
		d.validate.ValidateFunc = func(ctx context.Context, id uint, outcome predusecase.Outcome) (predentity.Prediction, error) {
			capturedOutcome = outcome
			return predentity.Prediction{}, nil
		}
		d.sessions.FindFunc = func(ctx context.Context, symbol string, day time.Time) (*pricesentity.TargetSession, error) {
			if symbol == "COIN" {
				return &pricesentity.TargetSession{Symbol: symbol, PriorClose: 100, Close: 96}, nil
			}
			return nil, nil // MSTR has no data
		}

		du := d.build(Config{})

		if err := du.Run(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(d.validate.ValidateCalls) != 1 || d.validate.ValidateCalls[0] != 1 {
			t.Fatalf("expected only prediction 1 validated, got %v", d.validate.ValidateCalls)
		}
		if capturedOutcome.TargetMovePct != -4.0 {
			t.Errorf("expected overall move -4.0 from COIN alone, got %f", capturedOutcome.TargetMovePct)
		}
		if _, ok := capturedOutcome.TickerMoves["MSTR"]; ok {
			t.Error("a ticker without data must not appear in the outcome")
		}
	})

	t.Run("a session without a prior close counts as no data", func(t *testing.T) {
		t.Parallel()

		d := newDeps()
		d.generate.ReplaceActiveSetFunc = func(ctx context.Context, preds []predentity.Prediction) error { return nil }
		d.validate.ListPendingAllFunc = func(ctx context.Context) ([]predentity.Prediction, error) {
			return []predentity.Prediction{pendingPred(1, closedDate)}, nil
		}
		var capturedOutcome predusecase.Outcome
		d.validate.ValidateFunc = func(ctx context.Context, id uint, outcome predusecase.Outcome) (predentity.Prediction, error) {
			capturedOutcome = outcome
			return predentity.Prediction{}, nil
		}
		d.sessions.FindFunc = func(ctx context.Context, symbol string, day time.Time) (*pricesentity.TargetSession, error) {
			if symbol == "COIN" {
				// Row exists but the baseline is unknown; scoring it would
				// fabricate a 0% move.
				return &pricesentity.TargetSession{Symbol: symbol, PriorClose: 0, Close: 96}, nil
			}
			return &pricesentity.TargetSession{Symbol: symbol, PriorClose: 100, Close: 98}, nil
		}

		du := d.build(Config{})

		if err := du.Run(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(d.validate.ValidateCalls) != 1 {
			t.Fatalf("expected one validation from MSTR alone, got %v", d.validate.ValidateCalls)
		}
		if _, ok := capturedOutcome.TickerMoves["COIN"]; ok {
			t.Error("a ticker without a prior close must not appear in the outcome")
		}
		if capturedOutcome.TargetMovePct != -2.0 {
			t.Errorf("expected overall move -2.0 from MSTR alone, got %f", capturedOutcome.TargetMovePct)
		}
	})

	t.Run("session closed but no ticker has data: left for expiry", func(t *testing.T) {
		t.Parallel()

		d := newDeps()
		d.generate.ReplaceActiveSetFunc = func(ctx context.Context, preds []predentity.Prediction) error { return nil }
		d.validate.ListPendingAllFunc = func(ctx context.Context) ([]predentity.Prediction, error) {
			return []predentity.Prediction{pendingPred(1, closedDate)}, nil
		}
		d.sessions.FindFunc = func(ctx context.Context, symbol string, day time.Time) (*pricesentity.TargetSession, error) {
			return nil, nil
		}

		du := d.build(Config{})

		if err := du.Run(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(d.validate.ValidateCalls) != 0 {
			t.Errorf("expected no validations, got %v", d.validate.ValidateCalls)
		}
	})

	t.Run("races with another validator: ErrNotPending is not an error", func(t *testing.T) {
		t.Parallel()

		d := newDeps()
		d.generate.ReplaceActiveSetFunc = func(ctx context.Context, preds []predentity.Prediction) error { return nil }
		d.validate.ListPendingAllFunc = func(ctx context.Context) ([]predentity.Prediction, error) {
			return []predentity.Prediction{pendingPred(1, closedDate)}, nil
		}
		d.validate.ValidateFunc = func(ctx context.Context, id uint, outcome predusecase.Outcome) (predentity.Prediction, error) {
			return predentity.Prediction{}, preddomain.ErrNotPending
		}
		d.sessions.FindFunc = func(ctx context.Context, symbol string, day time.Time) (*pricesentity.TargetSession, error) {
			return &pricesentity.TargetSession{Symbol: symbol, PriorClose: 100, Close: 99}, nil
		}

		du := d.build(Config{})

		if err := du.Run(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestDetectionUsecase_Watchdog(t *testing.T) {
	t.Parallel()

	d := newDeps()
	var capturedCutoff time.Time
	d.jobs.FailStaleFunc = func(ctx context.Context, olderThan time.Time) (int64, error) {
		capturedCutoff = olderThan
		return 1, nil
	}

	du := d.build(Config{})

	n, err := du.Watchdog(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 stale run closed, got %d", n)
	}

	wantCutoff := time.Now().UTC().Add(-DefaultStaleRunAfter)
	if diff := capturedCutoff.Sub(wantCutoff); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff %v not near expected %v", capturedCutoff, wantCutoff)
	}
}

func TestDetectionUsecase_BuildDashboard(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("success: all read models aggregated", func(t *testing.T) {
		t.Parallel()

		d := newDeps()
		d.catalog.GetActiveFunc = func(ctx context.Context, minAccuracy float64) ([]patternentity.CorrelationPattern, error) {
			if minAccuracy != 60 {
				t.Errorf("expected configured min accuracy 60, got %f", minAccuracy)
			}
			return []patternentity.CorrelationPattern{{ID: 1}}, nil
		}
		d.generate.ListPendingFunc = func(ctx context.Context) ([]predentity.Prediction, error) {
			return []predentity.Prediction{{ID: 2}}, nil
		}
		d.alerts.ListRecentFunc = func(ctx context.Context, limit int) ([]signalentity.CombinedAlert, error) {
			return []signalentity.CombinedAlert{{ID: 3}}, nil
		}
		d.validate.StatsSinceFunc = func(ctx context.Context, since time.Time) (predusecase.ValidationStats, error) {
			wantSince := time.Now().UTC().Add(-statsWindow)
			if diff := since.Sub(wantSince); diff < -time.Minute || diff > time.Minute {
				t.Errorf("stats window start %v not near expected %v", since, wantSince)
			}
			return predusecase.ValidationStats{Validated: 10, Correct: 7}, nil
		}
		d.jobs.LatestFunc = func(ctx context.Context, name string) (*entity.JobRun, error) {
			return &entity.JobRun{ID: 4, Name: JobName, Status: entity.JobSucceeded}, nil
		}

		du := d.build(Config{MinAccuracy: 60})

		dash, err := du.BuildDashboard(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(dash.ActivePatterns) != 1 || len(dash.Pending) != 1 || len(dash.RecentAlerts) != 1 {
			t.Errorf("unexpected dashboard: %+v", dash)
		}
		if dash.Stats.Correct != 7 {
			t.Errorf("expected 7 correct, got %d", dash.Stats.Correct)
		}
		if dash.LastRun == nil || dash.LastRun.ID != 4 {
			t.Errorf("unexpected last run: %+v", dash.LastRun)
		}
	})

	t.Run("error: a failing read surfaces", func(t *testing.T) {
		t.Parallel()

		d := newDeps()
		d.catalog.GetActiveFunc = func(ctx context.Context, minAccuracy float64) ([]patternentity.CorrelationPattern, error) {
			return nil, ErrDB
		}

		du := d.build(Config{})

		if _, err := du.BuildDashboard(ctx); !errors.Is(err, ErrDB) {
			t.Fatalf("expected ErrDB, got %v", err)
		}
	})
}
