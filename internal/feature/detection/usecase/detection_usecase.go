// Package usecase orchestrates the full detection batch: refresh the pattern
// catalog from stored history, generate predictions from the forming window,
// sweep pending predictions against realized sessions and combine signals.
package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	alignentity "crossmarket_backend/internal/feature/alignment/domain/entity"
	alignusecase "crossmarket_backend/internal/feature/alignment/usecase"
	"crossmarket_backend/internal/feature/detection/domain/entity"
	patternentity "crossmarket_backend/internal/feature/patterns/domain/entity"
	patternusecase "crossmarket_backend/internal/feature/patterns/usecase"
	preddomain "crossmarket_backend/internal/feature/predictions/domain"
	predentity "crossmarket_backend/internal/feature/predictions/domain/entity"
	predusecase "crossmarket_backend/internal/feature/predictions/usecase"
	pricesentity "crossmarket_backend/internal/feature/prices/domain/entity"
	signalentity "crossmarket_backend/internal/feature/signals/domain/entity"
	signalusecase "crossmarket_backend/internal/feature/signals/usecase"
)

const (
	// JobName identifies the detection batch in the job_runs table.
	JobName = "detection"

	// DefaultLookback is how much stored history feeds pattern evaluation.
	DefaultLookback = 90 * 24 * time.Hour

	// DefaultStaleRunAfter is how long a run may stay "running" before the
	// watchdog declares its process dead.
	DefaultStaleRunAfter = 2 * time.Hour

	recentAlertLimit = 20

	// statsWindow is the rolling window for dashboard performance stats.
	statsWindow = 30 * 24 * time.Hour
)

// ErrRunInProgress is returned when a detection run is requested while one is
// already executing in this process.
var ErrRunInProgress = errors.New("detection run already in progress")

// PriceReader loads stored price series.
// Following Go convention: interfaces are defined by the consumer (usecase).
type PriceReader interface {
	DriverSeries(ctx context.Context, symbol string, lookback time.Duration) ([]pricesentity.DriverPrice, error)
	TargetSessions(ctx context.Context, symbol string, lookback time.Duration) ([]pricesentity.TargetSession, error)
}

// SessionFinder answers whether a single target session has produced data yet.
type SessionFinder interface {
	Find(ctx context.Context, symbol string, day time.Time) (*pricesentity.TargetSession, error)
}

// WindowAligner pairs driver series with target sessions.
type WindowAligner interface {
	Align(prices []pricesentity.DriverPrice, sessions []pricesentity.TargetSession) []alignentity.AlignedWindow
	CurrentWindowMove(prices []pricesentity.DriverPrice, now time.Time) (movePct float64, sessionDate time.Time, ok bool)
}

// Evaluator computes the admission decision for a paired move set.
type Evaluator interface {
	EvaluateWithOracle(ctx context.Context, driverSymbol, targetSymbol string, pairs []patternusecase.MovePair) patternusecase.Evaluation
}

// Catalog is the slice of the pattern catalog the batch needs.
type Catalog interface {
	Admit(ctx context.Context, driverSymbol, targetSymbol string, ev patternusecase.Evaluation) (patternentity.CorrelationPattern, error)
	Reject(ctx context.Context, driverSymbol, targetSymbol string, ev patternusecase.Evaluation) error
	GetActive(ctx context.Context, minAccuracy float64) ([]patternentity.CorrelationPattern, error)
}

// Generator builds and persists the active prediction set.
type Generator interface {
	Generate(driverSymbol string, driverMovePct float64, targetSessionDate time.Time, active []patternentity.CorrelationPattern) predentity.Prediction
	ReplaceActiveSet(ctx context.Context, preds []predentity.Prediction) error
	ListPending(ctx context.Context) ([]predentity.Prediction, error)
}

// Validator closes the prediction loop.
type Validator interface {
	ListPendingAll(ctx context.Context) ([]predentity.Prediction, error)
	Validate(ctx context.Context, id uint, outcome predusecase.Outcome) (predentity.Prediction, error)
	ExpireStale(ctx context.Context) (int64, error)
	PruneStaleGenerations(ctx context.Context) (int64, error)
	StatsSince(ctx context.Context, since time.Time) (predusecase.ValidationStats, error)
}

// SpikeDetector flags abrupt driver moves independently of learned patterns.
type SpikeDetector interface {
	Detect(prices []pricesentity.DriverPrice) *signalentity.Signal
}

// AlertSink combines signals and stores the resulting alerts.
type AlertSink interface {
	CombineAndStore(ctx context.Context, a, b *signalentity.Signal) (*signalentity.CombinedAlert, error)
	ListRecent(ctx context.Context, limit int) ([]signalentity.CombinedAlert, error)
}

// JobRunRepository records batch executions for the status surface.
type JobRunRepository interface {
	Start(ctx context.Context, name string) (uint, error)
	Finish(ctx context.Context, id uint, runErr error) error
	Latest(ctx context.Context, name string) (*entity.JobRun, error)
	FailStale(ctx context.Context, olderThan time.Time) (int64, error)
}

// Config holds the symbol universe and tuning knobs of the batch.
type Config struct {
	DriverSymbols []string
	TargetSymbols []string
	Lookback      time.Duration // zero falls back to DefaultLookback
	MinAccuracy   float64       // floor for patterns used in generation
}

// Dashboard is the aggregate read model for the dashboard endpoint.
type Dashboard struct {
	ActivePatterns []patternentity.CorrelationPattern
	Pending        []predentity.Prediction
	RecentAlerts   []signalentity.CombinedAlert
	Stats          predusecase.ValidationStats
	LastRun        *entity.JobRun
}

// DetectionUsecase runs the batch pipeline over the configured symbol
// universe. Per-pair failures are logged and skipped so one bad symbol never
// takes down a whole run.
type DetectionUsecase struct {
	prices   PriceReader
	sessions SessionFinder
	aligner  WindowAligner
	cal      alignusecase.SessionCalendar
	eval     Evaluator
	catalog  Catalog
	generate Generator
	validate Validator
	spikes   SpikeDetector
	alerts   AlertSink
	jobs     JobRunRepository
	cfg      Config

	running atomic.Bool
}

// NewDetectionUsecase creates a new DetectionUsecase.
func NewDetectionUsecase(
	prices PriceReader,
	sessions SessionFinder,
	aligner WindowAligner,
	cal alignusecase.SessionCalendar,
	eval Evaluator,
	catalog Catalog,
	generate Generator,
	validate Validator,
	spikes SpikeDetector,
	alerts AlertSink,
	jobs JobRunRepository,
	cfg Config,
) *DetectionUsecase {
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	return &DetectionUsecase{
		prices:   prices,
		sessions: sessions,
		aligner:  aligner,
		cal:      cal,
		eval:     eval,
		catalog:  catalog,
		generate: generate,
		validate: validate,
		spikes:   spikes,
		alerts:   alerts,
		jobs:     jobs,
		cfg:      cfg,
	}
}

// Run executes one full detection batch. Only one run may execute at a time in
// a process; a second request gets ErrRunInProgress instead of queueing.
func (du *DetectionUsecase) Run(ctx context.Context) error {
	if !du.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer du.running.Store(false)

	jobID, err := du.jobs.Start(ctx, JobName)
	if err != nil {
		return err
	}

	runErr := du.run(ctx)
	if err := du.jobs.Finish(ctx, jobID, runErr); err != nil {
		slog.Error("failed to close job run record", "job_id", jobID, "error", err)
	}
	return runErr
}

func (du *DetectionUsecase) run(ctx context.Context) error {
	started := time.Now()
	slog.Info("detection run started",
		"drivers", len(du.cfg.DriverSymbols), "targets", len(du.cfg.TargetSymbols))

	series := du.loadDriverSeries(ctx)

	du.refreshPatterns(ctx, series)

	preds, err := du.generatePredictions(ctx, series)
	if err != nil {
		return err
	}

	du.emitSignals(ctx, series, preds)
	du.sweepValidation(ctx)

	slog.Info("detection run finished", "duration", time.Since(started), "predictions", len(preds))
	return nil
}

// loadDriverSeries loads each driver's stored series once; the series feeds
// alignment, the current-window measure and the spike detector.
func (du *DetectionUsecase) loadDriverSeries(ctx context.Context) map[string][]pricesentity.DriverPrice {
	series := make(map[string][]pricesentity.DriverPrice, len(du.cfg.DriverSymbols))
	for _, driver := range du.cfg.DriverSymbols {
		s, err := du.prices.DriverSeries(ctx, driver, du.cfg.Lookback)
		if err != nil {
			slog.Error("failed to load driver series, skipping driver", "driver", driver, "error", err)
			continue
		}
		series[driver] = s
	}
	return series
}

// refreshPatterns re-evaluates every (driver, target) pair against stored
// history and updates the catalog.
func (du *DetectionUsecase) refreshPatterns(ctx context.Context, series map[string][]pricesentity.DriverPrice) {
	for _, driver := range du.cfg.DriverSymbols {
		prices, ok := series[driver]
		if !ok || len(prices) == 0 {
			continue
		}
		for _, target := range du.cfg.TargetSymbols {
			sessions, err := du.prices.TargetSessions(ctx, target, du.cfg.Lookback)
			if err != nil {
				slog.Error("failed to load target sessions, skipping pair",
					"driver", driver, "target", target, "error", err)
				continue
			}

			windows := du.aligner.Align(prices, sessions)
			pairs := make([]patternusecase.MovePair, 0, len(windows))
			for _, w := range windows {
				pairs = append(pairs, patternusecase.MovePair{
					DriverMovePct: w.DriverMovePct,
					TargetMovePct: w.TargetMovePct,
				})
			}

			ev := du.eval.EvaluateWithOracle(ctx, driver, target, pairs)
			if ev.Admissible {
				_, err = du.catalog.Admit(ctx, driver, target, ev)
			} else {
				err = du.catalog.Reject(ctx, driver, target, ev)
			}
			if err != nil {
				slog.Error("failed to update pattern catalog",
					"driver", driver, "target", target, "error", err)
				continue
			}
			slog.Info("pattern evaluated",
				"driver", driver, "target", target,
				"coefficient", ev.Coefficient, "samples", ev.SampleSize, "admitted", ev.Admissible)
		}
	}
}

// generatePredictions measures the window forming right now for each driver
// and builds the new active prediction set. The set is replaced even when
// empty so stale predictions never survive a run.
func (du *DetectionUsecase) generatePredictions(ctx context.Context, series map[string][]pricesentity.DriverPrice) ([]predentity.Prediction, error) {
	active, err := du.catalog.GetActive(ctx, du.cfg.MinAccuracy)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	preds := make([]predentity.Prediction, 0, len(du.cfg.DriverSymbols))
	for _, driver := range du.cfg.DriverSymbols {
		move, sessionDate, ok := du.aligner.CurrentWindowMove(series[driver], now)
		if !ok {
			slog.Info("driver series too sparse for a current window", "driver", driver)
			continue
		}
		p := du.generate.Generate(driver, move, sessionDate, active)
		if len(p.Forecasts) == 0 {
			// No admitted pattern covers this driver; nothing to call.
			continue
		}
		preds = append(preds, p)
	}

	if err := du.generate.ReplaceActiveSet(ctx, preds); err != nil {
		return nil, err
	}
	return preds, nil
}

// emitSignals runs the spike detector per driver and combines it with that
// driver's fresh prediction.
func (du *DetectionUsecase) emitSignals(ctx context.Context, series map[string][]pricesentity.DriverPrice, preds []predentity.Prediction) {
	byDriver := make(map[string]predentity.Prediction, len(preds))
	for _, p := range preds {
		byDriver[p.DriverSymbol] = p
	}

	for _, driver := range du.cfg.DriverSymbols {
		spike := du.spikes.Detect(series[driver])
		if spike == nil {
			continue
		}

		var predSignal *signalentity.Signal
		if p, ok := byDriver[driver]; ok {
			predSignal = signalusecase.FromPrediction(p)
		}

		alert, err := du.alerts.CombineAndStore(ctx, spike, predSignal)
		if err != nil {
			slog.Error("failed to store combined alert", "driver", driver, "error", err)
			continue
		}
		if alert != nil {
			slog.Info("combined alert emitted",
				"driver", driver, "severity", alert.Severity, "confidence", alert.Confidence)
		}
	}
}

// sweepValidation validates pending predictions whose target session has
// closed and produced data, expires the rest past the horizon, and prunes
// superseded generations.
func (du *DetectionUsecase) sweepValidation(ctx context.Context) {
	pending, err := du.validate.ListPendingAll(ctx)
	if err != nil {
		slog.Error("failed to list pending predictions", "error", err)
		return
	}

	now := time.Now().UTC()
	for _, p := range pending {
		if du.cal.CloseTime(p.TargetSessionDate).After(now) {
			continue
		}
		outcome, ok := du.buildOutcome(ctx, p)
		if !ok {
			// Session data has not arrived; the expiry sweep owns it from here.
			continue
		}
		if _, err := du.validate.Validate(ctx, p.ID, outcome); err != nil {
			if errors.Is(err, preddomain.ErrNotPending) {
				continue
			}
			slog.Error("failed to validate prediction", "prediction_id", p.ID, "error", err)
		}
	}

	if n, err := du.validate.ExpireStale(ctx); err != nil {
		slog.Error("failed to expire stale predictions", "error", err)
	} else if n > 0 {
		slog.Info("expired stale predictions", "count", n)
	}
	if n, err := du.validate.PruneStaleGenerations(ctx); err != nil {
		slog.Error("failed to prune stale generations", "error", err)
	} else if n > 0 {
		slog.Info("pruned superseded predictions", "count", n)
	}
}

// buildOutcome collects realized session moves for a prediction's forecast
// tickers. ok is false when no ticker has data yet.
func (du *DetectionUsecase) buildOutcome(ctx context.Context, p predentity.Prediction) (predusecase.Outcome, bool) {
	moves := make(map[string]float64, len(p.Forecasts))
	var sum float64
	for _, f := range p.Forecasts {
		s, err := du.sessions.Find(ctx, f.Ticker, p.TargetSessionDate)
		if err != nil {
			slog.Error("failed to look up realized session",
				"ticker", f.Ticker, "session_date", p.TargetSessionDate, "error", err)
			continue
		}
		if s == nil || s.PriorClose == 0 {
			// Missing session or unknown baseline; treat as no data rather
			// than score against a fabricated flat move.
			continue
		}
		m := s.MovePct()
		moves[f.Ticker] = m
		sum += m
	}
	if len(moves) == 0 {
		return predusecase.Outcome{}, false
	}
	return predusecase.Outcome{
		TargetMovePct: sum / float64(len(moves)),
		TickerMoves:   moves,
	}, true
}

// Watchdog fails runs stuck in "running" longer than staleAfter. Zero falls
// back to the default.
func (du *DetectionUsecase) Watchdog(ctx context.Context, staleAfter time.Duration) (int64, error) {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleRunAfter
	}
	return du.jobs.FailStale(ctx, time.Now().UTC().Add(-staleAfter))
}

// LastRun reports the most recent detection run, or nil before the first one.
func (du *DetectionUsecase) LastRun(ctx context.Context) (*entity.JobRun, error) {
	return du.jobs.Latest(ctx, JobName)
}

// BuildDashboard assembles the aggregate read model. Every part reads
// last-known persisted state; nothing waits on a running batch.
func (du *DetectionUsecase) BuildDashboard(ctx context.Context) (Dashboard, error) {
	active, err := du.catalog.GetActive(ctx, du.cfg.MinAccuracy)
	if err != nil {
		return Dashboard{}, err
	}
	pending, err := du.generate.ListPending(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	alerts, err := du.alerts.ListRecent(ctx, recentAlertLimit)
	if err != nil {
		return Dashboard{}, err
	}
	stats, err := du.validate.StatsSince(ctx, time.Now().UTC().Add(-statsWindow))
	if err != nil {
		return Dashboard{}, err
	}
	last, err := du.jobs.Latest(ctx, JobName)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		ActivePatterns: active,
		Pending:        pending,
		RecentAlerts:   alerts,
		Stats:          stats,
		LastRun:        last,
	}, nil
}
