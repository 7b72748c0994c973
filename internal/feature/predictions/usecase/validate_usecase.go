package usecase

import (
	"context"
	"log/slog"
	"math"
	"time"

	"crossmarket_backend/internal/feature/predictions/domain/entity"
)

const (
	// DefaultExpiryHorizon is how long a pending prediction may wait for its
	// target session before the sweep expires it.
	DefaultExpiryHorizon = 3 * 24 * time.Hour
)

// PatternOutcomeRecorder is the slice of the pattern catalog the validator
// needs: folding one outcome into a pattern's rolling accuracy.
type PatternOutcomeRecorder interface {
	RecordOutcome(ctx context.Context, patternID uint, wasCorrect bool) error
}

// Outcome is the realized result of a target session.
type Outcome struct {
	TargetMovePct float64            // overall session move vs prior close
	TickerMoves   map[string]float64 // realized move per ticker; absent = no data
}

// ValidateUsecase closes the prediction loop: it compares a pending prediction
// against the realized session and feeds the result back into the catalog.
type ValidateUsecase struct {
	repo    PredictionRepository
	catalog PatternOutcomeRecorder
	horizon time.Duration
}

// NewValidateUsecase creates a ValidateUsecase. A zero horizon falls back to
// the default.
func NewValidateUsecase(repo PredictionRepository, catalog PatternOutcomeRecorder, horizon time.Duration) *ValidateUsecase {
	if horizon <= 0 {
		horizon = DefaultExpiryHorizon
	}
	return &ValidateUsecase{repo: repo, catalog: catalog, horizon: horizon}
}

// Validate transitions a pending prediction to validated and records the
// outcome on its pattern. Validating a prediction that is already terminal
// returns ErrNotPending and changes nothing, so accuracy is never counted
// twice.
func (vu *ValidateUsecase) Validate(ctx context.Context, id uint, outcome Outcome) (entity.Prediction, error) {
	p, err := vu.repo.FindByID(ctx, id)
	if err != nil {
		return entity.Prediction{}, err
	}

	directionCorrect := directionCorrect(p.PredictedDirection, outcome.TargetMovePct)
	tickerAccuracy := tickerAccuracy(p.Forecasts, outcome.TickerMoves)

	validated, err := vu.repo.MarkValidated(ctx, id, outcome.TargetMovePct, directionCorrect, tickerAccuracy)
	if err != nil {
		return entity.Prediction{}, err
	}

	if validated.PatternID != nil {
		if err := vu.catalog.RecordOutcome(ctx, *validated.PatternID, directionCorrect); err != nil {
			// The prediction is already closed; a failed feedback write is a
			// logic-level problem that monitoring must see.
			slog.Error("failed to record validation outcome on pattern",
				"prediction_id", id, "pattern_id", *validated.PatternID, "error", err)
		}
	}
	return validated, nil
}

// ExpireStale expires pending predictions older than the horizon whose target
// session never produced data. Pattern accuracy is left untouched.
func (vu *ValidateUsecase) ExpireStale(ctx context.Context) (int64, error) {
	return vu.repo.MarkExpired(ctx, time.Now().UTC().Add(-vu.horizon))
}

// ListPendingAll exposes the sweep's work list.
func (vu *ValidateUsecase) ListPendingAll(ctx context.Context) ([]entity.Prediction, error) {
	return vu.repo.ListPendingAll(ctx)
}

// History returns recent validated predictions with aggregate accuracy.
func (vu *ValidateUsecase) History(ctx context.Context, limit int) ([]entity.Prediction, ValidationStats, error) {
	preds, err := vu.repo.ListValidated(ctx, limit)
	if err != nil {
		return nil, ValidationStats{}, err
	}
	stats, err := vu.repo.Stats(ctx, time.Time{})
	if err != nil {
		return nil, ValidationStats{}, err
	}
	return preds, stats, nil
}

// PruneStaleGenerations garbage-collects terminal predictions left behind by
// superseded generations.
func (vu *ValidateUsecase) PruneStaleGenerations(ctx context.Context) (int64, error) {
	return vu.repo.PruneStaleGenerations(ctx)
}

// StatsSince returns aggregate accuracy over validations after since.
func (vu *ValidateUsecase) StatsSince(ctx context.Context, since time.Time) (ValidationStats, error) {
	return vu.repo.Stats(ctx, since)
}

// directionCorrect compares the bucket's implied sign with the realized move.
// A neutral call counts as correct when the realized move stayed inside the
// neutral band.
func directionCorrect(d entity.Direction, actualPct float64) bool {
	implied := d.ImpliedSign()
	if implied == 0 {
		return math.Abs(actualPct) <= entity.NeutralBandPct
	}
	switch {
	case actualPct > 0:
		return implied == 1
	case actualPct < 0:
		return implied == -1
	default:
		return false
	}
}

// tickerAccuracy is the fraction of forecasts whose predicted sign matched the
// realized sign, as a percentage. Tickers without realized data are excluded
// from the denominator, not counted as wrong. Returns nil when no ticker had
// data.
func tickerAccuracy(forecasts []entity.TickerForecast, moves map[string]float64) *float64 {
	denom, hits := 0, 0
	for _, f := range forecasts {
		actual, ok := moves[f.Ticker]
		if !ok {
			continue
		}
		denom++
		if sign(f.PredictedChangePct) == sign(actual) {
			hits++
		}
	}
	if denom == 0 {
		return nil
	}
	acc := float64(hits) / float64(denom) * 100
	return &acc
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
