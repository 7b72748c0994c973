// Package usecase implements signal aggregation and the event-driven spike
// detector.
package usecase

import (
	"context"
	"sort"
	"time"

	predentity "crossmarket_backend/internal/feature/predictions/domain/entity"
	"crossmarket_backend/internal/feature/signals/domain/entity"
)

const (
	// agreementBoost rewards independent agreement between detectors.
	agreementBoost = 1.15
	// confidenceCap keeps composite confidence below false certainty.
	confidenceCap = 0.95
	// maxMergedTickers bounds the merged forecast list.
	maxMergedTickers = 15
)

// AlertRepository abstracts durable combined-alert storage.
type AlertRepository interface {
	Insert(ctx context.Context, alert *entity.CombinedAlert) error
	ListRecent(ctx context.Context, limit int) ([]entity.CombinedAlert, error)
}

// AggregateUsecase combines independent signals into higher-confidence alerts.
type AggregateUsecase struct {
	alerts AlertRepository
}

// NewAggregateUsecase creates a new AggregateUsecase.
func NewAggregateUsecase(alerts AlertRepository) *AggregateUsecase {
	return &AggregateUsecase{alerts: alerts}
}

// Combine merges two signals into a composite alert. It returns nil unless
// both signals are present and their directional implications agree; a nil
// result means "no composite", not an error.
func (au *AggregateUsecase) Combine(a, b *entity.Signal) *entity.CombinedAlert {
	if a == nil || b == nil {
		return nil
	}
	if a.Direction == 0 || b.Direction == 0 || a.Direction != b.Direction {
		return nil
	}

	confidence := (a.Confidence + b.Confidence) / 2 * agreementBoost
	if confidence > confidenceCap {
		confidence = confidenceCap
	}

	return &entity.CombinedAlert{
		Components: []string{a.Kind, b.Kind},
		Direction:  a.Direction,
		Severity:   severityFor(confidence),
		Confidence: confidence,
		Forecasts:  mergeTickers(a.Tickers, b.Tickers),
		CreatedAt:  time.Now().UTC(),
	}
}

// CombineAndStore combines two signals and persists the alert when one is
// produced.
func (au *AggregateUsecase) CombineAndStore(ctx context.Context, a, b *entity.Signal) (*entity.CombinedAlert, error) {
	alert := au.Combine(a, b)
	if alert == nil {
		return nil, nil
	}
	if err := au.alerts.Insert(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// ListRecent returns the most recent combined alerts.
func (au *AggregateUsecase) ListRecent(ctx context.Context, limit int) ([]entity.CombinedAlert, error) {
	return au.alerts.ListRecent(ctx, limit)
}

// FromPrediction adapts a prediction into the common signal shape.
func FromPrediction(p predentity.Prediction) *entity.Signal {
	tickers := make([]entity.TickerSignal, 0, len(p.Forecasts))
	for _, f := range p.Forecasts {
		tickers = append(tickers, entity.TickerSignal{
			Ticker:              f.Ticker,
			PredictedChangePct:  f.PredictedChangePct,
			CorrelationStrength: f.CorrelationScore,
		})
	}
	return &entity.Signal{
		Kind:       "cross_market",
		Direction:  p.PredictedDirection.ImpliedSign(),
		Confidence: p.Confidence,
		Tickers:    tickers,
	}
}

// mergeTickers merges per-ticker forecasts: tickers on both sides take the
// stronger correlation and the averaged change; one-sided tickers pass through
// unchanged. The result is sorted by correlation strength descending and
// truncated.
func mergeTickers(a, b []entity.TickerSignal) []entity.TickerSignal {
	merged := make(map[string]entity.TickerSignal, len(a)+len(b))
	for _, t := range a {
		merged[t.Ticker] = t
	}
	for _, t := range b {
		prev, ok := merged[t.Ticker]
		if !ok {
			merged[t.Ticker] = t
			continue
		}
		strength := prev.CorrelationStrength
		if t.CorrelationStrength > strength {
			strength = t.CorrelationStrength
		}
		merged[t.Ticker] = entity.TickerSignal{
			Ticker:              t.Ticker,
			PredictedChangePct:  (prev.PredictedChangePct + t.PredictedChangePct) / 2,
			CorrelationStrength: strength,
		}
	}

	out := make([]entity.TickerSignal, 0, len(merged))
	for _, t := range merged {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CorrelationStrength != out[j].CorrelationStrength {
			return out[i].CorrelationStrength > out[j].CorrelationStrength
		}
		return out[i].Ticker < out[j].Ticker
	})
	if len(out) > maxMergedTickers {
		out = out[:maxMergedTickers]
	}
	return out
}

func severityFor(confidence float64) string {
	switch {
	case confidence >= 0.85:
		return entity.SeverityHigh
	case confidence >= 0.70:
		return entity.SeverityElevated
	default:
		return entity.SeverityModerate
	}
}
