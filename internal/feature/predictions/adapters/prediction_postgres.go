// Package adapters provides the repository implementations for the predictions feature.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crossmarket_backend/internal/feature/predictions/domain"
	"crossmarket_backend/internal/feature/predictions/domain/entity"
	"crossmarket_backend/internal/feature/predictions/usecase"
)

// predictionScope keys the generation pointer row for the prediction set.
const predictionScope = "predictions"

type predictionPostgres struct {
	db *gorm.DB
}

var _ usecase.PredictionRepository = (*predictionPostgres)(nil)

// NewPredictionRepository creates the relational prediction store.
func NewPredictionRepository(db *gorm.DB) *predictionPostgres {
	return &predictionPostgres{db: db}
}

// PredictionModel is the persistence model for predictions. Forecasts are
// stored as a JSON document.
type PredictionModel struct {
	ID                 uint   `gorm:"primaryKey"`
	PatternID          *uint  `gorm:"index"`
	DriverSymbol       string `gorm:"size:32;not null;index"`
	DriverMovePct      float64
	PredictedDirection string `gorm:"size:16;not null"`
	Confidence         float64
	ForecastsJSON      string    `gorm:"type:text"`
	TargetSessionDate  time.Time `gorm:"not null;index"`
	Status             string    `gorm:"size:16;not null;index"`
	ActualOutcome      *float64
	DirectionCorrect   *bool
	TickerAccuracy     *float64
	Generation         int64 `gorm:"not null;index"`
	CreatedAt          time.Time
	ValidatedAt        *time.Time
}

func (PredictionModel) TableName() string {
	return "predictions"
}

// GenerationModel is the current-generation pointer. Readers of the active set
// filter by Current; the pointer flips atomically inside ReplaceActiveSet.
type GenerationModel struct {
	ID      uint   `gorm:"primaryKey"`
	Scope   string `gorm:"size:32;not null;uniqueIndex"`
	Current int64  `gorm:"not null;default:0"`
}

func (GenerationModel) TableName() string {
	return "generations"
}

func toPredictionModel(e entity.Prediction) (PredictionModel, error) {
	forecasts, err := json.Marshal(e.Forecasts)
	if err != nil {
		return PredictionModel{}, fmt.Errorf("marshal forecasts: %w", err)
	}
	return PredictionModel{
		ID:                 e.ID,
		PatternID:          e.PatternID,
		DriverSymbol:       e.DriverSymbol,
		DriverMovePct:      e.DriverMovePct,
		PredictedDirection: string(e.PredictedDirection),
		Confidence:         e.Confidence,
		ForecastsJSON:      string(forecasts),
		TargetSessionDate:  e.TargetSessionDate,
		Status:             string(e.Status),
		ActualOutcome:      e.ActualOutcome,
		DirectionCorrect:   e.DirectionCorrect,
		TickerAccuracy:     e.TickerAccuracy,
		Generation:         e.Generation,
		CreatedAt:          e.CreatedAt,
		ValidatedAt:        e.ValidatedAt,
	}, nil
}

func toPredictionEntity(m PredictionModel) (entity.Prediction, error) {
	var forecasts []entity.TickerForecast
	if m.ForecastsJSON != "" {
		if err := json.Unmarshal([]byte(m.ForecastsJSON), &forecasts); err != nil {
			return entity.Prediction{}, fmt.Errorf("unmarshal forecasts: %w", err)
		}
	}
	return entity.Prediction{
		ID:                 m.ID,
		PatternID:          m.PatternID,
		DriverSymbol:       m.DriverSymbol,
		DriverMovePct:      m.DriverMovePct,
		PredictedDirection: entity.Direction(m.PredictedDirection),
		Confidence:         m.Confidence,
		Forecasts:          forecasts,
		TargetSessionDate:  m.TargetSessionDate,
		Status:             entity.PredictionStatus(m.Status),
		ActualOutcome:      m.ActualOutcome,
		DirectionCorrect:   m.DirectionCorrect,
		TickerAccuracy:     m.TickerAccuracy,
		Generation:         m.Generation,
		CreatedAt:          m.CreatedAt,
		ValidatedAt:        m.ValidatedAt,
	}, nil
}

// lockIfPostgres adds a row lock on dialects that support it. sqlite (tests)
// serializes writers on its own.
func lockIfPostgres(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (r *predictionPostgres) ReplaceActiveSet(ctx context.Context, preds []entity.Prediction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var gen GenerationModel
		err := lockIfPostgres(tx).Where("scope = ?", predictionScope).First(&gen).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			gen = GenerationModel{Scope: predictionScope, Current: 0}
			if err := tx.Create(&gen).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		next := gen.Current + 1
		for _, p := range preds {
			m, err := toPredictionModel(p)
			if err != nil {
				return err
			}
			m.ID = 0
			m.Generation = next
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		}

		// Rows first, pointer last: a reader either still sees the old
		// generation complete or the new one complete, never a partial set.
		return tx.Model(&GenerationModel{}).
			Where("scope = ?", predictionScope).
			Update("current", next).Error
	})
}

func (r *predictionPostgres) currentGeneration(ctx context.Context) (int64, error) {
	var gen GenerationModel
	err := r.db.WithContext(ctx).Where("scope = ?", predictionScope).First(&gen).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return gen.Current, nil
}

func (r *predictionPostgres) ListPending(ctx context.Context) ([]entity.Prediction, error) {
	current, err := r.currentGeneration(ctx)
	if err != nil {
		return nil, err
	}
	var rows []PredictionModel
	err = r.db.WithContext(ctx).
		Where("status = ? AND generation = ?", string(entity.PredictionPending), current).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toEntities(rows)
}

func (r *predictionPostgres) ListPendingAll(ctx context.Context) ([]entity.Prediction, error) {
	var rows []PredictionModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(entity.PredictionPending)).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toEntities(rows)
}

func (r *predictionPostgres) FindByID(ctx context.Context, id uint) (entity.Prediction, error) {
	var row PredictionModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entity.Prediction{}, domain.ErrPredictionNotFound
	}
	if err != nil {
		return entity.Prediction{}, err
	}
	return toPredictionEntity(row)
}

// MarkValidated is the only legal pending -> validated transition. The row is
// locked and re-checked inside the transaction so two concurrent validations
// of the same prediction cannot both succeed.
func (r *predictionPostgres) MarkValidated(ctx context.Context, id uint, actual float64, directionCorrect bool, tickerAccuracy *float64) (entity.Prediction, error) {
	var out entity.Prediction
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row PredictionModel
		err := lockIfPostgres(tx).Where("id = ?", id).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrPredictionNotFound
		}
		if err != nil {
			return err
		}
		if row.Status != string(entity.PredictionPending) {
			return domain.ErrNotPending
		}

		now := time.Now().UTC()
		row.Status = string(entity.PredictionValidated)
		row.ActualOutcome = &actual
		row.DirectionCorrect = &directionCorrect
		row.TickerAccuracy = tickerAccuracy
		row.ValidatedAt = &now

		if err := tx.Model(&PredictionModel{}).Where("id = ?", id).Updates(map[string]any{
			"status":            row.Status,
			"actual_outcome":    row.ActualOutcome,
			"direction_correct": row.DirectionCorrect,
			"ticker_accuracy":   row.TickerAccuracy,
			"validated_at":      row.ValidatedAt,
		}).Error; err != nil {
			return err
		}

		out, err = toPredictionEntity(row)
		return err
	})
	if err != nil {
		return entity.Prediction{}, err
	}
	return out, nil
}

func (r *predictionPostgres) MarkExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&PredictionModel{}).
		Where("status = ? AND created_at < ?", string(entity.PredictionPending), olderThan).
		Update("status", string(entity.PredictionExpired))
	return res.RowsAffected, res.Error
}

func (r *predictionPostgres) ListValidated(ctx context.Context, limit int) ([]entity.Prediction, error) {
	var rows []PredictionModel
	q := r.db.WithContext(ctx).
		Where("status = ?", string(entity.PredictionValidated)).
		Order("validated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toEntities(rows)
}

func (r *predictionPostgres) Stats(ctx context.Context, since time.Time) (usecase.ValidationStats, error) {
	var stats usecase.ValidationStats

	q := r.db.WithContext(ctx).Model(&PredictionModel{}).
		Where("status = ?", string(entity.PredictionValidated))
	if !since.IsZero() {
		q = q.Where("validated_at >= ?", since)
	}
	if err := q.Count(&stats.Validated).Error; err != nil {
		return stats, err
	}
	if stats.Validated == 0 {
		return stats, nil
	}

	qc := r.db.WithContext(ctx).Model(&PredictionModel{}).
		Where("status = ? AND direction_correct = ?", string(entity.PredictionValidated), true)
	if !since.IsZero() {
		qc = qc.Where("validated_at >= ?", since)
	}
	if err := qc.Count(&stats.Correct).Error; err != nil {
		return stats, err
	}

	// Predictions with no per-ticker data (NULL accuracy) stay out of the mean.
	var avg *float64
	qa := r.db.WithContext(ctx).Model(&PredictionModel{}).
		Where("status = ? AND ticker_accuracy IS NOT NULL", string(entity.PredictionValidated))
	if !since.IsZero() {
		qa = qa.Where("validated_at >= ?", since)
	}
	if err := qa.Select("AVG(ticker_accuracy)").Scan(&avg).Error; err != nil {
		return stats, err
	}
	if avg != nil {
		stats.AvgAccuracy = *avg
	}
	return stats, nil
}

func (r *predictionPostgres) PruneStaleGenerations(ctx context.Context) (int64, error) {
	current, err := r.currentGeneration(ctx)
	if err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).
		Where("generation < ? AND status <> ?", current, string(entity.PredictionPending)).
		Delete(&PredictionModel{})
	return res.RowsAffected, res.Error
}

func toEntities(rows []PredictionModel) ([]entity.Prediction, error) {
	out := make([]entity.Prediction, 0, len(rows))
	for _, m := range rows {
		e, err := toPredictionEntity(m)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
