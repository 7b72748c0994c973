// Package adapters provides the repository implementations for the patterns feature.
package adapters

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crossmarket_backend/internal/feature/patterns/domain"
	"crossmarket_backend/internal/feature/patterns/domain/entity"
	"crossmarket_backend/internal/feature/patterns/usecase"
)

type patternPostgres struct {
	db *gorm.DB
}

var _ usecase.PatternRepository = (*patternPostgres)(nil)

// NewPatternRepository creates the relational pattern catalog.
func NewPatternRepository(db *gorm.DB) *patternPostgres {
	return &patternPostgres{db: db}
}

// PatternModel is the persistence model for correlation patterns.
type PatternModel struct {
	ID           uint      `gorm:"primaryKey"`
	DriverSymbol string    `gorm:"size:32;not null;uniqueIndex:pattern_driver_target,priority:1"`
	TargetSymbol string    `gorm:"size:32;not null;uniqueIndex:pattern_driver_target,priority:2"`
	Coefficient  float64   `gorm:"not null"`
	SampleSize   int       `gorm:"not null;default:0"`
	AccuracyRate float64   `gorm:"not null;default:0"`
	Status       string    `gorm:"size:16;not null;index"`
	LastUpdated  time.Time `gorm:"not null"`
}

func (PatternModel) TableName() string {
	return "correlation_patterns"
}

func toPatternModel(e entity.CorrelationPattern) PatternModel {
	return PatternModel{
		ID:           e.ID,
		DriverSymbol: e.DriverSymbol,
		TargetSymbol: e.TargetSymbol,
		Coefficient:  e.Coefficient,
		SampleSize:   e.SampleSize,
		AccuracyRate: e.AccuracyRate,
		Status:       string(e.Status),
		LastUpdated:  e.LastUpdated,
	}
}

func toPatternEntity(m PatternModel) entity.CorrelationPattern {
	return entity.CorrelationPattern{
		ID:           m.ID,
		DriverSymbol: m.DriverSymbol,
		TargetSymbol: m.TargetSymbol,
		Coefficient:  m.Coefficient,
		SampleSize:   m.SampleSize,
		AccuracyRate: m.AccuracyRate,
		Status:       entity.PatternStatus(m.Status),
		LastUpdated:  m.LastUpdated,
	}
}

func (r *patternPostgres) Upsert(ctx context.Context, p entity.CorrelationPattern) error {
	m := toPatternModel(p)
	m.ID = 0

	// accuracy_rate is deliberately absent from the update set: once a row
	// exists, only RecordOutcome may move its rolling accuracy.
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "driver_symbol"}, {Name: "target_symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"coefficient", "sample_size", "status", "last_updated"}),
	}).Create(&m).Error
}

func (r *patternPostgres) GetActive(ctx context.Context, minAccuracy float64) ([]entity.CorrelationPattern, error) {
	var rows []PatternModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND accuracy_rate >= ?", string(entity.PatternAdmitted), minAccuracy).
		Order("accuracy_rate DESC, sample_size DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]entity.CorrelationPattern, 0, len(rows))
	for _, m := range rows {
		out = append(out, toPatternEntity(m))
	}
	return out, nil
}

// FindBySymbols returns the pattern for the (driver, target) pair, or
// ErrPatternNotFound.
func (r *patternPostgres) FindBySymbols(ctx context.Context, driverSymbol, targetSymbol string) (entity.CorrelationPattern, error) {
	var row PatternModel
	err := r.db.WithContext(ctx).
		Where("driver_symbol = ? AND target_symbol = ?", driverSymbol, targetSymbol).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entity.CorrelationPattern{}, domain.ErrPatternNotFound
	}
	if err != nil {
		return entity.CorrelationPattern{}, err
	}
	return toPatternEntity(row), nil
}

// RecordOutcome folds one validation outcome into the rolling accuracy:
//
//	new_rate = (old_rate*n + (correct ? 100 : 0)) / (n+1); n = n+1
//
// The row is locked for the duration of the transaction so concurrent
// validations of different predictions referencing the same pattern cannot
// lose updates.
func (r *patternPostgres) RecordOutcome(ctx context.Context, patternID uint, wasCorrect bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row PatternModel
		q := tx.Where("id = ?", patternID)
		if tx.Dialector.Name() == "postgres" {
			// sqlite (tests) has no FOR UPDATE; its writes are already
			// serialized by the single-writer file lock.
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrPatternNotFound
			}
			return err
		}

		score := 0.0
		if wasCorrect {
			score = 100.0
		}
		n := float64(row.SampleSize)
		row.AccuracyRate = (row.AccuracyRate*n + score) / (n + 1)
		row.SampleSize++
		row.LastUpdated = time.Now().UTC()

		return tx.Model(&PatternModel{}).Where("id = ?", row.ID).Updates(map[string]any{
			"accuracy_rate": row.AccuracyRate,
			"sample_size":   row.SampleSize,
			"last_updated":  row.LastUpdated,
		}).Error
	})
}
