// Package adapters provides the repository implementations for the signals feature.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"crossmarket_backend/internal/feature/signals/domain/entity"
	"crossmarket_backend/internal/feature/signals/usecase"
)

type alertPostgres struct {
	db *gorm.DB
}

var _ usecase.AlertRepository = (*alertPostgres)(nil)

// NewAlertRepository creates the relational combined-alert store.
func NewAlertRepository(db *gorm.DB) *alertPostgres {
	return &alertPostgres{db: db}
}

// CombinedAlertModel is the persistence model for combined alerts. Rows are
// insert-only.
type CombinedAlertModel struct {
	ID             uint   `gorm:"primaryKey"`
	ComponentsJSON string `gorm:"type:text"`
	Direction      int    `gorm:"not null"`
	Severity       string `gorm:"size:16;not null"`
	Confidence     float64
	ForecastsJSON  string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"index"`
}

func (CombinedAlertModel) TableName() string {
	return "combined_alerts"
}

func (r *alertPostgres) Insert(ctx context.Context, alert *entity.CombinedAlert) error {
	components, err := json.Marshal(alert.Components)
	if err != nil {
		return fmt.Errorf("marshal components: %w", err)
	}
	forecasts, err := json.Marshal(alert.Forecasts)
	if err != nil {
		return fmt.Errorf("marshal forecasts: %w", err)
	}
	m := CombinedAlertModel{
		ComponentsJSON: string(components),
		Direction:      alert.Direction,
		Severity:       alert.Severity,
		Confidence:     alert.Confidence,
		ForecastsJSON:  string(forecasts),
		CreatedAt:      alert.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	alert.ID = m.ID
	return nil
}

func (r *alertPostgres) ListRecent(ctx context.Context, limit int) ([]entity.CombinedAlert, error) {
	var rows []CombinedAlertModel
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]entity.CombinedAlert, 0, len(rows))
	for _, m := range rows {
		var components []string
		if m.ComponentsJSON != "" {
			if err := json.Unmarshal([]byte(m.ComponentsJSON), &components); err != nil {
				return nil, fmt.Errorf("unmarshal components: %w", err)
			}
		}
		var forecasts []entity.TickerSignal
		if m.ForecastsJSON != "" {
			if err := json.Unmarshal([]byte(m.ForecastsJSON), &forecasts); err != nil {
				return nil, fmt.Errorf("unmarshal forecasts: %w", err)
			}
		}
		out = append(out, entity.CombinedAlert{
			ID:         m.ID,
			Components: components,
			Direction:  m.Direction,
			Severity:   m.Severity,
			Confidence: m.Confidence,
			Forecasts:  forecasts,
			CreatedAt:  m.CreatedAt,
		})
	}
	return out, nil
}
