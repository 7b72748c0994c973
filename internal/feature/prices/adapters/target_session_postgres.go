package adapters

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crossmarket_backend/internal/feature/prices/domain/entity"
	"crossmarket_backend/internal/feature/prices/usecase"
)

type targetSessionPostgres struct {
	db *gorm.DB
}

var _ usecase.TargetSessionRepository = (*targetSessionPostgres)(nil)

// NewTargetSessionRepository creates the relational repository for target
// sessions.
func NewTargetSessionRepository(db *gorm.DB) *targetSessionPostgres {
	return &targetSessionPostgres{db: db}
}

// TargetSessionModel is the persistence model for target sessions.
type TargetSessionModel struct {
	ID          uint      `gorm:"primaryKey"`
	Symbol      string    `gorm:"size:32;not null;uniqueIndex:target_sym_date,priority:1"`
	SessionDate time.Time `gorm:"not null;uniqueIndex:target_sym_date,priority:2"`
	Open        float64   `gorm:"not null"`
	Close       float64   `gorm:"not null"`
	PriorClose  float64   `gorm:"not null;default:0"`
}

func (TargetSessionModel) TableName() string {
	return "target_prices"
}

func toSessionModel(e entity.TargetSession) TargetSessionModel {
	return TargetSessionModel{
		Symbol:      e.Symbol,
		SessionDate: e.SessionDate,
		Open:        e.Open,
		Close:       e.Close,
		PriorClose:  e.PriorClose,
	}
}

func toSessionEntity(m TargetSessionModel) entity.TargetSession {
	return entity.TargetSession{
		Symbol:      m.Symbol,
		SessionDate: m.SessionDate,
		Open:        m.Open,
		Close:       m.Close,
		PriorClose:  m.PriorClose,
	}
}

func (r *targetSessionPostgres) UpsertBatch(ctx context.Context, sessions []entity.TargetSession) error {
	if len(sessions) == 0 {
		return nil
	}
	ms := make([]TargetSessionModel, 0, len(sessions))
	for _, e := range sessions {
		ms = append(ms, toSessionModel(e))
	}

	// Sessions can be re-fetched while still settling, so conflicting rows
	// are refreshed with the latest values.
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "session_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"open", "close", "prior_close"}),
	}).Create(&ms).Error
}

func (r *targetSessionPostgres) FindRange(ctx context.Context, symbol string, from, to time.Time) ([]entity.TargetSession, error) {
	var rows []TargetSessionModel
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND session_date >= ? AND session_date <= ?", symbol, from, to).
		Order("session_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]entity.TargetSession, 0, len(rows))
	for _, m := range rows {
		out = append(out, toSessionEntity(m))
	}
	return out, nil
}

func (r *targetSessionPostgres) Find(ctx context.Context, symbol string, day time.Time) (*entity.TargetSession, error) {
	var row TargetSessionModel
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND session_date = ?", symbol, day).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e := toSessionEntity(row)
	return &e, nil
}
