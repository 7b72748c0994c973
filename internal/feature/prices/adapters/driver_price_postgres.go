// Package adapters provides the repository implementations for the prices feature.
package adapters

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crossmarket_backend/internal/feature/prices/domain/entity"
	"crossmarket_backend/internal/feature/prices/usecase"
)

type driverPricePostgres struct {
	db *gorm.DB
}

var _ usecase.DriverPriceRepository = (*driverPricePostgres)(nil)

// NewDriverPriceRepository creates the relational repository for driver
// observations.
func NewDriverPriceRepository(db *gorm.DB) *driverPricePostgres {
	return &driverPricePostgres{db: db}
}

// DriverPriceModel is the persistence model for driver observations.
// The series is append-only: conflicting rows are left untouched.
type DriverPriceModel struct {
	ID        uint      `gorm:"primaryKey"`
	Symbol    string    `gorm:"size:32;not null;uniqueIndex:driver_sym_time,priority:1"`
	Timestamp time.Time `gorm:"not null;uniqueIndex:driver_sym_time,priority:2"`
	Price     float64   `gorm:"not null"`
}

func (DriverPriceModel) TableName() string {
	return "driver_prices"
}

func toDriverModel(e entity.DriverPrice) DriverPriceModel {
	return DriverPriceModel{
		Symbol:    e.Symbol,
		Timestamp: e.Timestamp,
		Price:     e.Price,
	}
}

func (r *driverPricePostgres) UpsertBatch(ctx context.Context, prices []entity.DriverPrice) error {
	if len(prices) == 0 {
		return nil
	}
	ms := make([]DriverPriceModel, 0, len(prices))
	for _, e := range prices {
		ms = append(ms, toDriverModel(e))
	}

	// Observations are immutable once written, so conflicts are skipped
	// instead of updated.
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "timestamp"}},
		DoNothing: true,
	}).Create(&ms).Error
}

func (r *driverPricePostgres) FindRange(ctx context.Context, symbol string, from, to time.Time) ([]entity.DriverPrice, error) {
	var rows []DriverPriceModel
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND timestamp >= ? AND timestamp <= ?", symbol, from, to).
		Order("timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]entity.DriverPrice, 0, len(rows))
	for _, m := range rows {
		out = append(out, entity.DriverPrice{
			Symbol:    m.Symbol,
			Timestamp: m.Timestamp,
			Price:     m.Price,
		})
	}
	return out, nil
}
