// Package usecase implements the business logic for price series storage and
// retrieval.
package usecase

import (
	"context"
	"time"

	"crossmarket_backend/internal/feature/prices/domain/entity"
)

// DriverPriceRepository abstracts the storage layer for driver observations.
// Following Go convention: interfaces are defined by the consumer (usecase),
// not the provider (adapters).
type DriverPriceRepository interface {
	// UpsertBatch stores observations, ignoring duplicates on (symbol, timestamp).
	UpsertBatch(ctx context.Context, prices []entity.DriverPrice) error
	// FindRange returns observations for symbol in [from, to], ascending by timestamp.
	FindRange(ctx context.Context, symbol string, from, to time.Time) ([]entity.DriverPrice, error)
}

// TargetSessionRepository abstracts the storage layer for target sessions.
type TargetSessionRepository interface {
	// UpsertBatch stores sessions, updating duplicates on (symbol, session_date).
	UpsertBatch(ctx context.Context, sessions []entity.TargetSession) error
	// FindRange returns sessions for symbol in [from, to], ascending by session date.
	FindRange(ctx context.Context, symbol string, from, to time.Time) ([]entity.TargetSession, error)
	// Find returns the session for symbol on the given day, or nil when the
	// session has not produced data yet.
	Find(ctx context.Context, symbol string, day time.Time) (*entity.TargetSession, error)
}

// PricesUsecase exposes read paths over stored price series. Reads always
// return last-known persisted state and never wait on a running batch.
type PricesUsecase struct {
	drivers DriverPriceRepository
	targets TargetSessionRepository
}

// NewPricesUsecase creates a new PricesUsecase.
func NewPricesUsecase(drivers DriverPriceRepository, targets TargetSessionRepository) *PricesUsecase {
	return &PricesUsecase{drivers: drivers, targets: targets}
}

// DriverSeries returns the stored driver series for symbol over the trailing
// lookback period, ascending by timestamp.
func (pu *PricesUsecase) DriverSeries(ctx context.Context, symbol string, lookback time.Duration) ([]entity.DriverPrice, error) {
	now := time.Now().UTC()
	return pu.drivers.FindRange(ctx, symbol, now.Add(-lookback), now)
}

// TargetSessions returns the stored sessions for symbol over the trailing
// lookback period, ascending by session date.
func (pu *PricesUsecase) TargetSessions(ctx context.Context, symbol string, lookback time.Duration) ([]entity.TargetSession, error) {
	now := time.Now().UTC()
	return pu.targets.FindRange(ctx, symbol, now.Add(-lookback), now)
}
