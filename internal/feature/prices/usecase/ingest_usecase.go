package usecase

import (
	"context"
	"log/slog"
	"time"

	"crossmarket_backend/internal/feature/prices/domain/entity"
	"crossmarket_backend/internal/shared/ratelimiter"
)

const (
	// driverLookback is how far back driver observations are pulled per run.
	driverLookback = 14 * 24 * time.Hour
	// targetOutputSize is the number of sessions fetched per target symbol.
	targetOutputSize = 90
)

// DriverFeed fetches observations for a continuously traded driver asset from
// an external source.
type DriverFeed interface {
	GetPrices(ctx context.Context, symbol string, from, to time.Time) ([]entity.DriverPrice, error)
}

// TargetFeed fetches completed sessions for a fixed-session target asset from
// an external source.
type TargetFeed interface {
	GetSessions(ctx context.Context, symbol string, outputsize int) ([]entity.TargetSession, error)
}

// IngestUsecase pulls price series from external feeds and persists them.
type IngestUsecase struct {
	driverFeed  DriverFeed
	targetFeed  TargetFeed
	drivers     DriverPriceRepository
	targets     TargetSessionRepository
	rateLimiter ratelimiter.RateLimiterInterface
}

// NewIngestUsecase creates a new IngestUsecase.
func NewIngestUsecase(driverFeed DriverFeed, targetFeed TargetFeed,
	drivers DriverPriceRepository, targets TargetSessionRepository,
	rateLimiter ratelimiter.RateLimiterInterface) *IngestUsecase {
	return &IngestUsecase{
		driverFeed:  driverFeed,
		targetFeed:  targetFeed,
		drivers:     drivers,
		targets:     targets,
		rateLimiter: rateLimiter,
	}
}

// ingestDriver fetches the trailing driver series for one symbol and persists it.
func (iu *IngestUsecase) ingestDriver(ctx context.Context, symbol string) error {
	now := time.Now().UTC()
	prices, err := iu.driverFeed.GetPrices(ctx, symbol, now.Add(-driverLookback), now)
	if err != nil {
		return err
	}
	if len(prices) == 0 {
		return ErrNoData
	}
	for i := range prices {
		prices[i].Symbol = symbol
	}
	return iu.drivers.UpsertBatch(ctx, prices)
}

// ingestTarget fetches recent sessions for one symbol and persists them.
func (iu *IngestUsecase) ingestTarget(ctx context.Context, symbol string) error {
	sessions, err := iu.targetFeed.GetSessions(ctx, symbol, targetOutputSize)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return ErrNoData
	}
	for i := range sessions {
		sessions[i].Symbol = symbol
	}
	return iu.targets.UpsertBatch(ctx, sessions)
}

// IngestAll pulls every driver and target symbol in turn. A failing symbol is
// logged and skipped so one slow or broken source never aborts the whole run.
func (iu *IngestUsecase) IngestAll(ctx context.Context, driverSymbols, targetSymbols []string) error {
	for _, s := range driverSymbols {
		iu.rateLimiter.WaitIfNeeded()
		if err := iu.ingestDriver(ctx, s); err != nil {
			slog.Error("failed to ingest driver prices", "symbol", s, "error", err)
			continue
		}
	}
	for _, s := range targetSymbols {
		iu.rateLimiter.WaitIfNeeded()
		if err := iu.ingestTarget(ctx, s); err != nil {
			slog.Error("failed to ingest target sessions", "symbol", s, "error", err)
			continue
		}
	}
	return nil
}
