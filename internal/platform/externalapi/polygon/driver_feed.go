// Package polygon provides a client for the Polygon.io aggregates API used as
// the driver price feed.
package polygon

import (
	"context"
	"fmt"
	"strings"
	"time"

	polygonrest "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"crossmarket_backend/internal/feature/prices/domain/entity"
	"crossmarket_backend/internal/feature/prices/usecase"
)

const (
	aggLimit = 50000
)

// DriverFeed fetches hourly aggregates for continuously traded driver assets.
type DriverFeed struct {
	client *polygonrest.Client
}

// Compile-time check that DriverFeed implements the prices feed interface.
var _ usecase.DriverFeed = (*DriverFeed)(nil)

// NewDriverFeed creates a DriverFeed with the given API key.
func NewDriverFeed(apiKey string) *DriverFeed {
	return &DriverFeed{client: polygonrest.New(apiKey)}
}

// GetPrices fetches hourly close prices for symbol in [from, to], ascending.
// Bare symbols like "BTC" map to the crypto aggregate ticker "X:BTCUSD";
// symbols already carrying a market prefix pass through unchanged.
func (f *DriverFeed) GetPrices(ctx context.Context, symbol string, from, to time.Time) ([]entity.DriverPrice, error) {
	params := models.ListAggsParams{
		Ticker:     aggTicker(symbol),
		Multiplier: 1,
		Timespan:   models.Hour,
		From:       models.Millis(from),
		To:         models.Millis(to),
	}.WithAdjusted(true).WithOrder(models.Asc).WithLimit(aggLimit)

	iter := f.client.ListAggs(ctx, params)

	var prices []entity.DriverPrice
	for iter.Next() {
		agg := iter.Item()
		prices = append(prices, entity.DriverPrice{
			Symbol:    symbol,
			Timestamp: time.Time(agg.Timestamp).UTC(),
			Price:     agg.Close,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("polygon aggs %s: %w", symbol, err)
	}
	return prices, nil
}

// aggTicker maps a bare crypto symbol onto its Polygon aggregate ticker.
func aggTicker(symbol string) string {
	if strings.Contains(symbol, ":") {
		return symbol
	}
	return "X:" + strings.ToUpper(symbol) + "USD"
}
