// Package di provides dependency injection factories for creating application components.
package di

import (
	"os"
	"strings"

	"crossmarket_backend/internal/platform/externalapi/polygon"
	"crossmarket_backend/internal/platform/externalapi/twelvedata"
	infrahttp "crossmarket_backend/internal/platform/http"
)

// NewDriverFeed creates the Polygon-backed driver price feed from
// POLYGON_API_KEY.
func NewDriverFeed() *polygon.DriverFeed {
	return polygon.NewDriverFeed(os.Getenv("POLYGON_API_KEY"))
}

// NewTargetFeed creates a fully configured Twelve Data session feed with its
// HTTP client.
func NewTargetFeed() *twelvedata.TwelveDataSessions {
	cfg := twelvedata.LoadConfig()
	httpClient := infrahttp.NewHTTPClient(cfg.Timeout)
	return twelvedata.NewTwelveDataSessions(cfg, httpClient)
}

// DriverSymbols returns the configured driver universe.
func DriverSymbols() []string {
	return splitEnv("DRIVER_SYMBOLS", "BTC,ETH")
}

// TargetSymbols returns the configured target universe.
func TargetSymbols() []string {
	return splitEnv("TARGET_SYMBOLS", "COIN,MSTR,MARA,RIOT")
}

func splitEnv(key, fallback string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
