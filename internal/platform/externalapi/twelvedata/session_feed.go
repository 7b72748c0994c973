package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"crossmarket_backend/internal/feature/prices/domain/entity"
	"crossmarket_backend/internal/feature/prices/usecase"
	"crossmarket_backend/internal/platform/externalapi/twelvedata/dto"
)

// TwelveDataSessions fetches daily bars from the Twelve Data API and converts
// them into completed target sessions.
type TwelveDataSessions struct {
	cfg    Config
	client *http.Client
}

// Compile-time check that TwelveDataSessions implements TargetFeed.
var _ usecase.TargetFeed = (*TwelveDataSessions)(nil)

// NewTwelveDataSessions creates a new TwelveDataSessions with the given
// configuration and HTTP client.
func NewTwelveDataSessions(cfg Config, client *http.Client) *TwelveDataSessions {
	return &TwelveDataSessions{cfg: cfg, client: client}
}

// GetSessions fetches the most recent outputsize daily bars for symbol. Each
// session's prior close comes from the adjacent older bar, so one extra bar is
// requested and the oldest bar is consumed as prior-close material only.
func (t *TwelveDataSessions) GetSessions(ctx context.Context, symbol string, outputsize int) ([]entity.TargetSession, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", "1day")
	q.Set("outputsize", strconv.Itoa(outputsize+1))
	q.Set("apikey", t.cfg.TwelveDataAPIKey)

	u := fmt.Sprintf("%s/time_series?%s", t.cfg.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	res, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("twelvedata http %d", res.StatusCode)
	}

	var body dto.TimeSeriesResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.Status == "error" {
		return nil, fmt.Errorf("twelvedata: %s", body.Message)
	}

	// The API returns bars newest-first; walk oldest to newest so each bar can
	// take its prior close from the one before it.
	n := len(body.Values)
	sessions := make([]entity.TargetSession, 0, n)
	var priorClose float64
	for i := n - 1; i >= 0; i-- {
		v := body.Values[i]

		day, err := time.Parse("2006-01-02 15:04:05", v.Datetime)
		if err != nil {
			day, err = time.Parse("2006-01-02", v.Datetime)
			if err != nil {
				return nil, fmt.Errorf("parse time %q: %w", v.Datetime, err)
			}
		}
		o, err := strconv.ParseFloat(v.Open, 64)
		if err != nil {
			return nil, fmt.Errorf("parse open %q: %w", v.Open, err)
		}
		c, err := strconv.ParseFloat(v.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("parse close %q: %w", v.Close, err)
		}

		if i < n-1 {
			sessions = append(sessions, entity.TargetSession{
				Symbol:      symbol,
				SessionDate: day.UTC(),
				Open:        o,
				Close:       c,
				PriorClose:  priorClose,
			})
		}
		priorClose = c
	}
	return sessions, nil
}
