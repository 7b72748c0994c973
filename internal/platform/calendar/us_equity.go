// Package calendar provides trading-session calendars for target markets.
package calendar

import (
	"log"
	"time"

	alignusecase "crossmarket_backend/internal/feature/alignment/usecase"
)

// US equity session times, local to the exchange.
const (
	openHour    = 9
	openMinute  = 30
	closeHour   = 16
	closeMinute = 0
)

// usMarketHolidays are full-day US equity closures. Early-close half days are
// treated as regular sessions here.
var usMarketHolidays = []string{
	// 2024
	"2024-01-01", "2024-01-15", "2024-02-19", "2024-03-29", "2024-05-27",
	"2024-06-19", "2024-07-04", "2024-09-02", "2024-11-28", "2024-12-25",
	// 2025
	"2025-01-01", "2025-01-09", "2025-01-20", "2025-02-17", "2025-04-18",
	"2025-05-26", "2025-06-19", "2025-07-04", "2025-09-01", "2025-11-27",
	"2025-12-25",
	// 2026
	"2026-01-01", "2026-01-19", "2026-02-16", "2026-04-03", "2026-05-25",
	"2026-06-19", "2026-07-03", "2026-09-07", "2026-11-26", "2026-12-25",
}

// USEquityCalendar answers schedule questions for the US equity session.
// Holidays come from the static closure list, never inferred from data gaps.
type USEquityCalendar struct {
	loc      *time.Location
	holidays map[string]struct{}
}

var _ alignusecase.SessionCalendar = (*USEquityCalendar)(nil)

// NewUSEquityCalendar creates the calendar in exchange-local time.
func NewUSEquityCalendar() *USEquityCalendar {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// tzdata missing from the runtime image; schedule math would be
		// silently wrong, so refuse to start.
		log.Fatalf("failed to load exchange timezone: %v", err)
	}
	holidays := make(map[string]struct{}, len(usMarketHolidays))
	for _, d := range usMarketHolidays {
		holidays[d] = struct{}{}
	}
	return &USEquityCalendar{loc: loc, holidays: holidays}
}

// IsTradingDay reports whether the market opens on the given day. Days are
// identified by their UTC calendar date, matching how session dates are stored.
func (c *USEquityCalendar) IsTradingDay(day time.Time) bool {
	d := day.UTC()
	if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		return false
	}
	_, closed := c.holidays[d.Format("2006-01-02")]
	return !closed
}

// OpenTime returns the session open on the given day, in UTC.
func (c *USEquityCalendar) OpenTime(day time.Time) time.Time {
	d := day.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), openHour, openMinute, 0, 0, c.loc).UTC()
}

// CloseTime returns the session close on the given day, in UTC.
func (c *USEquityCalendar) CloseTime(day time.Time) time.Time {
	d := day.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), closeHour, closeMinute, 0, 0, c.loc).UTC()
}

// PrevTradingDay returns the last trading day strictly before day.
func (c *USEquityCalendar) PrevTradingDay(day time.Time) time.Time {
	d := day.AddDate(0, 0, -1)
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// NextTradingDay returns the first trading day strictly after day.
func (c *USEquityCalendar) NextTradingDay(day time.Time) time.Time {
	d := day.AddDate(0, 0, 1)
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
