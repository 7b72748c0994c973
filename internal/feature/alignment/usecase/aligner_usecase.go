// Package usecase implements temporal alignment between a continuous driver
// series and discrete target-market sessions.
package usecase

import (
	"sort"
	"time"

	"crossmarket_backend/internal/feature/alignment/domain/entity"
	pricesentity "crossmarket_backend/internal/feature/prices/domain/entity"
)

const (
	// DefaultMaxOpenGap is the largest allowed gap between a window's last
	// observation and the session open. Windows further away are discarded,
	// never force-matched.
	DefaultMaxOpenGap = 24 * time.Hour
	// DefaultMaxIntraGap is the largest allowed gap between consecutive
	// driver observations inside a window. A larger hole means missing data
	// and invalidates the window; values are never interpolated.
	DefaultMaxIntraGap = 6 * time.Hour
)

// SessionCalendar answers schedule questions for the target market. Holidays
// and closures come from here, never inferred from missing price data.
// Following Go convention: interfaces are defined by the consumer (usecase).
type SessionCalendar interface {
	IsTradingDay(day time.Time) bool
	OpenTime(day time.Time) time.Time
	CloseTime(day time.Time) time.Time
	PrevTradingDay(day time.Time) time.Time
	NextTradingDay(day time.Time) time.Time
}

// Aligner converts a continuous driver series into off-session windows matched
// to target sessions.
type Aligner struct {
	cal         SessionCalendar
	maxOpenGap  time.Duration
	maxIntraGap time.Duration
}

// NewAligner creates an Aligner with the given calendar. Zero gap values fall
// back to the defaults.
func NewAligner(cal SessionCalendar, maxOpenGap, maxIntraGap time.Duration) *Aligner {
	if maxOpenGap <= 0 {
		maxOpenGap = DefaultMaxOpenGap
	}
	if maxIntraGap <= 0 {
		maxIntraGap = DefaultMaxIntraGap
	}
	return &Aligner{cal: cal, maxOpenGap: maxOpenGap, maxIntraGap: maxIntraGap}
}

// Align pairs each target session with the driver off-session window that
// precedes it. Prices must be for a single driver symbol. The result is
// ascending by session date with at most one window per session; sessions
// whose window cannot be formed (missing data, gap over tolerance, non-trading
// day) are skipped.
func (a *Aligner) Align(prices []pricesentity.DriverPrice, sessions []pricesentity.TargetSession) []entity.AlignedWindow {
	if len(prices) == 0 || len(sessions) == 0 {
		return nil
	}

	sorted := make([]pricesentity.DriverPrice, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	bySession := make(map[string]pricesentity.TargetSession, len(sessions))
	dates := make([]time.Time, 0, len(sessions))
	for _, s := range sessions {
		key := s.SessionDate.Format("2006-01-02")
		if _, ok := bySession[key]; !ok {
			dates = append(dates, s.SessionDate)
		}
		bySession[key] = s
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]entity.AlignedWindow, 0, len(dates))
	for _, day := range dates {
		session := bySession[day.Format("2006-01-02")]
		if !a.cal.IsTradingDay(day) {
			continue
		}
		if session.PriorClose == 0 {
			// Unknown baseline; skip rather than fabricate a flat move.
			continue
		}
		w, ok := a.window(sorted, day)
		if !ok {
			continue
		}
		w.DriverSymbol = sorted[0].Symbol
		w.TargetSymbol = session.Symbol
		w.SessionDate = day
		w.TargetMovePct = session.MovePct()
		out = append(out, w)
	}
	return out
}

// window builds the off-session window preceding the session on day.
func (a *Aligner) window(sorted []pricesentity.DriverPrice, day time.Time) (entity.AlignedWindow, bool) {
	prevClose := a.cal.CloseTime(a.cal.PrevTradingDay(day))
	open := a.cal.OpenTime(day)

	// Last observation at or before the previous close.
	startIdx := -1
	for i := range sorted {
		if sorted[i].Timestamp.After(prevClose) {
			break
		}
		startIdx = i
	}
	if startIdx < 0 {
		return entity.AlignedWindow{}, false
	}

	// First observation at or after the open.
	endIdx := -1
	for i := startIdx; i < len(sorted); i++ {
		if !sorted[i].Timestamp.Before(open) {
			endIdx = i
			break
		}
	}
	if endIdx < 0 {
		return entity.AlignedWindow{}, false
	}
	if sorted[endIdx].Timestamp.Sub(open) > a.maxOpenGap {
		return entity.AlignedWindow{}, false
	}

	// A hole inside the window means missing driver data; skip, never
	// interpolate.
	for i := startIdx + 1; i <= endIdx; i++ {
		if sorted[i].Timestamp.Sub(sorted[i-1].Timestamp) > a.maxIntraGap {
			return entity.AlignedWindow{}, false
		}
	}

	start, end := sorted[startIdx], sorted[endIdx]
	if start.Price == 0 {
		return entity.AlignedWindow{}, false
	}
	return entity.AlignedWindow{
		WindowStart:   start.Timestamp,
		WindowEnd:     end.Timestamp,
		DriverMovePct: (end.Price - start.Price) / start.Price * 100,
	}, true
}

// CurrentWindowMove measures the off-session window forming right now: the
// driver move since the last observation at or before the most recent target
// close, up to the latest observation. It returns the session date the window
// leads into. ok is false when the series is too sparse to measure.
func (a *Aligner) CurrentWindowMove(prices []pricesentity.DriverPrice, now time.Time) (movePct float64, sessionDate time.Time, ok bool) {
	if len(prices) == 0 {
		return 0, time.Time{}, false
	}
	sorted := make([]pricesentity.DriverPrice, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	// Most recent session day whose close is already behind us.
	day := now
	for i := 0; i < 10; i++ {
		if a.cal.IsTradingDay(day) && a.cal.CloseTime(day).Before(now) {
			break
		}
		day = day.AddDate(0, 0, -1)
	}
	lastClose := a.cal.CloseTime(day)
	if lastClose.After(now) {
		return 0, time.Time{}, false
	}

	startIdx := -1
	for i := range sorted {
		if sorted[i].Timestamp.After(lastClose) {
			break
		}
		startIdx = i
	}
	if startIdx < 0 {
		return 0, time.Time{}, false
	}
	start := sorted[startIdx]
	end := sorted[len(sorted)-1]
	if start.Price == 0 || !end.Timestamp.After(start.Timestamp) {
		return 0, time.Time{}, false
	}

	// Session dates are stored as midnight-UTC calendar days; strip the
	// wall clock carried in from now so the date matches stored sessions.
	next := a.cal.NextTradingDay(day).UTC()
	sessionDate = time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, time.UTC)

	return (end.Price - start.Price) / start.Price * 100, sessionDate, true
}
