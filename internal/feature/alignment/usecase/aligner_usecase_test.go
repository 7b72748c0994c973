package usecase

import (
	"math"
	"testing"
	"time"

	pricesentity "crossmarket_backend/internal/feature/prices/domain/entity"
)

// fakeCalendar trades Monday through Friday, 09:30-16:00 UTC, minus listed
// holidays.
type fakeCalendar struct {
	holidays map[string]bool
}

func (f fakeCalendar) IsTradingDay(day time.Time) bool {
	wd := day.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !f.holidays[day.Format("2006-01-02")]
}

func (f fakeCalendar) OpenTime(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 9, 30, 0, 0, time.UTC)
}

func (f fakeCalendar) CloseTime(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 16, 0, 0, 0, time.UTC)
}

func (f fakeCalendar) PrevTradingDay(day time.Time) time.Time {
	d := day.AddDate(0, 0, -1)
	for !f.IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

func (f fakeCalendar) NextTradingDay(day time.Time) time.Time {
	d := day.AddDate(0, 0, 1)
	for !f.IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// hourlyPrices builds an hourly series at price 100, with overrides applied at
// the given timestamps.
func hourlyPrices(from, to time.Time, overrides map[time.Time]float64) []pricesentity.DriverPrice {
	var out []pricesentity.DriverPrice
	for ts := from; !ts.After(to); ts = ts.Add(time.Hour) {
		p := 100.0
		if v, ok := overrides[ts]; ok {
			p = v
		}
		out = append(out, pricesentity.DriverPrice{Symbol: "BTC", Timestamp: ts, Price: p})
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAligner_Align(t *testing.T) {
	t.Parallel()

	// Tuesday session; previous trading day Monday.
	monday := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	tuesday := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)
	cal := fakeCalendar{holidays: map[string]bool{}}

	session := pricesentity.TargetSession{
		Symbol:      "COIN",
		SessionDate: tuesday,
		Open:        200,
		Close:       210,
		PriorClose:  205,
	}

	t.Run("success: one window per session with correct moves", func(t *testing.T) {
		t.Parallel()

		// Window: last obs at or before Monday 16:00 (price 100) to first obs
		// at or after Tuesday 09:30 (10:00, price 105).
		prices := hourlyPrices(
			monday.Add(12*time.Hour), tuesday.Add(12*time.Hour),
			map[time.Time]float64{tuesday.Add(10 * time.Hour): 105},
		)

		a := NewAligner(cal, 0, 0)
		windows := a.Align(prices, []pricesentity.TargetSession{session})

		if len(windows) != 1 {
			t.Fatalf("expected 1 window, got %d", len(windows))
		}
		w := windows[0]
		if w.DriverSymbol != "BTC" || w.TargetSymbol != "COIN" {
			t.Errorf("unexpected symbols: %s/%s", w.DriverSymbol, w.TargetSymbol)
		}
		if !almostEqual(w.DriverMovePct, 5.0) {
			t.Errorf("expected driver move 5.0, got %f", w.DriverMovePct)
		}
		// (210-205)/205*100
		if !almostEqual(w.TargetMovePct, 5.0/205*100) {
			t.Errorf("expected target move %f, got %f", 5.0/205*100, w.TargetMovePct)
		}
		if !w.WindowStart.Equal(monday.Add(16 * time.Hour)) {
			t.Errorf("expected window start at Monday close, got %v", w.WindowStart)
		}
		if !w.WindowEnd.Equal(tuesday.Add(10 * time.Hour)) {
			t.Errorf("expected window end at first post-open obs, got %v", w.WindowEnd)
		}
	})

	t.Run("skip: non-trading day", func(t *testing.T) {
		t.Parallel()

		holidayCal := fakeCalendar{holidays: map[string]bool{"2024-01-09": true}}
		prices := hourlyPrices(monday.Add(12*time.Hour), tuesday.Add(12*time.Hour), nil)

		a := NewAligner(holidayCal, 0, 0)
		windows := a.Align(prices, []pricesentity.TargetSession{session})

		if len(windows) != 0 {
			t.Fatalf("expected no windows on a holiday, got %d", len(windows))
		}
	})

	t.Run("skip: intra-window gap over tolerance", func(t *testing.T) {
		t.Parallel()

		// A 9h hole between Monday 20:00 and Tuesday 05:00.
		var prices []pricesentity.DriverPrice
		for _, p := range hourlyPrices(monday.Add(12*time.Hour), tuesday.Add(12*time.Hour), nil) {
			if p.Timestamp.After(monday.Add(20*time.Hour)) && p.Timestamp.Before(tuesday.Add(5*time.Hour)) {
				continue
			}
			prices = append(prices, p)
		}

		a := NewAligner(cal, 0, 0)
		windows := a.Align(prices, []pricesentity.TargetSession{session})

		if len(windows) != 0 {
			t.Fatalf("expected gap to invalidate the window, got %d windows", len(windows))
		}
	})

	t.Run("skip: first post-open observation too far after open", func(t *testing.T) {
		t.Parallel()

		// Nothing between Monday close and Wednesday 10:30 (25h after open).
		prices := []pricesentity.DriverPrice{
			{Symbol: "BTC", Timestamp: monday.Add(15 * time.Hour), Price: 100},
			{Symbol: "BTC", Timestamp: monday.Add(16 * time.Hour), Price: 100},
			{Symbol: "BTC", Timestamp: tuesday.Add(34*time.Hour + 30*time.Minute), Price: 100},
		}

		// A huge intra-gap tolerance isolates the open-gap rule.
		a := NewAligner(cal, 0, 100*time.Hour)
		windows := a.Align(prices, []pricesentity.TargetSession{session})

		if len(windows) != 0 {
			t.Fatalf("expected open gap to invalidate the window, got %d windows", len(windows))
		}
	})

	t.Run("skip: session without a prior close", func(t *testing.T) {
		t.Parallel()

		// A zero prior close means the baseline is unknown; the session must
		// be skipped, not paired with a fabricated 0% move.
		noBaseline := session
		noBaseline.PriorClose = 0
		prices := hourlyPrices(monday.Add(12*time.Hour), tuesday.Add(12*time.Hour), nil)

		a := NewAligner(cal, 0, 0)
		windows := a.Align(prices, []pricesentity.TargetSession{noBaseline})

		if len(windows) != 0 {
			t.Fatalf("expected no windows without a prior close, got %d", len(windows))
		}
	})

	t.Run("dedupe: duplicate sessions produce one window", func(t *testing.T) {
		t.Parallel()

		prices := hourlyPrices(monday.Add(12*time.Hour), tuesday.Add(12*time.Hour), nil)

		a := NewAligner(cal, 0, 0)
		windows := a.Align(prices, []pricesentity.TargetSession{session, session})

		if len(windows) != 1 {
			t.Fatalf("expected 1 window for duplicated session, got %d", len(windows))
		}
	})

	t.Run("empty inputs", func(t *testing.T) {
		t.Parallel()

		a := NewAligner(cal, 0, 0)
		if got := a.Align(nil, []pricesentity.TargetSession{session}); got != nil {
			t.Errorf("expected nil for empty prices, got %v", got)
		}
		prices := hourlyPrices(monday.Add(12*time.Hour), tuesday.Add(12*time.Hour), nil)
		if got := a.Align(prices, nil); got != nil {
			t.Errorf("expected nil for empty sessions, got %v", got)
		}
	})
}

func TestAligner_CurrentWindowMove(t *testing.T) {
	t.Parallel()

	monday := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	tuesday := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)
	cal := fakeCalendar{holidays: map[string]bool{}}
	a := NewAligner(cal, 0, 0)

	t.Run("success: measures move since last close", func(t *testing.T) {
		t.Parallel()

		prices := []pricesentity.DriverPrice{
			{Symbol: "BTC", Timestamp: monday.Add(15 * time.Hour), Price: 100},
			{Symbol: "BTC", Timestamp: monday.Add(16 * time.Hour), Price: 102},
			{Symbol: "BTC", Timestamp: tuesday.Add(7 * time.Hour), Price: 108.12},
		}
		now := tuesday.Add(8 * time.Hour)

		move, sessionDate, ok := a.CurrentWindowMove(prices, now)
		if !ok {
			t.Fatal("expected ok")
		}
		if !almostEqual(move, 6.0) {
			t.Errorf("expected move 6.0, got %f", move)
		}
		if sessionDate.Format("2006-01-02") != "2024-01-09" {
			t.Errorf("expected session 2024-01-09, got %s", sessionDate.Format("2006-01-02"))
		}
	})

	t.Run("session date is a midnight-UTC calendar day", func(t *testing.T) {
		t.Parallel()

		// Stored sessions carry midnight-UTC dates; a wall-clock now must not
		// leak its time of day into the returned session date, or exact-date
		// lookups during validation would never match.
		prices := []pricesentity.DriverPrice{
			{Symbol: "BTC", Timestamp: monday.Add(15 * time.Hour), Price: 100},
			{Symbol: "BTC", Timestamp: monday.Add(18 * time.Hour), Price: 104},
		}
		now := time.Date(2024, 1, 8, 19, 33, 7, 0, time.UTC)

		_, sessionDate, ok := a.CurrentWindowMove(prices, now)
		if !ok {
			t.Fatal("expected ok")
		}
		if !sessionDate.Equal(tuesday) {
			t.Errorf("expected session date %v, got %v", tuesday, sessionDate)
		}
	})

	t.Run("not ok: empty series", func(t *testing.T) {
		t.Parallel()

		if _, _, ok := a.CurrentWindowMove(nil, tuesday); ok {
			t.Error("expected not ok for empty series")
		}
	})

	t.Run("not ok: no observation before the last close", func(t *testing.T) {
		t.Parallel()

		prices := []pricesentity.DriverPrice{
			{Symbol: "BTC", Timestamp: tuesday.Add(7 * time.Hour), Price: 108},
		}
		if _, _, ok := a.CurrentWindowMove(prices, tuesday.Add(8*time.Hour)); ok {
			t.Error("expected not ok when series starts after the last close")
		}
	})
}
