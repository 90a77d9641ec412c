package scheduler

import (
	"log"
	"time"

	"github.com/scmhub/calendar"
)

// TradingCalendar answers whether a given date is a trading day on the
// configured exchange.
type TradingCalendar struct {
	cal      *calendar.Calendar
	fallback bool
	loc      *time.Location
}

// NewTradingCalendar loads the exchange calendar for the given MIC code
// (ISO 10383, e.g. "xnys"). When the MIC is unknown it falls back to a
// plain Monday-Friday check in New York time.
func NewTradingCalendar(mic string) *TradingCalendar {
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		log.Printf("[WARN] no calendar for MIC %q, falling back to Mon-Fri", mic)
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
		return &TradingCalendar{fallback: true, loc: loc}
	}
	return &TradingCalendar{cal: cal, loc: cal.Loc}
}

func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	if tc.loc != nil {
		t = t.In(tc.loc)
	}
	if tc.fallback {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return tc.cal.IsBusinessDay(t)
}
