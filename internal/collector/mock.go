package collector

import (
	"context"
	"time"

	"github.com/rnjstp9754-jpg/swing-screener/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Bars map[string][]model.PriceBar
	// Err, when set, is returned for every symbol not present in Bars.
	Err error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchBars(_ context.Context, symbol string, start, end time.Time) ([]model.PriceBar, error) {
	bars, ok := m.Bars[symbol]
	if !ok {
		if m.Err != nil {
			return nil, m.Err
		}
		return nil, ErrDataUnavailable
	}
	out := make([]model.PriceBar, 0, len(bars))
	for _, b := range bars {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, ErrDataUnavailable
	}
	return out, nil
}

// GenerateBars builds a synthetic daily series starting at basePrice on
// start, drifting by drift per bar. Weekends are skipped.
func GenerateBars(start time.Time, count int, basePrice, drift float64) []model.PriceBar {
	bars := make([]model.PriceBar, 0, count)
	day := model.Day(start)
	for len(bars) < count {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			p := basePrice + drift*float64(len(bars))
			bars = append(bars, model.PriceBar{
				Date:     day,
				Open:     p * 0.999,
				High:     p * 1.005,
				Low:      p * 0.995,
				Close:    p,
				AdjClose: p,
				Volume:   1_000_000,
			})
		}
		day = day.AddDate(0, 0, 1)
	}
	return bars
}
