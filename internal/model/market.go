package model

import "time"

// PriceBar represents a single daily candlestick, already adjusted for
// splits and dividends by the data source.
type PriceBar struct {
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   float64
}

// Series holds the raw price history for one instrument, sorted ascending
// by date and unique per date. Read-only once ingested.
type Series struct {
	Symbol    string
	Bars      []PriceBar
	FetchedAt time.Time
}

// Day normalizes a timestamp to a UTC calendar date so bars from different
// sources key identically.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
