package model

import "time"

// Signal is a screening hit: an instrument that passed every configured
// trend-template check on a given date. Read-only downstream.
type Signal struct {
	Symbol      string
	Date        time.Time
	Stage       Stage
	RSScore     float64
	VolumeRatio float64
	Price       float64
	Passed      []string // names of the checks that were evaluated and passed
}
