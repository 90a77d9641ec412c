// Package screener filters a universe of instruments against a conjunctive
// trend-template and ranks the survivors. It holds no state across dates;
// repeat-signal suppression is driven by a flag the caller sets on each
// candidate.
package screener

import (
	"fmt"
	"sort"
	"time"

	"github.com/rnjstp9754-jpg/swing-screener/internal/model"
)

// Check names reported in Signal.Passed.
const (
	CheckMAOrder       = "ma_order"
	CheckTrendDuration = "trend_duration"
	CheckNearHigh      = "near_high"
	CheckAboveLow      = "above_low"
	CheckRS            = "rs"
	CheckVolume        = "volume"
)

// Criteria is the trend-template configuration. Every check is individually
// toggleable; all enabled checks must pass for an instrument to signal. A
// candidate with an undefined indicator needed by an enabled check fails
// silently.
type Criteria struct {
	RequireMAOrder bool `yaml:"require_ma_order"` // close > SMA50 > SMA150 > SMA200

	MinTrendBars int `yaml:"min_trend_bars"` // consecutive SMA200 up-slope bars; 0 disables

	CheckHighProximity bool    `yaml:"check_high_proximity"`
	MaxPctBelowHigh    float64 `yaml:"max_pct_below_high"` // close within this % of the 52w high

	CheckLowDistance bool    `yaml:"check_low_distance"`
	MinPctAboveLow   float64 `yaml:"min_pct_above_low"` // close at least this % above the 52w low

	CheckRS    bool    `yaml:"check_rs"`
	MinRSScore float64 `yaml:"min_rs_score"` // percentile 0-100

	CheckVolume    bool    `yaml:"check_volume"`
	MinVolumeRatio float64 `yaml:"min_volume_ratio"`

	// SuppressRepeats drops an instrument that already signalled on the
	// immediately preceding classified bar, so a breakout is reported once
	// rather than daily.
	SuppressRepeats bool `yaml:"suppress_repeats"`
}

// DefaultCriteria returns the documented default template. The numeric
// thresholds are configuration, not canon; adjust per run.
func DefaultCriteria() Criteria {
	return Criteria{
		RequireMAOrder:     true,
		MinTrendBars:       20,
		CheckHighProximity: true,
		MaxPctBelowHigh:    25,
		CheckLowDistance:   true,
		MinPctAboveLow:     30,
		CheckRS:            true,
		MinRSScore:         70,
		CheckVolume:        false,
		MinVolumeRatio:     1.5,
	}
}

// Validate checks threshold ranges.
func (c Criteria) Validate() error {
	if c.MinTrendBars < 0 {
		return fmt.Errorf("min_trend_bars must not be negative")
	}
	if c.MaxPctBelowHigh < 0 || c.MinPctAboveLow < 0 {
		return fmt.Errorf("percentage thresholds must not be negative")
	}
	if c.MinRSScore < 0 || c.MinRSScore > 100 {
		return fmt.Errorf("min_rs_score must be within [0, 100]")
	}
	if c.MinVolumeRatio < 0 {
		return fmt.Errorf("min_volume_ratio must not be negative")
	}
	return nil
}

// Candidate is one instrument's state on the screening date.
type Candidate struct {
	Snapshot model.Snapshot
	Stage    model.Stage
	// PrevPassed reports whether this instrument passed the same criteria
	// on the immediately preceding classified bar.
	PrevPassed bool
}

// Screen applies the criteria to every candidate and returns the passing
// instruments ranked by RS score descending, volume ratio descending, then
// symbol ascending. An empty universe returns an empty slice, never an
// error.
func Screen(date time.Time, universe map[string]Candidate, c Criteria) []model.Signal {
	signals := make([]model.Signal, 0, len(universe))
	for symbol, cand := range universe {
		if c.SuppressRepeats && cand.PrevPassed {
			continue
		}
		passed, ok := Evaluate(&cand.Snapshot, c)
		if !ok {
			continue
		}
		sig := model.Signal{
			Symbol: symbol,
			Date:   date,
			Stage:  cand.Stage,
			Price:  cand.Snapshot.Close,
			Passed: passed,
		}
		if cand.Snapshot.RSScore.OK {
			sig.RSScore = cand.Snapshot.RSScore.V
		}
		if cand.Snapshot.VolumeRatio.OK {
			sig.VolumeRatio = cand.Snapshot.VolumeRatio.V
		}
		signals = append(signals, sig)
	}

	sort.Slice(signals, func(i, j int) bool {
		a, b := signals[i], signals[j]
		if a.RSScore != b.RSScore {
			return a.RSScore > b.RSScore
		}
		if a.VolumeRatio != b.VolumeRatio {
			return a.VolumeRatio > b.VolumeRatio
		}
		return a.Symbol < b.Symbol
	})
	return signals
}

// Evaluate runs every enabled check against one snapshot. It returns the
// names of the checks that passed and whether all of them did. Checks are
// conjunctive; the first failure wins and no partial signal is produced.
func Evaluate(sn *model.Snapshot, c Criteria) ([]string, bool) {
	var passed []string

	if c.RequireMAOrder {
		if !(sn.SMA50.OK && sn.SMA150.OK && sn.SMA200.OK) {
			return nil, false
		}
		if !(sn.Close > sn.SMA50.V && sn.SMA50.V > sn.SMA150.V && sn.SMA150.V > sn.SMA200.V) {
			return nil, false
		}
		passed = append(passed, CheckMAOrder)
	}

	if c.MinTrendBars > 0 {
		if sn.TrendBars < c.MinTrendBars {
			return nil, false
		}
		passed = append(passed, CheckTrendDuration)
	}

	if c.CheckHighProximity {
		if !sn.High52w.OK || sn.High52w.V <= 0 {
			return nil, false
		}
		// A close exactly at the threshold passes.
		pctBelow := (sn.High52w.V - sn.Close) / sn.High52w.V * 100
		if pctBelow > c.MaxPctBelowHigh {
			return nil, false
		}
		passed = append(passed, CheckNearHigh)
	}

	if c.CheckLowDistance {
		if !sn.Low52w.OK || sn.Low52w.V <= 0 {
			return nil, false
		}
		pctAbove := (sn.Close - sn.Low52w.V) / sn.Low52w.V * 100
		if pctAbove < c.MinPctAboveLow {
			return nil, false
		}
		passed = append(passed, CheckAboveLow)
	}

	if c.CheckRS {
		if !sn.RSScore.OK || sn.RSScore.V < c.MinRSScore {
			return nil, false
		}
		passed = append(passed, CheckRS)
	}

	if c.CheckVolume {
		if !sn.VolumeRatio.OK || sn.VolumeRatio.V < c.MinVolumeRatio {
			return nil, false
		}
		passed = append(passed, CheckVolume)
	}

	return passed, true
}
