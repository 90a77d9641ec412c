// Package stage assigns one of four market-cycle labels to every bar where
// the indicator set is defined. The raw per-bar rules are deliberately
// simple; a minimum-duration smoothing pass keeps the public label from
// flipping on single-day whipsaws near transition boundaries.
package stage

import (
	"fmt"

	"github.com/rnjstp9754-jpg/swing-screener/internal/model"
)

// Config controls the classification rules.
type Config struct {
	// HighBandPct is how far below the 52-week high (in percent) the close
	// may sit while still qualifying for Advancing. A close exactly at the
	// band boundary qualifies.
	HighBandPct float64 `yaml:"high_band_pct"`
	// SmoothingBars is the number of consecutive bars a new raw label must
	// persist before the public label changes.
	SmoothingBars int `yaml:"smoothing_bars"`
}

// DefaultConfig returns the standard classification parameters.
func DefaultConfig() Config {
	return Config{HighBandPct: 25, SmoothingBars: 3}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.HighBandPct < 0 || c.HighBandPct > 100 {
		return fmt.Errorf("high_band_pct must be within [0, 100]")
	}
	if c.SmoothingBars < 1 {
		return fmt.Errorf("smoothing_bars must be at least 1")
	}
	return nil
}

// Classify runs the four-state machine over a snapshot sequence and returns
// one StagePoint per snapshot. Bars whose indicator set is incomplete get
// StageNone and never advance the machine. The output is a pure function of
// the input: identical snapshots and config always yield identical labels.
func Classify(snaps []model.Snapshot, cfg Config) []model.StagePoint {
	points := make([]model.StagePoint, len(snaps))

	public := model.StageNone
	pending := model.StageNone
	pendingRun := 0

	for i := range snaps {
		sn := &snaps[i]
		pt := model.StagePoint{Date: sn.Date}
		if !sn.StageComplete() {
			points[i] = pt
			continue
		}

		raw := rawStage(sn, public, cfg)
		pt.Raw = raw

		switch {
		case public == model.StageNone:
			// First classifiable bar: the raw rule result is the initial
			// state, no settling period.
			public = raw
			pending, pendingRun = model.StageNone, 0
		case raw == public:
			pending, pendingRun = model.StageNone, 0
		default:
			if raw == pending {
				pendingRun++
			} else {
				pending, pendingRun = raw, 1
			}
			if pendingRun >= cfg.SmoothingBars {
				public = raw
				pending, pendingRun = model.StageNone, 0
			}
		}

		pt.Label = public
		points[i] = pt
	}
	return points
}

// rawStage evaluates the classification rules in priority order, first
// match wins. prev is the current public label, used to detect the break of
// an Advancing run below the medium average.
func rawStage(sn *model.Snapshot, prev model.Stage, cfg Config) model.Stage {
	price := sn.Close
	sma150 := sn.SMA150.V
	sma200 := sn.SMA200.V

	switch {
	case price > sma150 && sma150 > sma200 &&
		sn.SMA200Slope == model.SlopeUp &&
		price >= sn.High52w.V*(1-cfg.HighBandPct/100):
		return model.StageAdvancing
	case price < sma150 && sma150 < sma200 && sn.SMA200Slope == model.SlopeDown:
		return model.StageDeclining
	case (price > sma200 && sn.SMA200Slope != model.SlopeUp) ||
		(prev == model.StageAdvancing && price < sma150):
		return model.StageTopping
	default:
		return model.StageBasing
	}
}
