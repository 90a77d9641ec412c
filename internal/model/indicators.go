package model

import "time"

// Slope is the direction of the long moving average over a trailing window.
type Slope int

const (
	SlopeUndefined Slope = iota
	SlopeDown
	SlopeFlat
	SlopeUp
)

func (s Slope) String() string {
	switch s {
	case SlopeDown:
		return "down"
	case SlopeFlat:
		return "flat"
	case SlopeUp:
		return "up"
	default:
		return "undefined"
	}
}

// Value is an optional indicator value. Undefined values never carry NaN;
// consumers check OK once instead of chasing NaN through arithmetic.
type Value struct {
	V  float64
	OK bool
}

// Defined wraps a float in a defined Value.
func Defined(v float64) Value { return Value{V: v, OK: true} }

// Snapshot holds all derived indicator values for one bar. Fields are
// undefined for the leading window of the series where the inputs are not
// fully populated.
type Snapshot struct {
	Date        time.Time
	Close       float64 // adjusted close
	SMA50       Value
	SMA150      Value
	SMA200      Value
	SMA200Slope Slope
	High52w     Value
	Low52w      Value
	RSScore     Value // percentile rank 0-100 vs. peer universe
	VolumeRatio Value
	TrendBars   int // consecutive bars with SMA200Slope == up, inclusive
}

// StageComplete reports whether the fields the stage classifier reads are
// all defined for this bar.
func (s *Snapshot) StageComplete() bool {
	return s.SMA150.OK && s.SMA200.OK && s.SMA200Slope != SlopeUndefined && s.High52w.OK
}
