package model

import "time"

// Stage is one of the four market-cycle phases of an instrument relative to
// its long-term moving averages.
type Stage int

const (
	StageNone Stage = iota // indicators not yet defined for this bar
	StageBasing
	StageAdvancing
	StageTopping
	StageDeclining
)

func (s Stage) String() string {
	switch s {
	case StageBasing:
		return "BASING"
	case StageAdvancing:
		return "ADVANCING"
	case StageTopping:
		return "TOPPING"
	case StageDeclining:
		return "DECLINING"
	default:
		return "NONE"
	}
}

// StagePoint is the classifier output for one bar. Label is the smoothed
// public label; Raw is the per-bar rule result before minimum-duration
// smoothing.
type StagePoint struct {
	Date  time.Time
	Raw   Stage
	Label Stage
}
