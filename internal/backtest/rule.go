package backtest

import (
	"fmt"

	"github.com/rnjstp9754-jpg/swing-screener/internal/model"
	"github.com/rnjstp9754-jpg/swing-screener/internal/screener"
)

// ExitReason records which exit rule closed a trade.
type ExitReason string

const (
	ExitStopLoss  ExitReason = "STOP_LOSS"
	ExitTarget    ExitReason = "TARGET"
	ExitStage     ExitReason = "STAGE_EXIT"
	ExitMaxHold   ExitReason = "MAX_HOLD"
	ExitEndOfData ExitReason = "END_OF_DATA"
)

// Rule is the immutable trade configuration for one backtest run. Exits are
// evaluated per bar in fixed priority: stop-loss, target, stage transition,
// max holding period.
type Rule struct {
	StopLossPct       float64 `yaml:"stop_loss_pct"`        // fraction below entry, e.g. 0.07
	TargetPct         float64 `yaml:"target_pct"`           // fraction above entry; 0 disables
	ExitOnStageChange bool    `yaml:"exit_on_stage_change"`
	MaxHoldBars       int     `yaml:"max_hold_bars"`        // 0 disables
	RiskFraction      float64 `yaml:"risk_fraction"`        // fraction of equity risked per trade
}

// DefaultRule returns the documented defaults: 7% stop, 21% target (3:1),
// exit on leaving Advancing, 1% equity risk per trade.
func DefaultRule() Rule {
	return Rule{
		StopLossPct:       0.07,
		TargetPct:         0.21,
		ExitOnStageChange: true,
		RiskFraction:      0.01,
	}
}

// Validate checks the rule parameters. The stop distance doubles as the
// sizing denominator, so the stop is mandatory.
func (r Rule) Validate() error {
	if r.StopLossPct <= 0 || r.StopLossPct >= 1 {
		return fmt.Errorf("stop_loss_pct must be within (0, 1)")
	}
	if r.TargetPct < 0 {
		return fmt.Errorf("target_pct must not be negative")
	}
	if r.MaxHoldBars < 0 {
		return fmt.Errorf("max_hold_bars must not be negative")
	}
	if r.RiskFraction <= 0 || r.RiskFraction > 1 {
		return fmt.Errorf("risk_fraction must be within (0, 1]")
	}
	return nil
}

// Instrument is one instrument's full history: raw bars with the parallel
// indicator and stage series. All three slices are index-aligned.
type Instrument struct {
	Symbol    string
	Bars      []model.PriceBar
	Snapshots []model.Snapshot
	Stages    []model.StagePoint
}

// Validate checks the three series are parallel.
func (in *Instrument) Validate() error {
	if len(in.Bars) == 0 {
		return fmt.Errorf("%s: empty instrument", in.Symbol)
	}
	if len(in.Snapshots) != len(in.Bars) || len(in.Stages) != len(in.Bars) {
		return fmt.Errorf("%s: series length mismatch: %d bars, %d snapshots, %d stages",
			in.Symbol, len(in.Bars), len(in.Snapshots), len(in.Stages))
	}
	for i := range in.Bars {
		if !in.Snapshots[i].Date.Equal(in.Bars[i].Date) || !in.Stages[i].Date.Equal(in.Bars[i].Date) {
			return fmt.Errorf("%s: series misaligned at index %d", in.Symbol, i)
		}
	}
	return nil
}

// EntryRule decides whether to open a position at bar i. Implementations
// must only read data at indices <= i; the engine never hands out a later
// index than the bar being replayed.
type EntryRule interface {
	ShouldEnter(inst *Instrument, i int) bool
}

// TemplateEntry is the standard entry rule: the bar's public stage label is
// Advancing and the snapshot passes the screening criteria.
type TemplateEntry struct {
	Criteria screener.Criteria
}

func (t TemplateEntry) ShouldEnter(inst *Instrument, i int) bool {
	if inst.Stages[i].Label != model.StageAdvancing {
		return false
	}
	_, ok := screener.Evaluate(&inst.Snapshots[i], t.Criteria)
	return ok
}
