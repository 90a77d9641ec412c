// Package backtest replays indicator and stage series bar by bar, in date
// order and without lookahead, and produces trade and portfolio statistics.
package backtest

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rnjstp9754-jpg/swing-screener/internal/model"
)

// Engine runs one backtest configuration over a set of instruments sharing
// a single cash account. Engines are cheap; build a fresh one per run.
type Engine struct {
	rule           Rule
	entry          EntryRule
	initialCapital float64
}

// NewEngine creates an engine. A nil entry rule falls back to TemplateEntry
// with every check disabled, entering on any bar labeled Advancing.
func NewEngine(rule Rule, entry EntryRule, initialCapital float64) *Engine {
	if entry == nil {
		entry = TemplateEntry{}
	}
	return &Engine{rule: rule, entry: entry, initialCapital: initialCapital}
}

// position is an open trade. One per instrument at a time.
type position struct {
	entryDate  time.Time
	entryPrice float64
	stop       float64
	target     float64
	shares     float64
	heldBars   int
}

// Run replays all instruments over the union of their dates and returns the
// finalized result. The same inputs always produce the same result; the
// engine keeps no state between runs.
func (e *Engine) Run(instruments []*Instrument) (*Result, error) {
	if err := e.rule.Validate(); err != nil {
		return nil, fmt.Errorf("trade rule: %w", err)
	}
	if e.initialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive")
	}
	for _, inst := range instruments {
		if err := inst.Validate(); err != nil {
			return nil, err
		}
	}

	// Deterministic instrument order regardless of caller ordering.
	sorted := make([]*Instrument, len(instruments))
	copy(sorted, instruments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Symbol < sorted[j].Symbol })

	dates := unionDates(sorted)
	cursor := make([]int, len(sorted))
	positions := make([]*position, len(sorted))
	lastClose := make([]float64, len(sorted))
	for i := range lastClose {
		lastClose[i] = math.NaN()
	}

	res := &Result{InitialCapital: e.initialCapital}
	cash := e.initialCapital

	for _, day := range dates {
		// Phase 1: mark prices and evaluate exits for every instrument
		// trading today. Exits run before entries so freed cash is
		// available on the same bar.
		for k, inst := range sorted {
			i := cursor[k]
			if i >= len(inst.Bars) || !model.Day(inst.Bars[i].Date).Equal(day) {
				continue
			}
			assertReplayBar(inst, i, day)
			bar := &inst.Bars[i]
			lastClose[k] = bar.AdjClose

			pos := positions[k]
			if pos == nil {
				continue
			}
			pos.heldBars++

			exitPrice, reason, ok := e.checkExit(inst, i, pos)
			if ok {
				cash += pos.shares * exitPrice
				res.Trades = append(res.Trades, newTrade(inst.Symbol, pos, bar.Date, exitPrice, reason))
				positions[k] = nil
			}
		}

		// Phase 2: entries, sized against equity marked at today's closes.
		equity := markEquity(cash, positions, lastClose)
		for k, inst := range sorted {
			i := cursor[k]
			if i >= len(inst.Bars) || !model.Day(inst.Bars[i].Date).Equal(day) {
				continue
			}
			if positions[k] != nil {
				// One open trade per instrument; new signals are ignored.
				continue
			}
			if !e.entry.ShouldEnter(inst, i) {
				continue
			}

			bar := &inst.Bars[i]
			entryPrice := bar.AdjClose
			stop := entryPrice * (1 - e.rule.StopLossPct)
			shares := math.Floor(equity * e.rule.RiskFraction / (entryPrice - stop))
			if maxAffordable := math.Floor(cash / entryPrice); shares > maxAffordable {
				shares = maxAffordable
			}
			if shares <= 0 {
				// Insufficient capital: skip, count, never retry.
				res.MissedSignals++
				continue
			}

			pos := &position{
				entryDate:  bar.Date,
				entryPrice: entryPrice,
				stop:       stop,
				shares:     shares,
			}
			if e.rule.TargetPct > 0 {
				pos.target = entryPrice * (1 + e.rule.TargetPct)
			}
			cash -= shares * entryPrice
			positions[k] = pos
		}

		// Phase 3: advance cursors and mark the portfolio to market.
		for k, inst := range sorted {
			i := cursor[k]
			if i < len(inst.Bars) && model.Day(inst.Bars[i].Date).Equal(day) {
				cursor[k]++
			}
		}
		res.EquityCurve = append(res.EquityCurve, EquityPoint{Date: day, Value: markEquity(cash, positions, lastClose)})
	}

	// Force-close whatever is still open at the last available bar.
	for k, inst := range sorted {
		pos := positions[k]
		if pos == nil {
			continue
		}
		last := inst.Bars[len(inst.Bars)-1]
		cash += pos.shares * last.AdjClose
		res.Trades = append(res.Trades, newTrade(inst.Symbol, pos, last.Date, last.AdjClose, ExitEndOfData))
		positions[k] = nil
	}

	if n := len(res.EquityCurve); n > 0 {
		res.EquityCurve[n-1].Value = cash
	}
	res.FinalEquity = cash
	res.Summary = summarize(res)
	return res, nil
}

// checkExit evaluates the exit rules for one open position at bar i, in
// fixed priority order. It returns the exit price and reason when any rule
// fires.
func (e *Engine) checkExit(inst *Instrument, i int, pos *position) (float64, ExitReason, bool) {
	bar := &inst.Bars[i]
	if bar.Low <= pos.stop {
		return pos.stop, ExitStopLoss, true
	}
	if e.rule.TargetPct > 0 && bar.High >= pos.target {
		return pos.target, ExitTarget, true
	}
	if e.rule.ExitOnStageChange && inst.Stages[i].Label != model.StageAdvancing {
		return bar.AdjClose, ExitStage, true
	}
	if e.rule.MaxHoldBars > 0 && pos.heldBars >= e.rule.MaxHoldBars {
		return bar.AdjClose, ExitMaxHold, true
	}
	return 0, "", false
}

func newTrade(symbol string, pos *position, exitDate time.Time, exitPrice float64, reason ExitReason) Trade {
	return Trade{
		Symbol:     symbol,
		EntryDate:  pos.entryDate,
		EntryPrice: pos.entryPrice,
		ExitDate:   exitDate,
		ExitPrice:  exitPrice,
		Shares:     pos.shares,
		PnL:        (exitPrice - pos.entryPrice) * pos.shares,
		ExitReason: reason,
	}
}

// markEquity is cash plus every open position at its last known close.
func markEquity(cash float64, positions []*position, lastClose []float64) float64 {
	equity := cash
	for k, pos := range positions {
		if pos == nil || math.IsNaN(lastClose[k]) {
			continue
		}
		equity += pos.shares * lastClose[k]
	}
	return equity
}

// unionDates merges every instrument's bar dates into one ascending axis.
func unionDates(instruments []*Instrument) []time.Time {
	seen := make(map[int64]time.Time)
	for _, inst := range instruments {
		for _, b := range inst.Bars {
			d := model.Day(b.Date)
			seen[d.Unix()] = d
		}
	}
	keys := make([]int64, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	dates := make([]time.Time, len(keys))
	for i, k := range keys {
		dates[i] = seen[k]
	}
	return dates
}

// assertReplayBar guards the no-lookahead invariant: the bar being read must
// belong to the date being replayed. A violation is a programming defect and
// fails loudly rather than silently corrupting results.
func assertReplayBar(inst *Instrument, i int, day time.Time) {
	if !model.Day(inst.Bars[i].Date).Equal(day) {
		panic(fmt.Sprintf("backtest: %s bar %d (%s) read while replaying %s",
			inst.Symbol, i, inst.Bars[i].Date.Format("2006-01-02"), day.Format("2006-01-02")))
	}
}
