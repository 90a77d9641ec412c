package backtest

import (
	"math"
	"time"
)

// Trade is one closed round trip.
type Trade struct {
	Symbol     string
	EntryDate  time.Time
	EntryPrice float64
	ExitDate   time.Time
	ExitPrice  float64
	Shares     float64
	PnL        float64
	ExitReason ExitReason
}

// EquityPoint is the portfolio value, including cash, at one bar close.
type EquityPoint struct {
	Date  time.Time
	Value float64
}

// Result is the finalized output of one backtest run. It is never mutated
// after Run returns.
type Result struct {
	InitialCapital float64
	FinalEquity    float64
	Trades         []Trade
	EquityCurve    []EquityPoint
	// MissedSignals counts entry signals skipped because the computed
	// position size was zero.
	MissedSignals int
	Summary       Summary
}

// Summary holds the metrics derived once at the end of a run.
type Summary struct {
	TotalReturn  float64 // fraction, e.g. 0.42
	CAGR         float64 // annualized from elapsed calendar days
	MaxDrawdown  float64 // largest peak-to-trough equity decline, fraction
	WinRate      float64 // fraction of trades with positive P&L
	GrossProfit  float64
	GrossLoss    float64 // negative
	ProfitFactor float64 // gross profit / |gross loss|; zero when no losses
	TradeCount   int
	Wins         int
	Losses       int
}

func summarize(r *Result) Summary {
	s := Summary{TradeCount: len(r.Trades)}

	if r.InitialCapital > 0 {
		s.TotalReturn = r.FinalEquity/r.InitialCapital - 1
	}

	if n := len(r.EquityCurve); n > 1 && r.InitialCapital > 0 {
		days := r.EquityCurve[n-1].Date.Sub(r.EquityCurve[0].Date).Hours() / 24
		if days > 0 && r.FinalEquity > 0 {
			s.CAGR = math.Pow(r.FinalEquity/r.InitialCapital, 365.25/days) - 1
		}
	}

	peak := r.InitialCapital
	for _, pt := range r.EquityCurve {
		if pt.Value > peak {
			peak = pt.Value
		}
		if peak > 0 {
			if dd := (peak - pt.Value) / peak; dd > s.MaxDrawdown {
				s.MaxDrawdown = dd
			}
		}
	}

	for _, t := range r.Trades {
		switch {
		case t.PnL > 0:
			s.Wins++
			s.GrossProfit += t.PnL
		case t.PnL < 0:
			s.Losses++
			s.GrossLoss += t.PnL
		}
	}
	if s.TradeCount > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TradeCount)
	}
	if s.GrossLoss != 0 {
		s.ProfitFactor = s.GrossProfit / -s.GrossLoss
	}
	return s
}
