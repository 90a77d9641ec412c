package notifier

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rnjstp9754-jpg/swing-screener/internal/backtest"
	"github.com/rnjstp9754-jpg/swing-screener/internal/model"
)

func TestFormatScreeningReport_Empty(t *testing.T) {
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	out := FormatScreeningReport(date, 20, nil)
	if !strings.Contains(out, "No candidates") {
		t.Errorf("empty run must say so, got:\n%s", out)
	}
	if !strings.Contains(out, "2025-06-02") {
		t.Errorf("report must carry the run date, got:\n%s", out)
	}
}

func TestFormatScreeningReport_Truncates(t *testing.T) {
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	signals := make([]model.Signal, 25)
	for i := range signals {
		signals[i] = model.Signal{
			Symbol: fmt.Sprintf("SYM%02d", i), Date: date,
			Stage: model.StageAdvancing, RSScore: 90, Price: 100,
		}
	}
	out := FormatScreeningReport(date, 100, signals)
	if strings.Count(out, "SYM") != maxSignalsPerReport {
		t.Errorf("expected %d listed symbols, got %d", maxSignalsPerReport, strings.Count(out, "SYM"))
	}
	if !strings.Contains(out, "and 10 more") {
		t.Errorf("truncation note missing:\n%s", out)
	}
}

func TestFormatBacktestSummary(t *testing.T) {
	res := &backtest.Result{InitialCapital: 100_000, FinalEquity: 121_000, MissedSignals: 3}
	res.Summary = backtest.Summary{
		TotalReturn: 0.21, CAGR: 0.15, MaxDrawdown: 0.08,
		WinRate: 0.6, ProfitFactor: 2.5, TradeCount: 10, Wins: 6, Losses: 4,
	}
	out := FormatBacktestSummary("trend-template", backtest.DefaultRule(), res)

	for _, want := range []string{"trend-template", "Stop 7%", "Target 21%", "+21.0%", "10 (6 W / 4 L", "Missed signals"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestFormatRecentSignals(t *testing.T) {
	if out := FormatRecentSignals(nil); !strings.Contains(out, "No stored signals") {
		t.Errorf("empty case wrong: %s", out)
	}
	signals := []model.Signal{{
		Symbol: "NVDA", Date: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Price: 131.5, RSScore: 97,
	}}
	out := FormatRecentSignals(signals)
	if !strings.Contains(out, "NVDA") || !strings.Contains(out, "06-02") {
		t.Errorf("signal line malformed:\n%s", out)
	}
}
