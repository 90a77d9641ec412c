package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/rnjstp9754-jpg/swing-screener/internal/backtest"
	"github.com/rnjstp9754-jpg/swing-screener/internal/model"
)

// maxSignalsPerReport caps the report length; Telegram rejects messages
// over 4096 characters.
const maxSignalsPerReport = 15

// FormatScreeningReport formats one screening run into a Telegram message.
// Signals arrive pre-ranked; only the top entries are shown.
func FormatScreeningReport(date time.Time, universeSize int, signals []model.Signal) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>Trend Template Screen</b> | %s\n", date.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Universe: %d symbols, %d passed\n\n", universeSize, len(signals)))

	if len(signals) == 0 {
		b.WriteString("No candidates today.")
		return b.String()
	}

	shown := signals
	if len(shown) > maxSignalsPerReport {
		shown = shown[:maxSignalsPerReport]
	}
	for i, sig := range shown {
		b.WriteString(fmt.Sprintf("%2d. <b>%s</b>  %.2f\n", i+1, sig.Symbol, sig.Price))
		b.WriteString(fmt.Sprintf("    stage %s | RS %.0f | vol %.1fx\n",
			sig.Stage, sig.RSScore, sig.VolumeRatio))
	}
	if len(signals) > len(shown) {
		b.WriteString(fmt.Sprintf("\n… and %d more", len(signals)-len(shown)))
	}
	return b.String()
}

// FormatBacktestSummary formats a completed backtest for display.
func FormatBacktestSummary(label string, rule backtest.Rule, result *backtest.Result) string {
	s := result.Summary
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🧪 <b>Backtest</b> | %s\n\n", label))
	b.WriteString(fmt.Sprintf("Stop %.0f%% / Target %.0f%%\n", rule.StopLossPct*100, rule.TargetPct*100))
	b.WriteString(fmt.Sprintf("Capital: %.0f → %.0f\n", result.InitialCapital, result.FinalEquity))
	b.WriteString(fmt.Sprintf("Return: %+.1f%% (CAGR %+.1f%%)\n", s.TotalReturn*100, s.CAGR*100))
	b.WriteString(fmt.Sprintf("Max drawdown: %.1f%%\n", s.MaxDrawdown*100))
	b.WriteString(fmt.Sprintf("Trades: %d (%d W / %d L, win rate %.0f%%)\n",
		s.TradeCount, s.Wins, s.Losses, s.WinRate*100))
	if s.ProfitFactor > 0 {
		b.WriteString(fmt.Sprintf("Profit factor: %.2f\n", s.ProfitFactor))
	}
	if result.MissedSignals > 0 {
		b.WriteString(fmt.Sprintf("Missed signals (no capital): %d\n", result.MissedSignals))
	}
	return b.String()
}

// FormatRecentSignals formats stored signals for the /recent command.
func FormatRecentSignals(signals []model.Signal) string {
	if len(signals) == 0 {
		return "No stored signals yet."
	}
	var b strings.Builder
	b.WriteString("🗄 <b>Recent signals</b>\n\n")
	for _, sig := range signals {
		b.WriteString(fmt.Sprintf("%s  <b>%s</b>  %.2f  RS %.0f\n",
			sig.Date.Format("01-02"), sig.Symbol, sig.Price, sig.RSScore))
	}
	return b.String()
}
