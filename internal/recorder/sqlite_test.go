package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rnjstp9754-jpg/swing-screener/internal/backtest"
	"github.com/rnjstp9754-jpg/swing-screener/internal/model"
)

func openTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "recorder.db"))
	if err != nil {
		t.Fatalf("open recorder: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSQLiteRecorder_ScreeningRoundTrip(t *testing.T) {
	r := openTestRecorder(t)
	runDate := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	signals := []model.Signal{
		{
			Symbol: "NVDA", Date: runDate, Stage: model.StageAdvancing,
			RSScore: 97, VolumeRatio: 2.1, Price: 131.5,
			Passed: []string{"ma_order", "rs"},
		},
		{
			Symbol: "AAPL", Date: runDate, Stage: model.StageAdvancing,
			RSScore: 81, VolumeRatio: 1.2, Price: 228.0,
			Passed: []string{"ma_order", "rs"},
		},
	}
	if err := r.RecordScreening(runDate, 20, signals); err != nil {
		t.Fatalf("record screening: %v", err)
	}

	got, err := r.RecentSignals(10)
	if err != nil {
		t.Fatalf("recent signals: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 signals back, got %d", len(got))
	}
	// Newest insert first.
	if got[0].Symbol != "AAPL" || got[1].Symbol != "NVDA" {
		t.Errorf("expected newest-first order, got %s, %s", got[0].Symbol, got[1].Symbol)
	}
	first := got[1]
	if first.Stage != model.StageAdvancing {
		t.Errorf("stage did not round-trip: %v", first.Stage)
	}
	if !first.Date.Equal(runDate) {
		t.Errorf("date did not round-trip: %v", first.Date)
	}
	if len(first.Passed) != 2 || first.Passed[0] != "ma_order" {
		t.Errorf("passed checks did not round-trip: %v", first.Passed)
	}
}

func TestSQLiteRecorder_RecordBacktest(t *testing.T) {
	r := openTestRecorder(t)

	result := &backtest.Result{
		InitialCapital: 100_000,
		FinalEquity:    123_000,
	}
	result.Summary.TotalReturn = 0.23
	result.Summary.TradeCount = 12

	if err := r.RecordBacktest("trend-template", backtest.DefaultRule(), result); err != nil {
		t.Fatalf("record backtest: %v", err)
	}
}

func TestSQLiteRecorder_RecentSignalsEmpty(t *testing.T) {
	r := openTestRecorder(t)
	got, err := r.RecentSignals(5)
	if err != nil {
		t.Fatalf("recent signals: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no signals, got %d", len(got))
	}
}
