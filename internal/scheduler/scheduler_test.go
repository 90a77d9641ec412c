package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rnjstp9754-jpg/swing-screener/internal/backtest"
	"github.com/rnjstp9754-jpg/swing-screener/internal/collector"
	"github.com/rnjstp9754-jpg/swing-screener/internal/indicator"
	"github.com/rnjstp9754-jpg/swing-screener/internal/model"
	"github.com/rnjstp9754-jpg/swing-screener/internal/notifier"
	"github.com/rnjstp9754-jpg/swing-screener/internal/recorder"
	"github.com/rnjstp9754-jpg/swing-screener/internal/runner"
	"github.com/rnjstp9754-jpg/swing-screener/internal/screener"
	"github.com/rnjstp9754-jpg/swing-screener/internal/stage"
)

// captureRecorder records the limit /recent asked for.
type captureRecorder struct {
	recorder.Recorder
	lastLimit int
}

func (c *captureRecorder) RecentSignals(limit int) ([]model.Signal, error) {
	c.lastLimit = limit
	return nil, nil
}

func testScheduler(rec recorder.Recorder) *Scheduler {
	start := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	mock := &collector.MockFetcher{Bars: map[string][]model.PriceBar{
		"AAA": collector.GenerateBars(start, 30, 100, 1),
	}}
	cfg := indicator.Config{
		ShortWindow:  2,
		MediumWindow: 3,
		LongWindow:   5,
		SlopeWindow:  1,
		RangeWindow:  10,
		ReturnWindow: 2,
		VolumeWindow: 3,
		MinBars:      8,
	}
	run := runner.New(mock, cfg, stage.DefaultConfig(), screener.Criteria{}, 2)
	s := NewScheduler(context.Background(), run, notifier.LogNotifier{}, rec,
		NewTradingCalendar("xnys"), []string{"AAA"}, 60)
	s.BacktestRule = backtest.DefaultRule()
	s.Capital = 10_000
	return s
}

func TestHandleCommand_RecentWithCount(t *testing.T) {
	rec := &captureRecorder{Recorder: recorder.NewNoopRecorder()}
	s := testScheduler(rec)

	reply := s.HandleCommand(notifier.Command{Name: "recent", Args: []string{"3"}})
	if rec.lastLimit != 3 {
		t.Errorf("expected the recorder asked for 3 signals, got %d", rec.lastLimit)
	}
	if !strings.Contains(reply, "No stored signals") {
		t.Errorf("unexpected reply %q", reply)
	}
}

func TestHandleCommand_RecentCapsCount(t *testing.T) {
	rec := &captureRecorder{Recorder: recorder.NewNoopRecorder()}
	s := testScheduler(rec)

	s.HandleCommand(notifier.Command{Name: "recent", Args: []string{"9999"}})
	if rec.lastLimit != maxRecentSignals {
		t.Errorf("expected the count capped at %d, got %d", maxRecentSignals, rec.lastLimit)
	}
}

func TestHandleCommand_RecentRejectsBadCount(t *testing.T) {
	s := testScheduler(recorder.NewNoopRecorder())
	for _, arg := range []string{"soon", "0", "-2"} {
		if reply := s.HandleCommand(notifier.Command{Name: "recent", Args: []string{arg}}); !strings.Contains(reply, "Usage") {
			t.Errorf("arg %q: expected a usage reply, got %q", arg, reply)
		}
	}
}

func TestHandleCommand_BacktestArgOverrides(t *testing.T) {
	s := testScheduler(recorder.NewNoopRecorder())
	reply := s.HandleCommand(notifier.Command{Name: "backtest", Args: []string{"8", "25%"}})
	if !strings.Contains(reply, "stop 8%") || !strings.Contains(reply, "target 25%") {
		t.Errorf("argument overrides not reflected: %q", reply)
	}
}

func TestHandleCommand_BacktestRejectsBadPercent(t *testing.T) {
	s := testScheduler(recorder.NewNoopRecorder())
	for _, arg := range []string{"0", "-5", "150", "tight"} {
		if reply := s.HandleCommand(notifier.Command{Name: "backtest", Args: []string{arg}}); !strings.Contains(reply, "Usage") {
			t.Errorf("arg %q: expected a usage reply, got %q", arg, reply)
		}
	}
}

func TestHandleCommand_UnknownListsCommands(t *testing.T) {
	s := testScheduler(recorder.NewNoopRecorder())
	reply := s.HandleCommand(notifier.Command{Name: "help"})
	for _, want := range []string{"/screen", "/status", "/recent", "/backtest"} {
		if !strings.Contains(reply, want) {
			t.Errorf("command list missing %s: %q", want, reply)
		}
	}
}
