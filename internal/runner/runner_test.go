package runner

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rnjstp9754-jpg/swing-screener/internal/collector"
	"github.com/rnjstp9754-jpg/swing-screener/internal/indicator"
	"github.com/rnjstp9754-jpg/swing-screener/internal/model"
	"github.com/rnjstp9754-jpg/swing-screener/internal/screener"
	"github.com/rnjstp9754-jpg/swing-screener/internal/stage"
)

func testIndicatorConfig() indicator.Config {
	return indicator.Config{
		ShortWindow:  2,
		MediumWindow: 3,
		LongWindow:   5,
		SlopeWindow:  1,
		RangeWindow:  10,
		ReturnWindow: 2,
		VolumeWindow: 3,
		MinBars:      8,
	}
}

func testRunner(fetcher collector.Fetcher) *Runner {
	return New(fetcher, testIndicatorConfig(), stage.DefaultConfig(), screener.Criteria{}, 2)
}

func testFetcher() (*collector.MockFetcher, time.Time, time.Time) {
	start := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)
	mock := &collector.MockFetcher{
		Bars: map[string][]model.PriceBar{
			"AAA": collector.GenerateBars(start, 30, 100, 1),
			"BBB": collector.GenerateBars(start, 30, 50, 0.2),
		},
	}
	return mock, start, start.AddDate(0, 2, 0)
}

func TestRun_PartialFailureContinues(t *testing.T) {
	mock, start, end := testFetcher()
	r := testRunner(mock)

	res, err := r.Run(context.Background(), []string{"BBB", "BAD", "AAA"}, start, end)
	if err != nil {
		t.Fatalf("one bad symbol must not abort the batch: %v", err)
	}

	if !errors.Is(res.Skipped["BAD"], collector.ErrDataUnavailable) {
		t.Errorf("expected BAD skipped with ErrDataUnavailable, got %v", res.Skipped["BAD"])
	}
	if len(res.Instruments) != 2 {
		t.Fatalf("expected 2 surviving instruments, got %d", len(res.Instruments))
	}
	if res.Instruments[0].Symbol != "AAA" || res.Instruments[1].Symbol != "BBB" {
		t.Errorf("instruments must come back sorted by symbol, got %s, %s",
			res.Instruments[0].Symbol, res.Instruments[1].Symbol)
	}
	// All checks disabled: every instrument present on the screening date
	// signals.
	if len(res.Signals) != 2 {
		t.Errorf("expected 2 signals with all checks disabled, got %d", len(res.Signals))
	}
	wantDate := model.Day(mock.Bars["AAA"][29].Date)
	if !res.Date.Equal(wantDate) {
		t.Errorf("screening date should be the shared last bar %s, got %s", wantDate, res.Date)
	}
}

func TestRun_AllFailed(t *testing.T) {
	mock, start, end := testFetcher()
	r := testRunner(mock)

	_, err := r.Run(context.Background(), []string{"BAD", "WORSE"}, start, end)
	if !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestRun_EmptyUniverse(t *testing.T) {
	mock, start, end := testFetcher()
	r := testRunner(mock)
	if _, err := r.Run(context.Background(), nil, start, end); err == nil {
		t.Fatal("an empty universe must be rejected")
	}
}

func TestRun_DuplicateSymbolsCollapse(t *testing.T) {
	mock, start, end := testFetcher()
	r := testRunner(mock)

	res, err := r.Run(context.Background(), []string{"AAA", "AAA", "BBB"}, start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Instruments) != 2 {
		t.Fatalf("duplicates must collapse, got %d instruments", len(res.Instruments))
	}
}

func TestRun_Deterministic(t *testing.T) {
	mock, start, end := testFetcher()
	r := testRunner(mock)

	first, err := r.Run(context.Background(), []string{"AAA", "BBB"}, start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.Run(context.Background(), []string{"BBB", "AAA"}, start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first.Signals, second.Signals) {
		t.Error("signal output must not depend on universe ordering")
	}
	if !first.Date.Equal(second.Date) {
		t.Error("screening date must not depend on universe ordering")
	}
}

func TestRun_BenchmarkJoinsUniverseButNotResults(t *testing.T) {
	mock, start, end := testFetcher()
	r := testRunner(mock)
	r.Benchmark = "AAA" // AAA rises faster than BBB

	res, err := r.Run(context.Background(), []string{"BBB"}, start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Instruments) != 1 || res.Instruments[0].Symbol != "BBB" {
		t.Fatalf("the benchmark must not appear as an instrument, got %+v", res.Instruments)
	}

	snaps := res.Instruments[0].Snapshots
	last := snaps[len(snaps)-1]
	if !last.RSScore.OK {
		t.Fatal("RS score must be defined")
	}
	// Two returns in the peer set, BBB the weaker: percentile 50, not the
	// 100 a single-member universe would give.
	if last.RSScore.V != 50 {
		t.Errorf("expected RS 50 against the benchmark, got %v", last.RSScore.V)
	}
}

func TestRun_BenchmarkUnavailableIsNotFatal(t *testing.T) {
	mock, start, end := testFetcher()
	r := testRunner(mock)
	r.Benchmark = "NOPE"

	res, err := r.Run(context.Background(), []string{"AAA"}, start, end)
	if err != nil {
		t.Fatalf("a missing benchmark must not abort the batch: %v", err)
	}
	if _, ok := res.Skipped["NOPE"]; ok {
		t.Error("the benchmark is not part of the screened universe and must not be reported as skipped")
	}
	if len(res.Instruments) != 1 {
		t.Fatalf("expected 1 instrument, got %d", len(res.Instruments))
	}
}

func TestRun_CancelledContext(t *testing.T) {
	mock, start, end := testFetcher()
	r := testRunner(mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Run(ctx, []string{"AAA"}, start, end); err == nil {
		t.Fatal("a cancelled context must abort the batch")
	}
}
