package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rnjstp9754-jpg/swing-screener/internal/backtest"
	"github.com/rnjstp9754-jpg/swing-screener/internal/collector"
	"github.com/rnjstp9754-jpg/swing-screener/internal/indicator"
	"github.com/rnjstp9754-jpg/swing-screener/internal/model"
	"github.com/rnjstp9754-jpg/swing-screener/internal/screener"
	"github.com/rnjstp9754-jpg/swing-screener/internal/stage"
)

// ErrEmptyBatch is returned when no instrument in the universe produced
// usable data.
var ErrEmptyBatch = errors.New("no instruments produced data")

// Runner drives the full pipeline for a universe of symbols: fetch bars,
// build the cross-sectional return universe, compute indicators, classify
// stages and screen the latest common date.
type Runner struct {
	fetcher     collector.Fetcher
	indCfg      indicator.Config
	stageCfg    stage.Config
	criteria    screener.Criteria
	concurrency int

	// Benchmark, when set, is fetched alongside the universe and contributes
	// its trailing returns to the relative-strength peer set, but is never
	// screened or backtested itself.
	Benchmark string
}

func New(fetcher collector.Fetcher, indCfg indicator.Config, stageCfg stage.Config, criteria screener.Criteria, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Runner{
		fetcher:     fetcher,
		indCfg:      indCfg,
		stageCfg:    stageCfg,
		criteria:    criteria,
		concurrency: concurrency,
	}
}

// BatchResult holds the outcome of one pipeline run.
type BatchResult struct {
	// Date is the screening date, the latest bar date shared by every
	// surviving instrument.
	Date    time.Time
	Signals []model.Signal
	// Instruments carries the full per-symbol bars, snapshots and stage
	// history, aligned and ready for backtesting.
	Instruments []*backtest.Instrument
	// Skipped maps symbols that were dropped to the reason.
	Skipped map[string]error
}

type fetchOutcome struct {
	series  *model.Series
	returns map[int64]float64
	err     error
}

// Run executes the pipeline. Individual instrument failures are logged and
// collected in BatchResult.Skipped; the batch aborts only when the context
// is cancelled or every instrument fails.
func (r *Runner) Run(ctx context.Context, symbols []string, start, end time.Time) (*BatchResult, error) {
	symbols = dedupe(symbols)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("run batch: empty universe")
	}
	log.Printf("[INFO] batch run: %d symbols, %s .. %s",
		len(symbols), start.Format("2006-01-02"), end.Format("2006-01-02"))

	fetchList := symbols
	benchIdx := -1
	if r.Benchmark != "" && !contains(symbols, r.Benchmark) {
		fetchList = append(append([]string(nil), symbols...), r.Benchmark)
		benchIdx = len(fetchList) - 1
	}

	// Phase 1: fetch history and trailing returns for every symbol. Each
	// worker writes only its own slot, so no merge lock is needed.
	fetched := make([]fetchOutcome, len(fetchList))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, sym := range fetchList {
		i, sym := i, sym
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bars, err := r.fetcher.FetchBars(gctx, sym, start, end)
			if err != nil {
				fetched[i] = fetchOutcome{err: err}
				return nil
			}
			s := &model.Series{Symbol: sym, Bars: bars, FetchedAt: time.Now()}
			fetched[i] = fetchOutcome{series: s, returns: indicator.TrailingReturns(s, r.indCfg)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("run batch: %w", err)
	}

	skipped := make(map[string]error)
	var perSymbol []map[int64]float64
	var alive []int
	for i, f := range fetched {
		if f.err != nil {
			if i == benchIdx {
				log.Printf("[WARN] benchmark %s unavailable, ranking against peers only: %v", fetchList[i], f.err)
				continue
			}
			log.Printf("[WARN] skipping %s: %v", fetchList[i], f.err)
			skipped[fetchList[i]] = f.err
			continue
		}
		perSymbol = append(perSymbol, f.returns)
		if i != benchIdx {
			alive = append(alive, i)
		}
	}
	if len(alive) == 0 {
		return nil, ErrEmptyBatch
	}
	universe := indicator.BuildUniverse(perSymbol)

	// Phase 2: indicators and stage history, against the shared universe.
	instruments := make([]*backtest.Instrument, len(alive))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for slot, idx := range alive {
		slot, idx := slot, idx
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s := fetched[idx].series
			snaps, err := indicator.Compute(s, r.indCfg, universe)
			if err != nil {
				fetched[idx].err = err
				return nil
			}
			instruments[slot] = &backtest.Instrument{
				Symbol:    s.Symbol,
				Bars:      s.Bars,
				Snapshots: snaps,
				Stages:    stage.Classify(snaps, r.stageCfg),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("run batch: %w", err)
	}

	var kept []*backtest.Instrument
	for slot, idx := range alive {
		if fetched[idx].err != nil {
			log.Printf("[WARN] skipping %s: %v", fetchList[idx], fetched[idx].err)
			skipped[fetchList[idx]] = fetched[idx].err
			continue
		}
		kept = append(kept, instruments[slot])
	}
	if len(kept) == 0 {
		return nil, ErrEmptyBatch
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Symbol < kept[j].Symbol })

	screenDate := commonDate(kept)
	candidates := make(map[string]screener.Candidate, len(kept))
	for _, inst := range kept {
		i := snapshotIndex(inst.Snapshots, screenDate)
		if i < 0 {
			continue
		}
		cand := screener.Candidate{
			Snapshot: inst.Snapshots[i],
			Stage:    inst.Stages[i].Label,
		}
		if i > 0 {
			_, cand.PrevPassed = screener.Evaluate(&inst.Snapshots[i-1], r.criteria)
		}
		candidates[inst.Symbol] = cand
	}
	signals := screener.Screen(screenDate, candidates, r.criteria)
	log.Printf("[INFO] batch complete: %d/%d instruments, %d signals on %s",
		len(kept), len(symbols), len(signals), screenDate.Format("2006-01-02"))

	return &BatchResult{
		Date:        screenDate,
		Signals:     signals,
		Instruments: kept,
		Skipped:     skipped,
	}, nil
}

// commonDate returns the latest bar date present in every instrument,
// which is the minimum of the per-instrument last dates since every series
// is sorted ascending.
func commonDate(insts []*backtest.Instrument) time.Time {
	var min time.Time
	for i, inst := range insts {
		last := inst.Bars[len(inst.Bars)-1].Date
		if i == 0 || last.Before(min) {
			min = last
		}
	}
	return min
}

func snapshotIndex(snaps []model.Snapshot, date time.Time) int {
	// Screening dates sit at or near the end of the series, so scan backward.
	for i := len(snaps) - 1; i >= 0; i-- {
		if snaps[i].Date.Equal(date) {
			return i
		}
		if snaps[i].Date.Before(date) {
			break
		}
	}
	return -1
}

func contains(symbols []string, s string) bool {
	for _, v := range symbols {
		if v == s {
			return true
		}
	}
	return false
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := symbols[:0:0]
	for _, s := range symbols {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
