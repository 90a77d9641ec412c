package scheduler

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rnjstp9754-jpg/swing-screener/internal/backtest"
	"github.com/rnjstp9754-jpg/swing-screener/internal/notifier"
	"github.com/rnjstp9754-jpg/swing-screener/internal/recorder"
	"github.com/rnjstp9754-jpg/swing-screener/internal/runner"
	"github.com/rnjstp9754-jpg/swing-screener/internal/screener"
)

// maxRecentSignals caps what /recent will ask the recorder for.
const maxRecentSignals = 50

// Scheduler runs the daily screening job and serves operator commands.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   *runner.Runner
	Notifier notifier.Notifier
	Recorder recorder.Recorder
	Calendar *TradingCalendar
	Ctx      context.Context

	Symbols      []string
	LookbackDays int

	// Backtest settings for the /backtest command.
	BacktestRule backtest.Rule
	Criteria     screener.Criteria
	Capital      float64

	mu          sync.Mutex
	lastRun     time.Time
	lastSignals int
	lastErr     error
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, r *runner.Runner, n notifier.Notifier, rec recorder.Recorder, cal *TradingCalendar, symbols []string, lookbackDays int) *Scheduler {
	return &Scheduler{
		Cron:         cron.New(cron.WithSeconds()),
		Runner:       r,
		Notifier:     n,
		Recorder:     rec,
		Calendar:     cal,
		Ctx:          ctx,
		Symbols:      symbols,
		LookbackDays: lookbackDays,
	}
}

// Register registers the daily screening task.
func (s *Scheduler) Register(screeningCron string) error {
	if _, err := s.Cron.AddFunc(screeningCron, s.screeningTask); err != nil {
		return fmt.Errorf("register screening task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunNow executes the screening task immediately (manual trigger / RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.runScreening()
}

func (s *Scheduler) screeningTask() {
	now := time.Now()
	if !s.Calendar.IsTradingDay(now) {
		log.Printf("[INFO] %s is not a trading day, skipping screening", now.Format("2006-01-02"))
		return
	}
	s.runScreening()
}

func (s *Scheduler) runScreening() {
	log.Println("[INFO] running screening task")
	end := time.Now()
	start := end.AddDate(0, 0, -s.LookbackDays)

	res, err := s.Runner.Run(s.Ctx, s.Symbols, start, end)

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastErr = err
	if res != nil {
		s.lastSignals = len(res.Signals)
	}
	s.mu.Unlock()

	if err != nil {
		log.Printf("[ERROR] screening run: %v", err)
		s.trySend(fmt.Sprintf("❌ screening run failed: %v", err))
		return
	}

	report := notifier.FormatScreeningReport(res.Date, len(res.Instruments), res.Signals)
	s.trySend(report)

	if err := s.Recorder.RecordScreening(res.Date, len(res.Instruments), res.Signals); err != nil {
		log.Printf("[ERROR] record screening: %v", err)
	}
}

func (s *Scheduler) runBacktest(rule backtest.Rule) {
	log.Printf("[INFO] running backtest task: stop %.0f%%, target %.0f%%",
		rule.StopLossPct*100, rule.TargetPct*100)
	end := time.Now()
	start := end.AddDate(0, 0, -s.LookbackDays)

	res, err := s.Runner.Run(s.Ctx, s.Symbols, start, end)
	if err != nil {
		log.Printf("[ERROR] backtest data run: %v", err)
		s.trySend(fmt.Sprintf("❌ backtest failed: %v", err))
		return
	}
	engine := backtest.NewEngine(rule, backtest.TemplateEntry{Criteria: s.Criteria}, s.Capital)
	result, err := engine.Run(res.Instruments)
	if err != nil {
		log.Printf("[ERROR] backtest: %v", err)
		s.trySend(fmt.Sprintf("❌ backtest failed: %v", err))
		return
	}

	label := fmt.Sprintf("%s stop %.0f%% target %.0f%%",
		res.Date.Format("2006-01-02"), rule.StopLossPct*100, rule.TargetPct*100)
	s.trySend(notifier.FormatBacktestSummary(label, rule, result))
	if err := s.Recorder.RecordBacktest(label, rule, result); err != nil {
		log.Printf("[ERROR] record backtest: %v", err)
	}
}

// HandleCommand serves one operator command and returns the reply.
func (s *Scheduler) HandleCommand(cmd notifier.Command) string {
	switch cmd.Name {
	case "screen":
		go s.runScreening()
		return "Screening started, report follows."
	case "status":
		return s.statusReport()
	case "recent":
		n := 10
		if len(cmd.Args) > 0 {
			v, err := strconv.Atoi(cmd.Args[0])
			if err != nil || v <= 0 {
				return "Usage: /recent [count]"
			}
			if v > maxRecentSignals {
				v = maxRecentSignals
			}
			n = v
		}
		signals, err := s.Recorder.RecentSignals(n)
		if err != nil {
			return fmt.Sprintf("failed to load signals: %v", err)
		}
		return notifier.FormatRecentSignals(signals)
	case "backtest":
		rule := s.BacktestRule
		if len(cmd.Args) > 0 {
			stop, err := parsePct(cmd.Args[0])
			if err != nil {
				return "Usage: /backtest [stop% [target%]]"
			}
			rule.StopLossPct = stop
		}
		if len(cmd.Args) > 1 {
			target, err := parsePct(cmd.Args[1])
			if err != nil {
				return "Usage: /backtest [stop% [target%]]"
			}
			rule.TargetPct = target
		}
		go s.runBacktest(rule)
		return fmt.Sprintf("Backtest started (stop %.0f%%, target %.0f%%), report follows.",
			rule.StopLossPct*100, rule.TargetPct*100)
	default:
		return "Commands:\n" +
			"• /screen – run the screen now\n" +
			"• /status – last run status\n" +
			"• /recent [n] – recently stored signals\n" +
			"• /backtest [stop% [target%]] – replay the trend template"
	}
}

// parsePct parses "7" or "7%" into the fraction 0.07.
func parsePct(arg string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(arg, "%"), 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 || v >= 100 {
		return 0, fmt.Errorf("percent out of range: %v", v)
	}
	return v / 100, nil
}

func (s *Scheduler) statusReport() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun.IsZero() {
		return "No screening run yet."
	}
	status := fmt.Sprintf("Last run: %s\nSignals: %d", s.lastRun.Format("2006-01-02 15:04"), s.lastSignals)
	if s.lastErr != nil {
		status += fmt.Sprintf("\nError: %v", s.lastErr)
	}
	return status
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
