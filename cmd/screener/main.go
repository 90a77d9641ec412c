package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rnjstp9754-jpg/swing-screener/internal/backtest"
	"github.com/rnjstp9754-jpg/swing-screener/internal/collector"
	"github.com/rnjstp9754-jpg/swing-screener/internal/config"
	"github.com/rnjstp9754-jpg/swing-screener/internal/notifier"
	"github.com/rnjstp9754-jpg/swing-screener/internal/recorder"
	"github.com/rnjstp9754-jpg/swing-screener/internal/runner"
	"github.com/rnjstp9754-jpg/swing-screener/internal/scheduler"
	"github.com/rnjstp9754-jpg/swing-screener/internal/screener"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] swing-screener starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init fetcher
	var upstream collector.Fetcher
	switch cfg.DataSource.Provider {
	case "rest":
		upstream = collector.NewRESTFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy)
	case "mock":
		upstream = &collector.MockFetcher{}
	default:
		upstream = collector.NewYahooFetcher(cfg.Proxy)
	}
	fetcher := upstream
	if cfg.Database.BarCachePath != "" {
		cache, err := collector.NewBarCache(cfg.Database.BarCachePath, upstream,
			time.Duration(cfg.DataSource.CacheTTLHours)*time.Hour)
		if err != nil {
			log.Printf("[WARN] init bar cache failed, fetching direct: %v", err)
		} else {
			fetcher = cache
			defer cache.Close()
		}
	}
	log.Printf("[INFO] data source: %s", fetcher.Name())

	// Init pipeline runner
	run := runner.New(fetcher, cfg.Indicator, cfg.Stage, cfg.Screener, cfg.Runner.Concurrency)
	run.Benchmark = cfg.Universe.Benchmark

	// Init notifier
	var n notifier.Notifier
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		n = tn
	} else {
		log.Println("[INFO] telegram not configured, reports go to the log")
		n = notifier.LogNotifier{}
	}

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One-shot modes
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "screen":
			runOnce(ctx, run, cfg, n, rec)
			return
		case "backtest":
			runBacktest(ctx, run, cfg, n, rec)
			return
		default:
			log.Fatalf("[FATAL] unknown command %q (expected screen or backtest)", os.Args[1])
		}
	}

	// Init scheduler
	cal := scheduler.NewTradingCalendar(cfg.Schedule.CalendarMIC)
	sched := scheduler.NewScheduler(ctx, run, n, rec, cal, cfg.Universe.Symbols, cfg.Universe.LookbackDays)
	sched.BacktestRule = cfg.Backtest.Rule
	sched.Criteria = cfg.Screener
	sched.Capital = cfg.Backtest.InitialCapital
	if err := sched.Register(cfg.Schedule.ScreeningCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing screening now")
		go sched.RunNow()
	}

	log.Println("[INFO] swing-screener is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] swing-screener stopped")
}

func runOnce(ctx context.Context, run *runner.Runner, cfg *config.Config, n notifier.Notifier, rec recorder.Recorder) {
	end := time.Now()
	start := end.AddDate(0, 0, -cfg.Universe.LookbackDays)
	res, err := run.Run(ctx, cfg.Universe.Symbols, start, end)
	if err != nil {
		log.Fatalf("[FATAL] screening run: %v", err)
	}
	report := notifier.FormatScreeningReport(res.Date, len(res.Instruments), res.Signals)
	if err := n.Send(report); err != nil {
		log.Printf("[ERROR] send report: %v", err)
	}
	if err := rec.RecordScreening(res.Date, len(res.Instruments), res.Signals); err != nil {
		log.Printf("[ERROR] record screening: %v", err)
	}
}

func runBacktest(ctx context.Context, run *runner.Runner, cfg *config.Config, n notifier.Notifier, rec recorder.Recorder) {
	end := time.Now()
	start := end.AddDate(0, 0, -cfg.Universe.LookbackDays)
	res, err := run.Run(ctx, cfg.Universe.Symbols, start, end)
	if err != nil {
		log.Fatalf("[FATAL] backtest data run: %v", err)
	}

	engine := backtest.NewEngine(cfg.Backtest.Rule,
		&backtest.TemplateEntry{Criteria: cfg.Screener}, cfg.Backtest.InitialCapital)
	result, err := engine.Run(res.Instruments)
	if err != nil {
		log.Fatalf("[FATAL] backtest: %v", err)
	}

	label := end.Format("2006-01-02") + " " + screenerLabel(cfg.Screener)
	report := notifier.FormatBacktestSummary(label, cfg.Backtest.Rule, result)
	if err := n.Send(report); err != nil {
		log.Printf("[ERROR] send report: %v", err)
	}
	if err := rec.RecordBacktest(label, cfg.Backtest.Rule, result); err != nil {
		log.Printf("[ERROR] record backtest: %v", err)
	}
}

func screenerLabel(c screener.Criteria) string {
	if c.CheckRS {
		return "trend-template"
	}
	return "trend-template-no-rs"
}
