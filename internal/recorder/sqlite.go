package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rnjstp9754-jpg/swing-screener/internal/backtest"
	"github.com/rnjstp9754-jpg/swing-screener/internal/model"
)

// SQLiteRecorder persists runs to a local SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the database at dbPath and runs
// migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Printf("[INFO] recorder database opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS screening_runs (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			run_date      TEXT NOT NULL,
			universe_size INTEGER NOT NULL,
			signal_count  INTEGER NOT NULL,
			created_at    INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS signals (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       INTEGER NOT NULL REFERENCES screening_runs(id),
			symbol       TEXT NOT NULL,
			signal_date  TEXT NOT NULL,
			stage        TEXT NOT NULL,
			rs_score     REAL NOT NULL,
			volume_ratio REAL NOT NULL,
			price        REAL NOT NULL,
			passed       TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			label           TEXT NOT NULL,
			stop_loss_pct   REAL NOT NULL,
			target_pct      REAL NOT NULL,
			initial_capital REAL NOT NULL,
			final_equity    REAL NOT NULL,
			total_return    REAL NOT NULL,
			max_drawdown    REAL NOT NULL,
			win_rate        REAL NOT NULL,
			trade_count     INTEGER NOT NULL,
			created_at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_run ON signals(run_id)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordScreening(runDate time.Time, universeSize int, signals []model.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO screening_runs (run_date, universe_size, signal_count, created_at) VALUES (?,?,?,?)`,
		runDate.Format("2006-01-02"), universeSize, len(signals), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO signals (run_id, symbol, signal_date, stage, rs_score, volume_ratio, price, passed)
		 VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare signal insert: %w", err)
	}
	defer stmt.Close()
	for _, sig := range signals {
		if _, err := stmt.Exec(runID, sig.Symbol, sig.Date.Format("2006-01-02"),
			sig.Stage.String(), sig.RSScore, sig.VolumeRatio, sig.Price,
			strings.Join(sig.Passed, ",")); err != nil {
			return fmt.Errorf("insert signal %s: %w", sig.Symbol, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordBacktest(label string, rule backtest.Rule, result *backtest.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(
		`INSERT INTO backtest_runs (label, stop_loss_pct, target_pct, initial_capital, final_equity,
		 total_return, max_drawdown, win_rate, trade_count, created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		label, rule.StopLossPct, rule.TargetPct, result.InitialCapital, result.FinalEquity,
		result.Summary.TotalReturn, result.Summary.MaxDrawdown, result.Summary.WinRate,
		result.Summary.TradeCount, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) RecentSignals(limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(
		`SELECT symbol, signal_date, stage, rs_score, volume_ratio, price, passed
		 FROM signals ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var sig model.Signal
		var dateStr, stageStr, passed string
		if err := rows.Scan(&sig.Symbol, &dateStr, &stageStr, &sig.RSScore,
			&sig.VolumeRatio, &sig.Price, &passed); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		d, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse signal date %q: %w", dateStr, err)
		}
		sig.Date = model.Day(d)
		sig.Stage = parseStage(stageStr)
		if passed != "" {
			sig.Passed = strings.Split(passed, ",")
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

func parseStage(s string) model.Stage {
	switch s {
	case "BASING":
		return model.StageBasing
	case "ADVANCING":
		return model.StageAdvancing
	case "TOPPING":
		return model.StageTopping
	case "DECLINING":
		return model.StageDeclining
	default:
		return model.StageNone
	}
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
