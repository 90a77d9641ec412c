package recorder

import (
	"time"

	"github.com/rnjstp9754-jpg/swing-screener/internal/backtest"
	"github.com/rnjstp9754-jpg/swing-screener/internal/model"
)

// Recorder persists screening runs and backtest results for later review.
type Recorder interface {
	// RecordScreening stores one screening run and its signals.
	RecordScreening(runDate time.Time, universeSize int, signals []model.Signal) error
	// RecordBacktest stores a completed backtest summary.
	RecordBacktest(label string, rule backtest.Rule, result *backtest.Result) error
	// RecentSignals returns the most recent stored signals, newest first.
	RecentSignals(limit int) ([]model.Signal, error)
	Close() error
}
