package recorder

import (
	"time"

	"github.com/rnjstp9754-jpg/swing-screener/internal/backtest"
	"github.com/rnjstp9754-jpg/swing-screener/internal/model"
)

// NoopRecorder discards everything. Used when persistence is disabled.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordScreening(time.Time, int, []model.Signal) error { return nil }

func (n *NoopRecorder) RecordBacktest(string, backtest.Rule, *backtest.Result) error { return nil }

func (n *NoopRecorder) RecentSignals(int) ([]model.Signal, error) { return nil, nil }

func (n *NoopRecorder) Close() error { return nil }
