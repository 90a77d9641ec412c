package collector

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"github.com/rnjstp9754-jpg/swing-screener/internal/model"
)

// BarCache is a SQLite-backed read-through cache in front of a Fetcher,
// keyed by (symbol, start, end). Concurrent requests for the same key share
// a single upstream fetch; a cached range is reused until its TTL expires.
type BarCache struct {
	db       *sql.DB
	upstream Fetcher
	ttl      time.Duration

	group singleflight.Group
	mu    sync.Mutex // serializes write transactions
}

// NewBarCache opens (or creates) the cache database and runs migrations.
// A non-positive ttl caches forever.
func NewBarCache(dbPath string, upstream Fetcher, ttl time.Duration) (*BarCache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open bar cache: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	c := &BarCache{db: db, upstream: upstream, ttl: ttl}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate bar cache: %w", err)
	}
	log.Printf("[INFO] bar cache opened: %s (upstream: %s)", dbPath, upstream.Name())
	return c, nil
}

func (c *BarCache) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			symbol    TEXT NOT NULL,
			date      TEXT NOT NULL,
			open      REAL,
			high      REAL,
			low       REAL,
			close     REAL,
			adj_close REAL,
			volume    REAL,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE TABLE IF NOT EXISTS fetch_ranges (
			symbol     TEXT NOT NULL,
			start      TEXT NOT NULL,
			end        TEXT NOT NULL,
			fetched_at INTEGER NOT NULL,
			PRIMARY KEY (symbol, start, end)
		)`,
	}
	for _, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (c *BarCache) Name() string { return c.upstream.Name() + "+cache" }

// FetchBars serves from the cache when the exact range is present and
// fresh, fetching upstream otherwise. At most one upstream fetch per key is
// in flight at any moment.
func (c *BarCache) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceBar, error) {
	startKey := model.Day(start).Format("2006-01-02")
	endKey := model.Day(end).Format("2006-01-02")
	key := symbol + "|" + startKey + "|" + endKey

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if bars, ok := c.lookup(symbol, startKey, endKey); ok {
			return bars, nil
		}
		bars, err := c.upstream.FetchBars(ctx, symbol, start, end)
		if err != nil {
			return nil, err
		}
		if err := c.store(symbol, startKey, endKey, bars); err != nil {
			// The fetch itself succeeded; a cache write failure is not fatal.
			log.Printf("[WARN] bar cache store %s: %v", symbol, err)
		}
		return bars, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.PriceBar), nil
}

func (c *BarCache) lookup(symbol, startKey, endKey string) ([]model.PriceBar, bool) {
	var fetchedAt int64
	err := c.db.QueryRow(
		`SELECT fetched_at FROM fetch_ranges WHERE symbol = ? AND start = ? AND end = ?`,
		symbol, startKey, endKey,
	).Scan(&fetchedAt)
	if err != nil {
		return nil, false
	}
	if c.ttl > 0 && time.Since(time.Unix(fetchedAt, 0)) > c.ttl {
		return nil, false
	}

	rows, err := c.db.Query(
		`SELECT date, open, high, low, close, adj_close, volume
		 FROM bars WHERE symbol = ? AND date >= ? AND date <= ? ORDER BY date`,
		symbol, startKey, endKey,
	)
	if err != nil {
		log.Printf("[WARN] bar cache read %s: %v", symbol, err)
		return nil, false
	}
	defer rows.Close()

	var bars []model.PriceBar
	for rows.Next() {
		var dateStr string
		var b model.PriceBar
		if err := rows.Scan(&dateStr, &b.Open, &b.High, &b.Low, &b.Close, &b.AdjClose, &b.Volume); err != nil {
			return nil, false
		}
		d, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, false
		}
		b.Date = model.Day(d)
		bars = append(bars, b)
	}
	if rows.Err() != nil || len(bars) == 0 {
		return nil, false
	}
	return bars, true
}

func (c *BarCache) store(symbol, startKey, endKey string, bars []model.PriceBar) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO bars (symbol, date, open, high, low, close, adj_close, volume)
		 VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, b := range bars {
		if _, err := stmt.Exec(symbol, model.Day(b.Date).Format("2006-01-02"),
			b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO fetch_ranges (symbol, start, end, fetched_at) VALUES (?,?,?,?)`,
		symbol, startKey, endKey, time.Now().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

func (c *BarCache) Close() error {
	return c.db.Close()
}
