package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rnjstp9754-jpg/swing-screener/internal/backtest"
	"github.com/rnjstp9754-jpg/swing-screener/internal/indicator"
	"github.com/rnjstp9754-jpg/swing-screener/internal/screener"
	"github.com/rnjstp9754-jpg/swing-screener/internal/stage"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		Provider      string `yaml:"provider"` // yahoo | rest | mock
		BaseURL       string `yaml:"base_url"`
		APIKey        string `yaml:"api_key"`
		CacheTTLHours int    `yaml:"cache_ttl_hours"`
	} `yaml:"data_source"`
	Universe struct {
		Symbols      []string `yaml:"symbols"`
		Benchmark    string   `yaml:"benchmark"`
		LookbackDays int      `yaml:"lookback_days"`
	} `yaml:"universe"`
	Schedule struct {
		ScreeningCron string `yaml:"screening_cron"`
		CalendarMIC   string `yaml:"calendar_mic"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath   string `yaml:"sqlite_path"`
		BarCachePath string `yaml:"bar_cache_path"`
	} `yaml:"database"`
	Runner struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"runner"`
	Indicator indicator.Config  `yaml:"indicator"`
	Stage     stage.Config      `yaml:"stage"`
	Screener  screener.Criteria `yaml:"screener"`
	Backtest  struct {
		Rule           backtest.Rule `yaml:"rule"`
		InitialCapital float64       `yaml:"initial_capital"`
	} `yaml:"backtest"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides. Subsystem sections are pre-filled with their defaults so the
// file only needs to state deviations.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Indicator = indicator.DefaultConfig()
	cfg.Stage = stage.DefaultConfig()
	cfg.Screener = screener.DefaultCriteria()
	cfg.Backtest.Rule = backtest.DefaultRule()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		cfg.DataSource.Provider = v
	}
	if v := os.Getenv("DATA_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("DATA_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("BAR_CACHE_PATH"); v != "" {
		cfg.Database.BarCachePath = v
	}
	if v := os.Getenv("SCREENING_CRON"); v != "" {
		cfg.Schedule.ScreeningCron = v
	}
	if v := os.Getenv("UNIVERSE_SYMBOLS"); v != "" {
		var symbols []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, s)
			}
		}
		cfg.Universe.Symbols = symbols
	}
	if v := os.Getenv("RUNNER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Runner.Concurrency = n
		}
	}

	// Defaults
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = "yahoo"
	}
	if cfg.DataSource.CacheTTLHours == 0 {
		cfg.DataSource.CacheTTLHours = 12
	}
	if cfg.Universe.Benchmark == "" {
		cfg.Universe.Benchmark = "SPX500"
	}
	if cfg.Universe.LookbackDays == 0 {
		// Enough calendar days to cover 252 trading bars plus warmup.
		cfg.Universe.LookbackDays = 550
	}
	if cfg.Schedule.ScreeningCron == "" {
		// 22:30 UTC on weekdays, after the US close.
		cfg.Schedule.ScreeningCron = "0 30 22 * * 1-5"
	}
	if cfg.Schedule.CalendarMIC == "" {
		cfg.Schedule.CalendarMIC = "xnys"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/screener.db"
	}
	if cfg.Database.BarCachePath == "" {
		cfg.Database.BarCachePath = "data/bar_cache.db"
	}
	if cfg.Runner.Concurrency == 0 {
		cfg.Runner.Concurrency = 4
	}
	if cfg.Backtest.InitialCapital == 0 {
		cfg.Backtest.InitialCapital = 100_000
	}

	return cfg, nil
}

// Validate checks that all required fields are set and the subsystem
// sections are internally consistent.
func (c *Config) Validate() error {
	if len(c.Universe.Symbols) == 0 {
		return fmt.Errorf("universe.symbols is required")
	}
	switch c.DataSource.Provider {
	case "yahoo", "mock":
	case "rest":
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for the rest provider")
		}
	default:
		return fmt.Errorf("data_source.provider %q is not supported", c.DataSource.Provider)
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
	}
	if c.Universe.LookbackDays < 0 {
		return fmt.Errorf("universe.lookback_days must be non-negative")
	}
	if err := c.Indicator.Validate(); err != nil {
		return fmt.Errorf("indicator: %w", err)
	}
	if err := c.Stage.Validate(); err != nil {
		return fmt.Errorf("stage: %w", err)
	}
	if err := c.Screener.Validate(); err != nil {
		return fmt.Errorf("screener: %w", err)
	}
	if err := c.Backtest.Rule.Validate(); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be positive")
	}
	return nil
}
