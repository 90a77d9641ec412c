package indicator

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/rnjstp9754-jpg/swing-screener/internal/model"
)

// ErrInsufficientHistory is returned when an instrument has fewer bars than
// the configured floor. The instrument is rejected wholesale rather than
// producing a partially valid series.
var ErrInsufficientHistory = errors.New("insufficient price history")

// Config holds the window sizes for all derived series.
type Config struct {
	ShortWindow  int `yaml:"short_window"`  // SMA50
	MediumWindow int `yaml:"medium_window"` // SMA150
	LongWindow   int `yaml:"long_window"`   // SMA200
	SlopeWindow  int `yaml:"slope_window"`  // bars between SMA200 samples for the slope sign
	RangeWindow  int `yaml:"range_window"`  // 52-week high/low lookback
	ReturnWindow int `yaml:"return_window"` // trailing return period for relative strength
	VolumeWindow int `yaml:"volume_window"` // trailing average volume period
	MinBars      int `yaml:"min_bars"`      // reject instruments with fewer bars
}

// DefaultConfig returns the standard daily-bar windows.
func DefaultConfig() Config {
	return Config{
		ShortWindow:  50,
		MediumWindow: 150,
		LongWindow:   200,
		SlopeWindow:  20,
		RangeWindow:  252,
		ReturnWindow: 126,
		VolumeWindow: 50,
		MinBars:      120,
	}
}

// Validate checks that every window is positive.
func (c Config) Validate() error {
	if c.ShortWindow <= 0 || c.MediumWindow <= 0 || c.LongWindow <= 0 {
		return fmt.Errorf("moving average windows must be positive")
	}
	if c.SlopeWindow <= 0 {
		return fmt.Errorf("slope_window must be positive")
	}
	if c.RangeWindow <= 0 || c.ReturnWindow <= 0 || c.VolumeWindow <= 0 {
		return fmt.Errorf("range_window, return_window and volume_window must be positive")
	}
	if c.MinBars <= 0 {
		return fmt.Errorf("min_bars must be positive")
	}
	return nil
}

// ReturnUniverse supplies the peer universe's trailing returns for a date.
// The relative-strength score is the percentile rank of the instrument's own
// trailing return within that set; an empty set leaves the score undefined.
type ReturnUniverse interface {
	ReturnsOn(date time.Time) []float64
}

// universeByDate is the standard ReturnUniverse: a table of peer returns
// keyed by normalized date.
type universeByDate map[int64][]float64

func (u universeByDate) ReturnsOn(date time.Time) []float64 {
	return u[model.Day(date).Unix()]
}

// BuildUniverse collects per-date peer returns from many instruments' return
// series into a single lookup table. Peer slices come out sorted so the
// percentile rank is a direct empirical CDF evaluation.
func BuildUniverse(perSymbol []map[int64]float64) ReturnUniverse {
	u := make(universeByDate)
	for _, returns := range perSymbol {
		for day, r := range returns {
			u[day] = append(u[day], r)
		}
	}
	for day := range u {
		sort.Float64s(u[day])
	}
	return u
}

// TrailingReturns computes the trailing ReturnWindow-period return for every
// bar where it is defined, keyed by normalized date. Used to build the peer
// universe before full snapshots are computed.
func TrailingReturns(s *model.Series, cfg Config) map[int64]float64 {
	out := make(map[int64]float64)
	for i := cfg.ReturnWindow; i < len(s.Bars); i++ {
		cur, base := s.Bars[i].AdjClose, s.Bars[i-cfg.ReturnWindow].AdjClose
		if math.IsNaN(cur) || math.IsNaN(base) || base <= 0 {
			continue
		}
		out[model.Day(s.Bars[i].Date).Unix()] = cur/base - 1
	}
	return out
}

// Compute derives one Snapshot per bar from an ordered price series.
// All averages and returns use the adjusted close; 52-week extremes use the
// bar High/Low fields. A nil universe leaves every RS score undefined.
func Compute(s *model.Series, cfg Config, universe ReturnUniverse) ([]model.Snapshot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(s.Bars) == 0 {
		return nil, fmt.Errorf("%s: empty series", s.Symbol)
	}
	if len(s.Bars) < cfg.MinBars {
		return nil, fmt.Errorf("%s: %d bars, need %d: %w", s.Symbol, len(s.Bars), cfg.MinBars, ErrInsufficientHistory)
	}

	n := len(s.Bars)
	adj := make([]float64, n)
	vol := make([]float64, n)
	for i, b := range s.Bars {
		adj[i] = b.AdjClose
		vol[i] = b.Volume
	}

	sma50 := rollingMean(adj, cfg.ShortWindow)
	sma150 := rollingMean(adj, cfg.MediumWindow)
	sma200 := rollingMean(adj, cfg.LongWindow)
	volAvg := rollingMean(vol, cfg.VolumeWindow)

	snaps := make([]model.Snapshot, n)
	trendBars := 0
	for i := 0; i < n; i++ {
		bar := s.Bars[i]
		snap := model.Snapshot{
			Date:   bar.Date,
			Close:  bar.AdjClose,
			SMA50:  sma50[i],
			SMA150: sma150[i],
			SMA200: sma200[i],
		}

		// Slope of SMA200: sign of the difference vs. SlopeWindow bars
		// earlier. An exact zero difference is flat, not up or down.
		if j := i - cfg.SlopeWindow; j >= 0 && sma200[i].OK && sma200[j].OK {
			switch diff := sma200[i].V - sma200[j].V; {
			case diff > 0:
				snap.SMA200Slope = model.SlopeUp
			case diff < 0:
				snap.SMA200Slope = model.SlopeDown
			default:
				snap.SMA200Slope = model.SlopeFlat
			}
		}
		if snap.SMA200Slope == model.SlopeUp {
			trendBars++
		} else {
			trendBars = 0
		}
		snap.TrendBars = trendBars

		snap.High52w, snap.Low52w = rangeExtremes(s.Bars, i, cfg.RangeWindow)

		if volAvg[i].OK && volAvg[i].V > 0 && !math.IsNaN(bar.Volume) {
			snap.VolumeRatio = model.Defined(bar.Volume / volAvg[i].V)
		}

		if universe != nil {
			if j := i - cfg.ReturnWindow; j >= 0 && !math.IsNaN(adj[i]) && !math.IsNaN(adj[j]) && adj[j] > 0 {
				peers := universe.ReturnsOn(bar.Date)
				if len(peers) > 0 {
					r := adj[i]/adj[j] - 1
					snap.RSScore = model.Defined(stat.CDF(r, stat.Empirical, peers, nil) * 100)
				}
			}
		}

		snaps[i] = snap
	}
	return snaps, nil
}

// rollingMean computes a full-window simple moving average. Values stay
// undefined until the window is fully populated, and for any window that
// contains a NaN input.
func rollingMean(values []float64, window int) []model.Value {
	out := make([]model.Value, len(values))
	var sum float64
	nan := 0
	for i, v := range values {
		if math.IsNaN(v) {
			nan++
		} else {
			sum += v
		}
		if i >= window {
			old := values[i-window]
			if math.IsNaN(old) {
				nan--
			} else {
				sum -= old
			}
		}
		if i >= window-1 && nan == 0 {
			out[i] = model.Defined(sum / float64(window))
		}
	}
	return out
}

// rangeExtremes scans the trailing window ending at idx for the highest High
// and lowest Low. The leading partial window is allowed; bars with NaN
// extremes are skipped.
func rangeExtremes(bars []model.PriceBar, idx, window int) (high, low model.Value) {
	start := idx - window + 1
	if start < 0 {
		start = 0
	}
	hi, lo := math.Inf(-1), math.Inf(1)
	for i := start; i <= idx; i++ {
		if !math.IsNaN(bars[i].High) && bars[i].High > hi {
			hi = bars[i].High
		}
		if !math.IsNaN(bars[i].Low) && bars[i].Low < lo {
			lo = bars[i].Low
		}
	}
	if !math.IsInf(hi, -1) {
		high = model.Defined(hi)
	}
	if !math.IsInf(lo, 1) {
		low = model.Defined(lo)
	}
	return high, low
}
