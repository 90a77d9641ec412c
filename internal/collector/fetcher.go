package collector

import (
	"context"
	"errors"
	"time"

	"github.com/rnjstp9754-jpg/swing-screener/internal/model"
)

// ErrDataUnavailable is returned when the data source has no bars for the
// requested instrument and range. Callers continue with the rest of the
// universe; one bad instrument never aborts a batch.
var ErrDataUnavailable = errors.New("no data available")

// Fetcher retrieves daily price history. Bars come back sorted ascending by
// date, unique per date, already adjusted for splits and dividends.
// Implementations bound each call with their own timeout; retries and
// backoff are the caller's responsibility.
type Fetcher interface {
	FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceBar, error)
	Name() string
}
