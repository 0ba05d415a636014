package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

// DefaultPeriod is the history window fetched when none is configured.
const DefaultPeriod = "2y"

// Collector orchestrates price and fundamentals fetching for one ticker.
type Collector struct {
	Fetcher Fetcher
	Period  string
	log     zerolog.Logger
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, period string, log zerolog.Logger) *Collector {
	if period == "" {
		period = DefaultPeriod
	}
	return &Collector{
		Fetcher: fetcher,
		Period:  period,
		log:     log.With().Str("component", "collector").Str("source", fetcher.Name()).Logger(),
	}
}

// CollectSeries fetches the price history only.
func (c *Collector) CollectSeries(ctx context.Context, ticker string) (*model.PriceSeries, error) {
	series, err := c.Fetcher.FetchPriceSeries(ctx, ticker, c.Period)
	if err != nil {
		return nil, fmt.Errorf("fetch %s prices: %w", ticker, err)
	}
	if series.Empty() {
		return nil, fmt.Errorf("fetch %s prices: empty series: %w", ticker, model.ErrInsufficientData)
	}
	return series, nil
}

// Collect fetches prices and fundamentals. A fundamentals failure is logged
// and leaves MarketData.Fundamentals nil.
func (c *Collector) Collect(ctx context.Context, ticker string) (*model.MarketData, error) {
	series, err := c.CollectSeries(ctx, ticker)
	if err != nil {
		return nil, err
	}

	data := &model.MarketData{Series: series, FetchedAt: time.Now()}
	f, err := c.Fetcher.FetchFundamentals(ctx, ticker)
	if err != nil {
		c.log.Warn().Err(err).Str("ticker", series.Ticker).Msg("fundamentals unavailable")
	} else {
		data.Fundamentals = f
	}

	c.log.Debug().
		Str("ticker", series.Ticker).
		Int("bars", series.Len()).
		Bool("fundamentals", data.Fundamentals.Known()).
		Msg("collected")
	return data, nil
}
