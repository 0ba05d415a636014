package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

// ExchangeSuffix is appended to bare IDX tickers.
const ExchangeSuffix = ".JK"

// Periods accepted by FetchPriceSeries.
var Periods = []string{"1mo", "3mo", "6mo", "1y", "2y", "5y", "max"}

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	// FetchPriceSeries returns daily bars for the period in ascending order.
	FetchPriceSeries(ctx context.Context, ticker, period string) (*model.PriceSeries, error)
	// FetchFundamentals returns the latest snapshot; unknown fields stay nil.
	FetchFundamentals(ctx context.Context, ticker string) (*model.Fundamentals, error)
	Name() string
}

// NormalizeTicker upper-cases a ticker and appends the IDX suffix when it
// carries no exchange suffix. Index symbols starting with ^ are left alone.
func NormalizeTicker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" || strings.HasPrefix(t, "^") || strings.Contains(t, ".") {
		return t
	}
	return t + ExchangeSuffix
}

// ValidatePeriod rejects periods outside Periods.
func ValidatePeriod(period string) error {
	for _, p := range Periods {
		if p == period {
			return nil
		}
	}
	return fmt.Errorf("period %q not in %v: %w", period, Periods, model.ErrInvalidParameter)
}
