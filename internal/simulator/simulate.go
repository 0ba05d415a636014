package simulator

import (
	"fmt"
	"time"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

// Simulate buys capital worth of the ticker at the close of the first bar on
// or after entryDate and marks the position to market on every later bar.
// Shares are fractional.
func Simulate(series *model.PriceSeries, entryDate time.Time, capital float64) (*model.PortfolioSnapshot, error) {
	if !(capital > 0) {
		return nil, fmt.Errorf("simulate capital %.2f: %w", capital, model.ErrInvalidParameter)
	}
	if series.Empty() {
		return nil, fmt.Errorf("simulate: empty series: %w", model.ErrInsufficientData)
	}

	entry := -1
	for i, b := range series.Bars {
		if !b.Date.Before(entryDate) {
			entry = i
			break
		}
	}
	if entry < 0 {
		last, _ := series.Last()
		return nil, fmt.Errorf("simulate %s: entry %s after last bar %s: %w",
			series.Ticker, entryDate.Format("2006-01-02"), last.Date.Format("2006-01-02"), model.ErrNoDataForDate)
	}

	entryBar := series.Bars[entry]
	if !(entryBar.Close > 0) {
		return nil, fmt.Errorf("simulate %s: entry close %.2f: %w", series.Ticker, entryBar.Close, model.ErrInsufficientData)
	}
	shares := capital / entryBar.Close

	history := make([]model.ValuePoint, 0, series.Len()-entry)
	for _, b := range series.Bars[entry:] {
		history = append(history, model.ValuePoint{Date: b.Date, Close: b.Close, Value: shares * b.Close})
	}

	current := series.Bars[series.Len()-1]
	value := shares * current.Close
	profit := value - capital
	return &model.PortfolioSnapshot{
		Ticker:       series.Ticker,
		EntryDate:    entryBar.Date,
		EntryPrice:   entryBar.Close,
		EntryCapital: capital,
		Shares:       shares,
		CurrentPrice: current.Close,
		CurrentValue: value,
		Profit:       profit,
		ProfitPct:    profit / capital * 100,
		History:      history,
	}, nil
}
