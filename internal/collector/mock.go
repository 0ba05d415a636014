package collector

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Tickers present in Series/Funds are served verbatim; others get a
// generated series around Price.
type MockFetcher struct {
	Price  float64
	Days   int       // generated bars, default 300
	End    time.Time // last generated bar, default today
	Series map[string]*model.PriceSeries
	Funds  map[string]*model.Fundamentals
	Err    error // returned by every call when set
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchPriceSeries(_ context.Context, ticker, period string) (*model.PriceSeries, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ValidatePeriod(period); err != nil {
		return nil, err
	}
	symbol := NormalizeTicker(ticker)
	if s, ok := m.Series[symbol]; ok {
		return s.Slice(0, s.Len()), nil
	}
	if m.Series != nil {
		return nil, fmt.Errorf("mock: unknown symbol %s: %w", symbol, model.ErrInsufficientData)
	}
	days := m.Days
	if days == 0 {
		days = 300
	}
	end := m.End
	if end.IsZero() {
		end = time.Now().UTC()
	}
	price := m.Price
	if price == 0 {
		price = 1000
	}
	return &model.PriceSeries{Ticker: symbol, Bars: generateMockBars(price, days, end)}, nil
}

func (m *MockFetcher) FetchFundamentals(_ context.Context, ticker string) (*model.Fundamentals, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	symbol := NormalizeTicker(ticker)
	if f, ok := m.Funds[symbol]; ok {
		out := *f
		return &out, nil
	}
	return &model.Fundamentals{Ticker: symbol}, nil
}

// generateMockBars builds count weekday bars ending at end: a slow upward
// drift with a monthly wave.
func generateMockBars(basePrice float64, count int, end time.Time) []model.Bar {
	day := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, count)
	for i := count - 1; i >= 0; i-- {
		for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			day = day.AddDate(0, 0, -1)
		}
		p := basePrice * (1 + float64(i-count/2)*0.001 + 0.02*math.Sin(float64(i)*2*math.Pi/22))
		bars[i] = model.Bar{
			Date:   day,
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
		day = day.AddDate(0, 0, -1)
	}
	return bars
}
