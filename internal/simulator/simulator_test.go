package simulator

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

var day0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func dailySeries(ticker string, closes ...float64) *model.PriceSeries {
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		bars[i] = model.Bar{Date: day0.AddDate(0, 0, i), Close: c}
	}
	return &model.PriceSeries{Ticker: ticker, Bars: bars}
}

func TestSimulate_ProfitScenario(t *testing.T) {
	series := dailySeries("BBCA.JK", 900, 1000, 1100, 1200)
	snap, err := Simulate(series, day0.AddDate(0, 0, 1), 10_000_000)
	require.NoError(t, err)

	assert.Equal(t, 1000.0, snap.EntryPrice)
	assert.InDelta(t, 10_000, snap.Shares, 1e-9)
	assert.InDelta(t, 12_000_000, snap.CurrentValue, 1e-6)
	assert.InDelta(t, 2_000_000, snap.Profit, 1e-6)
	assert.InDelta(t, 20, snap.ProfitPct, 1e-9)
	require.Len(t, snap.History, 3)
	assert.Equal(t, day0.AddDate(0, 0, 1), snap.History[0].Date)
	assert.InDelta(t, 10_000_000, snap.History[0].Value, 1e-6)
}

func TestSimulate_EntryOnGapUsesNextBar(t *testing.T) {
	series := &model.PriceSeries{Ticker: "ASII.JK", Bars: []model.Bar{
		{Date: day0, Close: 5000},
		{Date: day0.AddDate(0, 0, 3), Close: 5500},
		{Date: day0.AddDate(0, 0, 4), Close: 5400},
	}}
	snap, err := Simulate(series, day0.AddDate(0, 0, 1), 1_100_000)
	require.NoError(t, err)
	assert.Equal(t, 5500.0, snap.EntryPrice)
	assert.Equal(t, day0.AddDate(0, 0, 3), snap.EntryDate)
	assert.InDelta(t, 200, snap.Shares, 1e-9)
	assert.Len(t, snap.History, 2)
}

func TestSimulate_FractionalShares(t *testing.T) {
	snap, err := Simulate(dailySeries("X", 3, 3), day0, 10)
	require.NoError(t, err)
	assert.InDelta(t, 10.0/3, snap.Shares, 1e-12)
	assert.InDelta(t, 10, snap.CurrentValue, 1e-9)
}

func TestSimulate_Errors(t *testing.T) {
	series := dailySeries("X", 100, 101)

	_, err := Simulate(series, day0.AddDate(0, 0, 5), 1000)
	assert.True(t, errors.Is(err, model.ErrNoDataForDate))

	_, err = Simulate(series, day0, 0)
	assert.True(t, errors.Is(err, model.ErrInvalidParameter))

	_, err = Simulate(series, day0, -10)
	assert.True(t, errors.Is(err, model.ErrInvalidParameter))

	_, err = Simulate(&model.PriceSeries{Ticker: "X"}, day0, 1000)
	assert.True(t, errors.Is(err, model.ErrInsufficientData))
}

func TestCalculateRisk_KnownValues(t *testing.T) {
	snap, err := Simulate(dailySeries("X", 100, 110, 99, 108.9), day0, 1000)
	require.NoError(t, err)
	risk := CalculateRisk(snap)
	require.NotNil(t, risk)

	// returns: +10%, -10%, +10%
	mean := 0.1 / 3
	sd := math.Sqrt((2*math.Pow(0.1-mean, 2) + math.Pow(-0.1-mean, 2)) / 2)
	assert.InDelta(t, sd*math.Sqrt(252), risk.AnnualizedVolatility, 1e-9)
	assert.InDelta(t, (-0.1-1)*100, risk.MaxDrawdownPct, 1e-9)
	assert.InDelta(t, -10, risk.PeakToTroughDrawdownPct, 1e-9)
	require.NotNil(t, risk.SharpeRatio)
	assert.InDelta(t, mean/sd*math.Sqrt(252), *risk.SharpeRatio, 1e-9)
}

func TestCalculateRisk_FlatHistoryHasNoSharpe(t *testing.T) {
	snap, err := Simulate(dailySeries("X", 100, 100, 100, 100), day0, 1000)
	require.NoError(t, err)
	risk := CalculateRisk(snap)
	require.NotNil(t, risk)
	assert.Nil(t, risk.SharpeRatio)
	assert.Equal(t, 0.0, risk.AnnualizedVolatility)
	assert.Equal(t, 0.0, risk.PeakToTroughDrawdownPct)
}

func TestCalculateRisk_TooFewReturns(t *testing.T) {
	for _, closes := range [][]float64{{100}, {100, 105}} {
		snap, err := Simulate(dailySeries("X", closes...), day0, 1000)
		require.NoError(t, err)
		assert.Nil(t, CalculateRisk(snap))
	}
	assert.Nil(t, CalculateRisk(nil))
}

func TestPeakToTrough(t *testing.T) {
	assert.InDelta(t, -0.5, PeakToTrough([]float64{100, 200, 150, 100, 180}), 1e-12)
	assert.Equal(t, 0.0, PeakToTrough([]float64{1, 2, 3}))
	assert.Equal(t, 0.0, PeakToTrough(nil))
}

func TestCompare(t *testing.T) {
	a := dailySeries("A", 100, 110, 121, 133.1)
	b := dailySeries("B", 50, 45, 40.5, 36.45)
	cmp, err := Compare([]*model.PriceSeries{a, b})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, cmp.Tickers)
	require.Len(t, cmp.Dates, 4)
	assert.InDelta(t, 100, cmp.Normalized["A"][0], 1e-12)
	assert.InDelta(t, 133.1, cmp.Normalized["A"][3], 1e-9)
	assert.InDelta(t, 33.1, cmp.ReturnPct["A"], 1e-9)
	assert.InDelta(t, -27.1, cmp.ReturnPct["B"], 1e-9)

	require.Len(t, cmp.Correlation, 2)
	assert.InDelta(t, 1, cmp.Correlation[0][0], 1e-6)
}

func TestCompare_CorrelatedSeries(t *testing.T) {
	a := dailySeries("A", 100, 105, 102, 110, 108)
	b := dailySeries("B", 200, 210, 204, 220, 216)
	cmp, err := Compare([]*model.PriceSeries{a, b})
	require.NoError(t, err)
	assert.InDelta(t, 1, cmp.Correlation[0][1], 1e-9)
}

func TestCompare_CommonDatesOnly(t *testing.T) {
	a := dailySeries("A", 1, 2, 3, 4, 5)
	b := &model.PriceSeries{Ticker: "B", Bars: []model.Bar{
		{Date: day0.AddDate(0, 0, 1), Close: 10},
		{Date: day0.AddDate(0, 0, 2), Close: 11},
		{Date: day0.AddDate(0, 0, 4), Close: 12},
	}}
	cmp, err := Compare([]*model.PriceSeries{a, b})
	require.NoError(t, err)
	require.Len(t, cmp.Dates, 3)
	assert.InDelta(t, 250, cmp.Normalized["A"][2], 1e-9)
}

func TestCompare_Errors(t *testing.T) {
	_, err := Compare([]*model.PriceSeries{dailySeries("A", 1, 2, 3)})
	assert.True(t, errors.Is(err, model.ErrInvalidParameter))

	_, err = Compare([]*model.PriceSeries{dailySeries("A", 1, 2, 3), {Ticker: "B"}})
	assert.True(t, errors.Is(err, model.ErrInsufficientData))
}
