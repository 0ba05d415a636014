package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurokishi/stock-analysis-id/internal/collector"
	"github.com/kurokishi/stock-analysis-id/internal/forecast"
	"github.com/kurokishi/stock-analysis-id/internal/model"
	"github.com/kurokishi/stock-analysis-id/internal/recorder"
)

var start = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

// zigzag rises 0.25 per bar on average: +2 then -1.5, which keeps RSI near 57.
func zigzag(ticker string, n int, base float64) *model.PriceSeries {
	bars := make([]model.Bar, n)
	for i := range bars {
		c := base + 0.25*float64(i) + 1.75*float64(i%2)
		bars[i] = model.Bar{Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return &model.PriceSeries{Ticker: ticker, Bars: bars}
}

func cheap(ticker string) *model.Fundamentals {
	return &model.Fundamentals{Ticker: ticker, PER: model.Float(8), PBV: model.Float(0.9), DividendYield: model.Float(0.06), ROE: model.Float(0.2)}
}

func expensive(ticker string) *model.Fundamentals {
	return &model.Fundamentals{Ticker: ticker, PER: model.Float(30), PBV: model.Float(3)}
}

type recordingRecorder struct {
	recorder.NoopRecorder
	reports     []*model.Report
	forecasts   []*model.ForecastResult
	simulations int
	allocations []model.Allocation
}

func (r *recordingRecorder) RecordReport(rep *model.Report) error {
	r.reports = append(r.reports, rep)
	return nil
}

func (r *recordingRecorder) RecordForecast(f *model.ForecastResult) error {
	r.forecasts = append(r.forecasts, f)
	return nil
}

func (r *recordingRecorder) RecordSimulation(*model.PortfolioSnapshot, *model.RiskMetrics) error {
	r.simulations++
	return nil
}

func (r *recordingRecorder) RecordAllocation(a model.Allocation) error {
	r.allocations = append(r.allocations, a)
	return nil
}

func newAnalyzer(t *testing.T, cfg Config, rec recorder.Recorder) *Analyzer {
	t.Helper()
	fetcher := &collector.MockFetcher{
		Series: map[string]*model.PriceSeries{
			"BBCA.JK": zigzag("BBCA.JK", 260, 9000),
			"BBRI.JK": zigzag("BBRI.JK", 260, 4000),
			"GOTO.JK": zigzag("GOTO.JK", 260, 80),
			"NEWS.JK": zigzag("NEWS.JK", 20, 500),
		},
		Funds: map[string]*model.Fundamentals{
			"BBCA.JK": cheap("BBCA.JK"),
			"BBRI.JK": cheap("BBRI.JK"),
			"GOTO.JK": expensive("GOTO.JK"),
		},
	}
	c := collector.NewCollector(fetcher, "2y", zerolog.Nop())
	return New(c, forecast.NewEngine(forecast.DefaultConfig()), rec, cfg, zerolog.Nop())
}

func TestEvaluate_WithoutSeries(t *testing.T) {
	a := newAnalyzer(t, Config{Model: model.ModelNaive, Horizon: 5}, nil)
	ctx := context.Background()
	held := model.Portfolio{Holdings: []model.Holding{{Ticker: "BBCA.JK", Lots: 1}}}

	for _, data := range []*model.MarketData{nil, {}, {Fundamentals: cheap("BBCA.JK")}} {
		var report *model.Report
		require.NotPanics(t, func() {
			report = a.Evaluate(ctx, data, held, model.TriggerManual)
		})
		assert.Equal(t, model.InsufficientData, report.Verdict.Kind)
		assert.Equal(t, model.Hold, report.Action)
		assert.Nil(t, report.Forecast)
		assert.Contains(t, report.ForecastError, "insufficient data")
	}

	report := a.Evaluate(ctx, &model.MarketData{Fundamentals: cheap("BBCA.JK")}, held, model.TriggerManual)
	assert.Equal(t, "BBCA.JK", report.Ticker)
	assert.True(t, report.Held)
}

func TestNew_Defaults(t *testing.T) {
	a := newAnalyzer(t, Config{}, nil)
	cfg := a.Config()
	assert.Equal(t, model.ModelARIMA, cfg.Model)
	assert.Equal(t, 30, cfg.Horizon)
	assert.Equal(t, float64(DefaultMinCapital), cfg.MinCapital)
}

func TestAnalyze_BuyAndAdd(t *testing.T) {
	rec := &recordingRecorder{}
	a := newAnalyzer(t, Config{Model: model.ModelNaive, Horizon: 10}, rec)
	ctx := context.Background()

	report, err := a.Analyze(ctx, "bbca", model.Portfolio{}, model.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, "BBCA.JK", report.Ticker)
	assert.Equal(t, model.StronglyUndervalued, report.Verdict.Kind)
	assert.Greater(t, report.Snapshot.SMA50, report.Snapshot.SMA200)
	assert.Less(t, report.Snapshot.RSI14, 70.0)
	assert.Equal(t, model.Buy, report.Action)
	assert.False(t, report.Held)
	require.NotNil(t, report.Forecast)
	assert.Equal(t, 10, report.Forecast.Horizon())
	require.NotNil(t, report.Outlook)
	assert.Equal(t, model.Neutral, report.Outlook.Outlook)
	assert.Empty(t, report.ForecastError)

	held := model.Portfolio{Holdings: []model.Holding{{Ticker: "BBCA.JK", Lots: 1}}}
	report, err = a.Analyze(ctx, "BBCA", held, model.TriggerDaily)
	require.NoError(t, err)
	assert.Equal(t, model.Add, report.Action)
	assert.True(t, report.Held)

	assert.Len(t, rec.reports, 2)
	assert.Len(t, rec.forecasts, 2)
}

func TestAnalyze_OvervaluedHolds(t *testing.T) {
	a := newAnalyzer(t, Config{Model: model.ModelNaive, Horizon: 5}, nil)
	report, err := a.Analyze(context.Background(), "GOTO", model.Portfolio{}, model.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, model.Overvalued, report.Verdict.Kind)
	// RSI is below 70, so an overvalued stock is held rather than sold.
	assert.Equal(t, model.Hold, report.Action)
}

func TestAnalyze_FallsBackToNaive(t *testing.T) {
	a := newAnalyzer(t, Config{Model: model.ModelAdditive, Horizon: 5}, nil)
	report, err := a.Analyze(context.Background(), "NEWS", model.Portfolio{}, model.TriggerManual)
	require.NoError(t, err)
	require.NotNil(t, report.Forecast)
	assert.Equal(t, model.ModelNaive, report.Forecast.ModelKind)
	assert.Equal(t, model.InsufficientData, report.Verdict.Kind)
	assert.Equal(t, model.Hold, report.Action)
}

func TestAnalyze_InvalidHorizonIsReported(t *testing.T) {
	a := newAnalyzer(t, Config{Model: model.ModelNaive, Horizon: 1000}, nil)
	report, err := a.Analyze(context.Background(), "BBCA", model.Portfolio{}, model.TriggerManual)
	require.NoError(t, err)
	assert.Nil(t, report.Forecast)
	assert.Contains(t, report.ForecastError, "horizon")
}

func TestAnalyze_UnknownTicker(t *testing.T) {
	a := newAnalyzer(t, Config{Model: model.ModelNaive}, nil)
	_, err := a.Analyze(context.Background(), "XXXX", model.Portfolio{}, model.TriggerManual)
	assert.True(t, errors.Is(err, model.ErrInsufficientData))
}

func TestAnalyzeMany(t *testing.T) {
	a := newAnalyzer(t, Config{Model: model.ModelNaive, Horizon: 5}, nil)
	reports, failed := a.AnalyzeMany(context.Background(), []string{"BBRI", "XXXX", "BBCA"}, model.Portfolio{}, model.TriggerDaily)
	require.Len(t, reports, 2)
	assert.Equal(t, "BBRI.JK", reports[0].Ticker)
	assert.Equal(t, "BBCA.JK", reports[1].Ticker)
	assert.Contains(t, failed, "XXXX.JK")
}

func TestForecast_NoFallback(t *testing.T) {
	rec := &recordingRecorder{}
	a := newAnalyzer(t, Config{Backtest: true}, rec)
	ctx := context.Background()

	_, _, err := a.Forecast(ctx, "NEWS", model.ModelAdditive, 5)
	assert.True(t, errors.Is(err, model.ErrInsufficientData))

	result, last, err := a.Forecast(ctx, "BBRI", model.ModelNaive, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Horizon())
	assert.Equal(t, 4000+0.25*259+1.75, last)
	require.NotNil(t, result.Backtest)
	assert.Equal(t, 208, result.Backtest.TrainSize)
	assert.Len(t, rec.forecasts, 1)
}

func TestSimulate(t *testing.T) {
	rec := &recordingRecorder{}
	a := newAnalyzer(t, Config{}, rec)
	ctx := context.Background()

	snap, risk, err := a.Simulate(ctx, "BBCA", start.AddDate(0, 0, 100), 10_000_000)
	require.NoError(t, err)
	assert.Equal(t, start.AddDate(0, 0, 100), snap.EntryDate)
	assert.Greater(t, snap.Profit, 0.0)
	require.NotNil(t, risk)
	assert.Equal(t, 1, rec.simulations)

	_, _, err = a.Simulate(ctx, "BBCA", start, 50_000)
	assert.True(t, errors.Is(err, model.ErrInvalidParameter))

	_, _, err = a.Simulate(ctx, "BBCA", start.AddDate(2, 0, 0), 1_000_000)
	assert.True(t, errors.Is(err, model.ErrNoDataForDate))
}

func TestSimulateHoldings(t *testing.T) {
	a := newAnalyzer(t, Config{}, nil)
	portfolio := model.Portfolio{Holdings: []model.Holding{
		{Ticker: "BBCA.JK", Lots: 2, EntryDate: start, EntryCapital: 2_000_000},
		{Ticker: "BBRI.JK", Lots: 3, EntryDate: start.AddDate(0, 0, 10)},
		{Ticker: "XXXX.JK", Lots: 1},
		{Ticker: "GOTO.JK", Lots: 5},
	}}
	report := a.SimulateHoldings(context.Background(), portfolio)
	require.Len(t, report.Holdings, 4)

	bbca := report.Holdings[0]
	require.NotNil(t, bbca.Snapshot)
	assert.Equal(t, 2_000_000.0, bbca.Snapshot.EntryCapital)

	bbri := report.Holdings[1]
	require.NotNil(t, bbri.Snapshot)
	entryClose := 4000 + 0.25*10
	assert.InDelta(t, 300*entryClose, bbri.Snapshot.EntryCapital, 1e-6)
	assert.InDelta(t, 300, bbri.Snapshot.Shares, 1e-9)

	assert.Nil(t, report.Holdings[2].Snapshot)
	assert.NotEmpty(t, report.Holdings[2].Err)

	// No entry date: enters on the last bar, so a single-point history.
	goto_ := report.Holdings[3]
	require.NotNil(t, goto_.Snapshot)
	assert.Len(t, goto_.Snapshot.History, 1)
	assert.Nil(t, goto_.Risk)

	wantCapital := bbca.Snapshot.EntryCapital + bbri.Snapshot.EntryCapital + goto_.Snapshot.EntryCapital
	assert.InDelta(t, wantCapital, report.TotalCapital, 1e-6)
	assert.InDelta(t, report.TotalValue-report.TotalCapital, report.TotalProfit, 1e-6)
	assert.Greater(t, report.ProfitPct, 0.0)
}

func TestAllocate(t *testing.T) {
	rec := &recordingRecorder{}
	a := newAnalyzer(t, Config{}, rec)
	ctx := context.Background()
	held := model.Portfolio{Holdings: []model.Holding{{Ticker: "BBRI.JK", Lots: 1}}}

	alloc, failed, err := a.Allocate(ctx, []string{"BBCA", "bbri", "GOTO", "XXXX", "BBCA.JK"}, 1_000_000, held)
	require.NoError(t, err)
	assert.Contains(t, failed, "XXXX.JK")
	require.Len(t, alloc.Lines, 2)
	assert.Equal(t, "BBCA.JK", alloc.Lines[0].Ticker)
	assert.Equal(t, "BBRI.JK", alloc.Lines[1].Ticker)
	assert.InDelta(t, 500_000, alloc.Lines[0].Amount, 1)
	assert.Equal(t, 1_000_000.0, alloc.Total())
	require.Len(t, rec.allocations, 1)

	_, _, err = a.Allocate(ctx, []string{"BBCA"}, 99_999, held)
	assert.True(t, errors.Is(err, model.ErrInvalidParameter))
	_, _, err = a.Allocate(ctx, nil, 1_000_000, held)
	assert.True(t, errors.Is(err, model.ErrInvalidParameter))
}

func TestCompare(t *testing.T) {
	a := newAnalyzer(t, Config{}, nil)
	ctx := context.Background()

	cmp, err := a.Compare(ctx, []string{"bbca", "BBRI", "BBCA.JK"})
	require.NoError(t, err)
	assert.Equal(t, []string{"BBCA.JK", "BBRI.JK"}, cmp.Tickers)
	assert.Len(t, cmp.Dates, 260)

	_, err = a.Compare(ctx, []string{"BBCA", "bbca"})
	assert.True(t, errors.Is(err, model.ErrInvalidParameter))

	_, err = a.Compare(ctx, []string{"BBCA", "XXXX"})
	assert.True(t, errors.Is(err, model.ErrInsufficientData))
}
