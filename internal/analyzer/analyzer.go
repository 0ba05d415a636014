// Package analyzer wires the collector, the calculation engines and the
// recorder into the per-ticker and per-portfolio operations the CLI, the bot
// and the HTTP API expose.
package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kurokishi/stock-analysis-id/internal/calculator"
	"github.com/kurokishi/stock-analysis-id/internal/collector"
	"github.com/kurokishi/stock-analysis-id/internal/forecast"
	"github.com/kurokishi/stock-analysis-id/internal/model"
	"github.com/kurokishi/stock-analysis-id/internal/recorder"
	"github.com/kurokishi/stock-analysis-id/internal/strategy"
)

const (
	maxConcurrentFetches = 4
	// DefaultMinCapital is the smallest amount accepted for simulations and
	// allocations, in Rupiah.
	DefaultMinCapital = 100_000
)

// Config holds the analysis settings.
type Config struct {
	Thresholds strategy.Thresholds
	Model      model.ModelKind
	Horizon    int
	Backtest   bool
	MinCapital float64
}

// Analyzer runs analyses for one or more tickers.
type Analyzer struct {
	collector *collector.Collector
	engine    *forecast.Engine
	recorder  recorder.Recorder
	cfg       Config
	log       zerolog.Logger
}

// New creates an Analyzer. A nil recorder disables persistence.
func New(c *collector.Collector, engine *forecast.Engine, rec recorder.Recorder, cfg Config, log zerolog.Logger) *Analyzer {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if cfg.Model == "" {
		cfg.Model = model.ModelARIMA
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = 30
	}
	if cfg.MinCapital <= 0 {
		cfg.MinCapital = DefaultMinCapital
	}
	return &Analyzer{
		collector: c,
		engine:    engine,
		recorder:  rec,
		cfg:       cfg,
		log:       log.With().Str("component", "analyzer").Logger(),
	}
}

// Config returns the effective settings.
func (a *Analyzer) Config() Config { return a.cfg }

// Analyze fetches ticker and produces a full report. Forecast problems are
// reported inside the Report; only a failed price fetch is an error.
func (a *Analyzer) Analyze(ctx context.Context, ticker string, portfolio model.Portfolio, trigger model.TriggerType) (*model.Report, error) {
	data, err := a.collector.Collect(ctx, ticker)
	if err != nil {
		return nil, err
	}
	report := a.Evaluate(ctx, data, portfolio, trigger)

	if err := a.recorder.RecordReport(report); err != nil {
		a.log.Warn().Err(err).Str("ticker", report.Ticker).Msg("record report")
	}
	if report.Forecast != nil {
		if err := a.recorder.RecordForecast(report.Forecast); err != nil {
			a.log.Warn().Err(err).Str("ticker", report.Ticker).Msg("record forecast")
		}
	}
	return report, nil
}

// Evaluate builds a report from already fetched data.
// Missing price history yields a HOLD report with an INSUFFICIENT_DATA verdict.
func (a *Analyzer) Evaluate(ctx context.Context, data *model.MarketData, portfolio model.Portfolio, trigger model.TriggerType) *model.Report {
	if data == nil || data.Series == nil {
		return insufficientReport(data, portfolio, trigger)
	}
	series := data.Series
	set := calculator.Compute(series)
	snap := calculator.Summarize(series, set)
	verdict := strategy.EvaluateValuation(data.Fundamentals, a.cfg.Thresholds)
	held := portfolio.Held(series.Ticker)

	report := &model.Report{
		Ticker:         series.Ticker,
		Trigger:        trigger,
		Snapshot:       snap,
		Fundamentals:   data.Fundamentals,
		Verdict:        verdict,
		Action:         strategy.ForHolding(strategy.Recommend(verdict.Kind, snap.SMA50, snap.SMA200, snap.RSI14), held),
		Held:           held,
		WarningMessage: strategy.TakeProfitWarning(snap.RSI14),
	}

	result, err := a.forecastWithFallback(ctx, series, a.cfg.Horizon)
	if err != nil {
		report.ForecastError = err.Error()
		return report
	}
	report.Forecast = result
	if out, ok := strategy.ForecastOutlook(snap.Close, result); ok {
		report.Outlook = &out
	}
	return report
}

func insufficientReport(data *model.MarketData, portfolio model.Portfolio, trigger model.TriggerType) *model.Report {
	report := &model.Report{
		Trigger:       trigger,
		Snapshot:      calculator.Summarize(&model.PriceSeries{}, nil),
		Verdict:       model.Verdict{Kind: model.InsufficientData},
		Action:        model.Hold,
		ForecastError: fmt.Sprintf("no price history: %v", model.ErrInsufficientData),
	}
	if data != nil && data.Fundamentals != nil {
		report.Ticker = data.Fundamentals.Ticker
		report.Fundamentals = data.Fundamentals
	}
	report.Held = report.Ticker != "" && portfolio.Held(report.Ticker)
	return report
}

// forecastWithFallback runs the configured model and degrades to the naive
// forecast when it cannot be fitted.
func (a *Analyzer) forecastWithFallback(ctx context.Context, series *model.PriceSeries, horizon int) (*model.ForecastResult, error) {
	result, err := a.forecast(ctx, a.cfg.Model, series, horizon)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil || !(errors.Is(err, model.ErrModelFittingFailed) || errors.Is(err, model.ErrInsufficientData)) {
		return nil, err
	}
	a.log.Warn().Err(err).
		Str("ticker", series.Ticker).
		Str("model", string(a.cfg.Model)).
		Msg("falling back to naive forecast")
	return forecast.Naive(series, horizon)
}

func (a *Analyzer) forecast(ctx context.Context, kind model.ModelKind, series *model.PriceSeries, horizon int) (*model.ForecastResult, error) {
	result, err := a.engine.Forecast(ctx, kind, series, horizon)
	if err != nil {
		return nil, err
	}
	if a.cfg.Backtest {
		bt, err := a.engine.Backtest(ctx, kind, series)
		if err != nil {
			a.log.Debug().Err(err).Str("ticker", series.Ticker).Msg("backtest skipped")
		} else {
			result.Backtest = bt
		}
	}
	return result, nil
}

// Forecast fetches ticker and forecasts horizon trading days with kind. No
// fallback is applied; lastPrice is the latest close.
func (a *Analyzer) Forecast(ctx context.Context, ticker string, kind model.ModelKind, horizon int) (result *model.ForecastResult, lastPrice float64, err error) {
	series, err := a.collector.CollectSeries(ctx, ticker)
	if err != nil {
		return nil, 0, err
	}
	result, err = a.forecast(ctx, kind, series, horizon)
	if err != nil {
		return nil, 0, err
	}
	if err := a.recorder.RecordForecast(result); err != nil {
		a.log.Warn().Err(err).Str("ticker", result.Ticker).Msg("record forecast")
	}
	last, _ := series.Last()
	return result, last.Close, nil
}

// AnalyzeMany analyzes tickers concurrently. Reports keep input order;
// failures are returned per ticker.
func (a *Analyzer) AnalyzeMany(ctx context.Context, tickers []string, portfolio model.Portfolio, trigger model.TriggerType) ([]*model.Report, map[string]string) {
	reports, errs := each(ctx, tickers, func(ctx context.Context, ticker string) (*model.Report, error) {
		return a.Analyze(ctx, ticker, portfolio, trigger)
	})
	var out []*model.Report
	failed := map[string]string{}
	for i, r := range reports {
		if errs[i] != nil {
			failed[collector.NormalizeTicker(tickers[i])] = errs[i].Error()
			continue
		}
		out = append(out, r)
	}
	return out, failed
}

// each runs fn for every ticker with bounded concurrency. Results and errors
// are index-aligned with tickers.
func each[T any](ctx context.Context, tickers []string, fn func(context.Context, string) (T, error)) ([]T, []error) {
	results := make([]T, len(tickers))
	errs := make([]error, len(tickers))

	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)
	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			results[i], errs[i] = fn(ctx, ticker)
			return nil
		})
	}
	_ = g.Wait()
	return results, errs
}

// uniqueTickers normalizes and de-duplicates tickers, keeping first-seen order.
func uniqueTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	var out []string
	for _, t := range tickers {
		n := collector.NormalizeTicker(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func (a *Analyzer) checkCapital(capital float64) error {
	if !(capital >= a.cfg.MinCapital) {
		return fmt.Errorf("capital %.0f below minimum %.0f: %w", capital, a.cfg.MinCapital, model.ErrInvalidParameter)
	}
	return nil
}
