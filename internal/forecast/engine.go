package forecast

import (
	"context"
	"fmt"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

const (
	DefaultMinHistory = 30
	DefaultMaxHorizon = 365
)

// Config bounds the inputs accepted by the Engine.
type Config struct {
	MinHistory int
	MaxHorizon int
	Confidence float64
	Additive   AdditiveConfig
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MinHistory: DefaultMinHistory,
		MaxHorizon: DefaultMaxHorizon,
		Confidence: DefaultConfidence,
		Additive:   DefaultAdditiveConfig(),
	}
}

// Engine turns a price series into a dated ForecastResult. It holds only
// configuration, so one Engine may serve concurrent callers.
type Engine struct {
	cfg Config
}

// NewEngine creates an Engine; zero fields of cfg take their defaults.
func NewEngine(cfg Config) *Engine {
	d := DefaultConfig()
	if cfg.MinHistory <= 0 {
		cfg.MinHistory = d.MinHistory
	}
	if cfg.MaxHorizon <= 0 {
		cfg.MaxHorizon = d.MaxHorizon
	}
	if !(cfg.Confidence > 0 && cfg.Confidence < 1) {
		cfg.Confidence = d.Confidence
	}
	cfg.Additive = cfg.Additive.WithDefaults()
	return &Engine{cfg: cfg}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) validate(series *model.PriceSeries, horizon int) error {
	if horizon < 1 || horizon > e.cfg.MaxHorizon {
		return fmt.Errorf("horizon %d outside 1..%d: %w", horizon, e.cfg.MaxHorizon, model.ErrInvalidParameter)
	}
	if series.Len() < e.cfg.MinHistory {
		return fmt.Errorf("%d bars, need %d: %w", series.Len(), e.cfg.MinHistory, model.ErrInsufficientData)
	}
	return nil
}

// Forecast dispatches on kind.
func (e *Engine) Forecast(ctx context.Context, kind model.ModelKind, series *model.PriceSeries, horizon int) (*model.ForecastResult, error) {
	switch kind {
	case model.ModelARIMA:
		return e.ForecastARIMA(ctx, series, horizon)
	case model.ModelAdditive:
		return e.ForecastAdditive(ctx, series, horizon)
	case model.ModelNaive:
		if horizon < 1 || horizon > e.cfg.MaxHorizon {
			return nil, fmt.Errorf("horizon %d outside 1..%d: %w", horizon, e.cfg.MaxHorizon, model.ErrInvalidParameter)
		}
		return Naive(series, horizon)
	default:
		return nil, fmt.Errorf("model %q: %w", kind, model.ErrInvalidParameter)
	}
}

// ForecastARIMA selects an order by AIC and projects horizon trading days.
func (e *Engine) ForecastARIMA(ctx context.Context, series *model.PriceSeries, horizon int) (*model.ForecastResult, error) {
	if err := e.validate(series, horizon); err != nil {
		return nil, fmt.Errorf("arima forecast %s: %w", series.Ticker, err)
	}
	fitted, err := SearchARIMA(ctx, series.Closes())
	if err != nil {
		return nil, fmt.Errorf("arima forecast %s: %w", series.Ticker, err)
	}
	path, err := fitted.ForecastWithConfidence(horizon, e.cfg.Confidence)
	if err != nil {
		return nil, fmt.Errorf("arima forecast %s: %w", series.Ticker, err)
	}
	last, _ := series.Last()
	return &model.ForecastResult{
		Ticker:    series.Ticker,
		ModelKind: model.ModelARIMA,
		Order:     fitted.Order.String(),
		Dates:     TradingDaysAfter(last.Date, horizon),
		Point:     path.Point,
		Lower:     path.Lower,
		Upper:     path.Upper,
	}, nil
}

// ForecastAdditive fits the trend + seasonality model and projects horizon
// trading days.
func (e *Engine) ForecastAdditive(ctx context.Context, series *model.PriceSeries, horizon int) (*model.ForecastResult, error) {
	if err := e.validate(series, horizon); err != nil {
		return nil, fmt.Errorf("additive forecast %s: %w", series.Ticker, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fitted, err := FitAdditive(series.Dates(), series.Closes(), e.cfg.Additive)
	if err != nil {
		return nil, fmt.Errorf("additive forecast %s: %w", series.Ticker, err)
	}
	last, _ := series.Last()
	dates := TradingDaysAfter(last.Date, horizon)
	path, err := fitted.Forecast(dates)
	if err != nil {
		return nil, fmt.Errorf("additive forecast %s: %w", series.Ticker, err)
	}
	return &model.ForecastResult{
		Ticker:    series.Ticker,
		ModelKind: model.ModelAdditive,
		Dates:     dates,
		Point:     path.Point,
		Lower:     path.Lower,
		Upper:     path.Upper,
	}, nil
}

// Backtest refits kind on the first 80% of series and scores the forecast of
// the remaining bars.
func (e *Engine) Backtest(ctx context.Context, kind model.ModelKind, series *model.PriceSeries) (*model.BacktestMetrics, error) {
	n := series.Len()
	split := splitIndex(n)
	if split < e.cfg.MinHistory || n-split < 1 {
		return nil, fmt.Errorf("backtest %s: %d bars, need %d for training: %w", series.Ticker, n, e.cfg.MinHistory, model.ErrInsufficientData)
	}
	train := series.Slice(0, split)
	test := series.Slice(split, n)
	actual := test.Closes()

	var path *Path
	switch kind {
	case model.ModelARIMA:
		fitted, err := SearchARIMA(ctx, train.Closes())
		if err != nil {
			return nil, fmt.Errorf("backtest %s: %w", series.Ticker, err)
		}
		path, err = fitted.ForecastWithConfidence(len(actual), e.cfg.Confidence)
		if err != nil {
			return nil, fmt.Errorf("backtest %s: %w", series.Ticker, err)
		}
	case model.ModelAdditive:
		fitted, err := FitAdditive(train.Dates(), train.Closes(), e.cfg.Additive)
		if err != nil {
			return nil, fmt.Errorf("backtest %s: %w", series.Ticker, err)
		}
		path, err = fitted.Forecast(test.Dates())
		if err != nil {
			return nil, fmt.Errorf("backtest %s: %w", series.Ticker, err)
		}
	case model.ModelNaive:
		res, err := Naive(train, len(actual))
		if err != nil {
			return nil, fmt.Errorf("backtest %s: %w", series.Ticker, err)
		}
		path = &Path{Point: res.Point, Lower: res.Lower, Upper: res.Upper}
	default:
		return nil, fmt.Errorf("backtest model %q: %w", kind, model.ErrInvalidParameter)
	}

	metrics := Accuracy(actual, path.Point)
	metrics.TrainSize = split
	return metrics, nil
}
