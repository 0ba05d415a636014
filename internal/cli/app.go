package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kurokishi/stock-analysis-id/internal/analyzer"
	"github.com/kurokishi/stock-analysis-id/internal/collector"
	"github.com/kurokishi/stock-analysis-id/internal/config"
	"github.com/kurokishi/stock-analysis-id/internal/forecast"
	"github.com/kurokishi/stock-analysis-id/internal/fund"
	"github.com/kurokishi/stock-analysis-id/internal/logger"
	"github.com/kurokishi/stock-analysis-id/internal/model"
	"github.com/kurokishi/stock-analysis-id/internal/recorder"
	"github.com/kurokishi/stock-analysis-id/internal/strategy"
)

// App holds the components every command works with.
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Analyzer *analyzer.Analyzer
	Fund     *fund.Manager
	Recorder recorder.Recorder
}

// NewApp loads and validates the config at path and builds the components.
func NewApp(path string, debug bool) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w: %w", err, model.ErrInvalidParameter)
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	return newAppFromConfig(cfg, newFetcher(cfg), log)
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	if cfg.DataSource.Provider == "mock" {
		return &collector.MockFetcher{}
	}
	timeout := time.Duration(cfg.DataSource.TimeoutSeconds) * time.Second
	return collector.NewYahooFetcher(cfg.DataSource.BaseURL, cfg.Proxy, timeout)
}

func newAppFromConfig(cfg *config.Config, fetcher collector.Fetcher, log zerolog.Logger) (*App, error) {
	log.Debug().Str("provider", fetcher.Name()).Msg("data source selected")

	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	fm, err := fund.NewManager(cfg.Portfolio.StateFile, cfg.Portfolio.MonthlyCapital)
	if err != nil {
		_ = rec.Close()
		return nil, fmt.Errorf("init fund manager: %w", err)
	}

	kind, _ := model.ParseModelKind(cfg.Analysis.Model)
	engine := forecast.NewEngine(forecast.Config{
		MinHistory: cfg.Analysis.MinHistory,
		MaxHorizon: cfg.Analysis.MaxHorizon,
		Confidence: cfg.Analysis.Confidence,
		Additive:   cfg.Analysis.Additive,
	})
	a := analyzer.New(
		collector.NewCollector(fetcher, cfg.DataSource.Period, log),
		engine,
		rec,
		analyzer.Config{
			Thresholds: strategy.Thresholds{IndustryPE: cfg.Analysis.IndustryPE, IndustryPBV: cfg.Analysis.IndustryPBV},
			Model:      kind,
			Horizon:    cfg.Analysis.ForecastDays,
			Backtest:   cfg.Analysis.Backtest,
			MinCapital: cfg.Analysis.MinCapital,
		},
		log,
	)

	return &App{Config: cfg, Log: log, Analyzer: a, Fund: fm, Recorder: rec}, nil
}

// Close releases the recorder.
func (a *App) Close() error {
	return a.Recorder.Close()
}
