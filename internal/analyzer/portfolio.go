package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/kurokishi/stock-analysis-id/internal/calculator"
	"github.com/kurokishi/stock-analysis-id/internal/model"
	"github.com/kurokishi/stock-analysis-id/internal/simulator"
	"github.com/kurokishi/stock-analysis-id/internal/strategy"
)

// Simulate buys capital worth of ticker on entryDate and reports the
// position today with its risk. risk is nil when the history is too short.
func (a *Analyzer) Simulate(ctx context.Context, ticker string, entryDate time.Time, capital float64) (*model.PortfolioSnapshot, *model.RiskMetrics, error) {
	if err := a.checkCapital(capital); err != nil {
		return nil, nil, err
	}
	series, err := a.collector.CollectSeries(ctx, ticker)
	if err != nil {
		return nil, nil, err
	}
	snap, err := simulator.Simulate(series, entryDate, capital)
	if err != nil {
		return nil, nil, err
	}
	risk := simulator.CalculateRisk(snap)
	if err := a.recorder.RecordSimulation(snap, risk); err != nil {
		a.log.Warn().Err(err).Str("ticker", snap.Ticker).Msg("record simulation")
	}
	return snap, risk, nil
}

// SimulateHoldings simulates every holding independently. A holding that
// cannot be simulated carries its error and is left out of the totals.
//
// A holding without an entry date enters on the latest bar; one without
// entry capital is valued at lots x 100 shares at the entry close.
func (a *Analyzer) SimulateHoldings(ctx context.Context, portfolio model.Portfolio) *model.PortfolioReport {
	holdings := portfolio.Holdings
	byTicker := make(map[string]model.Holding, len(holdings))
	for _, h := range holdings {
		byTicker[h.Ticker] = h
	}
	reports, _ := each(ctx, portfolio.Tickers(), func(ctx context.Context, ticker string) (model.HoldingReport, error) {
		hr := model.HoldingReport{Holding: byTicker[ticker]}
		snap, risk, err := a.simulateHolding(ctx, hr.Holding)
		if err != nil {
			hr.Err = err.Error()
			return hr, nil
		}
		hr.Snapshot, hr.Risk = snap, risk
		return hr, nil
	})

	report := &model.PortfolioReport{Holdings: reports}
	for _, hr := range reports {
		if hr.Snapshot == nil {
			a.log.Warn().Str("ticker", hr.Holding.Ticker).Str("error", hr.Err).Msg("holding simulation failed")
			continue
		}
		report.TotalCapital += hr.Snapshot.EntryCapital
		report.TotalValue += hr.Snapshot.CurrentValue
	}
	report.TotalProfit = report.TotalValue - report.TotalCapital
	if report.TotalCapital > 0 {
		report.ProfitPct = report.TotalProfit / report.TotalCapital * 100
	}
	return report
}

func (a *Analyzer) simulateHolding(ctx context.Context, h model.Holding) (*model.PortfolioSnapshot, *model.RiskMetrics, error) {
	series, err := a.collector.CollectSeries(ctx, h.Ticker)
	if err != nil {
		return nil, nil, err
	}
	entry := h.EntryDate
	if entry.IsZero() {
		last, _ := series.Last()
		entry = last.Date
	}
	capital := h.EntryCapital
	if capital == 0 {
		entrySim, err := simulator.Simulate(series, entry, 1)
		if err != nil {
			return nil, nil, err
		}
		capital = float64(h.Lots*model.SharesPerLot) * entrySim.EntryPrice
	}
	snap, err := simulator.Simulate(series, entry, capital)
	if err != nil {
		return nil, nil, err
	}
	return snap, simulator.CalculateRisk(snap), nil
}

// Allocate splits capital across the tickers currently rated Buy or Add.
// Tickers that fail to load are skipped and returned in failed.
func (a *Analyzer) Allocate(ctx context.Context, tickers []string, capital float64, portfolio model.Portfolio) (alloc model.Allocation, failed map[string]string, err error) {
	if err := a.checkCapital(capital); err != nil {
		return model.Allocation{}, nil, err
	}
	tickers = uniqueTickers(tickers)
	if len(tickers) == 0 {
		return model.Allocation{}, nil, fmt.Errorf("allocate: no tickers: %w", model.ErrInvalidParameter)
	}

	candidates, errs := each(ctx, tickers, func(ctx context.Context, ticker string) (model.Candidate, error) {
		data, err := a.collector.Collect(ctx, ticker)
		if err != nil {
			return model.Candidate{}, err
		}
		snap := calculator.Summarize(data.Series, calculator.Compute(data.Series))
		verdict := strategy.EvaluateValuation(data.Fundamentals, a.cfg.Thresholds)
		action := strategy.Recommend(verdict.Kind, snap.SMA50, snap.SMA200, snap.RSI14)
		return model.Candidate{
			Ticker:       data.Series.Ticker,
			Action:       strategy.ForHolding(action, portfolio.Held(data.Series.Ticker)),
			Fundamentals: data.Fundamentals,
		}, nil
	})

	failed = map[string]string{}
	var ok []model.Candidate
	for i, c := range candidates {
		if errs[i] != nil {
			failed[tickers[i]] = errs[i].Error()
			continue
		}
		ok = append(ok, c)
	}

	alloc, err = strategy.Allocate(ok, capital)
	if err != nil {
		return model.Allocation{}, failed, err
	}
	if err := a.recorder.RecordAllocation(alloc); err != nil {
		a.log.Warn().Err(err).Msg("record allocation")
	}
	a.log.Info().
		Float64("capital", capital).
		Int("candidates", len(ok)).
		Int("allocated", len(alloc.Lines)).
		Msg("allocation computed")
	return alloc, failed, nil
}

// Compare fetches every ticker and compares their normalised performance.
// Any fetch failure fails the comparison.
func (a *Analyzer) Compare(ctx context.Context, tickers []string) (*model.Comparison, error) {
	tickers = uniqueTickers(tickers)
	if len(tickers) < 2 {
		return nil, fmt.Errorf("compare needs at least 2 distinct tickers: %w", model.ErrInvalidParameter)
	}
	series, errs := each(ctx, tickers, a.collector.CollectSeries)
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return simulator.Compare(series)
}
