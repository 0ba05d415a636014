package simulator

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

// TradingDaysPerYear annualises daily statistics.
const TradingDaysPerYear = 252

// DailyReturns returns the percentage change between consecutive values.
// Steps from a zero value are skipped.
func DailyReturns(values []float64) []float64 {
	var returns []float64
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		returns = append(returns, values[i]/values[i-1]-1)
	}
	return returns
}

// CalculateRisk derives volatility, drawdown and Sharpe from the snapshot's
// value history. It returns nil when fewer than two daily returns exist.
//
// MaxDrawdownPct keeps the historical report formula (worst daily return
// minus one, in percent); PeakToTroughDrawdownPct is the running-peak drawdown.
func CalculateRisk(snapshot *model.PortfolioSnapshot) *model.RiskMetrics {
	if snapshot == nil {
		return nil
	}
	values := snapshot.Values()
	returns := DailyReturns(values)
	if len(returns) < 2 {
		return nil
	}

	mean, std := stat.MeanStdDev(returns, nil)
	annual := math.Sqrt(TradingDaysPerYear)
	metrics := &model.RiskMetrics{
		AnnualizedVolatility:    std * annual,
		MaxDrawdownPct:          (floats.Min(returns) - 1) * 100,
		PeakToTroughDrawdownPct: PeakToTrough(values) * 100,
	}
	if std > 0 {
		sharpe := mean / std * annual
		metrics.SharpeRatio = &sharpe
	}
	return metrics
}

// PeakToTrough returns the most negative (value - runningPeak) / runningPeak,
// or 0 for a series that never falls below its peak.
func PeakToTrough(values []float64) float64 {
	var peak, worst float64
	for i, v := range values {
		if i == 0 || v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (v - peak) / peak; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}
