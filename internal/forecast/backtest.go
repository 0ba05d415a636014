package forecast

import (
	"math"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

// TrainFraction is the share of history used to fit during a backtest.
const TrainFraction = 0.8

// splitIndex returns the number of training bars for a series of length n.
func splitIndex(n int) int {
	return int(math.Floor(TrainFraction * float64(n)))
}

// Accuracy compares a forecast path against the held-out actuals. MAPE is
// left nil when any actual is zero.
func Accuracy(actual, predicted []float64) *model.BacktestMetrics {
	n := len(actual)
	if len(predicted) < n {
		n = len(predicted)
	}
	m := &model.BacktestMetrics{TestSize: n}
	if n == 0 {
		return m
	}

	var absSum, sqSum, pctSum float64
	zeroActual := false
	for i := 0; i < n; i++ {
		diff := actual[i] - predicted[i]
		absSum += math.Abs(diff)
		sqSum += diff * diff
		if actual[i] == 0 {
			zeroActual = true
			continue
		}
		pctSum += math.Abs(diff / actual[i])
	}
	m.MAE = absSum / float64(n)
	m.MSE = sqSum / float64(n)
	m.RMSE = math.Sqrt(m.MSE)
	if !zeroActual {
		mape := pctSum / float64(n) * 100
		m.MAPE = &mape
	}
	return m
}
