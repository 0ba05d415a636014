package calculator

import "github.com/kurokishi/stock-analysis-id/internal/model"

// RSIPeriod is the default RSI lookback in price changes.
const RSIPeriod = 14

// RSISeries computes the RSI using simple rolling means of gains and losses
// over period price changes. A window with no losses yields exactly 100.
// Entries are NaN until period changes are available.
func RSISeries(prices []float64, period int) []float64 {
	out := model.NaNs(len(prices))
	if period <= 0 || len(prices) < period+1 {
		return out
	}

	gains := make([]float64, len(prices))
	losses := make([]float64, len(prices))
	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	for i := period; i < len(prices); i++ {
		var avgGain, avgLoss float64
		for j := i - period + 1; j <= i; j++ {
			avgGain += gains[j]
			avgLoss += losses[j]
		}
		avgGain /= float64(period)
		avgLoss /= float64(period)

		if avgLoss == 0 {
			out[i] = 100.0
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100.0 - 100.0/(1.0+rs)
	}
	return out
}
