package calculator

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

// SMASeries computes the trailing simple moving average of prices over period.
// Entries before the window is full are NaN.
func SMASeries(prices []float64, period int) []float64 {
	out := model.NaNs(len(prices))
	if period <= 0 || len(prices) < period {
		return out
	}
	sma := talib.Sma(prices, period)
	copy(out[period-1:], sma[period-1:])
	return out
}

// EMASeries computes the exponential moving average with alpha 2/(span+1),
// seeded with the first price so every entry is defined.
func EMASeries(prices []float64, span int) []float64 {
	out := model.NaNs(len(prices))
	if span <= 0 || len(prices) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		out[i] = alpha*prices[i] + (1-alpha)*out[i-1]
	}
	return out
}

// LatestSMA returns the final value of the period SMA, or NaN when the window
// is not yet full.
func LatestSMA(prices []float64, period int) float64 {
	sma := SMASeries(prices, period)
	if len(sma) == 0 {
		return math.NaN()
	}
	return sma[len(sma)-1]
}
