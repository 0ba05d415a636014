package calculator

import (
	"github.com/markcheno/go-talib"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

const (
	BollingerPeriod = 20
	BollingerStdDev = 2.0
)

// BollingerSeries returns the upper, middle and lower bands over period with
// the given standard-deviation multiplier. Entries are NaN until the window is full.
func BollingerSeries(prices []float64, period int, mult float64) (upper, middle, lower []float64) {
	upper = model.NaNs(len(prices))
	middle = model.NaNs(len(prices))
	lower = model.NaNs(len(prices))
	if period <= 1 || len(prices) < period {
		return upper, middle, lower
	}

	// MAType 0 = SMA
	u, m, l := talib.BBands(prices, period, mult, mult, talib.SMA)
	copy(upper[period-1:], u[period-1:])
	copy(middle[period-1:], m[period-1:])
	copy(lower[period-1:], l[period-1:])
	return upper, middle, lower
}
