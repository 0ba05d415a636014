package calculator

import "github.com/kurokishi/stock-analysis-id/internal/model"

const (
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9
)

// MACDResult holds the aligned MACD line, signal line and histogram.
type MACDResult struct {
	FastEMA   []float64
	SlowEMA   []float64
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACDSeries computes MACD = EMA(fast) - EMA(slow) and its EMA(signal) line.
func MACDSeries(prices []float64, fast, slow, signal int) MACDResult {
	fastEMA := EMASeries(prices, fast)
	slowEMA := EMASeries(prices, slow)

	macd := model.NaNs(len(prices))
	for i := range prices {
		macd[i] = fastEMA[i] - slowEMA[i]
	}
	sig := EMASeries(macd, signal)

	hist := model.NaNs(len(prices))
	for i := range prices {
		hist[i] = macd[i] - sig[i]
	}
	return MACDResult{FastEMA: fastEMA, SlowEMA: slowEMA, MACD: macd, Signal: sig, Histogram: hist}
}
