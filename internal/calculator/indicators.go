package calculator

import (
	"math"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

// Compute derives every indicator for series. Each entry of the returned set
// is aligned with series.Bars. With fewer than two bars every entry is NaN.
func Compute(series *model.PriceSeries) model.IndicatorSet {
	n := series.Len()
	set := model.IndicatorSet{}
	names := []string{
		model.IndSMA20, model.IndSMA50, model.IndSMA200, model.IndRSI14,
		model.IndEMA12, model.IndEMA26, model.IndMACD, model.IndMACDSignal, model.IndMACDHist,
		model.IndBBUpper, model.IndBBMiddle, model.IndBBLower,
	}
	if n < 2 {
		for _, name := range names {
			set[name] = model.NaNs(n)
		}
		return set
	}

	closes := series.Closes()
	set[model.IndSMA20] = SMASeries(closes, 20)
	set[model.IndSMA50] = SMASeries(closes, 50)
	set[model.IndSMA200] = SMASeries(closes, 200)
	set[model.IndRSI14] = RSISeries(closes, RSIPeriod)

	macd := MACDSeries(closes, MACDFast, MACDSlow, MACDSignal)
	set[model.IndEMA12] = macd.FastEMA
	set[model.IndEMA26] = macd.SlowEMA
	set[model.IndMACD] = macd.MACD
	set[model.IndMACDSignal] = macd.Signal
	set[model.IndMACDHist] = macd.Histogram

	upper, middle, lower := BollingerSeries(closes, BollingerPeriod, BollingerStdDev)
	set[model.IndBBUpper] = upper
	set[model.IndBBMiddle] = middle
	set[model.IndBBLower] = lower
	return set
}

// Summarize reduces an IndicatorSet to the latest-bar view used in reports.
func Summarize(series *model.PriceSeries, set model.IndicatorSet) model.Snapshot {
	last, ok := series.Last()
	if !ok {
		nan := math.NaN()
		return model.Snapshot{
			Close: nan, SMA20: nan, SMA50: nan, SMA200: nan, RSI14: nan,
			MACD: nan, MACDSignal: nan, High52w: nan, Low52w: nan, Position52: nan,
		}
	}

	snap := model.Snapshot{
		Close:      last.Close,
		SMA20:      set.Latest(model.IndSMA20),
		SMA50:      set.Latest(model.IndSMA50),
		SMA200:     set.Latest(model.IndSMA200),
		RSI14:      set.Latest(model.IndRSI14),
		MACD:       set.Latest(model.IndMACD),
		MACDSignal: set.Latest(model.IndMACDSignal),
	}
	high, low, _ := Calculate52WeekRange(series.Bars)
	snap.High52w, snap.Low52w = high, low
	pos, err := RangePosition(last.Close, high, low)
	if err != nil {
		pos = math.NaN()
	}
	snap.Position52 = pos
	return snap
}
