package strategy

import "github.com/kurokishi/stock-analysis-id/internal/model"

const (
	RSIOverbought = 70.0
	// OutlookThresholdPct is the forecast change needed before an outlook leaves Neutral.
	OutlookThresholdPct = 2.0
)

// Recommend combines the valuation verdict with trend and momentum.
// Comparisons against NaN are false, so undefined inputs fall through to Hold.
func Recommend(kind model.VerdictKind, ma50, ma200, rsi float64) model.Action {
	switch {
	case kind.IsUndervalued() && ma50 > ma200 && rsi < RSIOverbought:
		return model.Buy
	case kind == model.Overvalued && rsi > RSIOverbought:
		return model.Sell
	default:
		return model.Hold
	}
}

// ForHolding turns a Buy on a ticker already held into Add.
func ForHolding(action model.Action, held bool) model.Action {
	if held && action == model.Buy {
		return model.Add
	}
	return action
}

// ForecastOutlook reads the final forecast point against lastPrice. ok is
// false when there is nothing to compare.
func ForecastOutlook(lastPrice float64, forecast *model.ForecastResult) (out model.ForecastOutlook, ok bool) {
	final, ok := forecast.Final()
	if !ok || lastPrice <= 0 {
		return model.ForecastOutlook{}, false
	}
	change := (final - lastPrice) / lastPrice * 100

	outlook := model.Neutral
	switch {
	case change > OutlookThresholdPct:
		outlook = model.Bullish
	case change < -OutlookThresholdPct:
		outlook = model.Bearish
	}
	return model.ForecastOutlook{Outlook: outlook, ChangePct: change}, true
}
