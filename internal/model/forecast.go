package model

import "time"

// ModelKind names the forecasting method that produced a result.
type ModelKind string

const (
	ModelARIMA    ModelKind = "arima"
	ModelAdditive ModelKind = "additive"
	ModelNaive    ModelKind = "naive"
)

// ParseModelKind maps a user-supplied name to a ModelKind.
func ParseModelKind(s string) (ModelKind, bool) {
	switch s {
	case "arima", "ARIMA":
		return ModelARIMA, true
	case "additive", "prophet", "Prophet":
		return ModelAdditive, true
	case "naive":
		return ModelNaive, true
	}
	return "", false
}

// BacktestMetrics summarises the held-out accuracy of a model.
// MAPE is nil when any actual value is zero.
type BacktestMetrics struct {
	MAE       float64  `json:"mae"`
	MSE       float64  `json:"mse"`
	RMSE      float64  `json:"rmse"`
	MAPE      *float64 `json:"mape,omitempty"`
	TrainSize int      `json:"train_size"`
	TestSize  int      `json:"test_size"`
}

// ForecastResult holds a forecast path with its interval. All slices share one
// length; Lower[i] <= Point[i] <= Upper[i] and every value is >= 0.
type ForecastResult struct {
	Ticker    string           `json:"ticker"`
	ModelKind ModelKind        `json:"model"`
	Order     string           `json:"order,omitempty"`
	Dates     []time.Time      `json:"dates"`
	Point     []float64        `json:"point"`
	Lower     []float64        `json:"lower"`
	Upper     []float64        `json:"upper"`
	Backtest  *BacktestMetrics `json:"backtest,omitempty"`
}

// Horizon returns the number of forecast steps.
func (r *ForecastResult) Horizon() int { return len(r.Point) }

// Final returns the last forecast point. ok is false for an empty forecast.
func (r *ForecastResult) Final() (float64, bool) {
	if r == nil || len(r.Point) == 0 {
		return 0, false
	}
	return r.Point[len(r.Point)-1], true
}
