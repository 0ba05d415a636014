package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

// Naive is the persistence fallback: every point is the last close and the
// band widens like a random walk driven by the historical return deviation.
func Naive(series *model.PriceSeries, horizon int) (*model.ForecastResult, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("naive forecast horizon %d: %w", horizon, model.ErrInvalidParameter)
	}
	last, ok := series.Last()
	if !ok {
		return nil, fmt.Errorf("naive forecast: empty series: %w", model.ErrInsufficientData)
	}

	sigma := returnDeviation(series.Closes())
	zq := distuv.UnitNormal.Quantile(0.5 + DefaultConfidence/2)
	path := &Path{
		Point: make([]float64, horizon),
		Lower: make([]float64, horizon),
		Upper: make([]float64, horizon),
	}
	for h := 0; h < horizon; h++ {
		half := zq * sigma * math.Sqrt(float64(h+1)) * last.Close
		path.Point[h] = last.Close
		path.Lower[h] = last.Close - half
		path.Upper[h] = last.Close + half
	}
	path.clampNonNegative()

	return &model.ForecastResult{
		Ticker:    series.Ticker,
		ModelKind: model.ModelNaive,
		Dates:     TradingDaysAfter(last.Date, horizon),
		Point:     path.Point,
		Lower:     path.Lower,
		Upper:     path.Upper,
	}, nil
}

// returnDeviation is the sample deviation of daily percentage returns, zero
// when fewer than two returns exist.
func returnDeviation(closes []float64) float64 {
	var returns []float64
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}
	sd := stat.StdDev(returns, nil)
	if math.IsNaN(sd) {
		return 0
	}
	return sd
}
