package simulator

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

// Compare aligns several series on their common dates, rebases each to 100
// at the first common date, and correlates their daily returns.
func Compare(series []*model.PriceSeries) (*model.Comparison, error) {
	if len(series) < 2 {
		return nil, fmt.Errorf("compare needs at least 2 series, got %d: %w", len(series), model.ErrInvalidParameter)
	}

	counts := map[time.Time]int{}
	for _, s := range series {
		if s.Empty() {
			return nil, fmt.Errorf("compare %s: empty series: %w", s.Ticker, model.ErrInsufficientData)
		}
		for _, b := range s.Bars {
			counts[dayKey(b.Date)]++
		}
	}

	// Common dates in the order of the first series, which is ascending.
	var dates []time.Time
	for _, b := range series[0].Bars {
		if counts[dayKey(b.Date)] == len(series) {
			dates = append(dates, dayKey(b.Date))
		}
	}
	if len(dates) < 3 {
		return nil, fmt.Errorf("compare: %d common dates: %w", len(dates), model.ErrInsufficientData)
	}

	cmp := &model.Comparison{
		Dates:      dates,
		Normalized: make(map[string][]float64, len(series)),
		ReturnPct:  make(map[string]float64, len(series)),
	}
	returns := make([][]float64, len(series))
	for i, s := range series {
		byDate := make(map[time.Time]float64, s.Len())
		for _, b := range s.Bars {
			byDate[dayKey(b.Date)] = b.Close
		}
		closes := make([]float64, len(dates))
		for j, d := range dates {
			closes[j] = byDate[d]
		}
		for j, c := range closes {
			if !(c > 0) {
				return nil, fmt.Errorf("compare %s: close %.2f on %s: %w", s.Ticker, c, dates[j].Format("2006-01-02"), model.ErrInsufficientData)
			}
		}
		base := closes[0]
		norm := make([]float64, len(closes))
		for j, c := range closes {
			norm[j] = c / base * 100
		}
		cmp.Tickers = append(cmp.Tickers, s.Ticker)
		cmp.Normalized[s.Ticker] = norm
		cmp.ReturnPct[s.Ticker] = norm[len(norm)-1] - 100
		returns[i] = DailyReturns(closes)
	}

	cmp.Correlation = correlationMatrix(returns)
	return cmp, nil
}

// correlationMatrix returns pairwise Pearson correlations of equal-length
// return columns. A flat column has no defined correlation and reports 0.
func correlationMatrix(returns [][]float64) [][]float64 {
	n := len(returns)
	rows := len(returns[0])
	data := mat.NewDense(rows, n, nil)
	for j, col := range returns {
		data.SetCol(j, col)
	}
	var corr mat.SymDense
	stat.CorrelationMatrix(&corr, data, nil)

	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for j := range out[i] {
			v := corr.At(i, j)
			if math.IsNaN(v) {
				v = 0
				if i == j {
					v = 1
				}
			}
			out[i][j] = v
		}
	}
	return out
}

func dayKey(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
