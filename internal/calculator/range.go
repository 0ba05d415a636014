package calculator

import (
	"errors"
	"math"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

const (
	TradingDaysYear  = 252
	TradingDaysMonth = 22
)

// PriceRange scans the most recent lookback bars and returns the highest high
// and the lowest low.
func PriceRange(bars []model.Bar, lookback int) (high, low float64, err error) {
	if len(bars) == 0 {
		return 0, 0, errors.New("no bars provided")
	}
	n := len(bars)
	start := n - lookback
	if start < 0 {
		start = 0
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for i := start; i < n; i++ {
		if bars[i].High > high {
			high = bars[i].High
		}
		if bars[i].Low < low {
			low = bars[i].Low
		}
	}
	return high, low, nil
}

// Calculate52WeekRange returns the high and low of the last 252 trading days.
func Calculate52WeekRange(bars []model.Bar) (high, low float64, err error) {
	return PriceRange(bars, TradingDaysYear)
}

// Calculate30DayRange returns the high and low of the last 22 trading days.
func Calculate30DayRange(bars []model.Bar) (high, low float64, err error) {
	return PriceRange(bars, TradingDaysMonth)
}

// RangePosition returns where current sits within [low, high], clamped to 0.0~1.0.
func RangePosition(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	pos := (current - low) / (high - low)
	if pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	return pos, nil
}
