package model

import (
	"encoding/json"
	"math"
)

// Indicator names carried by an IndicatorSet.
const (
	IndSMA20      = "sma20"
	IndSMA50      = "sma50"
	IndSMA200     = "sma200"
	IndRSI14      = "rsi14"
	IndEMA12      = "ema12"
	IndEMA26      = "ema26"
	IndMACD       = "macd"
	IndMACDSignal = "macd_signal"
	IndMACDHist   = "macd_hist"
	IndBBUpper    = "bb_upper"
	IndBBMiddle   = "bb_middle"
	IndBBLower    = "bb_lower"
)

// IndicatorSet maps an indicator name to a series aligned with the input
// PriceSeries. Entries are NaN until the indicator's window is satisfied.
type IndicatorSet map[string][]float64

// Latest returns the final value of the named indicator, NaN if absent.
func (s IndicatorSet) Latest(name string) float64 {
	values, ok := s[name]
	if !ok || len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

// Defined reports whether v carries a value.
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// NaNs returns a slice of n NaN values.
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Snapshot is the latest-bar view of an IndicatorSet used by reports.
type Snapshot struct {
	Close      float64 `json:"close"`
	SMA20      float64 `json:"sma20"`
	SMA50      float64 `json:"sma50"`
	SMA200     float64 `json:"sma200"`
	RSI14      float64 `json:"rsi14"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	High52w    float64 `json:"high_52w"`
	Low52w     float64 `json:"low_52w"`
	Position52 float64 `json:"position_52w"` // 0.0 ~ 1.0
}

// MarshalJSON encodes undefined values as null.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Close      *float64 `json:"close"`
		SMA20      *float64 `json:"sma20"`
		SMA50      *float64 `json:"sma50"`
		SMA200     *float64 `json:"sma200"`
		RSI14      *float64 `json:"rsi14"`
		MACD       *float64 `json:"macd"`
		MACDSignal *float64 `json:"macd_signal"`
		High52w    *float64 `json:"high_52w"`
		Low52w     *float64 `json:"low_52w"`
		Position52 *float64 `json:"position_52w"`
	}{
		optional(s.Close), optional(s.SMA20), optional(s.SMA50), optional(s.SMA200),
		optional(s.RSI14), optional(s.MACD), optional(s.MACDSignal),
		optional(s.High52w), optional(s.Low52w), optional(s.Position52),
	})
}

func optional(v float64) *float64 {
	if !Defined(v) {
		return nil
	}
	return &v
}
