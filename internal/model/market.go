package model

import "time"

// Bar represents a single daily candlestick.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries holds daily bars in ascending date order with unique dates.
// Missing trading days are simply absent.
type PriceSeries struct {
	Ticker string `json:"ticker"`
	Bars   []Bar  `json:"bars"`
}

// Len returns the number of bars.
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Empty reports whether the series carries no bars.
func (s *PriceSeries) Empty() bool { return s.Len() == 0 }

// Closes returns a fresh slice of closing prices.
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, s.Len())
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Dates returns a fresh slice of bar dates.
func (s *PriceSeries) Dates() []time.Time {
	dates := make([]time.Time, s.Len())
	for i, b := range s.Bars {
		dates[i] = b.Date
	}
	return dates
}

// Last returns the most recent bar. ok is false for an empty series.
func (s *PriceSeries) Last() (bar Bar, ok bool) {
	if s.Empty() {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Slice returns a new series sharing no slice header with s, covering bars [from, to).
func (s *PriceSeries) Slice(from, to int) *PriceSeries {
	bars := make([]Bar, to-from)
	copy(bars, s.Bars[from:to])
	return &PriceSeries{Ticker: s.Ticker, Bars: bars}
}

// MarketData bundles everything fetched for one ticker.
type MarketData struct {
	Series       *PriceSeries
	Fundamentals *Fundamentals
	FetchedAt    time.Time
}
