package model

import "time"

// ValuePoint is the holding value on one trading day.
type ValuePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
	Value float64   `json:"value"`
}

// PortfolioSnapshot is the simulated state of a single-ticker position.
type PortfolioSnapshot struct {
	Ticker       string       `json:"ticker"`
	EntryDate    time.Time    `json:"entry_date"`
	EntryPrice   float64      `json:"entry_price"`
	EntryCapital float64      `json:"entry_capital"`
	Shares       float64      `json:"shares"`
	CurrentPrice float64      `json:"current_price"`
	CurrentValue float64      `json:"current_value"`
	Profit       float64      `json:"profit"`
	ProfitPct    float64      `json:"profit_pct"`
	History      []ValuePoint `json:"history"`
}

// Values returns the value column of the history.
func (s *PortfolioSnapshot) Values() []float64 {
	out := make([]float64, len(s.History))
	for i, p := range s.History {
		out[i] = p.Value
	}
	return out
}

// RiskMetrics summarises the daily-return risk of a holding history.
// SharpeRatio is nil when the return deviation is zero.
type RiskMetrics struct {
	AnnualizedVolatility    float64  `json:"annualized_volatility"`
	MaxDrawdownPct          float64  `json:"max_drawdown_pct"`
	PeakToTroughDrawdownPct float64  `json:"peak_to_trough_drawdown_pct"`
	SharpeRatio             *float64 `json:"sharpe_ratio,omitempty"`
}

// HoldingReport pairs a simulated holding with its risk, or the error that
// prevented the simulation.
type HoldingReport struct {
	Holding  Holding            `json:"holding"`
	Snapshot *PortfolioSnapshot `json:"snapshot,omitempty"`
	Risk     *RiskMetrics       `json:"risk,omitempty"`
	Err      string             `json:"error,omitempty"`
}

// PortfolioReport aggregates HoldingReports.
type PortfolioReport struct {
	Holdings     []HoldingReport `json:"holdings"`
	TotalCapital float64         `json:"total_capital"`
	TotalValue   float64         `json:"total_value"`
	TotalProfit  float64         `json:"total_profit"`
	ProfitPct    float64         `json:"profit_pct"`
}

// Comparison is the normalised performance of several tickers over their
// common date range, plus the correlation of their daily returns.
type Comparison struct {
	Tickers     []string             `json:"tickers"`
	Dates       []time.Time          `json:"dates"`
	Normalized  map[string][]float64 `json:"normalized"` // first common close = 100
	ReturnPct   map[string]float64   `json:"return_pct"`
	Correlation [][]float64          `json:"correlation"`
}
