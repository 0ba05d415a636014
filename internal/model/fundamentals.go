package model

// Fundamentals is a point-in-time fundamental snapshot. A nil field means the
// value is unknown; it must never be read as zero.
type Fundamentals struct {
	Ticker        string   `json:"ticker"`
	PER           *float64 `json:"per,omitempty"`
	PBV           *float64 `json:"pbv,omitempty"`
	DividendYield *float64 `json:"dividend_yield,omitempty"` // fraction, 0.05 = 5%
	ROE           *float64 `json:"roe,omitempty"`            // fraction
	DER           *float64 `json:"der,omitempty"`
	EPS           *float64 `json:"eps,omitempty"`
	MarketCap     *float64 `json:"market_cap,omitempty"`
}

// Float returns a pointer to v, for building snapshots literally.
func Float(v float64) *float64 { return &v }

// Known reports whether at least one scored valuation metric is present.
func (f *Fundamentals) Known() bool {
	if f == nil {
		return false
	}
	return f.PER != nil || f.PBV != nil || f.DividendYield != nil || f.ROE != nil
}
