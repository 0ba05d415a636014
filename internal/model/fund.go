package model

import (
	"strings"
	"time"
)

// SharesPerLot is the IDX board lot size.
const SharesPerLot = 100

// Holding is one position in the caller's portfolio.
type Holding struct {
	Ticker       string    `json:"ticker"`
	Lots         int       `json:"lots"`
	EntryDate    time.Time `json:"entry_date"`
	EntryCapital float64   `json:"entry_capital"`
}

// Portfolio is a caller-owned set of holdings, passed explicitly to every
// operation that needs it.
type Portfolio struct {
	Holdings []Holding `json:"holdings"`
}

// Held reports whether ticker is present in the portfolio.
func (p Portfolio) Held(ticker string) bool {
	for _, h := range p.Holdings {
		if strings.EqualFold(h.Ticker, ticker) {
			return true
		}
	}
	return false
}

// Tickers returns the tickers of every holding in order.
func (p Portfolio) Tickers() []string {
	out := make([]string, len(p.Holdings))
	for i, h := range p.Holdings {
		out[i] = h.Ticker
	}
	return out
}

// FundState is the persisted state of the holdings manager.
type FundState struct {
	Portfolio       Portfolio `json:"portfolio"`
	MonthlyCapital  float64   `json:"monthly_capital"`
	LastAllocatedAt time.Time `json:"last_allocated_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Candidate is one ticker considered for capital allocation.
type Candidate struct {
	Ticker       string        `json:"ticker"`
	Action       Action        `json:"action"`
	Fundamentals *Fundamentals `json:"fundamentals,omitempty"`
}

// AllocationLine is the capital assigned to one ticker.
type AllocationLine struct {
	Ticker     string  `json:"ticker"`
	Score      float64 `json:"score"`
	Proportion float64 `json:"proportion"`
	Amount     float64 `json:"amount"`
}

// Allocation splits a capital amount across qualifying candidates.
type Allocation struct {
	Capital float64          `json:"capital"`
	Lines   []AllocationLine `json:"lines"`
}

// Empty reports whether no candidate qualified.
func (a Allocation) Empty() bool { return len(a.Lines) == 0 }

// Total returns the sum of allocated amounts.
func (a Allocation) Total() float64 {
	var sum float64
	for _, l := range a.Lines {
		sum += l.Amount
	}
	return sum
}
