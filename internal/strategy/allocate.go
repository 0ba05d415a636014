package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

// allocationScore rewards cheap book value and dividend income. Unknown or
// non-positive PBV and unknown yield add nothing.
func allocationScore(f *model.Fundamentals) float64 {
	if f == nil {
		return 0
	}
	var score float64
	if f.PBV != nil && *f.PBV > 0 {
		score += 1 / *f.PBV
	}
	if f.DividendYield != nil {
		score += *f.DividendYield
	}
	return score
}

// Allocate splits capital across Buy and Add candidates in proportion to
// their allocation score. Amounts are whole rupiah; the rounding remainder
// goes to the largest weight so the lines sum exactly to capital. When no
// candidate qualifies the allocation is empty and the error is nil.
func Allocate(candidates []model.Candidate, capital float64) (model.Allocation, error) {
	if !(capital > 0) {
		return model.Allocation{}, fmt.Errorf("allocate capital %.2f: %w", capital, model.ErrInvalidParameter)
	}

	alloc := model.Allocation{Capital: capital}
	var total float64
	for _, c := range candidates {
		if !c.Action.Participates() {
			continue
		}
		score := allocationScore(c.Fundamentals)
		if !(score > 0) {
			continue
		}
		alloc.Lines = append(alloc.Lines, model.AllocationLine{Ticker: c.Ticker, Score: score})
		total += score
	}
	if alloc.Empty() {
		return alloc, nil
	}

	capitalDec := decimal.NewFromFloat(capital)
	assigned := decimal.Zero
	largest := 0
	amounts := make([]decimal.Decimal, len(alloc.Lines))
	for i := range alloc.Lines {
		line := &alloc.Lines[i]
		line.Proportion = line.Score / total
		amounts[i] = capitalDec.Mul(decimal.NewFromFloat(line.Proportion)).Round(0)
		assigned = assigned.Add(amounts[i])
		if line.Proportion > alloc.Lines[largest].Proportion {
			largest = i
		}
	}
	amounts[largest] = amounts[largest].Add(capitalDec.Sub(assigned))

	for i := range alloc.Lines {
		alloc.Lines[i].Amount = amounts[i].InexactFloat64()
	}
	return alloc, nil
}
