package strategy

import "github.com/kurokishi/stock-analysis-id/internal/model"

const (
	DefaultIndustryPE  = 15.0
	DefaultIndustryPBV = 1.5
)

// Thresholds holds the industry benchmarks valuation is measured against.
// Zero values fall back to the defaults.
type Thresholds struct {
	IndustryPE  float64
	IndustryPBV float64
}

// DefaultThresholds returns the stock-market-wide benchmarks.
func DefaultThresholds() Thresholds {
	return Thresholds{IndustryPE: DefaultIndustryPE, IndustryPBV: DefaultIndustryPBV}
}

func (t Thresholds) withDefaults() Thresholds {
	if t.IndustryPE <= 0 {
		t.IndustryPE = DefaultIndustryPE
	}
	if t.IndustryPBV <= 0 {
		t.IndustryPBV = DefaultIndustryPBV
	}
	return t
}

// VerdictTiers maps a minimum total score to a verdict, checked top-down.
// Scores at or below OvervaluedMax are Overvalued; the rest are FairlyValued.
var VerdictTiers = []struct {
	MinScore float64
	Kind     model.VerdictKind
}{
	{5, model.StronglyUndervalued},
	{3, model.Undervalued},
}

// OvervaluedMax is the highest score still classified as Overvalued.
const OvervaluedMax = 1.0

// mapVerdict maps a total score to a VerdictKind.
func mapVerdict(score float64) model.VerdictKind {
	for _, t := range VerdictTiers {
		if score >= t.MinScore {
			return t.Kind
		}
	}
	if score <= OvervaluedMax {
		return model.Overvalued
	}
	return model.FairlyValued
}

// EvaluateValuation scores the known metrics of f and classifies the total.
// Unknown metrics contribute nothing; with none known the verdict is
// InsufficientData.
func EvaluateValuation(f *model.Fundamentals, th Thresholds) model.Verdict {
	if !f.Known() {
		return model.Verdict{Kind: model.InsufficientData}
	}
	th = th.withDefaults()

	var factors []model.FactorScore
	if f.PER != nil {
		factors = append(factors, scorePER(*f.PER, th.IndustryPE))
	}
	if f.PBV != nil {
		factors = append(factors, scorePBV(*f.PBV, th.IndustryPBV))
	}
	if f.DividendYield != nil {
		factors = append(factors, scoreDividendYield(*f.DividendYield))
	}
	if f.ROE != nil {
		factors = append(factors, scoreROE(*f.ROE))
	}

	var total float64
	for _, fs := range factors {
		total += fs.RawScore
	}

	return model.Verdict{
		Kind:      mapVerdict(total),
		Score:     total,
		SubScores: factors,
	}
}

// TakeProfitWarning returns a warning when momentum is stretched, or "".
func TakeProfitWarning(rsi float64) string {
	if model.Defined(rsi) && rsi > 85 {
		return "⚠️ RSI > 85: pertimbangkan ambil untung sebagian"
	}
	return ""
}
