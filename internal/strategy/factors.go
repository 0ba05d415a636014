package strategy

import (
	"fmt"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

// scoreRelativeRatio scores a price multiple (P/E or P/B) against its
// industry benchmark. Non-positive multiples mean losses or negative equity.
func scoreRelativeRatio(name string, value, industry float64) model.FactorScore {
	if value <= 0 {
		return model.FactorScore{
			Name:       name,
			Value:      value,
			RawScore:   -1,
			Commentary: fmt.Sprintf("%s negatif (%.2f)", name, value),
		}
	}

	var score float64
	switch {
	case value < 0.7*industry:
		score = 2
	case value < industry:
		score = 1
	case value > 1.3*industry:
		score = -1
	default:
		score = 0
	}

	return model.FactorScore{
		Name:       name,
		Value:      value,
		RawScore:   score,
		Commentary: fmt.Sprintf("%s=%.2f vs industri %.2f", name, value, industry),
	}
}

// scorePER scores the price-to-earnings ratio.
func scorePER(per, industryPE float64) model.FactorScore {
	return scoreRelativeRatio("PER", per, industryPE)
}

// scorePBV scores the price-to-book ratio.
func scorePBV(pbv, industryPBV float64) model.FactorScore {
	return scoreRelativeRatio("PBV", pbv, industryPBV)
}

// scoreDividendYield scores the dividend yield, given as a fraction.
func scoreDividendYield(yield float64) model.FactorScore {
	var score float64
	switch {
	case yield > 0.05:
		score = 1
	case yield > 0.03:
		score = 0.5
	default:
		score = 0
	}

	return model.FactorScore{
		Name:       "DividendYield",
		Value:      yield,
		RawScore:   score,
		Commentary: fmt.Sprintf("yield=%.2f%%", yield*100),
	}
}

// scoreROE scores return on equity, given as a fraction.
func scoreROE(roe float64) model.FactorScore {
	var score float64
	if roe > 0.15 {
		score = 1
	}
	return model.FactorScore{
		Name:       "ROE",
		Value:      roe,
		RawScore:   score,
		Commentary: fmt.Sprintf("ROE=%.2f%%", roe*100),
	}
}
