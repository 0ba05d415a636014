package forecast

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

const (
	periodDaily  = 1.0
	periodWeekly = 7.0
	periodYearly = 365.25

	// noiseVariance converts prior scales into ridge penalties on the
	// unit-scaled target.
	noiseVariance = 1e-4
	// unpenalized is the ridge term on intercept and base slope.
	unpenalized = 1e-9
	// minColumnVariance drops seasonal columns that are constant in-sample.
	minColumnVariance = 1e-12
)

// AdditiveConfig controls the trend + seasonality decomposition.
type AdditiveConfig struct {
	Changepoints          int     `yaml:"changepoints"`
	ChangepointRange      float64 `yaml:"changepoint_range"`
	ChangepointPriorScale float64 `yaml:"changepoint_prior_scale"`
	SeasonalityPriorScale float64 `yaml:"seasonality_prior_scale"`
	YearlyOrder           int     `yaml:"yearly_order"`
	WeeklyOrder           int     `yaml:"weekly_order"`
	DailyOrder            int     `yaml:"daily_order"`
	IntervalWidth         float64 `yaml:"interval_width"`
}

// DefaultAdditiveConfig mirrors the usual Prophet defaults with daily,
// weekly and yearly seasonality switched on.
func DefaultAdditiveConfig() AdditiveConfig {
	return AdditiveConfig{
		Changepoints:          25,
		ChangepointRange:      0.8,
		ChangepointPriorScale: 0.05,
		SeasonalityPriorScale: 10,
		YearlyOrder:           10,
		WeeklyOrder:           3,
		DailyOrder:            4,
		IntervalWidth:         0.8,
	}
}

// WithDefaults fills every unset field from DefaultAdditiveConfig. A negative
// changepoint count or seasonal order switches that component off.
func (c AdditiveConfig) WithDefaults() AdditiveConfig {
	d := DefaultAdditiveConfig()
	if c.Changepoints == 0 {
		c.Changepoints = d.Changepoints
	}
	if c.ChangepointRange <= 0 || c.ChangepointRange > 1 {
		c.ChangepointRange = d.ChangepointRange
	}
	if c.ChangepointPriorScale <= 0 {
		c.ChangepointPriorScale = d.ChangepointPriorScale
	}
	if c.SeasonalityPriorScale <= 0 {
		c.SeasonalityPriorScale = d.SeasonalityPriorScale
	}
	if c.YearlyOrder == 0 {
		c.YearlyOrder = d.YearlyOrder
	}
	if c.WeeklyOrder == 0 {
		c.WeeklyOrder = d.WeeklyOrder
	}
	if c.DailyOrder == 0 {
		c.DailyOrder = d.DailyOrder
	}
	if c.IntervalWidth <= 0 || c.IntervalWidth >= 1 {
		c.IntervalWidth = d.IntervalWidth
	}
	return c
}

type seasonalTerm struct {
	period float64
	order  int
	sin    bool
}

func (s seasonalTerm) at(days float64) float64 {
	x := 2 * math.Pi * float64(s.order) * days / s.period
	if s.sin {
		return math.Sin(x)
	}
	return math.Cos(x)
}

// AdditiveModel is an immutable fitted piecewise-linear trend with Fourier
// seasonality. Time runs over [0, 1] across the history; the target is
// divided by its largest absolute value.
type AdditiveModel struct {
	cfg          AdditiveConfig
	start        time.Time
	spanDays     float64
	yScale       float64
	changepoints []float64
	seasonal     []seasonalTerm
	beta         []float64 // intercept, slope, deltas..., seasonal...
	sigma2       float64   // residual variance, scaled units
	cpRate       float64   // changepoints per history step
	cpScale      float64   // mean absolute changepoint delta
	stepT        float64   // scaled time between consecutive history points
}

// FitAdditive fits the decomposition to closes observed on dates.
func FitAdditive(dates []time.Time, closes []float64, cfg AdditiveConfig) (*AdditiveModel, error) {
	if len(dates) != len(closes) {
		return nil, fmt.Errorf("additive fit: %d dates for %d prices: %w", len(dates), len(closes), model.ErrInvalidParameter)
	}
	n := len(closes)
	if n < 2 {
		return nil, fmt.Errorf("additive fit: %d observations: %w", n, model.ErrInsufficientData)
	}
	for _, v := range closes {
		if !model.Defined(v) {
			return nil, fmt.Errorf("additive fit: undefined price: %w", model.ErrInvalidParameter)
		}
	}
	cfg = cfg.WithDefaults()

	start := dates[0]
	spanDays := dates[n-1].Sub(start).Hours() / 24
	if spanDays <= 0 {
		return nil, fmt.Errorf("additive fit: dates do not advance: %w", model.ErrInvalidParameter)
	}

	yScale := math.Max(math.Abs(floats.Max(closes)), math.Abs(floats.Min(closes)))
	if yScale == 0 {
		yScale = 1
	}
	y := make([]float64, n)
	days := make([]float64, n)
	t := make([]float64, n)
	for i := range closes {
		y[i] = closes[i] / yScale
		days[i] = dates[i].Sub(start).Hours() / 24
		t[i] = days[i] / spanDays
	}

	m := &AdditiveModel{
		cfg:      cfg,
		start:    start,
		spanDays: spanDays,
		yScale:   yScale,
		stepT:    1 / float64(n-1),
	}
	m.changepoints = placeChangepoints(t, cfg.Changepoints, cfg.ChangepointRange)

	// A seasonality needs two full cycles of history before it is fitted.
	candidates := fourierTerms(periodDaily, cfg.DailyOrder)
	if spanDays >= 2*periodWeekly {
		candidates = append(candidates, fourierTerms(periodWeekly, cfg.WeeklyOrder)...)
	}
	if spanDays >= 2*periodYearly {
		candidates = append(candidates, fourierTerms(periodYearly, cfg.YearlyOrder)...)
	}
	col := make([]float64, n)
	for _, term := range candidates {
		for i := range days {
			col[i] = term.at(days[i])
		}
		if stat.Variance(col, nil) > minColumnVariance {
			m.seasonal = append(m.seasonal, term)
		}
	}

	nTrend := 2 + len(m.changepoints)
	nCols := nTrend + len(m.seasonal)
	x := mat.NewDense(n, nCols, nil)
	for i := 0; i < n; i++ {
		x.SetRow(i, m.row(t[i], days[i]))
	}

	penalty := make([]float64, nCols)
	penalty[0], penalty[1] = unpenalized, unpenalized
	cpPenalty := noiseVariance / (cfg.ChangepointPriorScale * cfg.ChangepointPriorScale)
	seasonPenalty := noiseVariance / (cfg.SeasonalityPriorScale * cfg.SeasonalityPriorScale)
	for j := 2; j < nCols; j++ {
		if j < nTrend {
			penalty[j] = cpPenalty
		} else {
			penalty[j] = seasonPenalty
		}
	}

	beta, err := ridgeSolve(x, y, penalty)
	if err != nil {
		return nil, err
	}
	m.beta = beta

	fitted := mat.NewVecDense(n, nil)
	fitted.MulVec(x, mat.NewVecDense(nCols, beta))
	var ss float64
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		ss += r * r
	}
	dof := n - 1
	if dof < 1 {
		dof = 1
	}
	m.sigma2 = ss / float64(dof)

	if len(m.changepoints) > 0 {
		var sumAbs float64
		for _, d := range beta[2:nTrend] {
			sumAbs += math.Abs(d)
		}
		m.cpScale = sumAbs / float64(len(m.changepoints))
		m.cpRate = float64(len(m.changepoints)) / float64(n)
	}
	return m, nil
}

// Forecast evaluates the model at dates. The interval combines residual
// noise with the variance of future trend changes, which grows with the step.
func (m *AdditiveModel) Forecast(dates []time.Time) (*Path, error) {
	if len(dates) == 0 {
		return nil, fmt.Errorf("additive forecast: no dates: %w", model.ErrInvalidParameter)
	}
	zq := distuv.UnitNormal.Quantile(0.5 + m.cfg.IntervalWidth/2)
	path := &Path{
		Point: make([]float64, len(dates)),
		Lower: make([]float64, len(dates)),
		Upper: make([]float64, len(dates)),
	}
	for h, d := range dates {
		days := d.Sub(m.start).Hours() / 24
		row := m.row(days/m.spanDays, days)
		point := floats.Dot(row, m.beta)

		step := float64(h + 1)
		trendVar := m.cpRate * 2 * m.cpScale * m.cpScale * m.stepT * m.stepT * step * (step + 1) * (2*step + 1) / 6
		half := zq * math.Sqrt(m.sigma2+trendVar)

		path.Point[h] = point * m.yScale
		path.Lower[h] = (point - half) * m.yScale
		path.Upper[h] = (point + half) * m.yScale
	}
	path.clampNonNegative()
	return path, nil
}

// row builds one design-matrix row: intercept, slope, changepoint hinges,
// seasonal columns.
func (m *AdditiveModel) row(t, days float64) []float64 {
	r := make([]float64, 0, 2+len(m.changepoints)+len(m.seasonal))
	r = append(r, 1, t)
	for _, s := range m.changepoints {
		r = append(r, math.Max(0, t-s))
	}
	for _, term := range m.seasonal {
		r = append(r, term.at(days))
	}
	return r
}

// placeChangepoints spreads count changepoints over the first frac of the
// history at observed time points.
func placeChangepoints(t []float64, count int, frac float64) []float64 {
	n := len(t)
	limit := int(math.Floor(frac * float64(n-1)))
	if count > limit-1 {
		count = limit - 1
	}
	if count <= 0 {
		return nil
	}
	out := make([]float64, 0, count)
	for i := 1; i <= count; i++ {
		idx := int(math.Round(float64(i) * float64(limit) / float64(count+1)))
		out = append(out, t[idx])
	}
	return out
}

func fourierTerms(period float64, order int) []seasonalTerm {
	var terms []seasonalTerm
	for k := 1; k <= order; k++ {
		terms = append(terms,
			seasonalTerm{period: period, order: k, sin: true},
			seasonalTerm{period: period, order: k, sin: false},
		)
	}
	return terms
}

// ridgeSolve returns argmin ||y - X b||^2 + sum penalty_j b_j^2.
func ridgeSolve(x *mat.Dense, y, penalty []float64) ([]float64, error) {
	_, cols := x.Dims()
	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	a := mat.NewSymDense(cols, nil)
	for i := 0; i < cols; i++ {
		for j := i; j < cols; j++ {
			v := xtx.At(i, j)
			if i == j {
				v += penalty[i]
			}
			a.SetSym(i, j, v)
		}
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), mat.NewVecDense(len(y), y))

	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, fmt.Errorf("additive fit: normal equations not positive definite: %w", model.ErrModelFittingFailed)
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return nil, fmt.Errorf("additive fit: %v: %w", err, model.ErrModelFittingFailed)
	}
	return beta.RawVector().Data, nil
}
