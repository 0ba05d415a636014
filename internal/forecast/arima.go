package forecast

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

const (
	// minObservations is the number of differenced points required beyond p+q.
	minObservations = 10
	// maxFuncEvaluations bounds a single Nelder-Mead fit.
	maxFuncEvaluations = 4000
	// infeasible is returned by the objective outside the stationary/invertible region.
	infeasible = 1e100
	// minScaledVariance floors the innovation variance in standardized units.
	minScaledVariance = 1e-10
	// DefaultConfidence is the two-sided coverage of ARIMA intervals.
	DefaultConfidence = 0.95
)

// Order holds the (p, d, q) of an ARIMA model.
type Order struct {
	P, D, Q int
}

func (o Order) String() string {
	return fmt.Sprintf("ARIMA(%d,%d,%d)", o.P, o.D, o.Q)
}

// SearchGrid returns the candidate orders tried by SearchARIMA:
// p in 0..2, d in 0..1, q in 0..2.
func SearchGrid() []Order {
	var orders []Order
	for p := 0; p <= 2; p++ {
		for d := 0; d <= 1; d++ {
			for q := 0; q <= 2; q++ {
				orders = append(orders, Order{P: p, D: d, Q: q})
			}
		}
	}
	return orders
}

// ARIMAModel is an immutable fitted ARIMA model.
type ARIMAModel struct {
	Order  Order
	Mean   float64 // mean of the differenced series; zero when D > 0
	AR     []float64
	MA     []float64
	Sigma2 float64
	LogLik float64
	AIC    float64

	levels    []float64
	diffed    []float64
	residuals []float64
}

// Path is a forecast trajectory with its interval bounds.
type Path struct {
	Point []float64
	Lower []float64
	Upper []float64
}

// clampNonNegative floors every value at zero. Ordering between the three
// slices survives since the floor is monotone.
func (p *Path) clampNonNegative() {
	for i := range p.Point {
		p.Point[i] = math.Max(0, p.Point[i])
		p.Lower[i] = math.Max(0, p.Lower[i])
		p.Upper[i] = math.Max(0, p.Upper[i])
	}
}

// FitARIMA fits order to closes by conditional sum of squares. The
// differenced series is standardized before optimization so the simplex
// works on unit-scale parameters regardless of price level.
func FitARIMA(closes []float64, order Order) (*ARIMAModel, error) {
	if order.P < 0 || order.Q < 0 || order.D < 0 || order.D > 2 {
		return nil, fmt.Errorf("fit %s: %w", order, model.ErrInvalidParameter)
	}
	for _, v := range closes {
		if !model.Defined(v) {
			return nil, fmt.Errorf("fit %s: undefined price: %w", order, model.ErrInvalidParameter)
		}
	}

	w := difference(closes, order.D)
	if len(w) < order.P+order.Q+minObservations {
		return nil, fmt.Errorf("fit %s: %d observations after differencing: %w", order, len(w), model.ErrInsufficientData)
	}

	withMean := order.D == 0
	center := 0.0
	if withMean {
		center = stat.Mean(w, nil)
	}
	scale := rootMeanSquare(w, center)
	degenerate := scale == 0
	if degenerate {
		scale = 1
	}

	z := make([]float64, len(w))
	for i, v := range w {
		z[i] = (v - center) / scale
	}

	k := order.P + order.Q
	if withMean {
		k++
	}
	unpack := func(x []float64) (mu float64, ar, ma []float64) {
		ar = x[:order.P]
		ma = x[order.P : order.P+order.Q]
		if withMean {
			mu = x[order.P+order.Q]
		}
		return mu, ar, ma
	}

	params := make([]float64, k)
	if k > 0 && !degenerate {
		problem := optimize.Problem{
			Func: func(x []float64) float64 {
				mu, ar, ma := unpack(x)
				if !stationary(ar) || !invertible(ma) {
					return infeasible
				}
				css := sumSquares(cssResiduals(z, mu, ar, ma, order.P))
				if math.IsNaN(css) || math.IsInf(css, 0) {
					return infeasible
				}
				return css
			},
		}
		result, err := optimize.Minimize(problem, params, &optimize.Settings{FuncEvaluations: maxFuncEvaluations}, &optimize.NelderMead{})
		if err != nil {
			return nil, fmt.Errorf("fit %s: %v: %w", order, err, model.ErrModelFittingFailed)
		}
		if result.F >= infeasible {
			return nil, fmt.Errorf("fit %s: no feasible parameters: %w", order, model.ErrModelFittingFailed)
		}
		params = result.X
	}

	mu, ar, ma := unpack(params)
	res := cssResiduals(z, mu, ar, ma, order.P)
	nEff := float64(len(res))
	sigma2z := math.Max(sumSquares(res)/nEff, minScaledVariance)
	logLik := -0.5*nEff*(math.Log(2*math.Pi*sigma2z)+1) - nEff*math.Log(scale)
	if math.IsNaN(logLik) || math.IsInf(logLik, 0) {
		return nil, fmt.Errorf("fit %s: log-likelihood undefined: %w", order, model.ErrModelFittingFailed)
	}

	residuals := make([]float64, len(w))
	for i, e := range res {
		residuals[order.P+i] = e * scale
	}

	m := &ARIMAModel{
		Order:     order,
		AR:        append([]float64(nil), ar...),
		MA:        append([]float64(nil), ma...),
		Sigma2:    sigma2z * scale * scale,
		LogLik:    logLik,
		AIC:       -2*logLik + 2*float64(k+1),
		levels:    append([]float64(nil), closes...),
		diffed:    w,
		residuals: residuals,
	}
	if withMean {
		m.Mean = center + scale*mu
	}
	return m, nil
}

// SearchARIMA fits every order of SearchGrid and keeps the lowest AIC.
// Candidates that fail to fit are skipped.
func SearchARIMA(ctx context.Context, closes []float64) (*ARIMAModel, error) {
	var best *ARIMAModel
	var lastErr error
	for _, order := range SearchGrid() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := FitARIMA(closes, order)
		if err != nil {
			lastErr = err
			continue
		}
		if best == nil || m.AIC < best.AIC {
			best = m
		}
	}
	if best == nil {
		return nil, fmt.Errorf("arima search: no candidate fitted (last: %v): %w", lastErr, model.ErrModelFittingFailed)
	}
	return best, nil
}

// Forecast projects horizon steps ahead with intervals at DefaultConfidence.
func (m *ARIMAModel) Forecast(horizon int) (*Path, error) {
	return m.ForecastWithConfidence(horizon, DefaultConfidence)
}

// ForecastWithConfidence projects horizon steps ahead. Interval half-widths
// grow with the cumulative psi weights of the integrated model, so they never
// shrink with the step.
func (m *ARIMAModel) ForecastWithConfidence(horizon int, confidence float64) (*Path, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("forecast horizon %d: %w", horizon, model.ErrInvalidParameter)
	}
	if !(confidence > 0 && confidence < 1) {
		return nil, fmt.Errorf("forecast confidence %.3f: %w", confidence, model.ErrInvalidParameter)
	}

	n := len(m.diffed)
	w := append(append([]float64(nil), m.diffed...), make([]float64, horizon)...)
	e := append(append([]float64(nil), m.residuals...), make([]float64, horizon)...)
	for s := 0; s < horizon; s++ {
		t := n + s
		pred := m.Mean
		for i, phi := range m.AR {
			if t-i-1 >= 0 {
				pred += phi * (w[t-i-1] - m.Mean)
			}
		}
		for j, theta := range m.MA {
			if t-j-1 >= 0 {
				pred += theta * e[t-j-1]
			}
		}
		w[t] = pred
	}
	point := integrate(m.levels, m.Order.D, w[n:])

	psi := psiWeights(m.AR, m.MA, m.Order.D, horizon)
	zq := distuv.UnitNormal.Quantile(0.5 + confidence/2)
	path := &Path{
		Point: point,
		Lower: make([]float64, horizon),
		Upper: make([]float64, horizon),
	}
	var cum float64
	for h := 0; h < horizon; h++ {
		cum += psi[h] * psi[h]
		half := zq * math.Sqrt(m.Sigma2*cum)
		path.Lower[h] = point[h] - half
		path.Upper[h] = point[h] + half
	}
	path.clampNonNegative()
	return path, nil
}

// difference applies the (1-B) operator d times.
func difference(x []float64, d int) []float64 {
	out := append([]float64(nil), x...)
	for k := 0; k < d; k++ {
		if len(out) < 2 {
			return nil
		}
		next := make([]float64, len(out)-1)
		for i := 1; i < len(out); i++ {
			next[i-1] = out[i] - out[i-1]
		}
		out = next
	}
	return out
}

// integrate reverses difference for a forecast of the d-th differences,
// anchored on the last values of levels.
func integrate(levels []float64, d int, diffs []float64) []float64 {
	if d == 0 {
		return append([]float64(nil), diffs...)
	}
	// last[k] is the final value of the k-th difference of levels.
	last := make([]float64, d)
	series := levels
	for k := 0; k < d; k++ {
		last[k] = series[len(series)-1]
		series = difference(series, 1)
	}

	out := make([]float64, len(diffs))
	for i, v := range diffs {
		for k := d - 1; k >= 0; k-- {
			last[k] += v
			v = last[k]
		}
		out[i] = v
	}
	return out
}

// cssResiduals returns the one-step innovations from index p onwards with
// pre-sample innovations set to zero.
func cssResiduals(z []float64, mu float64, ar, ma []float64, p int) []float64 {
	e := make([]float64, len(z))
	for t := p; t < len(z); t++ {
		pred := mu
		for i, phi := range ar {
			pred += phi * (z[t-i-1] - mu)
		}
		for j, theta := range ma {
			if t-j-1 >= 0 {
				pred += theta * e[t-j-1]
			}
		}
		e[t] = z[t] - pred
	}
	return e[p:]
}

// psiWeights expands theta(B) / (phi(B) (1-B)^d) into its first n MA(inf) weights.
func psiWeights(ar, ma []float64, d, n int) []float64 {
	// phi(B)(1-B)^d as coefficients of B^0..B^(p+d), with phi(B) = 1 - sum phi_i B^i.
	poly := make([]float64, len(ar)+1)
	poly[0] = 1
	for i, phi := range ar {
		poly[i+1] = -phi
	}
	for k := 0; k < d; k++ {
		next := make([]float64, len(poly)+1)
		for i, c := range poly {
			next[i] += c
			next[i+1] -= c
		}
		poly = next
	}

	psi := make([]float64, n)
	for j := 0; j < n; j++ {
		if j == 0 {
			psi[0] = 1
			continue
		}
		var v float64
		if j <= len(ma) {
			v = ma[j-1]
		}
		for i := 1; i < len(poly) && i <= j; i++ {
			v -= poly[i] * psi[j-i]
		}
		psi[j] = v
	}
	return psi
}

// stationary reports whether every root of 1 - sum phi_i B^i lies outside
// the unit circle, via the eigenvalues of the companion matrix.
func stationary(ar []float64) bool {
	return companionStable(ar)
}

// invertible reports whether every root of 1 + sum theta_j B^j lies outside
// the unit circle.
func invertible(ma []float64) bool {
	neg := make([]float64, len(ma))
	for i, v := range ma {
		neg[i] = -v
	}
	return companionStable(neg)
}

func companionStable(coef []float64) bool {
	p := len(coef)
	if p == 0 {
		return true
	}
	if p == 1 {
		return math.Abs(coef[0]) < 1
	}
	a := mat.NewDense(p, p, nil)
	for j, c := range coef {
		a.Set(0, j, c)
	}
	for i := 1; i < p; i++ {
		a.Set(i, i-1, 1)
	}
	var eig mat.Eigen
	if ok := eig.Factorize(a, mat.EigenNone); !ok {
		return false
	}
	for _, v := range eig.Values(nil) {
		if cmplx.Abs(v) >= 1 {
			return false
		}
	}
	return true
}

func sumSquares(x []float64) float64 {
	return floats.Dot(x, x)
}

func rootMeanSquare(x []float64, center float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var ss float64
	for _, v := range x {
		ss += (v - center) * (v - center)
	}
	return math.Sqrt(ss / float64(len(x)))
}
