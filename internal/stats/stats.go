// Package stats holds the statistical kernels shared by the correlation and
// validation services. Distribution quantiles and tail probabilities go
// through gonum's distuv; the arithmetic kernels (means, Pearson) are inline.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/drawlytics/drawlytics-go/internal/models"
)

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// Mean returns the arithmetic mean of series, 0 for an empty series.
func Mean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

// StdDev returns the population standard deviation of series, 0 when the
// series has fewer than two samples.
func StdDev(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	mean := Mean(series)
	sum := 0.0
	for _, v := range series {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(series)))
}

// Pearson returns the Pearson correlation coefficient of two equal-length
// series. Zero-variance input yields 0 rather than NaN.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n == 0 || n != len(y) {
		return 0
	}
	meanX := Mean(x)
	meanY := Mean(y)
	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

// CorrelationSignificance converts a correlation coefficient over n samples
// into 1-p for the two-tailed t-test of r != 0. Degenerate inputs (n <= 2 or
// |r| = 1) return 0 and 1 respectively without dividing by zero.
func CorrelationSignificance(r float64, n int) float64 {
	if n <= 2 {
		return 0
	}
	if math.Abs(r) >= 1 {
		return 1
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.CDF(-math.Abs(t))
	return clamp01(1 - p)
}

// WilsonInterval returns the Wilson-score confidence interval for successes
// out of trials at the given confidence level. Zero trials yields a
// degenerate zero interval.
func WilsonInterval(successes, trials int, level float64) models.ConfidenceInterval {
	ci := models.ConfidenceInterval{Level: level}
	if trials <= 0 {
		return ci
	}
	n := float64(trials)
	p := float64(successes) / n
	z := stdNormal.Quantile(1 - (1-level)/2)
	z2 := z * z

	denom := 1 + z2/n
	center := (p + z2/(2*n)) / denom
	margin := z * math.Sqrt(p*(1-p)/n+z2/(4*n*n)) / denom

	ci.Mean = p
	ci.Lower = clamp01(center - margin)
	ci.Upper = clamp01(center + margin)
	if ci.Lower > ci.Mean {
		ci.Lower = ci.Mean
	}
	if ci.Upper < ci.Mean {
		ci.Upper = ci.Mean
	}
	return ci
}

// ProportionPValue is the two-tailed p-value for observing successes/trials
// against a baseline proportion, using the normal approximation to the
// binomial. A degenerate baseline (0 or 1) or zero trials returns 1.
func ProportionPValue(successes, trials int, baseline float64) float64 {
	if trials <= 0 || baseline <= 0 || baseline >= 1 {
		return 1
	}
	n := float64(trials)
	p := float64(successes) / n
	se := math.Sqrt(baseline * (1 - baseline) / n)
	if se == 0 {
		return 1
	}
	z := (p - baseline) / se
	return clamp01(2 * stdNormal.CDF(-math.Abs(z)))
}

// BinomialPMF is P(X = k) for X ~ Binomial(n, p).
func BinomialPMF(n, k int, p float64) float64 {
	if k < 0 || k > n || p < 0 || p > 1 {
		return 0
	}
	// log-space to stay finite for larger n
	logC := 0.0
	for i := 0; i < k; i++ {
		logC += math.Log(float64(n-i)) - math.Log(float64(i+1))
	}
	switch {
	case p == 0:
		if k == 0 {
			return 1
		}
		return 0
	case p == 1:
		if k == n {
			return 1
		}
		return 0
	}
	return math.Exp(logC + float64(k)*math.Log(p) + float64(n-k)*math.Log(1-p))
}

// BinomialTail is P(X >= k) for X ~ Binomial(n, p).
func BinomialTail(n, k int, p float64) float64 {
	if k <= 0 {
		return 1
	}
	if k > n {
		return 0
	}
	sum := 0.0
	for i := k; i <= n; i++ {
		sum += BinomialPMF(n, i, p)
	}
	return clamp01(sum)
}

// ChiSquarePValue is the upper-tail p-value of a chi-square statistic with
// df degrees of freedom.
func ChiSquarePValue(chi2 float64, df int) float64 {
	if df <= 0 || chi2 <= 0 {
		return 1
	}
	dist := distuv.ChiSquared{K: float64(df)}
	return clamp01(1 - dist.CDF(chi2))
}

// ChiSquareGoodnessOfFit compares observed counts to expected counts and
// returns the statistic and its p-value. Buckets with non-positive expected
// counts are skipped; if nothing remains the result is (0, 1).
func ChiSquareGoodnessOfFit(observed, expected []float64) (float64, float64) {
	if len(observed) != len(expected) {
		return 0, 1
	}
	chi2 := 0.0
	df := -1
	for i := range observed {
		if expected[i] <= 0 {
			continue
		}
		d := observed[i] - expected[i]
		chi2 += d * d / expected[i]
		df++
	}
	if df <= 0 {
		return 0, 1
	}
	return chi2, ChiSquarePValue(chi2, df)
}

// TwoProportionZ runs a pooled two-proportion z-test. Returns the z score
// and the two-tailed p-value; degenerate pools return (0, 1).
func TwoProportionZ(successesA, trialsA, successesB, trialsB int) (float64, float64) {
	if trialsA <= 0 || trialsB <= 0 {
		return 0, 1
	}
	nA := float64(trialsA)
	nB := float64(trialsB)
	pA := float64(successesA) / nA
	pB := float64(successesB) / nB
	pooled := float64(successesA+successesB) / (nA + nB)
	se := math.Sqrt(pooled * (1 - pooled) * (1/nA + 1/nB))
	if se == 0 {
		return 0, 1
	}
	z := (pA - pB) / se
	return z, clamp01(2 * stdNormal.CDF(-math.Abs(z)))
}

// Autocorrelation returns the lag-k autocorrelation of series, 0 when the
// series is too short or has no variance.
func Autocorrelation(series []float64, lag int) float64 {
	n := len(series)
	if lag <= 0 || n <= lag+1 {
		return 0
	}
	mean := Mean(series)
	var num, denom float64
	for i := 0; i < n; i++ {
		d := series[i] - mean
		denom += d * d
	}
	if denom == 0 {
		return 0
	}
	for i := lag; i < n; i++ {
		num += (series[i] - mean) * (series[i-lag] - mean)
	}
	return num / denom
}

// TrendTest fits a least-squares line over series indexed 0..n-1 and returns
// the slope with the two-tailed p-value of slope != 0. Series shorter than
// three samples or with zero residual variance return p = 1.
func TrendTest(series []float64) (slope, pValue float64) {
	n := len(series)
	if n < 3 {
		return 0, 1
	}
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	meanX := Mean(xs)
	meanY := Mean(series)
	var sxx, sxy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		sxx += dx * dx
		sxy += dx * (series[i] - meanY)
	}
	if sxx == 0 {
		return 0, 1
	}
	slope = sxy / sxx
	intercept := meanY - slope*meanX

	var sse float64
	for i := 0; i < n; i++ {
		resid := series[i] - (intercept + slope*xs[i])
		sse += resid * resid
	}
	df := float64(n - 2)
	if sse == 0 {
		// Perfect fit: significant only when the line actually slopes.
		if slope != 0 {
			return slope, 0
		}
		return 0, 1
	}
	se := math.Sqrt(sse / df / sxx)
	t := slope / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return slope, clamp01(2 * dist.CDF(-math.Abs(t)))
}

// Volatility is the standard deviation of successive differences of series.
func Volatility(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	deltas := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		deltas = append(deltas, series[i]-series[i-1])
	}
	return StdDev(deltas)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
