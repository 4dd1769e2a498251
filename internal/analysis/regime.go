// Package analysis implements the Analysis stage's market-wide checks
// (spec.md §4.4.1-4.4.3): correlation/regime classification against a
// reference asset, flash-crash detection, and RSI-divergence detection. Each
// detector is a pure function over already-fetched OHLCV/indicator series —
// no I/O — grounded on the teacher's internal/risk/calculator.go statistical
// helpers (mean/variance/drawdown), generalised from single-asset trend
// classification to the pairwise beta/alpha/correlation spec.md asks for.
package analysis

import "math"

// Regime is the §4.4.1 output: 30-day beta/alpha vs a reference asset,
// Pearson correlation, and a coarse market-risk classification.
type Regime struct {
	Beta30d     float64
	Alpha30d    float64
	Correlation float64
	MarketRisk  string // "low" | "medium" | "high"
}

// DetectRegime computes beta/alpha/correlation of tickerReturns against
// referenceReturns (both daily simple returns, same length, most recent
// last) and classifies market risk from the reference asset's own recent
// drawdown and volatility.
func DetectRegime(tickerReturns, referenceReturns, referencePrices []float64) Regime {
	n := len(tickerReturns)
	if n == 0 || len(referenceReturns) != n {
		return Regime{MarketRisk: "medium"}
	}

	meanTicker := mean(tickerReturns)
	meanRef := mean(referenceReturns)

	var covariance, refVariance float64
	for i := 0; i < n; i++ {
		dt := tickerReturns[i] - meanTicker
		dr := referenceReturns[i] - meanRef
		covariance += dt * dr
		refVariance += dr * dr
	}
	covariance /= float64(n)
	refVariance /= float64(n)

	var beta float64
	if refVariance > 0 {
		beta = covariance / refVariance
	}
	alpha := meanTicker - beta*meanRef

	correlation := pearsonCorrelation(tickerReturns, referenceReturns)

	risk := classifyMarketRisk(referencePrices, referenceReturns)

	return Regime{
		Beta30d:     beta,
		Alpha30d:    alpha,
		Correlation: correlation,
		MarketRisk:  risk,
	}
}

func pearsonCorrelation(a, b []float64) float64 {
	n := len(a)
	if n == 0 || len(b) != n {
		return 0
	}
	meanA, meanB := mean(a), mean(b)
	var num, sumA2, sumB2 float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		num += da * db
		sumA2 += da * da
		sumB2 += db * db
	}
	denom := math.Sqrt(sumA2 * sumB2)
	if denom == 0 {
		return 0
	}
	return num / denom
}

// classifyMarketRisk grades the reference asset's own drawdown and
// volatility: a deep recent drawdown or elevated volatility implies
// elevated systemic risk for every correlated ticker.
func classifyMarketRisk(prices, returns []float64) string {
	_, maxDD, _ := Drawdown(prices)
	vol := stddev(returns)

	switch {
	case maxDD >= 0.15 || vol >= 0.05:
		return "high"
	case maxDD >= 0.07 || vol >= 0.025:
		return "medium"
	default:
		return "low"
	}
}

// Drawdown returns (currentDrawdown, maxDrawdown, peak) over an equity or
// price curve, the same formula as the teacher's CalculateDrawdown.
func Drawdown(curve []float64) (current, max, peak float64) {
	if len(curve) == 0 {
		return 0, 0, 0
	}
	peak = curve[0]
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > max {
				max = dd
			}
		}
	}
	last := curve[len(curve)-1]
	if last < peak && peak > 0 {
		current = (peak - last) / peak
	}
	return
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

func stddev(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	m := mean(x)
	var variance float64
	for _, v := range x {
		d := v - m
		variance += d * d
	}
	variance /= float64(len(x))
	return math.Sqrt(variance)
}
