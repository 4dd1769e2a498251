package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectRegime_PerfectlyCorrelatedGivesBetaOne(t *testing.T) {
	ref := []float64{0.01, -0.02, 0.015, 0.005, -0.01}
	ticker := make([]float64, len(ref))
	copy(ticker, ref)

	refPrices := []float64{100, 98, 99.5, 100, 99}

	r := DetectRegime(ticker, ref, refPrices)
	assert.InDelta(t, 1.0, r.Beta30d, 0.01)
	assert.InDelta(t, 1.0, r.Correlation, 0.01)
}

func TestDetectRegime_HighRiskOnDeepDrawdown(t *testing.T) {
	refPrices := []float64{100, 90, 80, 70, 85}
	ref := []float64{-0.1, -0.11, -0.125, 0.2}
	ticker := []float64{-0.1, -0.1, -0.1, 0.2}

	r := DetectRegime(ticker, ref, refPrices)
	assert.Equal(t, "high", r.MarketRisk)
}

func TestDrawdown_TracksPeakToTrough(t *testing.T) {
	curve := []float64{100, 120, 90, 110}
	current, max, peak := Drawdown(curve)
	assert.InDelta(t, 120.0, peak, 0.001)
	assert.InDelta(t, (120.0-90.0)/120.0, max, 0.001)
	assert.InDelta(t, (120.0-110.0)/120.0, current, 0.001)
}
