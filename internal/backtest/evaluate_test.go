package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	btengine "github.com/ajitpratap0/cryptobreakout/pkg/backtest"
)

func winningPositions() []btengine.ClosedPosition {
	return []btengine.ClosedPosition{
		{ReturnPct: 0.04}, {ReturnPct: 0.05}, {ReturnPct: 0.03},
		{ReturnPct: -0.02}, {ReturnPct: -0.01},
	}
}

func TestEvaluate_StrongMetricsGradeStrongPass(t *testing.T) {
	m := strongMetrics()
	cfg := DefaultConfig(0.001)

	result := Evaluate("BTC-USDT", m, winningPositions(), cfg)

	assert.Equal(t, "BTC-USDT", result.Ticker)
	assert.True(t, result.Passed)
	assert.True(t, result.ResearchPass)
	assert.Equal(t, domain.GradeStrongPass, result.Grade)
	assert.Greater(t, result.Score, gradeThreshold)
	assert.True(t, result.GateResults["expectancy"])
}

func TestEvaluate_ExpectancyFailureVetoesAnOtherwiseTradingPassCandidate(t *testing.T) {
	m := strongMetrics()
	// every named gate clears, but round-trip cost is set far beyond what
	// the average loss size can absorb.
	cfg := Config{Research: DefaultResearchThresholds(), Trading: DefaultTradingThresholds(), CostPct: 5.0}

	result := Evaluate("BTC-USDT", m, winningPositions(), cfg)

	assert.False(t, result.Passed)
	assert.False(t, result.GateResults["expectancy"])
	assert.Equal(t, domain.GradeFail, result.Grade)
	assert.Contains(t, result.Reason, "expectancy")
}

func TestEvaluate_ResearchOnlyCandidateIsNotTradeable(t *testing.T) {
	m := strongMetrics()
	m.TotalReturnPct = 10 // clears research's 8, not trading's 12
	cfg := DefaultConfig(0.001)

	result := Evaluate("ETH-USDT", m, winningPositions(), cfg)

	require.False(t, result.Passed)
	assert.True(t, result.ResearchPass)
	assert.Equal(t, domain.GradeFail, result.Grade)
	assert.Contains(t, result.Reason, "research-pass only")
}

func TestEvaluate_FailsBothTiersOnThinSample(t *testing.T) {
	m := strongMetrics()
	m.TotalTrades = 3
	cfg := DefaultConfig(0.001)

	result := Evaluate("DOGE-USDT", m, winningPositions(), cfg)

	assert.False(t, result.Passed)
	assert.False(t, result.ResearchPass)
	assert.Equal(t, domain.GradeFail, result.Grade)
}
