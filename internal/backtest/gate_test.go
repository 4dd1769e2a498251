package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	btengine "github.com/ajitpratap0/cryptobreakout/pkg/backtest"
)

func strongMetrics() *btengine.Metrics {
	return &btengine.Metrics{
		TotalReturnPct:      20,
		WinRate:             0.5,
		ProfitFactor:        2.0,
		SharpeRatio:         1.2,
		SortinoRatio:        1.5,
		CalmarRatio:         0.8,
		MaxDrawdownPct:      10,
		MaxConsecutiveLoss:  3,
		Volatility:          40,
		TotalTrades:         40,
		AvgWinLossRatio:     1.8,
		AverageHoldingHours: 48,
	}
}

func TestGateResults_AllPassOnStrongMetrics(t *testing.T) {
	results, allPass := GateResults(strongMetrics(), DefaultTradingThresholds())
	assert.True(t, allPass)
	for _, key := range gateKeys {
		assert.True(t, results[key], "expected gate %q to pass", key)
	}
}

func TestGateResults_FailsOnThinSampleSize(t *testing.T) {
	m := strongMetrics()
	m.TotalTrades = 5 // below both tiers' min_trades

	_, tradingPass := GateResults(m, DefaultTradingThresholds())
	_, researchPass := GateResults(m, DefaultResearchThresholds())
	assert.False(t, tradingPass)
	assert.False(t, researchPass)
}

func TestGateResults_ResearchPassesWhereTradingFails(t *testing.T) {
	m := strongMetrics()
	m.TotalReturnPct = 10 // clears research (8) but not trading (12)

	results, tradingPass := GateResults(m, DefaultTradingThresholds())
	_, researchPass := GateResults(m, DefaultResearchThresholds())
	assert.False(t, tradingPass)
	assert.False(t, results["total_return_pct"])
	assert.True(t, researchPass)
}

func TestGateResults_MaxDrawdownIsACeilingNotAFloor(t *testing.T) {
	m := strongMetrics()
	m.MaxDrawdownPct = 25 // exactly at the trading-tier ceiling

	results, _ := GateResults(m, DefaultTradingThresholds())
	assert.True(t, results["max_drawdown_pct"])

	m.MaxDrawdownPct = 25.01
	results, _ = GateResults(m, DefaultTradingThresholds())
	assert.False(t, results["max_drawdown_pct"])
}

func TestExpectancyFilter_PositiveEdgeClearsCost(t *testing.T) {
	// win 50% of the time at 2:1 reward:risk, cost small relative to loss size.
	r := ExpectancyFilter(0.5, 0.04, 0.02, 0.001)
	assert.InDelta(t, 2.0, r.R, 0.0001)
	assert.True(t, r.Passes)
	assert.Greater(t, r.Net, 0.0)
}

func TestExpectancyFilter_HighCostRelativeToLossSizeFailsEdge(t *testing.T) {
	// same win rate and R, but round-trip cost now swamps the average loss.
	r := ExpectancyFilter(0.5, 0.04, 0.02, 0.03)
	assert.False(t, r.Passes)
	assert.Less(t, r.Net, 0.0)
}

func TestExpectancyFilter_FloorsAvgLossAtTwentyBps(t *testing.T) {
	// avg_loss_pct below the 0.002 floor must not blow up cost_R.
	r := ExpectancyFilter(0.6, 0.01, 0.0001, 0.001)
	assert.InDelta(t, 0.5, r.CostR, 0.0001) // 0.001 / 0.002
}

func TestAverageReturnPcts_SplitsWinnersAndLosers(t *testing.T) {
	positions := []btengine.ClosedPosition{
		{ReturnPct: 0.05},
		{ReturnPct: 0.03},
		{ReturnPct: -0.02},
		{ReturnPct: -0.04},
	}
	avgWin, avgLoss := AverageReturnPcts(positions)
	assert.InDelta(t, 0.04, avgWin, 0.0001)
	assert.InDelta(t, 0.03, avgLoss, 0.0001)
}
