package backtest

import (
	"github.com/rs/zerolog/log"

	btengine "github.com/ajitpratap0/cryptobreakout/pkg/backtest"
)

// scoreWeights assigns each metric's share of the 0-100 composite score,
// Sharpe weighted heaviest since it best captures risk-adjusted return.
// Grounded on the teacher's internal/orchestrator/consensus.go bid-scoring
// idiom (normalize each component to a 0..1 unit, weight-sum, log each
// component alongside the total).
var scoreWeights = map[string]float64{
	"sharpe_ratio":   0.30,
	"profit_factor":  0.20,
	"total_return":   0.15,
	"win_rate":       0.15,
	"sortino_ratio":  0.10,
	"max_drawdown":   0.10,
}

// unitAgainstThreshold clamps value/threshold into [0, 1.5] then rescales to
// [0, 1], so a candidate exactly at the trading-pass bar scores ~0.67 and one
// at 1.5x the bar or beyond scores the full 1.0.
func unitAgainstThreshold(value, threshold float64) float64 {
	if threshold <= 0 {
		return 0
	}
	ratio := value / threshold
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1.5 {
		ratio = 1.5
	}
	return ratio / 1.5
}

// unitInverseAgainstThreshold is the "lower is better" mirror of
// unitAgainstThreshold, for max-style gates like drawdown: 0 at the
// threshold, 1.0 at zero.
func unitInverseAgainstThreshold(value, threshold float64) float64 {
	if threshold <= 0 {
		return 0
	}
	unit := 1 - value/threshold
	if unit < 0 {
		unit = 0
	}
	if unit > 1 {
		unit = 1
	}
	return unit
}

// Score computes the 0-100 weighted composite score the scanner ranks
// candidates by, using the trading-pass tier as the scoring frame of
// reference (a candidate merely clearing research-pass doesn't rate "full
// marks" on any component).
func Score(m *btengine.Metrics, trading Thresholds) float64 {
	components := map[string]float64{
		"sharpe_ratio":  unitAgainstThreshold(m.SharpeRatio, trading.SharpeRatio),
		"profit_factor": unitAgainstThreshold(m.ProfitFactor, trading.ProfitFactor),
		"total_return":  unitAgainstThreshold(m.TotalReturnPct, trading.TotalReturnPct),
		"win_rate":      unitAgainstThreshold(m.WinRate*100, trading.WinRatePct),
		"sortino_ratio": unitAgainstThreshold(m.SortinoRatio, trading.SortinoRatio),
		"max_drawdown":  unitInverseAgainstThreshold(m.MaxDrawdownPct, trading.MaxDrawdownPct),
	}

	var total float64
	for key, weight := range scoreWeights {
		total += components[key] * weight
	}
	score := total * 100

	log.Debug().
		Float64("sharpe_component", components["sharpe_ratio"]).
		Float64("profit_factor_component", components["profit_factor"]).
		Float64("total_return_component", components["total_return"]).
		Float64("win_rate_component", components["win_rate"]).
		Float64("sortino_component", components["sortino_ratio"]).
		Float64("drawdown_component", components["max_drawdown"]).
		Float64("score", score).
		Msg("backtest: composite score")

	return score
}

// gradeThreshold is the composite score at or above which a passing candidate is
// graded STRONG PASS rather than WEAK PASS.
const gradeThreshold = 70.0

// grade derives the STRONG PASS / WEAK PASS / FAIL verdict from the
// composite score and the trading-pass gate. Clearing only research-pass
// still grades FAIL here — domain.BacktestScore.ResearchPass carries the
// "researchable only, not tradeable" distinction spec.md §4.4.4 wants
// separately from the buy/no-buy grade.
func grade(score float64, tradingPass bool) string {
	switch {
	case tradingPass && score >= gradeThreshold:
		return "STRONG PASS"
	case tradingPass:
		return "WEAK PASS"
	default:
		return "FAIL"
	}
}
