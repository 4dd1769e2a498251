package backtest

import (
	"fmt"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	btengine "github.com/ajitpratap0/cryptobreakout/pkg/backtest"
)

// Config bundles the two gate tiers and the round-trip cost assumption the
// expectancy filter checks the edge against.
type Config struct {
	Research Thresholds
	Trading  Thresholds
	// CostPct is the round-trip commission+slippage cost as a fraction of
	// price, the same rate pkg/backtest.Engine's strategy was configured
	// with for this run.
	CostPct float64
}

// DefaultConfig returns the spec.md §4.4.4 default two-tier thresholds.
func DefaultConfig(costPct float64) Config {
	return Config{
		Research: DefaultResearchThresholds(),
		Trading:  DefaultTradingThresholds(),
		CostPct:  costPct,
	}
}

// Evaluate runs the full §4.4.4 verdict for one ticker's completed backtest:
// both gate tiers, the expectancy filter (which can veto an otherwise
// trading-pass candidate), the weighted composite score, and the final
// grade.
func Evaluate(ticker string, m *btengine.Metrics, positions []btengine.ClosedPosition, cfg Config) domain.BacktestScore {
	researchResults, researchPass := GateResults(m, cfg.Research)
	tradingResults, tradingPass := GateResults(m, cfg.Trading)

	avgWinPct, avgLossPct := AverageReturnPcts(positions)
	expectancy := ExpectancyFilter(m.WinRate, avgWinPct, avgLossPct, cfg.CostPct)
	if !expectancy.Passes {
		tradingPass = false
	}

	score := Score(m, cfg.Trading)
	g := grade(score, tradingPass)

	reason := reasonFor(tradingPass, researchPass, expectancy, tradingResults)

	gates := mergeGateResults(tradingResults, researchResults)
	gates["expectancy"] = expectancy.Passes

	return domain.BacktestScore{
		Ticker:       ticker,
		Metrics:      metricsMap(m, expectancy),
		GateResults:  gates,
		Score:        score,
		Grade:        domain.Grade(g),
		Passed:       tradingPass,
		ResearchPass: researchPass,
		Reason:       reason,
	}
}

// mergeGateResults reports the trading-tier verdict for each named gate,
// prefixing the looser research-tier verdict under a "research_" key so a
// caller can see both without the map doubling in unrelated keys.
func mergeGateResults(trading, research map[string]bool) map[string]bool {
	out := make(map[string]bool, len(trading)+len(research))
	for k, v := range trading {
		out[k] = v
	}
	for k, v := range research {
		out["research_"+k] = v
	}
	return out
}

func metricsMap(m *btengine.Metrics, expectancy ExpectancyResult) map[string]float64 {
	return map[string]float64{
		"total_return_pct":       m.TotalReturnPct,
		"win_rate_pct":           m.WinRate * 100,
		"profit_factor":          m.ProfitFactor,
		"sharpe_ratio":           m.SharpeRatio,
		"sortino_ratio":          m.SortinoRatio,
		"calmar_ratio":           m.CalmarRatio,
		"max_drawdown_pct":       m.MaxDrawdownPct,
		"max_consecutive_losses": float64(m.MaxConsecutiveLoss),
		"volatility_pct":         m.Volatility,
		"total_trades":           float64(m.TotalTrades),
		"avg_win_loss_ratio":     m.AvgWinLossRatio,
		"avg_holding_hours":      m.AverageHoldingHours,
		"expectancy_r":           expectancy.R,
		"expectancy_cost_r":      expectancy.CostR,
		"expectancy_net":         expectancy.Net,
		"expectancy_r_min":       expectancy.RMin,
	}
}

func reasonFor(tradingPass, researchPass bool, expectancy ExpectancyResult, tradingResults map[string]bool) string {
	if tradingPass {
		return "cleared trading-pass thresholds and the expectancy filter"
	}
	if !expectancy.Passes {
		return fmt.Sprintf("expectancy filter failed: net=%.4f (R=%.2f, R_min=%.2f)", expectancy.Net, expectancy.R, expectancy.RMin)
	}
	for _, key := range gateKeys {
		if !tradingResults[key] {
			if researchPass {
				return fmt.Sprintf("failed trading-pass gate %q; research-pass only", key)
			}
			return fmt.Sprintf("failed trading-pass gate %q", key)
		}
	}
	return "failed trading-pass thresholds"
}
