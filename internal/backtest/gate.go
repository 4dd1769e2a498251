package backtest

import (
	"math"

	btengine "github.com/ajitpratap0/cryptobreakout/pkg/backtest"
)

// gateKeys lists every named gate in GateResults, in the table order spec.md
// §4.4.4 presents them, so callers can render a stable report.
var gateKeys = []string{
	"total_return_pct", "win_rate_pct", "profit_factor", "sharpe_ratio",
	"sortino_ratio", "calmar_ratio", "max_drawdown_pct", "max_consecutive_losses",
	"volatility_pct", "min_trades", "avg_win_loss_ratio", "avg_holding_hours",
}

// GateResults evaluates every threshold in th against m and returns the
// pass/fail of each named gate plus whether every gate passed.
func GateResults(m *btengine.Metrics, th Thresholds) (map[string]bool, bool) {
	results := map[string]bool{
		"total_return_pct":       m.TotalReturnPct >= th.TotalReturnPct,
		"win_rate_pct":           m.WinRate*100 >= th.WinRatePct,
		"profit_factor":          m.ProfitFactor >= th.ProfitFactor,
		"sharpe_ratio":           m.SharpeRatio >= th.SharpeRatio,
		"sortino_ratio":          m.SortinoRatio >= th.SortinoRatio,
		"calmar_ratio":           m.CalmarRatio >= th.CalmarRatio,
		"max_drawdown_pct":       m.MaxDrawdownPct <= th.MaxDrawdownPct,
		"max_consecutive_losses": m.MaxConsecutiveLoss <= th.MaxConsecutiveLoss,
		"volatility_pct":         m.Volatility <= th.VolatilityPct,
		"min_trades":             m.TotalTrades >= th.MinTrades,
		"avg_win_loss_ratio":     m.AvgWinLossRatio >= th.AvgWinLossRatio,
		"avg_holding_hours":      m.AverageHoldingHours <= th.AvgHoldingHoursMax,
	}

	allPass := true
	for _, key := range gateKeys {
		if !results[key] {
			allPass = false
			break
		}
	}
	return results, allPass
}

// ExpectancyResult is the §4.4.4 expectancy-filter verdict: given the
// win/loss profile and trading cost, is the strategy's edge large enough to
// survive round-trip costs with a safety margin?
type ExpectancyResult struct {
	R      float64 // avg_win / |avg_loss|
	CostR  float64 // cost_pct / max(avg_loss_pct, 0.002), expressed in R units
	Net    float64 // (p*R - (1-p)) - cost_R
	RMin   float64 // minimum R the win rate and cost can sustain, margin m=0.05
	Passes bool
}

// expectancyMargin is the safety margin m the R_min formula subtracts
// against, per spec.md §4.4.4.
const expectancyMargin = 0.05

// AverageReturnPcts averages ClosedPosition.ReturnPct across winners and
// losers separately, the per-trade percentage terms the expectancy formula
// needs (avg_win/avg_loss as fractions of entry price, not dollar P&L).
// avgLossPct is returned as a positive magnitude.
func AverageReturnPcts(positions []btengine.ClosedPosition) (avgWinPct, avgLossPct float64) {
	var winSum, lossSum float64
	var winN, lossN int
	for _, p := range positions {
		if p.ReturnPct >= 0 {
			winSum += p.ReturnPct
			winN++
		} else {
			lossSum += -p.ReturnPct
			lossN++
		}
	}
	if winN > 0 {
		avgWinPct = winSum / float64(winN)
	}
	if lossN > 0 {
		avgLossPct = lossSum / float64(lossN)
	}
	return avgWinPct, avgLossPct
}

// ExpectancyFilter computes spec.md §4.4.4's edge-over-cost check. winRate is
// a fraction (0..1); avgWinPct/avgLossPct/costPct are fractions of price
// (avgLossPct as a positive magnitude).
func ExpectancyFilter(winRate, avgWinPct, avgLossPct, costPct float64) ExpectancyResult {
	if avgLossPct < 0 {
		avgLossPct = -avgLossPct
	}
	floor := math.Max(avgLossPct, 0.002)

	var r float64
	if avgLossPct > 0 {
		r = avgWinPct / avgLossPct
	}
	costR := costPct / floor
	p := winRate
	net := (p*r - (1 - p)) - costR

	var rMin float64
	if p > 0 {
		rMin = ((1 - p) + costR + expectancyMargin) / p
	}

	return ExpectancyResult{R: r, CostR: costR, Net: net, RMin: rMin, Passes: net > 0}
}
