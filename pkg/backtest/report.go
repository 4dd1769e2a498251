package backtest

import (
	"fmt"
	"time"
)

// GenerateReport renders a human-readable performance summary, the same
// overview/returns/risk/trades sections the teacher's engine prints to the
// operator console.
func GenerateReport(ticker string, m *Metrics) string {
	return fmt.Sprintf(`
================================================================================
BACKTEST REPORT: %s
================================================================================

OVERVIEW
--------
Period:           %s to %s (%.0f days)
Initial Capital:  %.2f
Final Equity:     %.2f
Peak Equity:      %.2f
Equity Low:       %.2f

RETURNS
-------
Total Return:     %.2f (%.2f%%)
Annualized Return: %.2f%%
CAGR:             %.2f%%

RISK METRICS
------------
Max Drawdown:     %.2f (%.2f%%)
Volatility:       %.2f%%
Sharpe Ratio:     %.2f
Sortino Ratio:    %.2f
Calmar Ratio:     %.2f
Max Consec Losses: %d

TRADE STATISTICS
----------------
Total Trades:     %d
Winning Trades:   %d
Losing Trades:    %d
Win Rate:         %.2f%%

Average Win:      %.2f
Average Loss:     %.2f
Win/Loss Ratio:   %.2f
Profit Factor:    %.2f
Expectancy:       %.2f per trade
Avg Holding:      %s

================================================================================
`,
		ticker,
		m.StartDate.Format("2006-01-02"),
		m.EndDate.Format("2006-01-02"),
		m.Duration.Hours()/24,
		m.InitialCapital, m.FinalEquity, m.PeakEquity, m.EquityLow,
		m.TotalReturn, m.TotalReturnPct, m.AnnualizedReturn, m.CAGR,
		m.MaxDrawdown, m.MaxDrawdownPct, m.Volatility, m.SharpeRatio, m.SortinoRatio, m.CalmarRatio, m.MaxConsecutiveLoss,
		m.TotalTrades, m.WinningTrades, m.LosingTrades, m.WinRate*100,
		m.AverageWin, m.AverageLoss, m.AvgWinLossRatio, m.ProfitFactor, m.Expectancy,
		formatHours(m.AverageHoldingHours),
	)
}

func formatHours(hours float64) string {
	d := time.Duration(hours * float64(time.Hour))
	days := int(d.Hours() / 24)
	rem := int(d.Hours()) % 24
	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, rem)
	}
	return fmt.Sprintf("%dh", rem)
}
