// Performance metrics calculation for backtest runs
package backtest

import (
	"fmt"
	"math"
	"time"
)

// Metrics holds the full performance bundle a single backtest run produces,
// including every field the two-gate filter thresholds (spec.md §4.4.4) and
// the scanner's weighted score read.
type Metrics struct {
	TotalReturn      float64
	TotalReturnPct   float64
	AnnualizedReturn float64
	CAGR             float64

	MaxDrawdown         float64
	MaxDrawdownPct      float64
	Volatility          float64
	SharpeRatio         float64
	SortinoRatio        float64
	CalmarRatio         float64
	MaxConsecutiveLoss  int

	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // fraction, 0..1
	AverageWin    float64
	AverageLoss   float64 // positive magnitude
	LargestWin    float64
	LargestLoss   float64
	ProfitFactor  float64
	Expectancy    float64
	AvgWinLossRatio float64

	AverageHoldingHours float64

	InitialCapital float64
	FinalEquity    float64
	PeakEquity     float64
	EquityLow      float64
	StartDate      time.Time
	EndDate        time.Time
	Duration       time.Duration
}

// riskFreeRatePct is the annualised risk-free rate subtracted in the
// Sharpe/Sortino numerator, matching the teacher's fixed 3% assumption.
const riskFreeRatePct = 3.0

// tradingDaysPerYear is the annualisation factor applied to per-bar return
// variance, the same 252 the teacher's calculateRiskMetrics uses.
const tradingDaysPerYear = 252

// CalculateMetrics computes the full performance bundle from a completed
// Engine run.
func CalculateMetrics(e *Engine) (*Metrics, error) {
	if len(e.EquityCurve) == 0 {
		return nil, fmt.Errorf("backtest: no equity curve data")
	}

	m := &Metrics{
		InitialCapital: e.cfg.InitialCapital,
		FinalEquity:    e.FinalEquity(),
		PeakEquity:     e.PeakEquity,
		TotalTrades:    len(e.ClosedPositions),
		MaxDrawdown:    e.MaxDrawdown,
		MaxDrawdownPct: e.MaxDrawdownPct,
		StartDate:      e.EquityCurve[0].Timestamp,
		EndDate:        e.EquityCurve[len(e.EquityCurve)-1].Timestamp,
	}
	m.Duration = m.EndDate.Sub(m.StartDate)

	m.TotalReturn = m.FinalEquity - m.InitialCapital
	if m.InitialCapital != 0 {
		m.TotalReturnPct = m.TotalReturn / m.InitialCapital * 100.0
	}

	if m.Duration > 0 {
		years := m.Duration.Hours() / 24.0 / 365.25
		if years > 0 && m.InitialCapital > 0 && m.FinalEquity > 0 {
			m.CAGR = (math.Pow(m.FinalEquity/m.InitialCapital, 1.0/years) - 1.0) * 100.0
			m.AnnualizedReturn = m.CAGR
		}
	}

	calculateTradeStatistics(m, e.ClosedPositions)
	calculateRiskMetrics(m, e.EquityCurve)

	if m.Volatility > 0 {
		m.SharpeRatio = (m.AnnualizedReturn - riskFreeRatePct) / m.Volatility
	}
	if m.MaxDrawdownPct > 0 {
		m.CalmarRatio = m.CAGR / m.MaxDrawdownPct
	}
	calculateSortinoRatio(m, e.EquityCurve)

	m.EquityLow = m.InitialCapital
	for _, point := range e.EquityCurve {
		if point.Equity < m.EquityLow {
			m.EquityLow = point.Equity
		}
	}

	return m, nil
}

func calculateTradeStatistics(m *Metrics, positions []ClosedPosition) {
	if len(positions) == 0 {
		return
	}

	var totalWin, totalLoss float64
	var totalHoldingHours float64
	var consecutiveLosses, maxConsecutiveLosses int

	for _, pos := range positions {
		totalHoldingHours += pos.HoldingTime.Hours()

		if pos.RealizedPL > 0 {
			m.WinningTrades++
			totalWin += pos.RealizedPL
			if pos.RealizedPL > m.LargestWin {
				m.LargestWin = pos.RealizedPL
			}
			consecutiveLosses = 0
		} else {
			m.LosingTrades++
			totalLoss += -pos.RealizedPL
			if -pos.RealizedPL > m.LargestLoss {
				m.LargestLoss = -pos.RealizedPL
			}
			consecutiveLosses++
			if consecutiveLosses > maxConsecutiveLosses {
				maxConsecutiveLosses = consecutiveLosses
			}
		}
	}
	m.MaxConsecutiveLoss = maxConsecutiveLosses

	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
		m.AverageHoldingHours = totalHoldingHours / float64(m.TotalTrades)
	}
	if m.WinningTrades > 0 {
		m.AverageWin = totalWin / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = totalLoss / float64(m.LosingTrades)
	}
	if totalLoss != 0 {
		m.ProfitFactor = totalWin / totalLoss
	}
	if m.AverageLoss > 0 {
		m.AvgWinLossRatio = m.AverageWin / m.AverageLoss
	}
	if m.TotalTrades > 0 {
		lossProb := float64(m.LosingTrades) / float64(m.TotalTrades)
		m.Expectancy = m.WinRate*m.AverageWin - lossProb*m.AverageLoss
	}
}

// calculateRiskMetrics computes per-bar return volatility, annualised the
// same way the teacher's engine does (stddev * sqrt(252) * 100).
func calculateRiskMetrics(m *Metrics, curve []EquityPoint) {
	returns := barReturns(curve)
	if len(returns) == 0 {
		return
	}
	_, stdDev := meanStdDev(returns)
	m.Volatility = stdDev * math.Sqrt(tradingDaysPerYear) * 100.0
}

// calculateSortinoRatio computes the downside-deviation-adjusted return.
func calculateSortinoRatio(m *Metrics, curve []EquityPoint) {
	returns := barReturns(curve)
	var negative []float64
	for _, r := range returns {
		if r < 0 {
			negative = append(negative, r)
		}
	}
	if len(negative) == 0 {
		return
	}
	var sumSq float64
	for _, r := range negative {
		sumSq += r * r
	}
	downsideDeviation := math.Sqrt(sumSq/float64(len(negative))) * math.Sqrt(tradingDaysPerYear) * 100.0
	if downsideDeviation > 0 {
		m.SortinoRatio = (m.AnnualizedReturn - riskFreeRatePct) / downsideDeviation
	}
}

func barReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	return returns
}

// meanStdDev returns the population mean and standard deviation of x.
func meanStdDev(x []float64) (mean, stddev float64) {
	if len(x) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	mean = sum / float64(len(x))

	var sumSq float64
	for _, v := range x {
		d := v - mean
		sumSq += d * d
	}
	stddev = math.Sqrt(sumSq / float64(len(x)))
	return mean, stddev
}
