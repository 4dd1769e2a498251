// Package backtest runs the quick backtest filter and scoring pass the
// scanner and the Analysis stage use to grade a ticker's candidacy (§4.4.4):
// a two-tier (research/trading) threshold gate over the pkg/backtest.Metrics
// bundle, an expectancy filter, and a weighted 0-100 composite score.
package backtest

// Thresholds is one tier of the two-tier backtest gate (§4.4.4). All fields
// are minimums unless their comment says "max".
type Thresholds struct {
	TotalReturnPct      float64
	WinRatePct          float64
	ProfitFactor        float64
	SharpeRatio         float64
	SortinoRatio        float64
	CalmarRatio         float64
	MaxDrawdownPct      float64 // max
	MaxConsecutiveLoss  int     // max
	VolatilityPct       float64 // max
	MinTrades           int
	AvgWinLossRatio     float64
	AvgHoldingHoursMax  float64 // max
}

// DefaultResearchThresholds is the loose tier: candidates clearing this are
// worth surfacing to the AI reviewer but not worth buying.
func DefaultResearchThresholds() Thresholds {
	return Thresholds{
		TotalReturnPct:     8,
		WinRatePct:         30,
		ProfitFactor:       1.3,
		SharpeRatio:        0.4,
		SortinoRatio:       0.5,
		CalmarRatio:        0.25,
		MaxDrawdownPct:     30,
		MaxConsecutiveLoss: 8,
		VolatilityPct:      100,
		MinTrades:          20,
		AvgWinLossRatio:    1.0,
		AvgHoldingHoursMax: 336,
	}
}

// DefaultTradingThresholds is the strict tier: a candidate must clear this
// before real capital is ever risked on it.
func DefaultTradingThresholds() Thresholds {
	return Thresholds{
		TotalReturnPct:     12,
		WinRatePct:         35,
		ProfitFactor:       1.5,
		SharpeRatio:        0.7,
		SortinoRatio:       0.9,
		CalmarRatio:        0.5,
		MaxDrawdownPct:     25,
		MaxConsecutiveLoss: 6,
		VolatilityPct:      75,
		MinTrades:          25,
		AvgWinLossRatio:    1.2,
		AvgHoldingHoursMax: 240,
	}
}
