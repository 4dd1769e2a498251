// Package risk implements the hybrid risk/mode arbiter of spec.md §4.2: the
// portfolio snapshot, the daily/weekly circuit breakers that can block
// trading outright, the ENTRY/MANAGEMENT/BLOCKED mode decision, and the
// 8-step position evaluator MANAGEMENT mode runs against every held
// position. internal/risk/circuit_breaker.go is the teacher's unmodified
// exchange/LLM/database reliability breaker, reused as-is by internal/db and
// the exchange/AI ports; this package additionally defines the portfolio-
// level pnl breakers spec.md §4.2 asks the mode arbiter to gate on.
package risk

import "github.com/shopspring/decimal"

// Config holds the mode arbiter's tunables (spec.md §4.2).
type Config struct {
	StopLossPct           float64 // negative, e.g. -0.05
	TakeProfitPct         float64 // positive, e.g. 0.10
	DailyLossLimitPct     float64 // negative
	WeeklyLossLimitPct    float64 // negative
	MinTradeIntervalHours float64
	MaxPositions          int
	MinPositionValue      decimal.Decimal
	ReserveRatio          float64 // fraction of total capital never deployed
	MaxAllocationPerCoin  float64 // fraction of total capital per position

	// Position evaluator thresholds
	FakeoutBars           int
	FakeoutDropPct        float64
	TimeoutHours          float64
	TimeoutProfitFloor    float64
	ADXMinHoldingHours    float64
	ADXFloor              float64
	ADXDropPct            float64
	TrailingActivatePct   float64 // profit_rate threshold to start trailing
	TrailingStopDistance  float64 // e.g. 0.03 = 3% below current price
	PartialExitThreshold  float64 // e.g. 0.10 = 10%, escalates to AI reviewer
}

// DefaultConfig returns spec.md's named defaults for the mode arbiter.
func DefaultConfig() Config {
	return Config{
		StopLossPct:           -0.05,
		TakeProfitPct:         0.10,
		DailyLossLimitPct:     -0.05,
		WeeklyLossLimitPct:    -0.15,
		MinTradeIntervalHours: 1,
		MaxPositions:          3,
		MinPositionValue:      decimal.NewFromInt(10),
		ReserveRatio:          0.1,
		MaxAllocationPerCoin:  0.4,

		FakeoutBars:          3,
		FakeoutDropPct:       0.02,
		TimeoutHours:         24,
		TimeoutProfitFloor:   0.02,
		ADXMinHoldingHours:   6,
		ADXFloor:             20,
		ADXDropPct:           0.20,
		TrailingActivatePct:  0.05,
		TrailingStopDistance: 0.03,
		PartialExitThreshold: 0.10,
	}
}
