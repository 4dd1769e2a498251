// Package strategy implements the rule-based volatility-breakout strategy:
// four AND-joined entry gates, five priority-ordered exit rules, the two
// execution-timing models, slippage/commission, optional order splitting,
// and risk-based position sizing. It is a pure function of history and
// portfolio state — no I/O, no clock reads beyond what callers pass in — so
// the same Evaluate/EvaluateExit calls run identically live and inside the
// backtester.
package strategy

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionModel is the closed set of fill-timing models.
type ExecutionModel string

const (
	ExecutionNextOpen      ExecutionModel = "next_open"
	ExecutionIntrabarStops ExecutionModel = "intrabar_stops"
)

// SlippageModel is the closed set of fill-price models.
type SlippageModel string

const (
	SlippagePercentage  SlippageModel = "percentage"
	SlippageOrderbook   SlippageModel = "orderbook"
)

// Config is the full set of tunables the strategy's gates, exits, sizing,
// and execution model read. Every threshold is a config field, not a
// hard-coded branch, so the scanner's backtest sweep and live trading share
// one code path.
type Config struct {
	// Gate 0 — trend filter
	TrendFilterEnabled bool `yaml:"trend_filter_enabled" json:"trend_filter_enabled"`
	TrendMAPeriod      int  `yaml:"trend_ma_period" json:"trend_ma_period"` // default 50, floor 20

	// Gate 1 — squeeze
	SqueezeLookback      int     `yaml:"squeeze_lookback" json:"squeeze_lookback"` // default 10
	SqueezeStrongRatio    float64 `yaml:"squeeze_strong_ratio" json:"squeeze_strong_ratio"` // default 0.8
	ADXRangeBoundMax     float64 `yaml:"adx_range_bound_max" json:"adx_range_bound_max"`   // default 25

	// Gate 2 — breakout
	BreakoutUseDynamicK bool    `yaml:"breakout_use_dynamic_k" json:"breakout_use_dynamic_k"`
	BreakoutK           float64 `yaml:"breakout_k" json:"breakout_k"` // used when BreakoutUseDynamicK is false
	StrongBreakoutPct   float64 `yaml:"strong_breakout_pct" json:"strong_breakout_pct"` // default 0.01

	// Gate 3 — volume/OBV
	VolumeMultiplier float64 `yaml:"volume_multiplier" json:"volume_multiplier"` // default 1.5
	OBVSlopeLookback int     `yaml:"obv_slope_lookback" json:"obv_slope_lookback"` // default 5

	// Exit rules
	ATRStopMultiplier   float64 `yaml:"atr_stop_multiplier" json:"atr_stop_multiplier"`     // default 2
	ATRTargetMultiplier float64 `yaml:"atr_target_multiplier" json:"atr_target_multiplier"` // default 3
	FakeoutBars         int     `yaml:"fakeout_bars" json:"fakeout_bars"`                   // default 3
	FakeoutDropPct      float64 `yaml:"fakeout_drop_pct" json:"fakeout_drop_pct"`           // default 0.02 (entry*0.98)
	TrendWeakADXDropPct float64 `yaml:"trend_weak_adx_drop_pct" json:"trend_weak_adx_drop_pct"` // default 0.20
	TrendWeakADXFloor   float64 `yaml:"trend_weak_adx_floor" json:"trend_weak_adx_floor"`       // default 20
	TimeoutBars         int     `yaml:"timeout_bars" json:"timeout_bars"`                       // default 24
	TimeoutProfitFloor  float64 `yaml:"timeout_profit_floor" json:"timeout_profit_floor"`       // default 0.02

	// Execution
	ExecutionModel ExecutionModel `yaml:"execution_model" json:"execution_model"`
	Commission     float64        `yaml:"commission" json:"commission"` // fraction, symmetric both sides
	Slippage       SlippageConfig `yaml:"slippage" json:"slippage"`
	OrderSplit     OrderSplitConfig `yaml:"order_split" json:"order_split"`

	// Sizing (§4.6.6)
	Sizing SizingConfig `yaml:"sizing" json:"sizing"`
}

// SlippageConfig configures the fill-price model.
type SlippageConfig struct {
	Model          SlippageModel `yaml:"model" json:"model"`
	PercentageBps  float64       `yaml:"percentage_bps" json:"percentage_bps"` // fixed bps per side
	WarnThreshold  float64       `yaml:"warn_threshold" json:"warn_threshold"` // default 0.01 (1%)
}

// OrderSplitConfig configures optional chunked execution against an orderbook.
type OrderSplitConfig struct {
	Enabled       bool `yaml:"use_split_orders" json:"use_split_orders"`
	MinChunks     int  `yaml:"min_chunks" json:"min_chunks"` // clamp floor, default 2
	MaxChunks     int  `yaml:"max_chunks" json:"max_chunks"` // clamp ceiling, default 10
	TopNForSizing int  `yaml:"top_n_for_sizing" json:"top_n_for_sizing"` // default 5
}

// SizingConfig configures risk-based position sizing.
type SizingConfig struct {
	RiskPerTrade        float64 `yaml:"risk_per_trade" json:"risk_per_trade"`               // default 0.02
	PriceRiskFloorPct   float64 `yaml:"price_risk_floor_pct" json:"price_risk_floor_pct"`   // default 0.015
	PriceRiskCeilingPct float64 `yaml:"price_risk_ceiling_pct" json:"price_risk_ceiling_pct"` // default 0.05
	MinPositionPct      float64 `yaml:"min_position_pct" json:"min_position_pct"`
	MaxPositionPct      float64 `yaml:"max_position_pct" json:"max_position_pct"`
	FallbackPositionPct float64 `yaml:"fallback_position_pct" json:"fallback_position_pct"` // default 0.10
}

// DefaultConfig returns the strategy's named defaults (spec.md §4.6).
func DefaultConfig() Config {
	return Config{
		TrendFilterEnabled: true,
		TrendMAPeriod:      50,

		SqueezeLookback:   10,
		SqueezeStrongRatio: 0.8,
		ADXRangeBoundMax:  25,

		BreakoutUseDynamicK: true,
		BreakoutK:           0.5,
		StrongBreakoutPct:   0.01,

		VolumeMultiplier: 1.5,
		OBVSlopeLookback: 5,

		ATRStopMultiplier:   2,
		ATRTargetMultiplier: 3,
		FakeoutBars:         3,
		FakeoutDropPct:      0.02,
		TrendWeakADXDropPct: 0.20,
		TrendWeakADXFloor:   20,
		TimeoutBars:         24,
		TimeoutProfitFloor:  0.02,

		ExecutionModel: ExecutionNextOpen,
		Commission:     0.0005,
		Slippage: SlippageConfig{
			Model:         SlippagePercentage,
			PercentageBps: 5,
			WarnThreshold: 0.01,
		},
		OrderSplit: OrderSplitConfig{
			Enabled:       false,
			MinChunks:     2,
			MaxChunks:     10,
			TopNForSizing: 5,
		},

		Sizing: SizingConfig{
			RiskPerTrade:        0.02,
			PriceRiskFloorPct:   0.015,
			PriceRiskCeilingPct: 0.05,
			MinPositionPct:      0.02,
			MaxPositionPct:      0.20,
			FallbackPositionPct: 0.10,
		},
	}
}

// barInterval is the nominal candle period the strategy was configured for,
// used only to translate holding-candle counts into wall-clock durations for
// reporting; the gates and exits themselves always count bars, never time.
const barInterval = time.Hour * 24
