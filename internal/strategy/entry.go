package strategy

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/indicators"
	"github.com/ajitpratap0/cryptobreakout/internal/metrics"
)

// Strategy evaluates entry gates and exit rules against a precomputed
// indicator series. It holds no mutable state of its own — every method
// takes the series and bar index it operates on.
type Strategy struct {
	cfg Config
	log zerolog.Logger
}

// New builds a Strategy bound to cfg.
func New(cfg Config, log zerolog.Logger) *Strategy {
	return &Strategy{cfg: cfg, log: log.With().Str("component", "strategy").Logger()}
}

// Config returns the strategy's bound configuration.
func (s *Strategy) Config() Config { return s.cfg }

// Evaluate runs the four entry gates at bar i and returns a buy Signal if
// every gate passes. Only meaningful when the caller holds no position on
// this ticker, per spec.md §4.6.2.
func (s *Strategy) Evaluate(series *indicators.Series, i int) (*domain.Signal, error) {
	if series == nil || i < 0 || i >= len(series.Close) {
		return nil, fmt.Errorf("strategy: bar index %d out of range", i)
	}
	if i < 1 {
		return nil, nil // no previous bar to compare against
	}

	details := map[string]string{}

	g0, clause0 := s.gateTrend(series, i)
	if !g0 {
		metrics.RecordStrategyOperation("entry_gate0_trend", false)
		return nil, nil
	}
	details["gate0"] = clause0

	g1, clause1 := s.gateSqueeze(series, i)
	if !g1 {
		metrics.RecordStrategyOperation("entry_gate1_squeeze", false)
		return nil, nil
	}
	details["gate1"] = clause1

	g2, clause2, strong := s.gateBreakout(series, i)
	if !g2 {
		metrics.RecordStrategyOperation("entry_gate2_breakout", false)
		return nil, nil
	}
	details["gate2"] = clause2
	if strong {
		details["breakout_strength"] = "strong"
	} else {
		details["breakout_strength"] = "weak"
	}

	g3, clause3 := s.gateVolume(series, i)
	if !g3 {
		metrics.RecordStrategyOperation("entry_gate3_volume", false)
		return nil, nil
	}
	details["gate3"] = clause3

	metrics.RecordStrategyOperation("entry_all_gates", true)

	close := series.Close[i]
	atrVal := series.ATR[i]
	price := decimal.NewFromFloat(close)
	stop := decimal.NewFromFloat(close - s.cfg.ATRStopMultiplier*atrVal)
	target := decimal.NewFromFloat(close + s.cfg.ATRTargetMultiplier*atrVal)

	return &domain.Signal{
		Action:     domain.SignalBuy,
		Price:      price,
		StopLoss:   &stop,
		TakeProfit: &target,
		Reason: domain.SignalReason{
			Gate:    "entry",
			Clause:  "all_four_gates",
			Details: details,
		},
	}, nil
}

// gateTrend is Gate 0 — close > trend_ma, or always-pass when disabled.
func (s *Strategy) gateTrend(series *indicators.Series, i int) (bool, string) {
	if !s.cfg.TrendFilterEnabled {
		return true, "disabled"
	}
	trend := series.TrendMA[i]
	if math.IsNaN(trend) {
		return false, "insufficient_history"
	}
	if series.Close[i] > trend {
		return true, "close_above_trend_ma"
	}
	return false, "close_below_trend_ma"
}

// gateSqueeze is Gate 1 — at least one of three squeeze proxies.
func (s *Strategy) gateSqueeze(series *indicators.Series, i int) (bool, string) {
	lookback := s.cfg.SqueezeLookback
	if i+1 >= lookback {
		minWidth := math.Inf(1)
		for j := i - lookback + 1; j <= i; j++ {
			if series.BBWidth[j] < minWidth {
				minWidth = series.BBWidth[j]
			}
		}
		if !math.IsNaN(minWidth) && !math.IsNaN(series.BBWidthMean20[i]) &&
			minWidth < s.cfg.SqueezeStrongRatio*series.BBWidthMean20[i] {
			return true, "strong_squeeze_10bar_min"
		}
	}

	if !math.IsNaN(series.BBWidthMean20[i]) {
		if series.BBWidth[i-1] < series.BBWidthMean20[i] {
			return true, "squeeze_prior_bar"
		}
		if i >= 2 && series.BBWidth[i-2] < series.BBWidthMean20[i] {
			return true, "squeeze_two_bars_ago"
		}
	}

	if !math.IsNaN(series.ADX[i-1]) && series.ADX[i-1] < s.cfg.ADXRangeBoundMax {
		return true, "adx_range_bound"
	}

	return false, "no_squeeze"
}

// gateBreakout is Gate 2 — Donchian break or Larry-Williams style breakout.
// Returns whether the gate passed, the clause, and whether the break is
// "strong" (> 1% above the broken level).
func (s *Strategy) gateBreakout(series *indicators.Series, i int) (bool, string, bool) {
	close := series.Close[i]

	if !math.IsNaN(series.DonchianHigh[i]) && close > series.DonchianHigh[i] {
		strong := close > series.DonchianHigh[i]*(1+s.cfg.StrongBreakoutPct)
		return true, "donchian_break", strong
	}

	prevClose := series.Close[i-1]
	prevRange := series.High[i-1] - series.Low[i-1]
	k := s.cfg.BreakoutK
	if s.cfg.BreakoutUseDynamicK && !math.IsNaN(series.DynamicK[i-1]) {
		k = series.DynamicK[i-1]
	}
	threshold := prevClose + prevRange*k
	if close > threshold {
		strong := close > threshold*(1+s.cfg.StrongBreakoutPct)
		return true, "larry_williams_breakout", strong
	}

	return false, "no_breakout", false
}

// gateVolume is Gate 3 — volume surge or OBV confirmation, with an explicit
// negative-divergence veto.
func (s *Strategy) gateVolume(series *indicators.Series, i int) (bool, string) {
	lookback := s.cfg.OBVSlopeLookback
	if i >= lookback {
		priceUp := series.Close[i] > series.Close[i-lookback]
		obvDown := series.OBV[i] < series.OBV[i-lookback]
		if priceUp && obvDown {
			return false, "negative_divergence"
		}
	}

	if !math.IsNaN(series.VolumeMean20[i]) && series.Volume[i] > s.cfg.VolumeMultiplier*series.VolumeMean20[i] {
		return true, "volume_surge"
	}

	if !math.IsNaN(series.OBVMA20[i]) && series.OBV[i] > series.OBVMA20[i] {
		if !math.IsNaN(series.OBVMA5[i]) && series.OBVMA5[i] > series.OBVMA20[i] {
			return true, "obv_golden_cross"
		}
		if i >= lookback && series.OBV[i]-series.OBV[i-lookback] > 0 {
			return true, "obv_accumulation"
		}
	}

	return false, "no_volume_confirmation"
}
