package strategy

import (
	"math"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/indicators"
	"github.com/ajitpratap0/cryptobreakout/internal/metrics"
)

// EvaluateExit runs the five exit rules in priority order (spec.md §4.6.3)
// against an open position at bar i. Returns a sell Signal on the first
// rule that fires, or nil if the position should be held.
func (s *Strategy) EvaluateExit(series *indicators.Series, i int, pos domain.Position) (*domain.Signal, error) {
	if series == nil || i < 0 || i >= len(series.Close) {
		return nil, nil
	}
	close := series.Close[i]
	entry, _ := pos.EntryPrice.Float64()

	var stopLoss, takeProfit float64
	if pos.StopLoss != nil {
		stopLoss, _ = pos.StopLoss.Float64()
	}
	if pos.TakeProfit != nil {
		takeProfit, _ = pos.TakeProfit.Float64()
	}

	// Rule 1 — stop-loss.
	if pos.StopLoss != nil && close <= stopLoss {
		metrics.RecordStrategyOperation("exit_stop_loss", true)
		return exitSignal(close, domain.TriggerStopLoss, "close<=stop_loss"), nil
	}

	// Rule 2 — fakeout.
	if pos.HoldingCandles <= s.cfg.FakeoutBars && close < entry*(1-s.cfg.FakeoutDropPct) {
		metrics.RecordStrategyOperation("exit_fakeout", true)
		return exitSignal(close, domain.TriggerFakeout, "early_reversal"), nil
	}

	// Rule 3 — take-profit.
	if pos.TakeProfit != nil && close >= takeProfit {
		metrics.RecordStrategyOperation("exit_take_profit", true)
		return exitSignal(close, domain.TriggerTakeProfit, "close>=take_profit"), nil
	}

	// Rule 4 — trend weakening.
	if i >= 1 && !math.IsNaN(series.ADX[i]) && !math.IsNaN(series.ADX[i-1]) && series.ADX[i-1] > 0 {
		drop := (series.ADX[i-1] - series.ADX[i]) / series.ADX[i-1]
		if drop >= s.cfg.TrendWeakADXDropPct && series.ADX[i] < s.cfg.TrendWeakADXFloor {
			metrics.RecordStrategyOperation("exit_trend_weakening", true)
			return exitSignal(close, domain.TriggerTrendWeakness, "adx_drop_and_floor"), nil
		}
	}

	// Rule 5 — timeout.
	if entry != 0 {
		profit := (close - entry) / entry
		if pos.HoldingCandles > s.cfg.TimeoutBars && profit < s.cfg.TimeoutProfitFloor {
			metrics.RecordStrategyOperation("exit_timeout", true)
			return exitSignal(close, domain.TriggerTimeout, "held_too_long_flat"), nil
		}
	}

	return nil, nil
}

// IntrabarStopCheck evaluates whether bar i's low/high crosses the open
// position's stop-loss or take-profit within the bar, returning the fill
// price at the level crossed (spec.md §4.6.4, intrabar_stops model). Only
// meaningful when ExecutionModel == ExecutionIntrabarStops.
func (s *Strategy) IntrabarStopCheck(series *indicators.Series, i int, pos domain.Position) *domain.Signal {
	if pos.StopLoss != nil {
		stop, _ := pos.StopLoss.Float64()
		if series.Low[i] <= stop {
			metrics.RecordStrategyOperation("exit_intrabar_stop_loss", true)
			return exitSignal(stop, domain.TriggerStopLoss, "intrabar_low_crossed_stop")
		}
	}
	if pos.TakeProfit != nil {
		target, _ := pos.TakeProfit.Float64()
		if series.High[i] >= target {
			metrics.RecordStrategyOperation("exit_intrabar_take_profit", true)
			return exitSignal(target, domain.TriggerTakeProfit, "intrabar_high_crossed_target")
		}
	}
	return nil
}

func exitSignal(price float64, trigger domain.ExitTrigger, clause string) *domain.Signal {
	return &domain.Signal{
		Action: domain.SignalClose,
		Price:  decimalFromFloat(price),
		Reason: domain.SignalReason{
			Gate:   "exit",
			Clause: clause,
			Details: map[string]string{
				"trigger": string(trigger),
			},
		},
	}
}
