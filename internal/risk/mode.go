package risk

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
)

// EvaluationAction is the closed set of outcomes the position evaluator
// returns for one held position (spec.md §4.2 "Position Evaluator").
//
// ActionPartialExit is part of that named set but is never produced by
// Evaluate: spec.md §4.2 draws the line at "All rule-based decisions are
// free of external AI calls," and a partial exit only ever follows from
// the AI reviewer confirming rule 7's escalation — there is no rule-only
// trigger for it. Evaluate instead returns ActionAdjustStop with
// EscalateToAI set once profit_rate crosses PartialExitThreshold; a
// caller wired to an AI reviewer is the one place a PARTIAL_EXIT verdict
// could originate, and this tree doesn't wire that caller (see DESIGN.md).
type EvaluationAction string

const (
	ActionHold        EvaluationAction = "hold"
	ActionExit        EvaluationAction = "exit"
	ActionPartialExit EvaluationAction = "partial_exit"
	ActionAdjustStop  EvaluationAction = "adjust_stop"
)

// Evaluation is the position evaluator's per-position verdict.
type Evaluation struct {
	Action    EvaluationAction
	Trigger   domain.ExitTrigger
	NewStop   *decimal.Decimal
	EscalateToAI bool
}

// PositionContext bundles the per-position state the evaluator needs beyond
// domain.Position itself.
type PositionContext struct {
	HoldingHours float64
	ADXCurrent   float64
	ADXPrior     float64
}

// Evaluator runs the 8-step priority checks of spec.md §4.2.
type Evaluator struct {
	cfg Config
}

// NewEvaluator builds an Evaluator bound to cfg.
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate returns the first applicable rule's verdict, or Hold if none fire.
func (e *Evaluator) Evaluate(pos domain.Position, pc PositionContext) Evaluation {
	entry, _ := pos.EntryPrice.Float64()
	current, _ := pos.CurrentPrice.Float64()
	if entry == 0 {
		return Evaluation{Action: ActionHold}
	}
	profitRate := (current - entry) / entry

	// 1. Stop-loss.
	if current <= entry*(1+e.cfg.StopLossPct) {
		return Evaluation{Action: ActionExit, Trigger: domain.TriggerStopLoss}
	}

	// 2. Take-profit.
	if current >= entry*(1+e.cfg.TakeProfitPct) {
		return Evaluation{Action: ActionExit, Trigger: domain.TriggerTakeProfit}
	}

	// 3. Trailing-stop hit.
	if pos.StopLoss != nil {
		stop, _ := pos.StopLoss.Float64()
		if current <= stop {
			return Evaluation{Action: ActionExit, Trigger: domain.TriggerTrailingStop}
		}
	}

	// 4. Fakeout.
	if pos.HoldingCandles <= e.cfg.FakeoutBars && current < entry*(1-e.cfg.FakeoutDropPct) {
		return Evaluation{Action: ActionExit, Trigger: domain.TriggerFakeout}
	}

	// 5. Timeout.
	if pc.HoldingHours >= e.cfg.TimeoutHours && profitRate < e.cfg.TimeoutProfitFloor {
		return Evaluation{Action: ActionExit, Trigger: domain.TriggerTimeout}
	}

	// 6. ADX weakening.
	if pc.HoldingHours >= e.cfg.ADXMinHoldingHours && pc.ADXCurrent < e.cfg.ADXFloor && pc.ADXPrior > 0 {
		drop := (pc.ADXPrior - pc.ADXCurrent) / pc.ADXPrior
		if drop >= e.cfg.ADXDropPct {
			return Evaluation{Action: ActionExit, Trigger: domain.TriggerADXWeak}
		}
	}

	// 7. Trailing adjust.
	if profitRate >= e.cfg.TrailingActivatePct {
		candidate := current * (1 - e.cfg.TrailingStopDistance)
		if pos.StopLoss == nil || candidate > mustFloat(pos.StopLoss) {
			newStop := decimal.NewFromFloat(candidate)
			escalate := profitRate >= e.cfg.PartialExitThreshold
			return Evaluation{Action: ActionAdjustStop, NewStop: &newStop, EscalateToAI: escalate}
		}
	}

	// 8. Hold.
	return Evaluation{Action: ActionHold}
}

func mustFloat(d *decimal.Decimal) float64 {
	if d == nil {
		return math.Inf(-1)
	}
	f, _ := d.Float64()
	return f
}

// ArbiterDecision is the HybridRiskCheck stage's outcome for one tick.
type ArbiterDecision struct {
	Mode           domain.TradingMode
	Status         domain.PortfolioStatus
	BlockedReason  string
}

// Arbiter decides the tick's trading mode from a PortfolioStatus that's
// already been snapshotted — it never talks to the exchange itself,
// keeping the mode decision a pure function of the snapshot (spec.md §4.2
// step 5, restated here as the stage-facing entry point).
type Arbiter struct {
	cfg Config
}

// NewArbiter builds an Arbiter bound to cfg.
func NewArbiter(cfg Config) *Arbiter {
	return &Arbiter{cfg: cfg}
}

// Decide inspects a status already carrying its TradingMode (set by
// PortfolioManager.Snapshot) and surfaces a stage-facing decision,
// including a human-readable reason when BLOCKED.
func (a *Arbiter) Decide(status domain.PortfolioStatus, dailyPnLPct, weeklyPnLPct float64) ArbiterDecision {
	decision := ArbiterDecision{Mode: status.TradingMode, Status: status}
	if status.TradingMode == domain.ModeBlocked {
		switch {
		case dailyPnLPct <= a.cfg.DailyLossLimitPct:
			decision.BlockedReason = "daily_loss_limit_breached"
		case weeklyPnLPct <= a.cfg.WeeklyLossLimitPct:
			decision.BlockedReason = "weekly_loss_limit_breached"
		default:
			decision.BlockedReason = "blocked"
		}
	}
	return decision
}
