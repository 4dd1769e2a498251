package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/cryptobreakout/internal/audit"
	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/indicators"
	"github.com/ajitpratap0/cryptobreakout/internal/metrics"
	"github.com/ajitpratap0/cryptobreakout/internal/risk"
)

// Scanner is the subset of the multi-coin scanner the HybridRiskCheck stage
// needs for its ENTRY-mode candidate search. internal/scanner.Scanner
// satisfies it; tests and the single-ticker orchestrator variant can supply
// a stub.
type Scanner interface {
	Scan(ctx context.Context, excludeTickers []string) (domain.ScanResult, error)
}

// positionEvaluatorLookback is how many recent bars the HybridRiskCheck
// stage fetches per held position to compute the ADX the position
// evaluator's rule 6 needs. This is a small, position-scoped fetch distinct
// from DataCollection's broader chosen-ticker payload (§4.3 runs after this
// stage and for a possibly different ticker), grounded in the same
// indicators.Service.Compute call DataCollection uses.
const positionEvaluatorLookback = 60

// HybridRiskCheck is spec.md §4.2: portfolio snapshot, circuit breakers,
// mode selection, and the position-management fast path.
type HybridRiskCheck struct {
	BaseStage

	cfg           risk.Config
	quoteCurrency string
	portfolioMgr  *risk.PortfolioManager
	arbiter       *risk.Arbiter
	evaluator     *risk.Evaluator
	indicatorSvc  *indicators.Service

	scannerEnabled bool
	scanner        Scanner
	fallbackTicker string

	auditLogger *audit.Logger
	log         zerolog.Logger
}

// NewHybridRiskCheck builds the stage. dailyPnLPct/weeklyPnLPct feed the
// portfolio manager's circuit breakers (see risk.NewPortfolioManager).
// auditLogger may be nil, in which case position-evaluator exits run
// without persisting a Trade row (still update the tick's TradeResult).
func NewHybridRiskCheck(cfg risk.Config, quoteCurrency string, dailyPnLPct, weeklyPnLPct func() float64, scannerEnabled bool, scanner Scanner, fallbackTicker string, auditLogger *audit.Logger, log zerolog.Logger) *HybridRiskCheck {
	return &HybridRiskCheck{
		BaseStage:      BaseStage{StageName: "hybrid_risk_check"},
		cfg:            cfg,
		quoteCurrency:  quoteCurrency,
		portfolioMgr:   risk.NewPortfolioManager(cfg, quoteCurrency, dailyPnLPct, weeklyPnLPct),
		arbiter:        risk.NewArbiter(cfg),
		evaluator:      risk.NewEvaluator(cfg),
		indicatorSvc:   indicators.NewService(log),
		scannerEnabled: scannerEnabled,
		scanner:        scanner,
		fallbackTicker: fallbackTicker,
		auditLogger:    auditLogger,
		log:            log.With().Str("stage", "hybrid_risk_check").Logger(),
	}
}

func (s *HybridRiskCheck) PreExecute(_ context.Context, _ *domain.TickContext) bool { return true }

func (s *HybridRiskCheck) Execute(ctx context.Context, tick *domain.TickContext) domain.StageResult {
	status, err := s.portfolioMgr.Snapshot(ctx, tick.Ports.Exchange)
	if err != nil {
		return domain.StageResult{Success: false, Action: domain.ActionExit, Message: fmt.Sprintf("portfolio snapshot: %v", err)}
	}

	decision := s.arbiter.Decide(status, dailyPnLPctOf(status), weeklyPnLPctOf(status))
	tick.PortfolioStatus = status
	tick.TradingMode = decision.Mode

	metrics.OpenPositions.Set(float64(status.PositionCount))
	for _, pos := range status.Positions {
		value, _ := pos.Value().Float64()
		metrics.UpdatePositionValue(pos.Ticker, value)
	}

	switch decision.Mode {
	case domain.ModeBlocked:
		tick.TradeResult = &domain.TradeResult{Decision: domain.DecisionHold, Reason: decision.BlockedReason}
		return domain.StageResult{Success: true, Action: domain.ActionExit, Message: decision.BlockedReason}

	case domain.ModeManagement:
		return s.handleManagement(ctx, tick, status)

	default: // ModeEntry
		return s.handleEntry(ctx, tick, status)
	}
}

// dailyPnLPctOf and weeklyPnLPctOf re-derive the ratio the arbiter's
// BlockedReason classification wants from a status the portfolio manager
// already gated mode selection on; kept here rather than recomputed inside
// risk.Arbiter so the arbiter stays a pure function of its three scalar
// arguments.
func dailyPnLPctOf(status domain.PortfolioStatus) float64 {
	total := status.Cash.Add(status.CurrentValue)
	if total.IsZero() {
		return 0
	}
	f, _ := status.PnL.Div(total).Float64()
	return f
}

func weeklyPnLPctOf(status domain.PortfolioStatus) float64 {
	return dailyPnLPctOf(status)
}

// handleManagement runs the position evaluator over every held position. An
// EXIT anywhere short-circuits the pipeline straight to a sell (recorded as
// the tick's TradeResult and surfaced with ActionExit so Execution doesn't
// also run this tick); otherwise it falls through to ENTRY if slots remain.
func (s *HybridRiskCheck) handleManagement(ctx context.Context, tick *domain.TickContext, status domain.PortfolioStatus) domain.StageResult {
	for _, pos := range status.Positions {
		pc, err := s.positionContext(ctx, tick, pos)
		if err != nil {
			s.log.Warn().Str("ticker", pos.Ticker).Err(err).Msg("position evaluator: failed to build context, holding")
			continue
		}

		eval := s.evaluator.Evaluate(pos, pc)
		switch eval.Action {
		case risk.ActionExit:
			tick.Ticker = pos.Ticker
			result, err := tick.Ports.Exchange.ExecuteSell(ctx, pos.Ticker, &pos.Amount, "")
			if err != nil {
				return domain.StageResult{Success: false, Action: domain.ActionExit, Message: fmt.Sprintf("position evaluator sell failed: %v", err)}
			}
			result.ExitTrigger = eval.Trigger
			tick.TradeResult = result

			trade := buildTrade(pos.Ticker, pos.EntryPrice, pos.EntryTime, tick.StartedAt, result)
			persistTrade(ctx, s.auditLogger, s.log, trade, result)

			return domain.StageResult{Success: true, Action: domain.ActionExit, Message: string(eval.Trigger)}

		case risk.ActionAdjustStop:
			// Mutating the held position's stop is a side effect outside
			// this tick's TickContext (it belongs to the exchange/position
			// store, not the pipeline); the stage only records the intent.
			tick.TradeResult = &domain.TradeResult{Decision: domain.DecisionHold, Reason: "trailing_stop_adjusted"}
			if eval.EscalateToAI {
				tick.TradeResult.Reason = "trailing_stop_adjusted_escalate_ai"
			}
		}
	}

	if status.PositionCount < s.cfg.MaxPositions {
		return s.handleEntry(ctx, tick, status)
	}
	return domain.StageResult{Success: true, Action: domain.ActionSkip, Message: "at max positions, nothing to do"}
}

// positionContext fetches a small recent window for the position's own
// ticker and derives the ADX inputs rule 6 needs.
func (s *HybridRiskCheck) positionContext(ctx context.Context, tick *domain.TickContext, pos domain.Position) (risk.PositionContext, error) {
	series, err := tick.Ports.Exchange.GetOHLCV(ctx, pos.Ticker, domain.Interval1h, positionEvaluatorLookback)
	if err != nil {
		return risk.PositionContext{}, fmt.Errorf("fetch ohlcv: %w", err)
	}
	ind, err := s.indicatorSvc.Compute(series, indicators.DefaultConfig())
	if err != nil {
		return risk.PositionContext{}, fmt.Errorf("compute indicators: %w", err)
	}
	n := len(ind.ADX)
	if n == 0 {
		return risk.PositionContext{HoldingHours: holdingHours(pos, tick.StartedAt)}, nil
	}
	current := ind.ADX[n-1]
	prior := current
	if n >= 2 {
		prior = ind.ADX[n-2]
	}
	return risk.PositionContext{
		HoldingHours: holdingHours(pos, tick.StartedAt),
		ADXCurrent:   current,
		ADXPrior:     prior,
	}, nil
}

func holdingHours(pos domain.Position, now time.Time) float64 {
	return now.Sub(pos.EntryTime).Hours()
}

// handleEntry runs the scanner (if enabled) or adopts the fallback ticker.
func (s *HybridRiskCheck) handleEntry(ctx context.Context, tick *domain.TickContext, status domain.PortfolioStatus) domain.StageResult {
	if status.AvailableCapital.LessThan(s.cfg.MinPositionValue) {
		return domain.StageResult{Success: true, Action: domain.ActionSkip, Message: "available capital below minimum position value"}
	}

	if !s.scannerEnabled || s.scanner == nil {
		if s.fallbackTicker != "" {
			tick.Ticker = s.fallbackTicker
		}
		return domain.StageResult{Success: true, Action: domain.ActionContinue}
	}

	held := make([]string, 0, len(status.Positions))
	for _, p := range status.Positions {
		held = append(held, p.Ticker)
	}

	result, err := s.scanner.Scan(ctx, held)
	if err != nil {
		return domain.StageResult{Success: false, Action: domain.ActionExit, Message: fmt.Sprintf("scanner: %v", err)}
	}
	tick.ScanResult = &result

	if len(result.SelectedCoins) == 0 {
		return domain.StageResult{Success: true, Action: domain.ActionSkip, Message: "scanner returned no candidate", Data: map[string]interface{}{"scan_result": result}}
	}

	tick.Ticker = result.SelectedCoins[0].Ticker
	return domain.StageResult{Success: true, Action: domain.ActionContinue}
}
