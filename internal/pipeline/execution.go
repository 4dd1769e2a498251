package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/cryptobreakout/internal/audit"
	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/strategy"
)

// Execution is spec.md §4.5: act on the Analysis stage's validated AI
// decision. buy sizes and submits a market order; sell realises pnl on the
// full held amount; hold only logs.
type Execution struct {
	BaseStage

	strat          *strategy.Strategy
	auditLogger    *audit.Logger
	idempotencyTTL time.Duration
	log            zerolog.Logger
}

// NewExecution builds the stage. auditLogger may be nil, in which case
// AI-driven sells run without persisting a Trade row. idempotencyTTL is the
// window the idempotency port remembers a submitted key for; spec.md §4.5
// requires it be at least min_trade_interval_hours, so callers pass
// risk.Config.MinTradeIntervalHours through rather than a fixed constant.
func NewExecution(strat *strategy.Strategy, auditLogger *audit.Logger, idempotencyTTL time.Duration, log zerolog.Logger) *Execution {
	return &Execution{BaseStage: BaseStage{StageName: "execution"}, strat: strat, auditLogger: auditLogger, idempotencyTTL: idempotencyTTL, log: log.With().Str("stage", "execution").Logger()}
}

// checkIdempotency consults Ports.Idempotent before a submission. A CheckKey
// error degrades to "not seen" here rather than blocking the trade on cache
// availability; a true duplicate still short-circuits the submission.
func (s *Execution) checkIdempotency(ctx context.Context, tick *domain.TickContext, key string) bool {
	if tick.Ports.Idempotent == nil {
		return false
	}
	seen, err := tick.Ports.Idempotent.CheckKey(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", tick.Ticker).Msg("idempotency check failed, proceeding")
		return false
	}
	return seen
}

func (s *Execution) markIdempotency(ctx context.Context, tick *domain.TickContext, key string) {
	if tick.Ports.Idempotent == nil {
		return
	}
	if err := tick.Ports.Idempotent.MarkKey(ctx, key, s.idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("ticker", tick.Ticker).Msg("idempotency mark failed")
	}
}

func (s *Execution) PreExecute(_ context.Context, tick *domain.TickContext) bool {
	return tick.AIReview != nil
}

func (s *Execution) Execute(ctx context.Context, tick *domain.TickContext) domain.StageResult {
	review := tick.AIReview

	switch review.Decision {
	case domain.DecisionBuy:
		return s.executeBuy(ctx, tick, review)
	case domain.DecisionSell:
		return s.executeSell(ctx, tick, review)
	default:
		tick.TradeResult = &domain.TradeResult{Decision: domain.DecisionHold, Confidence: review.Confidence, Reason: review.Reason}
		s.log.Info().Str("ticker", tick.Ticker).Str("reason", review.Reason).Msg("decision: hold")
		return domain.StageResult{Success: true, Action: domain.ActionContinue}
	}
}

func (s *Execution) executeBuy(ctx context.Context, tick *domain.TickContext, review *domain.AIReview) domain.StageResult {
	if tick.PositionDetail.Held {
		tick.TradeResult = &domain.TradeResult{Decision: domain.DecisionHold, Reason: "buy_signal_ignored_position_already_held"}
		return domain.StageResult{Success: true, Action: domain.ActionContinue}
	}

	price := decimal.NewFromFloat(tick.CurrentPrice)
	equity := decimal.NewFromFloat(tick.QuoteBalance)

	stopPrice := tick.CurrentPrice - 2*tick.Indicators.ATR14
	stopDec := decimal.NewFromFloat(stopPrice)
	stopLoss := &stopDec

	size := s.strat.Size(equity, price, stopLoss)
	if !size.IsPositive() {
		tick.TradeResult = &domain.TradeResult{Decision: domain.DecisionHold, Reason: "sizing_produced_zero_amount"}
		return domain.StageResult{Success: true, Action: domain.ActionContinue}
	}

	quoteAmount := size.Mul(price)
	key := idempotencyKey(tick.Ticker, tick.StartedAt, domain.DecisionBuy)

	if s.checkIdempotency(ctx, tick, key) {
		tick.TradeResult = &domain.TradeResult{Decision: domain.DecisionHold, Reason: "duplicate_idempotency_key_skipped", IdempotencyKey: key}
		return domain.StageResult{Success: true, Action: domain.ActionContinue}
	}

	result, err := tick.Ports.Exchange.ExecuteBuy(ctx, tick.Ticker, quoteAmount, key)
	if err != nil {
		return domain.StageResult{Success: false, Action: domain.ActionExit, Message: fmt.Sprintf("execute buy failed: %v", err)}
	}
	result.Decision = domain.DecisionBuy
	result.Confidence = review.Confidence
	result.Reason = review.Reason
	result.IdempotencyKey = key
	tick.TradeResult = result
	s.markIdempotency(ctx, tick, key)

	s.log.Info().Str("ticker", tick.Ticker).Float64("amount", result.Amount).Float64("price", result.Price).Msg("executed buy")
	return domain.StageResult{Success: true, Action: domain.ActionContinue}
}

func (s *Execution) executeSell(ctx context.Context, tick *domain.TickContext, review *domain.AIReview) domain.StageResult {
	if !tick.PositionDetail.Held {
		tick.TradeResult = &domain.TradeResult{Decision: domain.DecisionHold, Reason: "sell_signal_ignored_no_position"}
		return domain.StageResult{Success: true, Action: domain.ActionContinue}
	}

	amount := decimal.NewFromFloat(tick.PositionDetail.Amount)
	key := idempotencyKey(tick.Ticker, tick.StartedAt, domain.DecisionSell)

	if s.checkIdempotency(ctx, tick, key) {
		tick.TradeResult = &domain.TradeResult{Decision: domain.DecisionHold, Reason: "duplicate_idempotency_key_skipped", IdempotencyKey: key}
		return domain.StageResult{Success: true, Action: domain.ActionContinue}
	}

	result, err := tick.Ports.Exchange.ExecuteSell(ctx, tick.Ticker, &amount, key)
	if err != nil {
		return domain.StageResult{Success: false, Action: domain.ActionExit, Message: fmt.Sprintf("execute sell failed: %v", err)}
	}
	result.Decision = domain.DecisionSell
	result.Confidence = review.Confidence
	result.Reason = review.Reason
	result.IdempotencyKey = key
	result.ExitTrigger = domain.TriggerManual
	tick.TradeResult = result
	s.markIdempotency(ctx, tick, key)

	entryPrice := decimal.NewFromFloat(tick.PositionDetail.AvgBuyPrice)
	trade := buildTrade(tick.Ticker, entryPrice, tick.PositionDetail.EntryTime, tick.StartedAt, result)
	persistTrade(ctx, s.auditLogger, s.log, trade, result)

	s.log.Info().Str("ticker", tick.Ticker).Float64("realized_pnl", result.RealizedPnL).Msg("executed sell")
	return domain.StageResult{Success: true, Action: domain.ActionContinue}
}

// idempotencyKey is spec.md §4.5's deterministic
// hash(ticker, tick_timestamp_truncated_to_minute, decision); checkIdempotency/
// markIdempotency consult Ports.Idempotent before and after submission to
// reject a duplicate within its TTL, per spec.md §6.
func idempotencyKey(ticker string, at time.Time, decision domain.Decision) string {
	truncated := at.Unix() / 60
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", ticker, truncated, decision)))
	return hex.EncodeToString(h[:])
}
