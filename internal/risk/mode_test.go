package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
)

func TestEvaluator_StopLossBeatsEverythingElse(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEvaluator(cfg)

	pos := domain.Position{
		EntryPrice:     decimal.NewFromInt(100),
		CurrentPrice:   decimal.NewFromInt(94), // below 100*(1-0.05)=95
		HoldingCandles: 1,
	}

	eval := e.Evaluate(pos, PositionContext{})
	assert.Equal(t, ActionExit, eval.Action)
	assert.Equal(t, domain.TriggerStopLoss, eval.Trigger)
}

func TestEvaluator_TakeProfit(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEvaluator(cfg)

	pos := domain.Position{
		EntryPrice:   decimal.NewFromInt(100),
		CurrentPrice: decimal.NewFromInt(111), // above 100*(1+0.10)=110
	}

	eval := e.Evaluate(pos, PositionContext{})
	assert.Equal(t, ActionExit, eval.Action)
	assert.Equal(t, domain.TriggerTakeProfit, eval.Trigger)
}

func TestEvaluator_TrailingStopHit(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEvaluator(cfg)

	stop := decimal.NewFromInt(98)
	pos := domain.Position{
		EntryPrice:   decimal.NewFromInt(100),
		CurrentPrice: decimal.NewFromInt(97),
		StopLoss:     &stop,
	}

	eval := e.Evaluate(pos, PositionContext{})
	assert.Equal(t, ActionExit, eval.Action)
	assert.Equal(t, domain.TriggerTrailingStop, eval.Trigger)
}

func TestEvaluator_ADXWeakening(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEvaluator(cfg)

	pos := domain.Position{
		EntryPrice:   decimal.NewFromInt(100),
		CurrentPrice: decimal.NewFromInt(101),
	}
	pc := PositionContext{HoldingHours: 10, ADXCurrent: 15, ADXPrior: 25}

	eval := e.Evaluate(pos, pc)
	assert.Equal(t, ActionExit, eval.Action)
	assert.Equal(t, domain.TriggerADXWeak, eval.Trigger)
}

func TestEvaluator_TrailingAdjustWhenProfitable(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEvaluator(cfg)

	pos := domain.Position{
		EntryPrice:   decimal.NewFromInt(100),
		CurrentPrice: decimal.NewFromInt(106), // 6% profit, above 5% trailing activate
	}

	eval := e.Evaluate(pos, PositionContext{})
	assert.Equal(t, ActionAdjustStop, eval.Action)
	assert.NotNil(t, eval.NewStop)
}

func TestEvaluator_HoldWhenNothingFires(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEvaluator(cfg)

	pos := domain.Position{
		EntryPrice:   decimal.NewFromInt(100),
		CurrentPrice: decimal.NewFromInt(101),
	}

	eval := e.Evaluate(pos, PositionContext{})
	assert.Equal(t, ActionHold, eval.Action)
}

func TestArbiter_BlockedReasonReflectsWhichLimitBroke(t *testing.T) {
	cfg := DefaultConfig()
	a := NewArbiter(cfg)

	status := domain.PortfolioStatus{TradingMode: domain.ModeBlocked}
	decision := a.Decide(status, -0.06, -0.01)
	assert.Equal(t, "daily_loss_limit_breached", decision.BlockedReason)

	decision = a.Decide(status, -0.01, -0.20)
	assert.Equal(t, "weekly_loss_limit_breached", decision.BlockedReason)
}
