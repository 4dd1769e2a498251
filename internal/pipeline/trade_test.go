package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
)

func TestBuildTrade_ComputesRealizedPnLNetOfCommission(t *testing.T) {
	entryTime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	exitTime := entryTime.Add(6 * time.Hour)

	result := &domain.TradeResult{
		Amount:      2,
		Price:       110,
		Commission:  1.5,
		ExitTrigger: domain.TriggerTakeProfit,
	}

	trade := buildTrade("BTC-USDT", decimal.NewFromFloat(100), entryTime, exitTime, result)

	assert.Equal(t, "BTC-USDT", trade.Ticker)
	assert.True(t, trade.EntryPrice.Equal(decimal.NewFromFloat(100)))
	assert.True(t, trade.ExitPrice.Equal(decimal.NewFromFloat(110)))
	assert.True(t, trade.Size.Equal(decimal.NewFromFloat(2)))
	// 2*(110-100) - 1.5 = 18.5
	assert.True(t, trade.RealizedPnL.Equal(decimal.NewFromFloat(18.5)), "got %s", trade.RealizedPnL)
	assert.Equal(t, 6*time.Hour, trade.HoldingPeriod)
	assert.Equal(t, domain.TriggerTakeProfit, trade.ExitTrigger)
}

func TestBuildTrade_NegativePnLOnALosingTrade(t *testing.T) {
	entryTime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	exitTime := entryTime.Add(time.Hour)

	result := &domain.TradeResult{Amount: 1, Price: 90, Commission: 0.5}
	trade := buildTrade("ETH-USDT", decimal.NewFromFloat(100), entryTime, exitTime, result)

	assert.True(t, trade.RealizedPnL.IsNegative())
	assert.True(t, trade.RealizedPnL.Equal(decimal.NewFromFloat(-10.5)), "got %s", trade.RealizedPnL)
}

func TestPersistTrade_NilLoggerIsANoopButStillMirrorsRealizedPnL(t *testing.T) {
	entryTime := time.Now().Add(-time.Hour)
	exitTime := time.Now()

	result := &domain.TradeResult{Amount: 1, Price: 105, Commission: 0}
	trade := buildTrade("BTC-USDT", decimal.NewFromFloat(100), entryTime, exitTime, result)

	require.NotPanics(t, func() {
		persistTrade(context.Background(), nil, zerolog.Nop(), trade, result)
	})

	assert.InDelta(t, 5.0, result.RealizedPnL, 0.0001)
}
