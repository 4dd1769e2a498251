package audit

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
)

func TestLogger_PersistTradeWithoutDatabaseIsANoop(t *testing.T) {
	logger := NewLogger(nil, true)

	trade := &domain.Trade{
		Ticker:        "BTC-USDT",
		EntryPrice:    decimal.NewFromFloat(100),
		EntryTime:     time.Now().Add(-time.Hour),
		ExitPrice:     decimal.NewFromFloat(110),
		ExitTime:      time.Now(),
		Size:          decimal.NewFromFloat(1),
		RealizedPnL:   decimal.NewFromFloat(10),
		Commission:    decimal.NewFromFloat(0.5),
		HoldingPeriod: time.Hour,
		ExitTrigger:   domain.TriggerTakeProfit,
	}

	err := logger.PersistTrade(context.Background(), trade)
	assert.NoError(t, err)
}

func TestLogger_QueryTradesWithoutDatabaseReturnsNil(t *testing.T) {
	logger := NewLogger(nil, true)

	trades, err := logger.QueryTrades(context.Background(), "BTC-USDT", 10)
	assert.NoError(t, err)
	assert.Nil(t, trades)
}
