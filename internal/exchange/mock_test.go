package exchange

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cryptobreakout/internal/config"
)

func TestMockExchangeDefaultFees(t *testing.T) {
	exchange := NewMockExchange(nil)

	assert.Equal(t, 0.001, exchange.makerFee)
	assert.Equal(t, 0.001, exchange.takerFee)
	assert.Equal(t, 0.0005, exchange.baseSlippage)
	assert.Equal(t, 0.0001, exchange.marketImpact)
	assert.Equal(t, 0.003, exchange.maxSlippage)
}

func TestMockExchangeWithCustomFees(t *testing.T) {
	customFees := config.FeeConfig{
		Maker:        0.0005,
		Taker:        0.002,
		BaseSlippage: 0.001,
		MarketImpact: 0.0002,
		MaxSlippage:  0.005,
	}

	exchange := NewMockExchangeWithFees(nil, customFees)

	assert.Equal(t, 0.0005, exchange.makerFee)
	assert.Equal(t, 0.002, exchange.takerFee)
	assert.Equal(t, 0.001, exchange.baseSlippage)
	assert.Equal(t, 0.0002, exchange.marketImpact)
	assert.Equal(t, 0.005, exchange.maxSlippage)
}

func TestMockExchangeExecuteBuyAppliesSlippageAndFee(t *testing.T) {
	ctx := context.Background()
	exchange := NewMockExchange(nil)
	exchange.SetBalance("USDT", decimal.NewFromInt(10000))
	exchange.SetMarketPrice("BTC-USDT", 50000.0)

	result, err := exchange.ExecuteBuy(ctx, "BTC-USDT", decimal.NewFromInt(1000), "buy-1")

	require.NoError(t, err)
	assert.Equal(t, "buy-1", result.IdempotencyKey)
	assert.Greater(t, result.Price, 50000.0, "buy fills should pay a premium over mid price")
	assert.Greater(t, result.Amount, 0.0)

	quoteBal, err := exchange.GetBalance(ctx, "USDT")
	require.NoError(t, err)
	assert.True(t, quoteBal.Available.Equal(decimal.NewFromInt(9000)))

	baseBal, err := exchange.GetBalance(ctx, "BTC")
	require.NoError(t, err)
	assert.True(t, baseBal.Available.GreaterThan(decimal.Zero))
}

func TestMockExchangeExecuteSellFullExit(t *testing.T) {
	ctx := context.Background()
	exchange := NewMockExchange(nil)
	exchange.SetBalance("BTC", decimal.NewFromFloat(0.02))
	exchange.SetMarketPrice("BTC-USDT", 50000.0)

	result, err := exchange.ExecuteSell(ctx, "BTC-USDT", nil, "sell-1")

	require.NoError(t, err)
	assert.Equal(t, "sell-1", result.IdempotencyKey)
	assert.Less(t, result.Price, 50000.0, "sell fills should receive a discount under mid price")
	assert.InDelta(t, 0.02, result.Amount, 1e-9)

	baseBal, err := exchange.GetBalance(ctx, "BTC")
	require.NoError(t, err)
	assert.True(t, baseBal.Available.IsZero())
}

func TestMockExchangeExecuteSellPartial(t *testing.T) {
	ctx := context.Background()
	exchange := NewMockExchange(nil)
	exchange.SetBalance("BTC", decimal.NewFromFloat(0.05))
	exchange.SetMarketPrice("BTC-USDT", 50000.0)

	half := decimal.NewFromFloat(0.025)
	_, err := exchange.ExecuteSell(ctx, "BTC-USDT", &half, "sell-partial")
	require.NoError(t, err)

	baseBal, err := exchange.GetBalance(ctx, "BTC")
	require.NoError(t, err)
	assert.True(t, baseBal.Available.Equal(decimal.NewFromFloat(0.025)))
}

func TestMockExchangeExecuteBuyRejectsZeroAmount(t *testing.T) {
	ctx := context.Background()
	exchange := NewMockExchange(nil)
	exchange.SetMarketPrice("BTC-USDT", 50000.0)

	_, err := exchange.ExecuteBuy(ctx, "BTC-USDT", decimal.Zero, "buy-zero")
	require.Error(t, err)
}

func TestMockExchangeMissingPriceErrors(t *testing.T) {
	ctx := context.Background()
	exchange := NewMockExchange(nil)

	_, err := exchange.GetCurrentPrice(ctx, "ETH-USDT")
	require.Error(t, err)

	_, err = exchange.ExecuteBuy(ctx, "ETH-USDT", decimal.NewFromInt(100), "buy-no-price")
	require.Error(t, err)
}
