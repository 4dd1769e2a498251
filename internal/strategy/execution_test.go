package strategy

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
)

func TestSize_ClampsPriceRiskToConfiguredBand(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, zerolog.Nop())

	equity := decimal.NewFromInt(10000)
	price := decimal.NewFromInt(100)
	// price risk of 0.1% is below the 1.5% floor, so it should clamp up,
	// shrinking size relative to naive (risk_amount / 0.001*price).
	stop := decimal.NewFromFloat(99.9)

	size := s.Size(equity, price, &stop)
	sizeF, _ := size.Float64()

	floor := cfg.Sizing.PriceRiskFloorPct * 100
	expected := (10000 * cfg.Sizing.RiskPerTrade) / floor
	assert.InDelta(t, expected, sizeF, 0.01)
}

func TestSize_FallbackWhenNoStopLoss(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, zerolog.Nop())

	equity := decimal.NewFromInt(10000)
	price := decimal.NewFromInt(100)

	size := s.Size(equity, price, nil)
	sizeF, _ := size.Float64()
	assert.InDelta(t, 10000*cfg.Sizing.FallbackPositionPct/100, sizeF, 0.01)
}

func TestSize_ClampedToMaxPositionPct(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sizing.RiskPerTrade = 0.9 // deliberately huge, to force the max clamp
	s := New(cfg, zerolog.Nop())

	equity := decimal.NewFromInt(10000)
	price := decimal.NewFromInt(100)
	stop := decimal.NewFromFloat(98)

	size := s.Size(equity, price, &stop)
	sizeF, _ := size.Float64()
	maxSize := cfg.Sizing.MaxPositionPct * 10000 / 100
	assert.InDelta(t, maxSize, sizeF, 0.01)
}

func TestApplyFill_PercentageModelWidensBuyNarrowsSell(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Slippage.Model = SlippagePercentage
	cfg.Slippage.PercentageBps = 10 // 0.1%
	s := New(cfg, zerolog.Nop())

	buy := s.ApplyFill("buy", 100, 1, nil)
	sell := s.ApplyFill("sell", 100, 1, nil)

	assert.Greater(t, buy.Price, 100.0)
	assert.Less(t, sell.Price, 100.0)
}

func TestApplyFill_OrderbookWalksLevels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Slippage.Model = SlippageOrderbook
	s := New(cfg, zerolog.Nop())

	ob := &domain.Orderbook{
		Asks: []domain.OrderbookLevel{
			{Price: decimal.NewFromInt(100), Volume: decimal.NewFromInt(1)},
			{Price: decimal.NewFromInt(101), Volume: decimal.NewFromInt(5)},
		},
	}

	fill := s.ApplyFill("buy", 100, 2, ob)
	// 1 unit at 100, 1 unit at 101 => average 100.5
	assert.InDelta(t, 100.5, fill.Price, 0.001)
}

func TestSplitOrder_DisabledReturnsSingleChunk(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, zerolog.Nop())

	chunks, err := s.SplitOrder(10, nil)
	assert.NoError(t, err)
	assert.Equal(t, []float64{10}, chunks)
}

func TestSplitOrder_ClampsChunkCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OrderSplit.Enabled = true
	s := New(cfg, zerolog.Nop())

	levels := make([]domain.OrderbookLevel, 5)
	for i := range levels {
		levels[i] = domain.OrderbookLevel{Price: decimal.NewFromInt(100), Volume: decimal.NewFromFloat(0.1)}
	}
	ob := &domain.Orderbook{Asks: levels}

	chunks, err := s.SplitOrder(100, ob)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, len(chunks), cfg.OrderSplit.MinChunks)
	assert.LessOrEqual(t, len(chunks), cfg.OrderSplit.MaxChunks)
}

func TestValidate_RejectsInvertedPositionPct(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sizing.MinPositionPct = 0.5
	cfg.Sizing.MaxPositionPct = 0.1

	err := Validate(cfg)
	assert.Error(t, err)
}
