package strategy

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
)

func TestEvaluateExit_StopLossTakesPriorityOverFakeout(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, zerolog.Nop())
	series := baseSeries(5)
	series.Close[4] = 47_500_000

	stop := decimal.NewFromInt(48_000_000)
	pos := domain.Position{
		EntryPrice:     decimal.NewFromInt(50_000_000),
		StopLoss:       &stop,
		HoldingCandles: 1, // would also qualify as a fakeout
	}

	sig, err := s.EvaluateExit(series, 4, pos)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, "stop_loss", sig.Reason.Details["trigger"])
}

func TestEvaluateExit_Fakeout(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, zerolog.Nop())
	series := baseSeries(5)
	series.Close[2] = 48_000_000 // < entry*0.98 = 49_000_000

	pos := domain.Position{
		EntryPrice:     decimal.NewFromInt(50_000_000),
		HoldingCandles: 2,
	}

	sig, err := s.EvaluateExit(series, 2, pos)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, "fakeout", sig.Reason.Details["trigger"])
}

func TestEvaluateExit_TakeProfit(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, zerolog.Nop())
	series := baseSeries(5)
	series.Close[3] = 60_000_000

	target := decimal.NewFromInt(55_000_000)
	pos := domain.Position{
		EntryPrice: decimal.NewFromInt(50_000_000),
		TakeProfit: &target,
	}

	sig, err := s.EvaluateExit(series, 3, pos)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, "take_profit", sig.Reason.Details["trigger"])
}

func TestEvaluateExit_TrendWeakening(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, zerolog.Nop())
	series := baseSeries(5)
	series.Close[4] = 51_000_000
	series.ADX[3] = 30
	series.ADX[4] = 18 // drop of 40% and below floor 20

	pos := domain.Position{EntryPrice: decimal.NewFromInt(50_000_000)}

	sig, err := s.EvaluateExit(series, 4, pos)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, "trend_weakening", sig.Reason.Details["trigger"])
}

func TestEvaluateExit_Timeout(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, zerolog.Nop())
	series := baseSeries(5)
	series.Close[4] = 50_500_000 // profit ~1%, below 2% floor

	pos := domain.Position{
		EntryPrice:     decimal.NewFromInt(50_000_000),
		HoldingCandles: 30,
	}

	sig, err := s.EvaluateExit(series, 4, pos)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, "timeout", sig.Reason.Details["trigger"])
}

func TestEvaluateExit_HoldWhenNoRuleFires(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, zerolog.Nop())
	series := baseSeries(5)
	series.Close[4] = 51_000_000

	pos := domain.Position{
		EntryPrice:     decimal.NewFromInt(50_000_000),
		HoldingCandles: 2,
	}

	sig, err := s.EvaluateExit(series, 4, pos)
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestIntrabarStopCheck_LowCrossesStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExecutionModel = ExecutionIntrabarStops
	s := New(cfg, zerolog.Nop())
	series := baseSeries(2)
	series.Low[1] = 47_400_000
	series.High[1] = 49_000_000

	stop := decimal.NewFromInt(47_500_000)
	pos := domain.Position{StopLoss: &stop}

	sig := s.IntrabarStopCheck(series, 1, pos)
	require.NotNil(t, sig)
	price, _ := sig.Price.Float64()
	assert.InDelta(t, 47_500_000, price, 0.01)
}
