package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/indicators"
	"github.com/ajitpratap0/cryptobreakout/internal/strategy"
)

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// baseSeries mirrors internal/strategy's test helper: every column
// NaN-initialized so a scenario only needs to set the fields its gates read.
func baseSeries(n int) *indicators.Series {
	return &indicators.Series{
		Open:          make([]float64, n),
		High:          make([]float64, n),
		Low:           make([]float64, n),
		Close:         make([]float64, n),
		Volume:        make([]float64, n),
		BBWidth:       nanSlice(n),
		BBWidthMean20: nanSlice(n),
		TrendMA:       nanSlice(n),
		ADX:           nanSlice(n),
		ATR:           nanSlice(n),
		DonchianHigh:  nanSlice(n),
		DynamicK:      nanSlice(n),
		VolumeMean20:  nanSlice(n),
		OBV:           make([]float64, n),
		OBVMA5:        nanSlice(n),
		OBVMA20:       nanSlice(n),
	}
}

// breakoutScenario builds a 33-bar run: bars 0..28 sit flat with every entry
// gate trivially passing, bar 29 breaks out (the same shape as
// strategy.TestEvaluate_AllGatesPassEmitsBuyWithATRBrackets, stop 106 /
// target 116 off ATR=2), and bars 30..32 take the caller-supplied closes so
// each test can steer the exit. The OHLCVSeries candles carry the same
// closes (Open==Close, a single print per bar) so the engine's fills are
// driven by consistent candle data rather than a parallel series.
func breakoutScenario(closeAt30, closeAt31, closeAt32 float64) (*indicators.Series, *domain.OHLCVSeries) {
	n := 33
	series := baseSeries(n)
	for i := 0; i < n; i++ {
		series.Close[i] = 100
		series.High[i] = 100.5
		series.Low[i] = 99.5
		series.Volume[i] = 100
		series.BBWidth[i] = 0.01
		series.BBWidthMean20[i] = 0.05
		series.VolumeMean20[i] = 100
		series.TrendMA[i] = 95
		series.ATR[i] = 2
	}
	series.Close[29] = 110
	series.DonchianHigh[29] = 100
	series.Volume[29] = 260

	for i, c := range []float64{closeAt30, closeAt31, closeAt32} {
		idx := 30 + i
		series.Close[idx] = c
		series.High[idx] = c + 0.5
		series.Low[idx] = c - 0.5
	}

	candles := make([]domain.Candle, n)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		close := decimal.NewFromFloat(series.Close[i])
		high := decimal.NewFromFloat(series.High[i])
		low := decimal.NewFromFloat(series.Low[i])
		candles[i] = domain.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      close,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    decimal.NewFromFloat(series.Volume[i]),
		}
	}
	ohlcv := &domain.OHLCVSeries{Ticker: "BTC-USDT", Interval: domain.Interval1h, Candles: candles}

	return series, ohlcv
}

func sellBarIndex(e *Engine) int {
	for _, tr := range e.Trades {
		if tr.Side == "SELL" {
			return tr.Index
		}
	}
	return -1
}

func TestEngine_NextOpenExecutionDelaysFillToFollowingBar(t *testing.T) {
	cfg := strategy.DefaultConfig()
	strat := strategy.New(cfg, zerolog.Nop())
	// entry price ~110, stop = 110 - 2*ATR(2) = 106. Bar 30 holds steady at
	// 110 (no exit yet), bar 31 drops to 100 and crosses the stop.
	series, ohlcv := breakoutScenario(110, 100, 100)

	eng := NewEngine(Config{InitialCapital: 10000, Ticker: "BTC-USDT"}, strat)
	err := eng.Run(context.Background(), series, ohlcv)
	require.NoError(t, err)

	require.Len(t, eng.Trades, 2, "expected one buy and one sell fill")
	buy := eng.Trades[0]
	sell := eng.Trades[1]

	assert.Equal(t, "BUY", buy.Side)
	assert.Equal(t, 30, buy.Index, "entry signal decided on bar 29 must fill at bar 30's open, not bar 29's close")

	assert.Equal(t, "SELL", sell.Side)
	assert.Equal(t, 32, sell.Index, "stop-loss decided on bar 31 must fill at bar 32's open, not bar 31's close")

	require.Len(t, eng.ClosedPositions, 1)
	pos := eng.ClosedPositions[0]
	assert.Equal(t, domain.TriggerStopLoss, pos.ExitTrigger)
	assert.Less(t, pos.RealizedPL, 0.0, "stop-loss exit below entry price should realize a loss")
}

func TestEngine_IntrabarStopFiresWithinTriggeringBar(t *testing.T) {
	cfg := strategy.DefaultConfig()
	cfg.ExecutionModel = strategy.ExecutionIntrabarStops
	strat := strategy.New(cfg, zerolog.Nop())
	// bar 31 closes above the stop (108) but its low (105) pierces it — only
	// the intrabar model catches this, a next-open-only model would not.
	series, ohlcv := breakoutScenario(110, 108, 108)
	series.Low[31] = 105
	ohlcv.Candles[31].Low = decimal.NewFromFloat(105)

	eng := NewEngine(Config{InitialCapital: 10000, Ticker: "BTC-USDT"}, strat)
	err := eng.Run(context.Background(), series, ohlcv)
	require.NoError(t, err)

	require.Len(t, eng.ClosedPositions, 1)
	pos := eng.ClosedPositions[0]
	assert.Equal(t, domain.TriggerStopLoss, pos.ExitTrigger)
	assert.Equal(t, 31, sellBarIndex(eng), "intrabar stop must close within the triggering bar, not delayed to the next open")
}

func TestEngine_NoSignalsProducesFlatEquityCurve(t *testing.T) {
	cfg := strategy.DefaultConfig()
	strat := strategy.New(cfg, zerolog.Nop())
	n := 10
	series := baseSeries(n)
	candles := make([]domain.Candle, n)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		series.Close[i] = 100
		series.TrendMA[i] = 105 // close below trend MA, entry gate never passes
		close := decimal.NewFromFloat(100)
		candles[i] = domain.Candle{Timestamp: base.Add(time.Duration(i) * time.Hour), Open: close, High: close, Low: close, Close: close, Volume: decimal.NewFromFloat(1)}
	}
	ohlcv := &domain.OHLCVSeries{Ticker: "ETH-USDT", Interval: domain.Interval1h, Candles: candles}

	eng := NewEngine(Config{InitialCapital: 5000, Ticker: "ETH-USDT"}, strat)
	err := eng.Run(context.Background(), series, ohlcv)
	require.NoError(t, err)

	assert.Empty(t, eng.Trades)
	assert.Equal(t, 5000.0, eng.FinalEquity())
}

func TestCalculateMetrics_SingleWinningTradeAndRatios(t *testing.T) {
	cfg := strategy.DefaultConfig()
	strat := strategy.New(cfg, zerolog.Nop())
	// bar 31 rallies past the take-profit (116), bar 32's open (the actual
	// fill bar) holds the rally so the round trip nets a real profit.
	series, ohlcv := breakoutScenario(110, 120, 118)

	eng := NewEngine(Config{InitialCapital: 10000, Ticker: "BTC-USDT"}, strat)
	require.NoError(t, eng.Run(context.Background(), series, ohlcv))
	require.Len(t, eng.ClosedPositions, 1)
	assert.Equal(t, domain.TriggerTakeProfit, eng.ClosedPositions[0].ExitTrigger)
	assert.Greater(t, eng.ClosedPositions[0].RealizedPL, 0.0)

	m, err := CalculateMetrics(eng)
	require.NoError(t, err)
	assert.Equal(t, 1, m.TotalTrades)
	assert.Equal(t, 1, m.WinningTrades)
	assert.Equal(t, 0, m.LosingTrades)
	assert.Greater(t, m.WinRate, 0.0)
	assert.NotEmpty(t, GenerateReport("BTC-USDT", m))
}
