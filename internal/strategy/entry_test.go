package strategy

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cryptobreakout/internal/indicators"
)

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// baseSeries builds a minimal indicators.Series with every column
// NaN-initialized so a test only needs to set the fields its gate reads.
func baseSeries(n int) *indicators.Series {
	return &indicators.Series{
		Open:             make([]float64, n),
		High:             make([]float64, n),
		Low:              make([]float64, n),
		Close:            make([]float64, n),
		Volume:           make([]float64, n),
		BBWidth:          nanSlice(n),
		BBWidthMean20:    nanSlice(n),
		TrendMA:          nanSlice(n),
		ADX:              nanSlice(n),
		ATR:              nanSlice(n),
		DonchianHigh:     nanSlice(n),
		DynamicK:         nanSlice(n),
		VolumeMean20:     nanSlice(n),
		OBV:              make([]float64, n),
		OBVMA5:           nanSlice(n),
		OBVMA20:          nanSlice(n),
	}
}

func TestGateTrend_DisabledAlwaysPasses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrendFilterEnabled = false
	s := New(cfg, zerolog.Nop())

	ok, clause := s.gateTrend(baseSeries(5), 2)
	assert.True(t, ok)
	assert.Equal(t, "disabled", clause)
}

func TestGateTrend_ClosePriceComparedToTrendMA(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, zerolog.Nop())
	series := baseSeries(5)
	series.Close[2] = 105
	series.TrendMA[2] = 100

	ok, clause := s.gateTrend(series, 2)
	assert.True(t, ok)
	assert.Equal(t, "close_above_trend_ma", clause)

	series.Close[2] = 95
	ok, clause = s.gateTrend(series, 2)
	assert.False(t, ok)
	assert.Equal(t, "close_below_trend_ma", clause)
}

func TestGateBreakout_DonchianBreak(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, zerolog.Nop())
	series := baseSeries(5)
	series.Close[3] = 110
	series.DonchianHigh[3] = 100 // >1% above => strong
	series.Close[2] = 90
	series.High[2] = 95
	series.Low[2] = 85

	ok, clause, strong := s.gateBreakout(series, 3)
	assert.True(t, ok)
	assert.Equal(t, "donchian_break", clause)
	assert.True(t, strong)
}

func TestGateBreakout_LarryWilliamsFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BreakoutUseDynamicK = false
	cfg.BreakoutK = 0.5
	s := New(cfg, zerolog.Nop())
	series := baseSeries(5)
	series.DonchianHigh[3] = math.NaN()
	series.Close[2] = 100
	series.High[2] = 105
	series.Low[2] = 95 // range = 10, threshold = 100 + 5 = 105
	series.Close[3] = 106

	ok, clause, _ := s.gateBreakout(series, 3)
	assert.True(t, ok)
	assert.Equal(t, "larry_williams_breakout", clause)
}

func TestGateVolume_NegativeDivergenceVetoesGate(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, zerolog.Nop())
	series := baseSeries(10)
	series.Close[8] = 110
	series.Close[3] = 100 // price up over last 5 bars
	series.OBV[8] = 50
	series.OBV[3] = 100 // obv down over last 5 bars
	series.Volume[8] = 1000
	series.VolumeMean20[8] = 1 // would otherwise trivially pass on volume surge

	ok, clause := s.gateVolume(series, 8)
	assert.False(t, ok)
	assert.Equal(t, "negative_divergence", clause)
}

func TestGateVolume_SurgePasses(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, zerolog.Nop())
	series := baseSeries(10)
	series.Volume[5] = 200
	series.VolumeMean20[5] = 100

	ok, clause := s.gateVolume(series, 5)
	assert.True(t, ok)
	assert.Equal(t, "volume_surge", clause)
}

func TestEvaluate_AllGatesPassEmitsBuyWithATRBrackets(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, zerolog.Nop())
	n := 25
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
	last := n - 1
	series.Close[last] = 110
	series.DonchianHigh[last] = 100
	series.Volume[last] = 260

	sig, err := s.Evaluate(series, last)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, "buy", string(sig.Action))
	expectedStop := 110 - 2*2.0
	expectedTarget := 110 + 3*2.0
	stop, _ := sig.StopLoss.Float64()
	target, _ := sig.TakeProfit.Float64()
	assert.InDelta(t, expectedStop, stop, 0.001)
	assert.InDelta(t, expectedTarget, target, 0.001)
	assert.Equal(t, "entry", sig.Reason.Gate)
}

func TestEvaluate_NilOnFirstBar(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, zerolog.Nop())
	sig, err := s.Evaluate(baseSeries(3), 0)
	require.NoError(t, err)
	assert.Nil(t, sig)
}
