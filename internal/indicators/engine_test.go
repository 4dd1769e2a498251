package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
)

func flatSeries(n int, price float64) *domain.OHLCVSeries {
	candles := make([]domain.Candle, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		candles[i] = domain.Candle{
			Timestamp: base.AddDate(0, 0, i),
			Open:      decimal.NewFromFloat(price),
			High:      decimal.NewFromFloat(price + 0.5),
			Low:       decimal.NewFromFloat(price - 0.5),
			Close:     decimal.NewFromFloat(price),
			Volume:    decimal.NewFromFloat(100),
		}
	}
	return &domain.OHLCVSeries{Ticker: "TEST", Interval: domain.Interval1d, Candles: candles}
}

func TestCompute_EmptySeriesErrors(t *testing.T) {
	svc := NewService(zerolog.Nop())
	_, err := svc.Compute(&domain.OHLCVSeries{}, DefaultConfig())
	assert.Error(t, err)
}

func TestCompute_FlatSeriesBollingerWidthZero(t *testing.T) {
	svc := NewService(zerolog.Nop())
	series := flatSeries(40, 100)

	out, err := svc.Compute(series, DefaultConfig())
	require.NoError(t, err)

	last := len(out.Close) - 1
	assert.InDelta(t, 0, out.StdDev20[last], 1e-9)
	assert.InDelta(t, 0, out.BBWidth[last], 1e-9)
}

func TestCompute_DonchianHighExcludesCurrentBar(t *testing.T) {
	svc := NewService(zerolog.Nop())
	series := flatSeries(30, 100)
	// spike the final bar's high; Donchian at that index must not see it.
	last := len(series.Candles) - 1
	series.Candles[last].High = decimal.NewFromFloat(999)

	out, err := svc.Compute(series, DefaultConfig())
	require.NoError(t, err)

	assert.Less(t, out.DonchianHigh[last], 200.0)
}

func TestCompute_OBVAccumulatesWithDirection(t *testing.T) {
	svc := NewService(zerolog.Nop())
	series := flatSeries(10, 100)
	for i := 1; i < 10; i++ {
		series.Candles[i].Close = decimal.NewFromFloat(100 + float64(i))
	}

	out, err := svc.Compute(series, DefaultConfig())
	require.NoError(t, err)

	for i := 1; i < 10; i++ {
		assert.Greater(t, out.OBV[i], out.OBV[i-1])
	}
}

func TestCompute_WarmupColumnsAreNaN(t *testing.T) {
	svc := NewService(zerolog.Nop())
	series := flatSeries(5, 100)

	out, err := svc.Compute(series, DefaultConfig())
	require.NoError(t, err)

	assert.True(t, math.IsNaN(out.SMA20[0]))
	assert.True(t, math.IsNaN(out.DonchianHigh[4]))
}

func TestLatest_ReturnsFinalBarSnapshot(t *testing.T) {
	svc := NewService(zerolog.Nop())
	series := flatSeries(40, 100)

	out, err := svc.Compute(series, DefaultConfig())
	require.NoError(t, err)

	snap := out.Latest()
	assert.InDelta(t, out.SMA20[len(out.Close)-1], snap.SMA20, 1e-9)
}
