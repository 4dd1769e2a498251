package ohlcvcache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
)

func candle(ts time.Time, price float64) domain.Candle {
	d := decimal.NewFromFloat(price)
	return domain.Candle{Timestamp: ts, Open: d, High: d, Low: d, Close: d, Volume: decimal.NewFromInt(100)}
}

func TestStore_LoadOnColdMissReturnsNil(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)

	series, err := store.Load("BTC-USDT", domain.Interval1d)
	require.NoError(t, err)
	require.Nil(t, series)
}

func TestStore_MergeThenLoadRoundTrips(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := []domain.Candle{
		candle(base, 100),
		candle(base.Add(24*time.Hour), 105),
	}

	_, err = store.Merge("BTC-USDT", domain.Interval1d, candles)
	require.NoError(t, err)

	series, err := store.Load("BTC-USDT", domain.Interval1d)
	require.NoError(t, err)
	require.NotNil(t, series)
	require.Len(t, series.Candles, 2)
	require.True(t, series.Candles[0].Close.Equal(decimal.NewFromFloat(100)))
	require.True(t, series.Candles[1].Close.Equal(decimal.NewFromFloat(105)))
}

func TestStore_MergeDeduplicatesOnTimestampFreshWins(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = store.Merge("ETH-USDT", domain.Interval1h, []domain.Candle{candle(ts, 1000)})
	require.NoError(t, err)

	_, err = store.Merge("ETH-USDT", domain.Interval1h, []domain.Candle{candle(ts, 1050)})
	require.NoError(t, err)

	series, err := store.Load("ETH-USDT", domain.Interval1h)
	require.NoError(t, err)
	require.Len(t, series.Candles, 1)
	require.True(t, series.Candles[0].Close.Equal(decimal.NewFromFloat(1050)))
}

func TestStore_MergeKeepsResultSorted(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = store.Merge("SOL-USDT", domain.Interval15m, []domain.Candle{
		candle(base.Add(30*time.Minute), 3),
		candle(base, 1),
		candle(base.Add(15*time.Minute), 2),
	})
	require.NoError(t, err)

	series, err := store.Load("SOL-USDT", domain.Interval15m)
	require.NoError(t, err)
	require.Len(t, series.Candles, 3)
	for i := 1; i < len(series.Candles); i++ {
		require.True(t, series.Candles[i].Timestamp.After(series.Candles[i-1].Timestamp))
	}
}

func TestStore_LastTimestampReflectsMostRecentCandle(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)

	_, ok, err := store.LastTimestamp("DOGE-USDT", domain.Interval1d)
	require.NoError(t, err)
	require.False(t, ok)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = store.Merge("DOGE-USDT", domain.Interval1d, []domain.Candle{
		candle(base, 1),
		candle(base.Add(24*time.Hour), 1.1),
	})
	require.NoError(t, err)

	last, ok, err := store.LastTimestamp("DOGE-USDT", domain.Interval1d)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, base.Add(24*time.Hour).Unix(), last)
}

func TestStore_PersistsAcrossNewStoreInstances(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")

	store1, err := NewStore(dir)
	require.NoError(t, err)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = store1.Merge("BTC-USDT", domain.Interval1d, []domain.Candle{candle(ts, 100)})
	require.NoError(t, err)

	store2, err := NewStore(dir)
	require.NoError(t, err)
	series, err := store2.Load("BTC-USDT", domain.Interval1d)
	require.NoError(t, err)
	require.NotNil(t, series)
	require.Len(t, series.Candles, 1)
}
