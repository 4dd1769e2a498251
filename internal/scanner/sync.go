package scanner

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/ohlcvcache"
)

// syncResult is one ticker's phase-3 outcome: either enough daily history to
// backtest, or a reason it was downgraded rather than failing the whole
// scan.
type syncResult struct {
	ticker string
	series *domain.OHLCVSeries
	err    error
}

// minGapBars is fetched even when the cache's last timestamp is only hours
// old, so a same-day re-scan still pulls today's still-forming daily candle
// rather than requesting zero bars.
const minGapBars = 2

// dataSync is spec.md §4.7 phase 3: for every survivor, bring its cached
// daily history up to date, bounded by a semaphore (errgroup.SetLimit) so
// the scan never opens more than opts.Concurrency exchange requests at
// once, and by a per-ticker timeout so one slow ticker can't stall the bulk
// timeout. Grounded on internal/market/sync.go's syncAll/syncSymbol shape
// (a bulk driver fanning out to one fetch-per-symbol, each wrapped in its
// own deadline, failures logged and skipped rather than propagated) and
// internal/ohlcvcache.Store's Load/LastTimestamp/Merge trio for the
// incremental part: a ticker already cached only needs the gap since its
// last stored candle re-fetched, not the full opts.Window every tick.
// cache may be nil (falls back to a full opts.Window fetch per ticker,
// held only in memory for this scan, same as before the cache existed).
func dataSync(ctx context.Context, exchange domain.ExchangePort, cache *ohlcvcache.Store, tickers []string, opts SyncOptions) map[string]*domain.OHLCVSeries {
	bulkCtx, cancel := context.WithTimeout(ctx, opts.BulkTimeout)
	defer cancel()

	fullBarCount := int(opts.Window/(24*time.Hour)) + 1

	results := make([]syncResult, len(tickers))
	group, gctx := errgroup.WithContext(bulkCtx)
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	group.SetLimit(concurrency)

	for i, ticker := range tickers {
		i, ticker := i, ticker
		group.Go(func() error {
			tickerCtx, tickerCancel := context.WithTimeout(gctx, opts.PerTickerTimeout)
			defer tickerCancel()

			barCount := fullBarCount
			var lastTs int64
			var hasCache bool
			if cache != nil {
				var err error
				lastTs, hasCache, err = cache.LastTimestamp(ticker, domain.Interval1d)
				if err != nil {
					hasCache = false
				}
				if hasCache {
					gap := time.Since(time.Unix(lastTs, 0).UTC())
					barCount = int(gap/(24*time.Hour)) + 1
					if barCount < minGapBars {
						barCount = minGapBars
					}
					if barCount > fullBarCount {
						barCount = fullBarCount
					}
				}
			}

			fetched, err := exchange.GetOHLCV(tickerCtx, ticker, domain.Interval1d, barCount)
			if err != nil {
				results[i] = syncResult{ticker: ticker, err: err}
				return nil // a single ticker's failure degrades, never aborts the group
			}

			if cache == nil {
				results[i] = syncResult{ticker: ticker, series: fetched}
				return nil
			}

			merged, err := cache.Merge(ticker, domain.Interval1d, fetched.Candles)
			if err != nil {
				results[i] = syncResult{ticker: ticker, err: err}
				return nil
			}

			if opts.MaxAge > 0 {
				cutoff := time.Now().Add(-opts.MaxAge)
				if purged, err := cache.PurgeOlderThan(ticker, domain.Interval1d, cutoff); err == nil {
					merged = purged
				}
			}

			results[i] = syncResult{ticker: ticker, series: merged}
			return nil
		})
	}
	_ = group.Wait()

	synced := make(map[string]*domain.OHLCVSeries, len(tickers))
	for _, r := range results {
		if r.err != nil || r.series == nil || r.series.Len() == 0 {
			continue
		}
		synced[r.ticker] = r.series
	}
	return synced
}
