package scanner

import (
	"context"
	"sort"
	"strings"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
)

// LiquiditySource is the scanner's phase-1 data dependency: a 24h price,
// change, and quote-volume snapshot per ticker. Kept separate from
// domain.ExchangePort (the core trading port every pipeline stage already
// depends on) rather than extended onto it, since ExchangePort's contract is
// per-ticker trading operations and has no notion of "list everything
// tradable" — a scanner-local port lets this concern be satisfied by a
// market-data provider (internal/market.CoinGeckoClient below) without
// widening the surface every stage's mock has to implement.
type LiquiditySource interface {
	// Universe returns every candidate base symbol the scanner should
	// consider (the operator-configured tradable set; no CoinGecko-style
	// provider in the pack exposes a single "every instrument on this
	// exchange" call, so the candidate list itself is configuration, not a
	// live fetch).
	Universe() []string
	// Snapshot fetches one symbol's current 24h price/volume/change summary
	// quoted in quoteCurrency.
	Snapshot(ctx context.Context, baseSymbol, quoteCurrency string) (domain.CoinInfo, error)
}

// denylistPatterns are substrings that mark a symbol as a stablecoin or a
// leveraged token rather than a spot coin, matching the original system's
// multi-pattern filter list (supplemented from original_source/, spec.md's
// distillation only says "filter out stablecoins and leverage tokens").
var denylistPatterns = []string{
	"USDT", "USDC", "BUSD", "DAI", "TUSD",
	"UP", "DOWN", "BULL", "BEAR", "3L", "3S",
}

// isDenylisted reports whether symbol looks like a stablecoin or leverage
// token and should never reach the liquidity ranking.
func isDenylisted(symbol string) bool {
	upper := strings.ToUpper(symbol)
	for _, pattern := range denylistPatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}

// liquidityScan is spec.md §4.7 phase 1: fetch every candidate's 24h
// summary, drop stablecoins/leverage tokens and thin volume, sort
// descending by quote volume, keep the top N.
func liquidityScan(ctx context.Context, source LiquiditySource, cfg Config) []domain.CoinInfo {
	candidates := make([]domain.CoinInfo, 0)

	for _, symbol := range source.Universe() {
		if isDenylisted(symbol) {
			continue
		}

		info, err := source.Snapshot(ctx, symbol, cfg.QuoteCurrency)
		if err != nil {
			continue // degrade: one bad symbol never fails the scan
		}

		volume, _ := info.Volume24hQuote.Float64()
		if volume < cfg.MinVolumeQuote {
			continue
		}

		candidates = append(candidates, info)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Volume24hQuote.GreaterThan(candidates[j].Volume24hQuote)
	})

	topN := cfg.LiquidityTopN
	if topN <= 0 || topN > len(candidates) {
		topN = len(candidates)
	}
	return candidates[:topN]
}

// enrichVolatility fills in the optional 7-day ATR-based volatility field
// phase 1 names ("optionally enrich the top-N") from each survivor's daily
// chart, fetched through the exchange port the rest of the pipeline already
// uses — liquidity/volume came from the market-data source above, but
// volatility is computed from the same OHLCV history every other stage
// reads, so it goes through domain.ExchangePort rather than a second
// price-history source.
func enrichVolatility(ctx context.Context, exchange domain.ExchangePort, info domain.CoinInfo) domain.CoinInfo {
	series, err := exchange.GetOHLCV(ctx, info.Ticker, domain.Interval1d, 8)
	if err != nil || series.Len() < 2 {
		return info
	}

	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()

	var trSum float64
	for i := 1; i < len(closes); i++ {
		high, low, prevClose := highs[i], lows[i], closes[i-1]
		tr := high - low
		if v := high - prevClose; v > tr {
			tr = v
		}
		if v := prevClose - low; v > tr {
			tr = v
		}
		trSum += tr
	}
	atr7 := trSum / float64(len(closes)-1)

	last := closes[len(closes)-1]
	if last > 0 {
		info.Volatility7dATR = atr7 / last
	}
	return info
}

// baseSymbol splits "BTC-USDT" into "BTC", the convention domain.CoinInfo.
// Ticker and every other pipeline ticker string use.
func baseSymbol(ticker string) string {
	if i := strings.IndexByte(ticker, '-'); i >= 0 {
		return ticker[:i]
	}
	return ticker
}
