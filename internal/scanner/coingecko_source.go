package scanner

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/market"
)

// coinInfoGetter is satisfied by both *market.CoinGeckoClient and
// *market.CachedCoinGeckoClient — passing the latter gets a scan cycle's
// repeated GetCoinInfo calls a Redis-backed TTL hit instead of a CoinGecko
// round trip every time, with no change needed here.
type coinInfoGetter interface {
	GetCoinInfo(ctx context.Context, coinID string) (*market.CoinInfo, error)
}

// CoinGeckoSource adapts an internal/market CoinGecko client into a
// LiquiditySource. symbolIDs maps a base symbol (e.g. "BTC") to the
// CoinGecko coin id (e.g. "bitcoin") the client's endpoints key on;
// CoinGeckoClient has no bulk "list every coin id" call in this pack, so the
// universe is the configured key set of this map rather than a live fetch.
type CoinGeckoSource struct {
	client    coinInfoGetter
	symbolIDs map[string]string
}

// NewCoinGeckoSource builds the adapter. Pass a *market.CachedCoinGeckoClient
// to get Redis-backed caching across the scanner's per-ticker snapshot
// calls; symbolIDs is typically the same operator-maintained table that
// feeds internal/market's CoinGecko sync tooling.
func NewCoinGeckoSource(client coinInfoGetter, symbolIDs map[string]string) *CoinGeckoSource {
	return &CoinGeckoSource{client: client, symbolIDs: symbolIDs}
}

func (c *CoinGeckoSource) Universe() []string {
	symbols := make([]string, 0, len(c.symbolIDs))
	for symbol := range c.symbolIDs {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// Snapshot fetches CoinGecko's /coins/{id} payload and pulls the 24h volume,
// current price, and 24h change percentage out of its untyped
// market_data map — GetCoinInfo's CoinInfo.MarketData is
// map[string]interface{} since the teacher's client never typed the
// per-field shape of CoinGecko's market_data object, only the envelope
// around it (id/symbol/name/description/links).
func (c *CoinGeckoSource) Snapshot(ctx context.Context, baseSymbol, quoteCurrency string) (domain.CoinInfo, error) {
	id, ok := c.symbolIDs[baseSymbol]
	if !ok {
		return domain.CoinInfo{}, fmt.Errorf("no coingecko id configured for symbol %s", baseSymbol)
	}

	info, err := c.client.GetCoinInfo(ctx, id)
	if err != nil {
		return domain.CoinInfo{}, fmt.Errorf("coingecko coin info for %s: %w", baseSymbol, err)
	}

	quoteKey := marketDataCurrencyKey(quoteCurrency)
	price := nestedFloat(info.MarketData, "current_price", quoteKey)
	volume := nestedFloat(info.MarketData, "total_volume", quoteKey)
	change := flatFloat(info.MarketData, "price_change_percentage_24h")

	return domain.CoinInfo{
		Ticker:         fmt.Sprintf("%s-%s", baseSymbol, quoteCurrency),
		Symbol:         baseSymbol,
		Price:          decimal.NewFromFloat(price),
		Volume24hQuote: decimal.NewFromFloat(volume),
		Change24h:      change,
	}, nil
}

// marketDataCurrencyKey maps the quote-currency ticker convention this
// system uses (upper-case, e.g. "USDT", "KRW") onto the lower-case currency
// key CoinGecko's market_data sub-objects use ("usdt", "krw"). CoinGecko has
// no direct USDT quote in most of its nested objects; operators pairing
// against a stablecoin quote should configure "usd" here via a
// quoteCurrency of "USD" and translate at the exchange port boundary.
func marketDataCurrencyKey(quoteCurrency string) string {
	switch quoteCurrency {
	case "USDT", "USDC", "BUSD":
		return "usd"
	default:
		return toLowerASCII(quoteCurrency)
	}
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// nestedFloat reads marketData[outerKey][innerKey] as a float64, tolerating
// the map[string]interface{}/map[string]float64 shapes encoding/json
// produces for a nested currency object.
func nestedFloat(marketData map[string]interface{}, outerKey, innerKey string) float64 {
	outer, ok := marketData[outerKey]
	if !ok {
		return 0
	}
	switch v := outer.(type) {
	case map[string]interface{}:
		if f, ok := v[innerKey].(float64); ok {
			return f
		}
	case map[string]float64:
		return v[innerKey]
	}
	return 0
}

// flatFloat reads marketData[key] as a float64 directly (no currency
// nesting), the shape CoinGecko uses for percentage-change fields.
func flatFloat(marketData map[string]interface{}, key string) float64 {
	if f, ok := marketData[key].(float64); ok {
		return f
	}
	return 0
}
