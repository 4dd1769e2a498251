// Package exchange supplies domain.ExchangePort implementations: a live
// adapter over go-binance/v2 spot trading, and an in-memory paper-trading
// mock with configurable fees and slippage for backtests/tests. Grounded on
// internal/exchange/binance.go and internal/exchange/mock.go in the teacher,
// narrowed from the teacher's own pending-order lifecycle (PlaceOrder/
// CancelOrder/GetOrder/GetOrderFills, tracked per session in internal/db) to
// domain.ExchangePort's atomic, idempotency-keyed buy/sell contract.
package exchange

import "github.com/ajitpratap0/cryptobreakout/internal/domain"

var (
	_ domain.ExchangePort = (*BinanceExchange)(nil)
	_ domain.ExchangePort = (*MockExchange)(nil)
)

// tickerToSymbol converts a domain ticker ("BTC-USDT") to the exchange's
// concatenated symbol format ("BTCUSDT").
func tickerToSymbol(ticker string) string {
	out := make([]byte, 0, len(ticker))
	for i := 0; i < len(ticker); i++ {
		if ticker[i] == '-' {
			continue
		}
		out = append(out, ticker[i])
	}
	return string(out)
}

// quoteCurrencyOf returns the part of a "BASE-QUOTE" ticker after the dash.
func quoteCurrencyOf(ticker string) string {
	for i := len(ticker) - 1; i >= 0; i-- {
		if ticker[i] == '-' {
			return ticker[i+1:]
		}
	}
	return ticker
}
