package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/cryptobreakout/internal/config"
	"github.com/ajitpratap0/cryptobreakout/internal/domain"
)

// MockExchange is an in-memory domain.ExchangePort for paper trading and
// tests. Grounded on internal/exchange/mock.go in the teacher: keeps its
// slippage/market-impact fill simulation (calculateSlippage) verbatim in
// spirit, but fills happen synchronously inside ExecuteBuy/ExecuteSell
// instead of through PlaceOrder plus a separate fill-simulation step, since
// domain.ExchangePort has no pending-order state to simulate into. Candle/
// orderbook data and starting balances are injected by the caller (the
// live pipeline seeds them from a real feed once per tick; tests seed them
// directly) rather than persisted to a database, since paper trading here
// has no session/position bookkeeping of its own — domain.Portfolio owns
// that inside internal/pipeline.
type MockExchange struct {
	mu sync.RWMutex

	balances map[string]decimal.Decimal // currency -> available balance
	prices   map[string]decimal.Decimal // ticker -> last price
	ohlcv    map[string]*domain.OHLCVSeries
	books    map[string]*domain.Orderbook

	baseSlippage float64
	marketImpact float64
	maxSlippage  float64
	makerFee     float64
	takerFee     float64
}

// NewMockExchange creates a mock exchange with Binance-like default fees.
func NewMockExchange(_ interface{}) *MockExchange {
	defaultFees := config.FeeConfig{
		Maker:        0.001,
		Taker:        0.001,
		BaseSlippage: 0.0005,
		MarketImpact: 0.0001,
		MaxSlippage:  0.003,
	}
	return NewMockExchangeWithFees(nil, defaultFees)
}

// NewMockExchangeWithFees creates a mock exchange with a custom fee/slippage
// profile. The first argument is accepted for signature parity with the
// teacher's database-backed constructor but is unused: paper trading keeps
// no database-backed state.
func NewMockExchangeWithFees(_ interface{}, fees config.FeeConfig) *MockExchange {
	log.Info().
		Float64("maker_fee", fees.Maker).
		Float64("taker_fee", fees.Taker).
		Float64("base_slippage", fees.BaseSlippage).
		Msg("mock exchange initialized (paper trading mode)")

	return &MockExchange{
		balances: make(map[string]decimal.Decimal),
		prices:   make(map[string]decimal.Decimal),
		ohlcv:    make(map[string]*domain.OHLCVSeries),
		books:    make(map[string]*domain.Orderbook),

		baseSlippage: fees.BaseSlippage,
		marketImpact: fees.MarketImpact,
		maxSlippage:  fees.MaxSlippage,
		makerFee:     fees.Maker,
		takerFee:     fees.Taker,
	}
}

// SetBalance seeds a currency's available balance for paper trading.
func (m *MockExchange) SetBalance(currency string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[currency] = amount
}

// SetMarketPrice seeds the current mid price used to fill market orders.
func (m *MockExchange) SetMarketPrice(ticker string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[ticker] = decimal.NewFromFloat(price)
}

// SetOHLCV seeds the candle series GetOHLCV returns for a ticker.
func (m *MockExchange) SetOHLCV(ticker string, series *domain.OHLCVSeries) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ohlcv[ticker] = series
}

// SetOrderbook seeds the depth snapshot GetOrderbook returns for a ticker.
func (m *MockExchange) SetOrderbook(ticker string, book *domain.Orderbook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[ticker] = book
}

// GetBalance returns one currency's balance.
func (m *MockExchange) GetBalance(_ context.Context, currency string) (domain.BalanceInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bal, ok := m.balances[currency]
	if !ok {
		return domain.BalanceInfo{Currency: currency}, nil
	}
	return domain.BalanceInfo{Currency: currency, Total: bal, Available: bal}, nil
}

// GetBalances returns every seeded non-zero balance.
func (m *MockExchange) GetBalances(_ context.Context) ([]domain.BalanceInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.BalanceInfo, 0, len(m.balances))
	for currency, bal := range m.balances {
		if bal.IsZero() {
			continue
		}
		out = append(out, domain.BalanceInfo{Currency: currency, Total: bal, Available: bal})
	}
	return out, nil
}

// GetCurrentPrice returns the seeded market price for ticker.
func (m *MockExchange) GetCurrentPrice(_ context.Context, ticker string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	price, ok := m.prices[ticker]
	if !ok {
		return decimal.Zero, fmt.Errorf("no market price seeded for %s", ticker)
	}
	return price, nil
}

// GetOHLCV returns the last count candles of the seeded series for ticker.
func (m *MockExchange) GetOHLCV(_ context.Context, ticker string, interval domain.Interval, count int) (*domain.OHLCVSeries, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	series, ok := m.ohlcv[ticker]
	if !ok {
		return nil, fmt.Errorf("no OHLCV data seeded for %s", ticker)
	}

	candles := series.Candles
	if len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	return &domain.OHLCVSeries{Ticker: ticker, Interval: interval, Candles: candles}, nil
}

// GetOrderbook returns the seeded depth snapshot for ticker.
func (m *MockExchange) GetOrderbook(_ context.Context, ticker string) (*domain.Orderbook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	book, ok := m.books[ticker]
	if !ok {
		return nil, fmt.Errorf("no orderbook seeded for %s", ticker)
	}
	return book, nil
}

// ExecuteBuy fills a market buy against the seeded price, applying slippage
// and the taker fee, and debits/credits balances accordingly.
func (m *MockExchange) ExecuteBuy(_ context.Context, ticker string, quoteAmount decimal.Decimal, idempotencyKey string) (*domain.TradeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mid, ok := m.prices[ticker]
	if !ok {
		return nil, fmt.Errorf("no market price seeded for %s", ticker)
	}
	if quoteAmount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("quote amount must be positive")
	}

	quoteF, _ := quoteAmount.Float64()
	midF, _ := mid.Float64()
	slippage := m.calculateSlippage(quoteF/midF, midF)
	fillPrice := midF * (1 + slippage)

	fee := quoteF * m.takerFee
	baseQty := (quoteF - fee) / fillPrice

	quote := quoteCurrencyOf(ticker)
	base := baseAssetOf(ticker)
	m.balances[quote] = m.balances[quote].Sub(quoteAmount)
	m.balances[base] = m.balances[base].Add(decimal.NewFromFloat(baseQty))

	log.Info().
		Str("ticker", ticker).
		Float64("quote_amount", quoteF).
		Float64("fill_price", fillPrice).
		Float64("base_qty", baseQty).
		Float64("slippage_pct", slippage*100).
		Msg("paper buy filled")

	return &domain.TradeResult{
		Decision:       domain.DecisionBuy,
		Price:          fillPrice,
		Amount:         baseQty,
		Total:          quoteF,
		Commission:     fee,
		IdempotencyKey: idempotencyKey,
	}, nil
}

// ExecuteSell fills a market sell against the seeded price, applying
// slippage and the taker fee. A nil baseAmount sells the full available
// balance of the ticker's base asset.
func (m *MockExchange) ExecuteSell(_ context.Context, ticker string, baseAmount *decimal.Decimal, idempotencyKey string) (*domain.TradeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mid, ok := m.prices[ticker]
	if !ok {
		return nil, fmt.Errorf("no market price seeded for %s", ticker)
	}

	base := baseAssetOf(ticker)
	quote := quoteCurrencyOf(ticker)

	amount := m.balances[base]
	if baseAmount != nil {
		amount = *baseAmount
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("sell amount must be positive")
	}

	amountF, _ := amount.Float64()
	midF, _ := mid.Float64()
	slippage := m.calculateSlippage(amountF, midF)
	fillPrice := midF * (1 - slippage)

	proceeds := amountF * fillPrice
	fee := proceeds * m.takerFee
	netProceeds := proceeds - fee

	m.balances[base] = m.balances[base].Sub(amount)
	m.balances[quote] = m.balances[quote].Add(decimal.NewFromFloat(netProceeds))

	log.Info().
		Str("ticker", ticker).
		Float64("base_amount", amountF).
		Float64("fill_price", fillPrice).
		Float64("net_proceeds", netProceeds).
		Float64("slippage_pct", slippage*100).
		Msg("paper sell filled")

	return &domain.TradeResult{
		Decision:       domain.DecisionSell,
		Price:          fillPrice,
		Amount:         amountF,
		Total:          netProceeds,
		Commission:     fee,
		IdempotencyKey: idempotencyKey,
	}, nil
}

// calculateSlippage scales base slippage by order size relative to price,
// capped at maxSlippage. Unchanged from the teacher's calculateSlippage.
func (m *MockExchange) calculateSlippage(quantity, price float64) float64 {
	orderSize := quantity * price
	normalizedSize := orderSize / 1000000.0
	impact := m.marketImpact * normalizedSize

	total := m.baseSlippage + impact
	if total > m.maxSlippage {
		total = m.maxSlippage
	}
	return total
}
