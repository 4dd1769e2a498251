package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/metrics"
)

// BinanceExchange is the live domain.ExchangePort adapter over Binance spot
// trading. Grounded on internal/exchange/binance.go, narrowed from the
// teacher's pending-order/WebSocket-fill lifecycle to domain.ExchangePort's
// atomic-buy/atomic-sell contract: ExecuteBuy and ExecuteSell place a single
// market order and return its fill, there is no separate PlaceOrder/
// GetOrder/CancelOrder round trip to track.
type BinanceExchange struct {
	client  *binance.Client
	alerts  *AlertManager
	testnet bool
	retry   RetryConfig
}

// BinanceConfig configures a BinanceExchange.
type BinanceConfig struct {
	APIKey    string
	SecretKey string
	Testnet   bool
}

// NewBinanceExchange builds a BinanceExchange.
func NewBinanceExchange(cfg BinanceConfig) *BinanceExchange {
	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.Testnet {
		binance.UseTestnet = true
		log.Info().Msg("binance exchange initialized (testnet mode)")
	} else {
		log.Warn().Msg("binance exchange initialized (live trading mode)")
	}

	return &BinanceExchange{
		client:  client,
		alerts:  NewAlertManager(),
		testnet: cfg.Testnet,
		retry:   DefaultRetryConfig(),
	}
}

// GetBalance returns one asset's free/locked/total balance.
func (b *BinanceExchange) GetBalance(ctx context.Context, currency string) (domain.BalanceInfo, error) {
	balances, err := b.GetBalances(ctx)
	if err != nil {
		return domain.BalanceInfo{}, err
	}
	for _, bal := range balances {
		if bal.Currency == currency {
			return bal, nil
		}
	}
	return domain.BalanceInfo{Currency: currency}, nil
}

// GetBalances returns every non-zero asset balance on the account.
func (b *BinanceExchange) GetBalances(ctx context.Context) ([]domain.BalanceInfo, error) {
	var account *binance.Account
	err := WithRetry(ctx, b.retry, func() error {
		var err error
		account, err = b.client.NewGetAccountService().Do(ctx)
		return err
	})
	if err != nil {
		b.alerts.SendAlert(ctx, AlertExchangeConnectionFailed(err, "binance"))
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	balances := make([]domain.BalanceInfo, 0, len(account.Balances))
	for _, bal := range account.Balances {
		free, _ := decimal.NewFromString(bal.Free)
		locked, _ := decimal.NewFromString(bal.Locked)
		if free.IsZero() && locked.IsZero() {
			continue
		}
		balances = append(balances, domain.BalanceInfo{
			Currency:  bal.Asset,
			Total:     free.Add(locked),
			Available: free,
			Locked:    locked,
		})
	}
	return balances, nil
}

// GetCurrentPrice returns the last traded price for a ticker.
func (b *BinanceExchange) GetCurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	symbol := tickerToSymbol(ticker)

	var prices []*binance.SymbolPrice
	err := WithRetry(ctx, b.retry, func() error {
		var err error
		prices, err = b.client.NewListPricesService().Symbol(symbol).Do(ctx)
		return err
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get price for %s: %w", ticker, err)
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("no price data for %s", ticker)
	}

	price, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse price %q: %w", prices[0].Price, err)
	}
	return price, nil
}

// GetOHLCV fetches the last count candles for ticker at interval.
func (b *BinanceExchange) GetOHLCV(ctx context.Context, ticker string, interval domain.Interval, count int) (*domain.OHLCVSeries, error) {
	symbol := tickerToSymbol(ticker)

	var klines []*binance.Kline
	err := WithRetry(ctx, b.retry, func() error {
		var err error
		klines, err = b.client.NewKlinesService().
			Symbol(symbol).
			Interval(string(interval)).
			Limit(count).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get klines for %s: %w", ticker, err)
	}

	candles := make([]domain.Candle, 0, len(klines))
	for _, k := range klines {
		open, _ := decimal.NewFromString(k.Open)
		high, _ := decimal.NewFromString(k.High)
		low, _ := decimal.NewFromString(k.Low)
		closeP, _ := decimal.NewFromString(k.Close)
		volume, _ := decimal.NewFromString(k.Volume)
		candles = append(candles, domain.Candle{
			Timestamp: time.Unix(0, k.OpenTime*int64(time.Millisecond)),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closeP,
			Volume:    volume,
		})
	}

	return &domain.OHLCVSeries{Ticker: ticker, Interval: interval, Candles: candles}, nil
}

// GetOrderbook fetches a top-of-book depth snapshot.
func (b *BinanceExchange) GetOrderbook(ctx context.Context, ticker string) (*domain.Orderbook, error) {
	symbol := tickerToSymbol(ticker)

	var depth *binance.DepthResponse
	err := WithRetry(ctx, b.retry, func() error {
		var err error
		depth, err = b.client.NewDepthService().Symbol(symbol).Limit(20).Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get orderbook for %s: %w", ticker, err)
	}

	return &domain.Orderbook{
		Ticker:    ticker,
		Timestamp: time.Now(),
		Bids:      convertDepthLevels(depth.Bids),
		Asks:      convertDepthLevels(depth.Asks),
	}, nil
}

func convertDepthLevels(levels []binance.Bid) []domain.OrderbookLevel {
	out := make([]domain.OrderbookLevel, 0, len(levels))
	for _, lvl := range levels {
		price, _ := decimal.NewFromString(lvl.Price)
		qty, _ := decimal.NewFromString(lvl.Quantity)
		out = append(out, domain.OrderbookLevel{Price: price, Volume: qty})
	}
	return out
}

// ExecuteBuy places a market buy sized by quote-currency amount
// (quoteOrderQty), idempotent on idempotencyKey via Binance's
// newClientOrderID.
func (b *BinanceExchange) ExecuteBuy(ctx context.Context, ticker string, quoteAmount decimal.Decimal, idempotencyKey string) (*domain.TradeResult, error) {
	return b.executeMarketOrder(ctx, ticker, binance.SideTypeBuy, quoteAmount, true, idempotencyKey)
}

// ExecuteSell places a market sell sized by base-currency amount. A nil
// baseAmount sells the exchange-reported free balance of the ticker's base
// asset (a full exit).
func (b *BinanceExchange) ExecuteSell(ctx context.Context, ticker string, baseAmount *decimal.Decimal, idempotencyKey string) (*domain.TradeResult, error) {
	amount := decimal.Zero
	if baseAmount != nil {
		amount = *baseAmount
	} else {
		bal, err := b.GetBalance(ctx, baseAssetOf(ticker))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve full-exit balance for %s: %w", ticker, err)
		}
		amount = bal.Available
	}
	return b.executeMarketOrder(ctx, ticker, binance.SideTypeSell, amount, false, idempotencyKey)
}

func baseAssetOf(ticker string) string {
	for i := 0; i < len(ticker); i++ {
		if ticker[i] == '-' {
			return ticker[:i]
		}
	}
	return ticker
}

func (b *BinanceExchange) executeMarketOrder(ctx context.Context, ticker string, side binance.SideType, amount decimal.Decimal, byQuote bool, idempotencyKey string) (*domain.TradeResult, error) {
	symbol := tickerToSymbol(ticker)

	svc := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(binance.OrderTypeMarket).
		NewClientOrderID(idempotencyKey)

	if byQuote {
		svc = svc.QuoteOrderQty(amount.String())
	} else {
		svc = svc.Quantity(amount.String())
	}

	var resp *binance.CreateOrderResponse
	amountFloat, _ := amount.Float64()
	start := time.Now()
	err := WithRetry(ctx, b.retry, func() error {
		var err error
		resp, err = svc.Do(ctx)
		return err
	})
	elapsedMs := float64(time.Since(start).Milliseconds())
	metrics.RecordExchangeAPICall("binance", "create_order", elapsedMs, err)
	if err != nil {
		b.alerts.SendAlert(ctx, AlertOrderExecutionFailed(err, ticker, string(side), amountFloat))
		return nil, fmt.Errorf("failed to execute %s order for %s: %w", side, ticker, err)
	}
	metrics.RecordOrderExecution(elapsedMs)

	executedQty, _ := strconv.ParseFloat(resp.ExecutedQuantity, 64)
	cumQuoteQty, _ := strconv.ParseFloat(resp.CummulativeQuoteQuantity, 64)
	var avgPrice float64
	if executedQty > 0 {
		avgPrice = cumQuoteQty / executedQty
	}

	decision := domain.DecisionBuy
	if side == binance.SideTypeSell {
		decision = domain.DecisionSell
	}

	// Fills can be paid in different commission assets (e.g. BNB); summing
	// the raw figures is an approximation, matching Total's mixing of
	// executed qty and quote notional above.
	var commission float64
	for _, fill := range resp.Fills {
		c, _ := strconv.ParseFloat(fill.Commission, 64)
		commission += c
	}

	log.Info().
		Str("ticker", ticker).
		Str("side", string(side)).
		Int64("order_id", resp.OrderID).
		Float64("executed_qty", executedQty).
		Float64("avg_price", avgPrice).
		Msg("market order executed")

	return &domain.TradeResult{
		Decision:       decision,
		Price:          avgPrice,
		Amount:         executedQty,
		Total:          cumQuoteQty,
		Commission:     commission,
		IdempotencyKey: idempotencyKey,
	}, nil
}
