package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceInfo is one currency's balance on the exchange.
type BalanceInfo struct {
	Currency  string
	Total     decimal.Decimal
	Available decimal.Decimal
	Locked    decimal.Decimal
}

// ExchangePort is the core's only view of the venue. The concrete adapter
// (REST/websocket client) lives outside the core per spec.md §1.
type ExchangePort interface {
	GetBalance(ctx context.Context, currency string) (BalanceInfo, error)
	GetBalances(ctx context.Context) ([]BalanceInfo, error)
	GetCurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
	GetOHLCV(ctx context.Context, ticker string, interval Interval, count int) (*OHLCVSeries, error)
	GetOrderbook(ctx context.Context, ticker string) (*Orderbook, error)
	ExecuteBuy(ctx context.Context, ticker string, quoteAmount decimal.Decimal, idempotencyKey string) (*TradeResult, error)
	ExecuteSell(ctx context.Context, ticker string, baseAmount *decimal.Decimal, idempotencyKey string) (*TradeResult, error)
}

// AIPort is the strict-JSON chat completion boundary.
type AIPort interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, jsonSchema map[string]interface{}) (map[string]interface{}, error)
}

// MarketDataPort supplies optional market-wide signals.
type MarketDataPort interface {
	GetFearGreedIndex(ctx context.Context) (FearGreed, error)
}

// IdempotencyPort deduplicates order submissions by key.
type IdempotencyPort interface {
	CheckKey(ctx context.Context, key string) (bool, error)
	MarkKey(ctx context.Context, key string, ttl time.Duration) error
	CleanupExpired(ctx context.Context) error
}

// LockPort enforces at-most-one in-flight pipeline per (bot, ticker).
type LockPort interface {
	Acquire(ctx context.Context, name string) (bool, error)
	Release(ctx context.Context, name string) error
	IsLocked(ctx context.Context, name string) (bool, error)
}
