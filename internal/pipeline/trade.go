package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/cryptobreakout/internal/audit"
	"github.com/ajitpratap0/cryptobreakout/internal/domain"
)

// buildTrade turns one closed sell into the append-only domain.Trade spec §8
// invariant 2 requires: "after any execute_sell, exactly one Trade is
// appended ... realised pnl equals size·(exit_price·(1−slippage) −
// entry_price) − total_commission". result.Price is already the
// slippage-adjusted fill; commission is the exchange port's own fee report.
func buildTrade(ticker string, entryPrice decimal.Decimal, entryTime, exitTime time.Time, result *domain.TradeResult) domain.Trade {
	size := decimal.NewFromFloat(result.Amount)
	exitPrice := decimal.NewFromFloat(result.Price)
	commission := decimal.NewFromFloat(result.Commission)

	return domain.Trade{
		Ticker:        ticker,
		EntryPrice:    entryPrice,
		EntryTime:     entryTime,
		ExitPrice:     exitPrice,
		ExitTime:      exitTime,
		Size:          size,
		RealizedPnL:   size.Mul(exitPrice.Sub(entryPrice)).Sub(commission),
		Commission:    commission,
		HoldingPeriod: exitTime.Sub(entryTime),
		ExitTrigger:   result.ExitTrigger,
	}
}

// persistTrade records the trade to the append-only ledger and mirrors its
// realised pnl back onto the TradeResult the caller already attached to the
// tick, so stage logging and downstream consumers see the same number
// PersistTrade wrote. auditLogger may be nil (e.g. in tests); a nil logger
// is a no-op, matching audit.Logger's own nil-db no-op.
func persistTrade(ctx context.Context, auditLogger *audit.Logger, log zerolog.Logger, trade domain.Trade, result *domain.TradeResult) {
	pnl, _ := trade.RealizedPnL.Float64()
	result.RealizedPnL = pnl

	if auditLogger == nil {
		return
	}
	if err := auditLogger.PersistTrade(ctx, &trade); err != nil {
		log.Error().Str("ticker", trade.Ticker).Err(err).Msg("failed to persist closed trade")
	}
}
