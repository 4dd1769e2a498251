package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/metrics"
)

// PersistTrade appends a closed Trade to the append-only trades table
// (migrations/002_trades.sql). Spec §8 invariant 2: every execute_sell
// appends exactly one Trade; this is the durable side of that invariant —
// domain.Portfolio.ClosedTrades holds the in-process copy for the life of
// the pipeline, this table holds it forever. A no-op when the logger has
// no database pool, matching Log's behavior for generic events.
func (l *Logger) PersistTrade(ctx context.Context, trade *domain.Trade) error {
	if l.db == nil {
		return nil
	}

	query := `
		INSERT INTO trades (
			id, ticker, entry_price, entry_time, exit_price, exit_time,
			size, realized_pnl, commission, holding_period_seconds, exit_trigger
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	start := time.Now()
	_, err := l.db.Exec(ctx, query,
		uuid.New(),
		trade.Ticker,
		trade.EntryPrice,
		trade.EntryTime,
		trade.ExitPrice,
		trade.ExitTime,
		trade.Size,
		trade.RealizedPnL,
		trade.Commission,
		int64(trade.HoldingPeriod.Seconds()),
		string(trade.ExitTrigger),
	)
	metrics.RecordDatabaseQuery("trade_insert", float64(time.Since(start).Milliseconds()))
	if err != nil {
		return fmt.Errorf("failed to persist trade for %s: %w", trade.Ticker, err)
	}

	return nil
}

// QueryTrades retrieves closed trades for a ticker, most recent first, for
// reporting and reconciliation. limit <= 0 returns every row.
func (l *Logger) QueryTrades(ctx context.Context, ticker string, limit int) ([]domain.Trade, error) {
	if l.db == nil {
		return nil, nil
	}

	query := `
		SELECT ticker, entry_price, entry_time, exit_price, exit_time,
		       size, realized_pnl, commission, holding_period_seconds, exit_trigger
		FROM trades
		WHERE ($1 = '' OR ticker = $1)
		ORDER BY exit_time DESC
	`
	args := []interface{}{ticker}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	start := time.Now()
	rows, err := l.db.Query(ctx, query, args...)
	metrics.RecordDatabaseQuery("trade_query", float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var holdingSeconds int64
		var exitTrigger string

		if err := rows.Scan(
			&t.Ticker, &t.EntryPrice, &t.EntryTime, &t.ExitPrice, &t.ExitTime,
			&t.Size, &t.RealizedPnL, &t.Commission, &holdingSeconds, &exitTrigger,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		t.HoldingPeriod = time.Duration(holdingSeconds) * time.Second
		t.ExitTrigger = domain.ExitTrigger(exitTrigger)
		trades = append(trades, t)
	}

	return trades, rows.Err()
}
