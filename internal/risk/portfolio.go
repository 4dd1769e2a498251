package risk

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
)

// PortfolioManager computes a PortfolioStatus snapshot from exchange
// balances and current prices (spec.md §4.2 "Portfolio Snapshot").
type PortfolioManager struct {
	cfg            Config
	quoteCurrency  string
	dailyPnLPct    func() float64
	weeklyPnLPct   func() float64
}

// NewPortfolioManager builds a manager. dailyPnLPct/weeklyPnLPct are
// injected so the mode arbiter's BLOCKED check can be driven by whatever
// rolling-window accounting the caller maintains (e.g. internal/db trade
// history), without this package owning persistence.
func NewPortfolioManager(cfg Config, quoteCurrency string, dailyPnLPct, weeklyPnLPct func() float64) *PortfolioManager {
	return &PortfolioManager{cfg: cfg, quoteCurrency: quoteCurrency, dailyPnLPct: dailyPnLPct, weeklyPnLPct: weeklyPnLPct}
}

// Snapshot builds the PortfolioStatus spec.md §4.2 steps 1-6 describe.
func (m *PortfolioManager) Snapshot(ctx context.Context, exchange domain.ExchangePort) (domain.PortfolioStatus, error) {
	quoteBal, err := exchange.GetBalance(ctx, m.quoteCurrency)
	if err != nil {
		return domain.PortfolioStatus{}, fmt.Errorf("risk: read quote balance: %w", err)
	}

	balances, err := exchange.GetBalances(ctx)
	if err != nil {
		return domain.PortfolioStatus{}, fmt.Errorf("risk: list balances: %w", err)
	}

	var positions []domain.Position
	totalInvested := decimal.Zero
	currentValue := decimal.Zero

	for _, b := range balances {
		if b.Currency == m.quoteCurrency {
			continue
		}
		total := b.Total.Add(b.Locked)
		if total.IsZero() {
			continue
		}
		price, err := exchange.GetCurrentPrice(ctx, b.Currency)
		if err != nil {
			continue // degrade gracefully; this balance just won't appear as a position
		}
		value := total.Mul(price)
		if value.LessThan(m.cfg.MinPositionValue) {
			continue
		}
		positions = append(positions, domain.Position{
			Ticker:       b.Currency,
			Amount:       total,
			CurrentPrice: price,
		})
		currentValue = currentValue.Add(value)
	}

	status := domain.PortfolioStatus{
		Cash:          quoteBal.Available,
		TotalInvested: totalInvested,
		CurrentValue:  currentValue,
		PnL:           currentValue.Sub(totalInvested),
		PositionCount: len(positions),
		Positions:     positions,
	}

	status.TradingMode = m.selectMode(status)
	status.CanOpenNewPosition = status.TradingMode == domain.ModeEntry

	totalCapital := status.Cash.Add(status.CurrentValue)
	status.AvailableCapital, status.CapitalPerPosition = m.availableCapital(status, totalCapital)

	return status, nil
}

// selectMode is spec.md §4.2 step 5.
func (m *PortfolioManager) selectMode(status domain.PortfolioStatus) domain.TradingMode {
	if m.dailyPnLPct != nil && m.dailyPnLPct() <= m.cfg.DailyLossLimitPct {
		return domain.ModeBlocked
	}
	if m.weeklyPnLPct != nil && m.weeklyPnLPct() <= m.cfg.WeeklyLossLimitPct {
		return domain.ModeBlocked
	}
	if status.PositionCount < m.cfg.MaxPositions && status.Cash.GreaterThanOrEqual(m.cfg.MinPositionValue) {
		return domain.ModeEntry
	}
	return domain.ModeManagement
}

// availableCapital is spec.md §4.2 step 6.
func (m *PortfolioManager) availableCapital(status domain.PortfolioStatus, totalCapital decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	reserve := totalCapital.Mul(decimal.NewFromFloat(m.cfg.ReserveRatio))
	byReserve := status.Cash.Sub(reserve)
	byAllocation := totalCapital.Mul(decimal.NewFromFloat(m.cfg.MaxAllocationPerCoin))

	available := byReserve
	if byAllocation.LessThan(available) {
		available = byAllocation
	}
	if available.IsNegative() {
		available = decimal.Zero
	}

	remainingSlots := m.cfg.MaxPositions - status.PositionCount
	if remainingSlots <= 0 {
		return available, decimal.Zero
	}
	perPosition := available.Div(decimal.NewFromInt(int64(remainingSlots)))
	return available, perPosition
}
