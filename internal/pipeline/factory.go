package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/cryptobreakout/internal/audit"
	"github.com/ajitpratap0/cryptobreakout/internal/backtest"
	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/risk"
	"github.com/ajitpratap0/cryptobreakout/internal/strategy"
)

// HybridConfig bundles everything the two factories need to wire a full
// pipeline: risk tunables, the shared strategy instance, the backtest gate
// thresholds, and the ports every tick runs against.
type HybridConfig struct {
	Risk            risk.Config
	Strategy        *strategy.Strategy
	Backtest        backtest.Config
	QuoteCurrency   string
	ReferenceTicker string
	FallbackTicker  string

	DailyPnLPct  func() float64
	WeeklyPnLPct func() float64

	ScannerEnabled bool
	Scanner        Scanner

	// AuditLogger persists every closed Trade (§8 invariant 2) to the
	// append-only ledger. Nil is valid: both sell call sites still update
	// the tick's TradeResult, they just don't write a durable row.
	AuditLogger *audit.Logger
}

// NewHybrid builds the full spec.md §4.1-§4.5 four-stage pipeline: the mode
// arbiter may invoke the multi-coin scanner in ENTRY mode.
func NewHybrid(cfg HybridConfig, log zerolog.Logger) *Pipeline {
	return New(log,
		NewHybridRiskCheck(cfg.Risk, cfg.QuoteCurrency, cfg.DailyPnLPct, cfg.WeeklyPnLPct, cfg.ScannerEnabled, cfg.Scanner, cfg.FallbackTicker, cfg.AuditLogger, log),
		NewDataCollection(cfg.ReferenceTicker, log),
		NewAnalysis(cfg.Strategy, cfg.Backtest, log),
		NewExecution(cfg.Strategy, cfg.AuditLogger, time.Duration(cfg.Risk.MinTradeIntervalHours*float64(time.Hour)), log),
	)
}

// NewSingleTicker builds the degenerate variant spec.md §4.1 names: the mode
// arbiter never scans, always falling back to one configured ticker in
// ENTRY mode (cfg.ScannerEnabled/cfg.Scanner are ignored).
func NewSingleTicker(cfg HybridConfig, log zerolog.Logger) *Pipeline {
	cfg.ScannerEnabled = false
	cfg.Scanner = nil
	return NewHybrid(cfg, log)
}

// RunTick constructs a fresh TickContext for ticker and runs the pipeline
// over it, enforcing the spec.md §5 3-minute global tick deadline.
func RunTick(ctx context.Context, p *Pipeline, ticker string, ports domain.Ports) *domain.TickContext {
	now := time.Now()
	tick := domain.NewTickContext(ticker, ports, now, TickBudget)

	deadlineCtx, cancel := context.WithDeadline(ctx, tick.Deadline)
	defer cancel()

	return p.Run(deadlineCtx, tick)
}
