// Package domain holds the core entities of the trading decision engine:
// candles, indicator series, portfolio state, signals, and the per-tick
// context stages read and write. Monetary quantities use decimal.Decimal so
// ratios keep at least 18 fractional digits and quote-currency amounts round
// the way an exchange actually settles them.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Interval tags a candle series by sampling period.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
)

// Duration returns the sampling period an interval tag represents. Unknown
// tags return zero so callers can detect and reject them.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval1m:
		return time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Candle is a single OHLCV sample. Immutable once fetched.
type Candle struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// OHLCVSeries is an ordered, gap-checked sequence of candles for one ticker
// at one interval.
type OHLCVSeries struct {
	Ticker   string
	Interval Interval
	Candles  []Candle
}

// Len returns the number of candles in the series.
func (s *OHLCVSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Candles)
}

// Closes returns the close price of every candle as float64, the shape the
// vectorised indicator engine operates on.
func (s *OHLCVSeries) Closes() []float64 {
	return s.column(func(c Candle) decimal.Decimal { return c.Close })
}

// Highs returns the high price of every candle as float64.
func (s *OHLCVSeries) Highs() []float64 {
	return s.column(func(c Candle) decimal.Decimal { return c.High })
}

// Lows returns the low price of every candle as float64.
func (s *OHLCVSeries) Lows() []float64 {
	return s.column(func(c Candle) decimal.Decimal { return c.Low })
}

// Opens returns the open price of every candle as float64.
func (s *OHLCVSeries) Opens() []float64 {
	return s.column(func(c Candle) decimal.Decimal { return c.Open })
}

// Volumes returns the volume of every candle as float64.
func (s *OHLCVSeries) Volumes() []float64 {
	return s.column(func(c Candle) decimal.Decimal { return c.Volume })
}

func (s *OHLCVSeries) column(pick func(Candle) decimal.Decimal) []float64 {
	if s == nil {
		return nil
	}
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		v, _ := pick(c).Float64()
		out[i] = v
	}
	return out
}

// OrderbookLevel is one price/volume rung of a book side.
type OrderbookLevel struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// Orderbook is a top-K snapshot of both sides of the book for one ticker.
type Orderbook struct {
	Ticker    string
	Timestamp time.Time
	Bids      []OrderbookLevel // descending price
	Asks      []OrderbookLevel // ascending price
}

// Summary derives best bid/ask, cumulative depth, and imbalance.
type OrderbookSummary struct {
	BestBid       decimal.Decimal
	BestAsk       decimal.Decimal
	BidDepth      decimal.Decimal
	AskDepth      decimal.Decimal
	Imbalance     float64 // (bidDepth-askDepth)/(bidDepth+askDepth), in [-1,1]
}

// Summarize computes a shallow summary of the book.
func (ob *Orderbook) Summarize() OrderbookSummary {
	var s OrderbookSummary
	if ob == nil {
		return s
	}
	if len(ob.Bids) > 0 {
		s.BestBid = ob.Bids[0].Price
	}
	if len(ob.Asks) > 0 {
		s.BestAsk = ob.Asks[0].Price
	}
	for _, l := range ob.Bids {
		s.BidDepth = s.BidDepth.Add(l.Volume)
	}
	for _, l := range ob.Asks {
		s.AskDepth = s.AskDepth.Add(l.Volume)
	}
	total := s.BidDepth.Add(s.AskDepth)
	if total.IsPositive() {
		diff := s.BidDepth.Sub(s.AskDepth)
		f, _ := diff.Div(total).Float64()
		s.Imbalance = f
	}
	return s
}

// Position is a single open holding. Owned exclusively by a Portfolio.
type Position struct {
	Ticker       string
	EntryPrice   decimal.Decimal
	EntryTime    time.Time
	Amount       decimal.Decimal
	CurrentPrice decimal.Decimal
	StopLoss     *decimal.Decimal
	TakeProfit   *decimal.Decimal
	// HoldingCandles counts completed bars since entry on the strategy's
	// working interval; incremented once per bar, not per tick.
	HoldingCandles int
}

// Value returns amount * current price.
func (p Position) Value() decimal.Decimal {
	return p.Amount.Mul(p.CurrentPrice)
}

// ProfitRate returns unrealised pnl as a fraction of entry price (e.g. 0.05 = 5%).
func (p Position) ProfitRate() float64 {
	if p.EntryPrice.IsZero() {
		return 0
	}
	f, _ := p.CurrentPrice.Sub(p.EntryPrice).Div(p.EntryPrice).Float64()
	return f
}

// HoldingDuration returns wall-clock time since entry.
func (p Position) HoldingDuration(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}

// Trade is an append-only closed-position audit record.
type Trade struct {
	Ticker         string
	EntryPrice     decimal.Decimal
	EntryTime      time.Time
	ExitPrice      decimal.Decimal
	ExitTime       time.Time
	Size           decimal.Decimal
	RealizedPnL    decimal.Decimal
	Commission     decimal.Decimal
	HoldingPeriod  time.Duration
	ExitTrigger    ExitTrigger
}

// Portfolio is the single per-session holder of cash, open positions, and
// closed trades. It exclusively owns its Positions.
type Portfolio struct {
	Cash            decimal.Decimal
	Positions       map[string]*Position
	ClosedTrades    []Trade
	InitialCapital  decimal.Decimal
}

// Equity returns cash plus the marked-to-market value of every open position.
func (p *Portfolio) Equity() decimal.Decimal {
	total := p.Cash
	for _, pos := range p.Positions {
		total = total.Add(pos.Value())
	}
	return total
}

// TradingMode discriminates the mode arbiter's decision for a tick.
type TradingMode string

const (
	ModeEntry      TradingMode = "entry"
	ModeManagement TradingMode = "management"
	ModeBlocked    TradingMode = "blocked"
)

// PortfolioStatus is a derived, read-only snapshot of portfolio state used
// to pick a trading mode and size new entries.
type PortfolioStatus struct {
	Cash                 decimal.Decimal
	TotalInvested        decimal.Decimal
	CurrentValue         decimal.Decimal
	PnL                  decimal.Decimal
	PositionCount        int
	TradingMode          TradingMode
	CanOpenNewPosition   bool
	AvailableCapital     decimal.Decimal
	CapitalPerPosition   decimal.Decimal
	Positions            []Position
}

// Decision is the closed set of AI/strategy actions.
type Decision string

const (
	DecisionBuy  Decision = "buy"
	DecisionSell Decision = "sell"
	DecisionHold Decision = "hold"
)

// SignalAction is the closed set of strategy signal actions.
type SignalAction string

const (
	SignalBuy   SignalAction = "buy"
	SignalSell  SignalAction = "sell"
	SignalClose SignalAction = "close"
)

// ExitTrigger is the closed set of reasons a position was closed.
type ExitTrigger string

const (
	TriggerStopLoss      ExitTrigger = "stop_loss"
	TriggerTakeProfit    ExitTrigger = "take_profit"
	TriggerTrailingStop  ExitTrigger = "trailing_stop"
	TriggerFakeout       ExitTrigger = "fakeout"
	TriggerTimeout       ExitTrigger = "timeout"
	TriggerADXWeak       ExitTrigger = "adx_weak"
	TriggerTrendWeakness ExitTrigger = "trend_weakening"
	TriggerCircuitBreak  ExitTrigger = "circuit_breaker"
	TriggerManual        ExitTrigger = "manual"
)

// SignalReason carries a structured explanation for a Signal, rather than a
// free-form string, so downstream observers (logs, AI prompts) can inspect
// which sub-clause of which gate fired.
type SignalReason struct {
	Gate    string            `json:"gate"`
	Clause  string            `json:"clause"`
	Details map[string]string `json:"details,omitempty"`
}

// Signal is a per-tick, per-ticker trading instruction produced by the
// strategy or the AI reviewer.
type Signal struct {
	Action     SignalAction
	Price      decimal.Decimal
	Size       *decimal.Decimal
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
	Reason     SignalReason
}

// CoinInfo is a per-scan liquidity/volatility snapshot of a candidate ticker.
type CoinInfo struct {
	Ticker          string
	Symbol          string
	Price           decimal.Decimal
	Volume24hQuote  decimal.Decimal
	Change24h       float64
	Volatility30d   float64 // annualised %, the unit used everywhere else
	Volatility7dATR float64 // 7-day ATR/close, kept separate per Open Question #3
	Sector          string
}

// Grade is the closed set of backtest/selection quality grades.
type Grade string

const (
	GradeStrongPass Grade = "STRONG PASS"
	GradeWeakPass   Grade = "WEAK PASS"
	GradeFail       Grade = "FAIL"
	GradeStrongBuy  Grade = "STRONG BUY"
	GradeBuy        Grade = "BUY"
	GradeWeakBuy    Grade = "WEAK BUY"
	GradeHold       Grade = "HOLD"
)

// BacktestScore is the per-ticker, per-scan backtest verdict.
type BacktestScore struct {
	Ticker        string
	Metrics       map[string]float64
	GateResults   map[string]bool
	Score         float64 // 0..100
	Grade         Grade
	Passed        bool // trading-pass
	ResearchPass  bool
	Reason        string
}

// CoinCandidate bundles a scanned coin's liquidity info, backtest verdict,
// optional AI entry signal, and final selection outcome.
type CoinCandidate struct {
	Ticker          string
	Info            CoinInfo
	BacktestScore   BacktestScore
	EntrySignal     *Signal
	FinalScore      float64
	FinalGrade      Grade
	Selected        bool
	SelectionReason string
}

// ScanResult is the top-level output of one multi-coin scan cycle.
type ScanResult struct {
	ScanTime           time.Time
	LiquidityScanned   int
	BacktestPassed     int
	AIAnalyzed         int
	Candidates         []CoinCandidate
	SelectedCoins      []CoinCandidate
	Duration           time.Duration
}

// StageAction is the closed variant a pipeline stage returns to the
// orchestrator.
type StageAction string

const (
	ActionContinue StageAction = "continue"
	ActionSkip     StageAction = "skip"
	ActionStop     StageAction = "stop"
	ActionExit     StageAction = "exit"
)

// StageResult is what every pipeline stage returns.
type StageResult struct {
	Success  bool
	Action   StageAction
	Data     map[string]interface{}
	Message  string
	Metadata map[string]interface{}
}
