// Package backtest replays the rule-based volatility-breakout strategy
// (internal/strategy) bar-by-bar over a single ticker's OHLCV history.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/indicators"
	"github.com/ajitpratap0/cryptobreakout/internal/strategy"
)

// warmupIndex returns the first bar at which every gate-relevant column has
// left the NaN-padded warmup region (indicators.Series left-pads NaN for the
// duration of each column's own rolling window).
func warmupIndex(series *indicators.Series) int {
	cols := [][]float64{series.BBWidthMean20, series.TrendMA, series.ATR, series.ADX, series.DonchianHigh, series.OBVMA20}
	warmup := 0
	for _, col := range cols {
		for i, v := range col {
			if !math.IsNaN(v) {
				if i > warmup {
					warmup = i
				}
				break
			}
		}
	}
	return warmup
}

// Trade is a single executed fill.
type Trade struct {
	Index      int
	Timestamp  time.Time
	Side       string // "BUY", "SELL"
	Quantity   float64
	Price      float64
	Commission float64
	Value      float64
}

// ClosedPosition is a completed round-trip with realised P&L.
type ClosedPosition struct {
	EntryTime   time.Time
	ExitTime    time.Time
	EntryPrice  float64
	ExitPrice   float64
	Quantity    float64
	RealizedPL  float64
	ReturnPct   float64
	HoldingBars int
	HoldingTime time.Duration
	ExitTrigger domain.ExitTrigger
	Commission  float64
}

// EquityPoint is portfolio equity at a bar.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}

// openPosition tracks the currently-held lot while the engine walks bars.
type openPosition struct {
	entryIndex int
	entryTime  time.Time
	entryPrice float64
	quantity   float64
	commission float64
	stopLoss   float64
	takeProfit float64
}

// Config configures one backtest run.
type Config struct {
	InitialCapital float64
	Ticker         string
}

// Engine replays one ticker's history against a strategy.Strategy.
type Engine struct {
	cfg      Config
	strategy *strategy.Strategy

	cash     float64
	position *openPosition

	Trades          []Trade
	ClosedPositions []ClosedPosition
	EquityCurve     []EquityPoint

	PeakEquity     float64
	MaxDrawdown    float64
	MaxDrawdownPct float64
}

// NewEngine builds an engine for one backtest run.
func NewEngine(cfg Config, strat *strategy.Strategy) *Engine {
	return &Engine{
		cfg:        cfg,
		strategy:   strat,
		cash:       cfg.InitialCapital,
		PeakEquity: cfg.InitialCapital,
	}
}

// pendingExit carries the trigger a bar's gate evaluation decided on, to be
// filled at the following bar's open under the next-open execution model.
type pendingExit struct {
	trigger domain.ExitTrigger
	reason  string
}

// Run walks the precomputed indicator series bar by bar, generating signals
// from the strategy and executing them per the configured execution model
// (§4.6.4). Under the default next-open model a signal decided on bar t fills
// at the open of bar t+1; intrabar stop checks fill immediately within the
// bar they trigger on, since they react to the bar's own high/low path
// rather than to a gate evaluated at the close.
func (e *Engine) Run(ctx context.Context, series *indicators.Series, ohlcv *domain.OHLCVSeries) error {
	n := ohlcv.Len()
	warmup := warmupIndex(series)
	closes := ohlcv.Closes()
	opens := ohlcv.Opens()

	var queuedEntry *domain.Signal
	var queuedExit *pendingExit

	for i := warmup; i < n; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if queuedEntry != nil && e.position == nil {
			if err := e.openBuy(ohlcv, opens, i, queuedEntry); err != nil {
				return fmt.Errorf("bar %d: %w", i, err)
			}
			queuedEntry = nil
		}
		if queuedExit != nil && e.position != nil {
			e.closePosition(ohlcv, i, opens[i], queuedExit.trigger, queuedExit.reason)
			queuedExit = nil
		}

		if e.position != nil && e.strategy.Config().ExecutionModel == strategy.ExecutionIntrabarStops {
			if e.handleIntrabarStop(series, ohlcv, i) {
				e.recordEquity(ohlcv, closes, i)
				continue
			}
		}

		if err := e.evaluateBar(series, i, &queuedEntry, &queuedExit); err != nil {
			return fmt.Errorf("bar %d: %w", i, err)
		}

		e.recordEquity(ohlcv, closes, i)
	}

	if e.position != nil {
		last := n - 1
		e.closePosition(ohlcv, last, closes[last], domain.TriggerManual, "end_of_backtest")
	}

	return nil
}

// domainPosition builds the domain.Position view of the currently-open lot
// for bar i, tracking completed-bar holding time per the strategy's contract.
func (e *Engine) domainPosition(i int) domain.Position {
	pos := domain.Position{
		EntryPrice:     decimalFromFloat(e.position.entryPrice),
		EntryTime:      e.position.entryTime,
		HoldingCandles: i - e.position.entryIndex,
	}
	if e.position.stopLoss != 0 {
		s := decimalFromFloat(e.position.stopLoss)
		pos.StopLoss = &s
	}
	if e.position.takeProfit != 0 {
		t := decimalFromFloat(e.position.takeProfit)
		pos.TakeProfit = &t
	}
	return pos
}

// handleIntrabarStop checks whether this bar's high/low path crossed a
// resting stop-loss or take-profit; returns true if it fired and closed the
// position immediately (no next-open delay, since the level was already
// touched during the bar).
func (e *Engine) handleIntrabarStop(series *indicators.Series, ohlcv *domain.OHLCVSeries, i int) bool {
	sig := e.strategy.IntrabarStopCheck(series, i, e.domainPosition(i))
	if sig == nil {
		return false
	}

	e.closePosition(ohlcv, i, sig.Price.InexactFloat64(), exitTriggerOf(sig), sig.Reason.Clause)
	return true
}

// exitTriggerOf recovers the ExitTrigger the strategy recorded in a sell
// Signal's reason, since domain.Signal carries it as a string detail rather
// than a typed field shared with every other producer of a Signal.
func exitTriggerOf(sig *domain.Signal) domain.ExitTrigger {
	return domain.ExitTrigger(sig.Reason.Details["trigger"])
}

// evaluateBar runs the strategy's entry or exit gate for bar i and queues any
// resulting decision for execution at bar i+1's open (§4.6.4 next-open).
func (e *Engine) evaluateBar(series *indicators.Series, i int, queuedEntry **domain.Signal, queuedExit **pendingExit) error {
	if e.position == nil {
		sig, err := e.strategy.Evaluate(series, i)
		if err != nil {
			return err
		}
		*queuedEntry = sig
		return nil
	}

	sig, err := e.strategy.EvaluateExit(series, i, e.domainPosition(i))
	if err != nil {
		return err
	}
	if sig != nil {
		*queuedExit = &pendingExit{trigger: exitTriggerOf(sig), reason: sig.Reason.Clause}
	}
	return nil
}

func (e *Engine) openBuy(ohlcv *domain.OHLCVSeries, opens []float64, i int, sig *domain.Signal) error {
	price := opens[i]
	equity := e.cash

	var stopPtr *float64
	if sig.StopLoss != nil {
		s := sig.StopLoss.InexactFloat64()
		stopPtr = &s
	}
	size := e.strategy.Size(decimalFromFloat(equity), decimalFromFloat(price), sig.StopLoss).InexactFloat64()
	if size <= 0 {
		return nil
	}

	fill := e.strategy.ApplyFill("buy", price, size, nil)
	value := fill.Price * size
	totalCost := value + fill.Commission
	if totalCost > e.cash {
		return nil
	}

	e.cash -= totalCost
	e.position = &openPosition{
		entryIndex: i,
		entryTime:  ohlcv.Candles[i].Timestamp,
		entryPrice: fill.Price,
		quantity:   size,
		commission: fill.Commission,
	}
	if stopPtr != nil {
		e.position.stopLoss = *stopPtr
	}
	if sig.TakeProfit != nil {
		e.position.takeProfit = sig.TakeProfit.InexactFloat64()
	}

	e.Trades = append(e.Trades, Trade{
		Index: i, Timestamp: ohlcv.Candles[i].Timestamp, Side: "BUY",
		Quantity: size, Price: fill.Price, Commission: fill.Commission, Value: value,
	})
	return nil
}

func (e *Engine) closePosition(ohlcv *domain.OHLCVSeries, i int, price float64, trigger domain.ExitTrigger, reason string) {
	if e.position == nil {
		return
	}
	fill := e.strategy.ApplyFill("sell", price, e.position.quantity, nil)
	value := fill.Price * e.position.quantity
	proceeds := value - fill.Commission

	entryValue := e.position.entryPrice * e.position.quantity
	totalCommission := e.position.commission + fill.Commission
	realizedPL := proceeds - entryValue - e.position.commission
	returnPct := realizedPL / entryValue

	e.cash += proceeds
	e.Trades = append(e.Trades, Trade{
		Index: i, Timestamp: ohlcv.Candles[i].Timestamp, Side: "SELL",
		Quantity: e.position.quantity, Price: fill.Price, Commission: fill.Commission, Value: value,
	})
	e.ClosedPositions = append(e.ClosedPositions, ClosedPosition{
		EntryTime: e.position.entryTime, ExitTime: ohlcv.Candles[i].Timestamp,
		EntryPrice: e.position.entryPrice, ExitPrice: fill.Price,
		Quantity: e.position.quantity, RealizedPL: realizedPL, ReturnPct: returnPct,
		HoldingBars: i - e.position.entryIndex, HoldingTime: ohlcv.Candles[i].Timestamp.Sub(e.position.entryTime),
		ExitTrigger: trigger, Commission: totalCommission,
	})

	log.Debug().Str("ticker", e.cfg.Ticker).Float64("pl", realizedPL).Str("reason", reason).Msg("closed backtest position")
	e.position = nil
}

func (e *Engine) currentEquity(closes []float64, i int) float64 {
	equity := e.cash
	if e.position != nil {
		equity += closes[i] * e.position.quantity
	}
	return equity
}

func (e *Engine) recordEquity(ohlcv *domain.OHLCVSeries, closes []float64, i int) {
	equity := e.currentEquity(closes, i)
	e.EquityCurve = append(e.EquityCurve, EquityPoint{Timestamp: ohlcv.Candles[i].Timestamp, Equity: equity})

	if equity > e.PeakEquity {
		e.PeakEquity = equity
	}
	drawdown := e.PeakEquity - equity
	drawdownPct := drawdown / e.PeakEquity
	if drawdown > e.MaxDrawdown {
		e.MaxDrawdown = drawdown
		e.MaxDrawdownPct = drawdownPct
	}
}

// FinalEquity returns the last recorded equity point, or initial capital if
// the run produced no bars.
func (e *Engine) FinalEquity() float64 {
	if len(e.EquityCurve) == 0 {
		return e.cfg.InitialCapital
	}
	return e.EquityCurve[len(e.EquityCurve)-1].Equity
}

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
