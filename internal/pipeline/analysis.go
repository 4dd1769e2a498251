package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/cryptobreakout/internal/analysis"
	"github.com/ajitpratap0/cryptobreakout/internal/backtest"
	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/indicators"
	"github.com/ajitpratap0/cryptobreakout/internal/strategy"
	btengine "github.com/ajitpratap0/cryptobreakout/pkg/backtest"
)

// flashCrashLookback and divergenceLookback are the spec.md §4.4.2/§4.4.3
// fixed window sizes.
const (
	flashCrashLookback  = 5
	divergenceLookback  = 20
	backtestGateCacheTTL = time.Hour
)

// gateCacheEntry is one cached §4.4.4 quick-filter verdict, keyed by
// (ticker, config_hash) as spec.md requires so the full-history backtest
// runs at most once per ticker per scan cycle.
type gateCacheEntry struct {
	score     domain.BacktestScore
	computedAt time.Time
}

// Analysis is spec.md §4.4: market-regime flags, flash-crash and
// RSI-divergence detection, the two-tier backtest gate, and AI-reviewed
// signal synthesis.
type Analysis struct {
	BaseStage

	indicatorSvc *indicators.Service
	strat        *strategy.Strategy
	btCfg        backtest.Config

	gateMu    sync.Mutex
	gateCache map[string]gateCacheEntry

	log zerolog.Logger
}

// NewAnalysis builds the stage. strat is the one rule-based strategy shared
// between live entry-signal generation and the quick-filter backtest.
func NewAnalysis(strat *strategy.Strategy, btCfg backtest.Config, log zerolog.Logger) *Analysis {
	return &Analysis{
		BaseStage:    BaseStage{StageName: "analysis"},
		indicatorSvc: indicators.NewService(log),
		strat:        strat,
		btCfg:        btCfg,
		gateCache:    make(map[string]gateCacheEntry),
		log:          log.With().Str("stage", "analysis").Logger(),
	}
}

func (s *Analysis) PreExecute(_ context.Context, tick *domain.TickContext) bool {
	return tick.DailyChart != nil && tick.DailyChart.Len() > 0
}

func (s *Analysis) Execute(ctx context.Context, tick *domain.TickContext) domain.StageResult {
	dailyInd, err := s.indicatorSvc.Compute(tick.DailyChart, indicators.DefaultConfig())
	if err != nil {
		return domain.StageResult{Success: false, Action: domain.ActionExit, Message: fmt.Sprintf("indicator recompute failed: %v", err)}
	}

	tick.Regime = s.detectRegime(tick)
	tick.FlashCrash = s.detectFlashCrash(tick, dailyInd)
	tick.Divergence = s.detectDivergence(dailyInd)

	score, _ := s.backtestGate(tick)

	entrySignal := s.entrySignal(tick)

	review := s.synthesize(ctx, tick, score, entrySignal)
	review = validateReview(review, tick)
	if review.Decision == domain.DecisionBuy && !score.Passed {
		// A buy needs the backtest's trading pass; a research-only pass (or
		// no verdict at all) is reviewed but not bought.
		review.Overridden = true
		review.OverrideReason = "backtest_trading_pass_failed"
		review.Decision = domain.DecisionHold
		review.Confidence = review.Confidence * 0.5
	}
	tick.AIReview = &review

	return domain.StageResult{Success: true, Action: domain.ActionContinue}
}

func (s *Analysis) detectRegime(tick *domain.TickContext) domain.MarketRegime {
	tickerReturns := dailyReturns(tick.DailyChart)
	if tick.ReferenceChart == nil {
		r := analysis.DetectRegime(nil, nil, nil)
		return domain.MarketRegime{MarketRisk: r.MarketRisk}
	}
	refReturns := dailyReturns(tick.ReferenceChart)
	refPrices := tick.ReferenceChart.Closes()
	n := len(tickerReturns)
	if len(refReturns) < n {
		n = len(refReturns)
	}
	if n > 30 {
		tickerReturns = tickerReturns[len(tickerReturns)-30:]
		refReturns = refReturns[len(refReturns)-30:]
	} else {
		tickerReturns = tickerReturns[len(tickerReturns)-n:]
		refReturns = refReturns[len(refReturns)-n:]
	}
	r := analysis.DetectRegime(tickerReturns, refReturns, refPrices)
	return domain.MarketRegime{Beta30d: r.Beta30d, Alpha30d: r.Alpha30d, Correlation: r.Correlation, MarketRisk: r.MarketRisk}
}

func dailyReturns(series *domain.OHLCVSeries) []float64 {
	closes := series.Closes()
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (closes[i]-closes[i-1])/closes[i-1])
	}
	return out
}

func (s *Analysis) detectFlashCrash(tick *domain.TickContext, ind *indicators.Series) domain.FlashCrash {
	if len(ind.ATR) == 0 {
		return domain.FlashCrash{}
	}
	atr14 := ind.ATR[len(ind.ATR)-1]
	return analysis.DetectFlashCrash(tick.DailyChart.Closes(), atr14, flashCrashLookback)
}

func (s *Analysis) detectDivergence(ind *indicators.Series) domain.Divergence {
	return analysis.DetectDivergence(ind.Close, ind.RSI, divergenceLookback)
}

// backtestGate runs (or reuses a cached) §4.4.4 quick-filter verdict for the
// ticker using its full locally-available daily history.
func (s *Analysis) backtestGate(tick *domain.TickContext) (domain.BacktestScore, bool) {
	key := gateCacheKey(tick.Ticker, s.strat.Config(), s.btCfg)

	s.gateMu.Lock()
	if cached, ok := s.gateCache[key]; ok && time.Since(cached.computedAt) < backtestGateCacheTTL {
		s.gateMu.Unlock()
		return cached.score, true
	}
	s.gateMu.Unlock()

	indSeries, err := s.indicatorSvc.Compute(tick.DailyChart, indicators.DefaultConfig())
	if err != nil {
		s.log.Warn().Str("ticker", tick.Ticker).Err(err).Msg("backtest gate: indicator computation failed")
		return domain.BacktestScore{}, false
	}

	engine := btengine.NewEngine(btengine.Config{InitialCapital: 10000, Ticker: tick.Ticker}, s.strat)
	if err := engine.Run(context.Background(), indSeries, tick.DailyChart); err != nil {
		s.log.Warn().Str("ticker", tick.Ticker).Err(err).Msg("backtest gate: engine run failed")
		return domain.BacktestScore{}, false
	}
	metrics, err := btengine.CalculateMetrics(engine)
	if err != nil {
		s.log.Debug().Str("ticker", tick.Ticker).Err(err).Msg("backtest gate: not enough trades for metrics")
		return domain.BacktestScore{}, false
	}

	score := backtest.Evaluate(tick.Ticker, metrics, engine.ClosedPositions, s.btCfg)

	s.gateMu.Lock()
	s.gateCache[key] = gateCacheEntry{score: score, computedAt: time.Now()}
	s.gateMu.Unlock()

	return score, true
}

func gateCacheKey(ticker string, stratCfg strategy.Config, btCfg backtest.Config) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode(stratCfg)
	_ = enc.Encode(btCfg)
	return ticker + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// entrySignal runs the strategy's entry gates on the ticker's working
// timeframe, only when no position is currently held on it.
func (s *Analysis) entrySignal(tick *domain.TickContext) *domain.Signal {
	if tick.PositionDetail.Held || tick.Hourly60Chart == nil || tick.Hourly60Chart.Len() == 0 {
		return nil
	}
	indSeries, err := s.indicatorSvc.Compute(tick.Hourly60Chart, indicators.DefaultConfig())
	if err != nil {
		s.log.Warn().Str("ticker", tick.Ticker).Err(err).Msg("entry signal: indicator computation failed")
		return nil
	}
	sig, err := s.strat.Evaluate(indSeries, tick.Hourly60Chart.Len()-1)
	if err != nil {
		s.log.Warn().Str("ticker", tick.Ticker).Err(err).Msg("entry signal: evaluation failed")
		return nil
	}
	return sig
}

// synthesize bundles the layered checks into the AI review payload and
// calls the AI port, falling back to a rule-only decision when the port is
// not configured (AI disabled).
func (s *Analysis) synthesize(ctx context.Context, tick *domain.TickContext, score domain.BacktestScore, entrySignal *domain.Signal) domain.AIReview {
	if tick.Ports.AI == nil {
		return ruleOnlyReview(entrySignal)
	}

	payload := map[string]interface{}{
		"ticker":        tick.Ticker,
		"current_price": tick.CurrentPrice,
		"indicators":    tick.Indicators,
		"regime":        tick.Regime,
		"flash_crash":   tick.FlashCrash,
		"divergence":    tick.Divergence,
		"backtest":      score,
		"position":      tick.PositionDetail,
		"fear_greed":    tick.FearGreed,
	}
	if entrySignal != nil {
		payload["entry_signal"] = entrySignal
	}
	userPrompt, _ := json.Marshal(payload)

	resp, err := tick.Ports.AI.Complete(ctx, aiSystemPrompt, string(userPrompt), aiJSONSchema)
	if err != nil {
		s.log.Warn().Str("ticker", tick.Ticker).Err(err).Msg("AI review failed, falling back to rule-only decision")
		return ruleOnlyReview(entrySignal)
	}
	return parseAIReview(resp)
}

const aiSystemPrompt = `You are a trading assistant reviewing a single candidate ticker. Respond with strict JSON only: {"decision":"buy|sell|hold","confidence":0..1,"reason":"...","key_indicators":["..."],"rejection_reasons":["..."]}`

var aiJSONSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"decision":          map[string]interface{}{"type": "string", "enum": []string{"buy", "sell", "hold"}},
		"confidence":        map[string]interface{}{"type": "number"},
		"reason":            map[string]interface{}{"type": "string"},
		"key_indicators":    map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"rejection_reasons": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
	},
	"required": []string{"decision", "confidence", "reason"},
}

func ruleOnlyReview(entrySignal *domain.Signal) domain.AIReview {
	if entrySignal == nil || entrySignal.Action != domain.SignalBuy {
		return domain.AIReview{Decision: domain.DecisionHold, Confidence: 0.5, Reason: "ai_disabled_rule_only_no_signal"}
	}
	return domain.AIReview{Decision: domain.DecisionBuy, Confidence: 0.5, Reason: "ai_disabled_rule_only_entry_signal"}
}

func parseAIReview(resp map[string]interface{}) domain.AIReview {
	review := domain.AIReview{Decision: domain.DecisionHold}
	if d, ok := resp["decision"].(string); ok {
		review.Decision = domain.Decision(d)
	}
	if c, ok := resp["confidence"].(float64); ok {
		review.Confidence = c
	}
	if r, ok := resp["reason"].(string); ok {
		review.Reason = r
	}
	review.KeyIndicators = toStringSlice(resp["key_indicators"])
	review.RejectionReasons = toStringSlice(resp["rejection_reasons"])
	return review
}

func toStringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// validateReview applies spec.md §4.4.5's hard override rules: a flash
// crash vetoes any buy; bearish divergence combined with high market risk
// also vetoes a buy. Overrides lower confidence and annotate the reason
// rather than silently changing the decision.
func validateReview(review domain.AIReview, tick *domain.TickContext) domain.AIReview {
	if review.Decision != domain.DecisionBuy {
		return review
	}
	switch {
	case tick.FlashCrash.Detected:
		review.Overridden = true
		review.OverrideReason = "flash_crash_detected"
	case tick.Divergence.Type == domain.DivergenceBearish && tick.Regime.MarketRisk == "high":
		review.Overridden = true
		review.OverrideReason = "bearish_divergence_high_market_risk"
	default:
		return review
	}
	review.Decision = domain.DecisionHold
	review.Confidence = review.Confidence * 0.5
	return review
}
