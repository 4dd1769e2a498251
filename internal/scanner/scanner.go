package scanner

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/ohlcvcache"
	"github.com/ajitpratap0/cryptobreakout/internal/strategy"
)

// Scanner runs the five-phase multi-coin scan of spec.md §4.7 and satisfies
// internal/pipeline.Scanner, so the HybridRiskCheck stage can call it
// directly in ENTRY mode. Grounded on internal/orchestrator/orchestrator.go's
// overall "a driver struct holding its dependencies plus a zerolog.Logger,
// one exported entry method" shape, narrowed here to a single Scan call
// instead of a long-running receive loop.
type Scanner struct {
	cfg      Config
	strat    *strategy.Strategy
	liquidity LiquiditySource
	exchange domain.ExchangePort
	ai       domain.AIPort // optional; nil disables phase 5's AI scoring

	// cache is phase 3's on-disk OHLCV store. Optional: nil falls back to
	// an in-memory-per-scan full-window fetch for every survivor.
	cache *ohlcvcache.Store

	log zerolog.Logger
}

// New builds a Scanner. ai may be nil (cfg.EnableAIReview is then ignored
// and phase 5 falls back to its grade-based default score). cache may be
// nil (phase 3 then re-fetches each survivor's full cfg.Sync.Window every
// scan instead of incrementally topping up a stored series).
func New(cfg Config, strat *strategy.Strategy, liquidity LiquiditySource, exchange domain.ExchangePort, ai domain.AIPort, cache *ohlcvcache.Store, log zerolog.Logger) *Scanner {
	return &Scanner{
		cfg:       cfg,
		strat:     strat,
		liquidity: liquidity,
		exchange:  exchange,
		ai:        ai,
		cache:     cache,
		log:       log.With().Str("component", "scanner").Logger(),
	}
}

// Scan runs all five phases and returns the scan-cycle result.
// excludeTickers (typically the currently-held positions) are dropped
// before phase 1 ranks anything, since the scanner only ever looks for new
// entry candidates.
func (s *Scanner) Scan(ctx context.Context, excludeTickers []string) (domain.ScanResult, error) {
	started := time.Now()
	excluded := toSet(excludeTickers)

	liquid := liquidityScan(ctx, s.liquidity, s.cfg)
	liquid = dropExcluded(liquid, excluded)
	liquidityScanned := len(liquid)

	for i := range liquid {
		liquid[i] = enrichVolatility(ctx, s.exchange, liquid[i])
	}

	diversified := sectorDiversify(liquid, s.cfg)

	backtestTopN := s.cfg.BacktestTopN
	if backtestTopN <= 0 || backtestTopN > len(diversified) {
		backtestTopN = len(diversified)
	}
	toBacktest := diversified[:backtestTopN]

	tickers := make([]string, len(toBacktest))
	for i, c := range toBacktest {
		tickers[i] = c.Ticker
	}

	synced := dataSync(ctx, s.exchange, s.cache, tickers, s.cfg.Sync)
	scores := parallelBacktest(ctx, synced, s.strat, s.cfg.Backtest, s.log)

	backtestPassed := 0
	for _, score := range scores {
		if score.Passed {
			backtestPassed++
		}
	}

	candidates := finalSelect(ctx, toBacktest, scores, synced, s.strat, s.cfg, s.ai)

	aiAnalyzed := 0
	if s.cfg.EnableAIReview && s.ai != nil {
		aiAnalyzed = backtestPassed
		if aiAnalyzed > s.cfg.AITopN && s.cfg.AITopN > 0 {
			aiAnalyzed = s.cfg.AITopN
		}
	}

	selected := topSelected(candidates, s.cfg.FinalSelectN)

	s.log.Info().
		Int("liquidity_scanned", liquidityScanned).
		Int("backtest_passed", backtestPassed).
		Int("selected", len(selected)).
		Dur("duration", time.Since(started)).
		Msg("scan cycle complete")

	return domain.ScanResult{
		ScanTime:         started,
		LiquidityScanned: liquidityScanned,
		BacktestPassed:   backtestPassed,
		AIAnalyzed:       aiAnalyzed,
		Candidates:       candidates,
		SelectedCoins:    selected,
		Duration:         time.Since(started),
	}, nil
}

func toSet(tickers []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		set[t] = struct{}{}
	}
	return set
}

func dropExcluded(infos []domain.CoinInfo, excluded map[string]struct{}) []domain.CoinInfo {
	out := infos[:0]
	for _, info := range infos {
		if _, skip := excluded[info.Ticker]; skip {
			continue
		}
		out = append(out, info)
	}
	return out
}
