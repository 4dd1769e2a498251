package scanner

import (
	"context"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/cryptobreakout/internal/backtest"
	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/indicators"
	"github.com/ajitpratap0/cryptobreakout/internal/strategy"
	btengine "github.com/ajitpratap0/cryptobreakout/pkg/backtest"
)

// backtestWorkers caps the parallel-backtest worker pool at the host's CPU
// count, since backtesting is CPU-bound (spec.md §5) rather than I/O-bound
// like phase 3's data sync.
func backtestWorkers() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

// parallelBacktest is spec.md §4.7 phase 4: run the rule-based strategy
// through pkg/backtest.Engine over each synced ticker's local history,
// grade it with internal/backtest.Evaluate's two-tier gate + composite
// score, in a bounded worker pool. Grounded on the teacher's
// internal/backtest/optimization.go grid-search worker pool idiom
// (semaphore-bounded goroutines fanning out over a parameter set, joined
// with a WaitGroup) — here errgroup.SetLimit plays the semaphore's role and
// the fan-out is over tickers rather than parameter combinations.
func parallelBacktest(ctx context.Context, synced map[string]*domain.OHLCVSeries, strat *strategy.Strategy, cfg backtest.Config, log zerolog.Logger) map[string]domain.BacktestScore {
	type outcome struct {
		ticker string
		score  domain.BacktestScore
		ok     bool
	}

	tickers := make([]string, 0, len(synced))
	for ticker := range synced {
		tickers = append(tickers, ticker)
	}

	outcomes := make([]outcome, len(tickers))
	indicatorSvc := indicators.NewService(log)

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(backtestWorkers())

	for i, ticker := range tickers {
		i, ticker := i, ticker
		series := synced[ticker]
		group.Go(func() error {
			score, ok := runOneBacktest(gctx, ticker, series, strat, cfg, indicatorSvc)
			outcomes[i] = outcome{ticker: ticker, score: score, ok: ok}
			return nil
		})
	}
	_ = group.Wait()

	results := make(map[string]domain.BacktestScore, len(outcomes))
	for _, o := range outcomes {
		if o.ok {
			results[o.ticker] = o.score
		}
	}
	return results
}

func runOneBacktest(ctx context.Context, ticker string, series *domain.OHLCVSeries, strat *strategy.Strategy, cfg backtest.Config, indicatorSvc *indicators.Service) (domain.BacktestScore, bool) {
	indSeries, err := indicatorSvc.Compute(series, indicators.DefaultConfig())
	if err != nil {
		return domain.BacktestScore{}, false
	}

	engine := btengine.NewEngine(btengine.Config{InitialCapital: 10000, Ticker: ticker}, strat)
	if err := engine.Run(ctx, indSeries, series); err != nil {
		return domain.BacktestScore{}, false
	}

	metrics, err := btengine.CalculateMetrics(engine)
	if err != nil {
		return domain.BacktestScore{}, false
	}

	return backtest.Evaluate(ticker, metrics, engine.ClosedPositions, cfg), true
}
