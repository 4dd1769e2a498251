// Pipeline Runner
// Drives spec.md's §4 staged pipeline against a live or paper exchange,
// one tick per configured ticker per scheduling interval, exposing a
// Prometheus /metrics and /health surface alongside it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/cryptobreakout/internal/audit"
	"github.com/ajitpratap0/cryptobreakout/internal/backtest"
	"github.com/ajitpratap0/cryptobreakout/internal/config"
	"github.com/ajitpratap0/cryptobreakout/internal/db"
	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/exchange"
	"github.com/ajitpratap0/cryptobreakout/internal/idempotency"
	"github.com/ajitpratap0/cryptobreakout/internal/llmreview"
	"github.com/ajitpratap0/cryptobreakout/internal/lock"
	"github.com/ajitpratap0/cryptobreakout/internal/market"
	"github.com/ajitpratap0/cryptobreakout/internal/metrics"
	"github.com/ajitpratap0/cryptobreakout/internal/ohlcvcache"
	"github.com/ajitpratap0/cryptobreakout/internal/pipeline"
	"github.com/ajitpratap0/cryptobreakout/internal/risk"
	"github.com/ajitpratap0/cryptobreakout/internal/scanner"
	"github.com/ajitpratap0/cryptobreakout/internal/strategy"
)

var (
	configPath    = flag.String("config", "", "Path to config file (defaults to ./configs/config.yaml)")
	tickInterval  = flag.Duration("interval", time.Minute, "Time between scheduling sweeps across all configured tickers")
	ohlcvCacheDir = flag.String("ohlcv-cache-dir", "./data/ohlcv", "Directory for the scanner's on-disk OHLCV cache")
)

// coinGeckoIDs is the operator-maintained base-symbol -> CoinGecko-id table
// the scanner's liquidity source needs (spec.md §4.7 phase 1); CoinGecko
// exposes no bulk "every tradable symbol" endpoint in this pack, so the
// candidate universe is configuration rather than a live fetch, same as
// internal/scanner/coingecko_source.go documents. Extend this table (or move
// it into config.yaml) to trade more than the seed set below.
var coinGeckoIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"ADA":   "cardano",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
}

func main() {
	flag.Parse()

	config.InitLogger("info", "console")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	config.InitLogger(cfg.App.LogLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ports, cleanup, err := buildPorts(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire pipeline ports")
	}
	defer cleanup()

	auditLogger, updater := buildObservability(ctx, cfg)
	if updater != nil {
		go updater.Start(ctx)
		defer updater.Stop()
	}

	metricsServer := metrics.NewServer(cfg.Monitoring.PrometheusPort, config.NewLogger("metrics_server"))
	if cfg.Monitoring.EnableMetrics {
		if err := metricsServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start metrics server")
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	p := buildPipeline(cfg, ports.scanner, auditLogger)

	metrics.UpdateActiveSessions(1)
	defer metrics.UpdateActiveSessions(0)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*tickInterval)
	defer ticker.Stop()

	log.Info().
		Strs("symbols", cfg.Trading.Symbols).
		Dur("interval", *tickInterval).
		Str("mode", cfg.Trading.Mode).
		Msg("pipeline runner started")

	runSweep(ctx, p, cfg.Trading.Symbols, ports.tick)

	for {
		select {
		case <-ticker.C:
			runSweep(ctx, p, cfg.Trading.Symbols, ports.tick)
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("shutting down pipeline runner")
			return
		case <-ctx.Done():
			return
		}
	}
}

// runSweep runs one pipeline tick per ticker, sequentially: spec.md §4.2's
// mode arbiter already serializes scanner access to one candidate at a
// time, and the pipeline's own §5 deadline bounds each tick independently,
// so there is no need for per-ticker concurrency here.
func runSweep(ctx context.Context, p *pipeline.Pipeline, tickers []string, ports domain.Ports) {
	started := time.Now()
	for _, ticker := range tickers {
		lockName := "tick:" + ticker
		acquired, err := ports.Lock.Acquire(ctx, lockName)
		if err != nil {
			log.Error().Err(err).Str("ticker", ticker).Msg("lock acquire failed, skipping tick")
			continue
		}
		if !acquired {
			log.Warn().Str("ticker", ticker).Msg("previous tick still in flight, skipping")
			continue
		}

		result := pipeline.RunTick(ctx, p, ticker, ports)
		log.Info().
			Str("ticker", ticker).
			Str("mode", string(result.TradingMode)).
			Msg("tick completed")

		if err := ports.Lock.Release(ctx, lockName); err != nil {
			log.Error().Err(err).Str("ticker", ticker).Msg("lock release failed")
		}
	}
	metrics.RecordOrchestratorLatency(float64(time.Since(started).Milliseconds()))
}

// wiredPorts bundles the domain.Ports every tick runs against plus the
// Scanner the HybridRiskCheck stage calls in ENTRY mode.
type wiredPorts struct {
	tick    domain.Ports
	scanner pipeline.Scanner
}

func buildPorts(ctx context.Context, cfg *config.Config) (wiredPorts, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	cleanups = append(cleanups, func() { _ = redisClient.Close() })

	var exchangePort domain.ExchangePort
	if cfg.Trading.Mode == "live" {
		exCfg, ok := cfg.Exchanges[cfg.Trading.Exchange]
		if !ok {
			return wiredPorts{}, cleanup, fmt.Errorf("no exchange config for %q", cfg.Trading.Exchange)
		}
		exchangePort = exchange.NewBinanceExchange(exchange.BinanceConfig{
			APIKey:    exCfg.APIKey,
			SecretKey: exCfg.SecretKey,
			Testnet:   exCfg.Testnet,
		})
	} else {
		exCfg := cfg.Exchanges[cfg.Trading.Exchange]
		exchangePort = exchange.NewMockExchangeWithFees(nil, exCfg.Fees)
	}

	llmCfg := cfg.LLM
	ai := llmreview.NewFallbackClient(llmreview.FallbackConfig{
		PrimaryConfig: llmreview.ClientConfig{
			Endpoint:    llmCfg.Endpoint,
			Model:       llmCfg.PrimaryModel,
			Temperature: llmCfg.Temperature,
			MaxTokens:   llmCfg.MaxTokens,
			Timeout:     llmCfg.GetTimeout(),
		},
		PrimaryName: llmCfg.PrimaryModel,
		FallbackConfigs: []llmreview.ClientConfig{{
			Endpoint:    llmCfg.Endpoint,
			Model:       llmCfg.FallbackModel,
			Temperature: llmCfg.Temperature,
			MaxTokens:   llmCfg.MaxTokens,
			Timeout:     llmCfg.GetTimeout(),
		}},
		FallbackNames: []string{llmCfg.FallbackModel},
	}, risk.NewCircuitBreakerManager())

	marketData := market.NewFearGreedClient(redisClient)
	ledger := idempotency.NewRedisLedger(redisClient)
	redisLock := lock.NewRedisLock(redisClient)

	tick := domain.Ports{
		Exchange:   exchangePort,
		AI:         ai,
		MarketData: marketData,
		Idempotent: ledger,
		Lock:       redisLock,
	}

	strat := strategy.New(strategy.DefaultConfig(), config.NewLogger("strategy"))

	coinGeckoClient, err := market.NewCoinGeckoClient("")
	if err != nil {
		return wiredPorts{}, cleanup, fmt.Errorf("failed to build coingecko client: %w", err)
	}
	cachedCoinGecko := market.NewCachedCoinGeckoClient(coinGeckoClient, redisClient, 5*time.Minute)
	liquidity := scanner.NewCoinGeckoSource(cachedCoinGecko, coinGeckoIDs)

	ohlcvStore, err := ohlcvcache.NewStore(*ohlcvCacheDir)
	if err != nil {
		return wiredPorts{}, cleanup, fmt.Errorf("failed to build ohlcv cache store: %w", err)
	}

	scanCfg := scanner.DefaultConfig(cfg.Trading.Exchange, cfg.Exchanges[cfg.Trading.Exchange].Fees.Taker)
	scan := scanner.New(scanCfg, strat, liquidity, exchangePort, ai, ohlcvStore, config.NewLogger("scanner"))

	return wiredPorts{tick: tick, scanner: scan}, cleanup, nil
}

// buildObservability wires the append-only trade ledger and the periodic
// database-backed metrics refresh. Both degrade to a no-op/disabled state
// when DATABASE_URL is unset rather than failing startup — a paper-trading
// operator without Postgres configured still gets a working pipeline, just
// without durable trade history.
func buildObservability(ctx context.Context, cfg *config.Config) (*audit.Logger, *metrics.Updater) {
	database, err := db.New(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("database unavailable, running without trade persistence or metrics polling")
		return audit.NewLogger(nil, false), nil
	}

	auditLogger := audit.NewLogger(database.Pool(), true)
	updater := metrics.NewUpdater(database.Pool(), 30*time.Second)
	return auditLogger, updater
}

func buildPipeline(cfg *config.Config, scan pipeline.Scanner, auditLogger *audit.Logger) *pipeline.Pipeline {
	strat := strategy.New(strategy.DefaultConfig(), config.NewLogger("strategy"))
	riskCfg := risk.DefaultConfig()

	var pnlMu sync.Mutex
	var lastDailyPnLPct, lastWeeklyPnLPct float64

	refreshPnL := func(window time.Duration, out *float64) func() float64 {
		return func() float64 {
			pnlMu.Lock()
			defer pnlMu.Unlock()
			trades, err := auditLogger.QueryTrades(context.Background(), "", 0)
			if err != nil || len(trades) == 0 {
				return *out
			}
			cutoff := time.Now().Add(-window)
			total := 0.0
			for _, t := range trades {
				if t.ExitTime.Before(cutoff) {
					continue
				}
				pnl, _ := t.RealizedPnL.Float64()
				total += pnl
			}
			if cfg.Trading.InitialCapital > 0 {
				*out = total / cfg.Trading.InitialCapital
			}
			return *out
		}
	}

	exCfg := cfg.Exchanges[cfg.Trading.Exchange]
	hybridCfg := pipeline.HybridConfig{
		Risk:            riskCfg,
		Strategy:        strat,
		Backtest:        backtest.DefaultConfig(exCfg.Fees.Taker),
		QuoteCurrency:   "USDT",
		ReferenceTicker: "BTC-USDT",
		FallbackTicker:  firstOrDefault(cfg.Trading.Symbols, "BTC-USDT"),
		DailyPnLPct:     refreshPnL(24*time.Hour, &lastDailyPnLPct),
		WeeklyPnLPct:    refreshPnL(7*24*time.Hour, &lastWeeklyPnLPct),
		ScannerEnabled:  scan != nil,
		Scanner:         scan,
		AuditLogger:     auditLogger,
	}

	if scan == nil {
		return pipeline.NewSingleTicker(hybridCfg, config.NewLogger("pipeline"))
	}
	return pipeline.NewHybrid(hybridCfg, config.NewLogger("pipeline"))
}

func firstOrDefault(symbols []string, fallback string) string {
	if len(symbols) > 0 {
		return symbols[0]
	}
	return fallback
}
