// Backtest Runner CLI
// Replays the volatility-breakout strategy over one ticker's historical
// candles and reports performance plus the §4.4.4 gate/score verdict.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/cryptobreakout/internal/backtest"
	"github.com/ajitpratap0/cryptobreakout/internal/db"
	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/indicators"
	"github.com/ajitpratap0/cryptobreakout/internal/strategy"
	btengine "github.com/ajitpratap0/cryptobreakout/pkg/backtest"
)

var (
	ticker   = flag.String("ticker", "", "Ticker to backtest, e.g. BTC-USDT")
	interval = flag.String("interval", "1h", "Candle interval (1m, 15m, 1h, 1d)")

	startDate = flag.String("start", "", "Start date (YYYY-MM-DD)")
	endDate   = flag.String("end", "", "End date (YYYY-MM-DD)")

	initialCapital = flag.Float64("capital", 10000.0, "Initial capital, quote currency")
	commission     = flag.Float64("commission", 0.001, "Round-trip commission rate, fraction")

	outputFile = flag.String("output", "", "Write the text report to this file (optional)")
	verbose    = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if *ticker == "" {
		fmt.Fprintln(os.Stderr, "Error: -ticker flag is required")
		flag.Usage()
		os.Exit(1)
	}
	if *startDate == "" || *endDate == "" {
		fmt.Fprintln(os.Stderr, "Error: -start and -end dates are required")
		flag.Usage()
		os.Exit(1)
	}

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid start date format (use YYYY-MM-DD)")
	}
	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid end date format (use YYYY-MM-DD)")
	}

	log.Info().
		Str("ticker", *ticker).
		Str("interval", *interval).
		Float64("capital", *initialCapital).
		Msg("starting backtest")

	ctx := context.Background()
	if err := runBacktest(ctx, start, end); err != nil {
		log.Fatal().Err(err).Msg("backtest failed")
	}

	log.Info().Msg("backtest completed")
}

func runBacktest(ctx context.Context, start, end time.Time) error {
	series, err := loadFromDatabase(ctx, *ticker, domain.Interval(*interval), start, end)
	if err != nil {
		return fmt.Errorf("failed to load candles: %w", err)
	}

	indicatorSvc := indicators.NewService(log.Logger)
	indSeries, err := indicatorSvc.Compute(series, indicators.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to compute indicators: %w", err)
	}

	stratCfg := strategy.DefaultConfig()
	stratCfg.Commission = *commission
	strat := strategy.New(stratCfg, log.Logger)

	engine := btengine.NewEngine(btengine.Config{InitialCapital: *initialCapital, Ticker: *ticker}, strat)
	if err := engine.Run(ctx, indSeries, series); err != nil {
		return fmt.Errorf("backtest execution failed: %w", err)
	}

	metrics, err := btengine.CalculateMetrics(engine)
	if err != nil {
		return fmt.Errorf("failed to calculate metrics: %w", err)
	}

	report := btengine.GenerateReport(*ticker, metrics)
	fmt.Println(report)

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, []byte(report), 0600); err != nil {
			log.Warn().Err(err).Str("file", *outputFile).Msg("failed to write output file")
		} else {
			log.Info().Str("file", *outputFile).Msg("text report written to file")
		}
	}

	cfg := backtest.DefaultConfig(*commission)
	score := backtest.Evaluate(*ticker, metrics, engine.ClosedPositions, cfg)

	fmt.Printf("\n%s — grade: %s (score %.1f), research-pass: %v, trading-pass: %v\n%s\n",
		score.Ticker, score.Grade, score.Score, score.ResearchPass, score.Passed, score.Reason)

	return nil
}

// loadFromDatabase loads one ticker's candles from TimescaleDB for the
// requested window.
func loadFromDatabase(ctx context.Context, tickerSymbol string, interval domain.Interval, start, end time.Time) (*domain.OHLCVSeries, error) {
	database, err := db.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	query := `
		SELECT timestamp, open, high, low, close, volume
		FROM candlesticks
		WHERE symbol = $1 AND interval = $2
			AND timestamp >= $3 AND timestamp <= $4
		ORDER BY timestamp ASC
	`

	rows, err := database.Pool().Query(ctx, query, tickerSymbol, string(interval), start, end)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var candles []domain.Candle
	for rows.Next() {
		var c domain.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	log.Info().Str("ticker", tickerSymbol).Int("candles", len(candles)).Msg("loaded historical candles")

	return &domain.OHLCVSeries{Ticker: tickerSymbol, Interval: interval, Candles: candles}, nil
}
