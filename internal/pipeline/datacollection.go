package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
	"github.com/ajitpratap0/cryptobreakout/internal/indicators"
)

// dataCollectionCandleCount is the bounded history spec.md §4.3 asks for on
// each chart timeframe.
const dataCollectionCandleCount = 200

// DataCollection is spec.md §4.3: gather the full analysis payload for the
// chosen ticker. Every sub-read is independent; only the ticker's own daily
// chart is load-bearing enough to fail the tick (`stop`) — everything else
// degrades to a zero value plus a warning log.
type DataCollection struct {
	BaseStage

	indicatorSvc  *indicators.Service
	referenceTicker string
	log           zerolog.Logger
}

// NewDataCollection builds the stage. referenceTicker is the correlation
// anchor (e.g. "BTC-USDT") spec.md §4.4.1 needs for market-regime flags.
func NewDataCollection(referenceTicker string, log zerolog.Logger) *DataCollection {
	return &DataCollection{
		BaseStage:       BaseStage{StageName: "data_collection"},
		indicatorSvc:    indicators.NewService(log),
		referenceTicker: referenceTicker,
		log:             log.With().Str("stage", "data_collection").Logger(),
	}
}

func (s *DataCollection) PreExecute(_ context.Context, tick *domain.TickContext) bool {
	return tick.Ticker != ""
}

func (s *DataCollection) Execute(ctx context.Context, tick *domain.TickContext) domain.StageResult {
	exchange := tick.Ports.Exchange

	daily, err := exchange.GetOHLCV(ctx, tick.Ticker, domain.Interval1d, dataCollectionCandleCount)
	if err != nil {
		return domain.StageResult{Success: false, Action: domain.ActionStop, Message: fmt.Sprintf("fatal: daily chart fetch failed: %v", err)}
	}
	tick.DailyChart = daily

	indSeries, err := s.indicatorSvc.Compute(daily, indicators.DefaultConfig())
	if err != nil {
		return domain.StageResult{Success: false, Action: domain.ActionStop, Message: fmt.Sprintf("fatal: indicator computation failed: %v", err)}
	}
	tick.Indicators = indSeries.Latest()

	if hourly, err := exchange.GetOHLCV(ctx, tick.Ticker, domain.Interval1h, dataCollectionCandleCount); err != nil {
		s.log.Warn().Str("ticker", tick.Ticker).Err(err).Msg("60m chart fetch failed, degrading")
	} else {
		tick.Hourly60Chart = hourly
	}

	if fifteen, err := exchange.GetOHLCV(ctx, tick.Ticker, domain.Interval15m, dataCollectionCandleCount); err != nil {
		s.log.Warn().Str("ticker", tick.Ticker).Err(err).Msg("15m chart fetch failed, degrading")
	} else {
		tick.Minute15Chart = fifteen
	}

	if s.referenceTicker != "" && s.referenceTicker != tick.Ticker {
		if ref, err := exchange.GetOHLCV(ctx, s.referenceTicker, domain.Interval1d, dataCollectionCandleCount); err != nil {
			s.log.Warn().Str("reference", s.referenceTicker).Err(err).Msg("reference chart fetch failed, degrading")
		} else {
			tick.ReferenceChart = ref
		}
	}

	if ob, err := exchange.GetOrderbook(ctx, tick.Ticker); err != nil {
		s.log.Warn().Str("ticker", tick.Ticker).Err(err).Msg("orderbook fetch failed, degrading")
	} else {
		tick.Orderbook = ob
		tick.OrderbookSummary = ob.Summarize()
	}

	if price, err := exchange.GetCurrentPrice(ctx, tick.Ticker); err != nil {
		s.log.Warn().Str("ticker", tick.Ticker).Err(err).Msg("current price fetch failed, degrading")
	} else if f, ok := price.Float64(); ok {
		tick.CurrentPrice = f
	}

	s.collectBalances(ctx, tick)

	if tick.Ports.MarketData != nil {
		if fg, err := tick.Ports.MarketData.GetFearGreedIndex(ctx); err != nil {
			s.log.Warn().Err(err).Msg("fear/greed index fetch failed, degrading")
		} else {
			tick.FearGreed = fg
		}
	}

	s.collectPositionDetail(tick)

	return domain.StageResult{Success: true, Action: domain.ActionContinue}
}

func (s *DataCollection) collectBalances(ctx context.Context, tick *domain.TickContext) {
	base, quote := baseAndQuote(tick.Ticker)
	if quote != "" {
		if bal, err := tick.Ports.Exchange.GetBalance(ctx, quote); err == nil {
			if f, ok := bal.Available.Float64(); ok {
				tick.QuoteBalance = f
			}
		}
	}
	if base != "" {
		if bal, err := tick.Ports.Exchange.GetBalance(ctx, base); err == nil {
			if f, ok := bal.Available.Float64(); ok {
				tick.BaseBalance = f
			}
		}
	}
}

// baseAndQuote splits a "BASE-QUOTE" ticker. Tickers that don't follow the
// convention (e.g. a bare asset symbol) yield an empty quote and the whole
// string as base.
func baseAndQuote(ticker string) (base, quote string) {
	for i := 0; i < len(ticker); i++ {
		if ticker[i] == '-' {
			return ticker[:i], ticker[i+1:]
		}
	}
	return ticker, ""
}

func (s *DataCollection) collectPositionDetail(tick *domain.TickContext) {
	for _, pos := range tick.PortfolioStatus.Positions {
		if pos.Ticker != tick.Ticker {
			continue
		}
		amount, _ := pos.Amount.Float64()
		entry, _ := pos.EntryPrice.Float64()
		value, _ := pos.Value().Float64()
		tick.PositionDetail = domain.PositionDetail{
			Held:          true,
			Amount:        amount,
			AvgBuyPrice:   entry,
			EntryTime:     pos.EntryTime,
			CurrentValue:  value,
			UnrealizedPnL: value - amount*entry,
		}
		return
	}
}
