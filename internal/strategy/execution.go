package strategy

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
)

func decimalFromFloat(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// Size computes an order's base-currency amount from equity and the
// signal's price risk, per spec.md §4.6.6.
func (s *Strategy) Size(equity, price decimal.Decimal, stopLoss *decimal.Decimal) decimal.Decimal {
	eq, _ := equity.Float64()
	px, _ := price.Float64()
	if px <= 0 || eq <= 0 {
		return decimal.Zero
	}

	if stopLoss == nil {
		fallback := eq * s.cfg.Sizing.FallbackPositionPct / px
		return decimal.NewFromFloat(fallback)
	}

	sl, _ := stopLoss.Float64()
	priceRisk := px - sl
	if priceRisk < 0 {
		priceRisk = -priceRisk
	}
	floor := s.cfg.Sizing.PriceRiskFloorPct * px
	ceiling := s.cfg.Sizing.PriceRiskCeilingPct * px
	if priceRisk < floor {
		priceRisk = floor
	}
	if priceRisk > ceiling {
		priceRisk = ceiling
	}

	riskAmount := eq * s.cfg.Sizing.RiskPerTrade
	size := riskAmount / priceRisk

	minSize := s.cfg.Sizing.MinPositionPct * eq / px
	maxSize := s.cfg.Sizing.MaxPositionPct * eq / px
	if size < minSize {
		size = minSize
	}
	if size > maxSize {
		size = maxSize
	}
	return decimal.NewFromFloat(size)
}

// Fill is the simulated outcome of executing one order.
type Fill struct {
	Price           float64
	SlippagePct     float64
	Commission      float64
	ExceededWarning bool
}

// ApplyFill computes the slippage-and-commission-adjusted fill price for a
// single order of `side` ("buy"/"sell") against the configured slippage
// model. ob may be nil when the orderbook model isn't in use.
func (s *Strategy) ApplyFill(side string, quotedPrice, size float64, ob *domain.Orderbook) Fill {
	switch s.cfg.Slippage.Model {
	case SlippageOrderbook:
		return s.fillFromOrderbook(side, quotedPrice, size, ob)
	default:
		return s.fillFromPercentage(side, quotedPrice)
	}
}

func (s *Strategy) fillFromPercentage(side string, quotedPrice float64) Fill {
	bps := s.cfg.Slippage.PercentageBps / 10000
	price := quotedPrice
	if side == "buy" {
		price = quotedPrice * (1 + bps)
	} else {
		price = quotedPrice * (1 - bps)
	}
	commission := price * s.cfg.Commission
	return Fill{
		Price:           price,
		SlippagePct:     bps,
		Commission:      commission,
		ExceededWarning: bps > s.cfg.Slippage.WarnThreshold,
	}
}

// fillFromOrderbook walks the book to fill `size` units, the way a market
// order actually consumes liquidity level by level.
func (s *Strategy) fillFromOrderbook(side string, quotedPrice, size float64, ob *domain.Orderbook) Fill {
	if ob == nil {
		return s.fillFromPercentage(side, quotedPrice)
	}
	levels := ob.Asks
	if side == "sell" {
		levels = ob.Bids
	}

	remaining := size
	var notional float64
	var filled float64
	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		px, _ := lvl.Price.Float64()
		vol, _ := lvl.Volume.Float64()
		take := math.Min(vol, remaining)
		notional += take * px
		filled += take
		remaining -= take
	}
	if filled == 0 {
		return s.fillFromPercentage(side, quotedPrice)
	}
	avgPrice := notional / filled
	var slippagePct float64
	if quotedPrice != 0 {
		if side == "buy" {
			slippagePct = (avgPrice - quotedPrice) / quotedPrice
		} else {
			slippagePct = (quotedPrice - avgPrice) / quotedPrice
		}
	}
	if slippagePct > s.cfg.Slippage.WarnThreshold {
		log.Warn().Str("side", side).Float64("slippage_pct", slippagePct).Msg("strategy: fill slippage exceeded warn threshold")
	}
	commission := avgPrice * s.cfg.Commission
	return Fill{
		Price:           avgPrice,
		SlippagePct:     slippagePct,
		Commission:      commission,
		ExceededWarning: slippagePct > s.cfg.Slippage.WarnThreshold,
	}
}

// SplitOrder computes the chunk sizes for a split buy, per spec.md §4.6.5:
// the chunk count is chosen so the top-5 average ask volume is at least the
// chunk size, clamped to [min_chunks, max_chunks].
func (s *Strategy) SplitOrder(totalSize float64, ob *domain.Orderbook) ([]float64, error) {
	if !s.cfg.OrderSplit.Enabled {
		return []float64{totalSize}, nil
	}
	if ob == nil || len(ob.Asks) == 0 {
		return nil, fmt.Errorf("strategy: split orders require an orderbook")
	}

	topN := s.cfg.OrderSplit.TopNForSizing
	if topN > len(ob.Asks) {
		topN = len(ob.Asks)
	}
	var sumVol float64
	for _, lvl := range ob.Asks[:topN] {
		v, _ := lvl.Volume.Float64()
		sumVol += v
	}
	avgTopVol := sumVol / float64(topN)

	chunks := s.cfg.OrderSplit.MinChunks
	if avgTopVol > 0 {
		for chunks < s.cfg.OrderSplit.MaxChunks && totalSize/float64(chunks) > avgTopVol {
			chunks++
		}
	}
	if chunks < s.cfg.OrderSplit.MinChunks {
		chunks = s.cfg.OrderSplit.MinChunks
	}
	if chunks > s.cfg.OrderSplit.MaxChunks {
		chunks = s.cfg.OrderSplit.MaxChunks
	}

	chunkSize := totalSize / float64(chunks)
	sizes := make([]float64, chunks)
	for i := range sizes {
		sizes[i] = chunkSize
	}
	return sizes, nil
}
