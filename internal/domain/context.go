package domain

import "time"

// Ports bundles the external collaborators a tick needs. Every field is a
// shared reference; stages read them but never mutate the objects behind
// them (spec: "external ports are shared references, never mutated by
// stages").
type Ports struct {
	Exchange   ExchangePort
	AI         AIPort
	MarketData MarketDataPort
	Idempotent IdempotencyPort
	Lock       LockPort
}

// IndicatorSnapshot is the latest-bar values of every derived series §3
// names, computed once per tick on the daily series.
type IndicatorSnapshot struct {
	SMA20         float64
	StdDev20      float64
	BBUpper       float64
	BBMiddle      float64
	BBLower       float64
	BBWidth       float64
	EMA           float64
	RSI           float64
	MACD          float64
	MACDSignal    float64
	ATR14         float64
	ADX14         float64
	OBV           float64
	CCI           float64
	MFI           float64
	WilliamsR     float64
	StochK        float64
	StochD        float64
	KeltnerUpper  float64
	KeltnerLower  float64
	DonchianHigh  float64
	NoiseRatio    float64
	DynamicK      float64
}

// PositionDetail is the position-info sub-payload of DataCollection (§4.3).
type PositionDetail struct {
	Held          bool
	Amount        float64
	AvgBuyPrice   float64
	EntryTime     time.Time
	CurrentValue  float64
	UnrealizedPnL float64
}

// FearGreed is the optional market-data sentiment reading.
type FearGreed struct {
	Available      bool
	Value          int
	Classification string
}

// FlashCrash is the §4.4.2 detector's output.
type FlashCrash struct {
	Detected      bool
	MaxDrop       float64
	AbnormalRatio float64
}

// DivergenceType is the closed variant of the §4.4.3 RSI-divergence detector.
type DivergenceType string

const (
	DivergenceNone     DivergenceType = "none"
	DivergenceBullish  DivergenceType = "bullish_divergence"
	DivergenceBearish  DivergenceType = "bearish_divergence"
)

// Divergence is the §4.4.3 detector's output.
type Divergence struct {
	Type       DivergenceType
	Confidence string // "high" | "medium"
}

// MarketRegime is the §4.4.1 correlation/regime classification.
type MarketRegime struct {
	Beta30d      float64
	Alpha30d     float64
	Correlation  float64
	MarketRisk   string // "low" | "medium" | "high"
}

// AIReview is the validated output of the §4.4.5 signal synthesis stage.
type AIReview struct {
	Decision         Decision
	Confidence       float64
	Reason           string
	KeyIndicators    []string
	RejectionReasons []string
	Overridden       bool
	OverrideReason   string
}

// TradeResult is the outcome of the §4.5 execution stage.
type TradeResult struct {
	Decision     Decision
	Confidence   float64
	Reason       string
	Price        float64
	Amount       float64
	Total        float64
	Commission   float64
	ExitTrigger  ExitTrigger
	RealizedPnL  float64
	IdempotencyKey string
}

// TickContext is the single mutable object a tick owns end to end. Fields
// are populated strictly in pipeline order and never reverted.
type TickContext struct {
	Ticker          string
	Ports           Ports
	StartedAt       time.Time
	Deadline        time.Time

	// DataCollection outputs
	DailyChart      *OHLCVSeries
	Hourly60Chart   *OHLCVSeries
	Minute15Chart   *OHLCVSeries
	ReferenceChart  *OHLCVSeries
	Orderbook       *Orderbook
	OrderbookSummary OrderbookSummary
	QuoteBalance    float64
	BaseBalance     float64
	CurrentPrice    float64
	FearGreed       FearGreed
	Indicators      IndicatorSnapshot
	PositionDetail  PositionDetail

	// Analysis outputs
	Regime       MarketRegime
	FlashCrash   FlashCrash
	Divergence   Divergence
	ScanResult   *ScanResult
	AIReview     *AIReview

	// Risk/mode outputs
	PortfolioStatus PortfolioStatus
	TradingMode     TradingMode

	// Execution output
	TradeResult *TradeResult

	// Bookkeeping
	Errors []error
}

// NewTickContext constructs a fresh context for one ticker tick.
func NewTickContext(ticker string, ports Ports, now time.Time, deadline time.Duration) *TickContext {
	return &TickContext{
		Ticker:    ticker,
		Ports:     ports,
		StartedAt: now,
		Deadline:  now.Add(deadline),
	}
}
