package risk

import "fmt"

// KellyResult is the outcome of a fractional-Kelly position-size calculation.
type KellyResult struct {
	PositionSize    float64
	KellyPercent    float64
	AdjustedPercent float64
}

// KellySize computes a position size using the fractional Kelly criterion
// (f = (p*b - q) / b, then scaled by kellyFraction for a more conservative
// stake), the same formula the teacher's risk service used for its
// Kelly-criterion MCP tool. This is the scanner's alternative sizing mode to
// the strategy's ATR-risk sizing (§4.6.6) — useful once a ticker has enough
// realised trade history to estimate win_rate/avg_win/avg_loss reliably.
func KellySize(winRate, avgWin, avgLoss, capital, kellyFraction float64) (KellyResult, error) {
	if winRate < 0 || winRate > 1 {
		return KellyResult{}, fmt.Errorf("risk: win_rate must be in [0,1], got %v", winRate)
	}
	if avgWin <= 0 {
		return KellyResult{}, fmt.Errorf("risk: avg_win must be positive, got %v", avgWin)
	}
	if avgLoss <= 0 {
		return KellyResult{}, fmt.Errorf("risk: avg_loss must be positive, got %v", avgLoss)
	}
	if capital <= 0 {
		return KellyResult{}, fmt.Errorf("risk: capital must be positive, got %v", capital)
	}
	if kellyFraction < 0 || kellyFraction > 1 {
		return KellyResult{}, fmt.Errorf("risk: kelly_fraction must be in [0,1], got %v", kellyFraction)
	}

	b := avgWin / avgLoss
	q := 1 - winRate
	kellyPercent := (winRate*b - q) / b
	adjusted := kellyPercent * kellyFraction
	if adjusted < 0 {
		adjusted = 0
	}

	return KellyResult{
		PositionSize:    capital * adjusted,
		KellyPercent:    kellyPercent * 100,
		AdjustedPercent: adjusted * 100,
	}, nil
}
