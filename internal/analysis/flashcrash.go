package analysis

import "github.com/ajitpratap0/cryptobreakout/internal/domain"

// DetectFlashCrash implements spec.md §4.4.2: over the last `lookback`
// bars, a sudden drop far beyond what ATR alone would explain.
func DetectFlashCrash(closes []float64, atr14 float64, lookback int) domain.FlashCrash {
	n := len(closes)
	if n == 0 || lookback <= 0 || atr14 <= 0 {
		return domain.FlashCrash{}
	}
	if lookback > n {
		lookback = n
	}

	window := closes[n-lookback:]
	maxHigh := window[0]
	for _, v := range window {
		if v > maxHigh {
			maxHigh = v
		}
	}
	current := closes[n-1]
	if maxHigh == 0 {
		return domain.FlashCrash{}
	}

	maxDrop := (current - maxHigh) / maxHigh
	abnormalRatio := absf(current-maxHigh) / (atr14 * float64(lookback))

	return domain.FlashCrash{
		Detected:      maxDrop <= -0.05 && abnormalRatio > 2.0,
		MaxDrop:       maxDrop,
		AbnormalRatio: abnormalRatio,
	}
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
