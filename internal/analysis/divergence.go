package analysis

import "github.com/ajitpratap0/cryptobreakout/internal/domain"

// DetectDivergence implements spec.md §4.4.3: locate price/RSI peaks and
// troughs over the last `lookback` bars and compare their direction.
func DetectDivergence(closes, rsi []float64, lookback int) domain.Divergence {
	n := len(closes)
	if n == 0 || len(rsi) != n {
		return domain.Divergence{Type: domain.DivergenceNone}
	}
	if lookback > n {
		lookback = n
	}
	start := n - lookback
	priceWindow := closes[start:]
	rsiWindow := rsi[start:]

	pricePeaks := localMaxima(priceWindow)
	rsiPeaks := localMaxima(rsiWindow)
	if d, ok := pairwiseDivergence(pricePeaks, rsiPeaks, priceWindow, rsiWindow, true); ok {
		return d
	}

	priceTroughs := localMinima(priceWindow)
	rsiTroughs := localMinima(rsiWindow)
	if d, ok := pairwiseDivergence(priceTroughs, rsiTroughs, priceWindow, rsiWindow, false); ok {
		return d
	}

	return domain.Divergence{Type: domain.DivergenceNone}
}

// pairwiseDivergence compares the two most recent price extrema with the
// two most recent indicator extrema in the same window. peaks=true checks
// for rising price / falling RSI (bearish); peaks=false checks for falling
// price / rising RSI (bullish).
func pairwiseDivergence(priceIdx, rsiIdx []int, prices, rsi []float64, peaks bool) (domain.Divergence, bool) {
	if len(priceIdx) < 2 || len(rsiIdx) < 2 {
		return domain.Divergence{}, false
	}
	p1, p2 := priceIdx[len(priceIdx)-2], priceIdx[len(priceIdx)-1]
	r1, r2 := rsiIdx[len(rsiIdx)-2], rsiIdx[len(rsiIdx)-1]

	priceRising := prices[p2] > prices[p1]
	rsiFalling := rsi[r2] < rsi[r1]

	var matched bool
	var divType domain.DivergenceType
	if peaks {
		matched = priceRising && rsiFalling
		divType = domain.DivergenceBearish
	} else {
		matched = !priceRising && !rsiFalling
		divType = domain.DivergenceBullish
	}
	if !matched {
		return domain.Divergence{}, false
	}

	dist := absInt(p2 - r2)
	confidence := "medium"
	if dist < 3 {
		confidence = "high"
	}
	return domain.Divergence{Type: divType, Confidence: confidence}, true
}

func localMaxima(x []float64) []int {
	var idx []int
	for i := 1; i < len(x)-1; i++ {
		if x[i] > x[i-1] && x[i] > x[i+1] {
			idx = append(idx, i)
		}
	}
	return idx
}

func localMinima(x []float64) []int {
	var idx []int
	for i := 1; i < len(x)-1; i++ {
		if x[i] < x[i-1] && x[i] < x[i+1] {
			idx = append(idx, i)
		}
	}
	return idx
}

func absInt(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
