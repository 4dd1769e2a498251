package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/cryptobreakout/internal/domain"
)

func TestDetectDivergence_BearishOnRisingPriceFallingRSIPeaks(t *testing.T) {
	// two price peaks rising (at idx 2 and idx 6), two RSI peaks falling at
	// the same indices.
	closes := []float64{100, 101, 105, 102, 103, 104, 108, 103}
	rsi := []float64{50, 55, 70, 60, 58, 56, 65, 55}

	d := DetectDivergence(closes, rsi, len(closes))
	assert.Equal(t, domain.DivergenceBearish, d.Type)
}

func TestDetectDivergence_NoneOnFlatSeries(t *testing.T) {
	closes := make([]float64, 20)
	rsi := make([]float64, 20)
	for i := range closes {
		closes[i] = 100
		rsi[i] = 50
	}
	d := DetectDivergence(closes, rsi, 20)
	assert.Equal(t, domain.DivergenceNone, d.Type)
}
