package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKellySize_QuarterKellyScalesRawKelly(t *testing.T) {
	result, err := KellySize(0.6, 100, 50, 10000, 0.25)
	require.NoError(t, err)

	b := 100.0 / 50.0
	q := 1 - 0.6
	rawKelly := (0.6*b - q) / b
	assert.InDelta(t, rawKelly*100, result.KellyPercent, 0.001)
	assert.InDelta(t, rawKelly*0.25*100, result.AdjustedPercent, 0.001)
	assert.InDelta(t, 10000*rawKelly*0.25, result.PositionSize, 0.001)
}

func TestKellySize_NegativeEdgeClampsToZero(t *testing.T) {
	result, err := KellySize(0.2, 50, 100, 10000, 0.25)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.PositionSize)
}

func TestKellySize_RejectsInvalidInputs(t *testing.T) {
	_, err := KellySize(1.5, 100, 50, 10000, 0.25)
	assert.Error(t, err)

	_, err = KellySize(0.5, -1, 50, 10000, 0.25)
	assert.Error(t, err)

	_, err = KellySize(0.5, 100, 50, -1, 0.25)
	assert.Error(t, err)
}
