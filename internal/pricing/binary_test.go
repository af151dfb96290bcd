package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceBinary_ATMNearHalf(t *testing.T) {
	// ATM con drift -σ²/2: la probabilidad queda justo por debajo de 0.5.
	p := PriceBinary(67000, 67000, 4, 0.60)
	assert.Greater(t, p.Probability, 0.45)
	assert.Less(t, p.Probability, 0.5)
	assert.Greater(t, p.Delta, 0.0)
}

func TestPriceBinary_MonotonicInSpot(t *testing.T) {
	strike := 67000.0
	prev := -1.0
	for _, spot := range []float64{60000, 64000, 66000, 67000, 68000, 70000, 74000} {
		p := PriceBinary(spot, strike, 6, 0.55).Probability
		assert.Greater(t, p, prev, "probabilidad debe crecer con el spot (spot=%.0f)", spot)
		assert.Greater(t, p, 0.0)
		assert.Less(t, p, 1.0)
		prev = p
	}
}

func TestPriceBinary_ExpiryStep(t *testing.T) {
	above := PriceBinary(67500, 67000, 0, 0.60)
	below := PriceBinary(66500, 67000, 0, 0.60)
	atStrike := PriceBinary(67000, 67000, -1, 0.60)

	assert.Equal(t, 1.0, above.Probability)
	assert.Equal(t, 0.0, below.Probability)
	assert.Equal(t, 0.0, atStrike.Probability) // above es estricto
	assert.Equal(t, 0.0, above.Delta)
}

func TestPriceBinary_DegenerateInputs(t *testing.T) {
	for _, p := range []BinaryPrice{
		PriceBinary(0, 67000, 4, 0.60),
		PriceBinary(67000, 0, 4, 0.60),
		PriceBinary(67000, 67000, 4, 0),
	} {
		assert.Equal(t, 0.5, p.Probability)
		assert.Equal(t, 0.0, p.Delta)
	}
}

func TestPriceBinary_MoreTimeMoreUncertainty(t *testing.T) {
	// Deep ITM: más tiempo a expiry acerca la probabilidad a 0.5.
	short := PriceBinary(70000, 67000, 1, 0.60).Probability
	long := PriceBinary(70000, 67000, 72, 0.60).Probability
	assert.Greater(t, short, long)
	assert.Greater(t, long, 0.5)
}

func TestNormCDF_Symmetry(t *testing.T) {
	assert.InDelta(t, 0.5, normCDF(0), 1e-7)
	assert.InDelta(t, 1.0, normCDF(3)+normCDF(-3), 1e-7)
	// Valor tabulado: Φ(1.96) ≈ 0.9750
	assert.InDelta(t, 0.9750, normCDF(1.96), 1e-4)
}
