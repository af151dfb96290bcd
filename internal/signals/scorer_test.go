package signals

import (
	"testing"
	"time"

	"github.com/alejandrodnm/gembot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseContract() domain.Contract {
	return domain.Contract{
		MarketID: "btc-above-67000",
		Asset:    "BTC",
		Strike:   67000,
		Category: domain.CategoryCrypto,
		Bid:      domain.Ptr(0.40),
		Ask:      domain.Ptr(0.44),
	}
}

func hotInput(now time.Time) Input {
	return Input{
		Contract:            baseContract(),
		FairValue:           domain.Ptr(0.55), // gap +0.13 vs mid 0.42 → YES
		SpotPrice:           67500,
		SpotVelocity:        0.006,            // por encima del threshold default 0.004
		VenueSpread:         domain.Ptr(0.04),
		ReferenceSpreads:    []float64{0.01},
		LastTradeAt:         now.Add(-20 * time.Minute),
		ReferenceDirections: []int{1, 1},
		CategoryWinRate:     0.65,
		At:                  now,
	}
}

func TestComponents_CapsRespected(t *testing.T) {
	now := time.Now()
	s := NewScorer()
	params := domain.DefaultParams()

	in := hotInput(now)
	in.SpotVelocity = 0.5             // saturado
	in.VenueSpread = domain.Ptr(0.90) // saturado
	in.LastTradeAt = now.Add(-2 * time.Hour)
	in.CategoryWinRate = 1.0

	c := s.components(in, params)
	assert.Equal(t, 30.0, c.Velocity)
	assert.Equal(t, 20.0, c.SpreadDiff)
	assert.Equal(t, 15.0, c.Consensus)
	assert.Equal(t, 20.0, c.Staleness)
	assert.Equal(t, 15.0, c.WinRate)
	assert.Equal(t, 100.0, c.Total())
}

func TestComponents_ConsensusFactors(t *testing.T) {
	assert.Equal(t, 1.0, consensusFactor([]int{1, 1}))
	assert.Equal(t, 0.7, consensusFactor([]int{1, 0}))
	assert.Equal(t, 0.0, consensusFactor([]int{1, -1}))
	assert.Equal(t, 0.5, consensusFactor([]int{0, 0}))
	assert.Equal(t, 0.5, consensusFactor(nil)) // datos insuficientes
}

func TestScore_ActionableSignal(t *testing.T) {
	now := time.Now()
	s := NewScorer()
	params := domain.DefaultParams()

	sig, ok := s.Score(hotInput(now), params)
	require.True(t, ok)

	assert.Equal(t, domain.KindComposite, sig.Kind)
	assert.Equal(t, domain.DirectionYes, sig.Direction)
	assert.Equal(t, 0.44, sig.TargetPrice) // YES se compra al ask
	assert.GreaterOrEqual(t, sig.Score, params.Get(domain.ParamEntryThreshold))
	assert.InDelta(t, 0.55-0.44, sig.RawEdge, 1e-9)
}

func TestScore_BelowThresholdRejected(t *testing.T) {
	now := time.Now()
	s := NewScorer()
	params := domain.DefaultParams()

	in := hotInput(now)
	in.SpotVelocity = 0.0001
	in.VenueSpread = domain.Ptr(0.01)
	in.ReferenceSpreads = []float64{0.02}
	in.LastTradeAt = now.Add(-5 * time.Second)
	in.ReferenceDirections = []int{1, -1}
	in.CategoryWinRate = 0.1

	_, ok := s.Score(in, params)
	assert.False(t, ok)
}

func TestScore_CooldownSuppressesRepeat(t *testing.T) {
	now := time.Now()
	s := NewScorer()
	params := domain.DefaultParams()

	_, ok := s.Score(hotInput(now), params)
	require.True(t, ok)

	// Misma señal 60s después: dentro del cooldown de 300s.
	_, ok = s.Score(hotInput(now.Add(time.Minute)), params)
	assert.False(t, ok)

	// Pasado el cooldown vuelve a ser accionable.
	_, ok = s.Score(hotInput(now.Add(6*time.Minute)), params)
	assert.True(t, ok)
}

func TestScore_DirectionNoFromFairValueGap(t *testing.T) {
	now := time.Now()
	s := NewScorer()
	params := domain.DefaultParams()

	in := hotInput(now)
	in.FairValue = domain.Ptr(0.30) // fair muy por debajo del mid 0.42

	sig, ok := s.Score(in, params)
	require.True(t, ok)
	assert.Equal(t, domain.DirectionNo, sig.Direction)
	assert.InDelta(t, 1-0.40, sig.TargetPrice, 1e-9) // NO cuesta 1 - bid
	assert.InDelta(t, (1-0.30)-0.60, sig.RawEdge, 1e-9)
}

func TestMomentum_DetectsRepricingLag(t *testing.T) {
	now := time.Now()
	s := NewScorer()
	params := domain.DefaultParams()

	in := Input{
		Contract:        baseContract(),
		SpotPrice:       67500,
		SpotVelocity:    0.008,  // movimiento fuerte al alza
		ContractDelta:   0.0001, // prob/$ → esperado = 0.0001*540 = 0.054
		ContractReprice: 0.005,  // el contrato apenas se ha movido
		At:              now,
	}

	sig, ok := s.Momentum(in, params)
	require.True(t, ok)
	assert.Equal(t, domain.KindMomentum, sig.Kind)
	assert.Equal(t, domain.DirectionYes, sig.Direction)
	assert.GreaterOrEqual(t, sig.Score, 60.0)
	assert.LessOrEqual(t, sig.Score, 100.0)
}

func TestMomentum_NoSignalWhenRepriced(t *testing.T) {
	now := time.Now()
	s := NewScorer()
	params := domain.DefaultParams()

	in := Input{
		Contract:        baseContract(),
		SpotPrice:       67500,
		SpotVelocity:    0.008,
		ContractDelta:   0.0001,
		ContractReprice: 0.054, // repriceado en línea con el modelo
		At:              now,
	}
	_, ok := s.Momentum(in, params)
	assert.False(t, ok)
}

func TestMomentum_BelowVelocityThreshold(t *testing.T) {
	now := time.Now()
	s := NewScorer()
	params := domain.DefaultParams()

	in := Input{
		Contract:      baseContract(),
		SpotPrice:     67500,
		SpotVelocity:  0.001, // bajo el threshold 0.004
		ContractDelta: 0.0001,
		At:            now,
	}
	_, ok := s.Momentum(in, params)
	assert.False(t, ok)
}

func TestMomentum_DownMoveBuysNo(t *testing.T) {
	now := time.Now()
	s := NewScorer()
	params := domain.DefaultParams()

	in := Input{
		Contract:        baseContract(),
		SpotPrice:       67500,
		SpotVelocity:    -0.008,
		ContractDelta:   0.0001, // esperado = 0.0001*(-540) = -0.054
		ContractReprice: -0.004, // casi sin mover → lag negativo, mismo signo
		At:              now,
	}

	sig, ok := s.Momentum(in, params)
	require.True(t, ok)
	assert.Equal(t, domain.DirectionNo, sig.Direction)
	assert.InDelta(t, 1-0.40, sig.TargetPrice, 1e-9)
}
