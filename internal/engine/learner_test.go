package engine

import (
	"testing"

	"github.com/alejandrodnm/gembot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// closedTrades genera wins trades ganadores y losses perdedores.
func closedTrades(wins, losses int, winPnL, lossPnL float64) []domain.Position {
	var out []domain.Position
	for i := 0; i < wins; i++ {
		out = append(out, domain.Position{SizeUSD: 50, PnL: winPnL, ExitReason: domain.ExitTakeProfit})
	}
	for i := 0; i < losses; i++ {
		out = append(out, domain.Position{SizeUSD: 50, PnL: lossPnL, ExitReason: domain.ExitStopLoss})
	}
	return out
}

func TestLearner_SmallSampleNoChange(t *testing.T) {
	l := NewLearner()
	params := domain.DefaultParams()

	_, changed := l.Evaluate(closedTrades(4, 4, 5, -5), 8, params)
	assert.False(t, changed)
}

func TestLearner_LoosensOnGoodWindow(t *testing.T) {
	l := NewLearner()
	params := domain.DefaultParams()

	// 12W/6L: win rate 0.667 ≥ 0.55 con avg pnl positivo.
	next, changed := l.Evaluate(closedTrades(12, 6, 8, -5), 18, params)
	require.True(t, changed)

	assert.Equal(t, params.Get(domain.ParamEntryThreshold)-2, next.Get(domain.ParamEntryThreshold))
	// Kelly ya está en su bound superior: el clamp lo deja quieto.
	assert.Equal(t, 0.25, next.Get(domain.ParamKellyMultiplier))
	assert.Greater(t, next.Version, params.Version)
}

func TestLearner_TightensOnBadWindow(t *testing.T) {
	l := NewLearner()
	params := domain.DefaultParams()

	// 4W/10L: win rate 0.286 < 0.45.
	next, changed := l.Evaluate(closedTrades(4, 10, 8, -6), 14, params)
	require.True(t, changed)

	assert.Equal(t, params.Get(domain.ParamEntryThreshold)+3, next.Get(domain.ParamEntryThreshold))
	assert.InDelta(t, params.Get(domain.ParamStopLossWidth)-0.01, next.Get(domain.ParamStopLossWidth), 1e-9)
}

func TestLearner_NeutralWindowNoChange(t *testing.T) {
	l := NewLearner()
	params := domain.DefaultParams()

	// Win rate 0.50: entre los dos umbrales.
	_, changed := l.Evaluate(closedTrades(7, 7, 5, -5), 14, params)
	assert.False(t, changed)
}

func TestLearner_ClampsAtBounds(t *testing.T) {
	l := NewLearner()
	params := domain.DefaultParams()

	// Tres tightenings seguidos con datos malos: el threshold sube pero
	// nunca por encima de su bound.
	for i := 0; i < 20; i++ {
		next, changed := l.Evaluate(closedTrades(2, 12, 5, -8), 100+i, params)
		if changed {
			params = next
		}
	}
	bound := domain.Bounds[domain.ParamEntryThreshold].Max
	assert.LessOrEqual(t, params.Get(domain.ParamEntryThreshold), bound)
}

func TestLearner_StarvationRelief(t *testing.T) {
	l := NewLearner()
	params := domain.DefaultParams()
	bad := closedTrades(2, 12, 5, -8)

	// Tres tightenings con el mismo recuento total de trades.
	for i := 0; i < 3; i++ {
		next, changed := l.Evaluate(bad, 14, params)
		require.True(t, changed)
		params = next
	}
	tightened := params.Get(domain.ParamEntryThreshold)

	// Cuarta evaluación sin trades nuevos: relief fuerza un loosening.
	next, changed := l.Evaluate(bad, 14, params)
	require.True(t, changed)
	assert.Equal(t, tightened-5, next.Get(domain.ParamEntryThreshold))
}

func TestLearner_DecayComparisonRecorded(t *testing.T) {
	l := NewLearner()
	params := domain.DefaultParams()

	trades := []domain.Position{
		{SizeUSD: 50, PnL: -3, ExitReason: domain.ExitTimeDecayStop},
		{SizeUSD: 50, PnL: -4, ExitReason: domain.ExitTimeDecayStop},
		{SizeUSD: 50, PnL: -6, ExitReason: domain.ExitStopLoss},
		{SizeUSD: 50, PnL: -8, ExitReason: domain.ExitStopLoss},
	}
	l.Evaluate(trades, 4, params)

	// Decay avg -3.5 vs stop avg -7: el stop decaído sale $3.50 mejor.
	assert.InDelta(t, 3.5, l.DecayVsStopPnL, 1e-9)
}
