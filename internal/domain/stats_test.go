package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closedTrade(pnl float64, reason ExitReason) Position {
	return Position{SizeUSD: 50, PnL: pnl, ExitReason: reason}
}

func TestComputeTradeStats_TwentyTradeWindow(t *testing.T) {
	var trades []Position
	for i := 0; i < 12; i++ {
		trades = append(trades, closedTrade(8, ExitTakeProfit))
	}
	for i := 0; i < 8; i++ {
		trades = append(trades, closedTrade(-5, ExitStopLoss))
	}

	stats := ComputeTradeStats(trades)
	assert.Equal(t, 20, stats.Count)
	assert.Equal(t, 12, stats.Wins)
	assert.Equal(t, 8, stats.Losses)
	assert.InDelta(t, 0.60, stats.WinRate, 1e-9)
	assert.InDelta(t, 56.0, stats.TotalPnL, 1e-9)
	assert.InDelta(t, 2.8, stats.AvgPnL, 1e-9)
	assert.InDelta(t, 96.0/40.0, stats.ProfitFactor, 1e-9)

	// Sharpe positivo y finito: media de retornos positiva con dispersión real.
	assert.Greater(t, stats.Sharpe, 0.0)
	assert.False(t, math.IsInf(stats.Sharpe, 0))

	require.Contains(t, stats.ByExitReason, ExitTakeProfit)
	require.Contains(t, stats.ByExitReason, ExitStopLoss)
	assert.Equal(t, 12, stats.ByExitReason[ExitTakeProfit].Count)
	assert.InDelta(t, 8.0, stats.ByExitReason[ExitTakeProfit].AvgPnL, 1e-9)
	assert.Equal(t, 8, stats.ByExitReason[ExitStopLoss].Count)
	assert.InDelta(t, -5.0, stats.ByExitReason[ExitStopLoss].AvgPnL, 1e-9)
}

func TestComputeTradeStats_SkipsOpenAndAbandoned(t *testing.T) {
	trades := []Position{
		closedTrade(10, ExitTakeProfit),
		{SizeUSD: 50, PnL: 99, IsOpen: true},
		{SizeUSD: 50, PnL: -99, Abandoned: true},
	}

	stats := ComputeTradeStats(trades)
	assert.Equal(t, 1, stats.Count)
	assert.InDelta(t, 10.0, stats.TotalPnL, 1e-9)
}

func TestComputeTradeStats_EmptyWindow(t *testing.T) {
	stats := ComputeTradeStats(nil)
	assert.Equal(t, 0, stats.Count)
	assert.Equal(t, 0.0, stats.WinRate)
	assert.Equal(t, 0.0, stats.Sharpe)
}

func TestComputeTradeStats_AllWinsInfiniteProfitFactor(t *testing.T) {
	trades := []Position{
		closedTrade(5, ExitTakeProfit),
		closedTrade(7, ExitTakeProfit),
	}
	stats := ComputeTradeStats(trades)
	assert.True(t, math.IsInf(stats.ProfitFactor, 1))
}

func TestComputeTradeStats_MaxDrawdown(t *testing.T) {
	// +0.2, -0.1, -0.2, +0.1 en retornos: peak 0.2, valle -0.1 → dd 0.3.
	trades := []Position{
		{SizeUSD: 100, PnL: 20, ExitReason: ExitTakeProfit},
		{SizeUSD: 100, PnL: -10, ExitReason: ExitStopLoss},
		{SizeUSD: 100, PnL: -20, ExitReason: ExitStopLoss},
		{SizeUSD: 100, PnL: 10, ExitReason: ExitTakeProfit},
	}
	stats := ComputeTradeStats(trades)
	assert.InDelta(t, 0.30, stats.MaxDrawdown, 1e-9)
}
