package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/gembot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func samplePosition(id, marketID string) domain.Position {
	return domain.Position{
		ID:         id,
		MarketID:   marketID,
		Asset:      "BTC",
		Category:   domain.CategoryCrypto,
		Direction:  domain.DirectionYes,
		Mode:       domain.ModePaper,
		EntryPrice: 0.40,
		SizeUSD:    50,
		TakeProfit: 0.55,
		StopLoss:   0.30,
		Score:      72,
		OpenedAt:   time.Now().UTC().Truncate(time.Second),
		IsOpen:     true,
	}
}

func TestSQLite_PositionRoundtrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	p := samplePosition("p1", "btc-above-67000")
	require.NoError(t, s.SavePosition(ctx, p))

	open, err := s.GetOpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)

	got := open[0]
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.MarketID, got.MarketID)
	assert.Equal(t, domain.CategoryCrypto, got.Category)
	assert.Equal(t, domain.DirectionYes, got.Direction)
	assert.Equal(t, p.EntryPrice, got.EntryPrice)
	assert.Equal(t, p.TakeProfit, got.TakeProfit)
	assert.True(t, got.IsOpen)
	assert.WithinDuration(t, p.OpenedAt, got.OpenedAt, time.Second)
}

func TestSQLite_SavePositionUpsertsExitFields(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	p := samplePosition("p1", "btc-above-67000")
	require.NoError(t, s.SavePosition(ctx, p))

	// El learner puede haber movido los widths: re-guardar actualiza TP/SL.
	p.TakeProfit = 0.60
	p.ExitRetries = 2
	require.NoError(t, s.SavePosition(ctx, p))

	open, err := s.GetOpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, 0.60, open[0].TakeProfit)
	assert.Equal(t, 2, open[0].ExitRetries)
}

func TestSQLite_CloseAndRecentClosed(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	for i, id := range []string{"p1", "p2", "p3"} {
		p := samplePosition(id, id+"-market")
		require.NoError(t, s.SavePosition(ctx, p))

		p.IsOpen = false
		p.ExitPrice = 0.50
		p.PnL = float64(i + 1)
		p.ExitReason = domain.ExitTakeProfit
		p.ClosedAt = now.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.ClosePosition(ctx, p))
	}

	open, err := s.GetOpenPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	// Más reciente primero, respetando el límite.
	closed, err := s.GetRecentClosed(ctx, 2)
	require.NoError(t, err)
	require.Len(t, closed, 2)
	assert.Equal(t, "p3", closed[0].ID)
	assert.Equal(t, "p2", closed[1].ID)
	assert.Equal(t, domain.ExitTakeProfit, closed[0].ExitReason)
	assert.False(t, closed[0].IsOpen)

	since, err := s.GetClosedSince(ctx, now.Add(30*time.Second))
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, "p2", since[0].ID)
}

func TestSQLite_CloseUnknownPosition(t *testing.T) {
	s := newTestStorage(t)
	p := samplePosition("ghost", "m1")
	p.IsOpen = false
	err := s.ClosePosition(context.Background(), p)
	assert.Error(t, err)
}

func TestSQLite_AbandonedPersisted(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	p := samplePosition("p1", "m1")
	require.NoError(t, s.SavePosition(ctx, p))

	p.IsOpen = false
	p.Abandoned = true
	p.ExitRetries = 3
	require.NoError(t, s.ClosePosition(ctx, p))

	closed, err := s.GetRecentClosed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.True(t, closed[0].Abandoned)
	assert.Equal(t, 3, closed[0].ExitRetries)
}

func TestSQLite_WalletFirstBootAndRoundtrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, found, err := s.LoadWallet(ctx)
	require.NoError(t, err)
	assert.False(t, found) // primer arranque: sin fila

	w := domain.WalletState{Balance: 950, InitialBalance: 1000, PeakBalance: 1020}
	require.NoError(t, s.SaveWallet(ctx, w))

	got, found, err := s.LoadWallet(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, w, got)

	// El initial_balance no se sobreescribe en upserts posteriores.
	w2 := domain.WalletState{Balance: 980, InitialBalance: 500, PeakBalance: 1020}
	require.NoError(t, s.SaveWallet(ctx, w2))

	got, _, err = s.LoadWallet(ctx)
	require.NoError(t, err)
	assert.Equal(t, 980.0, got.Balance)
	assert.Equal(t, 1000.0, got.InitialBalance)
}

func TestSQLite_ParamsUpsertAndLoad(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertParam(ctx, domain.ParamEntryThreshold, 60))
	require.NoError(t, s.UpsertParam(ctx, domain.ParamEntryThreshold, 58))
	require.NoError(t, s.UpsertParam(ctx, domain.ParamKellyMultiplier, 0.20))

	params, err := s.LoadParams(ctx)
	require.NoError(t, err)
	assert.Equal(t, 58.0, params[domain.ParamEntryThreshold])
	assert.Equal(t, 0.20, params[domain.ParamKellyMultiplier])
	assert.Len(t, params, 2)
}

func TestSQLite_SaveSignal(t *testing.T) {
	s := newTestStorage(t)

	sig := domain.Signal{
		MarketID:    "btc-above-67000",
		Asset:       "BTC",
		Category:    domain.CategoryCrypto,
		Kind:        domain.KindArbitrage,
		Direction:   domain.DirectionYes,
		RawEdge:     0.07,
		NetEdge:     0.055,
		Score:       82,
		Confidence:  domain.ConfidenceHigh,
		TargetPrice: 0.28,
		FairValue:   0.35,
		At:          time.Now().UTC(),
	}
	assert.NoError(t, s.SaveSignal(context.Background(), sig))
}
