package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/gembot/internal/domain"
)

// Storage persiste posiciones, wallet, parámetros y el audit log de señales.
type Storage interface {
	// Posiciones
	SavePosition(ctx context.Context, p domain.Position) error
	ClosePosition(ctx context.Context, p domain.Position) error
	GetOpenPositions(ctx context.Context) ([]domain.Position, error)
	GetRecentClosed(ctx context.Context, n int) ([]domain.Position, error)
	GetClosedSince(ctx context.Context, since time.Time) ([]domain.Position, error)

	// Wallet (un único writer: el ledger del engine)
	SaveWallet(ctx context.Context, w domain.WalletState) error
	LoadWallet(ctx context.Context) (domain.WalletState, bool, error)

	// Parámetros tunables
	UpsertParam(ctx context.Context, name string, value float64) error
	LoadParams(ctx context.Context) (map[string]float64, error)

	// Audit log de señales (solo para training/auditoría, nunca autoritativo)
	SaveSignal(ctx context.Context, s domain.Signal) error

	Close() error
}
