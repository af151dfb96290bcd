package ports

import (
	"context"

	"github.com/alejandrodnm/gembot/internal/domain"
)

// Executor places and cancels orders on the thin venue and reports the
// venue's authoritative position list.
type Executor interface {
	// PlaceOrder submits an order. A failed live order is abandoned for the
	// tick — the engine never downgrades it to a paper fill.
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)

	// CancelOrder cancels a resting order by venue order ID.
	CancelOrder(ctx context.Context, orderID string) error

	// GetOpenPositions returns the venue's authoritative open positions,
	// used by the reconciliation engine.
	GetOpenPositions(ctx context.Context) ([]domain.VenuePosition, error)

	// GetAvailableBalance returns the venue balance, or nil when the venue
	// cannot report it (paper executors return nil).
	GetAvailableBalance(ctx context.Context) (*float64, error)
}
