package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/alejandrodnm/gembot/internal/domain"
)

// Executor implementa ports.Executor para modo paper: cada orden se rellena
// al precio pedido, sin slippage ni fallos. El balance del venue es nil —
// el wallet simulado del ledger es la única fuente de verdad en paper.
type Executor struct {
	mu     sync.Mutex
	orders []domain.OrderRequest // histórico para inspección en tests
}

// NewExecutor crea un executor paper.
func NewExecutor() *Executor { return &Executor{} }

// PlaceOrder rellena la orden inmediatamente al precio límite.
func (e *Executor) PlaceOrder(_ context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	if req.Amount <= 0 {
		return domain.OrderResult{Status: "rejected"}, fmt.Errorf("sim.Executor.PlaceOrder: amount no positivo %.2f", req.Amount)
	}
	if req.Price <= 0 || req.Price >= 1 {
		return domain.OrderResult{Status: "rejected"}, fmt.Errorf("sim.Executor.PlaceOrder: precio fuera de rango %.4f", req.Price)
	}

	e.mu.Lock()
	e.orders = append(e.orders, req)
	e.mu.Unlock()

	qty := req.Amount / req.Price
	return domain.OrderResult{
		Success:        true,
		OrderID:        uuid.NewString(),
		FillPrice:      req.Price,
		FilledQuantity: qty,
		Status:         "filled",
	}, nil
}

// CancelOrder no hace nada: las órdenes paper se rellenan al instante.
func (e *Executor) CancelOrder(context.Context, string) error { return nil }

// GetOpenPositions devuelve vacío: el venue simulado no mantiene posiciones.
func (e *Executor) GetOpenPositions(context.Context) ([]domain.VenuePosition, error) {
	return nil, nil
}

// GetAvailableBalance devuelve nil: en paper manda el wallet del ledger.
func (e *Executor) GetAvailableBalance(context.Context) (*float64, error) {
	return nil, nil
}

// Orders devuelve una copia del histórico de órdenes recibidas.
func (e *Executor) Orders() []domain.OrderRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.OrderRequest, len(e.orders))
	copy(out, e.orders)
	return out
}
