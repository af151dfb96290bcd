package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/gembot/internal/domain"
)

// ContractProvider descubre los contratos binarios activos del venue fino
// ya matcheados con su evento de settlement.
type ContractProvider interface {
	// ActiveContracts devuelve los contratos listados y no expirados.
	ActiveContracts(ctx context.Context) ([]domain.Contract, error)
}

// MarketDataFeed expone best prices y profundidad de un venue.
type MarketDataFeed interface {
	// GetBestPrices devuelve la quote actual del instrumento.
	GetBestPrices(ctx context.Context, instrument string) (domain.Quote, error)

	// GetOrderbookDepth devuelve la profundidad en USD. Best-effort:
	// nil sin error cuando el venue no la expone.
	GetOrderbookDepth(ctx context.Context, instrument string) (*domain.Depth, error)
}

// BracketFeed expone la ladder de brackets del venue de referencia.
type BracketFeed interface {
	// GetBracketLadder devuelve la ladder del asset para el próximo
	// settlement. Error si el venue no lista brackets para el asset.
	GetBracketLadder(ctx context.Context, asset string) (domain.BracketLadder, error)
}

// SpotFeed expone el precio spot del subyacente.
// Push (Record) y pull (GetSpotPrice): el host empuja ticks del websocket,
// el engine consulta el último valor al inicio del tick.
type SpotFeed interface {
	RecordSpotPrice(asset string, price float64, at time.Time)
	GetSpotPrice(ctx context.Context, asset string) (float64, error)
}

// ReferenceFeed es una fuente opcional de probabilidad externa (0-3 por
// configuración). Devuelve nil sin error cuando no cubre el evento.
type ReferenceFeed interface {
	Name() string
	GetProbability(ctx context.Context, eventTitle string) (*float64, error)
}
