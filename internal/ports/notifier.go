package ports

import (
	"context"

	"github.com/alejandrodnm/gembot/internal/domain"
)

// AlertSeverity clasifica las alertas del engine.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Notifier presenta el estado del engine al operador.
// Las condiciones que arriesgan capital real (kill switch, circuit breaker,
// divergencias de reconciliación, exits abandonados) tienen que ser RUIDOSAS:
// siempre pasan por Alert además del log.
type Notifier interface {
	// Alert emite una alerta visible para el operador.
	Alert(ctx context.Context, severity AlertSeverity, message string) error

	// Summary imprime el snapshot del portfolio tras un tick.
	Summary(ctx context.Context, positions []domain.Position, wallet domain.WalletState, stats domain.TradeStats) error
}
