package engine

// ledger.go — exclusive owner of wallet and open-position mutations.
//
// Single-writer discipline enforced by ownership instead of locks: the
// engine routes every position close and wallet PnL update through this
// component; nothing else holds a mutable reference to either.

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/gembot/internal/domain"
)

// Ledger tracks the wallet, the open-position set and realized daily PnL.
type Ledger struct {
	wallet   domain.WalletState
	open     map[string]domain.Position // marketID → position
	dayStart time.Time
	dayPnL   float64
}

// NewLedger seeds a ledger with the initial bankroll.
func NewLedger(initialBalance float64) *Ledger {
	return &Ledger{
		wallet: domain.WalletState{
			Balance:        initialBalance,
			InitialBalance: initialBalance,
			PeakBalance:    initialBalance,
		},
		open: make(map[string]domain.Position),
	}
}

// Restore rebuilds ledger state from persisted wallet and open positions.
func (l *Ledger) Restore(w domain.WalletState, open []domain.Position) {
	l.wallet = w
	l.open = make(map[string]domain.Position, len(open))
	for _, p := range open {
		if p.IsOpen {
			l.open[p.MarketID] = p
		}
	}
}

// Wallet returns a copy of the wallet state.
func (l *Ledger) Wallet() domain.WalletState { return l.wallet }

// OpenPositions returns the open positions (copies).
func (l *Ledger) OpenPositions() []domain.Position {
	out := make([]domain.Position, 0, len(l.open))
	for _, p := range l.open {
		out = append(out, p)
	}
	return out
}

// OpenFor returns the open position on a market, if any.
func (l *Ledger) OpenFor(marketID string) (domain.Position, bool) {
	p, ok := l.open[marketID]
	return p, ok
}

// CapitalAtRisk sums the sizes of all open positions.
func (l *Ledger) CapitalAtRisk() float64 {
	var total float64
	for _, p := range l.open {
		total += p.SizeUSD
	}
	return total
}

// AddOpen registers a freshly admitted position. A second open position on
// the same market is a bug upstream, not a recoverable condition.
func (l *Ledger) AddOpen(p domain.Position) error {
	if _, exists := l.open[p.MarketID]; exists {
		return fmt.Errorf("engine.Ledger.AddOpen: position already open on %s", p.MarketID)
	}
	l.open[p.MarketID] = p
	return nil
}

// Update replaces the stored copy of an open position (exit retry counters).
func (l *Ledger) Update(p domain.Position) {
	if _, ok := l.open[p.MarketID]; ok {
		l.open[p.MarketID] = p
	}
}

// Close settles a position: fills the exit fields, removes it from the open
// set and applies the PnL to the wallet — the one and only wallet write per
// close.
func (l *Ledger) Close(marketID string, exitPrice, pnl float64, reason domain.ExitReason, now time.Time) (domain.Position, error) {
	p, ok := l.open[marketID]
	if !ok {
		return domain.Position{}, fmt.Errorf("engine.Ledger.Close: no open position on %s", marketID)
	}
	delete(l.open, marketID)

	p.IsOpen = false
	p.ExitPrice = exitPrice
	p.PnL = pnl
	p.ExitReason = reason
	p.ClosedAt = now
	p.HoldSeconds = now.Sub(p.OpenedAt).Seconds()

	l.wallet.ApplyPnL(pnl)
	l.accrueDaily(pnl, now)
	return p, nil
}

// Abandon removes a live position the engine can no longer exit, without
// touching the wallet: the capital state is unknown until an operator
// resolves it on the venue.
func (l *Ledger) Abandon(marketID string) (domain.Position, bool) {
	p, ok := l.open[marketID]
	if !ok {
		return domain.Position{}, false
	}
	delete(l.open, marketID)
	p.Abandoned = true
	p.IsOpen = false
	return p, true
}

// DailyPnL returns realized PnL for the current UTC day.
func (l *Ledger) DailyPnL(now time.Time) float64 {
	if day := now.UTC().Truncate(24 * time.Hour); !day.Equal(l.dayStart) {
		return 0
	}
	return l.dayPnL
}

func (l *Ledger) accrueDaily(pnl float64, now time.Time) {
	day := now.UTC().Truncate(24 * time.Hour)
	if !day.Equal(l.dayStart) {
		l.dayStart = day
		l.dayPnL = 0
	}
	l.dayPnL += pnl
}
