package domain

import "time"

// Mode distinguishes simulated and real-money positions.
type Mode string

const (
	ModePaper Mode = "paper"
	ModeLive  Mode = "live"
)

// ExitReason records which exit rule closed a position.
type ExitReason string

const (
	ExitTakeProfit    ExitReason = "take_profit"
	ExitStopLoss      ExitReason = "stop_loss"
	ExitTimeDecayStop ExitReason = "time_decay_stop"
	ExitTimeLimit     ExitReason = "time_exit"
	ExitShutdown      ExitReason = "shutdown"
)

// Position is a single directional trade on one market.
// At most one open Position may exist per MarketID; the admission controller
// enforces that before creation, not the storage layer.
// Closed positions are immutable history: never deleted, only flipped to
// IsOpen=false by the monitor with exit price, pnl and reason filled in.
type Position struct {
	ID        string // UUID local
	MarketID  string
	Asset     string
	Category  Category
	Direction Direction
	Mode      Mode

	EntryPrice float64 // probability paid per contract
	SizeUSD    float64
	TakeProfit float64 // absolute price target
	StopLoss   float64 // absolute price stop
	Score      float64 // opportunity score at entry (extends max hold when high)
	OpenedAt   time.Time

	IsOpen      bool
	ExitPrice   float64
	PnL         float64
	HoldSeconds float64
	ExitReason  ExitReason
	ClosedAt    time.Time

	// Live exit bookkeeping: failed exit submissions are retried a fixed
	// number of times, then the position is abandoned with an alert instead
	// of being silently closed locally.
	ExitRetries int
	Abandoned   bool
}

// HoldTime returns how long the position has been (or was) held.
func (p Position) HoldTime(now time.Time) time.Duration {
	if !p.IsOpen && !p.ClosedAt.IsZero() {
		return p.ClosedAt.Sub(p.OpenedAt)
	}
	return now.Sub(p.OpenedAt)
}

// StopDistance returns the absolute distance between entry and stop.
func (p Position) StopDistance() float64 {
	d := p.EntryPrice - p.StopLoss
	if p.Direction == DirectionNo {
		d = p.StopLoss - p.EntryPrice
	}
	if d < 0 {
		return -d
	}
	return d
}

// Contracts returns how many contracts the position size buys at entry.
func (p Position) Contracts() float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return p.SizeUSD / p.EntryPrice
}

// IsWin reports whether the closed position made money.
func (p Position) IsWin() bool { return p.PnL > 0 }

// WalletState is the simulated (or mirrored) bankroll.
// Mutated exactly once per position close, by the same PnL used to close the
// position. The engine ledger is the only writer.
type WalletState struct {
	Balance        float64
	InitialBalance float64
	PeakBalance    float64
}

// Drawdown returns the fractional drawdown from the peak balance.
func (w WalletState) Drawdown() float64 {
	if w.PeakBalance <= 0 {
		return 0
	}
	dd := (w.PeakBalance - w.Balance) / w.PeakBalance
	if dd < 0 {
		return 0
	}
	return dd
}

// ApplyPnL applies a realized PnL and keeps PeakBalance monotone.
func (w *WalletState) ApplyPnL(pnl float64) {
	w.Balance += pnl
	if w.Balance > w.PeakBalance {
		w.PeakBalance = w.Balance
	}
}

// VenuePosition is an entry in the venue's authoritative open-position list,
// as returned by the execution collaborator during reconciliation.
type VenuePosition struct {
	Instrument string
	Quantity   float64
}

// OrderRequest is sent to the execution collaborator.
type OrderRequest struct {
	Instrument string
	Side       string // "buy" | "sell"
	Direction  Direction
	Amount     float64 // USD
	Price      float64 // probability limit
}

// OrderResult is the execution collaborator's response.
type OrderResult struct {
	Success        bool
	OrderID        string
	FillPrice      float64
	FilledQuantity float64
	Status         string
}
