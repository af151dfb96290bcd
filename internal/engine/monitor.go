package engine

// monitor.go — per-position exit evaluation.
//
// Exit priority: take-profit (checked against the realistically executable
// exit price) > stop-loss / time-decay stop (checked against mid, with the
// possibly-tightened threshold) > time exit. PnL is fee-aware and clamped.

import (
	"math"
	"time"

	"github.com/alejandrodnm/gembot/internal/domain"
)

const (
	// Time-decay acceleration: past this fraction of the effective hold
	// the stop distance tightens linearly toward half its entry width.
	decayStart     = 0.80
	decayMinFactor = 0.50

	// High-score entries get their hold window extended.
	highScoreThreshold  = 75.0
	highScoreHoldFactor = 1.5

	// Effective max hold can stretch to this fraction of time-to-expiry.
	expiryHoldFraction = 0.80

	// Raw directional PnL ratio clamp: positions priced near 0 or 1 can
	// produce runaway ratios from near-zero denominators.
	maxPnLRatio = 3.0

	// Live exit submissions are retried this many times before the
	// position is abandoned with an operator alert.
	maxExitRetries = 3
)

// ExitDecision says whether and why a position should close.
type ExitDecision struct {
	Exit      bool
	Reason    domain.ExitReason
	ExitPrice float64 // executable side price used for PnL
}

// Monitor evaluates open positions for exit every tick.
type Monitor struct {
	feeRate float64
}

// NewMonitor creates a monitor with the venue fee rate.
func NewMonitor(feeRate float64) *Monitor {
	return &Monitor{feeRate: feeRate}
}

// Evaluate inspects one open position against the current quote.
// ok=false means the position can't be evaluated this tick (live position
// without a two-sided book) and is skipped, not closed.
//
// Prices arrive in YES terms and are converted to the position's own side:
// a NO position exits by selling NO, whose bid is 1 - YES ask.
func (m *Monitor) Evaluate(p domain.Position, q domain.Quote, expiry time.Time, now time.Time, params domain.Params) (ExitDecision, bool) {
	if p.Mode == domain.ModeLive && !q.TwoSided() {
		return ExitDecision{}, false
	}

	exec, mid, ok := sidePrices(p.Direction, q)
	if !ok {
		return ExitDecision{}, false
	}

	hold := p.HoldTime(now).Seconds()
	effectiveHold := m.effectiveMaxHold(p, expiry, now, params)

	// 1. Take-profit against the executable price.
	if exec >= p.TakeProfit {
		return ExitDecision{Exit: true, Reason: domain.ExitTakeProfit, ExitPrice: exec}, true
	}

	// 2. Stop-loss against mid, tightened near the end of the hold window.
	stop, decayed := m.decayedStop(p, hold, effectiveHold)
	if mid <= stop {
		reason := domain.ExitStopLoss
		if decayed {
			reason = domain.ExitTimeDecayStop
		}
		return ExitDecision{Exit: true, Reason: reason, ExitPrice: exec}, true
	}

	// 3. Time exit.
	if hold >= effectiveHold {
		return ExitDecision{Exit: true, Reason: domain.ExitTimeLimit, ExitPrice: exec}, true
	}

	return ExitDecision{}, true
}

// effectiveMaxHold is the max of the configured default, 80% of the time to
// contract expiry, and the extended floor for high-score entries.
func (m *Monitor) effectiveMaxHold(p domain.Position, expiry time.Time, now time.Time, params domain.Params) float64 {
	maxHold := params.Get(domain.ParamMaxHoldSeconds)

	if !expiry.IsZero() {
		toExpiry := expiry.Sub(p.OpenedAt).Seconds()
		if ext := toExpiry * expiryHoldFraction; ext > maxHold {
			maxHold = ext
		}
	}
	if p.Score >= highScoreThreshold {
		if ext := params.Get(domain.ParamMaxHoldSeconds) * highScoreHoldFactor; ext > maxHold {
			maxHold = ext
		}
	}
	return maxHold
}

// decayedStop returns the stop level, tightened once decayFraction passes
// 0.80: the distance shrinks linearly from 1.0× at 0.80 to 0.5× at 1.0.
// An expiring contract's risk profile changes faster near settlement.
func (m *Monitor) decayedStop(p domain.Position, hold, effectiveHold float64) (stop float64, decayed bool) {
	stop = p.StopLoss
	if effectiveHold <= 0 {
		return stop, false
	}
	decay := hold / effectiveHold
	if decay < decayStart {
		return stop, false
	}
	progress := math.Min((decay-decayStart)/(1-decayStart), 1)
	factor := 1 - (1-decayMinFactor)*progress

	dist := p.EntryPrice - p.StopLoss
	if dist < 0 {
		dist = 0
	}
	return p.EntryPrice - dist*factor, true
}

// PnL computes the realized result at the executable exit price, net of
// entry and exit fees, with the directional ratio clamped to ±maxPnLRatio
// of position size.
func (m *Monitor) PnL(p domain.Position, exitPrice float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	ratio := (exitPrice - p.EntryPrice) / p.EntryPrice
	ratio = math.Max(-maxPnLRatio, math.Min(ratio, maxPnLRatio))

	gross := p.SizeUSD * ratio
	exitNotional := p.SizeUSD * (1 + ratio)
	fees := m.feeRate * (p.SizeUSD + exitNotional)
	return gross - fees
}

// MaxExitRetries exposes the retry cap to the engine loop.
func (m *Monitor) MaxExitRetries() int { return maxExitRetries }

// sidePrices converts a YES-terms quote into the position side's executable
// exit price (what selling the side achieves now) and mid.
func sidePrices(dir domain.Direction, q domain.Quote) (exec, mid float64, ok bool) {
	switch dir {
	case domain.DirectionYes:
		if q.Bid == nil {
			return 0, 0, false
		}
		exec = *q.Bid
		if m, okMid := q.Mid(); okMid {
			mid = m
		} else {
			mid = exec
		}
		return exec, mid, true
	case domain.DirectionNo:
		if q.Ask == nil {
			return 0, 0, false
		}
		exec = 1 - *q.Ask
		if m, okMid := q.Mid(); okMid {
			mid = 1 - m
		} else {
			mid = exec
		}
		return exec, mid, true
	}
	return 0, 0, false
}
