package engine

// sizing.go — fractional-Kelly position sizing with depth, balance and
// per-trade caps.

import (
	"math"

	"github.com/alejandrodnm/gembot/internal/domain"
)

const (
	// Hard clamp on the Kelly fraction after the safety multiplier.
	kellyFractionCap = 0.25

	// Win probability cap: fair values above this are treated as model
	// overconfidence, not free money.
	winProbCap = 0.8

	// Per-trade share of balance and of visible ask depth.
	maxBalanceFraction = 0.10
	maxDepthFraction   = 0.10

	// Score-based fallback when the signal carries no priced edge at all:
	// a small fraction of balance scaled by score.
	fallbackFraction = 0.05
)

// SizeRequest carries everything the sizer needs for one entry.
type SizeRequest struct {
	Signal        domain.Signal
	WalletBalance float64
	LiveBalance   *float64 // nil in paper mode
	AskDepthUSD   *float64 // nil when the venue can't report depth
}

// Sizer turns an admitted signal into a dollar position size.
type Sizer struct{}

// NewSizer creates a Sizer.
func NewSizer() *Sizer { return &Sizer{} }

// Size returns the position size in USD, or ok=false when the sized amount
// falls below the minimum tradable unit (rejected, never rounded up).
//
// Kelly: f* = (p·b - q)/b with b = (1-entry)/entry, p capped at 0.8,
// multiplied by the fractional-Kelly safety multiplier and clamped into
// [0, 0.25] before scaling by the effective balance. Caps applied in order:
// per-trade max, balance-at-risk max, then 10% of known ask depth (the
// liquidity cap dominates when smaller).
func (s *Sizer) Size(req SizeRequest, params domain.Params) (float64, bool) {
	sig := req.Signal
	if sig.TargetPrice <= 0 || sig.TargetPrice >= 1 {
		return 0, false
	}

	effective := req.WalletBalance
	if req.LiveBalance != nil && *req.LiveBalance < effective {
		effective = *req.LiveBalance
	}
	if effective <= 0 {
		return 0, false
	}

	fraction := s.kellyFraction(sig, params)
	size := fraction * effective

	// Caps, in order.
	if limit := params.Get(domain.ParamMaxPositionUSD); size > limit {
		size = limit
	}
	if limit := effective * maxBalanceFraction; size > limit {
		size = limit
	}
	if req.AskDepthUSD != nil {
		if limit := *req.AskDepthUSD * maxDepthFraction; size > limit {
			size = limit
		}
	}

	// Floors: configured dollar minimum, and at least one contract at the
	// entry price. Too small is a reject, not a round-up.
	minSize := params.Get(domain.ParamMinPositionUSD)
	if size < minSize || size < sig.TargetPrice {
		return 0, false
	}
	return size, true
}

// kellyFraction resolves the fraction to bet. A precomputed fraction on the
// signal wins; otherwise the edge is derived from (a) the net edge, (b) the
// fair-value gap, or (c) a score-based fallback when nothing is priced.
func (s *Sizer) kellyFraction(sig domain.Signal, params domain.Params) float64 {
	if sig.KellyFraction > 0 {
		return clampFraction(sig.KellyFraction)
	}

	entry := sig.TargetPrice

	var p float64
	switch {
	case sig.FairValue > 0:
		p = sig.FairValue
		if sig.Direction == domain.DirectionNo {
			p = 1 - sig.FairValue
		}
	case sig.NetEdge > 0:
		p = entry + sig.NetEdge
	case sig.RawEdge > 0:
		p = entry + sig.RawEdge
	default:
		// No priced edge at all: small score-scaled fallback.
		return clampFraction(fallbackFraction * sig.Score / 100)
	}

	p = math.Min(p, winProbCap)
	q := 1 - p
	b := (1 - entry) / entry
	if b <= 0 {
		return 0
	}

	kelly := (p*b - q) / b
	if kelly <= 0 {
		return 0
	}
	return clampFraction(kelly * params.Get(domain.ParamKellyMultiplier))
}

func clampFraction(f float64) float64 {
	return math.Max(0, math.Min(f, kellyFractionCap))
}
